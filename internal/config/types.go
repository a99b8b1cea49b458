// SPDX-License-Identifier: MPL-2.0

package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	// ContainerEnginePodman uses Podman for the container cross-check.
	ContainerEnginePodman ContainerEngine = "podman"
	// ContainerEngineDocker uses Docker for the container cross-check.
	ContainerEngineDocker ContainerEngine = "docker"

	// EnvironmentSystem runs with the system interpreter.
	EnvironmentSystem EnvironmentKind = "system"
	// EnvironmentVirtual provisions a per-sample virtual environment.
	EnvironmentVirtual EnvironmentKind = "virtual"
	// EnvironmentNamed activates an existing conda environment.
	EnvironmentNamed EnvironmentKind = "named"

	// ColorSchemeAuto follows the terminal background.
	ColorSchemeAuto ColorScheme = "auto"
	// ColorSchemeDark forces the dark palette.
	ColorSchemeDark ColorScheme = "dark"
	// ColorSchemeLight forces the light palette.
	ColorSchemeLight ColorScheme = "light"
)

var (
	// ErrInvalidContainerEngine is returned when a ContainerEngine value is not recognized.
	ErrInvalidContainerEngine = errors.New("invalid container engine")
	// ErrInvalidEnvironmentKind is returned when an EnvironmentKind value is not recognized.
	ErrInvalidEnvironmentKind = errors.New("invalid environment kind")
	// ErrInvalidColorScheme is returned when a ColorScheme value is not recognized.
	ErrInvalidColorScheme = errors.New("invalid color scheme")
	// ErrInvalidTimeout is returned for non-positive timeouts.
	ErrInvalidTimeout = errors.New("invalid timeout")
	// ErrInvalidConfig is the sentinel error wrapped by InvalidConfigError.
	ErrInvalidConfig = errors.New("invalid config")
)

type (
	// ContainerEngine selects the preferred container engine.
	ContainerEngine string

	// EnvironmentKind is the default isolation mode when no CLI flag picks one.
	// It mirrors environ.Kind without importing it.
	EnvironmentKind string

	// ColorScheme selects the terminal palette.
	ColorScheme string

	// InvalidValueError reports an unrecognized enum value.
	InvalidValueError struct {
		Field string
		Value string
		Err   error
	}

	// InvalidConfigError collects field-level validation errors.
	InvalidConfigError struct {
		FieldErrors []error
	}

	// Config holds the harness configuration.
	Config struct {
		ContainerEngine ContainerEngine   `json:"container_engine" mapstructure:"container_engine"`
		ContainerImage  string            `json:"container_image" mapstructure:"container_image"`
		Environment     EnvironmentConfig `json:"environment" mapstructure:"environment"`
		Freezer         FreezerConfig     `json:"freezer" mapstructure:"freezer"`
		Paths           PathsConfig       `json:"paths" mapstructure:"paths"`
		Timeouts        TimeoutsConfig    `json:"timeouts" mapstructure:"timeouts"`
		UI              UIConfig          `json:"ui" mapstructure:"ui"`
	}

	// EnvironmentConfig configures interpreter isolation.
	EnvironmentConfig struct {
		// Kind is used when the run command gets no --system/--venv/--env flag.
		Kind EnvironmentKind `json:"kind" mapstructure:"kind"`
		// Root is the directory holding provisioned virtual environments.
		Root string `json:"root" mapstructure:"root"`
		// CondaExe is the conda-compatible executable used for named environments.
		CondaExe string `json:"conda_exe" mapstructure:"conda_exe"`
	}

	// FreezerConfig configures the packaging tool under test.
	FreezerConfig struct {
		// Module is the importable module name of the freezer.
		Module string `json:"module" mapstructure:"module"`
		// ExtraArgs are shell-split and appended to every build invocation,
		// before BUILD_OPTS.
		ExtraArgs string `json:"extra_args" mapstructure:"extra_args"`
	}

	// PathsConfig locates the checkout being tested. Relative paths are
	// resolved against the working directory.
	PathsConfig struct {
		SamplesDir string `json:"samples_dir" mapstructure:"samples_dir"`
		CIDir      string `json:"ci_dir" mapstructure:"ci_dir"`
		RunDriver  string `json:"run_driver" mapstructure:"run_driver"`
		// HistoryDB is the run history database; empty selects the default
		// under the user data directory.
		HistoryDB string `json:"history_db" mapstructure:"history_db"`
	}

	// TimeoutsConfig bounds each external process.
	TimeoutsConfig struct {
		Provision time.Duration `json:"provision" mapstructure:"provision"`
		Install   time.Duration `json:"install" mapstructure:"install"`
		Build     time.Duration `json:"build" mapstructure:"build"`
		Run       time.Duration `json:"run" mapstructure:"run"`
		Container time.Duration `json:"container" mapstructure:"container"`
	}

	// UIConfig configures terminal output.
	UIConfig struct {
		Verbose     bool        `json:"verbose" mapstructure:"verbose"`
		ColorScheme ColorScheme `json:"color_scheme" mapstructure:"color_scheme"`
	}
)

func (e *InvalidValueError) Error() string {
	return fmt.Sprintf("%s: invalid value %q", e.Field, e.Value)
}

func (e *InvalidValueError) Unwrap() error { return e.Err }

func (e *InvalidConfigError) Error() string {
	msgs := make([]string, len(e.FieldErrors))
	for i, err := range e.FieldErrors {
		msgs[i] = err.Error()
	}
	return "invalid config: " + strings.Join(msgs, "; ")
}

func (e *InvalidConfigError) Unwrap() []error {
	return append([]error{ErrInvalidConfig}, e.FieldErrors...)
}

func (e ContainerEngine) Validate() error {
	switch e {
	case ContainerEnginePodman, ContainerEngineDocker:
		return nil
	}
	return &InvalidValueError{Field: "container_engine", Value: string(e), Err: ErrInvalidContainerEngine}
}

func (k EnvironmentKind) Validate() error {
	switch k {
	case EnvironmentSystem, EnvironmentVirtual, EnvironmentNamed:
		return nil
	}
	return &InvalidValueError{Field: "environment.kind", Value: string(k), Err: ErrInvalidEnvironmentKind}
}

func (c ColorScheme) Validate() error {
	switch c {
	case ColorSchemeAuto, ColorSchemeDark, ColorSchemeLight:
		return nil
	}
	return &InvalidValueError{Field: "ui.color_scheme", Value: string(c), Err: ErrInvalidColorScheme}
}

// Validate checks every timeout is positive.
func (t TimeoutsConfig) Validate() error {
	var errs []error
	for _, f := range []struct {
		name string
		d    time.Duration
	}{
		{"provision", t.Provision},
		{"install", t.Install},
		{"build", t.Build},
		{"run", t.Run},
		{"container", t.Container},
	} {
		if f.d <= 0 {
			errs = append(errs, fmt.Errorf("timeouts.%s: %w: %s", f.name, ErrInvalidTimeout, f.d))
		}
	}
	return errors.Join(errs...)
}

// Validate checks the values CUE cannot see after environment overrides.
func (c *Config) Validate() error {
	var errs []error
	for _, err := range []error{
		c.ContainerEngine.Validate(),
		c.Environment.Kind.Validate(),
		c.UI.ColorScheme.Validate(),
		c.Timeouts.Validate(),
	} {
		if err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return &InvalidConfigError{FieldErrors: errs}
	}
	return nil
}

// DefaultConfig returns the built-in configuration.
func DefaultConfig() *Config {
	return &Config{
		ContainerEngine: ContainerEnginePodman,
		ContainerImage:  "debian:stable-slim",
		Environment: EnvironmentConfig{
			Kind:     EnvironmentVirtual,
			Root:     ".venvs",
			CondaExe: "conda",
		},
		Freezer: FreezerConfig{Module: "cx_Freeze"},
		Paths: PathsConfig{
			SamplesDir: "samples",
			CIDir:      "ci",
			RunDriver:  "ci/run_sample.py",
		},
		Timeouts: TimeoutsConfig{
			Provision: 10 * time.Minute,
			Install:   30 * time.Minute,
			Build:     30 * time.Minute,
			Run:       10 * time.Minute,
			Container: 5 * time.Minute,
		},
		UI: UIConfig{ColorScheme: ColorSchemeAuto},
	}
}
