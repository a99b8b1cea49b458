// SPDX-License-Identifier: MPL-2.0

package config

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/spf13/viper"

	"freezecheck-cli/internal/issue"
	"freezecheck-cli/pkg/cueutil"
)

const (
	// AppName is the application name.
	AppName = "freezecheck"
	// ConfigFileName is the name of the config file (without extension).
	ConfigFileName = "config"
	// ConfigFileExt is the config file extension.
	ConfigFileExt = "cue"
	// EnvPrefix prefixes environment overrides.
	EnvPrefix = "FREEZECHECK"
	// HistoryFileName is the default run history database name.
	HistoryFileName = "history.db"
)

// ErrConfigExists is returned by CreateDefaultConfig when the file exists.
var ErrConfigExists = errors.New("config file already exists")

//go:embed config_schema.cue
var configSchema string

// ConfigDir returns the freezecheck configuration directory: %APPDATA% on
// Windows, ~/Library/Application Support on macOS and $XDG_CONFIG_HOME
// (default ~/.config) elsewhere.
//
//nolint:revive // ConfigDir is more descriptive than Dir for external callers
func ConfigDir() (string, error) {
	var base string
	switch runtime.GOOS {
	case "windows":
		base = os.Getenv("APPDATA")
		if base == "" {
			base = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		base = filepath.Join(home, "Library", "Application Support")
	default:
		base = os.Getenv("XDG_CONFIG_HOME")
		if base == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", fmt.Errorf("failed to get home directory: %w", err)
			}
			base = filepath.Join(home, ".config")
		}
	}
	return filepath.Join(base, AppName), nil
}

// DataDir returns the directory for harness state such as the run history:
// %LOCALAPPDATA% on Windows, ~/Library/Application Support on macOS and
// $XDG_DATA_HOME (default ~/.local/share) elsewhere.
func DataDir() (string, error) {
	var base string
	switch runtime.GOOS {
	case "windows":
		base = os.Getenv("LOCALAPPDATA")
		if base == "" {
			base = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Local")
		}
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		base = filepath.Join(home, "Library", "Application Support")
	default:
		base = os.Getenv("XDG_DATA_HOME")
		if base == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", fmt.Errorf("failed to get home directory: %w", err)
			}
			base = filepath.Join(home, ".local", "share")
		}
	}
	return filepath.Join(base, AppName), nil
}

// HistoryPath returns the configured history database, or the default one
// under DataDir.
func (c *Config) HistoryPath() (string, error) {
	if c.Paths.HistoryDB != "" {
		return c.Paths.HistoryDB, nil
	}
	dir, err := DataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, HistoryFileName), nil
}

// loadWithOptions loads defaults, then the first config file found, then
// environment overrides. The returned path is empty when no file was used.
func loadWithOptions(ctx context.Context, opts LoadOptions) (*Config, string, error) {
	select {
	case <-ctx.Done():
		return nil, "", fmt.Errorf("load config canceled: %w", ctx.Err())
	default:
	}

	v := viper.New()
	setDefaults(v, DefaultConfig())
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	path, err := resolveConfigFile(opts)
	if err != nil {
		return nil, "", err
	}
	if path != "" {
		if err := loadCUEIntoViper(v, path); err != nil {
			return nil, "", loadError(path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, "", loadError(path, fmt.Errorf("failed to parse config: %w", err))
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", issue.NewErrorContext().
			WithOperation("validate configuration").
			WithResource(path).
			WithSuggestion("Check FREEZECHECK_* environment overrides").
			WithIssue(issue.ConfigLoadFailedId).
			Wrap(err).
			BuildError()
	}
	return &cfg, path, nil
}

func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("container_engine", d.ContainerEngine)
	v.SetDefault("container_image", d.ContainerImage)
	v.SetDefault("environment.kind", d.Environment.Kind)
	v.SetDefault("environment.root", d.Environment.Root)
	v.SetDefault("environment.conda_exe", d.Environment.CondaExe)
	v.SetDefault("freezer.module", d.Freezer.Module)
	v.SetDefault("freezer.extra_args", d.Freezer.ExtraArgs)
	v.SetDefault("paths.samples_dir", d.Paths.SamplesDir)
	v.SetDefault("paths.ci_dir", d.Paths.CIDir)
	v.SetDefault("paths.run_driver", d.Paths.RunDriver)
	v.SetDefault("paths.history_db", d.Paths.HistoryDB)
	v.SetDefault("timeouts.provision", d.Timeouts.Provision)
	v.SetDefault("timeouts.install", d.Timeouts.Install)
	v.SetDefault("timeouts.build", d.Timeouts.Build)
	v.SetDefault("timeouts.run", d.Timeouts.Run)
	v.SetDefault("timeouts.container", d.Timeouts.Container)
	v.SetDefault("ui.verbose", d.UI.Verbose)
	v.SetDefault("ui.color_scheme", d.UI.ColorScheme)
}

// resolveConfigFile picks the explicit file, else the config directory
// file, else ./config.cue. No file at all is not an error.
func resolveConfigFile(opts LoadOptions) (string, error) {
	if opts.ConfigFilePath != "" {
		if !fileExists(opts.ConfigFilePath) {
			return "", issue.NewErrorContext().
				WithOperation("load configuration").
				WithResource(opts.ConfigFilePath).
				WithSuggestion("Verify the file path is correct").
				WithSuggestion("Use 'freezecheck config init' to create a default file").
				WithIssue(issue.ConfigLoadFailedId).
				Wrap(fmt.Errorf("config file not found: %s", opts.ConfigFilePath)).
				BuildError()
		}
		return opts.ConfigFilePath, nil
	}

	cfgDir := opts.ConfigDirPath
	if cfgDir == "" {
		var err error
		if cfgDir, err = ConfigDir(); err != nil {
			return "", err
		}
	}
	name := ConfigFileName + "." + ConfigFileExt
	for _, candidate := range []string{filepath.Join(cfgDir, name), name} {
		if fileExists(candidate) {
			return candidate, nil
		}
	}
	return "", nil
}

func loadError(path string, err error) error {
	return issue.NewErrorContext().
		WithOperation("load configuration").
		WithResource(path).
		WithSuggestion("Check that the file contains valid CUE syntax").
		WithSuggestion("Verify the values match the schema shown by 'freezecheck config show'").
		WithIssue(issue.ConfigLoadFailedId).
		Wrap(err).
		BuildError()
}

// loadCUEIntoViper validates the file against #Config and merges it into v.
// Decoding goes to a map rather than through cueutil.ParseAndDecode so that
// unset fields keep their Viper defaults.
func loadCUEIntoViper(v *viper.Viper, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := cueutil.CheckFileSize(data, cueutil.DefaultMaxFileSize, path); err != nil {
		return err
	}

	ctx := cuecontext.New()
	schemaValue := ctx.CompileString(configSchema)
	if schemaValue.Err() != nil {
		return fmt.Errorf("internal error: failed to compile config schema: %w", schemaValue.Err())
	}

	userValue := ctx.CompileBytes(data, cue.Filename(path))
	if userValue.Err() != nil {
		return cueutil.FormatError(userValue.Err(), path)
	}

	unified := schemaValue.LookupPath(cue.ParsePath("#Config")).Unify(userValue)
	if err := unified.Validate(cue.Concrete(false)); err != nil {
		return cueutil.FormatError(err, path)
	}

	var configMap map[string]any
	if err := unified.Decode(&configMap); err != nil {
		return cueutil.FormatError(err, path)
	}
	if err := v.MergeConfigMap(configMap); err != nil {
		return fmt.Errorf("failed to merge config: %w", err)
	}
	return nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// CreateDefaultConfig writes the default configuration to config.cue in dir
// (ConfigDir when empty) and returns its path. An existing file is only
// replaced when force is set.
func CreateDefaultConfig(dir string, force bool) (string, error) {
	if dir == "" {
		var err error
		if dir, err = ConfigDir(); err != nil {
			return "", err
		}
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}

	path := filepath.Join(dir, ConfigFileName+"."+ConfigFileExt)
	if fileExists(path) && !force {
		return path, fmt.Errorf("%w: %s", ErrConfigExists, path)
	}
	if err := os.WriteFile(path, []byte(GenerateCUE(DefaultConfig())), 0o644); err != nil {
		return "", fmt.Errorf("failed to write config file: %w", err)
	}
	return path, nil
}

// GenerateCUE renders cfg as a config file.
func GenerateCUE(cfg *Config) string {
	var sb strings.Builder

	sb.WriteString("// freezecheck configuration\n")
	sb.WriteString("// Every field is optional. Environment variables FREEZECHECK_<KEY> override it.\n\n")

	fmt.Fprintf(&sb, "container_engine: %q\n", cfg.ContainerEngine)
	fmt.Fprintf(&sb, "container_image:  %q\n", cfg.ContainerImage)

	sb.WriteString("\nenvironment: {\n")
	fmt.Fprintf(&sb, "\tkind:      %q\n", cfg.Environment.Kind)
	fmt.Fprintf(&sb, "\troot:      %q\n", cfg.Environment.Root)
	fmt.Fprintf(&sb, "\tconda_exe: %q\n", cfg.Environment.CondaExe)
	sb.WriteString("}\n")

	sb.WriteString("\nfreezer: {\n")
	fmt.Fprintf(&sb, "\tmodule:     %q\n", cfg.Freezer.Module)
	fmt.Fprintf(&sb, "\textra_args: %q\n", cfg.Freezer.ExtraArgs)
	sb.WriteString("}\n")

	sb.WriteString("\npaths: {\n")
	fmt.Fprintf(&sb, "\tsamples_dir: %q\n", cfg.Paths.SamplesDir)
	fmt.Fprintf(&sb, "\tci_dir:      %q\n", cfg.Paths.CIDir)
	fmt.Fprintf(&sb, "\trun_driver:  %q\n", cfg.Paths.RunDriver)
	fmt.Fprintf(&sb, "\thistory_db:  %q\n", cfg.Paths.HistoryDB)
	sb.WriteString("}\n")

	sb.WriteString("\ntimeouts: {\n")
	fmt.Fprintf(&sb, "\tprovision: %q\n", cfg.Timeouts.Provision)
	fmt.Fprintf(&sb, "\tinstall:   %q\n", cfg.Timeouts.Install)
	fmt.Fprintf(&sb, "\tbuild:     %q\n", cfg.Timeouts.Build)
	fmt.Fprintf(&sb, "\trun:       %q\n", cfg.Timeouts.Run)
	fmt.Fprintf(&sb, "\tcontainer: %q\n", cfg.Timeouts.Container)
	sb.WriteString("}\n")

	sb.WriteString("\nui: {\n")
	fmt.Fprintf(&sb, "\tverbose:      %v\n", cfg.UI.Verbose)
	fmt.Fprintf(&sb, "\tcolor_scheme: %q\n", cfg.UI.ColorScheme)
	sb.WriteString("}\n")

	return sb.String()
}
