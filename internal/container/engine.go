// SPDX-License-Identifier: MPL-2.0

package container

import (
	"context"
	"errors"
	"fmt"
	"io"

	"freezecheck-cli/pkg/types"
)

const (
	// EngineTypePodman selects the Podman CLI.
	EngineTypePodman EngineType = "podman"
	// EngineTypeDocker selects the Docker CLI.
	EngineTypeDocker EngineType = "docker"

	// DefaultImage is the image frozen executables are cross-checked in.
	DefaultImage = "debian:stable-slim"
)

var (
	// ErrInvalidEngineType is the sentinel error wrapped by InvalidEngineTypeError.
	ErrInvalidEngineType = errors.New("invalid container engine type")
	// ErrEngineNotAvailable is the sentinel error wrapped by EngineNotAvailableError.
	ErrEngineNotAvailable = errors.New("container engine not available")
)

type (
	// Engine defines the container operations the harness needs.
	Engine interface {
		// Name returns the engine name (docker or podman).
		Name() string
		// Available checks if the engine is available on the system.
		Available() bool
		// Version returns the engine version.
		Version(ctx context.Context) (string, error)
		// Run runs a command in a container.
		Run(ctx context.Context, opts RunOptions) (*RunResult, error)
	}

	// EngineType identifies the container engine type.
	EngineType string

	// InvalidEngineTypeError is returned when an EngineType is not recognized.
	InvalidEngineTypeError struct {
		Value EngineType
	}

	// EngineNotAvailableError is returned when no usable engine was found.
	EngineNotAvailableError struct {
		Engine EngineType
		Reason string
	}

	// RunOptions contains options for running a container.
	RunOptions struct {
		// Image is the image to run.
		Image string
		// Command is the command to run.
		Command []string
		// WorkDir is the working directory inside the container.
		WorkDir string
		// Env contains environment variables.
		Env map[string]string
		// Volumes are the bind mounts.
		Volumes []VolumeMount
		// Remove automatically removes the container after exit.
		Remove bool
		// Stdout is where to write standard output.
		Stdout io.Writer
		// Stderr is where to write standard error.
		Stderr io.Writer
	}

	// RunResult contains the result of running a container.
	RunResult struct {
		// ExitCode is the exit code of the containerized command, or of the
		// engine itself when it failed to start the container (125-127).
		ExitCode types.ExitCode
		// Error is set when the engine binary could not be executed at all.
		Error error
	}
)

// Error implements the error interface.
func (e *InvalidEngineTypeError) Error() string {
	return fmt.Sprintf("invalid container engine type %q (valid: podman, docker)", e.Value)
}

// Unwrap returns ErrInvalidEngineType for errors.Is() compatibility.
func (e *InvalidEngineTypeError) Unwrap() error { return ErrInvalidEngineType }

// Validate returns an error if the EngineType is not podman or docker.
func (t EngineType) Validate() error {
	switch t {
	case EngineTypePodman, EngineTypeDocker:
		return nil
	default:
		return &InvalidEngineTypeError{Value: t}
	}
}

// String returns the string representation of the EngineType.
func (t EngineType) String() string { return string(t) }

// Error implements the error interface.
func (e *EngineNotAvailableError) Error() string {
	return fmt.Sprintf("container engine '%s' is not available: %s", e.Engine, e.Reason)
}

// Unwrap returns ErrEngineNotAvailable for errors.Is() compatibility.
func (e *EngineNotAvailableError) Unwrap() error { return ErrEngineNotAvailable }

// NewEngine returns the preferred engine, or the other one when the
// preferred engine is not installed.
func NewEngine(preferred EngineType, opts ...BaseCLIEngineOption) (Engine, error) {
	if err := preferred.Validate(); err != nil {
		return nil, err
	}

	podman := NewPodmanEngine(opts...)
	docker := NewDockerEngine(opts...)
	candidates := []Engine{podman, docker}
	if preferred == EngineTypeDocker {
		candidates = []Engine{docker, podman}
	}

	for _, e := range candidates {
		if e.Available() {
			return e, nil
		}
	}
	return nil, &EngineNotAvailableError{
		Engine: preferred,
		Reason: fmt.Sprintf("%s is not installed or not accessible, and the fallback is also not available", preferred),
	}
}
