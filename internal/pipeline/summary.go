// SPDX-License-Identifier: MPL-2.0

package pipeline

import (
	"time"

	"freezecheck-cli/internal/aggregate"
	"freezecheck-cli/internal/deps"
	"freezecheck-cli/internal/environ"
	"freezecheck-cli/internal/history"
	"freezecheck-cli/internal/probe"
	"freezecheck-cli/pkg/types"
)

// Summary is the outcome of one pipeline run. It is what --summary writes
// and what the run history stores.
type Summary struct {
	RunID         string               `json:"run_id,omitempty" yaml:"run_id,omitempty" toml:"run_id,omitempty"`
	Sample        types.SampleName     `json:"sample" yaml:"sample" toml:"sample"`
	Platform      probe.Info           `json:"platform" yaml:"platform" toml:"platform"`
	Environment   *environ.Environment `json:"environment,omitempty" yaml:"environment,omitempty" toml:"environment,omitempty"`
	DepsMode      deps.Mode            `json:"deps_mode,omitempty" yaml:"deps_mode,omitempty" toml:"deps_mode,omitempty"`
	DepsInstalled bool                 `json:"deps_installed" yaml:"deps_installed" toml:"deps_installed"`
	BuildExitCode types.ExitCode       `json:"build_exit_code" yaml:"build_exit_code" toml:"build_exit_code"`
	Dirs          []*aggregate.Result  `json:"dirs,omitempty" yaml:"dirs,omitempty" toml:"dirs,omitempty"`
	// ExitCode is the process exit code of the run.
	ExitCode types.ExitCode `json:"exit_code" yaml:"exit_code" toml:"exit_code"`
	// LastAttempted is the status of the last attempted directory, kept
	// next to ExitCode so the two policies can be compared.
	LastAttempted types.ExitCode `json:"last_attempted" yaml:"last_attempted" toml:"last_attempted"`
	Skipped       bool           `json:"skipped,omitempty" yaml:"skipped,omitempty" toml:"skipped,omitempty"`
	SkipReason    string         `json:"skip_reason,omitempty" yaml:"skip_reason,omitempty" toml:"skip_reason,omitempty"`
	CrossChecks   int            `json:"cross_checks" yaml:"cross_checks" toml:"cross_checks"`
	StartedAt     time.Time      `json:"started_at" yaml:"started_at" toml:"started_at"`
	FinishedAt    time.Time      `json:"finished_at" yaml:"finished_at" toml:"finished_at"`
	Error         string         `json:"error,omitempty" yaml:"error,omitempty" toml:"error,omitempty"`
}

// History converts the summary into a history record.
func (s *Summary) History() history.Run {
	run := history.Run{
		ID:          s.RunID,
		Sample:      s.Sample,
		PlatformTag: s.Platform.PlatformTag,
		Python:      s.Platform.FullVersion,
		DepsMode:    s.DepsMode.String(),
		ExitCode:    s.ExitCode,
		Skipped:     s.Skipped,
		Error:       s.Error,
		StartedAt:   s.StartedAt,
		FinishedAt:  s.FinishedAt,
	}
	if s.Environment != nil {
		run.Environment = s.Environment.Name
	}
	if s.Skipped && run.Error == "" {
		run.Error = s.SkipReason
	}
	for _, d := range s.Dirs {
		run.Dirs = append(run.Dirs, history.DirResult{
			Dir:      d.Dir,
			ExitCode: d.ExitCode,
			Records:  len(d.Records),
			Skipped:  d.Skipped,
			Error:    d.Error,
		})
	}
	return run
}
