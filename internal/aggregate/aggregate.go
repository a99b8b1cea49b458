// SPDX-License-Identifier: MPL-2.0

// Package aggregate folds run-protocol outcomes of every attempted artifact
// directory into one overall exit status.
//
// A directory's status folds the exit codes of every process record with
// the terminal status, so a failed process is not masked by "status 0".
// The overall status is the worst of all attempted directories: the first
// non-zero code wins and later successes never mask it. The code of the last
// attempted directory stays available through LastAttempted.
package aggregate

import (
	"errors"
	"fmt"

	"freezecheck-cli/internal/protocol"
	"freezecheck-cli/pkg/types"
)

var (
	// ErrAlreadyFinalized is returned when Finish is called twice.
	ErrAlreadyFinalized = errors.New("aggregate already finalized")
	// ErrNoDirectory is returned when records are observed before Begin.
	ErrNoDirectory = errors.New("no artifact directory in progress")
	// ErrNothingAttempted is returned by Finish when no directory was attempted.
	ErrNothingAttempted = errors.New("no artifact directory was attempted")
)

type (
	// Result is the outcome of one artifact directory.
	Result struct {
		Dir      string                   `json:"dir" yaml:"dir" toml:"dir"`
		Records  []protocol.ProcessRecord `json:"records" yaml:"records" toml:"records"`
		Terminal *protocol.TerminalRecord `json:"terminal,omitempty" yaml:"terminal,omitempty" toml:"terminal,omitempty"`
		ExitCode types.ExitCode           `json:"exit_code" yaml:"exit_code" toml:"exit_code"`
		Skipped  bool                     `json:"skipped,omitempty" yaml:"skipped,omitempty" toml:"skipped,omitempty"`
		Err      error                    `json:"-" yaml:"-" toml:"-"`
		Error    string                   `json:"error,omitempty" yaml:"error,omitempty" toml:"error,omitempty"`
	}

	// Aggregator collects per-directory results. It is not safe for
	// concurrent use; the pipeline is strictly sequential.
	Aggregator struct {
		results   []*Result
		current   *Result
		finalized bool
		final     types.ExitCode
	}
)

// New returns an empty Aggregator.
func New() *Aggregator {
	return &Aggregator{}
}

// Begin opens a result for dir. Any directory still open is closed first.
func (a *Aggregator) Begin(dir string) {
	a.closeCurrent()
	a.current = &Result{Dir: dir}
}

// Observe records one decoded run-protocol record for the open directory.
func (a *Aggregator) Observe(rec protocol.Record) error {
	if a.current == nil {
		return ErrNoDirectory
	}
	switch r := rec.(type) {
	case protocol.ProcessRecord:
		a.current.Records = append(a.current.Records, r)
		a.current.ExitCode = a.current.ExitCode.Worse(r.ExitCode)
	case protocol.TerminalRecord:
		if a.current.Terminal != nil {
			return fmt.Errorf("second status record for %s", a.current.Dir)
		}
		a.current.Terminal = &r
		a.current.ExitCode = a.current.ExitCode.Worse(r.ExitCode)
	default:
		return fmt.Errorf("unsupported record type %T", rec)
	}
	return nil
}

// Fail marks the open directory as failed with code and cause. A zero code
// is promoted to 1 so a failure can never read as success.
func (a *Aggregator) Fail(code types.ExitCode, cause error) {
	if a.current == nil {
		return
	}
	if code == 0 {
		code = 1
	}
	a.current.ExitCode = code
	a.current.Err = cause
	if cause != nil {
		a.current.Error = cause.Error()
	}
}

// Skip records dir as not attempted.
func (a *Aggregator) Skip(dir string) {
	a.closeCurrent()
	a.results = append(a.results, &Result{Dir: dir, Skipped: true})
}

// End closes the open directory, if any. The run driver's own exit code is
// folded in when no status record was seen and no failure was recorded.
func (a *Aggregator) End(processCode types.ExitCode) {
	if a.current == nil {
		return
	}
	if a.current.Terminal == nil && a.current.Err == nil {
		a.current.ExitCode = a.current.ExitCode.Worse(processCode)
	}
	a.closeCurrent()
}

// Finish closes any open directory and computes the overall status.
// It may be called only once.
func (a *Aggregator) Finish() (types.ExitCode, error) {
	if a.finalized {
		return a.final, ErrAlreadyFinalized
	}
	a.closeCurrent()
	a.finalized = true

	attempted := a.Attempted()
	if len(attempted) == 0 {
		a.final = 1
		return a.final, ErrNothingAttempted
	}
	var code types.ExitCode
	for _, r := range attempted {
		code = code.Worse(r.ExitCode)
	}
	a.final = code
	return a.final, nil
}

// Final returns the overall status computed by Finish.
func (a *Aggregator) Final() types.ExitCode { return a.final }

// Finalized reports whether Finish has been called.
func (a *Aggregator) Finalized() bool { return a.finalized }

// LastAttempted returns the code of the last attempted directory, and false
// when nothing was attempted.
func (a *Aggregator) LastAttempted() (types.ExitCode, bool) {
	attempted := a.Attempted()
	if len(attempted) == 0 {
		return 0, false
	}
	return attempted[len(attempted)-1].ExitCode, true
}

// Results returns every closed result in order, skipped ones included.
func (a *Aggregator) Results() []*Result {
	return a.results
}

// Attempted returns the closed results that were not skipped.
func (a *Aggregator) Attempted() []*Result {
	out := make([]*Result, 0, len(a.results))
	for _, r := range a.results {
		if !r.Skipped {
			out = append(out, r)
		}
	}
	return out
}

func (a *Aggregator) closeCurrent() {
	if a.current != nil {
		a.results = append(a.results, a.current)
		a.current = nil
	}
}
