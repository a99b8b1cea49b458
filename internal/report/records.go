// SPDX-License-Identifier: MPL-2.0

package report

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/text/unicode/norm"

	"freezecheck-cli/internal/container"
	"freezecheck-cli/internal/platform"
	"freezecheck-cli/internal/protocol"
)

// frozenMount is where the artifact directory is mounted in the cross-check container.
const frozenMount = "/frozen"

type (
	// EngineFunc resolves the container engine on first use.
	EngineFunc func() (container.Engine, error)

	// RecordOption configures a RecordReporter.
	RecordOption func(*RecordReporter)

	// RecordReporter performs the per-record side effects of a run: it echoes
	// the log files the run driver left for each process and, where the
	// platform calls for it, reruns console executables in a container. None
	// of these side effects change a record's exit code.
	RecordReporter struct {
		rep       *Reporter
		adapter   platform.Adapter
		engine    EngineFunc
		image     string
		timeout   time.Duration
		attempts  int
		backoff   time.Duration
		logger    *log.Logger
		crossRuns int
	}
)

// WithEngine sets how the container engine is obtained. The function is
// called at most once.
func WithEngine(fn EngineFunc) RecordOption {
	return func(r *RecordReporter) { r.engine = sync.OnceValues(fn) }
}

// WithImage sets the cross-check image.
func WithImage(image string) RecordOption {
	return func(r *RecordReporter) { r.image = image }
}

// WithContainerTimeout bounds one cross-check run.
func WithContainerTimeout(d time.Duration) RecordOption {
	return func(r *RecordReporter) { r.timeout = d }
}

// WithRetry sets the retry policy for transient engine failures.
func WithRetry(attempts int, backoff time.Duration) RecordOption {
	return func(r *RecordReporter) {
		r.attempts = attempts
		r.backoff = backoff
	}
}

// WithLogger sets the logger.
func WithLogger(l *log.Logger) RecordOption {
	return func(r *RecordReporter) { r.logger = l }
}

// NewRecordReporter creates a RecordReporter for adapter's platform. The
// container engine defaults to Podman with Docker as fallback.
func NewRecordReporter(rep *Reporter, adapter platform.Adapter, opts ...RecordOption) *RecordReporter {
	r := &RecordReporter{
		rep:     rep,
		adapter: adapter,
		engine: sync.OnceValues(func() (container.Engine, error) {
			return container.NewEngine(container.EngineTypePodman)
		}),
		image:    container.DefaultImage,
		timeout:  5 * time.Minute,
		attempts: container.DefaultRunAttempts,
		backoff:  container.DefaultRunBackoff,
		logger:   log.New(io.Discard),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// DisplayName returns the record's name in NFC form for display.
func DisplayName(rec protocol.ProcessRecord) string {
	return norm.NFC.String(rec.Name)
}

// CrossChecks returns how many container cross-checks were run.
func (r *RecordReporter) CrossChecks() int { return r.crossRuns }

// Report handles one process record decoded in dir.
func (r *RecordReporter) Report(ctx context.Context, dir string, rec protocol.ProcessRecord) {
	r.rep.Note("%s (pid %d, %s) exited with status %d", DisplayName(rec), rec.PID, rec.AppType, rec.ExitCode)
	r.echoLogs(dir, rec)

	if r.adapter.ContainerCheck && rec.AppType == protocol.AppConsole {
		r.crossCheck(ctx, dir, rec)
	}
}

func (r *RecordReporter) echoLogs(dir string, rec protocol.ProcessRecord) {
	base := rec.LogBase
	if !filepath.IsAbs(base) {
		base = filepath.Join(dir, base)
	}
	for _, suffix := range r.adapter.LogSuffixes() {
		p := base + suffix
		data, err := os.ReadFile(p)
		if err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				r.logger.Warn("cannot read log file", "path", p, "err", err)
			}
			continue
		}
		r.rep.Note("--- %s", filepath.Base(p))
		_, _ = r.rep.Writer().Write(data)
		if len(data) > 0 && data[len(data)-1] != '\n' {
			fmt.Fprintln(r.rep.Writer())
		}
	}
}

func (r *RecordReporter) crossCheck(ctx context.Context, dir string, rec protocol.ProcessRecord) {
	engine, err := r.engine()
	if err != nil {
		r.logger.Warn("container cross-check skipped", "name", DisplayName(rec), "err", err)
		return
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		r.logger.Warn("container cross-check skipped", "dir", dir, "err", err)
		return
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	r.crossRuns++
	r.rep.Note("--- %s in %s (%s)", DisplayName(rec), r.image, engine.Name())
	res, err := container.RunWithRetry(ctx, engine, container.RunOptions{
		Image:   r.image,
		Command: []string{path.Join(frozenMount, rec.Name+r.adapter.ExeSuffix)},
		WorkDir: frozenMount,
		Volumes: []container.VolumeMount{{HostPath: abs, ContainerPath: frozenMount, ReadOnly: true}},
		Remove:  true,
		Stdout:  r.rep.Writer(),
		Stderr:  r.rep.Writer(),
	}, r.attempts, r.backoff)
	if err != nil {
		r.logger.Warn("container cross-check failed", "name", DisplayName(rec), "err", err)
		return
	}
	if res.Error != nil || res.ExitCode != rec.ExitCode {
		r.logger.Warn("container cross-check disagrees with native run",
			"name", DisplayName(rec), "native", rec.ExitCode, "container", res.ExitCode, "err", res.Error)
		return
	}
	r.logger.Debug("container cross-check agrees", "name", DisplayName(rec), "code", res.ExitCode)
}
