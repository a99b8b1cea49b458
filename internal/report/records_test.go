// SPDX-License-Identifier: MPL-2.0

package report

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"freezecheck-cli/internal/container"
	iplatform "freezecheck-cli/internal/platform"
	"freezecheck-cli/internal/protocol"
	"freezecheck-cli/pkg/platform"
	"freezecheck-cli/pkg/types"
)

// recordingEngine records container runs and answers with a fixed exit code.
type recordingEngine struct {
	code int
	runs []container.RunOptions
}

func (e *recordingEngine) Name() string { return "fake" }
func (e *recordingEngine) Available() bool { return true }
func (e *recordingEngine) Version(context.Context) (string, error) { return "0", nil }
func (e *recordingEngine) Run(_ context.Context, opts container.RunOptions) (*container.RunResult, error) {
	e.runs = append(e.runs, opts)
	fmt.Fprintln(opts.Stdout, "container says hi")
	return &container.RunResult{ExitCode: types.ExitCode(e.code)}, nil
}

func consoleRecord(name string) protocol.ProcessRecord {
	return protocol.ProcessRecord{PID: 10, ExitCode: 0, LogBase: "test_simple", AppType: protocol.AppConsole, Name: name}
}

func TestRecordReporter_EchoesLogFiles(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "test_simple.log"), []byte("hello from log"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "test_simple.err"), []byte("warning on stderr\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "test_simple.out"), []byte("windows-only output\n"), 0o644))

	var out bytes.Buffer
	rr := NewRecordReporter(New(&out), iplatform.AdapterFor(platform.FamilyMacOS))
	rr.Report(context.Background(), dir, consoleRecord("test_simple"))

	s := out.String()
	assert.Contains(t, s, "test_simple (pid 10, console) exited with status 0")
	assert.Contains(t, s, "hello from log\n")
	assert.Contains(t, s, "warning on stderr\n")
	assert.NotContains(t, s, "windows-only output", ".out files are only collected on Windows families")
	assert.Equal(t, 0, rr.CrossChecks())
}

func TestRecordReporter_CollectsOutFilesOnWindows(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "test_simple.out"), []byte("gui output\n"), 0o644))

	var out bytes.Buffer
	rec := consoleRecord("test_simple")
	rec.AppType = protocol.AppWindowed
	NewRecordReporter(New(&out), iplatform.AdapterFor(platform.FamilyWindows)).Report(context.Background(), dir, rec)

	assert.Contains(t, out.String(), "gui output")
}

func TestRecordReporter_ContainerCrossCheckOnLinuxConsole(t *testing.T) {
	t.Parallel()

	engine := &recordingEngine{}
	var out bytes.Buffer
	dir := t.TempDir()
	rr := NewRecordReporter(New(&out), iplatform.AdapterFor(platform.FamilyLinux),
		WithEngine(func() (container.Engine, error) { return engine, nil }),
		WithImage("ubuntu:24.04"),
	)

	rr.Report(context.Background(), dir, consoleRecord("test_simple"))

	windowed := consoleRecord("test_gui")
	windowed.AppType = protocol.AppWindowed
	rr.Report(context.Background(), dir, windowed)

	require.Len(t, engine.runs, 1, "only console apps are cross-checked")
	run := engine.runs[0]
	assert.Equal(t, "ubuntu:24.04", run.Image)
	assert.Equal(t, []string{"/frozen/test_simple"}, run.Command)
	assert.Equal(t, "/frozen", run.WorkDir)
	assert.True(t, run.Remove)
	require.Len(t, run.Volumes, 1)
	assert.True(t, run.Volumes[0].ReadOnly)
	assert.Equal(t, 1, rr.CrossChecks())
	assert.Contains(t, out.String(), "container says hi")
}

func TestRecordReporter_CrossCheckFailuresAreLoggedOnly(t *testing.T) {
	t.Parallel()

	var out, logs bytes.Buffer
	calls := 0
	rr := NewRecordReporter(New(&out), iplatform.AdapterFor(platform.FamilyLinux),
		WithEngine(func() (container.Engine, error) {
			calls++
			return nil, errors.New("no engine")
		}),
		WithLogger(log.New(&logs)),
	)

	rec := consoleRecord("test_simple")
	rr.Report(context.Background(), t.TempDir(), rec)
	rr.Report(context.Background(), t.TempDir(), rec)

	assert.Equal(t, 1, calls, "engine lookup happens once")
	assert.Contains(t, logs.String(), "container cross-check skipped")
	assert.Equal(t, 0, rr.CrossChecks())
}

func TestRecordReporter_CrossCheckDisagreementWarns(t *testing.T) {
	t.Parallel()

	var out, logs bytes.Buffer
	engine := &recordingEngine{code: 3}
	rr := NewRecordReporter(New(&out), iplatform.AdapterFor(platform.FamilyLinux),
		WithEngine(func() (container.Engine, error) { return engine, nil }),
		WithLogger(log.New(&logs)),
	)
	rr.Report(context.Background(), t.TempDir(), consoleRecord("test_simple"))

	assert.Contains(t, logs.String(), "disagrees")
}

func TestDisplayName_NormalizesToNFC(t *testing.T) {
	t.Parallel()

	decomposed := "Café"
	assert.Equal(t, "Café", DisplayName(protocol.ProcessRecord{Name: decomposed}))
}
