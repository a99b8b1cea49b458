// SPDX-License-Identifier: MPL-2.0

package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"freezecheck-cli/internal/container"
	"freezecheck-cli/internal/deps"
	"freezecheck-cli/internal/environ"
	"freezecheck-cli/internal/history"
	"freezecheck-cli/internal/issue"
	"freezecheck-cli/internal/protocol"
	"freezecheck-cli/internal/testutil"
	"freezecheck-cli/pkg/types"
)

const (
	linuxProbe = "linux-x86_64\n3.12\n3.12.4\n312\n7.2.0\n"
	macProbe   = "macosx-14.0-arm64\n3.13\n3.13.1\n313\n7.2.0\n"
)

func TestHelperProcess(*testing.T) { testutil.HelperProcessMain() }

type memRecorder struct {
	mu   sync.Mutex
	runs []history.Run
}

func (m *memRecorder) Record(_ context.Context, run history.Run) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs = append(m.runs, run)
	return run.ID, nil
}

type fixture struct {
	top       string
	sampleDir string
	fake      *testutil.FakeExec
	stdout    bytes.Buffer
	stderr    bytes.Buffer
	recorder  *memRecorder
	engines   int
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	top := t.TempDir()
	f := &fixture{
		top:       top,
		sampleDir: filepath.Join(top, "samples", "simple"),
		fake:      testutil.NewFakeExec(),
		recorder:  &memRecorder{},
	}
	testutil.MustMkdirAll(t, f.sampleDir)
	return f
}

func (f *fixture) pipeline() *Pipeline {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return New(
		WithExecCommand(f.fake.Command),
		WithOutput(&f.stdout, &f.stderr),
		WithRecorder(f.recorder),
		WithLookPath(func(string) (string, error) { return "", errors.New("not found") }),
		WithEngine(func() (container.Engine, error) {
			f.engines++
			return nil, errors.New("no container engine")
		}),
		WithNow(func() time.Time { return start }),
	)
}

func (f *fixture) options() Options {
	return Options{
		Sample:      "simple",
		TopDir:      f.top,
		Interpreter: "python3",
		EnvKind:     environ.KindSystem,
	}
}

func (f *fixture) exeDir(platformTag, version string) string {
	return filepath.Join(f.sampleDir, "build", "exe."+platformTag+"-"+version)
}

func TestRun_Success(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	artifacts := f.exeDir("linux-x86_64", "3.12")
	f.fake.
		On("import sys", testutil.FakeResponse{Stdout: linuxProbe}).
		On("build_test.py", testutil.FakeResponse{Stdout: "installed\n"}).
		On("build_exe", testutil.FakeResponse{Touch: []string{filepath.Join(artifacts, "test_simple")}}).
		On("run_sample.py", testutil.FakeResponse{Stdout: "41 0 log console test_simple\nstatus 0\n"})

	sum, err := f.pipeline().Run(context.Background(), f.options())
	require.NoError(t, err)
	assert.Equal(t, types.ExitCode(0), ExitCode(err))

	assert.Equal(t, types.ExitCode(0), sum.ExitCode)
	assert.Equal(t, "linux-x86_64", sum.Platform.PlatformTag)
	assert.Equal(t, "system", sum.Environment.Name)
	assert.Equal(t, deps.ModePackages, sum.DepsMode)
	assert.True(t, sum.DepsInstalled)
	require.Len(t, sum.Dirs, 1)
	assert.Equal(t, artifacts, sum.Dirs[0].Dir)
	require.Len(t, sum.Dirs[0].Records, 1)
	assert.Equal(t, "test_simple", sum.Dirs[0].Records[0].Name)
	assert.NotEmpty(t, sum.RunID)

	install := f.fake.CallsMatching("build_test.py")
	require.Len(t, install, 1)
	assert.Equal(t, []string{"python3", filepath.Join(f.top, "ci", "build_test.py"), "simple"}, install[0].Argv)

	builds := f.fake.CallsMatching("build_exe")
	require.Len(t, builds, 1)
	assert.Equal(t, f.sampleDir, builds[0].Dir())
	assert.Equal(t, []string{
		"python3", "-m", "cx_Freeze", "build_exe", "--silent", "--excludes=tkinter",
		"--build-exe=" + filepath.Join("build", "exe.linux-x86_64-3.12"),
	}, builds[0].Argv)

	runs := f.fake.CallsMatching("run_sample.py")
	require.Len(t, runs, 1)
	assert.Equal(t, artifacts, runs[0].Dir())
	assert.Equal(t, "python3", runs[0].Argv[0])

	// The linux console record asks for a cross-check; the engine failure is logged only.
	assert.Equal(t, 1, f.engines)
	assert.Zero(t, sum.CrossChecks)

	assert.Contains(t, f.stdout.String(), "installed")
	assert.Contains(t, f.stdout.String(), "build: ok")

	require.Len(t, f.recorder.runs, 1)
	assert.Equal(t, sum.RunID, f.recorder.runs[0].ID)
	assert.Len(t, f.recorder.runs[0].Dirs, 1)
}

func TestRun_NonZeroStatusIsRunFailure(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.fake.
		On("import sys", testutil.FakeResponse{Stdout: linuxProbe}).
		On("build_exe", testutil.FakeResponse{Touch: []string{filepath.Join(f.exeDir("linux-x86_64", "3.12"), "a")}}).
		On("run_sample.py", testutil.FakeResponse{
			Stdout:   "1 0 log windowed a\n2 1 log windowed b\nstatus 1\n",
			ExitCode: 1,
		})

	sum, err := f.pipeline().Run(context.Background(), f.options())
	require.Error(t, err)

	var rf *RunFailure
	require.ErrorAs(t, err, &rf)
	assert.ErrorIs(t, err, ErrRunFailure)
	assert.Equal(t, types.ExitCode(1), rf.ExitCode)
	assert.Equal(t, types.ExitCode(1), ExitCode(err))
	assert.Equal(t, types.ExitCode(1), sum.ExitCode)
	assert.Equal(t, types.ExitCode(1), sum.LastAttempted)
	require.Len(t, sum.Dirs, 1)
	assert.Len(t, sum.Dirs[0].Records, 2)
	assert.Zero(t, f.engines, "windowed records are not cross-checked")
}

func TestRun_StopsAtFirstMissingCandidate(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	exe := f.exeDir("macosx-14.0-arm64", "3.13")
	bundle := filepath.Join(f.sampleDir, "build", "Simple.app")
	f.fake.
		On("import sys", testutil.FakeResponse{Stdout: macProbe}).
		On("build_exe", testutil.FakeResponse{Touch: []string{
			filepath.Join(exe, "simple"),
			filepath.Join(bundle, "Info.plist"),
		}}).
		On("run_sample.py", testutil.FakeResponse{Stdout: "7 0 log console simple\nstatus 0\n"})

	opts := f.options()
	opts.Format = "mac"
	sum, err := f.pipeline().Run(context.Background(), opts)
	require.NoError(t, err)

	require.Len(t, f.fake.CallsMatching("bdist_mac"), 1)
	runs := f.fake.CallsMatching("run_sample.py")
	require.Len(t, runs, 1)
	assert.Equal(t, exe, runs[0].Dir())

	require.Len(t, sum.Dirs, 3)
	assert.False(t, sum.Dirs[0].Skipped)
	assert.Equal(t, filepath.Join(bundle, "Contents", "MacOS"), sum.Dirs[1].Dir)
	assert.True(t, sum.Dirs[1].Skipped)
	assert.Equal(t, bundle, sum.Dirs[2].Dir)
	assert.True(t, sum.Dirs[2].Skipped, "candidates after a gap are not attempted")
}

func TestRun_MissingTerminalIsProtocolError(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.fake.
		On("import sys", testutil.FakeResponse{Stdout: linuxProbe}).
		On("build_exe", testutil.FakeResponse{Touch: []string{filepath.Join(f.exeDir("linux-x86_64", "3.12"), "a")}}).
		On("run_sample.py", testutil.FakeResponse{Stdout: "1 0 log windowed a\n"})

	sum, err := f.pipeline().Run(context.Background(), f.options())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrProtocol)
	assert.ErrorIs(t, err, protocol.ErrMissingTerminal)
	assert.Equal(t, types.ExitCode(1), ExitCode(err))

	id, ok := IssueOf(err)
	require.True(t, ok)
	assert.Equal(t, issue.ProtocolViolationId, id)

	require.Len(t, sum.Dirs, 1)
	assert.Equal(t, types.ExitCode(1), sum.Dirs[0].ExitCode)
	assert.NotEmpty(t, sum.Dirs[0].Error)
	assert.Equal(t, types.ExitCode(1), sum.ExitCode)
}

func TestRun_MalformedLineIsProtocolError(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.fake.
		On("import sys", testutil.FakeResponse{Stdout: linuxProbe}).
		On("build_exe", testutil.FakeResponse{Touch: []string{filepath.Join(f.exeDir("linux-x86_64", "3.12"), "a")}}).
		On("run_sample.py", testutil.FakeResponse{Stdout: "not a record\nstatus 0\n"})

	_, err := f.pipeline().Run(context.Background(), f.options())
	require.Error(t, err)
	assert.ErrorIs(t, err, protocol.ErrMalformedRecord)
	assert.Equal(t, types.ExitCode(1), ExitCode(err))
}

func TestRun_SkipsUnsupportedSample(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	testutil.MustWriteFile(t, filepath.Join(f.top, "ci", "build-test.json"), `{"simple": {"platform": "!linux"}}`)
	f.fake.On("import sys", testutil.FakeResponse{Stdout: linuxProbe})

	sum, err := f.pipeline().Run(context.Background(), f.options())
	require.NoError(t, err)
	assert.True(t, sum.Skipped)
	assert.Contains(t, sum.SkipReason, "linux")
	assert.Equal(t, types.ExitCode(0), sum.ExitCode)
	assert.Empty(t, f.fake.CallsMatching("build_exe"))

	require.Len(t, f.recorder.runs, 1)
	assert.True(t, f.recorder.runs[0].Skipped)
}

func TestRun_SkipsUnsupportedPython(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	testutil.MustWriteFile(t, filepath.Join(f.top, "ci", "build-test.json"), `{"simple": {"python_version": ">=3.13"}}`)
	f.fake.On("import sys", testutil.FakeResponse{Stdout: linuxProbe})

	sum, err := f.pipeline().Run(context.Background(), f.options())
	require.NoError(t, err)
	assert.True(t, sum.Skipped)
	assert.Contains(t, sum.SkipReason, ">=3.13")
}

func TestRun_FatalStages(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		setup    func(f *fixture)
		opts     func(o *Options)
		sentinel error
		issue    issue.Id
	}{
		{
			name:     "missing sample",
			setup:    func(*fixture) {},
			opts:     func(o *Options) { o.Sample = "absent" },
			sentinel: ErrUsage,
			issue:    issue.SampleNotFoundId,
		},
		{
			name:     "interpreter query",
			setup:    func(f *fixture) { f.fake.On("import sys", testutil.FakeResponse{ExitCode: 1, Stderr: "boom"}) },
			sentinel: ErrProvisioning,
			issue:    issue.InterpreterQueryFailedId,
		},
		{
			name: "dependency installation",
			setup: func(f *fixture) {
				f.fake.
					On("import sys", testutil.FakeResponse{Stdout: linuxProbe}).
					On("build_test.py", testutil.FakeResponse{ExitCode: 3})
			},
			sentinel: ErrProvisioning,
			issue:    issue.DependencyInstallFailedId,
		},
		{
			name: "named environment missing",
			setup: func(f *fixture) {
				f.fake.
					On("import sys", testutil.FakeResponse{Stdout: linuxProbe}).
					On("env list", testutil.FakeResponse{Stdout: `{"envs": []}`})
			},
			opts:     func(o *Options) { o.EnvKind = environ.KindNamed },
			sentinel: environ.ErrEnvironmentNotFound,
			issue:    issue.EnvironmentNotFoundId,
		},
		{
			name: "freezer failure",
			setup: func(f *fixture) {
				f.fake.
					On("import sys", testutil.FakeResponse{Stdout: linuxProbe}).
					On("build_exe", testutil.FakeResponse{ExitCode: 2})
			},
			sentinel: ErrBuild,
			issue:    issue.BuildFailedId,
		},
		{
			name:     "no artifacts",
			setup:    func(f *fixture) { f.fake.On("import sys", testutil.FakeResponse{Stdout: linuxProbe}) },
			sentinel: ErrNoArtifacts,
			issue:    issue.NoArtifactsId,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			f := newFixture(t)
			tt.setup(f)
			opts := f.options()
			if tt.opts != nil {
				tt.opts(&opts)
			}

			sum, err := f.pipeline().Run(context.Background(), opts)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.sentinel)
			assert.Equal(t, types.ExitCode(1), ExitCode(err))
			assert.Equal(t, types.ExitCode(1), sum.ExitCode)
			assert.NotEmpty(t, sum.Error)

			id, ok := IssueOf(err)
			require.True(t, ok)
			assert.Equal(t, tt.issue, id)
			assert.Empty(t, f.fake.CallsMatching("run_sample.py"))
		})
	}
}

func TestRun_BuildErrorKeepsFreezerStatus(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.fake.
		On("import sys", testutil.FakeResponse{Stdout: linuxProbe}).
		On("build_exe", testutil.FakeResponse{ExitCode: 2})

	sum, err := f.pipeline().Run(context.Background(), f.options())
	var be *BuildError
	require.ErrorAs(t, err, &be)
	assert.Equal(t, types.ExitCode(2), be.ExitCode)
	assert.Equal(t, types.ExitCode(2), sum.BuildExitCode)
	assert.Contains(t, f.stdout.String(), "build: exit status 2")
}

func TestRun_ForwardsDebugAndDisplay(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.fake.
		On("import sys", testutil.FakeResponse{Stdout: linuxProbe}).
		On("build_exe", testutil.FakeResponse{Touch: []string{filepath.Join(f.exeDir("linux-x86_64", "3.12"), "a")}}).
		On("run_sample.py", testutil.FakeResponse{Stdout: "status 0\n"})

	opts := f.options()
	opts.Debug = true
	opts.DebugPlugins = true
	opts.Verbose = true
	opts.DepsMode = deps.ModeEditable
	opts.Env = map[string]string{"DISPLAY": ":99"}
	opts.ExtraArgs = []string{"--include-files=data"}

	_, err := f.pipeline().Run(context.Background(), opts)
	require.NoError(t, err)

	install := f.fake.CallsMatching("build_test.py")
	require.Len(t, install, 1)
	assert.Equal(t, []string{"simple", "--editable", "--debug", "--verbose"}, install[0].Argv[2:])

	for _, pattern := range []string{"build_test.py", "build_exe", "run_sample.py"} {
		calls := f.fake.CallsMatching(pattern)
		require.Len(t, calls, 1, pattern)
		env := calls[0].Env()
		assert.True(t, slices.Contains(env, "DISPLAY=:99"), pattern)
		assert.True(t, slices.Contains(env, EnvDebug+"=1"), pattern)
		assert.True(t, slices.Contains(env, EnvDebugPlugins+"=1"), pattern)
	}

	build := f.fake.CallsMatching("build_exe")[0]
	assert.Equal(t, "--include-files=data", build.Argv[len(build.Argv)-1])
}

func TestRun_NoDepsSkipsInstaller(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.fake.
		On("import sys", testutil.FakeResponse{Stdout: linuxProbe}).
		On("build_exe", testutil.FakeResponse{Touch: []string{filepath.Join(f.exeDir("linux-x86_64", "3.12"), "a")}}).
		On("run_sample.py", testutil.FakeResponse{Stdout: "status 0\n"})

	opts := f.options()
	opts.NoDeps = true
	sum, err := f.pipeline().Run(context.Background(), opts)
	require.NoError(t, err)
	assert.Empty(t, f.fake.CallsMatching("build_test.py"))
	assert.False(t, sum.DepsInstalled)
	assert.Equal(t, deps.ModeNone, sum.DepsMode)
}

func TestRun_WritesSummaryFile(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.fake.
		On("import sys", testutil.FakeResponse{Stdout: linuxProbe}).
		On("build_exe", testutil.FakeResponse{Touch: []string{filepath.Join(f.exeDir("linux-x86_64", "3.12"), "a")}}).
		On("run_sample.py", testutil.FakeResponse{Stdout: "1 3 log windowed a\nstatus 3\n"})

	opts := f.options()
	opts.SummaryPath = filepath.Join(f.top, "out", "summary.json")
	testutil.MustMkdirAll(t, filepath.Dir(opts.SummaryPath))

	_, err := f.pipeline().Run(context.Background(), opts)
	require.Error(t, err)
	assert.Equal(t, types.ExitCode(3), ExitCode(err))

	data, err := os.ReadFile(opts.SummaryPath)
	require.NoError(t, err)
	var got struct {
		Sample   string `json:"sample"`
		ExitCode int    `json:"exit_code"`
		Dirs     []struct {
			ExitCode int `json:"exit_code"`
		} `json:"dirs"`
	}
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, "simple", got.Sample)
	assert.Equal(t, 3, got.ExitCode)
	require.Len(t, got.Dirs, 1)
	assert.Equal(t, 3, got.Dirs[0].ExitCode)
}

func TestExitCode(t *testing.T) {
	t.Parallel()

	assert.Equal(t, types.ExitCode(0), ExitCode(nil))
	assert.Equal(t, types.ExitCode(1), ExitCode(errors.New("x")))
	assert.Equal(t, types.ExitCode(1), ExitCode(&BuildError{ExitCode: 4}))
	assert.Equal(t, types.ExitCode(5), ExitCode(&RunFailure{ExitCode: 5}))
	assert.Equal(t, types.ExitCode(5), ExitCode(errors.Join(&RunFailure{ExitCode: 5}, errors.New("summary"))))
	assert.Equal(t, types.ExitCode(1), ExitCode(&RunFailure{ExitCode: 256}))
	assert.Equal(t, types.ExitCode(1), ExitCode(&RunFailure{ExitCode: -1}))
}
