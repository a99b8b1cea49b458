// SPDX-License-Identifier: MPL-2.0

package environ

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/charmbracelet/log"

	"freezecheck-cli/internal/proc"
	"freezecheck-cli/internal/testutil"
	"freezecheck-cli/pkg/types"
)

func TestHelperProcess(*testing.T) { testutil.HelperProcessMain() }

func noUV(string) (string, error) { return "", errors.New("not found") }

func newProvisioner(fake *testutil.FakeExec, opts ...Option) *Provisioner {
	base := []Option{
		WithRunner(proc.NewRunner(proc.WithExecCommand(fake.Command))),
		WithLookPath(noUV),
	}
	return NewProvisioner(append(base, opts...)...)
}

func linuxRequest(kind Kind) Request {
	return Request{
		Kind:              kind,
		Sample:            "simple",
		SystemInterpreter: "/usr/bin/python3",
		PlatformTag:       "linux-x86_64",
		VersionTag:        "py312",
	}
}

func TestEnvironmentName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		sample, platformTag, versionTag, want string
	}{
		{"simple", "linux-x86_64", "py312", "simple-linux-x86_64-py312"},
		{"tkinter", "macosx-14.0-arm64", "py313", "tkinter-macosx-14.0-arm64-py313"},
		{"sample", "win amd64", "py312", "sample-win_amd64-py312"},
	}
	for _, tt := range tests {
		if got := EnvironmentName(types.SampleName(tt.sample), tt.platformTag, tt.versionTag); got != tt.want {
			t.Errorf("EnvironmentName(%q, %q, %q) = %q, want %q", tt.sample, tt.platformTag, tt.versionTag, got, tt.want)
		}
	}
}

func TestResolve_System(t *testing.T) {
	t.Parallel()

	fake := testutil.NewFakeExec()
	env, err := newProvisioner(fake).Resolve(context.Background(), linuxRequest(KindSystem))
	if err != nil {
		t.Fatal(err)
	}
	if env.Kind != KindSystem || env.Interpreter != "/usr/bin/python3" || env.Fresh {
		t.Errorf("Resolve(system) = %+v", env)
	}
	if len(fake.Calls()) != 0 {
		t.Errorf("system environment must not run commands, got %d", len(fake.Calls()))
	}
}

func TestResolve_VirtualIsIdempotent(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	name := "simple-linux-x86_64-py312"
	interp := filepath.Join(root, name, "bin", "python")

	fake := testutil.NewFakeExec().On("-m venv", testutil.FakeResponse{Touch: []string{interp}})
	p := newProvisioner(fake, WithRoot(root))

	first, err := p.Resolve(context.Background(), linuxRequest(KindVirtual))
	if err != nil {
		t.Fatalf("first Resolve() error: %v", err)
	}
	if !first.Fresh {
		t.Error("first Resolve() should report a fresh environment")
	}
	if first.Name != name || first.Interpreter != interp {
		t.Errorf("first Resolve() = %+v", first)
	}

	second, err := p.Resolve(context.Background(), linuxRequest(KindVirtual))
	if err != nil {
		t.Fatalf("second Resolve() error: %v", err)
	}
	if second.Fresh {
		t.Error("second Resolve() must reuse the environment")
	}
	if second.Name != first.Name || second.Interpreter != first.Interpreter {
		t.Errorf("second Resolve() = %+v, want same identity as %+v", second, first)
	}

	if n := len(fake.CallsMatching("-m venv")); n != 1 {
		t.Errorf("environment created %d times, want 1", n)
	}
}

func TestResolve_VirtualPrefersUV(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	interp := filepath.Join(root, "simple-linux-x86_64-py312", "bin", "python")
	fake := testutil.NewFakeExec().On("venv --python", testutil.FakeResponse{Touch: []string{interp}})
	p := newProvisioner(fake, WithRoot(root), WithLookPath(func(string) (string, error) { return "/opt/uv", nil }))

	if _, err := p.Resolve(context.Background(), linuxRequest(KindVirtual)); err != nil {
		t.Fatal(err)
	}
	calls := fake.Calls()
	if len(calls) != 1 || calls[0].Argv[0] != "/opt/uv" {
		t.Fatalf("calls = %v", calls)
	}
	if !strings.Contains(calls[0].Line(), "--python /usr/bin/python3") {
		t.Errorf("uv invocation %q does not seed the base interpreter", calls[0].Line())
	}
}

func TestResolve_VirtualCreationFails(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		resp testutil.FakeResponse
	}{
		{"non-zero exit", testutil.FakeResponse{Stderr: "No module named venv", ExitCode: 1}},
		{"no interpreter produced", testutil.FakeResponse{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			fake := testutil.NewFakeExec().On("-m venv", tt.resp)
			_, err := newProvisioner(fake, WithRoot(t.TempDir())).Resolve(context.Background(), linuxRequest(KindVirtual))
			if !errors.Is(err, ErrCreateFailed) {
				t.Errorf("Resolve() error = %v, want ErrCreateFailed", err)
			}
		})
	}
}

func TestResolve_MinGWFallsBackToSystem(t *testing.T) {
	t.Parallel()

	var logs bytes.Buffer
	fake := testutil.NewFakeExec()
	p := newProvisioner(fake, WithLogger(log.New(&logs)))

	req := linuxRequest(KindVirtual)
	req.PlatformTag = "mingw_x86_64_ucrt"
	env, err := p.Resolve(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	if env.Kind != KindSystem {
		t.Errorf("Resolve() kind = %s, want system", env.Kind)
	}
	if !strings.Contains(logs.String(), "not supported") {
		t.Errorf("expected a warning, got %q", logs.String())
	}
	if len(fake.Calls()) != 0 {
		t.Errorf("no environment should be created, got %v", fake.Calls())
	}
}

func TestResolve_ActiveEnvironmentWins(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		snapshot map[string]string
		wantKind Kind
		wantName string
		wantExe  string
	}{
		{
			name:     "conda",
			snapshot: map[string]string{"CONDA_PREFIX": "/opt/conda/envs/ci", "CONDA_DEFAULT_ENV": "ci"},
			wantKind: KindNamed,
			wantName: "ci",
			wantExe:  filepath.Join("/opt/conda/envs/ci", "bin", "python"),
		},
		{
			name:     "venv",
			snapshot: map[string]string{"VIRTUAL_ENV": "/work/.venv"},
			wantKind: KindVirtual,
			wantName: ".venv",
			wantExe:  filepath.Join("/work/.venv", "bin", "python"),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			fake := testutil.NewFakeExec()
			env, err := newProvisioner(fake, WithEnvSnapshot(tt.snapshot)).Resolve(context.Background(), linuxRequest(KindVirtual))
			if err != nil {
				t.Fatal(err)
			}
			if env.Kind != tt.wantKind || env.Name != tt.wantName || env.Interpreter != tt.wantExe {
				t.Errorf("Resolve() = %+v", env)
			}
			if env.Fresh {
				t.Error("an active environment is never fresh")
			}
			if len(fake.Calls()) != 0 {
				t.Errorf("no commands expected, got %v", fake.Calls())
			}
		})
	}
}

func TestResolve_Named(t *testing.T) {
	t.Parallel()

	fake := testutil.NewFakeExec().On("env list --json", testutil.FakeResponse{
		Stdout: `{"envs": ["/opt/conda", "/opt/conda/envs/freeze-ci"]}`,
	})
	p := newProvisioner(fake, WithCondaExe("micromamba"))

	req := linuxRequest(KindNamed)
	req.Name = "freeze-ci"
	env, err := p.Resolve(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	if env.Root != "/opt/conda/envs/freeze-ci" || env.Kind != KindNamed {
		t.Errorf("Resolve(named) = %+v", env)
	}
	if fake.Calls()[0].Argv[0] != "micromamba" {
		t.Errorf("conda executable not honored: %v", fake.Calls()[0].Argv)
	}

	req.Name = "missing"
	if _, err := p.Resolve(context.Background(), req); !errors.Is(err, ErrEnvironmentNotFound) {
		t.Errorf("Resolve(missing) error = %v, want ErrEnvironmentNotFound", err)
	}
}

func TestResolve_InvalidRequest(t *testing.T) {
	t.Parallel()

	p := newProvisioner(testutil.NewFakeExec())

	req := linuxRequest("docker")
	if _, err := p.Resolve(context.Background(), req); !errors.Is(err, ErrInvalidKind) {
		t.Errorf("Resolve() error = %v, want ErrInvalidKind", err)
	}

	req = linuxRequest(KindSystem)
	req.Sample = "../escape"
	if _, err := p.Resolve(context.Background(), req); err == nil {
		t.Error("Resolve() accepted a sample name with a path separator")
	}
}
