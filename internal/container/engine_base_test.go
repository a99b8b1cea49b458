// SPDX-License-Identifier: MPL-2.0

package container

import (
	"bytes"
	"context"
	"errors"
	"slices"
	"testing"

	"freezecheck-cli/internal/testutil"
)

func TestHelperProcess(*testing.T) { testutil.HelperProcessMain() }

func TestBaseCLIEngine_RunArgs(t *testing.T) {
	t.Parallel()

	e := NewBaseCLIEngine("/usr/bin/podman", WithVolumeFormatter(func(v string) string { return v + ",z" }))
	got := e.RunArgs(RunOptions{
		Image:   DefaultImage,
		Command: []string{"/frozen/test_simple"},
		WorkDir: "/frozen",
		Env:     map[string]string{"LANG": "C.UTF-8", "DISPLAY": ":99"},
		Volumes: []VolumeMount{{HostPath: "/work/build/exe", ContainerPath: "/frozen", ReadOnly: true}},
		Remove:  true,
	})

	want := []string{
		"run", "--rm", "-w", "/frozen",
		"-e", "DISPLAY=:99", "-e", "LANG=C.UTF-8",
		"-v", "/work/build/exe:/frozen:ro,z",
		DefaultImage, "/frozen/test_simple",
	}
	if !slices.Equal(got, want) {
		t.Errorf("RunArgs() =\n%v\nwant\n%v", got, want)
	}
}

func TestVolumeMount(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mount   VolumeMount
		want    string
		wantErr bool
	}{
		{"read only", VolumeMount{HostPath: "/a", ContainerPath: "/b", ReadOnly: true}, "/a:/b:ro", false},
		{"read write", VolumeMount{HostPath: "/a", ContainerPath: "/b"}, "/a:/b", false},
		{"empty host", VolumeMount{ContainerPath: "/b"}, ":/b", true},
		{"relative target", VolumeMount{HostPath: "/a", ContainerPath: "b"}, "/a:b", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := tt.mount.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
			err := tt.mount.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidVolumeMount) {
				t.Errorf("Validate() error does not wrap ErrInvalidVolumeMount: %v", err)
			}
		})
	}
}

func TestBaseCLIEngine_RunReportsExitCode(t *testing.T) {
	t.Parallel()

	fake := testutil.NewFakeExec().On(" run ", testutil.FakeResponse{Stdout: "hello\n", ExitCode: 3})
	e := NewBaseCLIEngine("docker", WithExecCommand(fake.Command))

	var stdout bytes.Buffer
	res, err := e.Run(context.Background(), RunOptions{Image: DefaultImage, Command: []string{"true"}, Stdout: &stdout})
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if res.ExitCode != 3 || res.Error != nil {
		t.Errorf("Run() = %+v, want exit code 3", res)
	}
	if stdout.String() != "hello\n" {
		t.Errorf("stdout = %q", stdout.String())
	}
	if calls := fake.Calls(); len(calls) != 1 || calls[0].Argv[0] != "docker" {
		t.Errorf("calls = %v", calls)
	}
}

func TestBaseCLIEngine_RunRejectsInvalidVolume(t *testing.T) {
	t.Parallel()

	fake := testutil.NewFakeExec()
	e := NewBaseCLIEngine("docker", WithExecCommand(fake.Command))
	_, err := e.Run(context.Background(), RunOptions{Image: DefaultImage, Volumes: []VolumeMount{{HostPath: "/a"}}})
	if !errors.Is(err, ErrInvalidVolumeMount) {
		t.Errorf("Run() error = %v, want ErrInvalidVolumeMount", err)
	}
	if len(fake.Calls()) != 0 {
		t.Error("engine must not be invoked with an invalid mount")
	}
}

func TestEngines_VersionAndAvailability(t *testing.T) {
	t.Parallel()

	fake := testutil.NewFakeExec().On("version", testutil.FakeResponse{Stdout: "5.2.1\n"})
	podman := &PodmanEngine{BaseCLIEngine: NewBaseCLIEngine("podman", WithExecCommand(fake.Command))}
	docker := &DockerEngine{BaseCLIEngine: NewBaseCLIEngine("docker", WithExecCommand(fake.Command))}

	for _, e := range []Engine{podman, docker} {
		if !e.Available() {
			t.Errorf("%s: Available() = false", e.Name())
		}
		v, err := e.Version(context.Background())
		if err != nil || v != "5.2.1" {
			t.Errorf("%s: Version() = %q, %v", e.Name(), v, err)
		}
	}

	missing := &DockerEngine{BaseCLIEngine: NewBaseCLIEngine("", WithExecCommand(fake.Command))}
	if missing.Available() {
		t.Error("an engine without a binary must not be available")
	}
}

func TestEngineType_Validate(t *testing.T) {
	t.Parallel()

	for _, et := range []EngineType{EngineTypePodman, EngineTypeDocker} {
		if err := et.Validate(); err != nil {
			t.Errorf("%s.Validate() error: %v", et, err)
		}
	}
	if err := EngineType("lxc").Validate(); !errors.Is(err, ErrInvalidEngineType) {
		t.Errorf("Validate(lxc) error = %v", err)
	}
	if _, err := NewEngine("lxc"); !errors.Is(err, ErrInvalidEngineType) {
		t.Errorf("NewEngine(lxc) error = %v", err)
	}
}

func TestEngineNotAvailableError(t *testing.T) {
	t.Parallel()

	err := error(&EngineNotAvailableError{Engine: EngineTypePodman, Reason: "missing"})
	if !errors.Is(err, ErrEngineNotAvailable) {
		t.Error("EngineNotAvailableError must wrap ErrEngineNotAvailable")
	}
}
