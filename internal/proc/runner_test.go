// SPDX-License-Identifier: MPL-2.0

package proc

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"testing"
	"time"
)

// helperCommand returns a CommandFunc that re-executes the test binary as
// TestHelperProcess. The helper prints GO_HELPER_STDOUT, GO_HELPER_STDERR and
// exits with GO_HELPER_EXIT_CODE.
func helperCommand(stdout, stderr string, exitCode int, extraEnv ...string) CommandFunc {
	return func(ctx context.Context, name string, args ...string) *exec.Cmd {
		cs := []string{"-test.run=TestHelperProcess", "--", name}
		cs = append(cs, args...)
		//nolint:gosec // TestHelperProcess is a test-only pattern
		cmd := exec.CommandContext(ctx, os.Args[0], cs...)
		cmd.Env = append([]string{
			"GO_WANT_HELPER_PROCESS=1",
			"GO_HELPER_STDOUT=" + stdout,
			"GO_HELPER_STDERR=" + stderr,
			"GO_HELPER_EXIT_CODE=" + strconv.Itoa(exitCode),
		}, extraEnv...)
		return cmd
	}
}

// TestHelperProcess is not a real test. It is used by helperCommand.
func TestHelperProcess(*testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}
	if os.Getenv("GO_HELPER_SLEEP") != "" {
		time.Sleep(time.Minute)
	}
	if os.Getenv("GO_HELPER_ECHO_ENV") != "" {
		fmt.Fprint(os.Stdout, os.Getenv(os.Getenv("GO_HELPER_ECHO_ENV")))
	}
	fmt.Fprint(os.Stdout, os.Getenv("GO_HELPER_STDOUT"))
	fmt.Fprint(os.Stderr, os.Getenv("GO_HELPER_STDERR"))
	code, _ := strconv.Atoi(os.Getenv("GO_HELPER_EXIT_CODE"))
	os.Exit(code)
}

func TestRunner_RunReturnsExitCode(t *testing.T) {
	t.Parallel()

	r := NewRunner(WithExecCommand(helperCommand("out", "err", 3)))
	var stdout, stderr bytes.Buffer
	code, err := r.Run(context.Background(), Spec{
		Argv:   []string{"python", "-c", "pass"},
		Stdout: &stdout,
		Stderr: &stderr,
	})
	if err != nil {
		t.Fatalf("Run() unexpected error: %v", err)
	}
	if code != 3 {
		t.Errorf("Run() code = %d, want 3", code)
	}
	if stdout.String() != "out" || stderr.String() != "err" {
		t.Errorf("Run() stdout=%q stderr=%q", stdout.String(), stderr.String())
	}
}

func TestRunner_RunEmptyCommand(t *testing.T) {
	t.Parallel()

	_, err := NewRunner().Run(context.Background(), Spec{})
	if !errors.Is(err, ErrEmptyCommand) {
		t.Errorf("Run() error = %v, want ErrEmptyCommand", err)
	}
}

func TestRunner_RunMissingBinary(t *testing.T) {
	t.Parallel()

	_, err := NewRunner().Run(context.Background(), Spec{Argv: []string{"/nonexistent/freezecheck-binary"}})
	if err == nil {
		t.Fatal("Run() with a missing binary should fail")
	}
}

func TestRunner_EnvIsLayered(t *testing.T) {
	t.Parallel()

	r := NewRunner(WithExecCommand(helperCommand("", "", 0, "GO_HELPER_ECHO_ENV=DISPLAY")))
	out, err := r.Output(context.Background(), Spec{
		Argv: []string{"freezer"},
		Env:  map[string]string{"DISPLAY": ":99"},
	})
	if err != nil {
		t.Fatalf("Output() unexpected error: %v", err)
	}
	if out != ":99" {
		t.Errorf("Output() = %q, want %q", out, ":99")
	}
}

func TestRunner_OutputNonZeroIncludesStderr(t *testing.T) {
	t.Parallel()

	r := NewRunner(WithExecCommand(helperCommand("", "No module named venv", 1)))
	_, err := r.Output(context.Background(), Spec{Argv: []string{"python", "-m", "venv"}})
	if err == nil {
		t.Fatal("Output() should fail on non-zero exit")
	}
	if !strings.Contains(err.Error(), "No module named venv") {
		t.Errorf("Output() error = %v, want stderr in message", err)
	}
}

func TestRunner_TimeoutKillsChild(t *testing.T) {
	t.Parallel()

	r := NewRunner(
		WithExecCommand(helperCommand("", "", 0, "GO_HELPER_SLEEP=1")),
		WithWaitDelay(100*time.Millisecond),
	)
	start := time.Now()
	_, err := r.Run(context.Background(), Spec{Argv: []string{"hang"}, Timeout: 200 * time.Millisecond})
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("Run() error = %v, want ErrTimeout", err)
	}
	if time.Since(start) > 30*time.Second {
		t.Error("Run() did not terminate the child promptly")
	}
}

func TestRunner_StreamConsumesLines(t *testing.T) {
	t.Parallel()

	r := NewRunner(WithExecCommand(helperCommand("a\nb\nstop\nignored\n", "warn\n", 2)))
	var lines []string
	var stderr bytes.Buffer
	code, err := r.Stream(context.Background(), Spec{Argv: []string{"driver"}, Stderr: &stderr}, func(rd io.Reader) error {
		sc := bufio.NewScanner(rd)
		for sc.Scan() {
			if sc.Text() == "stop" {
				return nil
			}
			lines = append(lines, sc.Text())
		}
		return sc.Err()
	})
	if err != nil {
		t.Fatalf("Stream() unexpected error: %v", err)
	}
	if code != 2 {
		t.Errorf("Stream() code = %d, want 2", code)
	}
	if strings.Join(lines, ",") != "a,b" {
		t.Errorf("Stream() consumed %v, want [a b]", lines)
	}
	if stderr.String() != "warn\n" {
		t.Errorf("Stream() stderr = %q", stderr.String())
	}
}

func TestRunner_StreamPropagatesConsumeError(t *testing.T) {
	t.Parallel()

	sentinel := errors.New("bad line")
	r := NewRunner(WithExecCommand(helperCommand("x\n", "", 0)))
	_, err := r.Stream(context.Background(), Spec{Argv: []string{"driver"}}, func(io.Reader) error {
		return sentinel
	})
	if !errors.Is(err, sentinel) {
		t.Errorf("Stream() error = %v, want %v", err, sentinel)
	}
}

func TestEnvToSlice_Sorted(t *testing.T) {
	t.Parallel()

	got := EnvToSlice(map[string]string{"B": "2", "A": "1"})
	if strings.Join(got, " ") != "A=1 B=2" {
		t.Errorf("EnvToSlice() = %v", got)
	}
}
