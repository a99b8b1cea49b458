// SPDX-License-Identifier: MPL-2.0

package testutil

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
)

const (
	envWantHelper = "GO_WANT_HELPER_PROCESS"
	envStdout     = "GO_HELPER_STDOUT"
	envStderr     = "GO_HELPER_STDERR"
	envExitCode   = "GO_HELPER_EXIT_CODE"
	envTouch      = "GO_HELPER_TOUCH"
	envPrintCwd   = "GO_HELPER_PRINT_CWD"
)

type (
	// FakeResponse describes what a faked process does.
	FakeResponse struct {
		Stdout   string
		Stderr   string
		ExitCode int
		// Touch lists files the process creates (parents included) before exiting.
		Touch []string
		// PrintCwd prefixes stdout with the working directory and a newline.
		PrintCwd bool
	}

	// FakeCall is one recorded invocation.
	FakeCall struct {
		Argv []string
		cmd  *exec.Cmd
	}

	// FakeExec scripts external processes for tests. Each command is matched
	// against the registered rules in order; the first rule whose pattern is a
	// substring of the space-joined argv answers it. Unmatched commands exit 0
	// silently.
	//
	// The fake re-executes the test binary, so the test package must declare:
	//
	//	func TestHelperProcess(*testing.T) { testutil.HelperProcessMain() }
	FakeExec struct {
		mu    sync.Mutex
		rules []fakeRule
		calls []*FakeCall
	}

	fakeRule struct {
		pattern string
		resp    FakeResponse
	}
)

// Dir returns the working directory the command was started in.
func (c *FakeCall) Dir() string { return c.cmd.Dir }

// Env returns the environment the command was started with.
func (c *FakeCall) Env() []string { return c.cmd.Env }

// Line returns the space-joined argv.
func (c *FakeCall) Line() string { return strings.Join(c.Argv, " ") }

// NewFakeExec returns an empty FakeExec.
func NewFakeExec() *FakeExec {
	return &FakeExec{}
}

// On registers resp for commands whose argv contains pattern.
func (f *FakeExec) On(pattern string, resp FakeResponse) *FakeExec {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rules = append(f.rules, fakeRule{pattern: pattern, resp: resp})
	return f
}

// Calls returns the recorded invocations in order.
func (f *FakeExec) Calls() []*FakeCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*FakeCall, len(f.calls))
	copy(out, f.calls)
	return out
}

// CallsMatching returns the recorded invocations whose argv contains pattern.
func (f *FakeExec) CallsMatching(pattern string) []*FakeCall {
	var out []*FakeCall
	for _, c := range f.Calls() {
		if strings.Contains(c.Line(), pattern) {
			out = append(out, c)
		}
	}
	return out
}

// Command matches exec.CommandContext and can be injected wherever a
// command factory is accepted.
func (f *FakeExec) Command(ctx context.Context, name string, args ...string) *exec.Cmd {
	argv := append([]string{name}, args...)
	line := strings.Join(argv, " ")

	f.mu.Lock()
	var resp FakeResponse
	for _, r := range f.rules {
		if strings.Contains(line, r.pattern) {
			resp = r.resp
			break
		}
	}
	cs := append([]string{"-test.run=TestHelperProcess", "--"}, argv...)
	//nolint:gosec // TestHelperProcess is a test-only pattern
	cmd := exec.CommandContext(ctx, os.Args[0], cs...)
	cmd.Env = []string{
		envWantHelper + "=1",
		envStdout + "=" + resp.Stdout,
		envStderr + "=" + resp.Stderr,
		envExitCode + "=" + strconv.Itoa(resp.ExitCode),
		envTouch + "=" + strings.Join(resp.Touch, string(os.PathListSeparator)),
	}
	if resp.PrintCwd {
		cmd.Env = append(cmd.Env, envPrintCwd+"=1")
	}
	f.calls = append(f.calls, &FakeCall{Argv: argv, cmd: cmd})
	f.mu.Unlock()

	return cmd
}

// HelperProcessMain acts out a FakeResponse when the test binary was started
// by FakeExec, and returns immediately otherwise.
func HelperProcessMain() {
	if os.Getenv(envWantHelper) != "1" {
		return
	}
	for _, p := range filepath.SplitList(os.Getenv(envTouch)) {
		if p == "" {
			continue
		}
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(97)
		}
		if err := os.WriteFile(p, nil, 0o755); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(97)
		}
	}
	if os.Getenv(envPrintCwd) == "1" {
		wd, _ := os.Getwd()
		fmt.Fprintln(os.Stdout, wd)
	}
	fmt.Fprint(os.Stdout, os.Getenv(envStdout))
	fmt.Fprint(os.Stderr, os.Getenv(envStderr))
	code, _ := strconv.Atoi(os.Getenv(envExitCode))
	os.Exit(code)
}
