// SPDX-License-Identifier: MPL-2.0

package watch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"
)

const waitTimeout = 5 * time.Second

// startWatcher runs a watcher on dir and returns the channel receiving each
// batch of changed paths.
func startWatcher(t *testing.T, cfg Config) <-chan []string {
	t.Helper()
	batches := make(chan []string, 4)
	cfg.Debounce = 100 * time.Millisecond
	cfg.OnChange = func(_ context.Context, changed []string) error {
		batches <- changed
		return nil
	}
	w, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- w.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		if err := <-errCh; err != nil {
			t.Errorf("Run() error: %v", err)
		}
	})
	return batches
}

func writeFile(t *testing.T, path string) {
	t.Helper()
	if err := os.WriteFile(path, []byte("print('hi')\n"), 0o644); err != nil {
		t.Fatal(err)
	}
}

func nextBatch(t *testing.T, batches <-chan []string) []string {
	t.Helper()
	select {
	case b := <-batches:
		return b
	case <-time.After(waitTimeout):
		t.Fatal("no change reported")
		return nil
	}
}

func TestWatcherCoalescesChanges(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	batches := startWatcher(t, Config{Dir: dir})

	for _, name := range []string{"setup.py", "test_simple.py"} {
		writeFile(t, filepath.Join(dir, name))
		time.Sleep(10 * time.Millisecond)
	}

	got := nextBatch(t, batches)
	if !slices.Equal(got, []string{"setup.py", "test_simple.py"}) {
		t.Errorf("changed = %v", got)
	}
}

func TestWatcherIgnoresBuildOutput(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	exeDir := filepath.Join(dir, "build", "exe.linux-x86_64-3.12")
	if err := os.MkdirAll(exeDir, 0o755); err != nil {
		t.Fatal(err)
	}
	batches := startWatcher(t, Config{Dir: dir})

	writeFile(t, filepath.Join(exeDir, "test_simple"))
	writeFile(t, filepath.Join(dir, "test_simple.py"))

	got := nextBatch(t, batches)
	if !slices.Equal(got, []string{"test_simple.py"}) {
		t.Errorf("changed = %v, want only test_simple.py", got)
	}
}

func TestWatcherPatterns(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	batches := startWatcher(t, Config{Dir: dir, Patterns: []string{"**/*.py"}})

	writeFile(t, filepath.Join(dir, "README.md"))
	writeFile(t, filepath.Join(dir, "main.py"))

	got := nextBatch(t, batches)
	if !slices.Equal(got, []string{"main.py"}) {
		t.Errorf("changed = %v, want only main.py", got)
	}
}

func TestWatcherWatchesNewDirectories(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	batches := startWatcher(t, Config{Dir: dir, Patterns: []string{"pkg/*.py"}})

	pkg := filepath.Join(dir, "pkg")
	if err := os.Mkdir(pkg, 0o755); err != nil {
		t.Fatal(err)
	}
	// Give the watcher time to register the new directory.
	time.Sleep(200 * time.Millisecond)
	writeFile(t, filepath.Join(pkg, "mod.py"))

	got := nextBatch(t, batches)
	if !slices.Contains(got, "pkg/mod.py") {
		t.Errorf("changed = %v, want pkg/mod.py", got)
	}
}

func TestWatcherRunOnce(t *testing.T) {
	t.Parallel()

	w, err := New(Config{Dir: t.TempDir()})
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := w.Run(ctx); err != nil {
		t.Fatalf("Run() after cancel = %v, want nil", err)
	}
	if err := w.Run(ctx); !errors.Is(err, ErrAlreadyRunning) {
		t.Fatalf("second Run() = %v, want ErrAlreadyRunning", err)
	}
}

func TestNewRejectsInvalidInput(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	for _, cfg := range []Config{
		{},
		{Dir: dir, Patterns: []string{"[unclosed"}},
		{Dir: dir, Ignore: []string{"src/[x"}},
	} {
		if _, err := New(cfg); err == nil {
			t.Errorf("New(%+v) succeeded", cfg)
		}
	}
}

func TestDefaultIgnores(t *testing.T) {
	t.Parallel()

	ignores := DefaultIgnores()
	for _, rel := range []string{
		"build/exe.linux-x86_64-3.12/test_simple",
		"dist/simple-0.1.msi",
		"pkg/__pycache__/mod.cpython-312.pyc",
		"mod.pyc",
		"simple.egg-info/PKG-INFO",
		".git/HEAD",
		"main.py~",
	} {
		if !matchAny(ignores, rel) {
			t.Errorf("%s is not ignored", rel)
		}
	}
	for _, rel := range []string{"setup.py", "pkg/mod.py", "builder.py", "data/build.txt"} {
		if matchAny(ignores, rel) {
			t.Errorf("%s is ignored", rel)
		}
	}

	ignores[0] = "changed"
	if DefaultIgnores()[0] == "changed" {
		t.Error("DefaultIgnores() returned the package slice")
	}
}
