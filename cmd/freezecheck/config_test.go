// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"freezecheck-cli/internal/config"
	"freezecheck-cli/internal/testutil"
)

func TestConfigInit(t *testing.T) {
	testutil.IsolateUserDirs(t, t.TempDir())
	h := newHarness(t, nil)
	cfgDir, err := config.ConfigDir()
	require.NoError(t, err)
	want := filepath.Join(cfgDir, "config.cue")

	code, err := h.execute("config", "init")
	exitCode(t, code, err, 0)
	assert.Contains(t, h.stdout.String(), want)
	data, err := os.ReadFile(want)
	require.NoError(t, err)
	assert.Contains(t, string(data), "container_engine")

	code, err = h.execute("config", "init")
	exitCode(t, code, err, 1)
	assert.ErrorIs(t, err, config.ErrConfigExists)
	assert.Contains(t, h.stderr.String(), "--force")

	code, err = h.execute("config", "init", "--force")
	exitCode(t, code, err, 0)
}

func TestConfigShow(t *testing.T) {
	t.Parallel()

	h := newHarness(t, nil)
	h.cfg.Freezer.Module = "my_freezer"

	code, err := h.execute("config", "show")
	exitCode(t, code, err, 0)
	out := h.stdout.String()
	assert.Contains(t, out, "(using defaults)")
	assert.Contains(t, out, `"my_freezer"`)
}

func TestConfigShow_LoadsFile(t *testing.T) {
	testutil.IsolateUserDirs(t, t.TempDir())
	cfgDir, err := config.ConfigDir()
	require.NoError(t, err)
	path := filepath.Join(cfgDir, "config.cue")
	testutil.MustWriteFile(t, path, "container_engine: \"docker\"\n")

	h := newHarness(t, nil)
	h.app.Config = config.NewProvider()

	code, err := h.execute("config", "show")
	exitCode(t, code, err, 0)
	assert.Contains(t, h.stdout.String(), path)
	assert.Contains(t, h.stdout.String(), `"docker"`)
}

func TestConfigPath(t *testing.T) {
	testutil.IsolateUserDirs(t, t.TempDir())
	h := newHarness(t, nil)
	cfgDir, err := config.ConfigDir()
	require.NoError(t, err)
	dataDir, err := config.DataDir()
	require.NoError(t, err)

	code, err := h.execute("config", "path")
	exitCode(t, code, err, 0)
	assert.Contains(t, h.stdout.String(), cfgDir)
	assert.Contains(t, h.stdout.String(), dataDir)
}
