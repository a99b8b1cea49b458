// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"freezecheck-cli/internal/probe"
	"freezecheck-cli/internal/testutil"
)

func TestProbeCommand(t *testing.T) {
	t.Parallel()

	h := newHarness(t, nil)
	h.fake.On("import sys", testutil.FakeResponse{Stdout: linuxProbe})

	code, err := h.execute("probe", "--python", "python3.12")
	exitCode(t, code, err, 0)

	out := h.stdout.String()
	assert.Contains(t, out, "linux-x86_64")
	assert.Contains(t, out, "3.12.4 (py312)")
	assert.Contains(t, out, "7.2.0")
	require.Len(t, h.fake.Calls(), 1)
	assert.Contains(t, h.fake.Calls()[0].Line(), "python3.12")
}

func TestProbeCommand_JSON(t *testing.T) {
	t.Parallel()

	h := newHarness(t, nil)
	h.fake.On("import sys", testutil.FakeResponse{Stdout: linuxProbe})

	code, err := h.execute("probe", "--json")
	exitCode(t, code, err, 0)

	var info probe.Info
	require.NoError(t, json.Unmarshal(h.stdout.Bytes(), &info))
	assert.Equal(t, "linux-x86_64", info.PlatformTag)
	assert.Equal(t, "312", info.NumericVersion)
	assert.Equal(t, "7.2.0", info.FreezerVersion)
}

func TestProbeCommand_InterpreterFails(t *testing.T) {
	t.Parallel()

	h := newHarness(t, nil)
	h.fake.On("import sys", testutil.FakeResponse{Stderr: "not found\n", ExitCode: 127})

	code, err := h.execute("probe")
	exitCode(t, code, err, 1)
	assert.ErrorIs(t, err, probe.ErrEnvironmentQuery)
}
