// SPDX-License-Identifier: MPL-2.0

package report

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/pelletier/go-toml/v2"
	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type summaryFixture struct {
	Sample   string   `json:"sample" yaml:"sample" toml:"sample"`
	ExitCode int      `json:"exit_code" yaml:"exit_code" toml:"exit_code"`
	Dirs     []string `json:"dirs" yaml:"dirs" toml:"dirs"`
}

var fixture = summaryFixture{Sample: "simple", ExitCode: 1, Dirs: []string{"a", "b"}}

func TestMarshal_Golden(t *testing.T) {
	t.Parallel()

	for _, name := range []string{"summary.json", "summary.yaml"} {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			data, err := Marshal(name, fixture)
			require.NoError(t, err)

			g := goldie.New(t,
				goldie.WithFixtureDir("testdata/golden"),
				goldie.WithNameSuffix(".golden"),
			)
			g.Assert(t, name, data)
		})
	}
}

func TestWriteFile_TOMLRoundTrip(t *testing.T) {
	t.Parallel()

	p := filepath.Join(t.TempDir(), "out", "summary.toml")
	require.NoError(t, WriteFile(p, fixture))

	data, err := os.ReadFile(p)
	require.NoError(t, err)

	var got summaryFixture
	require.NoError(t, toml.Unmarshal(data, &got))
	assert.Equal(t, fixture, got)
}

func TestWriteFile_UnknownExtension(t *testing.T) {
	t.Parallel()

	err := WriteFile(filepath.Join(t.TempDir(), "summary.xml"), fixture)
	assert.True(t, errors.Is(err, ErrUnsupportedSummaryFormat))
}
