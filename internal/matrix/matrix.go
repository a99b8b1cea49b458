// SPDX-License-Identifier: MPL-2.0

// Package matrix reads the sample matrix (ci/build-test.json) that declares,
// per sample, on which platforms and interpreter versions it runs and what it
// needs installed.
package matrix

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"

	"freezecheck-cli/pkg/cueutil"
	"freezecheck-cli/pkg/platform"
	"freezecheck-cli/pkg/types"
)

// DefaultFile is the matrix location relative to the ci directory.
const DefaultFile = "build-test.json"

//go:embed matrix_schema.cue
var schema []byte

type (
	// Entry is the matrix record of one sample with list fields normalized.
	Entry struct {
		Sample        types.SampleName `json:"sample"`
		Platform      []string         `json:"platform,omitempty"`
		PythonVersion string           `json:"python_version,omitempty"`
		Requirements  []string         `json:"requirements,omitempty"`
		ExtraIndexURL []string         `json:"extra_index_url,omitempty"`
		FindLinks     []string         `json:"find_links,omitempty"`
		TestApps      []string         `json:"test_app,omitempty"`
	}

	// Matrix maps sample names to their entries.
	Matrix struct {
		entries map[types.SampleName]Entry
	}

	rawEntry struct {
		Platform      any    `json:"platform"`
		PythonVersion string `json:"python_version"`
		Requirements  any    `json:"requirements"`
		ExtraIndexURL any    `json:"extra_index_url"`
		FindLinks     any    `json:"find_links"`
		TestApp       any    `json:"test_app"`
	}
)

// Load reads the matrix at path. A missing file yields an empty matrix in
// which every sample gets default entries.
func Load(path string) (*Matrix, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return &Matrix{entries: map[types.SampleName]Entry{}}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read sample matrix: %w", err)
	}
	return Parse(data, path)
}

// Parse validates data against the matrix schema. filename is used in
// error messages.
func Parse(data []byte, filename string) (*Matrix, error) {
	res, err := cueutil.ParseAndDecode[map[string]rawEntry](schema, data, "#Matrix", cueutil.WithFilename(filename))
	if err != nil {
		return nil, err
	}

	m := &Matrix{entries: make(map[types.SampleName]Entry, len(*res.Value))}
	for name, raw := range *res.Value {
		sample := types.SampleName(name)
		m.entries[sample] = Entry{
			Sample:        sample,
			Platform:      splitList(raw.Platform),
			PythonVersion: strings.TrimSpace(raw.PythonVersion),
			Requirements:  splitList(raw.Requirements),
			ExtraIndexURL: splitList(raw.ExtraIndexURL),
			FindLinks:     splitList(raw.FindLinks),
			TestApps:      splitList(raw.TestApp),
		}
	}
	return m, nil
}

// Samples returns the sample names listed in the matrix, sorted.
func (m *Matrix) Samples() []types.SampleName {
	names := make([]types.SampleName, 0, len(m.entries))
	for name := range m.entries {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Lookup returns the entry for sample. Unlisted samples get a default entry
// supported everywhere; the test application defaults to test_<sample>.
func (m *Matrix) Lookup(sample types.SampleName) Entry {
	e, ok := m.entries[sample]
	if !ok {
		e = Entry{Sample: sample}
	}
	if len(e.TestApps) == 0 {
		e.TestApps = []string{"test_" + sample.String()}
	}
	return e
}

// SupportsPlatform reports whether the sample runs on family f.
func (e Entry) SupportsPlatform(f platform.Family) bool {
	return platform.IsSupported(strings.Join(e.Platform, ","), f)
}

// SupportsPython reports whether the interpreter version satisfies the
// sample's python_version specifier. An empty specifier matches everything.
func (e Entry) SupportsPython(version string) (bool, error) {
	if e.PythonVersion == "" {
		return true, nil
	}
	spec, err := ParseSpecifierSet(e.PythonVersion)
	if err != nil {
		return false, fmt.Errorf("sample %s: %w", e.Sample, err)
	}
	return spec.Contains(version)
}

// splitList accepts a comma-separated string or a list of strings.
func splitList(v any) []string {
	var parts []string
	switch x := v.(type) {
	case string:
		parts = strings.Split(x, ",")
	case []any:
		for _, item := range x {
			if s, ok := item.(string); ok {
				parts = append(parts, s)
			}
		}
	}
	var out []string
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
