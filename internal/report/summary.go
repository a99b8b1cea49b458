// SPDX-License-Identifier: MPL-2.0

package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// ErrUnsupportedSummaryFormat is returned for summary files with an unknown extension.
var ErrUnsupportedSummaryFormat = errors.New("unsupported summary format")

// Marshal encodes v in the format selected by the extension of path:
// .json, .yaml/.yml or .toml.
func Marshal(path string, v any) ([]byte, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		data, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return nil, err
		}
		return append(data, '\n'), nil
	case ".yaml", ".yml":
		return yaml.Marshal(v)
	case ".toml":
		return toml.Marshal(v)
	default:
		return nil, fmt.Errorf("%w: %q (use .json, .yaml or .toml)", ErrUnsupportedSummaryFormat, filepath.Ext(path))
	}
}

// WriteFile writes v to path in the format selected by its extension.
func WriteFile(path string, v any) error {
	data, err := Marshal(path, v)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, data, 0o644)
}
