// SPDX-License-Identifier: MPL-2.0

package probe

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// ErrVersionNotFound is returned when no source tree version can be found.
var ErrVersionNotFound = errors.New("freezer version not found in source tree")

type pyproject struct {
	Project struct {
		Version string `toml:"version"`
	} `toml:"project"`
}

// FreezerVersionFromSource reads the freezer version from a source checkout
// at topDir: pyproject.toml [project].version first, then the __version__
// line of <module>/__init__.py. Pre-release dashes are folded the way the
// packaging index expects ("7.0.0-dev.3" becomes "7.0.0.dev3").
func FreezerVersionFromSource(topDir, module string) (string, error) {
	data, err := os.ReadFile(filepath.Join(topDir, "pyproject.toml"))
	if err == nil {
		var meta pyproject
		if err := toml.Unmarshal(data, &meta); err != nil {
			return "", fmt.Errorf("parse pyproject.toml: %w", err)
		}
		if v := strings.TrimSpace(meta.Project.Version); v != "" {
			return NormalizeVersion(v), nil
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return "", err
	}

	f, err := os.Open(filepath.Join(topDir, module, "__init__.py"))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", ErrVersionNotFound
		}
		return "", err
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := sc.Text()
		if !strings.HasPrefix(line, "__version__") {
			continue
		}
		_, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		value = strings.Trim(strings.TrimSpace(value), `"'`)
		if value != "" {
			return NormalizeVersion(value), nil
		}
	}
	if err := sc.Err(); err != nil {
		return "", err
	}
	return "", ErrVersionNotFound
}

// NormalizeVersion folds dashes into dots and joins the last two segments
// when the version carries a pre-release suffix.
func NormalizeVersion(v string) string {
	if !strings.Contains(v, "-") {
		return v
	}
	v = strings.ReplaceAll(v, "-", ".")
	i := strings.LastIndex(v, ".")
	return v[:i] + v[i+1:]
}
