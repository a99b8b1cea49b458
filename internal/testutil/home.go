// SPDX-License-Identifier: MPL-2.0

package testutil

import (
	"path/filepath"
	"testing"
)

// UserDirs are the per-user locations redirected by IsolateUserDirs.
type UserDirs struct {
	Home   string
	Config string
	Data   string
}

// IsolateUserDirs points the home, config and data directory variables of
// every supported OS into root for the rest of the test. Tests using it
// cannot run in parallel.
func IsolateUserDirs(t *testing.T, root string) UserDirs {
	t.Helper()

	dirs := UserDirs{
		Home:   filepath.Join(root, "home"),
		Config: filepath.Join(root, "config"),
		Data:   filepath.Join(root, "data"),
	}
	t.Setenv("HOME", dirs.Home)
	t.Setenv("USERPROFILE", dirs.Home)
	t.Setenv("XDG_CONFIG_HOME", dirs.Config)
	t.Setenv("APPDATA", dirs.Config)
	t.Setenv("XDG_DATA_HOME", dirs.Data)
	t.Setenv("LOCALAPPDATA", dirs.Data)
	return dirs
}
