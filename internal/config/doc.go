// SPDX-License-Identifier: MPL-2.0

// Package config loads harness settings with Viper, using CUE as the file
// format.
//
// The file is config.cue in the freezecheck configuration directory
// ($XDG_CONFIG_HOME/freezecheck on Linux, ~/Library/Application Support/freezecheck
// on macOS, %APPDATA%\freezecheck on Windows), or config.cue in the working
// directory. It is validated against the embedded config_schema.cue before
// being merged over the defaults. Every key can be overridden through a
// FREEZECHECK_ environment variable, with dots replaced by underscores
// (FREEZECHECK_TIMEOUTS_BUILD=45m).
package config
