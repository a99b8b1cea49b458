// SPDX-License-Identifier: MPL-2.0

// Package cmd contains the freezecheck command-line interface.
//
// The root command is built around an App value holding the configuration
// provider, the standard streams and a snapshot of the process environment,
// so every command can be exercised in tests without touching globals.
package cmd
