// SPDX-License-Identifier: MPL-2.0

// Package history keeps a local SQLite record of past harness runs so that
// `freezecheck history` can show how a sample behaved over time.
package history
