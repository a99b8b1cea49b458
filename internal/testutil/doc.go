// SPDX-License-Identifier: MPL-2.0

// Package testutil holds shared test helpers: a scripted exec.Command
// replacement (FakeExec), a controllable clock, per-test user directories and
// small Must* file helpers.
package testutil
