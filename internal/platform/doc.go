// SPDX-License-Identifier: MPL-2.0

// Package platform holds the per-family behavior table consulted by the
// environment provisioner, the build invoker and the run launcher.
//
// Each platform.Family maps to exactly one Adapter. Components never branch on
// platform-name substrings; they read the fields of the Adapter they were
// given, which keeps the platform-specific rules in one place and lets tests
// exercise every family from any host.
package platform
