// SPDX-License-Identifier: MPL-2.0

// Package pipeline runs one sample end to end: probe the harness
// interpreter, resolve and populate the build environment, freeze the
// sample, start the run driver in each artifact directory and fold the run
// protocol into one exit status.
//
// The stages run strictly in sequence. Usage, provisioning, build and
// protocol errors abort the run; a non-zero sample status is reported only
// after every artifact directory was attempted.
package pipeline
