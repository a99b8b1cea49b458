// SPDX-License-Identifier: MPL-2.0

// Package container runs frozen executables inside a Linux container as a
// cross-check of the native run.
//
// Two CLI engines are provided, PodmanEngine and DockerEngine, both embedding
// BaseCLIEngine for argument construction and command execution. NewEngine
// picks the preferred engine and falls back to the other one when it is not
// installed.
//
// Only Linux containers are supported. Use debian:stable-slim as the
// reference image: frozen executables link against glibc.
package container
