// SPDX-License-Identifier: MPL-2.0

// Package report renders the harness report stream: stage headers, echoed
// log files of every frozen process, the container cross-check of console
// samples, and the machine-readable summary file.
package report
