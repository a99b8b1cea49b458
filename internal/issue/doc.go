// SPDX-License-Identifier: MPL-2.0

// Package issue turns harness failures into user-facing guidance: an
// ActionableError carries what failed and how to fix it, and the issue
// catalog holds longer Markdown explanations rendered with glamour.
package issue
