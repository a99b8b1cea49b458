// SPDX-License-Identifier: MPL-2.0

// Package cueutil decodes user-authored CUE and JSON documents against an
// embedded CUE schema.
//
// Both the harness configuration file and the sample matrix go through the
// same flow: compile the schema, unify the user document with one of its
// definitions, validate, and decode into a Go struct.
//
//	//go:embed matrix_schema.cue
//	var schema []byte
//
//	res, err := cueutil.ParseAndDecode[Matrix](schema, data, "#Matrix",
//	    cueutil.WithFilename("build-test.json"))
//
// Validation failures are reported as *ValidationError values whose CUEPath
// points at the offending field in JSON-path notation (samples.simple.platform).
package cueutil
