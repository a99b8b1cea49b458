// SPDX-License-Identifier: MPL-2.0

// Package protocol implements the line-oriented run protocol spoken by the
// external run driver.
//
// Every record is one UTF-8 line with space-separated fields:
//
//	<pid> <exitcode> <logbase> <apptype> <name...>
//	status <exitcode>
//
// The process record's name is the remainder of the line and may contain
// spaces. Names that would not survive whitespace splitting (tabs, newlines,
// runs of spaces, leading or trailing blanks, invalid UTF-8, or a literal
// "b64:" prefix) are sent as "b64:<standard base64>".
//
// The status line is the terminal record: it carries the aggregate exit code
// of the run and is always the last record. A stream that ends without one is
// malformed.
//
// Decoding is strict. Any line that is neither a valid process record nor a
// valid status line yields a *ProtocolError; blank lines carry no record and
// are ignored.
package protocol
