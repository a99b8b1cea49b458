// SPDX-License-Identifier: MPL-2.0

package protocol

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"freezecheck-cli/pkg/types"
)

const (
	// StatusKeyword is the first token of the terminal record.
	StatusKeyword = "status"
	// Base64Prefix marks an escaped process name.
	Base64Prefix = "b64:"

	// processFields is the minimum token count of a process record.
	processFields = 5
)

// Decode parses one protocol line. Trailing CR/LF are ignored.
func Decode(line string) (Record, error) {
	line = strings.TrimRight(line, "\r\n")
	fields := strings.Fields(line)

	if len(fields) > 0 && fields[0] == StatusKeyword {
		if len(fields) != 2 {
			return nil, &ProtocolError{Line: line, Reason: fmt.Sprintf("status record has %d fields, want 2", len(fields))}
		}
		code, err := types.ParseExitCode(fields[1])
		if err != nil {
			return nil, &ProtocolError{Line: line, Reason: "bad status exit code", Err: err}
		}
		return TerminalRecord{ExitCode: code}, nil
	}

	if len(fields) < processFields {
		return nil, &ProtocolError{Line: line, Reason: fmt.Sprintf("process record has %d fields, want at least %d", len(fields), processFields)}
	}

	pid, err := strconv.Atoi(fields[0])
	if err != nil {
		return nil, &ProtocolError{Line: line, Reason: "bad pid", Err: err}
	}
	code, err := types.ParseExitCode(fields[1])
	if err != nil {
		return nil, &ProtocolError{Line: line, Reason: "bad exit code", Err: err}
	}
	appType := AppType(fields[3])
	if err := appType.Validate(); err != nil {
		return nil, &ProtocolError{Line: line, Reason: "bad application type", Err: err}
	}
	name, err := decodeName(strings.Join(fields[4:], " "))
	if err != nil {
		return nil, &ProtocolError{Line: line, Reason: "bad base64 name", Err: err}
	}

	return ProcessRecord{
		PID:      pid,
		ExitCode: code,
		LogBase:  fields[2],
		AppType:  appType,
		Name:     name,
	}, nil
}

// Encode renders a record as one protocol line without the trailing newline.
func Encode(rec Record) (string, error) {
	switch r := rec.(type) {
	case TerminalRecord:
		return StatusKeyword + " " + r.ExitCode.String(), nil
	case *TerminalRecord:
		return Encode(*r)
	case ProcessRecord:
		if r.LogBase == "" || strings.IndexFunc(r.LogBase, unicode.IsSpace) >= 0 {
			return "", fmt.Errorf("log base %q must be a single non-empty token", r.LogBase)
		}
		if err := r.AppType.Validate(); err != nil {
			return "", err
		}
		return fmt.Sprintf("%d %s %s %s %s", r.PID, r.ExitCode, r.LogBase, r.AppType, EncodeName(r.Name)), nil
	case *ProcessRecord:
		return Encode(*r)
	default:
		return "", fmt.Errorf("unsupported record type %T", rec)
	}
}

// EncodeName returns name unchanged when it survives whitespace splitting
// and rejoining, and its b64: escape otherwise.
func EncodeName(name string) string {
	if needsEscape(name) {
		return Base64Prefix + base64.StdEncoding.EncodeToString([]byte(name))
	}
	return name
}

func needsEscape(name string) bool {
	if name == "" || !utf8.ValidString(name) || strings.HasPrefix(name, Base64Prefix) {
		return true
	}
	return strings.Join(strings.Fields(name), " ") != name
}

func decodeName(raw string) (string, error) {
	encoded, ok := strings.CutPrefix(raw, Base64Prefix)
	if !ok {
		return raw, nil
	}
	b, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
