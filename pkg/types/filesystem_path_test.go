// SPDX-License-Identifier: MPL-2.0

package types

import (
	"errors"
	"path/filepath"
	"testing"
)

func TestFilesystemPathValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		value   FilesystemPath
		wantErr bool
	}{
		{name: "relative", value: "samples/simple", wantErr: false},
		{name: "absolute", value: "/opt/samples", wantErr: false},
		{name: "empty", value: "", wantErr: true},
		{name: "whitespace", value: "  \t", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := tt.value.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("FilesystemPath(%q).Validate() error = %v, wantErr %v", tt.value, err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidFilesystemPath) {
				t.Errorf("error does not wrap ErrInvalidFilesystemPath: %v", err)
			}
		})
	}
}

func TestFilesystemPathIsDir(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	if !FilesystemPath(dir).IsDir() {
		t.Errorf("IsDir(%q) = false, want true", dir)
	}
	if FilesystemPath(filepath.Join(dir, "missing")).IsDir() {
		t.Error("IsDir() on a missing path = true, want false")
	}
}
