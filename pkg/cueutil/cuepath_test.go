// SPDX-License-Identifier: MPL-2.0

package cueutil

import (
	"errors"
	"testing"
)

func TestCUEPath_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		path    CUEPath
		wantErr bool
	}{
		{name: "simple", path: "samples"},
		{name: "dotted", path: "samples.simple.platform"},
		{name: "indexed", path: "samples.simple.requirements[0]"},
		{name: "empty", path: "", wantErr: true},
		{name: "blank", path: "   ", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := tt.path.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("CUEPath(%q).Validate() error = %v, wantErr %v", tt.path, err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidCUEPath) {
				t.Errorf("CUEPath(%q).Validate() error does not wrap ErrInvalidCUEPath", tt.path)
			}
		})
	}
}

func TestPathFromSelectors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		sel  []string
		want CUEPath
	}{
		{sel: nil, want: ""},
		{sel: []string{"samples"}, want: "samples"},
		{sel: []string{"samples", "simple", "platform"}, want: "samples.simple.platform"},
		{sel: []string{"samples", "simple", "requirements", "2"}, want: "samples.simple.requirements[2]"},
		{sel: []string{"0", "name"}, want: "0.name"},
	}

	for _, tt := range tests {
		if got := pathFromSelectors(tt.sel); got != tt.want {
			t.Errorf("pathFromSelectors(%v) = %q, want %q", tt.sel, got, tt.want)
		}
	}
}
