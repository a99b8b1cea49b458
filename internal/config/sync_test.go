// SPDX-License-Identifier: MPL-2.0

package config

import (
	"reflect"
	"strings"
	"testing"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
)

// These tests keep the Go struct JSON tags and the CUE schema field names in
// step so that a renamed field cannot be silently ignored while loading.

func cueFields(t *testing.T, def string) map[string]bool {
	t.Helper()

	schema := cuecontext.New().CompileString(configSchema)
	if err := schema.Err(); err != nil {
		t.Fatalf("failed to compile CUE schema: %v", err)
	}
	val := schema.LookupPath(cue.ParsePath(def))
	if err := val.Err(); err != nil {
		t.Fatalf("failed to look up %s: %v", def, err)
	}

	iter, err := val.Fields(cue.Definitions(false), cue.Optional(true))
	if err != nil {
		t.Fatalf("failed to iterate %s: %v", def, err)
	}
	fields := make(map[string]bool)
	for iter.Next() {
		sel := iter.Selector()
		if sel.LabelType().IsHidden() || sel.IsDefinition() {
			continue
		}
		fields[strings.TrimSuffix(sel.String(), "?")] = true
	}
	return fields
}

func goFields(typ reflect.Type) map[string]bool {
	fields := make(map[string]bool)
	for i := range typ.NumField() {
		field := typ.Field(i)
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if field.IsExported() && name != "" && name != "-" {
			fields[name] = true
		}
	}
	return fields
}

func TestSchemaSync(t *testing.T) {
	t.Parallel()

	tests := []struct {
		def string
		typ reflect.Type
	}{
		{"#Config", reflect.TypeFor[Config]()},
		{"#EnvironmentConfig", reflect.TypeFor[EnvironmentConfig]()},
		{"#FreezerConfig", reflect.TypeFor[FreezerConfig]()},
		{"#PathsConfig", reflect.TypeFor[PathsConfig]()},
		{"#TimeoutsConfig", reflect.TypeFor[TimeoutsConfig]()},
		{"#UIConfig", reflect.TypeFor[UIConfig]()},
	}

	for _, tt := range tests {
		t.Run(tt.def, func(t *testing.T) {
			t.Parallel()

			fromCUE := cueFields(t, tt.def)
			fromGo := goFields(tt.typ)
			for f := range fromCUE {
				if !fromGo[f] {
					t.Errorf("CUE field %q has no Go JSON tag in %s", f, tt.typ.Name())
				}
			}
			for f := range fromGo {
				if !fromCUE[f] {
					t.Errorf("Go JSON tag %q of %s is missing from %s", f, tt.typ.Name(), tt.def)
				}
			}
		})
	}
}
