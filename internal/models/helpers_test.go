package models

import (
	"testing"

	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"
)

func TestNewRow(t *testing.T) {
	tests := []struct {
		name    string
		values  []string
		wantErr bool
		want    map[string]any
	}{
		{"exact", []string{"a", "b", "c"}, false, map[string]any{"foo": "a", "bar": "b", "baz": "c", "run": "r1", "line": 7}},
		{"extra fields ignored", []string{"a", "b", "c", "d"}, false, map[string]any{"foo": "a", "bar": "b", "baz": "c", "run": "r1", "line": 7}},
		{"too few", []string{"a"}, true, nil},
		{"empty", nil, true, nil},
		{"empty values kept", []string{"", "", ""}, false, map[string]any{"foo": "", "bar": "", "baz": "", "run": "r1", "line": 7}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			row, err := NewRow("r1", 7, DefaultFields, tt.values)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("NewRow(%v) expected error", tt.values)
				}
				return
			}
			if err != nil {
				t.Fatalf("NewRow(%v) unexpected error: %v", tt.values, err)
			}
			doc := row.Document()
			if len(doc) != len(tt.want) {
				t.Fatalf("Document() = %v, want %v", doc, tt.want)
			}
			for k, v := range tt.want {
				if doc[k] != v {
					t.Errorf("Document()[%q] = %v, want %v", k, doc[k], v)
				}
			}
		})
	}
}

func TestRowIsolatedFromInput(t *testing.T) {
	values := []string{"a", "b", "c"}
	row, err := NewRow("r1", 1, DefaultFields, values)
	if err != nil {
		t.Fatal(err)
	}
	values[0] = "changed"

	if got, _ := row.Field("foo"); got != "a" {
		t.Errorf("Field(foo) = %q after caller mutation, want %q", got, "a")
	}
	if _, ok := row.Field("missing"); ok {
		t.Error("Field(missing) reported present")
	}
}

func TestRecordIDString(t *testing.T) {
	s, err := RecordIDString(surrealmodels.RecordID{Table: "load_run", ID: "abc123"})
	if err != nil || s != "abc123" {
		t.Errorf("RecordIDString = %q, %v", s, err)
	}

	if _, err := RecordIDString(surrealmodels.RecordID{Table: "load_run", ID: 42}); err == nil {
		t.Error("RecordIDString with int ID should fail")
	}
}
