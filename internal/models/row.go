// Package models defines data structures stored by rowloader.
package models

import "fmt"

// DefaultFields are the attribute names a CSV record is mapped to when no
// field list is configured.
var DefaultFields = []string{"foo", "bar", "baz"}

// Row is a single document written to the store.
// It is built once from an input record and never modified afterwards, so
// it can be handed between the pool workers and the retry worker freely.
type Row struct {
	run    string
	line   int
	names  []string
	values []string
}

// NewRow maps the leading values onto names positionally.
// It returns an error when there are fewer values than names; extra values
// are ignored.
func NewRow(run string, line int, names, values []string) (Row, error) {
	if len(values) < len(names) {
		return Row{}, fmt.Errorf("line %d has %d fields, need %d", line, len(values), len(names))
	}

	n := make([]string, len(names))
	copy(n, names)
	v := make([]string, len(names))
	copy(v, values[:len(names)])

	return Row{run: run, line: line, names: n, values: v}, nil
}

// Run returns the ID of the load run that produced the row.
func (r Row) Run() string { return r.run }

// Line returns the 1-based input line number.
func (r Row) Line() int { return r.line }

// Field returns the value for name, and whether the row has it.
func (r Row) Field(name string) (string, bool) {
	for i, n := range r.names {
		if n == name {
			return r.values[i], true
		}
	}
	return "", false
}

// Document returns the store representation of the row.
// A fresh map is returned on every call.
func (r Row) Document() map[string]any {
	doc := make(map[string]any, len(r.names)+2)
	for i, n := range r.names {
		doc[n] = r.values[i]
	}
	doc["run"] = r.run
	doc["line"] = r.line
	return doc
}
