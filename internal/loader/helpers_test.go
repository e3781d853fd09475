package loader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/raphaelgruber/rowloader/internal/models"
	"github.com/raphaelgruber/rowloader/internal/source"
	"github.com/stretchr/testify/require"
)

var errWriteRejected = errors.New("write rejected")

// fakeStore records every write attempt per line and fails according to its
// configuration.
type fakeStore struct {
	mu         sync.Mutex
	attempts   map[int]int
	written    []models.Row
	tables     map[string]int
	failFirst  map[int]bool
	failAlways map[int]bool
	panicOn    map[int]bool
	delay      time.Duration
	ctxErrs    int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		attempts:   map[int]int{},
		tables:     map[string]int{},
		failFirst:  map[int]bool{},
		failAlways: map[int]bool{},
		panicOn:    map[int]bool{},
	}
}

func (s *fakeStore) InsertRow(ctx context.Context, table string, row models.Row) error {
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			s.mu.Lock()
			s.ctxErrs++
			s.attempts[row.Line()]++
			s.mu.Unlock()
			return ctx.Err()
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.attempts[row.Line()]++
	n := s.attempts[row.Line()]

	if s.panicOn[row.Line()] && n == 1 {
		panic(fmt.Sprintf("store exploded on line %d", row.Line()))
	}
	if s.failAlways[row.Line()] || (s.failFirst[row.Line()] && n == 1) {
		return fmt.Errorf("line %d: %w", row.Line(), errWriteRejected)
	}
	s.written = append(s.written, row)
	s.tables[table]++
	return nil
}

func (s *fakeStore) attemptsFor(line int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attempts[line]
}

func (s *fakeStore) writtenCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.written)
}

func (s *fakeStore) maxAttempts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := 0
	for _, n := range s.attempts {
		m = max(m, n)
	}
	return m
}

// sliceReader serves records from memory. If err is set it is returned once
// the records run out, instead of io.EOF.
type sliceReader struct {
	mu      sync.Mutex
	records []source.Record
	errs    map[int]error
	pos     int
	err     error
}

func (r *sliceReader) Read() (source.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.pos >= len(r.records) {
		if r.err != nil {
			return source.Record{}, r.err
		}
		return source.Record{}, io.EOF
	}
	i := r.pos
	r.pos++
	if err, ok := r.errs[i]; ok {
		return source.Record{Line: r.records[i].Line}, err
	}
	return r.records[i], nil
}

// records builds n well-formed three-field records numbered from line 1.
func records(n int) []source.Record {
	out := make([]source.Record, n)
	for i := range out {
		line := i + 1
		out[i] = source.Record{
			Line:   line,
			Fields: []string{fmt.Sprintf("foo%d", line), fmt.Sprintf("bar%d", line), fmt.Sprintf("baz%d", line)},
		}
	}
	return out
}

func testRow(t *testing.T, line int) models.Row {
	t.Helper()
	row, err := models.NewRow("testrun", line, models.DefaultFields, []string{"a", "b", "c"})
	require.NoError(t, err)
	return row
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func waitClosed(t *testing.T, ch <-chan struct{}, msg string) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(5 * time.Second):
		t.Fatal(msg)
	}
}
