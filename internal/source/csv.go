// Package source reads delimited input records.
package source

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
)

// ErrMalformed marks a line the CSV parser could not make sense of.
// The reader stays usable; the caller may skip the line and keep going.
var ErrMalformed = errors.New("malformed line")

// Record is one parsed input line.
type Record struct {
	Line   int
	Fields []string
}

// CSVReader reads records from a delimited stream.
type CSVReader struct {
	name   string
	reader *csv.Reader
	closer io.Closer
	count  int
}

// Options configures a CSVReader.
type Options struct {
	// Comma is the field delimiter; zero means ','.
	Comma rune
}

// NewCSVReader wraps r. Records may have any number of fields; checking the
// count is left to the caller.
func NewCSVReader(name string, r io.Reader, opts Options) *CSVReader {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	if opts.Comma != 0 {
		cr.Comma = opts.Comma
	}
	c := &CSVReader{name: name, reader: cr}
	if closer, ok := r.(io.Closer); ok {
		c.closer = closer
	}
	return c
}

// OpenCSV opens path for reading. "-" reads standard input.
func OpenCSV(path string, opts Options) (*CSVReader, error) {
	if path == "-" {
		return NewCSVReader("stdin", io.NopCloser(os.Stdin), opts), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open csv %s: %w", path, err)
	}
	return NewCSVReader(path, f, opts), nil
}

// Name identifies the source in logs.
func (c *CSVReader) Name() string { return c.name }

// Read returns the next record, or io.EOF once the input is exhausted.
// Parse problems are reported wrapped in ErrMalformed; any other error means
// the stream itself is no longer readable.
func (c *CSVReader) Read() (Record, error) {
	fields, err := c.reader.Read()
	if err != nil {
		if err == io.EOF {
			return Record{}, io.EOF
		}
		var perr *csv.ParseError
		if errors.As(err, &perr) {
			return Record{Line: perr.StartLine}, fmt.Errorf("%w: %v", ErrMalformed, perr)
		}
		return Record{}, fmt.Errorf("read %s: %w", c.name, err)
	}
	c.count++

	line, _ := c.reader.FieldPos(0)
	return Record{Line: line, Fields: fields}, nil
}

// Count returns the number of records read so far.
func (c *CSVReader) Count() int { return c.count }

// Close releases the underlying stream.
func (c *CSVReader) Close() error {
	if c.closer != nil {
		return c.closer.Close()
	}
	return nil
}
