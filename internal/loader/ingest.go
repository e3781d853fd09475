package loader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"

	"github.com/raphaelgruber/rowloader/internal/metrics"
	"github.com/raphaelgruber/rowloader/internal/models"
	"github.com/raphaelgruber/rowloader/internal/source"
)

// ErrMalformedRecord marks an input record that cannot be turned into a row.
// Such records are skipped.
var ErrMalformedRecord = errors.New("malformed record")

// RecordReader yields input records one at a time, returning io.EOF at the end.
type RecordReader interface {
	Read() (source.Record, error)
}

// Submitter accepts rows for writing.
type Submitter interface {
	Submit(ctx context.Context, row models.Row) error
}

// IngestConfig configures an Ingestor.
type IngestConfig struct {
	RunID      string
	Fields     []string
	SkipHeader bool
	Logger     *slog.Logger
}

// Ingestor turns input records into rows and submits them.
type Ingestor struct {
	pool      Submitter
	lifecycle *Lifecycle
	metrics   *metrics.Collector
	cfg       IngestConfig
	submitted atomic.Int64
}

// NewIngestor creates an ingestor. Fields defaults to models.DefaultFields.
func NewIngestor(pool Submitter, lc *Lifecycle, collector *metrics.Collector, cfg IngestConfig) *Ingestor {
	if len(cfg.Fields) == 0 {
		cfg.Fields = models.DefaultFields
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Ingestor{pool: pool, lifecycle: lc, metrics: collector, cfg: cfg}
}

// Submitted returns the number of rows handed to the pool so far.
func (in *Ingestor) Submitted() int64 {
	return in.submitted.Load()
}

// Run reads r until it is exhausted, a read fails, or ctx is done.
// Ingestion is marked done on return whatever the outcome.
func (in *Ingestor) Run(ctx context.Context, r RecordReader) error {
	defer in.lifecycle.MarkIngestionDone()

	header := in.cfg.SkipHeader
	for {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("ingestion stopped: %w", err)
		}

		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			if errors.Is(err, source.ErrMalformed) {
				in.skip(rec.Line, err)
				continue
			}
			return fmt.Errorf("read source: %w", err)
		}

		if header {
			header = false
			in.cfg.Logger.Debug("skipping header", "line", rec.Line, "fields", rec.Fields)
			continue
		}

		row, err := models.NewRow(in.cfg.RunID, rec.Line, in.cfg.Fields, rec.Fields)
		if err != nil {
			in.skip(rec.Line, fmt.Errorf("%w: %v", ErrMalformedRecord, err))
			continue
		}

		if err := in.pool.Submit(ctx, row); err != nil {
			return fmt.Errorf("submit line %d: %w", rec.Line, err)
		}
		in.submitted.Add(1)
	}

	in.cfg.Logger.Info("ingestion complete", "submitted", in.submitted.Load(), "malformed", in.metrics.Malformed())
	return nil
}

func (in *Ingestor) skip(line int, err error) {
	in.metrics.RecordMalformed()
	in.cfg.Logger.Warn("skipping malformed record", "line", line, "error", err)
}
