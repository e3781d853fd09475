package db

import (
	"context"
	"fmt"

	"github.com/raphaelgruber/rowloader/internal/models"
	"github.com/surrealdb/surrealdb.go"
)

// countResult is the shape of a GROUP ALL count query.
type countResult struct {
	Count int64 `json:"count"`
}

// InsertRow creates one document in table from row.
// The store assigns the record ID, so inserting the same row twice yields
// two documents.
func (c *Client) InsertRow(ctx context.Context, table string, row models.Row) error {
	results, err := surrealdb.Query[[]map[string]any](ctx, c.db, `
		CREATE type::table($table) CONTENT $row
	`, map[string]any{
		"table": table,
		"row":   row.Document(),
	})
	if err != nil {
		return fmt.Errorf("insert row %d: %w", row.Line(), wrapQueryError(err))
	}
	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return fmt.Errorf("insert row %d: %w", row.Line(), ErrNotAcknowledged)
	}
	return nil
}

// CountRows returns the number of documents in table.
// If run is non-empty, only rows written by that load run are counted.
func (c *Client) CountRows(ctx context.Context, table, run string) (int64, error) {
	sql := `SELECT count() AS count FROM type::table($table) GROUP ALL`
	vars := map[string]any{"table": table}
	if run != "" {
		sql = `SELECT count() AS count FROM type::table($table) WHERE run = $run GROUP ALL`
		vars["run"] = run
	}

	results, err := surrealdb.Query[[]countResult](ctx, c.db, sql, vars)
	if err != nil {
		return 0, fmt.Errorf("count rows: %w", err)
	}
	// GROUP ALL over an empty table returns no rows
	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return 0, nil
	}
	return (*results)[0].Result[0].Count, nil
}

// CreateRun records the start of a load run.
func (c *Client) CreateRun(ctx context.Context, id, source, table string, workers int) error {
	_, err := surrealdb.Query[any](ctx, c.db, `
		CREATE type::record("load_run", $id) CONTENT {
			source: $source,
			table: $table,
			status: "running",
			workers: $workers,
			started_at: time::now()
		}
	`, map[string]any{
		"id":      id,
		"source":  source,
		"table":   table,
		"workers": workers,
	})
	if err != nil {
		return fmt.Errorf("create run: %w", wrapQueryError(err))
	}
	return nil
}

// UpdateRunCounts stores the current counters of a running load.
func (c *Client) UpdateRunCounts(ctx context.Context, id string, counts models.RunCounts) error {
	_, err := surrealdb.Query[any](ctx, c.db, `
		UPDATE type::record("load_run", $id) MERGE $counts
	`, map[string]any{"id": id, "counts": countsMap(counts)})
	if err != nil {
		return fmt.Errorf("update run counts: %w", err)
	}
	return nil
}

// CompleteRun marks a load run completed with its final counters.
func (c *Client) CompleteRun(ctx context.Context, id string, counts models.RunCounts) error {
	_, err := surrealdb.Query[any](ctx, c.db, `
		UPDATE type::record("load_run", $id) MERGE $counts;
		UPDATE type::record("load_run", $id) SET
			status = "completed",
			completed_at = time::now()
	`, map[string]any{"id": id, "counts": countsMap(counts)})
	if err != nil {
		return fmt.Errorf("complete run: %w", err)
	}
	return nil
}

// FailRun marks a load run failed. Counters gathered before the failure are kept.
func (c *Client) FailRun(ctx context.Context, id, errMsg string, counts models.RunCounts) error {
	_, err := surrealdb.Query[any](ctx, c.db, `
		UPDATE type::record("load_run", $id) MERGE $counts;
		UPDATE type::record("load_run", $id) SET
			status = "failed",
			error = $error,
			completed_at = time::now()
	`, map[string]any{"id": id, "error": errMsg, "counts": countsMap(counts)})
	if err != nil {
		return fmt.Errorf("fail run: %w", err)
	}
	return nil
}

// GetRun retrieves a load run by ID.
func (c *Client) GetRun(ctx context.Context, id string) (*models.LoadRun, error) {
	results, err := surrealdb.Query[[]models.LoadRun](ctx, c.db, `
		SELECT * FROM type::record("load_run", $id)
	`, map[string]any{"id": id})
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return nil, ErrNotFound
	}
	return &(*results)[0].Result[0], nil
}

// ListRuns returns the most recent load runs first.
// If status is non-empty, only runs in that status are returned.
func (c *Client) ListRuns(ctx context.Context, status string, limit int) ([]models.LoadRun, error) {
	if limit <= 0 {
		limit = 20
	}
	where := ""
	vars := map[string]any{"limit": limit}
	if status != "" {
		where = "WHERE status = $status"
		vars["status"] = status
	}

	sql := fmt.Sprintf(`SELECT * FROM load_run %s ORDER BY started_at DESC LIMIT $limit`, where)
	results, err := surrealdb.Query[[]models.LoadRun](ctx, c.db, sql, vars)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	if results == nil || len(*results) == 0 {
		return []models.LoadRun{}, nil
	}
	return (*results)[0].Result, nil
}

func countsMap(c models.RunCounts) map[string]any {
	return map[string]any{
		"success":         c.Success,
		"failure":         c.Failure,
		"retry_succeeded": c.RetrySucceeded,
		"retry_dropped":   c.RetryDropped,
		"malformed":       c.Malformed,
	}
}
