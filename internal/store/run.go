package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// Status is the outcome of one run.
type Status string

const (
	StatusOK      Status = "ok"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
)

// Run records one invocation of the pass over one unit.
type Run struct {
	ID             string           `json:"id"`
	Unit           string           `json:"unit"`
	InputHash      string           `json:"input_hash"`
	OutputHash     string           `json:"output_hash,omitempty"`
	Status         Status           `json:"status"`
	Rewrites       int64            `json:"rewrites"`
	Counts         map[string]int64 `json:"counts,omitempty"`
	Error          string           `json:"error,omitempty"`
	LibraryVersion string           `json:"library_version,omitempty"`
	PassVersion    string           `json:"pass_version"`
	Seq            int64            `json:"seq"`
}

// WriteRun appends a run record.
// Uses ON CONFLICT(id) DO NOTHING, so rewriting the same run is a no-op.
func (s *Store) WriteRun(ctx context.Context, run Run) error {
	switch run.Status {
	case StatusOK, StatusFailed, StatusSkipped:
	default:
		return fmt.Errorf("write run: invalid status %q", run.Status)
	}
	counts, err := marshalCounts(run.Counts)
	if err != nil {
		return fmt.Errorf("write run: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO runs
		(id, unit, input_hash, output_hash, status, rewrites, stats, error, library_version, pass_version, seq)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		run.ID,
		run.Unit,
		run.InputHash,
		run.OutputHash,
		string(run.Status),
		run.Rewrites,
		counts,
		run.Error,
		run.LibraryVersion,
		run.PassVersion,
		run.Seq,
	)
	if err != nil {
		return fmt.Errorf("write run: %w", err)
	}
	return nil
}

const runColumns = `id, unit, input_hash, output_hash, status, rewrites, stats, error, library_version, pass_version, seq`

// ReadRuns returns the runs of unit ordered by seq ASC, id ASC.
// An empty unit returns every run. Returns an empty slice, not nil, when
// there are none.
func (s *Store) ReadRuns(ctx context.Context, unit string) ([]Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs`
	var args []any
	if unit != "" {
		query += ` WHERE unit = ?`
		args = append(args, unit)
	}
	query += ` ORDER BY seq ASC, id COLLATE BINARY ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// LastOutput returns the most recent successful run of unit.
// The boolean is false when the unit has never been transformed.
func (s *Store) LastOutput(ctx context.Context, unit string) (Run, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+runColumns+`
		FROM runs
		WHERE unit = ? AND status = ?
		ORDER BY seq DESC, id COLLATE BINARY DESC
		LIMIT 1
	`, unit, string(StatusOK))

	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, false, nil
	}
	if err != nil {
		return Run{}, false, err
	}
	return run, true, nil
}

// NextSeq returns one past the highest recorded seq.
// Callers seed a Clock with NextSeq()-1 so concurrent writers stay ordered.
func (s *Store) NextSeq(ctx context.Context) (int64, error) {
	var last sql.NullInt64
	if err := s.db.QueryRowContext(ctx, `SELECT MAX(seq) FROM runs`).Scan(&last); err != nil {
		return 0, fmt.Errorf("next seq: %w", err)
	}
	return last.Int64 + 1, nil
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (Run, error) {
	var (
		run    Run
		status string
		counts string
	)
	err := sc.Scan(
		&run.ID,
		&run.Unit,
		&run.InputHash,
		&run.OutputHash,
		&status,
		&run.Rewrites,
		&counts,
		&run.Error,
		&run.LibraryVersion,
		&run.PassVersion,
		&run.Seq,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, err
	}
	if err != nil {
		return Run{}, fmt.Errorf("scan run: %w", err)
	}
	run.Status = Status(status)
	if run.Counts, err = unmarshalCounts(counts); err != nil {
		return Run{}, err
	}
	return run, nil
}
