package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// RunRecord is one row of the runs table: a durable summary of a single
// engine run, kept across process restarts even though turns.jsonl and
// state.json live under a run-specific directory on local disk.
type RunRecord struct {
	RunDir      string
	StartedAt   time.Time
	EndedAt     sql.NullTime
	LastSeq     int
	LastError   string
	TotalTokens int
}

// RunIndexRepository records one row per engine run so `vispanel health`
// and `vispanel doctor` can report on runs whose in-memory TurnStore state
// is gone after a restart, without replaying the whole turns.jsonl file.
type RunIndexRepository struct {
	db *sql.DB
}

// NewRunIndexRepository wraps an already-migrated database handle.
func NewRunIndexRepository(db *sql.DB) *RunIndexRepository {
	return &RunIndexRepository{db: db}
}

// StartRun inserts a new run row, or is a no-op if run_dir is already known.
func (r *RunIndexRepository) StartRun(ctx context.Context, runDir string, startedAt time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO runs (run_dir, started_at, last_seq, total_tokens)
		VALUES (?, ?, 0, 0)
		ON CONFLICT(run_dir) DO NOTHING
	`, runDir, startedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// UpdateProgress stamps the latest seq, last error kind (empty string
// clears it), and running token total for a run. Called after every
// TurnStore.Append so the row never falls far behind the journal.
func (r *RunIndexRepository) UpdateProgress(ctx context.Context, runDir string, lastSeq int, lastError string, totalTokens int) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE runs SET last_seq = ?, last_error = NULLIF(?, ''), total_tokens = ?
		WHERE run_dir = ?
	`, lastSeq, lastError, totalTokens, runDir)
	if err != nil {
		return fmt.Errorf("update run progress: %w", err)
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return fmt.Errorf("run not found: %s", runDir)
	}
	return nil
}

// EndRun stamps ended_at for a run that has stopped, e.g. on graceful
// shutdown of the `run` command.
func (r *RunIndexRepository) EndRun(ctx context.Context, runDir string, endedAt time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE runs SET ended_at = ? WHERE run_dir = ?
	`, endedAt.UTC().Format(time.RFC3339Nano), runDir)
	if err != nil {
		return fmt.Errorf("end run: %w", err)
	}
	return nil
}

// Find retrieves a single run by its directory.
func (r *RunIndexRepository) Find(ctx context.Context, runDir string) (*RunRecord, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT run_dir, started_at, ended_at, last_seq, last_error, total_tokens
		FROM runs WHERE run_dir = ?
	`, runDir)
	rec, err := scanRun(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("run not found: %s", runDir)
		}
		return nil, fmt.Errorf("scan run: %w", err)
	}
	return rec, nil
}

// Latest returns the most recently started run, or nil if none exist yet.
func (r *RunIndexRepository) Latest(ctx context.Context) (*RunRecord, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT run_dir, started_at, ended_at, last_seq, last_error, total_tokens
		FROM runs ORDER BY started_at DESC LIMIT 1
	`)
	rec, err := scanRun(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("scan run: %w", err)
	}
	return rec, nil
}

// List returns every recorded run, most recent first.
func (r *RunIndexRepository) List(ctx context.Context) ([]RunRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT run_dir, started_at, ended_at, last_seq, last_error, total_tokens
		FROM runs ORDER BY started_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var out []RunRecord
	for rows.Next() {
		rec, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(s rowScanner) (*RunRecord, error) {
	var (
		rec         RunRecord
		startedAt   string
		endedAt     sql.NullString
		lastError   sql.NullString
		lastSeq     sql.NullInt64
		totalTokens sql.NullInt64
	)
	if err := s.Scan(&rec.RunDir, &startedAt, &endedAt, &lastSeq, &lastError, &totalTokens); err != nil {
		return nil, err
	}
	parsed, err := time.Parse(time.RFC3339Nano, startedAt)
	if err != nil {
		return nil, fmt.Errorf("parse started_at: %w", err)
	}
	rec.StartedAt = parsed
	if endedAt.Valid {
		endedAtTime, err := time.Parse(time.RFC3339Nano, endedAt.String)
		if err != nil {
			return nil, fmt.Errorf("parse ended_at: %w", err)
		}
		rec.EndedAt = sql.NullTime{Time: endedAtTime, Valid: true}
	}
	rec.LastSeq = int(lastSeq.Int64)
	rec.LastError = lastError.String
	rec.TotalTokens = int(totalTokens.Int64)
	return &rec, nil
}
