package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"mediacompress/internal/config"
	"mediacompress/internal/outcome"
)

// Store manages outcome history backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
	// retention bounds row age; ObserveCycle prunes older rows when positive.
	retention time.Duration
}

// Entry is one recorded file outcome.
type Entry struct {
	ID         int64
	CycleID    string
	Ordinal    int
	FileName   string
	InputPath  string
	OutputPath string
	Kind       string
	Status     outcome.Status
	Reason     string
	Detail     string
	Elapsed    time.Duration
	RecordedAt time.Time
}

// Outcome returns the entry's outcome value.
func (e Entry) Outcome() outcome.Outcome {
	return outcome.Outcome{Status: e.Status, Reason: e.Reason, Detail: e.Detail}
}

// Cycle is one recorded cycle summary.
type Cycle struct {
	ID           string
	StartedAt    time.Time
	FinishedAt   time.Time
	Total        int
	Processed    int
	Interrupted  bool
	MissingTools []string
}

// Open initializes or connects to the history database under the state directory.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}
	store, err := OpenPath(cfg.HistoryPath())
	if err != nil {
		return nil, err
	}
	store.retention = cfg.HistoryRetention()
	return store, nil
}

// OpenPath opens the database at dbPath.
func OpenPath(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create history directory: %w", err)
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// ObserveFile implements outcome.Observer. A retained input is reported as
// SkippedExists every cycle; only its latest such row is kept.
func (s *Store) ObserveFile(ctx context.Context, rec outcome.Record) error {
	ctx = context.WithoutCancel(ctx)
	recordedAt := rec.At
	if recordedAt.IsZero() {
		recordedAt = time.Now()
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin outcome tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if rec.Outcome.Status == outcome.StatusSkippedExists {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM outcomes WHERE input_path = ? AND status = ?`,
			rec.InputPath, string(outcome.StatusSkippedExists),
		); err != nil {
			return fmt.Errorf("collapse skipped outcomes: %w", err)
		}
	}
	_, err = tx.ExecContext(
		ctx,
		`INSERT INTO outcomes (
            cycle_id, ordinal, file_name, input_path, output_path, kind,
            status, reason, detail, elapsed_ms, recorded_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.CycleID,
		rec.Ordinal,
		rec.Name,
		rec.InputPath,
		nullableString(rec.OutputPath),
		rec.Kind.String(),
		string(rec.Outcome.Status),
		nullableString(rec.Outcome.Reason),
		nullableString(rec.Outcome.Detail),
		rec.Elapsed.Milliseconds(),
		formatTime(recordedAt),
	)
	if err != nil {
		return fmt.Errorf("insert outcome: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit outcome: %w", err)
	}
	return nil
}

// ObserveCycle implements outcome.Observer. With a retention configured, rows
// older than the retention are pruned after the cycle is recorded.
func (s *Store) ObserveCycle(ctx context.Context, sum outcome.Summary) error {
	ctx = context.WithoutCancel(ctx)
	finished := sum.Started.Add(sum.Duration)
	_, err := s.db.ExecContext(
		ctx,
		`INSERT OR REPLACE INTO cycles (
            id, started_at, finished_at, total, processed, interrupted, missing_tools
        ) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		sum.CycleID,
		formatTime(sum.Started),
		formatTime(finished),
		sum.Total,
		sum.Processed,
		boolToInt(sum.Interrupted),
		nullableString(strings.Join(sum.MissingTools, ",")),
	)
	if err != nil {
		return fmt.Errorf("insert cycle: %w", err)
	}
	if s.retention > 0 {
		if _, err := s.Prune(ctx, finished.Add(-s.retention)); err != nil {
			return err
		}
	}
	return nil
}

// Filter narrows Recent.
type Filter struct {
	Limit int
	// Status keeps only entries with this status when set.
	Status outcome.Status
	// File keeps only entries whose file name matches exactly when set.
	File string
}

// Recent returns the newest entries first.
func (s *Store) Recent(ctx context.Context, filter Filter) ([]Entry, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT id, cycle_id, ordinal, file_name, input_path, output_path, kind,
        status, reason, detail, elapsed_ms, recorded_at FROM outcomes`
	var (
		clauses []string
		args    []any
	)
	if filter.Status != "" {
		clauses = append(clauses, "status = ?")
		args = append(args, string(filter.Status))
	}
	if filter.File != "" {
		clauses = append(clauses, "file_name = ?")
		args = append(args, filter.File)
	}
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query outcomes: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			entry      Entry
			outputPath sql.NullString
			reason     sql.NullString
			detail     sql.NullString
			elapsedMS  int64
			status     string
			recorded   string
		)
		if err := rows.Scan(
			&entry.ID,
			&entry.CycleID,
			&entry.Ordinal,
			&entry.FileName,
			&entry.InputPath,
			&outputPath,
			&entry.Kind,
			&status,
			&reason,
			&detail,
			&elapsedMS,
			&recorded,
		); err != nil {
			return nil, err
		}
		entry.OutputPath = outputPath.String
		entry.Status = outcome.Status(status)
		entry.Reason = reason.String
		entry.Detail = detail.String
		entry.Elapsed = time.Duration(elapsedMS) * time.Millisecond
		entry.RecordedAt = parseTime(recorded)
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// Counts returns outcome counts grouped by status for entries recorded at or
// after since. A zero since counts everything.
func (s *Store) Counts(ctx context.Context, since time.Time) (map[outcome.Status]int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT status, COUNT(1) FROM outcomes WHERE recorded_at >= ? GROUP BY status`,
		formatTime(since),
	)
	if err != nil {
		return nil, fmt.Errorf("outcome counts: %w", err)
	}
	defer rows.Close()

	counts := make(map[outcome.Status]int)
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		counts[outcome.Status(status)] = count
	}
	return counts, rows.Err()
}

// LastCycle returns the most recently finished cycle, or nil when none was recorded.
func (s *Store) LastCycle(ctx context.Context) (*Cycle, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, started_at, finished_at, total, processed, interrupted, missing_tools
        FROM cycles ORDER BY finished_at DESC LIMIT 1`)
	var (
		cycle       Cycle
		started     string
		finished    string
		interrupted int
		missing     sql.NullString
	)
	err := row.Scan(&cycle.ID, &started, &finished, &cycle.Total, &cycle.Processed, &interrupted, &missing)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("last cycle: %w", err)
	}
	cycle.StartedAt = parseTime(started)
	cycle.FinishedAt = parseTime(finished)
	cycle.Interrupted = interrupted != 0
	if missing.String != "" {
		cycle.MissingTools = strings.Split(missing.String, ",")
	}
	return &cycle, nil
}

// Prune deletes outcomes and cycles recorded before cutoff and reports how
// many outcome rows were removed.
func (s *Store) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin prune tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stamp := formatTime(cutoff)
	res, err := tx.ExecContext(ctx, `DELETE FROM outcomes WHERE recorded_at < ?`, stamp)
	if err != nil {
		return 0, fmt.Errorf("prune outcomes: %w", err)
	}
	removed, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM cycles WHERE finished_at < ?`, stamp); err != nil {
		return 0, fmt.Errorf("prune cycles: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit prune: %w", err)
	}
	return removed, nil
}

// timestamps are stored as fixed-width UTC strings so they compare lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(raw string) time.Time {
	parsed, err := time.Parse(timeLayout, raw)
	if err != nil {
		return time.Time{}
	}
	return parsed
}

func nullableString(value string) any {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return value
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}
