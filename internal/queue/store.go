package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"scribe/internal/config"
)

// Store manages task persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the task database and applies the schema.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}
	return OpenPath(cfg.DatabasePath())
}

// OpenPath opens a task database at an explicit location.
func OpenPath(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &Store{db: db, path: dbPath}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

// Insert creates a pending task. Exactly one of file and url must be
// non-empty and owner must be a syntactically valid mail address, otherwise
// ErrValidation is returned.
func (s *Store) Insert(ctx context.Context, owner, file, url string) (*Task, error) {
	owner = strings.TrimSpace(owner)
	file = strings.TrimSpace(file)
	url = strings.TrimSpace(url)

	if owner == "" {
		return nil, fmt.Errorf("%w: owner address required", ErrValidation)
	}
	if _, err := mail.ParseAddress(owner); err != nil {
		return nil, fmt.Errorf("%w: owner address %q: %v", ErrValidation, owner, err)
	}
	if file == "" && url == "" {
		return nil, fmt.Errorf("%w: source required", ErrValidation)
	}
	if file != "" && url != "" {
		return nil, fmt.Errorf("%w: file and url are mutually exclusive", ErrValidation)
	}

	res, err := s.db.ExecContext(
		ctx,
		`INSERT INTO tasks (owner, file, url, done, created_at) VALUES (?, ?, ?, 0, ?)`,
		owner,
		nullableString(file),
		nullableString(url),
		formatTime(time.Now().UTC()),
	)
	if err != nil {
		return nil, fmt.Errorf("insert task: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.Get(ctx, id)
}

// Get fetches a task by identifier.
func (s *Store) Get(ctx context.Context, id int64) (*Task, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id)
	task, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("task %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}
	return task, nil
}

// ClaimNextBatch returns all eligible tasks ordered oldest-first and marks
// each as started inside the same transaction. A task returned by one call is
// never returned by a later call.
func (s *Store) ClaimNextBatch(ctx context.Context) ([]*Task, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin claim: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	rows, err := tx.QueryContext(
		ctx,
		`SELECT `+taskColumns+` FROM tasks
         WHERE started_at IS NULL AND done = 0 AND failed_at IS NULL
         ORDER BY created_at, id`,
	)
	if err != nil {
		return nil, fmt.Errorf("select eligible tasks: %w", err)
	}

	var tasks []*Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan eligible task: %w", err)
		}
		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("iterate eligible tasks: %w", err)
	}
	rows.Close()

	now := time.Now().UTC()
	stamp := formatTime(now)
	for _, task := range tasks {
		res, err := tx.ExecContext(
			ctx,
			`UPDATE tasks SET started_at = ? WHERE id = ? AND started_at IS NULL`,
			stamp,
			task.ID,
		)
		if err != nil {
			return nil, fmt.Errorf("mark task %d started: %w", task.ID, err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return nil, fmt.Errorf("claim rows affected: %w", err)
		}
		if affected == 0 {
			// Another claimer won the race inside an overlapping
			// transaction; the batch is abandoned and re-polled.
			return nil, fmt.Errorf("task %d already claimed", task.ID)
		}
		started := now
		task.StartedAt = &started
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit claim: %w", err)
	}
	return tasks, nil
}

// UpdateSourceFile records the local filename produced by acquisition.
func (s *Store) UpdateSourceFile(ctx context.Context, id int64, filename string) error {
	return s.execOne(ctx, id, `UPDATE tasks SET file = ? WHERE id = ?`, filename, id)
}

// UpdateResult persists transcription output and stamps finished_at.
func (s *Store) UpdateResult(ctx context.Context, id int64, text, subtitles string) error {
	return s.execOne(
		ctx,
		id,
		`UPDATE tasks SET result_text = ?, result_subtitles = ?, finished_at = ?, last_error = NULL WHERE id = ?`,
		text,
		subtitles,
		formatTime(time.Now().UTC()),
		id,
	)
}

// MarkDone records that the full pipeline, including notification, completed.
func (s *Store) MarkDone(ctx context.Context, id int64) error {
	return s.execOne(ctx, id, `UPDATE tasks SET done = 1 WHERE id = ?`, id)
}

// ReleaseForRetry returns a claimed task to the eligible pool after a stage
// failure, recording the error and incrementing the attempt counter.
func (s *Store) ReleaseForRetry(ctx context.Context, id int64, message string) error {
	return s.execOne(
		ctx,
		id,
		`UPDATE tasks SET started_at = NULL, attempts = attempts + 1, last_error = ? WHERE id = ?`,
		strings.TrimSpace(message),
		id,
	)
}

// ReleaseClaim returns a claimed, unfinished task to the pending pool
// without counting an attempt. Used when processing is interrupted before
// the task's stages could run to completion.
func (s *Store) ReleaseClaim(ctx context.Context, id int64) error {
	return s.execOne(
		ctx,
		id,
		`UPDATE tasks SET started_at = NULL
         WHERE id = ? AND started_at IS NOT NULL AND finished_at IS NULL AND done = 0 AND failed_at IS NULL`,
		id,
	)
}

// MarkFailed terminally fails a task after its attempts are exhausted or the
// failure is not retryable.
func (s *Store) MarkFailed(ctx context.Context, id int64, message string) error {
	return s.execOne(
		ctx,
		id,
		`UPDATE tasks SET attempts = attempts + 1, last_error = ?, failed_at = ? WHERE id = ?`,
		strings.TrimSpace(message),
		formatTime(time.Now().UTC()),
		id,
	)
}

// RecordNotifyFailure logs a failed notification attempt without touching the
// persisted result.
func (s *Store) RecordNotifyFailure(ctx context.Context, id int64, message string) error {
	return s.execOne(
		ctx,
		id,
		`UPDATE tasks SET notify_attempts = notify_attempts + 1, last_error = ? WHERE id = ?`,
		strings.TrimSpace(message),
		id,
	)
}

// NotifyBacklog returns finished tasks whose owner has not been notified yet
// and that still have notification attempts left, oldest-first.
func (s *Store) NotifyBacklog(ctx context.Context, maxAttempts int) ([]*Task, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+taskColumns+` FROM tasks
         WHERE finished_at IS NOT NULL AND done = 0 AND failed_at IS NULL AND notify_attempts < ?
         ORDER BY created_at, id`,
		maxAttempts,
	)
	if err != nil {
		return nil, fmt.Errorf("query notify backlog: %w", err)
	}
	defer rows.Close()
	return collectTasks(rows)
}

// List returns all tasks newest-first for the results listing.
func (s *Store) List(ctx context.Context) ([]*Task, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+taskColumns+` FROM tasks ORDER BY created_at DESC, id DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()
	return collectTasks(rows)
}

// PendingCount returns the number of tasks still waiting to be claimed.
func (s *Store) PendingCount(ctx context.Context) (int, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT COUNT(1) FROM tasks WHERE started_at IS NULL AND done = 0 AND failed_at IS NULL`,
	)
	var count int
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("count pending tasks: %w", err)
	}
	return count, nil
}

// AggregateStats computes history aggregates for the statistics view: how
// many tasks finished, total and average processing time (finished - created),
// and how many tasks are started but unfinished.
func (s *Store) AggregateStats(ctx context.Context) (Stats, error) {
	stats := Stats{}

	rows, err := s.db.QueryContext(
		ctx,
		`SELECT created_at, finished_at FROM tasks WHERE finished_at IS NOT NULL`,
	)
	if err != nil {
		return stats, fmt.Errorf("query finished tasks: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var createdRaw, finishedRaw string
		if err := rows.Scan(&createdRaw, &finishedRaw); err != nil {
			return stats, fmt.Errorf("scan finished task: %w", err)
		}
		created, err := parseTimeString(createdRaw)
		if err != nil {
			continue
		}
		finished, err := parseTimeString(finishedRaw)
		if err != nil {
			continue
		}
		stats.Finished++
		stats.TotalDuration += finished.Sub(created)
	}
	if err := rows.Err(); err != nil {
		return stats, fmt.Errorf("iterate finished tasks: %w", err)
	}
	if stats.Finished > 0 {
		stats.AvgDuration = stats.TotalDuration / time.Duration(stats.Finished)
	}

	row := s.db.QueryRowContext(
		ctx,
		`SELECT COUNT(1) FROM tasks WHERE started_at IS NOT NULL AND finished_at IS NULL`,
	)
	if err := row.Scan(&stats.InFlight); err != nil {
		return stats, fmt.Errorf("count in-flight tasks: %w", err)
	}

	return stats, nil
}

// execOne runs a single-row update and maps a zero-row result to ErrNotFound.
func (s *Store) execOne(ctx context.Context, id int64, query string, args ...any) error {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update task %d: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("task %d: %w", id, ErrNotFound)
	}
	return nil
}

const taskColumns = "id, owner, file, url, result_text, result_subtitles, done, attempts, notify_attempts, last_error, created_at, started_at, finished_at, failed_at"

func scanTask(scanner interface{ Scan(dest ...any) error }) (*Task, error) {
	var (
		id          int64
		owner       string
		file        sql.NullString
		url         sql.NullString
		resultText  sql.NullString
		resultSubs  sql.NullString
		done        int64
		attempts    int64
		notifyTries int64
		lastError   sql.NullString
		createdRaw  string
		startedRaw  sql.NullString
		finishedRaw sql.NullString
		failedRaw   sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&owner,
		&file,
		&url,
		&resultText,
		&resultSubs,
		&done,
		&attempts,
		&notifyTries,
		&lastError,
		&createdRaw,
		&startedRaw,
		&finishedRaw,
		&failedRaw,
	); err != nil {
		return nil, err
	}

	task := &Task{
		ID:              id,
		Owner:           owner,
		File:            file.String,
		URL:             url.String,
		ResultText:      resultText.String,
		ResultSubtitles: resultSubs.String,
		Done:            done != 0,
		Attempts:        int(attempts),
		NotifyAttempts:  int(notifyTries),
		LastError:       lastError.String,
	}

	created, err := parseTimeString(createdRaw)
	if err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	task.CreatedAt = created
	task.StartedAt = parseNullableTime(startedRaw)
	task.FinishedAt = parseNullableTime(finishedRaw)
	task.FailedAt = parseNullableTime(failedRaw)
	return task, nil
}

func collectTasks(rows *sql.Rows) ([]*Task, error) {
	var tasks []*Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, task)
	}
	return tasks, rows.Err()
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func formatTime(value time.Time) string {
	return value.UTC().Format(time.RFC3339Nano)
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

func parseNullableTime(value sql.NullString) *time.Time {
	if !value.Valid {
		return nil
	}
	t, err := parseTimeString(value.String)
	if err != nil {
		return nil
	}
	return &t
}
