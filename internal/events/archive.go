package events

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"fictionbridge/internal/logging"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is the current archive schema version. Bump this when the
// schema changes; older archives must be deleted.
const schemaVersion = 1

// ErrSchemaMismatch indicates the archive was written by a different schema.
var ErrSchemaMismatch = errors.New("schema version mismatch")

const appendTimeout = 5 * time.Second

// timeLayout is fixed width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// ArchivedEvent is an event read back from the archive.
type ArchivedEvent struct {
	Event
	SessionID string `json:"session_id"`
}

// Archive persists published events to SQLite so history survives daemon
// restarts and ring-buffer rollover. It implements Sink.
type Archive struct {
	db        *sql.DB
	path      string
	sessionID string
	logger    *slog.Logger
}

// OpenArchive opens (creating when needed) the archive at path. Events
// appended through this handle are tagged with sessionID.
func OpenArchive(path, sessionID string, logger *slog.Logger) (*Archive, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("open archive: path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("ensure archive dir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
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

	if logger == nil {
		logger = logging.NewNop()
	}
	archive := &Archive{
		db:        db,
		path:      path,
		sessionID: sessionID,
		logger:    logging.NewComponentLogger(logger, "events.archive"),
	}
	if err := archive.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return archive, nil
}

func (a *Archive) initSchema(ctx context.Context) error {
	var tableExists int
	err := a.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tableExists)
	if err != nil {
		return fmt.Errorf("check schema_version table: %w", err)
	}

	if tableExists == 0 {
		return a.createSchema(ctx)
	}

	var version int
	if err := a.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version != schemaVersion {
		return fmt.Errorf("%w: archive has version %d, expected %d (delete %s)",
			ErrSchemaMismatch, version, schemaVersion, a.path)
	}
	return nil
}

func (a *Archive) createSchema(ctx context.Context) error {
	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
		return fmt.Errorf("record schema version: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema: %w", err)
	}
	return nil
}

// Append stores evt. Failures are logged and otherwise ignored so a broken
// archive never stalls event delivery.
func (a *Archive) Append(evt Event) {
	if a == nil || a.db == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), appendTimeout)
	defer cancel()
	_, err := a.db.ExecContext(ctx,
		`INSERT INTO events (session_id, seq, name, payload, created_at) VALUES (?, ?, ?, ?, ?)`,
		a.sessionID,
		evt.Sequence,
		evt.Name,
		string(evt.Payload),
		evt.Timestamp.UTC().Format(timeLayout),
	)
	if err != nil {
		a.logger.Warn("event archive append failed",
			logging.String("event", evt.Name),
			logging.Error(err),
			logging.String(logging.FieldEventType, "event_archive_append_failed"),
			logging.String(logging.FieldErrorHint, "check disk space and permissions for the state directory"),
		)
	}
}

// Recent returns up to limit archived events, newest first. An empty name
// matches every event.
func (a *Archive) Recent(ctx context.Context, name string, limit int) ([]ArchivedEvent, error) {
	if a == nil || a.db == nil {
		return nil, nil
	}
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT session_id, seq, name, payload, created_at FROM events`
	args := []any{}
	if name = strings.TrimSpace(name); name != "" {
		query += ` WHERE name = ?`
		args = append(args, name)
	}
	query += ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := a.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var out []ArchivedEvent
	for rows.Next() {
		var (
			evt       ArchivedEvent
			payload   string
			createdAt string
		)
		if err := rows.Scan(&evt.SessionID, &evt.Sequence, &evt.Name, &payload, &createdAt); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		evt.Payload = []byte(payload)
		if ts, err := time.Parse(timeLayout, createdAt); err == nil {
			evt.Timestamp = ts
		}
		out = append(out, evt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return out, nil
}

// Prune deletes events recorded before cutoff and reports how many were removed.
func (a *Archive) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	if a == nil || a.db == nil {
		return 0, nil
	}
	res, err := a.db.ExecContext(ctx,
		`DELETE FROM events WHERE created_at < ?`,
		cutoff.UTC().Format(timeLayout),
	)
	if err != nil {
		return 0, fmt.Errorf("prune events: %w", err)
	}
	return res.RowsAffected()
}

// Path returns the on-disk location backing the archive.
func (a *Archive) Path() string {
	if a == nil {
		return ""
	}
	return a.path
}

// Close closes the underlying database connection.
func (a *Archive) Close() error {
	if a == nil || a.db == nil {
		return nil
	}
	return a.db.Close()
}
