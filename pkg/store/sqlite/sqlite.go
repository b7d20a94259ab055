// Package sqlite provides a SQLite-backed store driver using the
// github.com/mattn/go-sqlite3 driver. Conversation records are kept as
// JSON documents alongside the columns the query paths filter on.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/spoolhq/spool/pkg/archive"
	"github.com/spoolhq/spool/pkg/store"
)

const schema = `
CREATE TABLE IF NOT EXISTS conversations (
	id             TEXT PRIMARY KEY,
	created_at     INTEGER NOT NULL,
	customer_email TEXT NOT NULL DEFAULT '',
	message_count  INTEGER NOT NULL DEFAULT 0,
	data           TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_conversations_created_at
	ON conversations (created_at DESC);

CREATE TABLE IF NOT EXISTS sync_meta (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
`

const lastSyncKey = "last_sync_at"

// Driver implements store.Driver backed by SQLite.
type Driver struct {
	db *sql.DB
}

// NewDriver opens (or creates) the database at dbPath and ensures the
// schema exists. The dbPath can be ":memory:" for an in-memory database.
func NewDriver(ctx context.Context, dbPath string) (*Driver, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode = WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set journal mode: %w", err)
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &Driver{db: db}, nil
}

func (d *Driver) UpsertConversations(ctx context.Context, convs []archive.Conversation) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO conversations (id, created_at, customer_email, message_count, data)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			created_at = excluded.created_at,
			customer_email = excluded.customer_email,
			message_count = excluded.message_count,
			data = excluded.data`)
	if err != nil {
		return fmt.Errorf("preparing upsert: %w", err)
	}
	defer stmt.Close()

	for _, c := range convs {
		data, err := json.Marshal(c)
		if err != nil {
			return fmt.Errorf("encoding conversation %s: %w", c.ID, err)
		}
		if _, err := stmt.ExecContext(ctx,
			c.ID, c.CreatedAt.Unix(), c.CustomerEmail, len(c.Messages), string(data),
		); err != nil {
			return fmt.Errorf("upserting conversation %s: %w", c.ID, err)
		}
	}

	return tx.Commit()
}

func (d *Driver) QueryConversations(ctx context.Context, filters archive.Filters) ([]archive.Conversation, error) {
	query := "SELECT data FROM conversations WHERE 1=1"
	var args []any

	if filters.StartTime != nil {
		query += " AND created_at >= ?"
		args = append(args, filters.StartTime.Unix())
	}
	if filters.EndTime != nil {
		query += " AND created_at < ?"
		args = append(args, filters.EndTime.Unix())
	}
	if filters.CustomerEmail != "" {
		query += " AND customer_email = ?"
		args = append(args, filters.CustomerEmail)
	}
	query += " ORDER BY created_at DESC"

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying conversations: %w", err)
	}
	defer rows.Close()

	// Tag matching happens here rather than in SQL, so the limit is
	// applied after filtering.
	limit := filters.EffectiveLimit()
	var out []archive.Conversation
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}

		var conv archive.Conversation
		if err := json.Unmarshal([]byte(data), &conv); err != nil {
			return nil, fmt.Errorf("decoding stored conversation: %w", err)
		}
		if !store.MatchesTags(&conv, filters.Tags) {
			continue
		}

		out = append(out, conv)
		if len(out) >= limit {
			break
		}
	}

	return out, rows.Err()
}

func (d *Driver) GetConversation(ctx context.Context, id string) (*archive.Conversation, error) {
	var data string
	err := d.db.QueryRowContext(ctx,
		"SELECT data FROM conversations WHERE id = ?", id,
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.NotFoundError{ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("querying conversation %s: %w", id, err)
	}

	var conv archive.Conversation
	if err := json.Unmarshal([]byte(data), &conv); err != nil {
		return nil, fmt.Errorf("decoding stored conversation: %w", err)
	}
	return &conv, nil
}

func (d *Driver) Count(ctx context.Context) (int, error) {
	var n int
	if err := d.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM conversations").Scan(&n); err != nil {
		return 0, fmt.Errorf("counting conversations: %w", err)
	}
	return n, nil
}

func (d *Driver) LastSyncAt(ctx context.Context) (*time.Time, error) {
	var value string
	err := d.db.QueryRowContext(ctx,
		"SELECT value FROM sync_meta WHERE key = ?", lastSyncKey,
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying last sync: %w", err)
	}

	unix, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parsing last sync value %q: %w", value, err)
	}
	t := time.Unix(unix, 0).UTC()
	return &t, nil
}

func (d *Driver) SetLastSyncAt(ctx context.Context, t time.Time) error {
	_, err := d.db.ExecContext(ctx, `
		INSERT INTO sync_meta (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		lastSyncKey, strconv.FormatInt(t.Unix(), 10),
	)
	if err != nil {
		return fmt.Errorf("recording last sync: %w", err)
	}
	return nil
}

func (d *Driver) Stats(ctx context.Context) (store.Stats, error) {
	var stats store.Stats
	err := d.db.QueryRowContext(ctx,
		"SELECT COUNT(*), COALESCE(SUM(message_count), 0) FROM conversations",
	).Scan(&stats.Conversations, &stats.Messages)
	if err != nil {
		return store.Stats{}, fmt.Errorf("querying stats: %w", err)
	}

	last, err := d.LastSyncAt(ctx)
	if err != nil {
		return store.Stats{}, err
	}
	stats.LastSyncAt = last

	return stats, nil
}

// Close closes the underlying database.
func (d *Driver) Close() error {
	return d.db.Close()
}
