// Package journal is a SQLite-backed source of timestamped entries for
// one data owner. It feeds the short-window distribution computation and
// produces the dataset fingerprint used in pairing keys.
package journal

import (
	"context"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"golang.org/x/crypto/blake2b"

	"observer/internal/distribution"
)

var (
	// ErrNotFound is returned when no entry has the requested ID.
	ErrNotFound = errors.New("journal: entry not found")

	// ErrInvalidEntry is returned for entries without an ID or with a
	// timestamp that is not RFC 3339.
	ErrInvalidEntry = errors.New("journal: invalid entry")
)

// Journal is an open entry database.
type Journal struct {
	db *sql.DB
}

// Open opens or creates the journal at path and applies pending migrations.
func Open(path string) (*Journal, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create journal directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Journal{db: db}, nil
}

// Close closes the database connection.
func (j *Journal) Close() error {
	if j.db != nil {
		return j.db.Close()
	}
	return nil
}

// Ping checks that the database answers and its schema is current.
func (j *Journal) Ping(ctx context.Context) error {
	if err := j.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping journal: %w", err)
	}
	v, err := schemaVersion(j.db)
	if err != nil {
		return err
	}
	if want := migrations[len(migrations)-1].Version; v != want {
		return fmt.Errorf("journal schema version %d, want %d", v, want)
	}
	return nil
}

const upsertEntry = `
	INSERT INTO entries (id, created_at, created_ns, plaintext) VALUES (?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET created_at = excluded.created_at,
		created_ns = excluded.created_ns, plaintext = excluded.plaintext`

// Insert adds or replaces an entry.
func (j *Journal) Insert(e distribution.Entry) error {
	return j.InsertAll([]distribution.Entry{e})
}

// InsertAll adds entries in one transaction.
func (j *Journal) InsertAll(entries []distribution.Entry) error {
	tx, err := j.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(upsertEntry)
	if err != nil {
		return fmt.Errorf("prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, e := range entries {
		if e.ID == "" {
			return fmt.Errorf("%w: empty id", ErrInvalidEntry)
		}
		t, err := time.Parse(time.RFC3339Nano, e.CreatedAt)
		if err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInvalidEntry, e.ID, err)
		}
		if _, err := stmt.Exec(e.ID, e.CreatedAt, t.UnixNano(), e.Plaintext); err != nil {
			return fmt.Errorf("insert entry %s: %w", e.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// Get returns the entry with the given ID.
func (j *Journal) Get(id string) (distribution.Entry, error) {
	var e distribution.Entry
	err := j.db.QueryRow(`SELECT id, created_at, plaintext FROM entries WHERE id = ?`, id).
		Scan(&e.ID, &e.CreatedAt, &e.Plaintext)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return distribution.Entry{}, ErrNotFound
		}
		return distribution.Entry{}, fmt.Errorf("get entry: %w", err)
	}
	return e, nil
}

// EntriesBetween returns entries created in [start, end], oldest first.
func (j *Journal) EntriesBetween(start, end time.Time) ([]distribution.Entry, error) {
	rows, err := j.db.Query(`
		SELECT id, created_at, plaintext FROM entries
		WHERE created_ns >= ? AND created_ns <= ?
		ORDER BY created_ns, id`, start.UnixNano(), end.UnixNano())
	if err != nil {
		return nil, fmt.Errorf("query entries: %w", err)
	}
	defer rows.Close()

	entries := []distribution.Entry{}
	for rows.Next() {
		var e distribution.Entry
		if err := rows.Scan(&e.ID, &e.CreatedAt, &e.Plaintext); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate entries: %w", err)
	}
	return entries, nil
}

// Count returns the number of entries.
func (j *Journal) Count() (int64, error) {
	var n int64
	if err := j.db.QueryRow("SELECT COUNT(*) FROM entries").Scan(&n); err != nil {
		return 0, fmt.Errorf("count entries: %w", err)
	}
	return n, nil
}

// Fingerprint is a hex blake2b-256 digest over every entry's ID and
// timestamp in creation order. It changes whenever an entry is added,
// removed or re-timed, and ignores entry text.
func (j *Journal) Fingerprint() (string, error) {
	h, err := blake2b.New256(nil)
	if err != nil {
		return "", fmt.Errorf("init hash: %w", err)
	}

	rows, err := j.db.Query(`SELECT id, created_ns FROM entries ORDER BY created_ns, id`)
	if err != nil {
		return "", fmt.Errorf("query entries: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		var ns int64
		if err := rows.Scan(&id, &ns); err != nil {
			return "", fmt.Errorf("scan entry: %w", err)
		}
		fmt.Fprintf(h, "%s\x00%d\n", id, ns)
	}
	if err := rows.Err(); err != nil {
		return "", fmt.Errorf("iterate entries: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Delete removes an entry.
func (j *Journal) Delete(id string) error {
	res, err := j.db.Exec("DELETE FROM entries WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete entry: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete entry: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
