// Package save stores machine snapshots in SQLite.
package save

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/chazu/scmvm/vm"
)

// ErrNotFound indicates the requested save doesn't exist
var ErrNotFound = errors.New("save not found")

// Record is one stored snapshot.
type Record struct {
	ID        uuid.UUID
	Slot      string
	Script    string
	Ticks     uint64
	CreatedAt time.Time
	Data      []byte // CBOR-encoded vm.Snapshot
}

// Snapshot decodes the stored machine state.
func (r *Record) Snapshot() (*vm.Snapshot, error) {
	return vm.UnmarshalSnapshot(r.Data)
}

// Store handles SQLite storage for snapshots
type Store struct {
	db   *sql.DB
	path string
	mu   sync.Mutex
}

// Open opens or creates the database at path.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating save directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Set busy timeout for concurrent access
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS saves (
		id TEXT PRIMARY KEY,
		slot TEXT NOT NULL,
		script TEXT NOT NULL,
		ticks INTEGER NOT NULL,
		created_at INTEGER NOT NULL,
		data BLOB NOT NULL
	)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating table: %w", err)
	}

	return &Store{db: db, path: path}, nil
}

// Path returns the database file.
func (s *Store) Path() string { return s.path }

// Close closes the database connection
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Put stores snap under slot and returns the new record id.
func (s *Store) Put(slot, script string, snap *vm.Snapshot) (uuid.UUID, error) {
	data, err := vm.MarshalSnapshot(snap)
	if err != nil {
		return uuid.Nil, fmt.Errorf("encoding snapshot: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id := uuid.New()
	_, err = s.db.Exec(
		"INSERT INTO saves (id, slot, script, ticks, created_at, data) VALUES (?, ?, ?, ?, ?, ?)",
		id.String(), slot, script, int64(snap.Ticks), time.Now().UnixNano(), data,
	)
	if err != nil {
		return uuid.Nil, fmt.Errorf("saving snapshot: %w", err)
	}
	return id, nil
}

const selectRecord = "SELECT id, slot, script, ticks, created_at, data FROM saves"

// Get retrieves a record by id.
func (s *Store) Get(id uuid.UUID) (*Record, error) {
	return s.queryOne(selectRecord+" WHERE id = ?", id.String())
}

// Latest retrieves the most recent record in slot.
func (s *Store) Latest(slot string) (*Record, error) {
	return s.queryOne(selectRecord+" WHERE slot = ? ORDER BY created_at DESC, rowid DESC LIMIT 1", slot)
}

// List returns every record in slot, newest first. An empty slot lists all.
func (s *Store) List(slot string) ([]Record, error) {
	query := selectRecord
	var args []any
	if slot != "" {
		query += " WHERE slot = ?"
		args = append(args, slot)
	}
	rows, err := s.db.Query(query+" ORDER BY created_at DESC, rowid DESC", args...)
	if err != nil {
		return nil, fmt.Errorf("listing saves: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

// Delete removes a record.
func (s *Store) Delete(id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec("DELETE FROM saves WHERE id = ?", id.String())
	if err != nil {
		return fmt.Errorf("deleting save: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) queryOne(query string, args ...any) (*Record, error) {
	r, err := scanRecord(s.db.QueryRow(query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return r, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (*Record, error) {
	var (
		r       Record
		id      string
		ticks   int64
		created int64
	)
	if err := row.Scan(&id, &r.Slot, &r.Script, &ticks, &created, &r.Data); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("querying save: %w", err)
	}
	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("save id %q: %w", id, err)
	}
	r.ID = parsed
	r.Ticks = uint64(ticks)
	r.CreatedAt = time.Unix(0, created)
	return &r, nil
}
