// Package sqlite keeps the panel's working session on disk. A CLI runs one
// process per command, so the selected table and every draft row are stored
// in a SQLite database under the data directory between invocations.
package sqlite

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/mesh-intelligence/libpanel/internal/editor"
	"github.com/mesh-intelligence/libpanel/internal/table"
)

// DBFileName is the session database inside the data directory.
const DBFileName = "session.db"

var (
	ErrAlreadyAttached = errors.New("session store already attached")
	ErrDetached        = errors.New("session store is not attached")
)

// Store persists a table.State.
type Store struct {
	mu       sync.RWMutex
	attached bool
	db       *sql.DB
	id       string
	now      func() time.Time
}

// NewStore creates a store. Call Attach before use.
func NewStore() *Store {
	return &Store{now: time.Now}
}

// Attach opens (or creates) the session database in dataDir.
func (s *Store) Attach(dataDir string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.attached {
		return ErrAlreadyAttached
	}
	if dataDir == "" {
		dataDir = "."
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	db, err := sql.Open("sqlite", filepath.Join(dataDir, DBFileName))
	if err != nil {
		return fmt.Errorf("open session db: %w", err)
	}
	// One connection keeps the database file consistent for a single process.
	db.SetMaxOpenConns(1)

	for _, ddl := range schemaDDL {
		if _, err := db.Exec(ddl); err != nil {
			db.Close()
			return fmt.Errorf("create session schema: %w", err)
		}
	}

	id, err := s.ensureSessionID(db)
	if err != nil {
		db.Close()
		return err
	}

	s.db = db
	s.id = id
	s.attached = true
	return nil
}

// Detach closes the database. Detach is idempotent.
func (s *Store) Detach() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.attached {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	s.attached = false
	return err
}

// SessionID returns the identifier generated when the session database was
// first created.
func (s *Store) SessionID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.id
}

func (s *Store) ensureSessionID(db *sql.DB) (string, error) {
	var id string
	err := db.QueryRow(`SELECT value FROM session WHERE key = ?`, keySessionID).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("read session id: %w", err)
	}

	id = generateUUID()
	_, err = db.Exec(`INSERT INTO session (key, value) VALUES (?, ?), (?, ?)`,
		keySessionID, id,
		keyCreatedAt, s.now().UTC().Format(time.RFC3339))
	if err != nil {
		return "", fmt.Errorf("write session id: %w", err)
	}
	return id, nil
}

// SaveState replaces the stored session with st in one transaction.
func (s *Store) SaveState(st table.State) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.attached {
		return ErrDetached
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin save: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`INSERT INTO session (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`, keyActiveTable, st.Table); err != nil {
		return fmt.Errorf("save active table: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM drafts`); err != nil {
		return fmt.Errorf("clear drafts: %w", err)
	}

	stmt, err := tx.Prepare(`INSERT INTO drafts
		(position, table_name, identity, dirty, deleted, generation, snapshot, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare draft insert: %w", err)
	}
	defer stmt.Close()

	now := s.now().UTC().Format(time.RFC3339)
	for i, snap := range st.Rows {
		data, err := json.Marshal(snap)
		if err != nil {
			return fmt.Errorf("encode draft %d: %w", i, err)
		}
		identity, err := json.Marshal(snap.Identity)
		if err != nil {
			return fmt.Errorf("encode draft %d identity: %w", i, err)
		}
		if _, err := stmt.Exec(i, snap.Table, string(identity),
			snap.Dirty, snap.Deleted, int64(snap.Generation), string(data), now); err != nil {
			return fmt.Errorf("insert draft %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit save: %w", err)
	}
	return nil
}

// LoadState returns the stored session. A fresh database yields an empty
// state with no table selected.
func (s *Store) LoadState() (table.State, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.attached {
		return table.State{}, ErrDetached
	}

	var st table.State
	err := s.db.QueryRow(`SELECT value FROM session WHERE key = ?`, keyActiveTable).Scan(&st.Table)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return table.State{}, fmt.Errorf("read active table: %w", err)
	}

	rows, err := s.db.Query(`SELECT snapshot FROM drafts ORDER BY position`)
	if err != nil {
		return table.State{}, fmt.Errorf("query drafts: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return table.State{}, fmt.Errorf("scan draft: %w", err)
		}
		var snap editor.Snapshot
		dec := json.NewDecoder(bytes.NewReader([]byte(data)))
		dec.UseNumber()
		if err := dec.Decode(&snap); err != nil {
			return table.State{}, fmt.Errorf("decode draft: %w", err)
		}
		// Drafts of another table are left over from an interrupted switch.
		if snap.Table != st.Table {
			continue
		}
		st.Rows = append(st.Rows, snap)
	}
	if err := rows.Err(); err != nil {
		return table.State{}, fmt.Errorf("read drafts: %w", err)
	}
	return st, nil
}

// PendingCount returns how many stored drafts are dirty.
func (s *Store) PendingCount() (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.attached {
		return 0, ErrDetached
	}
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM drafts WHERE dirty = 1`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count drafts: %w", err)
	}
	return n, nil
}

func generateUUID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New().String()
	}
	return id.String()
}
