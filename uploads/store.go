package uploads

import (
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

var ErrNotStored = errors.New("no stored file by that name")

// Store keeps uploaded files on disk under generated unique names,
// with a metadata row per file. Rooms do not survive a restart, so
// Sweep clears everything left over from a previous process.
type Store struct {
	dir string
	db  *sql.DB
}

// StoredFile describes one accepted upload. Name is the internal
// storage ref; URL is the public reference sent to clients.
type StoredFile struct {
	Name         string
	URL          string
	OriginalName string
}

func NewStore(dir string, database *sql.DB) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	store := &Store{dir: dir, db: database}
	if err := store.ensureSchema(); err != nil {
		return nil, err
	}
	return store, nil
}

func (s *Store) ensureSchema() error {
	query := `
		CREATE TABLE IF NOT EXISTS uploads (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			stored_name TEXT NOT NULL UNIQUE,
			original_name TEXT NOT NULL,
			room_name TEXT NOT NULL,
			sender_id TEXT NOT NULL,
			created_at TEXT NOT NULL DEFAULT (datetime('now'))
		)
	`
	_, err := s.db.Exec(query)
	return err
}

// Save writes the file under a generated unique name and records its
// metadata. The original name only survives in the metadata row and
// the broadcast payload, never in the path.
func (s *Store) Save(src io.Reader, originalName, roomName, senderID string) (StoredFile, error) {
	storedName := uuid.New().String() + sanitizeExt(originalName)

	dst, err := os.Create(filepath.Join(s.dir, storedName))
	if err != nil {
		return StoredFile{}, err
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		os.Remove(dst.Name())
		return StoredFile{}, err
	}
	if err := dst.Close(); err != nil {
		os.Remove(dst.Name())
		return StoredFile{}, err
	}

	query := `INSERT INTO uploads (stored_name, original_name, room_name, sender_id) VALUES (?, ?, ?, ?)`
	if _, err := s.db.Exec(query, storedName, originalName, roomName, senderID); err != nil {
		os.Remove(filepath.Join(s.dir, storedName))
		return StoredFile{}, fmt.Errorf("error recording upload metadata: %v", err)
	}

	return StoredFile{
		Name:         storedName,
		URL:          "/uploads/" + storedName,
		OriginalName: originalName,
	}, nil
}

// Resolve maps a stored name to its on-disk path. The metadata row is
// authoritative; names that never went through Save are refused, which
// also blocks path traversal.
func (s *Store) Resolve(storedName string) (string, error) {
	if storedName != filepath.Base(storedName) || storedName == "." || storedName == "" {
		return "", ErrNotStored
	}
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM uploads WHERE stored_name = ?`, storedName).Scan(&count)
	if err != nil {
		return "", err
	}
	if count == 0 {
		return "", ErrNotStored
	}
	return filepath.Join(s.dir, storedName), nil
}

// Remove deletes the backing file and its metadata row. Used for the
// fire-and-forget cleanup path; callers log failures and move on.
func (s *Store) Remove(storedName string) error {
	if storedName != filepath.Base(storedName) || storedName == "" {
		return ErrNotStored
	}
	if _, err := s.db.Exec(`DELETE FROM uploads WHERE stored_name = ?`, storedName); err != nil {
		return err
	}
	if err := os.Remove(filepath.Join(s.dir, storedName)); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// Sweep clears every stored file and metadata row. Called once at
// startup: the rooms that owned these files died with the previous
// process.
func (s *Store) Sweep() (int, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if err := os.Remove(filepath.Join(s.dir, entry.Name())); err == nil {
			removed++
		}
	}
	if _, err := s.db.Exec(`DELETE FROM uploads`); err != nil {
		return removed, err
	}
	return removed, nil
}

func sanitizeExt(name string) string {
	ext := strings.ToLower(filepath.Ext(filepath.Base(name)))
	if len(ext) > 16 || strings.ContainsAny(ext, "/\\") {
		return ""
	}
	return ext
}
