// Package store persists serialized docsets in SQLite.
//
// Each row holds one docset: its id, the BLAKE3 hash and size of the
// serialized JSON, the xz-compressed JSON itself and the time of the last
// write. Load recomputes the hash and refuses rows that do not match.
//
// Build modes:
//   - Default (CGO_ENABLED=0): pure Go modernc.org/sqlite
//   - CGO mode (CGO_ENABLED=1 -tags cgo_sqlite): mattn/go-sqlite3
package store

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/ulikunitz/xz"
	"github.com/zeebo/blake3"

	"github.com/FocuswithJustin/juniper-succinct/core/docset"
	"github.com/FocuswithJustin/juniper-succinct/core/errors"
	"github.com/FocuswithJustin/juniper-succinct/internal/logging"
)

const schema = `CREATE TABLE IF NOT EXISTS docsets (
	id      TEXT PRIMARY KEY,
	hash    TEXT NOT NULL,
	size    INTEGER NOT NULL,
	data    BLOB NOT NULL,
	updated INTEGER NOT NULL
)`

// Entry describes one stored docset without its payload.
type Entry struct {
	ID      string    `json:"id"`
	Hash    string    `json:"hash"`
	Size    int64     `json:"size"`
	Stored  int64     `json:"stored"`
	Updated time.Time `json:"updated"`
}

// Info contains information about the SQLite driver configuration.
type Info struct {
	DriverName string `json:"driver_name"`
	DriverType string `json:"driver_type"`
	IsCGO      bool   `json:"is_cgo"`
	Package    string `json:"package"`
}

// GetInfo returns information about the driver compiled in.
func GetInfo() Info {
	return Info{
		DriverName: driverName,
		DriverType: driverType,
		IsCGO:      driverType == "cgo",
		Package:    driverPackage,
	}
}

// Store is a SQLite database of serialized docsets.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens or creates the database at path and ensures the schema.
func Open(path string) (*Store, error) {
	db, err := sql.Open(driverName, path)
	if err != nil {
		return nil, errors.NewIO("open", path, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, errors.NewIO("initialize", path, err)
	}
	logging.Debug("store opened", "path", path, "driver", driverType)
	return &Store{db: db, path: path}, nil
}

// Path returns the database file.
func (s *Store) Path() string {
	return s.path
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Hash returns the hex BLAKE3 digest of data.
func Hash(data []byte) string {
	h := blake3.Sum256(data)
	return hex.EncodeToString(h[:])
}

// Save writes ds under its id, replacing any previous version.
// A row whose hash already matches is left untouched.
func (s *Store) Save(ctx context.Context, ds *docset.DocSet) (Entry, error) {
	data, err := json.Marshal(ds)
	if err != nil {
		return Entry{}, fmt.Errorf("failed to serialize docset %s: %w", ds.ID, err)
	}
	hash := Hash(data)

	if existing, err := s.Get(ctx, ds.ID); err == nil && existing.Hash == hash {
		logging.StoreEvent("unchanged", ds.ID, "hash", hash)
		return existing, nil
	}

	compressed, err := compress(data)
	if err != nil {
		return Entry{}, err
	}
	e := Entry{
		ID:      ds.ID,
		Hash:    hash,
		Size:    int64(len(data)),
		Stored:  int64(len(compressed)),
		Updated: time.Now().UTC().Truncate(time.Second),
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO docsets (id, hash, size, data, updated) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET hash = excluded.hash, size = excluded.size, data = excluded.data, updated = excluded.updated`,
		e.ID, e.Hash, e.Size, compressed, e.Updated.Unix())
	if err != nil {
		return Entry{}, errors.NewIO("save docset "+ds.ID, s.path, err)
	}
	logging.StoreEvent("save", ds.ID, "hash", hash, "size", e.Size, "stored", e.Stored)
	return e, nil
}

// Get returns the entry for id without loading the payload.
func (s *Store) Get(ctx context.Context, id string) (Entry, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, hash, size, length(data), updated FROM docsets WHERE id = ?`, id)
	e, err := scanEntry(row)
	if err == sql.ErrNoRows {
		return Entry{}, errors.NewNotFound("docSet", id)
	}
	if err != nil {
		return Entry{}, errors.NewIO("read docset "+id, s.path, err)
	}
	return e, nil
}

// Load reads, verifies and decodes the docset stored under id.
func (s *Store) Load(ctx context.Context, id string) (*docset.DocSet, error) {
	var (
		hash       string
		compressed []byte
	)
	err := s.db.QueryRowContext(ctx, `SELECT hash, data FROM docsets WHERE id = ?`, id).Scan(&hash, &compressed)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFound("docSet", id)
	}
	if err != nil {
		return nil, errors.NewIO("read docset "+id, s.path, err)
	}

	data, err := decompress(compressed)
	if err != nil {
		return nil, &errors.ParseError{Format: "stored docset", Path: id, Message: err.Error(), Err: errors.ErrInvalidValue}
	}
	if got := Hash(data); got != hash {
		return nil, &errors.ValidationError{
			Field:   "hash",
			Value:   got,
			Message: fmt.Sprintf("stored docset %s does not match its hash %s", id, hash),
			Err:     errors.ErrInvalidValue,
		}
	}
	ds, err := docset.LoadJSON(data)
	if err != nil {
		return nil, fmt.Errorf("failed to load docset %s: %w", id, err)
	}
	logging.StoreEvent("load", id, "size", len(data))
	return ds, nil
}

// List returns every stored docset ordered by id.
func (s *Store) List(ctx context.Context) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, hash, size, length(data), updated FROM docsets ORDER BY id`)
	if err != nil {
		return nil, errors.NewIO("list docsets", s.path, err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, errors.NewIO("list docsets", s.path, err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewIO("list docsets", s.path, err)
	}
	return entries, nil
}

// Delete removes the docset stored under id.
func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM docsets WHERE id = ?`, id)
	if err != nil {
		return errors.NewIO("delete docset "+id, s.path, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return errors.NewNotFound("docSet", id)
	}
	logging.StoreEvent("delete", id)
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(sc scanner) (Entry, error) {
	var (
		e       Entry
		updated int64
	)
	if err := sc.Scan(&e.ID, &e.Hash, &e.Size, &e.Stored, &updated); err != nil {
		return Entry{}, err
	}
	e.Updated = time.Unix(updated, 0).UTC()
	return e, nil
}

func compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := xz.NewWriter(&buf)
	if err != nil {
		return nil, fmt.Errorf("failed to create xz writer: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return nil, fmt.Errorf("failed to compress docset: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("failed to compress docset: %w", err)
	}
	return buf.Bytes(), nil
}

func decompress(data []byte) ([]byte, error) {
	r, err := xz.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to create xz reader: %w", err)
	}
	out, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to decompress docset: %w", err)
	}
	return out, nil
}
