package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"

	"voxelglobe/internal/world"
)

// Store persists chunks in a single SQLite file, one namespace per world type and seed.
type Store struct {
	db  *sql.DB
	log *logrus.Entry

	mu     sync.Mutex
	closed bool
}

func Open(path string, log *logrus.Entry) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, err
		}
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db, log: log.WithField("component", "storage")}, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return fmt.Errorf("%s: %w", p, err)
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS chunks (
			world TEXT NOT NULL,
			cx INTEGER NOT NULL,
			cy INTEGER NOT NULL,
			cz INTEGER NOT NULL,
			format INTEGER NOT NULL,
			data BLOB NOT NULL,
			updated_at TEXT NOT NULL,
			PRIMARY KEY (world, cx, cy, cz)
		);`,
		`INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version','1');`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

// Namespace returns the key chunks of a world type and seed are stored under.
func Namespace(t world.WorldType, seed int64) string {
	return t.String() + "/" + strconv.FormatInt(seed, 10)
}

// StorageFor implements world.StorageProvider.
func (s *Store) StorageFor(t world.WorldType, seed int64) world.ChunkStorage {
	return &ChunkTable{store: s, ns: Namespace(t, seed)}
}

// Count returns how many chunks are stored under a namespace.
func (s *Store) Count(ns string) (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM chunks WHERE world = ?`, ns).Scan(&n)
	return n, err
}

// Delete drops every chunk of a namespace.
func (s *Store) Delete(ns string) error {
	_, err := s.db.Exec(`DELETE FROM chunks WHERE world = ?`, ns)
	return err
}

// ChunkTable is the world.ChunkStorage for one namespace.
type ChunkTable struct {
	store *Store
	ns    string
}

func (t *ChunkTable) Namespace() string {
	return t.ns
}

func (t *ChunkTable) LoadChunk(coord world.ChunkCoord) (*world.Chunk, error) {
	var (
		format int
		data   []byte
	)
	err := t.store.db.QueryRow(
		`SELECT format, data FROM chunks WHERE world = ? AND cx = ? AND cy = ? AND cz = ?`,
		t.ns, coord.X, coord.Y, coord.Z,
	).Scan(&format, &data)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, world.ErrChunkNotFound
	case err != nil:
		return nil, fmt.Errorf("load chunk %v from %s: %w", coord, t.ns, err)
	}
	if format != FormatVersion {
		return nil, fmt.Errorf("load chunk %v from %s: unsupported format %d", coord, t.ns, format)
	}
	return DecodeChunk(coord, data)
}

func (t *ChunkTable) SaveChunk(c *world.Chunk) error {
	coord := c.Coord()
	data := EncodeChunk(c)
	_, err := t.store.db.Exec(
		`INSERT OR REPLACE INTO chunks(world, cx, cy, cz, format, data, updated_at) VALUES(?,?,?,?,?,?,?)`,
		t.ns, coord.X, coord.Y, coord.Z, FormatVersion, data, time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("save chunk %v to %s: %w", coord, t.ns, err)
	}
	t.store.log.WithFields(logrus.Fields{"chunk": coord, "world": t.ns, "bytes": len(data)}).Debug("Chunk saved")
	return nil
}
