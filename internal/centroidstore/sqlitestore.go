package centroidstore

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	_ "modernc.org/sqlite" // pure Go SQLite driver, no CGO

	"github.com/aman-cerp/federated-retrieval/internal/retrieval"
)

// SQLiteStore persists centroids to a SQLite database using the same
// pure-Go driver and WAL pragma set the teacher's metadata store uses. Access
// goes through an RWMutex and a single connection, so a Put holds the write
// lock and Gets wait until it finishes.
type SQLiteStore struct {
	mu   sync.RWMutex
	db   *sql.DB
	path string
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore opens (creating if absent) a centroid database at path. An
// empty path opens an in-memory database, useful for tests that want SQL
// semantics without a file on disk.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	dsn := ":memory:"
	if path != "" {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("creating centroid store directory: %w", err)
			}
		}
		dsn = path + "?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening centroid store: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("setting pragma %q: %w", p, err)
		}
	}

	s := &SQLiteStore{db: db, path: path}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initializing centroid schema: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	const schema = `
	CREATE TABLE IF NOT EXISTS centroids (
		tenant       TEXT NOT NULL,
		tag          TEXT NOT NULL,
		vector       BLOB NOT NULL,
		dimension    INTEGER NOT NULL,
		source_count INTEGER NOT NULL,
		updated_at   INTEGER NOT NULL,
		PRIMARY KEY (tenant, tag)
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteStore) Get(ctx context.Context, key Key) (*retrieval.Centroid, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		`SELECT vector, dimension, source_count, updated_at FROM centroids WHERE tenant = ? AND tag = ?`,
		string(key.Tenant), key.Tag)

	var blob []byte
	var dim, count int
	var updatedUnix int64
	if err := row.Scan(&blob, &dim, &count, &updatedUnix); err != nil {
		if err == sql.ErrNoRows {
			return nil, false, nil
		}
		return nil, false, err
	}

	return &retrieval.Centroid{
		Vector:      decodeVector(blob),
		Dimension:   dim,
		SourceCount: count,
		UpdatedAt:   time.Unix(updatedUnix, 0).UTC(),
	}, true, nil
}

func (s *SQLiteStore) Put(ctx context.Context, key Key, c retrieval.Centroid) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	blob := encodeVector(c.Vector)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO centroids (tenant, tag, vector, dimension, source_count, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(tenant, tag) DO UPDATE SET
			vector = excluded.vector,
			dimension = excluded.dimension,
			source_count = excluded.source_count,
			updated_at = excluded.updated_at
	`, string(key.Tenant), key.Tag, blob, c.Dimension, c.SourceCount, c.UpdatedAt.UTC().Unix())
	return err
}

func (s *SQLiteStore) Delete(ctx context.Context, key Key) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx, `DELETE FROM centroids WHERE tenant = ? AND tag = ?`, string(key.Tenant), key.Tag)
	return err
}

// Scan paginates using a rowid-based keyset cursor, avoiding OFFSET's
// linear rescan cost on large tables.
func (s *SQLiteStore) Scan(ctx context.Context, cursor string, batch int) ([]Key, string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if batch <= 0 {
		batch = 1000
	}
	afterRowID := int64(0)
	if cursor != "" {
		n, err := strconv.ParseInt(cursor, 10, 64)
		if err != nil {
			return nil, "", err
		}
		afterRowID = n
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT rowid, tenant, tag FROM centroids WHERE rowid > ? ORDER BY rowid ASC LIMIT ?`,
		afterRowID, batch)
	if err != nil {
		return nil, "", err
	}
	defer rows.Close()

	var keys []Key
	var lastRowID int64
	for rows.Next() {
		var rowID int64
		var tenant, tag string
		if err := rows.Scan(&rowID, &tenant, &tag); err != nil {
			return nil, "", err
		}
		keys = append(keys, Key{Tenant: retrieval.TenantID(tenant), Tag: tag})
		lastRowID = rowID
	}
	if err := rows.Err(); err != nil {
		return nil, "", err
	}

	nextCursor := ""
	if len(keys) == batch {
		nextCursor = strconv.FormatInt(lastRowID, 10)
	}
	return keys, nextCursor, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// encodeVector packs a float32 embedding as little-endian bytes, the wire
// format named in spec §6.
func encodeVector(v retrieval.Embedding) []byte {
	buf := make([]byte, 4*len(v))
	for i, x := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(x))
	}
	return buf
}

func decodeVector(buf []byte) retrieval.Embedding {
	n := len(buf) / 4
	out := make(retrieval.Embedding, n)
	for i := 0; i < n; i++ {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return out
}
