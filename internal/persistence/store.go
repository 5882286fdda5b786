package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"stationvox/internal/logger"
	"stationvox/internal/world"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a chunk or entity is not in the store.
var ErrNotFound = errors.New("persistence: not found")

// Store keeps encoded chunks in a SQLite database, keyed by entity name and
// chunk coordinate.
type Store struct {
	db *sql.DB
}

// Open opens or creates the database at path. ":memory:" gives a private
// in-memory store.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("persistence: empty db path")
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// One connection: sqlite serialises writers anyway, and ":memory:" is
	// per connection.
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
	return &Store{db: db}, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
		"PRAGMA busy_timeout=5000;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS entities (
			name TEXT PRIMARY KEY,
			mass INTEGER NOT NULL,
			com_x REAL NOT NULL,
			com_y REAL NOT NULL,
			com_z REAL NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS chunks (
			entity TEXT NOT NULL REFERENCES entities(name) ON DELETE CASCADE,
			cx INTEGER NOT NULL,
			cy INTEGER NOT NULL,
			cz INTEGER NOT NULL,
			data BLOB NOT NULL,
			PRIMARY KEY (entity, cx, cy, cz)
		);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return fmt.Errorf("persistence: schema: %w", err)
		}
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveChunk stores one chunk under entity, replacing any previous version.
// The entity row is created if missing.
func (s *Store) SaveChunk(ctx context.Context, entity string, c *world.Chunk) error {
	data, err := EncodeChunk(c)
	if err != nil {
		return err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO entities(name, mass, com_x, com_y, com_z, updated_at) VALUES(?, 0, 0, 0, 0, ?)
		 ON CONFLICT(name) DO NOTHING`,
		entity, now()); err != nil {
		return err
	}
	if err := putChunk(ctx, tx, entity, c.Coord, data); err != nil {
		return err
	}
	return tx.Commit()
}

// LoadChunk returns the stored chunk, unlinked and dirty.
func (s *Store) LoadChunk(ctx context.Context, entity string, coord world.Coord) (*world.Chunk, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT data FROM chunks WHERE entity = ? AND cx = ? AND cy = ? AND cz = ?`,
		entity, coord.X, coord.Y, coord.Z).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: chunk %s%v", ErrNotFound, entity, coord)
	}
	if err != nil {
		return nil, err
	}
	return DecodeChunk(data)
}

// DeleteChunk removes a stored chunk. Deleting a missing chunk is not an error.
func (s *Store) DeleteChunk(ctx context.Context, entity string, coord world.Coord) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM chunks WHERE entity = ? AND cx = ? AND cy = ? AND cz = ?`,
		entity, coord.X, coord.Y, coord.Z)
	return err
}

// ListChunks returns the stored chunk coordinates of entity in ascending order.
func (s *Store) ListChunks(ctx context.Context, entity string) ([]world.Coord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT cx, cy, cz FROM chunks WHERE entity = ? ORDER BY cx, cy, cz`, entity)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []world.Coord
	for rows.Next() {
		var c world.Coord
		if err := rows.Scan(&c.X, &c.Y, &c.Z); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// EntityInfo is the stored summary of an entity.
type EntityInfo struct {
	Name         string
	Mass         int
	CenterOfMass [3]float64
	UpdatedAt    string
}

// SaveEntity replaces everything stored for e with its current chunks and
// aggregates, in one transaction.
func (s *Store) SaveEntity(ctx context.Context, e *world.Entity) error {
	chunks := e.Chunks()
	blobs := make([][]byte, len(chunks))
	for i, c := range chunks {
		data, err := EncodeChunk(c)
		if err != nil {
			return fmt.Errorf("persistence: entity %s: %w", e.Name, err)
		}
		blobs[i] = data
	}
	com, _ := e.CenterOfMass()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO entities(name, mass, com_x, com_y, com_z, updated_at) VALUES(?, ?, ?, ?, ?, ?)
		 ON CONFLICT(name) DO UPDATE SET mass = excluded.mass, com_x = excluded.com_x,
		   com_y = excluded.com_y, com_z = excluded.com_z, updated_at = excluded.updated_at`,
		e.Name, e.Mass(), com[0], com[1], com[2], now()); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM chunks WHERE entity = ?`, e.Name); err != nil {
		return err
	}
	for i, c := range chunks {
		if err := putChunk(ctx, tx, e.Name, c.Coord, blobs[i]); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}

	logger.Log.Info("Entity saved",
		zap.String("entity", e.Name),
		zap.Int("chunks", len(chunks)),
		zap.Int("mass", e.Mass()))
	return nil
}

// LoadEntity rebuilds an entity from its stored chunks. The chunks are
// linked and dirty; aggregates fill in once they are rebuilt.
func (s *Store) LoadEntity(ctx context.Context, name string) (*world.Entity, error) {
	if _, err := s.Entity(ctx, name); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT data FROM chunks WHERE entity = ? ORDER BY cx, cy, cz`, name)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	e := world.NewEntity(name)
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		c, err := DecodeChunk(data)
		if err != nil {
			return nil, fmt.Errorf("persistence: entity %s: %w", name, err)
		}
		e.AddChunk(c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	logger.Log.Debug("Entity loaded", zap.String("entity", name), zap.Int("chunks", e.Len()))
	return e, nil
}

// Entity returns the stored summary of an entity.
func (s *Store) Entity(ctx context.Context, name string) (EntityInfo, error) {
	info := EntityInfo{Name: name}
	err := s.db.QueryRowContext(ctx,
		`SELECT mass, com_x, com_y, com_z, updated_at FROM entities WHERE name = ?`, name).
		Scan(&info.Mass, &info.CenterOfMass[0], &info.CenterOfMass[1], &info.CenterOfMass[2], &info.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return info, fmt.Errorf("%w: entity %s", ErrNotFound, name)
	}
	return info, err
}

// DeleteEntity removes an entity and all of its chunks.
func (s *Store) DeleteEntity(ctx context.Context, name string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM entities WHERE name = ?`, name)
	return err
}

func putChunk(ctx context.Context, tx *sql.Tx, entity string, coord world.Coord, data []byte) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO chunks(entity, cx, cy, cz, data) VALUES(?, ?, ?, ?, ?)
		 ON CONFLICT(entity, cx, cy, cz) DO UPDATE SET data = excluded.data`,
		entity, coord.X, coord.Y, coord.Z, data)
	return err
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}
