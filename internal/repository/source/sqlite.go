package source

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/jaennil/guide_helper/backend/overzoom/internal/tile"
	"github.com/jaennil/guide_helper/backend/overzoom/pkg/logger"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrations embed.FS

type SQLiteStore struct {
	db       *sql.DB
	logger   logger.Logger
	maxBytes int64
}

var _ Store = (*SQLiteStore)(nil)

func NewSQLiteStore(path string, maxBytes int64, l logger.Logger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	err = db.Ping()
	if err != nil {
		db.Close()
		return nil, err
	}

	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}

	s := &SQLiteStore{
		db:       db,
		logger:   l,
		maxBytes: maxBytes,
	}

	err = s.runMigrations()
	if err != nil {
		db.Close()
		return nil, err
	}

	l.Info("sqlite store initialized", "path", path)

	return s, nil
}

func (s *SQLiteStore) runMigrations() error {
	goose.SetBaseFS(migrations)

	err := goose.SetDialect("sqlite3")
	if err != nil {
		return err
	}

	return goose.Up(s.db, "migrations")
}

func (s *SQLiteStore) Name() string {
	return "sqlite"
}

func (s *SQLiteStore) Exists(ctx context.Context, c tile.Coordinate) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM tiles WHERE z = ? AND x = ? AND y = ?)`

	var exists bool
	err := s.db.QueryRowContext(ctx, query, c.Z, c.X, c.Y).Scan(&exists)
	if err != nil {
		s.logger.Error("sqlite exists failed", "z", c.Z, "x", c.X, "y", c.Y, "error", err)
		return false, err
	}

	return exists, nil
}

func (s *SQLiteStore) Get(ctx context.Context, c tile.Coordinate) ([]byte, bool, error) {
	s.logger.Debug("sqlite store get", "z", c.Z, "x", c.X, "y", c.Y)

	query := `SELECT length(tile_data), CASE WHEN length(tile_data) <= ? THEN tile_data END
	FROM tiles
	WHERE z = ? AND x = ? AND y = ?`

	var (
		size     int64
		tileData []byte
	)
	err := s.db.QueryRowContext(ctx, query, s.maxBytes, c.Z, c.X, c.Y).Scan(&size, &tileData)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		s.logger.Error("sqlite store get failed", "z", c.Z, "x", c.X, "y", c.Y, "error", err)
		return nil, false, err
	}
	if size > s.maxBytes {
		return nil, false, fmt.Errorf("tile %s: %d bytes: %w", c, size, ErrTooLarge)
	}

	return tileData, true, nil
}

// Put stores or replaces a tile. Used to seed a pyramid; the serving path never writes.
func (s *SQLiteStore) Put(ctx context.Context, c tile.Coordinate, data []byte) error {
	query := `INSERT INTO tiles (z, x, y, tile_data)
	VALUES (?, ?, ?, ?)
	ON CONFLICT(z, x, y) DO UPDATE SET tile_data = excluded.tile_data`

	_, err := s.db.ExecContext(ctx, query, c.Z, c.X, c.Y, data)
	if err != nil {
		s.logger.Error("sqlite store put failed", "z", c.Z, "x", c.X, "y", c.Y, "error", err)
		return err
	}

	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
