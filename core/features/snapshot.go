package features

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/breaking-byts/lifeos/core/database"
)

// SnapshotStore persists context snapshots so rewards logged later can be
// attributed to the situation they were decided in.
type SnapshotStore struct {
	pool *database.Pool
}

func NewSnapshotStore(pool *database.Pool) *SnapshotStore {
	return &SnapshotStore{pool: pool}
}

// Save writes a snapshot and returns its row id.
func (s *SnapshotStore) Save(ctx context.Context, c *Context) (int64, error) {
	result, err := s.pool.Exec(ctx,
		`INSERT INTO context_snapshots (features) VALUES (?)`,
		c.ToBytes(),
	)
	if err != nil {
		return 0, fmt.Errorf("save snapshot: %w", err)
	}
	return result.LastInsertId()
}

// Load reads a snapshot by row id.
func (s *SnapshotStore) Load(ctx context.Context, id int64) (*Context, error) {
	var blob []byte
	err := s.pool.QueryRow(ctx,
		`SELECT features FROM context_snapshots WHERE id = ?`, id,
	).Scan(&blob)
	if err != nil {
		return nil, fmt.Errorf("load snapshot %d: %w", id, err)
	}
	return FromBytes(blob)
}

// Latest returns the most recent snapshot, or nil when none exist.
func (s *SnapshotStore) Latest(ctx context.Context) (*Context, error) {
	var blob []byte
	err := s.pool.QueryRow(ctx,
		`SELECT features FROM context_snapshots ORDER BY id DESC LIMIT 1`,
	).Scan(&blob)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return FromBytes(blob)
}
