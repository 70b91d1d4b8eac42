package persist

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// PlayerRow is the last saved placement of a player entity.
type PlayerRow struct {
	Name        string
	MapID       uint32
	X, Y, Z     float32
	Orientation float32
	Health      float64
}

type PlayerRepo struct {
	db *DB
}

func NewPlayerRepo(db *DB) *PlayerRepo {
	return &PlayerRepo{db: db}
}

// Load returns nil, nil when the player was never saved.
func (r *PlayerRepo) Load(ctx context.Context, name string) (*PlayerRow, error) {
	row := &PlayerRow{Name: name}
	var mapID int32
	err := r.db.Pool.QueryRow(ctx,
		`SELECT map_id, x, y, z, orientation, health FROM players WHERE name = $1`, name,
	).Scan(&mapID, &row.X, &row.Y, &row.Z, &row.Orientation, &row.Health)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	row.MapID = uint32(mapID)
	return row, nil
}

// SaveBatch upserts a batch of players in a single transaction.
func (r *PlayerRepo) SaveBatch(ctx context.Context, rows []PlayerRow) error {
	if len(rows) == 0 {
		return nil
	}
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("save players begin: %w", err)
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for _, p := range rows {
		batch.Queue(
			`INSERT INTO players (name, map_id, x, y, z, orientation, health, saved_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
			 ON CONFLICT (name) DO UPDATE SET
			   map_id = EXCLUDED.map_id, x = EXCLUDED.x, y = EXCLUDED.y, z = EXCLUDED.z,
			   orientation = EXCLUDED.orientation, health = EXCLUDED.health, saved_at = NOW()`,
			p.Name, int32(p.MapID), p.X, p.Y, p.Z, p.Orientation, p.Health,
		)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("save players: %w", err)
	}
	return tx.Commit(ctx)
}
