package sequence

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

const nextSQL = `
		INSERT INTO event_sequence (partition_key, last_sequence)
		VALUES ($1, 1)
		ON CONFLICT (partition_key)
		DO UPDATE SET last_sequence = event_sequence.last_sequence + 1, updated_at = now()
		RETURNING last_sequence
	`

var ErrEmptyPartition = errors.New("partition key is required")

type Store interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository numbers events per partition so consumers can detect gaps.
type Repository struct {
	store Store
}

func NewRepository(store Store) *Repository {
	return &Repository{store: store}
}

// Next atomically increments and returns the sequence for a partition.
// The first call for a partition returns 1.
func (r *Repository) Next(ctx context.Context, partitionKey string) (int64, error) {
	if partitionKey == "" {
		return 0, ErrEmptyPartition
	}

	var seq int64
	if err := r.store.QueryRow(ctx, nextSQL, partitionKey).Scan(&seq); err != nil {
		return 0, fmt.Errorf("next sequence for %q: %w", partitionKey, err)
	}
	return seq, nil
}
