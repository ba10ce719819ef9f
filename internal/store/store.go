package store

import (
	"context"
	"errors"

	"portfolio.admin/internal/models"
)

var (
	ErrNotFound     = errors.New("record not found")
	ErrUnknownTable = errors.New("unknown table")
)

// Store persists records of the allow-listed collections. Each call is an
// independent operation; there is no cross-call transaction and no version
// check, so concurrent writes to one record are last-write-wins.
type Store interface {
	// List returns every record in table, newest first.
	List(ctx context.Context, table string) ([]*models.Record, error)
	Get(ctx context.Context, table, id string) (*models.Record, error)
	// Create assigns id and timestamps and returns the stored record.
	Create(ctx context.Context, table string, data map[string]any) (*models.Record, error)
	// Update merges data into the existing payload.
	Update(ctx context.Context, table, id string, data map[string]any) (*models.Record, error)
	Delete(ctx context.Context, table, id string) error
	Close() error
}
