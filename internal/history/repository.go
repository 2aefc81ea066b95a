package history

import (
	"context"
	"errors"
)

// ErrRecordNotFound is returned when a record cannot be found by ID.
var ErrRecordNotFound = errors.New("task record not found")

// Repository defines the interface for task record persistence.
type Repository interface {
	// Save persists a record, replacing any record with the same ID.
	Save(ctx context.Context, rec *Record) error

	// FindByID retrieves a record by its ID.
	// Returns ErrRecordNotFound if the record does not exist.
	FindByID(ctx context.Context, id string) (*Record, error)

	// List returns records, most recently started first. A positive limit
	// bounds the number returned.
	List(ctx context.Context, limit int) ([]*Record, error)

	// Close releases underlying resources.
	Close() error
}
