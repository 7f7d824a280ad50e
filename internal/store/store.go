package store

import (
	"context"
	"errors"

	"github.com/mi-ganesh/Document-Editor/internal/models"
)

// ErrNotFound is returned by Find when a room has no document.
var ErrNotFound = errors.New("document not found")

// DocumentStore persists one document per room key. Implementations must keep
// room keys unique under concurrent creates.
type DocumentStore interface {
	FindOrCreate(ctx context.Context, roomID string) (*models.Document, error)
	Find(ctx context.Context, roomID string) (*models.Document, error)
	Upsert(ctx context.Context, roomID, code string) error
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}
