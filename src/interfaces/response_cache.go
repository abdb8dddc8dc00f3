package interfaces

import (
	"context"

	"mtm-hub/src/models"
)

// -----------------------------------------------------------------------------
// IResponseCache holds the last raw response per account for a short TTL.
// -----------------------------------------------------------------------------

type IResponseCache interface {

	// Get returns the entry only while it is still valid.
	Get(ctx context.Context, userID string) (models.MCacheEntry, bool)

	// -----------------------------------------------------------------------------

	Set(ctx context.Context, userID string, entry models.MCacheEntry)

	// -----------------------------------------------------------------------------

	Delete(ctx context.Context, userID string)

	// -----------------------------------------------------------------------------

	Clear(ctx context.Context)

	// -----------------------------------------------------------------------------

	// Close stops background work (janitor, connections).
	Close() error
}
