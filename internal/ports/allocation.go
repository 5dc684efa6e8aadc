package ports

import (
	"context"

	"device-tracker/internal/models"
)

// AllocationStore runs identifier minting as one atomic unit per call.
//
// Reserve holds an exclusive lock on every scope for the lifetime of fn and
// commits only if fn returns nil. Nothing fn wrote survives an error.
type AllocationStore interface {
	Reserve(ctx context.Context, scopes []string, fn func(tx AllocationTx) error) error
}

// AllocationTx is the view of the store available inside a reservation.
type AllocationTx interface {
	LastBatchID(ctx context.Context, prefix string) (string, error)
	ExistingBatchIDs(ctx context.Context, ids []string) ([]string, error)
	InsertBatches(ctx context.Context, batches []*models.Batch) error
	GetBatch(ctx context.Context, batchID string) (*models.Batch, error)

	LastCartonID(ctx context.Context, batchRef int64) (string, error)
	InsertCartons(ctx context.Context, cartons []*models.Carton) error

	CountAliases(ctx context.Context, t models.AliasType, prefix string) (int, error)
	// LastAliasID is the greatest id of a type under prefix, "" when none.
	LastAliasID(ctx context.Context, t models.AliasType, prefix string) (string, error)
	ExistingAliases(ctx context.Context, t models.AliasType, ids []string) ([]string, error)
	InsertAliases(ctx context.Context, entries []*models.WhitelistEntry) error
}

// StageNotifier receives every successful lifecycle write.
type StageNotifier interface {
	Publish(event models.StageEvent)
}

// ObjectStore archives generated documents and returns where they live.
type ObjectStore interface {
	Upload(ctx context.Context, key, contentType string, data []byte) (string, error)
}
