package repositories

import (
	"context"
	"sort"

	"device-tracker/internal/models"
	"device-tracker/internal/ports"

	"github.com/jackc/pgx/v5"
)

// TxBeginner is satisfied by *pgxpool.Pool.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// AllocationRepository serializes identifier minting per scope with
// transaction-scoped advisory locks. Locks release on commit or rollback.
type AllocationRepository struct {
	DB TxBeginner
}

func NewAllocationRepository(db TxBeginner) *AllocationRepository {
	return &AllocationRepository{DB: db}
}

func (r *AllocationRepository) Reserve(ctx context.Context, scopes []string, fn func(tx ports.AllocationTx) error) error {
	tx, err := r.DB.Begin(ctx)
	if err != nil {
		return storeError("allocation.begin", err)
	}
	defer tx.Rollback(ctx)

	// Scopes are locked in sorted order
	for _, scope := range sortedScopes(scopes) {
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, scope); err != nil {
			return storeError("allocation.lock", err)
		}
	}

	if err := fn(newAllocationTx(tx)); err != nil {
		return err
	}

	return storeError("allocation.commit", tx.Commit(ctx))
}

func sortedScopes(scopes []string) []string {
	seen := make(map[string]bool, len(scopes))
	out := make([]string, 0, len(scopes))
	for _, s := range scopes {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	sort.Strings(out)
	return out
}

// allocationTx binds the entity repositories to one pgx.Tx
type allocationTx struct {
	whitelist *WhitelistRepository
	batches   *BatchRepository
	cartons   *CartonRepository
}

func newAllocationTx(tx pgx.Tx) *allocationTx {
	return &allocationTx{
		whitelist: NewWhitelistRepository(tx),
		batches:   NewBatchRepository(tx),
		cartons:   NewCartonRepository(tx),
	}
}

func (t *allocationTx) LastBatchID(ctx context.Context, prefix string) (string, error) {
	return t.batches.LastBatchID(ctx, prefix)
}

func (t *allocationTx) ExistingBatchIDs(ctx context.Context, ids []string) ([]string, error) {
	return t.batches.Existing(ctx, ids)
}

func (t *allocationTx) InsertBatches(ctx context.Context, batches []*models.Batch) error {
	return t.batches.InsertMany(ctx, batches)
}

func (t *allocationTx) GetBatch(ctx context.Context, batchID string) (*models.Batch, error) {
	return t.batches.GetByBatchID(ctx, batchID)
}

func (t *allocationTx) LastCartonID(ctx context.Context, batchRef int64) (string, error) {
	return t.cartons.LastCartonID(ctx, batchRef)
}

func (t *allocationTx) InsertCartons(ctx context.Context, cartons []*models.Carton) error {
	return t.cartons.InsertMany(ctx, cartons)
}

func (t *allocationTx) CountAliases(ctx context.Context, typ models.AliasType, prefix string) (int, error) {
	return t.whitelist.CountByPrefix(ctx, typ, prefix)
}

func (t *allocationTx) LastAliasID(ctx context.Context, typ models.AliasType, prefix string) (string, error) {
	return t.whitelist.LastByPrefix(ctx, typ, prefix)
}

func (t *allocationTx) ExistingAliases(ctx context.Context, typ models.AliasType, ids []string) ([]string, error) {
	return t.whitelist.Existing(ctx, typ, ids)
}

func (t *allocationTx) InsertAliases(ctx context.Context, entries []*models.WhitelistEntry) error {
	return t.whitelist.InsertMany(ctx, entries)
}
