package repositories

import (
	"context"
	"errors"

	"device-tracker/internal/models"

	"github.com/jackc/pgx/v5"
)

const batchColumns = `id, batch_id, id_prefix, batch_size, carton_size, created_by, created_at`

type BatchRepository struct {
	DB DBTX
}

func NewBatchRepository(db DBTX) *BatchRepository {
	return &BatchRepository{DB: db}
}

func scanBatch(row pgx.Row) (*models.Batch, error) {
	var b models.Batch
	err := row.Scan(&b.Ref, &b.BatchID, &b.IDPrefix, &b.BatchSize, &b.CartonSize, &b.CreatedBy, &b.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *BatchRepository) GetByBatchID(ctx context.Context, batchID string) (*models.Batch, error) {
	b, err := scanBatch(r.DB.QueryRow(ctx,
		`SELECT `+batchColumns+` FROM batches WHERE batch_id=$1`, batchID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.NotFound("batch", batchID)
	}
	if err != nil {
		return nil, storeError("batch.get", err)
	}
	return b, nil
}

func (r *BatchRepository) List(ctx context.Context) ([]*models.Batch, error) {
	rows, err := r.DB.Query(ctx, `SELECT `+batchColumns+` FROM batches ORDER BY batch_id`)
	if err != nil {
		return nil, storeError("batch.list", err)
	}
	defer rows.Close()

	var batches []*models.Batch
	for rows.Next() {
		b, err := scanBatch(rows)
		if err != nil {
			return nil, storeError("batch.list", err)
		}
		batches = append(batches, b)
	}
	return batches, storeError("batch.list", rows.Err())
}

// LastBatchID returns the greatest batch id under a prefix, or "" if none.
// All ids of one prefix share a width, so text order is numeric order.
func (r *BatchRepository) LastBatchID(ctx context.Context, prefix string) (string, error) {
	var id string
	err := r.DB.QueryRow(ctx,
		`SELECT batch_id FROM batches WHERE id_prefix=$1 ORDER BY batch_id DESC LIMIT 1`, prefix).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	return id, storeError("batch.last", err)
}

// Existing returns the subset of ids already taken, regardless of prefix
func (r *BatchRepository) Existing(ctx context.Context, ids []string) ([]string, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := r.DB.Query(ctx,
		`SELECT batch_id FROM batches WHERE batch_id = ANY($1) ORDER BY batch_id`, ids)
	if err != nil {
		return nil, storeError("batch.existing", err)
	}
	found, err := pgx.CollectRows(rows, pgx.RowTo[string])
	return found, storeError("batch.existing", err)
}

func (r *BatchRepository) InsertMany(ctx context.Context, batches []*models.Batch) error {
	if len(batches) == 0 {
		return nil
	}
	q := &pgx.Batch{}
	for _, b := range batches {
		q.Queue(
			`INSERT INTO batches(batch_id, id_prefix, batch_size, carton_size, created_by)
			 VALUES($1, $2, $3, $4, $5)
			 RETURNING id, created_at`,
			b.BatchID, b.IDPrefix, b.BatchSize, b.CartonSize, b.CreatedBy)
	}

	br := r.DB.SendBatch(ctx, q)
	defer br.Close()
	for _, b := range batches {
		if err := br.QueryRow().Scan(&b.Ref, &b.CreatedAt); err != nil {
			return storeError("batch.insert", err)
		}
	}
	return storeError("batch.insert", br.Close())
}

func (r *BatchRepository) UpdateCartonSize(ctx context.Context, ref int64, cartonSize int) error {
	tag, err := r.DB.Exec(ctx, `UPDATE batches SET carton_size=$2 WHERE id=$1`, ref, cartonSize)
	if err != nil {
		return storeError("batch.update", err)
	}
	if tag.RowsAffected() == 0 {
		return models.NotFound("batch", "")
	}
	return nil
}

// Delete removes a batch and, by cascade, its cartons
func (r *BatchRepository) Delete(ctx context.Context, ref int64) error {
	_, err := r.DB.Exec(ctx, `DELETE FROM batches WHERE id=$1`, ref)
	return storeError("batch.delete", err)
}

// HasPackedCartons reports whether any carton of the batch is on a packlist
func (r *BatchRepository) HasPackedCartons(ctx context.Context, ref int64) (bool, error) {
	var packed bool
	err := r.DB.QueryRow(ctx,
		`SELECT EXISTS(
			SELECT 1 FROM packlists p JOIN cartons c ON c.id = p.carton_ref
			WHERE c.batch_ref = $1)`, ref).Scan(&packed)
	return packed, storeError("batch.packed", err)
}
