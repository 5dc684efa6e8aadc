package repositories

import (
	"context"
	"errors"

	"device-tracker/internal/models"

	"github.com/jackc/pgx/v5"
)

const cartonSelect = `SELECT c.id, c.carton_id, c.carton_size, c.batch_ref, c.created_by, c.created_at, b.batch_id
	FROM cartons c JOIN batches b ON b.id = c.batch_ref`

type CartonRepository struct {
	DB DBTX
}

func NewCartonRepository(db DBTX) *CartonRepository {
	return &CartonRepository{DB: db}
}

func scanCarton(row pgx.Row) (*models.Carton, error) {
	var c models.Carton
	err := row.Scan(&c.Ref, &c.CartonID, &c.CartonSize, &c.BatchRef, &c.CreatedBy, &c.CreatedAt, &c.BatchID)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *CartonRepository) GetByCartonID(ctx context.Context, cartonID string) (*models.Carton, error) {
	c, err := scanCarton(r.DB.QueryRow(ctx, cartonSelect+` WHERE c.carton_id=$1`, cartonID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.NotFound("carton", cartonID)
	}
	if err != nil {
		return nil, storeError("carton.get", err)
	}
	return c, nil
}

func (r *CartonRepository) ListByBatch(ctx context.Context, batchRef int64) ([]*models.Carton, error) {
	rows, err := r.DB.Query(ctx, cartonSelect+` WHERE c.batch_ref=$1 ORDER BY c.carton_id`, batchRef)
	if err != nil {
		return nil, storeError("carton.list", err)
	}
	defer rows.Close()

	var cartons []*models.Carton
	for rows.Next() {
		c, err := scanCarton(rows)
		if err != nil {
			return nil, storeError("carton.list", err)
		}
		cartons = append(cartons, c)
	}
	return cartons, storeError("carton.list", rows.Err())
}

// FirstOpen returns the smallest carton id that still has room for a device.
// batchRef 0 searches every batch.
func (r *CartonRepository) FirstOpen(ctx context.Context, batchRef int64) (*models.Carton, error) {
	c, err := scanCarton(r.DB.QueryRow(ctx, cartonSelect+`
		WHERE ($1::bigint = 0 OR c.batch_ref = $1)
		  AND (SELECT count(*) FROM packlists p WHERE p.carton_ref = c.id) < c.carton_size
		ORDER BY c.carton_id LIMIT 1`, batchRef))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.NotFound("open carton", "")
	}
	if err != nil {
		return nil, storeError("carton.open", err)
	}
	return c, nil
}

// LastCartonID returns the greatest carton id of a batch, or "" if none
func (r *CartonRepository) LastCartonID(ctx context.Context, batchRef int64) (string, error) {
	var id string
	err := r.DB.QueryRow(ctx,
		`SELECT carton_id FROM cartons WHERE batch_ref=$1 ORDER BY carton_id DESC LIMIT 1`, batchRef).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	return id, storeError("carton.last", err)
}

func (r *CartonRepository) InsertMany(ctx context.Context, cartons []*models.Carton) error {
	if len(cartons) == 0 {
		return nil
	}
	q := &pgx.Batch{}
	for _, c := range cartons {
		q.Queue(
			`INSERT INTO cartons(carton_id, carton_size, batch_ref, created_by)
			 VALUES($1, $2, $3, $4)
			 RETURNING id, created_at`,
			c.CartonID, c.CartonSize, c.BatchRef, c.CreatedBy)
	}

	br := r.DB.SendBatch(ctx, q)
	defer br.Close()
	for _, c := range cartons {
		if err := br.QueryRow().Scan(&c.Ref, &c.CreatedAt); err != nil {
			return storeError("carton.insert", err)
		}
	}
	return storeError("carton.insert", br.Close())
}
