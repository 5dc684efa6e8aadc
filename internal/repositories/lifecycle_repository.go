package repositories

import (
	"context"
	"errors"
	"strconv"

	"device-tracker/internal/models"

	"github.com/jackc/pgx/v5"
)

const lifecycleSelect = `SELECT l.id, l.imei_ref, l.stage, l.created_by, l.created_at, l.updated_at, w.alias_id
	FROM lifecycles l JOIN whitelist w ON w.id = l.imei_ref`

type LifecycleRepository struct {
	DB DBTX
}

func NewLifecycleRepository(db DBTX) *LifecycleRepository {
	return &LifecycleRepository{DB: db}
}

func scanLifecycle(row pgx.Row) (*models.LifeCycle, error) {
	var l models.LifeCycle
	err := row.Scan(&l.Ref, &l.IMEIRef, &l.Stage, &l.CreatedBy, &l.CreatedAt, &l.UpdatedAt, &l.IMEI)
	if err != nil {
		return nil, err
	}
	return &l, nil
}

func (r *LifecycleRepository) Create(ctx context.Context, l *models.LifeCycle) error {
	err := r.DB.QueryRow(ctx,
		`INSERT INTO lifecycles(imei_ref, stage, created_by)
		 VALUES($1, $2, $3)
		 RETURNING id, created_at, updated_at`,
		l.IMEIRef, l.Stage, l.CreatedBy,
	).Scan(&l.Ref, &l.CreatedAt, &l.UpdatedAt)
	return storeError("lifecycle.create", err)
}

// Latest returns the most recent stage row for a device
func (r *LifecycleRepository) Latest(ctx context.Context, imeiRef int64) (*models.LifeCycle, error) {
	l, err := scanLifecycle(r.DB.QueryRow(ctx, lifecycleSelect+`
		WHERE l.imei_ref=$1
		ORDER BY l.created_at DESC, l.id DESC LIMIT 1`, imeiRef))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.NotFound("lifecycle", strconv.FormatInt(imeiRef, 10))
	}
	if err != nil {
		return nil, storeError("lifecycle.latest", err)
	}
	return l, nil
}

// UpdateStage overwrites the stage of one row in place
func (r *LifecycleRepository) UpdateStage(ctx context.Context, ref int64, stage models.Stage) error {
	tag, err := r.DB.Exec(ctx,
		`UPDATE lifecycles SET stage=$2, updated_at=NOW() WHERE id=$1`, ref, stage)
	if err != nil {
		return storeError("lifecycle.update", err)
	}
	if tag.RowsAffected() == 0 {
		return models.NotFound("lifecycle", strconv.FormatInt(ref, 10))
	}
	return nil
}

// History lists every stage row of a device, newest first
func (r *LifecycleRepository) History(ctx context.Context, imeiRef int64) ([]*models.LifeCycle, error) {
	rows, err := r.DB.Query(ctx, lifecycleSelect+`
		WHERE l.imei_ref=$1
		ORDER BY l.created_at DESC, l.id DESC`, imeiRef)
	if err != nil {
		return nil, storeError("lifecycle.history", err)
	}
	defer rows.Close()

	var history []*models.LifeCycle
	for rows.Next() {
		l, err := scanLifecycle(rows)
		if err != nil {
			return nil, storeError("lifecycle.history", err)
		}
		history = append(history, l)
	}
	return history, storeError("lifecycle.history", rows.Err())
}
