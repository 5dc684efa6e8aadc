package repositories

import (
	"context"
	"errors"
	"strconv"
	"time"

	"device-tracker/internal/models"

	"github.com/jackc/pgx/v5"
)

const packlistSelect = `SELECT p.id, p.mapping_ref, p.carton_ref, p.shipment_date, p.created_by, p.created_at,
		c.carton_id, b.batch_id, wi.alias_id, ws.alias_id, wd.alias_id
	FROM packlists p
	JOIN cartons c ON c.id = p.carton_ref
	JOIN batches b ON b.id = c.batch_ref
	JOIN mappings m ON m.id = p.mapping_ref
	JOIN whitelist wi ON wi.id = m.imei_ref
	JOIN whitelist ws ON ws.id = m.serial_ref
	JOIN whitelist wd ON wd.id = m.device_ref`

type PacklistRepository struct {
	DB DBTX
}

func NewPacklistRepository(db DBTX) *PacklistRepository {
	return &PacklistRepository{DB: db}
}

func scanPacklist(row pgx.Row) (*models.Packlist, error) {
	var p models.Packlist
	err := row.Scan(&p.Ref, &p.MappingRef, &p.CartonRef, &p.ShipmentDate, &p.CreatedBy, &p.CreatedAt,
		&p.CartonID, &p.BatchID, &p.IMEI, &p.SerialNo, &p.DeviceID)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *PacklistRepository) Create(ctx context.Context, p *models.Packlist) error {
	err := r.DB.QueryRow(ctx,
		`INSERT INTO packlists(mapping_ref, carton_ref, shipment_date, created_by)
		 VALUES($1, $2, $3, $4)
		 RETURNING id, created_at`,
		p.MappingRef, p.CartonRef, p.ShipmentDate, p.CreatedBy,
	).Scan(&p.Ref, &p.CreatedAt)
	return storeError("packlist.create", err)
}

func (r *PacklistRepository) Get(ctx context.Context, ref int64) (*models.Packlist, error) {
	p, err := scanPacklist(r.DB.QueryRow(ctx, packlistSelect+` WHERE p.id=$1`, ref))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.NotFound("packlist entry", strconv.FormatInt(ref, 10))
	}
	if err != nil {
		return nil, storeError("packlist.get", err)
	}
	return p, nil
}

func (r *PacklistRepository) ListByCarton(ctx context.Context, cartonRef int64) ([]*models.Packlist, error) {
	return r.list(ctx, ` WHERE p.carton_ref=$1 ORDER BY p.id`, cartonRef)
}

func (r *PacklistRepository) ListByBatch(ctx context.Context, batchRef int64) ([]*models.Packlist, error) {
	return r.list(ctx, ` WHERE c.batch_ref=$1 ORDER BY c.carton_id, p.id`, batchRef)
}

// ListByShipment returns entries shipped in [from, to)
func (r *PacklistRepository) ListByShipment(ctx context.Context, from, to time.Time) ([]*models.Packlist, error) {
	return r.list(ctx, ` WHERE p.shipment_date >= $1 AND p.shipment_date < $2 ORDER BY c.carton_id, p.id`, from, to)
}

func (r *PacklistRepository) list(ctx context.Context, where string, args ...any) ([]*models.Packlist, error) {
	rows, err := r.DB.Query(ctx, packlistSelect+where, args...)
	if err != nil {
		return nil, storeError("packlist.list", err)
	}
	defer rows.Close()

	var entries []*models.Packlist
	for rows.Next() {
		p, err := scanPacklist(rows)
		if err != nil {
			return nil, storeError("packlist.list", err)
		}
		entries = append(entries, p)
	}
	return entries, storeError("packlist.list", rows.Err())
}

// Update moves an entry to another carton and/or shipment date
func (r *PacklistRepository) Update(ctx context.Context, p *models.Packlist) error {
	tag, err := r.DB.Exec(ctx,
		`UPDATE packlists SET carton_ref=$2, shipment_date=$3 WHERE id=$1`,
		p.Ref, p.CartonRef, p.ShipmentDate)
	if err != nil {
		return storeError("packlist.update", err)
	}
	if tag.RowsAffected() == 0 {
		return models.NotFound("packlist entry", strconv.FormatInt(p.Ref, 10))
	}
	return nil
}

// DeleteByCarton removes every entry of a carton and returns how many went
func (r *PacklistRepository) DeleteByCarton(ctx context.Context, cartonRef int64) (int64, error) {
	tag, err := r.DB.Exec(ctx, `DELETE FROM packlists WHERE carton_ref=$1`, cartonRef)
	if err != nil {
		return 0, storeError("packlist.delete", err)
	}
	return tag.RowsAffected(), nil
}
