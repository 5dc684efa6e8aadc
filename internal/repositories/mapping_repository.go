package repositories

import (
	"context"
	"errors"
	"strconv"

	"device-tracker/internal/models"

	"github.com/jackc/pgx/v5"
)

const mappingSelect = `SELECT m.id, m.imei_ref, m.serial_ref, m.device_ref, m.created_by, m.created_at,
		wi.alias_id, ws.alias_id, wd.alias_id
	FROM mappings m
	JOIN whitelist wi ON wi.id = m.imei_ref
	JOIN whitelist ws ON ws.id = m.serial_ref
	JOIN whitelist wd ON wd.id = m.device_ref`

type MappingRepository struct {
	DB DBTX
}

func NewMappingRepository(db DBTX) *MappingRepository {
	return &MappingRepository{DB: db}
}

func scanMapping(row pgx.Row) (*models.Mapping, error) {
	var m models.Mapping
	err := row.Scan(&m.Ref, &m.IMEIRef, &m.SerialRef, &m.DeviceRef, &m.CreatedBy, &m.CreatedAt,
		&m.IMEI, &m.SerialNo, &m.DeviceID)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// Create inserts a mapping. A unique violation surfaces as a DuplicateError.
func (r *MappingRepository) Create(ctx context.Context, m *models.Mapping) error {
	err := r.DB.QueryRow(ctx,
		`INSERT INTO mappings(imei_ref, serial_ref, device_ref, created_by)
		 VALUES($1, $2, $3, $4)
		 RETURNING id, created_at`,
		m.IMEIRef, m.SerialRef, m.DeviceRef, m.CreatedBy,
	).Scan(&m.Ref, &m.CreatedAt)
	return storeError("mapping.create", err)
}

func (r *MappingRepository) Get(ctx context.Context, ref int64) (*models.Mapping, error) {
	m, err := scanMapping(r.DB.QueryRow(ctx, mappingSelect+` WHERE m.id=$1`, ref))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.NotFound("mapping", strconv.FormatInt(ref, 10))
	}
	if err != nil {
		return nil, storeError("mapping.get", err)
	}
	return m, nil
}

// FindByAnyRef returns the oldest mapping holding any of refs in any slot
func (r *MappingRepository) FindByAnyRef(ctx context.Context, refs ...int64) (*models.Mapping, error) {
	m, err := scanMapping(r.DB.QueryRow(ctx, mappingSelect+`
		WHERE m.imei_ref = ANY($1) OR m.serial_ref = ANY($1) OR m.device_ref = ANY($1)
		ORDER BY m.id LIMIT 1`, refs))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.NotFound("mapping", "")
	}
	if err != nil {
		return nil, storeError("mapping.find", err)
	}
	return m, nil
}

func (r *MappingRepository) List(ctx context.Context) ([]*models.Mapping, error) {
	rows, err := r.DB.Query(ctx, mappingSelect+` ORDER BY m.id`)
	if err != nil {
		return nil, storeError("mapping.list", err)
	}
	defer rows.Close()

	var mappings []*models.Mapping
	for rows.Next() {
		m, err := scanMapping(rows)
		if err != nil {
			return nil, storeError("mapping.list", err)
		}
		mappings = append(mappings, m)
	}
	return mappings, storeError("mapping.list", rows.Err())
}

// Update rewrites the three slots of a mapping
func (r *MappingRepository) Update(ctx context.Context, m *models.Mapping) error {
	tag, err := r.DB.Exec(ctx,
		`UPDATE mappings SET imei_ref=$2, serial_ref=$3, device_ref=$4 WHERE id=$1`,
		m.Ref, m.IMEIRef, m.SerialRef, m.DeviceRef)
	if err != nil {
		return storeError("mapping.update", err)
	}
	if tag.RowsAffected() == 0 {
		return models.NotFound("mapping", strconv.FormatInt(m.Ref, 10))
	}
	return nil
}

func (r *MappingRepository) Delete(ctx context.Context, ref int64) error {
	tag, err := r.DB.Exec(ctx, `DELETE FROM mappings WHERE id=$1`, ref)
	if err != nil {
		return storeError("mapping.delete", err)
	}
	if tag.RowsAffected() == 0 {
		return models.NotFound("mapping", strconv.FormatInt(ref, 10))
	}
	return nil
}

// FirstUnmapped returns the smallest alias of a type that no mapping uses
func (r *MappingRepository) FirstUnmapped(ctx context.Context, t models.AliasType) (*models.WhitelistEntry, error) {
	w, err := scanWhitelist(r.DB.QueryRow(ctx,
		`SELECT w.id, w.alias_id, w.id_prefix, w.type, w.created_by, w.created_at
		 FROM whitelist w
		 WHERE w.type = $1
		   AND NOT EXISTS (
			SELECT 1 FROM mappings m
			WHERE m.imei_ref = w.id OR m.serial_ref = w.id OR m.device_ref = w.id)
		 ORDER BY w.alias_id LIMIT 1`, t))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.NotFound("unmapped "+string(t), "")
	}
	if err != nil {
		return nil, storeError("mapping.available", err)
	}
	return w, nil
}
