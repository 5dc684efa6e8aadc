package repositories

import (
	"context"
	"errors"
	"strconv"

	"device-tracker/internal/models"

	"github.com/jackc/pgx/v5"
)

const whitelistColumns = `id, alias_id, id_prefix, type, created_by, created_at`

type WhitelistRepository struct {
	DB DBTX
}

func NewWhitelistRepository(db DBTX) *WhitelistRepository {
	return &WhitelistRepository{DB: db}
}

func scanWhitelist(row pgx.Row) (*models.WhitelistEntry, error) {
	var w models.WhitelistEntry
	err := row.Scan(&w.Ref, &w.AliasID, &w.IDPrefix, &w.Type, &w.CreatedBy, &w.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &w, nil
}

// FindByAlias looks up an identifier within its type
func (r *WhitelistRepository) FindByAlias(ctx context.Context, aliasID string, t models.AliasType) (*models.WhitelistEntry, error) {
	w, err := scanWhitelist(r.DB.QueryRow(ctx,
		`SELECT `+whitelistColumns+` FROM whitelist WHERE type=$1 AND alias_id=$2`, t, aliasID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.NotFound(string(t), aliasID)
	}
	if err != nil {
		return nil, storeError("whitelist.find", err)
	}
	return w, nil
}

func (r *WhitelistRepository) Get(ctx context.Context, ref int64) (*models.WhitelistEntry, error) {
	w, err := scanWhitelist(r.DB.QueryRow(ctx,
		`SELECT `+whitelistColumns+` FROM whitelist WHERE id=$1`, ref))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.NotFound("whitelist entry", strconv.FormatInt(ref, 10))
	}
	if err != nil {
		return nil, storeError("whitelist.get", err)
	}
	return w, nil
}

// List returns entries of one type, or all entries when t is empty
func (r *WhitelistRepository) List(ctx context.Context, t models.AliasType) ([]*models.WhitelistEntry, error) {
	rows, err := r.DB.Query(ctx,
		`SELECT `+whitelistColumns+` FROM whitelist
		 WHERE ($1::text = '' OR type = $1)
		 ORDER BY type, alias_id`, string(t))
	if err != nil {
		return nil, storeError("whitelist.list", err)
	}
	defer rows.Close()

	var entries []*models.WhitelistEntry
	for rows.Next() {
		w, err := scanWhitelist(rows)
		if err != nil {
			return nil, storeError("whitelist.list", err)
		}
		entries = append(entries, w)
	}
	return entries, storeError("whitelist.list", rows.Err())
}

func (r *WhitelistRepository) Delete(ctx context.Context, ref int64) error {
	tag, err := r.DB.Exec(ctx, `DELETE FROM whitelist WHERE id=$1`, ref)
	if err != nil {
		return storeError("whitelist.delete", err)
	}
	if tag.RowsAffected() == 0 {
		return models.NotFound("whitelist entry", strconv.FormatInt(ref, 10))
	}
	return nil
}

// CountByPrefix counts entries of a type sharing an id prefix
func (r *WhitelistRepository) CountByPrefix(ctx context.Context, t models.AliasType, prefix string) (int, error) {
	var n int
	err := r.DB.QueryRow(ctx,
		`SELECT count(*) FROM whitelist WHERE type=$1 AND id_prefix=$2`, t, prefix).Scan(&n)
	return n, storeError("whitelist.count", err)
}

// LastByPrefix returns the greatest alias id under a prefix. Minted ids are
// fixed width, so the text maximum is also the numeric one.
func (r *WhitelistRepository) LastByPrefix(ctx context.Context, t models.AliasType, prefix string) (string, error) {
	var last string
	err := r.DB.QueryRow(ctx,
		`SELECT COALESCE(MAX(alias_id), '') FROM whitelist WHERE type=$1 AND id_prefix=$2`, t, prefix).Scan(&last)
	return last, storeError("whitelist.last", err)
}

// Existing returns the subset of ids already registered for a type
func (r *WhitelistRepository) Existing(ctx context.Context, t models.AliasType, ids []string) ([]string, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := r.DB.Query(ctx,
		`SELECT alias_id FROM whitelist WHERE type=$1 AND alias_id = ANY($2) ORDER BY alias_id`, t, ids)
	if err != nil {
		return nil, storeError("whitelist.existing", err)
	}
	found, err := pgx.CollectRows(rows, pgx.RowTo[string])
	return found, storeError("whitelist.existing", err)
}

// InsertMany writes all entries in one round trip and fills in refs
func (r *WhitelistRepository) InsertMany(ctx context.Context, entries []*models.WhitelistEntry) error {
	if len(entries) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, w := range entries {
		batch.Queue(
			`INSERT INTO whitelist(alias_id, id_prefix, type, created_by)
			 VALUES($1, $2, $3, $4)
			 RETURNING id, created_at`,
			w.AliasID, w.IDPrefix, w.Type, w.CreatedBy)
	}

	br := r.DB.SendBatch(ctx, batch)
	defer br.Close()
	for _, w := range entries {
		if err := br.QueryRow().Scan(&w.Ref, &w.CreatedAt); err != nil {
			return storeError("whitelist.insert", err)
		}
	}
	return storeError("whitelist.insert", br.Close())
}
