package repositories

import (
	"context"
	"errors"
	"fmt"
	"net"

	"device-tracker/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX is satisfied by *pgxpool.Pool and pgx.Tx, so every repository can
// run either standalone or inside an allocation transaction.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// Postgres error codes the tracker cares about
const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
	pgCheckViolation      = "23514"
	pgStringTooLong       = "22001"
)

// storeError translates driver failures into the tracker's error kinds.
// pgx.ErrNoRows is left to the caller, which knows what was missing.
func storeError(op string, err error) error {
	if err == nil {
		return nil
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			return &models.DuplicateError{Kind: constraintKind(pgErr.ConstraintName)}
		case pgForeignKeyViolation:
			return &models.ValidationError{Field: pgErr.ConstraintName, Reason: "record is still referenced or missing its parent"}
		case pgCheckViolation:
			return &models.ValidationError{Field: pgErr.ConstraintName, Reason: "value violates " + pgErr.ConstraintName}
		case pgStringTooLong:
			return &models.ValidationError{Field: pgErr.ColumnName, Reason: "value is too long"}
		}
		return fmt.Errorf("%s: %w", op, err)
	}

	if isUnavailable(err) {
		return &models.UnavailableError{Op: op, Err: err}
	}
	return fmt.Errorf("%s: %w", op, err)
}

func isUnavailable(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}
	if pgconn.Timeout(err) || pgconn.SafeToRetry(err) {
		return true
	}
	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

func constraintKind(name string) string {
	switch name {
	case "batches_batch_id_key":
		return "batch"
	case "cartons_carton_id_key":
		return "carton"
	case "whitelist_type_alias_key":
		return "whitelist entry"
	case "mappings_imei_ref_key", "mappings_serial_ref_key", "mappings_device_ref_key":
		return "mapping"
	case "users_email_key":
		return "user"
	}
	return "record"
}
