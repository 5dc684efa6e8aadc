package ports

import (
	"context"
	"time"

	"device-tracker/internal/models"
)

// WhitelistStore reads and removes registered identifiers.
type WhitelistStore interface {
	FindByAlias(ctx context.Context, aliasID string, t models.AliasType) (*models.WhitelistEntry, error)
	Get(ctx context.Context, ref int64) (*models.WhitelistEntry, error)
	List(ctx context.Context, t models.AliasType) ([]*models.WhitelistEntry, error)
	Delete(ctx context.Context, ref int64) error
}

type BatchStore interface {
	GetByBatchID(ctx context.Context, batchID string) (*models.Batch, error)
	List(ctx context.Context) ([]*models.Batch, error)
	UpdateCartonSize(ctx context.Context, ref int64, cartonSize int) error
	Delete(ctx context.Context, ref int64) error
	HasPackedCartons(ctx context.Context, ref int64) (bool, error)
}

type CartonStore interface {
	GetByCartonID(ctx context.Context, cartonID string) (*models.Carton, error)
	ListByBatch(ctx context.Context, batchRef int64) ([]*models.Carton, error)
	// FirstOpen returns the smallest carton with room left; batchRef 0 means any batch.
	FirstOpen(ctx context.Context, batchRef int64) (*models.Carton, error)
}

type MappingStore interface {
	// Create fails with a DuplicateError when any alias is already mapped.
	Create(ctx context.Context, m *models.Mapping) error
	Get(ctx context.Context, ref int64) (*models.Mapping, error)
	FindByAnyRef(ctx context.Context, refs ...int64) (*models.Mapping, error)
	List(ctx context.Context) ([]*models.Mapping, error)
	Update(ctx context.Context, m *models.Mapping) error
	Delete(ctx context.Context, ref int64) error
	FirstUnmapped(ctx context.Context, t models.AliasType) (*models.WhitelistEntry, error)
}

type LifecycleStore interface {
	Create(ctx context.Context, l *models.LifeCycle) error
	Latest(ctx context.Context, imeiRef int64) (*models.LifeCycle, error)
	UpdateStage(ctx context.Context, ref int64, stage models.Stage) error
	History(ctx context.Context, imeiRef int64) ([]*models.LifeCycle, error)
}

type PacklistStore interface {
	Create(ctx context.Context, p *models.Packlist) error
	Get(ctx context.Context, ref int64) (*models.Packlist, error)
	ListByCarton(ctx context.Context, cartonRef int64) ([]*models.Packlist, error)
	ListByBatch(ctx context.Context, batchRef int64) ([]*models.Packlist, error)
	ListByShipment(ctx context.Context, from, to time.Time) ([]*models.Packlist, error)
	Update(ctx context.Context, p *models.Packlist) error
	DeleteByCarton(ctx context.Context, cartonRef int64) (int64, error)
}

type UserStore interface {
	Create(ctx context.Context, u *models.User) error
	Get(ctx context.Context, id int) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
}
