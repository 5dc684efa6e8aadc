package services

import (
	"context"

	"device-tracker/internal/models"
	"device-tracker/internal/ports"
)

// BatchService covers batch reads and the allowed batch edits. Creation
// goes through AllocatorService.
type BatchService struct {
	Batches ports.BatchStore
	Cartons ports.CartonStore
}

func NewBatchService(batches ports.BatchStore, cartons ports.CartonStore) *BatchService {
	return &BatchService{Batches: batches, Cartons: cartons}
}

// GetBatch returns a batch with its cartons
func (s *BatchService) GetBatch(ctx context.Context, batchID string) (*models.Batch, error) {
	batch, err := s.Batches.GetByBatchID(ctx, batchID)
	if err != nil {
		return nil, err
	}
	batch.Cartons, err = s.Cartons.ListByBatch(ctx, batch.Ref)
	if err != nil {
		return nil, err
	}
	return batch, nil
}

func (s *BatchService) ListBatches(ctx context.Context) ([]*models.Batch, error) {
	return s.Batches.List(ctx)
}

func (s *BatchService) ListCartons(ctx context.Context, batchID string) ([]*models.Carton, error) {
	batch, err := s.Batches.GetByBatchID(ctx, batchID)
	if err != nil {
		return nil, err
	}
	return s.Cartons.ListByBatch(ctx, batch.Ref)
}

// UpdateBatch applies the allowed fields. Ids and sizes that shaped the
// existing cartons stay fixed.
func (s *BatchService) UpdateBatch(ctx context.Context, batchID string, req models.UpdateBatchRequest) (*models.Batch, error) {
	if req.CartonSize == nil {
		return nil, models.NewValidationError("batch", "only cartonSize may be changed")
	}
	if *req.CartonSize <= 0 {
		return nil, models.NewValidationError("cartonSize", "must be greater than zero")
	}
	batch, err := s.Batches.GetByBatchID(ctx, batchID)
	if err != nil {
		return nil, err
	}
	if err := s.Batches.UpdateCartonSize(ctx, batch.Ref, *req.CartonSize); err != nil {
		return nil, err
	}
	batch.CartonSize = *req.CartonSize
	return batch, nil
}

// DeleteBatch removes a batch and its cartons unless any carton is packed.
func (s *BatchService) DeleteBatch(ctx context.Context, batchID string) error {
	batch, err := s.Batches.GetByBatchID(ctx, batchID)
	if err != nil {
		return err
	}
	packed, err := s.Batches.HasPackedCartons(ctx, batch.Ref)
	if err != nil {
		return err
	}
	if packed {
		return models.NewValidationError("batchId", "batch %s has packed cartons", batch.BatchID)
	}
	return s.Batches.Delete(ctx, batch.Ref)
}
