package services

import (
	"context"
	"errors"
	"log"

	"device-tracker/internal/metrics"
	"device-tracker/internal/models"
	"device-tracker/internal/ports"
)

// AllocatorService mints batch and carton ids. Each call reads the current
// maximum once per scope, numbers candidates in memory and persists them in
// a single reservation, so a request is either fully stored or not at all.
type AllocatorService struct {
	Store ports.AllocationStore
	locks *scopeLocks
}

func NewAllocatorService(store ports.AllocationStore) *AllocatorService {
	return &AllocatorService{
		Store: store,
		locks: newScopeLocks(),
	}
}

// CreateBatches allocates the batches for every request together with their
// cartons. Requests sharing a prefix continue one sequence.
func (s *AllocatorService) CreateBatches(ctx context.Context, reqs []models.CreateBatchRequest, actor int) (*models.BatchAllocation, error) {
	if len(reqs) == 0 {
		return nil, models.NewValidationError("batches", "at least one batch request is required")
	}
	scopes := make([]string, 0, len(reqs))
	for _, req := range reqs {
		if err := validateBatchRequest(req); err != nil {
			s.countFailure("batch", err)
			return nil, err
		}
		scopes = append(scopes, batchScope(req.IDPrefix))
	}

	unlock, err := s.locks.Lock(ctx, scopes...)
	if err != nil {
		return nil, err
	}
	defer unlock()

	result := &models.BatchAllocation{}
	err = s.Store.Reserve(ctx, scopes, func(tx ports.AllocationTx) error {
		batches, err := planBatches(ctx, tx, reqs, actor)
		if err != nil {
			return err
		}

		ids := make([]string, len(batches))
		for i, b := range batches {
			ids[i] = b.BatchID
		}
		existing, err := tx.ExistingBatchIDs(ctx, ids)
		if err != nil {
			return err
		}
		if len(existing) > 0 {
			return models.DuplicateBatchIDError(existing)
		}

		if err := tx.InsertBatches(ctx, batches); err != nil {
			return err
		}

		var cartons []*models.Carton
		for _, b := range batches {
			planned, err := planCartons(b, 0, b.CartonSize, actor)
			if err != nil {
				return err
			}
			b.Cartons = planned
			cartons = append(cartons, planned...)
		}
		if err := tx.InsertCartons(ctx, cartons); err != nil {
			return err
		}

		result.Batches = batches
		result.Cartons = len(cartons)
		return nil
	})
	if err != nil {
		s.countFailure("batch", err)
		return nil, err
	}

	metrics.IDsAllocated.WithLabelValues("batch").Add(float64(len(result.Batches)))
	metrics.IDsAllocated.WithLabelValues("carton").Add(float64(result.Cartons))
	log.Printf("[Allocator] created %d batch(es), %d carton(s) by user %d", len(result.Batches), result.Cartons, actor)
	return result, nil
}

// AllocateBatchIDs creates ceil(whitelistCount/batchSize) batches under one
// prefix and returns them with their cartons.
func (s *AllocatorService) AllocateBatchIDs(ctx context.Context, prefix string, batchSize, cartonSize, whitelistCount, actor int) ([]*models.Batch, error) {
	res, err := s.CreateBatches(ctx, []models.CreateBatchRequest{{
		IDPrefix:   prefix,
		BatchSize:  batchSize,
		CartonSize: cartonSize,
		Count:      whitelistCount,
	}}, actor)
	if err != nil {
		return nil, err
	}
	return res.Batches, nil
}

// AllocateCartonIDs adds ceil(batchSize/cartonSize) cartons to an existing
// batch, continuing after its highest carton. cartonSize 0 uses the batch's own.
func (s *AllocatorService) AllocateCartonIDs(ctx context.Context, batchID string, cartonSize, actor int) ([]*models.Carton, error) {
	if batchID == "" {
		return nil, models.NewValidationError("batchId", "is required")
	}
	if cartonSize < 0 {
		return nil, models.NewValidationError("cartonSize", "must be positive")
	}

	scope := cartonScope(batchID)
	unlock, err := s.locks.Lock(ctx, scope)
	if err != nil {
		return nil, err
	}
	defer unlock()

	var cartons []*models.Carton
	err = s.Store.Reserve(ctx, []string{scope}, func(tx ports.AllocationTx) error {
		batch, err := tx.GetBatch(ctx, batchID)
		if err != nil {
			return err
		}
		size := cartonSize
		if size == 0 {
			size = batch.CartonSize
		}

		last, err := tx.LastCartonID(ctx, batch.Ref)
		if err != nil {
			return err
		}
		lastSeq, err := sequenceOf(last, batch.BatchID+"-")
		if err != nil {
			return err
		}

		cartons, err = planCartons(batch, lastSeq, size, actor)
		if err != nil {
			return err
		}
		return tx.InsertCartons(ctx, cartons)
	})
	if err != nil {
		s.countFailure("carton", err)
		return nil, err
	}

	metrics.IDsAllocated.WithLabelValues("carton").Add(float64(len(cartons)))
	return cartons, nil
}

func validateBatchRequest(req models.CreateBatchRequest) error {
	switch {
	case req.IDPrefix == "":
		return models.NewValidationError("id_prefix", "is required")
	case len(req.IDPrefix) >= BatchIDLength:
		return models.NewValidationError("id_prefix", "must be shorter than %d characters", BatchIDLength)
	case req.BatchSize <= 0:
		return models.NewValidationError("batch_size", "must be greater than zero")
	case req.CartonSize <= 0:
		return models.NewValidationError("cartonSize", "must be greater than zero")
	case req.Count <= 0:
		return models.NewValidationError("count", "must be greater than zero")
	}
	return nil
}

// planBatches numbers the candidate batches of every request. The last
// existing id is read once per prefix; later requests with the same prefix
// continue from the in-memory counter.
func planBatches(ctx context.Context, tx ports.AllocationTx, reqs []models.CreateBatchRequest, actor int) ([]*models.Batch, error) {
	next := make(map[string]int)
	seen := make(map[string]bool)
	var batches []*models.Batch
	var collisions []string

	for _, req := range reqs {
		seq, ok := next[req.IDPrefix]
		if !ok {
			last, err := tx.LastBatchID(ctx, req.IDPrefix)
			if err != nil {
				return nil, err
			}
			lastSeq, err := sequenceOf(last, req.IDPrefix)
			if err != nil {
				return nil, err
			}
			seq = lastSeq + 1
		}

		n := ceilDiv(req.Count, req.BatchSize)
		for i := 0; i < n; i++ {
			id, err := BatchID(req.IDPrefix, seq)
			if err != nil {
				return nil, err
			}
			seq++
			if seen[id] {
				collisions = append(collisions, id)
				continue
			}
			seen[id] = true
			batches = append(batches, &models.Batch{
				BatchID:    id,
				IDPrefix:   req.IDPrefix,
				BatchSize:  req.BatchSize,
				CartonSize: req.CartonSize,
				CreatedBy:  actor,
			})
		}
		next[req.IDPrefix] = seq
	}

	if len(collisions) > 0 {
		return nil, models.DuplicateBatchIDError(collisions)
	}
	return batches, nil
}

// planCartons numbers ceil(batchSize/cartonSize) cartons after lastSeq.
func planCartons(batch *models.Batch, lastSeq, cartonSize, actor int) ([]*models.Carton, error) {
	n := ceilDiv(batch.BatchSize, cartonSize)
	cartons := make([]*models.Carton, 0, n)
	for i := 1; i <= n; i++ {
		id, err := CartonID(batch.BatchID, lastSeq+i)
		if err != nil {
			return nil, err
		}
		cartons = append(cartons, &models.Carton{
			CartonID:   id,
			CartonSize: cartonSize,
			BatchRef:   batch.Ref,
			BatchID:    batch.BatchID,
			CreatedBy:  actor,
		})
	}
	return cartons, nil
}

func (s *AllocatorService) countFailure(kind string, err error) {
	reason := "error"
	switch {
	case errors.Is(err, models.ErrDuplicate):
		reason = "duplicate"
	case errors.Is(err, models.ErrValidation):
		reason = "validation"
	case errors.Is(err, models.ErrNotFound):
		reason = "not_found"
	case errors.Is(err, models.ErrUnavailable):
		reason = "unavailable"
	}
	metrics.AllocationFailures.WithLabelValues(kind, reason).Inc()
	if reason == "duplicate" {
		log.Printf("[Allocator] %s allocation rejected: %v", kind, err)
	}
}
