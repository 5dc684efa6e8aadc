package services

import (
	"context"
	"strings"
	"time"

	"device-tracker/internal/models"
	"device-tracker/internal/ports"
	"device-tracker/internal/timeutil"
)

// PacklistService records which carton each mapped device shipped in.
type PacklistService struct {
	Resolver  *Resolver
	Batches   ports.BatchStore
	Cartons   ports.CartonStore
	Packlists ports.PacklistStore
	Now       func() time.Time
}

func NewPacklistService(resolver *Resolver, batches ports.BatchStore, cartons ports.CartonStore, packlists ports.PacklistStore) *PacklistService {
	return &PacklistService{
		Resolver:  resolver,
		Batches:   batches,
		Cartons:   cartons,
		Packlists: packlists,
		Now:       timeutil.Now,
	}
}

// Assign packs the device behind an alias into a carton. The device must be
// mapped and the carton must exist; otherwise nothing is written.
func (s *PacklistService) Assign(ctx context.Context, req models.AssignRequest, actor int) (*models.Packlist, error) {
	if strings.TrimSpace(req.CartonID) == "" {
		return nil, models.NewValidationError("cartonId", "is required")
	}

	device, err := s.Resolver.ResolveToCanonicalDevice(ctx, req.ID, req.Type)
	if err != nil {
		return nil, err
	}
	if device.Mapping == nil {
		return nil, models.NotFound("mapping", device.Alias.AliasID)
	}

	carton, err := s.Cartons.GetByCartonID(ctx, strings.TrimSpace(req.CartonID))
	if err != nil {
		return nil, err
	}

	shipped := s.Now()
	if req.ShipmentDate != nil {
		shipped = *req.ShipmentDate
	}

	entry := &models.Packlist{
		MappingRef:   device.Mapping.Ref,
		CartonRef:    carton.Ref,
		ShipmentDate: shipped,
		CreatedBy:    actor,
		CartonID:     carton.CartonID,
		BatchID:      carton.BatchID,
		IMEI:         device.Mapping.IMEI,
		SerialNo:     device.Mapping.SerialNo,
		DeviceID:     device.Mapping.DeviceID,
	}
	if err := s.Packlists.Create(ctx, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

// Query lists entries by carton id, batch id or shipment day. An empty
// result is a NotFoundError.
func (s *PacklistService) Query(ctx context.Context, filter models.PacklistFilter, value string) ([]*models.Packlist, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, models.NewValidationError("value", "is required")
	}

	var entries []*models.Packlist
	var err error
	switch filter {
	case models.FilterShipmentDate:
		day, perr := timeutil.ParseDay(value)
		if perr != nil {
			return nil, models.NewValidationError("value", "invalid shipment date %q", value)
		}
		entries, err = s.Packlists.ListByShipment(ctx, day, timeutil.NextDay(day))
	case models.FilterCartonID:
		carton, cerr := s.Cartons.GetByCartonID(ctx, value)
		if cerr != nil {
			return nil, cerr
		}
		entries, err = s.Packlists.ListByCarton(ctx, carton.Ref)
	case models.FilterBatchID:
		batch, berr := s.Batches.GetByBatchID(ctx, value)
		if berr != nil {
			return nil, berr
		}
		entries, err = s.Packlists.ListByBatch(ctx, batch.Ref)
	default:
		return nil, models.NewValidationError("type", "unknown packlist filter %q", filter)
	}
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, models.NotFound("packlist entries for "+string(filter), value)
	}
	return entries, nil
}

// UnassignByCarton removes every entry of a carton and returns the count.
func (s *PacklistService) UnassignByCarton(ctx context.Context, cartonID string) (int64, error) {
	carton, err := s.Cartons.GetByCartonID(ctx, strings.TrimSpace(cartonID))
	if err != nil {
		return 0, err
	}
	n, err := s.Packlists.DeleteByCarton(ctx, carton.Ref)
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, models.NotFound("packlist entries for carton", carton.CartonID)
	}
	return n, nil
}

// Reassign moves one entry to another carton and/or shipment date.
func (s *PacklistService) Reassign(ctx context.Context, ref int64, req models.UpdatePacklistRequest) (*models.Packlist, error) {
	if req.CartonID == "" && req.ShipmentDate == nil {
		return nil, models.NewValidationError("packlist", "cartonId or shipmentDate is required")
	}
	entry, err := s.Packlists.Get(ctx, ref)
	if err != nil {
		return nil, err
	}
	if req.CartonID != "" {
		carton, err := s.Cartons.GetByCartonID(ctx, strings.TrimSpace(req.CartonID))
		if err != nil {
			return nil, err
		}
		entry.CartonRef = carton.Ref
	}
	if req.ShipmentDate != nil {
		entry.ShipmentDate = *req.ShipmentDate
	}
	if err := s.Packlists.Update(ctx, entry); err != nil {
		return nil, err
	}
	return s.Packlists.Get(ctx, ref)
}

// NextOpenCarton returns the smallest carton with room left, optionally
// restricted to one batch.
func (s *PacklistService) NextOpenCarton(ctx context.Context, batchID string) (*models.Carton, error) {
	var batchRef int64
	if batchID != "" {
		batch, err := s.Batches.GetByBatchID(ctx, batchID)
		if err != nil {
			return nil, err
		}
		batchRef = batch.Ref
	}
	return s.Cartons.FirstOpen(ctx, batchRef)
}
