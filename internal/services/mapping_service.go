package services

import (
	"context"
	"errors"
	"log"
	"strconv"
	"strings"

	"device-tracker/internal/models"
	"device-tracker/internal/ports"
)

type MappingService struct {
	Resolver *Resolver
	Mappings ports.MappingStore
}

func NewMappingService(resolver *Resolver, mappings ports.MappingStore) *MappingService {
	return &MappingService{Resolver: resolver, Mappings: mappings}
}

// resolvedTriple holds the whitelist entries of one device, slot by slot
type resolvedTriple struct {
	imei, serial, device *models.WhitelistEntry
}

func (s *MappingService) resolveTriple(ctx context.Context, t models.AliasTriple) (*resolvedTriple, error) {
	if strings.TrimSpace(t.IMEI) == "" || strings.TrimSpace(t.SerialNo) == "" || strings.TrimSpace(t.DeviceID) == "" {
		return nil, models.NewValidationError("mapping", "imei, serialNo and deviceId are required")
	}
	var rt resolvedTriple
	var err error
	if rt.imei, err = s.Resolver.Lookup(ctx, t.IMEI, models.AliasIMEI); err != nil {
		return nil, err
	}
	if rt.serial, err = s.Resolver.Lookup(ctx, t.SerialNo, models.AliasSerial); err != nil {
		return nil, err
	}
	if rt.device, err = s.Resolver.Lookup(ctx, t.DeviceID, models.AliasDeviceID); err != nil {
		return nil, err
	}
	return &rt, nil
}

// CreateMapping binds the three aliases of a device. If any of them is
// already mapped, that mapping is returned unchanged.
func (s *MappingService) CreateMapping(ctx context.Context, triple models.AliasTriple, actor int) (*models.Mapping, error) {
	rt, err := s.resolveTriple(ctx, triple)
	if err != nil {
		return nil, err
	}
	return s.bind(ctx, rt, actor)
}

// CreateMappings resolves every triple before writing any of them.
func (s *MappingService) CreateMappings(ctx context.Context, triples []models.AliasTriple, actor int) ([]*models.Mapping, error) {
	if len(triples) == 0 {
		return nil, models.NewValidationError("mapping", "at least one alias triple is required")
	}
	resolved := make([]*resolvedTriple, len(triples))
	for i, t := range triples {
		rt, err := s.resolveTriple(ctx, t)
		if err != nil {
			return nil, err
		}
		resolved[i] = rt
	}

	mappings := make([]*models.Mapping, 0, len(resolved))
	for _, rt := range resolved {
		m, err := s.bind(ctx, rt, actor)
		if err != nil {
			return nil, err
		}
		mappings = append(mappings, m)
	}
	return mappings, nil
}

func (s *MappingService) bind(ctx context.Context, rt *resolvedTriple, actor int) (*models.Mapping, error) {
	existing, err := s.Mappings.FindByAnyRef(ctx, rt.imei.Ref, rt.serial.Ref, rt.device.Ref)
	if err == nil {
		warnIfPartial(existing, rt)
		return existing, nil
	}
	if !errors.Is(err, models.ErrNotFound) {
		return nil, err
	}

	m := &models.Mapping{
		IMEIRef:   rt.imei.Ref,
		SerialRef: rt.serial.Ref,
		DeviceRef: rt.device.Ref,
		CreatedBy: actor,
		IMEI:      rt.imei.AliasID,
		SerialNo:  rt.serial.AliasID,
		DeviceID:  rt.device.AliasID,
	}
	err = s.Mappings.Create(ctx, m)
	if errors.Is(err, models.ErrDuplicate) {
		// Lost a race with a concurrent create of the same device
		existing, findErr := s.Mappings.FindByAnyRef(ctx, rt.imei.Ref, rt.serial.Ref, rt.device.Ref)
		if findErr == nil {
			warnIfPartial(existing, rt)
			return existing, nil
		}
		return nil, err
	}
	if err != nil {
		return nil, err
	}
	return m, nil
}

func warnIfPartial(m *models.Mapping, rt *resolvedTriple) {
	if m.IMEIRef != rt.imei.Ref || m.SerialRef != rt.serial.Ref || m.DeviceRef != rt.device.Ref {
		log.Printf("[Mapping] WARNING: request (%s, %s, %s) overlaps mapping %d (%s, %s, %s); returning existing",
			rt.imei.AliasID, rt.serial.AliasID, rt.device.AliasID, m.Ref, m.IMEI, m.SerialNo, m.DeviceID)
	}
}

func (s *MappingService) ResolveMapping(ctx context.Context, aliasID string, t models.AliasType) (*models.Mapping, error) {
	return s.Resolver.ResolveMapping(ctx, aliasID, t)
}

// FindAvailableAlias returns the smallest alias of a type not yet mapped.
func (s *MappingService) FindAvailableAlias(ctx context.Context, t models.AliasType) (*models.WhitelistEntry, error) {
	if !t.Valid() {
		return nil, models.NewValidationError("type", "unknown alias type %q", t)
	}
	return s.Mappings.FirstUnmapped(ctx, t)
}

// Available returns the next free serial number and device id together.
func (s *MappingService) Available(ctx context.Context) (*models.AvailableAliases, error) {
	sn, err := s.FindAvailableAlias(ctx, models.AliasSerial)
	if err != nil {
		return nil, err
	}
	dev, err := s.FindAvailableAlias(ctx, models.AliasDeviceID)
	if err != nil {
		return nil, err
	}
	return &models.AvailableAliases{SerialNo: sn, DeviceID: dev}, nil
}

func (s *MappingService) Get(ctx context.Context, ref int64) (*models.Mapping, error) {
	return s.Mappings.Get(ctx, ref)
}

func (s *MappingService) List(ctx context.Context) ([]*models.Mapping, error) {
	return s.Mappings.List(ctx)
}

func (s *MappingService) Delete(ctx context.Context, ref int64) error {
	return s.Mappings.Delete(ctx, ref)
}

// UpdateMapping rebinds the given slots. A new alias must not belong to
// another mapping.
func (s *MappingService) UpdateMapping(ctx context.Context, ref int64, req models.UpdateMappingRequest) (*models.Mapping, error) {
	m, err := s.Mappings.Get(ctx, ref)
	if err != nil {
		return nil, err
	}

	slots := []struct {
		value string
		typ   models.AliasType
		ref   *int64
	}{
		{req.IMEI, models.AliasIMEI, &m.IMEIRef},
		{req.SerialNo, models.AliasSerial, &m.SerialRef},
		{req.DeviceID, models.AliasDeviceID, &m.DeviceRef},
	}

	changed := false
	for _, slot := range slots {
		if slot.value == "" {
			continue
		}
		entry, err := s.Resolver.Lookup(ctx, slot.value, slot.typ)
		if err != nil {
			return nil, err
		}
		if entry.Ref == *slot.ref {
			continue
		}
		owner, err := s.Mappings.FindByAnyRef(ctx, entry.Ref)
		if err == nil && owner.Ref != m.Ref {
			return nil, &models.DuplicateError{Kind: "mapping for " + string(slot.typ), IDs: []string{entry.AliasID}}
		}
		if err != nil && !errors.Is(err, models.ErrNotFound) {
			return nil, err
		}
		*slot.ref = entry.Ref
		changed = true
	}
	if !changed {
		return nil, models.NewValidationError("mapping", "no slot of mapping %s would change", strconv.FormatInt(ref, 10))
	}

	if err := s.Mappings.Update(ctx, m); err != nil {
		return nil, err
	}
	return s.Mappings.Get(ctx, ref)
}
