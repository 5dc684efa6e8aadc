package services

import (
	"context"
	"errors"
	"log"
	"time"

	"device-tracker/internal/metrics"
	"device-tracker/internal/models"
	"device-tracker/internal/ports"
)

// LifecycleService tracks the manufacturing stage of each device, keyed by
// its IMEI. Stage writes are permissive; a move backwards is logged and
// counted but still stored.
type LifecycleService struct {
	Resolver   *Resolver
	Lifecycles ports.LifecycleStore
	Notifier   ports.StageNotifier
}

func NewLifecycleService(resolver *Resolver, lifecycles ports.LifecycleStore, notifier ports.StageNotifier) *LifecycleService {
	return &LifecycleService{
		Resolver:   resolver,
		Lifecycles: lifecycles,
		Notifier:   notifier,
	}
}

// RecordStage appends a stage row for the device behind the alias.
func (s *LifecycleService) RecordStage(ctx context.Context, aliasID string, t models.AliasType, stage models.Stage, actor int) (*models.LifeCycle, error) {
	stage, err := models.ParseStage(string(stage))
	if err != nil {
		return nil, err
	}
	device, err := s.Resolver.ResolveToCanonicalDevice(ctx, aliasID, t)
	if err != nil {
		return nil, err
	}

	previous, err := s.latest(ctx, device.IMEI.Ref)
	if err != nil {
		return nil, err
	}

	entry := &models.LifeCycle{
		IMEIRef:   device.IMEI.Ref,
		Stage:     stage,
		CreatedBy: actor,
		IMEI:      device.IMEI.AliasID,
	}
	if err := s.Lifecycles.Create(ctx, entry); err != nil {
		return nil, err
	}

	s.publish(device.IMEI.AliasID, previous, stage, actor)
	return entry, nil
}

// ResolveDispatchStatus reports whether the device behind an alias has
// reached the Carton stage. Missing tracking data is a negative answer,
// not an error.
func (s *LifecycleService) ResolveDispatchStatus(ctx context.Context, aliasID string, t models.AliasType) (*models.DispatchStatus, error) {
	alias, err := s.Resolver.Lookup(ctx, aliasID, t)
	if errors.Is(err, models.ErrNotFound) {
		return &models.DispatchStatus{}, nil
	}
	if err != nil {
		return nil, err
	}

	// An IMEI is its own canonical key; no mapping lookup is needed
	imeiRef := alias.Ref
	if alias.Type != models.AliasIMEI {
		device, err := s.Resolver.ResolveToCanonicalDevice(ctx, aliasID, alias.Type)
		if errors.Is(err, models.ErrNotFound) {
			return &models.DispatchStatus{}, nil
		}
		if err != nil {
			return nil, err
		}
		imeiRef = device.IMEI.Ref
	}

	entry, err := s.latest(ctx, imeiRef)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return &models.DispatchStatus{}, nil
	}
	return &models.DispatchStatus{
		LifeCycle:    entry,
		IsDispatched: entry.Stage == models.StageCarton,
	}, nil
}

// UpdateStage overwrites the stage of the device's latest row in place.
func (s *LifecycleService) UpdateStage(ctx context.Context, aliasID string, t models.AliasType, stage models.Stage, actor int) (*models.LifeCycle, error) {
	stage, err := models.ParseStage(string(stage))
	if err != nil {
		return nil, err
	}
	device, err := s.Resolver.ResolveToCanonicalDevice(ctx, aliasID, t)
	if err != nil {
		return nil, err
	}

	entry, err := s.Lifecycles.Latest(ctx, device.IMEI.Ref)
	if err != nil {
		return nil, err
	}
	previous := *entry

	if err := s.Lifecycles.UpdateStage(ctx, entry.Ref, stage); err != nil {
		return nil, err
	}
	entry.Stage = stage
	entry.UpdatedAt = time.Now()

	s.publish(device.IMEI.AliasID, &previous, stage, actor)
	return entry, nil
}

// History lists every stage row of the device, newest first.
func (s *LifecycleService) History(ctx context.Context, aliasID string, t models.AliasType) ([]*models.LifeCycle, error) {
	device, err := s.Resolver.ResolveToCanonicalDevice(ctx, aliasID, t)
	if err != nil {
		return nil, err
	}
	return s.Lifecycles.History(ctx, device.IMEI.Ref)
}

// latest returns nil without error when the device has no stage yet
func (s *LifecycleService) latest(ctx context.Context, imeiRef int64) (*models.LifeCycle, error) {
	entry, err := s.Lifecycles.Latest(ctx, imeiRef)
	if errors.Is(err, models.ErrNotFound) {
		return nil, nil
	}
	return entry, err
}

func (s *LifecycleService) publish(imei string, previous *models.LifeCycle, stage models.Stage, actor int) {
	event := models.StageEvent{IMEI: imei, Stage: stage, By: actor, At: time.Now()}
	if previous != nil {
		event.Previous = previous.Stage
		if stage.Before(previous.Stage) {
			event.Regressed = true
			metrics.LifecycleRegressions.Inc()
			log.Printf("[Lifecycle] WARNING: %s moved back from %s to %s (user %d)", imei, previous.Stage, stage, actor)
		}
	}
	if s.Notifier != nil {
		s.Notifier.Publish(event)
	}
}
