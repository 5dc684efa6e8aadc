package services

import (
	"context"
	"errors"
	"strings"

	"device-tracker/internal/models"
	"device-tracker/internal/ports"
)

// Resolver turns any alias into the device it belongs to. Lifecycle,
// mapping and packlist code all go through it instead of branching on
// alias type themselves.
type Resolver struct {
	Whitelist ports.WhitelistStore
	Mappings  ports.MappingStore
}

func NewResolver(whitelist ports.WhitelistStore, mappings ports.MappingStore) *Resolver {
	return &Resolver{Whitelist: whitelist, Mappings: mappings}
}

// Lookup finds the whitelist entry for an alias.
func (r *Resolver) Lookup(ctx context.Context, aliasID string, t models.AliasType) (*models.WhitelistEntry, error) {
	aliasID = strings.TrimSpace(aliasID)
	if aliasID == "" {
		return nil, models.NewValidationError("id", "is required")
	}
	if !t.Valid() {
		parsed, err := models.ParseAliasType(string(t))
		if err != nil {
			return nil, err
		}
		t = parsed
	}
	return r.Whitelist.FindByAlias(ctx, aliasID, t)
}

// ResolveToCanonicalDevice returns the device behind an alias. An IMEI is
// canonical on its own and may be unmapped; a serial number or device id
// must be mapped, otherwise the result is a NotFoundError.
func (r *Resolver) ResolveToCanonicalDevice(ctx context.Context, aliasID string, t models.AliasType) (*models.DeviceIdentity, error) {
	alias, err := r.Lookup(ctx, aliasID, t)
	if err != nil {
		return nil, err
	}

	mapping, err := r.Mappings.FindByAnyRef(ctx, alias.Ref)
	if errors.Is(err, models.ErrNotFound) {
		if alias.Type == models.AliasIMEI {
			return &models.DeviceIdentity{Alias: alias, IMEI: alias}, nil
		}
		return nil, models.NotFound("mapping", alias.AliasID)
	}
	if err != nil {
		return nil, err
	}

	identity := &models.DeviceIdentity{Alias: alias, Mapping: mapping}
	if alias.Type == models.AliasIMEI {
		identity.IMEI = alias
	} else {
		identity.IMEI = &models.WhitelistEntry{
			Ref:     mapping.IMEIRef,
			AliasID: mapping.IMEI,
			Type:    models.AliasIMEI,
		}
	}
	return identity, nil
}

// ResolveMapping returns the mapping holding an alias in any slot.
func (r *Resolver) ResolveMapping(ctx context.Context, aliasID string, t models.AliasType) (*models.Mapping, error) {
	alias, err := r.Lookup(ctx, aliasID, t)
	if err != nil {
		return nil, err
	}
	mapping, err := r.Mappings.FindByAnyRef(ctx, alias.Ref)
	if errors.Is(err, models.ErrNotFound) {
		return nil, models.NotFound("mapping", alias.AliasID)
	}
	return mapping, err
}
