package services

import (
	"context"
	"log"
	"strings"

	"device-tracker/internal/metrics"
	"device-tracker/internal/models"
	"device-tracker/internal/ports"
)

// WhitelistService registers raw device identifiers. Serial numbers are
// minted from a prefix; IMEIs and device ids are supplied by the caller.
type WhitelistService struct {
	Store     ports.AllocationStore
	Whitelist ports.WhitelistStore
	locks     *scopeLocks
}

func NewWhitelistService(store ports.AllocationStore, whitelist ports.WhitelistStore) *WhitelistService {
	return &WhitelistService{
		Store:     store,
		Whitelist: whitelist,
		locks:     newScopeLocks(),
	}
}

// RegisterBatch persists every group of the request in one reservation.
// Explicit ids that already exist are dropped; a group left empty by that
// fails the whole request with a DuplicateError.
func (s *WhitelistService) RegisterBatch(ctx context.Context, reqs []models.WhitelistRequest, actor int) ([]*models.WhitelistEntry, error) {
	if len(reqs) == 0 {
		return nil, models.NewValidationError("entries", "at least one entry is required")
	}
	scopes := make([]string, 0, len(reqs))
	for i := range reqs {
		if err := normalizeWhitelistRequest(&reqs[i]); err != nil {
			return nil, err
		}
		if reqs[i].Type == models.AliasSerial {
			scopes = append(scopes, serialScope(reqs[i].IDPrefix))
		} else {
			scopes = append(scopes, aliasScope(reqs[i].Type))
		}
	}

	unlock, err := s.locks.Lock(ctx, scopes...)
	if err != nil {
		return nil, err
	}
	defer unlock()

	var entries []*models.WhitelistEntry
	err = s.Store.Reserve(ctx, scopes, func(tx ports.AllocationTx) error {
		nextSerial := make(map[string]int)
		seen := map[models.AliasType]map[string]bool{
			models.AliasIMEI:     {},
			models.AliasDeviceID: {},
		}
		entries = entries[:0]

		for _, req := range reqs {
			var group []*models.WhitelistEntry
			var err error
			if req.Type == models.AliasSerial {
				group, err = mintSerials(ctx, tx, req, nextSerial, actor)
			} else {
				group, err = freshAliases(ctx, tx, req, seen[req.Type], actor)
			}
			if err != nil {
				return err
			}
			entries = append(entries, group...)
		}
		return tx.InsertAliases(ctx, entries)
	})
	if err != nil {
		return nil, err
	}

	metrics.IDsAllocated.WithLabelValues("whitelist").Add(float64(len(entries)))
	log.Printf("[Whitelist] registered %d identifier(s) by user %d", len(entries), actor)
	return entries, nil
}

func normalizeWhitelistRequest(req *models.WhitelistRequest) error {
	if !req.Type.Valid() {
		t, err := models.ParseAliasType(string(req.Type))
		if err != nil {
			return err
		}
		req.Type = t
	}

	if req.Type == models.AliasSerial {
		req.IDPrefix = strings.TrimSpace(req.IDPrefix)
		switch {
		case req.IDPrefix == "":
			return models.NewValidationError("id_prefix", "is required for SN")
		case len(req.IDPrefix) >= SerialIDLength:
			return models.NewValidationError("id_prefix", "must be shorter than %d characters", SerialIDLength)
		case req.Count <= 0:
			return models.NewValidationError("count", "must be greater than zero")
		}
		return nil
	}

	if len(req.IDs) == 0 {
		return models.NewValidationError("ids", "at least one %s is required", req.Type)
	}
	for i, id := range req.IDs {
		id = strings.TrimSpace(id)
		if id == "" {
			return models.NewValidationError("ids", "empty %s at position %d", req.Type, i)
		}
		if req.Type == models.AliasDeviceID && len(id) > DeviceIDMaxLength {
			return models.NewValidationError("ids", "DeviceID %q is longer than %d characters", id, DeviceIDMaxLength)
		}
		if len(id) > AliasIDMaxLength {
			return models.NewValidationError("ids", "%s %q is longer than %d characters", req.Type, id, AliasIDMaxLength)
		}
		req.IDs[i] = id
	}
	return nil
}

// mintSerials numbers count serials starting after the entries already
// registered under the prefix, or after the highest one if that is larger.
// The two agree until an entry is deleted.
func mintSerials(ctx context.Context, tx ports.AllocationTx, req models.WhitelistRequest, next map[string]int, actor int) ([]*models.WhitelistEntry, error) {
	seq, ok := next[req.IDPrefix]
	if !ok {
		n, err := tx.CountAliases(ctx, models.AliasSerial, req.IDPrefix)
		if err != nil {
			return nil, err
		}
		last, err := tx.LastAliasID(ctx, models.AliasSerial, req.IDPrefix)
		if err != nil {
			return nil, err
		}
		lastSeq, err := sequenceOf(last, req.IDPrefix)
		if err != nil {
			return nil, err
		}
		seq = max(n, lastSeq) + 1
	}

	ids := make([]string, 0, req.Count)
	for i := 0; i < req.Count; i++ {
		id, err := SerialID(req.IDPrefix, seq+i)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	next[req.IDPrefix] = seq + req.Count

	taken, err := tx.ExistingAliases(ctx, models.AliasSerial, ids)
	if err != nil {
		return nil, err
	}
	if len(taken) > 0 {
		return nil, &models.DuplicateError{Kind: "serial number", IDs: taken}
	}

	group := make([]*models.WhitelistEntry, len(ids))
	for i, id := range ids {
		group[i] = &models.WhitelistEntry{AliasID: id, IDPrefix: req.IDPrefix, Type: models.AliasSerial, CreatedBy: actor}
	}
	return group, nil
}

// freshAliases drops ids already registered or repeated earlier in the request.
func freshAliases(ctx context.Context, tx ports.AllocationTx, req models.WhitelistRequest, seen map[string]bool, actor int) ([]*models.WhitelistEntry, error) {
	taken, err := tx.ExistingAliases(ctx, req.Type, req.IDs)
	if err != nil {
		return nil, err
	}
	for _, id := range taken {
		seen[id] = true
	}

	var group []*models.WhitelistEntry
	for _, id := range req.IDs {
		if seen[id] {
			continue
		}
		seen[id] = true
		group = append(group, &models.WhitelistEntry{AliasID: id, IDPrefix: req.IDPrefix, Type: req.Type, CreatedBy: actor})
	}
	if len(group) == 0 {
		return nil, &models.DuplicateError{Kind: string(req.Type), IDs: req.IDs}
	}
	if skipped := len(req.IDs) - len(group); skipped > 0 {
		log.Printf("[Whitelist] skipped %d duplicate %s id(s)", skipped, req.Type)
	}
	return group, nil
}

func (s *WhitelistService) Get(ctx context.Context, ref int64) (*models.WhitelistEntry, error) {
	return s.Whitelist.Get(ctx, ref)
}

func (s *WhitelistService) List(ctx context.Context, t models.AliasType) ([]*models.WhitelistEntry, error) {
	return s.Whitelist.List(ctx, t)
}

func (s *WhitelistService) Delete(ctx context.Context, ref int64) error {
	return s.Whitelist.Delete(ctx, ref)
}
