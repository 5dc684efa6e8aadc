package handlers

import (
	"context"
	"errors"
	"strings"
	"sync"

	"device-tracker/internal/models"
	"device-tracker/internal/ports"
)

// memStore backs the whitelist and batch services in handler tests.
type memStore struct {
	mu      sync.Mutex
	nextRef int64
	aliases []*models.WhitelistEntry
	batches []*models.Batch
	cartons []*models.Carton
	users   []*models.User
}

func (s *memStore) ref() int64 {
	s.nextRef++
	return s.nextRef
}

func (s *memStore) Reserve(ctx context.Context, scopes []string, fn func(tx ports.AllocationTx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	aliases := append([]*models.WhitelistEntry(nil), s.aliases...)
	batches := append([]*models.Batch(nil), s.batches...)
	cartons := append([]*models.Carton(nil), s.cartons...)
	if err := fn(memTx{s}); err != nil {
		s.aliases, s.batches, s.cartons = aliases, batches, cartons
		return err
	}
	return nil
}

type memTx struct{ s *memStore }

func (tx memTx) LastBatchID(ctx context.Context, prefix string) (string, error) {
	last := ""
	for _, b := range tx.s.batches {
		if b.IDPrefix == prefix && b.BatchID > last {
			last = b.BatchID
		}
	}
	return last, nil
}

func (tx memTx) ExistingBatchIDs(ctx context.Context, ids []string) ([]string, error) {
	var out []string
	for _, id := range ids {
		for _, b := range tx.s.batches {
			if b.BatchID == id {
				out = append(out, id)
			}
		}
	}
	return out, nil
}

func (tx memTx) InsertBatches(ctx context.Context, batches []*models.Batch) error {
	for _, b := range batches {
		b.Ref = tx.s.ref()
		tx.s.batches = append(tx.s.batches, b)
	}
	return nil
}

func (tx memTx) GetBatch(ctx context.Context, batchID string) (*models.Batch, error) {
	return tx.s.batch(batchID)
}

func (tx memTx) LastCartonID(ctx context.Context, batchRef int64) (string, error) {
	last := ""
	for _, c := range tx.s.cartons {
		if c.BatchRef == batchRef && c.CartonID > last {
			last = c.CartonID
		}
	}
	return last, nil
}

func (tx memTx) InsertCartons(ctx context.Context, cartons []*models.Carton) error {
	for _, c := range cartons {
		c.Ref = tx.s.ref()
		tx.s.cartons = append(tx.s.cartons, c)
	}
	return nil
}

func (tx memTx) CountAliases(ctx context.Context, t models.AliasType, prefix string) (int, error) {
	n := 0
	for _, a := range tx.s.aliases {
		if a.Type == t && a.IDPrefix == prefix {
			n++
		}
	}
	return n, nil
}

func (tx memTx) LastAliasID(ctx context.Context, t models.AliasType, prefix string) (string, error) {
	last := ""
	for _, a := range tx.s.aliases {
		if a.Type == t && a.IDPrefix == prefix && a.AliasID > last {
			last = a.AliasID
		}
	}
	return last, nil
}

func (tx memTx) ExistingAliases(ctx context.Context, t models.AliasType, ids []string) ([]string, error) {
	var out []string
	for _, id := range ids {
		for _, a := range tx.s.aliases {
			if a.Type == t && a.AliasID == id {
				out = append(out, id)
			}
		}
	}
	return out, nil
}

func (tx memTx) InsertAliases(ctx context.Context, entries []*models.WhitelistEntry) error {
	for _, e := range entries {
		e.Ref = tx.s.ref()
		tx.s.aliases = append(tx.s.aliases, e)
	}
	return nil
}

func (s *memStore) batch(batchID string) (*models.Batch, error) {
	for _, b := range s.batches {
		if b.BatchID == batchID {
			return b, nil
		}
	}
	return nil, models.NotFound("batch", batchID)
}

type whitelistView struct{ *memStore }

func (v whitelistView) FindByAlias(ctx context.Context, aliasID string, t models.AliasType) (*models.WhitelistEntry, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	for _, a := range v.aliases {
		if a.Type == t && a.AliasID == aliasID {
			return a, nil
		}
	}
	return nil, models.NotFound(string(t), aliasID)
}

func (v whitelistView) Get(ctx context.Context, ref int64) (*models.WhitelistEntry, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	for _, a := range v.aliases {
		if a.Ref == ref {
			return a, nil
		}
	}
	return nil, models.NotFound("whitelist entry", "")
}

func (v whitelistView) List(ctx context.Context, t models.AliasType) ([]*models.WhitelistEntry, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	var out []*models.WhitelistEntry
	for _, a := range v.aliases {
		if t == "" || a.Type == t {
			out = append(out, a)
		}
	}
	return out, nil
}

func (v whitelistView) Delete(ctx context.Context, ref int64) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	for i, a := range v.aliases {
		if a.Ref == ref {
			v.aliases = append(v.aliases[:i], v.aliases[i+1:]...)
			return nil
		}
	}
	return models.NotFound("whitelist entry", "")
}

type batchView struct{ *memStore }

func (v batchView) GetByBatchID(ctx context.Context, batchID string) (*models.Batch, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	b, err := v.batch(batchID)
	if err != nil {
		return nil, err
	}
	cp := *b
	cp.Cartons = nil
	return &cp, nil
}

func (v batchView) List(ctx context.Context) ([]*models.Batch, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]*models.Batch(nil), v.batches...), nil
}

func (v batchView) UpdateCartonSize(ctx context.Context, ref int64, cartonSize int) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	for _, b := range v.batches {
		if b.Ref == ref {
			b.CartonSize = cartonSize
			return nil
		}
	}
	return models.NotFound("batch", "")
}

func (v batchView) Delete(ctx context.Context, ref int64) error {
	return errors.New("not supported")
}

func (v batchView) HasPackedCartons(ctx context.Context, ref int64) (bool, error) {
	return false, nil
}

type cartonView struct{ *memStore }

func (v cartonView) GetByCartonID(ctx context.Context, cartonID string) (*models.Carton, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	for _, c := range v.cartons {
		if c.CartonID == cartonID {
			return c, nil
		}
	}
	return nil, models.NotFound("carton", cartonID)
}

func (v cartonView) ListByBatch(ctx context.Context, batchRef int64) ([]*models.Carton, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	var out []*models.Carton
	for _, c := range v.cartons {
		if c.BatchRef == batchRef {
			out = append(out, c)
		}
	}
	return out, nil
}

func (v cartonView) FirstOpen(ctx context.Context, batchRef int64) (*models.Carton, error) {
	return nil, models.NotFound("open carton", "")
}

type userView struct{ *memStore }

func (v userView) Create(ctx context.Context, u *models.User) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	for _, existing := range v.users {
		if strings.EqualFold(existing.Email, u.Email) {
			return &models.DuplicateError{Kind: "user", IDs: []string{u.Email}}
		}
	}
	u.ID = int(v.ref())
	v.users = append(v.users, u)
	return nil
}

func (v userView) Get(ctx context.Context, id int) (*models.User, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	for _, u := range v.users {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, models.NotFound("user", "")
}

func (v userView) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	for _, u := range v.users {
		if strings.EqualFold(u.Email, email) {
			return u, nil
		}
	}
	return nil, models.NotFound("user", email)
}

type pinger struct{ err error }

func (p pinger) Ping(ctx context.Context) error { return p.err }
