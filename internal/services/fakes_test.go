package services

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"device-tracker/internal/auth"
	"device-tracker/internal/config"
	"device-tracker/internal/models"
	"device-tracker/internal/ports"
)

// memDB is an in-memory stand-in for the postgres repositories. Reserve
// serializes on mu and restores the previous state when fn fails.
type memDB struct {
	mu      sync.Mutex
	nextRef int64

	aliases    []*models.WhitelistEntry
	batches    []*models.Batch
	cartons    []*models.Carton
	mappings   []*models.Mapping
	lifecycles []*models.LifeCycle
	packlists  []*models.Packlist
	users      []*models.User

	failCartons error
}

func newMemDB() *memDB { return &memDB{} }

func (db *memDB) ref() int64 {
	db.nextRef++
	return db.nextRef
}

type memSnapshot struct {
	nextRef int64
	aliases []*models.WhitelistEntry
	batches []*models.Batch
	cartons []*models.Carton
}

func (db *memDB) Reserve(ctx context.Context, scopes []string, fn func(tx ports.AllocationTx) error) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return &models.UnavailableError{Op: "reserve", Err: err}
	}

	snap := memSnapshot{
		nextRef: db.nextRef,
		aliases: append([]*models.WhitelistEntry(nil), db.aliases...),
		batches: append([]*models.Batch(nil), db.batches...),
		cartons: append([]*models.Carton(nil), db.cartons...),
	}
	if err := fn(memTx{db}); err != nil {
		db.nextRef = snap.nextRef
		db.aliases, db.batches, db.cartons = snap.aliases, snap.batches, snap.cartons
		return err
	}
	return nil
}

// memTx runs with db.mu already held.
type memTx struct{ db *memDB }

func (tx memTx) LastBatchID(ctx context.Context, prefix string) (string, error) {
	last := ""
	for _, b := range tx.db.batches {
		if b.IDPrefix == prefix && b.BatchID > last {
			last = b.BatchID
		}
	}
	return last, nil
}

func (tx memTx) ExistingBatchIDs(ctx context.Context, ids []string) ([]string, error) {
	var out []string
	for _, id := range ids {
		for _, b := range tx.db.batches {
			if b.BatchID == id {
				out = append(out, id)
			}
		}
	}
	return out, nil
}

func (tx memTx) InsertBatches(ctx context.Context, batches []*models.Batch) error {
	for _, b := range batches {
		for _, existing := range tx.db.batches {
			if existing.BatchID == b.BatchID {
				return models.DuplicateBatchIDError([]string{b.BatchID})
			}
		}
		b.Ref = tx.db.ref()
		b.CreatedAt = time.Now()
		tx.db.batches = append(tx.db.batches, b)
	}
	return nil
}

func (tx memTx) GetBatch(ctx context.Context, batchID string) (*models.Batch, error) {
	return tx.db.batchByID(batchID)
}

func (tx memTx) LastCartonID(ctx context.Context, batchRef int64) (string, error) {
	last := ""
	for _, c := range tx.db.cartons {
		if c.BatchRef == batchRef && c.CartonID > last {
			last = c.CartonID
		}
	}
	return last, nil
}

func (tx memTx) InsertCartons(ctx context.Context, cartons []*models.Carton) error {
	if tx.db.failCartons != nil {
		return tx.db.failCartons
	}
	for _, c := range cartons {
		for _, existing := range tx.db.cartons {
			if existing.CartonID == c.CartonID {
				return &models.DuplicateError{Kind: "carton", IDs: []string{c.CartonID}}
			}
		}
		c.Ref = tx.db.ref()
		c.CreatedAt = time.Now()
		tx.db.cartons = append(tx.db.cartons, c)
	}
	return nil
}

func (tx memTx) CountAliases(ctx context.Context, t models.AliasType, prefix string) (int, error) {
	n := 0
	for _, a := range tx.db.aliases {
		if a.Type == t && a.IDPrefix == prefix {
			n++
		}
	}
	return n, nil
}

func (tx memTx) LastAliasID(ctx context.Context, t models.AliasType, prefix string) (string, error) {
	last := ""
	for _, a := range tx.db.aliases {
		if a.Type == t && a.IDPrefix == prefix && a.AliasID > last {
			last = a.AliasID
		}
	}
	return last, nil
}

func (tx memTx) ExistingAliases(ctx context.Context, t models.AliasType, ids []string) ([]string, error) {
	var out []string
	for _, id := range ids {
		for _, a := range tx.db.aliases {
			if a.Type == t && a.AliasID == id {
				out = append(out, id)
			}
		}
	}
	return out, nil
}

func (tx memTx) InsertAliases(ctx context.Context, entries []*models.WhitelistEntry) error {
	for _, e := range entries {
		for _, a := range tx.db.aliases {
			if a.Type == e.Type && a.AliasID == e.AliasID {
				return &models.DuplicateError{Kind: "whitelist entry", IDs: []string{e.AliasID}}
			}
		}
		e.Ref = tx.db.ref()
		e.CreatedAt = time.Now()
		tx.db.aliases = append(tx.db.aliases, e)
	}
	return nil
}

func (db *memDB) batchByID(batchID string) (*models.Batch, error) {
	for _, b := range db.batches {
		if b.BatchID == batchID {
			return b, nil
		}
	}
	return nil, models.NotFound("batch", batchID)
}

func (db *memDB) aliasByRef(ref int64) *models.WhitelistEntry {
	for _, a := range db.aliases {
		if a.Ref == ref {
			return a
		}
	}
	return nil
}

// seedAlias registers an identifier outside any reservation.
func (db *memDB) seedAlias(t models.AliasType, id string) *models.WhitelistEntry {
	db.mu.Lock()
	defer db.mu.Unlock()
	e := &models.WhitelistEntry{Ref: db.ref(), AliasID: id, Type: t, CreatedAt: time.Now()}
	db.aliases = append(db.aliases, e)
	return e
}

type fakeWhitelist struct{ *memDB }

func (f fakeWhitelist) FindByAlias(ctx context.Context, aliasID string, t models.AliasType) (*models.WhitelistEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range f.aliases {
		if a.Type == t && a.AliasID == aliasID {
			return a, nil
		}
	}
	return nil, models.NotFound(string(t), aliasID)
}

func (f fakeWhitelist) Get(ctx context.Context, ref int64) (*models.WhitelistEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if a := f.aliasByRef(ref); a != nil {
		return a, nil
	}
	return nil, models.NotFound("whitelist entry", "")
}

func (f fakeWhitelist) List(ctx context.Context, t models.AliasType) ([]*models.WhitelistEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.WhitelistEntry
	for _, a := range f.aliases {
		if t == "" || a.Type == t {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f fakeWhitelist) Delete(ctx context.Context, ref int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, a := range f.aliases {
		if a.Ref == ref {
			f.aliases = append(f.aliases[:i], f.aliases[i+1:]...)
			return nil
		}
	}
	return models.NotFound("whitelist entry", "")
}

type fakeBatches struct{ *memDB }

func (f fakeBatches) GetByBatchID(ctx context.Context, batchID string) (*models.Batch, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, err := f.batchByID(batchID)
	if err != nil {
		return nil, err
	}
	cp := *b
	return &cp, nil
}

func (f fakeBatches) List(ctx context.Context) ([]*models.Batch, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*models.Batch(nil), f.batches...), nil
}

func (f fakeBatches) UpdateCartonSize(ctx context.Context, ref int64, cartonSize int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, b := range f.batches {
		if b.Ref == ref {
			b.CartonSize = cartonSize
			return nil
		}
	}
	return models.NotFound("batch", "")
}

func (f fakeBatches) Delete(ctx context.Context, ref int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, b := range f.batches {
		if b.Ref == ref {
			f.batches = append(f.batches[:i], f.batches[i+1:]...)
			kept := f.cartons[:0]
			for _, c := range f.cartons {
				if c.BatchRef != ref {
					kept = append(kept, c)
				}
			}
			f.cartons = kept
			return nil
		}
	}
	return models.NotFound("batch", "")
}

func (f fakeBatches) HasPackedCartons(ctx context.Context, ref int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.packlists {
		for _, c := range f.cartons {
			if c.Ref == p.CartonRef && c.BatchRef == ref {
				return true, nil
			}
		}
	}
	return false, nil
}

type fakeCartons struct{ *memDB }

func (f fakeCartons) GetByCartonID(ctx context.Context, cartonID string) (*models.Carton, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.cartons {
		if c.CartonID == cartonID {
			return c, nil
		}
	}
	return nil, models.NotFound("carton", cartonID)
}

func (f fakeCartons) ListByBatch(ctx context.Context, batchRef int64) ([]*models.Carton, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Carton
	for _, c := range f.cartons {
		if c.BatchRef == batchRef {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CartonID < out[j].CartonID })
	return out, nil
}

func (f fakeCartons) FirstOpen(ctx context.Context, batchRef int64) (*models.Carton, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var best *models.Carton
	for _, c := range f.cartons {
		if batchRef != 0 && c.BatchRef != batchRef {
			continue
		}
		packed := 0
		for _, p := range f.packlists {
			if p.CartonRef == c.Ref {
				packed++
			}
		}
		if packed < c.CartonSize && (best == nil || c.CartonID < best.CartonID) {
			best = c
		}
	}
	if best == nil {
		return nil, models.NotFound("open carton", "")
	}
	return best, nil
}

type fakeMappings struct{ *memDB }

func (f fakeMappings) joined(m *models.Mapping) *models.Mapping {
	cp := *m
	if a := f.aliasByRef(m.IMEIRef); a != nil {
		cp.IMEI = a.AliasID
	}
	if a := f.aliasByRef(m.SerialRef); a != nil {
		cp.SerialNo = a.AliasID
	}
	if a := f.aliasByRef(m.DeviceRef); a != nil {
		cp.DeviceID = a.AliasID
	}
	return &cp
}

func (f fakeMappings) Create(ctx context.Context, m *models.Mapping) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.mappings {
		if existing.IMEIRef == m.IMEIRef || existing.SerialRef == m.SerialRef || existing.DeviceRef == m.DeviceRef {
			return &models.DuplicateError{Kind: "mapping"}
		}
	}
	m.Ref = f.ref()
	m.CreatedAt = time.Now()
	stored := *m
	f.mappings = append(f.mappings, &stored)
	return nil
}

func (f fakeMappings) Get(ctx context.Context, ref int64) (*models.Mapping, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range f.mappings {
		if m.Ref == ref {
			return f.joined(m), nil
		}
	}
	return nil, models.NotFound("mapping", "")
}

func (f fakeMappings) FindByAnyRef(ctx context.Context, refs ...int64) (*models.Mapping, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range f.mappings {
		for _, r := range refs {
			if m.IMEIRef == r || m.SerialRef == r || m.DeviceRef == r {
				return f.joined(m), nil
			}
		}
	}
	return nil, models.NotFound("mapping", "")
}

func (f fakeMappings) List(ctx context.Context) ([]*models.Mapping, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*models.Mapping, 0, len(f.mappings))
	for _, m := range f.mappings {
		out = append(out, f.joined(m))
	}
	return out, nil
}

func (f fakeMappings) Update(ctx context.Context, m *models.Mapping) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.mappings {
		if existing.Ref == m.Ref {
			existing.IMEIRef, existing.SerialRef, existing.DeviceRef = m.IMEIRef, m.SerialRef, m.DeviceRef
			return nil
		}
	}
	return models.NotFound("mapping", "")
}

func (f fakeMappings) Delete(ctx context.Context, ref int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, m := range f.mappings {
		if m.Ref == ref {
			f.mappings = append(f.mappings[:i], f.mappings[i+1:]...)
			return nil
		}
	}
	return models.NotFound("mapping", "")
}

func (f fakeMappings) FirstUnmapped(ctx context.Context, t models.AliasType) (*models.WhitelistEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var best *models.WhitelistEntry
	for _, a := range f.aliases {
		if a.Type != t {
			continue
		}
		mapped := false
		for _, m := range f.mappings {
			if m.IMEIRef == a.Ref || m.SerialRef == a.Ref || m.DeviceRef == a.Ref {
				mapped = true
			}
		}
		if !mapped && (best == nil || a.AliasID < best.AliasID) {
			best = a
		}
	}
	if best == nil {
		return nil, models.NotFound("unmapped "+string(t), "")
	}
	return best, nil
}

type fakeLifecycles struct{ *memDB }

func (f fakeLifecycles) Create(ctx context.Context, l *models.LifeCycle) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	l.Ref = f.ref()
	l.CreatedAt = time.Now()
	l.UpdatedAt = l.CreatedAt
	stored := *l
	f.lifecycles = append(f.lifecycles, &stored)
	return nil
}

func (f fakeLifecycles) Latest(ctx context.Context, imeiRef int64) (*models.LifeCycle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.lifecycles) - 1; i >= 0; i-- {
		if f.lifecycles[i].IMEIRef == imeiRef {
			cp := *f.lifecycles[i]
			return &cp, nil
		}
	}
	return nil, models.NotFound("lifecycle", "")
}

func (f fakeLifecycles) UpdateStage(ctx context.Context, ref int64, stage models.Stage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, l := range f.lifecycles {
		if l.Ref == ref {
			l.Stage = stage
			return nil
		}
	}
	return models.NotFound("lifecycle", "")
}

func (f fakeLifecycles) History(ctx context.Context, imeiRef int64) ([]*models.LifeCycle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.LifeCycle
	for i := len(f.lifecycles) - 1; i >= 0; i-- {
		if f.lifecycles[i].IMEIRef == imeiRef {
			out = append(out, f.lifecycles[i])
		}
	}
	return out, nil
}

type fakePacklists struct{ *memDB }

func (f fakePacklists) Create(ctx context.Context, p *models.Packlist) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p.Ref = f.ref()
	p.CreatedAt = time.Now()
	stored := *p
	f.packlists = append(f.packlists, &stored)
	return nil
}

func (f fakePacklists) Get(ctx context.Context, ref int64) (*models.Packlist, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.packlists {
		if p.Ref == ref {
			cp := *p
			for _, c := range f.cartons {
				if c.Ref == p.CartonRef {
					cp.CartonID, cp.BatchID = c.CartonID, c.BatchID
				}
			}
			return &cp, nil
		}
	}
	return nil, models.NotFound("packlist entry", "")
}

func (f fakePacklists) filter(keep func(p *models.Packlist) bool) []*models.Packlist {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Packlist
	for _, p := range f.packlists {
		if keep(p) {
			out = append(out, p)
		}
	}
	return out
}

func (f fakePacklists) ListByCarton(ctx context.Context, cartonRef int64) ([]*models.Packlist, error) {
	return f.filter(func(p *models.Packlist) bool { return p.CartonRef == cartonRef }), nil
}

func (f fakePacklists) ListByBatch(ctx context.Context, batchRef int64) ([]*models.Packlist, error) {
	f.mu.Lock()
	refs := make(map[int64]bool)
	for _, c := range f.cartons {
		if c.BatchRef == batchRef {
			refs[c.Ref] = true
		}
	}
	f.mu.Unlock()
	return f.filter(func(p *models.Packlist) bool { return refs[p.CartonRef] }), nil
}

func (f fakePacklists) ListByShipment(ctx context.Context, from, to time.Time) ([]*models.Packlist, error) {
	return f.filter(func(p *models.Packlist) bool {
		return !p.ShipmentDate.Before(from) && p.ShipmentDate.Before(to)
	}), nil
}

func (f fakePacklists) Update(ctx context.Context, p *models.Packlist) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.packlists {
		if existing.Ref == p.Ref {
			existing.CartonRef, existing.ShipmentDate = p.CartonRef, p.ShipmentDate
			return nil
		}
	}
	return models.NotFound("packlist entry", "")
}

func (f fakePacklists) DeleteByCarton(ctx context.Context, cartonRef int64) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	kept := f.packlists[:0]
	var n int64
	for _, p := range f.packlists {
		if p.CartonRef == cartonRef {
			n++
			continue
		}
		kept = append(kept, p)
	}
	f.packlists = kept
	return n, nil
}

type fakeUsers struct{ *memDB }

func (f fakeUsers) Create(ctx context.Context, u *models.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.users {
		if existing.Email == u.Email {
			return &models.DuplicateError{Kind: "user", IDs: []string{u.Email}}
		}
	}
	u.ID = int(f.ref())
	u.IsActive = true
	if u.AccessLevel == "" {
		u.AccessLevel = "operator"
	}
	f.users = append(f.users, u)
	return nil
}

func (f fakeUsers) Get(ctx context.Context, id int) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, models.NotFound("user", "")
}

func (f fakeUsers) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if strings.EqualFold(u.Email, email) {
			return u, nil
		}
	}
	return nil, models.NotFound("user", email)
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []models.StageEvent
}

func (n *recordingNotifier) Publish(e models.StageEvent) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, e)
}

type memObjectStore struct {
	objects map[string][]byte
}

func (s *memObjectStore) Upload(ctx context.Context, key, contentType string, data []byte) (string, error) {
	if s.objects == nil {
		s.objects = make(map[string][]byte)
	}
	s.objects[key] = data
	return "https://files.example.com/" + key, nil
}

// testEnv wires every service over one memDB.
type testEnv struct {
	db        *memDB
	allocator *AllocatorService
	whitelist *WhitelistService
	resolver  *Resolver
	mappings  *MappingService
	lifecycle *LifecycleService
	packlists *PacklistService
	batches   *BatchService
	notifier  *recordingNotifier
}

func newTestEnv() *testEnv {
	db := newMemDB()
	resolver := NewResolver(fakeWhitelist{db}, fakeMappings{db})
	notifier := &recordingNotifier{}
	return &testEnv{
		db:        db,
		allocator: NewAllocatorService(db),
		whitelist: NewWhitelistService(db, fakeWhitelist{db}),
		resolver:  resolver,
		mappings:  NewMappingService(resolver, fakeMappings{db}),
		lifecycle: NewLifecycleService(resolver, fakeLifecycles{db}, notifier),
		packlists: NewPacklistService(resolver, fakeBatches{db}, fakeCartons{db}, fakePacklists{db}),
		batches:   NewBatchService(fakeBatches{db}, fakeCartons{db}),
		notifier:  notifier,
	}
}

// mappedDevice registers and maps one device, returning its aliases.
func (e *testEnv) mappedDevice(imei, sn, dev string) models.AliasTriple {
	e.db.seedAlias(models.AliasIMEI, imei)
	e.db.seedAlias(models.AliasSerial, sn)
	e.db.seedAlias(models.AliasDeviceID, dev)
	triple := models.AliasTriple{IMEI: imei, SerialNo: sn, DeviceID: dev}
	if _, err := e.mappings.CreateMapping(context.Background(), triple, 1); err != nil {
		panic(err)
	}
	return triple
}

func testJWTManager() *auth.JWTManager {
	cfg := &config.Config{}
	cfg.JWT.Secret = "test-secret"
	cfg.JWT.Issuer = "device-tracker"
	cfg.JWT.ExpirationHours = 1
	return auth.NewJWTManager(cfg)
}
