package service

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/iliyamo/resource-rental/internal/apperr"
	"github.com/iliyamo/resource-rental/internal/cache"
	"github.com/iliyamo/resource-rental/internal/model"
	"github.com/iliyamo/resource-rental/internal/queue"
)

// memState is the data behind fakeStore.  Transactions work on a copy and
// swap it in on commit.
type memState struct {
	resources    map[uint64]model.Resource
	reservations map[uint64]model.Reservation
	audit        []model.AuditEntry
	checkouts    map[string]model.CheckoutStaging
	nextID       uint64
}

func (s *memState) clone() *memState {
	out := &memState{
		resources:    make(map[uint64]model.Resource, len(s.resources)),
		reservations: make(map[uint64]model.Reservation, len(s.reservations)),
		audit:        append([]model.AuditEntry(nil), s.audit...),
		checkouts:    make(map[string]model.CheckoutStaging, len(s.checkouts)),
		nextID:       s.nextID,
	}
	for k, v := range s.resources {
		out.resources[k] = v
	}
	for k, v := range s.reservations {
		out.reservations[k] = v
	}
	for k, v := range s.checkouts {
		out.checkouts[k] = v
	}
	return out
}

// fakeStore serializes transactions behind one mutex, which is a coarser
// version of the per-resource row lock the MySQL store takes.
type fakeStore struct {
	mu    sync.Mutex
	data  *memState
	fail  map[string]error
	calls map[string]int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		data: &memState{
			resources:    map[uint64]model.Resource{},
			reservations: map[uint64]model.Reservation{},
			checkouts:    map[string]model.CheckoutStaging{},
		},
		fail:  map[string]error{},
		calls: map[string]int{},
	}
}

func (f *fakeStore) addResource(r model.Resource) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data.resources[r.ID] = r
}

func (f *fakeStore) addReservation(r model.Reservation) model.Reservation {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data.nextID++
	r.ID = f.data.nextID
	f.data.reservations[r.ID] = r
	return r
}

func (f *fakeStore) reservationCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.data.reservations)
}

func (f *fakeStore) stored(id uint64) model.Reservation {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.data.reservations[id]
}

func (f *fakeStore) auditFor(id uint64) []model.AuditEntry {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.AuditEntry
	for _, e := range f.data.audit {
		if e.ReservationID == id {
			out = append(out, e)
		}
	}
	return out
}

func (f *fakeStore) hit(op string) error {
	f.calls[op]++
	return f.fail[op]
}

func (f *fakeStore) Begin(ctx context.Context) (Tx, error) {
	f.mu.Lock()
	if err := f.hit("begin"); err != nil {
		f.mu.Unlock()
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		f.mu.Unlock()
		return nil, err
	}
	return &fakeTx{store: f, data: f.data.clone()}, nil
}

func (f *fakeStore) Resource(_ context.Context, id uint64) (*model.Resource, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.data.resource(id)
}

func (f *fakeStore) BlockingReservations(_ context.Context, resourceID uint64) ([]model.Reservation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.hit("blocking"); err != nil {
		return nil, err
	}
	var out []model.Reservation
	for _, r := range f.data.reservations {
		if r.ResourceID == resourceID && r.Status.Blocking() {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeStore) Reservation(_ context.Context, id uint64) (*model.Reservation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.data.reservation(id)
}

func (f *fakeStore) ListReservations(_ context.Context, flt model.ReservationFilter) ([]model.Reservation, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var all []model.Reservation
	for _, r := range f.data.reservations {
		if flt.Status != "" && r.Status != flt.Status {
			continue
		}
		if flt.ResourceID != 0 && r.ResourceID != flt.ResourceID {
			continue
		}
		if flt.OwnerID != 0 && f.data.resources[r.ResourceID].OwnerID != flt.OwnerID {
			continue
		}
		if flt.RequesterID != 0 || flt.RequesterEmail != "" {
			mine := r.Requester.CustomerID != nil && *r.Requester.CustomerID == flt.RequesterID
			if r.Requester.CustomerID == nil && flt.RequesterEmail != "" {
				mine = strings.EqualFold(r.Requester.Email, flt.RequesterEmail)
			}
			if !mine {
				continue
			}
		}
		all = append(all, r)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID > all[j].ID })
	total := len(all)
	from := (flt.Page - 1) * flt.PageSize
	if from > total {
		from = total
	}
	to := from + flt.PageSize
	if to > total {
		to = total
	}
	return all[from:to], total, nil
}

func (f *fakeStore) History(_ context.Context, id uint64) ([]model.AuditEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.AuditEntry
	for _, e := range f.data.audit {
		if e.ReservationID == id {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeStore) OverdueReservations(_ context.Context, now time.Time, limit int) ([]uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var ids []uint64
	for id, r := range f.data.reservations {
		if r.Status == model.StatusDelivered && r.Interval.End.Before(now) {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	if len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}

func (f *fakeStore) CreateCheckout(_ context.Context, s *model.CheckoutStaging) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.hit("create_checkout"); err != nil {
		return err
	}
	f.data.checkouts[s.Token] = *s
	return nil
}

func (f *fakeStore) Checkout(_ context.Context, token string) (*model.CheckoutStaging, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["checkout"]++
	return f.data.checkout(token)
}

func (s *memState) resource(id uint64) (*model.Resource, error) {
	r, ok := s.resources[id]
	if !ok {
		return nil, apperr.New(apperr.KindResourceNotFound, "resource %d not found", id)
	}
	return &r, nil
}

func (s *memState) reservation(id uint64) (*model.Reservation, error) {
	r, ok := s.reservations[id]
	if !ok {
		return nil, apperr.New(apperr.KindNotFound, "reservation %d not found", id)
	}
	return &r, nil
}

func (s *memState) checkout(token string) (*model.CheckoutStaging, error) {
	c, ok := s.checkouts[token]
	if !ok {
		return nil, apperr.New(apperr.KindNotFound, "checkout %s not found", token)
	}
	return &c, nil
}

type fakeTx struct {
	store *fakeStore
	data  *memState
	done  bool
}

func (t *fakeTx) finish() {
	if !t.done {
		t.done = true
		t.store.mu.Unlock()
	}
}

func (t *fakeTx) LockResource(_ context.Context, id uint64) (*model.Resource, error) {
	if err := t.store.hit("lock"); err != nil {
		return nil, err
	}
	return t.data.resource(id)
}

func (t *fakeTx) Resource(_ context.Context, id uint64) (*model.Resource, error) {
	return t.data.resource(id)
}

func (t *fakeTx) BlockingReservations(_ context.Context, resourceID uint64) ([]model.Reservation, error) {
	var out []model.Reservation
	for _, r := range t.data.reservations {
		if r.ResourceID == resourceID && r.Status.Blocking() {
			out = append(out, r)
		}
	}
	return out, nil
}

func (t *fakeTx) InsertReservation(_ context.Context, r *model.Reservation) error {
	if err := t.store.hit("insert"); err != nil {
		return err
	}
	t.data.nextID++
	r.ID = t.data.nextID
	t.data.reservations[r.ID] = *r
	return nil
}

func (t *fakeTx) ReservationForUpdate(_ context.Context, id uint64) (*model.Reservation, error) {
	return t.data.reservation(id)
}

func (t *fakeTx) UpdateReservation(_ context.Context, r *model.Reservation) error {
	if err := t.store.hit("update"); err != nil {
		return err
	}
	if _, ok := t.data.reservations[r.ID]; !ok {
		return apperr.ErrNotFound
	}
	t.data.reservations[r.ID] = *r
	return nil
}

func (t *fakeTx) AppendAudit(_ context.Context, e *model.AuditEntry) error {
	if err := t.store.hit("audit"); err != nil {
		return err
	}
	e.ID = uint64(len(t.data.audit) + 1)
	t.data.audit = append(t.data.audit, *e)
	return nil
}

func (t *fakeTx) CheckoutForUpdate(_ context.Context, token string) (*model.CheckoutStaging, error) {
	return t.data.checkout(token)
}

func (t *fakeTx) SaveCheckout(_ context.Context, s *model.CheckoutStaging) error {
	if err := t.store.hit("save_checkout"); err != nil {
		return err
	}
	t.data.checkouts[s.Token] = *s
	return nil
}

func (t *fakeTx) Commit() error {
	if t.done {
		return errors.New("tx already finished")
	}
	err := t.store.hit("commit")
	if err == nil {
		t.store.data = t.data
	}
	t.finish()
	return err
}

func (t *fakeTx) Rollback() error {
	t.finish()
	return nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []queue.ReservationEvent
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, ev queue.ReservationEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, ev)
	return nil
}

func (p *recordingPublisher) published() []queue.ReservationEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]queue.ReservationEvent(nil), p.events...)
}

// mapCache keeps the version rule of the Redis cache.  beforeSet, when
// set, runs once ahead of the next Set, which lets a test slip a concurrent
// operation between a commit and its cache write-back.
type mapCache struct {
	mu        sync.Mutex
	entries   map[string]model.CheckoutStaging
	gets      int
	beforeSet func(*model.CheckoutStaging)
}

func newMapCache() *mapCache { return &mapCache{entries: map[string]model.CheckoutStaging{}} }

func (c *mapCache) Get(_ context.Context, token string) (*model.CheckoutStaging, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gets++
	s, ok := c.entries[token]
	if !ok {
		return nil, cache.ErrCacheMiss
	}
	return &s, nil
}

func (c *mapCache) Set(_ context.Context, s *model.CheckoutStaging) error {
	if hook := c.beforeSet; hook != nil {
		c.beforeSet = nil
		hook(s)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if cur, ok := c.entries[s.Token]; ok && cur.Version >= s.Version {
		return nil
	}
	c.entries[s.Token] = *s
	return nil
}

func (c *mapCache) Delete(_ context.Context, token string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, token)
	return nil
}

func (c *mapCache) has(token string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.entries[token]
	return ok
}

func (f *fakeStore) CreateResource(_ context.Context, r *model.Resource) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.hit("create-resource"); err != nil {
		return err
	}
	var max uint64
	for id := range f.data.resources {
		if id > max {
			max = id
		}
	}
	r.ID = max + 1
	f.data.resources[r.ID] = *r
	return nil
}

func (f *fakeStore) ResourcesByOwner(_ context.Context, ownerID uint64) ([]model.Resource, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []model.Resource{}
	for _, r := range f.data.resources {
		if r.OwnerID == ownerID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeStore) UpdateResource(_ context.Context, id uint64, fn func(*model.Resource) error) (*model.Resource, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cur, err := f.data.resource(id)
	if err != nil {
		return nil, err
	}
	if err := fn(cur); err != nil {
		return nil, err
	}
	f.data.resources[id] = *cur
	return cur, nil
}
