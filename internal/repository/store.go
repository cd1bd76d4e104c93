package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/iliyamo/resource-rental/internal/model"
	"github.com/iliyamo/resource-rental/internal/service"
)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// Store groups the repositories behind one connection pool and implements
// service.Store and service.CatalogStore.
type Store struct {
	db           *sql.DB
	Resources    *ResourceRepo
	Reservations *ReservationRepo
	Audit        *AuditRepo
	Checkouts    *CheckoutRepo
}

// NewStore panics on a nil database, like the handlers do for missing
// repositories.
func NewStore(db *sql.DB) *Store {
	if db == nil {
		panic("nil database passed to NewStore")
	}
	return &Store{
		db:           db,
		Resources:    NewResourceRepo(db),
		Reservations: NewReservationRepo(db),
		Audit:        NewAuditRepo(db),
		Checkouts:    NewCheckoutRepo(db),
	}
}

// DB exposes the pool for health checks.
func (s *Store) DB() *sql.DB { return s.db }

// Begin opens a transaction.  The caller must commit or roll back.
func (s *Store) Begin(ctx context.Context) (service.Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, classify("begin transaction", err)
	}
	return &Tx{tx: tx, store: s}, nil
}

func (s *Store) Resource(ctx context.Context, id uint64) (*model.Resource, error) {
	return s.Resources.GetByID(ctx, id)
}

func (s *Store) BlockingReservations(ctx context.Context, resourceID uint64) ([]model.Reservation, error) {
	return s.Reservations.Blocking(ctx, resourceID)
}

func (s *Store) CreateResource(ctx context.Context, r *model.Resource) error {
	return s.Resources.Create(ctx, r)
}

func (s *Store) ResourcesByOwner(ctx context.Context, ownerID uint64) ([]model.Resource, error) {
	return s.Resources.ListByOwner(ctx, ownerID)
}

func (s *Store) UpdateResource(ctx context.Context, id uint64, fn func(*model.Resource) error) (*model.Resource, error) {
	return s.Resources.Update(ctx, id, fn)
}

func (s *Store) Reservation(ctx context.Context, id uint64) (*model.Reservation, error) {
	return s.Reservations.GetByID(ctx, id)
}

func (s *Store) ListReservations(ctx context.Context, f model.ReservationFilter) ([]model.Reservation, int, error) {
	return s.Reservations.List(ctx, f)
}

func (s *Store) History(ctx context.Context, reservationID uint64) ([]model.AuditEntry, error) {
	return s.Audit.ListByReservation(ctx, reservationID)
}

func (s *Store) OverdueReservations(ctx context.Context, now time.Time, limit int) ([]uint64, error) {
	return s.Reservations.OverdueIDs(ctx, now, limit)
}

func (s *Store) CreateCheckout(ctx context.Context, c *model.CheckoutStaging) error {
	return s.Checkouts.Create(ctx, c)
}

func (s *Store) Checkout(ctx context.Context, token string) (*model.CheckoutStaging, error) {
	return s.Checkouts.GetByToken(ctx, token)
}

// Tx implements service.Tx over a *sql.Tx.  Reads that feed a decision
// (resource lock, blocking scan, reservation and checkout rows) are locking
// reads, so they see the latest committed data and hold it until commit.
type Tx struct {
	tx    *sql.Tx
	store *Store
}

func (t *Tx) LockResource(ctx context.Context, id uint64) (*model.Resource, error) {
	return t.store.Resources.LockTx(ctx, t.tx, id)
}

func (t *Tx) Resource(ctx context.Context, id uint64) (*model.Resource, error) {
	return t.store.Resources.GetTx(ctx, t.tx, id)
}

func (t *Tx) BlockingReservations(ctx context.Context, resourceID uint64) ([]model.Reservation, error) {
	return t.store.Reservations.BlockingForUpdateTx(ctx, t.tx, resourceID)
}

func (t *Tx) InsertReservation(ctx context.Context, r *model.Reservation) error {
	return t.store.Reservations.CreateTx(ctx, t.tx, r)
}

func (t *Tx) ReservationForUpdate(ctx context.Context, id uint64) (*model.Reservation, error) {
	return t.store.Reservations.GetForUpdateTx(ctx, t.tx, id)
}

func (t *Tx) UpdateReservation(ctx context.Context, r *model.Reservation) error {
	return t.store.Reservations.UpdateTx(ctx, t.tx, r)
}

func (t *Tx) AppendAudit(ctx context.Context, e *model.AuditEntry) error {
	return t.store.Audit.AppendTx(ctx, t.tx, e)
}

func (t *Tx) CheckoutForUpdate(ctx context.Context, token string) (*model.CheckoutStaging, error) {
	return t.store.Checkouts.GetForUpdateTx(ctx, t.tx, token)
}

func (t *Tx) SaveCheckout(ctx context.Context, c *model.CheckoutStaging) error {
	return t.store.Checkouts.UpdateTx(ctx, t.tx, c)
}

func (t *Tx) Commit() error { return classify("commit", t.tx.Commit()) }

func (t *Tx) Rollback() error { return t.tx.Rollback() }

var (
	_ service.Store        = (*Store)(nil)
	_ service.CatalogStore = (*Store)(nil)
	_ service.Tx           = (*Tx)(nil)
)
