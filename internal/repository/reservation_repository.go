package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/iliyamo/resource-rental/internal/apperr"
	"github.com/iliyamo/resource-rental/internal/model"
)

// ReservationRepo provides data access to the reservations table.
// Reservations are never deleted; status changes are updates paired with an
// entry in reservation_events.  All timestamps are stored in UTC.
type ReservationRepo struct {
	db *sql.DB // db is the shared connection pool; writes always go through a *sql.Tx
}

// NewReservationRepo returns a new ReservationRepo bound to the given database.
func NewReservationRepo(db *sql.DB) *ReservationRepo { return &ReservationRepo{db: db} }

const reservationColumns = `id, resource_id, customer_id, requester_name, requester_email,
	starts_at, ends_at, quantity, total_cents, status, payment_status,
	gateway_order_id, gateway_payment_id, checkout_token, created_by, created_at, updated_at`

func scanReservation(s rowScanner) (model.Reservation, error) {
	var (
		r          model.Reservation
		customerID sql.NullInt64
		orderID    sql.NullString
		paymentID  sql.NullString
		token      sql.NullString
	)
	err := s.Scan(
		&r.ID, &r.ResourceID, &customerID, &r.Requester.Name, &r.Requester.Email,
		&r.Interval.Start, &r.Interval.End, &r.Quantity, &r.TotalCents, &r.Status, &r.PaymentStatus,
		&orderID, &paymentID, &token, &r.CreatedBy, &r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		return r, err
	}
	if customerID.Valid {
		id := uint64(customerID.Int64)
		r.Requester.CustomerID = &id
	}
	r.GatewayOrderID = nullString(orderID)
	r.GatewayPaymentID = nullString(paymentID)
	r.CheckoutToken = nullString(token)
	r.Interval.Start = r.Interval.Start.UTC()
	r.Interval.End = r.Interval.End.UTC()
	r.CreatedAt = r.CreatedAt.UTC()
	r.UpdatedAt = r.UpdatedAt.UTC()
	return r, nil
}

func nullString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func stringArg(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func uintArg(v *uint64) any {
	if v == nil {
		return nil
	}
	return *v
}

// GetByID returns the reservation or apperr.ErrNotFound.
func (r *ReservationRepo) GetByID(ctx context.Context, id uint64) (*model.Reservation, error) {
	return getReservation(ctx, r.db, id, false)
}

// GetForUpdateTx reads and locks the reservation row inside tx.
func (r *ReservationRepo) GetForUpdateTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Reservation, error) {
	return getReservation(ctx, tx, id, true)
}

func getReservation(ctx context.Context, q querier, id uint64, lock bool) (*model.Reservation, error) {
	query := `SELECT ` + reservationColumns + ` FROM reservations WHERE id = ?`
	if lock {
		query += ` FOR UPDATE`
	}
	res, err := scanReservation(q.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, missing("get reservation", err, apperr.KindNotFound, "reservation %d not found", id)
	}
	return &res, nil
}

// BlockingForUpdateTx returns the reservations on resourceID whose status
// counts against availability.  It is a locking read so that, under the
// resource lock, it observes every row committed before the lock was taken.
func (r *ReservationRepo) BlockingForUpdateTx(ctx context.Context, tx *sql.Tx, resourceID uint64) ([]model.Reservation, error) {
	return blockingReservations(ctx, tx, resourceID, true)
}

// Blocking is the non-locking form of BlockingForUpdateTx for read-only
// availability answers.  It may miss a booking that commits right after it
// runs; nothing is reserved on the strength of its result.
func (r *ReservationRepo) Blocking(ctx context.Context, resourceID uint64) ([]model.Reservation, error) {
	return blockingReservations(ctx, r.db, resourceID, false)
}

func blockingReservations(ctx context.Context, q querier, resourceID uint64, lock bool) ([]model.Reservation, error) {
	args := make([]any, 0, len(model.BlockingStatuses)+1)
	args = append(args, resourceID)
	marks := make([]string, 0, len(model.BlockingStatuses))
	for _, s := range model.BlockingStatuses {
		marks = append(marks, "?")
		args = append(args, string(s))
	}
	query := `SELECT ` + reservationColumns + ` FROM reservations
		WHERE resource_id = ? AND status IN (` + strings.Join(marks, ",") + `)
		ORDER BY starts_at`
	if lock {
		query += ` FOR UPDATE`
	}
	return queryReservations(ctx, q, "scan blocking reservations", query, args...)
}

func queryReservations(ctx context.Context, q querier, op, query string, args ...any) ([]model.Reservation, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, classify(op, err)
	}
	defer rows.Close()
	var out []model.Reservation
	for rows.Next() {
		res, err := scanReservation(rows)
		if err != nil {
			return nil, classify(op, err)
		}
		out = append(out, res)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(op, err)
	}
	return out, nil
}

// CreateTx inserts res within tx and populates its generated ID.
func (r *ReservationRepo) CreateTx(ctx context.Context, tx *sql.Tx, res *model.Reservation) error {
	const q = `INSERT INTO reservations (resource_id, customer_id, requester_name, requester_email,
		starts_at, ends_at, quantity, total_cents, status, payment_status,
		gateway_order_id, gateway_payment_id, checkout_token, created_by, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	result, err := tx.ExecContext(ctx, q,
		res.ResourceID, uintArg(res.Requester.CustomerID), res.Requester.Name, res.Requester.Email,
		res.Interval.Start.UTC(), res.Interval.End.UTC(), res.Quantity, res.TotalCents,
		string(res.Status), string(res.PaymentStatus),
		stringArg(res.GatewayOrderID), stringArg(res.GatewayPaymentID), stringArg(res.CheckoutToken),
		res.CreatedBy, res.CreatedAt.UTC(), res.UpdatedAt.UTC(),
	)
	if err != nil {
		return classify("insert reservation", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return classify("insert reservation", err)
	}
	res.ID = uint64(id)
	return nil
}

// UpdateTx persists the mutable fields of res: status, payment status,
// gateway references and updated_at.
func (r *ReservationRepo) UpdateTx(ctx context.Context, tx *sql.Tx, res *model.Reservation) error {
	const q = `UPDATE reservations
		SET status = ?, payment_status = ?, gateway_order_id = ?, gateway_payment_id = ?, updated_at = ?
		WHERE id = ?`
	_, err := tx.ExecContext(ctx, q,
		string(res.Status), string(res.PaymentStatus),
		stringArg(res.GatewayOrderID), stringArg(res.GatewayPaymentID),
		res.UpdatedAt.UTC(), res.ID,
	)
	return classify("update reservation", err)
}

// List returns one page of reservations matching f, newest first, and the
// total number of matches.  f.Page and f.PageSize must already be
// normalised.  The filter is assembled from optional clauses:
//
//	Status          exact status match
//	ResourceID      one resource
//	OwnerID         every resource the owner lists (owner scope)
//	RequesterID     the customer's own rows; with RequesterEmail also the
//	                owner-made quotations addressed to that e-mail
//
// The count and the page are two statements, so under concurrent inserts
// Total can differ from the number of rows a later page returns.
func (r *ReservationRepo) List(ctx context.Context, f model.ReservationFilter) ([]model.Reservation, int, error) {
	var (
		where []string
		args  []any
	)
	if f.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(f.Status))
	}
	if f.ResourceID != 0 {
		where = append(where, "resource_id = ?")
		args = append(args, f.ResourceID)
	}
	if f.OwnerID != 0 {
		where = append(where, "resource_id IN (SELECT id FROM resources WHERE owner_id = ?)")
		args = append(args, f.OwnerID)
	}
	switch {
	case f.RequesterID != 0 && f.RequesterEmail != "":
		where = append(where, "(customer_id = ? OR (customer_id IS NULL AND requester_email = ?))")
		args = append(args, f.RequesterID, f.RequesterEmail)
	case f.RequesterID != 0:
		where = append(where, "customer_id = ?")
		args = append(args, f.RequesterID)
	}
	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM reservations`+clause, args...).Scan(&total); err != nil {
		return nil, 0, classify("count reservations", err)
	}
	if total == 0 {
		return []model.Reservation{}, 0, nil
	}
	query := `SELECT ` + reservationColumns + ` FROM reservations` + clause + ` ORDER BY id DESC LIMIT ? OFFSET ?`
	pageArgs := append(append([]any{}, args...), f.PageSize, (f.Page-1)*f.PageSize)
	items, err := queryReservations(ctx, r.db, "list reservations", query, pageArgs...)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// OverdueIDs returns delivered reservations whose end is before now, oldest
// end first.
func (r *ReservationRepo) OverdueIDs(ctx context.Context, now time.Time, limit int) ([]uint64, error) {
	const q = `SELECT id FROM reservations WHERE status = ? AND ends_at < ? ORDER BY ends_at LIMIT ?`
	rows, err := r.db.QueryContext(ctx, q, string(model.StatusDelivered), now.UTC(), limit)
	if err != nil {
		return nil, classify("list overdue reservations", err)
	}
	defer rows.Close()
	var ids []uint64
	for rows.Next() {
		var id uint64
		if err := rows.Scan(&id); err != nil {
			return nil, classify("list overdue reservations", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("list overdue reservations", err)
	}
	return ids, nil
}
