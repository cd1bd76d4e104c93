package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/resource-rental/internal/model"
)

// AuditRepo appends to and reads reservation_events, the append-only audit
// trail of status transitions.  Rows are never updated or deleted.
type AuditRepo struct {
	db *sql.DB // db is the shared connection pool
}

// NewAuditRepo returns a new AuditRepo bound to the given database.
func NewAuditRepo(db *sql.DB) *AuditRepo { return &AuditRepo{db: db} }

// AppendTx inserts e within tx and populates its ID.
func (r *AuditRepo) AppendTx(ctx context.Context, tx *sql.Tx, e *model.AuditEntry) error {
	const q = `INSERT INTO reservation_events (reservation_id, actor_id, actor_role, from_status, to_status, note, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`
	var from any
	if e.From != "" {
		from = string(e.From)
	}
	result, err := tx.ExecContext(ctx, q, e.ReservationID, e.ActorID, string(e.ActorRole), from, string(e.To), e.Note, e.At.UTC())
	if err != nil {
		return classify("append audit entry", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return classify("append audit entry", err)
	}
	e.ID = uint64(id)
	return nil
}

// ListByReservation returns the trail of one reservation, oldest first.
func (r *AuditRepo) ListByReservation(ctx context.Context, reservationID uint64) ([]model.AuditEntry, error) {
	const q = `SELECT id, reservation_id, actor_id, actor_role, from_status, to_status, note, created_at
		FROM reservation_events WHERE reservation_id = ? ORDER BY id`
	rows, err := r.db.QueryContext(ctx, q, reservationID)
	if err != nil {
		return nil, classify("list audit entries", err)
	}
	defer rows.Close()
	out := []model.AuditEntry{}
	for rows.Next() {
		var (
			e    model.AuditEntry
			from sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.ReservationID, &e.ActorID, &e.ActorRole, &from, &e.To, &e.Note, &e.At); err != nil {
			return nil, classify("list audit entries", err)
		}
		e.From = model.Status(from.String)
		e.At = e.At.UTC()
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("list audit entries", err)
	}
	return out, nil
}
