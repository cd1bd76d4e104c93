// This file holds data access for the resources table.  A resource is the
// thing being rented: owners create and edit rows through the catalog
// endpoints, and the reservation engine reads them and uses the row lock as
// its per-resource mutex.

package repository

import (
	"context"      // context carries request deadlines into every query
	"database/sql" // sql provides the pool and transaction types
	"fmt"          // fmt formats operation names for wrapped errors

	"github.com/iliyamo/resource-rental/internal/apperr" // apperr supplies the not-found kind
	"github.com/iliyamo/resource-rental/internal/model"  // model defines the Resource row shape
)

// ResourceRepo provides data access to the resources table.  Owners write
// catalog rows; the reservation engine reads and locks them.  Rows are never
// deleted because reservations reference them by id.
type ResourceRepo struct {
	db *sql.DB // db is the shared connection pool
}

// NewResourceRepo returns a new ResourceRepo bound to the given database.
// There is no initialization beyond assigning the field.
func NewResourceRepo(db *sql.DB) *ResourceRepo { return &ResourceRepo{db: db} }

const resourceColumns = `id, owner_id, name, availability, quantity_available, hourly_rate_cents, daily_rate_cents`

// GetByID returns the resource or apperr.ErrResourceNotFound.
func (r *ResourceRepo) GetByID(ctx context.Context, id uint64) (*model.Resource, error) {
	return getResource(ctx, r.db, id, false)
}

// GetTx reads the resource inside tx without locking it.
func (r *ResourceRepo) GetTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Resource, error) {
	return getResource(ctx, tx, id, false)
}

// LockTx reads the resource with SELECT ... FOR UPDATE.  The row lock is
// the per-resource mutex serializing check-and-insert sequences; it is held
// until tx commits or rolls back.
func (r *ResourceRepo) LockTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Resource, error) {
	return getResource(ctx, tx, id, true)
}

func getResource(ctx context.Context, q querier, id uint64, lock bool) (*model.Resource, error) {
	query := `SELECT ` + resourceColumns + ` FROM resources WHERE id = ?`
	if lock {
		query += ` FOR UPDATE`
	}
	var res model.Resource
	err := q.QueryRowContext(ctx, query, id).Scan(
		&res.ID, &res.OwnerID, &res.Name, &res.Available, &res.QuantityAvailable,
		&res.HourlyRateCents, &res.DailyRateCents,
	)
	if err != nil {
		return nil, missing("get resource", err, apperr.KindResourceNotFound, "resource %d not found", id)
	}
	return &res, nil
}

// Create inserts res and populates its generated ID.
func (r *ResourceRepo) Create(ctx context.Context, res *model.Resource) error {
	const q = `INSERT INTO resources (owner_id, name, availability, quantity_available, hourly_rate_cents, daily_rate_cents)
		VALUES (?, ?, ?, ?, ?, ?)`
	result, err := r.db.ExecContext(ctx, q, res.OwnerID, res.Name, res.Available, res.QuantityAvailable,
		res.HourlyRateCents, res.DailyRateCents)
	if err != nil {
		return classify("insert resource", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return classify("insert resource", err)
	}
	res.ID = uint64(id)
	return nil
}

// ListByOwner returns the resources of ownerID ordered by id.
func (r *ResourceRepo) ListByOwner(ctx context.Context, ownerID uint64) ([]model.Resource, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+resourceColumns+` FROM resources WHERE owner_id = ? ORDER BY id`, ownerID)
	if err != nil {
		return nil, classify("list resources", err)
	}
	defer rows.Close()
	out := []model.Resource{}
	for rows.Next() {
		var res model.Resource
		if err := rows.Scan(&res.ID, &res.OwnerID, &res.Name, &res.Available, &res.QuantityAvailable,
			&res.HourlyRateCents, &res.DailyRateCents); err != nil {
			return nil, classify("list resources", err)
		}
		out = append(out, res)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("list resources", err)
	}
	return out, nil
}

// Update locks the resource row, lets fn change it and writes it back in one
// transaction, so catalog edits serialize with reservations holding the
// same lock.  An error from fn rolls the transaction back.
func (r *ResourceRepo) Update(ctx context.Context, id uint64, fn func(*model.Resource) error) (*model.Resource, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, classify("begin transaction", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	res, err := r.LockTx(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if err := fn(res); err != nil {
		return nil, err
	}
	const q = `UPDATE resources
		SET name = ?, availability = ?, quantity_available = ?, hourly_rate_cents = ?, daily_rate_cents = ?
		WHERE id = ?`
	if _, err := tx.ExecContext(ctx, q, res.Name, res.Available, res.QuantityAvailable,
		res.HourlyRateCents, res.DailyRateCents, res.ID); err != nil {
		return nil, classify(fmt.Sprintf("update resource %d", id), err)
	}
	if err := tx.Commit(); err != nil {
		return nil, classify("commit", err)
	}
	committed = true
	return res, nil
}
