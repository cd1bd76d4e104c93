package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/iliyamo/resource-rental/internal/apperr"
	"github.com/iliyamo/resource-rental/internal/model"
)

// CheckoutRepo stores checkout staging sessions.  Line items, pricing,
// addresses and the produced reservation ids are JSON columns since they
// are only ever read and written as a whole with their session.
//
// The version column starts at 1 and is incremented by the service on each
// committed write.  The Redis checkout cache compares it to decide whether a
// write-back is still current.
type CheckoutRepo struct {
	db *sql.DB // db is the shared connection pool
}

// NewCheckoutRepo returns a new CheckoutRepo bound to the given database.
func NewCheckoutRepo(db *sql.DB) *CheckoutRepo { return &CheckoutRepo{db: db} }

const checkoutColumns = `token, requester_id, requester_name, requester_email, items, pricing,
	delivery_address, billing_address, status, reservation_ids, version, created_at, updated_at`

// Create inserts a new session.
func (r *CheckoutRepo) Create(ctx context.Context, c *model.CheckoutStaging) error {
	items, err := json.Marshal(c.Items)
	if err != nil {
		return fmt.Errorf("marshal checkout items: %w", err)
	}
	pricing, err := json.Marshal(c.Pricing)
	if err != nil {
		return fmt.Errorf("marshal checkout pricing: %w", err)
	}
	delivery, billing, ids, err := checkoutMutable(c)
	if err != nil {
		return err
	}
	const q = `INSERT INTO checkouts (` + checkoutColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = r.db.ExecContext(ctx, q,
		c.Token, c.RequesterID, c.RequesterName, c.RequesterEmail, items, pricing,
		delivery, billing, string(c.Status), ids, c.Version, c.CreatedAt.UTC(), c.UpdatedAt.UTC(),
	)
	return classify("insert checkout", err)
}

// GetByToken returns the session or apperr.ErrNotFound.
func (r *CheckoutRepo) GetByToken(ctx context.Context, token string) (*model.CheckoutStaging, error) {
	return getCheckout(ctx, r.db, token, false)
}

// GetForUpdateTx reads and locks the session row inside tx.
func (r *CheckoutRepo) GetForUpdateTx(ctx context.Context, tx *sql.Tx, token string) (*model.CheckoutStaging, error) {
	return getCheckout(ctx, tx, token, true)
}

// UpdateTx persists the fields that change after creation: addresses,
// status, produced reservations, version and updated_at.
func (r *CheckoutRepo) UpdateTx(ctx context.Context, tx *sql.Tx, c *model.CheckoutStaging) error {
	delivery, billing, ids, err := checkoutMutable(c)
	if err != nil {
		return err
	}
	const q = `UPDATE checkouts
		SET delivery_address = ?, billing_address = ?, status = ?, reservation_ids = ?, version = ?, updated_at = ?
		WHERE token = ?`
	_, err = tx.ExecContext(ctx, q, delivery, billing, string(c.Status), ids, c.Version, c.UpdatedAt.UTC(), c.Token)
	return classify("update checkout", err)
}

func checkoutMutable(c *model.CheckoutStaging) (delivery, billing, ids any, err error) {
	if delivery, err = nullableJSON(c.DeliveryAddress != nil, c.DeliveryAddress); err != nil {
		return nil, nil, nil, err
	}
	if billing, err = nullableJSON(c.BillingAddress != nil, c.BillingAddress); err != nil {
		return nil, nil, nil, err
	}
	if ids, err = nullableJSON(len(c.ReservationIDs) > 0, c.ReservationIDs); err != nil {
		return nil, nil, nil, err
	}
	return delivery, billing, ids, nil
}

func nullableJSON(present bool, v any) (any, error) {
	if !present {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal checkout field: %w", err)
	}
	return b, nil
}

func getCheckout(ctx context.Context, q querier, token string, lock bool) (*model.CheckoutStaging, error) {
	query := `SELECT ` + checkoutColumns + ` FROM checkouts WHERE token = ?`
	if lock {
		query += ` FOR UPDATE`
	}
	var (
		c                 model.CheckoutStaging
		items, pricing    []byte
		delivery, billing []byte
		ids               []byte
	)
	err := q.QueryRowContext(ctx, query, token).Scan(
		&c.Token, &c.RequesterID, &c.RequesterName, &c.RequesterEmail, &items, &pricing,
		&delivery, &billing, &c.Status, &ids, &c.Version, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, missing("get checkout", err, apperr.KindNotFound, "checkout %s not found", token)
	}
	if err := json.Unmarshal(items, &c.Items); err != nil {
		return nil, fmt.Errorf("decode checkout items: %w", err)
	}
	if err := json.Unmarshal(pricing, &c.Pricing); err != nil {
		return nil, fmt.Errorf("decode checkout pricing: %w", err)
	}
	if len(delivery) > 0 {
		c.DeliveryAddress = &model.Address{}
		if err := json.Unmarshal(delivery, c.DeliveryAddress); err != nil {
			return nil, fmt.Errorf("decode delivery address: %w", err)
		}
	}
	if len(billing) > 0 {
		c.BillingAddress = &model.Address{}
		if err := json.Unmarshal(billing, c.BillingAddress); err != nil {
			return nil, fmt.Errorf("decode billing address: %w", err)
		}
	}
	if len(ids) > 0 {
		if err := json.Unmarshal(ids, &c.ReservationIDs); err != nil {
			return nil, fmt.Errorf("decode reservation ids: %w", err)
		}
	}
	c.CreatedAt = c.CreatedAt.UTC()
	c.UpdatedAt = c.UpdatedAt.UTC()
	return &c, nil
}
