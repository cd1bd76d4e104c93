package service

import (
	"context"
	"strings"
	"time"

	"github.com/iliyamo/resource-rental/internal/apperr"
	"github.com/iliyamo/resource-rental/internal/model"
)

// CatalogStore is the resource catalog behind CatalogService.
type CatalogStore interface {
	Resource(ctx context.Context, id uint64) (*model.Resource, error)
	CreateResource(ctx context.Context, r *model.Resource) error
	ResourcesByOwner(ctx context.Context, ownerID uint64) ([]model.Resource, error)
	// UpdateResource holds the resource lock while fn runs; an error from
	// fn aborts the update.
	UpdateResource(ctx context.Context, id uint64, fn func(*model.Resource) error) (*model.Resource, error)
}

// CatalogService lets owners list and maintain their resources.  Reads by id
// are public so requesters can see rates before booking.
type CatalogService struct {
	store   CatalogStore  // store holds the resources table
	timeout time.Duration // timeout bounds each store call
}

func NewCatalogService(store CatalogStore, storeTimeout time.Duration) *CatalogService {
	if store == nil {
		panic("service: nil catalog store")
	}
	if storeTimeout <= 0 {
		storeTimeout = defaultStoreTimeout
	}
	return &CatalogService{store: store, timeout: storeTimeout}
}

func requireOwner(actor model.Actor) error {
	if actor.Role != model.RoleOwner || actor.ID == 0 {
		return apperr.New(apperr.KindForbidden, "only owners manage resources")
	}
	return nil
}

// Create lists a new resource owned by actor.
func (s *CatalogService) Create(ctx context.Context, actor model.Actor, r model.Resource) (*model.Resource, error) {
	if err := requireOwner(actor); err != nil {
		return nil, err
	}
	r.ID = 0
	r.OwnerID = actor.ID
	r.Name = strings.TrimSpace(r.Name)
	if p := r.Problem(); p != "" {
		return nil, apperr.Validation("%s", p)
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if err := s.store.CreateResource(ctx, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// ListOwned returns the resources actor owns.
func (s *CatalogService) ListOwned(ctx context.Context, actor model.Actor) ([]model.Resource, error) {
	if err := requireOwner(actor); err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.store.ResourcesByOwner(ctx, actor.ID)
}

func (s *CatalogService) Get(ctx context.Context, id uint64) (*model.Resource, error) {
	if id == 0 {
		return nil, apperr.Validation("resource id is required")
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.store.Resource(ctx, id)
}

// Update applies patch to a resource actor owns.  Lowering the quantity or
// switching availability off affects only reservations made afterwards.
func (s *CatalogService) Update(ctx context.Context, actor model.Actor, id uint64, patch model.ResourcePatch) (*model.Resource, error) {
	if err := requireOwner(actor); err != nil {
		return nil, err
	}
	if patch.Empty() {
		return nil, apperr.Validation("no fields to update")
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.store.UpdateResource(ctx, id, func(r *model.Resource) error {
		if r.OwnerID != actor.ID {
			return apperr.New(apperr.KindForbidden, "resource %d belongs to another owner", id)
		}
		patch.Apply(r)
		if p := r.Problem(); p != "" {
			return apperr.Validation("%s", p)
		}
		return nil
	})
}
