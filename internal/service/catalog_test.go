package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/resource-rental/internal/apperr"
	"github.com/iliyamo/resource-rental/internal/model"
)

func ptr[T any](v T) *T { return &v }

func TestCatalog_CreateAndList(t *testing.T) {
	store, _, _ := fixture(t)
	svc := NewCatalogService(store, 0)
	ctx := context.Background()

	r, err := svc.Create(ctx, otherOwner, model.Resource{ID: 9, OwnerID: owner.ID, Name: "  Van  ", Available: true, QuantityAvailable: 2, DailyRateCents: 9000})
	require.NoError(t, err)
	assert.Equal(t, uint64(5), r.ID)
	assert.Equal(t, otherOwner.ID, r.OwnerID)
	assert.Equal(t, "Van", r.Name)

	mine, err := svc.ListOwned(ctx, otherOwner)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, r.ID, mine[0].ID)

	theirs, err := svc.ListOwned(ctx, owner)
	require.NoError(t, err)
	assert.Len(t, theirs, 4)

	got, err := svc.Get(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, "Van", got.Name)
}

func TestCatalog_CreateRejects(t *testing.T) {
	store, _, _ := fixture(t)
	svc := NewCatalogService(store, 0)
	ctx := context.Background()

	_, err := svc.Create(ctx, alice, model.Resource{Name: "Tent"})
	assert.ErrorIs(t, err, apperr.ErrForbidden)
	_, err = svc.Create(ctx, model.SystemActor, model.Resource{Name: "Tent"})
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	_, err = svc.Create(ctx, owner, model.Resource{Name: " "})
	assert.ErrorIs(t, err, apperr.ErrValidation)
	_, err = svc.Create(ctx, owner, model.Resource{Name: "Tent", QuantityAvailable: -1})
	assert.ErrorIs(t, err, apperr.ErrValidation)
	_, err = svc.Create(ctx, owner, model.Resource{Name: "Tent", HourlyRateCents: -5})
	assert.ErrorIs(t, err, apperr.ErrValidation)
	assert.Equal(t, 0, store.calls["create-resource"])
}

func TestCatalog_Update(t *testing.T) {
	store, _, _ := fixture(t)
	svc := NewCatalogService(store, 0)
	ctx := context.Background()

	got, err := svc.Update(ctx, owner, 1, model.ResourcePatch{Available: ptr(false), DailyRateCents: ptr(int64(4000))})
	require.NoError(t, err)
	assert.False(t, got.Available)
	assert.Equal(t, int64(4000), got.DailyRateCents)
	assert.Equal(t, int64(500), got.HourlyRateCents)

	stored, err := store.Resource(ctx, 1)
	require.NoError(t, err)
	assert.False(t, stored.Bookable())

	_, err = svc.Update(ctx, otherOwner, 1, model.ResourcePatch{Available: ptr(true)})
	assert.ErrorIs(t, err, apperr.ErrForbidden)
	_, err = svc.Update(ctx, owner, 1, model.ResourcePatch{})
	assert.ErrorIs(t, err, apperr.ErrValidation)
	_, err = svc.Update(ctx, owner, 1, model.ResourcePatch{QuantityAvailable: ptr(-2)})
	assert.ErrorIs(t, err, apperr.ErrValidation)
	_, err = svc.Update(ctx, owner, 77, model.ResourcePatch{Name: ptr("x")})
	assert.ErrorIs(t, err, apperr.ErrResourceNotFound)

	stored, err = store.Resource(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.QuantityAvailable)
}

func TestCatalog_DisabledResourceRejectsNewBookings(t *testing.T) {
	store, _, opts := fixture(t)
	catalog := NewCatalogService(store, 0)
	res := NewReservationService(store, opts)
	ctx := context.Background()

	existing := book(t, res, alice, 2, day(1), day(2))
	_, err := catalog.Update(ctx, owner, 2, model.ResourcePatch{QuantityAvailable: ptr(0)})
	require.NoError(t, err)

	_, err = res.Create(ctx, bob, CreateRequest{ResourceID: 2, Start: day(10), End: day(11)})
	assert.ErrorIs(t, err, apperr.ErrResourceUnavailable)
	assert.Equal(t, model.StatusPending, store.stored(existing.ID).Status)
}
