package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phenrril/modularstore/internal/catalog"
	"github.com/phenrril/modularstore/internal/domain"
)

func TestCatalogRepoFind(t *testing.T) {
	r := NewCatalogRepo(catalog.Products())
	ctx := context.Background()

	p, err := r.FindByID(ctx, "modular-shelf")
	require.NoError(t, err)
	assert.Equal(t, "Modular Shelf", p.Name)

	p.AvailableModules[0].Name = "mutated"
	again, err := r.FindByID(ctx, "modular-shelf")
	require.NoError(t, err)
	assert.NotEqual(t, "mutated", again.AvailableModules[0].Name)

	_, err = r.FindByID(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	list, err := r.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, len(catalog.Products()))
}

func TestStateRepoRoundTrip(t *testing.T) {
	r := NewStateRepo()
	ctx := context.Background()

	_, err := r.Load(ctx, "k")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	st := domain.NewSessionState()
	st.Role = domain.RoleWholesale
	st.Cart = append(st.Cart, domain.CartItem{ID: "i1", Quantity: 2, Configuration: domain.Configuration{ProductID: "p", SelectedModules: []string{"a"}}})
	require.NoError(t, r.Save(ctx, "k", st))

	st.Cart[0].Quantity = 99
	got, err := r.Load(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleWholesale, got.Role)
	require.Len(t, got.Cart, 1)
	assert.Equal(t, 2, got.Cart[0].Quantity)
	assert.Equal(t, []string{"a"}, got.Cart[0].SelectedModules)
}
