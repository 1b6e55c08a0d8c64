package usecase

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phenrril/modularstore/internal/adapters/repo/memory"
	"github.com/phenrril/modularstore/internal/catalog"
	"github.com/phenrril/modularstore/internal/domain"
)

func newProductUC() *ProductUC {
	return &ProductUC{Products: memory.NewCatalogRepo(catalog.Products())}
}

func TestProductUCGetByID(t *testing.T) {
	uc := newProductUC()
	ctx := context.Background()

	p, err := uc.GetByID(ctx, " modular-desk ")
	require.NoError(t, err)
	assert.Equal(t, "modular-desk", p.ID)

	_, err = uc.GetByID(ctx, "")
	assert.Error(t, err)
	_, err = uc.GetByID(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	all, err := uc.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, len(catalog.Products()))
}

func TestProductUCConfigure(t *testing.T) {
	uc := newProductUC()
	ctx := context.Background()

	c, err := uc.Configure(ctx, "modular-desk", nil, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"desk-oak", "desk-120"}, c.Selected())

	c, err = uc.Configure(ctx, "modular-desk", []string{"desk-walnut", "desk-160", "desk-drawer"}, "desk-motor-frame")
	assert.ErrorIs(t, err, domain.ErrIncompatible)
	require.NotNil(t, c)
	assert.False(t, c.IsSelected("desk-motor-frame"))
	assert.True(t, c.IsIncompatible("desk-motor-frame"))

	c, err = uc.Configure(ctx, "modular-desk", []string{"desk-walnut", "desk-160", "desk-drawer"}, "desk-drawer")
	require.NoError(t, err)
	assert.Equal(t, []string{"desk-walnut", "desk-160"}, c.Selected())

	_, err = uc.Configure(ctx, "modular-desk", []string{"desk-oak", "desk-steel"}, "")
	assert.ErrorIs(t, err, domain.ErrInvalidConfiguration)
}
