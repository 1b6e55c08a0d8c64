package configurator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phenrril/modularstore/internal/domain"
)

func price(v float64) domain.Prices {
	return domain.Prices{BasePrice: v, WholesalePrice: v / 2, DistributorPrice: v / 4}
}

func desk() domain.Product {
	return domain.Product{
		ID:     "desk",
		Prices: price(1000),
		AvailableModules: []domain.Module{
			{ID: "oak", Name: "Oak", Category: domain.CategoryMaterial, Prices: price(100)},
			{ID: "walnut", Name: "Walnut", Category: domain.CategoryMaterial, Prices: price(200)},
			{ID: "small", Name: "Small", Category: domain.CategorySize, Prices: price(0)},
			{ID: "large", Name: "Large", Category: domain.CategorySize, Prices: price(400)},
			{ID: "frame", Name: "Frame", Category: domain.CategoryAddon, Prices: price(40), IncompatibleWith: []string{"drawer"}},
			{ID: "drawer", Name: "Drawer", Category: domain.CategoryAddon, Prices: price(80)},
			{ID: "lamp", Name: "Lamp", Category: domain.CategoryAccessory, Prices: price(20), IncompatibleWith: []string{"walnut"}},
		},
	}
}

func TestNewSelectsFirstMaterialAndSize(t *testing.T) {
	c := New(desk())
	assert.Equal(t, []string{"oak", "small"}, c.Selected())
}

func TestNewWithoutSizeModules(t *testing.T) {
	p := domain.Product{ID: "cube", AvailableModules: []domain.Module{
		{ID: "white", Category: domain.CategoryMaterial},
		{ID: "door", Category: domain.CategoryAddon},
	}}
	assert.Equal(t, []string{"white"}, New(p).Selected())
}

func TestToggleExclusiveReplaces(t *testing.T) {
	c := New(desk())

	changed, err := c.Toggle("walnut")
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, []string{"walnut", "small"}, c.Selected())

	changed, err = c.Toggle("large")
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, []string{"walnut", "large"}, c.Selected())
}

func TestToggleExclusiveCannotDeselect(t *testing.T) {
	c := New(desk())
	changed, err := c.Toggle("oak")
	require.NoError(t, err)
	assert.False(t, changed)
	assert.True(t, c.IsSelected("oak"))
}

func TestToggleOptionalAddsAndRemoves(t *testing.T) {
	c := New(desk())
	changed, err := c.Toggle("drawer")
	require.NoError(t, err)
	assert.True(t, changed)
	assert.True(t, c.IsSelected("drawer"))

	changed, err = c.Toggle("drawer")
	require.NoError(t, err)
	assert.True(t, changed)
	assert.False(t, c.IsSelected("drawer"))
}

func TestToggleIncompatibleBothOrders(t *testing.T) {
	t.Run("declaring module attempted second", func(t *testing.T) {
		c := New(desk())
		_, err := c.Toggle("drawer")
		require.NoError(t, err)
		before := c.Selected()

		changed, err := c.Toggle("frame")
		assert.ErrorIs(t, err, domain.ErrIncompatible)
		assert.False(t, changed)
		assert.Equal(t, before, c.Selected())
		assert.True(t, c.IsIncompatible("frame"))
	})
	t.Run("declared module attempted second", func(t *testing.T) {
		c := New(desk())
		_, err := c.Toggle("frame")
		require.NoError(t, err)
		before := c.Selected()

		changed, err := c.Toggle("drawer")
		assert.ErrorIs(t, err, domain.ErrIncompatible)
		assert.False(t, changed)
		assert.Equal(t, before, c.Selected())
		assert.True(t, c.IsIncompatible("drawer"))
	})
}

func TestToggleMaterialDropsClashingAccessory(t *testing.T) {
	c := New(desk())
	_, err := c.Toggle("lamp")
	require.NoError(t, err)
	assert.True(t, c.IsIncompatible("walnut"))

	changed, err := c.Toggle("walnut")
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, []string{"walnut", "small"}, c.Selected())
	require.NoError(t, Validate(c.Product(), c.Selected()))
}

// glassDesk adds a material that rules out the small size and a finish that
// rules out both sizes.
func glassDesk() domain.Product {
	p := desk()
	p.AvailableModules = append(p.AvailableModules,
		domain.Module{ID: "glass", Name: "Glass", Category: domain.CategoryMaterial, Prices: price(300), IncompatibleWith: []string{"small"}},
		domain.Module{ID: "marble", Name: "Marble", Category: domain.CategoryMaterial, Prices: price(500), IncompatibleWith: []string{"small", "large"}},
	)
	return p
}

func TestToggleMaterialRepicksClashingSize(t *testing.T) {
	c := New(glassDesk())
	require.Equal(t, []string{"oak", "small"}, c.Selected())
	assert.True(t, c.IsIncompatible("glass"))

	changed, err := c.Toggle("glass")
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, []string{"glass", "large"}, c.Selected())
	require.NoError(t, Validate(c.Product(), c.Selected()))
}

func TestToggleMaterialWithNoFittingSizeIsRejected(t *testing.T) {
	c := New(glassDesk())
	before := c.Selected()

	changed, err := c.Toggle("marble")
	assert.ErrorIs(t, err, domain.ErrIncompatible)
	assert.False(t, changed)
	assert.Equal(t, before, c.Selected())
}

func TestToggleSizeClashingWithMaterial(t *testing.T) {
	c := New(glassDesk())
	_, err := c.Toggle("glass")
	require.NoError(t, err)

	// small rules glass out, so the first material that accepts small comes back
	changed, err := c.Toggle("small")
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, []string{"oak", "small"}, c.Selected())
}

func TestNewSkipsClashingFirstChoices(t *testing.T) {
	p := domain.Product{ID: "shelf", AvailableModules: []domain.Module{
		{ID: "glass", Category: domain.CategoryMaterial, IncompatibleWith: []string{"narrow"}},
		{ID: "pine", Category: domain.CategoryMaterial},
		{ID: "narrow", Category: domain.CategorySize},
		{ID: "wide", Category: domain.CategorySize},
	}}
	c := New(p)
	assert.Equal(t, []string{"glass", "wide"}, c.Selected())
	require.NoError(t, Validate(p, c.Selected()))

	p.AvailableModules[0].IncompatibleWith = []string{"narrow", "wide"}
	c = New(p)
	assert.Equal(t, []string{"pine", "narrow"}, c.Selected())
	require.NoError(t, Validate(p, c.Selected()))
}

func TestToggleUnknownModule(t *testing.T) {
	c := New(desk())
	_, err := c.Toggle("nope")
	assert.ErrorIs(t, err, domain.ErrModuleNotFound)
}

func TestInvariantHoldsUnderAnySequence(t *testing.T) {
	c := New(desk())
	seq := []string{"walnut", "lamp", "frame", "drawer", "oak", "lamp", "large", "small", "frame", "drawer", "walnut", "lamp"}
	for _, id := range seq {
		_, _ = c.Toggle(id)
		require.NoError(t, Validate(c.Product(), c.Selected()), "after toggling %s", id)
		assert.True(t, c.hasCategory(domain.CategoryMaterial))
		assert.True(t, c.hasCategory(domain.CategorySize))
	}

	c = New(glassDesk())
	seq = []string{"glass", "small", "marble", "large", "glass", "lamp", "walnut", "small", "marble", "glass", "oak"}
	for _, id := range seq {
		_, _ = c.Toggle(id)
		require.NoError(t, Validate(c.Product(), c.Selected()), "after toggling %s", id)
		assert.True(t, c.hasCategory(domain.CategoryMaterial))
		assert.True(t, c.hasCategory(domain.CategorySize))
	}
}

func TestValidate(t *testing.T) {
	p := desk()
	assert.NoError(t, Validate(p, []string{"oak", "small", "frame"}))
	assert.NoError(t, Validate(p, nil))
	assert.ErrorIs(t, Validate(p, []string{"oak", "walnut"}), domain.ErrInvalidConfiguration)
	assert.ErrorIs(t, Validate(p, []string{"frame", "drawer"}), domain.ErrIncompatible)
	assert.ErrorIs(t, Validate(p, []string{"ghost"}), domain.ErrModuleNotFound)
	assert.ErrorIs(t, Validate(p, []string{"oak", "oak"}), domain.ErrInvalidConfiguration)
}

func TestRestore(t *testing.T) {
	c, err := Restore(desk(), []string{"large", "drawer"})
	require.NoError(t, err)
	assert.Equal(t, []string{"oak", "large", "drawer"}, c.Selected())

	_, err = Restore(desk(), []string{"frame", "drawer"})
	assert.ErrorIs(t, err, domain.ErrInvalidConfiguration)
}

func TestBreakdown(t *testing.T) {
	c := New(desk())
	_, _ = c.Toggle("large")
	b := c.Breakdown(domain.RoleWholesale, 10)
	assert.Equal(t, 500.0, b.BasePrice)
	assert.Equal(t, 500.0+50+200, b.UnitPrice)
	assert.Len(t, b.Modules, 2)
	assert.Equal(t, 7500.0, b.Subtotal)
	assert.Equal(t, 850.0, b.Shipping)
	assert.Equal(t, 8350.0, b.Total)

	assert.Equal(t, 1, c.Breakdown(domain.RoleRetail, 0).Quantity)
}

func TestGrouped(t *testing.T) {
	g := New(desk()).Grouped()
	assert.Len(t, g[domain.CategoryMaterial], 2)
	assert.Len(t, g[domain.CategorySize], 2)
	assert.Len(t, g[domain.CategoryAddon], 2)
	assert.Len(t, g[domain.CategoryAccessory], 1)
}
