// Package configurator enforces module selection rules for a single product.
//
// Material and size are exclusive categories: once initialized each holds
// exactly one selection and selecting another module of the same category
// replaces the previous one. Add-ons and accessories are optional and may not
// be combined with a module that either side declares incompatible. No two
// selected modules are ever incompatible, exclusive ones included.
package configurator

import (
	"fmt"

	"github.com/phenrril/modularstore/internal/domain"
	"github.com/phenrril/modularstore/internal/pricing"
)

type Configurator struct {
	product  domain.Product
	selected map[string]struct{}
}

// New loads product and auto-selects the first material and size modules that
// are compatible with each other, in catalog order.
func New(p domain.Product) *Configurator {
	c := &Configurator{product: p, selected: map[string]struct{}{}}
	c.fillExclusive()
	return c
}

// Restore rebuilds a configurator from a stored selection. Exclusive categories
// left empty are filled with their first module.
func Restore(p domain.Product, moduleIDs []string) (*Configurator, error) {
	if err := Validate(p, moduleIDs); err != nil {
		return nil, err
	}
	c := &Configurator{product: p, selected: map[string]struct{}{}}
	for _, id := range moduleIDs {
		c.selected[id] = struct{}{}
	}
	c.fillExclusive()
	return c, nil
}

func (c *Configurator) fillExclusive() {
	var missing []domain.Category
	for _, cat := range []domain.Category{domain.CategoryMaterial, domain.CategorySize} {
		if !c.hasCategory(cat) && c.offers(cat) {
			missing = append(missing, cat)
		}
	}
	if c.fill(missing) {
		return
	}
	// no combination fits; fill whatever can be filled on its own
	for _, cat := range missing {
		c.fill([]domain.Category{cat})
	}
}

// fill selects one module for each of cats, taking the first combination in
// catalog order that keeps the selection compatible. It leaves the selection
// untouched and returns false when there is none.
func (c *Configurator) fill(cats []domain.Category) bool {
	if len(cats) == 0 {
		return true
	}
	for _, m := range c.product.AvailableModules {
		if m.Category != cats[0] || c.conflicts(m) {
			continue
		}
		c.selected[m.ID] = struct{}{}
		if c.fill(cats[1:]) {
			return true
		}
		delete(c.selected, m.ID)
	}
	return false
}

func (c *Configurator) offers(cat domain.Category) bool {
	for _, m := range c.product.AvailableModules {
		if m.Category == cat {
			return true
		}
	}
	return false
}

func (c *Configurator) hasCategory(cat domain.Category) bool {
	for id := range c.selected {
		if m, ok := c.product.Module(id); ok && m.Category == cat {
			return true
		}
	}
	return false
}

func (c *Configurator) Product() domain.Product { return c.product }

func (c *Configurator) IsSelected(moduleID string) bool {
	_, ok := c.selected[moduleID]
	return ok
}

// IsIncompatible reports whether m conflicts with any other selected module,
// in either declaration direction.
func (c *Configurator) IsIncompatible(moduleID string) bool {
	m, ok := c.product.Module(moduleID)
	if !ok {
		return false
	}
	return c.conflicts(m)
}

func (c *Configurator) conflicts(m domain.Module) bool {
	for id := range c.selected {
		if id == m.ID {
			continue
		}
		if m.Excludes(id) {
			return true
		}
		if other, ok := c.product.Module(id); ok && other.Excludes(m.ID) {
			return true
		}
	}
	return false
}

// Toggle applies one user click. It reports whether the selection changed.
func (c *Configurator) Toggle(moduleID string) (bool, error) {
	m, ok := c.product.Module(moduleID)
	if !ok {
		return false, fmt.Errorf("%w: %s", domain.ErrModuleNotFound, moduleID)
	}
	if c.IsSelected(m.ID) {
		if m.Category.Exclusive() {
			return false, nil
		}
		delete(c.selected, m.ID)
		return true, nil
	}
	if m.Category.Exclusive() {
		prev := make(map[string]struct{}, len(c.selected))
		for id := range c.selected {
			prev[id] = struct{}{}
		}
		for id := range c.selected {
			if other, ok := c.product.Module(id); ok && other.Category == m.Category {
				delete(c.selected, id)
			}
		}
		c.selected[m.ID] = struct{}{}
		// clashing optional modules are dropped, a clashing exclusive one is re-picked
		var refill []domain.Category
		for id := range c.selected {
			other, ok := c.product.Module(id)
			if !ok || id == m.ID || !(m.Excludes(id) || other.Excludes(m.ID)) {
				continue
			}
			delete(c.selected, id)
			if other.Category.Exclusive() {
				refill = append(refill, other.Category)
			}
		}
		if !c.fill(refill) {
			c.selected = prev
			return false, fmt.Errorf("%w: %s", domain.ErrIncompatible, m.ID)
		}
		return true, nil
	}
	if c.conflicts(m) {
		return false, fmt.Errorf("%w: %s", domain.ErrIncompatible, m.ID)
	}
	c.selected[m.ID] = struct{}{}
	return true, nil
}

// Selected returns the selected ids in catalog order.
func (c *Configurator) Selected() []string {
	out := make([]string, 0, len(c.selected))
	for _, m := range c.product.AvailableModules {
		if c.IsSelected(m.ID) {
			out = append(out, m.ID)
		}
	}
	return out
}

func (c *Configurator) SelectedModules() []domain.Module {
	out := make([]domain.Module, 0, len(c.selected))
	for _, m := range c.product.AvailableModules {
		if c.IsSelected(m.ID) {
			out = append(out, m)
		}
	}
	return out
}

func (c *Configurator) Configuration() domain.Configuration {
	return domain.Configuration{ProductID: c.product.ID, SelectedModules: c.Selected()}
}

// Grouped returns the product modules keyed by category, each in catalog order.
func (c *Configurator) Grouped() map[domain.Category][]domain.Module {
	out := map[domain.Category][]domain.Module{}
	for _, m := range c.product.AvailableModules {
		out[m.Category] = append(out[m.Category], m)
	}
	return out
}

type ModulePrice struct {
	ID    string  `json:"id"`
	Name  string  `json:"name"`
	Price float64 `json:"price"`
}

type Breakdown struct {
	BasePrice float64       `json:"basePrice"`
	Modules   []ModulePrice `json:"modules"`
	UnitPrice float64       `json:"unitPrice"`
	Quantity  int           `json:"quantity"`
	Subtotal  float64       `json:"subtotal"`
	Shipping  float64       `json:"shipping"`
	Total     float64       `json:"total"`
}

func (c *Configurator) Breakdown(role domain.Role, quantity int) Breakdown {
	if quantity < 1 {
		quantity = 1
	}
	b := Breakdown{BasePrice: pricing.PriceOf(c.product, role), Quantity: quantity}
	for _, m := range c.SelectedModules() {
		b.Modules = append(b.Modules, ModulePrice{ID: m.ID, Name: m.Name, Price: pricing.PriceOf(m, role)})
	}
	b.UnitPrice = pricing.UnitPrice(c.product, c.Selected(), role)
	t := pricing.ForSubtotal(b.UnitPrice * float64(quantity))
	b.Subtotal, b.Shipping, b.Total = t.Subtotal, t.Shipping, t.Total
	return b
}

// Validate checks a selection against the product without mutating anything.
func Validate(p domain.Product, moduleIDs []string) error {
	seen := map[string]struct{}{}
	perCategory := map[domain.Category]int{}
	mods := make([]domain.Module, 0, len(moduleIDs))
	for _, id := range moduleIDs {
		m, ok := p.Module(id)
		if !ok {
			return fmt.Errorf("%w: %w: %s", domain.ErrInvalidConfiguration, domain.ErrModuleNotFound, id)
		}
		if _, dup := seen[id]; dup {
			return fmt.Errorf("%w: duplicate module %s", domain.ErrInvalidConfiguration, id)
		}
		seen[id] = struct{}{}
		perCategory[m.Category]++
		if m.Category.Exclusive() && perCategory[m.Category] > 1 {
			return fmt.Errorf("%w: more than one %s module", domain.ErrInvalidConfiguration, m.Category)
		}
		mods = append(mods, m)
	}
	for i, a := range mods {
		for _, b := range mods[i+1:] {
			if a.Excludes(b.ID) || b.Excludes(a.ID) {
				return fmt.Errorf("%w: %w: %s and %s", domain.ErrInvalidConfiguration, domain.ErrIncompatible, a.ID, b.ID)
			}
		}
	}
	return nil
}
