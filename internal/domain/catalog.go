package domain

import (
	"context"
	"time"
)

type Category string

const (
	CategoryMaterial  Category = "material"
	CategorySize      Category = "size"
	CategoryAddon     Category = "addon"
	CategoryAccessory Category = "accessory"
)

// CategoryOrder is the display order of module groups.
var CategoryOrder = []Category{CategoryMaterial, CategorySize, CategoryAddon, CategoryAccessory}

// Exclusive categories always hold exactly one selection once initialized.
func (c Category) Exclusive() bool {
	return c == CategoryMaterial || c == CategorySize
}

func (c Category) Label() string {
	switch c {
	case CategoryMaterial:
		return "Material"
	case CategorySize:
		return "Size"
	case CategoryAddon:
		return "Add-ons"
	case CategoryAccessory:
		return "Accessories"
	}
	return string(c)
}

// Prices holds the three role tiers of a catalog entry.
type Prices struct {
	BasePrice        float64 `json:"basePrice" gorm:"type:decimal(12,2)"`
	WholesalePrice   float64 `json:"wholeSalePrice" gorm:"type:decimal(12,2)"`
	DistributorPrice float64 `json:"distributorPrice" gorm:"type:decimal(12,2)"`
}

func (p Prices) Tiers() Prices { return p }

type Priced interface {
	Tiers() Prices
}

type Module struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Category Category `json:"category"`
	Prices
	IncompatibleWith []string `json:"incompatibleWith,omitempty"`
	Description      string   `json:"description,omitempty"`
}

func (m Module) Excludes(id string) bool {
	for _, x := range m.IncompatibleWith {
		if x == id {
			return true
		}
	}
	return false
}

type Product struct {
	ID          string `json:"id" gorm:"primaryKey;size:80"`
	Name        string `json:"name" gorm:"size:180"`
	Description string `json:"description" gorm:"type:text"`
	Prices
	ImageURL         string    `json:"imageUrl" gorm:"size:255"`
	AvailableModules []Module  `json:"availableModules" gorm:"type:jsonb;serializer:json"`
	Position         int       `json:"-" gorm:"default:0"`
	CreatedAt        time.Time `json:"-"`
	UpdatedAt        time.Time `json:"-"`
}

func (p Product) Module(id string) (Module, bool) {
	for _, m := range p.AvailableModules {
		if m.ID == id {
			return m, true
		}
	}
	return Module{}, false
}

type CatalogRepo interface {
	List(ctx context.Context) ([]Product, error)
	FindByID(ctx context.Context, id string) (*Product, error)
}
