// Package catalog holds the built-in product catalog used to seed storage.
package catalog

import "github.com/phenrril/modularstore/internal/domain"

func tiers(base float64) domain.Prices {
	return domain.Prices{BasePrice: base, WholesalePrice: base * 8 / 10, DistributorPrice: base * 7 / 10}
}

// Products returns a fresh copy of the default catalog.
func Products() []domain.Product {
	return []domain.Product{
		{
			ID:          "modular-desk",
			Name:        "Modular Desk",
			Description: "Configurable work desk with interchangeable tops and frames",
			Prices:      tiers(8500),
			ImageURL:    "/public/img/modular-desk.jpg",
			AvailableModules: []domain.Module{
				{ID: "desk-oak", Name: "Oak Top", Category: domain.CategoryMaterial, Prices: tiers(1200), Description: "Solid oak veneer"},
				{ID: "desk-walnut", Name: "Walnut Top", Category: domain.CategoryMaterial, Prices: tiers(1800)},
				{ID: "desk-steel", Name: "Powder-coated Steel", Category: domain.CategoryMaterial, Prices: tiers(1500)},
				{ID: "desk-120", Name: "120 x 60 cm", Category: domain.CategorySize, Prices: tiers(0)},
				{ID: "desk-160", Name: "160 x 80 cm", Category: domain.CategorySize, Prices: tiers(900)},
				{ID: "desk-motor-frame", Name: "Motorized Standing Frame", Category: domain.CategoryAddon, Prices: tiers(4500), IncompatibleWith: []string{"desk-drawer"}},
				{ID: "desk-drawer", Name: "Under-desk Drawer", Category: domain.CategoryAddon, Prices: tiers(800)},
				{ID: "desk-cable-tray", Name: "Cable Tray", Category: domain.CategoryAddon, Prices: tiers(450)},
				{ID: "desk-monitor-arm", Name: "Monitor Arm", Category: domain.CategoryAccessory, Prices: tiers(650)},
				{ID: "desk-led", Name: "LED Strip", Category: domain.CategoryAccessory, Prices: tiers(300)},
			},
		},
		{
			ID:          "modular-shelf",
			Name:        "Modular Shelf",
			Description: "Wall or floor shelving built from stackable frames",
			Prices:      tiers(4200),
			ImageURL:    "/public/img/modular-shelf.jpg",
			AvailableModules: []domain.Module{
				{ID: "shelf-pine", Name: "Pine", Category: domain.CategoryMaterial, Prices: tiers(600)},
				{ID: "shelf-birch", Name: "Birch Plywood", Category: domain.CategoryMaterial, Prices: tiers(900)},
				{ID: "shelf-3", Name: "3 Tiers", Category: domain.CategorySize, Prices: tiers(0)},
				{ID: "shelf-5", Name: "5 Tiers", Category: domain.CategorySize, Prices: tiers(1400)},
				{ID: "shelf-wall-mount", Name: "Wall Mount Kit", Category: domain.CategoryAddon, Prices: tiers(350), IncompatibleWith: []string{"shelf-casters"}},
				{ID: "shelf-casters", Name: "Casters", Category: domain.CategoryAddon, Prices: tiers(500)},
				{ID: "shelf-doors", Name: "Glass Doors", Category: domain.CategoryAccessory, Prices: tiers(1200)},
				{ID: "shelf-bins", Name: "Fabric Bins", Category: domain.CategoryAccessory, Prices: tiers(400), IncompatibleWith: []string{"shelf-doors"}},
			},
		},
		{
			ID:          "storage-cube",
			Name:        "Storage Cube",
			Description: "Single stackable cube with optional inserts",
			Prices:      tiers(1500),
			ImageURL:    "/public/img/storage-cube.jpg",
			AvailableModules: []domain.Module{
				{ID: "cube-white", Name: "White Laminate", Category: domain.CategoryMaterial, Prices: tiers(0)},
				{ID: "cube-black", Name: "Black Laminate", Category: domain.CategoryMaterial, Prices: tiers(100)},
				{ID: "cube-door", Name: "Hinged Door", Category: domain.CategoryAddon, Prices: tiers(350)},
				{ID: "cube-label", Name: "Label Holder", Category: domain.CategoryAccessory, Prices: tiers(50)},
			},
		},
	}
}
