package pricing

import (
	"math"
	"strconv"
	"strings"

	"github.com/phenrril/modularstore/internal/domain"
)

const (
	FreeShippingThreshold    = 20000.0
	ReducedShippingThreshold = 10000.0
	ReducedShipping          = 500.0
	StandardShipping         = 850.0
)

type Totals struct {
	Subtotal float64 `json:"subtotal"`
	Shipping float64 `json:"shipping"`
	Total    float64 `json:"total"`
}

// PriceOf returns the tier matching role; anything but wholesale or distributor gets the base price.
func PriceOf(p domain.Priced, role domain.Role) float64 {
	t := p.Tiers()
	switch role {
	case domain.RoleWholesale:
		return t.WholesalePrice
	case domain.RoleDistributor:
		return t.DistributorPrice
	default:
		return t.BasePrice
	}
}

func ShippingCost(subtotal float64) float64 {
	if subtotal > FreeShippingThreshold {
		return 0
	}
	if subtotal > ReducedShippingThreshold {
		return ReducedShipping
	}
	return StandardShipping
}

// UnitPrice is the price of one configured unit. Ids missing from the product add nothing.
func UnitPrice(p domain.Product, moduleIDs []string, role domain.Role) float64 {
	total := PriceOf(p, role)
	for _, id := range moduleIDs {
		if m, ok := p.Module(id); ok {
			total += PriceOf(m, role)
		}
	}
	return total
}

// LineItemTotal is the single formula behind every displayed or charged line amount.
func LineItemTotal(item domain.CartItem, role domain.Role) float64 {
	return UnitPrice(item.Product, item.SelectedModules, role) * float64(item.Quantity)
}

func Subtotal(items []domain.CartItem, role domain.Role) float64 {
	sum := 0.0
	for _, it := range items {
		sum += LineItemTotal(it, role)
	}
	return sum
}

func ForSubtotal(subtotal float64) Totals {
	shipping := ShippingCost(subtotal)
	return Totals{Subtotal: subtotal, Shipping: shipping, Total: subtotal + shipping}
}

func TotalsOf(items []domain.CartItem, role domain.Role) Totals {
	return ForSubtotal(Subtotal(items, role))
}

// MinorUnits converts a total to the smallest currency unit.
func MinorUnits(total float64) int64 {
	return int64(math.Round(total * 100))
}

// FormatPrice renders "R 12,450" style amounts.
func FormatPrice(v float64) string {
	s := strconv.FormatFloat(math.Round(v), 'f', 0, 64)
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	n := len(s)
	if n > 3 {
		rem := n % 3
		if rem == 0 {
			rem = 3
		}
		out := s[:rem]
		for i := rem; i < n; i += 3 {
			out += "," + s[i:i+3]
		}
		s = out
	}
	if neg {
		s = "-" + s
	}
	return "R " + s
}

func RoleBadgeLabel(role domain.Role) string {
	switch role {
	case domain.RoleWholesale:
		return "Wholesale"
	case domain.RoleDistributor:
		return "Distributor"
	default:
		return "Retail"
	}
}
