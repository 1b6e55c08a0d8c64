package domain

import "strings"

type Role string

const (
	RoleRetail      Role = "retail"
	RoleWholesale   Role = "wholesale"
	RoleDistributor Role = "distributor"
)

var Roles = []Role{RoleRetail, RoleWholesale, RoleDistributor}

func (r Role) Valid() bool {
	switch r {
	case RoleRetail, RoleWholesale, RoleDistributor:
		return true
	}
	return false
}

// ParseRole is the only entry point for role strings coming from outside.
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	if !r.Valid() {
		return "", ErrUnknownRole
	}
	return r, nil
}

type RoleRequirement struct {
	Role                 Role   `json:"role"`
	MinimumOrderQuantity int    `json:"minimumOrderQuantity"`
	DiscountLabel        string `json:"discount"`
	Description          string `json:"description"`
}

var RoleRequirements = map[Role]RoleRequirement{
	RoleRetail: {
		Role:                 RoleRetail,
		MinimumOrderQuantity: 1,
		DiscountLabel:        "Standard pricing",
		Description:          "Individual purchases for personal use",
	},
	RoleWholesale: {
		Role:                 RoleWholesale,
		MinimumOrderQuantity: 10,
		DiscountLabel:        "Save 20%",
		Description:          "Small retailers and businesses",
	},
	RoleDistributor: {
		Role:                 RoleDistributor,
		MinimumOrderQuantity: 50,
		DiscountLabel:        "Save 30%",
		Description:          "Large distributors and corporate procurement",
	},
}

// RequirementFor falls back to retail for roles outside the enum.
func RequirementFor(r Role) RoleRequirement {
	if req, ok := RoleRequirements[r]; ok {
		return req
	}
	return RoleRequirements[RoleRetail]
}
