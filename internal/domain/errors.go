package domain

import (
	"errors"
	"sort"
	"strings"
)

var (
	ErrNotFound             = errors.New("not found")
	ErrUnknownRole          = errors.New("unknown role")
	ErrModuleNotFound       = errors.New("module not found")
	ErrIncompatible         = errors.New("module incompatible with current selection")
	ErrInvalidConfiguration = errors.New("invalid configuration")
	ErrInvalidQuantity      = errors.New("quantity must be positive")
	ErrEmptyCart            = errors.New("cart is empty")
	ErrBelowMinimum         = errors.New("below minimum order quantity")
	ErrInvalidStep          = errors.New("action not allowed in current checkout step")
	ErrMissingReference     = errors.New("missing reference")
	ErrNothingToReconcile   = errors.New("no items to reconcile")
	ErrGatewayNotConfigured = errors.New("payment gateway secret not configured")
	ErrNoRedirectURL        = errors.New("gateway did not return a redirect URL")
)

// ValidationError maps offending form fields to a short reason.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return "invalid fields: " + strings.Join(keys, ", ")
}
