package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/phenrril/modularstore/internal/configurator"
	"github.com/phenrril/modularstore/internal/domain"
	"github.com/phenrril/modularstore/internal/pricing"
)

// Session owns one client's role, cart and orders. Every mutation is written
// through to the store; a failed write leaves the in-memory state untouched.
type Session struct {
	Key     string
	store   domain.StateStore
	catalog domain.CatalogRepo
	state   domain.SessionState
}

func LoadSession(ctx context.Context, store domain.StateStore, catalog domain.CatalogRepo, key string) (*Session, error) {
	st, err := store.Load(ctx, key)
	if errors.Is(err, domain.ErrNotFound) {
		st = domain.NewSessionState()
	} else if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if !st.Role.Valid() {
		st.Role = domain.RoleRetail
	}
	if st.Cart == nil {
		st.Cart = []domain.CartItem{}
	}
	if st.Orders == nil {
		st.Orders = []domain.Order{}
	}
	return &Session{Key: key, store: store, catalog: catalog, state: st}, nil
}

func (s *Session) Role() domain.Role { return s.state.Role }

func (s *Session) Cart() []domain.CartItem { return domain.CloneItems(s.state.Cart) }

func (s *Session) Orders() []domain.Order {
	return append([]domain.Order(nil), s.state.Orders...)
}

func (s *Session) State() domain.SessionState {
	return domain.SessionState{Role: s.state.Role, Cart: s.Cart(), Orders: s.Orders()}
}

func (s *Session) commit(ctx context.Context, next domain.SessionState) error {
	if err := s.store.Save(ctx, s.Key, next); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	s.state = next
	return nil
}

func (s *Session) SetRole(ctx context.Context, role domain.Role) error {
	if !role.Valid() {
		return domain.ErrUnknownRole
	}
	next := s.State()
	next.Role = role
	return s.commit(ctx, next)
}

// AddToCart accepts any valid configuration with quantity >= 1. The role
// minimum is checked at the checkout gate, not here.
func (s *Session) AddToCart(ctx context.Context, cfg domain.Configuration, quantity int) (domain.CartItem, error) {
	if quantity < 1 {
		return domain.CartItem{}, domain.ErrInvalidQuantity
	}
	p, err := s.catalog.FindByID(ctx, cfg.ProductID)
	if err != nil {
		return domain.CartItem{}, err
	}
	if err := configurator.Validate(*p, cfg.SelectedModules); err != nil {
		return domain.CartItem{}, err
	}
	item := domain.CartItem{
		ID: uuid.NewString(),
		Configuration: domain.Configuration{
			ProductID:       p.ID,
			SelectedModules: append([]string{}, cfg.SelectedModules...),
		},
		Product:  *p,
		Quantity: quantity,
	}
	next := s.State()
	next.Cart = append(next.Cart, item)
	if err := s.commit(ctx, next); err != nil {
		return domain.CartItem{}, err
	}
	return item, nil
}

func (s *Session) RemoveFromCart(ctx context.Context, itemID string) error {
	next := s.State()
	kept := next.Cart[:0]
	for _, it := range next.Cart {
		if it.ID != itemID {
			kept = append(kept, it)
		}
	}
	if len(kept) == len(s.state.Cart) {
		return nil
	}
	next.Cart = kept
	return s.commit(ctx, next)
}

func (s *Session) ClearCart(ctx context.Context) error {
	next := s.State()
	next.Cart = []domain.CartItem{}
	return s.commit(ctx, next)
}

// AddOrder prepends o; the most recent order comes first.
func (s *Session) AddOrder(ctx context.Context, o domain.Order) error {
	next := s.State()
	next.Orders = append([]domain.Order{o}, next.Orders...)
	return s.commit(ctx, next)
}

func (s *Session) CartTotals() pricing.Totals {
	return pricing.TotalsOf(s.state.Cart, s.state.Role)
}

func (s *Session) TotalQuantity() int {
	n := 0
	for _, it := range s.state.Cart {
		n += it.Quantity
	}
	return n
}

// DefaultQuantity is the starting quantity offered by the product builder.
func (s *Session) DefaultQuantity() int {
	return domain.RequirementFor(s.state.Role).MinimumOrderQuantity
}

type Gate struct {
	Minimum  int  `json:"minimum"`
	Quantity int  `json:"quantity"`
	Missing  int  `json:"missing"`
	Allowed  bool `json:"allowed"`
}

// CheckoutGate compares the cart quantity against the role minimum.
func (s *Session) CheckoutGate() Gate {
	g := Gate{Minimum: domain.RequirementFor(s.state.Role).MinimumOrderQuantity, Quantity: s.TotalQuantity()}
	if g.Quantity < g.Minimum {
		g.Missing = g.Minimum - g.Quantity
	}
	g.Allowed = len(s.state.Cart) > 0 && g.Missing == 0
	return g
}
