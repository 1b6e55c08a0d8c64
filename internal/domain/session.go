package domain

import "context"

// SessionState is the persisted client blob: role, cart and order history.
type SessionState struct {
	Role   Role       `json:"userRole"`
	Cart   []CartItem `json:"cart"`
	Orders []Order    `json:"orders"`
}

func NewSessionState() SessionState {
	return SessionState{Role: RoleRetail, Cart: []CartItem{}, Orders: []Order{}}
}

// StateStore persists one SessionState per key. Load returns ErrNotFound for unknown keys.
type StateStore interface {
	Load(ctx context.Context, key string) (SessionState, error)
	Save(ctx context.Context, key string, st SessionState) error
}
