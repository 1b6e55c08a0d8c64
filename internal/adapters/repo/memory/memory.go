// Package memory keeps catalog and session state in process memory.
package memory

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/phenrril/modularstore/internal/domain"
)

type CatalogRepo struct {
	products []domain.Product
}

func NewCatalogRepo(products []domain.Product) *CatalogRepo {
	return &CatalogRepo{products: products}
}

func (r *CatalogRepo) List(ctx context.Context) ([]domain.Product, error) {
	out := make([]domain.Product, 0, len(r.products))
	for _, p := range r.products {
		out = append(out, copyProduct(p))
	}
	return out, nil
}

func (r *CatalogRepo) FindByID(ctx context.Context, id string) (*domain.Product, error) {
	for _, p := range r.products {
		if p.ID == id {
			cp := copyProduct(p)
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func copyProduct(p domain.Product) domain.Product {
	mods := make([]domain.Module, len(p.AvailableModules))
	for i, m := range p.AvailableModules {
		m.IncompatibleWith = append([]string(nil), m.IncompatibleWith...)
		mods[i] = m
	}
	p.AvailableModules = mods
	return p
}

// StateRepo stores each session as its JSON encoding, the same shape the
// postgres repo persists, so callers never share slices with the store.
type StateRepo struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

func NewStateRepo() *StateRepo {
	return &StateRepo{blobs: map[string][]byte{}}
}

func (r *StateRepo) Load(ctx context.Context, key string) (domain.SessionState, error) {
	r.mu.RLock()
	b, ok := r.blobs[key]
	r.mu.RUnlock()
	if !ok {
		return domain.SessionState{}, domain.ErrNotFound
	}
	var st domain.SessionState
	if err := json.Unmarshal(b, &st); err != nil {
		return domain.SessionState{}, err
	}
	return st, nil
}

func (r *StateRepo) Save(ctx context.Context, key string, st domain.SessionState) error {
	b, err := json.Marshal(st)
	if err != nil {
		return err
	}
	r.mu.Lock()
	r.blobs[key] = b
	r.mu.Unlock()
	return nil
}
