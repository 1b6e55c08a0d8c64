package usecase

import (
	"context"
	"fmt"
	"strings"

	"github.com/phenrril/modularstore/internal/configurator"
	"github.com/phenrril/modularstore/internal/domain"
)

type ProductUC struct {
	Products domain.CatalogRepo
}

func (uc *ProductUC) List(ctx context.Context) ([]domain.Product, error) {
	return uc.Products.List(ctx)
}

func (uc *ProductUC) GetByID(ctx context.Context, id string) (*domain.Product, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, fmt.Errorf("%w: empty product id", domain.ErrNotFound)
	}
	return uc.Products.FindByID(ctx, id)
}

// Configure restores a stored selection for productID and applies an optional toggle.
// A rejected toggle still returns the unchanged configurator alongside the error.
func (uc *ProductUC) Configure(ctx context.Context, productID string, selected []string, toggle string) (*configurator.Configurator, error) {
	p, err := uc.GetByID(ctx, productID)
	if err != nil {
		return nil, err
	}
	var c *configurator.Configurator
	if len(selected) == 0 {
		c = configurator.New(*p)
	} else if c, err = configurator.Restore(*p, selected); err != nil {
		return nil, err
	}
	if toggle != "" {
		if _, err := c.Toggle(toggle); err != nil {
			return c, err
		}
	}
	return c, nil
}
