package postgres

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/phenrril/modularstore/internal/domain"
)

type CatalogRepo struct{ db *gorm.DB }

func NewCatalogRepo(db *gorm.DB) *CatalogRepo { return &CatalogRepo{db: db} }

func (r *CatalogRepo) FindByID(ctx context.Context, id string) (*domain.Product, error) {
	var p domain.Product
	if err := r.db.WithContext(ctx).First(&p, "id = ?", strings.TrimSpace(id)).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (r *CatalogRepo) List(ctx context.Context) ([]domain.Product, error) {
	var list []domain.Product
	if err := r.db.WithContext(ctx).Order("position asc").Order("name asc").Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

func (r *CatalogRepo) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&domain.Product{}).Count(&n).Error; err != nil {
		return 0, err
	}
	return n, nil
}

// Seed stores products in the given order when the table is empty.
func (r *CatalogRepo) Seed(ctx context.Context, products []domain.Product) error {
	n, err := r.Count(ctx)
	if err != nil || n > 0 {
		return err
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i := range products {
			p := products[i]
			p.Position = i
			if err := tx.Create(&p).Error; err != nil {
				return err
			}
		}
		return nil
	})
}
