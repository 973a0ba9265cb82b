// Package catalog manages the product listings sold by the storefront.
package catalog

import (
	"context"
	stderrors "errors"
	"strings"

	"github.com/pixelmart/storefront/internal/app/domain/product"
	"github.com/pixelmart/storefront/internal/app/storage"
	"github.com/pixelmart/storefront/internal/errors"
	"github.com/pixelmart/storefront/pkg/logger"
)

// Service manages catalog records.
type Service struct {
	store storage.ProductStore
	log   *logger.Logger
}

// New constructs a catalog service.
func New(store storage.ProductStore, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("catalog")
	}
	return &Service{store: store, log: log}
}

// List returns products matching the filter, oldest first.
func (s *Service) List(ctx context.Context, filter product.Filter) ([]product.Product, error) {
	products, err := s.store.ListProducts(ctx, filter)
	if err != nil {
		return nil, errors.Internal("failed to list products", err)
	}
	if products == nil {
		products = []product.Product{}
	}
	return products, nil
}

// Get returns a product by id. Inactive products are hidden unless
// includeInactive is set.
func (s *Service) Get(ctx context.Context, id string, includeInactive bool) (product.Product, error) {
	p, err := s.store.GetProduct(ctx, id)
	if err != nil {
		if stderrors.Is(err, storage.ErrNotFound) {
			return product.Product{}, errors.NotFound("product not found")
		}
		return product.Product{}, errors.Internal("failed to load product", err)
	}
	if !p.Active && !includeInactive {
		return product.Product{}, errors.NotFound("product not found")
	}
	return p, nil
}

// Create adds a product to the catalog.
func (s *Service) Create(ctx context.Context, p product.Product) (product.Product, error) {
	p.Name = strings.TrimSpace(p.Name)
	if p.Name == "" {
		return product.Product{}, errors.Validation("name is required")
	}
	if p.PriceCents < 0 {
		return product.Product{}, errors.Validation("price must not be negative")
	}
	if p.Stock < 0 {
		return product.Product{}, errors.Validation("stock must not be negative")
	}

	p.Active = true
	created, err := s.store.CreateProduct(ctx, p)
	if err != nil {
		return product.Product{}, errors.Internal("failed to create product", err)
	}
	s.log.Infof("product %s created", created.ID)
	return created, nil
}

// UpdateInput carries the mutable product fields. Nil pointers leave the
// current value in place.
type UpdateInput struct {
	Name        *string
	Description *string
	PriceCents  *int64
	Category    *string
	Stock       *int
	ImageURL    *string
	Active      *bool
}

// Update applies a partial update to a product.
func (s *Service) Update(ctx context.Context, id string, in UpdateInput) (product.Product, error) {
	existing, err := s.store.GetProduct(ctx, id)
	if err != nil {
		if stderrors.Is(err, storage.ErrNotFound) {
			return product.Product{}, errors.NotFound("product not found")
		}
		return product.Product{}, errors.Internal("failed to load product", err)
	}

	if in.Name != nil {
		if strings.TrimSpace(*in.Name) == "" {
			return product.Product{}, errors.Validation("name must not be empty")
		}
		existing.Name = strings.TrimSpace(*in.Name)
	}
	if in.Description != nil {
		existing.Description = *in.Description
	}
	if in.PriceCents != nil {
		if *in.PriceCents < 0 {
			return product.Product{}, errors.Validation("price must not be negative")
		}
		existing.PriceCents = *in.PriceCents
	}
	if in.Category != nil {
		existing.Category = *in.Category
	}
	if in.Stock != nil {
		if *in.Stock < 0 {
			return product.Product{}, errors.Validation("stock must not be negative")
		}
		existing.Stock = *in.Stock
	}
	if in.ImageURL != nil {
		existing.ImageURL = *in.ImageURL
	}
	if in.Active != nil {
		existing.Active = *in.Active
	}

	updated, err := s.store.UpdateProduct(ctx, existing)
	if err != nil {
		return product.Product{}, errors.Internal("failed to update product", err)
	}
	s.log.Infof("product %s updated", id)
	return updated, nil
}

// Delete soft-deletes a product by clearing its active flag. The record stays
// in the store.
func (s *Service) Delete(ctx context.Context, id string) error {
	existing, err := s.store.GetProduct(ctx, id)
	if err != nil {
		if stderrors.Is(err, storage.ErrNotFound) {
			return errors.NotFound("product not found")
		}
		return errors.Internal("failed to load product", err)
	}

	existing.Active = false
	if _, err := s.store.UpdateProduct(ctx, existing); err != nil {
		return errors.Internal("failed to delete product", err)
	}
	s.log.Infof("product %s soft-deleted", id)
	return nil
}
