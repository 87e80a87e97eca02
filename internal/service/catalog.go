package service

import (
	"context"
	"fmt"
	"strings"

	"groceryDelivery/internal/apperrors"
	"groceryDelivery/internal/events"
	"groceryDelivery/models"
	"groceryDelivery/repository"
)

// CatalogService exposes products to the storefront and lets admins edit them.
// Every change is published on the products event.
type CatalogService struct {
	Products repository.ProductRepositoryI
	Bus      *events.Bus
}

// ProductChange is the payload of the products event.
type ProductChange struct {
	Action  string          `json:"action"` // created, updated, deleted, stock
	Product *models.Product `json:"product,omitempty"`
	ID      int64           `json:"id"`
}

func (s *CatalogService) List(ctx context.Context, f repository.ProductFilter) ([]models.Product, error) {
	out, err := s.Products.List(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	if out == nil {
		out = []models.Product{}
	}
	return out, nil
}

func (s *CatalogService) Get(ctx context.Context, id int64) (*models.Product, error) {
	p, err := s.Products.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get product: %w", err)
	}
	if p == nil {
		return nil, apperrors.NewNotFound("product", id)
	}
	return p, nil
}

func (s *CatalogService) Categories(ctx context.Context) ([]string, error) {
	out, err := s.Products.Categories(ctx)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	if out == nil {
		out = []string{}
	}
	return out, nil
}

func (s *CatalogService) Create(ctx context.Context, p *models.Product) (*models.Product, error) {
	if err := validateProduct(p); err != nil {
		return nil, err
	}
	created, err := s.Products.Create(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("create product: %w", err)
	}
	s.publish(ProductChange{Action: "created", Product: created, ID: created.ID})
	return created, nil
}

func (s *CatalogService) Update(ctx context.Context, p *models.Product) (*models.Product, error) {
	if err := validateProduct(p); err != nil {
		return nil, err
	}
	ok, err := s.Products.Update(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("update product: %w", err)
	}
	if !ok {
		return nil, apperrors.NewNotFound("product", p.ID)
	}
	updated, err := s.Get(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	s.publish(ProductChange{Action: "updated", Product: updated, ID: updated.ID})
	return updated, nil
}

func (s *CatalogService) Delete(ctx context.Context, id int64) error {
	ok, err := s.Products.Delete(ctx, id)
	if err != nil {
		return fmt.Errorf("delete product: %w", err)
	}
	if !ok {
		return apperrors.NewNotFound("product", id)
	}
	s.publish(ProductChange{Action: "deleted", ID: id})
	return nil
}

func (s *CatalogService) publish(c ProductChange) {
	if s.Bus != nil {
		s.Bus.Publish(events.Products, c)
	}
}

func validateProduct(p *models.Product) error {
	if p == nil {
		return &apperrors.Validation{Message: "product is required"}
	}
	fields := map[string]string{}
	p.Name = strings.TrimSpace(p.Name)
	if p.Name == "" {
		fields["name"] = "required"
	}
	if p.Price < 0 {
		fields["price"] = "must be >= 0"
	}
	if p.Stock < 0 {
		fields["stock"] = "must be >= 0"
	}
	if len(fields) > 0 {
		return &apperrors.Validation{Message: "invalid product", Fields: fields}
	}
	return nil
}
