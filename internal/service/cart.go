package service

import (
	"context"
	"fmt"
	"math"
	"strings"

	"groceryDelivery/internal/apperrors"
	"groceryDelivery/models"
	"groceryDelivery/repository"
)

// CartService manages the saved cart of a customer, keyed by phone number.
type CartService struct {
	Carts    repository.CartRepositoryI
	Products repository.ProductRepositoryI
}

func (s *CartService) Get(ctx context.Context, phone string) ([]models.CartItem, error) {
	if strings.TrimSpace(phone) == "" {
		return nil, &apperrors.Validation{Message: "phone is required"}
	}
	items, err := s.Carts.Get(ctx, phone)
	if err != nil {
		return nil, fmt.Errorf("get cart: %w", err)
	}
	return items, nil
}

// AddItem adds qty of the product, merging with an existing line.
func (s *CartService) AddItem(ctx context.Context, phone string, productID int64, qty int) ([]models.CartItem, error) {
	if qty <= 0 {
		return nil, &apperrors.Validation{Message: "quantity must be positive", Fields: map[string]string{"quantity": "must be > 0"}}
	}
	p, err := s.product(ctx, productID)
	if err != nil {
		return nil, err
	}
	items, err := s.Get(ctx, phone)
	if err != nil {
		return nil, err
	}

	outOfStock := &apperrors.Validation{Message: fmt.Sprintf("only %d of %s in stock", p.Stock, p.Name)}
	if qty > p.Stock {
		return nil, outOfStock
	}
	merged := false
	for i := range items {
		if items[i].ProductID == productID {
			// Compared before adding so a huge qty cannot wrap the sum.
			if items[i].Quantity > p.Stock-qty {
				return nil, outOfStock
			}
			items[i].Quantity += qty
			items[i].Name, items[i].Price = p.Name, p.Price
			merged = true
			break
		}
	}
	if !merged {
		items = append(items, models.CartItem{ProductID: p.ID, Name: p.Name, Price: p.Price, Quantity: qty})
	}
	return s.save(ctx, phone, items)
}

// UpdateItem sets the quantity of a line. A quantity of zero or less removes it.
func (s *CartService) UpdateItem(ctx context.Context, phone string, productID int64, qty int) ([]models.CartItem, error) {
	if qty <= 0 {
		return s.RemoveItem(ctx, phone, productID)
	}
	p, err := s.product(ctx, productID)
	if err != nil {
		return nil, err
	}
	if qty > p.Stock {
		return nil, &apperrors.Validation{Message: fmt.Sprintf("only %d of %s in stock", p.Stock, p.Name)}
	}
	items, err := s.Get(ctx, phone)
	if err != nil {
		return nil, err
	}
	found := false
	for i := range items {
		if items[i].ProductID == productID {
			items[i].Quantity = qty
			items[i].Name, items[i].Price = p.Name, p.Price
			found = true
			break
		}
	}
	if !found {
		items = append(items, models.CartItem{ProductID: p.ID, Name: p.Name, Price: p.Price, Quantity: qty})
	}
	return s.save(ctx, phone, items)
}

func (s *CartService) RemoveItem(ctx context.Context, phone string, productID int64) ([]models.CartItem, error) {
	items, err := s.Get(ctx, phone)
	if err != nil {
		return nil, err
	}
	out := items[:0]
	for _, it := range items {
		if it.ProductID != productID {
			out = append(out, it)
		}
	}
	return s.save(ctx, phone, out)
}

func (s *CartService) Clear(ctx context.Context, phone string) error {
	if err := s.Carts.Clear(ctx, phone); err != nil {
		return fmt.Errorf("clear cart: %w", err)
	}
	return nil
}

// CartTotal sums price*quantity, rounded to paise.
func CartTotal(items []models.CartItem) float64 {
	var total float64
	for _, it := range items {
		total += it.Price * float64(it.Quantity)
	}
	return roundMoney(total)
}

func roundMoney(v float64) float64 {
	return math.Round(v*100) / 100
}

func (s *CartService) product(ctx context.Context, id int64) (*models.Product, error) {
	p, err := s.Products.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get product: %w", err)
	}
	if p == nil {
		return nil, apperrors.NewNotFound("product", id)
	}
	return p, nil
}

func (s *CartService) save(ctx context.Context, phone string, items []models.CartItem) ([]models.CartItem, error) {
	if err := s.Carts.Save(ctx, phone, items); err != nil {
		return nil, fmt.Errorf("save cart: %w", err)
	}
	if items == nil {
		items = []models.CartItem{}
	}
	return items, nil
}
