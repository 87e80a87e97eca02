package repository

import (
	"context"
	"encoding/json"
	"time"

	"groceryDelivery/internal/db"
	"groceryDelivery/models"
)

// CartRepository stores one JSON cart per phone number in user_carts.
type CartRepository struct {
	db *db.DB
}

func NewCartRepository(d *db.DB) *CartRepository {
	return &CartRepository{db: d}
}

// Get returns the saved cart. A missing or unreadable cart is returned as empty.
func (r *CartRepository) Get(ctx context.Context, phone string) ([]models.CartItem, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	var raw []byte
	err := r.db.QueryRowContext(ctx, r.db.Q(`SELECT items FROM user_carts WHERE phone = ?`), phone).Scan(&raw)
	if err != nil {
		if isNoRows(err) {
			return []models.CartItem{}, nil
		}
		return nil, err
	}
	var items []models.CartItem
	if err := json.Unmarshal(raw, &items); err != nil || items == nil {
		return []models.CartItem{}, nil
	}
	return items, nil
}

// Save replaces the cart for phone.
func (r *CartRepository) Save(ctx context.Context, phone string, items []models.CartItem) error {
	if items == nil {
		items = []models.CartItem{}
	}
	b, err := json.Marshal(items)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	_, err = r.db.ExecContext(ctx, r.db.Q(`INSERT INTO user_carts (phone, items, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
ON CONFLICT (phone) DO UPDATE SET items = excluded.items, updated_at = CURRENT_TIMESTAMP`), phone, string(b))
	return err
}

func (r *CartRepository) Clear(ctx context.Context, phone string) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	_, err := r.db.ExecContext(ctx, r.db.Q(`DELETE FROM user_carts WHERE phone = ?`), phone)
	return err
}
