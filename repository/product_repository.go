package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"groceryDelivery/internal/db"
	"groceryDelivery/models"
)

const productColumns = `id, name, category, description, price, unit, image_url, stock, created_at, updated_at`

// ProductFilter narrows List. Zero values match everything.
type ProductFilter struct {
	Category    string
	Search      string // case-insensitive substring of name or description
	InStockOnly bool
}

type ProductRepository struct {
	db *db.DB
}

func NewProductRepository(d *db.DB) *ProductRepository {
	return &ProductRepository{db: d}
}

func scanProduct(s rowScanner) (*models.Product, error) {
	var p models.Product
	var created, updated any
	if err := s.Scan(&p.ID, &p.Name, &p.Category, &p.Description, &p.Price, &p.Unit, &p.ImageURL, &p.Stock, &created, &updated); err != nil {
		return nil, err
	}
	p.CreatedAt = db.ParseTime(created)
	p.UpdatedAt = db.ParseTime(updated)
	return &p, nil
}

func (r *ProductRepository) Create(ctx context.Context, p *models.Product) (*models.Product, error) {
	if p == nil {
		return nil, errors.New("product is nil")
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var id int64
	err := r.db.QueryRowContext(ctx, r.db.Q(`INSERT INTO products (name, category, description, price, unit, image_url, stock) VALUES (?,?,?,?,?,?,?) RETURNING id`),
		p.Name, p.Category, p.Description, p.Price, p.Unit, p.ImageURL, p.Stock).Scan(&id)
	if err != nil {
		return nil, err
	}
	return r.GetByID(ctx, id)
}

func (r *ProductRepository) GetByID(ctx context.Context, id int64) (*models.Product, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	p, err := scanProduct(r.db.QueryRowContext(ctx, r.db.Q(`SELECT `+productColumns+` FROM products WHERE id = ?`), id))
	if isNoRows(err) {
		return nil, nil
	}
	return p, err
}

// Update overwrites the editable fields. It reports false when the product does not exist.
func (r *ProductRepository) Update(ctx context.Context, p *models.Product) (bool, error) {
	if p == nil {
		return false, errors.New("product is nil")
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	res, err := r.db.ExecContext(ctx, r.db.Q(`UPDATE products SET name = ?, category = ?, description = ?, price = ?, unit = ?, image_url = ?, stock = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`),
		p.Name, p.Category, p.Description, p.Price, p.Unit, p.ImageURL, p.Stock, p.ID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

func (r *ProductRepository) Delete(ctx context.Context, id int64) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	res, err := r.db.ExecContext(ctx, r.db.Q(`DELETE FROM products WHERE id = ?`), id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

// List returns products matching f ordered by category then name.
func (r *ProductRepository) List(ctx context.Context, f ProductFilter) ([]models.Product, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var where []string
	var args []any
	if f.Category != "" {
		where = append(where, "category = ?")
		args = append(args, f.Category)
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		where = append(where, "(LOWER(name) LIKE ? OR LOWER(description) LIKE ?)")
		like := "%" + strings.ToLower(s) + "%"
		args = append(args, like, like)
	}
	if f.InStockOnly {
		where = append(where, "stock > 0")
	}
	query := `SELECT ` + productColumns + ` FROM products`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY category, name, id"

	rows, err := r.db.QueryContext(ctx, r.db.Q(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []models.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Categories lists distinct non-empty categories alphabetically.
func (r *ProductRepository) Categories(ctx context.Context) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	rows, err := r.db.QueryContext(ctx, `SELECT DISTINCT category FROM products WHERE category <> '' ORDER BY category`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// AdjustStock adds delta (which may be negative) to stock. It reports false when the
// product is missing or the result would go below zero.
func (r *ProductRepository) AdjustStock(ctx context.Context, id int64, delta int) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	res, err := r.db.ExecContext(ctx, r.db.Q(`UPDATE products SET stock = stock + ?, updated_at = CURRENT_TIMESTAMP WHERE id = ? AND stock + ? >= 0`),
		delta, id, delta)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}
