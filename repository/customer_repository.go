package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"groceryDelivery/internal/db"
	"groceryDelivery/models"
)

const customerColumns = `id, name, phone, address, lat, lng, created_at`

type CustomerRepository struct {
	db *db.DB
}

func NewCustomerRepository(d *db.DB) *CustomerRepository {
	return &CustomerRepository{db: d}
}

func scanCustomer(s rowScanner) (*models.Customer, error) {
	var c models.Customer
	var lat, lng sql.NullFloat64
	var created any
	if err := s.Scan(&c.ID, &c.Name, &c.Phone, &c.Address, &lat, &lng, &created); err != nil {
		return nil, err
	}
	c.Lat, c.Lng = floatPtr(lat), floatPtr(lng)
	c.CreatedAt = db.ParseTime(created)
	return &c, nil
}

// Create inserts a new customer. Phone must be unique.
func (r *CustomerRepository) Create(ctx context.Context, c *models.Customer) (*models.Customer, error) {
	if c == nil {
		return nil, errors.New("customer is nil")
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var id int64
	err := r.db.QueryRowContext(ctx, r.db.Q(`INSERT INTO customers (name, phone, address, lat, lng) VALUES (?,?,?,?,?) RETURNING id`),
		c.Name, c.Phone, c.Address, nullFloat(c.Lat), nullFloat(c.Lng)).Scan(&id)
	if err != nil {
		return nil, err
	}
	return r.GetByID(ctx, id)
}

func (r *CustomerRepository) GetByID(ctx context.Context, id int64) (*models.Customer, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	c, err := scanCustomer(r.db.QueryRowContext(ctx, r.db.Q(`SELECT `+customerColumns+` FROM customers WHERE id = ?`), id))
	if isNoRows(err) {
		return nil, nil
	}
	return c, err
}

func (r *CustomerRepository) GetByPhone(ctx context.Context, phone string) (*models.Customer, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	c, err := scanCustomer(r.db.QueryRowContext(ctx, r.db.Q(`SELECT `+customerColumns+` FROM customers WHERE phone = ?`), phone))
	if isNoRows(err) {
		return nil, nil
	}
	return c, err
}

// UpdateAddress replaces the saved address and its coordinates (nil clears them).
func (r *CustomerRepository) UpdateAddress(ctx context.Context, id int64, name, address string, lat, lng *float64) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	_, err := r.db.ExecContext(ctx, r.db.Q(`UPDATE customers SET name = ?, address = ?, lat = ?, lng = ? WHERE id = ?`),
		name, address, nullFloat(lat), nullFloat(lng), id)
	return err
}

func (r *CustomerRepository) List(ctx context.Context, limit, offset int) ([]models.Customer, error) {
	if limit <= 0 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, r.db.Q(`SELECT `+customerColumns+` FROM customers ORDER BY id LIMIT ? OFFSET ?`), limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []models.Customer
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// AdminRepository stores dashboard operators.
type AdminRepository struct {
	db *db.DB
}

func NewAdminRepository(d *db.DB) *AdminRepository {
	return &AdminRepository{db: d}
}

// Create inserts an admin with an already-hashed password.
func (r *AdminRepository) Create(ctx context.Context, username, passwordHash string) (*models.AdminUser, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var id int64
	err := r.db.QueryRowContext(ctx, r.db.Q(`INSERT INTO admin_users (username, password_hash) VALUES (?,?) RETURNING id`),
		username, passwordHash).Scan(&id)
	if err != nil {
		return nil, err
	}
	return &models.AdminUser{ID: id, Username: username, PasswordHash: passwordHash, CreatedAt: time.Now()}, nil
}

func (r *AdminRepository) GetByUsername(ctx context.Context, username string) (*models.AdminUser, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var a models.AdminUser
	var created any
	err := r.db.QueryRowContext(ctx, r.db.Q(`SELECT id, username, password_hash, created_at FROM admin_users WHERE username = ?`), username).
		Scan(&a.ID, &a.Username, &a.PasswordHash, &created)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, err
	}
	a.CreatedAt = db.ParseTime(created)
	return &a, nil
}
