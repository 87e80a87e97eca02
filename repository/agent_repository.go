package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"groceryDelivery/internal/db"
	"groceryDelivery/models"
)

const agentColumns = `id, name, phone, vehicle, status, password_hash, current_lat, current_lng, last_seen_at, created_at`

type AgentRepository struct {
	db *db.DB
}

func NewAgentRepository(d *db.DB) *AgentRepository {
	return &AgentRepository{db: d}
}

func scanAgent(s rowScanner) (*models.DeliveryAgent, error) {
	var a models.DeliveryAgent
	var status string
	var lat, lng sql.NullFloat64
	var lastSeen, created any
	if err := s.Scan(&a.ID, &a.Name, &a.Phone, &a.Vehicle, &status, &a.PasswordHash, &lat, &lng, &lastSeen, &created); err != nil {
		return nil, err
	}
	a.Status = models.AgentStatus(status)
	a.Lat, a.Lng = floatPtr(lat), floatPtr(lng)
	a.LastSeenAt = db.ParseTimePtr(lastSeen)
	a.CreatedAt = db.ParseTime(created)
	return &a, nil
}

// Create inserts a new delivery agent. Status defaults to 'offline' if empty.
func (r *AgentRepository) Create(ctx context.Context, a *models.DeliveryAgent) (*models.DeliveryAgent, error) {
	if a == nil {
		return nil, errors.New("agent is nil")
	}
	if a.Status == "" {
		a.Status = models.AgentStatusOffline
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var id int64
	err := r.db.QueryRowContext(ctx, r.db.Q(`INSERT INTO delivery_agents (name, phone, vehicle, status, password_hash) VALUES (?,?,?,?,?) RETURNING id`),
		a.Name, a.Phone, a.Vehicle, string(a.Status), a.PasswordHash).Scan(&id)
	if err != nil {
		return nil, err
	}
	return r.GetByID(ctx, id)
}

func (r *AgentRepository) GetByID(ctx context.Context, id int64) (*models.DeliveryAgent, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	a, err := scanAgent(r.db.QueryRowContext(ctx, r.db.Q(`SELECT `+agentColumns+` FROM delivery_agents WHERE id = ?`), id))
	if isNoRows(err) {
		return nil, nil
	}
	return a, err
}

func (r *AgentRepository) GetByPhone(ctx context.Context, phone string) (*models.DeliveryAgent, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	a, err := scanAgent(r.db.QueryRowContext(ctx, r.db.Q(`SELECT `+agentColumns+` FROM delivery_agents WHERE phone = ?`), phone))
	if isNoRows(err) {
		return nil, nil
	}
	return a, err
}

// UpdateLocation stores the agent's latest fix and marks it as seen at the given time.
func (r *AgentRepository) UpdateLocation(ctx context.Context, id int64, lat, lng float64, at time.Time) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	_, err := r.db.ExecContext(ctx, r.db.Q(`UPDATE delivery_agents SET current_lat = ?, current_lng = ?, last_seen_at = ? WHERE id = ?`),
		lat, lng, at.UTC(), id)
	return err
}

func (r *AgentRepository) UpdateAvailability(ctx context.Context, id int64, status models.AgentStatus) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	_, err := r.db.ExecContext(ctx, r.db.Q(`UPDATE delivery_agents SET status = ? WHERE id = ?`), string(status), id)
	return err
}

// ClaimAvailable flips an available agent to busy. It reports false when the agent
// was not available, so two admins cannot hand the same agent two orders.
func (r *AgentRepository) ClaimAvailable(ctx context.Context, id int64) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	res, err := r.db.ExecContext(ctx, r.db.Q(`UPDATE delivery_agents SET status = ? WHERE id = ? AND status = ?`),
		string(models.AgentStatusBusy), id, string(models.AgentStatusAvailable))
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

// List returns agents ordered by id; onlyAvailable restricts to status 'available'.
func (r *AgentRepository) List(ctx context.Context, onlyAvailable bool) ([]models.DeliveryAgent, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	query := `SELECT ` + agentColumns + ` FROM delivery_agents`
	var args []any
	if onlyAvailable {
		query += ` WHERE status = ?`
		args = append(args, string(models.AgentStatusAvailable))
	}
	query += ` ORDER BY id`
	rows, err := r.db.QueryContext(ctx, r.db.Q(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []models.DeliveryAgent
	for rows.Next() {
		a, err := scanAgent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// CountActive counts agents that are not offline.
func (r *AgentRepository) CountActive(ctx context.Context) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	var n int
	err := r.db.QueryRowContext(ctx, r.db.Q(`SELECT COUNT(*) FROM delivery_agents WHERE status <> ?`), string(models.AgentStatusOffline)).Scan(&n)
	return n, err
}
