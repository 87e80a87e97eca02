package repository

import (
	"context"
	"time"

	"groceryDelivery/models"
)

// CustomerRepositoryI defines operations on Customer entities.
type CustomerRepositoryI interface {
	Create(ctx context.Context, c *models.Customer) (*models.Customer, error)
	GetByID(ctx context.Context, id int64) (*models.Customer, error)
	GetByPhone(ctx context.Context, phone string) (*models.Customer, error)
	UpdateAddress(ctx context.Context, id int64, name, address string, lat, lng *float64) error
	List(ctx context.Context, limit, offset int) ([]models.Customer, error)
}

// AdminRepositoryI defines operations on AdminUser entities.
type AdminRepositoryI interface {
	Create(ctx context.Context, username, passwordHash string) (*models.AdminUser, error)
	GetByUsername(ctx context.Context, username string) (*models.AdminUser, error)
}

// AgentRepositoryI defines operations on DeliveryAgent entities.
type AgentRepositoryI interface {
	Create(ctx context.Context, a *models.DeliveryAgent) (*models.DeliveryAgent, error)
	GetByID(ctx context.Context, id int64) (*models.DeliveryAgent, error)
	GetByPhone(ctx context.Context, phone string) (*models.DeliveryAgent, error)
	UpdateLocation(ctx context.Context, id int64, lat, lng float64, at time.Time) error
	UpdateAvailability(ctx context.Context, id int64, status models.AgentStatus) error
	ClaimAvailable(ctx context.Context, id int64) (bool, error)
	List(ctx context.Context, onlyAvailable bool) ([]models.DeliveryAgent, error)
	CountActive(ctx context.Context) (int, error)
}

// ProductRepositoryI defines operations on Product entities.
type ProductRepositoryI interface {
	Create(ctx context.Context, p *models.Product) (*models.Product, error)
	GetByID(ctx context.Context, id int64) (*models.Product, error)
	Update(ctx context.Context, p *models.Product) (bool, error)
	Delete(ctx context.Context, id int64) (bool, error)
	List(ctx context.Context, f ProductFilter) ([]models.Product, error)
	Categories(ctx context.Context) ([]string, error)
	AdjustStock(ctx context.Context, id int64, delta int) (bool, error)
}

// OrderRepositoryI defines operations on Order entities.
type OrderRepositoryI interface {
	Create(ctx context.Context, o *models.Order) (*models.Order, error)
	GetByID(ctx context.Context, id int64) (*models.Order, error)
	ListByCustomer(ctx context.Context, customerID int64) ([]models.Order, error)
	ListByAgent(ctx context.Context, agentID int64) ([]models.Order, error)
	ListAdmin(ctx context.Context, p ListOrdersAdminParams) ([]models.Order, error)
	UpdateStatus(ctx context.Context, id int64, from, to models.OrderStatus) (bool, error)
	AssignAgent(ctx context.Context, id, agentID int64, status models.OrderStatus) (bool, error)
	ClearAgent(ctx context.Context, id, agentID int64) (bool, error)
	UpdateDeliveryLocation(ctx context.Context, id int64, lat, lng float64) error
	ListActiveDeliveries(ctx context.Context) ([]models.Order, error)
	CountByStatus(ctx context.Context) (map[models.OrderStatus]int, error)
	Revenue(ctx context.Context) (float64, error)
}

// TrackingRepositoryI defines operations on delivery_tracking rows.
type TrackingRepositoryI interface {
	Append(ctx context.Context, rec *models.TrackingRecord) (*models.TrackingRecord, error)
	Latest(ctx context.Context, orderID int64) (*models.TrackingRecord, error)
	History(ctx context.Context, orderID int64, limit int) ([]models.TrackingRecord, error)
}

// RejectionRepositoryI defines operations on OrderRejection entities.
type RejectionRepositoryI interface {
	Create(ctx context.Context, orderID, agentID int64, reason string) (*models.OrderRejection, error)
	ListByOrder(ctx context.Context, orderID int64) ([]models.OrderRejection, error)
	ListRecent(ctx context.Context, limit int) ([]models.OrderRejection, error)
	HasRejected(ctx context.Context, orderID, agentID int64) (bool, error)
}

// CartRepositoryI defines operations on saved carts.
type CartRepositoryI interface {
	Get(ctx context.Context, phone string) ([]models.CartItem, error)
	Save(ctx context.Context, phone string, items []models.CartItem) error
	Clear(ctx context.Context, phone string) error
}

// NotificationRepositoryI defines operations on Notification entities.
type NotificationRepositoryI interface {
	Create(ctx context.Context, n *models.Notification) (*models.Notification, error)
	List(ctx context.Context, limit int) ([]models.Notification, error)
	MarkSent(ctx context.Context, id string, at time.Time) (bool, error)
}

var (
	_ CustomerRepositoryI     = (*CustomerRepository)(nil)
	_ AdminRepositoryI        = (*AdminRepository)(nil)
	_ AgentRepositoryI        = (*AgentRepository)(nil)
	_ ProductRepositoryI      = (*ProductRepository)(nil)
	_ OrderRepositoryI        = (*OrderRepository)(nil)
	_ TrackingRepositoryI     = (*TrackingRepository)(nil)
	_ RejectionRepositoryI    = (*RejectionRepository)(nil)
	_ CartRepositoryI         = (*CartRepository)(nil)
	_ NotificationRepositoryI = (*NotificationRepository)(nil)
)
