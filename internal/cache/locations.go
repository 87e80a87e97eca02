package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"groceryDelivery/models"
)

// LocationCache keeps the latest fix per agent and per order on top of a Store.
type LocationCache struct {
	store Store
	ttl   time.Duration
}

// NewLocationCache returns a cache whose entries expire after ttl (zero keeps them).
func NewLocationCache(store Store, ttl time.Duration) *LocationCache {
	return &LocationCache{store: store, ttl: ttl}
}

func agentKey(agentID int64) string { return fmt.Sprintf("agent:%d", agentID) }
func orderKey(orderID int64) string { return fmt.Sprintf("tracking:%d", orderID) }

func (c *LocationCache) SetAgentFix(ctx context.Context, agentID int64, fix models.LocationFix) error {
	return c.put(ctx, agentKey(agentID), fix)
}

func (c *LocationCache) SetOrderFix(ctx context.Context, orderID int64, fix models.LocationFix) error {
	return c.put(ctx, orderKey(orderID), fix)
}

// AgentFix returns the last fix for the agent, or nil when none is cached.
func (c *LocationCache) AgentFix(ctx context.Context, agentID int64) (*models.LocationFix, error) {
	return c.get(ctx, agentKey(agentID))
}

// OrderFix returns the last agent fix recorded against the order, or nil when none is cached.
func (c *LocationCache) OrderFix(ctx context.Context, orderID int64) (*models.LocationFix, error) {
	return c.get(ctx, orderKey(orderID))
}

func (c *LocationCache) ClearOrder(ctx context.Context, orderID int64) error {
	return c.store.Delete(ctx, orderKey(orderID))
}

func (c *LocationCache) put(ctx context.Context, key string, fix models.LocationFix) error {
	data, err := json.Marshal(fix)
	if err != nil {
		return err
	}
	return c.store.Set(ctx, key, data, c.ttl)
}

// get treats a malformed entry as absent.
func (c *LocationCache) get(ctx context.Context, key string) (*models.LocationFix, error) {
	data, err := c.store.Get(ctx, key)
	if errors.Is(err, ErrMiss) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var fix models.LocationFix
	if err := json.Unmarshal(data, &fix); err != nil {
		return nil, nil
	}
	return &fix, nil
}
