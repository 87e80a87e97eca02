package service

import (
	"context"
	"fmt"
	"strings"

	"groceryDelivery/internal/apperrors"
	"groceryDelivery/internal/auth"
	"groceryDelivery/internal/events"
	"groceryDelivery/models"
	"groceryDelivery/repository"
)

// AgentService manages delivery agent accounts and their availability.
type AgentService struct {
	Agents repository.AgentRepositoryI
	Bus    *events.Bus
}

// RegisterAgentInput is what an admin supplies to create an agent account.
type RegisterAgentInput struct {
	Name     string `json:"name"`
	Phone    string `json:"phone"`
	Vehicle  string `json:"vehicle"`
	Password string `json:"password"`
}

func (s *AgentService) Register(ctx context.Context, in RegisterAgentInput) (*models.DeliveryAgent, error) {
	fields := map[string]string{}
	if strings.TrimSpace(in.Name) == "" {
		fields["name"] = "required"
	}
	if len(in.Password) < 6 {
		fields["password"] = "at least 6 characters"
	}
	phone, err := normalizePhone(in.Phone)
	if err != nil {
		fields["phone"] = "invalid"
	}
	if len(fields) > 0 {
		return nil, &apperrors.Validation{Message: "invalid agent", Fields: fields}
	}

	existing, err := s.Agents.GetByPhone(ctx, phone)
	if err != nil {
		return nil, fmt.Errorf("get agent: %w", err)
	}
	if existing != nil {
		return nil, &apperrors.Conflict{Message: "phone already registered"}
	}
	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}
	a, err := s.Agents.Create(ctx, &models.DeliveryAgent{
		Name:         strings.TrimSpace(in.Name),
		Phone:        phone,
		Vehicle:      strings.TrimSpace(in.Vehicle),
		Status:       models.AgentStatusOffline,
		PasswordHash: hash,
	})
	if err != nil {
		return nil, fmt.Errorf("create agent: %w", err)
	}
	s.publish(AgentChange{AgentID: a.ID, Status: a.Status})
	return a, nil
}

func (s *AgentService) List(ctx context.Context, onlyAvailable bool) ([]models.DeliveryAgent, error) {
	out, err := s.Agents.List(ctx, onlyAvailable)
	if err != nil {
		return nil, fmt.Errorf("list agents: %w", err)
	}
	if out == nil {
		out = []models.DeliveryAgent{}
	}
	return out, nil
}

// SetAvailability lets an agent go online or offline. A busy agent stays busy
// until the current delivery finishes.
func (s *AgentService) SetAvailability(ctx context.Context, agentID int64, status models.AgentStatus) (*models.DeliveryAgent, error) {
	if status != models.AgentStatusAvailable && status != models.AgentStatusOffline {
		return nil, &apperrors.Validation{Message: "status must be available or offline"}
	}
	a, err := s.Agents.GetByID(ctx, agentID)
	if err != nil {
		return nil, fmt.Errorf("get agent: %w", err)
	}
	if a == nil {
		return nil, apperrors.NewNotFound("delivery agent", agentID)
	}
	if a.Status == models.AgentStatusBusy {
		return nil, &apperrors.Conflict{Message: "finish the current delivery first"}
	}
	if err := s.Agents.UpdateAvailability(ctx, agentID, status); err != nil {
		return nil, fmt.Errorf("update availability: %w", err)
	}
	a.Status = status
	s.publish(AgentChange{AgentID: agentID, Status: status})
	return a, nil
}

func (s *AgentService) publish(c AgentChange) {
	if s.Bus != nil {
		s.Bus.Publish(events.DeliveryAgents, c)
	}
}
