package apperrors

import (
	"fmt"
)

// NotFound is returned when a resource is not found.
type NotFound struct {
	Resource string
	ID       string
}

func (e *NotFound) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// NewNotFound builds a NotFound for a numeric or string id.
func NewNotFound(resource string, id any) *NotFound {
	return &NotFound{Resource: resource, ID: fmt.Sprint(id)}
}

// Unauthorized is returned when authentication fails.
type Unauthorized struct {
	Message string
}

func (e *Unauthorized) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return "unauthorized"
}

// Forbidden is returned when the caller is authenticated but may not act on the resource.
type Forbidden struct {
	Message string
}

func (e *Forbidden) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return "forbidden"
}

// Conflict is returned when the request races another writer or violates uniqueness.
type Conflict struct {
	Message string
}

func (e *Conflict) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return "conflict"
}

// Validation is returned when input validation fails.
type Validation struct {
	Message string
	Fields  map[string]string
}

func (e *Validation) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return "validation failed"
}

// InvalidStateTransition is returned when an order status change is not in the transition graph.
type InvalidStateTransition struct {
	From string
	To   string
}

func (e *InvalidStateTransition) Error() string {
	return fmt.Sprintf("invalid state transition from %s to %s", e.From, e.To)
}
