package apperrors

import (
	"errors"
	"fmt"
	"testing"
)

func TestWrappedErrorsAreDetectable(t *testing.T) {
	err := fmt.Errorf("update order: %w", &InvalidStateTransition{From: "delivered", To: "pending"})
	var ist *InvalidStateTransition
	if !errors.As(err, &ist) {
		t.Fatalf("expected InvalidStateTransition in chain")
	}
	if ist.From != "delivered" || ist.To != "pending" {
		t.Fatalf("unexpected fields: %+v", ist)
	}
	if got := ist.Error(); got != "invalid state transition from delivered to pending" {
		t.Fatalf("message = %q", got)
	}
}

func TestDefaultMessages(t *testing.T) {
	if (&Unauthorized{}).Error() != "unauthorized" {
		t.Fatalf("unauthorized default message")
	}
	if (&Conflict{}).Error() != "conflict" {
		t.Fatalf("conflict default message")
	}
	if (&Validation{}).Error() != "validation failed" {
		t.Fatalf("validation default message")
	}
	if NewNotFound("order", 42).Error() != "order not found: 42" {
		t.Fatalf("not found message")
	}
}
