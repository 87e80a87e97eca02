// Package notify builds WhatsApp click-to-chat messages for order updates and
// keeps a record of every message handed out.
package notify

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"groceryDelivery/internal/events"
	"groceryDelivery/internal/orderstatus"
	"groceryDelivery/models"
	"groceryDelivery/repository"
)

// DefaultCountryCode is prefixed to bare 10-digit numbers.
const DefaultCountryCode = "91"

// NormalizePhone strips everything but digits and adds the default country code to 10-digit numbers.
func NormalizePhone(phone string) string {
	var b strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := strings.TrimLeft(b.String(), "0")
	if len(digits) == 10 {
		digits = DefaultCountryCode + digits
	}
	return digits
}

// WhatsAppLink returns https://wa.me/<digits>?text=<message>.
func WhatsAppLink(phone, message string) string {
	text := strings.ReplaceAll(url.QueryEscape(message), "+", "%20")
	return "https://wa.me/" + NormalizePhone(phone) + "?text=" + text
}

// StatusMessage is the customer-facing text for an order entering status.
func StatusMessage(o *models.Order) string {
	info := orderstatus.GetStatusInfo(o.Status)
	msg := fmt.Sprintf("Your order #%d is now: %s.", o.ID, info.Label)
	switch o.Status {
	case models.OrderStatusPending:
		msg += fmt.Sprintf(" Total ₹%.2f, payable on delivery.", o.TotalAmount)
	case models.OrderStatusOutForDelivery:
		msg += " Track your delivery live in the app."
	case models.OrderStatusDelivered:
		msg += " Thank you for shopping with us!"
	case models.OrderStatusCancelled:
		msg += " If you were charged, the refund is on its way."
	}
	if info.EstimatedTime != nil {
		msg += fmt.Sprintf(" Next update in about %d minutes.", *info.EstimatedTime)
	}
	return msg
}

// Notifier persists a notification per status change and publishes it on the bus.
type Notifier struct {
	repo   repository.NotificationRepositoryI
	bus    *events.Bus
	logger *zap.Logger
}

func New(repo repository.NotificationRepositoryI, bus *events.Bus, logger *zap.Logger) *Notifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Notifier{repo: repo, bus: bus, logger: logger}
}

// OrderStatusChanged records the message for o. Failures are logged and returned;
// callers treat them as non-fatal.
func (n *Notifier) OrderStatusChanged(ctx context.Context, o *models.Order, phone string) (*models.Notification, error) {
	if o == nil || phone == "" {
		return nil, nil
	}
	msg := StatusMessage(o)
	rec, err := n.repo.Create(ctx, &models.Notification{
		OrderID: o.ID,
		Phone:   phone,
		Message: msg,
		Link:    WhatsAppLink(phone, msg),
	})
	if err != nil {
		n.logger.Warn("notify: store notification", zap.Int64("order_id", o.ID), zap.Error(err))
		return nil, err
	}
	if n.bus != nil {
		n.bus.Publish(events.Notifications, rec)
	}
	return rec, nil
}
