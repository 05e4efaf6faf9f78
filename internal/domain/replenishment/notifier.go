// internal/domain/replenishment/notifier.go
package replenishment

import (
	"context"
	"time"

	"github.com/your-org/medsupply-backend/internal/config"
	"github.com/your-org/medsupply-backend/internal/domain/client"
	"github.com/your-org/medsupply-backend/internal/domain/order"
	"github.com/your-org/medsupply-backend/internal/pkg/email"
)

// Notifier delivers terminal-outcome notifications to clients. Every paid,
// failed, rejected or expired order results in exactly one call here.
type Notifier interface {
	NotifyOrderSettled(ctx context.Context, c *client.Client, ord *order.Order) error
	NotifyPaymentFailed(ctx context.Context, c *client.Client, ord *order.Order, reason string) error
	NotifyPolicyRejection(ctx context.Context, c *client.Client, reason, message string) error
	NotifyOrderExpired(ctx context.Context, c *client.Client, ord *order.Order) error
}

// EmailNotifier sends notifications through the email service
type EmailNotifier struct {
	config *config.Config
	emails *email.EmailService
}

// NewEmailNotifier creates an email-backed notifier
func NewEmailNotifier(cfg *config.Config, emails *email.EmailService) *EmailNotifier {
	return &EmailNotifier{
		config: cfg,
		emails: emails,
	}
}

// NotifyOrderSettled sends the order confirmation with line-level adjustment
// notes and the charged total.
func (n *EmailNotifier) NotifyOrderSettled(ctx context.Context, c *client.Client, ord *order.Order) error {
	lines := make([]email.OrderLine, 0, len(ord.Items))
	for _, item := range ord.Items {
		lines = append(lines, email.OrderLine{
			Name:           item.Name,
			SKU:            item.SKU,
			Quantity:       item.Quantity,
			UnitPrice:      float64(item.UnitPrice) / 100,
			Total:          float64(item.TotalPrice) / 100,
			AdjustmentNote: item.AdjustmentNote,
		})
	}

	return n.emails.SendOrderConfirmationEmail(ctx, email.OrderConfirmationData{
		EmailTemplateData: email.EmailTemplateData{
			ClientName:  c.Name,
			ClientEmail: c.Email,
		},
		OrderNumber: ord.OrderNumber,
		OrderDate:   ord.CreatedAt.In(n.config.Location()).Format("Jan 2, 2006"),
		OrderTotal:  ord.GetFormattedTotal(),
		AutoOrder:   ord.Mode == order.OrderModeAuto,
		Lines:       lines,
	})
}

// NotifyPaymentFailed sends the settlement failure notice
func (n *EmailNotifier) NotifyPaymentFailed(ctx context.Context, c *client.Client, ord *order.Order, reason string) error {
	return n.emails.SendPaymentFailedEmail(ctx, email.PaymentNotificationData{
		EmailTemplateData: email.EmailTemplateData{
			ClientName:  c.Name,
			ClientEmail: c.Email,
		},
		OrderNumber: ord.OrderNumber,
		Amount:      ord.GetFormattedTotal(),
		Reason:      reason,
		Date:        time.Now().In(n.config.Location()).Format("Jan 2, 2006 15:04"),
	})
}

// NotifyPolicyRejection sends the auto-order rejection notice
func (n *EmailNotifier) NotifyPolicyRejection(ctx context.Context, c *client.Client, reason, message string) error {
	return n.emails.SendPolicyRejectionEmail(ctx, email.PolicyRejectionData{
		EmailTemplateData: email.EmailTemplateData{
			ClientName:  c.Name,
			ClientEmail: c.Email,
		},
		Reason:  reason,
		Message: message,
		Date:    time.Now().In(n.config.Location()).Format("Jan 2, 2006"),
	})
}

// NotifyOrderExpired sends the released-order notice
func (n *EmailNotifier) NotifyOrderExpired(ctx context.Context, c *client.Client, ord *order.Order) error {
	return n.emails.SendOrderExpiredEmail(ctx, email.OrderExpiredData{
		EmailTemplateData: email.EmailTemplateData{
			ClientName:  c.Name,
			ClientEmail: c.Email,
		},
		OrderNumber: ord.OrderNumber,
		Amount:      ord.GetFormattedTotal(),
		Date:        time.Now().In(n.config.Location()).Format("Jan 2, 2006 15:04"),
	})
}
