// internal/domain/replenishment/settlement.go
package replenishment

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/your-org/medsupply-backend/internal/config"
	"github.com/your-org/medsupply-backend/internal/domain/client"
	"github.com/your-org/medsupply-backend/internal/domain/order"
	"github.com/your-org/medsupply-backend/internal/domain/payment"
)

// Settler attempts exactly one off-session charge per assembled auto order.
// A missing stored instrument or a declined charge fails the order without
// retry; the next scheduler run or a manual trigger is the retry path.
type Settler struct {
	config   *config.Config
	logger   *logrus.Logger
	gateway  payment.Gateway
	orders   *order.Service
	notifier Notifier
}

// NewSettler creates a settlement coordinator
func NewSettler(cfg *config.Config, logger *logrus.Logger, gateway payment.Gateway, orderService *order.Service, notifier Notifier) *Settler {
	return &Settler{
		config:   cfg,
		logger:   logger,
		gateway:  gateway,
		orders:   orderService,
		notifier: notifier,
	}
}

// SettleOrder charges the client's stored payment method for the order and
// records the outcome. Supplier stock is decremented only on the paid path.
// Every outcome sends a client notification.
func (s *Settler) SettleOrder(ctx context.Context, c *client.Client, ord *order.Order) (*order.Order, error) {
	if !c.HasStoredPaymentProfile() {
		return s.failOrder(ctx, c, ord, "no stored payment method on file")
	}

	// Gateway calls block; bound them so a hung charge becomes a failure
	// rather than a stuck scheduler run.
	chargeCtx, cancel := context.WithTimeout(ctx, s.config.Replenishment.SettlementTimeout)
	defer cancel()

	methodID, err := s.gateway.DefaultPaymentMethod(chargeCtx, c.PaymentCustomerID)
	if err != nil {
		if errors.Is(err, payment.ErrNoPaymentMethod) {
			return s.failOrder(ctx, c, ord, "no stored payment method on file")
		}
		return s.failOrder(ctx, c, ord, fmt.Sprintf("payment method lookup failed: %v", err))
	}

	result, err := s.gateway.CreateStoredCharge(chargeCtx, &payment.StoredChargeRequest{
		CustomerRef:     c.PaymentCustomerID,
		PaymentMethodID: methodID,
		Amount:          ord.TotalAmount,
		Currency:        ord.Currency,
		Description:     fmt.Sprintf("Order %s", ord.OrderNumber),
		IdempotencyKey:  uuid.New().String(),
	})
	if err != nil {
		// Timeouts are failures, never partial success.
		return s.failOrder(ctx, c, ord, fmt.Sprintf("charge failed: %v", err))
	}

	paid, err := s.orders.MarkPaid(ord.ID, result.Reference)
	if err != nil {
		return nil, fmt.Errorf("charge %s succeeded but order %s could not be confirmed: %w",
			result.Reference, ord.OrderNumber, err)
	}

	s.logger.WithFields(logrus.Fields{
		"client_id":    c.ID,
		"order_number": paid.OrderNumber,
		"amount":       paid.TotalAmount,
		"reference":    result.Reference,
	}).Info("order settled")

	if err := s.notifier.NotifyOrderSettled(ctx, c, paid); err != nil {
		s.logger.WithFields(logrus.Fields{
			"order_number": paid.OrderNumber,
		}).Warn("settlement notification failed: " + err.Error())
	}

	return paid, nil
}

// failOrder records the failed settlement and notifies the client
func (s *Settler) failOrder(ctx context.Context, c *client.Client, ord *order.Order, reason string) (*order.Order, error) {
	failed, err := s.orders.MarkPaymentFailed(ord.ID, reason)
	if err != nil {
		return nil, fmt.Errorf("failed to record settlement failure for order %s: %w", ord.OrderNumber, err)
	}

	s.logger.WithFields(logrus.Fields{
		"client_id":    c.ID,
		"order_number": failed.OrderNumber,
		"reason":       reason,
	}).Info("order settlement failed")

	if err := s.notifier.NotifyPaymentFailed(ctx, c, failed, reason); err != nil {
		s.logger.WithFields(logrus.Fields{
			"order_number": failed.OrderNumber,
		}).Warn("payment failure notification failed: " + err.Error())
	}

	return failed, nil
}
