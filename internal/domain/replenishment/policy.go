// internal/domain/replenishment/policy.go
package replenishment

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/your-org/medsupply-backend/internal/config"
	"github.com/your-org/medsupply-backend/internal/domain/client"
	"github.com/your-org/medsupply-backend/internal/domain/order"
)

// Result is the outcome of one auto-order evaluation for a client
type Result struct {
	// Order is set when an auto order was created, whether it settled or
	// failed payment.
	Order *order.Order
	// Rejection is set when policy blocked the order.
	Rejection *PolicyRejection
	// NothingToOrder is set when no ledger entry was eligible. Not a
	// rejection and nothing is recorded.
	NothingToOrder bool
}

// Engine applies the daily auto-order policy for one client and drives
// assembly and settlement when the order is allowed.
type Engine struct {
	config    *config.Config
	logger    *logrus.Logger
	clients   *client.Service
	orders    *order.Service
	assembler *Assembler
	settler   *Settler
	notifier  Notifier
}

// NewEngine creates a policy engine
func NewEngine(cfg *config.Config, logger *logrus.Logger, clientService *client.Service, orderService *order.Service, assembler *Assembler, settler *Settler, notifier Notifier) *Engine {
	return &Engine{
		config:    cfg,
		logger:    logger,
		clients:   clientService,
		orders:    orderService,
		assembler: assembler,
		settler:   settler,
		notifier:  notifier,
	}
}

// ProcessClient evaluates and, when allowed, places the client's auto order
// across all eligible ledger entries.
func (e *Engine) ProcessClient(ctx context.Context, clientID uint) (*Result, error) {
	return e.process(ctx, clientID, nil)
}

// ProcessClientProducts is the trigger-endpoint variant restricted to a
// product set.
func (e *Engine) ProcessClientProducts(ctx context.Context, clientID uint, productIDs []uint) (*Result, error) {
	return e.process(ctx, clientID, productIDs)
}

func (e *Engine) process(ctx context.Context, clientID uint, productIDs []uint) (*Result, error) {
	c, err := e.clients.GetActiveClient(clientID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	autoCount, err := e.orders.CountOrdersForDay(clientID, order.OrderModeAuto, now)
	if err != nil {
		return nil, err
	}
	manualCount, err := e.orders.CountOrdersForDay(clientID, order.OrderModeManual, now)
	if err != nil {
		return nil, err
	}

	limit := int64(e.config.Replenishment.DailyAutoOrderLimit)

	if autoCount >= limit {
		return e.reject(ctx, c, order.DeclineReasonQuotaExceeded,
			fmt.Sprintf("Daily automatic order limit of %d reached", limit))
	}

	// The final allowed auto order of the day must be re-armed by a manual
	// order, an anti-runaway-spend safeguard.
	if limit > 1 && autoCount == limit-1 && manualCount == 0 {
		return e.reject(ctx, c, order.DeclineReasonManualOrderRequired,
			"A manual order is required before the next automatic order today")
	}

	ord, err := e.assembler.AssembleOrder(clientID, productIDs)
	if err != nil {
		return nil, err
	}
	if ord == nil {
		return &Result{NothingToOrder: true}, nil
	}

	settled, err := e.settler.SettleOrder(ctx, c, ord)
	if err != nil {
		return nil, err
	}

	return &Result{Order: settled}, nil
}

// reject records the policy rejection once per reason per day and notifies
// the client on first occurrence.
func (e *Engine) reject(ctx context.Context, c *client.Client, reason, message string) (*Result, error) {
	_, created, err := e.orders.RecordPolicyRejection(c.ID, reason, message)
	if err != nil {
		return nil, err
	}

	e.logger.WithFields(logrus.Fields{
		"client_id": c.ID,
		"reason":    reason,
	}).Info("auto order rejected by policy")

	if created {
		if err := e.notifier.NotifyPolicyRejection(ctx, c, reason, message); err != nil {
			e.logger.WithFields(logrus.Fields{
				"client_id": c.ID,
				"reason":    reason,
			}).Warn("policy rejection notification failed: " + err.Error())
		}
	}

	return &Result{Rejection: &PolicyRejection{Reason: reason, Message: message}}, nil
}
