// internal/domain/replenishment/release.go
package replenishment

import (
	"context"
	"time"

	"github.com/bsm/redislock"
	"github.com/sirupsen/logrus"
	"github.com/your-org/medsupply-backend/internal/config"
	"github.com/your-org/medsupply-backend/internal/domain/client"
	"github.com/your-org/medsupply-backend/internal/domain/order"
)

// ReleaseWorker sweeps unpaid pending orders past the payment window and
// releases them. Stock is never reserved before payment, so the sweep only
// closes abandoned checkouts; it mutates no stock.
type ReleaseWorker struct {
	config   *config.Config
	logger   *logrus.Logger
	orders   *order.Service
	clients  *client.Service
	notifier Notifier
	locker   *redislock.Client
}

// NewReleaseWorker creates the reservation release worker. locker may be
// nil; the per-order compare-and-swap already makes overlapping sweeps safe.
func NewReleaseWorker(cfg *config.Config, logger *logrus.Logger, orderService *order.Service, clientService *client.Service, notifier Notifier, locker *redislock.Client) *ReleaseWorker {
	return &ReleaseWorker{
		config:   cfg,
		logger:   logger,
		orders:   orderService,
		clients:  clientService,
		notifier: notifier,
		locker:   locker,
	}
}

// Run blocks until ctx is cancelled, sweeping on the configured interval
func (w *ReleaseWorker) Run(ctx context.Context) {
	w.logger.WithFields(logrus.Fields{
		"interval": w.config.Replenishment.SweepInterval.String(),
		"timeout":  w.config.Replenishment.ReleaseTimeout.String(),
	}).Info("release worker started")

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("release worker stopped")
			return
		case <-time.After(w.config.Replenishment.SweepInterval):
			if _, err := w.Sweep(ctx); err != nil {
				w.logger.Error("release sweep failed: " + err.Error())
			}
		}
	}
}

// Sweep releases every unpaid pending order older than the payment window
// and notifies the affected clients. Safe to re-invoke; each order is
// released at most once. Returns the number of orders released.
func (w *ReleaseWorker) Sweep(ctx context.Context) (int, error) {
	if w.locker != nil {
		lock, err := w.locker.Obtain(ctx, "lock:release-sweep", w.config.Replenishment.LockTTL, nil)
		if err == redislock.ErrNotObtained {
			w.logger.Debug("another instance is sweeping")
			return 0, nil
		} else if err != nil {
			w.logger.Warn("error obtaining sweep lock, proceeding: " + err.Error())
		} else {
			defer func() {
				_ = lock.Release(ctx)
			}()
		}
	}

	cutoff := time.Now().UTC().Add(-w.config.Replenishment.ReleaseTimeout)
	released, err := w.orders.ReleaseExpiredOrders(cutoff)
	if err != nil {
		return len(released), err
	}

	for i := range released {
		ord := &released[i]
		w.logger.WithFields(logrus.Fields{
			"order_number": ord.OrderNumber,
			"client_id":    ord.ClientID,
		}).Info("unpaid order released")

		c, err := w.clients.GetClient(ord.ClientID)
		if err != nil {
			w.logger.WithFields(logrus.Fields{
				"order_number": ord.OrderNumber,
				"client_id":    ord.ClientID,
			}).Warn("could not load client for release notification: " + err.Error())
			continue
		}
		if err := w.notifier.NotifyOrderExpired(ctx, c, ord); err != nil {
			w.logger.WithFields(logrus.Fields{
				"order_number": ord.OrderNumber,
			}).Warn("release notification failed: " + err.Error())
		}
	}

	return len(released), nil
}
