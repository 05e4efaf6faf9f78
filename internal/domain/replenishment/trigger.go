// internal/domain/replenishment/trigger.go
package replenishment

import (
	"context"

	"github.com/sirupsen/logrus"
	"github.com/your-org/medsupply-backend/internal/config"
)

// Trigger is the externally invoked auto-order entry point. It wraps the
// policy engine with the concurrency guard and the dedup window so duplicate
// or concurrent submissions for the same client and product set collapse to
// one.
type Trigger struct {
	config *config.Config
	logger *logrus.Logger
	guard  *Guard
	engine *Engine
}

// NewTrigger creates a guarded auto-order trigger
func NewTrigger(cfg *config.Config, logger *logrus.Logger, guard *Guard, engine *Engine) *Trigger {
	return &Trigger{
		config: cfg,
		logger: logger,
		guard:  guard,
		engine: engine,
	}
}

// TriggerAutoOrder runs one guarded auto-order attempt for the client over
// the given product set. Returns ErrLockHeld when the same key is being
// processed and ErrDuplicateRequest inside the dedup window; both are
// retryable rejections with no side effects.
func (t *Trigger) TriggerAutoOrder(ctx context.Context, clientID uint, productIDs []uint) (*Result, error) {
	key := GuardKey(clientID, productIDs)

	if err := t.guard.CheckDuplicate(ctx, key); err != nil {
		return nil, err
	}

	release, err := t.guard.Acquire(key)
	if err != nil {
		return nil, err
	}
	defer release()

	t.logger.WithFields(logrus.Fields{
		"client_id": clientID,
		"key":       key,
	}).Info("auto order trigger accepted")

	return t.engine.ProcessClientProducts(ctx, clientID, productIDs)
}
