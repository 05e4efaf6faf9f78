// internal/domain/replenishment/assembler.go
package replenishment

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/your-org/medsupply-backend/internal/domain/inventory"
	"github.com/your-org/medsupply-backend/internal/domain/order"
	"github.com/your-org/medsupply-backend/internal/domain/product"
)

// Assembler turns a client's depleted ledger entries into a pending auto
// order, capping every line to live supplier stock.
type Assembler struct {
	logger    *logrus.Logger
	inventory *inventory.Service
	products  *product.Service
	orders    *order.Service
}

// NewAssembler creates an order assembler
func NewAssembler(logger *logrus.Logger, inventoryService *inventory.Service, productService *product.Service, orderService *order.Service) *Assembler {
	return &Assembler{
		logger:    logger,
		inventory: inventoryService,
		products:  productService,
		orders:    orderService,
	}
}

// AssembleOrder builds an auto order from the client's reorder candidates.
// productFilter, when non-empty, restricts assembly to those products.
// Returns (nil, nil) when no line survives; that is not an error.
func (a *Assembler) AssembleOrder(clientID uint, productFilter []uint) (*order.Order, error) {
	candidates, err := a.inventory.GetReorderCandidates(clientID)
	if err != nil {
		return nil, err
	}

	filter := make(map[uint]bool, len(productFilter))
	for _, id := range productFilter {
		filter[id] = true
	}

	var items []order.OrderItem
	for _, entry := range candidates {
		if len(filter) > 0 && !filter[entry.ProductID] {
			continue
		}

		p, err := a.products.GetProduct(entry.ProductID)
		if err != nil {
			if errors.Is(err, product.ErrNotFound) {
				a.logger.WithFields(logrus.Fields{
					"client_id":  clientID,
					"product_id": entry.ProductID,
				}).Warn("skipping reorder candidate: product no longer exists")
				continue
			}
			return nil, err
		}
		if !p.IsActive || p.StockQuantity <= 0 {
			a.logger.WithFields(logrus.Fields{
				"client_id":  clientID,
				"product_id": entry.ProductID,
				"sku":        p.SKU,
			}).Info("skipping reorder candidate: product unavailable")
			continue
		}

		quantity := entry.ReorderQty
		adjustmentNote := ""
		if quantity > p.StockQuantity {
			quantity = p.StockQuantity
			adjustmentNote = fmt.Sprintf("Quantity reduced from %d to %d due to supplier availability", entry.ReorderQty, quantity)
		}

		items = append(items, order.OrderItem{
			ProductID:      p.ID,
			SKU:            p.SKU,
			Name:           p.Name,
			Quantity:       quantity,
			UnitPrice:      p.Price,
			TotalPrice:     p.Price * int64(quantity),
			AdjustmentNote: adjustmentNote,
		})
	}

	if len(items) == 0 {
		return nil, nil
	}

	ord, err := a.orders.CreateOrder(clientID, order.OrderModeAuto, items, "Automatic replenishment order")
	if err != nil {
		return nil, err
	}

	a.logger.WithFields(logrus.Fields{
		"client_id":    clientID,
		"order_number": ord.OrderNumber,
		"lines":        len(items),
		"total_amount": ord.TotalAmount,
	}).Info("auto order assembled")

	return ord, nil
}
