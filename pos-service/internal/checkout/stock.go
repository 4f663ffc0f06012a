package checkout

import (
	"context"
	"errors"
	"fmt"

	"github.com/fjod/go_pos/pos-service/internal/catalog"
	"github.com/fjod/go_pos/pos-service/internal/domain"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// validateStock re-reads every line's product and fails with the first line
// whose quantity now exceeds stock.
func (e *Engine) validateStock(ctx context.Context, c *domain.Cart) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.ValidationConcurrency)

	for _, line := range c.Lines {
		line := line
		g.Go(func() error {
			p, err := e.stock.Get(gctx, line.ProductID)
			if errors.Is(err, catalog.ErrProductNotFound) {
				return &StockChangedError{Line: line, Available: 0}
			}
			if err != nil {
				return fmt.Errorf("validate stock for %s: %w", line.Barcode, err)
			}
			if p.StockQuantity < line.Quantity {
				return &StockChangedError{Line: line, Available: p.StockQuantity}
			}
			return nil
		})
	}
	return g.Wait()
}

// reserve takes every line's quantity out of stock. If any line cannot be
// taken, the lines already taken are put back.
func (e *Engine) reserve(ctx context.Context, c *domain.Cart) ([]domain.CartLine, error) {
	reserved := make([]domain.CartLine, 0, len(c.Lines))
	for _, line := range c.Lines {
		err := e.stock.Decrement(ctx, line.ProductID, line.Quantity)
		if err == nil {
			reserved = append(reserved, line)
			continue
		}

		e.release(ctx, reserved, e.log)
		if errors.Is(err, catalog.ErrInsufficientStock) || errors.Is(err, catalog.ErrProductNotFound) {
			available := 0
			if p, getErr := e.stock.Get(ctx, line.ProductID); getErr == nil {
				available = p.StockQuantity
			}
			return nil, &StockChangedError{Line: line, Available: available}
		}
		return nil, fmt.Errorf("reserve stock for %s: %w", line.Barcode, err)
	}
	return reserved, nil
}

func (e *Engine) release(ctx context.Context, lines []domain.CartLine, log *zap.Logger) {
	for _, line := range lines {
		if err := e.stock.Restock(ctx, line.ProductID, line.Quantity); err != nil {
			log.Error("failed to return reserved stock",
				zap.String("product_id", line.ProductID),
				zap.Int("quantity", line.Quantity),
				zap.Error(err))
		}
	}
}
