package ledger

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/mamadbah2/baleledger/internal/domain/models"
	"github.com/mamadbah2/baleledger/internal/repository/docstore"
	"github.com/mamadbah2/baleledger/internal/service/notifier"
)

// ReadStock reports the inventory singleton. A store that has never held
// stock reads as zero bales.
func (s *Service) ReadStock(ctx context.Context) string {
	return s.start(ctx, func(ctx context.Context, requestID string) {
		ev := notifier.Event{RequestID: requestID, Name: models.EventStock, Terminal: true}

		doc, err := s.store.Get(ctx, stockRef())
		switch {
		case errors.Is(err, docstore.ErrNotFound):
			ev.Data = models.StockAggregate{}
		case err != nil:
			s.logger.Warn("read stock failed", zap.Error(err))
			ev.Error, ev.Err = true, err
		default:
			ev.Data = models.StockAggregate{
				BaleAmount: doc.Int(models.FieldBaleAmount),
				BaleWeight: doc.Int(models.FieldBaleWeight),
			}
		}

		s.emit(ev)
	})
}

// WriteStock overwrites the inventory singleton.
func (s *Service) WriteStock(ctx context.Context, stock models.StockAggregate) string {
	return s.start(ctx, func(ctx context.Context, requestID string) {
		ev := notifier.Event{RequestID: requestID, Name: models.EventStockWritten, Terminal: true, Data: stock}

		batch := docstore.NewBatch().Set(stockRef(), map[string]interface{}{
			models.FieldBaleAmount: stock.BaleAmount,
			models.FieldBaleWeight: stock.BaleWeight,
		})
		if err := s.store.Commit(ctx, batch); err != nil {
			s.logger.Warn("write stock failed", zap.Error(err))
			ev.Error, ev.Err = true, err
		}

		s.emit(ev)
	})
}
