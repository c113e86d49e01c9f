package ledger

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/mamadbah2/baleledger/internal/domain/keys"
	"github.com/mamadbah2/baleledger/internal/domain/models"
	"github.com/mamadbah2/baleledger/internal/repository/docstore"
	"github.com/mamadbah2/baleledger/internal/service/notifier"
)

// CreateRecord records a sale: both entry documents and the three aggregate
// increments are committed as one batch.
func (s *Service) CreateRecord(ctx context.Context, in models.SaleInput) string {
	return s.start(ctx, func(ctx context.Context, requestID string) {
		ev := notifier.Event{RequestID: requestID, Name: models.EventRecordCreated, Terminal: true}
		result := models.SaleCreated{SaleInput: in}

		id, err := s.commitCreate(ctx, in)
		if err != nil {
			s.logger.Warn("create record failed", zap.String("date", in.Date), zap.String("name", in.Name), zap.Error(err))
			ev.Error, ev.Err = true, err
		} else {
			result.DocID = id
			s.logger.Debug("record created", zap.String("doc_id", id), zap.String("date", in.Date))
		}

		ev.Data = result
		s.emit(ev)
	})
}

func (s *Service) commitCreate(ctx context.Context, in models.SaleInput) (string, error) {
	dateKey, err := keys.Date(in.Date)
	if err != nil {
		return "", err
	}

	id, err := s.newEntryID()
	if err != nil {
		return "", fmt.Errorf("generate entry id: %w", err)
	}

	if err := s.store.Commit(ctx, createBatch(in, dateKey, keys.Customer(in.Name), id)); err != nil {
		return "", fmt.Errorf("commit create batch: %w", err)
	}
	return id, nil
}

// createBatch builds the five writes of a sale.
func createBatch(in models.SaleInput, dateKey, customerKey, id string) *docstore.Batch {
	delta := in.Delta()
	entry := in.Entry(id).Fields()

	daily := dailyRef(dateKey)
	customer := customerRef(customerKey)

	customerFields := totalsIncrement(delta)
	customerFields[models.FieldDebt] = docstore.Increment(delta.Debt())
	customerFields[models.FieldName] = in.Name
	customerFields[models.FieldPhone] = in.Phone

	return docstore.NewBatch().
		Merge(daily, totalsIncrement(delta)).
		Set(entryRef(daily, id), entry).
		Merge(customer, customerFields).
		Set(entryRef(customer, id), entry).
		Merge(stockRef(), stockIncrement(delta.Stock()))
}

// DeleteRecord removes both entries of a sale and applies the inverse
// increments in one batch, then starts an orphan sweep without waiting for it.
// The numeric fields of in are trusted to match the recorded sale.
func (s *Service) DeleteRecord(ctx context.Context, in models.DeleteInput) string {
	return s.start(ctx, func(ctx context.Context, requestID string) {
		ev := notifier.Event{RequestID: requestID, Name: models.EventRecordDeleted, Terminal: true}

		err := s.commitDelete(ctx, in)
		if err != nil {
			s.logger.Warn("delete record failed", zap.String("doc_id", in.DocID), zap.Error(err))
			ev.Error, ev.Err = true, err
			ev.Data = models.SaleDeleted{DocID: in.DocID}
			s.emit(ev)
			return
		}

		reversed := in.Delta().Negate()
		ev.Data = models.SaleDeleted{
			DocID:      in.DocID,
			Delta:      reversed,
			StockDelta: reversed.Stock(),
		}
		s.emit(ev)

		s.startSweep()
	})
}

func (s *Service) commitDelete(ctx context.Context, in models.DeleteInput) error {
	dateKey, err := keys.Date(in.Date)
	if err != nil {
		return err
	}

	if err := s.store.Commit(ctx, deleteBatch(in, dateKey, keys.Customer(in.Name))); err != nil {
		return fmt.Errorf("commit delete batch: %w", err)
	}
	return nil
}

// deleteBatch builds the five writes that undo a sale.
func deleteBatch(in models.DeleteInput, dateKey, customerKey string) *docstore.Batch {
	reversed := in.Delta().Negate()

	daily := dailyRef(dateKey)
	customer := customerRef(customerKey)

	customerFields := totalsIncrement(reversed)
	customerFields[models.FieldDebt] = docstore.Increment(reversed.Debt())

	return docstore.NewBatch().
		Delete(entryRef(daily, in.DocID)).
		Merge(daily, totalsIncrement(reversed)).
		Delete(entryRef(customer, in.DocID)).
		Merge(customer, customerFields).
		Merge(stockRef(), stockIncrement(reversed.Stock()))
}

func totalsIncrement(d models.Delta) map[string]interface{} {
	return map[string]interface{}{
		models.FieldTotalBaleSold:       docstore.Increment(d.BaleSold),
		models.FieldTotalWeightSold:     docstore.Increment(d.WeightSold),
		models.FieldTotalAmount:         docstore.Increment(d.Amount),
		models.FieldTotalReceivedAmount: docstore.Increment(d.ReceivedAmount),
	}
}

func stockIncrement(d models.StockDelta) map[string]interface{} {
	return map[string]interface{}{
		models.FieldBaleAmount: docstore.Increment(d.BaleAmount),
		models.FieldBaleWeight: docstore.Increment(d.BaleWeight),
	}
}
