// Package export mirrors successful sale creations and deletions into a
// spreadsheet as an append-only audit log.
package export

import (
	"context"

	"go.uber.org/zap"

	"github.com/mamadbah2/baleledger/internal/domain/models"
	"github.com/mamadbah2/baleledger/internal/repository/sheets"
	"github.com/mamadbah2/baleledger/internal/service/notifier"
)

const (
	actionCreated = "created"
	actionDeleted = "deleted"
)

// Exporter turns ledger events into sheet rows.
type Exporter struct {
	repo       sheets.Repository
	sheetRange string
	logger     *zap.Logger
}

// NewExporter builds an exporter writing into sheetRange.
func NewExporter(repo sheets.Repository, sheetRange string, logger *zap.Logger) *Exporter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Exporter{repo: repo, sheetRange: sheetRange, logger: logger}
}

// Run consumes events until ctx is done or the channel is closed. A row that
// cannot be written is logged and skipped.
func (e *Exporter) Run(ctx context.Context, events <-chan notifier.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			row := Row(ev)
			if row == nil {
				continue
			}
			if err := e.repo.WriteRow(ctx, e.sheetRange, row); err != nil {
				e.logger.Error("failed to export ledger event",
					zap.String("event", ev.Name),
					zap.String("request_id", ev.RequestID),
					zap.Error(err))
			}
		}
	}
}

// Row renders the audit row of ev, or nil when ev is not exported.
// Columns: action, docID, date, name, phone, baleSold, weightSold, rate, amount, receivedAmount.
// Deleted rows carry the inverse deltas and leave the descriptive columns blank.
func Row(ev notifier.Event) []interface{} {
	if ev.Error {
		return nil
	}

	switch data := ev.Data.(type) {
	case models.SaleCreated:
		if ev.Name != models.EventRecordCreated {
			return nil
		}
		return []interface{}{
			actionCreated, data.DocID, data.Date, data.Name, data.Phone,
			data.BaleSold, data.WeightSold, data.Rate, data.Amount, data.ReceivedAmount,
		}
	case models.SaleDeleted:
		if ev.Name != models.EventRecordDeleted {
			return nil
		}
		return []interface{}{
			actionDeleted, data.DocID, "", "", "",
			data.Delta.BaleSold, data.Delta.WeightSold, "", data.Delta.Amount, data.Delta.ReceivedAmount,
		}
	}
	return nil
}
