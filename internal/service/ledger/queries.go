package ledger

import (
	"context"
	"errors"
	"sort"

	"go.uber.org/zap"

	"github.com/mamadbah2/baleledger/internal/domain/keys"
	"github.com/mamadbah2/baleledger/internal/domain/models"
	"github.com/mamadbah2/baleledger/internal/repository/docstore"
	"github.com/mamadbah2/baleledger/internal/service/notifier"
)

// twoPhase describes an aggregate-then-entries fetch.
type twoPhase struct {
	metadataEvent string
	recordsEvent  string
	aggregate     docstore.DocRef
	metadata      func(doc docstore.Document) interface{}
	sortByDate    bool
}

// FetchDailyRecords reports the day's totals, then the day's entries in store order.
func (s *Service) FetchDailyRecords(ctx context.Context, date string) string {
	return s.start(ctx, func(ctx context.Context, requestID string) {
		dateKey, err := keys.Date(date)
		if err != nil {
			s.emit(notifier.Event{RequestID: requestID, Name: models.EventDailyMetadata, Terminal: true, Error: true, Err: err})
			return
		}

		s.fetch(ctx, requestID, twoPhase{
			metadataEvent: models.EventDailyMetadata,
			recordsEvent:  models.EventDailyRecords,
			aggregate:     dailyRef(dateKey),
			metadata: func(doc docstore.Document) interface{} {
				return models.DailyMetadata{Date: date, DailyAggregate: models.DailyAggregate{Totals: totalsOf(doc)}}
			},
		})
	})
}

// FetchCustomerRecords reports the customer's totals, then the customer's
// entries newest day first.
func (s *Service) FetchCustomerRecords(ctx context.Context, name string) string {
	return s.start(ctx, func(ctx context.Context, requestID string) {
		s.fetch(ctx, requestID, twoPhase{
			metadataEvent: models.EventCustomerMetadata,
			recordsEvent:  models.EventCustomerRecords,
			aggregate:     customerRef(keys.Customer(name)),
			metadata: func(doc docstore.Document) interface{} {
				return models.CustomerMetadata{CustomerAggregate: customerOf(doc)}
			},
			sortByDate: true,
		})
	})
}

// fetch emits the aggregate as soon as it is read and only then reads the
// entries. A failed or missing aggregate ends the request.
func (s *Service) fetch(ctx context.Context, requestID string, q twoPhase) {
	meta := notifier.Event{RequestID: requestID, Name: q.metadataEvent}

	doc, err := s.store.Get(ctx, q.aggregate)
	switch {
	case errors.Is(err, docstore.ErrNotFound):
		meta.Empty, meta.Terminal = true, true
		s.emit(meta)
		return
	case err != nil:
		s.logger.Warn("aggregate read failed", zap.String("path", q.aggregate.Path()), zap.Error(err))
		meta.Error, meta.Err, meta.Terminal = true, err, true
		s.emit(meta)
		return
	}

	meta.Data = q.metadata(doc)
	s.emit(meta)

	records := notifier.Event{RequestID: requestID, Name: q.recordsEvent, Terminal: true}

	docs, err := s.store.Query(ctx, q.aggregate.Sub(entryCollection), docstore.All)
	if err != nil {
		s.logger.Warn("entries read failed", zap.String("path", q.aggregate.Path()), zap.Error(err))
		records.Error, records.Err = true, err
		records.Data = models.EntryList{Message: err.Error()}
		s.emit(records)
		return
	}

	entries := make([]models.Entry, 0, len(docs))
	for _, d := range docs {
		entries = append(entries, entryOf(d))
	}

	if len(entries) == 0 {
		records.Empty = true
		s.emit(records)
		return
	}

	if q.sortByDate {
		sortNewestFirst(entries)
	}

	records.Data = models.EntryList{Records: entries}
	s.emit(records)
}

// sortNewestFirst orders entries by date key, descending. Entries whose date
// cannot be keyed compare by their raw text.
func sortNewestFirst(entries []models.Entry) {
	sortKey := make(map[string]string, len(entries))
	for _, e := range entries {
		k, err := keys.Date(e.Date)
		if err != nil {
			k = e.Date
		}
		sortKey[e.DocID] = k
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return sortKey[entries[i].DocID] > sortKey[entries[j].DocID]
	})
}

func totalsOf(doc docstore.Document) models.Totals {
	return models.Totals{
		TotalBaleSold:       doc.Int(models.FieldTotalBaleSold),
		TotalWeightSold:     doc.Int(models.FieldTotalWeightSold),
		TotalAmount:         doc.Int(models.FieldTotalAmount),
		TotalReceivedAmount: doc.Int(models.FieldTotalReceivedAmount),
	}
}

func customerOf(doc docstore.Document) models.CustomerAggregate {
	return models.CustomerAggregate{
		Name:   doc.String(models.FieldName),
		Phone:  doc.String(models.FieldPhone),
		Totals: totalsOf(doc),
		Debt:   doc.Int(models.FieldDebt),
	}
}

func entryOf(doc docstore.Document) models.Entry {
	return models.Entry{
		DocID:          doc.Key,
		Date:           doc.String("date"),
		BaleSold:       doc.Int("baleSold"),
		WeightSold:     doc.Int("weightSold"),
		Rate:           doc.Float("rate"),
		Amount:         doc.Int("amount"),
		ReceivedAmount: doc.Int("receivedAmount"),
		Name:           doc.String("name"),
	}
}
