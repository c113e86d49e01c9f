package ledger

import (
	"context"

	"go.uber.org/zap"

	"github.com/mamadbah2/baleledger/internal/domain/keys"
	"github.com/mamadbah2/baleledger/internal/domain/models"
	"github.com/mamadbah2/baleledger/internal/repository/docstore"
	"github.com/mamadbah2/baleledger/internal/service/notifier"
)

// SearchCustomers reports the customers whose key starts with the normalized prefix.
func (s *Service) SearchCustomers(ctx context.Context, prefix string) string {
	return s.start(ctx, func(ctx context.Context, requestID string) {
		ev := notifier.Event{RequestID: requestID, Name: models.EventCustomers, Terminal: true}

		p := keys.Customer(prefix)
		docs, err := s.store.Query(ctx, docstore.Collection(customerCollection), docstore.Between(p, keys.PrefixEnd(p)))
		switch {
		case err != nil:
			s.logger.Warn("customer search failed", zap.String("prefix", p), zap.Error(err))
			ev.Error, ev.Err = true, err
		case len(docs) == 0:
			ev.Empty = true
		default:
			users := make([]models.Customer, 0, len(docs))
			for _, d := range docs {
				users = append(users, models.Customer{
					Name:  d.String(models.FieldName),
					Phone: d.String(models.FieldPhone),
				})
			}
			ev.Data = models.CustomerList{Users: users}
		}

		s.emit(ev)
	})
}

// MonthlyTotals sums the daily aggregates of a calendar month. A month without
// sales reports zero totals.
func (s *Service) MonthlyTotals(ctx context.Context, month, year int) string {
	return s.start(ctx, func(ctx context.Context, requestID string) {
		result := models.MonthlyTotals{Month: month, Year: year}
		ev := notifier.Event{RequestID: requestID, Name: models.EventMonthlyTotals, Terminal: true}

		first, last, err := keys.MonthBounds(month, year)
		if err != nil {
			ev.Error, ev.Err, ev.Data = true, err, result
			s.emit(ev)
			return
		}

		docs, err := s.store.Query(ctx, docstore.Collection(dailyCollection), docstore.Closed(first, last))
		if err != nil {
			s.logger.Warn("monthly totals query failed", zap.Int("month", month), zap.Int("year", year), zap.Error(err))
			ev.Error, ev.Err, ev.Data = true, err, result
			s.emit(ev)
			return
		}

		for _, d := range docs {
			result.Totals.Add(totalsOf(d))
		}

		ev.Data = result
		s.emit(ev)
	})
}
