package reporting

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mamadbah2/baleledger/internal/domain/keys"
	"github.com/mamadbah2/baleledger/internal/domain/models"
	"github.com/mamadbah2/baleledger/internal/service/notifier"
)

// ErrRequestFailed wraps a ledger request that ended with an error event.
var ErrRequestFailed = errors.New("ledger request failed")

// Ledger is the subset of ledger operations a report needs.
type Ledger interface {
	FetchDailyRecords(ctx context.Context, date string) string
	MonthlyTotals(ctx context.Context, month, year int) string
}

// Subscriber hands out event subscriptions.
type Subscriber interface {
	Subscribe() *notifier.Subscription
}

// Service builds text summaries of the ledger for WhatsApp delivery.
type Service struct {
	ledger Ledger
	events Subscriber
	logger *zap.Logger
}

// NewService wires a new reporting service instance.
func NewService(ledger Ledger, events Subscriber, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{ledger: ledger, events: events, logger: logger}
}

// DailySummary is the data behind one daily report.
type DailySummary struct {
	Date    string
	Sales   int
	Day     models.Totals
	Month   models.Totals
	Debtors []string
}

// GenerateDailyReport summarizes the sales of day and the month to date.
func (s *Service) GenerateDailyReport(ctx context.Context, day time.Time) (string, error) {
	summary, err := s.Summarize(ctx, day)
	if err != nil {
		return "", err
	}
	return Format(summary), nil
}

// Summarize collects the daily and monthly figures of day.
func (s *Service) Summarize(ctx context.Context, day time.Time) (DailySummary, error) {
	summary := DailySummary{Date: keys.Display(day.Day(), int(day.Month()), day.Year())}

	// Subscribe before issuing so no event of ours can be missed.
	sub := s.events.Subscribe()
	defer sub.Close()

	daily, err := sub.Await(ctx, s.ledger.FetchDailyRecords(ctx, summary.Date))
	if err != nil {
		return summary, fmt.Errorf("await daily records: %w", err)
	}
	for _, ev := range daily {
		if err := failure(ev); err != nil {
			return summary, err
		}
		switch data := ev.Data.(type) {
		case models.DailyMetadata:
			summary.Day = data.Totals
		case models.EntryList:
			summary.Sales = len(data.Records)
			summary.Debtors = debtors(data.Records)
		}
	}

	monthly, err := sub.Await(ctx, s.ledger.MonthlyTotals(ctx, int(day.Month()), day.Year()))
	if err != nil {
		return summary, fmt.Errorf("await monthly totals: %w", err)
	}
	for _, ev := range monthly {
		if err := failure(ev); err != nil {
			return summary, err
		}
		if data, ok := ev.Data.(models.MonthlyTotals); ok {
			summary.Month = data.Totals
		}
	}

	s.logger.Debug("daily summary collected", zap.String("date", summary.Date), zap.Int("sales", summary.Sales))
	return summary, nil
}

// Format renders a summary as a WhatsApp message.
func Format(s DailySummary) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Bale sales report %s\n", s.Date)
	if s.Sales == 0 {
		b.WriteString("Today: no sales recorded.\n")
	} else {
		fmt.Fprintf(&b, "Today: %d sales, %d bales, %d kg, amount %d, received %d.\n",
			s.Sales, s.Day.TotalBaleSold, s.Day.TotalWeightSold, s.Day.TotalAmount, s.Day.TotalReceivedAmount)
	}
	fmt.Fprintf(&b, "Month to date: %d bales, %d kg, amount %d, received %d, outstanding %d.",
		s.Month.TotalBaleSold, s.Month.TotalWeightSold, s.Month.TotalAmount, s.Month.TotalReceivedAmount,
		s.Month.TotalAmount-s.Month.TotalReceivedAmount)
	if len(s.Debtors) > 0 {
		fmt.Fprintf(&b, "\nUnpaid today: %s.", strings.Join(s.Debtors, ", "))
	}

	return b.String()
}

func failure(ev notifier.Event) error {
	if !ev.Error {
		return nil
	}
	if ev.Err != nil {
		return fmt.Errorf("%w: %s: %w", ErrRequestFailed, ev.Name, ev.Err)
	}
	return fmt.Errorf("%w: %s", ErrRequestFailed, ev.Name)
}

// debtors lists, once each and in entry order, the customers who paid less
// than they owed on the day.
func debtors(entries []models.Entry) []string {
	seen := make(map[string]struct{})
	var names []string
	for _, e := range entries {
		if e.ReceivedAmount >= e.Amount {
			continue
		}
		if _, ok := seen[e.Name]; ok {
			continue
		}
		seen[e.Name] = struct{}{}
		names = append(names, e.Name)
	}
	return names
}
