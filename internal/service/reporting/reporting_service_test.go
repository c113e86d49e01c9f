package reporting

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/mamadbah2/baleledger/internal/domain/models"
	"github.com/mamadbah2/baleledger/internal/repository/memory"
	"github.com/mamadbah2/baleledger/internal/service/ledger"
	"github.com/mamadbah2/baleledger/internal/service/notifier"
)

func setup(t *testing.T) (*Service, *ledger.Service, *memory.Store, *notifier.Notifier) {
	t.Helper()

	store := memory.New()
	events := notifier.New(zaptest.NewLogger(t))
	svc := ledger.NewService(store, events, ledger.Config{}, zaptest.NewLogger(t))
	t.Cleanup(func() {
		svc.Wait()
		events.Close()
	})

	return NewService(svc, events, zaptest.NewLogger(t)), svc, store, events
}

func record(t *testing.T, svc *ledger.Service, events *notifier.Notifier, in models.SaleInput) {
	t.Helper()
	sub := events.Subscribe()
	defer sub.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	got, err := sub.Await(ctx, svc.CreateRecord(ctx, in))
	require.NoError(t, err)
	require.False(t, got[0].Error)
}

func TestGenerateDailyReport(t *testing.T) {
	reports, svc, _, events := setup(t)

	record(t, svc, events, models.SaleInput{Date: "03-02-2024", Name: "Awa", BaleSold: 2, WeightSold: 80, Amount: 200, ReceivedAmount: 200})
	record(t, svc, events, models.SaleInput{Date: "03-02-2024", Name: "Moussa", BaleSold: 1, WeightSold: 40, Amount: 100, ReceivedAmount: 60})
	record(t, svc, events, models.SaleInput{Date: "01-02-2024", Name: "Moussa", BaleSold: 5, WeightSold: 200, Amount: 500, ReceivedAmount: 0})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	summary, err := reports.Summarize(ctx, time.Date(2024, time.February, 3, 20, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	assert.Equal(t, "03-02-2024", summary.Date)
	assert.Equal(t, 2, summary.Sales)
	assert.Equal(t, models.Totals{TotalBaleSold: 3, TotalWeightSold: 120, TotalAmount: 300, TotalReceivedAmount: 260}, summary.Day)
	assert.Equal(t, models.Totals{TotalBaleSold: 8, TotalWeightSold: 320, TotalAmount: 800, TotalReceivedAmount: 260}, summary.Month)
	assert.Equal(t, []string{"Moussa"}, summary.Debtors)

	report, err := reports.GenerateDailyReport(ctx, time.Date(2024, time.February, 3, 20, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Contains(t, report, "Bale sales report 03-02-2024")
	assert.Contains(t, report, "Today: 2 sales, 3 bales, 120 kg, amount 300, received 260.")
	assert.Contains(t, report, "outstanding 540")
	assert.Contains(t, report, "Unpaid today: Moussa.")
}

func TestGenerateDailyReportWithoutSales(t *testing.T) {
	reports, _, _, _ := setup(t)

	report, err := reports.GenerateDailyReport(context.Background(), time.Date(2024, time.March, 9, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Contains(t, report, "Today: no sales recorded.")
	assert.Contains(t, report, "Month to date: 0 bales")
	assert.NotContains(t, report, "Unpaid")
}

func TestGenerateDailyReportStoreFailure(t *testing.T) {
	reports, _, store, _ := setup(t)
	unavailable := errors.New("store unavailable")
	store.FailGet("daily_record/20240309", unavailable)

	_, err := reports.GenerateDailyReport(context.Background(), time.Date(2024, time.March, 9, 0, 0, 0, 0, time.UTC))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRequestFailed)
	assert.ErrorIs(t, err, unavailable)
}

func TestGenerateDailyReportCanceled(t *testing.T) {
	reports, _, _, _ := setup(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := reports.GenerateDailyReport(ctx, time.Now())
	assert.ErrorIs(t, err, context.Canceled)
}
