package ledger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/mamadbah2/baleledger/internal/domain/models"
	"github.com/mamadbah2/baleledger/internal/repository/docstore"
	"github.com/mamadbah2/baleledger/internal/repository/memory"
	"github.com/mamadbah2/baleledger/internal/service/notifier"
)

var errUnavailable = errors.New("store unavailable")

type harness struct {
	t      *testing.T
	store  *memory.Store
	events *notifier.Notifier
	sub    *notifier.Subscription
	svc    *Service
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	store := memory.New()
	events := notifier.New(zaptest.NewLogger(t))
	sub := events.Subscribe()
	svc := NewService(store, events, Config{SweepConcurrency: 4}, zaptest.NewLogger(t).Named("svc.ledger"))

	t.Cleanup(func() {
		svc.Wait()
		sub.Close()
		events.Close()
	})

	return &harness{t: t, store: store, events: events, sub: sub, svc: svc}
}

func (h *harness) await(requestID string) []notifier.Event {
	h.t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	events, err := h.sub.Await(ctx, requestID)
	require.NoError(h.t, err)
	return events
}

func (h *harness) create(in models.SaleInput) string {
	h.t.Helper()
	events := h.await(h.svc.CreateRecord(context.Background(), in))
	require.Len(h.t, events, 1)
	require.False(h.t, events[0].Error, "create failed: %v", events[0].Err)
	return events[0].Data.(models.SaleCreated).DocID
}

func (h *harness) remove(in models.DeleteInput) notifier.Event {
	h.t.Helper()
	events := h.await(h.svc.DeleteRecord(context.Background(), in))
	require.Len(h.t, events, 1)
	return events[0]
}

func (h *harness) writeStock(amount, weight int64) {
	h.t.Helper()
	events := h.await(h.svc.WriteStock(context.Background(), models.StockAggregate{BaleAmount: amount, BaleWeight: weight}))
	require.Len(h.t, events, 1)
	require.False(h.t, events[0].Error)
}

func (h *harness) get(ref docstore.DocRef) (docstore.Document, bool) {
	h.t.Helper()
	doc, err := h.store.Get(context.Background(), ref)
	if errors.Is(err, docstore.ErrNotFound) {
		return docstore.Document{}, false
	}
	require.NoError(h.t, err)
	return doc, true
}

func (h *harness) mustGet(ref docstore.DocRef) docstore.Document {
	h.t.Helper()
	doc, ok := h.get(ref)
	require.True(h.t, ok, "%s missing", ref.Path())
	return doc
}

func sale(date, name string, bales, weight, amount, received int64) models.SaleInput {
	return models.SaleInput{
		Date:           date,
		Name:           name,
		Phone:          "620000000",
		BaleSold:       bales,
		WeightSold:     weight,
		Amount:         amount,
		ReceivedAmount: received,
		Rate:           12.5,
	}
}

func deletion(id string, in models.SaleInput) models.DeleteInput {
	return models.DeleteInput{
		DocID:          id,
		Date:           in.Date,
		Name:           in.Name,
		BaleSold:       in.BaleSold,
		WeightSold:     in.WeightSold,
		Amount:         in.Amount,
		ReceivedAmount: in.ReceivedAmount,
	}
}
