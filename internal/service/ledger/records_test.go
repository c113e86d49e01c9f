package ledger

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mamadbah2/baleledger/internal/domain/models"
	"github.com/mamadbah2/baleledger/internal/repository/docstore"
	"github.com/mamadbah2/baleledger/internal/service/notifier"
)

func TestCreateBatchHasFiveWrites(t *testing.T) {
	in := sale("05-03-2024", "John Doe", 3, 150, 9000, 4000)
	batch := createBatch(in, "20240305", "john_doe", "entry1")

	require.Equal(t, 5, batch.Len())

	wantPaths := []string{
		"daily_record/20240305",
		"daily_record/20240305/records/entry1",
		"users/john_doe",
		"users/john_doe/records/entry1",
		"stock/inventory",
	}
	wantKinds := []docstore.OpKind{docstore.OpMerge, docstore.OpSet, docstore.OpMerge, docstore.OpSet, docstore.OpMerge}
	for i, op := range batch.Ops {
		assert.Equal(t, wantPaths[i], op.Ref.Path())
		assert.Equal(t, wantKinds[i], op.Kind)
	}

	assert.Equal(t, batch.Ops[1].Fields, batch.Ops[3].Fields, "entry pair must carry identical fields")
	assert.Equal(t, docstore.Increment(5000), batch.Ops[2].Fields[models.FieldDebt])
	assert.Equal(t, docstore.Increment(-3), batch.Ops[4].Fields[models.FieldBaleAmount])
	assert.Equal(t, docstore.Increment(-150), batch.Ops[4].Fields[models.FieldBaleWeight])
}

func TestDeleteBatchReversesCreate(t *testing.T) {
	in := sale("05-03-2024", "John Doe", 3, 150, 9000, 4000)
	batch := deleteBatch(deletion("entry1", in), "20240305", "john_doe")

	require.Equal(t, 5, batch.Len())
	assert.Equal(t, docstore.OpDelete, batch.Ops[0].Kind)
	assert.Equal(t, "daily_record/20240305/records/entry1", batch.Ops[0].Ref.Path())
	assert.Equal(t, docstore.Increment(-9000), batch.Ops[1].Fields[models.FieldTotalAmount])
	assert.Equal(t, docstore.OpDelete, batch.Ops[2].Kind)
	assert.Equal(t, "users/john_doe/records/entry1", batch.Ops[2].Ref.Path())
	assert.Equal(t, docstore.Increment(-5000), batch.Ops[3].Fields[models.FieldDebt])
	assert.Equal(t, docstore.Increment(3), batch.Ops[4].Fields[models.FieldBaleAmount])
	assert.Equal(t, docstore.Increment(150), batch.Ops[4].Fields[models.FieldBaleWeight])
}

func TestCreateRecordUpdatesAllViews(t *testing.T) {
	h := newHarness(t)
	h.writeStock(100, 5000)

	in := sale("05-03-2024", "  John Doe ", 3, 150, 9000, 4000)
	id := h.create(in)
	assert.Len(t, id, entryIDLength)

	daily := h.mustGet(dailyRef("20240305"))
	assert.Equal(t, models.Totals{TotalBaleSold: 3, TotalWeightSold: 150, TotalAmount: 9000, TotalReceivedAmount: 4000}, totalsOf(daily))

	customer := customerOf(h.mustGet(customerRef("john_doe")))
	assert.Equal(t, int64(5000), customer.Debt)
	assert.Equal(t, int64(9000), customer.TotalAmount)
	assert.Equal(t, "  John Doe ", customer.Name)
	assert.Equal(t, "620000000", customer.Phone)

	stock := h.mustGet(stockRef())
	assert.Equal(t, int64(97), stock.Int(models.FieldBaleAmount))
	assert.Equal(t, int64(4850), stock.Int(models.FieldBaleWeight))

	dailyEntry := entryOf(h.mustGet(entryRef(dailyRef("20240305"), id)))
	customerEntry := entryOf(h.mustGet(entryRef(customerRef("john_doe"), id)))
	assert.Equal(t, dailyEntry, customerEntry)
	assert.Equal(t, in.Entry(id), dailyEntry)
}

func TestCreateRecordEchoesInput(t *testing.T) {
	h := newHarness(t)
	in := sale("5-3-2024", "Amy", 1, 10, 100, 100)

	events := h.await(h.svc.CreateRecord(context.Background(), in))
	require.Len(t, events, 1)

	ev := events[0]
	assert.Equal(t, models.EventRecordCreated, ev.Name)
	assert.True(t, ev.Terminal)
	created := ev.Data.(models.SaleCreated)
	assert.Equal(t, in, created.SaleInput)
	assert.NotEmpty(t, created.DocID)
}

func TestCreateRecordFailureLeavesNoPartialState(t *testing.T) {
	h := newHarness(t)
	h.writeStock(100, 5000)
	h.store.FailCommitAt(3, errUnavailable)

	events := h.await(h.svc.CreateRecord(context.Background(), sale("05-03-2024", "John", 3, 150, 9000, 4000)))
	require.Len(t, events, 1)
	assert.True(t, events[0].Error)
	assert.ErrorIs(t, events[0].Err, errUnavailable)
	assert.Empty(t, events[0].Data.(models.SaleCreated).DocID)

	_, ok := h.get(dailyRef("20240305"))
	assert.False(t, ok)
	_, ok = h.get(customerRef("john"))
	assert.False(t, ok)
	assert.Equal(t, int64(100), h.mustGet(stockRef()).Int(models.FieldBaleAmount))
}

func TestCreateRecordRejectsMalformedDate(t *testing.T) {
	h := newHarness(t)

	events := h.await(h.svc.CreateRecord(context.Background(), sale("2024/03/05", "John", 1, 1, 1, 1)))
	require.Len(t, events, 1)
	assert.True(t, events[0].Error)
	assert.Zero(t, h.store.Commits())
}

func TestCreateThenDeleteRestoresAggregates(t *testing.T) {
	h := newHarness(t)
	h.writeStock(100, 5000)

	h.create(sale("05-03-2024", "Amy", 2, 80, 4000, 4000))
	h.create(sale("06-03-2024", "John", 1, 40, 2000, 0))

	beforeDaily := totalsOf(h.mustGet(dailyRef("20240305")))
	beforeJohn := customerOf(h.mustGet(customerRef("john")))

	in := sale("05-03-2024", "John", 3, 150, 9000, 4000)
	id := h.create(in)

	ev := h.remove(deletion(id, in))
	require.False(t, ev.Error)
	h.svc.Wait()

	assert.Equal(t, beforeDaily, totalsOf(h.mustGet(dailyRef("20240305"))))
	assert.Equal(t, beforeJohn, customerOf(h.mustGet(customerRef("john"))))

	stock := h.mustGet(stockRef())
	assert.Equal(t, int64(97), stock.Int(models.FieldBaleAmount))
	assert.Equal(t, int64(4880), stock.Int(models.FieldBaleWeight))

	_, ok := h.get(entryRef(dailyRef("20240305"), id))
	assert.False(t, ok)
	_, ok = h.get(entryRef(customerRef("john"), id))
	assert.False(t, ok)
}

func TestDeleteRecordReportsNegatedDeltas(t *testing.T) {
	h := newHarness(t)
	in := sale("05-03-2024", "John", 3, 150, 9000, 4000)
	id := h.create(in)

	ev := h.remove(deletion(id, in))
	require.False(t, ev.Error)

	deleted := ev.Data.(models.SaleDeleted)
	assert.Equal(t, id, deleted.DocID)
	assert.Equal(t, models.Delta{BaleSold: -3, WeightSold: -150, Amount: -9000, ReceivedAmount: -4000}, deleted.Delta)
	assert.Equal(t, models.StockDelta{BaleAmount: 3, BaleWeight: 150}, deleted.StockDelta)
}

func TestDeleteRecordFailureKeepsEntries(t *testing.T) {
	h := newHarness(t)
	in := sale("05-03-2024", "John", 3, 150, 9000, 4000)
	id := h.create(in)

	h.store.FailCommitAt(4, errUnavailable)
	ev := h.remove(deletion(id, in))
	assert.True(t, ev.Error)
	h.svc.Wait()

	_, ok := h.get(entryRef(dailyRef("20240305"), id))
	assert.True(t, ok)
	_, ok = h.get(entryRef(customerRef("john"), id))
	assert.True(t, ok)
	assert.Equal(t, int64(9000), h.mustGet(customerRef("john")).Int(models.FieldTotalAmount))
}

func TestDeleteUsesNormalizedCustomerKey(t *testing.T) {
	h := newHarness(t)
	in := sale("05-03-2024", "John Doe", 1, 1, 10, 0)
	id := h.create(in)

	del := deletion(id, in)
	del.Name = " JOHN doe"
	require.False(t, h.remove(del).Error)

	_, ok := h.get(entryRef(customerRef("john_doe"), id))
	assert.False(t, ok)
}

func TestConcurrentCreatesForOneCustomer(t *testing.T) {
	h := newHarness(t)
	const n = 25

	ids := make(map[string]bool, n)
	var mu sync.Mutex
	var wg sync.WaitGroup
	requests := make(map[string]bool, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id := h.svc.CreateRecord(context.Background(), sale("05-03-2024", "John", 1, 10, 100, 40))
			mu.Lock()
			requests[id] = true
			mu.Unlock()
		}()
	}
	wg.Wait()

	deadline := time.After(5 * time.Second)
	for len(ids) < n {
		select {
		case ev := <-h.sub.C:
			require.True(t, requests[ev.RequestID])
			require.False(t, ev.Error)
			ids[ev.Data.(models.SaleCreated).DocID] = true
		case <-deadline:
			t.Fatalf("received %d of %d results", len(ids), n)
		}
	}

	customer := customerOf(h.mustGet(customerRef("john")))
	assert.Equal(t, int64(n), customer.TotalBaleSold)
	assert.Equal(t, int64(n*60), customer.Debt)

	entries, err := h.store.Query(context.Background(), customerRef("john").Sub(entryCollection), docstore.All)
	require.NoError(t, err)
	assert.Len(t, entries, n)
}

func TestStockReadWrite(t *testing.T) {
	h := newHarness(t)

	events := h.await(h.svc.ReadStock(context.Background()))
	require.Len(t, events, 1)
	assert.False(t, events[0].Error)
	assert.Equal(t, models.StockAggregate{}, events[0].Data)

	h.writeStock(40, 2000)
	h.create(sale("05-03-2024", "John", 4, 100, 1, 1))

	events = h.await(h.svc.ReadStock(context.Background()))
	assert.Equal(t, models.StockAggregate{BaleAmount: 36, BaleWeight: 1900}, events[0].Data)

	h.store.FailGet(stockRef().Path(), errUnavailable)
	events = h.await(h.svc.ReadStock(context.Background()))
	assert.True(t, events[0].Error)
	assert.Equal(t, models.EventStock, events[0].Name)
}

func TestWriteStockFailureEchoesValues(t *testing.T) {
	h := newHarness(t)
	h.store.FailNextCommit(errUnavailable)

	events := h.await(h.svc.WriteStock(context.Background(), models.StockAggregate{BaleAmount: 1, BaleWeight: 2}))
	require.Len(t, events, 1)
	assert.Equal(t, notifier.Event{
		RequestID: events[0].RequestID,
		Name:      models.EventStockWritten,
		Terminal:  true,
		Error:     true,
		Data:      models.StockAggregate{BaleAmount: 1, BaleWeight: 2},
		Err:       errUnavailable,
	}, events[0])
}
