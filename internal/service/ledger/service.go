// Package ledger keeps the stock, daily and customer views of bale sales in
// step. Every public operation returns a request ID at once and reports its
// outcome later through the notifier; the last event of a request is marked
// terminal.
package ledger

import (
	"context"
	"sync"

	"github.com/google/uuid"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"go.uber.org/zap"

	"github.com/mamadbah2/baleledger/internal/repository/docstore"
	"github.com/mamadbah2/baleledger/internal/service/notifier"
)

const (
	stockCollection    = "stock"
	stockKey           = "inventory"
	dailyCollection    = "daily_record"
	customerCollection = "users"
	entryCollection    = "records"

	entryIDAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
	entryIDLength   = 20

	defaultSweepConcurrency = 8
)

// Publisher receives every result event.
type Publisher interface {
	Publish(ev notifier.Event) error
}

// Config tunes the service.
type Config struct {
	// SweepConcurrency bounds the per-customer checks of one orphan sweep.
	SweepConcurrency int
}

// Service implements the ledger operations.
type Service struct {
	store  docstore.Store
	events Publisher
	logger *zap.Logger

	sweepConcurrency int
	newEntryID       func() (string, error)
	newRequestID     func() string

	inflight sync.WaitGroup
}

// NewService wires a ledger over the given store.
func NewService(store docstore.Store, events Publisher, cfg Config, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.SweepConcurrency <= 0 {
		cfg.SweepConcurrency = defaultSweepConcurrency
	}

	return &Service{
		store:            store,
		events:           events,
		logger:           logger,
		sweepConcurrency: cfg.SweepConcurrency,
		newEntryID: func() (string, error) {
			return gonanoid.Generate(entryIDAlphabet, entryIDLength)
		},
		newRequestID: uuid.NewString,
	}
}

// Wait blocks until every started operation and sweep has finished.
func (s *Service) Wait() {
	s.inflight.Wait()
}

// start runs fn in the background on a context the caller can no longer
// cancel and returns the request ID fn reports under.
func (s *Service) start(ctx context.Context, fn func(ctx context.Context, requestID string)) string {
	requestID := s.newRequestID()
	ctx = context.WithoutCancel(ctx)

	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		fn(ctx, requestID)
	}()

	return requestID
}

func (s *Service) emit(ev notifier.Event) {
	if err := s.events.Publish(ev); err != nil {
		s.logger.Error("failed to deliver result", zap.String("event", ev.Name), zap.String("request_id", ev.RequestID), zap.Error(err))
	}
}

func stockRef() docstore.DocRef {
	return docstore.Collection(stockCollection).Doc(stockKey)
}

func dailyRef(dateKey string) docstore.DocRef {
	return docstore.Collection(dailyCollection).Doc(dateKey)
}

func customerRef(customerKey string) docstore.DocRef {
	return docstore.Collection(customerCollection).Doc(customerKey)
}

func entryRef(parent docstore.DocRef, id string) docstore.DocRef {
	return parent.Sub(entryCollection).Doc(id)
}
