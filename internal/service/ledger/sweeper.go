package ledger

import (
	"context"
	"errors"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mamadbah2/baleledger/internal/repository/docstore"
)

// startSweep runs an orphan sweep in the background.
func (s *Service) startSweep() {
	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		removed := s.sweep(context.Background())
		if removed > 0 {
			s.logger.Info("removed empty customers", zap.Int("count", removed))
		}
	}()
}

// sweep deletes every customer aggregate whose entries are gone. It reads the
// whole customer collection, so its cost grows with the number of customers.
// Failures only skip work; a later sweep picks it up again.
func (s *Service) sweep(ctx context.Context) int {
	customers, err := s.store.Query(ctx, docstore.Collection(customerCollection), docstore.All)
	if err != nil {
		s.logger.Debug("sweep aborted, customer scan failed", zap.Error(err))
		return 0
	}

	var removed atomic.Int64
	var g errgroup.Group
	g.SetLimit(s.sweepConcurrency)

	for _, customer := range customers {
		g.Go(func() error {
			if s.sweepCustomer(ctx, customer) {
				removed.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()

	return int(removed.Load())
}

// sweepCustomer deletes the aggregate only if it is still at the revision
// seen by the scan, so a sale merged in after the emptiness check survives.
func (s *Service) sweepCustomer(ctx context.Context, customer docstore.Document) bool {
	ref := customerRef(customer.Key)
	log := s.logger.With(zap.String("customer", customer.Key))

	entries, err := s.store.Query(ctx, ref.Sub(entryCollection), docstore.All)
	if err != nil {
		log.Debug("sweep skipped customer, entries read failed", zap.Error(err))
		return false
	}
	if len(entries) > 0 {
		return false
	}

	err = s.store.Commit(ctx, docstore.NewBatch().DeleteIfRevision(ref, customer.Revision))
	switch {
	case errors.Is(err, docstore.ErrPrecondition):
		log.Debug("customer changed since scan, kept")
		return false
	case err != nil:
		log.Debug("sweep delete failed", zap.Error(err))
		return false
	}

	log.Debug("empty customer removed")
	return true
}
