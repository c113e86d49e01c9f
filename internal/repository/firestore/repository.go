// Package firestore implements docstore.Store on Cloud Firestore, which maps
// one to one onto the ledger's nested collection layout.
package firestore

import (
	"context"
	"errors"
	"fmt"
	"time"

	firestoreapi "cloud.google.com/go/firestore"
	"go.uber.org/zap"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/mamadbah2/baleledger/internal/config"
	"github.com/mamadbah2/baleledger/internal/repository/docstore"
)

const revisionLayout = time.RFC3339Nano

// Repository talks to a single Firestore database.
type Repository struct {
	client *firestoreapi.Client
	logger *zap.Logger
}

var _ docstore.Store = (*Repository)(nil)

// NewRepository connects to the project configured in cfg.
func NewRepository(ctx context.Context, cfg config.FirestoreConfig, logger *zap.Logger) (*Repository, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	var opts []option.ClientOption
	if cfg.CredentialsPath != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsPath))
	}

	client, err := firestoreapi.NewClient(ctx, cfg.ProjectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize firestore client: %w", err)
	}

	return &Repository{client: client, logger: logger}, nil
}

// Get implements docstore.Store.
func (r *Repository) Get(ctx context.Context, ref docstore.DocRef) (docstore.Document, error) {
	snap, err := r.doc(ref).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return docstore.Document{}, fmt.Errorf("get %s: %w", ref.Path(), docstore.ErrNotFound)
	}
	if err != nil {
		return docstore.Document{}, fmt.Errorf("get %s: %w", ref.Path(), err)
	}
	return toDocument(snap), nil
}

// Query implements docstore.Store, ordering by document ID.
func (r *Repository) Query(ctx context.Context, coll docstore.CollectionRef, kr docstore.KeyRange) ([]docstore.Document, error) {
	q := r.collection(coll).OrderBy(firestoreapi.DocumentID, firestoreapi.Asc)
	if kr.Start != "" {
		q = q.StartAt(kr.Start)
	}
	if kr.End != "" {
		if kr.IncludeEnd {
			q = q.EndAt(kr.End)
		} else {
			q = q.EndBefore(kr.End)
		}
	}

	snaps, err := q.Documents(ctx).GetAll()
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", coll.Path(), err)
	}

	docs := make([]docstore.Document, 0, len(snaps))
	for _, snap := range snaps {
		if !snap.Exists() {
			continue
		}
		docs = append(docs, toDocument(snap))
	}
	return docs, nil
}

// Commit implements docstore.Store as a write-only transaction attempted once.
func (r *Repository) Commit(ctx context.Context, b *docstore.Batch) error {
	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestoreapi.Transaction) error {
		for _, op := range b.Ops {
			if err := r.apply(tx, op); err != nil {
				return err
			}
		}
		return nil
	}, firestoreapi.MaxAttempts(1))

	switch {
	case err == nil:
		return nil
	case errors.Is(err, docstore.ErrPrecondition):
		return err
	case status.Code(err) == codes.FailedPrecondition:
		return fmt.Errorf("commit batch of %d: %w: %v", b.Len(), docstore.ErrPrecondition, err)
	default:
		return fmt.Errorf("commit batch of %d: %w", b.Len(), err)
	}
}

func (r *Repository) apply(tx *firestoreapi.Transaction, op docstore.Op) error {
	ref := r.doc(op.Ref)

	switch op.Kind {
	case docstore.OpSet:
		return tx.Set(ref, encode(op.Fields))
	case docstore.OpMerge:
		return tx.Set(ref, encode(op.Fields), firestoreapi.MergeAll)
	case docstore.OpDelete:
		if op.IfRevision == "" {
			return tx.Delete(ref)
		}
		updated, err := time.Parse(revisionLayout, op.IfRevision)
		if err != nil {
			return fmt.Errorf("delete %s: %w: unreadable revision %q", op.Ref.Path(), docstore.ErrPrecondition, op.IfRevision)
		}
		return tx.Delete(ref, firestoreapi.LastUpdateTime(updated))
	default:
		return fmt.Errorf("unsupported op %s", op.Kind)
	}
}

// Close releases the client.
func (r *Repository) Close() error {
	return r.client.Close()
}

func (r *Repository) collection(coll docstore.CollectionRef) *firestoreapi.CollectionRef {
	if coll.Parent == nil {
		return r.client.Collection(coll.Name)
	}
	return r.doc(*coll.Parent).Collection(coll.Name)
}

func (r *Repository) doc(ref docstore.DocRef) *firestoreapi.DocumentRef {
	return r.collection(ref.Collection).Doc(ref.Key)
}

func encode(fields map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(fields))
	for k, v := range fields {
		if n, ok := v.(docstore.Increment); ok {
			out[k] = firestoreapi.Increment(int64(n))
			continue
		}
		out[k] = v
	}
	return out
}

func toDocument(snap *firestoreapi.DocumentSnapshot) docstore.Document {
	return docstore.Document{
		Key:      snap.Ref.ID,
		Fields:   snap.Data(),
		Revision: snap.UpdateTime.UTC().Format(revisionLayout),
	}
}
