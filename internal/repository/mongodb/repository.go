package mongodb

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/mamadbah2/baleledger/internal/repository/docstore"
)

// Bookkeeping fields stored next to the document fields.
const (
	fieldID       = "_id"
	fieldKey      = "_key"
	fieldParent   = "_parent"
	fieldRevision = "_rev"
)

// MongoDBRepository implements docstore.Store on MongoDB. Subcollections are
// flattened into one collection per parent collection, e.g. users/{key}/records
// lives in users_records with a _parent field. Batches run as multi-document
// transactions, so the server must be a replica set.
type MongoDBRepository struct {
	client *mongo.Client
	db     *mongo.Database
	logger *zap.Logger
}

var _ docstore.Store = (*MongoDBRepository)(nil)

// NewMongoDBRepository creates a new MongoDB repository.
func NewMongoDBRepository(ctx context.Context, uri string, dbName string, logger *zap.Logger) (*MongoDBRepository, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	clientOptions := options.Client().ApplyURI(uri)
	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}

	// Ping the database to verify connection
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}

	return &MongoDBRepository{
		client: client,
		db:     client.Database(dbName),
		logger: logger,
	}, nil
}

// Get implements docstore.Store.
func (r *MongoDBRepository) Get(ctx context.Context, ref docstore.DocRef) (docstore.Document, error) {
	var raw bson.M
	err := r.collection(ref.Collection).FindOne(ctx, bson.M{fieldID: documentID(ref)}).Decode(&raw)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return docstore.Document{}, fmt.Errorf("get %s: %w", ref.Path(), docstore.ErrNotFound)
	}
	if err != nil {
		return docstore.Document{}, fmt.Errorf("get %s: %w", ref.Path(), err)
	}
	return toDocument(raw), nil
}

// Query implements docstore.Store. Documents come back in key order.
func (r *MongoDBRepository) Query(ctx context.Context, coll docstore.CollectionRef, kr docstore.KeyRange) ([]docstore.Document, error) {
	keyField := fieldID
	filter := bson.M{}
	if coll.Parent != nil {
		keyField = fieldKey
		filter[fieldParent] = coll.Parent.Key
	}
	if bounds := keyBounds(kr); len(bounds) > 0 {
		filter[keyField] = bounds
	}

	cursor, err := r.collection(coll).Find(ctx, filter, options.Find().SetSort(bson.D{{Key: keyField, Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", coll.Path(), err)
	}

	var raws []bson.M
	if err := cursor.All(ctx, &raws); err != nil {
		return nil, fmt.Errorf("read %s: %w", coll.Path(), err)
	}

	docs := make([]docstore.Document, 0, len(raws))
	for _, raw := range raws {
		docs = append(docs, toDocument(raw))
	}
	return docs, nil
}

// Commit implements docstore.Store inside a single transaction.
func (r *MongoDBRepository) Commit(ctx context.Context, b *docstore.Batch) error {
	session, err := r.client.StartSession()
	if err != nil {
		return fmt.Errorf("start session: %w", err)
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		for _, op := range b.Ops {
			if err := r.apply(sc, op); err != nil {
				return nil, err
			}
		}
		return nil, nil
	})
	if err != nil {
		return fmt.Errorf("commit batch of %d: %w", b.Len(), err)
	}
	return nil
}

func (r *MongoDBRepository) apply(ctx context.Context, op docstore.Op) error {
	coll := r.collection(op.Ref.Collection)
	id := documentID(op.Ref)

	switch op.Kind {
	case docstore.OpSet:
		doc := bson.M{}
		for k, v := range op.Fields {
			doc[k] = encode(v)
		}
		for k, v := range bookkeeping(op.Ref) {
			doc[k] = v
		}
		_, err := coll.ReplaceOne(ctx, bson.M{fieldID: id}, doc, options.Replace().SetUpsert(true))
		return err
	case docstore.OpMerge:
		set := bookkeeping(op.Ref)
		inc := bson.M{}
		for k, v := range op.Fields {
			if n, ok := v.(docstore.Increment); ok {
				inc[k] = int64(n)
				continue
			}
			set[k] = encode(v)
		}
		update := bson.M{"$set": set}
		if len(inc) > 0 {
			update["$inc"] = inc
		}
		_, err := coll.UpdateOne(ctx, bson.M{fieldID: id}, update, options.Update().SetUpsert(true))
		return err
	case docstore.OpDelete:
		filter := bson.M{fieldID: id}
		if op.IfRevision != "" {
			filter[fieldRevision] = op.IfRevision
		}
		res, err := coll.DeleteOne(ctx, filter)
		if err != nil {
			return err
		}
		if op.IfRevision != "" && res.DeletedCount == 0 {
			return fmt.Errorf("delete %s: %w", op.Ref.Path(), docstore.ErrPrecondition)
		}
		return nil
	default:
		return fmt.Errorf("unsupported op %s", op.Kind)
	}
}

// Close closes the MongoDB connection.
func (r *MongoDBRepository) Close(ctx context.Context) error {
	return r.client.Disconnect(ctx)
}

func (r *MongoDBRepository) collection(coll docstore.CollectionRef) *mongo.Collection {
	return r.db.Collection(collectionName(coll))
}

func collectionName(coll docstore.CollectionRef) string {
	if coll.Parent == nil {
		return coll.Name
	}
	return collectionName(coll.Parent.Collection) + "_" + coll.Name
}

func documentID(ref docstore.DocRef) string {
	if ref.Collection.Parent == nil {
		return ref.Key
	}
	return ref.Collection.Parent.Key + "/" + ref.Key
}

// bookkeeping returns the fields every write refreshes. A fresh _rev lets a
// later conditional delete detect intervening writes.
func bookkeeping(ref docstore.DocRef) bson.M {
	m := bson.M{
		fieldKey:      ref.Key,
		fieldRevision: primitive.NewObjectID().Hex(),
	}
	if ref.Collection.Parent != nil {
		m[fieldParent] = ref.Collection.Parent.Key
	}
	return m
}

func keyBounds(kr docstore.KeyRange) bson.M {
	bounds := bson.M{}
	if kr.Start != "" {
		bounds["$gte"] = kr.Start
	}
	if kr.End != "" {
		if kr.IncludeEnd {
			bounds["$lte"] = kr.End
		} else {
			bounds["$lt"] = kr.End
		}
	}
	return bounds
}

func encode(v interface{}) interface{} {
	switch n := v.(type) {
	case docstore.Increment:
		return int64(n)
	case int:
		return int64(n)
	default:
		return v
	}
}

func toDocument(raw bson.M) docstore.Document {
	doc := docstore.Document{Fields: make(map[string]interface{}, len(raw))}
	for k, v := range raw {
		switch k {
		case fieldKey:
			doc.Key, _ = v.(string)
		case fieldRevision:
			doc.Revision, _ = v.(string)
		case fieldID, fieldParent:
		default:
			doc.Fields[k] = v
		}
	}
	if doc.Key == "" {
		doc.Key, _ = raw[fieldID].(string)
	}
	return doc
}
