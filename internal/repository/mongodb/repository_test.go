package mongodb

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/mamadbah2/baleledger/internal/repository/docstore"
)

func TestCollectionLayout(t *testing.T) {
	users := docstore.Collection("users")
	entry := users.Doc("john").Sub("records").Doc("abc")

	assert.Equal(t, "users", collectionName(users))
	assert.Equal(t, "users_records", collectionName(entry.Collection))
	assert.Equal(t, "john", documentID(users.Doc("john")))
	assert.Equal(t, "john/abc", documentID(entry))
}

func TestKeyBounds(t *testing.T) {
	assert.Empty(t, keyBounds(docstore.All))
	assert.Equal(t, bson.M{"$gte": "jo", "$lt": "jp"}, keyBounds(docstore.Between("jo", "jp")))
	assert.Equal(t, bson.M{"$gte": "20240201", "$lte": "20240229"}, keyBounds(docstore.Closed("20240201", "20240229")))
}

func TestToDocumentStripsBookkeeping(t *testing.T) {
	doc := toDocument(bson.M{
		fieldID:       "john/abc",
		fieldKey:      "abc",
		fieldParent:   "john",
		fieldRevision: "r1",
		"amount":      int32(7),
	})

	assert.Equal(t, "abc", doc.Key)
	assert.Equal(t, "r1", doc.Revision)
	assert.Equal(t, map[string]interface{}{"amount": int32(7)}, doc.Fields)
	assert.Equal(t, int64(7), doc.Int("amount"))

	root := toDocument(bson.M{fieldID: "stock"})
	assert.Equal(t, "stock", root.Key)
}

func TestBookkeepingRefreshesRevision(t *testing.T) {
	ref := docstore.Collection("users").Doc("john").Sub("records").Doc("abc")

	first := bookkeeping(ref)
	second := bookkeeping(ref)

	assert.Equal(t, "john", first[fieldParent])
	assert.Equal(t, "abc", first[fieldKey])
	assert.NotEqual(t, first[fieldRevision], second[fieldRevision])
	_, hasParent := bookkeeping(docstore.Collection("users").Doc("john"))[fieldParent]
	assert.False(t, hasParent)
}
