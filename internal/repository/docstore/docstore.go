// Package docstore describes the document-store capability the ledger is
// written against: keyed reads, key-range queries and all-or-nothing batch
// commits over nested collections. Backends live in sibling packages.
package docstore

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get when the document does not exist.
var ErrNotFound = errors.New("document not found")

// ErrPrecondition is returned by Commit when a delete's revision precondition
// no longer holds. Nothing in the batch is applied.
var ErrPrecondition = errors.New("document revision precondition failed")

// Store is implemented by every backend.
type Store interface {
	Get(ctx context.Context, ref DocRef) (Document, error)
	Query(ctx context.Context, coll CollectionRef, r KeyRange) ([]Document, error)
	Commit(ctx context.Context, b *Batch) error
}

// CollectionRef names a root collection or a subcollection of a document.
type CollectionRef struct {
	Name   string
	Parent *DocRef
}

// Collection returns a root collection reference.
func Collection(name string) CollectionRef {
	return CollectionRef{Name: name}
}

// Doc returns the reference of the document with the given key.
func (c CollectionRef) Doc(key string) DocRef {
	return DocRef{Collection: c, Key: key}
}

// Path renders the collection as a slash separated path, e.g. users/john/records.
func (c CollectionRef) Path() string {
	if c.Parent == nil {
		return c.Name
	}
	return c.Parent.Path() + "/" + c.Name
}

// DocRef names a single document.
type DocRef struct {
	Collection CollectionRef
	Key        string
}

// Sub returns a subcollection of the document.
func (d DocRef) Sub(name string) CollectionRef {
	parent := d
	return CollectionRef{Name: name, Parent: &parent}
}

// Path renders the document as a slash separated path, e.g. users/john.
func (d DocRef) Path() string {
	return d.Collection.Path() + "/" + d.Key
}

// KeyRange bounds a query over document keys. Empty bounds are open.
type KeyRange struct {
	Start      string
	End        string
	IncludeEnd bool
}

// All matches every document of a collection.
var All = KeyRange{}

// Between matches keys in [start, end).
func Between(start, end string) KeyRange {
	return KeyRange{Start: start, End: end}
}

// Closed matches keys in [start, end].
func Closed(start, end string) KeyRange {
	return KeyRange{Start: start, End: end, IncludeEnd: true}
}

// Contains reports whether key falls inside the range.
func (r KeyRange) Contains(key string) bool {
	if r.Start != "" && key < r.Start {
		return false
	}
	if r.End == "" {
		return true
	}
	if r.IncludeEnd {
		return key <= r.End
	}
	return key < r.End
}
