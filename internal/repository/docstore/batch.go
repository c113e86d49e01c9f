package docstore

// Increment is a field value that adds to the stored number instead of
// replacing it. Absent fields count as zero.
type Increment int64

// OpKind is the kind of write in a batch.
type OpKind int

const (
	// OpSet replaces the whole document.
	OpSet OpKind = iota
	// OpMerge upserts the given fields, applying Increment values.
	OpMerge
	// OpDelete removes the document.
	OpDelete
)

func (k OpKind) String() string {
	switch k {
	case OpSet:
		return "set"
	case OpMerge:
		return "merge"
	case OpDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// Op is a single write of a batch.
type Op struct {
	Kind   OpKind
	Ref    DocRef
	Fields map[string]interface{}
	// IfRevision, when set on a delete, makes the whole batch fail with
	// ErrPrecondition unless the document still has this revision.
	IfRevision string
}

// Batch describes every write of one atomic commit.
type Batch struct {
	Ops []Op
}

// NewBatch returns an empty batch.
func NewBatch() *Batch {
	return &Batch{}
}

// Set adds a full overwrite of ref.
func (b *Batch) Set(ref DocRef, fields map[string]interface{}) *Batch {
	b.Ops = append(b.Ops, Op{Kind: OpSet, Ref: ref, Fields: fields})
	return b
}

// Merge adds an upsert of the given fields into ref.
func (b *Batch) Merge(ref DocRef, fields map[string]interface{}) *Batch {
	b.Ops = append(b.Ops, Op{Kind: OpMerge, Ref: ref, Fields: fields})
	return b
}

// Delete adds an unconditional delete of ref.
func (b *Batch) Delete(ref DocRef) *Batch {
	b.Ops = append(b.Ops, Op{Kind: OpDelete, Ref: ref})
	return b
}

// DeleteIfRevision adds a delete of ref that only applies while ref still has revision.
func (b *Batch) DeleteIfRevision(ref DocRef, revision string) *Batch {
	b.Ops = append(b.Ops, Op{Kind: OpDelete, Ref: ref, IfRevision: revision})
	return b
}

// Len returns the number of writes in the batch.
func (b *Batch) Len() int {
	return len(b.Ops)
}
