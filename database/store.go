package database

import (
	"context"
	"errors"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
)

var (
	ErrNotFound               = errors.New("documento no encontrado")
	ErrConflictRetryExhausted = errors.New("la transacción no pudo confirmarse tras varios reintentos por conflicto")
	ErrInvalidPath            = errors.New("ruta de documento inválida")
)

// Fields is a partial document used by Update. Keys are top-level field names.
type Fields map[string]any

// Filter is an equality condition on a top-level field.
type Filter struct {
	Field string
	Value any
}

// Query selects documents of one collection, or a single document when Doc is set.
type Query struct {
	Collection string
	Doc        string
	Where      []Filter
	OrderBy    string
	Descending bool
	Limit      int
}

// Snapshot is a document as read from the store.
type Snapshot struct {
	Path string
	ID   string
	raw  bson.Raw
}

func newSnapshot(path string, raw bson.Raw) Snapshot {
	return Snapshot{Path: path, ID: ID(path), raw: raw}
}

// Decode unmarshals the document into v.
func (s Snapshot) Decode(v any) error {
	return bson.Unmarshal(s.raw, v)
}

// TxFunc is the body of a transaction. It may run more than once when the
// store retries after a write conflict, so it must not have side effects
// outside of tx.
type TxFunc func(ctx context.Context, tx Tx) error

// Tx is the handle passed to a transaction body. Reads observe one
// consistent view; writes become visible to others only after commit.
type Tx interface {
	Get(path string) (Snapshot, error)
	Query(q Query) ([]Snapshot, error)
	Set(path string, doc any) error
	Update(path string, fields Fields) error
	Delete(path string) error
}

// Store is the document store client used by the rest of the service.
type Store interface {
	NewID() string
	Get(ctx context.Context, path string) (Snapshot, error)
	Set(ctx context.Context, path string, doc any) error
	Update(ctx context.Context, path string, fields Fields) error
	Delete(ctx context.Context, path string) error
	Query(ctx context.Context, q Query) ([]Snapshot, error)
	// RunTransaction runs fn atomically, retrying it on write conflicts.
	// Errors returned by fn abort the transaction and are returned as is,
	// unless a concurrent commit changed what fn had read; fn then runs
	// again on the newer state.
	RunTransaction(ctx context.Context, fn TxFunc) error
	// Subscribe delivers the current result of q and then a fresh result
	// after every committed change that may affect it. The returned func
	// cancels the subscription.
	Subscribe(ctx context.Context, q Query, onChange func([]Snapshot), onError func(error)) (func(), error)
}

// Doc joins path segments: Doc("quotations", id, "itemsCotizacion", itemID).
func Doc(parts ...string) string {
	return strings.Join(parts, "/")
}

// Collection joins path segments of a collection: Collection("quotations", id, "itemsCotizacion").
func Collection(parts ...string) string {
	return strings.Join(parts, "/")
}

// ID returns the last segment of a document path.
func ID(path string) string {
	if i := strings.LastIndex(path, "/"); i >= 0 {
		return path[i+1:]
	}
	return path
}

// Parent returns the collection path that contains the document.
func Parent(path string) string {
	if i := strings.LastIndex(path, "/"); i >= 0 {
		return path[:i]
	}
	return ""
}

func isDocPath(path string) bool {
	segs := strings.Split(path, "/")
	if len(segs)%2 != 0 {
		return false
	}
	for _, s := range segs {
		if s == "" {
			return false
		}
	}
	return true
}

func isCollectionPath(path string) bool {
	segs := strings.Split(path, "/")
	if len(segs)%2 != 1 {
		return false
	}
	for _, s := range segs {
		if s == "" {
			return false
		}
	}
	return true
}

// encode marshals doc and forces its _id to the last path segment.
func encode(path string, doc any) (bson.Raw, error) {
	raw, err := bson.Marshal(doc)
	if err != nil {
		return nil, err
	}
	var d bson.D
	if err := bson.Unmarshal(raw, &d); err != nil {
		return nil, err
	}
	out := bson.D{{Key: "_id", Value: ID(path)}}
	for _, e := range d {
		if e.Key == "_id" {
			continue
		}
		out = append(out, e)
	}
	return bson.Marshal(out)
}

// merge applies fields on top of raw.
func merge(raw bson.Raw, fields Fields) (bson.Raw, error) {
	var d bson.D
	if err := bson.Unmarshal(raw, &d); err != nil {
		return nil, err
	}
	seen := make(map[string]bool, len(fields))
	for i, e := range d {
		if v, ok := fields[e.Key]; ok && e.Key != "_id" {
			d[i].Value = v
			seen[e.Key] = true
		}
	}
	for k, v := range fields {
		if !seen[k] && k != "_id" {
			d = append(d, bson.E{Key: k, Value: v})
		}
	}
	return bson.Marshal(d)
}
