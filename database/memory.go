package database

import (
	"context"
	"reflect"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const DefaultMaxAttempts = 5

type memDoc struct {
	raw     bson.Raw // nil once deleted
	version uint64
}

type memSub struct {
	q        Query
	onChange func([]Snapshot)
	onError  func(error)
}

// MemoryStore is an in-process Store with optimistic transactions. Every
// document and collection carries a version; a transaction commits only if
// nothing it read has changed since.
type MemoryStore struct {
	mu          sync.Mutex
	docs        map[string]*memDoc
	collections map[string]uint64
	clock       uint64
	subs        map[uint64]*memSub
	nextSub     uint64
	maxAttempts int

	// beforeCommit runs between the transaction body and validation. Tests
	// use it to inject concurrent writes.
	beforeCommit func(attempt int)
}

func NewMemoryStore(maxAttempts int) *MemoryStore {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	return &MemoryStore{
		docs:        make(map[string]*memDoc),
		collections: make(map[string]uint64),
		subs:        make(map[uint64]*memSub),
		maxAttempts: maxAttempts,
	}
}

func (s *MemoryStore) NewID() string {
	return uuid.NewString()
}

func (s *MemoryStore) Get(ctx context.Context, path string) (Snapshot, error) {
	if !isDocPath(path) {
		return Snapshot{}, ErrInvalidPath
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.docs[path]
	if !ok || d.raw == nil {
		return Snapshot{}, ErrNotFound
	}
	return newSnapshot(path, d.raw), nil
}

func (s *MemoryStore) Set(ctx context.Context, path string, doc any) error {
	return s.RunTransaction(ctx, func(ctx context.Context, tx Tx) error {
		return tx.Set(path, doc)
	})
}

func (s *MemoryStore) Update(ctx context.Context, path string, fields Fields) error {
	return s.RunTransaction(ctx, func(ctx context.Context, tx Tx) error {
		return tx.Update(path, fields)
	})
}

func (s *MemoryStore) Delete(ctx context.Context, path string) error {
	return s.RunTransaction(ctx, func(ctx context.Context, tx Tx) error {
		return tx.Delete(path)
	})
}

func (s *MemoryStore) Query(ctx context.Context, q Query) ([]Snapshot, error) {
	s.mu.Lock()
	view, err := s.view(q, nil)
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return evalQuery(view, q)
}

func (s *MemoryStore) RunTransaction(ctx context.Context, fn TxFunc) error {
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		tx := &memTx{
			store:  s,
			reads:  make(map[string]uint64),
			colls:  make(map[string]uint64),
			writes: make(map[string]*memWrite),
		}
		if err := fn(ctx, tx); err != nil {
			// An error decided on reads that another commit has since
			// overtaken is retried against the newer state.
			if s.stale(tx) {
				continue
			}
			return err
		}
		if s.beforeCommit != nil {
			s.beforeCommit(attempt)
		}
		if touched, ok := s.commit(tx); ok {
			s.notify(touched)
			return nil
		}
	}
	return ErrConflictRetryExhausted
}

func (s *MemoryStore) Subscribe(ctx context.Context, q Query, onChange func([]Snapshot), onError func(error)) (func(), error) {
	if q.Doc == "" && !isCollectionPath(q.Collection) {
		return nil, ErrInvalidPath
	}
	s.mu.Lock()
	s.nextSub++
	id := s.nextSub
	sub := &memSub{q: q, onChange: onChange, onError: onError}
	s.subs[id] = sub
	s.mu.Unlock()

	s.deliver(sub)

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, id)
			s.mu.Unlock()
		})
	}, nil
}

// commit validates the read set of tx and applies its writes. It returns
// the written paths when the commit succeeded.
func (s *MemoryStore) commit(tx *memTx) ([]string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.readsCurrent(tx) {
		return nil, false
	}

	touched := make([]string, 0, len(tx.order))
	for _, path := range tx.order {
		w := tx.writes[path]
		s.clock++
		s.docs[path] = &memDoc{raw: w.raw, version: s.clock}
		s.collections[Parent(path)] = s.clock
		touched = append(touched, path)
	}
	return touched, true
}

// stale reports whether anything tx read was changed by a later commit.
func (s *MemoryStore) stale(tx *memTx) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.readsCurrent(tx)
}

// readsCurrent checks the read set of tx. Callers hold s.mu.
func (s *MemoryStore) readsCurrent(tx *memTx) bool {
	for path, seen := range tx.reads {
		if s.versionOf(path) != seen {
			return false
		}
	}
	for coll, seen := range tx.colls {
		if s.collections[coll] != seen {
			return false
		}
	}
	return true
}

func (s *MemoryStore) versionOf(path string) uint64 {
	if d, ok := s.docs[path]; ok {
		return d.version
	}
	return 0
}

func (s *MemoryStore) notify(touched []string) {
	if len(touched) == 0 {
		return
	}
	s.mu.Lock()
	var hit []*memSub
	for _, sub := range s.subs {
		for _, path := range touched {
			if sub.q.Doc == path || (sub.q.Doc == "" && Parent(path) == sub.q.Collection) {
				hit = append(hit, sub)
				break
			}
		}
	}
	s.mu.Unlock()

	for _, sub := range hit {
		s.deliver(sub)
	}
}

func (s *MemoryStore) deliver(sub *memSub) {
	snaps, err := s.Query(context.Background(), sub.q)
	if err != nil {
		if sub.onError != nil {
			sub.onError(err)
		}
		return
	}
	if sub.onChange != nil {
		sub.onChange(snaps)
	}
}

// view returns the committed documents addressed by q, overlaid with the
// pending writes of tx. Callers hold s.mu.
func (s *MemoryStore) view(q Query, tx *memTx) (map[string]bson.Raw, error) {
	out := make(map[string]bson.Raw)
	if q.Doc != "" {
		if !isDocPath(q.Doc) {
			return nil, ErrInvalidPath
		}
		if d, ok := s.docs[q.Doc]; ok && d.raw != nil {
			out[q.Doc] = d.raw
		}
		if tx != nil {
			if _, seen := tx.reads[q.Doc]; !seen {
				tx.reads[q.Doc] = s.versionOf(q.Doc)
			}
			if w, ok := tx.writes[q.Doc]; ok {
				if w.raw == nil {
					delete(out, q.Doc)
				} else {
					out[q.Doc] = w.raw
				}
			}
		}
		return out, nil
	}

	if !isCollectionPath(q.Collection) {
		return nil, ErrInvalidPath
	}
	for path, d := range s.docs {
		if d.raw != nil && Parent(path) == q.Collection {
			out[path] = d.raw
		}
	}
	if tx != nil {
		if _, seen := tx.colls[q.Collection]; !seen {
			tx.colls[q.Collection] = s.collections[q.Collection]
		}
		for path, w := range tx.writes {
			if Parent(path) != q.Collection {
				continue
			}
			if w.raw == nil {
				delete(out, path)
			} else {
				out[path] = w.raw
			}
		}
	}
	return out, nil
}

type memWrite struct {
	raw bson.Raw // nil for a delete
}

type memTx struct {
	store  *MemoryStore
	reads  map[string]uint64
	colls  map[string]uint64
	writes map[string]*memWrite
	order  []string
}

func (t *memTx) current(path string) bson.Raw {
	if w, ok := t.writes[path]; ok {
		return w.raw
	}
	s := t.store
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, seen := t.reads[path]; !seen {
		t.reads[path] = s.versionOf(path)
	}
	if d, ok := s.docs[path]; ok {
		return d.raw
	}
	return nil
}

func (t *memTx) Get(path string) (Snapshot, error) {
	if !isDocPath(path) {
		return Snapshot{}, ErrInvalidPath
	}
	raw := t.current(path)
	if raw == nil {
		return Snapshot{}, ErrNotFound
	}
	return newSnapshot(path, raw), nil
}

func (t *memTx) Query(q Query) ([]Snapshot, error) {
	t.store.mu.Lock()
	view, err := t.store.view(q, t)
	t.store.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return evalQuery(view, q)
}

func (t *memTx) Set(path string, doc any) error {
	if !isDocPath(path) {
		return ErrInvalidPath
	}
	raw, err := encode(path, doc)
	if err != nil {
		return err
	}
	t.put(path, raw)
	return nil
}

func (t *memTx) Update(path string, fields Fields) error {
	if !isDocPath(path) {
		return ErrInvalidPath
	}
	base := t.current(path)
	if base == nil {
		return ErrNotFound
	}
	raw, err := merge(base, fields)
	if err != nil {
		return err
	}
	t.put(path, raw)
	return nil
}

func (t *memTx) Delete(path string) error {
	if !isDocPath(path) {
		return ErrInvalidPath
	}
	t.put(path, nil)
	return nil
}

func (t *memTx) put(path string, raw bson.Raw) {
	if _, ok := t.writes[path]; !ok {
		t.order = append(t.order, path)
	}
	t.writes[path] = &memWrite{raw: raw}
}

func evalQuery(view map[string]bson.Raw, q Query) ([]Snapshot, error) {
	type row struct {
		path string
		raw  bson.Raw
		m    bson.M
	}
	rows := make([]row, 0, len(view))
	for path, raw := range view {
		var m bson.M
		if err := bson.Unmarshal(raw, &m); err != nil {
			return nil, err
		}
		match := true
		for _, f := range q.Where {
			if !equalValues(m[f.Field], f.Value) {
				match = false
				break
			}
		}
		if match {
			rows = append(rows, row{path: path, raw: raw, m: m})
		}
	}

	sort.SliceStable(rows, func(i, j int) bool {
		if q.OrderBy != "" {
			c := compareValues(rows[i].m[q.OrderBy], rows[j].m[q.OrderBy])
			if c != 0 {
				if q.Descending {
					return c > 0
				}
				return c < 0
			}
		}
		return rows[i].path < rows[j].path
	})

	if q.Limit > 0 && len(rows) > q.Limit {
		rows = rows[:q.Limit]
	}
	out := make([]Snapshot, len(rows))
	for i, r := range rows {
		out[i] = newSnapshot(r.path, r.raw)
	}
	return out, nil
}

// normalize folds values coming from callers and from decoded bson into a
// small set of comparable types.
func normalize(v any) any {
	switch x := v.(type) {
	case nil:
		return nil
	case primitive.DateTime:
		return x.Time().UnixMilli()
	case time.Time:
		return x.UnixMilli()
	case primitive.Decimal128:
		return x.String()
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.String:
		return rv.String()
	case reflect.Bool:
		return rv.Bool()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(rv.Uint())
	case reflect.Float32, reflect.Float64:
		return rv.Float()
	case reflect.Pointer:
		if rv.IsNil() {
			return nil
		}
		return normalize(rv.Elem().Interface())
	}
	return v
}

func equalValues(a, b any) bool {
	return reflect.DeepEqual(normalize(a), normalize(b))
}

func compareValues(a, b any) int {
	na, nb := normalize(a), normalize(b)
	switch {
	case na == nil && nb == nil:
		return 0
	case na == nil:
		return -1
	case nb == nil:
		return 1
	}
	switch x := na.(type) {
	case float64:
		if y, ok := nb.(float64); ok {
			switch {
			case x < y:
				return -1
			case x > y:
				return 1
			}
			return 0
		}
	case int64:
		if y, ok := nb.(int64); ok {
			switch {
			case x < y:
				return -1
			case x > y:
				return 1
			}
			return 0
		}
	case string:
		if y, ok := nb.(string); ok {
			return strings.Compare(x, y)
		}
	case bool:
		if y, ok := nb.(bool); ok {
			switch {
			case x == y:
				return 0
			case !x:
				return -1
			}
			return 1
		}
	}
	return 0
}
