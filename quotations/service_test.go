package quotations

import (
	"context"
	"sync"
	"testing"
	"time"

	"repuestos-backoffice/database"
	"repuestos-backoffice/events"
	"repuestos-backoffice/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeRecorder struct {
	mu        sync.Mutex
	confirmed []float64
	cancelled int
	failures  map[string]int
}

func (r *fakeRecorder) QuotationConfirmed(total float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.confirmed = append(r.confirmed, total)
}

func (r *fakeRecorder) QuotationCancelled() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cancelled++
}

func (r *fakeRecorder) OperationFailed(op, reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failures == nil {
		r.failures = map[string]int{}
	}
	r.failures[op+"/"+reason]++
}

func (r *fakeRecorder) failuresFor(key string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.failures[key]
}

type fixture struct {
	ctx   context.Context
	store *database.MemoryStore
	svc   *Service
	pub   *events.Recorder
	rec   *fakeRecorder
}

// tickingClock advances one second per call so createdAt orders lines.
func tickingClock() func() time.Time {
	var mu sync.Mutex
	t := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		t = t.Add(time.Second)
		return t
	}
}

func newFixture(t *testing.T, maxAttempts int) *fixture {
	t.Helper()
	store := database.NewMemoryStore(maxAttempts)
	pub := &events.Recorder{}
	rec := &fakeRecorder{}
	svc := NewService(store, zap.NewNop(),
		WithPublisher(pub),
		WithRecorder(rec),
		WithClock(tickingClock()),
	)
	return &fixture{ctx: context.Background(), store: store, svc: svc, pub: pub, rec: rec}
}

func (f *fixture) product(t *testing.T, id, name string, stock int, price float64) {
	t.Helper()
	p := models.Product{ID: id, Name: name, Brand: "Genérica", StoreCode: "C-" + id, Color: "Negro", SalePrice: price, Stock: stock}
	require.NoError(t, f.store.Set(f.ctx, database.Doc(models.CollProducts, id), p))
}

func (f *fixture) client(t *testing.T, id, name, lastName, dni string) {
	t.Helper()
	c := models.Client{ID: id, Name: name, LastName: lastName, DNI: dni}
	require.NoError(t, f.store.Set(f.ctx, database.Doc(models.CollClients, id), c))
}

func (f *fixture) employee(t *testing.T, id, name, role string) {
	t.Helper()
	e := models.Employee{ID: id, Name: name, Role: role}
	require.NoError(t, f.store.Set(f.ctx, database.Doc(models.CollEmployees, id), e))
}

func (f *fixture) stock(t *testing.T, id string) int {
	t.Helper()
	snap, err := f.store.Get(f.ctx, database.Doc(models.CollProducts, id))
	require.NoError(t, err)
	var p models.Product
	require.NoError(t, snap.Decode(&p))
	return p.Stock
}

func (f *fixture) quotation(t *testing.T) *models.Quotation {
	t.Helper()
	q, err := f.svc.Create(f.ctx, CreateInput{Number: "COT-0001"})
	require.NoError(t, err)
	return q
}

func (f *fixture) add(t *testing.T, quotationID, productID string, qty int, price string) *ItemResult {
	t.Helper()
	res, err := f.svc.AddItem(f.ctx, quotationID, productID, qty, decimal.RequireFromString(price))
	require.NoError(t, err)
	return res
}

// assertTotalMatchesLines checks the stored total against the stored lines.
func (f *fixture) assertTotalMatchesLines(t *testing.T, quotationID string) {
	t.Helper()
	q, err := f.svc.Get(f.ctx, quotationID)
	require.NoError(t, err)
	items, err := f.svc.Items(f.ctx, quotationID)
	require.NoError(t, err)

	sum := decimal.Zero
	for _, it := range items {
		assert.Equal(t, amount(subtotal(it.Quantity, dec(it.UnitPrice))), it.Subtotal, "line %s", it.ID)
		sum = sum.Add(dec(it.Subtotal))
	}
	assert.Equal(t, amount(sum), q.Total)
}

func TestCreate(t *testing.T) {
	f := newFixture(t, 0)
	f.client(t, "c1", "María", "Quispe", "45879632")
	f.employee(t, "e1", "Luis", "Vendedor")

	q, err := f.svc.Create(f.ctx, CreateInput{
		Number:        " COT-7 ",
		ClientID:      "c1",
		EmployeeID:    "e1",
		Plate:         "abc-123",
		PaymentMethod: models.PaymentYape,
	})
	require.NoError(t, err)
	assert.Equal(t, models.QuotationPending, q.Status)
	assert.Equal(t, "COT-7", q.Number)
	assert.Equal(t, "María Quispe", q.ClientName)
	assert.Equal(t, "45879632", q.ClientDNI)
	assert.Equal(t, "Luis", q.EmployeeName)
	assert.Equal(t, "ABC-123", q.Plate)
	assert.Zero(t, q.Total)

	got, err := f.svc.Get(f.ctx, q.ID)
	require.NoError(t, err)
	assert.Equal(t, q.ID, got.ID)
	assert.Equal(t, models.PaymentYape, got.PaymentMethod)
}

func TestCreateDefaultsAndErrors(t *testing.T) {
	f := newFixture(t, 0)

	q := f.quotation(t)
	assert.Equal(t, models.PendingClientName, q.ClientName)
	assert.Empty(t, q.ClientID)

	_, err := f.svc.Create(f.ctx, CreateInput{ClientID: "ghost"})
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = f.svc.Create(f.ctx, CreateInput{PaymentMethod: "Bitcoin"})
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.Equal(t, 1, f.rec.failuresFor("create/invalid_input"))
}

func TestGetMissing(t *testing.T) {
	f := newFixture(t, 0)

	_, err := f.svc.Get(f.ctx, "nope")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = f.svc.Get(f.ctx, "a/b")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = f.svc.Items(f.ctx, "")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestWatch(t *testing.T) {
	f := newFixture(t, 0)
	f.product(t, "p1", "Filtro", 10, 12.50)
	q := f.quotation(t)

	var mu sync.Mutex
	var totals []float64
	stop, err := f.svc.Watch(f.ctx, q.ID, func(q *models.Quotation) {
		mu.Lock()
		defer mu.Unlock()
		require.NotNil(t, q)
		totals = append(totals, q.Total)
	}, nil)
	require.NoError(t, err)

	var itemCounts []int
	stopItems, err := f.svc.WatchItems(f.ctx, q.ID, func(items []models.QuotationItem) {
		mu.Lock()
		defer mu.Unlock()
		itemCounts = append(itemCounts, len(items))
	}, nil)
	require.NoError(t, err)

	f.add(t, q.ID, "p1", 2, "12.50")
	stop()
	stopItems()
	f.add(t, q.ID, "p1", 1, "12.50")

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []float64{0, 25}, totals)
	assert.Equal(t, []int{0, 1}, itemCounts)
}

func TestWatchMissingQuotation(t *testing.T) {
	f := newFixture(t, 0)

	calls := 0
	stop, err := f.svc.Watch(f.ctx, "nope", func(q *models.Quotation) {
		calls++
		assert.Nil(t, q)
	}, nil)
	require.NoError(t, err)
	defer stop()
	assert.Equal(t, 1, calls)
}

// conflictStore fails every transaction as if retries ran out.
type conflictStore struct {
	database.Store
}

func (conflictStore) RunTransaction(context.Context, database.TxFunc) error {
	return database.ErrConflictRetryExhausted
}

func TestConflictRetryExhaustedIsSurfaced(t *testing.T) {
	rec := &fakeRecorder{}
	svc := NewService(conflictStore{database.NewMemoryStore(0)}, zap.NewNop(), WithRecorder(rec))

	_, err := svc.AddItem(context.Background(), "q1", "p1", 1, decimal.NewFromInt(1))
	assert.ErrorIs(t, err, ErrConflictRetryExhausted)

	_, err = svc.Confirm(context.Background(), "q1", "u1")
	assert.ErrorIs(t, err, ErrConflictRetryExhausted)

	assert.Equal(t, 1, rec.failuresFor("add_item/conflict"))
	assert.Equal(t, 1, rec.failuresFor("confirm/conflict"))
}
