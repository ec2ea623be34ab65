package quotations

import (
	"context"
	"errors"
	"strings"
	"time"

	"repuestos-backoffice/database"
	"repuestos-backoffice/events"
	"repuestos-backoffice/models"

	"go.uber.org/zap"
)

// Recorder receives business metrics. metrics.Metrics implements it.
type Recorder interface {
	QuotationConfirmed(total float64)
	QuotationCancelled()
	OperationFailed(operation, reason string)
}

type nopRecorder struct{}

func (nopRecorder) QuotationConfirmed(float64)     {}
func (nopRecorder) QuotationCancelled()            {}
func (nopRecorder) OperationFailed(string, string) {}

// Service manages quotations, their line items and their conversion into
// sales. Every mutation runs in a single store transaction.
type Service struct {
	store     database.Store
	log       *zap.Logger
	publisher events.Publisher
	recorder  Recorder
	producer  string
	now       func() time.Time
}

type Option func(*Service)

func WithPublisher(p events.Publisher) Option {
	return func(s *Service) { s.publisher = p }
}

func WithRecorder(r Recorder) Option {
	return func(s *Service) { s.recorder = r }
}

// WithProducer sets the producer name stamped on published events.
func WithProducer(name string) Option {
	return func(s *Service) { s.producer = name }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(store database.Store, log *zap.Logger, opts ...Option) *Service {
	s := &Service{
		store:     store,
		log:       log,
		publisher: events.Nop{},
		recorder:  nopRecorder{},
		producer:  "repuestos-backoffice",
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type CreateInput struct {
	Number        string
	ClientID      string
	EmployeeID    string
	Plate         string
	PaymentMethod models.PaymentMethod
	Notes         string
}

// Create opens a pending quotation with no lines.
func (s *Service) Create(ctx context.Context, in CreateInput) (*models.Quotation, error) {
	if in.PaymentMethod != "" && !in.PaymentMethod.Valid() {
		return nil, s.fail("create", "", invalidPayment(in.PaymentMethod))
	}

	var created models.Quotation
	err := s.store.RunTransaction(ctx, func(ctx context.Context, tx database.Tx) error {
		now := s.now()
		q := models.Quotation{
			ID:            s.store.NewID(),
			Number:        strings.TrimSpace(in.Number),
			Plate:         normalizePlate(in.Plate),
			PaymentMethod: in.PaymentMethod,
			Notes:         in.Notes,
			Status:        models.QuotationPending,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		client, err := resolveClient(tx, in.ClientID)
		if err != nil {
			return err
		}
		employee, err := resolveEmployee(tx, in.EmployeeID)
		if err != nil {
			return err
		}
		q.ClientID, q.ClientName, q.ClientDNI = client.ID, client.Name, client.DNI
		q.EmployeeID, q.EmployeeName, q.EmployeeRole = employee.ID, employee.Name, employee.Role
		created = q
		return tx.Set(quotationPath(q.ID), q)
	})
	if err != nil {
		return nil, s.fail("create", "", err)
	}
	s.log.Info("quotation created", zap.String("quotation_id", created.ID))
	return &created, nil
}

func (s *Service) Get(ctx context.Context, id string) (*models.Quotation, error) {
	if !validID(id) {
		return nil, quotationNotFound(id)
	}
	snap, err := s.store.Get(ctx, quotationPath(id))
	if errors.Is(err, database.ErrNotFound) {
		return nil, quotationNotFound(id)
	}
	if err != nil {
		return nil, err
	}
	var q models.Quotation
	if err := snap.Decode(&q); err != nil {
		return nil, err
	}
	return &q, nil
}

// Items returns the lines of a quotation in insertion order.
func (s *Service) Items(ctx context.Context, id string) ([]models.QuotationItem, error) {
	if !validID(id) {
		return nil, quotationNotFound(id)
	}
	snaps, err := s.store.Query(ctx, itemsQuery(id))
	if err != nil {
		return nil, err
	}
	return decodeItems(snaps)
}

// Watch calls fn with the quotation every time it changes, and with nil
// while it does not exist. The returned func stops watching.
func (s *Service) Watch(ctx context.Context, id string, fn func(*models.Quotation), onErr func(error)) (func(), error) {
	if !validID(id) {
		return nil, quotationNotFound(id)
	}
	return s.store.Subscribe(ctx, database.Query{Doc: quotationPath(id)}, func(snaps []database.Snapshot) {
		if len(snaps) == 0 {
			fn(nil)
			return
		}
		var q models.Quotation
		if err := snaps[0].Decode(&q); err != nil {
			if onErr != nil {
				onErr(err)
			}
			return
		}
		fn(&q)
	}, onErr)
}

// WatchItems calls fn with the full line list after every change to it.
func (s *Service) WatchItems(ctx context.Context, id string, fn func([]models.QuotationItem), onErr func(error)) (func(), error) {
	if !validID(id) {
		return nil, quotationNotFound(id)
	}
	return s.store.Subscribe(ctx, itemsQuery(id), func(snaps []database.Snapshot) {
		items, err := decodeItems(snaps)
		if err != nil {
			if onErr != nil {
				onErr(err)
			}
			return
		}
		fn(items)
	}, onErr)
}

// fail logs and counts a failed operation and returns err unchanged.
func (s *Service) fail(op, quotationID string, err error) error {
	r := reason(err)
	s.recorder.OperationFailed(op, r)
	fields := []zap.Field{zap.String("operation", op), zap.String("quotation_id", quotationID), zap.Error(err)}
	if isBusiness(err) {
		s.log.Warn("quotation operation rejected", fields...)
	} else {
		s.log.Error("quotation operation failed", fields...)
	}
	return err
}

func quotationPath(id string) string {
	return database.Doc(models.CollQuotations, id)
}

func itemPath(quotationID, itemID string) string {
	return database.Doc(models.CollQuotations, quotationID, models.CollQuotationItems, itemID)
}

func itemsQuery(quotationID string) database.Query {
	return database.Query{
		Collection: database.Collection(models.CollQuotations, quotationID, models.CollQuotationItems),
		OrderBy:    "createdAt",
	}
}

func validID(id string) bool {
	return id != "" && !strings.Contains(id, "/")
}

func decodeItems(snaps []database.Snapshot) ([]models.QuotationItem, error) {
	items := make([]models.QuotationItem, len(snaps))
	for i, snap := range snaps {
		if err := snap.Decode(&items[i]); err != nil {
			return nil, err
		}
	}
	return items, nil
}

// loadQuotation reads the quotation inside tx.
func loadQuotation(tx database.Tx, id string) (*models.Quotation, error) {
	if !validID(id) {
		return nil, quotationNotFound(id)
	}
	snap, err := tx.Get(quotationPath(id))
	if errors.Is(err, database.ErrNotFound) {
		return nil, quotationNotFound(id)
	}
	if err != nil {
		return nil, err
	}
	var q models.Quotation
	if err := snap.Decode(&q); err != nil {
		return nil, err
	}
	return &q, nil
}

// loadOpen reads the quotation inside tx and rejects it when it is
// confirmed or cancelled.
func loadOpen(tx database.Tx, id string) (*models.Quotation, error) {
	q, err := loadQuotation(tx, id)
	if err != nil {
		return nil, err
	}
	if !q.Status.Open() {
		return nil, invalidState(q)
	}
	return q, nil
}

func loadItem(tx database.Tx, quotationID, itemID string) (*models.QuotationItem, error) {
	if !validID(itemID) {
		return nil, itemNotFound(itemID)
	}
	snap, err := tx.Get(itemPath(quotationID, itemID))
	if errors.Is(err, database.ErrNotFound) {
		return nil, itemNotFound(itemID)
	}
	if err != nil {
		return nil, err
	}
	var item models.QuotationItem
	if err := snap.Decode(&item); err != nil {
		return nil, err
	}
	return &item, nil
}

// loadProduct reads a product inside tx; missing is reported with missing(id).
func loadProduct(tx database.Tx, id string, missing func(string) error) (*models.Product, error) {
	if !validID(id) {
		return nil, missing(id)
	}
	snap, err := tx.Get(database.Doc(models.CollProducts, id))
	if errors.Is(err, database.ErrNotFound) {
		return nil, missing(id)
	}
	if err != nil {
		return nil, err
	}
	var p models.Product
	if err := snap.Decode(&p); err != nil {
		return nil, err
	}
	return &p, nil
}
