package history

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"repuestos-backoffice/database"
	"repuestos-backoffice/models"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type Period string

const (
	PeriodAll    Period = "all"
	PeriodDay    Period = "day"
	PeriodWeek   Period = "week"
	PeriodMonth  Period = "month"
	PeriodYear   Period = "year"
	PeriodCustom Period = "custom"
)

const DefaultPerPage = 10

var ErrInvalidFilter = errors.New("filtro de período inválido")

// customFloor is where a custom range starts when From is not given.
var customFloor = time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)

type Filter struct {
	Period  Period
	From    time.Time // custom only, inclusive day
	To      time.Time // custom only, inclusive day
	Page    int
	PerPage int
}

// Page is one page of a client's purchases. PeriodTotal and TotalCount
// cover every sale in the period, not only the page.
type Page struct {
	Sales       []models.SaleWithItems `json:"sales"`
	PeriodTotal float64                `json:"periodTotal"`
	TotalCount  int                    `json:"totalCount"`
	TotalPages  int                    `json:"totalPages"`
	Page        int                    `json:"page"`
	PerPage     int                    `json:"perPage"`
}

type Service struct {
	store   database.Store
	log     *zap.Logger
	now     func() time.Time
	loc     *time.Location
	perPage int
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithLocation sets the time zone in which days, weeks, months and years
// start.
func WithLocation(loc *time.Location) Option {
	return func(s *Service) { s.loc = loc }
}

func WithPerPage(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.perPage = n
		}
	}
}

func NewService(store database.Store, log *zap.Logger, opts ...Option) *Service {
	s := &Service{store: store, log: log, now: time.Now, loc: time.Local, perPage: DefaultPerPage}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Location is the time zone periods are computed in. Dates of a custom
// range should be parsed in it.
func (s *Service) Location() *time.Location {
	return s.loc
}

// ListClientPurchases returns the client's sales, newest first, with their
// lines, filtered by period and paginated.
func (s *Service) ListClientPurchases(ctx context.Context, clientID string, f Filter) (*Page, error) {
	if clientID == "" || strings.Contains(clientID, "/") {
		return nil, fmt.Errorf("%w: cliente %q", ErrInvalidFilter, clientID)
	}
	start, end, err := s.bounds(f)
	if err != nil {
		return nil, err
	}
	snaps, err := s.store.Query(ctx, salesQuery(clientID))
	if err != nil {
		return nil, err
	}
	return s.build(ctx, snaps, start, end, f)
}

// WatchClientPurchases calls fn with a fresh page every time the client's
// sales change.
func (s *Service) WatchClientPurchases(ctx context.Context, clientID string, f Filter, fn func(*Page), onErr func(error)) (func(), error) {
	if clientID == "" || strings.Contains(clientID, "/") {
		return nil, fmt.Errorf("%w: cliente %q", ErrInvalidFilter, clientID)
	}
	start, end, err := s.bounds(f)
	if err != nil {
		return nil, err
	}
	return s.store.Subscribe(ctx, salesQuery(clientID), func(snaps []database.Snapshot) {
		page, err := s.build(ctx, snaps, start, end, f)
		if err != nil {
			s.log.Warn("purchase history refresh failed", zap.String("client_id", clientID), zap.Error(err))
			if onErr != nil {
				onErr(err)
			}
			return
		}
		fn(page)
	}, onErr)
}

func salesQuery(clientID string) database.Query {
	return database.Query{
		Collection: models.CollSales,
		Where:      []database.Filter{{Field: "clientId", Value: clientID}},
		OrderBy:    "saleDate",
		Descending: true,
	}
}

func (s *Service) build(ctx context.Context, snaps []database.Snapshot, start, end time.Time, f Filter) (*Page, error) {
	var sales []models.Sale
	total := decimal.Zero
	for _, snap := range snaps {
		var sale models.Sale
		if err := snap.Decode(&sale); err != nil {
			return nil, err
		}
		if !start.IsZero() && (sale.SaleDate.IsZero() || sale.SaleDate.Before(start) || sale.SaleDate.After(end)) {
			continue
		}
		sales = append(sales, sale)
		total = total.Add(decimal.NewFromFloat(sale.Total))
	}

	perPage := f.PerPage
	if perPage <= 0 {
		perPage = s.perPage
	}
	page := f.Page
	if page <= 0 {
		page = 1
	}
	from := (page - 1) * perPage
	to := from + perPage
	if from > len(sales) {
		from = len(sales)
	}
	if to > len(sales) {
		to = len(sales)
	}

	out := &Page{
		Sales:       make([]models.SaleWithItems, 0, to-from),
		PeriodTotal: total.Round(2).InexactFloat64(),
		TotalCount:  len(sales),
		TotalPages:  (len(sales) + perPage - 1) / perPage,
		Page:        page,
		PerPage:     perPage,
	}
	for _, sale := range sales[from:to] {
		items, err := s.items(ctx, sale.ID)
		if err != nil {
			return nil, err
		}
		out.Sales = append(out.Sales, models.SaleWithItems{Sale: sale, Items: items})
	}
	return out, nil
}

func (s *Service) items(ctx context.Context, saleID string) ([]models.SaleItem, error) {
	snaps, err := s.store.Query(ctx, database.Query{
		Collection: database.Collection(models.CollSales, saleID, models.CollSaleItems),
		OrderBy:    "createdAt",
	})
	if err != nil {
		return nil, err
	}
	items := make([]models.SaleItem, len(snaps))
	for i, snap := range snaps {
		if err := snap.Decode(&items[i]); err != nil {
			return nil, err
		}
	}
	return items, nil
}

// bounds returns the inclusive range of a period. A zero start means no
// date filter.
func (s *Service) bounds(f Filter) (time.Time, time.Time, error) {
	now := s.now().In(s.loc)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, s.loc)
	endOf := func(day time.Time) time.Time { return day.AddDate(0, 0, 1).Add(-time.Nanosecond) }

	switch f.Period {
	case "", PeriodAll:
		return time.Time{}, time.Time{}, nil
	case PeriodDay:
		return today, endOf(today), nil
	case PeriodWeek:
		start := today.AddDate(0, 0, -int(today.Weekday()))
		return start, endOf(start.AddDate(0, 0, 6)), nil
	case PeriodMonth:
		start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, s.loc)
		return start, start.AddDate(0, 1, 0).Add(-time.Nanosecond), nil
	case PeriodYear:
		start := time.Date(now.Year(), time.January, 1, 0, 0, 0, 0, s.loc)
		return start, start.AddDate(1, 0, 0).Add(-time.Nanosecond), nil
	case PeriodCustom:
		start, end := customFloor, now
		if !f.From.IsZero() {
			from := f.From.In(s.loc)
			start = time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, s.loc)
		}
		if !f.To.IsZero() {
			to := f.To.In(s.loc)
			end = endOf(time.Date(to.Year(), to.Month(), to.Day(), 0, 0, 0, 0, s.loc))
		}
		if end.Before(start) {
			return time.Time{}, time.Time{}, fmt.Errorf("%w: la fecha final es anterior a la inicial", ErrInvalidFilter)
		}
		return start, end, nil
	}
	return time.Time{}, time.Time{}, fmt.Errorf("%w: %q", ErrInvalidFilter, f.Period)
}
