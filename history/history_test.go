package history

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"repuestos-backoffice/database"
	"repuestos-backoffice/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// Wednesday 2026-03-11 15:00 UTC.
var now = time.Date(2026, 3, 11, 15, 0, 0, 0, time.UTC)

func newService(store database.Store) *Service {
	return NewService(store, zap.NewNop(),
		WithClock(func() time.Time { return now }),
		WithLocation(time.UTC),
	)
}

func addSale(t *testing.T, store database.Store, id, clientID string, date time.Time, total float64, lines int) {
	t.Helper()
	ctx := context.Background()
	sale := models.Sale{ID: id, ClientID: clientID, ClientName: "Cliente", Total: total, SaleDate: date, Status: models.SaleCompleted}
	require.NoError(t, store.Set(ctx, database.Doc(models.CollSales, id), sale))
	for i := 0; i < lines; i++ {
		item := models.SaleItem{ProductID: fmt.Sprintf("p%d", i), Quantity: 1, CreatedAt: date.Add(time.Duration(i) * time.Second)}
		require.NoError(t, store.Set(ctx, database.Doc(models.CollSales, id, models.CollSaleItems, fmt.Sprintf("i%d", i)), item))
	}
}

func seed(t *testing.T) *database.MemoryStore {
	store := database.NewMemoryStore(0)
	addSale(t, store, "today", "c1", now.Add(-2*time.Hour), 10.10, 2)
	addSale(t, store, "sunday", "c1", time.Date(2026, 3, 8, 9, 0, 0, 0, time.UTC), 20.20, 1)
	addSale(t, store, "lastweek", "c1", time.Date(2026, 3, 7, 23, 0, 0, 0, time.UTC), 30.30, 1)
	addSale(t, store, "february", "c1", time.Date(2026, 2, 14, 12, 0, 0, 0, time.UTC), 40.40, 1)
	addSale(t, store, "lastyear", "c1", time.Date(2025, 12, 31, 23, 59, 0, 0, time.UTC), 50.50, 1)
	addSale(t, store, "other", "c2", now.Add(-time.Hour), 99, 1)
	return store
}

func ids(p *Page) []string {
	out := make([]string, len(p.Sales))
	for i, s := range p.Sales {
		out[i] = s.ID
	}
	return out
}

func TestListClientPurchasesByPeriod(t *testing.T) {
	svc := newService(seed(t))

	tests := []struct {
		name   string
		filter Filter
		want   []string
		total  float64
	}{
		{"all", Filter{}, []string{"today", "sunday", "lastweek", "february", "lastyear"}, 151.50},
		{"day", Filter{Period: PeriodDay}, []string{"today"}, 10.10},
		{"week starts on sunday", Filter{Period: PeriodWeek}, []string{"today", "sunday"}, 30.30},
		{"month", Filter{Period: PeriodMonth}, []string{"today", "sunday", "lastweek"}, 60.60},
		{"year", Filter{Period: PeriodYear}, []string{"today", "sunday", "lastweek", "february"}, 101.00},
		{"custom range", Filter{
			Period: PeriodCustom,
			From:   time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
			To:     time.Date(2026, 3, 7, 0, 0, 0, 0, time.UTC),
		}, []string{"lastweek", "february"}, 70.70},
		{"custom open start", Filter{Period: PeriodCustom, To: time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC)}, []string{"lastyear"}, 50.50},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page, err := svc.ListClientPurchases(context.Background(), "c1", tt.filter)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ids(page))
			assert.Equal(t, tt.total, page.PeriodTotal)
			assert.Equal(t, len(tt.want), page.TotalCount)
		})
	}
}

func TestListClientPurchasesLoadsItems(t *testing.T) {
	svc := newService(seed(t))

	page, err := svc.ListClientPurchases(context.Background(), "c1", Filter{Period: PeriodDay})
	require.NoError(t, err)
	require.Len(t, page.Sales, 1)
	require.Len(t, page.Sales[0].Items, 2)
	assert.Equal(t, "p0", page.Sales[0].Items[0].ProductID)
	assert.Equal(t, "p1", page.Sales[0].Items[1].ProductID)
}

func TestListClientPurchasesPagination(t *testing.T) {
	svc := newService(seed(t))
	ctx := context.Background()

	page, err := svc.ListClientPurchases(ctx, "c1", Filter{PerPage: 2, Page: 2})
	require.NoError(t, err)
	assert.Equal(t, []string{"lastweek", "february"}, ids(page))
	assert.Equal(t, 5, page.TotalCount)
	assert.Equal(t, 3, page.TotalPages)
	assert.Equal(t, 151.50, page.PeriodTotal)

	page, err = svc.ListClientPurchases(ctx, "c1", Filter{PerPage: 2, Page: 3})
	require.NoError(t, err)
	assert.Equal(t, []string{"lastyear"}, ids(page))

	page, err = svc.ListClientPurchases(ctx, "c1", Filter{PerPage: 2, Page: 9})
	require.NoError(t, err)
	assert.Empty(t, page.Sales)

	page, err = svc.ListClientPurchases(ctx, "c1", Filter{})
	require.NoError(t, err)
	assert.Equal(t, 1, page.Page)
	assert.Equal(t, DefaultPerPage, page.PerPage)
	assert.Equal(t, 1, page.TotalPages)
}

func TestListClientPurchasesNoSales(t *testing.T) {
	svc := newService(seed(t))
	page, err := svc.ListClientPurchases(context.Background(), "nobody", Filter{Period: PeriodMonth})
	require.NoError(t, err)
	assert.Empty(t, page.Sales)
	assert.Zero(t, page.TotalPages)
	assert.Zero(t, page.PeriodTotal)
}

func TestListClientPurchasesInvalidFilter(t *testing.T) {
	svc := newService(seed(t))
	ctx := context.Background()

	_, err := svc.ListClientPurchases(ctx, "c1", Filter{Period: "decade"})
	assert.ErrorIs(t, err, ErrInvalidFilter)

	_, err = svc.ListClientPurchases(ctx, "c1", Filter{
		Period: PeriodCustom,
		From:   time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
		To:     time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
	})
	assert.ErrorIs(t, err, ErrInvalidFilter)

	_, err = svc.ListClientPurchases(ctx, "", Filter{})
	assert.ErrorIs(t, err, ErrInvalidFilter)
}

func TestWatchClientPurchases(t *testing.T) {
	store := seed(t)
	svc := newService(store)

	var mu sync.Mutex
	var counts []int
	stop, err := svc.WatchClientPurchases(context.Background(), "c1", Filter{Period: PeriodDay}, func(p *Page) {
		mu.Lock()
		defer mu.Unlock()
		counts = append(counts, p.TotalCount)
	}, nil)
	require.NoError(t, err)

	addSale(t, store, "later", "c1", now.Add(-time.Minute), 5, 0)
	stop()
	addSale(t, store, "after-stop", "c1", now.Add(-time.Minute), 5, 0)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []int{1, 2}, counts)
}
