package quotations

import (
	"math/rand"
	"sync"
	"testing"

	"repuestos-backoffice/database"
	"repuestos-backoffice/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddItemMergesSameProduct(t *testing.T) {
	f := newFixture(t, 0)
	f.product(t, "x", "Product X", 50, 9.99)
	q := f.quotation(t)

	res := f.add(t, q.ID, "x", 3, "9.99")
	assert.Equal(t, 29.97, res.Quotation.Total)
	assert.Equal(t, 29.97, res.Item.Subtotal)

	res = f.add(t, q.ID, "x", 1, "9.99")
	assert.Equal(t, 4, res.Item.Quantity)
	assert.Equal(t, 39.96, res.Item.Subtotal)
	assert.Equal(t, 39.96, res.Quotation.Total)

	items, err := f.svc.Items(f.ctx, q.ID)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, 4, items[0].Quantity)
	assert.Equal(t, 39.96, items[0].Subtotal)

	stored, err := f.svc.Get(f.ctx, q.ID)
	require.NoError(t, err)
	assert.Equal(t, 39.96, stored.Total)
	assert.True(t, stored.UpdatedAt.After(q.UpdatedAt))
}

func TestAddItemLatestPriceAndSnapshotWin(t *testing.T) {
	f := newFixture(t, 0)
	f.product(t, "p1", "Espejo", 5, 200)
	q := f.quotation(t)
	first := f.add(t, q.ID, "p1", 1, "200")
	assert.Equal(t, "Negro", first.Item.Color)
	assert.Equal(t, "Espejo", first.Item.ProductName)

	require.NoError(t, f.store.Update(f.ctx, database.Doc(models.CollProducts, "p1"), database.Fields{
		"color": "Gris",
		"name":  "Espejo retrovisor",
	}))

	res := f.add(t, q.ID, "p1", 2, "180.50")
	assert.Equal(t, first.Item.ID, res.Item.ID)
	assert.Equal(t, 3, res.Item.Quantity)
	assert.Equal(t, 180.50, res.Item.UnitPrice)
	assert.Equal(t, 541.50, res.Item.Subtotal)
	assert.Equal(t, "Gris", res.Item.Color)
	assert.Equal(t, "Espejo retrovisor", res.Item.ProductName)
	assert.Equal(t, 541.50, res.Quotation.Total)
	assert.True(t, first.Item.CreatedAt.Equal(res.Item.CreatedAt))
}

func TestAddItemDistinctProducts(t *testing.T) {
	f := newFixture(t, 0)
	f.product(t, "a", "A", 5, 10)
	f.product(t, "b", "B", 5, 5)
	q := f.quotation(t)

	f.add(t, q.ID, "a", 2, "10.00")
	res := f.add(t, q.ID, "b", 3, "5.10")
	assert.Equal(t, 35.30, res.Quotation.Total)

	items, err := f.svc.Items(f.ctx, q.ID)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "a", items[0].ProductID)
	assert.Equal(t, "b", items[1].ProductID)
	assert.Equal(t, "C-b", items[1].Code)
}

func TestAddItemNotFound(t *testing.T) {
	f := newFixture(t, 0)
	f.product(t, "p1", "Filtro", 5, 10)
	q := f.quotation(t)

	_, err := f.svc.AddItem(f.ctx, "missing", "p1", 1, decimal.NewFromInt(10))
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = f.svc.AddItem(f.ctx, q.ID, "ghost", 1, decimal.NewFromInt(10))
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Contains(t, err.Error(), "ghost")

	items, err := f.svc.Items(f.ctx, q.ID)
	require.NoError(t, err)
	assert.Empty(t, items)
	assert.Equal(t, 2, f.rec.failuresFor("add_item/not_found"))
}

func TestUpdateItem(t *testing.T) {
	f := newFixture(t, 0)
	f.product(t, "a", "A", 5, 10)
	f.product(t, "b", "B", 5, 5)
	q := f.quotation(t)
	a := f.add(t, q.ID, "a", 2, "10.00").Item
	f.add(t, q.ID, "b", 1, "5.00")

	res, err := f.svc.UpdateItem(f.ctx, q.ID, a.ID, 3, decimal.RequireFromString("7.33"))
	require.NoError(t, err)
	assert.Equal(t, 3, res.Item.Quantity)
	assert.Equal(t, 7.33, res.Item.UnitPrice)
	assert.Equal(t, 21.99, res.Item.Subtotal)
	assert.Equal(t, 26.99, res.Quotation.Total)
	f.assertTotalMatchesLines(t, q.ID)

	_, err = f.svc.UpdateItem(f.ctx, q.ID, "ghost", 1, decimal.NewFromInt(1))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRemoveItemUsesCurrentSubtotal(t *testing.T) {
	f := newFixture(t, 0)
	f.product(t, "a", "A", 5, 10)
	f.product(t, "b", "B", 5, 5)
	q := f.quotation(t)
	a := f.add(t, q.ID, "a", 2, "10.00").Item
	f.add(t, q.ID, "b", 1, "5.00")

	// The caller's copy of line a is now stale.
	_, err := f.svc.UpdateItem(f.ctx, q.ID, a.ID, 4, decimal.NewFromInt(10))
	require.NoError(t, err)

	res, err := f.svc.RemoveItem(f.ctx, q.ID, a.ID)
	require.NoError(t, err)
	assert.Equal(t, 5.0, res.Quotation.Total)
	assert.Nil(t, res.Item)

	items, err := f.svc.Items(f.ctx, q.ID)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "b", items[0].ProductID)
	f.assertTotalMatchesLines(t, q.ID)

	_, err = f.svc.RemoveItem(f.ctx, q.ID, a.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTotalMatchesLinesAfterEveryOperation(t *testing.T) {
	f := newFixture(t, 0)
	prices := []string{"9.99", "0.10", "12.35", "1.01", "100.00", "3.33"}
	for i := range prices {
		id := string(rune('a' + i))
		f.product(t, id, "P"+id, 100, 1)
	}
	q := f.quotation(t)

	rng := rand.New(rand.NewSource(7))
	for step := 0; step < 60; step++ {
		items, err := f.svc.Items(f.ctx, q.ID)
		require.NoError(t, err)

		switch op := rng.Intn(3); {
		case op == 0 || len(items) == 0:
			i := rng.Intn(len(prices))
			f.add(t, q.ID, string(rune('a'+i)), 1+rng.Intn(5), prices[rng.Intn(len(prices))])
		case op == 1:
			it := items[rng.Intn(len(items))]
			_, err := f.svc.UpdateItem(f.ctx, q.ID, it.ID, 1+rng.Intn(9), decimal.RequireFromString(prices[rng.Intn(len(prices))]))
			require.NoError(t, err)
		default:
			it := items[rng.Intn(len(items))]
			_, err := f.svc.RemoveItem(f.ctx, q.ID, it.ID)
			require.NoError(t, err)
		}
		f.assertTotalMatchesLines(t, q.ID)
	}
}

func TestConcurrentAddsAreNotLost(t *testing.T) {
	f := newFixture(t, 100)
	f.product(t, "p1", "Bujía", 100, 38.5)
	q := f.quotation(t)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.AddItem(f.ctx, q.ID, "p1", 1, decimal.RequireFromString("38.50"))
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	items, err := f.svc.Items(f.ctx, q.ID)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, 10, items[0].Quantity)

	got, err := f.svc.Get(f.ctx, q.ID)
	require.NoError(t, err)
	assert.Equal(t, 385.0, got.Total)
}
