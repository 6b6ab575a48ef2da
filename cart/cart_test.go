package cart

import (
	"math"
	"testing"

	"telegram-shop-bot/catalog"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func price(v float64) *float64 { return &v }

func TestClamp_Bounds(t *testing.T) {
	inputs := []int{math.MinInt32, -5, 0, 1, 2, 50, 98, 99, 100, 1000, math.MaxInt32}
	for _, n := range inputs {
		c := Clamp(n)
		assert.GreaterOrEqual(t, c, MinQty, "clamp(%d)", n)
		assert.LessOrEqual(t, c, MaxQty, "clamp(%d)", n)
		assert.LessOrEqual(t, Clamp(c+1), MaxQty)
		assert.GreaterOrEqual(t, Clamp(c-1), MinQty)
	}
}

func TestClamp_IdempotentAtBoundaries(t *testing.T) {
	assert.Equal(t, 1, Clamp(Clamp(1)-1))
	assert.Equal(t, 99, Clamp(Clamp(99)+1))
	assert.Equal(t, 42, Clamp(42))
}

func TestNewLine_SnapshotsProduct(t *testing.T) {
	p := catalog.Product{ID: "p1", NameUz: "Tog' asali", NameRu: "Горный мёд", Price1: price(350000)}

	line := NewLine(p, "ru", 2)
	assert.Equal(t, "p1", line.ProductID)
	assert.Equal(t, "Горный мёд", line.Name)
	assert.Equal(t, 1.0, line.Kg)
	assert.Equal(t, int64(350000), line.UnitPrice)
	assert.Equal(t, int64(700000), line.Price)
	assert.Equal(t, int64(700000), line.Total())

	// later catalog edits do not leak into the line
	*p.Price1 = 1
	assert.Equal(t, int64(700000), line.Total())
}

func TestCart_TotalInvariant(t *testing.T) {
	products := []catalog.Product{
		{ID: "p1", NameUz: "a", Price1: price(350000)},
		{ID: "p2", NameUz: "b", PricePerKg: price(150000)},
		{ID: "p3", NameUz: "c"},
	}

	var c Cart
	require.True(t, c.Empty())
	for i := 0; i < 30; i++ {
		c.Add(NewLine(products[i%len(products)], "uz", Clamp(i*7)))

		var want int64
		for _, l := range c.Lines {
			want += int64(l.Qty) * l.UnitPrice
		}
		assert.Equal(t, want, c.Total())
	}

	snap := c.Snapshot()
	c.Clear()
	assert.True(t, c.Empty())
	assert.Equal(t, int64(0), c.Total())
	assert.Len(t, snap, 30)
}
