package pricing

import (
	"encoding/json"
	"math/rand"
	"testing"

	"github.com/fjod/cafe_cart/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pct(v int) *int { return &v }

func TestEffectivePrice(t *testing.T) {
	tests := []struct {
		name     string
		item     domain.MenuItem
		expected int64
	}{
		{"no discount", domain.MenuItem{ID: 1, PriceCents: 1000}, 1000},
		{"zero discount", domain.MenuItem{ID: 1, PriceCents: 1000, DiscountPercent: pct(0)}, 1000},
		{"quarter off", domain.MenuItem{ID: 1, PriceCents: 1000, DiscountPercent: pct(25)}, 750},
		{"remainder discarded", domain.MenuItem{ID: 1, PriceCents: 999, DiscountPercent: pct(15)}, 849},
		{"free", domain.MenuItem{ID: 1, PriceCents: 450, DiscountPercent: pct(100)}, 0},
		{"negative ignored", domain.MenuItem{ID: 1, PriceCents: 450, DiscountPercent: pct(-5)}, 450},
		{"above hundred ignored", domain.MenuItem{ID: 1, PriceCents: 450, DiscountPercent: pct(120)}, 450},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, EffectivePrice(tt.item))
		})
	}
}

func TestEffectivePrice_DiscountAlwaysLowersPrice(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 5000; i++ {
		item := domain.MenuItem{
			ID:              int64(i + 1),
			PriceCents:      int64(rng.Intn(100000) + 1),
			DiscountPercent: pct(rng.Intn(100) + 1),
		}
		require.Less(t, EffectivePrice(item), item.PriceCents, "item %+v", item)

		item.DiscountPercent = nil
		require.Equal(t, item.PriceCents, EffectivePrice(item))
	}
}

func TestLineTotal_DiscountedQuantity(t *testing.T) {
	item := domain.MenuItem{ID: 1, PriceCents: 1000, DiscountPercent: pct(25)}
	require.Equal(t, int64(750), EffectivePrice(item))

	line := domain.CartLine{MenuItemID: 1, Quantity: 2, PriceCents: 1000, DiscountPercent: pct(25)}
	assert.Equal(t, int64(750), LinePrice(line))
	assert.Equal(t, int64(1500), LineTotal(line))
}

func TestCartTotal_EqualsSumOfLineTotals(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for round := 0; round < 500; round++ {
		n := rng.Intn(12)
		lines := make([]domain.CartLine, 0, n)
		var expected int64
		for i := 0; i < n; i++ {
			line := domain.CartLine{
				MenuItemID: int64(i + 1),
				Quantity:   rng.Intn(20) + 1,
				PriceCents: int64(rng.Intn(5000)),
			}
			if rng.Intn(2) == 0 {
				line.DiscountPercent = pct(rng.Intn(101))
			}
			expected += LineTotal(line)
			lines = append(lines, line)
		}
		require.Equal(t, expected, CartTotal(lines))
	}
}

func TestCartTotal_Empty(t *testing.T) {
	assert.Equal(t, int64(0), CartTotal(nil))
}

func TestSummarize(t *testing.T) {
	lines := []domain.CartLine{
		{MenuItemID: 1, Quantity: 2, PriceCents: 1000, DiscountPercent: pct(25)},
		{MenuItemID: 2, Quantity: 1, PriceCents: 350},
	}

	s := Summarize(lines)
	assert.Equal(t, int64(2350), s.SubtotalCents)
	assert.Equal(t, int64(1850), s.TotalCents)
	assert.Equal(t, int64(500), s.DiscountCents)
	assert.Equal(t, 3, s.ItemCount)
}

func TestAnnotate(t *testing.T) {
	menu := &domain.Menu{Categories: []domain.Category{{
		ID:   1,
		Name: "Coffee",
		Items: []domain.MenuItem{
			{ID: 1, Name: "Latte", PriceCents: 400, DiscountPercent: pct(50)},
			{ID: 2, Name: "Mocha", PriceCents: 500},
		},
	}}}

	priced := Annotate(menu)
	require.Len(t, priced, 1)
	require.Len(t, priced[0].Items, 2)
	assert.Equal(t, int64(200), priced[0].Items[0].EffectivePriceCents)
	assert.True(t, priced[0].Items[0].HasDiscount)
	assert.Equal(t, int64(500), priced[0].Items[1].EffectivePriceCents)
	assert.False(t, priced[0].Items[1].HasDiscount)

	assert.Equal(t, "/api/images/gallery-special-event.webp", priced[0].Items[0].ImageURL)

	// source menu untouched
	assert.Equal(t, int64(400), menu.Categories[0].Items[0].PriceCents)
	assert.Empty(t, Annotate(nil))
}

func TestPricedItem_DecodesWhatItEncodes(t *testing.T) {
	item := NewPricedItem(domain.MenuItem{ID: 4, Name: "Scone", PriceCents: 300, DiscountPercent: pct(10), Image: "scone.webp"})

	data, err := json.Marshal(item)
	require.NoError(t, err)
	var decoded PricedItem
	require.NoError(t, json.Unmarshal(data, &decoded))

	assert.Equal(t, int64(270), decoded.EffectivePriceCents)
	assert.True(t, decoded.HasDiscount)
	assert.Equal(t, "/api/images/scone.webp", decoded.ImageURL)
	assert.False(t, decoded.Available)
}
