package view

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rewired-gh/tokenpulse/internal/models"
	"github.com/rewired-gh/tokenpulse/internal/tokens"
)

func ids(tokens []models.Token) []string {
	out := make([]string, len(tokens))
	for i, t := range tokens {
		out[i] = t.ID
	}
	return out
}

func sample() []models.Token {
	return []models.Token{
		{ID: "1", Symbol: "PEPE", Name: "PEPE Token", Price: 0.5, Volume24h: 300, PriceChange24h: 10, MarketCap: 5, Category: models.CategoryNewPairs},
		{ID: "2", Symbol: "WOJAK", Name: "WOJAK Token", Price: 1.0, Volume24h: 100, PriceChange24h: -4, MarketCap: 9, Category: models.CategoryNewPairs},
		{ID: "3", Symbol: "DOGE", Name: "Doge Classic", Price: 2.0, Volume24h: 200, PriceChange24h: 0, MarketCap: 1, Category: models.CategoryNewPairs},
		{ID: "4", Symbol: "SHIB", Name: "Shiba", Price: 3.0, Volume24h: 900, PriceChange24h: 25, MarketCap: 7, Category: models.CategoryMigrated},
		{ID: "5", Symbol: "BONK", Name: "Bonk pepe fork", Price: 4.0, Volume24h: 50, PriceChange24h: -20, MarketCap: 3, Category: models.CategoryFinalStretch},
	}
}

func TestFilter_EmptyCriteriaReturnsInput(t *testing.T) {
	in := sample()
	out := Filter(in, models.FilterCriteria{})
	assert.Equal(t, in, out)
}

func TestFilter_PriceLowerBoundOnly(t *testing.T) {
	in := []models.Token{
		{ID: "a", Price: 0.5},
		{ID: "b", Price: 1.0},
		{ID: "c", Price: 2.0},
	}
	out := Filter(in, models.FilterCriteria{PriceRange: models.AtLeast(1.0)})
	assert.Equal(t, []string{"b", "c"}, ids(out))
}

func TestFilter_SearchMatchesSymbolOrNameCaseInsensitive(t *testing.T) {
	out := Filter(sample(), models.FilterCriteria{SearchQuery: "PePe"})
	assert.Equal(t, []string{"1", "5"}, ids(out))

	out = Filter(sample(), models.FilterCriteria{SearchQuery: "classic"})
	assert.Equal(t, []string{"3"}, ids(out))
}

func TestFilter_Conjunction(t *testing.T) {
	c := models.FilterCriteria{
		SearchQuery: "token",
		VolumeRange: models.AtLeast(150),
		ChangeRange: models.Between(-5, 15),
	}
	assert.Equal(t, []string{"1"}, ids(Filter(sample(), c)))
}

func TestFilter_InclusiveBounds(t *testing.T) {
	c := models.FilterCriteria{ChangeRange: models.Between(-4, 10)}
	assert.Equal(t, []string{"1", "2", "3"}, ids(Filter(sample(), c)))
}

func TestFilter_InvertedRangeMatchesNothing(t *testing.T) {
	c := models.FilterCriteria{PriceRange: models.Between(3, 1)}
	assert.Empty(t, Filter(sample(), c))
}

func TestSort_VolumeDescWithinTab(t *testing.T) {
	out := Sort(sample(), models.CategoryNewPairs, models.SortSpec{Field: models.SortByVolume, Direction: models.Descending})
	require.Len(t, out, 3)
	vols := []float64{out[0].Volume24h, out[1].Volume24h, out[2].Volume24h}
	assert.Equal(t, []float64{300, 200, 100}, vols)
	for _, tok := range out {
		assert.Equal(t, models.CategoryNewPairs, tok.Category)
	}
}

func TestSort_Ascending(t *testing.T) {
	out := Sort(sample(), models.CategoryNewPairs, models.SortSpec{Field: models.SortByMarketCap, Direction: models.Ascending})
	assert.Equal(t, []string{"3", "1", "2"}, ids(out))
}

func TestSort_StableOnTies(t *testing.T) {
	in := []models.Token{
		{ID: "x", Price: 1, Category: models.CategoryMigrated},
		{ID: "y", Price: 2, Category: models.CategoryMigrated},
		{ID: "z", Price: 1, Category: models.CategoryMigrated},
		{ID: "w", Price: 1, Category: models.CategoryMigrated},
	}
	out := Sort(in, models.CategoryMigrated, models.SortSpec{Field: models.SortByPrice, Direction: models.Descending})
	assert.Equal(t, []string{"y", "x", "z", "w"}, ids(out))
}

func TestSort_UnknownFieldKeepsOrder(t *testing.T) {
	out := Sort(sample(), models.CategoryNewPairs, models.SortSpec{Field: "holders", Direction: models.Descending})
	assert.Equal(t, []string{"1", "2", "3"}, ids(out))
}

func TestSort_DoesNotMutateInput(t *testing.T) {
	in := sample()
	_ = Sort(in, models.CategoryNewPairs, models.SortSpec{Field: models.SortByPrice, Direction: models.Descending})
	assert.Equal(t, sample(), in)
}

func TestCountByCategory(t *testing.T) {
	counts := CountByCategory(sample())
	assert.Equal(t, 3, counts[models.CategoryNewPairs])
	assert.Equal(t, 1, counts[models.CategoryMigrated])
	assert.Equal(t, 1, counts[models.CategoryFinalStretch])

	empty := CountByCategory(nil)
	assert.Len(t, empty, 3)
}

func TestPipeline_CachesUntilInputsChange(t *testing.T) {
	store := tokens.NewStore()
	store.Replace(sample())
	p := NewPipeline(DefaultSettings())

	first := p.Rows(store.Snapshot())
	second := p.Rows(store.Snapshot())
	require.NotEmpty(t, first)
	assert.Same(t, &first[0], &second[0], "expected cached rows for an unchanged snapshot")

	store.ApplyUpdate("2", 1.1, 0)
	third := p.Rows(store.Snapshot())
	assert.NotSame(t, &first[0], &third[0], "new snapshot version should recompute")

	p.SetSearchQuery("wojak")
	fourth := p.Rows(store.Snapshot())
	assert.Equal(t, []string{"2"}, ids(fourth))
}

func TestPipeline_SettingsFlow(t *testing.T) {
	store := tokens.NewStore()
	store.Replace(sample())
	p := NewPipeline(DefaultSettings())

	p.SetTab(models.CategoryMigrated)
	assert.Equal(t, []string{"4"}, ids(p.Rows(store.Snapshot())))

	p.SetTab(models.CategoryNewPairs)
	p.ToggleSort(models.SortByVolume)
	assert.Equal(t, models.Ascending, p.Settings().Sort.Direction)
	assert.Equal(t, []string{"2", "3", "1"}, ids(p.Rows(store.Snapshot())))

	p.SetPriceRange(models.AtMost(1.0))
	assert.Equal(t, []string{"2", "1"}, ids(p.Rows(store.Snapshot())))

	p.ClearFilters()
	assert.True(t, p.Settings().Criteria.IsZero())
	assert.Len(t, p.Rows(store.Snapshot()), 3)
}

func TestApply(t *testing.T) {
	store := tokens.NewStore()
	store.Replace(sample())
	s := DefaultSettings()
	s.Criteria.VolumeRange = models.AtMost(250)
	assert.Equal(t, []string{"3", "2"}, ids(Apply(store.Snapshot(), s)))
}
