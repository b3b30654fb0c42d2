package storage

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deck-tracker/internal/models"
	"github.com/deck-tracker/internal/types"
)

func TestGameRepository_UpsertIdempotent(t *testing.T) {
	db := newTestDB(t)
	repo := NewGameRepository(db)
	ctx := context.Background()

	game := &models.Game{
		AppID:       570,
		Name:        "Dota 2",
		Description: strPtr("A MOBA"),
		Developers:  []string{"Valve"},
		Genres:      []string{"Action", "Strategy"},
		IsFree:      true,
		LastUpdated: time.Now().UTC(),
	}

	require.NoError(t, repo.Upsert(ctx, game))

	// Second upsert with changed fields must update in place, not duplicate.
	game.Name = "Dota 2 (updated)"
	game.Genres = []string{"MOBA"}
	require.NoError(t, repo.Upsert(ctx, game))

	count, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	got, err := repo.GetByID(ctx, 570)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Dota 2 (updated)", got.Name)
	assert.Equal(t, []string{"MOBA"}, got.Genres)
	assert.Equal(t, []string{"Valve"}, got.Developers)
	assert.True(t, got.IsFree)
}

func TestGameRepository_GetByID_Missing(t *testing.T) {
	db := newTestDB(t)
	repo := NewGameRepository(db)

	got, err := repo.GetByID(context.Background(), 99999999)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestGameRepository_UpsertBatch(t *testing.T) {
	db := newTestDB(t)
	repo := NewGameRepository(db)
	ctx := context.Background()

	games := []*models.Game{
		{AppID: 1, Name: "One", LastUpdated: time.Now().UTC()},
		{AppID: 2, Name: "Two", LastUpdated: time.Now().UTC()},
		{AppID: 3, Name: "Three", LastUpdated: time.Now().UTC()},
	}
	require.NoError(t, repo.UpsertBatch(ctx, games))

	count, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestGameRepository_DeleteCascades(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	seedGame(t, db, 730, "Counter-Strike 2")

	ratings := NewRatingRepository(db)
	require.NoError(t, ratings.Upsert(ctx, &models.ProtonRating{
		AppID:       730,
		Tier:        types.TierGold,
		LastUpdated: time.Now().UTC(),
	}))

	prices := NewPriceRepository(db)
	require.NoError(t, prices.UpsertBatch(ctx, []*models.Price{
		{AppID: 730, Store: types.StoreSteam, Price: 14.99, LastUpdated: time.Now().UTC()},
	}))

	games := NewGameRepository(db)
	require.NoError(t, games.Delete(ctx, 730))

	rating, err := ratings.GetByAppID(ctx, 730)
	require.NoError(t, err)
	assert.Nil(t, rating, "rating should cascade on game delete")

	rows, err := prices.GetByAppID(ctx, 730)
	require.NoError(t, err)
	assert.Empty(t, rows, "prices should cascade on game delete")

	history, err := prices.History(ctx, 730, 90, "")
	require.NoError(t, err)
	assert.Empty(t, history, "history should cascade on game delete")
}

func TestGameRepository_Delete_Missing(t *testing.T) {
	db := newTestDB(t)
	repo := NewGameRepository(db)

	err := repo.Delete(context.Background(), 42)
	assert.Error(t, err)
}

func TestGameRepository_List_Pagination(t *testing.T) {
	db := newTestDB(t)
	repo := NewGameRepository(db)
	ctx := context.Background()

	for i := 1; i <= 5; i++ {
		seedGame(t, db, int64(i), fmt.Sprintf("Game %02d", i))
	}

	result, err := repo.List(ctx, ListParams{Page: 1, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, 5, result.Total)
	assert.Equal(t, 3, result.TotalPages)
	require.Len(t, result.Games, 2)
	assert.Equal(t, "Game 01", result.Games[0].Name)

	result, err = repo.List(ctx, ListParams{Page: 3, Limit: 2})
	require.NoError(t, err)
	assert.Len(t, result.Games, 1)

	// A page past the end is an empty page, not an error.
	result, err = repo.List(ctx, ListParams{Page: 10, Limit: 2})
	require.NoError(t, err)
	assert.Empty(t, result.Games)
	assert.Equal(t, 5, result.Total)
}

func TestGameRepository_List_NormalizesParams(t *testing.T) {
	db := newTestDB(t)
	repo := NewGameRepository(db)
	ctx := context.Background()

	seedGame(t, db, 1, "Only Game")

	result, err := repo.List(ctx, ListParams{Page: -3, Limit: 100000, SortBy: "drop table", SortOrder: "sideways"})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Page)
	assert.Equal(t, MaxPageSize, result.Limit)
	assert.Len(t, result.Games, 1)
}

func TestGameRepository_List_TierAndSearchFilters(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	seedGame(t, db, 1, "Elden Ring")
	seedGame(t, db, 2, "Hades II")
	seedGame(t, db, 3, "Stardew Valley")

	ratings := NewRatingRepository(db)
	require.NoError(t, ratings.Upsert(ctx, &models.ProtonRating{AppID: 1, Tier: types.TierGold, LastUpdated: time.Now().UTC()}))
	require.NoError(t, ratings.Upsert(ctx, &models.ProtonRating{AppID: 2, Tier: types.TierPlatinum, LastUpdated: time.Now().UTC()}))
	require.NoError(t, ratings.Upsert(ctx, &models.ProtonRating{AppID: 3, Tier: types.TierPlatinum, LastUpdated: time.Now().UTC()}))

	repo := NewGameRepository(db)

	result, err := repo.List(ctx, ListParams{Tiers: []string{"platinum"}})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Total)

	// Case-insensitive substring match.
	result, err = repo.List(ctx, ListParams{Search: "vall"})
	require.NoError(t, err)
	require.Len(t, result.Games, 1)
	assert.Equal(t, "Stardew Valley", result.Games[0].Name)

	// Filters combine with AND.
	result, err = repo.List(ctx, ListParams{Tiers: []string{"platinum"}, Search: "hades"})
	require.NoError(t, err)
	require.Len(t, result.Games, 1)
	assert.Equal(t, "Hades II", result.Games[0].Name)
}

func TestGameRepository_List_PriceFiltersExcludeUnpriced(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	seedGame(t, db, 1, "Priced")
	seedGame(t, db, 2, "Free To Play")

	prices := NewPriceRepository(db)
	require.NoError(t, prices.UpsertBatch(ctx, []*models.Price{
		{AppID: 1, Store: types.StoreSteam, Price: 29.99, LastUpdated: time.Now().UTC()},
	}))

	repo := NewGameRepository(db)

	result, err := repo.List(ctx, ListParams{MinPrice: floatPtr(1)})
	require.NoError(t, err)
	require.Len(t, result.Games, 1)
	assert.Equal(t, int64(1), result.Games[0].AppID)

	result, err = repo.List(ctx, ListParams{MaxPrice: floatPtr(100)})
	require.NoError(t, err)
	require.Len(t, result.Games, 1, "games with no price rows never match price bounds")
}

func TestGameRepository_List_SortByMinPrice(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	seedGame(t, db, 1, "Cheap")
	seedGame(t, db, 2, "Pricey")
	seedGame(t, db, 3, "Mid")

	prices := NewPriceRepository(db)
	require.NoError(t, prices.UpsertBatch(ctx, []*models.Price{
		{AppID: 1, Store: types.StoreSteam, Price: 4.99, LastUpdated: time.Now().UTC()},
		{AppID: 2, Store: types.StoreSteam, Price: 59.99, LastUpdated: time.Now().UTC()},
		{AppID: 3, Store: types.StoreSteam, Price: 19.99, LastUpdated: time.Now().UTC()},
		{AppID: 3, Store: types.StoreGOG, Price: 17.99, LastUpdated: time.Now().UTC()},
	}))

	repo := NewGameRepository(db)
	result, err := repo.List(ctx, ListParams{SortBy: "min_price", SortOrder: "asc", MinPrice: floatPtr(0)})
	require.NoError(t, err)
	require.Len(t, result.Games, 3)
	assert.Equal(t, []int64{1, 3, 2}, []int64{result.Games[0].AppID, result.Games[1].AppID, result.Games[2].AppID})
	require.NotNil(t, result.Games[1].LowestPrice)
	assert.InDelta(t, 17.99, *result.Games[1].LowestPrice, 0.001)
	require.NotNil(t, result.Games[1].LowestPriceStore)
	assert.Equal(t, "gog", *result.Games[1].LowestPriceStore)
}

// Mirrors a small catalog: a free game with a rating, a paid game with no
// discounts, and a paid game on sale at one store.
func TestGameRepository_List_CatalogScenario(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	now := time.Now().UTC()

	games := NewGameRepository(db)
	require.NoError(t, games.UpsertBatch(ctx, []*models.Game{
		{AppID: 570, Name: "Dota 2", IsFree: true, LastUpdated: now},
		{AppID: 730, Name: "Counter-Strike 2", IsFree: true, LastUpdated: now},
		{AppID: 1938090, Name: "Call of Duty", LastUpdated: now},
	}))

	ratings := NewRatingRepository(db)
	require.NoError(t, ratings.Upsert(ctx, &models.ProtonRating{AppID: 570, Tier: types.TierPlatinum, LastUpdated: now}))
	require.NoError(t, ratings.Upsert(ctx, &models.ProtonRating{AppID: 730, Tier: types.TierGold, LastUpdated: now}))
	require.NoError(t, ratings.Upsert(ctx, &models.ProtonRating{AppID: 1938090, Tier: types.TierBorked, LastUpdated: now}))

	prices := NewPriceRepository(db)
	require.NoError(t, prices.UpsertBatch(ctx, []*models.Price{
		{AppID: 1938090, Store: types.StoreSteam, Price: 69.99, DiscountPercent: 0, LastUpdated: now},
		{AppID: 1938090, Store: types.StoreGOG, Price: 59.99, DiscountPercent: 14, OnSale: true, LastUpdated: now},
	}))

	result, err := games.List(ctx, ListParams{OnSaleOnly: true})
	require.NoError(t, err)
	require.Len(t, result.Games, 1)
	item := result.Games[0]
	assert.Equal(t, int64(1938090), item.AppID)
	assert.True(t, item.OnSale)
	require.NotNil(t, item.LowestPrice)
	assert.InDelta(t, 59.99, *item.LowestPrice, 0.001)
	require.NotNil(t, item.LowestPriceStore)
	assert.Equal(t, "gog", *item.LowestPriceStore)
	require.NotNil(t, item.MaxDiscount)
	assert.Equal(t, 14, *item.MaxDiscount)
	require.NotNil(t, item.Tier)
	assert.Equal(t, "borked", *item.Tier)

	result, err = games.List(ctx, ListParams{MinDiscount: floatPtr(10)})
	require.NoError(t, err)
	require.Len(t, result.Games, 1)
	assert.Equal(t, int64(1938090), result.Games[0].AppID)

	// Free games with no price rows still list without filters.
	result, err = games.List(ctx, ListParams{})
	require.NoError(t, err)
	assert.Equal(t, 3, result.Total)
	for _, g := range result.Games {
		if g.AppID == 570 {
			assert.Nil(t, g.LowestPrice)
			assert.False(t, g.OnSale)
		}
	}
}

func TestGameRepository_ListStale(t *testing.T) {
	db := newTestDB(t)
	repo := NewGameRepository(db)
	ctx := context.Background()

	now := time.Now().UTC()
	require.NoError(t, repo.Upsert(ctx, &models.Game{AppID: 1, Name: "Old", LastUpdated: now.Add(-72 * time.Hour)}))
	require.NoError(t, repo.Upsert(ctx, &models.Game{AppID: 2, Name: "Older", LastUpdated: now.Add(-96 * time.Hour)}))
	require.NoError(t, repo.Upsert(ctx, &models.Game{AppID: 3, Name: "Fresh", LastUpdated: now}))

	ids, err := repo.ListStale(ctx, 48*time.Hour, 0)
	require.NoError(t, err)
	assert.Equal(t, []int64{2, 1}, ids, "stalest first")

	ids, err = repo.ListStale(ctx, 48*time.Hour, 1)
	require.NoError(t, err)
	assert.Equal(t, []int64{2}, ids)
}

func TestGameRepository_ListAppIDs(t *testing.T) {
	db := newTestDB(t)
	repo := NewGameRepository(db)
	ctx := context.Background()

	now := time.Now().UTC()
	require.NoError(t, repo.Upsert(ctx, &models.Game{AppID: 10, Name: "Paid", LastUpdated: now}))
	require.NoError(t, repo.Upsert(ctx, &models.Game{AppID: 20, Name: "Free", IsFree: true, LastUpdated: now}))

	ids, err := repo.ListAppIDs(ctx, false, 0)
	require.NoError(t, err)
	assert.Equal(t, []int64{10, 20}, ids)

	ids, err = repo.ListAppIDs(ctx, true, 0)
	require.NoError(t, err)
	assert.Equal(t, []int64{10}, ids)
}
