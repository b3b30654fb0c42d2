package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deck-tracker/internal/config"
	"github.com/deck-tracker/internal/logging"
	"github.com/deck-tracker/internal/models"
	"github.com/deck-tracker/internal/storage"
	"github.com/deck-tracker/internal/types"
)

type testEnv struct {
	server  *Server
	db      *storage.DB
	games   *storage.GameRepository
	ratings *storage.RatingRepository
	prices  *storage.PriceRepository
	bundles *storage.BundleRepository
	status  *storage.SyncStatusRepository
}

func newTestServer(t *testing.T, cache *storage.CacheService) *testEnv {
	t.Helper()

	cfg := &config.DatabaseConfig{
		Path:        filepath.Join(t.TempDir(), "test.db"),
		BusyTimeout: 5 * time.Second,
	}
	db, err := storage.NewDB(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	paths, err := filepath.Glob(filepath.Join("..", "..", "migrations", "*.up.sql"))
	require.NoError(t, err)
	require.NotEmpty(t, paths)
	sort.Strings(paths)
	for _, path := range paths {
		script, err := os.ReadFile(path)
		require.NoError(t, err)
		_, err = db.SQL().Exec(string(script))
		require.NoError(t, err)
	}

	logger := logging.NewLogger(logging.LevelError, logging.FormatText)
	logger.SetOutput(os.Stderr)

	env := &testEnv{
		db:      db,
		games:   storage.NewGameRepository(db),
		ratings: storage.NewRatingRepository(db),
		prices:  storage.NewPriceRepository(db),
		bundles: storage.NewBundleRepository(db),
		status:  storage.NewSyncStatusRepository(db),
	}

	env.server = NewServer(
		&ServerConfig{
			Host:            "127.0.0.1",
			Port:            "0",
			ReadTimeout:     5 * time.Second,
			WriteTimeout:    5 * time.Second,
			IdleTimeout:     5 * time.Second,
			ShutdownTimeout: time.Second,
			RateLimitRPS:    1000,
			RateLimitBurst:  1000,
		},
		db, env.games, env.ratings, env.prices, env.bundles, env.status, cache, logger,
	)

	return env
}

// seedCatalog loads the three-game fixture: a free platinum game, a free gold
// game and a paid borked game on sale at one of two stores.
func (env *testEnv) seedCatalog(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, env.games.UpsertBatch(ctx, []*models.Game{
		{AppID: 570, Name: "Dota 2", IsFree: true, LastUpdated: now},
		{AppID: 730, Name: "Counter-Strike 2", IsFree: true, LastUpdated: now},
		{AppID: 1938090, Name: "Call of Duty", LastUpdated: now},
	}))
	require.NoError(t, env.ratings.Upsert(ctx, &models.ProtonRating{AppID: 570, Tier: types.TierPlatinum, Score: floatPtr(0.93), LastUpdated: now}))
	require.NoError(t, env.ratings.Upsert(ctx, &models.ProtonRating{AppID: 730, Tier: types.TierGold, LastUpdated: now}))
	require.NoError(t, env.ratings.Upsert(ctx, &models.ProtonRating{AppID: 1938090, Tier: types.TierBorked, LastUpdated: now}))
	require.NoError(t, env.prices.UpsertBatch(ctx, []*models.Price{
		{AppID: 1938090, Store: types.StoreSteam, Price: 69.99, LastUpdated: now},
		{AppID: 1938090, Store: types.StoreGOG, Price: 59.99, DiscountPercent: 14, OnSale: true, LastUpdated: now},
	}))
}

func (env *testEnv) get(t *testing.T, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	env.server.Router().ServeHTTP(rec, req)
	return rec
}

func decodeJSON(t *testing.T, rec *httptest.ResponseRecorder, dest interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), dest))
}

func floatPtr(f float64) *float64 { return &f }

func TestHealth(t *testing.T) {
	env := newTestServer(t, nil)

	rec := env.get(t, "/health")
	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	decodeJSON(t, rec, &body)
	assert.Equal(t, "ok", body["status"])
}

func TestListGames_Filters(t *testing.T) {
	env := newTestServer(t, nil)
	env.seedCatalog(t)

	// On-sale filter keeps only the discounted game.
	rec := env.get(t, "/api/games?on_sale=true")
	require.Equal(t, http.StatusOK, rec.Code)

	var result storage.ListResult
	decodeJSON(t, rec, &result)
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

	rec = env.get(t, "/api/games?min_discount=10")
	require.Equal(t, http.StatusOK, rec.Code)
	decodeJSON(t, rec, &result)
	require.Len(t, result.Games, 1)
	assert.Equal(t, int64(1938090), result.Games[0].AppID)

	rec = env.get(t, "/api/games?proton_tier=platinum,gold")
	require.Equal(t, http.StatusOK, rec.Code)
	decodeJSON(t, rec, &result)
	assert.Equal(t, 2, result.Total)

	rec = env.get(t, "/api/games?search=counter")
	require.Equal(t, http.StatusOK, rec.Code)
	decodeJSON(t, rec, &result)
	require.Len(t, result.Games, 1)
	assert.Equal(t, "Counter-Strike 2", result.Games[0].Name)
}

func TestListGames_PaginationAndSort(t *testing.T) {
	env := newTestServer(t, nil)
	env.seedCatalog(t)

	rec := env.get(t, "/api/games?limit=2&page=1")
	require.Equal(t, http.StatusOK, rec.Code)

	var result storage.ListResult
	decodeJSON(t, rec, &result)
	assert.Equal(t, 3, result.Total)
	assert.Equal(t, 2, result.TotalPages)
	require.Len(t, result.Games, 2)
	assert.Equal(t, "Call of Duty", result.Games[0].Name, "default sort is name ascending")

	// Past-the-end page is empty, not an error.
	rec = env.get(t, "/api/games?limit=2&page=9")
	require.Equal(t, http.StatusOK, rec.Code)
	decodeJSON(t, rec, &result)
	assert.Empty(t, result.Games)
	assert.Equal(t, 3, result.Total)

	rec = env.get(t, "/api/games?sort_by=name&sort_order=desc")
	require.Equal(t, http.StatusOK, rec.Code)
	decodeJSON(t, rec, &result)
	require.Len(t, result.Games, 3)
	assert.Equal(t, "Dota 2", result.Games[0].Name)

	// Unknown sort falls back silently; invalid page coerces to 1.
	rec = env.get(t, "/api/games?sort_by=nonsense&page=bananas")
	require.Equal(t, http.StatusOK, rec.Code)
	decodeJSON(t, rec, &result)
	assert.Equal(t, 1, result.Page)
	assert.Equal(t, 3, result.Total)
}

func TestListGames_BadParams(t *testing.T) {
	env := newTestServer(t, nil)
	env.seedCatalog(t)

	rec := env.get(t, "/api/games?min_price=abc")
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var body ErrorResponse
	decodeJSON(t, rec, &body)
	assert.Equal(t, "INVALID_PARAMETER", body.Error.Code)

	rec = env.get(t, "/api/games?proton_tier=legendary")
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetGame_Detail(t *testing.T) {
	env := newTestServer(t, nil)
	env.seedCatalog(t)

	bundle := &models.Bundle{Name: "Shooters", Items: []*models.BundleItem{{AppID: 1938090}}}
	require.NoError(t, env.bundles.Create(context.Background(), bundle))

	rec := env.get(t, "/api/games/1938090")
	require.Equal(t, http.StatusOK, rec.Code)

	var detail models.GameDetail
	decodeJSON(t, rec, &detail)
	assert.Equal(t, "Call of Duty", detail.Name)
	require.NotNil(t, detail.Rating)
	assert.Equal(t, types.TierBorked, detail.Rating.Tier)
	require.Len(t, detail.Prices, 2)
	assert.InDelta(t, 59.99, detail.Prices[0].Price, 0.001, "cheapest store first")
	require.NotNil(t, detail.LowestPrice)
	assert.InDelta(t, 59.99, *detail.LowestPrice, 0.001)
	require.NotNil(t, detail.LowestPriceStore)
	assert.Equal(t, "gog", *detail.LowestPriceStore)
	require.NotNil(t, detail.MaxDiscount)
	assert.Equal(t, 14, *detail.MaxDiscount)
	assert.True(t, detail.OnSale)
	require.Len(t, detail.Bundles, 1)
	assert.Equal(t, "Shooters", detail.Bundles[0].Name)
}

func TestGetGame_NotFoundAndBadID(t *testing.T) {
	env := newTestServer(t, nil)

	rec := env.get(t, "/api/games/12345")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	var body ErrorResponse
	decodeJSON(t, rec, &body)
	assert.Equal(t, "GAME_NOT_FOUND", body.Error.Code)

	rec = env.get(t, "/api/games/notanumber")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	decodeJSON(t, rec, &body)
	assert.Equal(t, "INVALID_APP_ID", body.Error.Code)
}

func TestGetPriceHistory(t *testing.T) {
	env := newTestServer(t, nil)
	env.seedCatalog(t)

	rec := env.get(t, "/api/games/1938090/price-history?days=30")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		AppID   int64                       `json:"appId"`
		Days    int                         `json:"days"`
		History []*models.PriceHistoryEntry `json:"history"`
	}
	decodeJSON(t, rec, &body)
	assert.Equal(t, int64(1938090), body.AppID)
	assert.Equal(t, 30, body.Days)
	assert.Len(t, body.History, 2)

	rec = env.get(t, "/api/games/1938090/price-history?store=gog")
	require.Equal(t, http.StatusOK, rec.Code)
	decodeJSON(t, rec, &body)
	assert.Len(t, body.History, 1)

	rec = env.get(t, "/api/games/555/price-history")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestBestDealsAndActiveSales(t *testing.T) {
	env := newTestServer(t, nil)
	env.seedCatalog(t)

	rec := env.get(t, "/api/deals/best")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Deals []*models.Deal `json:"deals"`
	}
	decodeJSON(t, rec, &body)
	require.Len(t, body.Deals, 1)
	assert.Equal(t, "Call of Duty", body.Deals[0].Name)
	assert.Equal(t, 14, body.Deals[0].DiscountPercent)

	rec = env.get(t, "/api/deals/best?min_discount=50")
	require.Equal(t, http.StatusOK, rec.Code)
	decodeJSON(t, rec, &body)
	assert.Empty(t, body.Deals)

	rec = env.get(t, "/api/deals/active-sales")
	require.Equal(t, http.StatusOK, rec.Code)
	decodeJSON(t, rec, &body)
	require.Len(t, body.Deals, 1)
	assert.Equal(t, types.StoreGOG, body.Deals[0].Store)
}

func TestBundleEndpoints(t *testing.T) {
	env := newTestServer(t, nil)
	env.seedCatalog(t)

	bundle := &models.Bundle{Name: "Handheld Picks", Items: []*models.BundleItem{{AppID: 570}, {AppID: 730}}}
	require.NoError(t, env.bundles.Create(context.Background(), bundle))

	rec := env.get(t, "/api/deals/bundles")
	require.Equal(t, http.StatusOK, rec.Code)

	var listBody struct {
		Bundles []*models.Bundle `json:"bundles"`
	}
	decodeJSON(t, rec, &listBody)
	require.Len(t, listBody.Bundles, 1)

	rec = env.get(t, "/api/deals/bundles/"+bundle.ID)
	require.Equal(t, http.StatusOK, rec.Code)

	var got models.Bundle
	decodeJSON(t, rec, &got)
	assert.Equal(t, "Handheld Picks", got.Name)
	assert.Len(t, got.Items, 2)

	rec = env.get(t, "/api/deals/bundles/nope")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStats(t *testing.T) {
	env := newTestServer(t, nil)
	env.seedCatalog(t)

	require.NoError(t, env.status.Upsert(context.Background(), &models.SyncStatus{
		Source:      types.SourceRatings,
		LastSyncAt:  time.Now().UTC(),
		Status:      models.SyncStatusOK,
		RecordCount: 3,
	}))

	rec := env.get(t, "/api/stats")
	require.Equal(t, http.StatusOK, rec.Code)

	var stats StatsResponse
	decodeJSON(t, rec, &stats)
	assert.Equal(t, 3, stats.Games)
	assert.Len(t, stats.TierCounts, 3)
	require.Len(t, stats.LastSync, 1)
	assert.Equal(t, types.SourceRatings, stats.LastSync[0].Source)
}

func TestListGames_ResponseCache(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	redisCache, err := storage.NewRedisCache(&config.RedisConfig{Addr: mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = redisCache.Close() })

	env := newTestServer(t, storage.NewCacheService(redisCache, time.Minute))
	env.seedCatalog(t)

	rec := env.get(t, "/api/games")
	require.Equal(t, http.StatusOK, rec.Code)

	var result storage.ListResult
	decodeJSON(t, rec, &result)
	assert.Equal(t, 3, result.Total)

	// A write after the first read is invisible until the cache entry expires.
	require.NoError(t, env.games.Upsert(context.Background(), &models.Game{
		AppID: 999, Name: "Late Arrival", LastUpdated: time.Now().UTC(),
	}))

	rec = env.get(t, "/api/games")
	require.Equal(t, http.StatusOK, rec.Code)
	decodeJSON(t, rec, &result)
	assert.Equal(t, 3, result.Total, "served from cache")

	mr.FastForward(2 * time.Minute)

	rec = env.get(t, "/api/games")
	require.Equal(t, http.StatusOK, rec.Code)
	decodeJSON(t, rec, &result)
	assert.Equal(t, 4, result.Total, "cache expired")
}

func TestRateLimitMiddleware(t *testing.T) {
	limited := NewRateLimiter(1, 1)
	handler := RateLimitMiddleware(limited)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.RemoteAddr = "10.0.0.1:1234"

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	// A different client has its own bucket.
	other := httptest.NewRequest(http.MethodGet, "/health", nil)
	other.RemoteAddr = "10.0.0.2:1234"
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, other)
	assert.Equal(t, http.StatusOK, rec.Code)
}
