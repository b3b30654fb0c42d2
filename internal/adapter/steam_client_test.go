package adapter

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deck-tracker/internal/config"
)

func steamTestConfig(baseURL string) *config.SteamConfig {
	return &config.SteamConfig{
		BaseURL:           baseURL,
		RequestsPerWindow: 100,
		Window:            time.Second,
		Cooldown:          20 * time.Millisecond,
	}
}

func TestGetAppDetails_MapsGame(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/appdetails", r.URL.Path)
		assert.Equal(t, "1938090", r.URL.Query().Get("appids"))
		_, _ = w.Write([]byte(`{
			"1938090": {
				"success": true,
				"data": {
					"type": "game",
					"name": "Call of Duty",
					"short_description": "A shooter.",
					"header_image": "https://cdn.example/header.jpg",
					"is_free": false,
					"developers": ["Infinity Ward"],
					"publishers": ["Activision"],
					"release_date": {"date": "27 Oct, 2022"},
					"genres": [{"description": "Action"}],
					"categories": [{"description": "Multi-player"}]
				}
			}
		}`))
	}))
	defer server.Close()

	client := NewSteamClient(steamTestConfig(server.URL))
	game, err := client.GetAppDetails(context.Background(), 1938090)

	require.NoError(t, err)
	require.NotNil(t, game)
	assert.Equal(t, int64(1938090), game.AppID)
	assert.Equal(t, "Call of Duty", game.Name)
	require.NotNil(t, game.Description)
	assert.Equal(t, "A shooter.", *game.Description)
	require.NotNil(t, game.ReleaseDate)
	assert.Equal(t, "27 Oct, 2022", *game.ReleaseDate)
	assert.Equal(t, []string{"Action"}, game.Genres)
	assert.Equal(t, []string{"Multi-player"}, game.Tags)
	assert.False(t, game.IsFree)
}

func TestGetAppDetails_NonGameTypeIsNoResult(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"12345": {"success": true, "data": {"type": "dlc", "name": "Some DLC"}}}`))
	}))
	defer server.Close()

	client := NewSteamClient(steamTestConfig(server.URL))
	game, err := client.GetAppDetails(context.Background(), 12345)

	require.NoError(t, err)
	assert.Nil(t, game, "non-game type should yield no result, not an error")
}

func TestGetAppDetails_UnsuccessfulEntryIsNoResult(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"999": {"success": false}}`))
	}))
	defer server.Close()

	client := NewSteamClient(steamTestConfig(server.URL))
	game, err := client.GetAppDetails(context.Background(), 999)

	require.NoError(t, err)
	assert.Nil(t, game)
}

func TestGetAppDetails_MissingOptionalFieldsStayNil(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"570": {"success": true, "data": {"type": "game", "name": "Dota 2", "is_free": true}}}`))
	}))
	defer server.Close()

	client := NewSteamClient(steamTestConfig(server.URL))
	game, err := client.GetAppDetails(context.Background(), 570)

	require.NoError(t, err)
	require.NotNil(t, game)
	assert.Nil(t, game.Description)
	assert.Nil(t, game.HeaderImage)
	assert.Nil(t, game.ReleaseDate)
	assert.Nil(t, game.Developers)
	assert.True(t, game.IsFree)
}

func TestGetAppDetails_RateLimitCooldownThenRetry(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) <= 3 {
			// Exhaust the fetch policy's own retry budget with 429s so the
			// client-level cooldown path engages.
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(`{"570": {"success": true, "data": {"type": "game", "name": "Dota 2", "is_free": true}}}`))
	}))
	defer server.Close()

	client := NewSteamClient(steamTestConfig(server.URL))
	client.policy.RetryDelay = time.Millisecond

	start := time.Now()
	game, err := client.GetAppDetails(context.Background(), 570)

	require.NoError(t, err)
	require.NotNil(t, game)
	assert.Equal(t, "Dota 2", game.Name)
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond, "cooldown should elapse before the retry")
}

func TestGetAppList(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"applist": {"apps": [{"appid": 570, "name": "Dota 2"}, {"appid": 730, "name": "Counter-Strike 2"}]}}`))
	}))
	defer server.Close()

	client := NewSteamClient(steamTestConfig(server.URL))
	client.appListURL = server.URL + "/ISteamApps/GetAppList/v2/"

	apps, err := client.GetAppList(context.Background())
	require.NoError(t, err)
	require.Len(t, apps, 2)
	assert.Equal(t, int64(570), apps[0].AppID)
	assert.Equal(t, "Counter-Strike 2", apps[1].Name)
}
