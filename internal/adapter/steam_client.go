// Package adapter provides clients for the external data providers: the
// Steam storefront, ProtonDB and IsThereAnyDeal. Each client maps the
// provider's JSON into the internal record shapes and applies its own rate
// limit and backoff policy.
package adapter

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/deck-tracker/internal/config"
	"github.com/deck-tracker/internal/fetch"
	"github.com/deck-tracker/internal/logging"
	"github.com/deck-tracker/internal/models"
)

// defaultAppListURL is the Steam Web API catalog listing endpoint. The store
// host serves appdetails only.
const defaultAppListURL = "https://api.steampowered.com/ISteamApps/GetAppList/v2/"

// SteamClient fetches store-page metadata from the Steam storefront API.
type SteamClient struct {
	baseURL    string
	appListURL string
	client     *fetch.Client
	policy     fetch.Policy
	cooldown   time.Duration
}

// NewSteamClient creates a Steam client with the configured rate limit.
func NewSteamClient(cfg *config.SteamConfig) *SteamClient {
	limiter := fetch.NewSlidingWindow(cfg.RequestsPerWindow, cfg.Window)
	return &SteamClient{
		baseURL:    cfg.BaseURL,
		appListURL: defaultAppListURL,
		client:     fetch.NewClient(limiter),
		policy:     fetch.DefaultPolicy(),
		cooldown:   cfg.Cooldown,
	}
}

// appDetailsEntry is one entry of the appdetails response, keyed by app id.
type appDetailsEntry struct {
	Success bool          `json:"success"`
	Data    *appDetailsData `json:"data"`
}

type appDetailsData struct {
	Type             string   `json:"type"`
	Name             string   `json:"name"`
	ShortDescription *string  `json:"short_description"`
	HeaderImage      *string  `json:"header_image"`
	IsFree           bool     `json:"is_free"`
	Developers       []string `json:"developers"`
	Publishers       []string `json:"publishers"`
	ReleaseDate      *struct {
		Date string `json:"date"`
	} `json:"release_date"`
	Genres []struct {
		Description string `json:"description"`
	} `json:"genres"`
	Categories []struct {
		Description string `json:"description"`
	} `json:"categories"`
}

// AppListEntry is one row of the Steam catalog listing.
type AppListEntry struct {
	AppID int64  `json:"appid"`
	Name  string `json:"name"`
}

type appListResponse struct {
	AppList struct {
		Apps []AppListEntry `json:"apps"`
	} `json:"applist"`
}

// GetAppDetails fetches store metadata for one app id. A record whose type is
// not "game" (DLC, software, soundtracks) returns (nil, nil). An upstream 429
// triggers one cooldown-and-retry cycle with an explicit budget counter.
func (c *SteamClient) GetAppDetails(ctx context.Context, appID int64) (*models.Game, error) {
	logger := logging.FromContext(ctx)
	url := fmt.Sprintf("%s/api/appdetails?appids=%d", c.baseURL, appID)

	var resp map[string]appDetailsEntry

	rateLimitBudget := 1
	for {
		err := c.client.GetJSON(ctx, url, &resp, c.policy)
		if err == nil {
			break
		}
		if fetch.IsRateLimited(err) && rateLimitBudget > 0 {
			rateLimitBudget--
			logger.WithField("appId", appID).Warnf("Steam rate limited, cooling down for %s", c.cooldown)
			timer := time.NewTimer(c.cooldown)
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil, ctx.Err()
			case <-timer.C:
			}
			continue
		}
		return nil, fmt.Errorf("steam appdetails %d: %w", appID, err)
	}

	entry, ok := resp[strconv.FormatInt(appID, 10)]
	if !ok || !entry.Success || entry.Data == nil {
		return nil, nil
	}
	if entry.Data.Type != "game" {
		return nil, nil
	}

	return mapAppDetails(appID, entry.Data), nil
}

// GetAppList fetches the full catalog listing.
func (c *SteamClient) GetAppList(ctx context.Context) ([]AppListEntry, error) {
	var resp appListResponse
	if err := c.client.GetJSON(ctx, c.appListURL, &resp, c.policy); err != nil {
		return nil, fmt.Errorf("steam app list: %w", err)
	}
	return resp.AppList.Apps, nil
}

// mapAppDetails converts an appdetails payload into a Game. Missing optional
// upstream fields stay nil; they are never defaulted to empty strings.
func mapAppDetails(appID int64, data *appDetailsData) *models.Game {
	game := &models.Game{
		AppID:       appID,
		Name:        data.Name,
		Description: data.ShortDescription,
		HeaderImage: data.HeaderImage,
		IsFree:      data.IsFree,
		Developers:  data.Developers,
		Publishers:  data.Publishers,
		LastUpdated: time.Now().UTC(),
	}

	if data.ReleaseDate != nil && data.ReleaseDate.Date != "" {
		date := data.ReleaseDate.Date
		game.ReleaseDate = &date
	}

	for _, g := range data.Genres {
		game.Genres = append(game.Genres, g.Description)
	}
	for _, cat := range data.Categories {
		game.Tags = append(game.Tags, cat.Description)
	}

	return game
}
