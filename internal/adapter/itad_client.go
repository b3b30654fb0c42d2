package adapter

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/deck-tracker/internal/config"
	apperrors "github.com/deck-tracker/internal/errors"
	"github.com/deck-tracker/internal/fetch"
	"github.com/deck-tracker/internal/models"
	"github.com/deck-tracker/internal/types"
)

// ITADClient fetches multi-store pricing from IsThereAnyDeal. Price fetch is
// two-phase: app ids are first resolved to ITAD's internal game ids in large
// batches, then prices are fetched for the resolved ids in smaller batches.
type ITADClient struct {
	baseURL         string
	apiKey          string
	country         string
	client          *fetch.Client
	policy          fetch.Policy
	lookupBatchSize int
	priceBatchSize  int
}

// NewITADClient creates an ITAD client. The API key is required; its absence
// is a configuration failure surfaced before any request is attempted.
func NewITADClient(cfg *config.ITADConfig) (*ITADClient, error) {
	if cfg.APIKey == "" {
		return nil, apperrors.NewMissingCredentialError("ITAD_API_KEY")
	}

	// A batch size below 1 would never advance the batching loops.
	lookupBatchSize := cfg.LookupBatchSize
	if lookupBatchSize < 1 {
		lookupBatchSize = 1
	}
	priceBatchSize := cfg.PriceBatchSize
	if priceBatchSize < 1 {
		priceBatchSize = 1
	}

	limiter := fetch.NewSlidingWindow(cfg.RequestsPerWindow, cfg.Window)
	return &ITADClient{
		baseURL:         cfg.BaseURL,
		apiKey:          cfg.APIKey,
		country:         cfg.Country,
		client:          fetch.NewClient(limiter),
		policy:          fetch.DefaultPolicy(),
		lookupBatchSize: lookupBatchSize,
		priceBatchSize:  priceBatchSize,
	}, nil
}

type priceEntry struct {
	ID    string `json:"id"`
	Deals []struct {
		Shop struct {
			Name string `json:"name"`
		} `json:"shop"`
		Price struct {
			Amount float64 `json:"amount"`
		} `json:"price"`
		Regular struct {
			Amount float64 `json:"amount"`
		} `json:"regular"`
		Expiry *string `json:"expiry"`
		URL    *string `json:"url"`
	} `json:"deals"`
}

// LookupGames resolves Steam app ids to ITAD game ids, batched. App ids the
// provider does not know are absent from the result.
func (c *ITADClient) LookupGames(ctx context.Context, appIDs []int64) (map[int64]string, error) {
	resolved := make(map[int64]string, len(appIDs))

	for start := 0; start < len(appIDs); start += c.lookupBatchSize {
		end := start + c.lookupBatchSize
		if end > len(appIDs) {
			end = len(appIDs)
		}
		batch := appIDs[start:end]

		url := fmt.Sprintf("%s/games/lookup/v1?key=%s", c.baseURL, c.apiKey)

		var resp map[string]*string
		if err := c.client.PostJSON(ctx, url, batch, &resp, c.policy); err != nil {
			return nil, fmt.Errorf("itad lookup: %w", err)
		}

		for raw, id := range resp {
			if id == nil {
				continue
			}
			appID, err := strconv.ParseInt(raw, 10, 64)
			if err != nil {
				continue
			}
			resolved[appID] = *id
		}
	}

	return resolved, nil
}

// GetPrices fetches current store prices for resolved ITAD ids, batched.
// Results are keyed by ITAD id.
func (c *ITADClient) GetPrices(ctx context.Context, itadIDs []string) (map[string][]*models.Price, error) {
	prices := make(map[string][]*models.Price, len(itadIDs))

	for start := 0; start < len(itadIDs); start += c.priceBatchSize {
		end := start + c.priceBatchSize
		if end > len(itadIDs) {
			end = len(itadIDs)
		}
		batch := itadIDs[start:end]

		url := fmt.Sprintf("%s/games/prices/v3?key=%s&country=%s", c.baseURL, c.apiKey, c.country)

		var resp []priceEntry
		if err := c.client.PostJSON(ctx, url, batch, &resp, c.policy); err != nil {
			return nil, fmt.Errorf("itad prices: %w", err)
		}

		now := time.Now().UTC()
		for _, entry := range resp {
			for _, deal := range entry.Deals {
				discount := deriveDiscount(deal.Regular.Amount, deal.Price.Amount)

				price := &models.Price{
					Store:           types.Store(strings.ToLower(deal.Shop.Name)),
					Price:           deal.Price.Amount,
					DiscountPercent: discount,
					OnSale:          discount > 0,
					URL:             deal.URL,
					LastUpdated:     now,
				}
				if deal.Expiry != nil {
					if expiry, err := time.Parse(time.RFC3339, *deal.Expiry); err == nil {
						price.SaleEndsAt = &expiry
					}
				}
				prices[entry.ID] = append(prices[entry.ID], price)
			}
		}
	}

	return prices, nil
}

// FetchPricesForApps runs the two-phase protocol for a set of app ids and
// returns prices keyed by app id. Unresolved app ids are simply absent.
func (c *ITADClient) FetchPricesForApps(ctx context.Context, appIDs []int64) (map[int64][]*models.Price, error) {
	resolved, err := c.LookupGames(ctx, appIDs)
	if err != nil {
		return nil, err
	}
	if len(resolved) == 0 {
		return map[int64][]*models.Price{}, nil
	}

	itadIDs := make([]string, 0, len(resolved))
	appByITAD := make(map[string]int64, len(resolved))
	for appID, itadID := range resolved {
		itadIDs = append(itadIDs, itadID)
		appByITAD[itadID] = appID
	}

	byITAD, err := c.GetPrices(ctx, itadIDs)
	if err != nil {
		return nil, err
	}

	result := make(map[int64][]*models.Price, len(byITAD))
	for itadID, prices := range byITAD {
		appID, ok := appByITAD[itadID]
		if !ok {
			continue
		}
		for _, p := range prices {
			p.AppID = appID
		}
		result[appID] = prices
	}

	return result, nil
}

// deriveDiscount computes the discount percent from regular and current
// price. A non-positive regular price yields 0 rather than dividing by zero.
func deriveDiscount(regular, current float64) int {
	if regular <= 0 {
		return 0
	}
	return int(math.Round((regular - current) / regular * 100))
}
