package marketcap

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// HTTPProvider pulls ranked coin listings from a CoinGecko-compatible
// markets endpoint.
type HTTPProvider struct {
	url    string
	client *http.Client
}

// NewHTTPProvider creates a provider for the given markets endpoint URL
func NewHTTPProvider(url string) *HTTPProvider {
	return &HTTPProvider{
		url:    url,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

type marketEntry struct {
	Symbol        string `json:"symbol"`
	MarketCapRank int    `json:"market_cap_rank"`
}

// Ranks fetches the listing and returns asset -> market-cap rank.
// Entries without a rank are skipped.
func (p *HTTPProvider) Ranks(ctx context.Context) (map[string]int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build market-cap request: %w", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("market-cap request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("market-cap endpoint returned status %d", resp.StatusCode)
	}

	var entries []marketEntry
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		return nil, fmt.Errorf("failed to decode market-cap response: %w", err)
	}

	ranks := make(map[string]int, len(entries))
	for _, e := range entries {
		if e.MarketCapRank <= 0 || e.Symbol == "" {
			continue
		}
		asset := strings.ToUpper(e.Symbol)
		// Keep the best rank when symbols collide across listings
		if prev, ok := ranks[asset]; !ok || e.MarketCapRank < prev {
			ranks[asset] = e.MarketCapRank
		}
	}
	return ranks, nil
}
