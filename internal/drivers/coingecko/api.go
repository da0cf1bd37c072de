package coingecko

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/hyperflow/hyperflow/internal/normalize"
)

// CoinInfo is one entry of the coin list endpoint.
type CoinInfo struct {
	ID     string `json:"id"`
	Symbol string `json:"symbol"`
	Name   string `json:"name"`
}

// MarketCoin is one entry of the markets snapshot endpoint.
type MarketCoin struct {
	ID                       string  `json:"id"`
	Symbol                   string  `json:"symbol"`
	Name                     string  `json:"name"`
	CurrentPrice             float64 `json:"current_price"`
	MarketCap                float64 `json:"market_cap"`
	MarketCapRank            int     `json:"market_cap_rank"`
	TotalVolume              float64 `json:"total_volume"`
	PriceChangePercentage24H float64 `json:"price_change_percentage_24h"`
	LastUpdated              string  `json:"last_updated"`
}

// MarketChart is the price+volume history response: parallel series of
// [ts_ms, value] pairs.
type MarketChart struct {
	Prices       []normalize.Point `json:"prices"`
	MarketCaps   []normalize.Point `json:"market_caps"`
	TotalVolumes []normalize.Point `json:"total_volumes"`
}

// SearchResult is the coin search response.
type SearchResult struct {
	Coins []struct {
		ID            string `json:"id"`
		Symbol        string `json:"symbol"`
		Name          string `json:"name"`
		MarketCapRank int    `json:"market_cap_rank"`
	} `json:"coins"`
}

// TrendingResult is the trending coins response.
type TrendingResult struct {
	Coins []struct {
		Item struct {
			ID            string `json:"id"`
			Symbol        string `json:"symbol"`
			Name          string `json:"name"`
			MarketCapRank int    `json:"market_cap_rank"`
		} `json:"item"`
	} `json:"coins"`
}

// GlobalData is the global market stats response.
type GlobalData struct {
	Data struct {
		ActiveCryptocurrencies int                `json:"active_cryptocurrencies"`
		Markets                int                `json:"markets"`
		TotalMarketCap         map[string]float64 `json:"total_market_cap"`
		TotalVolume            map[string]float64 `json:"total_volume"`
		MarketCapPercentage    map[string]float64 `json:"market_cap_percentage"`
	} `json:"data"`
}

// Ping checks upstream API reachability.
func (c *Client) Ping(ctx context.Context) error {
	if err := c.get(ctx, "ping", nil, nil); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	return nil
}

// CoinList returns all supported coins.
func (c *Client) CoinList(ctx context.Context) ([]CoinInfo, error) {
	var coins []CoinInfo
	if err := c.get(ctx, "coins/list", nil, &coins); err != nil {
		return nil, err
	}
	return coins, nil
}

// MarketData returns the market snapshot for the given coin IDs.
func (c *Client) MarketData(ctx context.Context, coinIDs []string, vsCurrency string) ([]MarketCoin, error) {
	params := url.Values{
		"ids":                     {strings.Join(coinIDs, ",")},
		"vs_currency":             {vsCurrency},
		"order":                   {"market_cap_desc"},
		"per_page":                {"100"},
		"page":                    {"1"},
		"sparkline":               {"false"},
		"price_change_percentage": {"24h,7d,30d"},
	}

	var coins []MarketCoin
	if err := c.get(ctx, "coins/markets", params, &coins); err != nil {
		return nil, err
	}
	return coins, nil
}

// OHLC returns raw OHLC rows for a coin over the trailing number of days.
// Rows are decoded at the boundary into the tagged candle form.
func (c *Client) OHLC(ctx context.Context, coinID, vsCurrency string, days int) ([]normalize.RawCandle, error) {
	params := url.Values{
		"vs_currency": {vsCurrency},
		"days":        {strconv.Itoa(days)},
	}

	var rows []normalize.RawCandle
	endpoint := fmt.Sprintf("coins/%s/ohlc", coinID)
	if err := c.get(ctx, endpoint, params, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// MarketChart returns price+volume history for the trailing number of days.
func (c *Client) MarketChart(ctx context.Context, coinID, vsCurrency string, days int) (*MarketChart, error) {
	params := url.Values{
		"vs_currency": {vsCurrency},
		"days":        {strconv.Itoa(days)},
	}

	var chart MarketChart
	endpoint := fmt.Sprintf("coins/%s/market_chart", coinID)
	if err := c.get(ctx, endpoint, params, &chart); err != nil {
		return nil, err
	}
	return &chart, nil
}

// MarketChartRange returns price+volume history for an explicit window.
func (c *Client) MarketChartRange(ctx context.Context, coinID, vsCurrency string, from, to time.Time) (*MarketChart, error) {
	params := url.Values{
		"vs_currency": {vsCurrency},
		"from":        {strconv.FormatInt(from.Unix(), 10)},
		"to":          {strconv.FormatInt(to.Unix(), 10)},
	}

	var chart MarketChart
	endpoint := fmt.Sprintf("coins/%s/market_chart/range", coinID)
	if err := c.get(ctx, endpoint, params, &chart); err != nil {
		return nil, err
	}
	return &chart, nil
}

// Search finds coins by name or symbol.
func (c *Client) Search(ctx context.Context, query string) (*SearchResult, error) {
	params := url.Values{"query": {query}}

	var result SearchResult
	if err := c.get(ctx, "search", params, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Trending returns the trending coins.
func (c *Client) Trending(ctx context.Context) (*TrendingResult, error) {
	var result TrendingResult
	if err := c.get(ctx, "search/trending", nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Global returns global cryptocurrency market stats.
func (c *Client) Global(ctx context.Context) (*GlobalData, error) {
	var result GlobalData
	if err := c.get(ctx, "global", nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}
