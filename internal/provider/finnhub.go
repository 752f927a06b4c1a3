package provider

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/wonny/macrolens/backend/internal/analysisconfig"
	"github.com/wonny/macrolens/backend/internal/cache"
	"github.com/wonny/macrolens/backend/internal/contracts"
	"github.com/wonny/macrolens/backend/pkg/httputil"
	"github.com/wonny/macrolens/backend/pkg/logger"
)

const finnhubBaseURL = "https://finnhub.io/api/v1"

// Cross-asset symbols: equities, gold, long bonds, volatility
var finnhubQuoteSymbols = []string{"SPY", "QQQ", "GLD", "TLT", "^VIX"}

// Finnhub serves equity/ETF quotes and doubles as the last news fallback
type Finnhub struct {
	base
	baseURL string
	apiKey  string
}

// NewFinnhub creates the Finnhub adapter
func NewFinnhub(apiKey string, client *httputil.Client, store *cache.Store, ttls analysisconfig.CacheTTLs, log *logger.Logger) *Finnhub {
	return &Finnhub{
		base:    newBase("finnhub", client, store, ttls, log),
		baseURL: finnhubBaseURL,
		apiKey:  apiKey,
	}
}

// Name implements Adapter
// WithBaseURL overrides the API endpoint. Empty keeps the default.
func (f *Finnhub) WithBaseURL(u string) *Finnhub {
	if u != "" {
		f.baseURL = u
	}
	return f
}

func (f *Finnhub) Name() string { return f.base.name }

type finnhubQuoteResponse struct {
	Current   float64 `json:"c"`
	PrevClose float64 `json:"pc"`
	High      float64 `json:"h"`
	Low       float64 `json:"l"`
}

type finnhubNewsItem struct {
	Headline string `json:"headline"`
	Source   string `json:"source"`
	URL      string `json:"url"`
	Summary  string `json:"summary"`
	Datetime int64  `json:"datetime"` // unix seconds
}

// Fetch implements Adapter
func (f *Finnhub) Fetch(ctx context.Context, req Request) contracts.Outcome {
	switch req.Need {
	case NeedEquityQuotes:
		return f.run(ctx, req, f.fetchQuotes)
	case NeedMarketNews:
		return f.run(ctx, req, f.fetchNews)
	default:
		return contracts.Fail(f.name, contracts.ClassUnavailable,
			fmt.Sprintf("finnhub does not serve need %q", req.Need), 0)
	}
}

func (f *Finnhub) fetchQuotes(ctx context.Context) (*contracts.ProviderPayload, contracts.ErrorClass, error) {
	payload := &contracts.ProviderPayload{
		Metrics: map[string]float64{},
		Quotes:  map[string]contracts.Quote{},
	}

	var lastClass contracts.ErrorClass
	var lastErr error

	for _, symbol := range finnhubQuoteSymbols {
		q := url.Values{}
		q.Set("symbol", symbol)
		q.Set("token", f.apiKey)

		var resp finnhubQuoteResponse
		class, err := f.getJSON(ctx, f.baseURL+"/quote?"+q.Encode(), nil, &resp)
		if err != nil {
			lastClass, lastErr = class, fmt.Errorf("finnhub quote %s: %w", symbol, err)
			continue
		}
		// Finnhub returns zeros for unknown symbols instead of an error
		if resp.Current == 0 {
			continue
		}

		if symbol == "^VIX" {
			payload.Metrics["vix_level"] = resp.Current
			continue
		}

		var change float64
		if resp.PrevClose != 0 {
			change = (resp.Current - resp.PrevClose) / resp.PrevClose
		}
		payload.Quotes[symbol] = contracts.Quote{
			Symbol:    symbol,
			Price:     resp.Current,
			Change24h: change,
		}
	}

	if len(payload.Quotes) == 0 && len(payload.Metrics) == 0 {
		if lastErr == nil {
			lastClass, lastErr = contracts.ClassUnavailable, fmt.Errorf("finnhub returned no quotes")
		}
		return nil, lastClass, lastErr
	}

	return payload, "", nil
}

func (f *Finnhub) fetchNews(ctx context.Context) (*contracts.ProviderPayload, contracts.ErrorClass, error) {
	q := url.Values{}
	q.Set("category", "general")
	q.Set("token", f.apiKey)

	var items []finnhubNewsItem
	class, err := f.getJSON(ctx, f.baseURL+"/news?"+q.Encode(), nil, &items)
	if err != nil {
		return nil, class, fmt.Errorf("finnhub news: %w", err)
	}

	// General news carries no sentiment scores; downstream confidence
	// stays low accordingly.
	articles := make([]contracts.Article, 0, len(items))
	for _, it := range items {
		if it.Headline == "" {
			continue
		}
		articles = append(articles, contracts.Article{
			Title:       it.Headline,
			Source:      it.Source,
			URL:         it.URL,
			Summary:     CleanSnippet(it.Summary),
			PublishedAt: time.Unix(it.Datetime, 0).UTC().Format(time.RFC3339),
		})
	}

	if len(articles) == 0 {
		return nil, contracts.ClassUnavailable, fmt.Errorf("finnhub returned no news")
	}

	return &contracts.ProviderPayload{Articles: articles}, "", nil
}

// Healthcheck implements Adapter
func (f *Finnhub) Healthcheck(ctx context.Context) bool {
	q := url.Values{}
	q.Set("symbol", "SPY")
	q.Set("token", f.apiKey)

	var resp finnhubQuoteResponse
	_, err := f.getJSON(ctx, f.baseURL+"/quote?"+q.Encode(), nil, &resp)
	return err == nil && resp.Current != 0
}
