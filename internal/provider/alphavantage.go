package provider

import (
	"context"
	"fmt"
	"net/url"

	"github.com/wonny/macrolens/backend/internal/analysisconfig"
	"github.com/wonny/macrolens/backend/internal/cache"
	"github.com/wonny/macrolens/backend/internal/contracts"
	"github.com/wonny/macrolens/backend/pkg/httputil"
	"github.com/wonny/macrolens/backend/pkg/logger"
)

const alphaVantageBaseURL = "https://www.alphavantage.co/query"

// AlphaVantage is the primary news adapter. Its NEWS_SENTIMENT endpoint
// scores each article, which is what makes it first in the news chain.
// Free tier is 25 requests/day; the quota limiter guards it.
type AlphaVantage struct {
	base
	baseURL string
	apiKey  string
}

// NewAlphaVantage creates the Alpha Vantage adapter
func NewAlphaVantage(apiKey string, client *httputil.Client, store *cache.Store, ttls analysisconfig.CacheTTLs, log *logger.Logger) *AlphaVantage {
	return &AlphaVantage{
		base:    newBase("alphavantage", client, store, ttls, log),
		baseURL: alphaVantageBaseURL,
		apiKey:  apiKey,
	}
}

// Name implements Adapter
// WithBaseURL overrides the API endpoint. Empty keeps the default.
func (a *AlphaVantage) WithBaseURL(u string) *AlphaVantage {
	if u != "" {
		a.baseURL = u
	}
	return a
}

func (a *AlphaVantage) Name() string { return a.base.name }

type alphaVantageNewsResponse struct {
	Feed []struct {
		Title         string  `json:"title"`
		Source        string  `json:"source"`
		URL           string  `json:"url"`
		Summary       string  `json:"summary"`
		TimePublished string  `json:"time_published"` // YYYYMMDDTHHMMSS
		Sentiment     float64 `json:"overall_sentiment_score"`
	} `json:"feed"`
	// Rate limiting and misuse come back as 200s with one of these set
	Note        string `json:"Note"`
	Information string `json:"Information"`
	ErrMessage  string `json:"Error Message"`
}

// Fetch implements Adapter. Only market_news is served.
func (a *AlphaVantage) Fetch(ctx context.Context, req Request) contracts.Outcome {
	if req.Need != NeedMarketNews {
		return contracts.Fail(a.name, contracts.ClassUnavailable,
			fmt.Sprintf("alphavantage does not serve need %q", req.Need), 0)
	}

	return a.run(ctx, req, func(ctx context.Context) (*contracts.ProviderPayload, contracts.ErrorClass, error) {
		q := url.Values{}
		q.Set("function", "NEWS_SENTIMENT")
		q.Set("topics", "financial_markets")
		q.Set("limit", "50")
		q.Set("apikey", a.apiKey)

		var resp alphaVantageNewsResponse
		class, err := a.getJSON(ctx, a.baseURL+"?"+q.Encode(), nil, &resp)
		if err != nil {
			return nil, class, fmt.Errorf("alphavantage news: %w", err)
		}

		// The API reports quota exhaustion inside a 200 body
		if resp.Note != "" || resp.Information != "" {
			msg := resp.Note
			if msg == "" {
				msg = resp.Information
			}
			return nil, contracts.ClassRateLimited, fmt.Errorf("alphavantage rate limited: %s", msg)
		}
		if resp.ErrMessage != "" {
			return nil, contracts.ClassAuth, fmt.Errorf("alphavantage error: %s", resp.ErrMessage)
		}

		articles := make([]contracts.Article, 0, len(resp.Feed))
		for _, it := range resp.Feed {
			if it.Title == "" {
				continue
			}
			sentiment := it.Sentiment
			articles = append(articles, contracts.Article{
				Title:       it.Title,
				Source:      it.Source,
				URL:         it.URL,
				Summary:     CleanSnippet(it.Summary),
				Sentiment:   &sentiment,
				PublishedAt: it.TimePublished,
			})
		}

		if len(articles) == 0 {
			return nil, contracts.ClassUnavailable, fmt.Errorf("alphavantage returned empty feed")
		}

		return &contracts.ProviderPayload{Articles: articles}, "", nil
	})
}

// Healthcheck implements Adapter
func (a *AlphaVantage) Healthcheck(ctx context.Context) bool {
	q := url.Values{}
	q.Set("function", "NEWS_SENTIMENT")
	q.Set("limit", "1")
	q.Set("apikey", a.apiKey)

	var resp alphaVantageNewsResponse
	_, err := a.getJSON(ctx, a.baseURL+"?"+q.Encode(), nil, &resp)
	return err == nil && resp.ErrMessage == ""
}
