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

const marketauxBaseURL = "https://api.marketaux.com/v1"

// Marketaux is the secondary news adapter. Sentiment comes per tagged
// entity; the article score is the entity average.
type Marketaux struct {
	base
	baseURL string
	apiKey  string
}

// NewMarketaux creates the Marketaux adapter
func NewMarketaux(apiKey string, client *httputil.Client, store *cache.Store, ttls analysisconfig.CacheTTLs, log *logger.Logger) *Marketaux {
	return &Marketaux{
		base:    newBase("marketaux", client, store, ttls, log),
		baseURL: marketauxBaseURL,
		apiKey:  apiKey,
	}
}

// Name implements Adapter
// WithBaseURL overrides the API endpoint. Empty keeps the default.
func (m *Marketaux) WithBaseURL(u string) *Marketaux {
	if u != "" {
		m.baseURL = u
	}
	return m
}

func (m *Marketaux) Name() string { return m.base.name }

type marketauxNewsResponse struct {
	Data []struct {
		Title       string `json:"title"`
		Source      string `json:"source"`
		URL         string `json:"url"`
		Description string `json:"description"`
		PublishedAt string `json:"published_at"`
		Entities    []struct {
			SentimentScore *float64 `json:"sentiment_score"`
		} `json:"entities"`
	} `json:"data"`
}

// Fetch implements Adapter. Only market_news is served.
func (m *Marketaux) Fetch(ctx context.Context, req Request) contracts.Outcome {
	if req.Need != NeedMarketNews {
		return contracts.Fail(m.name, contracts.ClassUnavailable,
			fmt.Sprintf("marketaux does not serve need %q", req.Need), 0)
	}

	return m.run(ctx, req, func(ctx context.Context) (*contracts.ProviderPayload, contracts.ErrorClass, error) {
		q := url.Values{}
		q.Set("api_token", m.apiKey)
		q.Set("language", "en")
		q.Set("filter_entities", "true")
		q.Set("limit", "50")

		var resp marketauxNewsResponse
		class, err := m.getJSON(ctx, m.baseURL+"/news/all?"+q.Encode(), nil, &resp)
		if err != nil {
			return nil, class, fmt.Errorf("marketaux news: %w", err)
		}

		articles := make([]contracts.Article, 0, len(resp.Data))
		for _, it := range resp.Data {
			if it.Title == "" {
				continue
			}

			article := contracts.Article{
				Title:       it.Title,
				Source:      it.Source,
				URL:         it.URL,
				Summary:     CleanSnippet(it.Description),
				PublishedAt: it.PublishedAt,
			}

			var sum float64
			var count int
			for _, e := range it.Entities {
				if e.SentimentScore != nil {
					sum += *e.SentimentScore
					count++
				}
			}
			if count > 0 {
				avg := sum / float64(count)
				article.Sentiment = &avg
			}

			articles = append(articles, article)
		}

		if len(articles) == 0 {
			return nil, contracts.ClassUnavailable, fmt.Errorf("marketaux returned no articles")
		}

		return &contracts.ProviderPayload{Articles: articles}, "", nil
	})
}

// Healthcheck implements Adapter
func (m *Marketaux) Healthcheck(ctx context.Context) bool {
	q := url.Values{}
	q.Set("api_token", m.apiKey)
	q.Set("limit", "1")

	var resp marketauxNewsResponse
	_, err := m.getJSON(ctx, m.baseURL+"/news/all?"+q.Encode(), nil, &resp)
	return err == nil
}
