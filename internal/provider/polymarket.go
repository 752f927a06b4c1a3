package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	"github.com/wonny/macrolens/backend/internal/analysisconfig"
	"github.com/wonny/macrolens/backend/internal/cache"
	"github.com/wonny/macrolens/backend/internal/contracts"
	"github.com/wonny/macrolens/backend/pkg/httputil"
	"github.com/wonny/macrolens/backend/pkg/logger"
)

const polymarketBaseURL = "https://gamma-api.polymarket.com"

// Polymarket is the optional prediction-market adapter. It only ever
// degrades: every failure is reported as unavailable so the pipeline
// treats missing sentiment data as an informational skip.
type Polymarket struct {
	base
	baseURL string
	enabled bool
}

// NewPolymarket creates the Polymarket adapter. Public API, no key.
func NewPolymarket(enabled bool, client *httputil.Client, store *cache.Store, ttls analysisconfig.CacheTTLs, log *logger.Logger) *Polymarket {
	return &Polymarket{
		base:    newBase("polymarket", client, store, ttls, log),
		baseURL: polymarketBaseURL,
		enabled: enabled,
	}
}

// WithBaseURL overrides the API endpoint. Empty keeps the default.
func (p *Polymarket) WithBaseURL(u string) *Polymarket {
	if u != "" {
		p.baseURL = u
	}
	return p
}

// Name implements Adapter
func (p *Polymarket) Name() string { return p.base.name }

// Gamma API encodes outcome prices as a JSON string inside JSON
type polymarketMarket struct {
	Question      string `json:"question"`
	OutcomePrices string `json:"outcomePrices"` // e.g. "[\"0.72\", \"0.28\"]"
	Volume        string `json:"volume"`
	Active        bool   `json:"active"`
}

// Fetch implements Adapter. Only prediction_markets is served.
func (p *Polymarket) Fetch(ctx context.Context, req Request) contracts.Outcome {
	if req.Need != NeedPredictionMarkets {
		return contracts.Fail(p.name, contracts.ClassUnavailable,
			fmt.Sprintf("polymarket does not serve need %q", req.Need), 0)
	}
	if !p.enabled {
		return contracts.Fail(p.name, contracts.ClassUnavailable, "polymarket disabled", 0)
	}

	out := p.run(ctx, req, func(ctx context.Context) (*contracts.ProviderPayload, contracts.ErrorClass, error) {
		q := url.Values{}
		q.Set("closed", "false")
		q.Set("limit", "50")

		var markets []polymarketMarket
		class, err := p.getJSON(ctx, p.baseURL+"/markets?"+q.Encode(), nil, &markets)
		if err != nil {
			return nil, class, fmt.Errorf("polymarket markets: %w", err)
		}

		result := make([]contracts.PredictionMarket, 0, len(markets))
		for _, m := range markets {
			if !m.Active || m.Question == "" {
				continue
			}

			prob, ok := parseYesPrice(m.OutcomePrices)
			if !ok {
				continue
			}

			volume, _ := strconv.ParseFloat(m.Volume, 64)
			result = append(result, contracts.PredictionMarket{
				Question:    m.Question,
				Probability: prob,
				Volume:      volume,
			})
		}

		if len(result) == 0 {
			return nil, contracts.ClassUnavailable, fmt.Errorf("polymarket returned no usable markets")
		}

		return &contracts.ProviderPayload{Markets: result}, "", nil
	})

	// Optional source: collapse every failure class to unavailable
	if !out.Success {
		out.Class = contracts.ClassUnavailable
	}
	return out
}

// parseYesPrice extracts the YES outcome price from the nested encoding
func parseYesPrice(encoded string) (float64, bool) {
	var prices []string
	if err := json.Unmarshal([]byte(encoded), &prices); err != nil || len(prices) == 0 {
		return 0, false
	}
	p, err := strconv.ParseFloat(prices[0], 64)
	if err != nil || p < 0 || p > 1 {
		return 0, false
	}
	return p, true
}

// Healthcheck implements Adapter
func (p *Polymarket) Healthcheck(ctx context.Context) bool {
	if !p.enabled {
		return false
	}

	var markets []polymarketMarket
	_, err := p.getJSON(ctx, p.baseURL+"/markets?limit=1", nil, &markets)
	return err == nil
}
