package provider

import (
	"context"
	"fmt"
	"math"
	"net/url"
	"strconv"

	"github.com/wonny/macrolens/backend/internal/analysisconfig"
	"github.com/wonny/macrolens/backend/internal/cache"
	"github.com/wonny/macrolens/backend/internal/contracts"
	"github.com/wonny/macrolens/backend/pkg/httputil"
	"github.com/wonny/macrolens/backend/pkg/logger"
)

const fredBaseURL = "https://api.stlouisfed.org/fred"

// Series fetched for the macro snapshot
var fredSnapshotSeries = []string{"FEDFUNDS", "DGS2", "DGS10", "UNRATE"}

// FRED is the primary macro data adapter (St. Louis Fed)
type FRED struct {
	base
	baseURL string
	apiKey  string
}

// NewFRED creates the FRED adapter
func NewFRED(apiKey string, client *httputil.Client, store *cache.Store, ttls analysisconfig.CacheTTLs, log *logger.Logger) *FRED {
	return &FRED{
		base:    newBase("fred", client, store, ttls, log),
		baseURL: fredBaseURL,
		apiKey:  apiKey,
	}
}

// WithBaseURL overrides the API endpoint. Empty keeps the default.
func (f *FRED) WithBaseURL(u string) *FRED {
	if u != "" {
		f.baseURL = u
	}
	return f
}

// Name implements Adapter
func (f *FRED) Name() string { return f.base.name }

type fredObservationsResponse struct {
	Observations []struct {
		Date  string `json:"date"`
		Value string `json:"value"`
	} `json:"observations"`
}

// Fetch implements Adapter. Only macro_snapshot is served.
func (f *FRED) Fetch(ctx context.Context, req Request) contracts.Outcome {
	if req.Need != NeedMacroSnapshot {
		return contracts.Fail(f.name, contracts.ClassUnavailable,
			fmt.Sprintf("fred does not serve need %q", req.Need), 0)
	}

	return f.run(ctx, req, func(ctx context.Context) (*contracts.ProviderPayload, contracts.ErrorClass, error) {
		payload := &contracts.ProviderPayload{
			Metrics: map[string]float64{},
			Series:  map[string][]contracts.Observation{},
		}

		var lastClass contracts.ErrorClass
		var lastErr error

		for _, sid := range fredSnapshotSeries {
			obs, class, err := f.observations(ctx, sid, 2)
			if err != nil {
				lastClass, lastErr = class, err
				continue
			}
			if len(obs) > 0 {
				payload.Series[sid] = obs
			}
		}

		if len(payload.Series) == 0 {
			if lastErr == nil {
				lastClass, lastErr = contracts.ClassUnavailable, fmt.Errorf("fred returned no observations")
			}
			return nil, lastClass, lastErr
		}

		if spread, ok := yieldSpread(payload.Series); ok {
			payload.Metrics["yield_spread_2y10y"] = spread
		}

		// 13 monthly index points give the YoY change
		if yoy, ok := f.cpiYoY(ctx, "CPIAUCSL"); ok {
			payload.Metrics["cpi_yoy"] = yoy
		}
		if yoy, ok := f.cpiYoY(ctx, "CPILFESL"); ok {
			payload.Metrics["core_cpi_yoy"] = yoy
		}

		return payload, "", nil
	})
}

// observations fetches the most recent n observations, oldest first
func (f *FRED) observations(ctx context.Context, seriesID string, limit int) ([]contracts.Observation, contracts.ErrorClass, error) {
	q := url.Values{}
	q.Set("series_id", seriesID)
	q.Set("api_key", f.apiKey)
	q.Set("file_type", "json")
	q.Set("sort_order", "desc")
	q.Set("limit", strconv.Itoa(limit))

	var resp fredObservationsResponse
	class, err := f.getJSON(ctx, f.baseURL+"/series/observations?"+q.Encode(), nil, &resp)
	if err != nil {
		return nil, class, fmt.Errorf("fred series %s: %w", seriesID, err)
	}

	// Response is newest-first; reverse and drop "." placeholders
	obs := make([]contracts.Observation, 0, len(resp.Observations))
	for i := len(resp.Observations) - 1; i >= 0; i-- {
		o := resp.Observations[i]
		if o.Value == "." {
			continue
		}
		v, err := strconv.ParseFloat(o.Value, 64)
		if err != nil {
			continue
		}
		obs = append(obs, contracts.Observation{Date: o.Date, Value: v})
	}
	return obs, "", nil
}

// cpiYoY computes the year-over-year change of a monthly index series
func (f *FRED) cpiYoY(ctx context.Context, seriesID string) (float64, bool) {
	obs, _, err := f.observations(ctx, seriesID, 13)
	if err != nil || len(obs) < 13 {
		return 0, false
	}

	current := obs[len(obs)-1].Value
	yearAgo := obs[0].Value
	if yearAgo == 0 {
		return 0, false
	}

	yoy := (current - yearAgo) / yearAgo * 100
	return math.Round(yoy*100) / 100, true
}

// yieldSpread derives 10Y minus 2Y from the snapshot series
func yieldSpread(series map[string][]contracts.Observation) (float64, bool) {
	long, okLong := latest(series["DGS10"])
	short, okShort := latest(series["DGS2"])
	if !okLong || !okShort {
		return 0, false
	}
	return long.Value - short.Value, true
}

func latest(obs []contracts.Observation) (contracts.Observation, bool) {
	if len(obs) == 0 {
		return contracts.Observation{}, false
	}
	return obs[len(obs)-1], true
}

// Healthcheck implements Adapter
func (f *FRED) Healthcheck(ctx context.Context) bool {
	obs, _, err := f.observations(ctx, "DGS10", 1)
	return err == nil && len(obs) > 0
}
