package provider

import (
	"context"
	"fmt"
	"math"

	"github.com/wonny/macrolens/backend/internal/analysisconfig"
	"github.com/wonny/macrolens/backend/internal/cache"
	"github.com/wonny/macrolens/backend/internal/contracts"
	"github.com/wonny/macrolens/backend/pkg/httputil"
	"github.com/wonny/macrolens/backend/pkg/logger"
)

const dbnomicsBaseURL = "https://api.db.nomics.world/v22"

// DBnomics series mirroring the FRED snapshot. Keyless aggregator, so it
// carries no Treasury yields; the snapshot degrades to rates + CPI + labor.
var dbnomicsSeries = map[string]string{
	"FEDFUNDS": "BIS/WS_CBPOL/D.US.N",
	"UNRATE":   "OECD/MEI/USA.LRUN64TT.STSA.M",
}

const dbnomicsCPISeries = "OECD/MEI/USA.CPALTT01.IXOB.M"

// DBnomics is the keyless macro fallback adapter
type DBnomics struct {
	base
	baseURL string
}

// NewDBnomics creates the DBnomics adapter. No API key required.
func NewDBnomics(client *httputil.Client, store *cache.Store, ttls analysisconfig.CacheTTLs, log *logger.Logger) *DBnomics {
	return &DBnomics{
		base:    newBase("dbnomics", client, store, ttls, log),
		baseURL: dbnomicsBaseURL,
	}
}

// Name implements Adapter
func (d *DBnomics) Name() string { return d.base.name }

type dbnomicsSeriesResponse struct {
	Series struct {
		Docs []struct {
			Period []string   `json:"period"`
			Value  []*float64 `json:"value"` // null for missing observations
		} `json:"docs"`
	} `json:"series"`
}

// Fetch implements Adapter. Only macro_snapshot is served.
func (d *DBnomics) Fetch(ctx context.Context, req Request) contracts.Outcome {
	if req.Need != NeedMacroSnapshot {
		return contracts.Fail(d.name, contracts.ClassUnavailable,
			fmt.Sprintf("dbnomics does not serve need %q", req.Need), 0)
	}

	return d.run(ctx, req, func(ctx context.Context) (*contracts.ProviderPayload, contracts.ErrorClass, error) {
		payload := &contracts.ProviderPayload{
			Metrics: map[string]float64{},
			Series:  map[string][]contracts.Observation{},
		}

		var lastClass contracts.ErrorClass
		var lastErr error

		for key, sid := range dbnomicsSeries {
			obs, class, err := d.observations(ctx, sid)
			if err != nil {
				lastClass, lastErr = class, err
				continue
			}
			if len(obs) > 0 {
				// keep the 2 most recent points, matching the primary source
				if len(obs) > 2 {
					obs = obs[len(obs)-2:]
				}
				payload.Series[key] = obs
			}
		}

		if len(payload.Series) == 0 {
			if lastErr == nil {
				lastClass, lastErr = contracts.ClassUnavailable, fmt.Errorf("dbnomics returned no observations")
			}
			return nil, lastClass, lastErr
		}

		if obs, _, err := d.observations(ctx, dbnomicsCPISeries); err == nil && len(obs) >= 13 {
			recent := obs[len(obs)-13:]
			yearAgo := recent[0].Value
			current := recent[len(recent)-1].Value
			if yearAgo != 0 {
				yoy := (current - yearAgo) / yearAgo * 100
				payload.Metrics["cpi_yoy"] = math.Round(yoy*100) / 100
			}
		}

		return payload, "", nil
	})
}

// observations fetches a full series, oldest first
func (d *DBnomics) observations(ctx context.Context, seriesID string) ([]contracts.Observation, contracts.ErrorClass, error) {
	url := fmt.Sprintf("%s/series/%s?observations=1&format=json", d.baseURL, seriesID)

	var resp dbnomicsSeriesResponse
	class, err := d.getJSON(ctx, url, nil, &resp)
	if err != nil {
		return nil, class, fmt.Errorf("dbnomics series %s: %w", seriesID, err)
	}

	if len(resp.Series.Docs) == 0 {
		return nil, contracts.ClassNotFound, fmt.Errorf("dbnomics series %s: no documents", seriesID)
	}

	doc := resp.Series.Docs[0]
	obs := make([]contracts.Observation, 0, len(doc.Period))
	for i, period := range doc.Period {
		if i >= len(doc.Value) || doc.Value[i] == nil {
			continue
		}
		obs = append(obs, contracts.Observation{Date: period, Value: *doc.Value[i]})
	}
	return obs, "", nil
}

// Healthcheck implements Adapter
func (d *DBnomics) Healthcheck(ctx context.Context) bool {
	obs, _, err := d.observations(ctx, dbnomicsCPISeries)
	return err == nil && len(obs) > 0
}
