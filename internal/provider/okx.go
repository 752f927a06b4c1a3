package provider

import (
	"context"
	"fmt"
	"strconv"

	"github.com/wonny/macrolens/backend/internal/analysisconfig"
	"github.com/wonny/macrolens/backend/internal/cache"
	"github.com/wonny/macrolens/backend/internal/contracts"
	"github.com/wonny/macrolens/backend/pkg/httputil"
	"github.com/wonny/macrolens/backend/pkg/logger"
)

const okxBaseURL = "https://www.okx.com"

// Major pairs for the crypto snapshot
var okxPairs = []string{"BTC-USDT", "ETH-USDT", "SOL-USDT"}

// OKX serves spot crypto quotes. Public market data, no API key needed.
type OKX struct {
	base
	baseURL string
}

// NewOKX creates the OKX adapter
func NewOKX(client *httputil.Client, store *cache.Store, ttls analysisconfig.CacheTTLs, log *logger.Logger) *OKX {
	return &OKX{
		base:    newBase("okx", client, store, ttls, log),
		baseURL: okxBaseURL,
	}
}

// Name implements Adapter
// WithBaseURL overrides the API endpoint. Empty keeps the default.
func (o *OKX) WithBaseURL(u string) *OKX {
	if u != "" {
		o.baseURL = u
	}
	return o
}

func (o *OKX) Name() string { return o.base.name }

// OKX wraps everything in {code, msg, data} and encodes numbers as strings
type okxTickerResponse struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
	Data []struct {
		InstID  string `json:"instId"`
		Last    string `json:"last"`
		Open24h string `json:"open24h"`
	} `json:"data"`
}

// Fetch implements Adapter. Only crypto_quotes is served.
func (o *OKX) Fetch(ctx context.Context, req Request) contracts.Outcome {
	if req.Need != NeedCryptoQuotes {
		return contracts.Fail(o.name, contracts.ClassUnavailable,
			fmt.Sprintf("okx does not serve need %q", req.Need), 0)
	}

	return o.run(ctx, req, func(ctx context.Context) (*contracts.ProviderPayload, contracts.ErrorClass, error) {
		payload := &contracts.ProviderPayload{
			Quotes: map[string]contracts.Quote{},
		}

		var lastClass contracts.ErrorClass
		var lastErr error

		for _, pair := range okxPairs {
			quote, class, err := o.ticker(ctx, pair)
			if err != nil {
				lastClass, lastErr = class, err
				continue
			}
			payload.Quotes[pair] = quote
		}

		if len(payload.Quotes) == 0 {
			if lastErr == nil {
				lastClass, lastErr = contracts.ClassUnavailable, fmt.Errorf("okx returned no tickers")
			}
			return nil, lastClass, lastErr
		}

		return payload, "", nil
	})
}

func (o *OKX) ticker(ctx context.Context, pair string) (contracts.Quote, contracts.ErrorClass, error) {
	url := fmt.Sprintf("%s/api/v5/market/ticker?instId=%s", o.baseURL, pair)

	var resp okxTickerResponse
	class, err := o.getJSON(ctx, url, nil, &resp)
	if err != nil {
		return contracts.Quote{}, class, fmt.Errorf("okx ticker %s: %w", pair, err)
	}

	if resp.Code != "0" || len(resp.Data) == 0 {
		return contracts.Quote{}, contracts.ClassMalformed,
			fmt.Errorf("okx ticker %s: code=%s msg=%s", pair, resp.Code, resp.Msg)
	}

	d := resp.Data[0]
	last, err := strconv.ParseFloat(d.Last, 64)
	if err != nil {
		return contracts.Quote{}, contracts.ClassMalformed,
			fmt.Errorf("okx ticker %s: bad last price %q", pair, d.Last)
	}

	var change float64
	if open, err := strconv.ParseFloat(d.Open24h, 64); err == nil && open != 0 {
		change = (last - open) / open
	}

	return contracts.Quote{
		Symbol:    pair,
		Price:     last,
		Change24h: change,
	}, "", nil
}

// Healthcheck implements Adapter
func (o *OKX) Healthcheck(ctx context.Context) bool {
	_, _, err := o.ticker(ctx, "BTC-USDT")
	return err == nil
}
