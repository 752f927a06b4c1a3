package provider

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/macrolens/backend/internal/analysisconfig"
	"github.com/wonny/macrolens/backend/internal/cache"
	"github.com/wonny/macrolens/backend/internal/contracts"
	"github.com/wonny/macrolens/backend/pkg/httputil"
	"github.com/wonny/macrolens/backend/pkg/logger"
)

var testTTLs = analysisconfig.CacheTTLs{
	MacroSnapshotSec:     60,
	QuotesSec:            60,
	NewsSec:              60,
	PredictionMarketsSec: 60,
}

func testDeps(t *testing.T) (*httputil.Client, *cache.Store, *logger.Logger) {
	t.Helper()
	log := logger.NewNop()
	client := httputil.New(log, 2*time.Second).
		WithRetry(httputil.RetryConfig{Enabled: false})
	return client, cache.NewStore(32, log), log
}

// fredHandler serves canned observations per series, newest first
func fredHandler(values map[string][]string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sid := r.URL.Query().Get("series_id")
		obs, ok := values[sid]
		if !ok {
			fmt.Fprint(w, `{"observations":[]}`)
			return
		}
		fmt.Fprint(w, `{"observations":[`)
		for i, v := range obs {
			if i > 0 {
				fmt.Fprint(w, ",")
			}
			fmt.Fprintf(w, `{"date":"2025-%02d-01","value":"%s"}`, 12-i, v)
		}
		fmt.Fprint(w, `]}`)
	}
}

func TestFREDMacroSnapshot(t *testing.T) {
	cpi := make([]string, 13)
	for i := range cpi {
		// newest first: 310 down to 298
		cpi[i] = fmt.Sprintf("%d", 310-i)
	}

	srv := httptest.NewServer(fredHandler(map[string][]string{
		"FEDFUNDS": {"5.25", "5.25"},
		"DGS2":     {"4.60", "4.58"},
		"DGS10":    {"4.40", "4.42"},
		"UNRATE":   {"4.1", "4.0"},
		"CPIAUCSL": cpi,
		"CPILFESL": cpi,
	}))
	defer srv.Close()

	client, store, log := testDeps(t)
	fred := NewFRED("test-key", client, store, testTTLs, log)
	fred.baseURL = srv.URL

	out := fred.Fetch(context.Background(), Request{Need: NeedMacroSnapshot})
	require.True(t, out.Success, "fetch failed: %s", out.Err)
	require.NotNil(t, out.Payload)

	ff := out.Payload.Series["FEDFUNDS"]
	require.NotEmpty(t, ff)
	assert.Equal(t, 5.25, ff[len(ff)-1].Value)

	assert.InDelta(t, -0.2, out.Payload.Metrics["yield_spread_2y10y"], 1e-9)

	// (310-298)/298 = 4.03% YoY
	assert.InDelta(t, 4.03, out.Payload.Metrics["cpi_yoy"], 0.01)
	assert.False(t, out.FromCache)
}

func TestFREDUsesCacheOnSecondFetch(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		fredHandler(map[string][]string{
			"FEDFUNDS": {"5.25", "5.25"},
		})(w, r)
	}))
	defer srv.Close()

	client, store, log := testDeps(t)
	fred := NewFRED("test-key", client, store, testTTLs, log)
	fred.baseURL = srv.URL

	first := fred.Fetch(context.Background(), Request{Need: NeedMacroSnapshot})
	require.True(t, first.Success)
	callsAfterFirst := calls

	second := fred.Fetch(context.Background(), Request{Need: NeedMacroSnapshot})
	require.True(t, second.Success)

	assert.True(t, second.FromCache)
	assert.Equal(t, callsAfterFirst, calls, "cached fetch must not hit the network")
}

func TestFREDClassifiesAuthFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	client, store, log := testDeps(t)
	fred := NewFRED("bad-key", client, store, testTTLs, log)
	fred.baseURL = srv.URL

	out := fred.Fetch(context.Background(), Request{Need: NeedMacroSnapshot})
	assert.False(t, out.Success)
	assert.Equal(t, contracts.ClassAuth, out.Class)
	assert.False(t, out.Class.Transient())
}

func TestFREDRejectsWrongNeed(t *testing.T) {
	client, store, log := testDeps(t)
	fred := NewFRED("k", client, store, testTTLs, log)

	out := fred.Fetch(context.Background(), Request{Need: NeedCryptoQuotes})
	assert.False(t, out.Success)
}

func TestOKXCryptoQuotes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		inst := r.URL.Query().Get("instId")
		switch inst {
		case "BTC-USDT":
			fmt.Fprint(w, `{"code":"0","data":[{"instId":"BTC-USDT","last":"59800","open24h":"65000"}]}`)
		case "ETH-USDT":
			fmt.Fprint(w, `{"code":"0","data":[{"instId":"ETH-USDT","last":"3100","open24h":"3000"}]}`)
		default:
			fmt.Fprint(w, `{"code":"51001","msg":"instrument not found","data":[]}`)
		}
	}))
	defer srv.Close()

	client, store, log := testDeps(t)
	okx := NewOKX(client, store, testTTLs, log)
	okx.baseURL = srv.URL

	out := okx.Fetch(context.Background(), Request{Need: NeedCryptoQuotes})
	require.True(t, out.Success, "fetch failed: %s", out.Err)

	btc := out.Payload.Quotes["BTC-USDT"]
	assert.Equal(t, 59800.0, btc.Price)
	assert.InDelta(t, -0.08, btc.Change24h, 0.001)

	eth := out.Payload.Quotes["ETH-USDT"]
	assert.InDelta(t, 0.0333, eth.Change24h, 0.001)

	// SOL failed but partial data is still a success
	_, hasSOL := out.Payload.Quotes["SOL-USDT"]
	assert.False(t, hasSOL)
}

func TestFinnhubQuotesAndVIX(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("symbol") {
		case "SPY":
			fmt.Fprint(w, `{"c":500.0,"pc":520.0}`)
		case "^VIX":
			fmt.Fprint(w, `{"c":32.5,"pc":28.0}`)
		default:
			fmt.Fprint(w, `{"c":0,"pc":0}`)
		}
	}))
	defer srv.Close()

	client, store, log := testDeps(t)
	fh := NewFinnhub("k", client, store, testTTLs, log)
	fh.baseURL = srv.URL

	out := fh.Fetch(context.Background(), Request{Need: NeedEquityQuotes})
	require.True(t, out.Success)

	spy := out.Payload.Quotes["SPY"]
	assert.InDelta(t, -0.0385, spy.Change24h, 0.001)
	assert.Equal(t, 32.5, out.Payload.Metrics["vix_level"])

	// zero-priced symbols are silently dropped, not quoted at 0
	_, hasQQQ := out.Payload.Quotes["QQQ"]
	assert.False(t, hasQQQ)
}

func TestAlphaVantageRateLimitInBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"Note":"API call frequency is 25 requests per day"}`)
	}))
	defer srv.Close()

	client, store, log := testDeps(t)
	av := NewAlphaVantage("k", client, store, testTTLs, log)
	av.baseURL = srv.URL

	out := av.Fetch(context.Background(), Request{Need: NeedMarketNews})
	assert.False(t, out.Success)
	assert.Equal(t, contracts.ClassRateLimited, out.Class)
	assert.True(t, out.Class.Transient())
}

func TestAlphaVantageNewsSentiment(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"feed":[
			{"title":"Fed holds rates","source":"Reuters","url":"https://example.com/1","summary":"<p>Rates &amp; policy</p>","time_published":"20250602T133000","overall_sentiment_score":0.21},
			{"title":"Markets slide","source":"WSJ","url":"https://example.com/2","summary":"plain text","time_published":"20250602T120000","overall_sentiment_score":-0.35}
		]}`)
	}))
	defer srv.Close()

	client, store, log := testDeps(t)
	av := NewAlphaVantage("k", client, store, testTTLs, log)
	av.baseURL = srv.URL

	out := av.Fetch(context.Background(), Request{Need: NeedMarketNews})
	require.True(t, out.Success)
	require.Len(t, out.Payload.Articles, 2)

	first := out.Payload.Articles[0]
	assert.Equal(t, "Rates & policy", first.Summary, "markup should be stripped")
	require.NotNil(t, first.Sentiment)
	assert.Equal(t, 0.21, *first.Sentiment)
}

func TestMarketauxEntitySentimentAverage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data":[
			{"title":"Tech rally","source":"marketaux","url":"u","description":"d","published_at":"2025-06-02T12:00:00Z",
			 "entities":[{"sentiment_score":0.4},{"sentiment_score":0.2}]},
			{"title":"No entities","source":"marketaux","url":"u2","description":"d2","published_at":"2025-06-02T11:00:00Z","entities":[]}
		]}`)
	}))
	defer srv.Close()

	client, store, log := testDeps(t)
	mx := NewMarketaux("k", client, store, testTTLs, log)
	mx.baseURL = srv.URL

	out := mx.Fetch(context.Background(), Request{Need: NeedMarketNews})
	require.True(t, out.Success)
	require.Len(t, out.Payload.Articles, 2)

	require.NotNil(t, out.Payload.Articles[0].Sentiment)
	assert.InDelta(t, 0.3, *out.Payload.Articles[0].Sentiment, 1e-9)
	assert.Nil(t, out.Payload.Articles[1].Sentiment)
}

func TestPolymarketParsesNestedPrices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[
			{"question":"Fed cuts rates by September?","outcomePrices":"[\"0.72\", \"0.28\"]","volume":"120000.5","active":true},
			{"question":"Inactive market","outcomePrices":"[\"0.5\", \"0.5\"]","volume":"10","active":false},
			{"question":"Broken prices","outcomePrices":"not json","volume":"10","active":true}
		]`)
	}))
	defer srv.Close()

	client, store, log := testDeps(t)
	pm := NewPolymarket(true, client, store, testTTLs, log)
	pm.baseURL = srv.URL

	out := pm.Fetch(context.Background(), Request{Need: NeedPredictionMarkets})
	require.True(t, out.Success)
	require.Len(t, out.Payload.Markets, 1)
	assert.Equal(t, 0.72, out.Payload.Markets[0].Probability)
	assert.Equal(t, 120000.5, out.Payload.Markets[0].Volume)
}

func TestPolymarketCollapsesFailuresToUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	client, store, log := testDeps(t)
	pm := NewPolymarket(true, client, store, testTTLs, log)
	pm.baseURL = srv.URL

	out := pm.Fetch(context.Background(), Request{Need: NeedPredictionMarkets})
	assert.False(t, out.Success)
	assert.Equal(t, contracts.ClassUnavailable, out.Class)
}

func TestPolymarketDisabled(t *testing.T) {
	client, store, log := testDeps(t)
	pm := NewPolymarket(false, client, store, testTTLs, log)

	out := pm.Fetch(context.Background(), Request{Need: NeedPredictionMarkets})
	assert.False(t, out.Success)
	assert.Equal(t, contracts.ClassUnavailable, out.Class)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		status int
		want   contracts.ErrorClass
	}{
		{http.StatusTooManyRequests, contracts.ClassRateLimited},
		{http.StatusUnauthorized, contracts.ClassAuth},
		{http.StatusForbidden, contracts.ClassAuth},
		{http.StatusNotFound, contracts.ClassNotFound},
		{http.StatusInternalServerError, contracts.ClassUnavailable},
		{http.StatusBadGateway, contracts.ClassUnavailable},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, Classify(tt.status, fmt.Errorf("status %d", tt.status)), "status %d", tt.status)
	}

	assert.Equal(t, contracts.ClassMalformed, Classify(200, fmt.Errorf("wrap: %w", httputil.ErrMalformed)))
	assert.Equal(t, contracts.ClassTimeout, Classify(0, fmt.Errorf("wrap: %w", context.DeadlineExceeded)))
}

func TestCleanSnippet(t *testing.T) {
	assert.Equal(t, "Rates & policy", CleanSnippet("<p>Rates &amp;\n policy</p>"))
	assert.Equal(t, "plain", CleanSnippet("  plain  "))
	assert.Equal(t, "", CleanSnippet(""))

	long := ""
	for i := 0; i < 200; i++ {
		long += "word "
	}
	cleaned := CleanSnippet(long)
	assert.LessOrEqual(t, len(cleaned), maxSnippetLen+len("…"))
}

func TestCleanSnippetKeepsRunesWhole(t *testing.T) {
	// spaceless multi-byte text: the byte cut must not split a rune
	long := strings.Repeat("가", 200)

	cleaned := CleanSnippet(long)
	assert.True(t, utf8.ValidString(cleaned))
	assert.True(t, strings.HasSuffix(cleaned, "…"))
	assert.LessOrEqual(t, len(cleaned), maxSnippetLen+len("…"))
}
