package provider

import (
	"context"

	"github.com/wonny/macrolens/backend/internal/contracts"
)

// Logical data needs resolved through the registry
// ⭐ SSOT: 파이프라인 스테이지는 어댑터가 아니라 need 이름으로만 데이터 요청
const (
	NeedMacroSnapshot     = "macro_snapshot"
	NeedEquityQuotes      = "equity_quotes"
	NeedCryptoQuotes      = "crypto_quotes"
	NeedMarketNews        = "market_news"
	NeedPredictionMarkets = "prediction_markets"
)

// Request describes one data need with source-specific parameters
type Request struct {
	Need   string
	Params map[string]string
}

// Adapter is a single upstream data source. Fetch never panics and never
// returns an error: every failure is folded into the Outcome so the caller
// decides severity.
type Adapter interface {
	Name() string
	Fetch(ctx context.Context, req Request) contracts.Outcome
	Healthcheck(ctx context.Context) bool
}
