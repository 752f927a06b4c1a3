package pipeline

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/wonny/macrolens/backend/internal/contracts"
	"github.com/wonny/macrolens/backend/internal/provider"
)

// resolve calls the registry with panic containment so a misbehaving
// adapter inside a fan-out goroutine degrades to a failed outcome instead
// of killing the process
func (o *Orchestrator) resolve(ctx context.Context, need string) (out contracts.Outcome) {
	defer func() {
		if r := recover(); r != nil {
			out = contracts.Fail(need, contracts.ClassMalformed,
				fmt.Sprintf("panic: %v", r), 0)
		}
	}()
	return o.registry.Resolve(ctx, provider.Request{Need: need})
}

// macroIngest pulls the macro snapshot and derives policy-stance signals.
// A fully failed fetch leaves the macro bucket empty; downstream stages
// and rules simply see fewer inputs.
func (o *Orchestrator) macroIngest(ctx context.Context, view contracts.RunState) contracts.StageUpdate {
	var update contracts.StageUpdate

	out := o.resolve(ctx, provider.NeedMacroSnapshot)

	var macro contracts.MacroData
	if out.Success {
		macro = macroFromPayload(out.Payload)
		update.Macro = &macro
	} else {
		update.Errors = append(update.Errors,
			o.fetchError(provider.NeedMacroSnapshot, contracts.StageMacroIngest, out, view.AsOf))
	}

	sigs, notes := o.builder.Macro(macro, view.RunID, view.AsOf)
	update.Signals = sigs
	update.Errors = append(update.Errors, noteErrors(contracts.StageMacroIngest, notes, view.AsOf)...)

	return update
}

// macroFromPayload folds a provider payload into the macro bucket.
// Indicators keep the newest observation per series.
func macroFromPayload(p *contracts.ProviderPayload) contracts.MacroData {
	macro := contracts.MacroData{}

	if len(p.Series) > 0 {
		macro.Indicators = make(map[string]contracts.Observation, len(p.Series))
		for sid, obs := range p.Series {
			if len(obs) == 0 {
				continue
			}
			macro.Indicators[sid] = obs[len(obs)-1]
		}
	}

	if spread, ok := p.Metrics["yield_spread_2y10y"]; ok {
		s := spread
		macro.YieldSpread = &s
	}

	for _, key := range []string{"cpi_yoy", "core_cpi_yoy"} {
		if v, ok := p.Metrics[key]; ok {
			if macro.Inflation == nil {
				macro.Inflation = map[string]float64{}
			}
			macro.Inflation[key] = v
		}
	}

	return macro
}

// crossAssetIngest pulls equity and crypto quotes concurrently and derives
// risk-sentiment signals. The two needs fail independently.
func (o *Orchestrator) crossAssetIngest(ctx context.Context, view contracts.RunState) contracts.StageUpdate {
	var update contracts.StageUpdate

	needs := []string{provider.NeedEquityQuotes, provider.NeedCryptoQuotes}
	outcomes := make([]contracts.Outcome, len(needs))

	var wg sync.WaitGroup
	for i, need := range needs {
		wg.Add(1)
		go func(i int, need string) {
			defer wg.Done()
			outcomes[i] = o.resolve(ctx, need)
		}(i, need)
	}
	wg.Wait()

	market := contracts.MarketData{}
	anySuccess := false
	for i, out := range outcomes {
		if !out.Success {
			update.Errors = append(update.Errors,
				o.fetchError(needs[i], contracts.StageCrossAssetIngest, out, view.AsOf))
			continue
		}
		anySuccess = true
		for sym, q := range out.Payload.Quotes {
			if market.Assets == nil {
				market.Assets = map[string]contracts.Quote{}
			}
			market.Assets[sym] = q
		}
		if v, ok := out.Payload.Metrics["vix_level"]; ok {
			vix := v
			market.VIXLevel = &vix
		}
	}
	if anySuccess {
		update.Market = &market
	}

	sigs, notes := o.builder.CrossAsset(market, view.RunID, view.AsOf)
	update.Signals = sigs
	update.Errors = append(update.Errors, noteErrors(contracts.StageCrossAssetIngest, notes, view.AsOf)...)

	return update
}

// newsIngest pulls market news and the optional prediction-market snapshot
// concurrently and derives sentiment signals
func (o *Orchestrator) newsIngest(ctx context.Context, view contracts.RunState) contracts.StageUpdate {
	var update contracts.StageUpdate

	var wg sync.WaitGroup
	var newsOut, predOut contracts.Outcome

	wg.Add(2)
	go func() {
		defer wg.Done()
		newsOut = o.resolve(ctx, provider.NeedMarketNews)
	}()
	go func() {
		defer wg.Done()
		predOut = o.resolve(ctx, provider.NeedPredictionMarkets)
	}()
	wg.Wait()

	var news contracts.NewsData
	if newsOut.Success {
		news = contracts.NewsData{
			Articles: newsOut.Payload.Articles,
			Summary:  o.newsSummary(newsOut.Payload.Articles),
			Source:   newsOut.Adapter,
		}
		update.News = &news
	} else {
		update.Errors = append(update.Errors,
			o.fetchError(provider.NeedMarketNews, contracts.StageNewsIngest, newsOut, view.AsOf))
	}

	var sentiment contracts.SentimentData
	if predOut.Success {
		sentiment = contracts.SentimentData{
			Available:         true,
			Markets:           predOut.Payload.Markets,
			FedCutProbability: fedCutProbability(predOut.Payload.Markets),
		}
		update.Sentiment = &sentiment
	} else {
		update.Errors = append(update.Errors,
			o.fetchError(provider.NeedPredictionMarkets, contracts.StageNewsIngest, predOut, view.AsOf))
	}

	sigs, notes := o.builder.News(news, view.RunID, view.AsOf)
	moreSigs, moreNotes := o.builder.Sentiment(sentiment, view.RunID, view.AsOf)
	update.Signals = append(sigs, moreSigs...)
	update.Errors = append(update.Errors,
		noteErrors(contracts.StageNewsIngest, append(notes, moreNotes...), view.AsOf)...)

	return update
}

// newsSummary aggregates article sentiment with the configured
// bullish/bearish cutoffs
func (o *Orchestrator) newsSummary(articles []contracts.Article) contracts.NewsSummary {
	summary := contracts.NewsSummary{ArticleCount: len(articles)}

	var total float64
	for _, a := range articles {
		if a.Sentiment == nil {
			continue
		}
		s := *a.Sentiment
		summary.ScoredCount++
		total += s
		switch {
		case s > o.params.SentimentBullishMin:
			summary.BullishCount++
		case s < o.params.SentimentBearishMax:
			summary.BearishCount++
		default:
			summary.NeutralCount++
		}
	}

	if summary.ScoredCount > 0 {
		summary.AvgSentiment = total / float64(summary.ScoredCount)
	}
	return summary
}

// fedCutProbability picks the YES price of the first market asking about a
// Fed rate cut. Nil when no market matches.
func fedCutProbability(markets []contracts.PredictionMarket) *float64 {
	for _, m := range markets {
		q := strings.ToLower(m.Question)
		if !strings.Contains(q, "fed") && !strings.Contains(q, "federal reserve") {
			continue
		}
		if strings.Contains(q, "cut") || strings.Contains(q, "lower") {
			p := m.Probability
			return &p
		}
	}
	return nil
}
