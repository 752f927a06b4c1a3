package contracts

// Pipeline stage definitions (SSOT)
// 모든 로그, 에러 엔트리, DB row에서 이 상수를 사용해야 함
//
// 파이프라인 흐름:
//   Bootstrap → MacroIngest → CrossAssetIngest → NewsIngest → Synthesize

// Stage represents a pipeline stage
type Stage string

const (
	// StageBootstrap assigns run identity and the as-of timestamp.
	// The only stage whose failure aborts the run.
	StageBootstrap Stage = "bootstrap"

	// StageMacroIngest pulls macro indicators (rates, inflation, labor)
	// and derives policy-stance signals.
	StageMacroIngest Stage = "macro_ingest"

	// StageCrossAssetIngest pulls equity/safe-haven/crypto quotes and VIX
	// and derives risk-sentiment signals.
	StageCrossAssetIngest Stage = "cross_asset_ingest"

	// StageNewsIngest pulls market news with sentiment plus optional
	// prediction-market data and derives sentiment signals.
	StageNewsIngest Stage = "news_ingest"

	// StageSynthesize evaluates alert rules against the accumulated state
	// and assembles the report skeleton.
	StageSynthesize Stage = "synthesize"
)

// String returns the stage name
func (s Stage) String() string {
	return string(s)
}

// AllStages returns all pipeline stages in execution order
func AllStages() []Stage {
	return []Stage{
		StageBootstrap,
		StageMacroIngest,
		StageCrossAssetIngest,
		StageNewsIngest,
		StageSynthesize,
	}
}

// IsValidStage checks if a stage string is valid
func IsValidStage(s string) bool {
	for _, stage := range AllStages() {
		if string(stage) == s {
			return true
		}
	}
	return false
}
