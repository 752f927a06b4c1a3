package commands

import (
	"github.com/spf13/cobra"
)

var (
	// Global flags
	analysisConfigFlag string
	verbose            bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "macrolens",
	Short: "MacroLens - 매크로 탑다운 시장 분석 시스템",
	Long: `MacroLens Unified CLI

매크로 → 크로스에셋 → 뉴스 순의 탑다운 분석 파이프라인.
시그널 산출, 알림 룰 평가, 리포트 생성까지 한 번의 런으로 수행.

Usage:
  go run ./cmd/macrolens [command]

Examples:
  go run ./cmd/macrolens run
  go run ./cmd/macrolens serve
  go run ./cmd/macrolens healthcheck
  go run ./cmd/macrolens config validate`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&analysisConfigFlag, "analysis-config", "",
		"analysis config file (default from ANALYSIS_CONFIG)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
