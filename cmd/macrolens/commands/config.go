package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wonny/macrolens/backend/internal/analysisconfig"
	appconfig "github.com/wonny/macrolens/backend/pkg/config"
)

// configCmd inspects the analysis configuration
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "분석 설정 검증/조회",
	Long: `분석 설정 파일(YAML)을 검증하고 내용을 요약합니다.

Subcommands:
  validate - 설정 파일 검증
  hash     - 설정 해시 출력 (런 아카이브와 대조용)

Example:
  go run ./cmd/macrolens config validate
  go run ./cmd/macrolens config hash`,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "설정 파일 검증",
	RunE:  validateConfig,
}

var configHashCmd = &cobra.Command{
	Use:   "hash",
	Short: "설정 해시 출력",
	RunE:  printConfigHash,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configValidateCmd)
	configCmd.AddCommand(configHashCmd)
}

func analysisConfigPath() (string, error) {
	if analysisConfigFlag != "" {
		return analysisConfigFlag, nil
	}
	cfg, err := appconfig.Load()
	if err != nil {
		return "", err
	}
	return cfg.AnalysisConfigPath, nil
}

func validateConfig(cmd *cobra.Command, args []string) error {
	path, err := analysisConfigPath()
	if err != nil {
		return err
	}

	acfg, raw, err := analysisconfig.Load(path)
	if err != nil {
		return fmt.Errorf("invalid analysis config: %w", err)
	}
	snap, err := analysisconfig.NewSnapshot(acfg, raw)
	if err != nil {
		return err
	}

	fmt.Printf("✅ %s is valid\n\n", path)
	fmt.Printf("Analysis:  %s (v%s)\n", acfg.Meta.AnalysisID, acfg.Meta.Version)
	fmt.Printf("Schedule:  %s (%s)\n", acfg.Meta.Schedule, acfg.Meta.Timezone)
	fmt.Printf("Needs:     %d\n", len(acfg.Providers))
	fmt.Printf("Rules:     %d\n", len(acfg.Rules))
	fmt.Printf("Hash:      %s\n", snap.ConfigHash)
	return nil
}

func printConfigHash(cmd *cobra.Command, args []string) error {
	path, err := analysisConfigPath()
	if err != nil {
		return err
	}

	acfg, _, err := analysisconfig.Load(path)
	if err != nil {
		return err
	}
	hash, err := analysisconfig.Hash(acfg)
	if err != nil {
		return err
	}

	fmt.Println(hash)
	return nil
}
