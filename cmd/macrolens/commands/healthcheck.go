package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

// healthcheckCmd probes every configured provider adapter
var healthcheckCmd = &cobra.Command{
	Use:   "healthcheck",
	Short: "프로바이더 연결 상태 점검",
	Long: `등록된 모든 프로바이더 어댑터의 연결 상태를 점검합니다.

Example:
  go run ./cmd/macrolens healthcheck`,
	RunE: runHealthcheck,
}

func init() {
	rootCmd.AddCommand(healthcheckCmd)
}

func runHealthcheck(cmd *cobra.Command, args []string) error {
	d, err := buildDeps()
	if err != nil {
		return err
	}
	defer d.close()

	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()

	fmt.Println("=== Provider Healthcheck ===")

	statuses := d.registry.Healthchecks(ctx)
	unhealthy := 0
	for _, s := range statuses {
		mark := "✅"
		if !s.Healthy {
			mark = "❌"
			unhealthy++
		}
		fmt.Printf("  %s %-14s %v\n", mark, s.Adapter, s.Latency.Round(time.Millisecond))
	}

	if unhealthy > 0 {
		return fmt.Errorf("%d of %d providers unhealthy", unhealthy, len(statuses))
	}
	fmt.Printf("\nAll %d providers healthy.\n", len(statuses))
	return nil
}
