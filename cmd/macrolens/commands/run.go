package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wonny/macrolens/backend/internal/contracts"
)

var dryRun bool

// runCmd executes one analysis run immediately
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "분석 파이프라인 1회 실행",
	Long: `분석 파이프라인을 즉시 1회 실행합니다.

Bootstrap → MacroIngest → CrossAssetIngest → NewsIngest → Synthesize
순서로 실행되며, 결과는 아카이브 및 텔레그램으로 전달됩니다.

Example:
  go run ./cmd/macrolens run
  go run ./cmd/macrolens run --dry-run`,
	RunE: runOnce,
}

func init() {
	runCmd.Flags().BoolVar(&dryRun, "dry-run", false, "run without archiving or delivering")
	rootCmd.AddCommand(runCmd)
}

func runOnce(cmd *cobra.Command, args []string) error {
	d, err := buildDeps()
	if err != nil {
		return err
	}
	defer d.close()

	ctx := cmd.Context()
	state, err := d.orchestrator.Run(ctx)
	if err != nil {
		return fmt.Errorf("run failed: %w", err)
	}

	printRunSummary(state)

	if dryRun {
		fmt.Println("\n(dry run: result not archived or delivered)")
		return nil
	}

	if d.repo != nil {
		if err := d.repo.SaveRun(ctx, state); err != nil {
			d.log.WithError(err).Error("Failed to archive run")
		} else {
			fmt.Println("\nRun archived.")
		}
	}

	if d.telegram != nil {
		if err := d.telegram.SendAlerts(ctx, state.Alerts); err != nil {
			d.log.WithError(err).Error("Failed to send Telegram alerts")
		}
		if state.Report != nil {
			if err := d.telegram.SendReport(ctx, *state.Report); err != nil {
				d.log.WithError(err).Error("Failed to send Telegram report")
			}
		}
	}

	return nil
}

func printRunSummary(state *contracts.RunState) {
	fmt.Printf("=== MacroLens Run %s ===\n", state.RunID)
	fmt.Printf("As of: %s (%s)\n\n", state.AsOf.Format("2006-01-02 15:04:05"), state.Timezone)

	fmt.Printf("Signals (%d):\n", len(state.Signals))
	for _, s := range state.Signals {
		fmt.Printf("  %-24s %-8s score %+.2f  confidence %.2f\n",
			s.Name, s.Direction, s.Score, s.Confidence)
	}

	fmt.Printf("\nAlerts (%d):\n", len(state.Alerts))
	for _, a := range state.Alerts {
		fmt.Printf("  [%s] %s: %s\n", a.Severity, a.Title, a.Message)
	}

	if len(state.Errors) > 0 {
		fmt.Printf("\nDegradations (%d):\n", len(state.Errors))
		for _, e := range state.Errors {
			fmt.Printf("  [%s] %s/%s: %s\n", e.Level, e.Stage, e.Source, e.Message)
		}
	}

	if state.Report != nil {
		fmt.Printf("\nReport: %s\n%s\n", state.Report.Title, state.Report.Summary)
	}
}
