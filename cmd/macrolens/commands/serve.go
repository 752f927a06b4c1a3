package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/macrolens/backend/internal/api"
	"github.com/wonny/macrolens/backend/internal/api/handlers"
	"github.com/wonny/macrolens/backend/internal/contracts"
	"github.com/wonny/macrolens/backend/internal/persist"
	"github.com/wonny/macrolens/backend/internal/scheduler"
	"github.com/wonny/macrolens/backend/internal/scheduler/jobs"
)

// serveCmd runs the scheduler daemon plus the HTTP API
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "스케줄러 + API 서버 시작",
	Long: `스케줄 데몬과 API 서버를 함께 시작합니다.

등록되는 작업:
- scheduled_analysis: 분석 설정의 cron 스케줄에 따라 실행

API:
- GET /health
- GET /api/providers/health
- GET /api/runs/latest
- GET /api/runs/{id}
- GET /api/alerts
- WS  /ws/alerts (실시간 알림 피드)

Ctrl+C로 종료합니다.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	d, err := buildDeps()
	if err != nil {
		return err
	}
	defer d.close()

	loc, err := time.LoadLocation(d.analysis.Meta.Timezone)
	if err != nil {
		return fmt.Errorf("load timezone: %w", err)
	}

	sched := scheduler.New(loc, d.log,
		scheduler.WithJobTimeout(d.cfg.RunDeadline+time.Minute))

	job := jobs.NewAnalysisJob(d.orchestrator, d.repo, d.telegram, d.hub,
		d.analysis.Meta.Schedule, d.log)
	if err := sched.AddJob(job); err != nil {
		return err
	}

	sched.Start()
	defer sched.Stop()

	var store handlers.RunStore = emptyStore{}
	if d.repo != nil {
		store = d.repo
	}
	handler := handlers.NewAnalysisHandler(store, d.registry, d.log)
	server := api.New(d.cfg, d.log, api.NewRouter(handler, d.hub, d.log))

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	fmt.Println("=== MacroLens ===")
	fmt.Printf("Schedule: %s (%s)\n", d.analysis.Meta.Schedule, d.analysis.Meta.Timezone)
	fmt.Printf("API:      http://localhost:%s\n", d.cfg.Port)
	fmt.Println("\nPress Ctrl+C to stop")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case <-quit:
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return server.Shutdown(ctx)
}

// emptyStore serves the API when no database is configured
type emptyStore struct{}

func (emptyStore) LatestRun(context.Context) (*contracts.RunState, error) {
	return nil, persist.ErrNoRuns
}

func (emptyStore) RunByID(context.Context, string) (*contracts.RunState, error) {
	return nil, persist.ErrNoRuns
}

func (emptyStore) RecentAlerts(context.Context, int) ([]contracts.Alert, error) {
	return []contracts.Alert{}, nil
}
