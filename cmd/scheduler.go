package cmd

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"quant-platform/pkg/logger"

	"github.com/spf13/cobra"
)

var schedulerCmd = &cobra.Command{
	Use:   "scheduler",
	Short: "Run only the job scheduler",
	Run:   RunScheduler,
}

func RunScheduler(cmd *cobra.Command, args []string) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	appDep, err := NewAppDependency(ctx)
	if err != nil {
		log.Fatalf("Failed to create app dependency: %v", err)
	}

	repo, services, err := appDep.NewServices()
	if err != nil {
		log.Fatalf("Failed to create services: %v", err)
	}

	if err := startScheduler(ctx, appDep, repo, services); err != nil {
		log.Fatalf("Failed to start scheduler: %v", err)
	}

	for name, next := range services.Scheduler.NextRunsAll() {
		appDep.log.Info("Next run", logger.StringField("job_name", name), logger.TimeField("next_run", next))
	}

	<-ctx.Done()
	appDep.log.Info("Shutting down scheduler...")
	stopScheduler(appDep, services)

	if err := appDep.Close(); err != nil {
		log.Fatalf("Failed to close app dependency: %v", err)
	}
}
