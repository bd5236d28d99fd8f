package cmd

import (
	"context"
	"log"
	httpNet "net/http"
	"os"
	"os/signal"
	"syscall"

	"quant-platform/internal/delivery/http"
	"quant-platform/internal/repository"
	"quant-platform/internal/service"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Run the admin API and, when enabled, the job scheduler",
	Run:   Start,
}

func Start(cmd *cobra.Command, args []string) {
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

	if appDep.cfg.Scheduler.Enabled {
		if err := startScheduler(ctx, appDep, repo, services); err != nil {
			log.Fatalf("Failed to start scheduler: %v", err)
		}
	} else {
		appDep.log.Info("Scheduler disabled by configuration")
	}

	httpHandler := http.NewHttpAPIHandler(ctx, appDep.cfg.API, appDep.echo, appDep.log, appDep.validator, services)
	apiServer := NewHTTPServer(ctx, appDep, httpHandler)
	go func() {
		if err := apiServer.Start(); err != nil && err != httpNet.ErrServerClosed {
			log.Fatalf("Failed to start HTTP server: %v", err)
		}
	}()

	<-ctx.Done()
	appDep.log.Info("Shutting down gracefully...")

	if err := apiServer.Stop(); err != nil {
		appDep.log.Error("Failed to stop HTTP server", zap.Error(err))
	}
	stopScheduler(appDep, services)

	if err := appDep.Close(); err != nil {
		log.Fatalf("Failed to close app dependency: %v", err)
	}
}

// startScheduler closes runs abandoned by a previous process, registers the
// enabled jobs and starts the timers.
func startScheduler(ctx context.Context, appDep *AppDependency, repo *repository.Repository, services *service.Service) error {
	if _, err := service.SweepStaleRuns(ctx, appDep.log, repo.ScheduleLogRepo, appDep.cfg.Scheduler.StaleRunThreshold); err != nil {
		appDep.log.Warn("Stale run sweep failed", zap.Error(err))
	}

	if _, err := services.Scheduler.LoadJobsFromDB(ctx); err != nil {
		return err
	}
	services.Scheduler.Start()
	return nil
}

func stopScheduler(appDep *AppDependency, services *service.Service) {
	ctx, cancel := context.WithTimeout(context.Background(), appDep.cfg.Scheduler.ShutdownTimeout)
	defer cancel()
	services.Scheduler.Stop(ctx)
}
