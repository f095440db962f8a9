package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-api/internal/persistence"
	"github.com/spec-kit/helpdesk-api/internal/worker"
)

const shutdownTimeout = 10 * time.Second

var rootCmd = &cobra.Command{
	Use:   "api",
	Short: "Helpdesk ticketing API",
	Long: `Helpdesk ticketing API.

Runs the HTTP server by default. Configuration is read from the environment
and an optional .env file.`,
	SilenceUsage: true,
	RunE:         runServe,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server and the SLA sweeper",
	RunE:  runServe,
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations and exit",
	RunE:  runMigrate,
}

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Flag overdue tickets once and exit",
	RunE:  runSweep,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(sweepCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rt, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer rt.Close()
	logger := rt.logger

	worker.StartNotificationWorker(rt.notifications)

	sweeper := worker.NewSLASweeper(rt.tickets, rt.cfg.SLA, logger, rt.metrics)
	if err := sweeper.Start(ctx); err != nil {
		return err
	}

	app := rt.httpApp()
	listenErr := make(chan error, 1)
	go func() {
		logger.Info("http server listening", zap.String("addr", rt.cfg.App.Addr()))
		listenErr <- app.Listen(rt.cfg.App.Addr())
	}()

	select {
	case err := <-listenErr:
		<-sweeper.Stop().Done()
		return fmt.Errorf("fiber listen: %w", err)
	case <-ctx.Done():
		logger.Info("shutting down")
	}

	if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}

	select {
	case <-sweeper.Stop().Done():
	case <-time.After(shutdownTimeout):
		logger.Warn("sla sweep still running at shutdown")
	}
	return nil
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	rt, err := bootstrapStorage(cmd.Context())
	if err != nil {
		return err
	}
	defer rt.Close()

	if !rt.pg.Enabled() {
		return errors.New("POSTGRES_DSN is required to run migrations")
	}
	return persistence.RunMigrations(cmd.Context(), rt.pg.PoolHandle(), rt.logger)
}

func runSweep(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	rt, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer rt.Close()

	worker.StartNotificationWorker(rt.notifications)
	flagged, err := worker.NewSLASweeper(rt.tickets, rt.cfg.SLA, rt.logger, rt.metrics).RunOnce(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "flagged %d ticket(s) as breached\n", flagged)
	return nil
}

func contextOrBackground(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}
