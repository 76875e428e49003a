package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/odyssey-erp/ppestock/cmd/ppestock/cli"
	"github.com/odyssey-erp/ppestock/internal/app"
	"github.com/odyssey-erp/ppestock/internal/backup"
	backuphttp "github.com/odyssey-erp/ppestock/internal/backup/http"
	jobmetrics "github.com/odyssey-erp/ppestock/internal/jobs"
	"github.com/odyssey-erp/ppestock/internal/notify"
	"github.com/odyssey-erp/ppestock/internal/observability"
	"github.com/odyssey-erp/ppestock/internal/platform/db"
	"github.com/odyssey-erp/ppestock/internal/products"
	producthttp "github.com/odyssey-erp/ppestock/internal/products/http"
	"github.com/odyssey-erp/ppestock/jobs"
)

const usage = `usage: ppestock [command] [flags]

commands:
  serve      run the local API and scheduled jobs (default)
  backup     write a manual backup now
  backups    list backups
  restore    restore a backup (--id NAME --yes); stop a running server first,
             or use POST /api/backups/{id}/restore against it
  export     export products (--format csv|pdf|xlsx --out FILE --status S --q TERM --today DATE)
`

// runtime bundles the components every command shares.
type runtime struct {
	cfg      *app.Config
	logger   *slog.Logger
	handle   *db.Handle
	service  *products.Service
	coord    *backup.Coordinator
	metrics  *observability.Metrics
	jobStats *jobmetrics.Metrics
}

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	command := "serve"
	if len(args) > 0 && args[0] != "" && args[0][0] != '-' {
		command, args = args[0], args[1:]
	}
	switch command {
	case "help":
		_, _ = fmt.Fprint(stdout, usage)
		return 0
	case "serve", "backup", "backups", "restore", "export":
	default:
		_, _ = fmt.Fprintf(stderr, "unknown command %q\n\n%s", command, usage)
		return 2
	}

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		return 1
	}
	logger := app.NewLogger(cfg)

	rt, err := bootstrap(ctx, cfg, logger)
	if err != nil {
		logger.Error("bootstrap", slog.Any("error", err))
		return 1
	}
	defer func() {
		if err := rt.handle.Close(); err != nil {
			logger.Warn("close store", slog.Any("error", err))
		}
	}()

	switch command {
	case "serve":
		if err := serve(ctx, rt); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("serve", slog.Any("error", err))
			return 1
		}
		return 0
	case "backup", "backups", "restore":
		return backupCommand(ctx, rt, command, args, stdout, stderr)
	default:
		return exportCommand(ctx, rt, args, stdout, stderr)
	}
}

func bootstrap(ctx context.Context, cfg *app.Config, logger *slog.Logger) (*runtime, error) {
	handle, err := db.Open(ctx, cfg.StorePath, logger)
	if err != nil {
		return nil, err
	}
	metrics := observability.NewMetrics()
	jobStats := jobmetrics.NewMetrics(metrics.Registerer())

	coord, err := backup.NewCoordinator(handle, backup.Config{
		Dir:         cfg.BackupDir,
		Retention:   cfg.BackupRetention,
		CopyTimeout: cfg.BackupCopyTimeout,
	}, logger, jobStats)
	if err != nil {
		_ = handle.Close()
		return nil, err
	}
	coord.OnStoreReplaced(handle.Reopen)

	return &runtime{
		cfg:      cfg,
		logger:   logger,
		handle:   handle,
		service:  products.NewService(products.NewRepository(handle), logger),
		coord:    coord,
		metrics:  metrics,
		jobStats: jobStats,
	}, nil
}

func serve(ctx context.Context, rt *runtime) error {
	cfg, logger := rt.cfg, rt.logger

	registrations := []jobs.CronRegistration{{
		Name:  jobs.JobAutoBackup,
		Every: cfg.BackupInterval,
		Run:   jobs.NewAutoBackupJob(rt.coord, logger).Run,
	}}
	if cfg.NotifyEnabled {
		mailer := notify.NewMailer(notify.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			User:     cfg.SMTPUser,
			Password: cfg.SMTPPassword,
			From:     cfg.SMTPFrom,
		})
		digest := notify.NewDigest(rt.service, mailer, cfg.NotifyTo, logger, rt.jobStats)
		registrations = append(registrations, jobs.CronRegistration{
			Name: jobs.JobNearExpiryDigest,
			Spec: cfg.NotifySchedule,
			Run:  jobs.NewNearExpiryJob(digest, logger).Run,
		})
	}
	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		Logger:  logger,
		Metrics: rt.jobStats,
		Cron:    registrations,
	})
	if err != nil {
		return err
	}

	router := app.NewRouter(app.RouterParams{
		Logger:         logger,
		Config:         cfg,
		ProductHandler: producthttp.NewHandler(logger, rt.service, nil),
		BackupHandler:  backuphttp.NewHandler(logger, rt.coord, cfg.BackupRateLimit),
		Metrics:        rt.metrics,
		Health:         func(r *http.Request) error { return rt.handle.Ping(r.Context()) },
	})
	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return worker.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("graceful shutdown", slog.Any("error", err))
		}
		return nil
	})
	return g.Wait()
}

func backupCommand(ctx context.Context, rt *runtime, command string, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet(command, flag.ContinueOnError)
	fs.SetOutput(stderr)
	jsonOut := fs.Bool("json", false, "print JSON")
	id := fs.String("id", "", "backup to restore")
	yes := fs.Bool("yes", false, "confirm replacing the current data")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	helper, err := cli.NewBackupCLI(rt.coord)
	if err != nil {
		_, _ = fmt.Fprintln(stderr, err)
		return 1
	}
	out := cli.OutputOptions{JSONOutput: *jsonOut, Stdout: stdout, Stderr: stderr}
	switch command {
	case "backup":
		return helper.BackupCommand(ctx, out)
	case "backups":
		return helper.ListCommand(ctx, out)
	default:
		return helper.RestoreCommand(ctx, cli.RestoreOptions{OutputOptions: out, ID: *id, Confirm: *yes})
	}
}

func exportCommand(ctx context.Context, rt *runtime, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	fs.SetOutput(stderr)
	opts := cli.ExportOptions{Stdout: stdout, Stderr: stderr}
	fs.StringVar(&opts.Format, "format", "csv", "csv, pdf or xlsx")
	fs.StringVar(&opts.Output, "out", "-", "output file, - for stdout")
	fs.StringVar(&opts.Status, "status", "", "NORMAL, NEAR_EXPIRY, EXPIRED or UNTRACKED")
	fs.StringVar(&opts.Term, "q", "", "name or batch search term")
	fs.StringVar(&opts.Today, "today", "", "evaluation date, defaults to the local date")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	helper, err := cli.NewExportCLI(rt.service)
	if err != nil {
		_, _ = fmt.Fprintln(stderr, err)
		return 1
	}
	return helper.ExportCommand(ctx, opts)
}
