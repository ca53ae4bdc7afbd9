package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/pipewright-labs/pipewright-go/internal/artifacts"
	"github.com/pipewright-labs/pipewright-go/internal/cascade"
	"github.com/pipewright-labs/pipewright-go/internal/execution/coordinator"
	"github.com/pipewright-labs/pipewright-go/internal/execution/executor"
	"github.com/pipewright-labs/pipewright-go/internal/notify"
	"github.com/pipewright-labs/pipewright-go/internal/platform/env"
	"github.com/pipewright-labs/pipewright-go/internal/platform/httpserver"
	"github.com/pipewright-labs/pipewright-go/internal/platform/objectstore"
	"github.com/pipewright-labs/pipewright-go/internal/platform/postgres"
	"github.com/pipewright-labs/pipewright-go/internal/repo"
	pgrepo "github.com/pipewright-labs/pipewright-go/internal/repo/postgres"
	"github.com/pipewright-labs/pipewright-go/internal/repo/sqlite"
	"github.com/pipewright-labs/pipewright-go/internal/retraining"
	"github.com/pipewright-labs/pipewright-go/internal/tracker"
)

type stores struct {
	pipelines repo.PipelineRepository
	runs      repo.PipelineRunRepository
	jobs      repo.RetrainingJobRepository
	configs   repo.RetrainingConfigRepository
	audit     repo.AuditEventAppender
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	ctx := context.Background()
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	addr := env.String("PIPEWRIGHT_HTTP_ADDR", ":8080")
	shutdownTimeout, err := env.Duration("PIPEWRIGHT_SHUTDOWN_TIMEOUT", 10*time.Second)
	if err != nil {
		logger.Error("invalid env", "error", err)
		os.Exit(2)
	}

	repos, ping, closeStore, err := openStores(ctx, logger)
	if err != nil {
		logger.Error("storage unavailable", "error", err)
		os.Exit(1)
	}
	defer closeStore()

	var runCreator executor.RunCreator
	if trackerURL := env.String("PIPEWRIGHT_TRACKER_URL", ""); trackerURL != "" {
		client, err := tracker.NewClient(trackerURL, env.String("PIPEWRIGHT_TRACKER_TOKEN", ""))
		if err != nil {
			logger.Error("invalid tracker config", "error", err)
			os.Exit(2)
		}
		runCreator = client
	}

	var notifier coordinator.Notifier = notify.NewLogNotifier(logger)
	if smtpAddr := env.String("PIPEWRIGHT_SMTP_ADDR", ""); smtpAddr != "" {
		smtpNotifier, err := notify.NewSMTPNotifier(notify.SMTPConfig{
			Addr:     smtpAddr,
			From:     env.String("PIPEWRIGHT_SMTP_FROM", "pipewright@localhost"),
			Username: env.String("PIPEWRIGHT_SMTP_USERNAME", ""),
			Password: env.String("PIPEWRIGHT_SMTP_PASSWORD", ""),
		})
		if err != nil {
			logger.Error("invalid smtp config", "error", err)
			os.Exit(2)
		}
		notifier = smtpNotifier
	}

	var archiver coordinator.Archiver
	if env.String("PIPEWRIGHT_MINIO_ENDPOINT", "") != "" {
		archiver, err = openArchiver(ctx)
		if err != nil {
			logger.Error("object store unavailable", "error", err)
			os.Exit(1)
		}
	}

	script := executor.NewScriptExecutor(env.String("PIPEWRIGHT_STAGE_SHELL", ""))
	train := executor.NewTrainExecutor(script, runCreator, logger)
	registry := executor.NewRegistry(script, train)

	runner := coordinator.New(coordinator.Deps{
		Pipelines: repos.pipelines,
		Runs:      repos.runs,
		Audit:     repos.audit,
		Executors: registry,
		Notifier:  notifier,
		Archiver:  archiver,
		Logger:    logger,
	})
	engine := retraining.New(retraining.Deps{
		Jobs:    repos.jobs,
		Configs: repos.configs,
		Audit:   repos.audit,
		Cascade: cascade.New(repos.pipelines, runner, logger),
		Logger:  logger,
	})

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", httpserver.Healthz("orchestrator"))
	mux.HandleFunc("/readyz", httpserver.Readyz("orchestrator", httpserver.ReadinessCheck{
		Name: "storage",
		Check: func(ctx context.Context) error {
			checkCtx, cancel := context.WithTimeout(ctx, 750*time.Millisecond)
			defer cancel()
			return ping(checkCtx)
		},
	}))

	api := newOrchestratorAPI(logger, repos, runner, engine)
	api.register(mux)

	cfg := httpserver.Config{
		Service:         "orchestrator",
		Addr:            addr,
		ShutdownTimeout: shutdownTimeout,
	}
	if err := httpserver.Run(ctx, logger, cfg, httpserver.Wrap(logger, "orchestrator", mux)); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}
}

// openStores selects the record store backend. Postgres is the default;
// sqlite serves single-node and development deployments.
func openStores(ctx context.Context, logger *slog.Logger) (stores, func(context.Context) error, func(), error) {
	driver := strings.ToLower(env.String("DATABASE_DRIVER", "postgres"))
	switch driver {
	case "sqlite":
		store, err := sqlite.Open(env.String("SQLITE_PATH", "pipewright.db"))
		if err != nil {
			return stores{}, nil, nil, err
		}
		if err := store.Migrate(); err != nil {
			_ = store.Close()
			return stores{}, nil, nil, err
		}
		logger.Info("sqlite store opened", "path", env.String("SQLITE_PATH", "pipewright.db"))
		return stores{
				pipelines: store,
				runs:      store,
				jobs:      store,
				configs:   store,
				audit:     store,
			},
			store.DB().PingContext,
			func() { _ = store.Close() },
			nil
	case "postgres":
		dbCfg, err := postgres.ConfigFromEnv()
		if err != nil {
			return stores{}, nil, nil, err
		}
		db, err := postgres.Open(ctx, dbCfg)
		if err != nil {
			return stores{}, nil, nil, err
		}
		return stores{
				pipelines: pgrepo.NewPipelineStore(db),
				runs:      pgrepo.NewRunStore(db),
				jobs:      pgrepo.NewRetrainingJobStore(db),
				configs:   pgrepo.NewRetrainingConfigStore(db),
				audit:     pgrepo.NewAuditAppender(db),
			},
			db.PingContext,
			func() { _ = db.Close() },
			nil
	default:
		return stores{}, nil, nil, errors.New("DATABASE_DRIVER must be postgres or sqlite")
	}
}

func openArchiver(ctx context.Context) (coordinator.Archiver, error) {
	cfg, err := objectstore.ConfigFromEnv()
	if err != nil {
		return nil, err
	}
	client, err := objectstore.NewMinIOClient(cfg)
	if err != nil {
		return nil, err
	}
	if err := objectstore.EnsureBucket(ctx, client, cfg); err != nil {
		return nil, err
	}
	store, err := objectstore.NewMinioStore(client)
	if err != nil {
		return nil, err
	}
	return artifacts.NewArchiver(store, cfg.BucketLogs)
}
