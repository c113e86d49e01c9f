package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/mamadbah2/baleledger/internal/config"
	"github.com/mamadbah2/baleledger/internal/repository/docstore"
	"github.com/mamadbah2/baleledger/internal/repository/firestore"
	"github.com/mamadbah2/baleledger/internal/repository/memory"
	"github.com/mamadbah2/baleledger/internal/repository/mongodb"
	"github.com/mamadbah2/baleledger/internal/repository/sheets"
	"github.com/mamadbah2/baleledger/internal/scheduler"
	"github.com/mamadbah2/baleledger/internal/server/handlers"
	"github.com/mamadbah2/baleledger/internal/server/router"
	exportsvc "github.com/mamadbah2/baleledger/internal/service/export"
	ledgersvc "github.com/mamadbah2/baleledger/internal/service/ledger"
	"github.com/mamadbah2/baleledger/internal/service/notifier"
	reportingsvc "github.com/mamadbah2/baleledger/internal/service/reporting"
	whatsappclient "github.com/mamadbah2/baleledger/pkg/clients/whatsapp"
	"github.com/mamadbah2/baleledger/pkg/logger"
)

func main() {
	cfg, err := config.Load("")
	if err != nil {
		panic(err)
	}

	baseLogger := logger.Must(logger.New(cfg.Server.LogLevel))
	defer func() { _ = baseLogger.Sync() }()

	zap.ReplaceGlobals(baseLogger)

	store, closeStore, err := openStore(context.Background(), cfg, baseLogger)
	if err != nil {
		baseLogger.Fatal("failed to init document store", zap.String("backend", cfg.Store.Backend), zap.Error(err))
	}
	defer closeStore()

	events := notifier.New(baseLogger.Named("svc.notifier"))
	ledger := ledgersvc.NewService(store, events, ledgersvc.Config{
		SweepConcurrency: cfg.Ledger.SweepConcurrency,
	}, baseLogger.Named("svc.ledger"))
	reportingSvc := reportingsvc.NewService(ledger, events, baseLogger.Named("svc.reporting"))

	var exporters sync.WaitGroup
	if cfg.Sheets.Enabled() {
		sheetsRepo, err := sheets.NewGoogleSheetRepository(context.Background(), cfg.Sheets, baseLogger.Named("repo.sheets"))
		if err != nil {
			baseLogger.Fatal("failed to init sheets repository", zap.Error(err))
		}
		exporter := exportsvc.NewExporter(sheetsRepo, cfg.Sheets.Range, baseLogger.Named("svc.export"))
		sub := events.Subscribe()
		exporters.Add(1)
		go func() {
			defer exporters.Done()
			defer sub.Close()
			exporter.Run(context.Background(), sub.C)
		}()
		baseLogger.Info("sheets export enabled", zap.String("range", cfg.Sheets.Range))
	} else {
		baseLogger.Warn("google sheet id missing, ledger export disabled")
	}

	var sched *scheduler.Scheduler
	if cfg.WhatsApp.Enabled() {
		whatsClient := whatsappclient.NewClient(cfg.WhatsApp)
		sched, err = scheduler.NewScheduler(*cfg, reportingSvc, whatsClient, baseLogger.Named("scheduler"))
		if err != nil {
			baseLogger.Fatal("failed to init scheduler", zap.Error(err))
		}
		if err := sched.Start(); err != nil {
			baseLogger.Fatal("failed to start scheduler", zap.Error(err))
		}
	} else {
		baseLogger.Warn("whatsapp credentials missing, daily report disabled")
	}

	ledgerHandler := handlers.NewLedgerHandler(ledger, events, reportingSvc, baseLogger.Named("handlers.ledger"))
	engine := router.New(ledgerHandler, baseLogger.Named("router"))

	// No WriteTimeout: /events streams for as long as the client listens.
	srv := &http.Server{
		Addr:        ":" + cfg.Server.Port,
		Handler:     engine,
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		baseLogger.Info("server starting", zap.String("port", cfg.Server.Port), zap.String("backend", cfg.Store.Backend))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			baseLogger.Fatal("http server crashed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	baseLogger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		baseLogger.Error("graceful shutdown failed", zap.Error(err))
	}
	if sched != nil {
		sched.Stop()
	}

	// Let started requests and sweeps finish, then drain the subscribers.
	ledger.Wait()
	events.Close()
	exporters.Wait()
}

// openStore connects the configured document store backend.
func openStore(ctx context.Context, cfg *config.Config, baseLogger *zap.Logger) (docstore.Store, func(), error) {
	switch cfg.Store.Backend {
	case config.BackendFirestore:
		repo, err := firestore.NewRepository(ctx, cfg.Firestore, baseLogger.Named("repo.firestore"))
		if err != nil {
			return nil, nil, err
		}
		return repo, func() {
			if err := repo.Close(); err != nil {
				baseLogger.Error("failed to close firestore client", zap.Error(err))
			}
		}, nil
	case config.BackendMongoDB:
		repo, err := mongodb.NewMongoDBRepository(ctx, cfg.MongoDB.URI, cfg.MongoDB.DBName, baseLogger.Named("repo.mongodb"))
		if err != nil {
			return nil, nil, err
		}
		return repo, func() {
			if err := repo.Close(context.Background()); err != nil {
				baseLogger.Error("failed to close mongodb connection", zap.Error(err))
			}
		}, nil
	case config.BackendMemory:
		baseLogger.Warn("using in-memory store, data is lost on restart")
		return memory.New(), func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unsupported store backend %q", cfg.Store.Backend)
	}
}
