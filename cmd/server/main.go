package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path"
	"syscall"
	"time"

	"github.com/bvkgo/kv"
	"github.com/bvkgo/kv/kvmemdb"
	"github.com/bvkgo/kvbadger"
	"github.com/dgraph-io/badger/v4"
	"golang.org/x/sync/errgroup"
	grpclib "google.golang.org/grpc"
	"google.golang.org/grpc/reflection"

	grpcadapter "github.com/simaogato/bundlemarket-backend/internal/adapter/grpc"
	"github.com/simaogato/bundlemarket-backend/internal/adapter/httpapi"
	"github.com/simaogato/bundlemarket-backend/internal/adapter/journal"
	"github.com/simaogato/bundlemarket-backend/internal/adapter/registry"
	"github.com/simaogato/bundlemarket-backend/internal/adapter/repository/memory"
	"github.com/simaogato/bundlemarket-backend/internal/adapter/repository/postgres"
	"github.com/simaogato/bundlemarket-backend/internal/adapter/treasury"
	"github.com/simaogato/bundlemarket-backend/internal/config"
	"github.com/simaogato/bundlemarket-backend/internal/domain"
	"github.com/simaogato/bundlemarket-backend/internal/events"
	"github.com/simaogato/bundlemarket-backend/internal/platform/logger"
	"github.com/simaogato/bundlemarket-backend/internal/usecase/market"
	"github.com/simaogato/bundlemarket-backend/internal/usecase/oracle"
	"github.com/simaogato/bundlemarket-backend/internal/usecase/seeder"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load(os.Getenv("CONFIG_FILE"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.LogMode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := cfg.Validate(); err != nil {
		log.Fatal("invalid configuration", "err", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Fatal("server stopped with error", "err", err)
	}
	log.Info("server stopped")
}

func run(ctx context.Context, cfg *config.Config, log *logger.Logger) error {
	// 1. Setup storage
	itemRepo, bundleRepo, closeStore, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeStore()

	// 2. Setup the event journal and bus
	journalDB, closeJournal, err := openJournalDB(cfg.JournalDir)
	if err != nil {
		return err
	}
	defer closeJournal()

	eventJournal, err := journal.Open(ctx, journalDB, log.With("component", "journal"))
	if err != nil {
		return err
	}
	log.Info("event journal opened", "dir", cfg.JournalDir, "last_seq", eventJournal.LastSeq())

	bus := events.NewBus(log.With("component", "bus"))
	defer bus.Close()
	sink := events.Multi{eventJournal, events.LogSink{Logger: log.With("component", "events")}, bus}

	// 3. Initialize the market over the registry and treasury
	assetRegistry := registry.NewMemoryRegistry()
	funds := treasury.NewMemoryTreasury()

	m := market.New(market.Deps{
		ItemRepo:   itemRepo,
		BundleRepo: bundleRepo,
		Registry:   assetRegistry,
		Treasury:   funds,
		Events:     sink,
		Custody:    domain.Address(cfg.Custody),
		Owner:      domain.Address(cfg.Owner),
		Oracle:     domain.Address(cfg.Oracle),
		Logger:     log,
	})

	if cfg.DemoSeed {
		demo := seeder.NewDemoSeeder(m, assetRegistry, funds, log.With("component", "seeder"))
		if err := demo.Seed(ctx); err != nil {
			return fmt.Errorf("failed to seed demo inventory: %w", err)
		}
	}

	g, gctx := errgroup.WithContext(ctx)

	// 4. Start the embedded oracle
	if cfg.EmbeddedOracle {
		receiver, err := bus.Subscribe()
		if err != nil {
			return fmt.Errorf("could not subscribe oracle to events: %w", err)
		}
		worker := oracle.NewWorker(m, domain.Address(cfg.Oracle), log.With("component", "oracle"))
		g.Go(func() error {
			if err := worker.Run(gctx, receiver); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
		log.Info("embedded oracle running", "oracle", cfg.Oracle)
	}

	// 5. Start gRPC server
	grpcServer := grpclib.NewServer(
		grpclib.UnaryInterceptor(grpcadapter.AuthInterceptor(cfg.APIToken)),
	)
	grpcadapter.Register(grpcServer, grpcadapter.NewServer(m, log.With("component", "grpc")))
	reflection.Register(grpcServer)

	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", cfg.GRPCAddr, err)
	}
	g.Go(func() error {
		log.Info("gRPC server listening", "addr", cfg.GRPCAddr)
		return grpcServer.Serve(lis)
	})
	g.Go(func() error {
		<-gctx.Done()
		grpcServer.GracefulStop()
		log.Info("gRPC server stopped")
		return nil
	})

	// 6. Start HTTP query API
	if cfg.HTTPAddr != "" {
		handler := httpapi.NewHandler(m, log.With("component", "http"))
		handler.Events = eventJournal
		router := httpapi.NewRouter(httpapi.RouterConfig{
			Handler:  handler,
			APIToken: cfg.APIToken,
			Logger:   log.With("component", "http"),
		})
		httpServer := &http.Server{Addr: cfg.HTTPAddr, Handler: router}

		g.Go(func() error {
			log.Info("HTTP server listening", "addr", cfg.HTTPAddr)
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return httpServer.Shutdown(shutdownCtx)
		})
	}

	return g.Wait()
}

// openStore returns the repositories for the configured store
func openStore(ctx context.Context, cfg *config.Config, log *logger.Logger) (domain.ItemRepository, domain.BundleRepository, func(), error) {
	if cfg.Store == config.StoreMemory {
		log.Info("using in-memory store")
		return memory.NewItemRepository(), memory.NewBundleRepository(), func() {}, nil
	}

	// Postgres may still be starting when we run under compose
	var db *postgres.DB
	var err error
	for attempt := 1; attempt <= 5; attempt++ {
		if db, err = postgres.NewDB(cfg.Database.DSN()); err == nil {
			break
		}
		log.Warn("database not ready", "attempt", attempt, "err", err)
		select {
		case <-ctx.Done():
			return nil, nil, nil, context.Cause(ctx)
		case <-time.After(2 * time.Second):
		}
	}
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.Migrate(ctx); err != nil {
		db.Close()
		return nil, nil, nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	log.Info("using postgres store", "host", cfg.Database.Host, "db", cfg.Database.Name)
	return postgres.NewItemRepository(db), postgres.NewBundleRepository(db), func() { db.Close() }, nil
}

// openJournalDB opens a badger database in dir, or an in-memory one when dir is empty
func openJournalDB(dir string) (kv.Database, func(), error) {
	if dir == "" {
		return kvmemdb.New(), func() {}, nil
	}

	bopts := badger.DefaultOptions(dir).WithLogger(nil)
	bdb, err := badger.Open(bopts)
	if err != nil {
		return nil, nil, fmt.Errorf("could not open the journal database: %w", err)
	}
	return kvbadger.New(bdb, isGoodKey), func() { bdb.Close() }, nil
}

func isGoodKey(k string) bool {
	return path.IsAbs(k) && k == path.Clean(k)
}
