// Copyright 2025 Covenant Protocol
//
// Covenant Validator Node
// Wires the kernel together: covenant store, trust graph, anchoring,
// audit trail, and metrics. The node's only network surface is the
// optional Prometheus /metrics endpoint; framework adapters embed the
// kernel packages directly.

package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	dbm "github.com/cometbft/cometbft-db"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/covenant-protocol/trust-kernel/pkg/anchor"
	"github.com/covenant-protocol/trust-kernel/pkg/config"
	"github.com/covenant-protocol/trust-kernel/pkg/covenant"
	"github.com/covenant-protocol/trust-kernel/pkg/crypto"
	"github.com/covenant-protocol/trust-kernel/pkg/database"
	"github.com/covenant-protocol/trust-kernel/pkg/firestore"
	"github.com/covenant-protocol/trust-kernel/pkg/kvdb"
	"github.com/covenant-protocol/trust-kernel/pkg/logging"
	"github.com/covenant-protocol/trust-kernel/pkg/metrics"
	"github.com/covenant-protocol/trust-kernel/pkg/store"
	"github.com/covenant-protocol/trust-kernel/pkg/trust"
)

func main() {
	configPath := flag.String("config", "", "path to kernel YAML config")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("configuration error: %v", err)
	}
	kernelCfg, err := config.LoadKernelConfig(*configPath)
	if err != nil {
		log.Fatalf("kernel configuration error: %v", err)
	}

	kernelCfg.Logging.Level = cfg.LogLevel
	kernelCfg.Logging.Format = cfg.LogFormat
	logger, err := logging.NewLogger(&kernelCfg.Logging)
	if err != nil {
		log.Fatalf("failed to initialize logging: %v", err)
	}
	logger.Info("starting covenant validator", "node_id", cfg.NodeID, "store", cfg.StoreBackend)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Metrics
	registry := prometheus.NewRegistry()
	kernelMetrics := metrics.New(registry)
	if kernelCfg.Monitoring.Enabled || cfg.MetricsAddr != "" {
		go serveMetrics(cfg.MetricsAddr, registry, logger)
	}

	// Covenant store
	covenantStore, cleanup, err := openStore(ctx, cfg)
	if err != nil {
		logger.Error("failed to open covenant store", "error", err)
		os.Exit(1)
	}
	defer cleanup()

	// Trust graph
	graph := trust.NewGraph(logging.Std("TrustGraph"), kernelMetrics)

	// Audit trail
	if cfg.FirestoreEnabled {
		fsClient, ferr := firestore.NewClient(ctx, &firestore.ClientConfig{
			ProjectID:       cfg.FirebaseProjectID,
			CredentialsFile: cfg.CredentialsFile,
			Enabled:         true,
			Logger:          logging.Std("Firestore"),
		})
		if ferr != nil {
			logger.Error("failed to initialize Firestore", "error", ferr)
			os.Exit(1)
		}
		defer fsClient.Close()

		trail, terr := firestore.NewAuditTrailService(&firestore.AuditTrailConfig{
			Client: fsClient,
			NodeID: cfg.NodeID,
			Logger: logging.Std("AuditTrail"),
		})
		if terr != nil {
			logger.Error("failed to initialize audit trail", "error", terr)
			os.Exit(1)
		}
		trail.AttachStore(ctx, covenantStore)
		trail.AttachGraph(ctx, graph)
		logger.Info("audit trail attached", "project", cfg.FirebaseProjectID)
	}

	// Anchoring
	var sink anchor.Sink = anchor.NoopSink{}
	if cfg.AnchorEnabled {
		evmSink, aerr := anchor.NewEVMSink(ctx, &anchor.EVMConfig{
			RPCEndpoint:     cfg.EthereumURL,
			ChainID:         cfg.EthChainID,
			PrivateKeyHex:   cfg.EthPrivateKey,
			ContractAddress: cfg.AnchorContractAddress,
			Logger:          logging.Std("Anchor"),
		})
		if aerr != nil {
			logger.Error("failed to initialize EVM anchor sink", "error", aerr)
			os.Exit(1)
		}
		sink = evmSink
	}
	scheduler := anchor.NewScheduler(&anchor.SchedulerConfig{
		Sink:          sink,
		BatchInterval: cfg.AnchorBatchInterval,
		Logger:        logging.Std("AnchorScheduler"),
	})
	scheduler.Start(ctx)
	defer scheduler.Stop()
	defer sink.Close()

	// Anchor every covenant that enters the store
	covenantStore.OnEvent(func(ev store.Event) {
		if ev.Type != store.EventPut {
			return
		}
		canonical, cerr := covenant.CanonicalForm(ev.Doc)
		if cerr != nil {
			logger.Warn("failed to compute canonical form for anchoring", "covenant", ev.ID, "error", cerr)
			return
		}
		if _, serr := scheduler.Submit(ctx, anchor.Record{
			CovenantID:  ev.ID,
			ContentHash: crypto.SHA256String(canonical),
		}, anchor.ClassOnCadence); serr != nil {
			logger.Warn("failed to submit anchor request", "covenant", ev.ID, "error", serr)
		}
	})

	logger.Info("covenant validator ready")
	<-ctx.Done()
	logger.Info("shutting down")
}

// openStore builds the configured covenant store backend
func openStore(ctx context.Context, cfg *config.Config) (store.Store, func(), error) {
	switch cfg.StoreBackend {
	case "memory":
		return store.NewMemoryStore(), func() {}, nil
	case "kvdb":
		db, err := dbm.NewGoLevelDB("covenants", cfg.KVDataDir)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open kv database: %w", err)
		}
		return kvdb.NewCovenantDB(db), func() { db.Close() }, nil
	case "postgres":
		client, err := database.NewClient(cfg, database.WithLogger(logging.Std("Database")))
		if err != nil {
			return nil, nil, err
		}
		if err := client.Migrate(ctx); err != nil {
			client.Close()
			return nil, nil, fmt.Errorf("migration failed: %w", err)
		}
		repo := database.NewCovenantRepository(client)
		return database.NewPostgresStore(ctx, repo), func() { client.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}

func serveMetrics(addr string, registry *prometheus.Registry, logger *logging.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	logger.Info("serving metrics", "addr", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Error("metrics server stopped", "error", err)
	}
}
