// tailguard is the tail-risk insurance pool daemon. It restores persisted
// state from SQLite, serves the HTTP API, and runs the background sweepers.
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/umbral-systems/tailguard/internal/config"
	"github.com/umbral-systems/tailguard/internal/events"
	"github.com/umbral-systems/tailguard/internal/identity"
	"github.com/umbral-systems/tailguard/internal/oracle"
	"github.com/umbral-systems/tailguard/internal/quorum"
	"github.com/umbral-systems/tailguard/internal/server"
	"github.com/umbral-systems/tailguard/internal/storage"
	"github.com/umbral-systems/tailguard/internal/trust"
	"github.com/umbral-systems/tailguard/internal/vault"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the YAML config file")
	flag.Parse()

	logger, err := zap.NewProduction()
	if err != nil {
		os.Stderr.WriteString("logger init failed: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer logger.Sync()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	if err := os.MkdirAll(cfg.DataDir, 0o700); err != nil {
		logger.Fatal("create data directory", zap.Error(err))
	}
	db, err := storage.NewDB(filepath.Join(cfg.DataDir, "tailguard.db"))
	if err != nil {
		logger.Fatal("open database", zap.Error(err))
	}
	defer db.Close()

	// Assemble the core: journal first, then the components that emit to it.
	log := events.NewLog(logger, db)
	registry := identity.NewRegistry(cfg.Owner)
	ledger := trust.NewLedger(cfg.Owner, log)
	orc := oracle.New(cfg.OracleMaxAge.Std(), log)
	q := quorum.New(cfg.QuorumThreshold, log)
	v := vault.New(cfg.Vault.Vault(), registry, ledger, orc, q, nil, log)

	for _, addr := range cfg.TrustUpdaters {
		if err := ledger.AddUpdater(cfg.Owner, addr); err != nil {
			logger.Fatal("seed trust updater", zap.String("address", addr), zap.Error(err))
		}
	}

	restore(logger, db, v, ledger, q, registry, orc)

	srv := server.New(server.Deps{
		Vault:            v,
		Trust:            ledger,
		Quorum:           q,
		Oracle:           orc,
		Registry:         registry,
		Events:           log,
		DB:               db,
		Logger:           logger,
		AdminSecret:      cfg.AdminSecret,
		Owner:            cfg.Owner,
		SweepInterval:    cfg.SweepInterval.Std(),
		SnapshotInterval: cfg.SnapshotInterval.Std(),
		DecayInterval:    cfg.DecayInterval.Std(),
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	srv.StartWorkers(ctx)

	httpSrv := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      srv,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	// Graceful shutdown on SIGINT/SIGTERM.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("shutting down")
		cancel()
		shutdownCtx, release := context.WithTimeout(context.Background(), 10*time.Second)
		defer release()
		httpSrv.Shutdown(shutdownCtx)
	}()

	logger.Info("tailguard listening", zap.String("addr", cfg.ListenAddr))
	if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("serve", zap.Error(err))
	}
}

// restore seeds every component from the last persisted snapshot. A fresh
// database restores nothing.
func restore(logger *zap.Logger, db *storage.DB, v *vault.Vault, ledger *trust.Ledger, q *quorum.Quorum, registry *identity.Registry, orc *oracle.Oracle) {
	if st, ok, err := db.LoadVaultState(); err != nil {
		logger.Fatal("restore vault state", zap.Error(err))
	} else if ok {
		v.Restore(st)
		logger.Info("vault state restored",
			zap.Uint64("total_assets", st.TotalAssets),
			zap.Int("policies", len(st.Policies)),
			zap.Int("claims", len(st.Claims)))
	}

	recs, err := db.LoadTrustRecords()
	if err != nil {
		logger.Fatal("restore trust records", zap.Error(err))
	}
	ledger.Seed(recs)

	reqs, stakes, err := db.LoadQuorum()
	if err != nil {
		logger.Fatal("restore quorum", zap.Error(err))
	}
	q.Seed(reqs, stakes)

	agents, err := db.LoadAgents()
	if err != nil {
		logger.Fatal("restore agents", zap.Error(err))
	}
	registry.Seed(agents)

	if reading, ok, err := db.LoadOracleReading(); err != nil {
		logger.Fatal("restore oracle reading", zap.Error(err))
	} else if ok {
		orc.Seed(reading)
	}
}
