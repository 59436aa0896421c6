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
	"strings"
	"syscall"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"

	"rewardvault/config"
	"rewardvault/core/state"
	"rewardvault/crypto"
	"rewardvault/native/rewards"
	"rewardvault/native/token"
	"rewardvault/observability/logging"
	"rewardvault/rpc"
	"rewardvault/storage"
)

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	var fileLog io.Writer
	if strings.TrimSpace(cfg.Log.File) != "" {
		fileLog = &lumberjack.Logger{
			Filename:   cfg.Log.File,
			MaxSize:    cfg.Log.MaxSizeMB,
			MaxBackups: cfg.Log.MaxBackups,
			MaxAge:     cfg.Log.MaxAgeDays,
			Compress:   true,
		}
	}
	logger := logging.Setup("rewardvaultd", cfg.Env, fileLog)

	db, err := storage.NewLevelDB(cfg.DataDir)
	if err != nil {
		logger.Error("failed to open database", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	engine, err := buildEngine(cfg, db, logger)
	if err != nil {
		logger.Error("failed to initialise vault", slog.Any("error", err))
		os.Exit(1)
	}

	server := rpc.NewServer(engine, logger, cfg.RPC.RequestsPerSecond, cfg.RPC.Burst)
	httpServer := &http.Server{
		Addr:              cfg.ListenAddress,
		Handler:           server.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("serving vault API", slog.String("address", cfg.ListenAddress))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server failed", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("shutdown failed", slog.Any("error", err))
	}
}

func buildEngine(cfg *config.Config, db storage.Database, logger *slog.Logger) (*rewards.Engine, error) {
	manager := state.NewManager(db)
	fresh, err := manager.EnsureSchema()
	if err != nil {
		return nil, err
	}

	vaultAddr, err := crypto.DecodeAddress(cfg.Vault.Address)
	if err != nil {
		return nil, err
	}
	treasury, err := crypto.DecodeAddress(cfg.Vault.Treasury)
	if err != nil {
		return nil, err
	}
	authorizer, err := crypto.DecodeAddress(cfg.Vault.Authorizer)
	if err != nil {
		return nil, err
	}

	stable, err := token.NewLedger(manager, cfg.Vault.StableSymbol, cfg.Vault.StableDecimals)
	if err != nil {
		return nil, err
	}
	reward, err := token.NewLedger(manager, cfg.Vault.RewardSymbol, 0)
	if err != nil {
		return nil, err
	}
	reward.SetAuthority(vaultAddr.Raw())

	converter, err := rewards.NewConverter(cfg.Vault.StableDecimals, cfg.Vault.PointsPerUSD)
	if err != nil {
		return nil, err
	}

	engine, err := rewards.NewEngine(manager, converter, stable, reward, vaultAddr.Raw(), cfg.ChainID)
	if err != nil {
		return nil, err
	}

	minimalDeposit, err := cfg.MinimalDepositAmount()
	if err != nil {
		return nil, err
	}
	distributeFloor, err := cfg.DistributeFloorAmount()
	if err != nil {
		return nil, err
	}
	if err := engine.Initialize(&rewards.Config{
		StableSymbol:    cfg.Vault.StableSymbol,
		RewardSymbol:    cfg.Vault.RewardSymbol,
		MinimalDeposit:  minimalDeposit,
		DistributeFloor: distributeFloor,
		Treasury:        treasury.Raw(),
		Authorizer:      authorizer.Raw(),
	}); err != nil {
		return nil, err
	}

	if fresh {
		for _, grant := range cfg.GenesisRoles {
			addr, err := crypto.DecodeAddress(grant.Address)
			if err != nil {
				return nil, err
			}
			if err := manager.GrantRole(strings.TrimSpace(grant.Role), addr.Bytes()); err != nil {
				return nil, err
			}
			logger.Info("granted genesis role",
				slog.String("role", grant.Role),
				slog.String("address", grant.Address),
			)
		}
		manager.Commit()
	}

	return engine, nil
}
