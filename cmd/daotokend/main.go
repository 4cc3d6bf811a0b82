package main

import (
	"flag"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"daotoken/config"
	"daotoken/core"
	"daotoken/observability/logging"
	"daotoken/rpc"
	"daotoken/storage"
)

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	flag.Parse()

	env := strings.TrimSpace(os.Getenv("DAOTOKEN_ENV"))

	cfg, err := config.Load(*configFile)
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}
	logger := logging.Setup("daotokend", env, logging.ParseLevel(cfg.LogLevel))

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", slog.Any("error", err))
		os.Exit(1)
	}

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		logger.Error("failed to prepare data directory", slog.Any("error", err))
		os.Exit(1)
	}
	db, err := storage.Open(filepath.Join(cfg.DataDir, "daotoken.db"))
	if err != nil {
		logger.Error("failed to open database", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	node, err := core.NewNode(core.Config{
		RegistryOwner: cfg.RegistryOwnerAddress(),
		StakingOwner:  cfg.StakingOwnerAddress(),
	}, db, logger)
	if err != nil {
		logger.Error("failed to initialise node", slog.Any("error", err))
		os.Exit(1)
	}

	server := rpc.NewServer(node)
	logger.Info("starting JSON-RPC server", slog.String("addr", cfg.RPCAddress))
	if err := server.Start(cfg.RPCAddress); err != nil {
		logger.Error("RPC server terminated", slog.Any("error", err))
		os.Exit(1)
	}
}
