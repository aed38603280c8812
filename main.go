package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"chatd/chat"
	"chatd/config"
	"chatd/logger"

	"go.uber.org/zap"
)

const configPath = "config.ini"

func main() {
	cfg, err := config.Load(configPath)
	if err != nil {
		if err == config.ErrDefaultConfigWritten {
			logger.Warn("wrote default config, edit it and restart", zap.String("path", configPath))
			os.Exit(1)
		}
		logger.Error("config load failed", zap.Error(err))
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	srv, err := chat.NewServer(ctx, chat.ServerConfig{
		Host:            cfg.Server.Host,
		Port:            cfg.Server.Port,
		CertificateFile: cfg.SSL.CertificateFile,
		KeyFile:         cfg.SSL.KeyFile,
	})
	if err != nil {
		logger.Error("server init failed", zap.Error(err))
		os.Exit(1)
	}

	if err := srv.Run(ctx); err != nil {
		logger.Error("server exited", zap.Error(err))
		os.Exit(1)
	}
	logger.Info("server stopped")
}
