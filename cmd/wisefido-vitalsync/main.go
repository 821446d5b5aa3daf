package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"wisefido-vitalsync/common/logger"
	"wisefido-vitalsync/internal/config"
	"wisefido-vitalsync/internal/service"

	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

func main() {
	// 加载配置
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 初始化日志
	var opts []logger.Option
	if cfg.Log.File != "" {
		opts = append(opts, logger.WithFile(cfg.Log.File, 100, 5, 30))
	}
	zapLogger, err := logger.NewLogger(cfg.Log.Level, cfg.Log.Format, "wisefido-vitalsync", opts...)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer zapLogger.Sync()

	zapLogger.Info("Starting wisefido-vitalsync",
		zap.String("api_base", cfg.Sync.APIBase),
		zap.Duration("refresh_interval", cfg.Sync.RefreshInterval),
		zap.String("ecg_refresh_mode", string(cfg.Sync.ECGRefreshMode)),
		zap.String("http_addr", cfg.HTTP.Addr),
	)

	vitalSync, err := service.NewVitalSyncService(cfg, zapLogger)
	if err != nil {
		zapLogger.Fatal("Failed to create vital sync service", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := vitalSync.Start(ctx); err != nil {
		zapLogger.Fatal("Failed to start vital sync service", zap.Error(err))
	}

	// 等待退出信号
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	zapLogger.Info("Received signal, shutting down", zap.String("signal", sig.String()))

	cancel()
	stopCtx, stopCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer stopCancel()
	if err := vitalSync.Stop(stopCtx); err != nil {
		zapLogger.Error("Error during shutdown", zap.Error(err))
	}

	zapLogger.Info("Service stopped")
}
