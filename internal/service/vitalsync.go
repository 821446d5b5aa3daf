package service

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	mqttcommon "wisefido-vitalsync/common/mqtt"
	rediscommon "wisefido-vitalsync/common/redis"
	"wisefido-vitalsync/internal/client"
	"wisefido-vitalsync/internal/config"
	"wisefido-vitalsync/internal/consumer"
	httpapi "wisefido-vitalsync/internal/http"
	"wisefido-vitalsync/internal/mirror"
	"wisefido-vitalsync/internal/store"
	"wisefido-vitalsync/internal/telemetry"
	"wisefido-vitalsync/internal/view"

	"go.uber.org/zap"
)

const defaultRetryWait = 200 * time.Millisecond

// VitalSyncService 组装同步客户端、渲染端、视图服务和可选的 MQTT 推送
type VitalSyncService struct {
	config      *config.Config
	logger      *zap.Logger
	redisClient *rediscommon.Client
	mqttClient  *mqttcommon.Client
	hub         *httpapi.ViewHub
	syncClient  *telemetry.SyncClient
	consumer    *consumer.MQTTConsumer
	server      *Server
	handler     http.Handler

	cancel     context.CancelFunc
	wg         sync.WaitGroup
	startupErr error
	addr       net.Addr
}

// NewVitalSyncService 创建服务；仅在启用镜像/推送时连接 Redis/MQTT
func NewVitalSyncService(cfg *config.Config, logger *zap.Logger) (*VitalSyncService, error) {
	s := &VitalSyncService{config: cfg, logger: logger}

	s.hub = httpapi.NewViewHub(logger)
	surfaces := view.Surfaces{s.hub, view.NewLogSurface(logger)}
	var viewMirror *mirror.ViewMirror

	// Redis 视图镜像
	if cfg.Mirror.Enabled {
		redisClient, err := rediscommon.Connect(context.Background(), &cfg.Redis)
		if err != nil {
			return nil, err
		}
		s.redisClient = redisClient
		viewMirror = mirror.NewViewMirror(store.NewRedisKVStore(redisClient), cfg.Mirror.KeyPrefix, cfg.Mirror.TTL, logger)
		surfaces = append(surfaces, viewMirror)
	}

	backend := client.NewTelemetryClient(cfg.Sync.APIBase, logger,
		client.WithTimeout(cfg.Sync.HTTPTimeout),
		client.WithRetries(cfg.Sync.HTTPRetries, defaultRetryWait),
	)
	s.syncClient = telemetry.NewSyncClient(backend, surfaces, logger,
		telemetry.WithHistoryLimit(cfg.Sync.HistoryLimit),
		telemetry.WithECGRefreshMode(cfg.Sync.ECGRefreshMode),
		telemetry.WithRefreshInterval(cfg.Sync.RefreshInterval),
		telemetry.WithManualRefreshInterval(cfg.Sync.ManualRefreshInterval),
		telemetry.WithLocation(cfg.LabelLocation()),
	)

	// MQTT 推送
	if cfg.Nudge.Enabled {
		mqttClient, err := mqttcommon.NewClient(&cfg.MQTT, logger)
		if err != nil {
			_ = rediscommon.Close(s.redisClient)
			return nil, fmt.Errorf("failed to connect to MQTT: %w", err)
		}
		s.mqttClient = mqttClient
		s.consumer = consumer.NewMQTTConsumer(mqttClient, s.syncClient, cfg.MQTT.Topics, cfg.MQTT.QoS, logger)
	}

	handler := httpapi.NewViewHandler(s.syncClient, s.hub, logger)
	if viewMirror != nil {
		handler.WithMirror(viewMirror)
	}
	s.handler = httpapi.NewRouter(handler, s.hub, logger)
	s.server = NewServer(cfg.HTTP.Addr, s.handler, logger)

	return s, nil
}

// Start 启动视图服务，然后执行启动流程
// 启动流程失败时视图服务保持运行并显示阻塞错误提示，不再定时刷新，且不返回该错误；
// 只有 HTTP 地址绑定失败才返回错误
func (s *VitalSyncService) Start(ctx context.Context) error {
	s.logger.Info("Starting vital sync service",
		zap.String("api_base", s.config.Sync.APIBase),
		zap.String("http_addr", s.config.HTTP.Addr),
		zap.Bool("mirror_enabled", s.config.Mirror.Enabled),
		zap.Bool("nudge_enabled", s.config.Nudge.Enabled),
	)

	ln, err := s.server.Listen()
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.config.HTTP.Addr, err)
	}
	s.addr = ln.Addr()
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.server.Serve(ln); err != nil {
			s.logger.Error("HTTP server stopped", zap.Error(err))
		}
	}()

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	if err := s.syncClient.Start(runCtx); err != nil {
		s.startupErr = err
		s.logger.Error("Dashboard unavailable, serving startup error", zap.Error(err))
		return nil
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		_ = s.syncClient.Run(runCtx)
	}()

	if s.consumer != nil {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			if err := s.consumer.Start(runCtx); err != nil {
				s.logger.Error("MQTT consumer failed", zap.Error(err))
			}
		}()
	}

	s.logger.Info("Vital sync service started successfully")
	return nil
}

// Stop 按相反顺序停止所有组件
func (s *VitalSyncService) Stop(ctx context.Context) error {
	s.logger.Info("Stopping vital sync service")

	if s.cancel != nil {
		s.cancel()
	}
	if s.consumer != nil {
		if err := s.consumer.Stop(ctx); err != nil {
			s.logger.Error("Error stopping consumer", zap.Error(err))
		}
	}

	s.hub.Close()
	var errs []error
	if err := s.server.Stop(ctx); err != nil {
		errs = append(errs, fmt.Errorf("failed to stop HTTP server: %w", err))
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		errs = append(errs, ctx.Err())
	}

	if s.mqttClient != nil {
		s.mqttClient.Disconnect()
	}
	if err := rediscommon.Close(s.redisClient); err != nil {
		errs = append(errs, fmt.Errorf("failed to close redis: %w", err))
	}

	s.logger.Info("Vital sync service stopped")
	return errors.Join(errs...)
}

// StartupErr 启动流程的错误，成功时为 nil
func (s *VitalSyncService) StartupErr() error {
	return s.startupErr
}

// Addr 视图服务绑定的地址
func (s *VitalSyncService) Addr() net.Addr {
	return s.addr
}

// Handler 视图服务的 HTTP handler
func (s *VitalSyncService) Handler() http.Handler {
	return s.handler
}
