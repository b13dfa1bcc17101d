package service

import (
	"context"
	"errors"
	"net/http"
	"time"

	"leverage-executor-sol/internal/metrics"
	"leverage-executor-sol/pkg/logger"
)

// MetricsService 暴露 Prometheus 指标端点
type MetricsService struct {
	server *http.Server
}

func NewMetricsService(addr, path string) *MetricsService {
	mux := http.NewServeMux()
	mux.Handle(path, metrics.Handler())
	return &MetricsService{server: &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}}
}

func (s *MetricsService) Start() {
	logger.Infof("[MetricsService] 监听 %s", s.server.Addr)
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Errorf("[MetricsService] 退出: %v", err)
	}
}

func (s *MetricsService) Stop() {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := s.server.Shutdown(ctx); err != nil {
		logger.Warnf("[MetricsService] 关闭失败: %v", err)
	}
}
