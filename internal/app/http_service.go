package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/mirrorchyan/storefront/internal/config"
	"github.com/mirrorchyan/storefront/internal/logger"
)

// HTTPService HTTP 服务封装
type HTTPService struct {
	server *http.Server
}

// NewHTTPService 按服务器配置创建 HTTP 服务
func NewHTTPService(cfg config.ServerConfig, handler http.Handler) *HTTPService {
	return &HTTPService{
		server: &http.Server{
			Addr:              cfg.Addr(),
			Handler:           handler,
			ReadHeaderTimeout: secondsOr(cfg.ReadHeaderTimeoutSeconds, 10*time.Second),
			WriteTimeout:      secondsOr(cfg.WriteTimeoutSeconds, 30*time.Second),
			IdleTimeout:       secondsOr(cfg.IdleTimeoutSeconds, 2*time.Minute),
		},
	}
}

// Name 服务名称
func (s *HTTPService) Name() string { return "http" }

// Start 启动监听，Shutdown 触发的关闭不算错误
func (s *HTTPService) Start(ctx context.Context) error {
	if s == nil || s.server == nil {
		return errors.New("http server not initialized")
	}
	logger.Infow("http_listen", "addr", s.server.Addr)
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop 优雅关闭
func (s *HTTPService) Stop(ctx context.Context) error {
	if s == nil || s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func secondsOr(value int, fallback time.Duration) time.Duration {
	if value <= 0 {
		return fallback
	}
	return time.Duration(value) * time.Second
}
