package app

import (
	"context"
	"time"

	"github.com/mirrorchyan/storefront/internal/logger"

	"k8s.io/utils/clock"
)

const defaultSweepInterval = time.Minute

// SessionStore 结账会话的回收与关闭
type SessionStore interface {
	Sweep() int
	Shutdown()
}

// SessionSweeper 定期回收空闲结账会话，停止时关闭全部会话
type SessionSweeper struct {
	store    SessionStore
	interval time.Duration
	clock    clock.WithTicker
}

// NewSessionSweeper 创建会话回收服务
func NewSessionSweeper(store SessionStore, interval time.Duration) *SessionSweeper {
	if interval <= 0 {
		interval = defaultSweepInterval
	}
	return &SessionSweeper{store: store, interval: interval, clock: clock.RealClock{}}
}

// Name 服务名称
func (s *SessionSweeper) Name() string {
	return "session_sweeper"
}

// Start 阻塞运行直到 ctx 结束
func (s *SessionSweeper) Start(ctx context.Context) error {
	ticker := s.clock.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C():
			if n := s.store.Sweep(); n > 0 {
				logger.Infow("checkout_sessions_swept", "count", n)
			}
		}
	}
}

// Stop 关闭所有会话，停止轮询与续费校验
func (s *SessionSweeper) Stop(_ context.Context) error {
	s.store.Shutdown()
	return nil
}
