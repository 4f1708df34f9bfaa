package worker

import (
	"context"
	"fmt"

	"github.com/mirrorchyan/storefront/internal/logger"
	"github.com/mirrorchyan/storefront/internal/provider"
	"github.com/mirrorchyan/storefront/internal/queue"

	"github.com/hibiken/asynq"
)

// Consumer 异步任务消费者
type Consumer struct {
	*provider.Container
}

// NewConsumer 创建消费者
func NewConsumer(c *provider.Container) *Consumer {
	return &Consumer{
		Container: c,
	}
}

// Register 注册消费者
func (c *Consumer) Register(mux *asynq.ServeMux) {
	if c == nil || mux == nil {
		logger.Debugw("worker_register_skip_nil", "consumer_nil", c == nil, "mux_nil", mux == nil)
		return
	}
	mux.HandleFunc(queue.TaskCheckoutExpire, c.handleCheckoutExpire)
}

func (c *Consumer) handleCheckoutExpire(ctx context.Context, task *asynq.Task) error {
	if c == nil || c.Container == nil || c.LedgerService == nil || task == nil {
		logger.Debugw("worker_checkout_expire_skip_nil", "consumer_nil", c == nil, "task_nil", task == nil)
		return nil
	}
	payload, err := queue.ParseCheckoutExpirePayload(task)
	if err != nil {
		logger.Warnw("worker_checkout_expire_unmarshal_failed", "error", err)
		// 载荷损坏重试无意义
		return fmt.Errorf("parse checkout expire payload: %v: %w", err, asynq.SkipRetry)
	}
	if payload.CorrelationID == "" {
		logger.Debugw("worker_checkout_expire_skip_invalid_payload")
		return nil
	}
	expired, err := c.LedgerService.ExpireOrder(ctx, payload.CorrelationID)
	if err != nil {
		logger.Warnw("worker_checkout_expire_failed", "custom_order_id", payload.CorrelationID, "error", err)
		return err
	}
	if !expired {
		logger.Debugw("worker_checkout_expire_skip_not_pending", "custom_order_id", payload.CorrelationID)
		return nil
	}
	logger.Infow("worker_checkout_expired", "custom_order_id", payload.CorrelationID)
	return nil
}
