package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mirrorchyan/storefront/internal/billing"
	"github.com/mirrorchyan/storefront/internal/checkout"
	"github.com/mirrorchyan/storefront/internal/constants"
	"github.com/mirrorchyan/storefront/internal/logger"
	"github.com/mirrorchyan/storefront/internal/models"
	"github.com/mirrorchyan/storefront/internal/queue"
	"github.com/mirrorchyan/storefront/internal/repository"

	"github.com/hibiken/asynq"
)

const defaultExpireSweepLimit = 200

// CheckoutLedgerService 结算台账服务，实现 checkout.Ledger
type CheckoutLedgerService struct {
	repo  repository.CheckoutOrderRepository
	queue *queue.Client
	now   func() time.Time
}

// NewCheckoutLedgerService 创建结算台账服务，queueClient 可为空
func NewCheckoutLedgerService(repo repository.CheckoutOrderRepository, queueClient *queue.Client) *CheckoutLedgerService {
	return &CheckoutLedgerService{repo: repo, queue: queueClient, now: time.Now}
}

// RecordCreated 写入待支付台账并投递超时任务
func (s *CheckoutLedgerService) RecordCreated(ctx context.Context, entry checkout.LedgerEntry) error {
	correlationID := strings.TrimSpace(entry.CorrelationID)
	if correlationID == "" {
		return fmt.Errorf("record checkout order: %w", billing.ErrResponseInvalid)
	}
	order := &models.CheckoutOrder{
		CorrelationID: correlationID,
		SessionID:     entry.SessionID,
		PlanID:        entry.PlanID,
		Method:        entry.Method,
		Platform:      entry.Platform,
		OpenStrategy:  entry.Open,
		Locale:        entry.Locale,
		Source:        entry.Source,
		Amount:        models.NewMoney(entry.Amount),
		Status:        constants.CheckoutOrderStatusPending,
	}
	if renew := checkout.NormalizeKey(entry.RenewKey); renew != "" {
		order.RenewKeyFingerprint = checkout.Fingerprint(renew)
	}
	if !entry.ExpiresAt.IsZero() {
		expiresAt := entry.ExpiresAt
		order.ExpiresAt = &expiresAt
	}
	if err := s.repo.WithContext(ctx).Create(order); err != nil {
		if errors.Is(err, repository.ErrCorrelationReused) {
			return checkout.ErrCorrelationReused
		}
		return err
	}

	if s.queue == nil || !s.queue.Enabled() || order.ExpiresAt == nil {
		return nil
	}
	delay := order.ExpiresAt.Sub(s.now())
	payload := queue.CheckoutExpirePayload{CorrelationID: correlationID}
	if err := s.queue.EnqueueCheckoutExpire(payload, delay); err != nil {
		if errors.Is(err, asynq.ErrTaskIDConflict) {
			logger.Debugw("checkout_expire_task_exists", "custom_order_id", correlationID)
			return nil
		}
		// 定时清扫兜底，投递失败不影响台账
		logger.Warnw("checkout_expire_enqueue_failed", "custom_order_id", correlationID, "error", err)
	}
	return nil
}

// RecordFulfilled 标记已发货，只保存 CDK 摘要
func (s *CheckoutLedgerService) RecordFulfilled(ctx context.Context, correlationID string, status *billing.OrderStatus) error {
	if status == nil || !status.Fulfilled() {
		return nil
	}
	return s.repo.WithContext(ctx).MarkFulfilled(
		strings.TrimSpace(correlationID),
		checkout.Fingerprint(status.CDK),
		status.ExpiredAt,
		s.now(),
	)
}

// RecordOutcome 记录超时或关闭，仅对待支付记录生效
func (s *CheckoutLedgerService) RecordOutcome(ctx context.Context, correlationID, status string) error {
	switch status {
	case constants.CheckoutOrderStatusTimedOut, constants.CheckoutOrderStatusClosed:
	default:
		return fmt.Errorf("unsupported checkout outcome %q", status)
	}
	_, err := s.repo.WithContext(ctx).MarkStatusIfPending(strings.TrimSpace(correlationID), status, s.now())
	return err
}

// ExpireOrder 超时任务：仍待支付则标记为超时
func (s *CheckoutLedgerService) ExpireOrder(ctx context.Context, correlationID string) (bool, error) {
	correlationID = strings.TrimSpace(correlationID)
	if correlationID == "" {
		return false, nil
	}
	return s.repo.WithContext(ctx).MarkStatusIfPending(correlationID, constants.CheckoutOrderStatusTimedOut, s.now())
}

// ExpireOverdue 清扫已过轮询截止时间的待支付记录
func (s *CheckoutLedgerService) ExpireOverdue(ctx context.Context, limit int) (int, error) {
	if limit <= 0 {
		limit = defaultExpireSweepLimit
	}
	now := s.now()
	repo := s.repo.WithContext(ctx)
	orders, err := repo.ListPendingBefore(now, limit)
	if err != nil {
		return 0, err
	}
	expired := 0
	for _, order := range orders {
		ok, err := repo.MarkStatusIfPending(order.CorrelationID, constants.CheckoutOrderStatusTimedOut, now)
		if err != nil {
			return expired, err
		}
		if ok {
			expired++
		}
	}
	return expired, nil
}
