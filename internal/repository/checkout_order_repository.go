package repository

import (
	"context"
	"errors"
	"time"

	"github.com/mirrorchyan/storefront/internal/constants"
	"github.com/mirrorchyan/storefront/internal/models"

	"gorm.io/gorm"
)

// ErrCorrelationReused 关联单号已存在
var ErrCorrelationReused = errors.New("checkout order correlation id already recorded")

// CheckoutOrderRepository 结算台账数据访问接口
type CheckoutOrderRepository interface {
	Create(order *models.CheckoutOrder) error
	GetByCorrelationID(correlationID string) (*models.CheckoutOrder, error)
	MarkFulfilled(correlationID, cdkFingerprint, keyExpiredAt string, at time.Time) error
	MarkStatusIfPending(correlationID, status string, at time.Time) (bool, error)
	ListBySession(sessionID string) ([]models.CheckoutOrder, error)
	ListPendingBefore(deadline time.Time, limit int) ([]models.CheckoutOrder, error)
	WithContext(ctx context.Context) CheckoutOrderRepository
}

// GormCheckoutOrderRepository GORM 实现
type GormCheckoutOrderRepository struct {
	db *gorm.DB
}

// NewCheckoutOrderRepository 创建结算台账仓库
func NewCheckoutOrderRepository(db *gorm.DB) *GormCheckoutOrderRepository {
	return &GormCheckoutOrderRepository{db: db}
}

// WithTx 绑定事务
func (r *GormCheckoutOrderRepository) WithTx(tx *gorm.DB) *GormCheckoutOrderRepository {
	if tx == nil {
		return r
	}
	return &GormCheckoutOrderRepository{db: tx}
}

// WithContext 绑定请求上下文
func (r *GormCheckoutOrderRepository) WithContext(ctx context.Context) CheckoutOrderRepository {
	if ctx == nil {
		return r
	}
	return &GormCheckoutOrderRepository{db: r.db.WithContext(ctx)}
}

// Create 写入台账，关联单号重复返回 ErrCorrelationReused
func (r *GormCheckoutOrderRepository) Create(order *models.CheckoutOrder) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.CheckoutOrder{}).
			Where("correlation_id = ?", order.CorrelationID).
			Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return ErrCorrelationReused
		}
		if order.Status == "" {
			order.Status = constants.CheckoutOrderStatusPending
		}
		if err := tx.Create(order).Error; err != nil {
			// 并发写入同一关联单号时由唯一索引兜底
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrCorrelationReused
			}
			return err
		}
		return nil
	})
}

// GetByCorrelationID 按关联单号查询
func (r *GormCheckoutOrderRepository) GetByCorrelationID(correlationID string) (*models.CheckoutOrder, error) {
	var order models.CheckoutOrder
	if err := r.db.Where("correlation_id = ?", correlationID).First(&order).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &order, nil
}

// MarkFulfilled 标记发货，已关闭或超时的记录同样覆盖为已发货
func (r *GormCheckoutOrderRepository) MarkFulfilled(correlationID, cdkFingerprint, keyExpiredAt string, at time.Time) error {
	return r.db.Model(&models.CheckoutOrder{}).
		Where("correlation_id = ?", correlationID).
		Updates(map[string]interface{}{
			"status":          constants.CheckoutOrderStatusFulfilled,
			"cdk_fingerprint": cdkFingerprint,
			"key_expired_at":  keyExpiredAt,
			"fulfilled_at":    at,
		}).Error
}

// MarkStatusIfPending 仅在待支付状态下更新，返回是否更新
func (r *GormCheckoutOrderRepository) MarkStatusIfPending(correlationID, status string, at time.Time) (bool, error) {
	result := r.db.Model(&models.CheckoutOrder{}).
		Where("correlation_id = ? AND status = ?", correlationID, constants.CheckoutOrderStatusPending).
		Updates(map[string]interface{}{
			"status":      status,
			"finished_at": at,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// ListBySession 会话内全部台账，按创建时间升序
func (r *GormCheckoutOrderRepository) ListBySession(sessionID string) ([]models.CheckoutOrder, error) {
	var orders []models.CheckoutOrder
	if err := r.db.Where("session_id = ?", sessionID).Order("created_at ASC, id ASC").Find(&orders).Error; err != nil {
		return nil, err
	}
	return orders, nil
}

// ListPendingBefore 查询截止时间早于 deadline 仍待支付的台账
func (r *GormCheckoutOrderRepository) ListPendingBefore(deadline time.Time, limit int) ([]models.CheckoutOrder, error) {
	query := r.db.Where("status = ? AND expires_at IS NOT NULL AND expires_at < ?", constants.CheckoutOrderStatusPending, deadline).
		Order("expires_at ASC, id ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	var orders []models.CheckoutOrder
	if err := query.Find(&orders).Error; err != nil {
		return nil, err
	}
	return orders, nil
}
