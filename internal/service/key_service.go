package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mirrorchyan/storefront/internal/billing"
	"github.com/mirrorchyan/storefront/internal/constants"
	"github.com/mirrorchyan/storefront/internal/logger"
)

// 创建超过该时长的 CDK 不允许作为转移来源
const transferSourceMaxAge = constants.TransferSourceMaxAgeDays * 24 * time.Hour

// 转移检查结论
const (
	KeyKindLicense = "license"
	KeyKindReward  = "reward"

	KeyReasonNotFound         = "key.cdk_not_found"
	KeyReasonExpired          = "key.cdk_expired"
	KeyReasonTooOld           = "key.cdk_too_old"
	KeyReasonRewardUsedUp     = "key.reward_used_up"
	KeyReasonRewardNotStarted = "key.reward_not_started"
	KeyReasonRewardExpired    = "key.reward_expired"
	KeyReasonRewardFillInLeft = "key.reward_fill_in_left"
	KeyNoticeTargetExpired    = "key.target_expired"
)

// KeyBackend CDK 相关后端接口
type KeyBackend interface {
	GetAfdianOrder(ctx context.Context, orderID string) (*billing.AfdianOrder, error)
	QueryOrder(ctx context.Context, customOrderID string) (*billing.OrderStatus, error)
	LookupKey(ctx context.Context, cdk string) (*billing.KeyInfo, error)
	GetReward(ctx context.Context, key string) (*billing.RewardInfo, error)
	TransferKey(ctx context.Context, from, to string) error
}

// ShownKey 爱发电订单对应的 CDK
type ShownKey struct {
	CDK       string    `json:"cdk"`
	ExpiredAt time.Time `json:"expired_at"`
	Expired   bool      `json:"expired"`
}

// OrderLookup 订单发货查询结果
type OrderLookup struct {
	CustomOrderID string `json:"custom_order_id"`
	Fulfilled     bool   `json:"fulfilled"`
	CDK           string `json:"cdk,omitempty"`
	ExpiredAt     string `json:"expired_at,omitempty"`
	CreatedAt     string `json:"created_at,omitempty"`
	Message       string `json:"message,omitempty"`
}

// KeyCheck 转移前检查结果
type KeyCheck struct {
	Kind          string     `json:"kind"`
	Valid         bool       `json:"valid"`
	Reason        string     `json:"reason,omitempty"`
	Notice        string     `json:"notice,omitempty"`
	ExpiredAt     *time.Time `json:"expired_at,omitempty"`
	ValidDays     int        `json:"valid_days,omitempty"`
	CustomOrderID string     `json:"custom_order_id,omitempty"`
}

// KeyService CDK 查询与转移服务
type KeyService struct {
	backend KeyBackend
	now     func() time.Time
}

// NewKeyService 创建 CDK 服务
func NewKeyService(backend KeyBackend) *KeyService {
	return &KeyService{backend: backend, now: time.Now}
}

// IsRewardKey 长度不是 24 的输入按奖励码处理
func IsRewardKey(key string) bool {
	return len(key) != constants.LicenseKeyLength
}

// ShowKey 根据爱发电订单号取回 CDK
func (s *KeyService) ShowKey(ctx context.Context, orderID string) (*ShownKey, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return nil, ErrKeyRequired
	}
	order, err := s.backend.GetAfdianOrder(ctx, orderID)
	if err != nil {
		return nil, mapKeyBackendError(err, ErrKeyLookupFailed)
	}
	return &ShownKey{
		CDK:       order.CDK,
		ExpiredAt: order.ExpiredAt,
		Expired:   !order.ExpiredAt.IsZero() && order.ExpiredAt.Before(s.now()),
	}, nil
}

// QueryOrder 按关联单号查询发货状态
func (s *KeyService) QueryOrder(ctx context.Context, customOrderID string) (*OrderLookup, error) {
	customOrderID = strings.TrimSpace(customOrderID)
	if customOrderID == "" {
		return nil, ErrKeyRequired
	}
	status, err := s.backend.QueryOrder(ctx, customOrderID)
	if err != nil {
		return nil, mapKeyBackendError(err, ErrKeyLookupFailed)
	}
	result := &OrderLookup{CustomOrderID: customOrderID, Fulfilled: status.Fulfilled()}
	if result.Fulfilled {
		result.CDK = status.CDK
		result.ExpiredAt = status.ExpiredAt
		result.CreatedAt = status.CreatedAt
	} else {
		result.Message = status.Msg
	}
	return result, nil
}

// CheckTransferSource 检查转出方 CDK
func (s *KeyService) CheckTransferSource(ctx context.Context, key string) (*KeyCheck, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, ErrKeyRequired
	}
	if IsRewardKey(key) {
		return s.checkReward(ctx, key)
	}
	info, check, err := s.lookupLicense(ctx, key)
	if err != nil || info == nil {
		return check, err
	}
	now := s.now()
	expiredAt := info.ExpiredAt
	check.ExpiredAt = &expiredAt
	switch {
	case info.ExpiredAt.Before(now):
		check.Reason = KeyReasonExpired
	case info.CreatedAt.Before(now.Add(-transferSourceMaxAge)):
		check.Reason = KeyReasonTooOld
	default:
		check.Valid = true
	}
	return check, nil
}

// CheckTransferTarget 检查转入方 CDK，奖励码必须填在转出方
func (s *KeyService) CheckTransferTarget(ctx context.Context, key string) (*KeyCheck, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, ErrKeyRequired
	}
	if IsRewardKey(key) {
		return &KeyCheck{Kind: KeyKindReward, Reason: KeyReasonRewardFillInLeft}, nil
	}
	info, check, err := s.lookupLicense(ctx, key)
	if err != nil || info == nil {
		return check, err
	}
	expiredAt := info.ExpiredAt
	check.Valid = true
	check.ExpiredAt = &expiredAt
	check.CustomOrderID = info.CustomOrderID
	if info.ExpiredAt.Before(s.now()) {
		check.Notice = KeyNoticeTargetExpired
	}
	return check, nil
}

// Transfer 将转出方剩余时长转入目标 CDK
func (s *KeyService) Transfer(ctx context.Context, from, to string) error {
	from = strings.TrimSpace(from)
	to = strings.TrimSpace(to)
	if from == "" || to == "" {
		return ErrKeyRequired
	}
	if from == to {
		return ErrTransferSameKey
	}
	if err := s.backend.TransferKey(ctx, from, to); err != nil {
		return mapKeyBackendError(err, ErrTransferFailed)
	}
	logger.Infow("key_transfer_succeeded", "from_kind", keyKind(from), "to_kind", keyKind(to))
	return nil
}

func (s *KeyService) checkReward(ctx context.Context, key string) (*KeyCheck, error) {
	check := &KeyCheck{Kind: KeyKindReward}
	reward, err := s.backend.GetReward(ctx, key)
	if err != nil {
		if errors.Is(err, billing.ErrNotFound) {
			check.Reason = KeyReasonNotFound
			return check, nil
		}
		return nil, mapKeyBackendError(err, ErrKeyLookupFailed)
	}
	now := s.now()
	switch {
	case reward.Remaining <= 0:
		check.Reason = KeyReasonRewardUsedUp
	case !reward.StartAt.IsZero() && reward.StartAt.After(now):
		check.Reason = KeyReasonRewardNotStarted
	case !reward.ExpiredAt.IsZero() && reward.ExpiredAt.Before(now):
		check.Reason = KeyReasonRewardExpired
	default:
		check.Valid = true
		check.ValidDays = reward.ValidDays
	}
	if !reward.ExpiredAt.IsZero() {
		expiredAt := reward.ExpiredAt
		check.ExpiredAt = &expiredAt
	}
	return check, nil
}

// lookupLicense 查询许可证 CDK，未找到时返回无效结论而非错误
func (s *KeyService) lookupLicense(ctx context.Context, key string) (*billing.KeyInfo, *KeyCheck, error) {
	check := &KeyCheck{Kind: KeyKindLicense}
	info, err := s.backend.LookupKey(ctx, key)
	if err != nil {
		if errors.Is(err, billing.ErrNotFound) {
			check.Reason = KeyReasonNotFound
			return nil, check, nil
		}
		return nil, nil, mapKeyBackendError(err, ErrKeyLookupFailed)
	}
	return info, check, nil
}

// mapKeyBackendError 保留后端业务提示，便于原样展示
func mapKeyBackendError(err error, kind error) error {
	if errors.Is(err, billing.ErrNotFound) {
		return ErrOrderNotFound
	}
	var bizErr *billing.BusinessError
	if errors.As(err, &bizErr) {
		return fmt.Errorf("%w: %w", kind, bizErr)
	}
	return fmt.Errorf("%w: %w", kind, err)
}

// BackendMessage 提取后端返回的业务提示
func BackendMessage(err error) string {
	var bizErr *billing.BusinessError
	if errors.As(err, &bizErr) {
		return strings.TrimSpace(bizErr.Msg)
	}
	return ""
}

func keyKind(key string) string {
	if IsRewardKey(key) {
		return KeyKindReward
	}
	return KeyKindLicense
}
