package models

import "time"

// CheckoutOrder 结算台账，记录每次下单及其结局
type CheckoutOrder struct {
	ID                  uint       `gorm:"primarykey" json:"id"`                                // 主键
	CorrelationID       string     `gorm:"size:64;uniqueIndex;not null" json:"custom_order_id"` // 关联单号
	SessionID           string     `gorm:"size:64;index;not null" json:"session_id"`            // 结算会话
	PlanID              string     `gorm:"size:64;index;not null" json:"plan_id"`               // 套餐ID
	Method              string     `gorm:"size:32;not null" json:"method"`                      // 支付方式
	Platform            string     `gorm:"size:32;not null" json:"platform"`                    // 下单平台
	OpenStrategy        string     `gorm:"size:32;not null" json:"open_strategy"`               // 打开方式
	Locale              string     `gorm:"size:16" json:"locale"`                               // 站点语言
	Source              string     `gorm:"size:64" json:"source"`                               // 来源
	RenewKeyFingerprint string     `gorm:"size:32" json:"renew_key_fingerprint"`                // 续费 CDK 摘要
	Amount              Money      `gorm:"type:decimal(20,2);not null;default:0" json:"amount"` // 后端返回金额
	Status              string     `gorm:"size:16;index;not null" json:"status"`                // 状态
	CDKFingerprint      string     `gorm:"size:32" json:"cdk_fingerprint"`                      // 发货 CDK 摘要
	KeyExpiredAt        string     `gorm:"size:64" json:"key_expired_at"`                       // CDK 到期时间
	ExpiresAt           *time.Time `gorm:"index" json:"expires_at"`                             // 轮询截止时间
	FulfilledAt         *time.Time `json:"fulfilled_at"`                                        // 发货时间
	FinishedAt          *time.Time `json:"finished_at"`                                         // 超时或关闭时间
	CreatedAt           time.Time  `gorm:"index" json:"created_at"`                             // 创建时间
	UpdatedAt           time.Time  `json:"updated_at"`                                          // 更新时间
}

// TableName 指定表名
func (CheckoutOrder) TableName() string {
	return "checkout_orders"
}
