package billing

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Plan 套餐信息
type Plan struct {
	ID             string          `json:"plan_id"`
	Title          string          `json:"title"`
	Price          decimal.Decimal `json:"price"`
	OriginalPrice  decimal.Decimal `json:"original_price"`
	CheckoutPrice  decimal.Decimal `json:"checkout_price"`
	Popular        bool            `json:"popular"`
	AfdianInfo     *AfdianInfo     `json:"afdian_info,omitempty"`
	WeixinID       string          `json:"weixin_id"`
	AlipayID       string          `json:"alipay_id"`
	TimeLimitPrice *TimeLimitPrice `json:"time_limit_price,omitempty"`
}

// AfdianInfo 爱发电渠道标识
type AfdianInfo struct {
	PlanID string `json:"plan_id"`
	SkuID  string `json:"sku_id"`
}

// TimeLimitPrice 限时价格
type TimeLimitPrice struct {
	BeginTime int64           `json:"begin_time"` // Unix 秒
	EndTime   int64           `json:"end_time"`
	Price     decimal.Decimal `json:"price"`
}

// ActiveAt 判断限时价格在 now 是否生效
func (p *TimeLimitPrice) ActiveAt(now time.Time) bool {
	if p == nil || p.Price.IsZero() {
		return false
	}
	ts := now.Unix()
	return ts >= p.BeginTime && ts < p.EndTime
}

// HasAlipay 是否提供支付宝渠道
func (p *Plan) HasAlipay() bool {
	return p != nil && strings.TrimSpace(p.AlipayID) != ""
}

// HasWeixin 是否提供微信渠道
func (p *Plan) HasWeixin() bool {
	return p != nil && strings.TrimSpace(p.WeixinID) != ""
}

// HasAfdian 是否提供爱发电渠道
func (p *Plan) HasAfdian() bool {
	return p != nil && p.AfdianInfo != nil && strings.TrimSpace(p.AfdianInfo.PlanID) != ""
}

// PlanRef 套餐列表项
type PlanRef struct {
	PlanID   string `json:"plan_id"`
	Platform string `json:"platform"`
	Popular  bool   `json:"popular"`
	TypeID   string `json:"type_id"`
}

// PlanList 套餐列表
type PlanList struct {
	Home []PlanRef `json:"home"`
	More []PlanRef `json:"more"`
}

// CreateOrderParams 下单参数
type CreateOrderParams struct {
	PlanID  string
	PayType string
	Source  string
	Renew   string
}

// CreateOrderResult 下单结果
type CreateOrderResult struct {
	PayURL        string          `json:"pay_url"`
	HTML          string          `json:"html"`
	CustomOrderID string          `json:"custom_order_id"`
	Amount        decimal.Decimal `json:"amount"`
	Title         string          `json:"title"`
}

// OrderStatus 查单结果，Code 为 0 且 CDK 非空表示已发货
type OrderStatus struct {
	Code      int    `json:"code"`
	Msg       string `json:"msg"`
	CDK       string `json:"cdk"`
	ExpiredAt string `json:"expired_at"`
	CreatedAt string `json:"created_at"`
}

// Fulfilled 是否已发货
func (s *OrderStatus) Fulfilled() bool {
	return s != nil && s.Code == 0 && strings.TrimSpace(s.CDK) != ""
}

// KeyInfo CDK 查询结果
type KeyInfo struct {
	ExpiredAt     time.Time `json:"expired_at"`
	CreatedAt     time.Time `json:"created_at"`
	CustomOrderID string    `json:"custom_order_id"`
}

// AfdianOrder 爱发电订单对应的 CDK
type AfdianOrder struct {
	CDK       string    `json:"cdk"`
	ExpiredAt time.Time `json:"expired_at"`
}

// RewardInfo 奖励码信息
type RewardInfo struct {
	Remaining int       `json:"remaining"`
	StartAt   time.Time `json:"start_at"`
	ExpiredAt time.Time `json:"expired_at"`
	ValidDays int       `json:"valid_days"`
}

// RevenueQuery 收入查询参数
type RevenueQuery struct {
	RID   string
	Month string // YYYYMM
	IsUA  bool
	Token string
}

// RevenueRecord 收入明细
type RevenueRecord struct {
	ActivatedAt time.Time       `json:"activated_at"`
	Amount      decimal.Decimal `json:"amount"`
	Application string          `json:"application"`
	BuyCount    int             `json:"buy_count"`
	Plan        string          `json:"plan"`
	UserAgent   string          `json:"user_agent"`
	Platform    string          `json:"platform"`
	Source      string          `json:"source"`
}

// Announcement 公告
type Announcement struct {
	Summary string `json:"summary"`
	Details string `json:"details"`
}

// Project 项目展示信息
type Project struct {
	ResourceID  string `json:"rid"`
	Name        string `json:"name"`
	Description string `json:"desc"`
	URL         string `json:"url"`
	Image       string `json:"image"`
	TypeID      string `json:"type_id"`
}

// Rate 汇率
type Rate struct {
	From string          `json:"from"`
	To   string          `json:"to"`
	Rate decimal.Decimal `json:"rate"`
}

// Contact 联系方式
type Contact struct {
	QQGroupLink string `json:"QQGroupLink"`
}
