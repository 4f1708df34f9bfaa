package checkout

import (
	"errors"
	"strings"

	"github.com/mirrorchyan/storefront/internal/billing"
	"github.com/mirrorchyan/storefront/internal/constants"
)

// Method 支付方式
type Method string

const (
	MethodAlipay    Method = constants.PaymentMethodAlipay
	MethodWechatPay Method = constants.PaymentMethodWechatPay
	MethodAfdian    Method = constants.PaymentMethodAfdian
)

var (
	ErrMethodInvalid     = errors.New("payment method invalid")
	ErrMethodUnavailable = errors.New("payment method unavailable for plan")
)

// ParseMethod 解析支付方式，兼容 weixin / wechat 写法
func ParseMethod(raw string) (Method, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "alipay":
		return MethodAlipay, nil
	case "wechatpay", "wechat", "weixin":
		return MethodWechatPay, nil
	case "afdian":
		return MethodAfdian, nil
	default:
		return "", ErrMethodInvalid
	}
}

// DefaultMethod 套餐提供支付宝渠道时默认支付宝，否则默认微信
func DefaultMethod(plan *billing.Plan) Method {
	if plan.HasAlipay() {
		return MethodAlipay
	}
	return MethodWechatPay
}

// Availability 各渠道是否展示
type Availability struct {
	Alipay    bool `json:"alipay"`
	WechatPay bool `json:"wechatPay"`
	Afdian    bool `json:"afdian"`
}

// AvailabilityOf 根据套餐渠道标识计算可用支付方式
func AvailabilityOf(plan *billing.Plan) Availability {
	return Availability{
		Alipay:    plan.HasAlipay(),
		WechatPay: plan.HasWeixin(),
		Afdian:    plan.HasAfdian(),
	}
}

// Allows 判断支付方式是否可用
func (a Availability) Allows(m Method) bool {
	switch m {
	case MethodAlipay:
		return a.Alipay
	case MethodWechatPay:
		return a.WechatPay
	case MethodAfdian:
		return a.Afdian
	default:
		return false
	}
}

// Methods 按展示顺序返回可用支付方式
func (a Availability) Methods() []Method {
	methods := make([]Method, 0, 3)
	for _, m := range []Method{MethodAlipay, MethodWechatPay, MethodAfdian} {
		if a.Allows(m) {
			methods = append(methods, m)
		}
	}
	return methods
}
