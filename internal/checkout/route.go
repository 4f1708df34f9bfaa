package checkout

import (
	"github.com/mirrorchyan/storefront/internal/billing"
	"github.com/mirrorchyan/storefront/internal/constants"
)

// Route 下单路由：后端平台、平台侧套餐 ID、支付子类型与打开方式
type Route struct {
	Method   Method `json:"method"`
	Platform string `json:"platform"`
	PlanID   string `json:"plan_id"`
	PayType  string `json:"pay_type,omitempty"`
	Open     string `json:"open"`
}

// External 是否为站外链接（不经后端下单）
func (r Route) External() bool {
	return r.Open == constants.OpenStrategyExternal
}

type routeRule struct {
	method   Method
	when     func(Environment) bool
	platform string
	payType  string
	open     string
	planID   func(*billing.Plan) string
}

func always(Environment) bool { return true }

func alipayPlanID(p *billing.Plan) string { return p.AlipayID }
func weixinPlanID(p *billing.Plan) string { return p.WeixinID }
func afdianPlanID(p *billing.Plan) string { return p.AfdianInfo.PlanID }

// 按顺序匹配，命中即止
var routeTable = []routeRule{
	{MethodAlipay, Environment.CanTryH5, constants.PlatformAlipay, constants.PayTypeH5, constants.OpenStrategyRedirect, alipayPlanID},
	{MethodAlipay, always, constants.PlatformAlipay, "", constants.OpenStrategyQRCode, alipayPlanID},
	{MethodWechatPay, always, constants.PlatformWeixin, "", constants.OpenStrategyQRCode, weixinPlanID},
	{MethodAfdian, always, constants.PlatformAfdian, "", constants.OpenStrategyExternal, afdianPlanID},
}

// ResolveRoute 根据支付方式、套餐与浏览器环境选择下单路由
func ResolveRoute(method Method, plan *billing.Plan, env Environment) (Route, error) {
	if plan == nil {
		return Route{}, ErrPlanUnavailable
	}
	if !AvailabilityOf(plan).Allows(method) {
		return Route{}, ErrMethodUnavailable
	}
	for _, rule := range routeTable {
		if rule.method != method || !rule.when(env) {
			continue
		}
		return Route{
			Method:   method,
			Platform: rule.platform,
			PlanID:   rule.planID(plan),
			PayType:  rule.payType,
			Open:     rule.open,
		}, nil
	}
	return Route{}, ErrMethodInvalid
}
