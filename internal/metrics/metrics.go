package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// 下单次数，按平台与结果
	paymentsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_payments_created_total",
			Help: "下单请求次数",
		},
		[]string{"platform", "result"},
	)

	// 查单次数
	orderPolls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_order_polls_total",
			Help: "订单轮询查询次数",
		},
		[]string{"result"},
	)

	// 支付流程结局
	checkoutOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_checkout_outcomes_total",
			Help: "支付流程结局统计",
		},
		[]string{"outcome"},
	)

	renewalValidations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_renewal_validations_total",
			Help: "续费 CDK 校验次数",
		},
		[]string{"kind"},
	)

	planCache = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_plan_cache_total",
			Help: "套餐缓存命中统计",
		},
		[]string{"result"},
	)

	activeSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "storefront_checkout_sessions",
			Help: "当前存活的结算会话数",
		},
	)
)

// ObservePaymentCreated 记录下单结果
func ObservePaymentCreated(platform, result string) {
	paymentsCreated.WithLabelValues(platform, result).Inc()
}

// ObserveOrderPoll 记录一次查单，result 为 fulfilled / pending / error
func ObserveOrderPoll(result string) {
	orderPolls.WithLabelValues(result).Inc()
}

// ObserveCheckoutOutcome 记录流程结局
func ObserveCheckoutOutcome(outcome string) {
	checkoutOutcomes.WithLabelValues(outcome).Inc()
}

// ObserveRenewalValidation 记录续费校验结论
func ObserveRenewalValidation(kind string) {
	renewalValidations.WithLabelValues(kind).Inc()
}

// ObservePlanCache 记录套餐缓存 hit / miss / error
func ObservePlanCache(result string) {
	planCache.WithLabelValues(result).Inc()
}

// SetActiveSessions 更新会话数
func SetActiveSessions(n int) {
	activeSessions.Set(float64(n))
}
