package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/mirrorchyan/storefront/internal/billing"
	"github.com/mirrorchyan/storefront/internal/constants"
	"github.com/mirrorchyan/storefront/internal/logger"
	"github.com/mirrorchyan/storefront/internal/metrics"
	"github.com/shopspring/decimal"
)

const defaultAfdianOrderURL = "https://ifdian.net/order/create"

var (
	ErrPlanUnavailable      = errors.New("plan unavailable")
	ErrPaymentTargetMissing = errors.New("payment target missing")
)

// OrderCreator 下单接口
type OrderCreator interface {
	CreateOrder(ctx context.Context, platform string, params billing.CreateOrderParams) (*billing.CreateOrderResult, error)
}

// PaymentRequest 下单请求
type PaymentRequest struct {
	Plan          *billing.Plan
	Method        Method
	Env           Environment
	RenewalCDK    string
	Source        string
	CorrelationID string
}

// Payment 下单结果与打开方式
type Payment struct {
	Route         Route           `json:"route"`
	Open          string          `json:"open"`
	PayURL        string          `json:"pay_url,omitempty"`
	HTML          string          `json:"html,omitempty"`
	CorrelationID string          `json:"custom_order_id"`
	Amount        decimal.Decimal `json:"amount"`
	Title         string          `json:"title,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

// Initiator 支付发起器
type Initiator struct {
	backend        OrderCreator
	afdianOrderURL string
	source         string
	now            func() time.Time
}

// NewInitiator 创建支付发起器
func NewInitiator(backend OrderCreator, afdianOrderURL, source string) *Initiator {
	if strings.TrimSpace(afdianOrderURL) == "" {
		afdianOrderURL = defaultAfdianOrderURL
	}
	if strings.TrimSpace(source) == "" {
		source = constants.DefaultOrderSource
	}
	return &Initiator{
		backend:        backend,
		afdianOrderURL: afdianOrderURL,
		source:         source,
		now:            time.Now,
	}
}

// CreatePayment 选择路由并创建支付
func (i *Initiator) CreatePayment(ctx context.Context, req PaymentRequest) (*Payment, error) {
	route, err := ResolveRoute(req.Method, req.Plan, req.Env)
	if err != nil {
		return nil, err
	}

	if route.External() {
		correlationID := strings.TrimSpace(req.CorrelationID)
		if correlationID == "" {
			correlationID = NewCorrelationID()
		}
		link := BuildAfdianOrderURL(i.afdianOrderURL, route.PlanID, req.Plan.AfdianInfo.SkuID, correlationID)
		metrics.ObservePaymentCreated(route.Platform, "ok")
		return &Payment{
			Route:         route,
			Open:          constants.OpenStrategyExternal,
			PayURL:        link,
			CorrelationID: correlationID,
			Amount:        req.Plan.CheckoutPrice,
			Title:         req.Plan.Title,
			CreatedAt:     i.now(),
		}, nil
	}

	source := strings.TrimSpace(req.Source)
	if source == "" {
		source = i.source
	}
	result, err := i.backend.CreateOrder(ctx, route.Platform, billing.CreateOrderParams{
		PlanID:  route.PlanID,
		PayType: route.PayType,
		Source:  source,
		Renew:   strings.TrimSpace(req.RenewalCDK),
	})
	if err != nil {
		metrics.ObservePaymentCreated(route.Platform, "error")
		logger.Warnw("checkout_create_order_failed",
			"platform", route.Platform,
			"plan_id", route.PlanID,
			"renew", Fingerprint(req.RenewalCDK),
			"error", err,
		)
		return nil, err
	}
	if strings.TrimSpace(result.CustomOrderID) == "" {
		metrics.ObservePaymentCreated(route.Platform, "invalid")
		return nil, fmt.Errorf("%w: missing custom_order_id", billing.ErrResponseInvalid)
	}
	open, err := resolveOpen(route, result)
	if err != nil {
		metrics.ObservePaymentCreated(route.Platform, "invalid")
		return nil, err
	}
	metrics.ObservePaymentCreated(route.Platform, "ok")
	logger.Infow("checkout_order_created",
		"platform", route.Platform,
		"plan_id", route.PlanID,
		"custom_order_id", result.CustomOrderID,
		"open", open,
	)
	return &Payment{
		Route:         route,
		Open:          open,
		PayURL:        result.PayURL,
		HTML:          result.HTML,
		CorrelationID: result.CustomOrderID,
		Amount:        result.Amount,
		Title:         result.Title,
		CreatedAt:     i.now(),
	}, nil
}

// resolveOpen H5 路由优先跳转；其余有链接则展示二维码，只有表单则内嵌渲染
func resolveOpen(route Route, result *billing.CreateOrderResult) (string, error) {
	switch {
	case route.Open == constants.OpenStrategyRedirect && result.PayURL != "":
		return constants.OpenStrategyRedirect, nil
	case result.PayURL != "":
		return constants.OpenStrategyQRCode, nil
	case result.HTML != "":
		return constants.OpenStrategyHTML, nil
	default:
		return "", ErrPaymentTargetMissing
	}
}

type afdianSku struct {
	SkuID string `json:"sku_id"`
	Count int    `json:"count"`
}

// BuildAfdianOrderURL 拼接爱发电下单链接，custom_order_id 用于后续查单
func BuildAfdianOrderURL(base, planID, skuID, correlationID string) string {
	sku, _ := json.Marshal([]afdianSku{{SkuID: skuID, Count: 1}})
	var b strings.Builder
	b.WriteString(strings.TrimRight(base, "?"))
	b.WriteString("?product_type=1")
	b.WriteString("&plan_id=" + url.QueryEscape(planID))
	b.WriteString("&sku=" + url.QueryEscape(string(sku)))
	b.WriteString("&viokrz_ex=0")
	b.WriteString("&custom_order_id=" + url.QueryEscape(correlationID))
	return b.String()
}
