package checkout

import (
	"time"

	"github.com/mirrorchyan/storefront/internal/billing"
	"github.com/shopspring/decimal"
)

// PriceContext 展示价格所需的币种信息
type PriceContext struct {
	Rate     decimal.Decimal
	Places   int32
	Currency string
	Symbol   string
	Now      time.Time
}

// PriceInfo 展示价格
type PriceInfo struct {
	FinalPrice   string          `json:"final_price"`
	OriginPrice  string          `json:"origin_price"`
	CurrentPrice string          `json:"current_price"`
	HasDiscount  bool            `json:"has_discount"`
	Currency     string          `json:"currency"`
	Symbol       string          `json:"symbol"`
	Payable      decimal.Decimal `json:"-"`
}

// ComputePrice 计算展示价格
// 标价与结算价不一致即视为折扣，较低者为应付价，较高者作为划线价。
func ComputePrice(plan *billing.Plan, pc PriceContext) PriceInfo {
	rate := pc.Rate
	if !rate.IsPositive() {
		rate = decimal.NewFromInt(1)
	}
	now := pc.Now
	if now.IsZero() {
		now = time.Now()
	}

	base := plan.Price
	checkout := plan.CheckoutPrice
	if checkout.IsZero() {
		checkout = base
	}
	if plan.TimeLimitPrice.ActiveAt(now) {
		checkout = plan.TimeLimitPrice.Price
	}

	hasDiscount := !base.Equal(checkout)
	low, high := base, checkout
	if low.GreaterThan(high) {
		low, high = high, low
	}

	convert := func(d decimal.Decimal) decimal.Decimal {
		return d.Mul(rate).Round(pc.Places)
	}
	payable := convert(low)
	info := PriceInfo{
		FinalPrice:   payable.StringFixed(pc.Places),
		OriginPrice:  convert(high).StringFixed(pc.Places),
		CurrentPrice: convert(base).StringFixed(pc.Places),
		HasDiscount:  hasDiscount,
		Currency:     pc.Currency,
		Symbol:       pc.Symbol,
		Payable:      payable,
	}
	if !hasDiscount {
		info.OriginPrice = info.FinalPrice
	}
	return info
}
