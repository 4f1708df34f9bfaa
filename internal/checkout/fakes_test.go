package checkout

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/mirrorchyan/storefront/internal/billing"
	"github.com/shopspring/decimal"
)

type fakeBackend struct {
	mu sync.Mutex

	plans     map[string]*billing.Plan
	planErr   error
	planGate  chan struct{}
	planCalls int

	createFn      func(platform string, params billing.CreateOrderParams) (*billing.CreateOrderResult, error)
	createGate    chan struct{}
	createCalls   int
	lastPlatform  string
	lastCreate    billing.CreateOrderParams
	queryFn       func(n int, correlationID string) (*billing.OrderStatus, error)
	queryCalls    int
	queriedIDs    []string
	lookupFn      func(cdk string) (*billing.KeyInfo, error)
	lookupCalls   int
	lastLookupKey string
}

func (f *fakeBackend) GetPlan(_ context.Context, planID string) (*billing.Plan, error) {
	f.mu.Lock()
	f.planCalls++
	gate := f.planGate
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.planErr != nil {
		return nil, f.planErr
	}
	plan, ok := f.plans[planID]
	if !ok {
		return nil, billing.ErrNotFound
	}
	copied := *plan
	return &copied, nil
}

func (f *fakeBackend) CreateOrder(_ context.Context, platform string, params billing.CreateOrderParams) (*billing.CreateOrderResult, error) {
	f.mu.Lock()
	f.createCalls++
	f.lastPlatform = platform
	f.lastCreate = params
	gate := f.createGate
	fn := f.createFn
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}
	if fn != nil {
		return fn(platform, params)
	}
	return &billing.CreateOrderResult{PayURL: "https://pay.example/" + platform, CustomOrderID: "order-1"}, nil
}

func (f *fakeBackend) QueryOrder(_ context.Context, correlationID string) (*billing.OrderStatus, error) {
	f.mu.Lock()
	f.queryCalls++
	n := f.queryCalls
	f.queriedIDs = append(f.queriedIDs, correlationID)
	fn := f.queryFn
	f.mu.Unlock()
	if fn != nil {
		return fn(n, correlationID)
	}
	return &billing.OrderStatus{Code: 1}, nil
}

func (f *fakeBackend) LookupKey(_ context.Context, cdk string) (*billing.KeyInfo, error) {
	f.mu.Lock()
	f.lookupCalls++
	f.lastLookupKey = cdk
	fn := f.lookupFn
	f.mu.Unlock()
	if fn != nil {
		return fn(cdk)
	}
	return &billing.KeyInfo{ExpiredAt: time.Now().Add(24 * time.Hour)}, nil
}

func (f *fakeBackend) counts() (plan, create, query, lookup int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.planCalls, f.createCalls, f.queryCalls, f.lookupCalls
}

func samplePlan() *billing.Plan {
	return &billing.Plan{
		ID:            "plan-1",
		Title:         "Monthly",
		Price:         decimal.RequireFromString("10"),
		CheckoutPrice: decimal.RequireFromString("8"),
		AlipayID:      "ali-1",
		WeixinID:      "wx-1",
		AfdianInfo:    &billing.AfdianInfo{PlanID: "af-1", SkuID: "sku-1"},
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("condition not met before deadline")
}

const (
	uaDesktopChrome = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	uaAndroidChrome = "Mozilla/5.0 (Linux; Android 13; Pixel 7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Mobile Safari/537.36"
	uaIOSSafari     = "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Mobile/15E148 Safari/604.1"
	uaIOSChrome     = "Mozilla/5.0 (iPhone; CPU iPhone OS 17_2 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) CriOS/120.0.6099.119 Mobile/15E148 Safari/604.1"
	uaMacSafari     = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.1 Safari/605.1.15"
	uaIOSWeChat     = "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Mobile/15E148 MicroMessenger/8.0.40(0x18002831) NetType/WIFI Language/zh_CN"
	uaAndroidQQ     = "Mozilla/5.0 (Linux; Android 12; M2012K11AC) AppleWebKit/537.36 (KHTML, like Gecko) Version/4.0 Chrome/98.0.4758.101 Mobile Safari/537.36 V1_AND_SQ_8.9.0_3060_YYB_D QQ/8.9.0.9910 NetType/WIFI"
)
