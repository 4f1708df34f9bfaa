package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/mirrorchyan/storefront/internal/billing"
	"github.com/mirrorchyan/storefront/internal/cache"
	"github.com/mirrorchyan/storefront/internal/checkout"
	"github.com/mirrorchyan/storefront/internal/config"

	"github.com/shopspring/decimal"
)

type fakeCatalogBackend struct {
	mu            sync.Mutex
	plans         map[string]*billing.Plan
	list          *billing.PlanList
	listErr       error
	rate          decimal.Decimal
	rateErr       error
	rateCalls     atomic.Int32
	annoCalls     atomic.Int32
	planCalls     atomic.Int32
	projectCalls  atomic.Int32
	contact       *billing.Contact
	contactErr    error
	announcements map[string]*billing.Announcement
}

func (f *fakeCatalogBackend) GetPlan(_ context.Context, planID string) (*billing.Plan, error) {
	f.planCalls.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	plan, ok := f.plans[planID]
	if !ok {
		return nil, billing.ErrNotFound
	}
	copied := *plan
	return &copied, nil
}

func (f *fakeCatalogBackend) ListPlans(context.Context, string) (*billing.PlanList, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.list, nil
}

func (f *fakeCatalogBackend) GetRate(_ context.Context, from, to string) (*billing.Rate, error) {
	f.rateCalls.Add(1)
	if f.rateErr != nil {
		return nil, f.rateErr
	}
	return &billing.Rate{From: from, To: to, Rate: f.rate}, nil
}

func (f *fakeCatalogBackend) GetAnnouncement(_ context.Context, lang string) (*billing.Announcement, error) {
	f.annoCalls.Add(1)
	if anno, ok := f.announcements[lang]; ok {
		return anno, nil
	}
	return nil, billing.ErrNotFound
}

func (f *fakeCatalogBackend) ListProjects(_ context.Context, typeID string) ([]billing.Project, error) {
	f.projectCalls.Add(1)
	return []billing.Project{{ResourceID: "MAA", Name: "MaaAssistantArknights", TypeID: typeID}}, nil
}

func (f *fakeCatalogBackend) GetContact(context.Context) (*billing.Contact, error) {
	return f.contact, f.contactErr
}

func newFakeCatalogBackend() *fakeCatalogBackend {
	return &fakeCatalogBackend{
		plans: map[string]*billing.Plan{
			"monthly": {
				ID:            "monthly",
				Title:         "Monthly",
				Price:         decimal.RequireFromString("10"),
				CheckoutPrice: decimal.RequireFromString("8"),
				AlipayID:      "ali-m",
				WeixinID:      "wx-m",
			},
			"yearly": {
				ID:       "yearly",
				Title:    "Yearly",
				Price:    decimal.RequireFromString("100"),
				WeixinID: "wx-y",
			},
		},
		list: &billing.PlanList{
			Home: []billing.PlanRef{{PlanID: "monthly", Platform: "web"}, {PlanID: "missing"}},
			More: []billing.PlanRef{{PlanID: "yearly", Popular: true}},
		},
		rate: decimal.RequireFromString("0.14"),
		announcements: map[string]*billing.Announcement{
			"zh": {Summary: "公告"},
			"en": {Summary: "Notice"},
		},
	}
}

func newTestCatalogService(backend *fakeCatalogBackend) *CatalogService {
	cfg := &config.Config{
		Catalog: config.CatalogConfig{MostPopularPlanID: "yearly", ContactFallbackURL: "https://fallback.example/group"},
		Locales: map[string]config.LocaleConfig{
			"zh": {Currency: "CNY", Symbol: "¥", Decimals: 2},
			"en": {Currency: "USD", Symbol: "$", Decimals: 2, UseRate: true},
		},
	}
	store := cache.NewLocalStore(1)
	resolver := checkout.NewPlanResolver(backend, store, 0)
	return NewCatalogService(backend, resolver, store, cfg)
}

func TestStorefrontSkipsUnresolvablePlans(t *testing.T) {
	backend := newFakeCatalogBackend()
	svc := newTestCatalogService(backend)

	front, err := svc.Storefront(context.Background(), "", "zh")
	if err != nil {
		t.Fatalf("storefront failed: %v", err)
	}
	if len(front.Home) != 1 || front.Home[0].PlanID != "monthly" {
		t.Fatalf("unexpected home cards: %+v", front.Home)
	}
	if len(front.More) != 1 || !front.More[0].MostPopular || !front.More[0].Popular {
		t.Fatalf("unexpected more cards: %+v", front.More)
	}
	monthly := front.Home[0]
	if monthly.Price.FinalPrice != "8.00" || monthly.Price.OriginPrice != "10.00" || !monthly.Price.HasDiscount {
		t.Fatalf("unexpected price: %+v", monthly.Price)
	}
	if monthly.DefaultMethod != checkout.MethodAlipay || len(monthly.Methods) != 2 {
		t.Fatalf("unexpected methods: %+v", monthly)
	}
	if front.More[0].DefaultMethod != checkout.MethodWechatPay {
		t.Fatalf("expected wechat default for plan without alipay")
	}
	if front.Currency != "CNY" || front.Rate != "1" {
		t.Fatalf("zh storefront should not convert: %s %s", front.Currency, front.Rate)
	}
	if front.Announcement == nil || front.Announcement.Summary != "公告" {
		t.Fatalf("unexpected announcement: %+v", front.Announcement)
	}
	if backend.rateCalls.Load() != 0 {
		t.Fatalf("zh storefront should not fetch rate")
	}
}

func TestStorefrontConvertsWithCachedRate(t *testing.T) {
	backend := newFakeCatalogBackend()
	svc := newTestCatalogService(backend)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		front, err := svc.Storefront(ctx, "", "en")
		if err != nil {
			t.Fatalf("storefront failed: %v", err)
		}
		if front.Currency != "USD" || front.Symbol != "$" {
			t.Fatalf("unexpected currency: %s %s", front.Currency, front.Symbol)
		}
		if got := front.Home[0].Price.FinalPrice; got != "1.12" {
			t.Fatalf("expected converted price 1.12, got %s", got)
		}
	}
	if backend.rateCalls.Load() != 1 {
		t.Fatalf("expected rate fetched once, got %d", backend.rateCalls.Load())
	}
	if backend.annoCalls.Load() != 1 {
		t.Fatalf("expected announcement fetched once, got %d", backend.annoCalls.Load())
	}
}

func TestPriceContextFallsBackWhenRateFails(t *testing.T) {
	backend := newFakeCatalogBackend()
	backend.rateErr = billing.ErrRequestFailed
	svc := newTestCatalogService(backend)

	pc := svc.PriceContext(context.Background(), "en")
	if pc.Currency != "CNY" || !pc.Rate.Equal(decimal.NewFromInt(1)) {
		t.Fatalf("expected CNY fallback, got %+v", pc)
	}
}

func TestStorefrontPlanListFailure(t *testing.T) {
	backend := newFakeCatalogBackend()
	backend.listErr = billing.ErrRequestFailed
	svc := newTestCatalogService(backend)
	if _, err := svc.Storefront(context.Background(), "", "zh"); !errors.Is(err, ErrCatalogUnavailable) {
		t.Fatalf("expected ErrCatalogUnavailable, got %v", err)
	}
}

func TestPlanDetail(t *testing.T) {
	svc := newTestCatalogService(newFakeCatalogBackend())
	card, err := svc.PlanDetail(context.Background(), "yearly", "zh")
	if err != nil {
		t.Fatalf("plan detail failed: %v", err)
	}
	if card.Price.FinalPrice != "100.00" || card.Price.HasDiscount {
		t.Fatalf("unexpected price: %+v", card.Price)
	}
	if _, err := svc.PlanDetail(context.Background(), "missing", "zh"); !errors.Is(err, ErrPlanNotFound) {
		t.Fatalf("expected ErrPlanNotFound, got %v", err)
	}
}

func TestProjectsAreCached(t *testing.T) {
	backend := newFakeCatalogBackend()
	svc := newTestCatalogService(backend)
	for i := 0; i < 2; i++ {
		projects, err := svc.Projects(context.Background(), "1")
		if err != nil || len(projects) != 1 {
			t.Fatalf("projects failed: %v %+v", err, projects)
		}
	}
	if backend.projectCalls.Load() != 1 {
		t.Fatalf("expected one backend call, got %d", backend.projectCalls.Load())
	}
}

func TestContactGroupURLFallback(t *testing.T) {
	backend := newFakeCatalogBackend()
	backend.contactErr = billing.ErrRequestFailed
	svc := newTestCatalogService(backend)
	if got := svc.ContactGroupURL(context.Background()); got != "https://fallback.example/group" {
		t.Fatalf("expected fallback link, got %s", got)
	}

	backend.contactErr = nil
	backend.contact = &billing.Contact{QQGroupLink: "https://qm.qq.com/real"}
	if got := svc.ContactGroupURL(context.Background()); got != "https://qm.qq.com/real" {
		t.Fatalf("expected backend link, got %s", got)
	}
}

func TestWarmRefreshesPlansAndRate(t *testing.T) {
	backend := newFakeCatalogBackend()
	svc := newTestCatalogService(backend)
	ctx := context.Background()

	if err := svc.Warm(ctx); err != nil {
		t.Fatalf("warm failed: %v", err)
	}
	// monthly + yearly + missing
	if got := backend.planCalls.Load(); got != 3 {
		t.Fatalf("expected 3 plan fetches, got %d", got)
	}
	if backend.rateCalls.Load() != 1 {
		t.Fatalf("expected rate fetched during warm-up")
	}

	// 预热后首页不再访问后端
	if _, err := svc.Storefront(ctx, "", "en"); err != nil {
		t.Fatalf("storefront failed: %v", err)
	}
	if got := backend.planCalls.Load(); got != 4 {
		// missing 套餐失败不缓存，会再请求一次
		t.Fatalf("expected only the missing plan to be refetched, got %d calls", got)
	}
	if backend.rateCalls.Load() != 1 {
		t.Fatalf("expected cached rate after warm-up")
	}
}
