package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/mirrorchyan/storefront/internal/billing"
	"github.com/mirrorchyan/storefront/internal/cache"
	"github.com/mirrorchyan/storefront/internal/checkout"
	"github.com/mirrorchyan/storefront/internal/config"
	"github.com/mirrorchyan/storefront/internal/logger"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

const (
	baseCurrency           = "CNY"
	catalogFanOut          = 8
	defaultAnnouncementTTL = time.Minute
	defaultRateTTL         = 24 * time.Hour
	defaultProjectTTL      = 10 * time.Minute
	defaultContactURL      = "https://qm.qq.com/"
	contactCacheKey        = "catalog:contact"
	catalogWarmupTimeout   = 30 * time.Second
)

// CatalogBackend 目录数据来源
type CatalogBackend interface {
	ListPlans(ctx context.Context, typeID string) (*billing.PlanList, error)
	GetRate(ctx context.Context, from, to string) (*billing.Rate, error)
	GetAnnouncement(ctx context.Context, lang string) (*billing.Announcement, error)
	ListProjects(ctx context.Context, typeID string) ([]billing.Project, error)
	GetContact(ctx context.Context) (*billing.Contact, error)
}

// PlanCard 套餐卡片
type PlanCard struct {
	PlanID        string                `json:"plan_id"`
	Title         string                `json:"title"`
	Platform      string                `json:"platform"`
	Popular       bool                  `json:"popular"`
	MostPopular   bool                  `json:"most_popular"`
	Price         checkout.PriceInfo    `json:"price"`
	DefaultMethod checkout.Method       `json:"default_method"`
	Availability  checkout.Availability `json:"availability"`
	Methods       []checkout.Method     `json:"methods"`
}

// Storefront 首页目录
type Storefront struct {
	Locale       string                `json:"locale"`
	TypeID       string                `json:"type_id"`
	Currency     string                `json:"currency"`
	Symbol       string                `json:"symbol"`
	Rate         string                `json:"rate"`
	Home         []PlanCard            `json:"home"`
	More         []PlanCard            `json:"more"`
	Announcement *billing.Announcement `json:"announcement,omitempty"`
}

// CatalogService 首页目录服务
type CatalogService struct {
	backend  CatalogBackend
	resolver *checkout.PlanResolver
	store    cache.Store
	cfg      *config.Config
	now      func() time.Time
}

// NewCatalogService 创建目录服务
func NewCatalogService(backend CatalogBackend, resolver *checkout.PlanResolver, store cache.Store, cfg *config.Config) *CatalogService {
	if cfg == nil {
		cfg = &config.Config{}
	}
	return &CatalogService{
		backend:  backend,
		resolver: resolver,
		store:    store,
		cfg:      cfg,
		now:      time.Now,
	}
}

// PriceContext 按站点语言生成价格上下文
// 汇率获取失败时回退到人民币展示，不会出现币种与金额不匹配。
func (s *CatalogService) PriceContext(ctx context.Context, locale string) checkout.PriceContext {
	lc := s.cfg.Locale(locale)
	pc := checkout.PriceContext{
		Rate:     decimal.NewFromInt(1),
		Places:   lc.Decimals,
		Currency: lc.Currency,
		Symbol:   lc.Symbol,
		Now:      s.now(),
	}
	if !lc.UseRate || strings.EqualFold(lc.Currency, baseCurrency) {
		return pc
	}
	rate, err := s.rate(ctx, lc.Currency)
	if err != nil {
		logger.Warnw("catalog_rate_unavailable", "locale", locale, "currency", lc.Currency, "error", err)
		fallback := s.cfg.Locale("zh")
		pc.Places = fallback.Decimals
		pc.Currency = fallback.Currency
		pc.Symbol = fallback.Symbol
		return pc
	}
	pc.Rate = rate
	return pc
}

// Storefront 首页套餐与公告
func (s *CatalogService) Storefront(ctx context.Context, typeID, locale string) (*Storefront, error) {
	typeID = strings.TrimSpace(typeID)
	list, err := s.planList(ctx, typeID)
	if err != nil {
		logger.Warnw("catalog_plan_list_failed", "type_id", typeID, "error", err)
		return nil, ErrCatalogUnavailable
	}
	pc := s.PriceContext(ctx, locale)

	home := make([]*PlanCard, len(list.Home))
	more := make([]*PlanCard, len(list.More))
	var announcement *billing.Announcement

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(catalogFanOut)
	s.fanOut(gctx, g, list.Home, home, pc)
	s.fanOut(gctx, g, list.More, more, pc)
	g.Go(func() error {
		anno, err := s.Announcement(gctx, locale)
		if err != nil {
			logger.Warnw("catalog_announcement_failed", "locale", locale, "error", err)
			return nil
		}
		announcement = anno
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &Storefront{
		Locale:       locale,
		TypeID:       typeID,
		Currency:     pc.Currency,
		Symbol:       pc.Symbol,
		Rate:         pc.Rate.String(),
		Home:         compactCards(home),
		More:         compactCards(more),
		Announcement: announcement,
	}, nil
}

// PlanDetail 单个套餐的展示卡片
func (s *CatalogService) PlanDetail(ctx context.Context, planID, locale string) (*PlanCard, error) {
	plan, ok := s.resolver.Resolve(ctx, planID)
	if !ok {
		return nil, ErrPlanNotFound
	}
	card := s.buildCard(plan, billing.PlanRef{PlanID: plan.ID, Popular: plan.Popular}, s.PriceContext(ctx, locale))
	return &card, nil
}

// Announcement 公告，按语言缓存
func (s *CatalogService) Announcement(ctx context.Context, locale string) (*billing.Announcement, error) {
	lang := announcementLang(locale)
	key := "catalog:announcement:" + lang
	var cached billing.Announcement
	if s.cacheGet(ctx, key, &cached) {
		return &cached, nil
	}
	anno, err := s.backend.GetAnnouncement(ctx, lang)
	if err != nil {
		return nil, err
	}
	s.cacheSet(ctx, key, anno, seconds(s.cfg.Catalog.AnnouncementTTLSeconds, defaultAnnouncementTTL))
	return anno, nil
}

// Projects 项目列表
func (s *CatalogService) Projects(ctx context.Context, typeID string) ([]billing.Project, error) {
	typeID = strings.TrimSpace(typeID)
	key := "catalog:projects:" + typeID
	var cached []billing.Project
	if s.cacheGet(ctx, key, &cached) {
		return cached, nil
	}
	projects, err := s.backend.ListProjects(ctx, typeID)
	if err != nil {
		logger.Warnw("catalog_projects_failed", "type_id", typeID, "error", err)
		return nil, ErrCatalogUnavailable
	}
	if projects == nil {
		projects = []billing.Project{}
	}
	s.cacheSet(ctx, key, projects, seconds(s.cfg.Catalog.ProjectTTLSeconds, defaultProjectTTL))
	return projects, nil
}

// ContactGroupURL 用户群链接，获取失败返回兜底链接
func (s *CatalogService) ContactGroupURL(ctx context.Context) string {
	var cached string
	if s.cacheGet(ctx, contactCacheKey, &cached) && cached != "" {
		return cached
	}
	contact, err := s.backend.GetContact(ctx)
	if err != nil || contact == nil || strings.TrimSpace(contact.QQGroupLink) == "" {
		if err != nil {
			logger.Warnw("catalog_contact_failed", "error", err)
		}
		return s.contactFallback()
	}
	link := strings.TrimSpace(contact.QQGroupLink)
	s.cacheSet(ctx, contactCacheKey, link, seconds(s.cfg.Catalog.ProjectTTLSeconds, defaultProjectTTL))
	return link
}

// Warm 预热套餐列表、套餐详情与汇率
func (s *CatalogService) Warm(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, catalogWarmupTimeout)
	defer cancel()

	typeIDs := s.cfg.Catalog.WarmupTypeIDs
	if len(typeIDs) == 0 {
		typeIDs = []string{""}
	}
	var errs []error
	for _, typeID := range typeIDs {
		typeID = strings.TrimSpace(typeID)
		s.cacheDel(ctx, planListKey(typeID))
		list, err := s.planList(ctx, typeID)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		refs := append(append([]billing.PlanRef{}, list.Home...), list.More...)
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(catalogFanOut)
		for _, ref := range refs {
			planID := ref.PlanID
			g.Go(func() error {
				_ = s.resolver.Invalidate(gctx, planID)
				s.resolver.Resolve(gctx, planID)
				return nil
			})
		}
		_ = g.Wait()
	}
	for name, lc := range s.cfg.Locales {
		if !lc.UseRate || strings.EqualFold(lc.Currency, baseCurrency) {
			continue
		}
		s.cacheDel(ctx, rateKey(lc.Currency))
		if _, err := s.rate(ctx, lc.Currency); err != nil {
			logger.Warnw("catalog_warm_rate_failed", "locale", name, "error", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s *CatalogService) fanOut(ctx context.Context, g *errgroup.Group, refs []billing.PlanRef, out []*PlanCard, pc checkout.PriceContext) {
	for i, ref := range refs {
		g.Go(func() error {
			plan, ok := s.resolver.Resolve(ctx, ref.PlanID)
			if !ok {
				// 单个套餐失败只跳过该卡片
				return nil
			}
			card := s.buildCard(plan, ref, pc)
			out[i] = &card
			return nil
		})
	}
}

func (s *CatalogService) buildCard(plan *billing.Plan, ref billing.PlanRef, pc checkout.PriceContext) PlanCard {
	availability := checkout.AvailabilityOf(plan)
	return PlanCard{
		PlanID:        plan.ID,
		Title:         plan.Title,
		Platform:      ref.Platform,
		Popular:       ref.Popular || plan.Popular,
		MostPopular:   s.cfg.Catalog.MostPopularPlanID != "" && plan.ID == s.cfg.Catalog.MostPopularPlanID,
		Price:         checkout.ComputePrice(plan, pc),
		DefaultMethod: checkout.DefaultMethod(plan),
		Availability:  availability,
		Methods:       availability.Methods(),
	}
}

func (s *CatalogService) planList(ctx context.Context, typeID string) (*billing.PlanList, error) {
	key := planListKey(typeID)
	var cached billing.PlanList
	if s.cacheGet(ctx, key, &cached) {
		return &cached, nil
	}
	list, err := s.backend.ListPlans(ctx, typeID)
	if err != nil {
		return nil, err
	}
	s.cacheSet(ctx, key, list, s.cfg.Checkout.PlanCacheTTL())
	return list, nil
}

func (s *CatalogService) rate(ctx context.Context, currency string) (decimal.Decimal, error) {
	key := rateKey(currency)
	var cached billing.Rate
	if s.cacheGet(ctx, key, &cached) && cached.Rate.IsPositive() {
		return cached.Rate, nil
	}
	rate, err := s.backend.GetRate(ctx, baseCurrency, strings.ToUpper(currency))
	if err != nil {
		return decimal.Zero, err
	}
	s.cacheSet(ctx, key, rate, seconds(s.cfg.Catalog.RateTTLSeconds, defaultRateTTL))
	return rate.Rate, nil
}

func (s *CatalogService) contactFallback() string {
	if link := strings.TrimSpace(s.cfg.Catalog.ContactFallbackURL); link != "" {
		return link
	}
	return defaultContactURL
}

func (s *CatalogService) cacheGet(ctx context.Context, key string, dest interface{}) bool {
	if s.store == nil {
		return false
	}
	hit, err := s.store.GetJSON(ctx, key, dest)
	if err != nil {
		logger.Warnw("catalog_cache_read_failed", "key", key, "error", err)
		return false
	}
	return hit
}

func (s *CatalogService) cacheSet(ctx context.Context, key string, value interface{}, ttl time.Duration) {
	if s.store == nil {
		return
	}
	if err := s.store.SetJSON(ctx, key, value, ttl); err != nil {
		logger.Warnw("catalog_cache_write_failed", "key", key, "error", err)
	}
}

func (s *CatalogService) cacheDel(ctx context.Context, key string) {
	if s.store == nil {
		return
	}
	if err := s.store.Del(ctx, key); err != nil {
		logger.Warnw("catalog_cache_delete_failed", "key", key, "error", err)
	}
}

func compactCards(cards []*PlanCard) []PlanCard {
	result := make([]PlanCard, 0, len(cards))
	for _, card := range cards {
		if card != nil {
			result = append(result, *card)
		}
	}
	return result
}

func announcementLang(locale string) string {
	if strings.HasPrefix(strings.ToLower(strings.TrimSpace(locale)), "en") {
		return "en"
	}
	return "zh"
}

func planListKey(typeID string) string {
	return "catalog:plans:" + typeID
}

func rateKey(currency string) string {
	return "catalog:rate:" + baseCurrency + ":" + strings.ToUpper(currency)
}

func seconds(value int, fallback time.Duration) time.Duration {
	if value <= 0 {
		return fallback
	}
	return time.Duration(value) * time.Second
}
