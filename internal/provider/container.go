package provider

import (
	"time"

	"github.com/mirrorchyan/storefront/internal/billing"
	"github.com/mirrorchyan/storefront/internal/cache"
	"github.com/mirrorchyan/storefront/internal/checkout"
	"github.com/mirrorchyan/storefront/internal/config"
	"github.com/mirrorchyan/storefront/internal/logger"
	"github.com/mirrorchyan/storefront/internal/models"
	"github.com/mirrorchyan/storefront/internal/queue"
	"github.com/mirrorchyan/storefront/internal/repository"
	"github.com/mirrorchyan/storefront/internal/service"
)

// Container 依赖注入容器
type Container struct {
	Config        *config.Config
	QueueClient   *queue.Client
	BillingClient *billing.Client

	// Caches
	PlanStore    cache.Store
	CatalogStore cache.Store

	// Repositories
	CheckoutOrderRepo repository.CheckoutOrderRepository

	// Checkout
	PlanResolver    *checkout.PlanResolver
	TokenIssuer     *checkout.TokenIssuer
	CheckoutManager *checkout.Manager

	// Services
	LedgerService  *service.CheckoutLedgerService
	CatalogService *service.CatalogService
	KeyService     *service.KeyService
	RevenueService *service.RevenueService
	CaptchaService *service.CaptchaService
}

// NewContainer 初始化容器
func NewContainer(cfg *config.Config) *Container {
	// 初始化缓存
	if err := cache.InitRedis(&cfg.Redis); err != nil {
		logger.Warnw("provider_init_redis_failed", "error", err)
	}

	// 初始化队列客户端
	var queueClient *queue.Client
	if cfg.Queue.Enabled {
		qc, err := queue.NewClient(&cfg.Queue)
		if err != nil {
			logger.Errorw("provider_init_queue_client_failed", "error", err)
		} else {
			queueClient = qc
		}
	}

	c := &Container{
		Config:      cfg,
		QueueClient: queueClient,
		BillingClient: billing.New(billing.Config{
			BaseURL:   cfg.Billing.BaseURL,
			Timeout:   cfg.Billing.Timeout(),
			UserAgent: cfg.Billing.UserAgent,
		}),
	}

	// 1. 初始化缓存
	c.initStores()

	// 2. 初始化 Repositories
	c.initRepositories()

	// 3. 初始化 Services
	c.initServices()

	return c
}

func (c *Container) initStores() {
	local := cache.NewLocalStore(c.Config.Checkout.PlanCacheSizeMB)
	c.PlanStore = local
	c.CatalogStore = local
	// 多实例部署时首页目录走 Redis 共享
	if cache.Enabled() {
		c.CatalogStore = cache.NewRedisStore(cache.Client(), cache.Prefix())
	}
}

func (c *Container) initRepositories() {
	db := models.DB
	c.CheckoutOrderRepo = repository.NewCheckoutOrderRepository(db)
}

func (c *Container) initServices() {
	cfg := c.Config

	c.LedgerService = service.NewCheckoutLedgerService(c.CheckoutOrderRepo, c.QueueClient)
	c.PlanResolver = checkout.NewPlanResolver(c.BillingClient, c.PlanStore, cfg.Checkout.PlanCacheTTL())
	c.CatalogService = service.NewCatalogService(c.BillingClient, c.PlanResolver, c.CatalogStore, cfg)
	c.KeyService = service.NewKeyService(c.BillingClient)
	c.RevenueService = service.NewRevenueService(c.BillingClient)
	c.CaptchaService = service.NewCaptchaService(cfg.Captcha)
	c.TokenIssuer = checkout.NewTokenIssuer(
		cfg.Security.SessionToken.Secret,
		time.Duration(cfg.Security.SessionToken.ExpireMinutes)*time.Minute,
	)

	initiator := checkout.NewInitiator(c.BillingClient, cfg.Checkout.AfdianOrderURL, cfg.Billing.Source)
	c.CheckoutManager = checkout.NewManager(
		c.PlanResolver,
		initiator,
		c.BillingClient,
		c.BillingClient,
		c.LedgerService,
		checkout.ManagerOptions{
			PollInitialDelay: cfg.Checkout.PollInitialDelay(),
			PollInterval:     cfg.Checkout.PollInterval(),
			MaxWait:          cfg.Checkout.MaxWait(),
			RenewalDebounce:  cfg.Checkout.RenewalDebounce(),
			SessionIdle:      cfg.Checkout.SessionIdle(),
			PublicBaseURL:    cfg.Checkout.PublicBaseURL,
			DefaultSource:    cfg.Billing.Source,
		},
	)
}
