package router

import (
	"fmt"
	"strings"

	"github.com/mirrorchyan/storefront/internal/cache"
	"github.com/mirrorchyan/storefront/internal/config"
	publichandlers "github.com/mirrorchyan/storefront/internal/http/handlers/public"
	"github.com/mirrorchyan/storefront/internal/http/response"
	"github.com/mirrorchyan/storefront/internal/logger"
	"github.com/mirrorchyan/storefront/internal/metrics"
	"github.com/mirrorchyan/storefront/internal/provider"

	"github.com/gin-gonic/gin"
)

const defaultMetricsPath = "/metrics"

// SetupRouter 初始化路由
func SetupRouter(cfg *config.Config, c *provider.Container) *gin.Engine {
	log := logger.L
	if log == nil {
		log = logger.Init(cfg.Server.Mode, cfg.Log.ToLoggerOptions())
	}
	r := gin.New()

	publicHandler := publichandlers.New(c)
	redisPrefix := strings.TrimSpace(cfg.Redis.Prefix)
	if redisPrefix == "" {
		redisPrefix = "mc"
	}
	redisClient := cache.Client()
	payRule := RateLimitRule{
		Prefix:        fmt.Sprintf("%s:rate:pay", redisPrefix),
		WindowSeconds: cfg.Security.PayRateLimit.WindowSeconds,
		MaxRequests:   cfg.Security.PayRateLimit.MaxRequests,
	}
	transferRule := RateLimitRule{
		Prefix:        fmt.Sprintf("%s:rate:transfer", redisPrefix),
		WindowSeconds: cfg.Security.TransferRateLimit.WindowSeconds,
		MaxRequests:   cfg.Security.TransferRateLimit.MaxRequests,
	}

	metricsPath := strings.TrimSpace(cfg.Metrics.Path)
	if metricsPath == "" {
		metricsPath = defaultMetricsPath
	}

	// 中间件
	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(LoggerMiddleware(log))
	r.Use(CORSMiddleware(cfg.CORS))
	if cfg.Metrics.Enabled {
		r.Use(metrics.Middleware(metricsPath, "/health"))
	}

	apiV1 := r.Group("/api/v1")
	{
		// 商品目录
		apiV1.GET("/storefront", publicHandler.GetStorefront)
		apiV1.GET("/plans/:id", publicHandler.GetPlan)
		apiV1.GET("/announcement", publicHandler.GetAnnouncement)
		apiV1.GET("/projects", publicHandler.GetProjects)
		apiV1.GET("/contact", publicHandler.GetContact)

		// 结账会话
		apiV1.POST("/checkout/sessions", publicHandler.CreateCheckoutSession)
		session := apiV1.Group("/checkout/sessions/:id")
		session.Use(CheckoutTokenMiddleware(c.TokenIssuer))
		{
			session.GET("", publicHandler.GetCheckoutSession)
			session.DELETE("", publicHandler.DeleteCheckoutSession)
			session.PUT("/method", publicHandler.SelectCheckoutMethod)
			session.PUT("/renewal", publicHandler.ObserveRenewal)
			session.POST("/renewal/validate", publicHandler.ValidateRenewal)
			session.POST("/pay", RateLimitMiddleware(redisClient, payRule, KeyByIPAndCheckoutSession), publicHandler.PayCheckoutSession)
			session.GET("/qrcode.png", publicHandler.GetCheckoutQRCode)
			session.POST("/close", publicHandler.CloseCheckoutPayment)
		}

		// CDK 查询与转移
		apiV1.GET("/keys/order/:order_id", publicHandler.ShowKey)
		apiV1.GET("/keys/query", publicHandler.QueryKeyOrder)
		apiV1.GET("/transfer/source", publicHandler.CheckTransferSource)
		apiV1.GET("/transfer/target", publicHandler.CheckTransferTarget)
		apiV1.POST("/transfer", RateLimitMiddleware(redisClient, transferRule, KeyByIPAndJSONField("from")), publicHandler.TransferKey)
		apiV1.GET("/captcha", publicHandler.GetImageCaptcha)

		// 收入看板
		apiV1.GET("/dashboard/revenue", publicHandler.GetRevenue)
		apiV1.GET("/dashboard/revenue.csv", publicHandler.ExportRevenueCSV)
	}

	if cfg.Metrics.Enabled {
		r.GET(metricsPath, metrics.Handler())
	}

	r.GET("/health", func(c *gin.Context) {
		response.Success(c, gin.H{"status": "ok"})
	})

	return r
}
