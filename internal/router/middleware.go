package router

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/mirrorchyan/storefront/internal/checkout"
	"github.com/mirrorchyan/storefront/internal/config"
	handlershared "github.com/mirrorchyan/storefront/internal/http/handlers/shared"
	"github.com/mirrorchyan/storefront/internal/http/response"
	"github.com/mirrorchyan/storefront/internal/i18n"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const requestIDKey = response.RequestIDKey
const requestIDHeader = "X-Request-ID"
const checkoutTokenHeader = "X-Checkout-Token"

// CORSMiddleware 跨域中间件
func CORSMiddleware(cfg config.CORSConfig) gin.HandlerFunc {
	allowedOrigins := cfg.AllowedOrigins
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}
	allowedMethods := cfg.AllowedMethods
	if len(allowedMethods) == 0 {
		allowedMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	}
	allowedHeaders := cfg.AllowedHeaders
	if len(allowedHeaders) == 0 {
		allowedHeaders = []string{
			"Content-Type",
			"Content-Length",
			"Accept-Encoding",
			"Authorization",
			"Cache-Control",
			"X-Requested-With",
			"X-Request-ID",
			"X-Checkout-Token",
		}
	}
	methodsHeader := strings.Join(allowedMethods, ", ")
	headersHeader := strings.Join(allowedHeaders, ", ")

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		allowedOrigin := resolveAllowedOrigin(origin, allowedOrigins, cfg.AllowCredentials)
		if allowedOrigin != "" {
			c.Writer.Header().Set("Access-Control-Allow-Origin", allowedOrigin)
			if allowedOrigin != "*" {
				c.Writer.Header().Add("Vary", "Origin")
			}
		}
		if cfg.AllowCredentials {
			c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		}
		c.Writer.Header().Set("Access-Control-Allow-Headers", headersHeader)
		c.Writer.Header().Set("Access-Control-Allow-Methods", methodsHeader)
		if cfg.MaxAge > 0 {
			c.Writer.Header().Set("Access-Control-Max-Age", strconv.Itoa(cfg.MaxAge))
		}

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}

func resolveAllowedOrigin(origin string, allowedOrigins []string, allowCredentials bool) string {
	if len(allowedOrigins) == 0 {
		return ""
	}
	for _, allowed := range allowedOrigins {
		if allowed == "*" {
			if allowCredentials && origin != "" {
				return origin
			}
			return "*"
		}
	}
	if origin == "" {
		return ""
	}
	for _, allowed := range allowedOrigins {
		if strings.EqualFold(allowed, origin) {
			return origin
		}
	}
	return ""
}

// RequestIDMiddleware 请求 ID 中间件
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := strings.TrimSpace(c.GetHeader(requestIDHeader))
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Set(requestIDKey, requestID)
		c.Writer.Header().Set(requestIDHeader, requestID)
		c.Next()
	}
}

// LoggerMiddleware 结构化请求日志中间件
func LoggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.L()
	}
	sugar := logger.Sugar()
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		log := sugar.With(
			"request_id", getRequestID(c),
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"latency_ms", time.Since(start).Milliseconds(),
			"client_ip", c.ClientIP(),
		)
		if len(c.Errors) > 0 {
			log.Errorw("request", "errors", c.Errors.String())
			return
		}
		log.Infow("request")
	}
}

func getRequestID(c *gin.Context) string {
	value, ok := c.Get(requestIDKey)
	if !ok {
		return ""
	}
	if requestID, ok := value.(string); ok {
		return requestID
	}
	return ""
}

// SessionTokenParser 结账令牌解析
type SessionTokenParser interface {
	Parse(token string) (string, error)
}

// CheckoutTokenMiddleware 结账令牌鉴权，令牌中的会话 ID 写入上下文
func CheckoutTokenMiddleware(parser SessionTokenParser) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := checkoutToken(c)
		if tokenString == "" {
			msg := i18n.T(i18n.ResolveLocale(c), "error.session_token_missing")
			response.Unauthorized(c, msg)
			c.Abort()
			return
		}
		if parser == nil {
			msg := i18n.T(i18n.ResolveLocale(c), "error.session_token_invalid")
			response.Unauthorized(c, msg)
			c.Abort()
			return
		}
		sid, err := parser.Parse(tokenString)
		if err != nil {
			if !errors.Is(err, checkout.ErrTokenInvalid) {
				handlershared.RequestLog(c).Warnw("checkout_token_parse_failed", "error", err)
			}
			msg := i18n.T(i18n.ResolveLocale(c), "error.session_token_invalid")
			response.Unauthorized(c, msg)
			c.Abort()
			return
		}
		c.Set(handlershared.ContextKeyCheckoutSession, sid)
		c.Next()
	}
}

// checkoutToken 优先读取 X-Checkout-Token，其次 Bearer 头
func checkoutToken(c *gin.Context) string {
	if token := strings.TrimSpace(c.GetHeader(checkoutTokenHeader)); token != "" {
		return token
	}
	parts := strings.SplitN(c.GetHeader("Authorization"), " ", 2)
	if len(parts) == 2 && parts[0] == "Bearer" {
		return strings.TrimSpace(parts[1])
	}
	return ""
}
