package public

import (
	handlershared "github.com/mirrorchyan/storefront/internal/http/handlers/shared"
	"github.com/mirrorchyan/storefront/internal/i18n"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func requestLog(c *gin.Context) *zap.SugaredLogger {
	return handlershared.RequestLog(c)
}

func respondError(c *gin.Context, code int, key string, err error) {
	handlershared.RespondError(c, code, key, err)
}

func respondErrorWithData(c *gin.Context, code int, key string, data gin.H, err error) {
	handlershared.RespondErrorWithData(c, code, key, data, err)
}

func checkoutSessionID(c *gin.Context) (string, bool) {
	return handlershared.CheckoutSessionID(c)
}

func requestLocale(c *gin.Context) string {
	return i18n.ResolveLocale(c)
}
