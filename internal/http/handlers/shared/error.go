package shared

import (
	"github.com/mirrorchyan/storefront/internal/http/response"
	"github.com/mirrorchyan/storefront/internal/i18n"
	"github.com/mirrorchyan/storefront/internal/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RequestLog 提供携带 request_id 的日志实例。
func RequestLog(c *gin.Context) *zap.SugaredLogger {
	if c == nil {
		return logger.S()
	}
	if requestID, ok := c.Get(response.RequestIDKey); ok {
		if id, ok := requestID.(string); ok && id != "" {
			return logger.SW(response.RequestIDKey, id)
		}
	}
	return logger.S()
}

// RespondError 返回国际化错误响应，并在有原始错误时记录日志。
func RespondError(c *gin.Context, code int, key string, err error) {
	RespondErrorWithData(c, code, key, nil, err)
}

// RespondErrorWithData 返回国际化错误响应并附带数据，例如替代支付方案。
// 5xx 记为 error，其余只记 warn。
func RespondErrorWithData(c *gin.Context, code int, key string, data gin.H, err error) {
	if err != nil {
		log := RequestLog(c)
		if code >= response.CodeInternal {
			log.Errorw("handler_error", "code", code, "key", key, "error", err)
		} else {
			log.Warnw("handler_error", "code", code, "key", key, "error", err)
		}
	}
	response.ErrorWithData(c, code, i18n.T(i18n.ResolveLocale(c), key), data)
}
