package shared

import (
	"strings"

	"github.com/mirrorchyan/storefront/internal/http/response"

	"github.com/gin-gonic/gin"
)

// ContextKeyCheckoutSession 结账令牌中的会话 ID
const ContextKeyCheckoutSession = "checkout_session_id"

// CheckoutSessionID 校验路径中的会话 ID 与结账令牌一致。
func CheckoutSessionID(c *gin.Context) (string, bool) {
	value, exists := c.Get(ContextKeyCheckoutSession)
	if !exists {
		RespondError(c, response.CodeUnauthorized, "error.session_token_missing", nil)
		return "", false
	}
	sid, ok := value.(string)
	if !ok || sid == "" {
		RespondError(c, response.CodeUnauthorized, "error.session_token_invalid", nil)
		return "", false
	}
	if pathID := strings.TrimSpace(c.Param("id")); pathID != "" && pathID != sid {
		RespondError(c, response.CodeUnauthorized, "error.session_token_invalid", nil)
		return "", false
	}
	return sid, true
}
