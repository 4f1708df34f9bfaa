package public

import (
	"strings"

	handlershared "github.com/mirrorchyan/storefront/internal/http/handlers/shared"
	"github.com/mirrorchyan/storefront/internal/http/response"
	"github.com/mirrorchyan/storefront/internal/i18n"
	"github.com/mirrorchyan/storefront/internal/service"

	"github.com/gin-gonic/gin"
)

// TransferRequest CDK 时长转移请求
type TransferRequest struct {
	From           string                              `json:"from" binding:"required"`
	To             string                              `json:"to" binding:"required"`
	CaptchaPayload handlershared.CaptchaPayloadRequest `json:"captcha_payload"`
}

// KeyCheckResponse 预检结果，附带本地化提示
type KeyCheckResponse struct {
	*service.KeyCheck
	Message string `json:"message,omitempty"`
}

// ShowKey 按爱发电订单号展示 CDK
func (h *Handler) ShowKey(c *gin.Context) {
	shown, err := h.KeyService.ShowKey(c.Request.Context(), c.Param("order_id"))
	if err != nil {
		respondKeyError(c, err, "key.lookup_failed")
		return
	}
	response.Success(c, shown)
}

// QueryKeyOrder 按关联单号查询发货结果
func (h *Handler) QueryKeyOrder(c *gin.Context) {
	result, err := h.KeyService.QueryOrder(c.Request.Context(), c.Query("custom_order_id"))
	if err != nil {
		respondKeyError(c, err, "key.lookup_failed")
		return
	}
	response.Success(c, result)
}

// CheckTransferSource 转出方预检
func (h *Handler) CheckTransferSource(c *gin.Context) {
	check, err := h.KeyService.CheckTransferSource(c.Request.Context(), c.Query("cdk"))
	if err != nil {
		respondKeyError(c, err, "key.lookup_failed")
		return
	}
	response.Success(c, localizeKeyCheck(c, check))
}

// CheckTransferTarget 转入方预检
func (h *Handler) CheckTransferTarget(c *gin.Context) {
	check, err := h.KeyService.CheckTransferTarget(c.Request.Context(), c.Query("cdk"))
	if err != nil {
		respondKeyError(c, err, "key.lookup_failed")
		return
	}
	response.Success(c, localizeKeyCheck(c, check))
}

// TransferKey 转移 CDK 剩余时长
func (h *Handler) TransferKey(c *gin.Context) {
	var req TransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", nil)
		return
	}
	if err := h.CaptchaService.Verify(req.CaptchaPayload.ToServicePayload()); err != nil {
		respondCaptchaError(c, err)
		return
	}
	if err := h.KeyService.Transfer(c.Request.Context(), req.From, req.To); err != nil {
		respondKeyError(c, err, "key.transfer_failed")
		return
	}
	response.SuccessWithMsg(c, i18n.T(requestLocale(c), "key.transfer_succeeded"), nil)
}

func localizeKeyCheck(c *gin.Context, check *service.KeyCheck) KeyCheckResponse {
	resp := KeyCheckResponse{KeyCheck: check}
	key := strings.TrimSpace(check.Reason)
	if key == "" {
		key = strings.TrimSpace(check.Notice)
	}
	if key != "" {
		resp.Message = i18n.T(requestLocale(c), key)
	}
	return resp
}
