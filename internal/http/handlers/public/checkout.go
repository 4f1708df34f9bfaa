package public

import (
	"strings"
	"time"

	"github.com/mirrorchyan/storefront/internal/checkout"
	"github.com/mirrorchyan/storefront/internal/http/response"

	"github.com/gin-gonic/gin"
)

// CreateCheckoutSessionRequest 创建结账会话请求
type CreateCheckoutSessionRequest struct {
	PlanID     string `json:"plan_id" binding:"required"`
	Source     string `json:"source"`
	Method     string `json:"method"`
	Touch      *bool  `json:"touch"`
	RenewalCDK string `json:"renewal_cdk"`
}

// SelectMethodRequest 切换支付方式请求
type SelectMethodRequest struct {
	Method string `json:"method" binding:"required"`
}

// RenewalRequest 续费 CDK 输入
type RenewalRequest struct {
	CDK string `json:"cdk"`
}

// PayRequest 发起支付请求
type PayRequest struct {
	AcknowledgeInApp bool    `json:"acknowledge_in_app"`
	RenewalCDK       *string `json:"renewal_cdk"`
}

// CheckoutSessionResponse 会话与结账令牌
type CheckoutSessionResponse struct {
	Session   checkout.SessionView `json:"session"`
	Token     string               `json:"token"`
	ExpiresAt time.Time            `json:"expires_at"`
}

// CreateCheckoutSession 打开结账页，创建会话并签发令牌
func (h *Handler) CreateCheckoutSession(c *gin.Context) {
	var req CreateCheckoutSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", nil)
		return
	}
	ctx := c.Request.Context()
	locale := requestLocale(c)
	session, err := h.CheckoutManager.Create(ctx, checkout.CreateSessionInput{
		PlanID:     strings.TrimSpace(req.PlanID),
		Locale:     locale,
		Source:     req.Source,
		UserAgent:  c.Request.UserAgent(),
		Touch:      req.Touch,
		Method:     req.Method,
		RenewalCDK: req.RenewalCDK,
		Price:      h.CatalogService.PriceContext(ctx, locale),
	})
	if err != nil {
		respondCheckoutSessionError(c, err)
		return
	}
	token, expiresAt, err := h.TokenIssuer.Issue(session.ID)
	if err != nil {
		_ = h.CheckoutManager.Close(session.ID)
		respondError(c, response.CodeInternal, "error.internal", err)
		return
	}
	response.Success(c, CheckoutSessionResponse{
		Session:   session.View(),
		Token:     token,
		ExpiresAt: expiresAt,
	})
}

// GetCheckoutSession 获取会话当前状态，前端据此轮询订单结果
func (h *Handler) GetCheckoutSession(c *gin.Context) {
	sid, ok := checkoutSessionID(c)
	if !ok {
		return
	}
	session, err := h.CheckoutManager.Get(sid)
	if err != nil {
		respondCheckoutSessionError(c, err)
		return
	}
	response.Success(c, session.View())
}

// SelectCheckoutMethod 切换支付方式
func (h *Handler) SelectCheckoutMethod(c *gin.Context) {
	sid, ok := checkoutSessionID(c)
	if !ok {
		return
	}
	var req SelectMethodRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", nil)
		return
	}
	session, err := h.CheckoutManager.SelectMethod(sid, req.Method)
	if err != nil {
		respondCheckoutSessionError(c, err)
		return
	}
	response.Success(c, session.View())
}

// ObserveRenewal 续费输入变化，去抖后在后台校验
func (h *Handler) ObserveRenewal(c *gin.Context) {
	sid, ok := checkoutSessionID(c)
	if !ok {
		return
	}
	var req RenewalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", nil)
		return
	}
	session, err := h.CheckoutManager.ObserveRenewal(sid, req.CDK)
	if err != nil {
		respondCheckoutSessionError(c, err)
		return
	}
	response.Success(c, session.View())
}

// ValidateRenewal 立即校验续费 CDK
func (h *Handler) ValidateRenewal(c *gin.Context) {
	sid, ok := checkoutSessionID(c)
	if !ok {
		return
	}
	var req RenewalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", nil)
		return
	}
	verdict, err := h.CheckoutManager.ValidateRenewal(c.Request.Context(), sid, req.CDK)
	if err != nil {
		respondCheckoutSessionError(c, err)
		return
	}
	response.Success(c, verdict)
}

// PayCheckoutSession 发起支付
func (h *Handler) PayCheckoutSession(c *gin.Context) {
	sid, ok := checkoutSessionID(c)
	if !ok {
		return
	}
	var req PayRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, response.CodeBadRequest, "error.bad_request", nil)
			return
		}
	}
	payment, err := h.CheckoutManager.Pay(c.Request.Context(), sid, checkout.PayOptions{
		AcknowledgeInApp: req.AcknowledgeInApp,
		RenewalCDK:       req.RenewalCDK,
	})
	if err != nil {
		respondCheckoutPayError(c, err)
		return
	}
	response.Success(c, payment)
}

// CloseCheckoutPayment 关闭支付弹窗，停止轮询
func (h *Handler) CloseCheckoutPayment(c *gin.Context) {
	sid, ok := checkoutSessionID(c)
	if !ok {
		return
	}
	session, err := h.CheckoutManager.ClosePayment(sid)
	if err != nil {
		respondCheckoutSessionError(c, err)
		return
	}
	response.Success(c, session.View())
}

// DeleteCheckoutSession 离开结账页
func (h *Handler) DeleteCheckoutSession(c *gin.Context) {
	sid, ok := checkoutSessionID(c)
	if !ok {
		return
	}
	if err := h.CheckoutManager.Close(sid); err != nil {
		respondCheckoutSessionError(c, err)
		return
	}
	response.Success(c, nil)
}
