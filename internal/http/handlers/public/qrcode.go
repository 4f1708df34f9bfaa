package public

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/mirrorchyan/storefront/internal/http/response"

	"github.com/gin-gonic/gin"
	qrcode "github.com/skip2/go-qrcode"
)

const (
	qrcodeDefaultSize = 256
	qrcodeMinSize     = 128
	qrcodeMaxSize     = 1024
)

// GetCheckoutQRCode 将当前支付链接渲染为二维码 PNG
func (h *Handler) GetCheckoutQRCode(c *gin.Context) {
	sid, ok := checkoutSessionID(c)
	if !ok {
		return
	}
	payment, err := h.CheckoutManager.ActivePayment(sid)
	if err != nil {
		respondCheckoutPaymentViewError(c, err)
		return
	}
	if strings.TrimSpace(payment.PayURL) == "" {
		respondError(c, response.CodeBadRequest, "checkout.qrcode_unavailable", nil)
		return
	}
	png, err := qrcode.Encode(payment.PayURL, qrcode.Medium, qrcodeSize(c.Query("size")))
	if err != nil {
		respondError(c, response.CodeInternal, "checkout.qrcode_unavailable", err)
		return
	}
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, "image/png", png)
}

func qrcodeSize(raw string) int {
	size, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || size <= 0 {
		return qrcodeDefaultSize
	}
	if size < qrcodeMinSize {
		return qrcodeMinSize
	}
	if size > qrcodeMaxSize {
		return qrcodeMaxSize
	}
	return size
}
