package public

import (
	"errors"

	"github.com/mirrorchyan/storefront/internal/billing"
	"github.com/mirrorchyan/storefront/internal/checkout"
	"github.com/mirrorchyan/storefront/internal/http/response"
	"github.com/mirrorchyan/storefront/internal/service"

	"github.com/gin-gonic/gin"
)

// mappedHandlerError 定义业务错误到接口错误响应的映射关系。
type mappedHandlerError struct {
	target error
	code   int
	key    string
}

func respondWithMappedError(c *gin.Context, err error, rules []mappedHandlerError, fallbackCode int, fallbackKey string) {
	for _, rule := range rules {
		if errors.Is(err, rule.target) {
			respondError(c, rule.code, rule.key, nil)
			return
		}
	}
	respondError(c, fallbackCode, fallbackKey, err)
}

func concatMappedHandlerErrors(groups ...[]mappedHandlerError) []mappedHandlerError {
	total := 0
	for _, group := range groups {
		total += len(group)
	}
	result := make([]mappedHandlerError, 0, total)
	for _, group := range groups {
		result = append(result, group...)
	}
	return result
}

var checkoutSessionErrorRules = []mappedHandlerError{
	{target: checkout.ErrSessionNotFound, code: response.CodeNotFound, key: "error.session_not_found"},
	{target: checkout.ErrPlanUnavailable, code: response.CodeNotFound, key: "plan.invalid"},
	{target: checkout.ErrMethodInvalid, code: response.CodeBadRequest, key: "checkout.method_invalid"},
	{target: checkout.ErrMethodUnavailable, code: response.CodeBadRequest, key: "checkout.method_unavailable"},
}

var checkoutPayExtraErrorRules = []mappedHandlerError{
	{target: checkout.ErrPaymentInProgress, code: response.CodeConflict, key: "checkout.payment_in_progress"},
	{target: checkout.ErrCorrelationReused, code: response.CodeConflict, key: "checkout.create_order_failed"},
	{target: checkout.ErrPaymentTargetMissing, code: response.CodeBadGateway, key: "checkout.create_order_failed"},
	{target: billing.ErrRequestFailed, code: response.CodeBadGateway, key: "checkout.create_order_failed"},
	{target: billing.ErrResponseInvalid, code: response.CodeBadGateway, key: "checkout.create_order_failed"},
}

var checkoutPaymentViewErrorRules = []mappedHandlerError{
	{target: checkout.ErrNoActivePayment, code: response.CodeNotFound, key: "checkout.payment_not_started"},
}

var catalogErrorRules = []mappedHandlerError{
	{target: service.ErrPlanNotFound, code: response.CodeNotFound, key: "plan.invalid"},
	{target: service.ErrCatalogUnavailable, code: response.CodeBadGateway, key: "catalog.fetch_failed"},
}

var keyErrorRules = []mappedHandlerError{
	{target: service.ErrKeyRequired, code: response.CodeBadRequest, key: "error.bad_request"},
	{target: service.ErrOrderNotFound, code: response.CodeNotFound, key: "key.order_not_found"},
	{target: service.ErrTransferSameKey, code: response.CodeBadRequest, key: "key.transfer_same_key"},
}

var captchaErrorRules = []mappedHandlerError{
	{target: service.ErrCaptchaRequired, code: response.CodeBadRequest, key: "error.captcha_required"},
	{target: service.ErrCaptchaInvalid, code: response.CodeBadRequest, key: "error.captcha_invalid"},
	{target: service.ErrCaptchaUnavailable, code: response.CodeBadRequest, key: "error.captcha_unavailable"},
}

var dashboardErrorRules = []mappedHandlerError{
	{target: service.ErrRevenueUnauthorized, code: response.CodeUnauthorized, key: "dashboard.unauthorized"},
	{target: service.ErrRevenueQueryInvalid, code: response.CodeBadRequest, key: "dashboard.query_invalid"},
	{target: service.ErrRevenueFetchFailed, code: response.CodeBadGateway, key: "dashboard.fetch_failed"},
}

func respondCheckoutSessionError(c *gin.Context, err error) {
	respondWithMappedError(c, err, checkoutSessionErrorRules, response.CodeInternal, "error.internal")
}

func respondCheckoutPaymentViewError(c *gin.Context, err error) {
	respondWithMappedError(c, err, concatMappedHandlerErrors(checkoutSessionErrorRules, checkoutPaymentViewErrorRules), response.CodeInternal, "error.internal")
}

// respondCheckoutPayError 风险提示与续费拒绝需要带回数据，后端业务错误原样透出提示
func respondCheckoutPayError(c *gin.Context, err error) {
	var hazard *checkout.HazardError
	if errors.As(err, &hazard) {
		respondErrorWithData(c, response.CodeForbidden, "checkout.in_app_warning", gin.H{
			"alternatives": hazard.Alternatives,
		}, nil)
		return
	}
	var renewal *checkout.RenewalError
	if errors.As(err, &renewal) {
		key := renewal.Verdict.MessageKey
		if key == "" {
			key = "checkout.cdk_invalid"
		}
		respondErrorWithData(c, response.CodeBadRequest, key, gin.H{
			"renewal": renewal.Verdict,
		}, nil)
		return
	}
	var bizErr *billing.BusinessError
	if errors.As(err, &bizErr) {
		respondErrorWithData(c, response.CodeBadGateway, "checkout.create_order_failed", gin.H{
			"backend_code": bizErr.Code,
			"backend_msg":  bizErr.Msg,
		}, nil)
		return
	}
	respondWithMappedError(c, err, concatMappedHandlerErrors(checkoutSessionErrorRules, checkoutPayExtraErrorRules), response.CodeInternal, "checkout.create_order_failed")
}

func respondCatalogError(c *gin.Context, err error) {
	respondWithMappedError(c, err, catalogErrorRules, response.CodeInternal, "catalog.unavailable")
}

// respondKeyError 查询与转移失败时带回后端提示
func respondKeyError(c *gin.Context, err error, fallbackKey string) {
	if msg := service.BackendMessage(err); msg != "" {
		respondErrorWithData(c, response.CodeBadRequest, fallbackKey, gin.H{"backend_msg": msg}, nil)
		return
	}
	respondWithMappedError(c, err, keyErrorRules, response.CodeBadGateway, fallbackKey)
}

func respondCaptchaError(c *gin.Context, err error) {
	respondWithMappedError(c, err, captchaErrorRules, response.CodeInternal, "error.captcha_generate_failed")
}

func respondDashboardError(c *gin.Context, err error) {
	respondWithMappedError(c, err, dashboardErrorRules, response.CodeInternal, "dashboard.fetch_failed")
}
