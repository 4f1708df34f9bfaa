package service

import "errors"

var (
	ErrPlanNotFound        = errors.New("plan not found")
	ErrCatalogUnavailable  = errors.New("catalog unavailable")
	ErrKeyRequired         = errors.New("key required")
	ErrOrderNotFound       = errors.New("order not found")
	ErrKeyLookupFailed     = errors.New("key lookup failed")
	ErrTransferSameKey     = errors.New("transfer source and target are identical")
	ErrTransferFailed      = errors.New("key transfer failed")
	ErrRevenueUnauthorized = errors.New("revenue query unauthorized")
	ErrRevenueQueryInvalid = errors.New("revenue query invalid")
	ErrRevenueFetchFailed  = errors.New("revenue fetch failed")
	ErrCaptchaRequired     = errors.New("captcha required")
	ErrCaptchaInvalid      = errors.New("captcha invalid")
	ErrCaptchaUnavailable  = errors.New("captcha unavailable")
)
