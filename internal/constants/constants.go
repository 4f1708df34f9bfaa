package constants

// 支付方式常量（前台展示的支付选项）
const (
	PaymentMethodAlipay    = "alipay"
	PaymentMethodWechatPay = "wechatPay"
	PaymentMethodAfdian    = "afdian"
)

// 后端下单平台常量
const (
	PlatformAlipay = "alipay"
	PlatformWeixin = "weixin"
	PlatformAfdian = "afdian"
)

// 下单子类型
const (
	PayTypeH5 = "H5"
)

// 支付页打开方式
const (
	OpenStrategyRedirect = "redirect"
	OpenStrategyQRCode   = "qrcode"
	OpenStrategyHTML     = "html"
	OpenStrategyExternal = "external"
)

// 结账订单状态常量
const (
	CheckoutOrderStatusPending   = "pending"
	CheckoutOrderStatusFulfilled = "fulfilled"
	CheckoutOrderStatusTimedOut  = "timed_out"
	CheckoutOrderStatusClosed    = "closed"
)

// 结账会话状态常量
const (
	CheckoutSessionReady           = "ready"
	CheckoutSessionAwaitingPayment = "awaiting_payment"
	CheckoutSessionFulfilled       = "fulfilled"
)

// 队列名称
const QueueDefault = "default"

// 异步任务类型
const (
	TaskCheckoutExpire = "checkout:expire"
)

// LocaleZH 默认站点语言
const LocaleZH = "zh"

// 密钥相关常量
const (
	// LicenseKeyLength 正式 CDK 长度，其余长度视为奖励码
	LicenseKeyLength = 24
	// TransferSourceMaxAgeDays 转移来源 CDK 的最大创建天数
	TransferSourceMaxAgeDays = 3
)

// DefaultOrderSource 默认下单来源标记
const DefaultOrderSource = "mirrorchyan_web"
