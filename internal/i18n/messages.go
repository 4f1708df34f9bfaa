package i18n

var catalog = map[string]map[string]string{
	LocaleZH: {
		"error.bad_request":             "请求参数错误",
		"error.internal":                "服务器内部错误",
		"error.not_found":               "资源不存在",
		"error.backend_unavailable":     "服务暂时不可用，请稍后重试",
		"error.rate_limited":            "操作过于频繁，请 %d 秒后再试",
		"error.rate_limit_unavailable":  "限流服务不可用",
		"error.session_token_missing":   "缺少结账凭证",
		"error.session_token_invalid":   "结账凭证无效或已过期",
		"error.session_not_found":       "结账会话不存在或已结束",
		"error.captcha_required":        "请输入验证码",
		"error.captcha_invalid":         "验证码错误",
		"error.captcha_unavailable":     "验证码服务不可用",
		"error.captcha_generate_failed": "验证码生成失败",

		"plan.invalid":         "订单信息无效，请返回重新选择套餐",
		"plan.fetch_failed":    "获取套餐信息失败",
		"catalog.fetch_failed": "获取套餐列表失败",
		"catalog.unavailable":  "暂时无法获取数据，请稍后重试",

		"checkout.method_invalid":      "不支持的支付方式",
		"checkout.method_unavailable":  "该套餐不支持此支付方式",
		"checkout.create_order_failed": "创建订单失败，请重试",
		"checkout.payment_in_progress": "订单正在创建中，请勿重复提交",
		"checkout.in_app_warning":      "当前在应用内浏览器中，支付宝支付可能无法完成，请切换支付方式或复制链接到浏览器打开",
		"checkout.cdk_invalid":         "CDK 不存在，请检查后重试",
		"checkout.cdk_check_error":     "CDK 校验失败，请稍后重试",
		"checkout.cdk_malformed":       "CDK 格式不正确",
		"checkout.polling_warning":     "查询订单状态失败，正在重试",
		"checkout.timed_out":           "支付等待超时，请重新发起支付",
		"checkout.qrcode_unavailable":  "当前没有可用的支付二维码",
		"checkout.payment_not_started": "尚未发起支付",

		"key.order_not_found":     "订单不存在",
		"key.lookup_failed":       "查询失败，请稍后重试",
		"key.cdk_expired":         "CDK 已过期",
		"key.cdk_too_old":         "CDK 创建已超过 3 天，无法转移",
		"key.cdk_not_found":       "CDK 不存在",
		"key.reward_used_up":      "奖励码已被使用完",
		"key.reward_not_started":  "奖励码尚未生效",
		"key.reward_expired":      "奖励码已过期",
		"key.reward_fill_in_left": "奖励码请填写在左侧",
		"key.transfer_same_key":   "转出与转入 CDK 不能相同",
		"key.transfer_failed":     "转移失败",
		"key.target_expired":      "目标 CDK 已过期，转移后将从当前时间起算",
		"key.transfer_succeeded":  "转移成功",

		"dashboard.unauthorized":  "登录已失效，请重新登录",
		"dashboard.query_invalid": "请填写应用 ID 与月份",
		"dashboard.fetch_failed":  "获取收入数据失败",
	},
	LocaleEN: {
		"error.bad_request":             "Invalid request parameters",
		"error.internal":                "Internal server error",
		"error.not_found":               "Resource not found",
		"error.backend_unavailable":     "Service temporarily unavailable, please retry later",
		"error.rate_limited":            "Too many requests, please retry in %d seconds",
		"error.rate_limit_unavailable":  "Rate limiter unavailable",
		"error.session_token_missing":   "Missing checkout token",
		"error.session_token_invalid":   "Checkout token is invalid or expired",
		"error.session_not_found":       "Checkout session not found or already closed",
		"error.captcha_required":        "Captcha is required",
		"error.captcha_invalid":         "Captcha is incorrect",
		"error.captcha_unavailable":     "Captcha is unavailable",
		"error.captcha_generate_failed": "Failed to generate captcha",

		"plan.invalid":         "Invalid order, please choose a plan again",
		"plan.fetch_failed":    "Failed to load plan",
		"catalog.fetch_failed": "Failed to load plans",
		"catalog.unavailable":  "Data is temporarily unavailable, please retry later",

		"checkout.method_invalid":      "Unsupported payment method",
		"checkout.method_unavailable":  "This plan does not support the selected payment method",
		"checkout.create_order_failed": "Failed to create order, please retry",
		"checkout.payment_in_progress": "Order is being created, please do not resubmit",
		"checkout.in_app_warning":      "You are inside an in-app browser where Alipay may fail. Switch the payment method or open the link in a browser",
		"checkout.cdk_invalid":         "CDK not found, please check and retry",
		"checkout.cdk_check_error":     "Failed to verify CDK, please retry later",
		"checkout.cdk_malformed":       "CDK format is invalid",
		"checkout.polling_warning":     "Failed to query order status, retrying",
		"checkout.timed_out":           "Payment timed out, please start again",
		"checkout.qrcode_unavailable":  "No payment QR code available",
		"checkout.payment_not_started": "Payment has not been started",

		"key.order_not_found":     "Order not found",
		"key.lookup_failed":       "Lookup failed, please retry later",
		"key.cdk_expired":         "CDK has expired",
		"key.cdk_too_old":         "CDK was created more than 3 days ago and cannot be transferred",
		"key.cdk_not_found":       "CDK not found",
		"key.reward_used_up":      "Reward key has been used up",
		"key.reward_not_started":  "Reward key is not active yet",
		"key.reward_expired":      "Reward key has expired",
		"key.reward_fill_in_left": "Please fill the reward key in the left box",
		"key.transfer_same_key":   "Source and target CDK must differ",
		"key.transfer_failed":     "Transfer failed",
		"key.target_expired":      "Target CDK has expired, the transferred time starts from now",
		"key.transfer_succeeded":  "Transfer succeeded",

		"dashboard.unauthorized":  "Session expired, please log in again",
		"dashboard.query_invalid": "Application id and month are required",
		"dashboard.fetch_failed":  "Failed to load revenue",
	},
}
