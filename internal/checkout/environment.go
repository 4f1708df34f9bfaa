package checkout

import "strings"

// 应用内浏览器特征，匹配小写 UA
var inAppSignatures = []struct {
	name  string
	token string
}{
	{"wechat", "micromessenger"},
	{"qq", " qq/"},
	{"weibo", "weibo"},
	{"douyin", "aweme"},
	{"tiktok", "musical_ly"},
	{"bytedance", "bytedancewebview"},
	{"toutiao", "newsarticle"},
	{"kuaishou", "kwai"},
	{"alipay", "alipayclient"},
	{"dingtalk", "dingtalk"},
	{"xiaohongshu", "xhsdiscover"},
	{"bilibili", "bilibili"},
	{"facebook", "fban/"},
	{"facebook", "fbav/"},
	{"instagram", "instagram"},
	{"line", " line/"},
}

var mobileSignatures = []string{
	"mobile",
	"android",
	"iphone",
	"ipad",
	"ipod",
	"harmonyos",
	"windows phone",
}

// 非 Safari 内核的 iOS 浏览器标识
var nonSafariIOSSignatures = []string{
	"crios",
	"fxios",
	"edgios",
	"opios",
	"chrome",
	"chromium",
	"android",
}

// Environment 浏览器环境分类结果
type Environment struct {
	Mobile         bool   `json:"mobile"`
	InApp          bool   `json:"in_app"`
	InAppName      string `json:"in_app_name,omitempty"`
	QRCodeRequired bool   `json:"qrcode_required"`
}

// DetectEnvironment 根据 UA 分类浏览器环境
func DetectEnvironment(userAgent string) Environment {
	name, inApp := inAppBrowserName(userAgent)
	return Environment{
		Mobile:         IsMobile(userAgent),
		InApp:          inApp,
		InAppName:      name,
		QRCodeRequired: IsQRCodeRequiredBrowser(userAgent),
	}
}

// WithTouch 使用前端上报的触屏信号覆盖 UA 判断（iPadOS 会伪装为桌面 UA）
func (e Environment) WithTouch(touch *bool) Environment {
	if touch != nil {
		e.Mobile = *touch
	}
	return e
}

// CanTryH5 移动端且非二维码强制环境时尝试 H5 跳转
func (e Environment) CanTryH5() bool {
	return e.Mobile && !e.QRCodeRequired
}

// HazardFor 移动端应用内浏览器中支付宝支付会静默失败
func (e Environment) HazardFor(m Method) bool {
	return e.Mobile && e.InApp && m == MethodAlipay
}

// IsInAppBrowser 判断是否为应用内嵌浏览器
func IsInAppBrowser(userAgent string) bool {
	_, ok := inAppBrowserName(userAgent)
	return ok
}

// IsQRCodeRequiredBrowser 苹果设备上的 Safari 会吞掉支付跳转，只能展示二维码
func IsQRCodeRequiredBrowser(userAgent string) bool {
	ua := strings.ToLower(userAgent)
	if !strings.Contains(ua, "safari") || !strings.Contains(ua, "version/") {
		return false
	}
	if !containsAny(ua, "iphone", "ipad", "ipod", "macintosh") {
		return false
	}
	if containsAny(ua, nonSafariIOSSignatures...) {
		return false
	}
	return !IsInAppBrowser(userAgent)
}

// IsMobile 判断是否为移动设备
func IsMobile(userAgent string) bool {
	return containsAny(strings.ToLower(userAgent), mobileSignatures...)
}

func inAppBrowserName(userAgent string) (string, bool) {
	ua := strings.ToLower(userAgent)
	if ua == "" {
		return "", false
	}
	for _, sig := range inAppSignatures {
		if strings.Contains(ua, sig.token) {
			return sig.name, true
		}
	}
	return "", false
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
