package i18n

import (
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
	"golang.org/x/text/language"
)

const (
	LocaleZH      = "zh"
	LocaleEN      = "en"
	DefaultLocale = LocaleZH
)

var supportedTags = []language.Tag{
	language.Chinese,
	language.English,
}

var matcher = language.NewMatcher(supportedTags)

// ResolveLocale 解析请求语言：优先 lang 参数，其次 Accept-Language
func ResolveLocale(c *gin.Context) string {
	if c == nil {
		return DefaultLocale
	}
	if raw := strings.TrimSpace(c.Query("lang")); raw != "" {
		return NormalizeLocale(raw)
	}
	if c.Request == nil {
		return DefaultLocale
	}
	header := strings.TrimSpace(c.GetHeader("Accept-Language"))
	if header == "" {
		return DefaultLocale
	}
	tags, _, err := language.ParseAcceptLanguage(header)
	if err != nil || len(tags) == 0 {
		return DefaultLocale
	}
	return match(tags...)
}

// NormalizeLocale 将任意语言标签归一到站点支持的语言
func NormalizeLocale(raw string) string {
	tag, err := language.Parse(strings.TrimSpace(raw))
	if err != nil {
		return DefaultLocale
	}
	return match(tag)
}

// T 获取翻译文本，缺失时依次回退到默认语言与 key 本身
func T(locale, key string) string {
	if msgs, ok := catalog[locale]; ok {
		if msg, ok := msgs[key]; ok {
			return msg
		}
	}
	if msg, ok := catalog[DefaultLocale][key]; ok {
		return msg
	}
	return key
}

// Sprintf 获取带参数的翻译文本
func Sprintf(locale, key string, args ...interface{}) string {
	return fmt.Sprintf(T(locale, key), args...)
}

func match(tags ...language.Tag) string {
	_, index, confidence := matcher.Match(tags...)
	if confidence == language.No {
		return DefaultLocale
	}
	if index == 1 {
		return LocaleEN
	}
	return LocaleZH
}
