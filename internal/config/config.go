package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/mirrorchyan/storefront/internal/logger"

	"github.com/spf13/viper"
)

// Config 应用配置结构
type Config struct {
	Server   ServerConfig            `mapstructure:"server"`
	Log      LogConfig               `mapstructure:"log"`
	Database DatabaseConfig          `mapstructure:"database"`
	Redis    RedisConfig             `mapstructure:"redis"`
	Queue    QueueConfig             `mapstructure:"queue"`
	CORS     CORSConfig              `mapstructure:"cors"`
	Billing  BillingConfig           `mapstructure:"billing"`
	Checkout CheckoutConfig          `mapstructure:"checkout"`
	Catalog  CatalogConfig           `mapstructure:"catalog"`
	Locales  map[string]LocaleConfig `mapstructure:"locales"`
	Security SecurityConfig          `mapstructure:"security"`
	Captcha  CaptchaConfig           `mapstructure:"captcha"`
	Metrics  MetricsConfig           `mapstructure:"metrics"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port string `mapstructure:"port"`
	Mode string `mapstructure:"mode"` // debug / release

	ReadHeaderTimeoutSeconds int `mapstructure:"read_header_timeout_seconds"`
	WriteTimeoutSeconds      int `mapstructure:"write_timeout_seconds"`
	IdleTimeoutSeconds       int `mapstructure:"idle_timeout_seconds"`
}

// Addr 监听地址
func (s ServerConfig) Addr() string {
	return s.Host + ":" + s.Port
}

// LogConfig 日志配置
type LogConfig struct {
	Dir        string `mapstructure:"dir"`
	Filename   string `mapstructure:"filename"`
	Level      string `mapstructure:"level"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

// ToLoggerOptions 转换为 logger 配置
func (c LogConfig) ToLoggerOptions() logger.Options {
	return logger.Options{
		Dir:        c.Dir,
		Filename:   c.Filename,
		Level:      c.Level,
		MaxSizeMB:  c.MaxSizeMB,
		MaxBackups: c.MaxBackups,
		MaxAgeDays: c.MaxAgeDays,
		Compress:   c.Compress,
	}
}

// DatabasePoolConfig 数据库连接池配置
type DatabasePoolConfig struct {
	MaxOpenConns           int `mapstructure:"max_open_conns"`
	MaxIdleConns           int `mapstructure:"max_idle_conns"`
	ConnMaxLifetimeSeconds int `mapstructure:"conn_max_lifetime_seconds"`
	ConnMaxIdleTimeSeconds int `mapstructure:"conn_max_idle_time_seconds"`
}

// DatabaseConfig 数据库配置（仅保存结账流水，不保存明文 CDK）
type DatabaseConfig struct {
	Driver string             `mapstructure:"driver"` // sqlite / postgres
	DSN    string             `mapstructure:"dsn"`
	Pool   DatabasePoolConfig `mapstructure:"pool"`
}

// RedisConfig Redis 配置
type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

// QueueConfig 异步队列配置
type QueueConfig struct {
	Enabled     bool           `mapstructure:"enabled"`
	Host        string         `mapstructure:"host"`
	Port        int            `mapstructure:"port"`
	Password    string         `mapstructure:"password"`
	DB          int            `mapstructure:"db"`
	Concurrency int            `mapstructure:"concurrency"`
	Queues      map[string]int `mapstructure:"queues"`
}

// CORSConfig 跨域配置
type CORSConfig struct {
	AllowedOrigins   []string `mapstructure:"allowed_origins"`
	AllowedMethods   []string `mapstructure:"allowed_methods"`
	AllowedHeaders   []string `mapstructure:"allowed_headers"`
	AllowCredentials bool     `mapstructure:"allow_credentials"`
	MaxAge           int      `mapstructure:"max_age"`
}

// BillingConfig 计费后端配置
type BillingConfig struct {
	BaseURL   string `mapstructure:"base_url"`
	TimeoutMS int    `mapstructure:"timeout_ms"`
	UserAgent string `mapstructure:"user_agent"`
	Source    string `mapstructure:"source"`
}

// Timeout 请求超时
func (c BillingConfig) Timeout() time.Duration {
	return millis(c.TimeoutMS, 10*time.Second)
}

// CheckoutConfig 结账流程配置
type CheckoutConfig struct {
	PollInitialDelayMS  int    `mapstructure:"poll_initial_delay_ms"`
	PollIntervalMS      int    `mapstructure:"poll_interval_ms"`
	MaxWaitMinutes      int    `mapstructure:"max_wait_minutes"`
	RenewalDebounceMS   int    `mapstructure:"renewal_debounce_ms"`
	SessionIdleMinutes  int    `mapstructure:"session_idle_minutes"`
	SessionSweepSeconds int    `mapstructure:"session_sweep_seconds"`
	LedgerSweepSpec     string `mapstructure:"ledger_sweep_spec"`
	PlanCacheTTLSeconds int    `mapstructure:"plan_cache_ttl_seconds"`
	PlanCacheSizeMB     int    `mapstructure:"plan_cache_size_mb"`
	AfdianOrderURL      string `mapstructure:"afdian_order_url"`
	PublicBaseURL       string `mapstructure:"public_base_url"`
}

// PollInitialDelay 首次查单延迟
func (c CheckoutConfig) PollInitialDelay() time.Duration {
	return millis(c.PollInitialDelayMS, 1200*time.Millisecond)
}

// PollInterval 查单间隔
func (c CheckoutConfig) PollInterval() time.Duration {
	return millis(c.PollIntervalMS, 1500*time.Millisecond)
}

// MaxWait 等待支付的最长时间
func (c CheckoutConfig) MaxWait() time.Duration {
	if c.MaxWaitMinutes <= 0 {
		return 40 * time.Minute
	}
	return time.Duration(c.MaxWaitMinutes) * time.Minute
}

// RenewalDebounce 续费 CDK 输入防抖时间
func (c CheckoutConfig) RenewalDebounce() time.Duration {
	return millis(c.RenewalDebounceMS, 1500*time.Millisecond)
}

// SessionIdle 会话空闲回收时间
func (c CheckoutConfig) SessionIdle() time.Duration {
	if c.SessionIdleMinutes <= 0 {
		return time.Hour
	}
	return time.Duration(c.SessionIdleMinutes) * time.Minute
}

// SessionSweep 会话回收扫描间隔
func (c CheckoutConfig) SessionSweep() time.Duration {
	if c.SessionSweepSeconds <= 0 {
		return time.Minute
	}
	return time.Duration(c.SessionSweepSeconds) * time.Second
}

// PlanCacheTTL 套餐缓存时间
func (c CheckoutConfig) PlanCacheTTL() time.Duration {
	if c.PlanCacheTTLSeconds <= 0 {
		return 10 * time.Minute
	}
	return time.Duration(c.PlanCacheTTLSeconds) * time.Second
}

// CatalogConfig 首页目录配置
type CatalogConfig struct {
	MostPopularPlanID      string   `mapstructure:"most_popular_plan_id"`
	AnnouncementTTLSeconds int      `mapstructure:"announcement_ttl_seconds"`
	RateTTLSeconds         int      `mapstructure:"rate_ttl_seconds"`
	ProjectTTLSeconds      int      `mapstructure:"project_ttl_seconds"`
	WarmupSpec             string   `mapstructure:"warmup_spec"`
	WarmupTypeIDs          []string `mapstructure:"warmup_type_ids"`
	ContactFallbackURL     string   `mapstructure:"contact_fallback_url"`
}

// LocaleConfig 站点语言对应的币种展示
type LocaleConfig struct {
	Currency string `mapstructure:"currency"`
	Symbol   string `mapstructure:"symbol"`
	Decimals int32  `mapstructure:"decimals"`
	UseRate  bool   `mapstructure:"use_rate"`
}

// SecurityConfig 安全配置
type SecurityConfig struct {
	SessionToken      SessionTokenConfig `mapstructure:"session_token"`
	PayRateLimit      RateLimitConfig    `mapstructure:"pay_rate_limit"`
	TransferRateLimit RateLimitConfig    `mapstructure:"transfer_rate_limit"`
}

// SessionTokenConfig 结账会话令牌配置
type SessionTokenConfig struct {
	Secret        string `mapstructure:"secret"`
	ExpireMinutes int    `mapstructure:"expire_minutes"`
}

// RateLimitConfig 限流配置
type RateLimitConfig struct {
	WindowSeconds int `mapstructure:"window_seconds"`
	MaxRequests   int `mapstructure:"max_requests"`
}

// CaptchaConfig 图片验证码配置
type CaptchaConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	Length        int  `mapstructure:"length"`
	Width         int  `mapstructure:"width"`
	Height        int  `mapstructure:"height"`
	NoiseCount    int  `mapstructure:"noise_count"`
	ShowLine      int  `mapstructure:"show_line"`
	ExpireSeconds int  `mapstructure:"expire_seconds"`
	MaxStore      int  `mapstructure:"max_store"`
}

// MetricsConfig 监控配置
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// Locale 获取语言配置，未配置时回退到中文
func (c *Config) Locale(name string) LocaleConfig {
	if c != nil {
		if lc, ok := c.Locales[strings.ToLower(strings.TrimSpace(name))]; ok {
			return lc
		}
		if lc, ok := c.Locales["zh"]; ok {
			return lc
		}
	}
	return LocaleConfig{Currency: "CNY", Symbol: "¥", Decimals: 2}
}

// Load 从 config.yml 加载配置
func Load() *Config {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("../")   // 从 cmd/server 运行
	viper.AddConfigPath("./etc") // etc 文件夹

	setDefaults()

	// 环境变量支持（billing.base_url -> BILLING_BASE_URL）
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err != nil {
		logger.Warnw("config_file_read_failed",
			"error", err,
			"fallback", "env_or_defaults",
		)
	} else {
		logger.Infow("config_file_loaded", "file", viper.ConfigFileUsed())
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		logger.Errorw("config_unmarshal_failed", "error", err)
		panic(fmt.Errorf("配置解析失败: %w", err))
	}

	return &cfg
}

func setDefaults() {
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", "8080")
	viper.SetDefault("server.mode", "debug")
	viper.SetDefault("server.read_header_timeout_seconds", 10)
	viper.SetDefault("server.write_timeout_seconds", 30)
	viper.SetDefault("server.idle_timeout_seconds", 120)
	viper.SetDefault("log.dir", "")
	viper.SetDefault("log.filename", "storefront.log")
	viper.SetDefault("log.level", "")
	viper.SetDefault("log.max_size_mb", 100)
	viper.SetDefault("log.max_backups", 7)
	viper.SetDefault("log.max_age_days", 30)
	viper.SetDefault("log.compress", true)
	viper.SetDefault("database.driver", "sqlite")
	viper.SetDefault("database.dsn", "./db/storefront.db")
	viper.SetDefault("database.pool.max_open_conns", 1)
	viper.SetDefault("database.pool.max_idle_conns", 1)
	viper.SetDefault("database.pool.conn_max_lifetime_seconds", 0)
	viper.SetDefault("database.pool.conn_max_idle_time_seconds", 0)
	viper.SetDefault("redis.enabled", false)
	viper.SetDefault("redis.host", "127.0.0.1")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("redis.prefix", "mcs")
	viper.SetDefault("queue.enabled", false)
	viper.SetDefault("queue.host", "127.0.0.1")
	viper.SetDefault("queue.port", 6379)
	viper.SetDefault("queue.password", "")
	viper.SetDefault("queue.db", 1)
	viper.SetDefault("queue.concurrency", 5)
	viper.SetDefault("queue.queues", map[string]int{
		"default":  10,
		"critical": 5,
	})
	viper.SetDefault("cors.allowed_origins", []string{"*"})
	viper.SetDefault("cors.allowed_methods", []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"})
	viper.SetDefault("cors.allowed_headers", []string{
		"Content-Type",
		"Content-Length",
		"Accept-Encoding",
		"Accept-Language",
		"Authorization",
		"Cache-Control",
		"X-Requested-With",
		"X-Checkout-Token",
	})
	viper.SetDefault("cors.allow_credentials", true)
	viper.SetDefault("cors.max_age", 600)
	viper.SetDefault("billing.base_url", "https://mirrorchyan.com")
	viper.SetDefault("billing.timeout_ms", 10000)
	viper.SetDefault("billing.user_agent", "mirrorchyan-storefront")
	viper.SetDefault("billing.source", "mirrorchyan_web")
	viper.SetDefault("checkout.poll_initial_delay_ms", 1200)
	viper.SetDefault("checkout.poll_interval_ms", 1500)
	viper.SetDefault("checkout.max_wait_minutes", 40)
	viper.SetDefault("checkout.renewal_debounce_ms", 1500)
	viper.SetDefault("checkout.session_idle_minutes", 60)
	viper.SetDefault("checkout.session_sweep_seconds", 60)
	viper.SetDefault("checkout.ledger_sweep_spec", "@every 1m")
	viper.SetDefault("checkout.plan_cache_ttl_seconds", 600)
	viper.SetDefault("checkout.plan_cache_size_mb", 16)
	viper.SetDefault("checkout.afdian_order_url", "https://ifdian.net/order/create")
	viper.SetDefault("checkout.public_base_url", "https://mirrorchyan.com")
	viper.SetDefault("catalog.most_popular_plan_id", "69c45576c9aa11ef9ace52540025c377")
	viper.SetDefault("catalog.announcement_ttl_seconds", 60)
	viper.SetDefault("catalog.rate_ttl_seconds", 86400)
	viper.SetDefault("catalog.project_ttl_seconds", 600)
	viper.SetDefault("catalog.warmup_spec", "@every 5m")
	viper.SetDefault("catalog.warmup_type_ids", []string{""})
	viper.SetDefault("catalog.contact_fallback_url", "https://qm.qq.com/cgi-bin/qm/qr?k=tEmwz6tg9LJnHswOAGNcrBAESCIa1ju3&jump_from=webapi")
	viper.SetDefault("locales", map[string]interface{}{
		"zh": map[string]interface{}{"currency": "CNY", "symbol": "¥", "decimals": 2, "use_rate": false},
		"en": map[string]interface{}{"currency": "USD", "symbol": "$", "decimals": 2, "use_rate": true},
	})
	viper.SetDefault("security.session_token.secret", "checkout-change-me-in-production")
	viper.SetDefault("security.session_token.expire_minutes", 120)
	viper.SetDefault("security.pay_rate_limit.window_seconds", 60)
	viper.SetDefault("security.pay_rate_limit.max_requests", 10)
	viper.SetDefault("security.transfer_rate_limit.window_seconds", 300)
	viper.SetDefault("security.transfer_rate_limit.max_requests", 5)
	viper.SetDefault("captcha.enabled", true)
	viper.SetDefault("captcha.length", 5)
	viper.SetDefault("captcha.width", 240)
	viper.SetDefault("captcha.height", 80)
	viper.SetDefault("captcha.noise_count", 2)
	viper.SetDefault("captcha.show_line", 2)
	viper.SetDefault("captcha.expire_seconds", 300)
	viper.SetDefault("captcha.max_store", 10240)
	viper.SetDefault("metrics.enabled", true)
	viper.SetDefault("metrics.path", "/metrics")
}

func millis(value int, fallback time.Duration) time.Duration {
	if value <= 0 {
		return fallback
	}
	return time.Duration(value) * time.Millisecond
}
