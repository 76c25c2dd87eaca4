// Package config 提供 TOML 配置加载、环境变量覆盖与 schema 校验
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Config 合规流水线服务配置
type Config struct {
	// 服务名称
	ServiceName string `mapstructure:"service_name"`
	// 服务版本
	Version string `mapstructure:"version"`
	// 环境：dev, staging, prod
	Environment string `mapstructure:"environment"`
	// HTTP 服务配置
	HTTP HTTPConfig `mapstructure:"http"`
	// 数据库配置
	Database DatabaseConfig `mapstructure:"database"`
	// Kafka 配置
	Kafka KafkaConfig `mapstructure:"kafka"`
	// 日志配置
	Logger LoggerConfig `mapstructure:"logger"`
	// 指标配置
	Metrics MetricsConfig `mapstructure:"metrics"`
	// 历史记忆库配置
	Memory MemoryConfig `mapstructure:"memory"`
	// 语义分析配置
	Semantic SemanticConfig `mapstructure:"semantic"`
	// 制裁名单配置
	Sanctions SanctionsConfig `mapstructure:"sanctions"`
	// 通知器配置
	Notifiers []NotifierConfig `mapstructure:"notifiers"`
	// 风险规则配置
	Rules RulesConfig `mapstructure:"rules"`
}

// HTTPConfig HTTP 服务配置
type HTTPConfig struct {
	// 监听地址
	Host string `mapstructure:"host"`
	// 监听端口
	Port int `mapstructure:"port"`
	// 读超时（秒）
	ReadTimeout int `mapstructure:"read_timeout"`
	// 写超时（秒）
	WriteTimeout int `mapstructure:"write_timeout"`
	// 全局限流 QPS，0 表示不限流
	RateLimitQPS float64 `mapstructure:"rate_limit_qps"`
	// 限流桶容量
	RateLimitBurst int `mapstructure:"rate_limit_burst"`
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	// 驱动：mysql
	Driver string `mapstructure:"driver"`
	// 数据源名称
	DSN string `mapstructure:"dsn"`
	// 最大连接数
	MaxOpenConns int `mapstructure:"max_open_conns"`
	// 最大空闲连接数
	MaxIdleConns int `mapstructure:"max_idle_conns"`
	// 连接最大生命周期（秒）
	ConnMaxLifetime int `mapstructure:"conn_max_lifetime"`
	// 是否启用日志
	LogEnabled bool `mapstructure:"log_enabled"`
	// 慢查询阈值（毫秒）
	SlowQueryThreshold int `mapstructure:"slow_query_threshold"`
}

// KafkaConfig Kafka 配置
type KafkaConfig struct {
	// Broker 地址列表
	Brokers []string `mapstructure:"brokers"`
	// 最大重试次数
	MaxRetries int `mapstructure:"max_retries"`
	// 重试间隔（毫秒）
	RetryBackoff int `mapstructure:"retry_backoff"`
}

// LoggerConfig 日志配置
type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	Output     string `mapstructure:"output"`
	FilePath   string `mapstructure:"file_path"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
	Compress   bool   `mapstructure:"compress"`
	WithCaller bool   `mapstructure:"with_caller"`
}

// MetricsConfig 指标配置
type MetricsConfig struct {
	// 是否启用
	Enabled bool `mapstructure:"enabled"`
	// Prometheus 监听端口
	Port int `mapstructure:"port"`
	// 指标路径
	Path string `mapstructure:"path"`
}

// MemoryConfig 历史记忆库配置
type MemoryConfig struct {
	// 后端：mysql 或 inprocess
	Backend string `mapstructure:"backend"`
	// 召回条数上限
	RecallK int `mapstructure:"recall_k"`
	// 召回超时（毫秒）
	RecallTimeout int `mapstructure:"recall_timeout"`
}

// SemanticConfig 语义分析配置
type SemanticConfig struct {
	// 模式：http 或 none
	Mode string `mapstructure:"mode"`
	// 分析服务端点
	Endpoint string `mapstructure:"endpoint"`
	// 调用超时（毫秒）
	Timeout int `mapstructure:"timeout"`
}

// SanctionsConfig 制裁名单配置
type SanctionsConfig struct {
	// 被标记的目的国国家码列表
	Countries []string `mapstructure:"countries"`
}

// NotifierConfig 单个通知器配置
type NotifierConfig struct {
	// 类型：kafka, webhook, log
	Type string `mapstructure:"type"`
	// 通知器名称
	Name string `mapstructure:"name"`
	// 目标（webhook URL 或 kafka topic）
	Target string `mapstructure:"target"`
}

// RulesConfig 风险规则配置，所有权重与阈值均可外部调整
type RulesConfig struct {
	// 规则表版本
	Version string `mapstructure:"version"`
	// 高风险目的国权重表
	CountryWeights map[string]int `mapstructure:"country_weights"`
	// 制裁名单命中但未列出目的国时的默认权重
	DefaultCountryWeight int `mapstructure:"default_country_weight"`
	// 大额交易阈值（USD）
	HighAmountThresholdUSD float64 `mapstructure:"high_amount_threshold_usd"`
	// 大额交易权重
	HighAmountWeight int `mapstructure:"high_amount_weight"`
	// 新账户天数阈值
	YoungAccountAgeDays int `mapstructure:"young_account_age_days"`
	// 新账户权重
	YoungAccountWeight int `mapstructure:"young_account_weight"`
	// 设备信任度阈值
	DeviceTrustThreshold float64 `mapstructure:"device_trust_threshold"`
	// 低设备信任度权重
	LowDeviceTrustWeight int `mapstructure:"low_device_trust_weight"`
	// 历史欺诈标记权重
	PastFraudWeight int `mapstructure:"past_fraud_weight"`
	// 拆分交易笔数阈值
	StructuringCount int `mapstructure:"structuring_count"`
	// 拆分交易时间窗口（小时）
	StructuringWindowHours int `mapstructure:"structuring_window_hours"`
	// 拆分交易距申报阈值的比例边界（如 0.02）
	StructuringMargin float64 `mapstructure:"structuring_margin"`
	// 拆分交易权重
	StructuringWeight int `mapstructure:"structuring_weight"`
	// 历史升级权重
	HistoryEscalationWeight int `mapstructure:"history_escalation_weight"`
	// 历史贡献占最终得分的比例上限
	HistoryShareCap float64 `mapstructure:"history_share_cap"`
	// 各币种兑 USD 汇率表
	USDRates map[string]float64 `mapstructure:"usd_rates"`
}

// Load 从 TOML 文件加载配置，支持环境变量覆盖，缺省值兜底
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigFile(configPath)
	v.SetConfigType("toml")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	v.SetEnvPrefix("APP")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// Validate 验证配置的有效性
func (c *Config) Validate() error {
	if c.ServiceName == "" {
		return fmt.Errorf("service_name is required")
	}
	if c.Environment == "" {
		c.Environment = "dev"
	}
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTP.Port)
	}
	if c.Database.DSN == "" {
		return fmt.Errorf("database DSN is required")
	}
	if c.Memory.Backend != "mysql" && c.Memory.Backend != "inprocess" {
		return fmt.Errorf("unsupported memory backend: %s", c.Memory.Backend)
	}
	if c.Semantic.Mode == "http" && c.Semantic.Endpoint == "" {
		return fmt.Errorf("semantic endpoint is required for http mode")
	}
	for _, n := range c.Notifiers {
		if n.Type != "kafka" && n.Type != "webhook" && n.Type != "log" {
			return fmt.Errorf("unsupported notifier type: %s", n.Type)
		}
		if n.Type != "log" && n.Target == "" {
			return fmt.Errorf("notifier %s requires a target", n.Name)
		}
	}
	if c.Rules.HistoryShareCap < 0 || c.Rules.HistoryShareCap > 1 {
		return fmt.Errorf("history_share_cap must be within [0,1]")
	}
	return nil
}

// setDefaults 设置默认值
func setDefaults(v *viper.Viper) {
	v.SetDefault("http.host", "0.0.0.0")
	v.SetDefault("http.port", 8080)
	v.SetDefault("http.read_timeout", 30)
	v.SetDefault("http.write_timeout", 30)
	v.SetDefault("http.rate_limit_qps", 100.0)
	v.SetDefault("http.rate_limit_burst", 200)

	v.SetDefault("database.driver", "mysql")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 300)
	v.SetDefault("database.log_enabled", false)
	v.SetDefault("database.slow_query_threshold", 1000)

	v.SetDefault("kafka.max_retries", 3)
	v.SetDefault("kafka.retry_backoff", 100)

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "json")
	v.SetDefault("logger.output", "stdout")
	v.SetDefault("logger.file_path", "logs/app.log")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 10)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)
	v.SetDefault("logger.with_caller", true)

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.port", 9090)
	v.SetDefault("metrics.path", "/metrics")

	v.SetDefault("memory.backend", "mysql")
	v.SetDefault("memory.recall_k", 5)
	v.SetDefault("memory.recall_timeout", 500)

	v.SetDefault("semantic.mode", "none")
	v.SetDefault("semantic.timeout", 2000)

	v.SetDefault("sanctions.countries", []string{"IR", "KP", "SY", "CU"})

	v.SetDefault("rules.version", "v1")
	v.SetDefault("rules.country_weights", map[string]int{"NG": 75, "IR": 85, "RU": 80, "KP": 85})
	v.SetDefault("rules.default_country_weight", 75)
	v.SetDefault("rules.high_amount_threshold_usd", 10000.0)
	v.SetDefault("rules.high_amount_weight", 20)
	v.SetDefault("rules.young_account_age_days", 30)
	v.SetDefault("rules.young_account_weight", 15)
	v.SetDefault("rules.device_trust_threshold", 0.5)
	v.SetDefault("rules.low_device_trust_weight", 15)
	v.SetDefault("rules.past_fraud_weight", 20)
	v.SetDefault("rules.structuring_count", 3)
	v.SetDefault("rules.structuring_window_hours", 24)
	v.SetDefault("rules.structuring_margin", 0.02)
	v.SetDefault("rules.structuring_weight", 30)
	v.SetDefault("rules.history_escalation_weight", 10)
	v.SetDefault("rules.history_share_cap", 0.15)
	v.SetDefault("rules.usd_rates", map[string]float64{"USD": 1.0, "EUR": 1.08, "GBP": 1.27})
}

// GetEnv 获取环境变量，支持默认值
func GetEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
