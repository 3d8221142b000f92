// =============================================================================
// 📦 edgechat 配置加载器
// =============================================================================
// 统一配置加载，支持 YAML 文件 + 环境变量覆盖
//
// 使用方法:
//
//	cfg, err := config.NewLoader().
//	    WithConfigPath("edgechat.yaml").
//	    WithEnvPrefix("EDGECHAT").
//	    Load()
//
// 配置优先级: 默认值 → YAML 文件 → 环境变量
// =============================================================================
package config

import (
	"fmt"
	"net/url"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// =============================================================================
// 🎯 核心配置结构
// =============================================================================

// Config 是 edgechat 的完整配置结构
type Config struct {
	// Hub ChatHub 端点配置
	Hub HubConfig `yaml:"hub" env:"HUB"`

	// Transport 传输层配置（代理、证书、超时）
	Transport TransportConfig `yaml:"transport" env:"TRANSPORT"`

	// Session 流式会话协议配置
	Session SessionConfig `yaml:"session" env:"SESSION"`

	// Upload 图片上传配置
	Upload UploadConfig `yaml:"upload" env:"UPLOAD"`

	// Log 日志配置
	Log LogConfig `yaml:"log" env:"LOG"`

	// Metrics Prometheus 指标配置
	Metrics MetricsConfig `yaml:"metrics" env:"METRICS"`

	// Telemetry 遥测配置
	Telemetry TelemetryConfig `yaml:"telemetry" env:"TELEMETRY"`
}

// HubConfig ChatHub 端点配置
type HubConfig struct {
	// wss 地址，为空时按 Mode 取默认值
	URL string `yaml:"url" env:"URL"`
	// 模式: Bing, Copilot（决定请求头）
	Mode string `yaml:"mode" env:"MODE"`
	// 默认语言区域，为空时从环境推断
	Locale string `yaml:"locale" env:"LOCALE"`
	// 默认对话风格: creative, balanced, precise
	Style string `yaml:"style" env:"STYLE"`
}

// TransportConfig 传输层配置
type TransportConfig struct {
	// 代理地址，支持 http/https/socks5；为空时读取环境变量
	Proxy string `yaml:"proxy" env:"PROXY"`
	// 额外信任的 CA 证书文件（PEM）
	CAFile string `yaml:"ca_file" env:"CA_FILE"`
	// websocket 握手超时
	DialTimeout time.Duration `yaml:"dial_timeout" env:"DIAL_TIMEOUT"`
	// HTTP 请求超时（图片上传等）
	HTTPTimeout time.Duration `yaml:"http_timeout" env:"HTTP_TIMEOUT"`
	// 单条 websocket 消息的读取上限（字节）
	ReadLimit int64 `yaml:"read_limit" env:"READ_LIMIT"`
	// cookie 文件（[{name, value}] JSON）
	CookieFile string `yaml:"cookie_file" env:"COOKIE_FILE"`
}

// SessionConfig 流式会话协议配置
type SessionConfig struct {
	// 协议握手超时
	HandshakeTimeout time.Duration `yaml:"handshake_timeout" env:"HANDSHAKE_TIMEOUT"`
	// 心跳间隔
	KeepAliveInterval time.Duration `yaml:"keepalive_interval" env:"KEEPALIVE_INTERVAL"`
	// 连续空载的重试预算
	RetryBudget int `yaml:"retry_budget" env:"RETRY_BUDGET"`
	// 静默超时，0 表示不启用；每次超时消耗一次重试预算
	SilenceTimeout time.Duration `yaml:"silence_timeout" env:"SILENCE_TIMEOUT"`
}

// UploadConfig 图片上传配置
type UploadConfig struct {
	// 上传端点
	Endpoint string `yaml:"endpoint" env:"ENDPOINT"`
	// 上传超时
	Timeout time.Duration `yaml:"timeout" env:"TIMEOUT"`
}

// LogConfig 日志配置
type LogConfig struct {
	// 日志级别: debug, info, warn, error
	Level string `yaml:"level" env:"LEVEL"`
	// 输出格式: json, console
	Format string `yaml:"format" env:"FORMAT"`
	// 输出路径
	OutputPaths []string `yaml:"output_paths" env:"OUTPUT_PATHS"`
	// 是否启用调用者信息
	EnableCaller bool `yaml:"enable_caller" env:"ENABLE_CALLER"`
	// 是否启用堆栈跟踪
	EnableStacktrace bool `yaml:"enable_stacktrace" env:"ENABLE_STACKTRACE"`
}

// MetricsConfig 指标配置
type MetricsConfig struct {
	// 是否启用
	Enabled bool `yaml:"enabled" env:"ENABLED"`
	// 指标命名空间
	Namespace string `yaml:"namespace" env:"NAMESPACE"`
}

// TelemetryConfig 遥测配置
type TelemetryConfig struct {
	// 是否启用
	Enabled bool `yaml:"enabled" env:"ENABLED"`
	// OTLP 端点
	OTLPEndpoint string `yaml:"otlp_endpoint" env:"OTLP_ENDPOINT"`
	// 服务名称
	ServiceName string `yaml:"service_name" env:"SERVICE_NAME"`
	// 采样率
	SampleRate float64 `yaml:"sample_rate" env:"SAMPLE_RATE"`
}

// =============================================================================
// 🔧 配置加载器
// =============================================================================

// Loader 配置加载器（Builder 模式）
type Loader struct {
	configPath string
	envPrefix  string
	validators []func(*Config) error
}

// NewLoader 创建新的配置加载器
func NewLoader() *Loader {
	return &Loader{
		envPrefix:  "EDGECHAT",
		validators: make([]func(*Config) error, 0),
	}
}

// WithConfigPath 设置配置文件路径
func (l *Loader) WithConfigPath(path string) *Loader {
	l.configPath = path
	return l
}

// WithEnvPrefix 设置环境变量前缀
func (l *Loader) WithEnvPrefix(prefix string) *Loader {
	l.envPrefix = prefix
	return l
}

// WithValidator 添加配置验证器
func (l *Loader) WithValidator(v func(*Config) error) *Loader {
	l.validators = append(l.validators, v)
	return l
}

// Load 加载配置
// 优先级: 默认值 → YAML 文件 → 环境变量
func (l *Loader) Load() (*Config, error) {
	// 1. 从默认值开始
	cfg := DefaultConfig()

	// 2. 如果指定了配置文件，从文件加载
	if l.configPath != "" {
		if err := l.loadFromFile(cfg); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	// 3. 从环境变量覆盖
	if err := l.loadFromEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	// 4. 运行验证器
	for _, v := range l.validators {
		if err := v(cfg); err != nil {
			return nil, fmt.Errorf("config validation failed: %w", err)
		}
	}

	return cfg, nil
}

// loadFromFile 从 YAML 文件加载配置
func (l *Loader) loadFromFile(cfg *Config) error {
	data, err := os.ReadFile(l.configPath)
	if err != nil {
		if os.IsNotExist(err) {
			// 文件不存在，使用默认值
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// loadFromEnv 从环境变量加载配置
func (l *Loader) loadFromEnv(cfg *Config) error {
	return l.setFieldsFromEnv(reflect.ValueOf(cfg).Elem(), l.envPrefix)
}

// setFieldsFromEnv 递归设置结构体字段
func (l *Loader) setFieldsFromEnv(v reflect.Value, prefix string) error {
	t := v.Type()

	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		fieldType := t.Field(i)

		envTag := fieldType.Tag.Get("env")
		if envTag == "" || envTag == "-" {
			continue
		}

		envKey := prefix + "_" + envTag

		if field.Kind() == reflect.Struct {
			if err := l.setFieldsFromEnv(field, envKey); err != nil {
				return err
			}
			continue
		}

		envValue := os.Getenv(envKey)
		if envValue == "" {
			continue
		}

		if err := setFieldValue(field, envValue); err != nil {
			return fmt.Errorf("failed to set %s: %w", envKey, err)
		}
	}

	return nil
}

// setFieldValue 设置字段值
func setFieldValue(field reflect.Value, value string) error {
	if !field.CanSet() {
		return nil
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(value)

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		// 特殊处理 time.Duration
		if field.Type() == reflect.TypeOf(time.Duration(0)) {
			d, err := time.ParseDuration(value)
			if err != nil {
				return err
			}
			field.SetInt(int64(d))
		} else {
			i, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return err
			}
			field.SetInt(i)
		}

	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return err
		}
		field.SetFloat(f)

	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		field.SetBool(b)

	case reflect.Slice:
		// 支持逗号分隔的字符串切片
		if field.Type().Elem().Kind() == reflect.String {
			parts := strings.Split(value, ",")
			for i := range parts {
				parts[i] = strings.TrimSpace(parts[i])
			}
			field.Set(reflect.ValueOf(parts))
		}
	}

	return nil
}

// =============================================================================
// 🔍 辅助函数
// =============================================================================

// MustLoad 加载配置，失败时 panic
func MustLoad(path string) *Config {
	cfg, err := NewLoader().WithConfigPath(path).Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}
	return cfg
}

// LoadFromEnv 仅从环境变量加载配置
func LoadFromEnv() (*Config, error) {
	return NewLoader().Load()
}

// Validate 验证配置
func (c *Config) Validate() error {
	var errs []string

	switch c.Hub.Mode {
	case ModeBing, ModeCopilot:
	default:
		errs = append(errs, fmt.Sprintf("unknown hub mode %q", c.Hub.Mode))
	}
	if c.Hub.URL != "" {
		u, err := url.Parse(c.Hub.URL)
		if err != nil || (u.Scheme != "wss" && u.Scheme != "ws") {
			errs = append(errs, "hub url must be a ws:// or wss:// url")
		}
	}
	switch c.Hub.Style {
	case "", "creative", "balanced", "precise":
	default:
		errs = append(errs, fmt.Sprintf("unknown conversation style %q", c.Hub.Style))
	}

	if c.Session.RetryBudget <= 0 {
		errs = append(errs, "retry_budget must be positive")
	}
	if c.Session.KeepAliveInterval <= 0 {
		errs = append(errs, "keepalive_interval must be positive")
	}
	if c.Session.HandshakeTimeout <= 0 {
		errs = append(errs, "handshake_timeout must be positive")
	}
	if c.Session.SilenceTimeout < 0 {
		errs = append(errs, "silence_timeout must not be negative")
	}
	if c.Transport.ReadLimit <= 0 {
		errs = append(errs, "read_limit must be positive")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors: %s", strings.Join(errs, "; "))
	}

	return nil
}
