// =============================================================================
// 📦 edgechat 默认配置
// =============================================================================
// 提供所有配置项的合理默认值
// =============================================================================
package config

import "time"

// Hub 模式
const (
	ModeBing    = "Bing"
	ModeCopilot = "Copilot"
)

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Hub:       DefaultHubConfig(),
		Transport: DefaultTransportConfig(),
		Session:   DefaultSessionConfig(),
		Upload:    DefaultUploadConfig(),
		Log:       DefaultLogConfig(),
		Metrics:   DefaultMetricsConfig(),
		Telemetry: DefaultTelemetryConfig(),
	}
}

// DefaultHubConfig 返回默认 Hub 配置
func DefaultHubConfig() HubConfig {
	return HubConfig{
		URL:    "",
		Mode:   ModeBing,
		Locale: "",
		Style:  "balanced",
	}
}

// DefaultTransportConfig 返回默认传输层配置
func DefaultTransportConfig() TransportConfig {
	return TransportConfig{
		Proxy:       "",
		CAFile:      "",
		DialTimeout: 30 * time.Second,
		HTTPTimeout: 900 * time.Second,
		ReadLimit:   16 * 1024 * 1024, // 16MB
		CookieFile:  "",
	}
}

// DefaultSessionConfig 返回默认会话配置
func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		HandshakeTimeout:  10 * time.Second,
		KeepAliveInterval: 6 * time.Second,
		RetryBudget:       5,
		SilenceTimeout:    0,
	}
}

// DefaultUploadConfig 返回默认上传配置
func DefaultUploadConfig() UploadConfig {
	return UploadConfig{
		Endpoint: "https://www.bing.com/images/kblob",
		Timeout:  60 * time.Second,
	}
}

// DefaultLogConfig 返回默认日志配置
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:            "info",
		Format:           "json",
		OutputPaths:      []string{"stderr"},
		EnableCaller:     true,
		EnableStacktrace: false,
	}
}

// DefaultMetricsConfig 返回默认指标配置
func DefaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Enabled:   false,
		Namespace: "edgechat",
	}
}

// DefaultTelemetryConfig 返回默认遥测配置
func DefaultTelemetryConfig() TelemetryConfig {
	return TelemetryConfig{
		Enabled:      false,
		OTLPEndpoint: "localhost:4317",
		ServiceName:  "edgechat",
		SampleRate:   0.1,
	}
}
