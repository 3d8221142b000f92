// 配置加载器测试。
package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- Loader 测试 ---

func TestLoader_LoadDefaults(t *testing.T) {
	// 不指定配置文件，应该返回默认值
	cfg, err := NewLoader().Load()
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, ModeBing, cfg.Hub.Mode)
	assert.Equal(t, 5, cfg.Session.RetryBudget)
}

func TestLoader_LoadFromYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "edgechat.yaml")

	yamlContent := `
hub:
  url: "wss://copilot.example.com/c/api/chathub"
  mode: "Copilot"
  locale: "zh-CN"
  style: "precise"

transport:
  proxy: "socks5://127.0.0.1:1080"
  dial_timeout: 5s
  read_limit: 1048576

session:
  handshake_timeout: 3s
  keepalive_interval: 12s
  retry_budget: 3
  silence_timeout: 45s

log:
  level: "debug"
  format: "console"
`
	err := os.WriteFile(configPath, []byte(yamlContent), 0644)
	require.NoError(t, err)

	cfg, err := NewLoader().
		WithConfigPath(configPath).
		Load()
	require.NoError(t, err)

	// 验证 YAML 值覆盖了默认值
	assert.Equal(t, "wss://copilot.example.com/c/api/chathub", cfg.Hub.URL)
	assert.Equal(t, ModeCopilot, cfg.Hub.Mode)
	assert.Equal(t, "zh-CN", cfg.Hub.Locale)
	assert.Equal(t, "precise", cfg.Hub.Style)

	assert.Equal(t, "socks5://127.0.0.1:1080", cfg.Transport.Proxy)
	assert.Equal(t, 5*time.Second, cfg.Transport.DialTimeout)
	assert.Equal(t, int64(1048576), cfg.Transport.ReadLimit)

	assert.Equal(t, 3*time.Second, cfg.Session.HandshakeTimeout)
	assert.Equal(t, 12*time.Second, cfg.Session.KeepAliveInterval)
	assert.Equal(t, 3, cfg.Session.RetryBudget)
	assert.Equal(t, 45*time.Second, cfg.Session.SilenceTimeout)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)

	// 未出现在 YAML 中的字段保留默认值
	assert.Equal(t, "https://www.bing.com/images/kblob", cfg.Upload.Endpoint)
	require.NoError(t, cfg.Validate())
}

func TestLoader_LoadFromEnv(t *testing.T) {
	t.Setenv("EDGECHAT_HUB_MODE", "Copilot")
	t.Setenv("EDGECHAT_SESSION_RETRY_BUDGET", "7")
	t.Setenv("EDGECHAT_SESSION_KEEPALIVE_INTERVAL", "9s")
	t.Setenv("EDGECHAT_TRANSPORT_PROXY", "http://proxy.local:3128")
	t.Setenv("EDGECHAT_METRICS_ENABLED", "true")
	t.Setenv("EDGECHAT_TELEMETRY_SAMPLE_RATE", "0.5")
	t.Setenv("EDGECHAT_LOG_OUTPUT_PATHS", "stdout, /tmp/edgechat.log")

	cfg, err := NewLoader().Load()
	require.NoError(t, err)

	assert.Equal(t, ModeCopilot, cfg.Hub.Mode)
	assert.Equal(t, 7, cfg.Session.RetryBudget)
	assert.Equal(t, 9*time.Second, cfg.Session.KeepAliveInterval)
	assert.Equal(t, "http://proxy.local:3128", cfg.Transport.Proxy)
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, 0.5, cfg.Telemetry.SampleRate)
	assert.Equal(t, []string{"stdout", "/tmp/edgechat.log"}, cfg.Log.OutputPaths)
}

func TestLoader_EnvOverridesYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "edgechat.yaml")

	yamlContent := `
hub:
  style: "creative"
  locale: "en-GB"
`
	require.NoError(t, os.WriteFile(configPath, []byte(yamlContent), 0644))

	// 环境变量应该覆盖 YAML
	t.Setenv("EDGECHAT_HUB_STYLE", "precise")

	cfg, err := NewLoader().
		WithConfigPath(configPath).
		Load()
	require.NoError(t, err)

	assert.Equal(t, "precise", cfg.Hub.Style)
	// YAML 值应该保留（没有被环境变量覆盖）
	assert.Equal(t, "en-GB", cfg.Hub.Locale)
}

func TestLoader_CustomEnvPrefix(t *testing.T) {
	t.Setenv("MYAPP_HUB_LOCALE", "ja-JP")

	cfg, err := NewLoader().
		WithEnvPrefix("MYAPP").
		Load()
	require.NoError(t, err)

	assert.Equal(t, "ja-JP", cfg.Hub.Locale)
}

func TestLoader_InvalidEnvValue(t *testing.T) {
	t.Setenv("EDGECHAT_SESSION_HANDSHAKE_TIMEOUT", "soon")

	_, err := NewLoader().Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "EDGECHAT_SESSION_HANDSHAKE_TIMEOUT")
}

func TestLoader_WithValidator(t *testing.T) {
	validator := func(cfg *Config) error {
		if cfg.Session.RetryBudget > 10 {
			return assert.AnError
		}
		return nil
	}

	t.Setenv("EDGECHAT_SESSION_RETRY_BUDGET", "99")

	_, err := NewLoader().
		WithValidator(validator).
		Load()
	assert.Error(t, err)
}

func TestLoader_NonExistentFile(t *testing.T) {
	// 指定不存在的文件，应该使用默认值（不报错）
	cfg, err := NewLoader().
		WithConfigPath("/non/existent/path/edgechat.yaml").
		Load()
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, 6*time.Second, cfg.Session.KeepAliveInterval)
}

func TestLoader_InvalidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "invalid.yaml")

	invalidYAML := `
hub:
  mode: [invalid
  this is not valid yaml
`
	require.NoError(t, os.WriteFile(configPath, []byte(invalidYAML), 0644))

	_, err := NewLoader().
		WithConfigPath(configPath).
		Load()
	assert.Error(t, err)
}

// --- Config 方法测试 ---

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{
			name:    "valid default config",
			modify:  func(c *Config) {},
			wantErr: false,
		},
		{
			name:    "unknown mode",
			modify:  func(c *Config) { c.Hub.Mode = "Sydney" },
			wantErr: true,
		},
		{
			name:    "http url rejected",
			modify:  func(c *Config) { c.Hub.URL = "https://sydney.bing.com/sydney/ChatHub" },
			wantErr: true,
		},
		{
			name:    "ws url accepted",
			modify:  func(c *Config) { c.Hub.URL = "ws://127.0.0.1:9000/chathub" },
			wantErr: false,
		},
		{
			name:    "unknown style",
			modify:  func(c *Config) { c.Hub.Style = "chaotic" },
			wantErr: true,
		},
		{
			name:    "zero retry budget",
			modify:  func(c *Config) { c.Session.RetryBudget = 0 },
			wantErr: true,
		},
		{
			name:    "zero keepalive interval",
			modify:  func(c *Config) { c.Session.KeepAliveInterval = 0 },
			wantErr: true,
		},
		{
			name:    "negative silence timeout",
			modify:  func(c *Config) { c.Session.SilenceTimeout = -time.Second },
			wantErr: true,
		},
		{
			name:    "zero read limit",
			modify:  func(c *Config) { c.Transport.ReadLimit = 0 },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

// --- MustLoad 测试 ---

func TestMustLoad_Success(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "edgechat.yaml")

	require.NoError(t, os.WriteFile(configPath, []byte("hub:\n  mode: Copilot\n"), 0644))

	assert.NotPanics(t, func() {
		cfg := MustLoad(configPath)
		assert.Equal(t, ModeCopilot, cfg.Hub.Mode)
	})
}

func TestMustLoad_InvalidFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "invalid.yaml")

	require.NoError(t, os.WriteFile(configPath, []byte("invalid: [yaml"), 0644))

	assert.Panics(t, func() {
		MustLoad(configPath)
	})
}

func TestLoadFromEnv_Function(t *testing.T) {
	t.Setenv("EDGECHAT_UPLOAD_ENDPOINT", "http://127.0.0.1:9999/kblob")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)
	assert.Equal(t, "http://127.0.0.1:9999/kblob", cfg.Upload.Endpoint)
}
