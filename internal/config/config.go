package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	ProdBaseURL = "https://app.llmsecrets.com"
	DevBaseURL  = "http://localhost:3000"
)

// Config 配置文件结构体
type Config struct {
	Version string `yaml:"version"`

	Sqlite Sqlite `yaml:"sqlite"`

	Log Log `yaml:"log"`

	Browser Browser `yaml:"browser"`

	Redaction Redaction `yaml:"redaction"`
}

type Sqlite struct {
	Dsn    string `yaml:"dsn"`
	Prefix string `yaml:"prefix"`
}

type Log struct {
	Level  string   `yaml:"level"`
	Writer []string `yaml:"writer"`
	File   string   `yaml:"file"`
}

// Browser 浏览器连接与宿主页面 DOM 约定
type Browser struct {
	DevToolsURL     string `yaml:"devToolsURL"`
	TargetURL       string `yaml:"targetURL"`
	SurfaceSelector string `yaml:"surfaceSelector"`
	SubmitSelector  string `yaml:"submitSelector"`

	AttachAttempts int           `yaml:"attachAttempts"`
	AttachDelay    time.Duration `yaml:"attachDelay"`
	DebounceDelay  time.Duration `yaml:"debounceDelay"`
}

// Redaction 脱敏管线的数值策略
type Redaction struct {
	Dev     bool   `yaml:"dev"`
	BaseURL string `yaml:"baseURL"`

	FetchAttempts  int           `yaml:"fetchAttempts"`
	RetryDelay     time.Duration `yaml:"retryDelay"`
	RequestTimeout time.Duration `yaml:"requestTimeout"`

	SettleDelay   time.Duration `yaml:"settleDelay"`
	SettleTimeout time.Duration `yaml:"settleTimeout"`
	// SettlePolicy proceed：超时后继续发送；fail：超时后提示手动发送
	SettlePolicy string `yaml:"settlePolicy"`

	SendAttempts   int           `yaml:"sendAttempts"`
	SendRetryDelay time.Duration `yaml:"sendRetryDelay"`

	AnonymousLimit int           `yaml:"anonymousLimit"`
	NoticeTTL      time.Duration `yaml:"noticeTTL"`
}

const (
	SettleProceed = "proceed"
	SettleFail    = "fail"
)

// NewConfig 创建默认配置
func NewConfig() *Config {
	return &Config{
		Version: "1.0.0",
		Sqlite: Sqlite{
			Dsn:    "llmsecrets.sqlite3",
			Prefix: "llmsecrets_",
		},
		Log: Log{
			Level:  "info",
			Writer: []string{"console", "file"},
			File:   "logs/llmsecrets.log",
		},
		Browser: Browser{
			DevToolsURL:     "http://127.0.0.1:9222",
			TargetURL:       "https://chatgpt.com/*",
			SurfaceSelector: "div#prompt-textarea.ProseMirror",
			SubmitSelector:  `button[data-testid="send-button"]`,
			AttachAttempts:  3,
			AttachDelay:     2 * time.Second,
			DebounceDelay:   500 * time.Millisecond,
		},
		Redaction: Redaction{
			FetchAttempts:  3,
			RetryDelay:     2 * time.Second,
			RequestTimeout: 30 * time.Second,
			SettleDelay:    time.Second,
			SettleTimeout:  3 * time.Second,
			SettlePolicy:   SettleProceed,
			SendAttempts:   3,
			SendRetryDelay: 2 * time.Second,
			AnonymousLimit: 5,
			NoticeTTL:      5 * time.Second,
		},
	}
}

// Load 读取 YAML 配置文件（可为空），再应用 .env 与环境变量覆盖
func Load(path string) (*Config, error) {
	cfg := NewConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("读取配置文件: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("解析配置文件 %s: %w", path, err)
		}
	}

	_ = godotenv.Load()
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv 应用 LLMSECRETS_* 环境变量
func (c *Config) applyEnv() error {
	if v := env("LLMSECRETS_DEVTOOLS_URL"); v != "" {
		c.Browser.DevToolsURL = v
	}
	if v := env("LLMSECRETS_TARGET_URL"); v != "" {
		c.Browser.TargetURL = v
	}
	if v := env("LLMSECRETS_BASE_URL"); v != "" {
		c.Redaction.BaseURL = v
	}
	if v := env("LLMSECRETS_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := env("LLMSECRETS_DB"); v != "" {
		c.Sqlite.Dsn = v
	}
	if v := env("LLMSECRETS_DEV"); v != "" {
		dev, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("LLMSECRETS_DEV: %w", err)
		}
		c.Redaction.Dev = dev
	}
	return nil
}

// Validate 校验数值策略
func (c *Config) Validate() error {
	r := c.Redaction
	switch {
	case r.FetchAttempts < 1:
		return fmt.Errorf("redaction.fetchAttempts 必须 >= 1")
	case r.SendAttempts < 1:
		return fmt.Errorf("redaction.sendAttempts 必须 >= 1")
	case r.AnonymousLimit < 0:
		return fmt.Errorf("redaction.anonymousLimit 不能为负数")
	case r.SettlePolicy != SettleProceed && r.SettlePolicy != SettleFail:
		return fmt.Errorf("redaction.settlePolicy 只能是 %q 或 %q", SettleProceed, SettleFail)
	case c.Browser.AttachAttempts < 1:
		return fmt.Errorf("browser.attachAttempts 必须 >= 1")
	case c.Browser.SurfaceSelector == "" || c.Browser.SubmitSelector == "":
		return fmt.Errorf("browser 选择器不能为空")
	}
	return nil
}

// APIBaseURL 返回脱敏服务地址，显式配置优先于 dev 开关
func (c *Config) APIBaseURL() string {
	if c.Redaction.BaseURL != "" {
		return strings.TrimRight(c.Redaction.BaseURL, "/")
	}
	if c.Redaction.Dev {
		return DevBaseURL
	}
	return ProdBaseURL
}

func env(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}
