package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfigDefaults(t *testing.T) {
	cfg := NewConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 3, cfg.Redaction.FetchAttempts)
	assert.Equal(t, 5, cfg.Redaction.AnonymousLimit)
	assert.Equal(t, 500*time.Millisecond, cfg.Browser.DebounceDelay)
	assert.Equal(t, ProdBaseURL, cfg.APIBaseURL())
}

func TestLoadYAMLAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	data := `
redaction:
  dev: true
  retryDelay: 250ms
  settlePolicy: fail
browser:
  attachAttempts: 5
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))
	t.Setenv("LLMSECRETS_TARGET_URL", "https://example.test/*")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 250*time.Millisecond, cfg.Redaction.RetryDelay)
	assert.Equal(t, SettleFail, cfg.Redaction.SettlePolicy)
	assert.Equal(t, 5, cfg.Browser.AttachAttempts)
	assert.Equal(t, "https://example.test/*", cfg.Browser.TargetURL)
	assert.Equal(t, DevBaseURL, cfg.APIBaseURL())
	// 未出现在文件中的字段保留默认值
	assert.Equal(t, 3, cfg.Redaction.SendAttempts)
}

func TestExplicitBaseURLWins(t *testing.T) {
	cfg := NewConfig()
	cfg.Redaction.Dev = true
	cfg.Redaction.BaseURL = "http://redact.internal/"
	assert.Equal(t, "http://redact.internal", cfg.APIBaseURL())
}

func TestValidateRejectsBadPolicy(t *testing.T) {
	cfg := NewConfig()
	cfg.Redaction.SettlePolicy = "maybe"
	assert.Error(t, cfg.Validate())

	cfg = NewConfig()
	cfg.Redaction.FetchAttempts = 0
	assert.Error(t, cfg.Validate())
}

func TestLoadBadDevFlag(t *testing.T) {
	t.Setenv("LLMSECRETS_DEV", "sometimes")
	_, err := Load("")
	assert.Error(t, err)
}
