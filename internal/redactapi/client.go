package redactapi

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"llmsecrets/internal/logger"
	"llmsecrets/pkg/domain"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

const (
	secretsPath     = "/api/secrets"
	anonSecretsPath = "/api/anon/secrets"
	// 响应体读取上限
	maxBodyBytes = 4 << 20
)

// Result 已读取完毕的 HTTP 响应
type Result struct {
	StatusCode int
	Status     string
	Body       []byte
}

// OK 是否为 2xx
func (r *Result) OK() bool {
	return r != nil && r.StatusCode >= 200 && r.StatusCode < 300
}

// Forbidden 是否为额度/授权拒绝
func (r *Result) Forbidden() bool {
	return r != nil && r.StatusCode == http.StatusForbidden
}

// RedactedText 读取 redactedText 字段，缺失或非字符串时返回空串
func (r *Result) RedactedText() string {
	v := gjson.GetBytes(r.Body, "redactedText")
	if v.Type != gjson.String {
		return ""
	}
	return v.String()
}

// Options 客户端配置
type Options struct {
	BaseURL     string
	MaxAttempts int
	RetryDelay  time.Duration
	Timeout     time.Duration
	HTTPClient  *http.Client
	Sleep       SleepFunc
	Logger      logger.Logger
}

// Client 脱敏服务客户端
type Client struct {
	baseURL string
	http    *http.Client
	retry   Retrier
	log     logger.Logger
}

// NewClient 创建客户端
func NewClient(opts Options) *Client {
	l := opts.Logger
	if l == nil {
		l = logger.NewNop()
	}
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: opts.Timeout}
	}
	return &Client{
		baseURL: opts.BaseURL,
		http:    hc,
		retry: Retrier{
			MaxAttempts: opts.MaxAttempts,
			Delay:       opts.RetryDelay,
			Sleep:       opts.Sleep,
			Log:         l,
		},
		log: l,
	}
}

// Redact 发送脱敏请求并按重试策略返回最终结果
func (c *Client) Redact(ctx context.Context, req domain.RedactionRequest) (*Result, error) {
	url, body, bearer, err := c.build(req)
	if err != nil {
		return nil, err
	}
	c.log.Debug("发送脱敏请求", "url", url, "bytes", len(body))
	return c.retry.Do(ctx, func(ctx context.Context) (*Result, error) {
		return c.post(ctx, url, body, bearer)
	})
}

// build 根据身份构造地址、请求体与认证头
func (c *Client) build(req domain.RedactionRequest) (url string, body []byte, bearer string, err error) {
	body, err = sjson.SetBytes([]byte(`{}`), "text", req.Text)
	if err != nil {
		return "", nil, "", err
	}
	switch id := req.Identity.(type) {
	case domain.APIKeyIdentity:
		return c.baseURL + secretsPath, body, id.Key, nil
	case domain.AnonymousIdentity:
		body, err = sjson.SetBytes(body, "id", id.DeviceID)
		if err != nil {
			return "", nil, "", err
		}
		return c.baseURL + anonSecretsPath, body, "", nil
	default:
		return "", nil, "", fmt.Errorf("%w: unknown identity %T", domain.ErrIdentity, req.Identity)
	}
}

func (c *Client) post(ctx context.Context, url string, body []byte, bearer string) (*Result, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		httpReq.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("读取响应体: %w", err)
	}
	return &Result{StatusCode: resp.StatusCode, Status: resp.Status, Body: data}, nil
}
