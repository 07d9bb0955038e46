package domain

import "errors"

var (
	// ErrDiscovery 宿主输入区域始终未出现
	ErrDiscovery = errors.New("host surface not found")
	// ErrIdentity 没有可用的身份凭据
	ErrIdentity = errors.New("no usable identity")
	// ErrQuotaExceeded 匿名额度用尽或服务端返回 403
	ErrQuotaExceeded = errors.New("quota exceeded")
	// ErrNetwork 传输错误或重试耗尽后的非 2xx 响应
	ErrNetwork = errors.New("redaction request failed")
	// ErrMalformedResponse 响应中缺少 redactedText
	ErrMalformedResponse = errors.New("malformed redaction response")
	// ErrResubmit 找不到发送按钮
	ErrResubmit = errors.New("submit control not found")
)
