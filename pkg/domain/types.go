package domain

import "time"

type TargetID string

// Surface 宿主可编辑区域的引用，Gen 由页面在元素身份变化时递增
type Surface struct {
	Gen int64 `json:"gen"`
}

// Valid 是否指向一个已定位的元素
func (s Surface) Valid() bool { return s.Gen > 0 }

// Identity 调用方身份：APIKeyIdentity 或 AnonymousIdentity
type Identity interface {
	identity()
}

// APIKeyIdentity 已配置且通过格式校验的 API Key
type APIKeyIdentity struct {
	Key string
}

// AnonymousIdentity 设备级匿名身份
type AnonymousIdentity struct {
	DeviceID   string
	UsageCount int
}

func (APIKeyIdentity) identity()    {}
func (AnonymousIdentity) identity() {}

// RedactionRequest 单次提交的脱敏请求，每次提交尝试只构造一次
type RedactionRequest struct {
	Text     string
	Identity Identity
}

type NoticeKind string

const (
	NoticeError NoticeKind = "error"
	NoticeQuota NoticeKind = "quota"
	NoticeUsage NoticeKind = "usage"
	NoticeInfo  NoticeKind = "info"
)

// Notice 页面上展示的短暂提示
type Notice struct {
	Kind    NoticeKind `json:"kind"`
	Message string     `json:"message"`
	// CTA 是否附带获取 API Key 的按钮
	CTA bool `json:"cta"`
}

type OutcomeKind string

const (
	OutcomeRedacted OutcomeKind = "redacted"
	OutcomeFallback OutcomeKind = "fallback"
	OutcomeDropped  OutcomeKind = "dropped"
	OutcomeGaveUp   OutcomeKind = "gave_up"
)

// Outcome 一次拦截周期的终态
type Outcome struct {
	Kind OutcomeKind
	// Err 导致降级或放弃的原因，成功时为 nil
	Err error
}

type TargetInfo struct {
	ID    TargetID `json:"id"`
	Type  string   `json:"type"`
	URL   string   `json:"url"`
	Title string   `json:"title"`
}

// Event 对外发布的拦截事件
type Event struct {
	Type      string      `json:"type"`
	Target    TargetID    `json:"target"`
	TraceID   string      `json:"traceId,omitempty"`
	Outcome   OutcomeKind `json:"outcome,omitempty"`
	Notice    *Notice     `json:"notice,omitempty"`
	Error     string      `json:"error,omitempty"`
	Timestamp int64       `json:"timestamp"`
}

// Stamp 填充时间戳
func (e *Event) Stamp() {
	if e.Timestamp == 0 {
		e.Timestamp = time.Now().UnixMilli()
	}
}
