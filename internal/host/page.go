package host

import (
	"context"
	"errors"
	"time"

	"llmsecrets/pkg/domain"
)

var (
	// ErrSurfaceNotFound 选择器当前未匹配到输入区域
	ErrSurfaceNotFound = errors.New("surface not found")
	// ErrSettleTimeout 宿主页面在超时前未确认改写
	ErrSettleTimeout = errors.New("host did not settle")
)

type EventKind string

const (
	// EventKey 输入区域上的回车提交手势
	EventKey EventKind = "key"
	// EventClick 发送按钮点击手势
	EventClick EventKind = "click"
	// EventMutation 文档子树发生变化（页面侧已合并）
	EventMutation EventKind = "mutation"
	// EventReady 新文档加载完成，钩子脚本已重新注入
	EventReady EventKind = "ready"
	// EventCTA 用户点击了提示中的“获取 API Key”
	EventCTA EventKind = "cta"
)

// Event 页面上报的事件
type Event struct {
	Kind    EventKind
	Surface domain.Surface
}

// Gesture 是否为提交手势
func (e Event) Gesture() bool {
	return e.Kind == EventKey || e.Kind == EventClick
}

// Page 宿主页面约定。所有绑定操作幂等。
type Page interface {
	Locate(ctx context.Context) (domain.Surface, error)

	BindKeys(ctx context.Context, s domain.Surface) error
	// HoldKeys 移除回车拦截监听，期间回车被吞掉，宿主不会自行发送
	HoldKeys(ctx context.Context, s domain.Surface) error
	// UnbindKeys 完全移除回车相关监听
	UnbindKeys(ctx context.Context, s domain.Surface) error
	BindSubmitDelegate(ctx context.Context) error
	UnbindSubmitDelegate(ctx context.Context) error
	Watch(ctx context.Context) error
	Unwatch(ctx context.Context) error

	ReadHTML(ctx context.Context, s domain.Surface) (string, error)
	// WriteHTML 替换内容并派发冒泡的 input 事件
	WriteHTML(ctx context.Context, s domain.Surface, html string) error
	// AwaitSettle 等待输入区域的文本等于 want 且发送按钮可用
	AwaitSettle(ctx context.Context, s domain.Surface, want string, timeout time.Duration) error
	// ClickSubmit 以编程方式点击发送按钮，按钮不存在时返回 false
	ClickSubmit(ctx context.Context) (bool, error)

	Events() <-chan Event
}
