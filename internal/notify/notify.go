package notify

import (
	"context"
	"time"

	"llmsecrets/internal/ctxkeys"
	"llmsecrets/internal/logger"
	"llmsecrets/pkg/domain"
)

// Notifier 管线使用的状态提示出口
type Notifier interface {
	Notify(ctx context.Context, n domain.Notice)
	Loading(ctx context.Context, on bool)
}

// Toaster 在页面上渲染提示
type Toaster interface {
	Toast(ctx context.Context, n domain.Notice, ttl time.Duration) error
	Loading(ctx context.Context, on bool) error
}

// Hub 将提示同时渲染到页面、写入日志并发布为事件
type Hub struct {
	target  domain.TargetID
	toaster Toaster
	ttl     time.Duration
	events  chan<- domain.Event
	log     logger.Logger
}

// NewHub 创建提示中心，toaster 与 events 均可为 nil
func NewHub(target domain.TargetID, toaster Toaster, ttl time.Duration, events chan<- domain.Event, l logger.Logger) *Hub {
	if l == nil {
		l = logger.NewNop()
	}
	return &Hub{target: target, toaster: toaster, ttl: ttl, events: events, log: l}
}

// Notify 展示提示；渲染失败只记录日志，不影响调用方
func (h *Hub) Notify(ctx context.Context, n domain.Notice) {
	h.log.Info("展示提示", "kind", n.Kind, "message", n.Message, "traceId", ctxkeys.TraceID(ctx))
	if h.toaster != nil {
		if err := h.toaster.Toast(ctx, n, h.ttl); err != nil {
			h.log.Err(err, "渲染提示失败", "kind", n.Kind)
		}
	}
	h.Publish(domain.Event{Type: "notice", TraceID: ctxkeys.TraceID(ctx), Notice: &n})
}

// Loading 切换加载指示
func (h *Hub) Loading(ctx context.Context, on bool) {
	if h.toaster == nil {
		return
	}
	if err := h.toaster.Loading(ctx, on); err != nil {
		h.log.Err(err, "切换加载指示失败", "on", on)
	}
}

// Publish 非阻塞地发布事件，订阅方来不及消费时丢弃
func (h *Hub) Publish(evt domain.Event) {
	if h.events == nil {
		return
	}
	if evt.Target == "" {
		evt.Target = h.target
	}
	evt.Stamp()
	select {
	case h.events <- evt:
	default:
	}
}
