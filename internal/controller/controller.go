// Package controller 负责把管线挂载到宿主页面：发现输入区域、绑定手势、
// 跟随宿主重新渲染并在页面生命周期结束时解绑
package controller

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"llmsecrets/internal/host"
	"llmsecrets/internal/logger"
	"llmsecrets/internal/notify"
	"llmsecrets/internal/redactapi"
	"llmsecrets/internal/session"
	"llmsecrets/pkg/domain"

	"github.com/bep/debounce"
)

const msgDiscovery = "Textarea not found. Please try again."

// Interceptor 处理单次提交手势
type Interceptor interface {
	Intercept(ctx context.Context, sess *session.Session, surf domain.Surface) domain.Outcome
}

// Notifier 提示与事件出口
type Notifier interface {
	notify.Notifier
	Publish(evt domain.Event)
}

// TabOpener 打开新标签页，可选
type TabOpener interface {
	OpenTab(ctx context.Context, url string) error
}

// Options 挂载策略
type Options struct {
	AttachAttempts int
	AttachDelay    time.Duration
	DebounceDelay  time.Duration
	// SettingsURL 提示中 CTA 打开的地址
	SettingsURL string
	Sleep       redactapi.SleepFunc
}

// Controller 单个页面的挂载控制器
type Controller struct {
	page     host.Page
	pipe     Interceptor
	sess     *session.Session
	notifier Notifier
	opener   TabOpener
	opts     Options
	log      logger.Logger

	debounced func(func())

	mu       sync.Mutex
	attached bool
	cancel   context.CancelFunc
	done     chan struct{}
	inflight sync.WaitGroup
}

// New 创建控制器，opener 可为 nil
func New(page host.Page, pipe Interceptor, sess *session.Session, n Notifier, opener TabOpener, opts Options, l logger.Logger) *Controller {
	if l == nil {
		l = logger.NewNop()
	}
	if opts.AttachAttempts < 1 {
		opts.AttachAttempts = 1
	}
	if opts.DebounceDelay <= 0 {
		opts.DebounceDelay = 500 * time.Millisecond
	}
	if opts.Sleep == nil {
		opts.Sleep = redactapi.Sleep
	}
	return &Controller{
		page:      page,
		pipe:      pipe,
		sess:      sess,
		notifier:  n,
		opener:    opener,
		opts:      opts,
		log:       l.With("target", string(sess.Target())),
		debounced: debounce.New(opts.DebounceDelay),
	}
}

// Session 控制器持有的会话
func (c *Controller) Session() *session.Session {
	return c.sess
}

// Attached 是否已挂载
func (c *Controller) Attached() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.attached
}

// Attach 发现输入区域并挂载监听，重复调用无副作用
func (c *Controller) Attach(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.attached {
		return nil
	}

	surf, err := c.discover(ctx)
	if err != nil {
		c.notifier.Notify(ctx, domain.Notice{Kind: domain.NoticeError, Message: msgDiscovery})
		return err
	}
	if err := c.bind(ctx, surf); err != nil {
		return err
	}

	loopCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	c.cancel = cancel
	c.done = make(chan struct{})
	c.attached = true
	go c.loop(loopCtx, c.done)

	c.log.Info("已挂载到输入区域", "gen", surf.Gen)
	c.notifier.Publish(domain.Event{Type: "attached"})
	return nil
}

// Detach 移除全部监听并等待进行中的拦截结束
func (c *Controller) Detach(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.attached {
		return nil
	}
	c.attached = false
	c.cancel()
	<-c.done

	waited := make(chan struct{})
	go func() {
		c.inflight.Wait()
		close(waited)
	}()
	select {
	case <-waited:
	case <-ctx.Done():
		return fmt.Errorf("等待进行中的拦截: %w", ctx.Err())
	}

	var errs []error
	if surf := c.sess.Surface(); surf.Valid() {
		errs = append(errs, c.page.UnbindKeys(ctx, surf))
	}
	errs = append(errs,
		c.page.UnbindSubmitDelegate(ctx),
		c.page.Unwatch(ctx),
	)
	c.sess.Unbind()

	c.log.Info("已从页面卸载")
	c.notifier.Publish(domain.Event{Type: "detached"})
	return errors.Join(errs...)
}

func (c *Controller) discover(ctx context.Context) (domain.Surface, error) {
	var lastErr error
	for attempt := 1; attempt <= c.opts.AttachAttempts; attempt++ {
		surf, err := c.page.Locate(ctx)
		if err == nil {
			return surf, nil
		}
		lastErr = err
		if !errors.Is(err, host.ErrSurfaceNotFound) {
			c.log.Err(err, "查找输入区域失败", "attempt", attempt)
		}
		if attempt < c.opts.AttachAttempts {
			if err := c.opts.Sleep(ctx, c.opts.AttachDelay); err != nil {
				return domain.Surface{}, errors.Join(domain.ErrDiscovery, err)
			}
		}
	}
	c.log.Warn("未找到输入区域", "attempts", c.opts.AttachAttempts)
	return domain.Surface{}, fmt.Errorf("%w: %d 次尝试后仍未找到: %v", domain.ErrDiscovery, c.opts.AttachAttempts, lastErr)
}

func (c *Controller) bind(ctx context.Context, surf domain.Surface) error {
	if err := c.page.BindSubmitDelegate(ctx); err != nil {
		return fmt.Errorf("挂载发送按钮委托: %w", err)
	}
	if err := c.page.Watch(ctx); err != nil {
		return fmt.Errorf("开启变更观察: %w", err)
	}
	if err := c.page.BindKeys(ctx, surf); err != nil {
		return fmt.Errorf("挂载回车监听: %w", err)
	}
	c.sess.Bind(surf)
	return nil
}

func (c *Controller) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	events := c.page.Events()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				c.log.Warn("页面事件流已关闭")
				return
			}
			c.handle(ctx, ev)
		}
	}
}

func (c *Controller) handle(ctx context.Context, ev host.Event) {
	switch {
	case ev.Gesture():
		c.onGesture(ctx, ev)
	case ev.Kind == host.EventMutation:
		c.debounced(func() { c.rebind(ctx) })
	case ev.Kind == host.EventReady:
		c.inflight.Add(1)
		go func() {
			defer c.inflight.Done()
			c.reinit(ctx)
		}()
	case ev.Kind == host.EventCTA:
		c.openSettings(ctx)
	default:
		c.log.Debug("忽略未知页面事件", "kind", ev.Kind)
	}
}

func (c *Controller) onGesture(ctx context.Context, ev host.Event) {
	if c.sess.Redacting() {
		c.log.Debug("拦截进行中，丢弃提交手势", "kind", ev.Kind)
		c.notifier.Publish(domain.Event{Type: "outcome", Outcome: domain.OutcomeDropped})
		return
	}
	surf := ev.Surface
	if !surf.Valid() {
		if cur, err := c.page.Locate(ctx); err == nil {
			surf = cur
		} else {
			surf = c.sess.Surface()
		}
	}
	if !surf.Valid() {
		c.log.Warn("提交手势没有可用的输入区域")
		return
	}

	c.inflight.Add(1)
	go func() {
		defer c.inflight.Done()
		// 拦截一旦开始就运行到终态，不随控制器卸载取消
		out := c.pipe.Intercept(context.WithoutCancel(ctx), c.sess, surf)
		evt := domain.Event{Type: "outcome", Outcome: out.Kind}
		if out.Err != nil {
			evt.Error = out.Err.Error()
		}
		c.notifier.Publish(evt)
	}()
}

// rebind 宿主替换输入区域后把回车监听迁移到新元素上
func (c *Controller) rebind(ctx context.Context) {
	if ctx.Err() != nil || c.sess.Redacting() {
		return
	}
	cur, err := c.page.Locate(ctx)
	if err != nil {
		c.log.Debug("变更后未找到输入区域", "error", err.Error())
		return
	}
	if !c.sess.NeedsRebind(cur) {
		return
	}
	if err := c.page.BindKeys(ctx, cur); err != nil {
		c.log.Err(err, "重新挂载回车监听失败", "gen", cur.Gen)
		return
	}
	c.sess.Bind(cur)
	c.log.Info("输入区域已被替换，重新挂载", "gen", cur.Gen)
}

// reinit 页面导航后脚本重新注入，需要重新发现并挂载
func (c *Controller) reinit(ctx context.Context) {
	surf, err := c.discover(ctx)
	if err != nil {
		if ctx.Err() == nil {
			c.notifier.Notify(ctx, domain.Notice{Kind: domain.NoticeError, Message: msgDiscovery})
		}
		return
	}
	if c.sess.Redacting() {
		return
	}
	if err := c.bind(ctx, surf); err != nil {
		c.log.Err(err, "页面重新加载后挂载失败")
		return
	}
	c.log.Info("页面重新加载，已重新挂载", "gen", surf.Gen)
}

func (c *Controller) openSettings(ctx context.Context) {
	if c.opener == nil || c.opts.SettingsURL == "" {
		c.log.Info("请在浏览器中打开设置页", "url", c.opts.SettingsURL)
		return
	}
	if err := c.opener.OpenTab(ctx, c.opts.SettingsURL); err != nil {
		c.log.Err(err, "打开设置页失败", "url", c.opts.SettingsURL)
	}
}
