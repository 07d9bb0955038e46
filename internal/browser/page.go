package browser

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"llmsecrets/internal/host"
	"llmsecrets/internal/logger"
	"llmsecrets/pkg/domain"

	"github.com/mafredri/cdp"
	"github.com/mafredri/cdp/devtool"
	"github.com/mafredri/cdp/protocol/page"
	"github.com/mafredri/cdp/protocol/runtime"
	"github.com/mafredri/cdp/protocol/target"
	"github.com/mafredri/cdp/rpcc"
	"github.com/tidwall/gjson"
)

// Options 连接配置
type Options struct {
	DevToolsURL     string
	TargetID        domain.TargetID
	TargetURL       string
	SurfaceSelector string
	SubmitSelector  string
	Logger          logger.Logger
}

// Page 通过 CDP 驱动的宿主页面，实现 host.Page 与 notify.Toaster
type Page struct {
	info     domain.TargetInfo
	conn     *rpcc.Conn
	client   *cdp.Client
	ctx      context.Context
	cancel   context.CancelFunc
	events   chan host.Event
	scriptID page.ScriptIdentifier
	log      logger.Logger
	once     sync.Once
}

// ListTargets 列出浏览器中的页面目标
func ListTargets(ctx context.Context, devtoolsURL string) ([]domain.TargetInfo, error) {
	targets, err := devtool.New(devtoolsURL).List(ctx)
	if err != nil {
		return nil, fmt.Errorf("获取目标列表: %w", err)
	}
	out := make([]domain.TargetInfo, 0, len(targets))
	for _, t := range targets {
		if t.Type != devtool.Page {
			continue
		}
		out = append(out, ToTargetInfo(t))
	}
	return out, nil
}

// pickTarget 优先按 ID 选择，否则选第一个地址匹配的页面
func pickTarget(targets []*devtool.Target, id domain.TargetID, pattern string) *devtool.Target {
	for _, t := range targets {
		if t.Type != devtool.Page {
			continue
		}
		if id != "" {
			if domain.TargetID(t.ID) == id {
				return t
			}
			continue
		}
		if MatchURL(t.URL, pattern) {
			return t
		}
	}
	return nil
}

// Connect 连接目标页面，注册绑定并注入钩子脚本
func Connect(ctx context.Context, opts Options) (*Page, error) {
	l := opts.Logger
	if l == nil {
		l = logger.NewNop()
	}

	targets, err := devtool.New(opts.DevToolsURL).List(ctx)
	if err != nil {
		return nil, fmt.Errorf("获取目标列表: %w", err)
	}
	sel := pickTarget(targets, opts.TargetID, opts.TargetURL)
	if sel == nil {
		return nil, fmt.Errorf("没有匹配 %q 的页面目标", opts.TargetURL)
	}

	conn, err := rpcc.DialContext(ctx, sel.WebSocketDebuggerURL)
	if err != nil {
		return nil, fmt.Errorf("连接目标 %s: %w", sel.ID, err)
	}

	pctx, cancel := context.WithCancel(context.Background())
	p := &Page{
		info:   ToTargetInfo(sel),
		conn:   conn,
		client: cdp.NewClient(conn),
		ctx:    pctx,
		cancel: cancel,
		events: make(chan host.Event, 32),
		log:    l.With("target", sel.ID),
	}
	if err := p.install(ctx, hookScript(opts.SurfaceSelector, opts.SubmitSelector)); err != nil {
		_ = p.Close()
		return nil, err
	}
	p.log.Info("已附加到页面", "url", sel.URL, "title", sel.Title)
	return p, nil
}

func (p *Page) install(ctx context.Context, script string) error {
	if err := p.client.Runtime.Enable(ctx); err != nil {
		return fmt.Errorf("启用 Runtime: %w", err)
	}
	if err := p.client.Page.Enable(ctx); err != nil {
		return fmt.Errorf("启用 Page: %w", err)
	}

	// 先订阅再注册绑定，避免丢失脚本注入时发出的 ready
	calls, err := p.client.Runtime.BindingCalled(p.ctx)
	if err != nil {
		return fmt.Errorf("订阅绑定调用: %w", err)
	}
	if err := p.client.Runtime.AddBinding(ctx, runtime.NewAddBindingArgs(bindingName)); err != nil {
		_ = calls.Close()
		return fmt.Errorf("注册绑定: %w", err)
	}
	reply, err := p.client.Page.AddScriptToEvaluateOnNewDocument(ctx, page.NewAddScriptToEvaluateOnNewDocumentArgs(script))
	if err != nil {
		_ = calls.Close()
		return fmt.Errorf("注册新文档脚本: %w", err)
	}
	p.scriptID = reply.Identifier

	go p.consume(calls)

	if _, err := p.eval(ctx, script); err != nil {
		return fmt.Errorf("注入钩子脚本: %w", err)
	}
	return nil
}

// consume 持续接收页面绑定调用并转换为事件
func (p *Page) consume(calls runtime.BindingCalledClient) {
	defer close(p.events)
	defer calls.Close()

	for {
		ev, err := calls.Recv()
		if err != nil {
			if p.ctx.Err() == nil {
				p.log.Err(err, "接收页面事件失败")
			}
			return
		}
		if ev.Name != bindingName {
			continue
		}
		out, ok := ToHostEvent(ev.Payload)
		if !ok {
			p.log.Warn("无法解析页面事件", "payload", ev.Payload)
			continue
		}
		select {
		case p.events <- out:
		case <-p.ctx.Done():
			return
		}
	}
}

// Info 已附加的目标
func (p *Page) Info() domain.TargetInfo { return p.info }

// Events 页面事件流，连接关闭后通道关闭
func (p *Page) Events() <-chan host.Event { return p.events }

// Close 移除新文档脚本并断开连接
func (p *Page) Close() error {
	var err error
	p.once.Do(func() {
		if p.scriptID != "" {
			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			_ = p.client.Page.RemoveScriptToEvaluateOnNewDocument(ctx, page.NewRemoveScriptToEvaluateOnNewDocumentArgs(p.scriptID))
			cancel()
		}
		p.cancel()
		err = p.conn.Close()
	})
	return err
}

// OpenTab 在新标签页打开地址
func (p *Page) OpenTab(ctx context.Context, url string) error {
	_, err := p.client.Target.CreateTarget(ctx, target.NewCreateTargetArgs(url))
	return err
}

func (p *Page) eval(ctx context.Context, expr string) (gjson.Result, error) {
	args := runtime.NewEvaluateArgs(expr).SetAwaitPromise(true).SetReturnByValue(true)
	reply, err := p.client.Runtime.Evaluate(ctx, args)
	if err != nil {
		return gjson.Result{}, err
	}
	if d := reply.ExceptionDetails; d != nil {
		msg := d.Text
		if d.Exception != nil && d.Exception.Description != nil {
			msg = *d.Exception.Description
		}
		return gjson.Result{}, errors.New(strings.TrimSpace(msg))
	}
	return gjson.ParseBytes(reply.Result.Value), nil
}

func (p *Page) call(ctx context.Context, method string, args ...any) (gjson.Result, error) {
	expr, err := callExpr(method, args...)
	if err != nil {
		return gjson.Result{}, err
	}
	res, err := p.eval(ctx, expr)
	if err != nil {
		return gjson.Result{}, fmt.Errorf("%s: %w", method, err)
	}
	return res, nil
}

func (p *Page) callTrue(ctx context.Context, method string, args ...any) error {
	res, err := p.call(ctx, method, args...)
	if err != nil {
		return err
	}
	if !res.Bool() {
		return fmt.Errorf("%s: %w", method, host.ErrSurfaceNotFound)
	}
	return nil
}

func (p *Page) Locate(ctx context.Context) (domain.Surface, error) {
	res, err := p.call(ctx, "locate")
	if err != nil {
		return domain.Surface{}, err
	}
	s := domain.Surface{Gen: res.Int()}
	if !s.Valid() {
		return domain.Surface{}, host.ErrSurfaceNotFound
	}
	return s, nil
}

func (p *Page) BindKeys(ctx context.Context, s domain.Surface) error {
	return p.callTrue(ctx, "bindKeys", s.Gen)
}

func (p *Page) HoldKeys(ctx context.Context, s domain.Surface) error {
	return p.callTrue(ctx, "holdKeys", s.Gen)
}

func (p *Page) UnbindKeys(ctx context.Context, s domain.Surface) error {
	return p.callTrue(ctx, "unbindKeys", s.Gen)
}

func (p *Page) BindSubmitDelegate(ctx context.Context) error {
	return p.callTrue(ctx, "bindDelegate")
}

func (p *Page) UnbindSubmitDelegate(ctx context.Context) error {
	return p.callTrue(ctx, "unbindDelegate")
}

func (p *Page) Watch(ctx context.Context) error {
	return p.callTrue(ctx, "watch")
}

func (p *Page) Unwatch(ctx context.Context) error {
	return p.callTrue(ctx, "unwatch")
}

func (p *Page) ReadHTML(ctx context.Context, s domain.Surface) (string, error) {
	res, err := p.call(ctx, "read", s.Gen)
	if err != nil {
		return "", err
	}
	return res.String(), nil
}

func (p *Page) WriteHTML(ctx context.Context, s domain.Surface, html string) error {
	return p.callTrue(ctx, "write", s.Gen, html)
}

func (p *Page) AwaitSettle(ctx context.Context, s domain.Surface, want string, timeout time.Duration) error {
	// 页面侧自行计时，这里多留一秒给协议往返
	ctx, cancel := context.WithTimeout(ctx, timeout+time.Second)
	defer cancel()
	res, err := p.call(ctx, "settle", s.Gen, want, timeout.Milliseconds())
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return host.ErrSettleTimeout
		}
		return err
	}
	if !res.Bool() {
		return host.ErrSettleTimeout
	}
	return nil
}

func (p *Page) ClickSubmit(ctx context.Context) (bool, error) {
	res, err := p.call(ctx, "click")
	if err != nil {
		return false, err
	}
	return res.Bool(), nil
}

// Toast 在页面右上角渲染提示
func (p *Page) Toast(ctx context.Context, n domain.Notice, ttl time.Duration) error {
	_, err := p.call(ctx, "toast", string(n.Kind), n.Message, ttl.Milliseconds(), n.CTA)
	return err
}

// Loading 切换加载遮罩
func (p *Page) Loading(ctx context.Context, on bool) error {
	_, err := p.call(ctx, "loading", on)
	return err
}

var _ host.Page = (*Page)(nil)
