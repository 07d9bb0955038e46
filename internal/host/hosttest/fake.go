// Package hosttest 提供内存中的 host.Page 实现，用于测试管线与控制器
package hosttest

import (
	"context"
	"sync"
	"time"

	"llmsecrets/internal/host"
	"llmsecrets/pkg/domain"
)

// Page 模拟宿主页面
type Page struct {
	mu sync.Mutex

	gen      int64
	html     string
	bound    map[int64]bool
	held     map[int64]bool
	delegate bool
	watching bool

	// 前 missingLocates 次 Locate 返回未找到
	missingLocates int
	// 前 missingSubmits 次 ClickSubmit 返回按钮不存在
	missingSubmits int

	readErr   error
	writeErr  error
	settleErr error

	locates   int
	clicks    int
	submitted []string
	written   []string
	bindCalls int

	events chan host.Event
}

// NewPage 创建已渲染输入区域的页面
func NewPage(html string) *Page {
	return &Page{
		gen:    1,
		html:   html,
		bound:  make(map[int64]bool),
		held:   make(map[int64]bool),
		events: make(chan host.Event, 64),
	}
}

// SetHTML 模拟用户输入
func (p *Page) SetHTML(html string) {
	p.mu.Lock()
	p.html = html
	p.mu.Unlock()
}

// Replace 模拟宿主重新渲染输入区域，返回新的引用
func (p *Page) Replace() domain.Surface {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.gen++
	return domain.Surface{Gen: p.gen}
}

// Current 当前输入区域引用
func (p *Page) Current() domain.Surface {
	p.mu.Lock()
	defer p.mu.Unlock()
	return domain.Surface{Gen: p.gen}
}

// MissLocates 让接下来 n 次 Locate 失败
func (p *Page) MissLocates(n int) {
	p.mu.Lock()
	p.missingLocates = n
	p.mu.Unlock()
}

// MissSubmits 让接下来 n 次 ClickSubmit 找不到按钮
func (p *Page) MissSubmits(n int) {
	p.mu.Lock()
	p.missingSubmits = n
	p.mu.Unlock()
}

// FailRead 设置 ReadHTML 错误
func (p *Page) FailRead(err error) {
	p.mu.Lock()
	p.readErr = err
	p.mu.Unlock()
}

// FailWrite 设置 WriteHTML 错误
func (p *Page) FailWrite(err error) {
	p.mu.Lock()
	p.writeErr = err
	p.mu.Unlock()
}

// FailSettle 设置 AwaitSettle 错误
func (p *Page) FailSettle(err error) {
	p.mu.Lock()
	p.settleErr = err
	p.mu.Unlock()
}

// Emit 模拟页面上报事件
func (p *Page) Emit(ev host.Event) {
	p.events <- ev
}

// Submitted 每次成功点击发送时输入区域的内容
func (p *Page) Submitted() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.submitted...)
}

// Written 每次 WriteHTML 写入的内容
func (p *Page) Written() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.written...)
}

// Clicks ClickSubmit 调用次数
func (p *Page) Clicks() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.clicks
}

// Locates Locate 调用次数
func (p *Page) Locates() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.locates
}

// KeysBound gen 对应的输入区域上是否挂载了回车监听
func (p *Page) KeysBound(gen int64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.bound[gen]
}

// KeysHeld gen 对应的输入区域是否处于吞掉回车的状态
func (p *Page) KeysHeld(gen int64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.held[gen]
}

// BindCalls BindKeys 调用次数
func (p *Page) BindCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.bindCalls
}

// DelegateBound 点击委托是否挂载
func (p *Page) DelegateBound() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.delegate
}

// Watching 变更观察是否开启
func (p *Page) Watching() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.watching
}

func (p *Page) Locate(context.Context) (domain.Surface, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.locates++
	if p.missingLocates > 0 {
		p.missingLocates--
		return domain.Surface{}, host.ErrSurfaceNotFound
	}
	return domain.Surface{Gen: p.gen}, nil
}

func (p *Page) BindKeys(_ context.Context, s domain.Surface) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.bindCalls++
	p.bound[s.Gen] = true
	delete(p.held, s.Gen)
	return nil
}

func (p *Page) HoldKeys(_ context.Context, s domain.Surface) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.bound, s.Gen)
	p.held[s.Gen] = true
	return nil
}

func (p *Page) UnbindKeys(_ context.Context, s domain.Surface) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.bound, s.Gen)
	delete(p.held, s.Gen)
	return nil
}

func (p *Page) BindSubmitDelegate(context.Context) error {
	p.mu.Lock()
	p.delegate = true
	p.mu.Unlock()
	return nil
}

func (p *Page) UnbindSubmitDelegate(context.Context) error {
	p.mu.Lock()
	p.delegate = false
	p.mu.Unlock()
	return nil
}

func (p *Page) Watch(context.Context) error {
	p.mu.Lock()
	p.watching = true
	p.mu.Unlock()
	return nil
}

func (p *Page) Unwatch(context.Context) error {
	p.mu.Lock()
	p.watching = false
	p.mu.Unlock()
	return nil
}

func (p *Page) ReadHTML(context.Context, domain.Surface) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.html, p.readErr
}

func (p *Page) WriteHTML(_ context.Context, _ domain.Surface, html string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.writeErr != nil {
		return p.writeErr
	}
	p.html = html
	p.written = append(p.written, html)
	return nil
}

func (p *Page) AwaitSettle(context.Context, domain.Surface, string, time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.settleErr
}

func (p *Page) ClickSubmit(context.Context) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.clicks++
	if p.missingSubmits > 0 {
		p.missingSubmits--
		return false, nil
	}
	p.submitted = append(p.submitted, p.html)
	return true, nil
}

func (p *Page) Events() <-chan host.Event { return p.events }

var _ host.Page = (*Page)(nil)
