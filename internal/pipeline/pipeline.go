package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"llmsecrets/internal/ctxkeys"
	"llmsecrets/internal/host"
	"llmsecrets/internal/logger"
	"llmsecrets/internal/notify"
	"llmsecrets/internal/redactapi"
	"llmsecrets/internal/session"
	"llmsecrets/pkg/domain"

	"github.com/google/uuid"
)

// IdentityResolver 身份与额度解析
type IdentityResolver interface {
	Resolve(ctx context.Context) (domain.Identity, error)
	IncrementUsage(ctx context.Context) (int, error)
}

// Redactor 远端脱敏服务
type Redactor interface {
	Redact(ctx context.Context, req domain.RedactionRequest) (*redactapi.Result, error)
}

// Options 管线数值策略
type Options struct {
	AnonymousLimit int
	SettleDelay    time.Duration
	SettleTimeout  time.Duration
	// FailClosedOnSettle 为 true 时宿主未确认改写则放弃自动发送
	FailClosedOnSettle bool
	SendAttempts       int
	SendRetryDelay     time.Duration
	Sleep              redactapi.SleepFunc
}

// Pipeline 脱敏拦截管线：提取 → 身份 → 额度 → 调用 → 改写 → 重新提交
type Pipeline struct {
	page     host.Page
	ids      IdentityResolver
	api      Redactor
	notifier notify.Notifier
	opts     Options
	log      logger.Logger
}

// New 创建管线
func New(page host.Page, ids IdentityResolver, api Redactor, n notify.Notifier, opts Options, l logger.Logger) *Pipeline {
	if l == nil {
		l = logger.NewNop()
	}
	if opts.Sleep == nil {
		opts.Sleep = redactapi.Sleep
	}
	if opts.SendAttempts < 1 {
		opts.SendAttempts = 1
	}
	return &Pipeline{page: page, ids: ids, api: api, notifier: n, opts: opts, log: l}
}

// run 单次拦截周期
type run struct {
	state State
	log   logger.Logger
}

func (r *run) to(s State) {
	r.log.Debug("状态切换", "from", r.state, "to", s)
	r.state = s
}

// Intercept 处理一次提交手势。已有周期在进行时直接丢弃。
// 任意终态都会清除会话标志并在当前输入区域上恢复监听。
func (p *Pipeline) Intercept(ctx context.Context, sess *session.Session, surf domain.Surface) domain.Outcome {
	if !sess.Begin() {
		p.log.Debug("拦截进行中，丢弃提交手势", "target", string(sess.Target()))
		return domain.Outcome{Kind: domain.OutcomeDropped}
	}

	traceID := uuid.NewString()
	ctx = ctxkeys.WithTraceID(ctx, traceID)
	r := &run{state: StateIdle, log: p.log.With("traceId", traceID, "target", string(sess.Target()))}
	start := time.Now()

	defer func() {
		p.restore(context.WithoutCancel(ctx), r, sess, surf)
		sess.End()
		r.to(StateIdle)
	}()

	if err := p.page.HoldKeys(ctx, surf); err != nil {
		r.log.Err(err, "暂停输入监听失败")
	}
	sess.Unbind()

	out := p.process(ctx, r, surf)
	if out.Err != nil {
		r.log.Warn("拦截周期结束", "outcome", out.Kind, "error", out.Err.Error(), "duration", time.Since(start).String())
	} else {
		r.log.Info("拦截周期结束", "outcome", out.Kind, "duration", time.Since(start).String())
	}
	return out
}

func (p *Pipeline) process(ctx context.Context, r *run, surf domain.Surface) domain.Outcome {
	r.to(StateExtracting)
	fragment, err := p.page.ReadHTML(ctx, surf)
	if err != nil {
		return p.fallback(ctx, r, fmt.Errorf("读取输入内容: %w", err), ptr(errorNotice(msgExtract)))
	}
	text := host.Flatten(fragment)
	if text == "" {
		r.log.Warn("没有需要脱敏的文本，直接发送")
		return p.fallback(ctx, r, nil, nil)
	}

	p.notifier.Loading(ctx, true)
	loading := true
	stopLoading := func() {
		if loading {
			p.notifier.Loading(ctx, false)
			loading = false
		}
	}
	defer stopLoading()

	r.to(StateResolvingIdentity)
	id, err := p.ids.Resolve(ctx)
	if err != nil || id == nil {
		stopLoading()
		return p.fallback(ctx, r, errors.Join(domain.ErrIdentity, err), ptr(errorNotice(msgIdentity)))
	}

	if anon, ok := id.(domain.AnonymousIdentity); ok {
		r.to(StateQuotaCheck)
		if anon.UsageCount >= p.opts.AnonymousLimit {
			stopLoading()
			r.log.Info("匿名额度已用尽，跳过脱敏", "count", anon.UsageCount, "limit", p.opts.AnonymousLimit)
			return p.fallback(ctx, r, domain.ErrQuotaExceeded, ptr(localLimitNotice(p.opts.AnonymousLimit)))
		}
	}

	r.to(StateCalling)
	res, err := p.api.Redact(ctx, domain.RedactionRequest{Text: text, Identity: id})
	stopLoading()
	switch {
	case err != nil:
		return p.fallback(ctx, r, fmt.Errorf("%w: %v", domain.ErrNetwork, err), ptr(errorNotice(msgNetwork)))
	case res.Forbidden():
		return p.fallback(ctx, r, fmt.Errorf("%w: HTTP 403", domain.ErrQuotaExceeded), ptr(forbiddenNotice(id, p.opts.AnonymousLimit)))
	case !res.OK():
		return p.fallback(ctx, r, fmt.Errorf("%w: %s", domain.ErrNetwork, res.Status), ptr(httpErrorNotice(res.StatusCode)))
	}
	redacted := res.RedactedText()
	if redacted == "" {
		return p.fallback(ctx, r, domain.ErrMalformedResponse, ptr(errorNotice(msgMalformed)))
	}

	r.to(StateRewriting)
	if err := p.page.WriteHTML(ctx, surf, host.Format(redacted)); err != nil {
		return p.fallback(ctx, r, fmt.Errorf("改写输入内容: %w", err), ptr(errorNotice(msgRewrite)))
	}
	if err := p.settle(ctx, r, surf, redacted); err != nil {
		p.notifier.Notify(ctx, errorNotice(msgSettleFailed))
		return domain.Outcome{Kind: domain.OutcomeGaveUp, Err: err}
	}

	if _, ok := id.(domain.AnonymousIdentity); ok {
		count, err := p.ids.IncrementUsage(ctx)
		if err != nil {
			r.log.Err(err, "更新匿名使用次数失败")
		} else {
			p.notifier.Notify(ctx, UsageNotice(count, p.opts.AnonymousLimit))
		}
	}

	r.to(StateResubmitting)
	if err := p.resubmit(ctx, r); err != nil {
		p.notifier.Notify(ctx, errorNotice(msgManualSend))
		return domain.Outcome{Kind: domain.OutcomeGaveUp, Err: err}
	}
	return domain.Outcome{Kind: domain.OutcomeRedacted}
}

// settle 固定等待后确认宿主已感知改写；超时按策略放行或失败
func (p *Pipeline) settle(ctx context.Context, r *run, surf domain.Surface, want string) error {
	if err := p.opts.Sleep(ctx, p.opts.SettleDelay); err != nil {
		return err
	}
	err := p.page.AwaitSettle(ctx, surf, want, p.opts.SettleTimeout)
	if err == nil {
		return nil
	}
	if p.opts.FailClosedOnSettle {
		return fmt.Errorf("等待宿主确认改写: %w", err)
	}
	r.log.Warn("宿主未在超时内确认改写，继续发送", "error", err.Error())
	return nil
}

// fallback 以原文提交。cause 为空表示无需脱敏。
func (p *Pipeline) fallback(ctx context.Context, r *run, cause error, notice *domain.Notice) domain.Outcome {
	r.to(StateFallback)
	if notice != nil {
		p.notifier.Notify(ctx, *notice)
	}
	if err := p.resubmit(ctx, r); err != nil {
		p.notifier.Notify(ctx, errorNotice(msgManualSend))
		return domain.Outcome{Kind: domain.OutcomeGaveUp, Err: errors.Join(cause, err)}
	}
	return domain.Outcome{Kind: domain.OutcomeFallback, Err: cause}
}

// resubmit 点击宿主发送按钮，找不到时按固定间隔重试
func (p *Pipeline) resubmit(ctx context.Context, r *run) error {
	for attempt := 1; ; attempt++ {
		ok, err := p.page.ClickSubmit(ctx)
		if err != nil {
			r.log.Err(err, "点击发送按钮失败", "attempt", attempt)
		}
		if ok {
			r.log.Info("已通过程序点击发送按钮")
			return nil
		}
		if attempt >= p.opts.SendAttempts {
			return fmt.Errorf("%w after %d attempts", domain.ErrResubmit, attempt)
		}
		r.log.Warn("未找到发送按钮，准备重试", "attempt", attempt, "max", p.opts.SendAttempts)
		if err := p.opts.Sleep(ctx, p.opts.SendRetryDelay); err != nil {
			return fmt.Errorf("%w: %v", domain.ErrResubmit, err)
		}
	}
}

// restore 在当前（可能已被替换的）输入区域上恢复监听
func (p *Pipeline) restore(ctx context.Context, r *run, sess *session.Session, surf domain.Surface) {
	cur, err := p.page.Locate(ctx)
	if err != nil {
		r.log.Warn("恢复监听时未找到输入区域，沿用原引用", "error", err.Error())
		cur = surf
	}
	if err := p.page.BindKeys(ctx, cur); err != nil {
		r.log.Err(err, "恢复输入监听失败", "gen", cur.Gen)
		return
	}
	sess.Bind(cur)
}

func ptr[T any](v T) *T { return &v }
