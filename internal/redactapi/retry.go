package redactapi

import (
	"context"
	"time"

	"llmsecrets/internal/logger"
)

// SleepFunc 可被上下文打断的等待
type SleepFunc func(ctx context.Context, d time.Duration) error

// Sleep 默认的等待实现
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Retrier 对单次网络调用做固定间隔重试，同一时刻只有一个请求在途
type Retrier struct {
	MaxAttempts int
	Delay       time.Duration
	Sleep       SleepFunc
	Log         logger.Logger
}

// Do 最多尝试 MaxAttempts 次。
// 非最后一次的传输错误或非 2xx 响应会在等待后重试；
// 最后一次的传输错误原样返回，最后一次的非 2xx 响应作为结果返回而不是错误。
func (r Retrier) Do(ctx context.Context, call func(ctx context.Context) (*Result, error)) (*Result, error) {
	attempts := r.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	sleep := r.Sleep
	if sleep == nil {
		sleep = Sleep
	}
	l := r.Log
	if l == nil {
		l = logger.NewNop()
	}

	for attempt := 1; ; attempt++ {
		res, err := call(ctx)
		final := attempt >= attempts
		switch {
		case err != nil && final:
			return nil, err
		case err == nil && (res.OK() || final):
			return res, nil
		case err != nil:
			l.Warn("网络错误，准备重试", "attempt", attempt, "max", attempts, "delay", r.Delay.String(), "error", err)
		default:
			l.Warn("请求未成功，准备重试", "attempt", attempt, "max", attempts, "status", res.StatusCode, "delay", r.Delay.String())
		}
		if err := sleep(ctx, r.Delay); err != nil {
			return nil, err
		}
	}
}
