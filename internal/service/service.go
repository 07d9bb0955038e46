package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"llmsecrets/internal/browser"
	"llmsecrets/internal/config"
	"llmsecrets/internal/controller"
	"llmsecrets/internal/identity"
	"llmsecrets/internal/logger"
	"llmsecrets/internal/notify"
	"llmsecrets/internal/pipeline"
	"llmsecrets/internal/redactapi"
	"llmsecrets/internal/session"
	"llmsecrets/pkg/domain"

	"golang.org/x/sync/errgroup"
)

// Usage 匿名额度使用情况
type Usage struct {
	Count     int  `json:"count"`
	Limit     int  `json:"limit"`
	HasAPIKey bool `json:"hasApiKey"`
}

// attachment 已附加目标的运行时
type attachment struct {
	page *browser.Page
	ctrl *controller.Controller
}

// Service 管理浏览器目标的附加与本地身份状态
type Service struct {
	cfg      *config.Config
	ids      *identity.Resolver
	api      *redactapi.Client
	sessions *session.Manager
	events   chan domain.Event
	log      logger.Logger

	mu       sync.Mutex
	attached map[domain.TargetID]*attachment
}

// New 创建服务
func New(cfg *config.Config, store identity.Store, l logger.Logger) *Service {
	if l == nil {
		l = logger.NewNop()
	}
	return &Service{
		cfg: cfg,
		ids: identity.NewResolver(store, l),
		api: redactapi.NewClient(redactapi.Options{
			BaseURL:     cfg.APIBaseURL(),
			MaxAttempts: cfg.Redaction.FetchAttempts,
			RetryDelay:  cfg.Redaction.RetryDelay,
			Timeout:     cfg.Redaction.RequestTimeout,
			Logger:      l,
		}),
		sessions: session.NewManager(l),
		events:   make(chan domain.Event, 256),
		log:      l,
		attached: make(map[domain.TargetID]*attachment),
	}
}

// ListTargets 列出浏览器中的页面目标
func (s *Service) ListTargets(ctx context.Context) ([]domain.TargetInfo, error) {
	return browser.ListTargets(ctx, s.cfg.Browser.DevToolsURL)
}

// AttachTarget 附加到目标页面；id 为空时选择第一个匹配宿主地址的页面
func (s *Service) AttachTarget(ctx context.Context, id domain.TargetID) (domain.TargetInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id != "" {
		if a, ok := s.attached[id]; ok {
			return a.page.Info(), nil
		}
	}

	page, err := browser.Connect(ctx, browser.Options{
		DevToolsURL:     s.cfg.Browser.DevToolsURL,
		TargetID:        id,
		TargetURL:       s.cfg.Browser.TargetURL,
		SurfaceSelector: s.cfg.Browser.SurfaceSelector,
		SubmitSelector:  s.cfg.Browser.SubmitSelector,
		Logger:          s.log,
	})
	if err != nil {
		return domain.TargetInfo{}, err
	}
	info := page.Info()
	if a, ok := s.attached[info.ID]; ok {
		_ = page.Close()
		return a.page.Info(), nil
	}

	sess, _ := s.sessions.Acquire(info.ID)
	l := s.log.With("target", string(info.ID))
	hub := notify.NewHub(info.ID, page, s.cfg.Redaction.NoticeTTL, s.events, l)
	pipe := pipeline.New(page, s.ids, s.api, hub, s.pipelineOptions(), l)
	ctrl := controller.New(page, pipe, sess, hub, page, controller.Options{
		AttachAttempts: s.cfg.Browser.AttachAttempts,
		AttachDelay:    s.cfg.Browser.AttachDelay,
		DebounceDelay:  s.cfg.Browser.DebounceDelay,
		SettingsURL:    s.cfg.APIBaseURL() + "/settings",
	}, l)

	if err := ctrl.Attach(ctx); err != nil {
		_ = page.Close()
		s.sessions.Delete(info.ID)
		return domain.TargetInfo{}, err
	}
	s.attached[info.ID] = &attachment{page: page, ctrl: ctrl}
	return info, nil
}

func (s *Service) pipelineOptions() pipeline.Options {
	r := s.cfg.Redaction
	return pipeline.Options{
		AnonymousLimit:     r.AnonymousLimit,
		SettleDelay:        r.SettleDelay,
		SettleTimeout:      r.SettleTimeout,
		FailClosedOnSettle: r.SettlePolicy == config.SettleFail,
		SendAttempts:       r.SendAttempts,
		SendRetryDelay:     r.SendRetryDelay,
	}
}

// DetachTarget 卸载监听并断开目标
func (s *Service) DetachTarget(ctx context.Context, id domain.TargetID) error {
	s.mu.Lock()
	a, ok := s.attached[id]
	if ok {
		delete(s.attached, id)
	}
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("目标 %s 未附加", id)
	}
	return s.detach(ctx, id, a)
}

func (s *Service) detach(ctx context.Context, id domain.TargetID, a *attachment) error {
	err := a.ctrl.Detach(ctx)
	err = errors.Join(err, a.page.Close())
	s.sessions.Delete(id)
	return err
}

// Attached 当前已附加的目标
func (s *Service) Attached() []domain.TargetInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.TargetInfo, 0, len(s.attached))
	for _, a := range s.attached {
		out = append(out, a.page.Info())
	}
	return out
}

// Close 并发卸载所有目标
func (s *Service) Close(ctx context.Context) error {
	s.mu.Lock()
	all := s.attached
	s.attached = make(map[domain.TargetID]*attachment)
	s.mu.Unlock()

	if busy := s.sessions.Busy(); len(busy) > 0 {
		s.log.Info("等待进行中的拦截结束", "targets", busy)
	}
	g, gctx := errgroup.WithContext(ctx)
	for id, a := range all {
		g.Go(func() error {
			return s.detach(gctx, id, a)
		})
	}
	return g.Wait()
}

// SetAPIKey 保存 API Key
func (s *Service) SetAPIKey(ctx context.Context, key string) error {
	if err := s.ids.SetAPIKey(ctx, key); err != nil {
		return err
	}
	s.log.Info("API Key 已保存")
	return nil
}

// ClearAPIKey 删除 API Key
func (s *Service) ClearAPIKey(ctx context.Context) error {
	if err := s.ids.ClearAPIKey(ctx); err != nil {
		return err
	}
	s.log.Info("API Key 已删除")
	return nil
}

// APIKey 返回已保存的 API Key
func (s *Service) APIKey(ctx context.Context) (string, bool, error) {
	return s.ids.APIKey(ctx)
}

// Usage 返回匿名额度使用情况
func (s *Service) Usage(ctx context.Context) (Usage, error) {
	n, err := s.ids.Usage(ctx)
	if err != nil {
		return Usage{}, err
	}
	_, hasKey, err := s.ids.APIKey(ctx)
	if err != nil {
		return Usage{}, err
	}
	return Usage{Count: n, Limit: s.cfg.Redaction.AnonymousLimit, HasAPIKey: hasKey}, nil
}

// DeviceID 返回匿名设备 ID，不存在时生成
func (s *Service) DeviceID(ctx context.Context) (string, error) {
	return s.ids.DeviceID(ctx)
}

// SubscribeEvents 订阅拦截事件
func (s *Service) SubscribeEvents() <-chan domain.Event {
	return s.events
}
