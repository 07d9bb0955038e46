package controller

import (
	"context"
	"sync"
	"testing"
	"time"

	"llmsecrets/internal/host"
	"llmsecrets/internal/host/hosttest"
	"llmsecrets/internal/session"
	"llmsecrets/pkg/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type recorder struct {
	mu      sync.Mutex
	notices []domain.Notice
	events  []domain.Event
}

func (r *recorder) Notify(_ context.Context, n domain.Notice) {
	r.mu.Lock()
	r.notices = append(r.notices, n)
	r.mu.Unlock()
}

func (r *recorder) Loading(context.Context, bool) {}

func (r *recorder) Publish(evt domain.Event) {
	r.mu.Lock()
	r.events = append(r.events, evt)
	r.mu.Unlock()
}

func (r *recorder) Notices() []domain.Notice {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.Notice(nil), r.notices...)
}

func (r *recorder) Outcomes() []domain.OutcomeKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.OutcomeKind
	for _, e := range r.events {
		if e.Type == "outcome" {
			out = append(out, e.Outcome)
		}
	}
	return out
}

// fakeInterceptor 模拟管线：占用会话直到 release 被关闭
type fakeInterceptor struct {
	mu       sync.Mutex
	surfaces []domain.Surface
	started  chan struct{}
	release  chan struct{}
}

func newFakeInterceptor(block bool) *fakeInterceptor {
	f := &fakeInterceptor{started: make(chan struct{}, 16), release: make(chan struct{})}
	if !block {
		close(f.release)
	}
	return f
}

func (f *fakeInterceptor) Intercept(_ context.Context, sess *session.Session, surf domain.Surface) domain.Outcome {
	if !sess.Begin() {
		return domain.Outcome{Kind: domain.OutcomeDropped}
	}
	defer sess.End()
	f.mu.Lock()
	f.surfaces = append(f.surfaces, surf)
	f.mu.Unlock()
	f.started <- struct{}{}
	<-f.release
	return domain.Outcome{Kind: domain.OutcomeRedacted}
}

func (f *fakeInterceptor) Surfaces() []domain.Surface {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.Surface(nil), f.surfaces...)
}

type fakeOpener struct {
	mu   sync.Mutex
	urls []string
}

func (o *fakeOpener) OpenTab(_ context.Context, url string) error {
	o.mu.Lock()
	o.urls = append(o.urls, url)
	o.mu.Unlock()
	return nil
}

func (o *fakeOpener) URLs() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]string(nil), o.urls...)
}

type fixture struct {
	page   *hosttest.Page
	pipe   *fakeInterceptor
	rec    *recorder
	opener *fakeOpener
	ctrl   *Controller
}

func newFixture(t *testing.T, block bool) *fixture {
	t.Helper()
	f := &fixture{
		page:   hosttest.NewPage("<p>hello</p>"),
		pipe:   newFakeInterceptor(block),
		rec:    &recorder{},
		opener: &fakeOpener{},
	}
	f.ctrl = New(f.page, f.pipe, session.New("tab-1"), f.rec, f.opener, Options{
		AttachAttempts: 3,
		AttachDelay:    time.Millisecond,
		DebounceDelay:  10 * time.Millisecond,
		SettingsURL:    "https://app.llmsecrets.com/settings",
		Sleep:          func(context.Context, time.Duration) error { return nil },
	}, nil)
	return f
}

func TestAttachBindsSurface(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	require.NoError(t, f.ctrl.Attach(ctx))
	require.NoError(t, f.ctrl.Attach(ctx))
	defer f.ctrl.Detach(ctx)

	assert.True(t, f.ctrl.Attached())
	assert.True(t, f.page.KeysBound(1))
	assert.True(t, f.page.DelegateBound())
	assert.True(t, f.page.Watching())
	assert.Equal(t, 1, f.page.BindCalls())
	assert.Equal(t, domain.Surface{Gen: 1}, f.ctrl.Session().Surface())
}

func TestAttachRetriesDiscovery(t *testing.T) {
	f := newFixture(t, false)
	f.page.MissLocates(2)

	require.NoError(t, f.ctrl.Attach(context.Background()))
	defer f.ctrl.Detach(context.Background())

	assert.Equal(t, 3, f.page.Locates())
	assert.Empty(t, f.rec.Notices())
}

func TestAttachDiscoveryFailure(t *testing.T) {
	f := newFixture(t, false)
	f.page.MissLocates(10)

	err := f.ctrl.Attach(context.Background())
	require.ErrorIs(t, err, domain.ErrDiscovery)

	assert.False(t, f.ctrl.Attached())
	assert.Equal(t, 3, f.page.Locates())
	assert.False(t, f.page.KeysBound(1))
	require.Len(t, f.rec.Notices(), 1)
	assert.Equal(t, "Textarea not found. Please try again.", f.rec.Notices()[0].Message)
	assert.Equal(t, domain.NoticeError, f.rec.Notices()[0].Kind)
}

func TestGestureRunsInterceptor(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	require.NoError(t, f.ctrl.Attach(ctx))

	f.page.Emit(host.Event{Kind: host.EventKey, Surface: domain.Surface{Gen: 1}})
	assert.Eventually(t, func() bool {
		return len(f.rec.Outcomes()) == 1 && !f.ctrl.Session().Redacting()
	}, time.Second, 5*time.Millisecond)
	f.page.Emit(host.Event{Kind: host.EventClick})

	assert.Eventually(t, func() bool { return len(f.rec.Outcomes()) == 2 }, time.Second, 5*time.Millisecond)
	require.NoError(t, f.ctrl.Detach(ctx))

	assert.Equal(t, []domain.Surface{{Gen: 1}, {Gen: 1}}, f.pipe.Surfaces())
	assert.Equal(t, []domain.OutcomeKind{domain.OutcomeRedacted, domain.OutcomeRedacted}, f.rec.Outcomes())
}

func TestGestureDroppedWhileBusy(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()
	require.NoError(t, f.ctrl.Attach(ctx))

	f.page.Emit(host.Event{Kind: host.EventKey, Surface: domain.Surface{Gen: 1}})
	<-f.pipe.started
	f.page.Emit(host.Event{Kind: host.EventClick})
	f.page.Emit(host.Event{Kind: host.EventKey, Surface: domain.Surface{Gen: 1}})

	assert.Eventually(t, func() bool { return len(f.rec.Outcomes()) == 2 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []domain.OutcomeKind{domain.OutcomeDropped, domain.OutcomeDropped}, f.rec.Outcomes())

	close(f.pipe.release)
	require.NoError(t, f.ctrl.Detach(ctx))
	assert.Len(t, f.pipe.Surfaces(), 1)
}

func TestMutationRebindsReplacedSurface(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	require.NoError(t, f.ctrl.Attach(ctx))
	defer f.ctrl.Detach(ctx)

	next := f.page.Replace()
	for i := 0; i < 5; i++ {
		f.page.Emit(host.Event{Kind: host.EventMutation})
	}

	assert.Eventually(t, func() bool { return f.ctrl.Session().Surface() == next }, time.Second, 5*time.Millisecond)
	assert.True(t, f.page.KeysBound(next.Gen))
	assert.Equal(t, 2, f.page.BindCalls())
}

func TestMutationWithoutReplacementKeepsBinding(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	require.NoError(t, f.ctrl.Attach(ctx))

	f.page.Emit(host.Event{Kind: host.EventMutation})
	assert.Eventually(t, func() bool { return f.page.Locates() >= 2 }, time.Second, 5*time.Millisecond)
	require.NoError(t, f.ctrl.Detach(ctx))

	assert.Equal(t, 1, f.page.BindCalls())
}

func TestReadyReattaches(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	require.NoError(t, f.ctrl.Attach(ctx))

	next := f.page.Replace()
	f.page.Emit(host.Event{Kind: host.EventReady})

	assert.Eventually(t, func() bool { return f.page.KeysBound(next.Gen) }, time.Second, 5*time.Millisecond)
	require.NoError(t, f.ctrl.Detach(ctx))
}

func TestCTAOpensSettings(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	require.NoError(t, f.ctrl.Attach(ctx))

	f.page.Emit(host.Event{Kind: host.EventCTA})
	assert.Eventually(t, func() bool { return len(f.opener.URLs()) == 1 }, time.Second, 5*time.Millisecond)
	require.NoError(t, f.ctrl.Detach(ctx))

	assert.Equal(t, []string{"https://app.llmsecrets.com/settings"}, f.opener.URLs())
}

func TestDetachRemovesListeners(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	require.NoError(t, f.ctrl.Attach(ctx))

	require.NoError(t, f.ctrl.Detach(ctx))
	require.NoError(t, f.ctrl.Detach(ctx))

	assert.False(t, f.ctrl.Attached())
	assert.False(t, f.page.KeysBound(1))
	assert.False(t, f.page.KeysHeld(1))
	assert.False(t, f.page.DelegateBound())
	assert.False(t, f.page.Watching())
	assert.False(t, f.ctrl.Session().Bound())
}

func TestDetachWaitsForInFlightInterception(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()
	require.NoError(t, f.ctrl.Attach(ctx))

	f.page.Emit(host.Event{Kind: host.EventKey, Surface: domain.Surface{Gen: 1}})
	<-f.pipe.started

	short, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	require.ErrorIs(t, f.ctrl.Detach(short), context.DeadlineExceeded)

	close(f.pipe.release)
	assert.Eventually(t, func() bool { return len(f.rec.Outcomes()) == 1 }, time.Second, 5*time.Millisecond)
}
