package application

import (
	"context"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/bnema/docqa-cli/internal/domain"
	"github.com/bnema/docqa-cli/internal/ports"
	"github.com/stretchr/testify/mock"
)

type mockDocumentQA struct {
	mock.Mock
}

var _ ports.DocumentQA = (*mockDocumentQA)(nil)

func (m *mockDocumentQA) Ask(ctx context.Context, question string) (domain.AskResult, error) {
	args := m.Called(ctx, question)
	return args.Get(0).(domain.AskResult), args.Error(1)
}

func (m *mockDocumentQA) Upload(ctx context.Context, upload ports.Upload) (domain.UploadResult, error) {
	// Drain the body so tests can assert on what would have been sent.
	body, _ := io.ReadAll(upload.Body)
	args := m.Called(ctx, upload.Name, string(body))
	return args.Get(0).(domain.UploadResult), args.Error(1)
}

func (m *mockDocumentQA) ClearDocuments(ctx context.Context) (domain.ClearResult, error) {
	args := m.Called(ctx)
	return args.Get(0).(domain.ClearResult), args.Error(1)
}

func (m *mockDocumentQA) Status(ctx context.Context) (domain.StatusResult, error) {
	args := m.Called(ctx)
	return args.Get(0).(domain.StatusResult), args.Error(1)
}

func mockAnyContext() any {
	return mock.MatchedBy(func(context.Context) bool { return true })
}

func confirmAnswer(answer bool) (ports.Confirmer, *[]string) {
	var prompts []string
	return ports.ConfirmerFunc(func(_ context.Context, prompt string) (bool, error) {
		prompts = append(prompts, prompt)
		return answer, nil
	}), &prompts
}

type fakeRecognizer struct {
	mu       sync.Mutex
	starts   int
	stops    int
	session  domain.VoiceSession
	startErr error
	events   chan domain.VoiceEvent
}

func newFakeRecognizer() *fakeRecognizer {
	return &fakeRecognizer{events: make(chan domain.VoiceEvent, 8)}
}

func (r *fakeRecognizer) Start(context.Context) (domain.VoiceSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.starts++
	if r.startErr != nil {
		return 0, r.startErr
	}
	r.session++
	return r.session, nil
}

func (r *fakeRecognizer) Stop() error {
	r.mu.Lock()
	r.stops++
	session := r.session
	r.mu.Unlock()
	r.events <- domain.VoiceEvent{Session: session, Kind: domain.VoiceEventEnd}
	return nil
}

func (r *fakeRecognizer) Events() <-chan domain.VoiceEvent {
	return r.events
}

func (r *fakeRecognizer) counts() (int, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.starts, r.stops
}

// manualClock fires AfterFunc callbacks only when Advance is called.
type manualClock struct {
	mu      sync.Mutex
	now     time.Time
	pending []*manualTimer
}

type manualTimer struct {
	at      time.Time
	f       func()
	stopped bool
}

func (t *manualTimer) Stop() bool {
	wasActive := !t.stopped
	t.stopped = true
	return wasActive
}

func newManualClock() *manualClock {
	return &manualClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) AfterFunc(d time.Duration, f func()) ports.Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &manualTimer{at: c.now.Add(d), f: f}
	c.pending = append(c.pending, t)
	return t
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now.Add(d)
	c.mu.Unlock()

	for {
		c.mu.Lock()
		sort.SliceStable(c.pending, func(i, j int) bool { return c.pending[i].at.Before(c.pending[j].at) })
		if len(c.pending) == 0 || c.pending[0].at.After(target) {
			c.now = target
			c.mu.Unlock()
			return
		}
		next := c.pending[0]
		c.pending = c.pending[1:]
		c.now = next.at
		c.mu.Unlock()

		if !next.stopped {
			next.f()
		}
	}
}

type recordingObserver struct {
	mu        sync.Mutex
	snapshots []State
}

func (o *recordingObserver) StateChanged(s State) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.snapshots = append(o.snapshots, s)
}

func (o *recordingObserver) all() []State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]State(nil), o.snapshots...)
}
