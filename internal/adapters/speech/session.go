package speech

import (
	"sync"
	"sync/atomic"

	"github.com/bnema/docqa-cli/internal/domain"
	"github.com/rs/zerolog"
)

const eventBuffer = 16

// Slot holds at most one running capture session. A session that has been
// stopped but is still delivering its final events does not hold the slot.
type Slot struct {
	mu     sync.Mutex
	last   domain.VoiceSession
	active *Session
}

func (s *Slot) Acquire() (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active != nil && !s.active.Stopped() {
		return nil, ErrBusy
	}
	s.last++
	s.active = &Session{id: s.last, stop: make(chan struct{})}
	return s.active, nil
}

func (s *Slot) Release(session *Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == session {
		s.active = nil
	}
}

// Stop ends the active session, if any, on behalf of the user.
func (s *Slot) Stop() {
	s.mu.Lock()
	session := s.active
	s.mu.Unlock()
	if session != nil {
		session.StopByUser()
	}
}

type Session struct {
	id     domain.VoiceSession
	stop   chan struct{}
	once   sync.Once
	byUser atomic.Bool
}

func (s *Session) ID() domain.VoiceSession {
	return s.id
}

func (s *Session) Done() <-chan struct{} {
	return s.stop
}

func (s *Session) Stopped() bool {
	select {
	case <-s.stop:
		return true
	default:
		return false
	}
}

func (s *Session) Stop() {
	s.once.Do(func() { close(s.stop) })
}

func (s *Session) StopByUser() {
	s.byUser.Store(true)
	s.Stop()
}

func (s *Session) StoppedByUser() bool {
	return s.byUser.Load()
}

// Events is the recognizer side of the single-subscriber event stream. Sends
// never block; when the subscriber falls behind by more than the buffer the
// event is dropped and logged.
type Events struct {
	ch     chan domain.VoiceEvent
	logger zerolog.Logger
}

func NewEvents(logger zerolog.Logger) *Events {
	return &Events{ch: make(chan domain.VoiceEvent, eventBuffer), logger: logger}
}

func (e *Events) C() <-chan domain.VoiceEvent {
	return e.ch
}

func (e *Events) Result(session *Session, transcript string) {
	e.emit(domain.VoiceEvent{Session: session.ID(), Kind: domain.VoiceEventResult, Transcript: transcript})
}

func (e *Events) Error(session *Session, code string) {
	e.emit(domain.VoiceEvent{Session: session.ID(), Kind: domain.VoiceEventError, Code: code})
}

func (e *Events) End(session *Session) {
	e.emit(domain.VoiceEvent{Session: session.ID(), Kind: domain.VoiceEventEnd})
}

func (e *Events) emit(event domain.VoiceEvent) {
	select {
	case e.ch <- event:
	default:
		e.logger.Warn().
			Uint64("session", uint64(event.Session)).
			Str("kind", string(event.Kind)).
			Msg("voice event dropped")
	}
}
