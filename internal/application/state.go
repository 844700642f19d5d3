package application

import "github.com/bnema/docqa-cli/internal/domain"

// State is the complete client-side view of a chat session. Values are
// snapshots: slices are never mutated after a State has been handed out.
type State struct {
	Revision      uint64
	Transcript    domain.Transcript
	Documents     domain.DocumentStatus
	Busy          int
	Voice         domain.VoiceState
	VoiceSession  domain.VoiceSession
	Draft         string
	DraftRevision int
	FileSelection string
	Notifications []domain.Notification
}

func NewState() State {
	return State{Voice: domain.VoiceIdle}
}

// Loading reports whether the busy indicator should be shown.
func (s State) Loading() bool {
	return s.Busy > 0
}

func (s State) Recording() bool {
	return s.Voice == domain.VoiceRecording
}

// StaleVoiceEvent reports whether event belongs to a capture session older
// than the latest one started.
func (s State) StaleVoiceEvent(event domain.VoiceEvent) bool {
	return event.Session < s.VoiceSession
}

// VisibleNotifications returns notifications that are on screen, including
// those still entering or already leaving.
func (s State) VisibleNotifications() []domain.Notification {
	visible := make([]domain.Notification, 0, len(s.Notifications))
	for _, n := range s.Notifications {
		if n.Phase == domain.PhaseRemoved {
			continue
		}
		visible = append(visible, n)
	}
	return visible
}

// StateObserver receives every new snapshot. Snapshots may arrive out of
// order from concurrent operations; observers should drop any snapshot whose
// Revision is not newer than the last one they rendered.
type StateObserver interface {
	StateChanged(State)
}
