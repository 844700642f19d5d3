package application

import "github.com/bnema/docqa-cli/internal/domain"

// Reduce applies a single event and returns the next state. It has no side
// effects and never mutates slices reachable from s.
func Reduce(s State, event Event) State {
	switch e := event.(type) {
	case MessageAppended:
		s.Transcript = s.Transcript.Append(e.Message)
	case TranscriptReset:
		s.Transcript = domain.WelcomeTranscript()
	case DraftCleared:
		s.Draft = ""
		s.DraftRevision++
	case BusyStarted:
		s.Busy++
	case BusyFinished:
		if s.Busy > 0 {
			s.Busy--
		}
	case DocumentCountSynced:
		count := e.Count
		if count < 0 {
			count = 0
		}
		s.Documents = domain.DocumentStatus{Count: count}
	case FileSelected:
		s.FileSelection = e.Path
	case FileSelectionCleared:
		s.FileSelection = ""
	case VoiceStarted:
		s.Voice = domain.VoiceRecording
	case VoiceStopped:
		s.Voice = domain.VoiceIdle
	case VoiceSessionStarted:
		if e.Session > s.VoiceSession {
			s.VoiceSession = e.Session
		}
	case VoiceEventReceived:
		s = reduceVoiceEvent(s, e.Event)
	case NotificationAdded:
		s.Notifications = appendNotification(s.Notifications, e.Notification)
	case NotificationPhaseChanged:
		s.Notifications = advanceNotification(s.Notifications, e.ID, e.Phase)
	}

	return s
}

func reduceVoiceEvent(s State, event domain.VoiceEvent) State {
	if s.StaleVoiceEvent(event) {
		return s
	}

	switch event.Kind {
	case domain.VoiceEventResult:
		s.Draft = event.Transcript
		s.DraftRevision++
		s.Voice = domain.VoiceIdle
	case domain.VoiceEventError, domain.VoiceEventEnd:
		s.Voice = domain.VoiceIdle
	}
	return s
}

func appendNotification(current []domain.Notification, n domain.Notification) []domain.Notification {
	if n.Phase == "" {
		n.Phase = domain.PhaseEntering
	}
	next := make([]domain.Notification, len(current), len(current)+1)
	copy(next, current)
	return append(next, n)
}

// advanceNotification moves a notification forward through its lifecycle.
// Phases never go backwards; reaching PhaseRemoved drops the entry.
func advanceNotification(current []domain.Notification, id string, phase domain.NotificationPhase) []domain.Notification {
	next := make([]domain.Notification, 0, len(current))
	for _, n := range current {
		if n.ID != id {
			next = append(next, n)
			continue
		}
		if phase == domain.PhaseRemoved {
			continue
		}
		if phaseOrder(phase) > phaseOrder(n.Phase) {
			n.Phase = phase
		}
		next = append(next, n)
	}
	return next
}

func phaseOrder(p domain.NotificationPhase) int {
	switch p {
	case domain.PhaseEntering:
		return 0
	case domain.PhaseVisible:
		return 1
	case domain.PhaseLeaving:
		return 2
	case domain.PhaseRemoved:
		return 3
	default:
		return -1
	}
}
