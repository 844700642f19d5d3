package application

import "github.com/bnema/docqa-cli/internal/domain"

// Event is a state transition input for Reduce.
type Event interface {
	isEvent()
}

type MessageAppended struct {
	Message domain.Message
}

type TranscriptReset struct{}

type DraftCleared struct{}

type BusyStarted struct{}

type BusyFinished struct{}

type DocumentCountSynced struct {
	Count int
}

type FileSelected struct {
	Path string
}

type FileSelectionCleared struct{}

type VoiceStarted struct{}

type VoiceStopped struct{}

type VoiceSessionStarted struct {
	Session domain.VoiceSession
}

type VoiceEventReceived struct {
	Event domain.VoiceEvent
}

type NotificationAdded struct {
	Notification domain.Notification
}

type NotificationPhaseChanged struct {
	ID    string
	Phase domain.NotificationPhase
}

func (MessageAppended) isEvent()          {}
func (TranscriptReset) isEvent()          {}
func (DraftCleared) isEvent()             {}
func (BusyStarted) isEvent()              {}
func (BusyFinished) isEvent()             {}
func (DocumentCountSynced) isEvent()      {}
func (FileSelected) isEvent()             {}
func (FileSelectionCleared) isEvent()     {}
func (VoiceStarted) isEvent()             {}
func (VoiceStopped) isEvent()             {}
func (VoiceSessionStarted) isEvent()      {}
func (VoiceEventReceived) isEvent()       {}
func (NotificationAdded) isEvent()        {}
func (NotificationPhaseChanged) isEvent() {}
