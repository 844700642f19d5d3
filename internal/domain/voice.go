package domain

type VoiceState string

const (
	VoiceIdle      VoiceState = "idle"
	VoiceRecording VoiceState = "recording"
)

type VoiceEventKind string

const (
	VoiceEventResult VoiceEventKind = "result"
	VoiceEventError  VoiceEventKind = "error"
	VoiceEventEnd    VoiceEventKind = "end"
)

// VoiceSession identifies one capture session. Recognizers number sessions
// in increasing order, starting at 1.
type VoiceSession uint64

// VoiceEvent is emitted by a speech recognizer. Transcript is set for
// results, Code for errors.
type VoiceEvent struct {
	Session    VoiceSession
	Kind       VoiceEventKind
	Transcript string
	Code       string
}
