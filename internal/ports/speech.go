package ports

import (
	"context"

	"github.com/bnema/docqa-cli/internal/domain"
)

// SpeechRecognizer is a single-slot capture capability. Events has exactly one
// consumer; every session ends with a VoiceEventEnd tagged with the session
// returned by Start.
type SpeechRecognizer interface {
	Start(ctx context.Context) (domain.VoiceSession, error)
	Stop() error
	Events() <-chan domain.VoiceEvent
}
