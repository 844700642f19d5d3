package whisper

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/bnema/docqa-cli/internal/adapters/speech"
	"github.com/bnema/docqa-cli/internal/domain"
	"github.com/bnema/docqa-cli/internal/ports"
	"github.com/rs/zerolog"
	"github.com/sashabaranov/go-openai"
)

const (
	defaultMaxDuration       = 15 * time.Second
	defaultTranscribeTimeout = time.Minute
)

type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	// Language accepts a BCP 47 tag ("en-US"); only the primary subtag is
	// sent.
	Language          string
	SampleRate        int
	MaxDuration       time.Duration
	TranscribeTimeout time.Duration
	Source            speech.Source
	Logger            zerolog.Logger
}

// Recognizer records one utterance, bounded by Stop or MaxDuration, and
// transcribes it with the OpenAI transcription endpoint.
type Recognizer struct {
	cfg    Config
	client *openai.Client
	slot   speech.Slot
	events *speech.Events
}

var _ ports.SpeechRecognizer = (*Recognizer)(nil)

func New(cfg Config) *Recognizer {
	if cfg.Model == "" {
		cfg.Model = openai.Whisper1
	}
	if cfg.Language == "" {
		cfg.Language = "en-US"
	}
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = speech.DefaultSampleRate
	}
	if cfg.MaxDuration <= 0 {
		cfg.MaxDuration = defaultMaxDuration
	}
	if cfg.TranscribeTimeout <= 0 {
		cfg.TranscribeTimeout = defaultTranscribeTimeout
	}
	if cfg.Source == nil {
		cfg.Source = speech.Recorder{SampleRate: cfg.SampleRate}
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	return &Recognizer{
		cfg:    cfg,
		client: openai.NewClientWithConfig(clientCfg),
		events: speech.NewEvents(cfg.Logger),
	}
}

func (r *Recognizer) Events() <-chan domain.VoiceEvent {
	return r.events.C()
}

func (r *Recognizer) Stop() error {
	r.slot.Stop()
	return nil
}

func (r *Recognizer) Start(ctx context.Context) (domain.VoiceSession, error) {
	if r.cfg.APIKey == "" {
		return 0, errors.New(speech.CodeNotAllowed)
	}

	session, err := r.slot.Acquire()
	if err != nil {
		return 0, err
	}

	sessionCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	audio, err := r.cfg.Source.Open(sessionCtx)
	if err != nil {
		cancel()
		r.slot.Release(session)
		r.cfg.Logger.Error().Err(err).Msg("open audio source")
		return 0, errors.New(speech.CodeAudioCapture)
	}

	go func() {
		defer cancel()
		r.run(sessionCtx, session, audio)
	}()

	return session.ID(), nil
}

func (r *Recognizer) run(ctx context.Context, session *speech.Session, audio io.ReadCloser) {
	defer r.events.End(session)

	// The slot is free once recording ends; a new capture may start while
	// this one is still being transcribed.
	pcm, err := r.record(session, audio)
	r.slot.Release(session)
	if err != nil {
		r.cfg.Logger.Warn().Err(err).Msg("record utterance")
		r.events.Error(session, speech.CodeAudioCapture)
		return
	}
	if len(pcm) == 0 {
		if !session.StoppedByUser() {
			r.events.Error(session, speech.CodeNoSpeech)
		}
		return
	}

	text, err := r.transcribe(ctx, pcm)
	if err != nil {
		r.cfg.Logger.Warn().Err(err).Msg("transcribe utterance")
		r.events.Error(session, speech.CodeNetwork)
		return
	}
	if text == "" {
		r.events.Error(session, speech.CodeNoSpeech)
		return
	}

	r.events.Result(session, text)
}

// record buffers audio until the session is stopped, MaxDuration elapses or
// the source ends.
func (r *Recognizer) record(session *speech.Session, audio io.ReadCloser) ([]byte, error) {
	var buf bytes.Buffer
	copied := make(chan error, 1)
	go func() {
		_, err := io.Copy(&buf, audio)
		copied <- err
	}()

	timer := time.NewTimer(r.cfg.MaxDuration)
	defer timer.Stop()

	var copyErr error
	stopped := false
	select {
	case copyErr = <-copied:
	case <-session.Done():
		stopped = true
	case <-timer.C:
		stopped = true
	}

	closeErr := audio.Close()
	if stopped {
		// The copy ends once the source is closed; its error is expected.
		<-copied
		copyErr = nil
	}
	if copyErr != nil {
		return nil, copyErr
	}
	if closeErr != nil && !stopped {
		return nil, closeErr
	}

	return buf.Bytes(), nil
}

func (r *Recognizer) transcribe(ctx context.Context, pcm []byte) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.TranscribeTimeout)
	defer cancel()

	resp, err := r.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    r.cfg.Model,
		FilePath: "utterance.wav",
		Reader:   bytes.NewReader(speech.EncodeWAV(pcm, r.cfg.SampleRate)),
		Language: primaryLanguage(r.cfg.Language),
		Format:   openai.AudioResponseFormatJSON,
	})
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(resp.Text), nil
}

func primaryLanguage(tag string) string {
	primary, _, _ := strings.Cut(tag, "-")
	return strings.ToLower(strings.TrimSpace(primary))
}
