package deepgram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/bnema/docqa-cli/internal/adapters/speech"
	"github.com/bnema/docqa-cli/internal/domain"
	"github.com/bnema/docqa-cli/internal/ports"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultEndpoint = "wss://api.deepgram.com/v1/listen"
	DefaultModel    = "nova-2"

	chunkBytes   = 3200
	closeTimeout = 5 * time.Second
)

var closeStreamMessage = []byte(`{"type":"CloseStream"}`)

type Config struct {
	APIKey     string
	Endpoint   string
	Model      string
	Language   string
	SampleRate int
	Source     speech.Source
	Dialer     *websocket.Dialer
	Logger     zerolog.Logger
}

// Recognizer streams microphone audio to Deepgram and reports the first final
// utterance.
type Recognizer struct {
	cfg    Config
	slot   speech.Slot
	events *speech.Events
}

var _ ports.SpeechRecognizer = (*Recognizer)(nil)

type listenResponse struct {
	Type    string `json:"type"`
	Channel struct {
		Alternatives []struct {
			Transcript string `json:"transcript"`
		} `json:"alternatives"`
	} `json:"channel"`
	IsFinal     bool `json:"is_final"`
	SpeechFinal bool `json:"speech_final"`
}

func New(cfg Config) *Recognizer {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Language == "" {
		cfg.Language = "en-US"
	}
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = speech.DefaultSampleRate
	}
	if cfg.Source == nil {
		cfg.Source = speech.Recorder{SampleRate: cfg.SampleRate}
	}
	if cfg.Dialer == nil {
		cfg.Dialer = websocket.DefaultDialer
	}

	return &Recognizer{cfg: cfg, events: speech.NewEvents(cfg.Logger)}
}

func (r *Recognizer) Events() <-chan domain.VoiceEvent {
	return r.events.C()
}

func (r *Recognizer) Stop() error {
	r.slot.Stop()
	return nil
}

// Start dials Deepgram and begins streaming audio. It returns once the
// session is running; results arrive on Events.
func (r *Recognizer) Start(ctx context.Context) (domain.VoiceSession, error) {
	if r.cfg.APIKey == "" {
		return 0, errors.New(speech.CodeNotAllowed)
	}

	session, err := r.slot.Acquire()
	if err != nil {
		return 0, err
	}

	endpoint, err := r.listenURL()
	if err != nil {
		r.slot.Release(session)
		return 0, err
	}

	header := http.Header{}
	header.Set("Authorization", "Token "+r.cfg.APIKey)
	conn, resp, err := r.cfg.Dialer.DialContext(ctx, endpoint, header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		r.slot.Release(session)
		r.cfg.Logger.Error().Err(err).Msg("dial deepgram")
		return 0, errors.New(speech.CodeNetwork)
	}

	// The session outlives the caller's request context; it ends on Stop,
	// on the first final utterance, or when the audio source closes.
	sessionCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	audio, err := r.cfg.Source.Open(sessionCtx)
	if err != nil {
		cancel()
		_ = conn.Close()
		r.slot.Release(session)
		r.cfg.Logger.Error().Err(err).Msg("open audio source")
		return 0, errors.New(speech.CodeAudioCapture)
	}

	go func() {
		defer cancel()
		r.run(sessionCtx, session, conn, audio)
	}()

	return session.ID(), nil
}

func (r *Recognizer) run(ctx context.Context, session *speech.Session, conn *websocket.Conn, audio io.ReadCloser) {
	var transcript string

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return r.sendAudio(gctx, session, conn, audio)
	})
	g.Go(func() error {
		text, err := r.receive(conn, session)
		transcript = text
		return err
	})

	err := g.Wait()
	_ = audio.Close()
	_ = conn.Close()
	r.slot.Release(session)

	switch {
	case transcript != "":
		r.events.Result(session, transcript)
	case err != nil:
		r.cfg.Logger.Warn().Err(err).Msg("deepgram session failed")
		r.events.Error(session, errorCode(err))
	case !session.StoppedByUser():
		r.events.Error(session, speech.CodeNoSpeech)
	}
	r.events.End(session)
}

// sendAudio is the only writer on conn.
func (r *Recognizer) sendAudio(ctx context.Context, session *speech.Session, conn *websocket.Conn, audio io.Reader) error {
	chunks := make(chan []byte)
	readErr := make(chan error, 1)
	go func() {
		defer close(chunks)
		for {
			buf := make([]byte, chunkBytes)
			n, err := audio.Read(buf)
			if n > 0 {
				select {
				case chunks <- buf[:n]:
				case <-session.Done():
					return
				case <-ctx.Done():
					return
				}
			}
			if err != nil {
				if !errors.Is(err, io.EOF) {
					readErr <- err
				}
				return
			}
		}
	}()

	var sendErr error
loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case <-session.Done():
			break loop
		case chunk, ok := <-chunks:
			if !ok {
				break loop
			}
			if err := conn.WriteMessage(websocket.BinaryMessage, chunk); err != nil {
				sendErr = fmt.Errorf("send audio: %w", err)
				break loop
			}
		}
	}

	_ = conn.WriteMessage(websocket.TextMessage, closeStreamMessage)
	_ = conn.SetReadDeadline(time.Now().Add(closeTimeout))

	select {
	case err := <-readErr:
		return fmt.Errorf("%s: %w", speech.CodeAudioCapture, err)
	default:
	}
	return sendErr
}

// receive reads transcription results until the server closes the stream.
// The first final utterance ends the session.
func (r *Recognizer) receive(conn *websocket.Conn, session *speech.Session) (string, error) {
	var finals []string
	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			text := strings.TrimSpace(strings.Join(finals, " "))
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) || text != "" || isSessionClosed(session) {
				return text, nil
			}
			return text, fmt.Errorf("%s: %w", speech.CodeNetwork, err)
		}

		var resp listenResponse
		if err := json.Unmarshal(message, &resp); err != nil {
			r.cfg.Logger.Debug().Err(err).Msg("skip undecodable deepgram message")
			continue
		}
		if resp.Type != "" && resp.Type != "Results" {
			continue
		}
		if !resp.IsFinal || len(resp.Channel.Alternatives) == 0 {
			continue
		}

		if text := strings.TrimSpace(resp.Channel.Alternatives[0].Transcript); text != "" {
			finals = append(finals, text)
		}
		if resp.SpeechFinal && len(finals) > 0 {
			session.Stop()
		}
	}
}

func (r *Recognizer) listenURL() (string, error) {
	parsed, err := url.Parse(r.cfg.Endpoint)
	if err != nil {
		return "", fmt.Errorf("parse deepgram endpoint: %w", err)
	}

	query := parsed.Query()
	query.Set("model", r.cfg.Model)
	query.Set("language", r.cfg.Language)
	query.Set("encoding", "linear16")
	query.Set("sample_rate", strconv.Itoa(r.cfg.SampleRate))
	query.Set("channels", "1")
	query.Set("punctuate", "true")
	query.Set("smart_format", "true")
	query.Set("interim_results", "false")
	parsed.RawQuery = query.Encode()

	return parsed.String(), nil
}

func isSessionClosed(session *speech.Session) bool {
	select {
	case <-session.Done():
		return true
	default:
		return false
	}
}

func errorCode(err error) string {
	msg := err.Error()
	for _, code := range []string{speech.CodeAudioCapture, speech.CodeNetwork} {
		if strings.HasPrefix(msg, code) {
			return code
		}
	}
	return speech.CodeAborted
}
