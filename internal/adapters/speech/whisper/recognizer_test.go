package whisper

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bnema/docqa-cli/internal/adapters/speech"
	"github.com/bnema/docqa-cli/internal/domain"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sourceFunc func(ctx context.Context) (io.ReadCloser, error)

func (f sourceFunc) Open(ctx context.Context) (io.ReadCloser, error) {
	return f(ctx)
}

func staticSource(pcm []byte) speech.Source {
	return sourceFunc(func(context.Context) (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(pcm)), nil
	})
}

// liveAudio yields pcm and then blocks like an open microphone until closed.
type liveAudio struct {
	pcm     *bytes.Reader
	drained atomic.Bool
	closed  chan struct{}
	once    sync.Once
}

func newLiveAudio(pcm []byte) *liveAudio {
	return &liveAudio{pcm: bytes.NewReader(pcm), closed: make(chan struct{})}
}

func (a *liveAudio) Read(p []byte) (int, error) {
	if a.pcm.Len() > 0 {
		return a.pcm.Read(p)
	}
	a.drained.Store(true)
	<-a.closed
	return 0, io.ErrClosedPipe
}

func (a *liveAudio) Close() error {
	a.once.Do(func() { close(a.closed) })
	return nil
}

func mustStart(t *testing.T, recognizer *Recognizer) domain.VoiceSession {
	t.Helper()
	session, err := recognizer.Start(context.Background())
	require.NoError(t, err)
	return session
}

func fakeTranscriptions(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/audio/transcriptions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		if assert.NoError(t, r.ParseMultipartForm(1<<20)) {
			assert.Equal(t, "whisper-1", r.FormValue("model"))
			assert.Equal(t, "en", r.FormValue("language"))
			file, _, err := r.FormFile("file")
			if assert.NoError(t, err) {
				head := make([]byte, 4)
				_, _ = io.ReadFull(file, head)
				assert.Equal(t, "RIFF", string(head))
				_ = file.Close()
			}
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server
}

func collect(t *testing.T, events <-chan domain.VoiceEvent) []domain.VoiceEvent {
	t.Helper()
	var got []domain.VoiceEvent
	timeout := time.After(3 * time.Second)
	for {
		select {
		case event := <-events:
			got = append(got, event)
			if event.Kind == domain.VoiceEventEnd {
				return got
			}
		case <-timeout:
			t.Fatalf("no end event, got %v", got)
			return got
		}
	}
}

func TestRecognizerTranscribesUtterance(t *testing.T) {
	server := fakeTranscriptions(t, http.StatusOK, `{"text":" Which documents mention pricing? "}`)

	recognizer := New(Config{
		APIKey:  "sk-test",
		BaseURL: server.URL + "/v1",
		Source:  staticSource(make([]byte, 3200)),
		Logger:  zerolog.Nop(),
	})

	session := mustStart(t, recognizer)
	assert.Equal(t, domain.VoiceSession(1), session)
	assert.Equal(t, []domain.VoiceEvent{
		{Session: session, Kind: domain.VoiceEventResult, Transcript: "Which documents mention pricing?"},
		{Session: session, Kind: domain.VoiceEventEnd},
	}, collect(t, recognizer.Events()))
}

func TestRecognizerTranscriptionFailure(t *testing.T) {
	server := fakeTranscriptions(t, http.StatusInternalServerError, `{"error":{"message":"boom","type":"server_error"}}`)

	recognizer := New(Config{APIKey: "sk-test", BaseURL: server.URL + "/v1", Source: staticSource([]byte{1, 0})})
	session := mustStart(t, recognizer)

	assert.Equal(t, []domain.VoiceEvent{
		{Session: session, Kind: domain.VoiceEventError, Code: speech.CodeNetwork},
		{Session: session, Kind: domain.VoiceEventEnd},
	}, collect(t, recognizer.Events()))
}

func TestRecognizerEmptyRecordingIsNoSpeech(t *testing.T) {
	recognizer := New(Config{APIKey: "sk-test", BaseURL: "http://127.0.0.1:1/v1", Source: staticSource(nil)})
	session := mustStart(t, recognizer)

	assert.Equal(t, []domain.VoiceEvent{
		{Session: session, Kind: domain.VoiceEventError, Code: speech.CodeNoSpeech},
		{Session: session, Kind: domain.VoiceEventEnd},
	}, collect(t, recognizer.Events()))
}

func TestRecognizerStopBeforeAudioEndsQuietly(t *testing.T) {
	reader, writer := io.Pipe()
	t.Cleanup(func() { _ = writer.Close() })

	recognizer := New(Config{
		APIKey:  "sk-test",
		BaseURL: "http://127.0.0.1:1/v1",
		Source: sourceFunc(func(context.Context) (io.ReadCloser, error) {
			return reader, nil
		}),
	})

	session := mustStart(t, recognizer)
	_, err := recognizer.Start(context.Background())
	require.ErrorIs(t, err, speech.ErrBusy)
	require.NoError(t, recognizer.Stop())

	assert.Equal(t, []domain.VoiceEvent{{Session: session, Kind: domain.VoiceEventEnd}}, collect(t, recognizer.Events()))
}

func TestRecognizerNewCaptureWhilePreviousTranscribes(t *testing.T) {
	gate := make(chan struct{})
	var openGate sync.Once
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-gate
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"text":"first utterance"}`))
	}))
	t.Cleanup(server.Close)
	t.Cleanup(func() { openGate.Do(func() { close(gate) }) })

	first := newLiveAudio(make([]byte, 3200))
	second := newLiveAudio(nil)
	sources := []*liveAudio{first, second}
	var opened atomic.Int32

	recognizer := New(Config{
		APIKey:  "sk-test",
		BaseURL: server.URL + "/v1",
		Source: sourceFunc(func(context.Context) (io.ReadCloser, error) {
			return sources[opened.Add(1)-1], nil
		}),
	})

	firstSession := mustStart(t, recognizer)
	assert.Eventually(t, first.drained.Load, time.Second, 5*time.Millisecond)
	require.NoError(t, recognizer.Stop())

	// The first capture is still waiting on its transcription.
	secondSession := mustStart(t, recognizer)
	assert.Greater(t, secondSession, firstSession)

	openGate.Do(func() { close(gate) })
	assert.Equal(t, []domain.VoiceEvent{
		{Session: firstSession, Kind: domain.VoiceEventResult, Transcript: "first utterance"},
		{Session: firstSession, Kind: domain.VoiceEventEnd},
	}, collect(t, recognizer.Events()))

	require.NoError(t, recognizer.Stop())
	assert.Equal(t, []domain.VoiceEvent{{Session: secondSession, Kind: domain.VoiceEventEnd}}, collect(t, recognizer.Events()))
}

func TestRecognizerRequiresKey(t *testing.T) {
	_, err := New(Config{}).Start(context.Background())
	require.EqualError(t, err, speech.CodeNotAllowed)
}

func TestPrimaryLanguage(t *testing.T) {
	assert.Equal(t, "en", primaryLanguage("en-US"))
	assert.Equal(t, "pt", primaryLanguage("PT-br"))
	assert.Equal(t, "fr", primaryLanguage("fr"))
}
