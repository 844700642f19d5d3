package application

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/bnema/docqa-cli/internal/domain"
	"github.com/bnema/docqa-cli/internal/ports"
	"github.com/rs/zerolog"
)

var ErrClearRejected = errors.New("service rejected clear documents")

// DefaultMaxUploadBytes matches the backend's request size limit.
const DefaultMaxUploadBytes int64 = 16 << 20

const (
	ConfirmClearDocuments = "Are you sure you want to clear all documents? This will remove all uploaded documents from the collection."
	ConfirmClearChat      = "Are you sure you want to clear the chat history?"

	askTransportError    = "Sorry, I encountered an error while processing your question."
	uploadTransportError = "❌ Error uploading document. Please try again."

	noticeUploadSuccess    = "Document uploaded successfully!"
	noticeUploadError      = "Error uploading document"
	noticeUploadFailed     = "Upload failed"
	noticeDocumentsCleared = "All documents cleared"
	noticeClearDocsError   = "Error clearing documents"
	noticeChatCleared      = "Chat cleared"
	noticeVoiceUnavailable = "Voice recognition is not available."
	noticeVoiceErrorPrefix = "Voice recognition error: "
)

type ControllerConfig struct {
	// Voice is optional; a nil recognizer means voice input is unavailable.
	Voice          ports.SpeechRecognizer
	Observer       StateObserver
	Logger         zerolog.Logger
	Clock          ports.Clock
	Notifications  NotificationTiming
	MaxUploadBytes int64
}

type Controller struct {
	qa        ports.DocumentQA
	confirmer ports.Confirmer
	voice     ports.SpeechRecognizer
	observer  StateObserver
	logger    zerolog.Logger
	maxUpload int64
	notifier  notifier

	// voiceMu serializes session starts with voice event handling.
	voiceMu sync.Mutex

	mu    sync.Mutex
	state State
}

func NewController(qa ports.DocumentQA, confirmer ports.Confirmer, cfg ControllerConfig) *Controller {
	if cfg.Clock == nil {
		cfg.Clock = ports.SystemClock{}
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = DefaultMaxUploadBytes
	}
	if confirmer == nil {
		confirmer = ports.ConfirmerFunc(func(context.Context, string) (bool, error) { return false, nil })
	}

	c := &Controller{
		qa:        qa,
		confirmer: confirmer,
		voice:     cfg.Voice,
		observer:  cfg.Observer,
		logger:    cfg.Logger,
		maxUpload: cfg.MaxUploadBytes,
		state:     NewState(),
	}
	c.notifier = notifier{
		clock:    cfg.Clock,
		timing:   cfg.Notifications.withDefaults(),
		dispatch: c.dispatch,
	}

	return c
}

// State returns the current snapshot.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// VoiceAvailable reports whether a speech recognizer is wired.
func (c *Controller) VoiceAvailable() bool {
	return c.voice != nil
}

// Exchange is one submitted question and what came back for it. Result is
// zero when the request failed in transport; Err is set in that case.
type Exchange struct {
	Question string
	Reply    domain.Message
	Result   domain.AskResult
	Err      error
}

// SubmitQuestion appends the question, asks the service and appends exactly
// one reply. It returns false without doing anything for blank input.
func (c *Controller) SubmitQuestion(ctx context.Context, text string) (domain.Message, bool) {
	exchange, submitted := c.Ask(ctx, text)
	return exchange.Reply, submitted
}

// Ask is SubmitQuestion for callers that also need the decoded answer.
func (c *Controller) Ask(ctx context.Context, text string) (Exchange, bool) {
	question := strings.TrimSpace(text)
	if question == "" {
		return Exchange{}, false
	}

	c.dispatch(MessageAppended{Message: domain.UserMessage(question)}, DraftCleared{}, BusyStarted{})

	started := time.Now()
	result, err := c.qa.Ask(ctx, question)

	var reply domain.Message
	switch {
	case err != nil:
		c.logger.Error().Err(err).Msg("ask request failed")
		reply = domain.AssistantError(askTransportError)
	case result.Failed():
		reply = domain.AssistantError("Error: " + result.Error)
	default:
		c.logger.Debug().
			Bool("cached", result.Answer.Cached).
			Float64("response_time", result.Answer.ResponseTime).
			Dur("elapsed", time.Since(started)).
			Msg("answer received")
		reply = domain.AssistantMessage(result.Answer.Annotated())
	}

	c.dispatch(MessageAppended{Message: reply}, BusyFinished{})
	return Exchange{Question: question, Reply: reply, Result: result, Err: err}, true
}

// UploadDocument sends the file at path to the service. The file selection is
// cleared in every outcome so the same file can be picked again.
func (c *Controller) UploadDocument(ctx context.Context, path string) (domain.Message, bool) {
	path = strings.TrimSpace(path)
	if path == "" {
		return domain.Message{}, false
	}

	c.dispatch(FileSelected{Path: path}, BusyStarted{})

	result, err := c.upload(ctx, path)

	var (
		reply  domain.Message
		level  domain.NotificationLevel
		notice string
		events []Event
	)
	switch {
	case err != nil:
		c.logger.Error().Err(err).Str("file", path).Msg("upload failed")
		reply = domain.AssistantError(uploadTransportError)
		level, notice = domain.NotificationError, noticeUploadFailed
	case result.Failed():
		reply = domain.AssistantError("❌ Error uploading document: " + result.Error)
		level, notice = domain.NotificationError, noticeUploadError
	default:
		reply = domain.AssistantMessage("✅ " + result.Message)
		level, notice = domain.NotificationSuccess, noticeUploadSuccess
		events = append(events, DocumentCountSynced{Count: result.DocumentCount})
	}

	events = append(events, MessageAppended{Message: reply}, FileSelectionCleared{}, BusyFinished{})
	c.dispatch(events...)
	c.notifier.show(level, notice)

	return reply, true
}

func (c *Controller) upload(ctx context.Context, path string) (domain.UploadResult, error) {
	file, err := os.Open(path)
	if err != nil {
		return domain.UploadResult{}, fmt.Errorf("%w: open upload file: %w", domain.ErrTransport, err)
	}
	defer func() { _ = file.Close() }()

	info, err := file.Stat()
	if err != nil {
		return domain.UploadResult{}, fmt.Errorf("%w: stat upload file: %w", domain.ErrTransport, err)
	}
	if info.IsDir() {
		return domain.UploadResult{}, fmt.Errorf("%w: %s is a directory", domain.ErrTransport, path)
	}
	if info.Size() > c.maxUpload {
		return domain.UploadResult{}, fmt.Errorf("%w: %w: %d bytes (limit %d)", domain.ErrTransport, domain.ErrFileTooLarge, info.Size(), c.maxUpload)
	}

	return c.qa.Upload(ctx, ports.Upload{
		Name: filepath.Base(path),
		Size: info.Size(),
		Body: io.LimitReader(file, c.maxUpload),
	})
}

// ClearDocuments removes every document from the service after confirmation.
// It reports whether the confirmation was accepted. Failures are surfaced as
// a notification and also returned.
func (c *Controller) ClearDocuments(ctx context.Context) (bool, error) {
	confirmed, err := c.confirmer.Confirm(ctx, ConfirmClearDocuments)
	if err != nil {
		return false, fmt.Errorf("confirm clear documents: %w", err)
	}
	if !confirmed {
		return false, nil
	}

	result, err := c.qa.ClearDocuments(ctx)
	if err != nil {
		c.logger.Error().Err(err).Msg("clear documents failed")
		c.notifier.show(domain.NotificationError, noticeClearDocsError)
		return true, fmt.Errorf("clear documents: %w", err)
	}
	if result.Failed() {
		c.notifier.show(domain.NotificationError, noticeClearDocsError)
		return true, ErrClearRejected
	}

	c.dispatch(
		MessageAppended{Message: domain.AssistantMessage("🧹 " + result.Message)},
		DocumentCountSynced{Count: 0},
	)
	c.notifier.show(domain.NotificationSuccess, noticeDocumentsCleared)

	return true, nil
}

// ClearChat resets the transcript to the welcome message after confirmation.
func (c *Controller) ClearChat(ctx context.Context) (bool, error) {
	confirmed, err := c.confirmer.Confirm(ctx, ConfirmClearChat)
	if err != nil {
		return false, fmt.Errorf("confirm clear chat: %w", err)
	}
	if !confirmed {
		return false, nil
	}

	c.dispatch(TranscriptReset{})
	c.notifier.show(domain.NotificationSuccess, noticeChatCleared)

	return true, nil
}

// ToggleVoiceInput starts a capture session when idle and stops the current
// one when recording.
func (c *Controller) ToggleVoiceInput(ctx context.Context) error {
	if c.voice == nil {
		c.notifier.show(domain.NotificationError, noticeVoiceUnavailable)
		return domain.ErrVoiceUnavailable
	}

	c.voiceMu.Lock()
	defer c.voiceMu.Unlock()

	wasRecording := c.swapVoiceState()
	if wasRecording {
		if err := c.voice.Stop(); err != nil {
			c.logger.Warn().Err(err).Msg("stop voice capture")
			return fmt.Errorf("stop voice capture: %w", err)
		}
		return nil
	}

	session, err := c.voice.Start(ctx)
	if err != nil {
		c.logger.Error().Err(err).Msg("start voice capture")
		c.applyVoiceEvent(domain.VoiceEvent{
			Session: c.State().VoiceSession,
			Kind:    domain.VoiceEventError,
			Code:    err.Error(),
		})
		return fmt.Errorf("start voice capture: %w", err)
	}

	c.dispatch(VoiceSessionStarted{Session: session})
	c.logger.Debug().Uint64("session", uint64(session)).Msg("voice capture started")
	return nil
}

// swapVoiceState flips the recording indicator atomically and returns the
// previous value.
func (c *Controller) swapVoiceState() bool {
	c.mu.Lock()
	wasRecording := c.state.Recording()
	if wasRecording {
		c.state = c.apply(c.state, VoiceStopped{})
	} else {
		c.state = c.apply(c.state, VoiceStarted{})
	}
	snapshot := c.state
	c.mu.Unlock()

	c.publish(snapshot)
	return wasRecording
}

// ListenVoice consumes recognizer events until ctx is done or the stream is
// closed. It must be the only consumer of the recognizer's event stream.
func (c *Controller) ListenVoice(ctx context.Context) {
	if c.voice == nil {
		return
	}

	events := c.voice.Events()
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			c.handleVoiceEvent(event)
		}
	}
}

func (c *Controller) handleVoiceEvent(event domain.VoiceEvent) {
	c.voiceMu.Lock()
	defer c.voiceMu.Unlock()
	c.applyVoiceEvent(event)
}

// applyVoiceEvent expects voiceMu to be held.
func (c *Controller) applyVoiceEvent(event domain.VoiceEvent) {
	if c.State().StaleVoiceEvent(event) {
		c.logger.Debug().
			Uint64("session", uint64(event.Session)).
			Str("kind", string(event.Kind)).
			Msg("drop event from earlier voice session")
		return
	}

	c.dispatch(VoiceEventReceived{Event: event})

	if event.Kind == domain.VoiceEventError {
		c.logger.Warn().Str("code", event.Code).Msg("voice recognition error")
		c.notifier.show(domain.NotificationError, noticeVoiceErrorPrefix+event.Code)
	}
}

// RefreshDocumentStatus syncs the document count mirror. Failures are only
// logged; the returned error is for callers that want to report it.
func (c *Controller) RefreshDocumentStatus(ctx context.Context) error {
	result, err := c.qa.Status(ctx)
	if err != nil {
		c.logger.Warn().Err(err).Msg("document status check failed")
		return fmt.Errorf("refresh document status: %w", err)
	}

	c.dispatch(DocumentCountSynced{Count: result.DocumentCount})
	return nil
}

// Notify shows an ad-hoc notification.
func (c *Controller) Notify(level domain.NotificationLevel, text string) {
	c.notifier.show(level, text)
}

func (c *Controller) dispatch(events ...Event) State {
	c.mu.Lock()
	for _, event := range events {
		c.state = c.apply(c.state, event)
	}
	snapshot := c.state
	c.mu.Unlock()

	c.publish(snapshot)
	return snapshot
}

func (c *Controller) apply(s State, event Event) State {
	next := Reduce(s, event)
	next.Revision = s.Revision + 1
	return next
}

func (c *Controller) publish(snapshot State) {
	if c.observer != nil {
		c.observer.StateChanged(snapshot)
	}
}
