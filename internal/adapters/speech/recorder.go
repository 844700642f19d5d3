// Package speech holds the pieces shared by the speech recognizers: audio
// capture from an external recorder, the single capture slot, and the event
// stream handed to the controller.
package speech

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"sync"
	"time"
)

const DefaultSampleRate = 16000

// Error codes reported in domain.VoiceEvent.Code.
const (
	CodeAudioCapture = "audio-capture"
	CodeNetwork      = "network"
	CodeNoSpeech     = "no-speech"
	CodeNotAllowed   = "not-allowed"
	CodeAborted      = "aborted"
)

var ErrBusy = errors.New("voice capture already running")

// Source opens a stream of signed 16-bit little-endian mono PCM.
type Source interface {
	Open(ctx context.Context) (io.ReadCloser, error)
}

// Recorder captures audio by running an external recorder that writes raw
// PCM to stdout.
type Recorder struct {
	Command    string
	Args       []string
	SampleRate int
	// StopTimeout bounds how long Close waits after interrupting the
	// recorder before killing it.
	StopTimeout time.Duration
}

var _ Source = Recorder{}

func (r Recorder) Open(ctx context.Context) (io.ReadCloser, error) {
	command := r.Command
	if command == "" {
		command = "arecord"
	}
	path, err := exec.LookPath(command)
	if err != nil {
		return nil, fmt.Errorf("find recorder %q: %w", command, err)
	}

	args := r.Args
	if len(args) == 0 {
		args = recorderArgs(command, r.sampleRate())
	}

	cmd := exec.CommandContext(ctx, path, args...)
	cmd.Stderr = io.Discard
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("recorder stdout: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start recorder: %w", err)
	}

	timeout := r.StopTimeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &capture{cmd: cmd, stdout: stdout, stopTimeout: timeout}, nil
}

func (r Recorder) sampleRate() int {
	if r.SampleRate > 0 {
		return r.SampleRate
	}
	return DefaultSampleRate
}

func recorderArgs(command string, rate int) []string {
	sampleRate := strconv.Itoa(rate)
	switch filepath.Base(command) {
	case "rec", "sox":
		return []string{"-q", "-t", "raw", "-b", "16", "-e", "signed-integer", "-c", "1", "-r", sampleRate, "-"}
	case "parecord", "pacat":
		return []string{"--raw", "--format=s16le", "--channels=1", "--rate=" + sampleRate}
	default:
		return []string{"-q", "-t", "raw", "-f", "S16_LE", "-c", "1", "-r", sampleRate}
	}
}

type capture struct {
	cmd         *exec.Cmd
	stdout      io.ReadCloser
	stopTimeout time.Duration

	closeOnce sync.Once
	closeErr  error
}

func (c *capture) Read(p []byte) (int, error) {
	return c.stdout.Read(p)
}

// Close interrupts the recorder so it flushes, then reaps it.
func (c *capture) Close() error {
	c.closeOnce.Do(func() {
		done := make(chan error, 1)
		go func() { done <- c.cmd.Wait() }()

		if c.cmd.Process != nil {
			_ = c.cmd.Process.Signal(os.Interrupt)
		}

		select {
		case err := <-done:
			c.closeErr = ignoreSignalExit(err)
		case <-time.After(c.stopTimeout):
			_ = c.cmd.Process.Kill()
			c.closeErr = ignoreSignalExit(<-done)
		}
	})
	return c.closeErr
}

func ignoreSignalExit(err error) error {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return nil
	}
	return err
}
