package chat

import (
	"context"
	"sync"

	"github.com/bnema/docqa-cli/internal/application"
	"github.com/bnema/docqa-cli/internal/ports"
	tea "github.com/charmbracelet/bubbletea"
)

type stateMsg struct {
	state application.State
}

type confirmRequestMsg struct {
	prompt string
	reply  chan<- bool
}

// Bridge forwards controller callbacks into a running Bubble Tea program. It
// is created before the program so it can be handed to the controller, and
// attached once the program exists. Until then snapshots are dropped and
// confirmations are declined.
type Bridge struct {
	mu      sync.RWMutex
	program *tea.Program
}

var (
	_ application.StateObserver = (*Bridge)(nil)
	_ ports.Confirmer           = (*Bridge)(nil)
)

func NewBridge() *Bridge {
	return &Bridge{}
}

func (b *Bridge) Attach(p *tea.Program) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.program = p
}

func (b *Bridge) send(msg tea.Msg) bool {
	b.mu.RLock()
	p := b.program
	b.mu.RUnlock()
	if p == nil {
		return false
	}

	// Send returns without delivering once the program has exited.
	p.Send(msg)
	return true
}

func (b *Bridge) StateChanged(s application.State) {
	b.send(stateMsg{state: s})
}

// Confirm shows prompt as a modal and blocks until the user answers or ctx
// is done. It must not be called from the program's Update loop.
func (b *Bridge) Confirm(ctx context.Context, prompt string) (bool, error) {
	reply := make(chan bool, 1)
	if !b.send(confirmRequestMsg{prompt: prompt, reply: reply}) {
		return false, nil
	}

	select {
	case ok := <-reply:
		return ok, nil
	case <-ctx.Done():
		return false, ctx.Err()
	}
}
