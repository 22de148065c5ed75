package console

import (
	"errors"
	"sync/atomic"
)

// ErrBusy is returned when a command is submitted while another one runs.
var ErrBusy = errors.New("console is processing a command")

type State int32

const (
	StateIdle State = iota
	StateProcessing
)

func (s State) String() string {
	if s == StateProcessing {
		return "processing"
	}
	return "idle"
}

// Guard admits one command at a time: Idle -> Processing -> Idle.
// Submissions while Processing are rejected, not queued.
type Guard struct {
	state atomic.Int32
}

// Enter moves Idle to Processing. It reports false when already Processing.
func (g *Guard) Enter() bool {
	return g.state.CompareAndSwap(int32(StateIdle), int32(StateProcessing))
}

// Leave returns the guard to Idle.
func (g *Guard) Leave() {
	g.state.Store(int32(StateIdle))
}

func (g *Guard) State() State {
	return State(g.state.Load())
}
