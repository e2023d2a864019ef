package navsync

import (
	"sync"
	"time"
)

// AnnounceDelay is how long after load the embedded deck sends its one-shot
// initial position.
const AnnounceDelay = 100 * time.Millisecond

// Signal names a source of position-change notifications inside the deck.
// Delivery is at-least-once and may repeat.
type Signal string

const (
	SignalFragment Signal = "hashchange"
	SignalHistory  Signal = "popstate"
	SignalMutation Signal = "mutation"
)

// Poster delivers messages to the embedding parent.
type Poster interface {
	PostMessage(msg Message, targetOrigin string)
}

// PosterFunc adapts a function to Poster.
type PosterFunc func(msg Message, targetOrigin string)

func (f PosterFunc) PostMessage(msg Message, targetOrigin string) { f(msg, targetOrigin) }

// Embedded is the deck-side state machine.
type Embedded struct {
	mu sync.Mutex

	index        int
	announced    bool
	poster       Poster
	targetOrigin string
}

// NewEmbedded initializes the deck state from its own fragment (default 0).
func NewEmbedded(fragment string, poster Poster, targetOrigin string) *Embedded {
	if targetOrigin == "" {
		targetOrigin = AnyOrigin
	}
	return &Embedded{
		index:        ParseFragment(fragment, 0),
		poster:       poster,
		targetOrigin: targetOrigin,
	}
}

// Index returns the last known position.
func (e *Embedded) Index() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.index
}

// Observe handles a change signal carrying the deck's current fragment. An
// unparsable fragment keeps the last known index. A message is posted only
// when the index differs from the last known one.
func (e *Embedded) Observe(_ Signal, fragment string) bool {
	e.mu.Lock()
	idx := ParseFragment(fragment, e.index)
	if idx == e.index {
		e.mu.Unlock()
		return false
	}
	e.index = idx
	e.mu.Unlock()

	e.poster.PostMessage(SlideChange(idx), e.targetOrigin)
	return true
}

// Announce posts the current index once, to establish agreement after load.
// Later calls are no-ops.
func (e *Embedded) Announce() bool {
	e.mu.Lock()
	if e.announced {
		e.mu.Unlock()
		return false
	}
	e.announced = true
	idx := e.index
	e.mu.Unlock()

	e.poster.PostMessage(SlideChange(idx), e.targetOrigin)
	return true
}
