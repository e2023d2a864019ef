package navsync

import (
	"log/slog"
	"net/url"
	"strconv"
	"sync"
	"time"

	"git.home.luguber.info/inful/deckbuilder/internal/logfields"
)

// Location is the host page's addressable location.
type Location interface {
	// ReplaceFragment rewrites the fragment without creating a history entry.
	ReplaceFragment(fragment string)
}

// Frame is the embedded deck as seen from the host.
type Frame interface {
	// SetFragment pushes a fragment into the embedded document directly.
	// It may fail when the frame is cross-origin or not loaded yet.
	SetFragment(fragment string) error
	// Reload points the frame at src, reloading only the frame.
	Reload(src string)
}

// Host is the host-side state machine.
type Host struct {
	mu sync.Mutex

	slideID     string
	framePrefix string
	index       int
	lastBust    int64

	location Location
	frame    Frame
	policy   OriginPolicy
	now      func() time.Time
}

// HostOption configures a Host.
type HostOption func(*Host)

// WithOriginPolicy restricts which message origins are processed.
func WithOriginPolicy(p OriginPolicy) HostOption {
	return func(h *Host) { h.policy = p }
}

// WithFramePrefix sets the path prefix artifacts are framed from.
func WithFramePrefix(prefix string) HostOption {
	return func(h *Host) { h.framePrefix = prefix }
}

// WithClock overrides the clock used for cache-busting tokens.
func WithClock(now func() time.Time) HostOption {
	return func(h *Host) { h.now = now }
}

// NewHost mounts a host for slideID. The initial index comes from the host's
// own fragment and defaults to 0.
func NewHost(slideID, fragment string, loc Location, frame Frame, opts ...HostOption) *Host {
	h := &Host{
		slideID:     slideID,
		framePrefix: "/slides/",
		index:       ParseFragment(fragment, 0),
		location:    loc,
		frame:       frame,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Index returns the host's current position.
func (h *Host) Index() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.index
}

// HandleMessage processes a message posted by the embedded deck. Malformed
// messages and disallowed origins are ignored. It reports whether the index
// changed.
func (h *Host) HandleMessage(origin string, data []byte) bool {
	if !h.policy.Allows(origin) {
		slog.Debug("Ignoring message from disallowed origin", logfields.Origin(origin))
		return false
	}
	msg, ok := ParseMessage(data)
	if !ok {
		return false
	}
	return h.adopt(msg.Index)
}

// HandleFragmentChange processes the host's own fragment changing by other
// means, such as a URL edit or history traversal.
func (h *Host) HandleFragmentChange(fragment string) bool {
	return h.adopt(ParseFragment(fragment, 0))
}

// adopt sets the current index. Setting the current value again has no side
// effects.
func (h *Host) adopt(index int) bool {
	h.mu.Lock()
	if index == h.index {
		h.mu.Unlock()
		return false
	}
	h.index = index
	h.mu.Unlock()

	// The deck treats an empty fragment as "no change", so index 0 is pushed
	// explicitly.
	h.location.ReplaceFragment(FormatFragment(index))
	if err := h.frame.SetFragment(FormatFragment(index)); err != nil {
		// The message channel remains the guaranteed path.
		slog.Debug("Could not push fragment into frame", logfields.Index(index), logfields.Error(err))
	}
	return true
}

// HandleContentUpdate reloads the frame when the signal names the deck being
// shown. The host page itself is never reloaded.
func (h *Host) HandleContentUpdate(data []byte) bool {
	u, ok := ParseContentUpdate(data)
	if !ok || u.Data.SlideID != h.slideID {
		return false
	}
	h.frame.Reload(h.frameSrc(true))
	return true
}

// FrameSrc returns the frame source for the current position.
func (h *Host) FrameSrc() string {
	return h.frameSrc(false)
}

func (h *Host) frameSrc(bust bool) string {
	h.mu.Lock()
	defer h.mu.Unlock()

	src := h.framePrefix + url.PathEscape(h.slideID) + ".html"
	if bust {
		token := h.now().UnixMilli()
		if token <= h.lastBust {
			token = h.lastBust + 1
		}
		h.lastBust = token
		src += "?t=" + strconv.FormatInt(token, 10)
	}
	if f := frameFragment(h.index); f != "" {
		src += "#" + f
	}
	return src
}

// frameFragment omits the fragment for the first slide in a freshly loaded
// frame, where the deck starts at 0 anyway.
func frameFragment(index int) string {
	if index == 0 {
		return ""
	}
	return FormatFragment(index)
}
