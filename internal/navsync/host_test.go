package navsync

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeLocation struct {
	fragment string
	replaces int
	pushes   int
}

func (l *fakeLocation) ReplaceFragment(f string) {
	l.fragment = f
	l.replaces++
}

type fakeFrame struct {
	fragment  string
	pushes    int
	reloads   []string
	crossOrig bool
}

func (f *fakeFrame) SetFragment(fragment string) error {
	if f.crossOrig {
		return errors.New("SecurityError: blocked a frame with origin")
	}
	f.fragment = fragment
	f.pushes++
	return nil
}

func (f *fakeFrame) Reload(src string) { f.reloads = append(f.reloads, src) }

func fixedClock(ms int64) func() time.Time {
	return func() time.Time { return time.UnixMilli(ms) }
}

func TestHost_MountReadsFragment(t *testing.T) {
	require.Equal(t, 4, NewHost("intro", "#4", &fakeLocation{}, &fakeFrame{}).Index())
	require.Equal(t, 0, NewHost("intro", "", &fakeLocation{}, &fakeFrame{}).Index())
	require.Equal(t, 0, NewHost("intro", "#oops", &fakeLocation{}, &fakeFrame{}).Index())
}

func TestHost_AdoptsSlideChangeWithoutHistoryEntry(t *testing.T) {
	loc := &fakeLocation{}
	frame := &fakeFrame{}
	h := NewHost("intro", "", loc, frame)

	require.True(t, h.HandleMessage("https://deck.example", []byte(`{"type":"slidechange","index":7}`)))
	require.Equal(t, 7, h.Index())
	require.Equal(t, "7", loc.fragment)
	require.Equal(t, 1, loc.replaces)
	require.Zero(t, loc.pushes)
	require.Equal(t, "7", frame.fragment)
}

func TestHost_IgnoresUnknownMessages(t *testing.T) {
	loc := &fakeLocation{}
	frame := &fakeFrame{}
	h := NewHost("intro", "#2", loc, frame)

	require.False(t, h.HandleMessage("*", []byte(`{"type":"somethingElse"}`)))
	require.False(t, h.HandleMessage("*", []byte(`{"type":"slidechange","index":-4}`)))
	require.False(t, h.HandleMessage("*", []byte(`not json`)))
	require.Equal(t, 2, h.Index())
	require.Zero(t, loc.replaces)
	require.Zero(t, frame.pushes)
}

func TestHost_RedundantUpdatesAreNoOps(t *testing.T) {
	loc := &fakeLocation{}
	frame := &fakeFrame{}
	h := NewHost("intro", "", loc, frame)

	msg := []byte(`{"type":"slidechange","index":3}`)
	require.True(t, h.HandleMessage("*", msg))
	require.False(t, h.HandleMessage("*", msg))
	// The fragment observer fires for the replacement as well.
	require.False(t, h.HandleFragmentChange("#3"))

	require.Equal(t, 1, loc.replaces)
	require.Equal(t, 1, frame.pushes)
}

func TestHost_FragmentChangeThenMessageConverge(t *testing.T) {
	loc := &fakeLocation{}
	frame := &fakeFrame{}
	h := NewHost("intro", "#1", loc, frame)

	require.True(t, h.HandleFragmentChange("#5"))
	require.Equal(t, "5", frame.fragment)
	// The deck echoes the new position back.
	require.False(t, h.HandleMessage("*", []byte(`{"type":"slidechange","index":5}`)))
	require.Equal(t, 5, h.Index())

	// A fragment that does not parse resets the host to the first slide.
	require.True(t, h.HandleFragmentChange("#bogus"))
	require.Equal(t, 0, h.Index())
	require.Equal(t, "0", frame.fragment)
}

func TestHost_CrossOriginFramePushIsIgnored(t *testing.T) {
	loc := &fakeLocation{}
	frame := &fakeFrame{crossOrig: true}
	h := NewHost("intro", "", loc, frame)

	require.True(t, h.HandleMessage("*", []byte(`{"type":"slidechange","index":2}`)))
	require.Equal(t, 2, h.Index())
	require.Equal(t, "2", loc.fragment)
}

func TestHost_OriginPolicy(t *testing.T) {
	h := NewHost("intro", "", &fakeLocation{}, &fakeFrame{},
		WithOriginPolicy(NewOriginPolicy([]string{"https://deck.example"})))

	require.False(t, h.HandleMessage("https://evil.example", []byte(`{"type":"slidechange","index":9}`)))
	require.Equal(t, 0, h.Index())
	require.True(t, h.HandleMessage("https://deck.example", []byte(`{"type":"slidechange","index":9}`)))
	require.Equal(t, 9, h.Index())
}

func TestHost_ContentUpdateReloadsOnlyMatchingFrame(t *testing.T) {
	frame := &fakeFrame{}
	h := NewHost("intro", "#3", &fakeLocation{}, frame,
		WithFramePrefix("/slides/"), WithClock(fixedClock(1000)))

	require.False(t, h.HandleContentUpdate(NewContentUpdate("other").Marshal()))
	require.False(t, h.HandleContentUpdate([]byte(`{"event":"bogus"}`)))
	require.Empty(t, frame.reloads)

	require.True(t, h.HandleContentUpdate(NewContentUpdate("intro").Marshal()))
	require.True(t, h.HandleContentUpdate(NewContentUpdate("intro").Marshal()))
	require.Equal(t, []string{
		"/slides/intro.html?t=1000#3",
		"/slides/intro.html?t=1001#3",
	}, frame.reloads, "every reload gets a fresh cache-busting token")
}

func TestHost_FrameSrc(t *testing.T) {
	require.Equal(t, "/slides/intro.html", NewHost("intro", "", &fakeLocation{}, &fakeFrame{}).FrameSrc())
	require.Equal(t, "/decks/my%20deck.html#2",
		NewHost("my deck", "#2", &fakeLocation{}, &fakeFrame{}, WithFramePrefix("/decks/")).FrameSrc())
}
