package notify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/deckbuilder/internal/config"
	"git.home.luguber.info/inful/deckbuilder/internal/events"
	ferrors "git.home.luguber.info/inful/deckbuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/deckbuilder/internal/navsync"
)

type published struct {
	subject string
	data    string
}

type fakeConn struct {
	mu     sync.Mutex
	msgs   []published
	err    error
	closed bool
}

func (c *fakeConn) Publish(subject string, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.msgs = append(c.msgs, published{subject: subject, data: string(data)})
	return nil
}

func (c *fakeConn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}

func (c *fakeConn) snapshot() []published {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]published(nil), c.msgs...)
}

func TestPublishUpdate(t *testing.T) {
	conn := &fakeConn{}
	p := NewPublisher(conn, "deckbuilder.slides.updated")

	require.NoError(t, p.PublishUpdate(navsync.NewContentUpdate("intro")))
	msgs := conn.snapshot()
	require.Len(t, msgs, 1)
	require.Equal(t, "deckbuilder.slides.updated", msgs[0].subject)
	require.JSONEq(t, `{"event":"slide-content-update","data":{"slideId":"intro"}}`, msgs[0].data)

	conn.err = errors.New("connection closed")
	err := p.PublishUpdate(navsync.NewContentUpdate("intro"))
	require.True(t, ferrors.HasCategory(err, ferrors.CategoryNetwork))

	p.Close()
	require.True(t, conn.closed)
}

func TestRunForwardsArtifactChanges(t *testing.T) {
	conn := &fakeConn{}
	p := NewPublisher(conn, "slides")
	bus := events.NewBus()
	defer bus.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go p.Run(ctx, bus)
	require.Eventually(t, func() bool {
		return events.SubscriberCount[events.ArtifactChanged](bus) == 1
	}, time.Second, 10*time.Millisecond)

	require.NoError(t, bus.Publish(ctx, events.ArtifactChanged{SlideID: "a"}))
	require.NoError(t, bus.Publish(ctx, events.ManifestUpdated{Entries: 1}))
	require.NoError(t, bus.Publish(ctx, events.ArtifactChanged{SlideID: "b"}))

	require.Eventually(t, func() bool { return len(conn.snapshot()) == 2 }, time.Second, 10*time.Millisecond)
	msgs := conn.snapshot()
	require.Contains(t, msgs[0].data, `"slideId":"a"`)
	require.Contains(t, msgs[1].data, `"slideId":"b"`)
}

func TestConnectFailure(t *testing.T) {
	_, err := Connect(config.NATSConfig{URL: "nats://127.0.0.1:1", Subject: "x"})
	require.Error(t, err)
	require.True(t, ferrors.HasCategory(err, ferrors.CategoryNetwork))
}
