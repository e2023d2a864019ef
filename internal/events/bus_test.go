package events

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	ferrors "git.home.luguber.info/inful/deckbuilder/internal/foundation/errors"
)

func receive[T any](t *testing.T, ch <-chan T) T {
	t.Helper()
	select {
	case v, ok := <-ch:
		require.True(t, ok, "channel closed")
		return v
	case <-time.After(250 * time.Millisecond):
		t.Fatal("timed out waiting for event")
	}
	var zero T
	return zero
}

func TestBus_PublishSubscribe(t *testing.T) {
	b := NewBus()
	defer b.Close()

	ch, unsubscribe := Subscribe[ArtifactChanged](b, 1)
	defer unsubscribe()

	require.NoError(t, b.Publish(context.Background(), ArtifactChanged{SlideID: "intro"}))
	require.Equal(t, "intro", receive(t, ch).SlideID)
}

func TestBus_TypeRouting(t *testing.T) {
	b := NewBus()
	defer b.Close()

	artifacts, unsubA := Subscribe[ArtifactChanged](b, 2)
	defer unsubA()
	all, unsubAll := Subscribe[Event](b, 2)
	defer unsubAll()

	require.NoError(t, b.Publish(context.Background(), ManifestUpdated{Entries: 3}))
	require.NoError(t, b.Publish(context.Background(), ArtifactChanged{SlideID: "a"}))

	require.Equal(t, "manifest_updated", receive(t, all).EventName())
	require.Equal(t, "artifact_changed", receive(t, all).EventName())
	require.Equal(t, "a", receive(t, artifacts).SlideID)
	require.Empty(t, artifacts)
}

func TestBus_PublishBackpressure(t *testing.T) {
	b := NewBus()
	defer b.Close()

	_, unsubscribe := Subscribe[ArtifactChanged](b, 0)
	defer unsubscribe()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := b.Publish(ctx, ArtifactChanged{SlideID: "slow"})
	require.Error(t, err)
	require.True(t, ferrors.HasCategory(err, ferrors.CategoryRuntime))
}

func TestBus_UnsubscribeAndClose(t *testing.T) {
	b := NewBus()

	ch, unsubscribe := Subscribe[ArtifactChanged](b, 1)
	require.Equal(t, 1, SubscriberCount[ArtifactChanged](b))
	unsubscribe()
	unsubscribe()
	require.Zero(t, SubscriberCount[ArtifactChanged](b))
	_, ok := <-ch
	require.False(t, ok)

	ch2, _ := Subscribe[ManifestUpdated](b, 1)
	b.Close()
	_, ok = <-ch2
	require.False(t, ok)

	require.Error(t, b.Publish(context.Background(), ManifestUpdated{}))

	late, _ := Subscribe[ManifestUpdated](b, 1)
	_, ok = <-late
	require.False(t, ok)
}

func TestBus_NilEvent(t *testing.T) {
	b := NewBus()
	defer b.Close()
	err := b.Publish(context.Background(), nil)
	require.True(t, ferrors.HasCategory(err, ferrors.CategoryValidation))
}
