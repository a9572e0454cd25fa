package notify

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFanout_SubscribeAndNotify(t *testing.T) {
	f := NewFanout()

	ch1 := make(chan Event, 10)
	ch2 := make(chan Event, 10)
	require.NoError(t, f.Subscribe("ui", ch1))
	require.NoError(t, f.Subscribe("logger", ch2))

	ev := Event{Kind: KindSessionStarted, SessionID: "s1", URI: "file:///a.mp3"}
	require.NoError(t, f.Notify(ev))

	assert.Equal(t, ev, <-ch1)
	assert.Equal(t, ev, <-ch2)
	assert.Equal(t, uint64(1), f.Published())
}

func TestFanout_SubscribeErrors(t *testing.T) {
	f := NewFanout()
	ch := make(chan Event, 1)
	require.NoError(t, f.Subscribe("ui", ch))

	assert.ErrorIs(t, f.Subscribe("ui", ch), ErrSubscriberExists)
	assert.ErrorIs(t, f.Subscribe("other", nil), ErrNilChannel)

	f.Close()
	assert.ErrorIs(t, f.Subscribe("late", ch), ErrFanoutClosed)
}

func TestFanout_DropsWhenFull(t *testing.T) {
	f := NewFanout()
	ch := make(chan Event, 2)
	require.NoError(t, f.Subscribe("slow", ch))

	for i := 0; i < 5; i++ {
		require.NoError(t, f.Notify(Event{Kind: KindPosition, Position: int64(i)}))
	}

	stats, err := f.Stats("slow")
	require.NoError(t, err)
	assert.Equal(t, uint64(2), stats.Sent)
	assert.Equal(t, uint64(3), stats.Dropped)

	// The oldest events were kept
	assert.Equal(t, int64(0), (<-ch).Position)
	assert.Equal(t, int64(1), (<-ch).Position)
}

func TestFanout_Unsubscribe(t *testing.T) {
	f := NewFanout()
	ch := make(chan Event, 1)
	require.NoError(t, f.Subscribe("ui", ch))
	require.NoError(t, f.Unsubscribe("ui"))

	require.NoError(t, f.Notify(Event{Kind: KindPaused}))
	assert.Empty(t, ch)

	assert.ErrorIs(t, f.Unsubscribe("ui"), ErrSubscriberNotFound)
	_, err := f.Stats("ui")
	assert.ErrorIs(t, err, ErrSubscriberNotFound)
}

func TestFanout_NotifyAfterClose(t *testing.T) {
	f := NewFanout()
	ch := make(chan Event, 1)
	require.NoError(t, f.Subscribe("ui", ch))

	f.Close()
	f.Close() // idempotent

	assert.NoError(t, f.Notify(Event{Kind: KindPaused}))
	assert.Empty(t, ch)
}

func TestFanout_ConcurrentNotify(t *testing.T) {
	f := NewFanout()
	ch := make(chan Event, 1000)
	require.NoError(t, f.Subscribe("ui", ch))

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				_ = f.Notify(Event{Kind: KindPosition})
			}
		}()
	}
	wg.Wait()

	stats, err := f.Stats("ui")
	require.NoError(t, err)
	assert.Equal(t, uint64(500), stats.Sent+stats.Dropped)
	assert.Equal(t, uint64(500), f.Published())
}
