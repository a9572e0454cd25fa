package notify

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKind_String(t *testing.T) {
	tests := []struct {
		kind Kind
		want string
	}{
		{KindSessionStarted, "session-started"},
		{KindPosition, "position"},
		{KindPaused, "paused"},
		{KindResumed, "resumed"},
		{KindSessionEnded, "session-ended"},
		{KindError, "error"},
		{Kind(42), "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.kind.String())
		})
	}
}

func TestMulti_DeliversToAll(t *testing.T) {
	errBroken := errors.New("broken")
	var got []string

	m := Multi{
		Func(func(ev Event) error {
			got = append(got, "a:"+ev.Kind.String())
			return nil
		}),
		Func(func(Event) error { return errBroken }),
		Func(func(ev Event) error {
			got = append(got, "c:"+ev.Kind.String())
			return nil
		}),
	}

	err := m.Notify(Event{Kind: KindPaused})
	assert.ErrorIs(t, err, errBroken)
	assert.Equal(t, []string{"a:paused", "c:paused"}, got)
}

func TestDiscard(t *testing.T) {
	assert.NoError(t, Discard.Notify(Event{Kind: KindError}))
}
