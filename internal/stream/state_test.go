package stream

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to State
		want     bool
	}{
		{StateIdle, StateConnecting, true},
		{StateConnecting, StateStreaming, true},
		{StateConnecting, StateErroring, true},
		{StateStreaming, StateErroring, true},
		{StateErroring, StateConnecting, true},
		{StateErroring, StateClosed, true},
		{StateStreaming, StateClosed, true},
		{StateConnecting, StateClosed, true},
		{StateClosed, StateConnecting, false},
		{StateClosed, StateIdle, false},
		{StateStreaming, StateConnecting, false},
		{StateIdle, StateStreaming, false},
	}
	for _, tt := range tests {
		t.Run(tt.from.String()+"->"+tt.to.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, CanTransition(tt.from, tt.to))
		})
	}
}

func TestState_MarshalText(t *testing.T) {
	b, err := StateErroring.MarshalText()
	assert.NoError(t, err)
	assert.Equal(t, "Erroring", string(b))
	assert.Equal(t, "Unknown", State(42).String())
}

func TestState_TextRoundTrip(t *testing.T) {
	for _, st := range []State{StateIdle, StateConnecting, StateStreaming, StateErroring, StateClosed} {
		b, err := json.Marshal(Info{ID: "s", State: st})
		require.NoError(t, err)
		var got Info
		require.NoError(t, json.Unmarshal(b, &got))
		assert.Equal(t, st, got.State)
	}

	_, err := ParseState("Unknown")
	assert.Error(t, err)
	var st State
	assert.Error(t, st.UnmarshalText([]byte("streaming")))
}

func TestRetrier_Budget(t *testing.T) {
	r := newRetrier(RetryPolicy{MaxAttempts: 3, InitialDelay: 10 * time.Millisecond, MaxDelay: 25 * time.Millisecond, Factor: 2}, time.Now)

	var delays []time.Duration
	for {
		d, ok := r.next()
		if !ok {
			break
		}
		delays = append(delays, d)
	}
	assert.Equal(t, []time.Duration{10 * time.Millisecond, 20 * time.Millisecond, 25 * time.Millisecond}, delays)

	r.reset()
	d, ok := r.next()
	assert.True(t, ok)
	assert.Equal(t, 10*time.Millisecond, d)
}

func TestRetrier_MaxElapsed(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	r := newRetrier(RetryPolicy{MaxAttempts: 100, InitialDelay: time.Second, Factor: 1, MaxElapsed: time.Minute}, clock)

	_, ok := r.next()
	assert.True(t, ok)
	now = now.Add(30 * time.Second)
	_, ok = r.next()
	assert.True(t, ok)
	now = now.Add(31 * time.Second)
	_, ok = r.next()
	assert.False(t, ok)
}

func TestRetryPolicy_Validate(t *testing.T) {
	assert.NoError(t, DefaultRetryPolicy().Validate())
	assert.Error(t, RetryPolicy{MaxAttempts: -1}.Validate())
	assert.Error(t, RetryPolicy{Factor: 0.5}.Validate())
	assert.Error(t, RetryPolicy{InitialDelay: -time.Second}.Validate())
}
