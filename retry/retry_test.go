package retry

import (
	"context"
	"errors"
	"fmt"
	"net/textproto"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opd-ai/ftpush/transport"
)

// fakeClock records sleeps instead of pausing.
type fakeClock struct {
	now    time.Time
	sleeps []time.Duration
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Sleep(d time.Duration) {
	c.sleeps = append(c.sleeps, d)
	c.now = c.now.Add(d)
}

// fakeSession simulates a transport session dropping on every failure.
type fakeSession struct {
	connected  bool
	reconnects int
}

func (s *fakeSession) IsConnected() bool { return s.connected }

func (s *fakeSession) Reconnect() error {
	s.reconnects++
	s.connected = true
	return nil
}

func TestDoSucceedsFirstAttempt(t *testing.T) {
	ctl := NewController(DefaultPolicy(), nil)
	ctl.SetClock(newFakeClock())

	calls := 0
	err := ctl.Do("write_chunk", func() error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestDoRetriesThenSucceedsWithReconnects(t *testing.T) {
	// Mirrors the engine contract: two failures then success inside a
	// five-attempt budget, with one reconnect per failure.
	session := &fakeSession{connected: true}
	clock := newFakeClock()
	ctl := NewController(Policy{MaxAttempts: 5, InitialDelay: 500 * time.Millisecond, MaxDelay: 8 * time.Second}, session)
	ctl.SetClock(clock)

	calls := 0
	err := ctl.Do("write_chunk", func() error {
		calls++
		if calls <= 2 {
			session.connected = false
			return fmt.Errorf("conn dropped: %w", transport.ErrNotConnected)
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, 2, session.reconnects)
	assert.Equal(t, []time.Duration{500 * time.Millisecond, time.Second}, clock.sleeps)
}

func TestDoConnectRetriesWithoutHealing(t *testing.T) {
	// The dial op recovers by redialing in the next attempt; healing here
	// would open a second session that the redial then leaks.
	session := &fakeSession{connected: false}
	ctl := NewController(Policy{MaxAttempts: 3, InitialDelay: time.Millisecond}, session)
	ctl.SetClock(newFakeClock())

	calls := 0
	err := ctl.DoConnect("connect", func() error {
		calls++
		if calls < 2 {
			return fmt.Errorf("dial refused: %w", transport.ErrNotConnected)
		}
		session.connected = true
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 2, calls, "one dial per attempt")
	assert.Equal(t, 0, session.reconnects, "no Reconnect while establishing the session")
}

func TestDoExhaustsBudget(t *testing.T) {
	session := &fakeSession{connected: true}
	ctl := NewController(Policy{MaxAttempts: 4, InitialDelay: time.Millisecond}, session)
	ctl.SetClock(newFakeClock())

	calls := 0
	failure := errors.New("remote busy")
	err := ctl.Do("rename", func() error {
		calls++
		return failure
	})

	require.Error(t, err)
	assert.Equal(t, 4, calls, "exactly MaxAttempts attempts")
	assert.ErrorIs(t, err, ErrBudgetExhausted)
	assert.ErrorIs(t, err, failure)
}

func TestDoShortCircuitsNonRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{name: "authentication", err: fmt.Errorf("login: %w", transport.ErrAuthentication)},
		{name: "context_cancelled", err: context.Canceled},
		{name: "permanent_marker", err: Permanent(errors.New("size mismatch"))},
		{name: "ftp_permanent_reply", err: &textproto.Error{Code: 550, Msg: "No such file"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			session := &fakeSession{connected: true}
			ctl := NewController(DefaultPolicy(), session)
			ctl.SetClock(newFakeClock())

			calls := 0
			err := ctl.Do("op", func() error {
				calls++
				return tt.err
			})

			require.Error(t, err)
			assert.Equal(t, 1, calls, "no retry for fatal errors")
			assert.Equal(t, 0, session.reconnects)
			assert.NotErrorIs(t, err, ErrBudgetExhausted)
		})
	}
}

// timeoutError satisfies net.Error the way a deadline-expired read does.
type timeoutError struct{}

func (*timeoutError) Error() string   { return "i/o timeout" }
func (*timeoutError) Timeout() bool   { return true }
func (*timeoutError) Temporary() bool { return true }

func TestRetryableClassification(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "not_connected", err: transport.ErrNotConnected, want: true},
		{name: "auth", err: transport.ErrAuthentication, want: false},
		{name: "ftp_transient_reply", err: &textproto.Error{Code: 421, Msg: "Service not available"}, want: true},
		{name: "ftp_permanent_reply", err: &textproto.Error{Code: 553, Msg: "File name not allowed"}, want: false},
		{name: "deadline_is_a_timeout", err: context.DeadlineExceeded, want: true},
		{name: "io_timeout", err: &timeoutError{}, want: true},
		{name: "permanent_wrapped", err: Permanent(transport.ErrNotConnected), want: false},
		{name: "unknown_defaults_transient", err: errors.New("connection reset by peer"), want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Retryable(tt.err))
		})
	}
}

func TestPolicyDelayMonotonic(t *testing.T) {
	p := DefaultPolicy()

	prev := time.Duration(0)
	for attempt := 1; attempt <= 10; attempt++ {
		d := p.Delay(attempt)
		assert.GreaterOrEqual(t, d, prev, "delay must never shrink")
		assert.LessOrEqual(t, d, p.MaxDelay)
		prev = d
	}
	assert.Equal(t, 500*time.Millisecond, p.Delay(1))
	assert.Equal(t, time.Second, p.Delay(2))
	assert.Equal(t, 8*time.Second, p.Delay(6))
}

func TestPermanentNilPassthrough(t *testing.T) {
	assert.NoError(t, Permanent(nil))
}
