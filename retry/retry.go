package retry

import (
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

// ErrBudgetExhausted wraps the last failure after every attempt of an
// operation has been spent.
var ErrBudgetExhausted = errors.New("retry budget exhausted")

// Clock abstracts time for deterministic testing.
type Clock interface {
	Now() time.Time
	Sleep(d time.Duration)
}

// RealClock implements Clock using the standard library.
type RealClock struct{}

// Now returns the current time.
func (RealClock) Now() time.Time { return time.Now() }

// Sleep pauses the current goroutine.
func (RealClock) Sleep(d time.Duration) { time.Sleep(d) }

// Reconnector is the slice of the transport interface the controller uses
// to detect and heal a dropped session between attempts.
type Reconnector interface {
	IsConnected() bool
	Reconnect() error
}

// Policy configures attempt count and backoff shape.
type Policy struct {
	// MaxAttempts is the total number of attempts for one operation,
	// the first try included. Values below 1 behave as 1.
	MaxAttempts int

	// InitialDelay is the pause after the first failed attempt.
	InitialDelay time.Duration

	// MaxDelay caps the growing delay. The delay doubles per attempt and is
	// therefore monotonic non-decreasing up to this cap.
	MaxDelay time.Duration
}

// DefaultPolicy returns the engine default: five attempts, 500 ms initial
// delay doubling up to 8 s.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:  5,
		InitialDelay: 500 * time.Millisecond,
		MaxDelay:     8 * time.Second,
	}
}

// Delay returns the pause before retrying after the given 1-based failed
// attempt number.
func (p Policy) Delay(attempt int) time.Duration {
	if p.InitialDelay <= 0 {
		return 0
	}
	d := p.InitialDelay
	for i := 1; i < attempt; i++ {
		d *= 2
		if p.MaxDelay > 0 && d >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	if p.MaxDelay > 0 && d > p.MaxDelay {
		return p.MaxDelay
	}
	return d
}

// attempts returns the effective attempt count.
func (p Policy) attempts() int {
	if p.MaxAttempts < 1 {
		return 1
	}
	return p.MaxAttempts
}

// Controller drives retryable operations against one transport session.
type Controller struct {
	policy Policy
	conn   Reconnector
	clock  Clock
}

// NewController creates a controller for the given policy and session.
// conn may be nil for operations with no session to heal, such as the
// initial connect.
func NewController(policy Policy, conn Reconnector) *Controller {
	return &Controller{
		policy: policy,
		conn:   conn,
		clock:  RealClock{},
	}
}

// SetClock injects a custom clock for deterministic testing.
func (c *Controller) SetClock(clock Clock) {
	if clock == nil {
		clock = RealClock{}
	}
	c.clock = clock
}

// Do runs fn until it succeeds, fails permanently, or the attempt budget is
// spent. op names the operation for logs and error context.
func (c *Controller) Do(op string, fn func() error) error {
	return c.run(op, fn, true)
}

// DoConnect runs fn like Do but never heals between attempts. It is for
// the operation that establishes the session itself: healing there would
// dial a second time, and the healed session would leak when the next
// attempt of fn dials over it.
func (c *Controller) DoConnect(op string, fn func() error) error {
	return c.run(op, fn, false)
}

func (c *Controller) run(op string, fn func() error, heal bool) error {
	max := c.policy.attempts()

	var lastErr error
	for attempt := 1; attempt <= max; attempt++ {
		err := fn()
		if err == nil {
			if attempt > 1 {
				logrus.WithFields(logrus.Fields{
					"function":  "run",
					"operation": op,
					"attempt":   attempt,
				}).Info("Operation recovered after retry")
			}
			return nil
		}

		if !Retryable(err) {
			logrus.WithFields(logrus.Fields{
				"function":  "run",
				"operation": op,
				"attempt":   attempt,
				"error":     err.Error(),
			}).Error("Non-retryable failure, aborting operation")
			return err
		}

		lastErr = err
		if attempt == max {
			break
		}

		logrus.WithFields(logrus.Fields{
			"function":  "run",
			"operation": op,
			"attempt":   attempt,
			"of":        max,
			"error":     err.Error(),
		}).Warn("Retryable failure")

		if heal {
			c.heal(op)
		}
		c.clock.Sleep(c.policy.Delay(attempt))
	}

	return fmt.Errorf("%s: %w after %d attempts: %w", op, ErrBudgetExhausted, max, lastErr)
}

// heal re-establishes the session when the transport reports it lost.
// Reconnect failures are logged and left for the next attempt of fn to
// surface.
func (c *Controller) heal(op string) {
	if c.conn == nil || c.conn.IsConnected() {
		return
	}
	if err := c.conn.Reconnect(); err != nil {
		logrus.WithFields(logrus.Fields{
			"function":  "heal",
			"operation": op,
			"error":     err.Error(),
		}).Warn("Reconnect failed, next attempt will retry it")
	}
}
