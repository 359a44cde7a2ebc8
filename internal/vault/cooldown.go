package vault

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Cooldown refuses credential attempts after maxAttempts consecutive
// failures. One further attempt is allowed per period. It is client-side
// only and never changes session state.
type Cooldown struct {
	mu          sync.Mutex
	maxAttempts int
	period      time.Duration
	limiter     *rate.Limiter
	now         func() time.Time
}

// NewCooldown returns a cool-down. maxAttempts <= 0 or period <= 0 disables
// it.
func NewCooldown(maxAttempts int, period time.Duration) *Cooldown {
	c := &Cooldown{
		maxAttempts: maxAttempts,
		period:      period,
		now:         time.Now,
	}
	c.reset()
	return c
}

// Check returns ErrCoolingDown while no attempt is available.
func (c *Cooldown) Check() error {
	if c.disabled() {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.limiter.TokensAt(c.now()) < 1 {
		return ErrCoolingDown
	}
	return nil
}

// Failure spends one attempt.
func (c *Cooldown) Failure() {
	if c.disabled() {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	c.limiter.AllowN(c.now(), 1)
}

// Success restores the full attempt budget.
func (c *Cooldown) Success() {
	if c.disabled() {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	c.reset()
}

func (c *Cooldown) disabled() bool {
	return c == nil || c.maxAttempts <= 0 || c.period <= 0
}

func (c *Cooldown) reset() {
	if c.disabled() {
		return
	}
	c.limiter = rate.NewLimiter(rate.Every(c.period), c.maxAttempts)
}
