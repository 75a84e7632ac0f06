package tickersync

import (
	"math/rand"
	"time"
)

// RetryStep is the state of one provider call's retry machine
//
//	Attempt -> (success) Done
//	Attempt -> (transient error) Backoff -> Retry, and Retry behaves as Attempt
//	Attempt -> (transient error, ceiling reached) GiveUp
//	Attempt -> (final error) GiveUp
type RetryStep int

const (
	StepAttempt RetryStep = iota
	StepBackoff
	StepRetry
	StepGiveUp
	StepDone
)

func (s RetryStep) String() string {
	switch s {
	case StepAttempt:
		return "attempt"
	case StepBackoff:
		return "backoff"
	case StepRetry:
		return "retry"
	case StepGiveUp:
		return "give_up"
	case StepDone:
		return "done"
	default:
		return "unknown"
	}
}

// RetryPolicy bounds retries of one provider call
type RetryPolicy struct {
	MaxAttempts int           // total attempts, including the first
	BaseDelay   time.Duration // delay before the second attempt
	MaxDelay    time.Duration // cap on any single delay
	Jitter      float64       // delay is scaled by a factor in [1-Jitter, 1+Jitter]
}

// DefaultRetryPolicy returns the retry policy used for quote lookups
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 4,
		BaseDelay:   500 * time.Millisecond,
		MaxDelay:    8 * time.Second,
		Jitter:      0.5,
	}
}

// Delay returns the un-jittered backoff before attempt n+1, given n failed attempts
func (p RetryPolicy) Delay(failed int) time.Duration {
	if failed < 1 {
		return 0
	}
	d := p.BaseDelay
	for i := 1; i < failed; i++ {
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

// Retrier drives the retry state machine for a single call. Not safe for concurrent use.
type Retrier struct {
	policy   RetryPolicy
	random   func() float64
	step     RetryStep
	attempts int
	delay    time.Duration
}

// NewRetrier creates a retrier. random returns values in [0,1); nil uses math/rand.
func NewRetrier(policy RetryPolicy, random func() float64) *Retrier {
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}
	if random == nil {
		random = rand.Float64
	}
	return &Retrier{policy: policy, random: random, step: StepAttempt}
}

// Step returns the current state
func (r *Retrier) Step() RetryStep {
	return r.step
}

// Attempts returns how many attempts have been made
func (r *Retrier) Attempts() int {
	return r.attempts
}

// Delay returns the wait chosen for the current Backoff state
func (r *Retrier) Delay() time.Duration {
	return r.delay
}

// Observe records the outcome of an attempt and moves to Done, Backoff or GiveUp.
// transient reports whether a failed attempt may be retried.
func (r *Retrier) Observe(err error, transient bool) RetryStep {
	if r.step != StepAttempt && r.step != StepRetry {
		return r.step
	}
	r.attempts++

	switch {
	case err == nil:
		r.step = StepDone
	case !transient || r.attempts >= r.policy.MaxAttempts:
		r.step = StepGiveUp
	default:
		r.delay = r.jitter(r.policy.Delay(r.attempts))
		r.step = StepBackoff
	}
	return r.step
}

// Waited marks the backoff as served: Backoff -> Retry
func (r *Retrier) Waited() RetryStep {
	if r.step != StepBackoff {
		return r.step
	}
	r.step = StepRetry
	r.delay = 0
	return r.step
}

func (r *Retrier) jitter(d time.Duration) time.Duration {
	j := r.policy.Jitter
	if j <= 0 || d <= 0 {
		return d
	}
	if j > 1 {
		j = 1
	}
	factor := 1 - j + 2*j*r.random()
	d = time.Duration(float64(d) * factor)
	if r.policy.MaxDelay > 0 && d > r.policy.MaxDelay {
		d = r.policy.MaxDelay
	}
	return d
}
