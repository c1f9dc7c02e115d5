package stream

import (
	"fmt"
	"time"

	"k8s.io/apimachinery/pkg/util/wait"
)

// RetryPolicy bounds reconnect attempts after ConnectionLost.
type RetryPolicy struct {
	// MaxAttempts is the retry budget. Default: 3.
	MaxAttempts int `json:"maxAttempts"`
	// InitialDelay before the first retry. Default: 500ms.
	InitialDelay time.Duration `json:"initialDelay"`
	// MaxDelay caps a single wait. Default: 5s.
	MaxDelay time.Duration `json:"maxDelay"`
	// Factor multiplies the delay after every retry. Default: 2.
	Factor float64 `json:"factor"`
	// Jitter adds up to this fraction of random delay.
	Jitter float64 `json:"jitter"`
	// MaxElapsed gives up once a failure streak has lasted this long. Zero disables it.
	MaxElapsed time.Duration `json:"maxElapsed"`
}

// DefaultRetryPolicy returns the policy used when none is configured.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:  3,
		InitialDelay: 500 * time.Millisecond,
		MaxDelay:     5 * time.Second,
		Factor:       2,
		Jitter:       0.1,
	}
}

// Validate rejects policies that could never retry sensibly.
func (p RetryPolicy) Validate() error {
	if p.MaxAttempts < 0 {
		return fmt.Errorf("retry maxAttempts must be >= 0, got %d", p.MaxAttempts)
	}
	if p.InitialDelay < 0 || p.MaxDelay < 0 || p.MaxElapsed < 0 {
		return fmt.Errorf("retry delays must not be negative")
	}
	if p.Factor != 0 && p.Factor < 1 {
		return fmt.Errorf("retry factor must be >= 1, got %v", p.Factor)
	}
	if p.Jitter < 0 {
		return fmt.Errorf("retry jitter must not be negative")
	}
	return nil
}

// retrier tracks one failure streak.
type retrier struct {
	policy  RetryPolicy
	backoff wait.Backoff
	started time.Time
	count   int
	now     func() time.Time
}

func newRetrier(p RetryPolicy, now func() time.Time) *retrier {
	r := &retrier{policy: p, now: now}
	r.reset()
	return r
}

func (r *retrier) reset() {
	r.backoff = wait.Backoff{
		Duration: r.policy.InitialDelay,
		Factor:   r.policy.Factor,
		Jitter:   r.policy.Jitter,
		Steps:    r.policy.MaxAttempts,
		Cap:      r.policy.MaxDelay,
	}
	r.started = time.Time{}
	r.count = 0
}

// next returns the wait before the next attempt, or false when the budget
// is spent.
func (r *retrier) next() (time.Duration, bool) {
	if r.started.IsZero() {
		r.started = r.now()
	}
	if r.count >= r.policy.MaxAttempts {
		return 0, false
	}
	if r.policy.MaxElapsed > 0 && r.now().Sub(r.started) >= r.policy.MaxElapsed {
		return 0, false
	}
	r.count++
	return r.backoff.Step(), true
}
