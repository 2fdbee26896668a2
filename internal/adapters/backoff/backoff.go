// Package backoff implements the per-source failure handling spec'd in
// §4.1, grounded on the teacher's internal/services/crawler.RetryPolicy:
// exponential backoff with jitter, capped at 15 minutes, specialized by
// error class instead of HTTP status code.
package backoff

import (
	"errors"
	"math/rand"
	"time"

	"github.com/cegradar/cegradar/internal/common"
)

// MaxBackoff is the ceiling on the exponential backoff delay (§4.1).
const MaxBackoff = 15 * time.Minute

// MaxChannelRetries is the consecutive-failure count after which a source
// is marked Unhealthy instead of retried again (§4.1).
const MaxChannelRetries = 3

// Policy tracks the exponential backoff state for one source's poll loop.
type Policy struct {
	Initial    time.Duration
	Max        time.Duration
	Multiplier float64
}

// NewPolicy returns the default backoff policy: 1s initial, 15min cap,
// doubling each attempt.
func NewPolicy() *Policy {
	return &Policy{
		Initial:    time.Second,
		Max:        MaxBackoff,
		Multiplier: 2.0,
	}
}

// Delay returns the backoff duration for the given retry count (0-based),
// with ±25% jitter the same way the teacher's CalculateBackoff does.
func (p *Policy) Delay(retryCount int) time.Duration {
	d := float64(p.Initial)
	for i := 0; i < retryCount; i++ {
		d *= p.Multiplier
	}
	if d > float64(p.Max) {
		d = float64(p.Max)
	}

	jitter := d * 0.25 * (rand.Float64()*2 - 1)
	d += jitter
	if d < 0 {
		d = float64(p.Initial)
	}

	return time.Duration(d)
}

// Classify sorts a poll/fetch error into one of the three actions §4.1
// specifies: becoming unhealthy, backing off and continuing, or skipping
// the item and logging.
type Action int

const (
	// ActionBackoffContinue retries after Delay; the poller marks the source
	// Degraded meanwhile.
	ActionBackoffContinue Action = iota
	// ActionUnhealthy marks the source Unhealthy; the poller stops trying
	// it until an operator intervenes or it's re-enabled.
	ActionUnhealthy
	// ActionSkipAndLog drops the single offending item and keeps polling.
	ActionSkipAndLog
)

// Classify maps an error to the action the poller should take.
func Classify(err error) Action {
	var notFound *common.ResourceNotFoundError
	var unauthorized *common.UnauthorizedError
	var validation *common.DataValidationError

	switch {
	case errors.As(err, &notFound), errors.As(err, &unauthorized):
		return ActionUnhealthy
	case errors.As(err, &validation):
		return ActionSkipAndLog
	default:
		return ActionBackoffContinue
	}
}
