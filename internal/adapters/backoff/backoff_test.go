package backoff

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/cegradar/cegradar/internal/common"
)

func TestClassify(t *testing.T) {
	assert.Equal(t, ActionUnhealthy, Classify(&common.ResourceNotFoundError{Kind: "page", ID: "x"}))
	assert.Equal(t, ActionUnhealthy, Classify(&common.UnauthorizedError{Collaborator: "x"}))
	assert.Equal(t, ActionSkipAndLog, Classify(&common.DataValidationError{Field: "title", Reason: "empty"}))
	assert.Equal(t, ActionBackoffContinue, Classify(&common.TransientIOError{Op: "fetch", Err: errors.New("timeout")}))
	assert.Equal(t, ActionBackoffContinue, Classify(errors.New("unknown")))
}

func TestPolicy_DelayCapsAtMax(t *testing.T) {
	p := NewPolicy()
	d := p.Delay(100)
	assert.LessOrEqual(t, d, MaxBackoff+MaxBackoff/4)
}

func TestPolicy_DelayIsZeroWhenInitialIsZero(t *testing.T) {
	p := &Policy{Initial: 0, Max: MaxBackoff, Multiplier: 2.0}
	assert.Equal(t, float64(0), float64(p.Delay(0)))
}
