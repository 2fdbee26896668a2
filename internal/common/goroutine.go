// Panic-protected goroutine wrappers used by every long-running loop in the
// pipeline (source pollers, enrichment workers, the outbox relay) so one bad
// news item or one flaky downstream call never takes the process down.
package common

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"sync/atomic"

	"github.com/ternarybob/arbor"
)

var goroutineCounter int64

// GoroutineCount returns the number of goroutines spawned via SafeGo /
// SafeGoWithContext, for diagnostics and tests.
func GoroutineCount() int64 {
	return atomic.LoadInt64(&goroutineCounter)
}

// SafeGo runs fn in a goroutine, recovering and logging any panic instead of
// crashing the process.
func SafeGo(logger arbor.ILogger, name string, fn func()) {
	atomic.AddInt64(&goroutineCounter, 1)

	go func() {
		defer recoverAndLog(logger, name)
		fn()
	}()
}

// SafeGoWithContext is SafeGo plus a context check: if ctx is already
// cancelled when the goroutine is scheduled to run, fn is skipped.
func SafeGoWithContext(ctx context.Context, logger arbor.ILogger, name string, fn func()) {
	atomic.AddInt64(&goroutineCounter, 1)

	go func() {
		defer recoverAndLog(logger, name)

		select {
		case <-ctx.Done():
			if logger != nil {
				logger.Debug().Str("goroutine", name).Msg("goroutine cancelled before start")
			}
			return
		default:
		}

		fn()
	}()
}

func recoverAndLog(logger arbor.ILogger, name string) {
	r := recover()
	if r == nil {
		return
	}

	buf := make([]byte, 4096)
	n := runtime.Stack(buf, false)
	stackTrace := string(buf[:n])

	if logger != nil {
		logger.Error().
			Str("goroutine", name).
			Str("panic", fmt.Sprintf("%v", r)).
			Str("stack", stackTrace).
			Msg("recovered from panic, goroutine terminated")
	} else {
		fmt.Fprintf(os.Stderr, "panic in goroutine %s: %v\n%s\n", name, r, stackTrace)
	}
}
