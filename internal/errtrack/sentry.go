package errtrack

import (
	"log"
	"time"

	"github.com/getsentry/sentry-go"
)

// Tracker reports unexpected failures to Sentry. A Tracker built without a DSN
// is disabled and every method is a no-op; a nil *Tracker is also safe.
type Tracker struct {
	initialized bool
}

// New initializes the Sentry client for dsn. An empty dsn disables tracking.
func New(dsn, environment, release string) *Tracker {
	if dsn == "" {
		log.Println("errtrack: SENTRY_DSN not set, Sentry disabled")
		return &Tracker{}
	}
	if environment == "" {
		environment = "development"
	}
	err := sentry.Init(sentry.ClientOptions{
		Dsn:              dsn,
		Environment:      environment,
		Release:          release,
		TracesSampleRate: 0,
	})
	if err != nil {
		log.Printf("errtrack: Sentry initialization failed: %v", err)
		return &Tracker{}
	}
	return &Tracker{initialized: true}
}

// Enabled reports whether events are sent.
func (t *Tracker) Enabled() bool {
	return t != nil && t.initialized
}

// Capture sends err with the operation and tags attached.
func (t *Tracker) Capture(op string, err error, tags map[string]string) {
	if !t.Enabled() || err == nil {
		return
	}
	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("operation", op)
		for k, v := range tags {
			if v != "" {
				scope.SetTag(k, v)
			}
		}
		scope.SetLevel(sentry.LevelError)
		sentry.CaptureException(err)
	})
}

// Recover captures a panic in progress, then re-panics. Use as a deferred call.
func (t *Tracker) Recover() {
	if !t.Enabled() {
		return
	}
	if r := recover(); r != nil {
		sentry.CurrentHub().Recover(r)
		sentry.Flush(2 * time.Second)
		panic(r)
	}
}

// Flush waits up to timeout for queued events. Returns true when the queue drained.
func (t *Tracker) Flush(timeout time.Duration) bool {
	if !t.Enabled() {
		return true
	}
	return sentry.Flush(timeout)
}
