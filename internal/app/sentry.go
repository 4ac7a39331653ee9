package app

import (
	"fmt"
	"log"
	"time"

	"github.com/getsentry/sentry-go"
)

// InitSentry enables error reporting. With an empty dsn it does nothing and
// the returned flush is a no-op.
func InitSentry(dsn, release string) (flush func(), err error) {
	if dsn == "" {
		return func() {}, nil
	}
	err = sentry.Init(sentry.ClientOptions{
		Dsn:              dsn,
		Release:          release,
		AttachStacktrace: true,
	})
	if err != nil {
		return func() {}, fmt.Errorf("sentry initialization failed: %w", err)
	}
	return func() { sentry.Flush(5 * time.Second) }, nil
}

// ReportSyncFailures sends terminal sync errors to Sentry.
func (a *App) ReportSyncFailures() {
	a.Sync.OnFailure = func(err error) {
		log.Printf("app: sync failure reported: %v", err)
		sentry.CaptureException(err)
	}
}
