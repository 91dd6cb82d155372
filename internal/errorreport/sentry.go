// Package errorreport forwards failures that operators need to see, such as
// a location collection that failed to load, to Sentry.
package errorreport

import (
	"fmt"
	"net/http"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/rs/zerolog/log"
)

// Config configures Sentry. An empty DSN disables reporting.
type Config struct {
	DSN              string
	Environment      string
	Release          string
	ServerName       string
	TracesSampleRate float64
	// Transport overrides event delivery; nil uses the default HTTP transport.
	Transport sentry.Transport
}

var enabled bool

// Init initializes the global Sentry client.
func Init(cfg Config) error {
	if cfg.DSN == "" {
		log.Warn().Msg("Sentry DSN not configured - error reporting disabled")
		enabled = false
		return nil
	}

	err := sentry.Init(sentry.ClientOptions{
		Dsn:              cfg.DSN,
		Environment:      cfg.Environment,
		Release:          cfg.Release,
		ServerName:       cfg.ServerName,
		TracesSampleRate: cfg.TracesSampleRate,
		Transport:        cfg.Transport,
		BeforeSend: func(event *sentry.Event, _ *sentry.EventHint) *sentry.Event {
			// Session cookies identify a browser
			if event.Request != nil && event.Request.Headers != nil {
				delete(event.Request.Headers, "Authorization")
				delete(event.Request.Headers, "Cookie")
			}
			if event.Request != nil {
				event.Request.Cookies = ""
			}
			return event
		},
	})
	if err != nil {
		log.Error().Err(err).Msg("Failed to initialize Sentry")
		return fmt.Errorf("sentry init: %w", err)
	}

	enabled = true
	log.Info().Str("environment", cfg.Environment).Str("release", cfg.Release).Msg("Sentry initialized")
	return nil
}

// Enabled reports whether events are being sent.
func Enabled() bool {
	return enabled
}

// CaptureException reports err with extra context attached to this event only.
func CaptureException(err error, context map[string]interface{}) {
	if err == nil || !enabled {
		return
	}

	sentry.WithScope(func(scope *sentry.Scope) {
		for key, value := range context {
			scope.SetContext(key, sentry.Context{"value": value})
		}
		sentry.CaptureException(err)
	})
	log.Debug().Err(err).Msg("Exception captured in Sentry")
}

// CaptureMessage reports a message at the given level.
func CaptureMessage(message string, level sentry.Level, context map[string]interface{}) {
	if !enabled {
		return
	}

	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetLevel(level)
		for key, value := range context {
			scope.SetContext(key, sentry.Context{"value": value})
		}
		sentry.CaptureMessage(message)
	})
}

// Flush waits for queued events to be delivered.
func Flush(timeout time.Duration) bool {
	if !enabled {
		return true
	}
	return sentry.Flush(timeout)
}

// Middleware recovers handler panics, reports them and answers 500.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				err, ok := rec.(error)
				if !ok {
					err = fmt.Errorf("panic: %v", rec)
				}
				log.Error().Err(err).Str("path", r.URL.Path).Msg("Handler panicked")
				CaptureException(err, map[string]interface{}{
					"request": map[string]string{"method": r.Method, "path": r.URL.Path},
				})
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}
