package middlewares

import (
	"context"
	"errors"
	"net/http"

	"github.com/felixge/httpsnoop"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/mbolis/pozo-survey/gate"
	"github.com/mbolis/pozo-survey/httpx"
	"github.com/mbolis/pozo-survey/log"
)

type contextKey struct{ name string }

var sessionKey = &contextKey{"form_session"}

// FormSession attaches the form session of the request to its context,
// starting a new session when the cookie is missing, expired or forged.
func FormSession(issuer *httpx.SessionIssuer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, err := issuer.Verify(r)
			if err != nil {
				if !errors.Is(err, httpx.ErrNoSession) {
					log.Debugf("session.verify: %s", err)
				}

				id, err = issuer.Issue(w)
				if err != nil {
					httpx.LogInternalError(w, "session.issue", err)
					return
				}
				log.Debugf("session.issue: %s", id)
			}

			next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), id)))
		})
	}
}

func WithSession(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, sessionKey, id)
}

// Session returns the form session ID put in ctx by FormSession.
func Session(ctx context.Context) string {
	id, _ := ctx.Value(sessionKey).(string)
	return id
}

// Authenticated refuses requests with 401 unless the latest page load of the
// form session passed the gate. Pending counts as not authenticated.
func Authenticated(loads *gate.Loads) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if state := loads.State(Session(r.Context())); state != gate.Authenticated {
				httpx.LogStatus(w, http.StatusUnauthorized, log.DebugLevel, "gate."+state.String())
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequestLog writes one line per request once it has been served.
func RequestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m := httpsnoop.CaptureMetrics(next, w, r)

		entry := log.WithFields(log.Fields{
			"method":   r.Method,
			"path":     r.URL.Path,
			"status":   m.Code,
			"bytes":    m.Written,
			"duration": m.Duration,
		})
		if id := middleware.GetReqID(r.Context()); id != "" {
			entry = entry.WithField("request_id", id)
		}

		if m.Code >= 500 {
			entry.Warn("http.request")
		} else {
			entry.Debug("http.request")
		}
	})
}
