package handlers

import (
	"context"
	"errors"
	"net/http"
	"runtime/debug"
	"time"

	"tradehub/models"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

type contextKey int

const (
	principalKey contextKey = iota
	requestInfoKey
	routeLabelKey
)

// unmatchedRoute labels requests that no route matched, such as 404 and
// 405 responses from the router.
const unmatchedRoute = "unmatched"

// routeLabel is filled in by captureRoute once mux has matched a route.
type routeLabel struct {
	template string
}

// requestInfo is placed in the context by LoggingMiddleware so that inner
// middleware can report the authenticated user back to the access log.
type requestInfo struct {
	userID string
}

func principalFromContext(ctx context.Context) (models.Principal, bool) {
	p, ok := ctx.Value(principalKey).(models.Principal)
	return p, ok
}

func (h Handler) JWTMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, err := h.svc.Authenticate(r.Header.Get("Authorization"))
		if err != nil {
			if errors.Is(err, models.ErrUnauthorized) {
				respondWithError(w, http.StatusUnauthorized, "Access denied: No token provided")
				return
			}
			h.log.WithError(err).Debug("token verification failed")
			respondWithError(w, http.StatusForbidden, "Invalid or expired token")
			return
		}

		if info, ok := r.Context().Value(requestInfoKey).(*requestInfo); ok {
			info.userID = p.ID
		}
		ctx := context.WithValue(r.Context(), principalKey, p)
		next(w, r.WithContext(ctx))
	}
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
	written    bool
}

func (sr *statusRecorder) WriteHeader(code int) {
	if !sr.written {
		sr.statusCode = code
		sr.written = true
	}
	sr.ResponseWriter.WriteHeader(code)
}

func (sr *statusRecorder) Write(b []byte) (int, error) {
	if !sr.written {
		sr.statusCode = http.StatusOK
		sr.written = true
	}
	return sr.ResponseWriter.Write(b)
}

// LoggingMiddleware writes one access log entry per request. 4xx responses
// are logged at warn and 5xx at error.
func LoggingMiddleware(log logrus.FieldLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			info := &requestInfo{}
			rec := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(rec, r.WithContext(context.WithValue(r.Context(), requestInfoKey, info)))

			entry := log.WithFields(logrus.Fields{
				"method":      r.Method,
				"path":        r.URL.Path,
				"status":      rec.statusCode,
				"duration_ms": float64(time.Since(start).Microseconds()) / 1000,
			})
			if info.userID != "" {
				entry = entry.WithField("user_id", info.userID)
			}
			switch {
			case rec.statusCode >= 500:
				entry.Error("http_request")
			case rec.statusCode >= 400:
				entry.Warn("http_request")
			default:
				entry.Info("http_request")
			}
		})
	}
}

func RecoveryMiddleware(log logrus.FieldLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					log.WithFields(logrus.Fields{
						"panic":  rec,
						"method": r.Method,
						"path":   r.URL.Path,
						"stack":  string(debug.Stack()),
					}).Error("panic recovered")
					respondWithError(w, http.StatusInternalServerError, "Internal server error")
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// CORSMiddleware answers preflight requests itself, before route matching.
func CORSMiddleware(allowedOrigin string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", allowedOrigin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			w.Header().Set("Access-Control-Max-Age", "86400")

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

type RequestRecorder interface {
	RecordRequest(method, route string, status int, d time.Duration)
}

// MetricsMiddleware records every request that reaches the handler,
// labelled with the matched route template so that path parameters do not
// blow up label cardinality. It wraps the whole router; captureRoute must be
// registered with Router.Use to supply the template.
func MetricsMiddleware(rec RequestRecorder) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			label := &routeLabel{template: unmatchedRoute}
			sr := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(sr, r.WithContext(context.WithValue(r.Context(), routeLabelKey, label)))

			rec.RecordRequest(r.Method, label.template, sr.statusCode, time.Since(start))
		})
	}
}

func captureRoute(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if label, ok := r.Context().Value(routeLabelKey).(*routeLabel); ok {
			if cur := mux.CurrentRoute(r); cur != nil {
				if tpl, err := cur.GetPathTemplate(); err == nil {
					label.template = tpl
				}
			}
		}
		next.ServeHTTP(w, r)
	})
}
