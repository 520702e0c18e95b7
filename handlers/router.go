package handlers

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

type RouterOptions struct {
	CORSOrigin string
	Limiter    *RateLimiter
	Requests   RequestRecorder
	Metrics    http.Handler
}

// NewRouter wires every route. The middleware chain wraps the whole router
// so it also sees unmatched paths and preflight requests.
func NewRouter(h Handler, opts RouterOptions) http.Handler {
	limit := func(next http.HandlerFunc) http.HandlerFunc { return next }
	if opts.Limiter != nil {
		limit = opts.Limiter.Limit
	}

	r := mux.NewRouter()
	if opts.Requests != nil {
		r.Use(captureRoute)
	}

	r.HandleFunc("/register", limit(h.RegisterHandler)).Methods(http.MethodPost)
	r.HandleFunc("/login", limit(h.LoginHandler)).Methods(http.MethodPost)

	r.HandleFunc("/items", h.JWTMiddleware(h.CreateItemHandler)).Methods(http.MethodPost)
	r.HandleFunc("/items", h.JWTMiddleware(h.ListItemsHandler)).Methods(http.MethodGet)
	r.HandleFunc("/items/{id}", h.JWTMiddleware(h.DeleteItemHandler)).Methods(http.MethodDelete)

	r.HandleFunc("/trade", h.JWTMiddleware(h.InitiateTradeHandler)).Methods(http.MethodPost)
	r.HandleFunc("/trade/accept", h.JWTMiddleware(h.AcceptTradeHandler)).Methods(http.MethodPost)
	r.HandleFunc("/trade/decline", h.JWTMiddleware(h.DeclineTradeHandler)).Methods(http.MethodPost)

	r.HandleFunc("/notifications", h.JWTMiddleware(h.NotificationsHandler)).Methods(http.MethodGet)

	if opts.Metrics != nil {
		r.Handle("/metrics", opts.Metrics).Methods(http.MethodGet)
	}

	r.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if _, err := w.Write([]byte("Welcome to the Trade Hub API")); err != nil {
			h.log.WithError(err).Warn("write response")
		}
	}).Methods(http.MethodGet)

	origin := opts.CORSOrigin
	if origin == "" {
		origin = "*"
	}

	return chain(r, h.log, origin, opts.Requests)
}

// chain applies, from the outside in: access logging, request metrics,
// panic recovery and CORS. Recovery sits inside logging and metrics so a
// recovered panic is still recorded as a 500.
func chain(next http.Handler, log logrus.FieldLogger, origin string, requests RequestRecorder) http.Handler {
	handler := CORSMiddleware(origin)(next)
	handler = RecoveryMiddleware(log)(handler)
	if requests != nil {
		handler = MetricsMiddleware(requests)(handler)
	}
	return LoggingMiddleware(log)(handler)
}
