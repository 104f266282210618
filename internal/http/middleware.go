package http

import (
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/example/rehearsal-scheduler/internal/application"
	"github.com/example/rehearsal-scheduler/internal/logging"
)

// ActingUserHeader carries the identifier of the user the request acts for.
// Authentication happens upstream; this service trusts the header.
const ActingUserHeader = "X-Acting-User"

// RequireActor resolves the acting user from ActingUserHeader and rejects
// requests without one.
func RequireActor(logger *zerolog.Logger) func(http.Handler) http.Handler {
	responder := newResponder(logger)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID := strings.TrimSpace(r.Header.Get(ActingUserHeader))
			if userID == "" {
				responder.writeError(r.Context(), w, http.StatusUnauthorized, errMissingActor)
				return
			}

			ctx := ContextWithPrincipal(r.Context(), application.Principal{UserID: userID})
			if l := logging.FromContext(ctx); l != nil {
				scoped := l.With().Str("principal_id", userID).Logger()
				ctx = logging.ContextWithLogger(ctx, &scoped)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequestLogger attaches a request scoped logger to the context and logs the
// start and outcome of each request.
func RequestLogger(base *zerolog.Logger) func(http.Handler) http.Handler {
	base = defaultLogger(base)
	var counter atomic.Uint64

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get("X-Request-ID")
			if id == "" {
				id = strconv.FormatUint(counter.Add(1), 10)
			}
			logger := base.With().
				Str("request_id", id).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Logger()

			ctx := logging.ContextWithLogger(r.Context(), &logger)
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			start := time.Now()
			logger.Debug().Msg("request started")
			next.ServeHTTP(rec, r.WithContext(ctx))
			logger.Info().
				Int("status", rec.status).
				Dur("duration", time.Since(start)).
				Msg("request completed")
		})
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(status int) {
	s.status = status
	s.ResponseWriter.WriteHeader(status)
}

// RateLimiter allows each client a fixed number of requests per window,
// refilled continuously. Clients are keyed by remote address unless the
// acting user header is trusted, see KeyByActingUser.
type RateLimiter struct {
	mu        sync.Mutex
	byActor   bool
	clients   map[string]*clientLimiter
	limit     rate.Limit
	per       time.Duration
	burst     int
	idle      time.Duration
	now       func() time.Time
	lastSweep time.Time
}

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter allows requests per window for each client. Non-positive
// values disable limiting.
func NewRateLimiter(requests int, window time.Duration) *RateLimiter {
	if requests <= 0 || window <= 0 {
		return nil
	}
	return &RateLimiter{
		clients: make(map[string]*clientLimiter),
		limit:   rate.Every(window / time.Duration(requests)),
		per:     window / time.Duration(requests),
		burst:   requests,
		idle:    window,
		now:     time.Now,
	}
}

// KeyByActingUser keys clients by ActingUserHeader, falling back to the
// remote address. Enable it only behind a gateway that sets the header and
// strips client-supplied values.
func (l *RateLimiter) KeyByActingUser(enabled bool) *RateLimiter {
	if l != nil {
		l.byActor = enabled
	}
	return l
}

// Allow reports whether the client identified by key may proceed.
func (l *RateLimiter) Allow(key string) bool {
	if l == nil {
		return true
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.sweep(now)

	c, ok := l.clients[key]
	if !ok {
		c = &clientLimiter{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.clients[key] = c
	}
	c.lastSeen = now
	return c.limiter.AllowN(now, 1)
}

// sweep drops clients idle for a whole window; their bucket would be full again.
func (l *RateLimiter) sweep(now time.Time) {
	if now.Sub(l.lastSweep) < l.idle {
		return
	}
	for key, c := range l.clients {
		if now.Sub(c.lastSeen) >= l.idle {
			delete(l.clients, key)
		}
	}
	l.lastSweep = now
}

// Middleware rejects requests over the limit with 429.
func (l *RateLimiter) Middleware(logger *zerolog.Logger) func(http.Handler) http.Handler {
	responder := newResponder(logger)

	return func(next http.Handler) http.Handler {
		if l == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !l.Allow(l.clientKey(r)) {
				w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(l.per.Seconds()))))
				responder.writeError(r.Context(), w, http.StatusTooManyRequests, errRateLimited)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (l *RateLimiter) clientKey(r *http.Request) string {
	if l.byActor {
		if user := strings.TrimSpace(r.Header.Get(ActingUserHeader)); user != "" {
			return "user:" + user
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return "addr:" + host
}
