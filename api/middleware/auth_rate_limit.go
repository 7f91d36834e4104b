package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/angelmondragon/storepos-backend/api/responses"
	pkgerrors "github.com/angelmondragon/storepos-backend/pkg/errors"
	"github.com/angelmondragon/storepos-backend/pkg/logger"
)

// Only the head of a login body is inspected for the username.
const maxLoginBodyBytes = 8 << 10

type rateLimiterStore interface {
	IncrWithTTL(context.Context, string, time.Duration) (int64, error)
}

// AuthRateLimitPolicy caps attempts per client address and per username
// inside a fixed window. A zero limit disables that scope.
type AuthRateLimitPolicy struct {
	name          string
	window        time.Duration
	ipLimit       int
	usernameLimit int
}

func NewAuthRateLimitPolicy(name string, window time.Duration, ipLimit, usernameLimit int) AuthRateLimitPolicy {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		name = "auth"
	}
	return AuthRateLimitPolicy{
		name:          name,
		window:        window,
		ipLimit:       ipLimit,
		usernameLimit: usernameLimit,
	}
}

func (p AuthRateLimitPolicy) enabled() bool {
	return p.window > 0 && (p.ipLimit > 0 || p.usernameLimit > 0)
}

// attemptCounter is one throttled scope for one request: the Redis counter it
// bumps and the value logged when it trips.
type attemptCounter struct {
	scope    string
	key      string
	limit    int
	logField string
	logValue string
}

func (p AuthRateLimitPolicy) counter(scope, subject string, limit int, logField string) attemptCounter {
	return attemptCounter{
		scope:    scope,
		key:      fmt.Sprintf("storepos:rl:%s:%s:%s", scope, p.name, subject),
		limit:    limit,
		logField: logField,
		logValue: subject,
	}
}

// AuthRateLimit throttles login attempts. The address counter is checked
// before the body is read. When the counter store fails the attempt goes
// through, so a Redis outage never locks cashiers out of their tills.
func AuthRateLimit(policy AuthRateLimitPolicy, store rateLimiterStore, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if !policy.enabled() || store == nil {
			return next
		}
		limiter := authLimiter{policy: policy, store: store, logg: logg}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			if ip := clientIP(r); policy.ipLimit > 0 && ip != "" {
				if limiter.blocked(ctx, w, policy.counter("ip", ip, policy.ipLimit, "ip")) {
					return
				}
			}

			if policy.usernameLimit > 0 {
				username, err := peekUsername(r)
				if err != nil {
					responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read login request"))
					return
				}
				if username != "" {
					c := policy.counter("username", hashUsername(username), policy.usernameLimit, "username_hash")
					if limiter.blocked(ctx, w, c) {
						return
					}
				}
			}

			next.ServeHTTP(w, r)
		})
	}
}

type authLimiter struct {
	policy AuthRateLimitPolicy
	store  rateLimiterStore
	logg   *logger.Logger
}

// blocked bumps the counter and writes the 429 when it is over the limit.
func (l authLimiter) blocked(ctx context.Context, w http.ResponseWriter, c attemptCounter) bool {
	attempts, err := l.store.IncrWithTTL(ctx, c.key, l.policy.window)
	if err != nil {
		if l.logg != nil {
			l.logg.Warn(l.logg.WithFields(ctx, map[string]any{
				"policy": l.policy.name,
				"scope":  c.scope,
				"error":  err.Error(),
			}), "auth.rate_limit.store_unavailable")
		}
		return false
	}
	if attempts <= int64(c.limit) {
		return false
	}

	windowSecs := int(l.policy.window.Seconds())
	if l.logg != nil {
		l.logg.Warn(l.logg.WithFields(ctx, map[string]any{
			"policy":         l.policy.name,
			"scope":          c.scope,
			c.logField:       c.logValue,
			"attempts":       attempts,
			"limit":          c.limit,
			"window_seconds": windowSecs,
		}), "auth.rate_limit.blocked")
	}
	if windowSecs > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(windowSecs))
	}
	responses.WriteError(ctx, nil, w, pkgerrors.New(pkgerrors.CodeRateLimit, "too many login attempts, try again later"))
	return true
}

// peekUsername reads the login body, restores it for the handler and returns
// the normalized username. A body that is not JSON yields "".
func peekUsername(r *http.Request) (string, error) {
	if r.Body == nil {
		return "", nil
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxLoginBodyBytes))
	if err != nil {
		return "", err
	}
	r.Body = readCloser{Reader: io.MultiReader(bytes.NewReader(body), r.Body), Closer: r.Body}

	var login struct {
		Username string `json:"username"`
	}
	if err := json.Unmarshal(body, &login); err != nil {
		return "", nil
	}
	return strings.ToLower(strings.TrimSpace(login.Username)), nil
}

type readCloser struct {
	io.Reader
	io.Closer
}

// Usernames never reach Redis or the logs in clear text.
func hashUsername(username string) string {
	sum := sha256.Sum256([]byte(username))
	return hex.EncodeToString(sum[:])
}

// clientIP trusts the first X-Forwarded-For hop; the API only runs behind
// the load balancer.
func clientIP(r *http.Request) string {
	for _, part := range strings.Split(r.Header.Get("X-Forwarded-For"), ",") {
		if ip := strings.TrimSpace(part); ip != "" {
			return ip
		}
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil && host != "" {
		return host
	}
	return r.RemoteAddr
}
