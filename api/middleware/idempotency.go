package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"

	"github.com/angelmondragon/storepos-backend/api/responses"
	pkgerrors "github.com/angelmondragon/storepos-backend/pkg/errors"
	"github.com/angelmondragon/storepos-backend/pkg/logger"
	pkgredis "github.com/angelmondragon/storepos-backend/pkg/redis"
)

const (
	idempotencyHeader    = "Idempotency-Key"
	replayedHeader       = "Idempotent-Replayed"
	maxIdempotencyKeyLen = 128

	defaultIdempotencyTTL = 24 * time.Hour
	// Sales stay replayable for a week so a till that was offline over a
	// weekend can resubmit its queue.
	criticalIdempotencyTTL = 7 * 24 * time.Hour
)

// idempotentWrites lists the writes that require an Idempotency-Key. Templates
// are matched segment by segment; a {placeholder} matches any one segment, so
// both chi patterns and raw paths resolve.
var idempotentWrites = []struct {
	method   string
	template string
	ttl      time.Duration
}{
	{http.MethodPost, "/api/v1/sales", criticalIdempotencyTTL},
	{http.MethodPatch, "/api/v1/sales/{saleId}/payment-status", criticalIdempotencyTTL},
	{http.MethodPost, "/api/v1/products", defaultIdempotencyTTL},
	{http.MethodPost, "/api/v1/products/{productId}/stock-adjustments", defaultIdempotencyTTL},
	{http.MethodPost, "/api/v1/customers", defaultIdempotencyTTL},
	{http.MethodPost, "/api/v1/users", defaultIdempotencyTTL},
}

// storedResponse is what a replay writes back. Body is base64 in JSON.
type storedResponse struct {
	Status      int       `json:"status"`
	ContentType string    `json:"content_type,omitempty"`
	Body        []byte    `json:"body"`
	RequestHash string    `json:"request_hash"`
	StoredAt    time.Time `json:"stored_at"`
}

// Idempotency replays the stored response when a till resubmits a write with
// the same Idempotency-Key, so a retried sale is never booked twice. Server
// errors are not recorded and the retry runs the handler again.
func Idempotency(store pkgredis.IdempotencyStore, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ttl, covered := routeTTL(r.Method, routePattern(r))
			if !covered || store == nil {
				next.ServeHTTP(w, r)
				return
			}
			ctx := r.Context()

			clientKey, err := idempotencyKeyFrom(r)
			if err != nil {
				responses.WriteError(ctx, logg, w, err)
				return
			}
			body, err := io.ReadAll(r.Body)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request body"))
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			cache := replayCache{
				store: store,
				key:   store.IdempotencyKey(requestScope(r), clientKey),
				hash:  fingerprint(body),
			}
			prior, err := cache.lookup(ctx)
			if err != nil {
				responses.WriteError(ctx, logg, w, err)
				return
			}
			if prior != nil {
				prior.replay(w)
				return
			}

			capture := &bufferedWriter{ResponseWriter: w}
			next.ServeHTTP(capture, r)

			if capture.statusCode() >= http.StatusInternalServerError {
				return
			}
			if err := cache.save(ctx, capture, ttl); err != nil && logg != nil {
				logg.Error(logg.WithField(ctx, "idempotency_key", clientKey), "idempotency record not stored", err)
			}
		})
	}
}

func idempotencyKeyFrom(r *http.Request) (string, error) {
	key := strings.TrimSpace(r.Header.Get(idempotencyHeader))
	switch {
	case key == "":
		return "", pkgerrors.New(pkgerrors.CodeValidation, "Idempotency-Key header required")
	case len(key) > maxIdempotencyKeyLen:
		return "", pkgerrors.New(pkgerrors.CodeValidation, "Idempotency-Key header too long").
			WithDetails(map[string]any{"max_length": maxIdempotencyKeyLen})
	}
	return key, nil
}

// requestScope keeps keys from colliding across cashiers and resources.
func requestScope(r *http.Request) string {
	return fmt.Sprintf("%d|%s|%s", UserIDFromContext(r.Context()), r.Method, r.URL.Path)
}

func fingerprint(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}

type replayCache struct {
	store pkgredis.IdempotencyStore
	key   string
	hash  string
}

// lookup returns the stored response for the key, or nil on first use. A key
// presented with a different body is a client error.
func (c replayCache) lookup(ctx context.Context) (*storedResponse, error) {
	raw, err := c.store.Get(ctx, c.key)
	if errors.Is(err, redis.Nil) || (err == nil && raw == "") {
		return nil, nil
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check idempotency")
	}
	var stored storedResponse
	if err := json.Unmarshal([]byte(raw), &stored); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode idempotency record")
	}
	if stored.RequestHash != c.hash {
		return nil, pkgerrors.New(pkgerrors.CodeIdempotency, "idempotency key reused with different request body")
	}
	return &stored, nil
}

func (c replayCache) save(ctx context.Context, capture *bufferedWriter, ttl time.Duration) error {
	payload, err := json.Marshal(storedResponse{
		Status:      capture.statusCode(),
		ContentType: capture.Header().Get("Content-Type"),
		Body:        capture.body.Bytes(),
		RequestHash: c.hash,
		StoredAt:    time.Now().UTC(),
	})
	if err != nil {
		return err
	}
	// A concurrent duplicate may have stored first; its record wins.
	_, err = c.store.SetNX(ctx, c.key, string(payload), ttl)
	return err
}

func (s *storedResponse) replay(w http.ResponseWriter) {
	if s.ContentType != "" {
		w.Header().Set("Content-Type", s.ContentType)
	}
	w.Header().Set(replayedHeader, "true")
	w.WriteHeader(s.Status)
	_, _ = w.Write(s.Body)
}

// routePattern prefers chi's matched pattern. Middleware mounted on a route
// group only sees "/prefix/*", so the request path is used instead.
func routePattern(r *http.Request) string {
	if r == nil {
		return ""
	}
	if rc := chi.RouteContext(r.Context()); rc != nil {
		if pattern := rc.RoutePattern(); pattern != "" && !strings.HasSuffix(pattern, "*") {
			return trimTrailingSlash(pattern)
		}
	}
	return trimTrailingSlash(r.URL.Path)
}

func trimTrailingSlash(path string) string {
	if len(path) > 1 {
		return strings.TrimSuffix(path, "/")
	}
	return path
}

func routeTTL(method, pattern string) (time.Duration, bool) {
	if pattern == "" {
		return 0, false
	}
	for _, write := range idempotentWrites {
		if write.method == method && matchTemplate(write.template, pattern) {
			return write.ttl, true
		}
	}
	return 0, false
}

func matchTemplate(template, path string) bool {
	want := strings.Split(template, "/")
	got := strings.Split(path, "/")
	if len(want) != len(got) {
		return false
	}
	for i, segment := range want {
		if strings.HasPrefix(segment, "{") && strings.HasSuffix(segment, "}") {
			if got[i] == "" {
				return false
			}
			continue
		}
		if segment != got[i] {
			return false
		}
	}
	return true
}

type bufferedWriter struct {
	http.ResponseWriter
	body   bytes.Buffer
	status int
}

func (b *bufferedWriter) WriteHeader(code int) {
	if b.status == 0 {
		b.status = code
	}
	b.ResponseWriter.WriteHeader(code)
}

func (b *bufferedWriter) Write(p []byte) (int, error) {
	if b.status == 0 {
		b.status = http.StatusOK
	}
	b.body.Write(p)
	return b.ResponseWriter.Write(p)
}

func (b *bufferedWriter) statusCode() int {
	if b.status == 0 {
		return http.StatusOK
	}
	return b.status
}
