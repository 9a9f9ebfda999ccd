package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/angelmondragon/orderdesk-backend/api/responses"
	pkgerrors "github.com/angelmondragon/orderdesk-backend/pkg/errors"
	"github.com/angelmondragon/orderdesk-backend/pkg/logger"
	pkgredis "github.com/angelmondragon/orderdesk-backend/pkg/redis"
)

const (
	idempotencyHeader = "Idempotency-Key"
	replayHeader      = "Idempotent-Replay"
	maxKeyLength      = 128

	standardKeyTTL = 24 * time.Hour
	orderKeyTTL    = 7 * 24 * time.Hour

	// inFlightTTL bounds how long a crashed request can hold its key.
	inFlightTTL = 30 * time.Second
)

// idempotencyRule matches a request path against a template where "*" is one
// segment and a trailing "**" is any remainder.
type idempotencyRule struct {
	method   string
	template []string
	ttl      time.Duration
	required bool
}

func rule(method, template string, ttl time.Duration, required bool) idempotencyRule {
	return idempotencyRule{method: method, template: segments(template), ttl: ttl, required: required}
}

// First match wins. Placing and cancelling an order must carry a key; other
// mutations are deduplicated only when the client sends one.
var idempotencyRules = []idempotencyRule{
	rule(http.MethodPost, "/api/v1/orders", orderKeyTTL, true),
	rule(http.MethodPost, "/api/v1/orders/*/cancel", orderKeyTTL, true),
	rule(http.MethodPost, "/api/v1/orders/**", standardKeyTTL, false),
	rule(http.MethodPatch, "/api/v1/orders/**", standardKeyTTL, false),
	rule(http.MethodDelete, "/api/v1/orders/**", standardKeyTTL, false),
	rule(http.MethodPost, "/api/v1/order-items/bulk-delete", standardKeyTTL, false),
	rule(http.MethodPost, "/api/v1/stock/**", standardKeyTTL, false),
	rule(http.MethodPatch, "/api/v1/stock/**", standardKeyTTL, false),
	rule(http.MethodDelete, "/api/v1/stock/**", standardKeyTTL, false),
}

func segments(path string) []string {
	path = strings.Trim(path, "/")
	if path == "" {
		return nil
	}
	return strings.Split(path, "/")
}

func (r idempotencyRule) matches(method string, path []string) bool {
	if r.method != method {
		return false
	}
	for i, want := range r.template {
		if want == "**" {
			return len(path) > i
		}
		if i >= len(path) || (want != "*" && want != path[i]) {
			return false
		}
	}
	return len(path) == len(r.template)
}

func matchRule(method, path string) (idempotencyRule, bool) {
	parts := segments(path)
	for _, candidate := range idempotencyRules {
		if candidate.matches(method, parts) {
			return candidate, true
		}
	}
	return idempotencyRule{}, false
}

// storedResponse is what a replay writes back.
type storedResponse struct {
	Status      int    `json:"status"`
	ContentType string `json:"content_type,omitempty"`
	Body        []byte `json:"body"`
	RequestHash string `json:"request_hash"`
}

// Idempotency replays the stored response when a caller repeats a key with
// the same body and rejects reuse with a different body. 5xx responses are
// not stored so the client can retry them.
func Idempotency(store pkgredis.IdempotencyStore, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			matched, ok := matchRule(r.Method, r.URL.Path)
			if !ok || store == nil {
				next.ServeHTTP(w, r)
				return
			}

			clientKey := strings.TrimSpace(r.Header.Get(idempotencyHeader))
			switch {
			case clientKey == "" && matched.required:
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "Idempotency-Key header required"))
				return
			case clientKey == "":
				next.ServeHTTP(w, r)
				return
			case len(clientKey) > maxKeyLength:
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "Idempotency-Key too long"))
				return
			}

			body, err := io.ReadAll(r.Body)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request"))
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))
			hash := requestHash(body)
			key := store.IdempotencyKey(callerScope(r), clientKey)

			if replayed := replayIfStored(w, r, store, key, hash, logg); replayed {
				return
			}

			claimKey := key + ":inflight"
			claimed, err := store.SetNX(ctx, claimKey, hash, inFlightTTL)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "claim idempotency key"))
				return
			}
			if !claimed {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeIdempotency, "request with this idempotency key is still in progress"))
				return
			}
			defer func() {
				if err := store.Del(ctx, claimKey); err != nil && logg != nil {
					logg.Error(ctx, "release idempotency claim", err)
				}
			}()
			// A request holding the claim may have finished between the first
			// lookup and our claim.
			if replayed := replayIfStored(w, r, store, key, hash, logg); replayed {
				return
			}

			capture := &responseCapture{ResponseWriter: w}
			next.ServeHTTP(capture, r)
			if capture.statusCode() >= http.StatusInternalServerError {
				return
			}
			encoded, err := json.Marshal(storedResponse{
				Status:      capture.statusCode(),
				ContentType: capture.Header().Get("Content-Type"),
				Body:        capture.body.Bytes(),
				RequestHash: hash,
			})
			if err == nil {
				_, err = store.SetNX(ctx, key, string(encoded), matched.ttl)
			}
			if err != nil && logg != nil {
				logg.Error(ctx, "persist idempotency record", err)
			}
		})
	}
}

// replayIfStored answers from a stored response and reports whether it wrote
// anything.
func replayIfStored(w http.ResponseWriter, r *http.Request, store pkgredis.IdempotencyStore, key, hash string, logg *logger.Logger) bool {
	ctx := r.Context()
	prior, err := lookupResponse(ctx, store, key)
	if err != nil {
		responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check idempotency"))
		return true
	}
	if prior == nil {
		return false
	}
	if prior.RequestHash != hash {
		responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeIdempotency, "idempotency key reused with different request body"))
		return true
	}
	replay(w, prior)
	return true
}

// callerScope keeps two principals from colliding on the same client key.
func callerScope(r *http.Request) string {
	return PrincipalIDFromContext(r.Context()) + "|" + r.Method + "|" + r.URL.Path
}

func lookupResponse(ctx context.Context, store pkgredis.IdempotencyStore, key string) (*storedResponse, error) {
	raw, err := store.Get(ctx, key)
	switch {
	case errors.Is(err, redis.Nil), err == nil && raw == "":
		return nil, nil
	case err != nil:
		return nil, err
	}
	var prior storedResponse
	if err := json.Unmarshal([]byte(raw), &prior); err != nil {
		return nil, err
	}
	return &prior, nil
}

func replay(w http.ResponseWriter, prior *storedResponse) {
	if prior.ContentType != "" {
		w.Header().Set("Content-Type", prior.ContentType)
	}
	w.Header().Set(replayHeader, "true")
	w.WriteHeader(prior.Status)
	_, _ = w.Write(prior.Body)
}

func requestHash(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}

type responseCapture struct {
	http.ResponseWriter
	body   bytes.Buffer
	status int
}

func (c *responseCapture) statusCode() int {
	if c.status == 0 {
		return http.StatusOK
	}
	return c.status
}

func (c *responseCapture) WriteHeader(code int) {
	if c.status == 0 {
		c.status = code
	}
	c.ResponseWriter.WriteHeader(code)
}

func (c *responseCapture) Write(b []byte) (int, error) {
	if c.status == 0 {
		c.status = http.StatusOK
	}
	c.body.Write(b)
	return c.ResponseWriter.Write(b)
}
