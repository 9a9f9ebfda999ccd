package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/angelmondragon/orderdesk-backend/internal/authz"
	"github.com/angelmondragon/orderdesk-backend/pkg/logger"
	"github.com/google/uuid"
	redislib "github.com/redis/go-redis/v9"
)

const cacheScope = "principal"

type cacheStore interface {
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, keys ...string) error
}

type cacheKeyer interface {
	CacheKey(scope, id string) string
}

// CachedDirectory fronts a Directory with a short-lived Redis copy of each
// principal. Role changes become visible once the entry expires or is invalidated.
type CachedDirectory struct {
	next  authz.Directory
	store cacheStore
	keyer cacheKeyer
	ttl   time.Duration
	logg  *logger.Logger
}

// CacheClient is satisfied by *redis.Client.
type CacheClient interface {
	cacheStore
	cacheKeyer
}

func NewCachedDirectory(next authz.Directory, client CacheClient, ttl time.Duration, logg *logger.Logger) (*CachedDirectory, error) {
	if next == nil {
		return nil, fmt.Errorf("directory required")
	}
	if client == nil {
		return nil, fmt.Errorf("cache client required")
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("cache ttl must be positive")
	}
	return &CachedDirectory{next: next, store: client, keyer: client, ttl: ttl, logg: logg}, nil
}

func (d *CachedDirectory) Lookup(ctx context.Context, id uuid.UUID) (authz.Principal, error) {
	key := d.keyer.CacheKey(cacheScope, id.String())

	raw, err := d.store.Get(ctx, key)
	switch {
	case err == nil:
		var principal authz.Principal
		jsonErr := json.Unmarshal([]byte(raw), &principal)
		if jsonErr == nil {
			return principal, nil
		}
		d.warn(ctx, id, "discarding unreadable principal cache entry", jsonErr)
	case !errors.Is(err, redislib.Nil):
		d.warn(ctx, id, "principal cache read failed", err)
	}

	principal, err := d.next.Lookup(ctx, id)
	if err != nil {
		return authz.Principal{}, err
	}

	payload, err := json.Marshal(principal)
	if err == nil {
		err = d.store.Set(ctx, key, string(payload), d.ttl)
	}
	if err != nil {
		d.warn(ctx, id, "principal cache write failed", err)
	}
	return principal, nil
}

// Invalidate drops the cached copy so the next lookup hits the database.
func (d *CachedDirectory) Invalidate(ctx context.Context, id uuid.UUID) error {
	return d.store.Del(ctx, d.keyer.CacheKey(cacheScope, id.String()))
}

func (d *CachedDirectory) warn(ctx context.Context, id uuid.UUID, msg string, err error) {
	if d.logg == nil {
		return
	}
	logCtx := d.logg.WithFields(ctx, map[string]any{
		"principal_id": id.String(),
		"error":        err.Error(),
	})
	d.logg.Warn(logCtx, msg)
}
