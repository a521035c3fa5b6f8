// Package rediscache shares REST bearer tokens between gateway processes.
package rediscache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/tournevent/cttgateway/pkg/shipper/auth"
)

const keyPrefix = "cttgateway:token:"

type TokenCache struct {
	c   *redis.Client
	now func() time.Time
}

func New(addr string) *TokenCache {
	return &TokenCache{
		c: redis.NewClient(&redis.Options{
			Addr: addr,
		}),
		now: time.Now,
	}
}

// Get returns the token stored for key, or nil when there is none.
func (r *TokenCache) Get(ctx context.Context, key string) (*auth.Token, error) {
	val, err := r.c.Get(ctx, keyPrefix+key).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "redis get")
	}

	var tok auth.Token
	if err := json.Unmarshal(val, &tok); err != nil {
		return nil, errors.Wrap(err, "decode token")
	}
	return &tok, nil
}

// Put replaces the token stored for key. The entry expires with the token.
func (r *TokenCache) Put(ctx context.Context, key string, tok *auth.Token) error {
	ttl := tok.Expiry.Sub(r.now())
	if ttl <= 0 {
		return nil
	}
	val, err := json.Marshal(tok)
	if err != nil {
		return errors.Wrap(err, "encode token")
	}
	if err := r.c.Set(ctx, keyPrefix+key, val, ttl).Err(); err != nil {
		return errors.Wrap(err, "redis set")
	}
	return nil
}

func (r *TokenCache) Close() error {
	return r.c.Close()
}

var _ auth.TokenCache = (*TokenCache)(nil)
