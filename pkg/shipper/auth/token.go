// Package auth manages bearer tokens for REST carrier accounts: acquisition
// through the client-credentials grant, caching and renewal on rejection.
package auth

import (
	"context"
	"time"
)

// Token is a bearer token with its absolute expiry.
type Token struct {
	AccessToken string    `json:"access_token"`
	Expiry      time.Time `json:"expiry"`
}

// Valid reports whether the token can still be used at now, keeping skew
// as a safety margin before the expiry.
func (t *Token) Valid(now time.Time, skew time.Duration) bool {
	if t == nil || t.AccessToken == "" {
		return false
	}
	return now.Add(skew).Before(t.Expiry)
}

// TokenCache persists tokens by account key. Get returns nil, nil on a miss.
// Put must replace the stored value atomically.
type TokenCache interface {
	Get(ctx context.Context, key string) (*Token, error)
	Put(ctx context.Context, key string, token *Token) error
}
