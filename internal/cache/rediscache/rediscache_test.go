package rediscache

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"
	"github.com/tournevent/cttgateway/pkg/shipper/auth"
)

func TestTokenCache_GetPut(t *testing.T) {
	mr := miniredis.RunT(t)
	c := New(mr.Addr())
	t.Cleanup(func() { _ = c.Close() })

	ctx := context.Background()
	tok, err := c.Get(ctx, "REST|client|CC01")
	require.NoError(t, err)
	require.Nil(t, tok)

	expiry := time.Now().Add(time.Hour).UTC().Truncate(time.Second)
	require.NoError(t, c.Put(ctx, "REST|client|CC01", &auth.Token{AccessToken: "abc", Expiry: expiry}))

	tok, err = c.Get(ctx, "REST|client|CC01")
	require.NoError(t, err)
	require.NotNil(t, tok)
	require.Equal(t, "abc", tok.AccessToken)
	require.True(t, expiry.Equal(tok.Expiry))

	require.True(t, mr.Exists(keyPrefix+"REST|client|CC01"))
	require.InDelta(t, time.Hour.Seconds(), mr.TTL(keyPrefix+"REST|client|CC01").Seconds(), 5)
}

func TestTokenCache_ExpiresWithToken(t *testing.T) {
	mr := miniredis.RunT(t)
	c := New(mr.Addr())

	ctx := context.Background()
	require.NoError(t, c.Put(ctx, "k", &auth.Token{AccessToken: "abc", Expiry: time.Now().Add(time.Minute)}))

	mr.FastForward(2 * time.Minute)
	tok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	require.Nil(t, tok)
}

func TestTokenCache_SkipsExpiredToken(t *testing.T) {
	mr := miniredis.RunT(t)
	c := New(mr.Addr())

	require.NoError(t, c.Put(context.Background(), "k", &auth.Token{AccessToken: "old", Expiry: time.Now().Add(-time.Minute)}))
	require.False(t, mr.Exists(keyPrefix+"k"))
}

func TestTokenCache_ReplacesToken(t *testing.T) {
	mr := miniredis.RunT(t)
	c := New(mr.Addr())
	ctx := context.Background()

	require.NoError(t, c.Put(ctx, "k", &auth.Token{AccessToken: "one", Expiry: time.Now().Add(time.Hour)}))
	require.NoError(t, c.Put(ctx, "k", &auth.Token{AccessToken: "two", Expiry: time.Now().Add(time.Hour)}))

	tok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	require.Equal(t, "two", tok.AccessToken)
}
