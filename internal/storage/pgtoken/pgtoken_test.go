package pgtoken

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/tournevent/cttgateway/pkg/shipper/auth"
)

func TestPGToken_Flow(t *testing.T) {
	if testing.Short() {
		t.Skip("needs docker")
	}
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:15-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "admin",
			"POSTGRES_PASSWORD": "admin",
			"POSTGRES_DB":       "cttgateway_test",
		},
		WaitingFor: wait.ForListeningPort("5432/tcp").WithStartupTimeout(60 * time.Second),
	}
	pgC, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = pgC.Terminate(ctx) })

	host, err := pgC.Host(ctx)
	require.NoError(t, err)
	port, err := pgC.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)

	dsn := "postgres://admin:admin@" + host + ":" + port.Port() + "/cttgateway_test?sslmode=disable"
	st, err := New(dsn)
	require.NoError(t, err)
	t.Cleanup(st.Close)

	tok, err := st.Get(ctx, "REST|client|CC01")
	require.NoError(t, err)
	require.Nil(t, tok)

	expiry := time.Now().Add(time.Hour).UTC().Truncate(time.Second)
	require.NoError(t, st.Put(ctx, "REST|client|CC01", &auth.Token{AccessToken: "one", Expiry: expiry}))
	require.NoError(t, st.Put(ctx, "REST|client|CC01", &auth.Token{AccessToken: "two", Expiry: expiry}))

	tok, err = st.Get(ctx, "REST|client|CC01")
	require.NoError(t, err)
	require.Equal(t, "two", tok.AccessToken)
	require.WithinDuration(t, expiry, tok.Expiry, time.Second)

	// schema init is idempotent
	require.NoError(t, st.initSchema(ctx))

	require.NoError(t, st.Put(ctx, "old", &auth.Token{AccessToken: "x", Expiry: time.Now().Add(-time.Hour)}))
	n, err := st.Purge(ctx, time.Now())
	require.NoError(t, err)
	require.Equal(t, int64(1), n)
}
