//go:build integration

package table_test

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/shpitdev/places-enricher/internal/table"
)

func startPostgres(t *testing.T) string {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_DB":       "testdb",
			"POSTGRES_USER":     "testuser",
			"POSTGRES_PASSWORD": "testpass",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").WithOccurrence(2),
	}
	pg, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = pg.Terminate(ctx)
	})

	host, err := pg.Host(ctx)
	require.NoError(t, err)
	port, err := pg.MappedPort(ctx, "5432")
	require.NoError(t, err)
	return "postgres://testuser:testpass@" + host + ":" + port.Port() + "/testdb?sslmode=disable"
}

func TestPostgresSink_ReplacesContents(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test")
	}

	dsn := startPostgres(t)
	ctx := context.Background()
	sink := table.Create(dsn, "enriched_places")

	first := sample()
	require.NoError(t, sink.Store(ctx, first))

	second := sample()
	second.Limit(1)
	require.NoError(t, sink.Store(ctx, second))

	conn, err := pgx.Connect(ctx, dsn)
	require.NoError(t, err)
	defer conn.Close(ctx)

	var count int
	require.NoError(t, conn.QueryRow(ctx, `SELECT count(*) FROM enriched_places`).Scan(&count))
	assert.Equal(t, 1, count)

	var name string
	var hours map[string]any
	require.NoError(t, conn.QueryRow(ctx, `SELECT name, hours FROM enriched_places WHERE "OID" = '1'`).Scan(&name, &hours))
	assert.Equal(t, "Vans, Inc.", name)
	assert.Equal(t, true, hours["open"])
}

func TestPostgresSink_NullCells(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test")
	}

	dsn := startPostgres(t)
	ctx := context.Background()
	require.NoError(t, table.Create(dsn, "").Store(ctx, sample()))

	conn, err := pgx.Connect(ctx, dsn)
	require.NoError(t, err)
	defer conn.Close(ctx)

	var url *string
	require.NoError(t, conn.QueryRow(ctx, `SELECT facility_url FROM enriched_places WHERE "OID" = '2'`).Scan(&url))
	assert.Nil(t, url)
}
