//go:build integration

package surreal

import (
	"context"
	"fmt"
	"log"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/handsomefox/moviescope/internal/counters"
)

var testDB *Client

func TestMain(m *testing.M) {
	os.Setenv("TESTCONTAINERS_RYUK_DISABLED", "true")
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "surrealdb/surrealdb:v3.0.0-beta.1",
			ExposedPorts: []string{"8000/tcp"},
			Cmd:          []string{"start", "--log", "info", "--user", "root", "--pass", "root"},
			WaitingFor:   wait.ForLog("Started web server").WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		log.Fatalf("start surrealdb container: %v", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		log.Fatalf("container host: %v", err)
	}
	if host == "" || host == "null" {
		host = "localhost"
	}
	port, err := container.MappedPort(ctx, "8000")
	if err != nil {
		log.Fatalf("mapped port: %v", err)
	}

	testDB, err = Dial(ctx, Config{
		URL:       fmt.Sprintf("ws://%s:%s/rpc", host, port.Port()),
		Namespace: "test",
		Database:  "test",
		Username:  "root",
		Password:  "root",
	}, nil)
	if err != nil {
		log.Fatalf("dial surrealdb: %v", err)
	}

	code := m.Run()

	_ = testDB.Close(ctx)
	_ = container.Terminate(ctx)
	os.Exit(code)
}

func TestCounterClientOverSurreal(t *testing.T) {
	ctx := context.Background()
	client := counters.New(testDB, counters.Options{})
	require.NoError(t, client.Connect(ctx))

	for range 3 {
		require.NoError(t, client.IncrementOrCreate(ctx, 268, "Batman", "/a.jpg", "batman"))
	}
	require.NoError(t, client.IncrementOrCreate(ctx, 272, "Batman Begins", "", "begins"))

	found, err := testDB.FindByMovieID(ctx, 268)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, int64(3), found[0].Count)
	assert.Equal(t, "batman", found[0].SearchTerm)
	assert.NotEmpty(t, found[0].ID)

	top, err := client.TopCounters(ctx, 2)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, int64(268), top[0].MovieID)
	assert.Equal(t, int64(272), top[1].MovieID)
}
