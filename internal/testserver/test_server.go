// Package testserver runs an in-memory remote store server for tests.
package testserver

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/rpggio/hq/internal/sqlite"
	"github.com/rpggio/hq/internal/transport"
	"github.com/stretchr/testify/require"
)

type TestServer struct {
	Server  *httptest.Server
	DB      *sqlite.DB
	Store   *sqlite.Store
	Token   string
	OwnerID string

	keys *sqlite.APIKeyResolver
}

// New starts a JSON-RPC server over a fresh in-memory SQLite database and
// registers token for ownerID.
func New(t *testing.T, token, ownerID string) *TestServer {
	t.Helper()

	db, err := sqlite.New(":memory:")
	require.NoError(t, err)
	require.NoError(t, db.RunMigrations())

	store := sqlite.NewStore(db)
	keys := sqlite.NewAPIKeyResolver(db)
	server := httptest.NewServer(transport.NewServer(store, transport.AuthMiddleware(keys), nil))

	ts := &TestServer{
		Server:  server,
		DB:      db,
		Store:   store,
		Token:   token,
		OwnerID: ownerID,
		keys:    keys,
	}

	require.NoError(t, ts.AddAPIKey(token, ownerID))

	t.Cleanup(func() {
		server.Close()
		_ = db.Close()
	})

	return ts
}

// URL is the JSON-RPC endpoint.
func (ts *TestServer) URL() string {
	return ts.Server.URL + "/rpc"
}

func (ts *TestServer) AddAPIKey(token, ownerID string) error {
	return ts.keys.AddAPIKey(context.Background(), token, ownerID, "test")
}
