package node_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avelinot/peerdrop"
	"github.com/avelinot/peerdrop/blobstore"
	"github.com/avelinot/peerdrop/client"
	"github.com/avelinot/peerdrop/identity"
	"github.com/avelinot/peerdrop/node"
)

func newTestIdentity(t *testing.T) identity.SecretKey {
	t.Helper()
	secret, err := identity.LoadOrCreate(filepath.Join(t.TempDir(), "key.bin"))
	require.NoError(t, err)
	return secret
}

func newTestStore(t *testing.T) *blobstore.Store {
	t.Helper()

	dir := t.TempDir()
	blobDir := filepath.Join(dir, "blobs")
	require.NoError(t, os.MkdirAll(blobDir, 0o750))

	root, err := os.OpenRoot(blobDir)
	require.NoError(t, err)
	t.Cleanup(func() { _ = root.Close() })

	store, err := blobstore.Open(context.Background(), root, filepath.Join(dir, "blobs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	return store
}

// startLoopbackNode binds on a random loopback port and serves the blob
// protocol from store, mirroring serve's wiring.
func startLoopbackNode(t *testing.T, secret identity.SecretKey, store *blobstore.Store) *node.RunningNode {
	t.Helper()

	ep, err := node.Bind(secret, "127.0.0.1:0")
	require.NoError(t, err)

	running, err := node.NewRouter(ep).
		Attach(node.BlobALPN, node.NewBlobServer(store)).
		Start(context.Background())
	require.NoError(t, err)

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = running.Shutdown(ctx)
	})

	return running
}

func TestNodeAddr(t *testing.T) {
	secret := newTestIdentity(t)
	running := startLoopbackNode(t, secret, newTestStore(t))

	addr := running.NodeAddr()
	assert.Equal(t, secret.Public().String(), addr.ID)
	require.NotEmpty(t, addr.Addrs)
	assert.NoError(t, addr.Validate())
}

func TestFetchBlobOverQUIC(t *testing.T) {
	secret := newTestIdentity(t)
	store := newTestStore(t)
	running := startLoopbackNode(t, secret, store)

	content := []byte("hello peer")
	d, err := store.Ingest(context.Background(), bytes.NewReader(content))
	require.NoError(t, err)

	ticket, err := peerdrop.NewTicket(running.NodeAddr(), d)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	var buf bytes.Buffer
	n, err := client.Fetch(ctx, ticket, &buf)
	require.NoError(t, err)
	assert.Equal(t, int64(len(content)), n)
	assert.Equal(t, content, buf.Bytes())
}

func TestFetchMissingBlob(t *testing.T) {
	secret := newTestIdentity(t)
	store := newTestStore(t)
	running := startLoopbackNode(t, secret, store)

	missing, err := peerdrop.HashBytes([]byte("never ingested"))
	require.NoError(t, err)

	ticket, err := peerdrop.NewTicket(running.NodeAddr(), peerdrop.Descriptor{
		Hash:   missing,
		Format: peerdrop.FormatRaw,
	})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	var buf bytes.Buffer
	_, err = client.Fetch(ctx, ticket, &buf)
	assert.Error(t, err)
	assert.Zero(t, buf.Len())
}

func TestFetchRejectsWrongNodeIdentity(t *testing.T) {
	secret := newTestIdentity(t)
	store := newTestStore(t)
	running := startLoopbackNode(t, secret, store)

	content := []byte("pinned")
	d, err := store.Ingest(context.Background(), bytes.NewReader(content))
	require.NoError(t, err)

	// Ticket claims a different node identity at the same address; the
	// certificate pin must reject the connection.
	imposter := newTestIdentity(t)
	forged := peerdrop.NodeAddr{
		ID:    imposter.Public().String(),
		Addrs: running.NodeAddr().Addrs,
	}
	ticket, err := peerdrop.NewTicket(forged, d)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	var buf bytes.Buffer
	_, err = client.Fetch(ctx, ticket, &buf)
	assert.Error(t, err)
}

func TestShutdown(t *testing.T) {
	secret := newTestIdentity(t)
	store := newTestStore(t)

	ep, err := node.Bind(secret, "127.0.0.1:0")
	require.NoError(t, err)

	running, err := node.NewRouter(ep).
		Attach(node.BlobALPN, node.NewBlobServer(store)).
		Start(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, running.Shutdown(ctx))
}

func TestRouterRequiresProtocols(t *testing.T) {
	secret := newTestIdentity(t)

	ep, err := node.Bind(secret, "127.0.0.1:0")
	require.NoError(t, err)
	defer func() { _ = ep.Close() }()

	_, err = node.NewRouter(ep).Start(context.Background())
	assert.Error(t, err)
}
