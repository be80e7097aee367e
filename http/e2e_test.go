package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avelinot/peerdrop"
	"github.com/avelinot/peerdrop/blobstore"
	pdhttp "github.com/avelinot/peerdrop/http"
)

// newTestServer wires a real blob store behind a real gateway, the way
// serve does, minus the QUIC router.
func newTestServer(t *testing.T) (*httptest.Server, peerdrop.NodeAddr) {
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

	addr := testAddr(t)
	gw := peerdrop.NewGateway(store, addr)
	handler := pdhttp.NewHandler(&pdhttp.HandlerConfig{}, gw)

	srv := httptest.NewServer(handler.Router())
	t.Cleanup(srv.Close)

	return srv, addr
}

func uploadFile(t *testing.T, srv *httptest.Server, content []byte) pdhttp.UploadResponse {
	t.Helper()

	body, contentType := multipartBody(t, nil, "payload.bin", content)
	resp, err := http.Post(srv.URL+"/upload", contentType, body)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got pdhttp.UploadResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	return got
}

func TestEndToEnd_UploadABC(t *testing.T) {
	srv, addr := newTestServer(t)

	got := uploadFile(t, srv, []byte("abc"))

	wantHash, err := peerdrop.HashBytes([]byte("abc"))
	require.NoError(t, err)

	assert.Equal(t, wantHash, got.BlobHash)
	assert.Equal(t, "raw", got.BlobFormat)
	assert.Equal(t, addr.ID, got.NodeID)
	assert.NotEmpty(t, got.Ticket)

	// The ticket round-trips to the same node id and hash.
	parsed, err := peerdrop.ParseTicket(got.Ticket)
	require.NoError(t, err)
	assert.Equal(t, got.NodeID, parsed.Addr.ID)
	assert.Equal(t, got.BlobHash, parsed.Hash)

	// /node-id agrees with the upload response.
	resp, err := http.Get(srv.URL + "/node-id")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	var nodeID pdhttp.NodeIDResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&nodeID))
	assert.Equal(t, got.NodeID, nodeID.NodeID)
}

func TestEndToEnd_RepeatUploadStableHash(t *testing.T) {
	srv, _ := newTestServer(t)

	first := uploadFile(t, srv, []byte("abc"))
	second := uploadFile(t, srv, []byte("abc"))

	assert.Equal(t, first.BlobHash, second.BlobHash)
	assert.Equal(t, first.BlobFormat, second.BlobFormat)
	assert.NotEmpty(t, second.Ticket)

	// Only one blob is stored regardless of how often it is uploaded.
	resp, err := http.Get(srv.URL + "/blobs")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	var list pdhttp.BlobListResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&list))
	require.Len(t, list.Items, 1)
	assert.Equal(t, first.BlobHash, list.Items[0].Hash)
	assert.Equal(t, int64(3), list.Items[0].Size)
}

func TestEndToEnd_ConcurrentIdenticalUploads(t *testing.T) {
	srv, _ := newTestServer(t)

	const workers = 8
	results := make(chan pdhttp.UploadResponse, workers)

	content := bytes.Repeat([]byte("x"), 1024)
	bodies := make([]*bytes.Buffer, workers)
	contentTypes := make([]string, workers)
	for i := range workers {
		bodies[i], contentTypes[i] = multipartBody(t, nil, "same.bin", content)
	}

	for i := range workers {
		body := bodies[i]
		contentType := contentTypes[i]
		go func() {
			resp, err := http.Post(srv.URL+"/upload", contentType, body)
			if err != nil {
				results <- pdhttp.UploadResponse{}
				return
			}
			defer func() { _ = resp.Body.Close() }()

			var got pdhttp.UploadResponse
			_ = json.NewDecoder(resp.Body).Decode(&got)
			results <- got
		}()
	}

	first := <-results
	require.NotEmpty(t, first.BlobHash)
	for range workers - 1 {
		got := <-results
		assert.Equal(t, first.BlobHash, got.BlobHash)
	}
}
