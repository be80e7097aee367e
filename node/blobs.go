package node

import (
	"bufio"
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"

	"github.com/ipfs/go-cid"
	quic "github.com/quic-go/quic-go"

	"github.com/avelinot/peerdrop"
)

// BlobALPN identifies the blob fetch protocol: the peer sends one hash
// followed by a newline, the node answers with the blob bytes and a
// stream FIN. A missing blob resets the stream.
const BlobALPN = "peerdrop/blob/1"

const (
	errCodeBlobNotFound = quic.StreamErrorCode(0x20)
	errCodeBadRequest   = quic.StreamErrorCode(0x21)

	// maxRequestLine bounds the hash line a peer may send.
	maxRequestLine = 256
)

// BlobSource is the store the blob protocol serves from.
type BlobSource interface {
	Open(ctx context.Context, hash string) (io.ReadSeekCloser, int64, error)
}

// BlobServer implements Handler for BlobALPN.
type BlobServer struct {
	source BlobSource
}

func NewBlobServer(source BlobSource) *BlobServer {
	return &BlobServer{source: source}
}

func (s *BlobServer) ServeStream(ctx context.Context, stream *quic.Stream) {
	hash, err := readRequest(stream)
	if err != nil {
		stream.CancelWrite(errCodeBadRequest)
		stream.CancelRead(errCodeBadRequest)
		return
	}

	f, _, err := s.source.Open(ctx, hash)
	if err != nil {
		if errors.Is(err, peerdrop.ErrNotFound) {
			stream.CancelWrite(errCodeBlobNotFound)
		} else {
			slog.Error("open blob for peer", "hash", hash, "err", err)
			stream.CancelWrite(errCodeBadRequest)
		}
		return
	}
	defer func() { _ = f.Close() }()

	if _, err := io.Copy(stream, f); err != nil {
		slog.Warn("send blob to peer", "hash", hash, "err", err)
		return
	}

	if err := stream.Close(); err != nil {
		slog.Warn("close blob stream", "hash", hash, "err", err)
	}
}

// readRequest reads the single hash line and validates it decodes as a
// CID, which also keeps arbitrary strings away from the store layer.
func readRequest(stream *quic.Stream) (string, error) {
	line, err := bufio.NewReaderSize(stream, maxRequestLine).ReadString('\n')
	if err != nil {
		return "", err
	}
	hash := strings.TrimSpace(line)
	if _, err := cid.Decode(hash); err != nil {
		return "", err
	}
	return hash, nil
}
