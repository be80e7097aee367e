// Package client redeems tickets: it dials the issuing node over QUIC,
// requests the blob by hash, verifies the received bytes against the
// ticket, and hands them to the caller.
package client

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"time"

	quic "github.com/quic-go/quic-go"

	"github.com/avelinot/peerdrop"
	"github.com/avelinot/peerdrop/identity"
	"github.com/avelinot/peerdrop/node"
)

// dialTimeout bounds each individual address attempt.
const dialTimeout = 10 * time.Second

// ErrContentMismatch is returned when fetched bytes do not hash to the
// ticket's content hash.
var ErrContentMismatch = errors.New("fetched content does not match ticket hash")

// Fetch redeems t against the issuing node and writes the blob to w,
// returning the number of bytes written. Each routing hint in the
// ticket is tried in order until one dials. The remote certificate must
// carry the ticket's node identity, and the received bytes must hash to
// the ticket's content hash.
func Fetch(ctx context.Context, t peerdrop.Ticket, w io.Writer) (int64, error) {
	pub, err := identity.ParsePublicKey(t.Addr.ID)
	if err != nil {
		return 0, fmt.Errorf("fetch: ticket node id: %w", err)
	}

	tlsConf := &tls.Config{
		// The peer presents a self-signed certificate; trust comes from
		// pinning its key to the node id instead of a CA chain.
		InsecureSkipVerify:    true, //nolint:gosec
		NextProtos:            []string{node.BlobALPN},
		VerifyPeerCertificate: verifyNodeKey(pub),
	}

	var lastErr error
	for _, addr := range t.Addr.Addrs {
		data, err := fetchFrom(ctx, addr, tlsConf, t.Hash)
		if err != nil {
			lastErr = fmt.Errorf("fetch from %s: %w", addr, err)
			continue
		}

		hash, err := peerdrop.HashBytes(data)
		if err != nil {
			return 0, fmt.Errorf("fetch: %w", err)
		}
		if hash != t.Hash {
			return 0, fmt.Errorf("fetch: %w: got %s, want %s", ErrContentMismatch, hash, t.Hash)
		}

		n, err := w.Write(data)
		return int64(n), err
	}

	if lastErr == nil {
		return 0, errors.New("fetch: ticket carries no addresses")
	}
	return 0, lastErr
}

func fetchFrom(ctx context.Context, addr string, tlsConf *tls.Config, hash string) ([]byte, error) {
	dialCtx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()

	conn, err := quic.DialAddr(dialCtx, addr, tlsConf, nil)
	if err != nil {
		return nil, fmt.Errorf("dial: %w", err)
	}
	defer func() { _ = conn.CloseWithError(0, "") }()

	stream, err := conn.OpenStreamSync(ctx)
	if err != nil {
		return nil, fmt.Errorf("open stream: %w", err)
	}

	if _, err := stream.Write([]byte(hash + "\n")); err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	if err := stream.Close(); err != nil {
		return nil, fmt.Errorf("finish request: %w", err)
	}

	data, err := io.ReadAll(stream)
	if err != nil {
		return nil, fmt.Errorf("read blob: %w", err)
	}
	return data, nil
}

// verifyNodeKey pins the remote certificate's ed25519 key to the node
// identity from the ticket.
func verifyNodeKey(want identity.PublicKey) func([][]byte, [][]*x509.Certificate) error {
	return func(rawCerts [][]byte, _ [][]*x509.Certificate) error {
		if len(rawCerts) == 0 {
			return errors.New("verify node key: no certificate presented")
		}
		cert, err := x509.ParseCertificate(rawCerts[0])
		if err != nil {
			return fmt.Errorf("verify node key: %w", err)
		}
		got, ok := cert.PublicKey.(ed25519.PublicKey)
		if !ok {
			return errors.New("verify node key: certificate key is not ed25519")
		}
		if !bytes.Equal(got, want[:]) {
			return errors.New("verify node key: certificate does not match node id")
		}
		return nil
	}
}
