package peerdrop

import (
	"context"
	"fmt"
	"io"
)

// BlobStore defines the content-addressed store the gateway ingests
// into. Implementations must be safe for concurrent use.
//
// All methods accept a context for cancellation and timeout control.
type BlobStore interface {
	// Ingest stores the full contents of r as a single raw blob and
	// returns its descriptor. Ingesting identical bytes at any two
	// points in time yields an identical descriptor.
	Ingest(ctx context.Context, r io.Reader) (Descriptor, error)

	// Open returns a reader over the blob with the given hash along
	// with its size. Returns ErrNotFound if the blob is not stored.
	// The caller is responsible for closing the returned reader.
	Open(ctx context.Context, hash string) (io.ReadSeekCloser, int64, error)

	// Has reports whether a blob with the given hash is stored.
	Has(ctx context.Context, hash string) (bool, error)

	// List returns index entries for all stored blobs.
	List(ctx context.Context) ([]BlobInfo, error)
}

// ShareResult is the outcome of one successful upload: the minted
// ticket plus the descriptor it embeds.
type ShareResult struct {
	Ticket     Ticket
	Descriptor Descriptor
}

// Gateway binds a node's public address to a blob store and turns
// uploaded bytes into shareable tickets. The address is immutable for
// the process lifetime; Gateway holds read-only references and is safe
// for concurrent use.
type Gateway struct {
	store BlobStore
	addr  NodeAddr
}

func NewGateway(store BlobStore, addr NodeAddr) *Gateway {
	return &Gateway{store: store, addr: addr}
}

// Share ingests the full contents of r and mints a ticket binding this
// node's address to the resulting descriptor.
//
// Ingestion is durable irrespective of later failure: if ticket
// construction fails after a successful ingest, the content remains
// retrievable by hash even though no ticket was returned.
func (g *Gateway) Share(ctx context.Context, r io.Reader) (ShareResult, error) {
	if err := ctx.Err(); err != nil {
		return ShareResult{}, fmt.Errorf("share: %w", err)
	}

	d, err := g.store.Ingest(ctx, r)
	if err != nil {
		return ShareResult{}, fmt.Errorf("share: %w: %w", ErrIngest, err)
	}

	t, err := NewTicket(g.addr, d)
	if err != nil {
		return ShareResult{}, fmt.Errorf("share: %w", err)
	}

	return ShareResult{Ticket: t, Descriptor: d}, nil
}

// NodeAddr returns the node address tickets are minted against.
func (g *Gateway) NodeAddr() NodeAddr {
	return g.addr
}

// Blobs lists the store's index entries.
func (g *Gateway) Blobs(ctx context.Context) ([]BlobInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("list blobs: %w", err)
	}

	infos, err := g.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list blobs: %w", err)
	}

	return infos, nil
}
