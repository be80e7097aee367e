package peerdrop

import (
	"fmt"
	"time"

	"github.com/ipfs/go-cid"
	"github.com/mr-tron/base58"
)

// BlobFormat classifies how bytes were ingested into the store.
type BlobFormat string

const (
	// FormatRaw is a single opaque blob, hashed as-is.
	FormatRaw BlobFormat = "raw"
	// FormatHashSeq is a sequence of child hashes forming a collection.
	FormatHashSeq BlobFormat = "hashseq"
)

func (f BlobFormat) IsValid() bool {
	switch f {
	case FormatRaw, FormatHashSeq:
		return true
	default:
		return false
	}
}

func ParseBlobFormat(s string) (BlobFormat, error) {
	format := BlobFormat(s)
	if !format.IsValid() {
		return "", fmt.Errorf("invalid blob format: %s (valid formats: raw, hashseq)", s)
	}
	return format, nil
}

// Descriptor identifies a unit of ingested content. Hash is a CIDv1
// string; identical bytes always produce an identical Hash.
type Descriptor struct {
	Hash   string     `json:"hash"`
	Format BlobFormat `json:"format"`
}

// Validate checks that the hash decodes as a CID and the format is known.
func (d Descriptor) Validate() error {
	if _, err := cid.Decode(d.Hash); err != nil {
		return fmt.Errorf("descriptor hash %q: %w", d.Hash, err)
	}
	if !d.Format.IsValid() {
		return fmt.Errorf("descriptor format %q is not valid", d.Format)
	}
	return nil
}

// NodeAddr is a node's public identity together with routing hints that
// let a peer dial it directly.
type NodeAddr struct {
	// ID is the base58-encoded ed25519 public key of the node.
	ID string `json:"id"`
	// Addrs are candidate UDP host:port endpoints for the node.
	Addrs []string `json:"addrs,omitempty"`
}

// Validate checks that ID decodes to a 32-byte public key.
func (a NodeAddr) Validate() error {
	if a.ID == "" {
		return fmt.Errorf("node addr: empty id")
	}
	raw, err := base58.Decode(a.ID)
	if err != nil {
		return fmt.Errorf("node addr id %q: %w", a.ID, err)
	}
	if len(raw) != 32 {
		return fmt.Errorf("node addr id %q: decoded to %d bytes, want 32", a.ID, len(raw))
	}
	return nil
}

// BlobInfo is a store index entry for one ingested blob.
type BlobInfo struct {
	Hash      string    `json:"hash"`
	Size      int64     `json:"size"`
	CreatedAt time.Time `json:"created_at"`
}
