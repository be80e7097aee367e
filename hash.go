package peerdrop

import (
	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multihash"
)

// HashBytes returns the content hash for data: a CIDv1 string using the
// raw multicodec and a sha2-256 multihash. This is the same derivation
// the blob store applies during ingestion, so a fetched blob can be
// verified against its ticket.
func HashBytes(data []byte) (string, error) {
	sum, err := multihash.Sum(data, multihash.SHA2_256, -1)
	if err != nil {
		return "", err
	}
	return cid.NewCidV1(cid.Raw, sum).String(), nil
}
