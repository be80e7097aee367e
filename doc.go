// Package peerdrop implements a content-sharing gateway node: files
// uploaded over HTTP are ingested into a content-addressed blob store
// and answered with a portable ticket that any peer can redeem against
// this node over QUIC to fetch the exact bytes.
//
// # Key Components
//
//   - Gateway: upload-to-ticket pipeline bound to a node's identity
//   - BlobStore: interface for content-addressed ingestion and retrieval
//   - Ticket: self-contained, string-encodable fetch descriptor
//   - NodeAddr: a node's public identity plus routing hints
//
// # Example Usage
//
//	gw := peerdrop.NewGateway(store, addr)
//
//	// Ingest bytes and mint a ticket
//	res, err := gw.Share(ctx, bytes.NewReader(data))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(res.Ticket.String())
//
// See the http package for the REST surface, the blobstore package for
// the filesystem-backed store, and the node package for the QUIC
// endpoint and protocol router.
package peerdrop
