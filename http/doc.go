// Package http implements the REST surface of a peerdrop node:
// multipart upload returning a shareable ticket, the node identity
// endpoint, and read-only views of the blob index.
package http
