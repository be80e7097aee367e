package peerdrop

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mr-tron/base58"
)

// ticketPrefix versions the wire encoding. Anything a parser does not
// recognize is rejected rather than guessed at.
const ticketPrefix = "pdt1"

// Ticket bundles a node address with a content descriptor. A ticket is
// sufficient for a third party to locate the issuing node and fetch the
// content; it is an immutable value and is never stored server-side.
type Ticket struct {
	Addr   NodeAddr   `json:"node"`
	Hash   string     `json:"hash"`
	Format BlobFormat `json:"format"`
}

// NewTicket builds a ticket from a node address and a content
// descriptor, validating both. Returns ErrInvalidTicket on malformed
// input.
func NewTicket(addr NodeAddr, d Descriptor) (Ticket, error) {
	if err := addr.Validate(); err != nil {
		return Ticket{}, fmt.Errorf("new ticket: %w: %w", ErrInvalidTicket, err)
	}
	if err := d.Validate(); err != nil {
		return Ticket{}, fmt.Errorf("new ticket: %w: %w", ErrInvalidTicket, err)
	}
	return Ticket{Addr: addr, Hash: d.Hash, Format: d.Format}, nil
}

// Descriptor returns the content descriptor the ticket was built from.
func (t Ticket) Descriptor() Descriptor {
	return Descriptor{Hash: t.Hash, Format: t.Format}
}

// String encodes the ticket as a compact, copy-pasteable token:
// a version prefix followed by base58 of the JSON payload.
func (t Ticket) String() string {
	payload, err := json.Marshal(t)
	if err != nil {
		// Ticket contains only strings and slices of strings; marshal
		// cannot fail for a value produced by NewTicket.
		return ""
	}
	return ticketPrefix + base58.Encode(payload)
}

// ParseTicket decodes a token produced by String and validates its
// contents. Returns ErrInvalidTicket for any malformed input.
func ParseTicket(s string) (Ticket, error) {
	if !strings.HasPrefix(s, ticketPrefix) {
		return Ticket{}, fmt.Errorf("parse ticket: %w: missing %q prefix", ErrInvalidTicket, ticketPrefix)
	}
	payload, err := base58.Decode(strings.TrimPrefix(s, ticketPrefix))
	if err != nil {
		return Ticket{}, fmt.Errorf("parse ticket: %w: %w", ErrInvalidTicket, err)
	}
	var t Ticket
	if err := json.Unmarshal(payload, &t); err != nil {
		return Ticket{}, fmt.Errorf("parse ticket: %w: %w", ErrInvalidTicket, err)
	}
	return NewTicket(t.Addr, Descriptor{Hash: t.Hash, Format: t.Format})
}
