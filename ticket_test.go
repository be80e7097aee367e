package peerdrop_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avelinot/peerdrop"
	"github.com/avelinot/peerdrop/identity"
)

func testNodeAddr(t *testing.T) peerdrop.NodeAddr {
	t.Helper()
	var seed identity.SecretKey
	for i := range seed {
		seed[i] = byte(i + 1)
	}
	return peerdrop.NodeAddr{
		ID:    seed.Public().String(),
		Addrs: []string{"192.0.2.10:4433", "198.51.100.7:4433"},
	}
}

func testDescriptor(t *testing.T) peerdrop.Descriptor {
	t.Helper()
	hash, err := peerdrop.HashBytes([]byte("abc"))
	require.NoError(t, err)
	return peerdrop.Descriptor{Hash: hash, Format: peerdrop.FormatRaw}
}

func TestTicket_RoundTrip(t *testing.T) {
	addr := testNodeAddr(t)
	d := testDescriptor(t)

	ticket, err := peerdrop.NewTicket(addr, d)
	require.NoError(t, err)

	s := ticket.String()
	assert.NotEmpty(t, s)
	assert.True(t, strings.HasPrefix(s, "pdt1"))

	parsed, err := peerdrop.ParseTicket(s)
	require.NoError(t, err)
	assert.Equal(t, ticket, parsed)
	assert.Equal(t, addr, parsed.Addr)
	assert.Equal(t, d, parsed.Descriptor())
}

func TestNewTicket_Invalid(t *testing.T) {
	addr := testNodeAddr(t)
	d := testDescriptor(t)

	tests := []struct {
		name string
		addr peerdrop.NodeAddr
		d    peerdrop.Descriptor
	}{
		{name: "empty node id", addr: peerdrop.NodeAddr{}, d: d},
		{name: "short node id", addr: peerdrop.NodeAddr{ID: "2g"}, d: d},
		{name: "bad hash", addr: addr, d: peerdrop.Descriptor{Hash: "nope", Format: peerdrop.FormatRaw}},
		{name: "bad format", addr: addr, d: peerdrop.Descriptor{Hash: d.Hash, Format: "weird"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := peerdrop.NewTicket(tt.addr, tt.d)
			assert.ErrorIs(t, err, peerdrop.ErrInvalidTicket)
		})
	}
}

func TestParseTicket_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		token string
	}{
		{name: "empty", token: ""},
		{name: "missing prefix", token: "abc123"},
		{name: "bad base58", token: "pdt10OIl"},
		{name: "not json", token: "pdt1" + "2g"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := peerdrop.ParseTicket(tt.token)
			assert.ErrorIs(t, err, peerdrop.ErrInvalidTicket)
		})
	}
}

func TestTicket_FreshPerUpload(t *testing.T) {
	addr := testNodeAddr(t)
	d := testDescriptor(t)

	t1, err := peerdrop.NewTicket(addr, d)
	require.NoError(t, err)
	t2, err := peerdrop.NewTicket(addr, d)
	require.NoError(t, err)

	// Same inputs give an equal ticket; both redeem the same content.
	assert.Equal(t, t1.Hash, t2.Hash)
	assert.Equal(t, t1.Addr, t2.Addr)
}
