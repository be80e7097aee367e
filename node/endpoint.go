// Package node provides the peer-facing side of a gateway: a QUIC
// endpoint bound to the node's identity, a protocol router dispatching
// inbound connections by ALPN, and the blob fetch protocol that makes
// issued tickets redeemable.
package node

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"math/big"
	"net"
	"time"

	quic "github.com/quic-go/quic-go"

	"github.com/avelinot/peerdrop/identity"
)

// Endpoint is a bound UDP socket plus the node's transport certificate.
// It is discoverable by peers once a Router is started on it.
type Endpoint struct {
	secret identity.SecretKey
	udp    *net.UDPConn
	tr     *quic.Transport
	cert   tls.Certificate
}

// Bind opens a UDP socket at listenAddr and prepares the QUIC transport
// with a certificate derived from the node's identity key. Peers verify
// the certificate's public key against the node id they dialed.
func Bind(secret identity.SecretKey, listenAddr string) (*Endpoint, error) {
	addr, err := net.ResolveUDPAddr("udp", listenAddr)
	if err != nil {
		return nil, fmt.Errorf("bind endpoint: resolve %s: %w", listenAddr, err)
	}

	udp, err := net.ListenUDP("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("bind endpoint: listen %s: %w", listenAddr, err)
	}

	cert, err := identityCert(secret)
	if err != nil {
		_ = udp.Close()
		return nil, fmt.Errorf("bind endpoint: %w", err)
	}

	return &Endpoint{
		secret: secret,
		udp:    udp,
		tr:     &quic.Transport{Conn: udp},
		cert:   cert,
	}, nil
}

// NodeID returns the base58 public identity derived from the secret key.
func (e *Endpoint) NodeID() string {
	return e.secret.Public().String()
}

// Addrs returns dialable host:port strings for this endpoint. A
// wildcard bind is expanded to the host's unicast addresses.
func (e *Endpoint) Addrs() []string {
	local, ok := e.udp.LocalAddr().(*net.UDPAddr)
	if !ok {
		return []string{e.udp.LocalAddr().String()}
	}
	if !local.IP.IsUnspecified() {
		return []string{local.String()}
	}

	port := fmt.Sprintf("%d", local.Port)
	ifaceAddrs, err := net.InterfaceAddrs()
	if err != nil {
		return []string{local.String()}
	}

	var addrs []string
	for _, a := range ifaceAddrs {
		ipNet, ok := a.(*net.IPNet)
		if !ok || ipNet.IP.IsLinkLocalUnicast() {
			continue
		}
		addrs = append(addrs, net.JoinHostPort(ipNet.IP.String(), port))
	}
	if len(addrs) == 0 {
		return []string{local.String()}
	}
	return addrs
}

// Close releases the transport and the UDP socket.
func (e *Endpoint) Close() error {
	trErr := e.tr.Close()
	udpErr := e.udp.Close()
	if trErr != nil {
		return trErr
	}
	return udpErr
}

type zeroReader struct{}

func (zeroReader) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = 0
	}
	return len(p), nil
}

// identityCert builds a self-signed TLS certificate whose key pair is
// the node's ed25519 identity. ed25519 signatures are deterministic, so
// the same identity always yields the same certificate.
func identityCert(secret identity.SecretKey) (tls.Certificate, error) {
	priv := secret.Private()
	template := x509.Certificate{
		SerialNumber: big.NewInt(1),
		NotBefore:    time.Unix(0, 0),
		NotAfter:     time.Unix(0, 0).Add(100 * 365 * 24 * time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth, x509.ExtKeyUsageClientAuth},
		DNSNames:     []string{"peerdrop"},
	}
	der, err := x509.CreateCertificate(zeroReader{}, &template, &template, priv.Public(), priv)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("create identity cert: %w", err)
	}
	return tls.Certificate{
		Certificate: [][]byte{der},
		PrivateKey:  priv,
	}, nil
}
