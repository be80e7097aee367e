package node

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"

	quic "github.com/quic-go/quic-go"

	"github.com/avelinot/peerdrop"
)

const errCodeUnknownProtocol = quic.ApplicationErrorCode(0x10)

// Handler serves one inbound stream of a peer protocol. The stream is
// owned by the handler once dispatched; it must close or cancel it.
type Handler interface {
	ServeStream(ctx context.Context, stream *quic.Stream)
}

// Router accumulates protocol handlers keyed by ALPN before the node
// starts accepting connections.
type Router struct {
	ep        *Endpoint
	protocols map[string]Handler
	alpns     []string
}

func NewRouter(ep *Endpoint) *Router {
	return &Router{
		ep:        ep,
		protocols: make(map[string]Handler),
	}
}

// Attach registers a handler for the given ALPN. Returns the router for
// chaining. Attaching after Start has no effect on the running node.
func (r *Router) Attach(alpn string, h Handler) *Router {
	if _, dup := r.protocols[alpn]; !dup {
		r.alpns = append(r.alpns, alpn)
	}
	r.protocols[alpn] = h
	return r
}

// Start begins accepting peer connections and returns the running node.
// The node serves until Shutdown is called or ctx is cancelled.
func (r *Router) Start(ctx context.Context) (*RunningNode, error) {
	if len(r.alpns) == 0 {
		return nil, errors.New("start router: no protocols attached")
	}

	tlsConf := &tls.Config{
		Certificates: []tls.Certificate{r.ep.cert},
		NextProtos:   r.alpns,
	}

	ln, err := r.ep.tr.Listen(tlsConf, nil)
	if err != nil {
		return nil, fmt.Errorf("start router: %w", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	n := &RunningNode{
		ep:        r.ep,
		ln:        ln,
		protocols: r.protocols,
		cancel:    cancel,
		done:      make(chan struct{}),
	}

	go n.acceptLoop(runCtx)

	slog.Info("node listening", "node_id", r.ep.NodeID(), "addrs", r.ep.Addrs(), "protocols", r.alpns)
	return n, nil
}

// RunningNode is a started peer endpoint: it accepts connections,
// negotiates a protocol via ALPN, and dispatches streams to handlers.
type RunningNode struct {
	ep        *Endpoint
	ln        *quic.Listener
	protocols map[string]Handler
	cancel    context.CancelFunc
	done      chan struct{}
}

// NodeAddr returns the node's public identity with routing hints,
// immutable for the lifetime of the node.
func (n *RunningNode) NodeAddr() peerdrop.NodeAddr {
	return peerdrop.NodeAddr{
		ID:    n.ep.NodeID(),
		Addrs: n.ep.Addrs(),
	}
}

// Shutdown stops accepting connections, closes the listener and the
// underlying endpoint, and waits for the accept loop to drain. Each
// teardown step runs even if an earlier one errored.
func (n *RunningNode) Shutdown(ctx context.Context) error {
	n.cancel()

	lnErr := n.ln.Close()
	epErr := n.ep.Close()

	select {
	case <-n.done:
	case <-ctx.Done():
		return fmt.Errorf("shutdown node: %w", ctx.Err())
	}

	if lnErr != nil {
		return fmt.Errorf("shutdown node: close listener: %w", lnErr)
	}
	if epErr != nil {
		return fmt.Errorf("shutdown node: close endpoint: %w", epErr)
	}
	return nil
}

func (n *RunningNode) acceptLoop(ctx context.Context) {
	defer close(n.done)

	for {
		conn, err := n.ln.Accept(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			slog.Warn("accept connection", "err", err)
			return
		}
		go n.handleConn(ctx, conn)
	}
}

func (n *RunningNode) handleConn(ctx context.Context, conn *quic.Conn) {
	alpn := conn.ConnectionState().TLS.NegotiatedProtocol
	h, ok := n.protocols[alpn]
	if !ok {
		_ = conn.CloseWithError(errCodeUnknownProtocol, "unknown protocol")
		return
	}

	for {
		stream, err := conn.AcceptStream(ctx)
		if err != nil {
			// Peer closed the connection or we are shutting down.
			return
		}
		go h.ServeStream(ctx, stream)
	}
}
