package transport

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nodecrew/actorkernel/config"
	"github.com/nodecrew/actorkernel/errs"
	"github.com/nodecrew/actorkernel/identity"
	"github.com/nodecrew/actorkernel/remotenode"
	"github.com/nodecrew/actorkernel/wire"
)

// ServerManager runs the accept loop for one listen address, grounded
// on cmd/mcrew/service-ws.go's http.Server-plus-upgrader shape. Each
// accepted connection performs the node-id handshake before being
// handed to onConnected as a *remotenode.RemoteNode; ServerManager
// tracks every connection it has accepted so Cancel can tear them all
// down.
type ServerManager struct {
	addr    config.ServerAddress
	timeout time.Duration

	localNodeID identity.NodeId
	codec       wire.Codec
	handler     remotenode.Handler
	onConnected func(*remotenode.RemoteNode)
	monitor     Monitor

	upgrader websocket.Upgrader

	mu       sync.Mutex
	listener net.Listener
	srv      *http.Server
	conns    map[*remotenode.RemoteNode]struct{}

	done chan struct{}
}

// NewServerManager validates addr up front (SchemeSecure is rejected:
// SPEC_FULL.md §4.7 requires an external reverse proxy for TLS) and
// returns a ServerManager ready to Start.
func NewServerManager(addr config.ServerAddress, connectionTimeout time.Duration, localNodeID identity.NodeId, codec wire.Codec, handler remotenode.Handler, onConnected func(*remotenode.RemoteNode), monitor Monitor) (*ServerManager, error) {
	if addr.Scheme == config.SchemeSecure {
		return nil, &errs.SecureServerNotSupported{}
	}
	if monitor == nil {
		monitor = func(MonitorState, string) {}
	}
	return &ServerManager{
		addr:        addr,
		timeout:     connectionTimeout,
		localNodeID: localNodeID,
		codec:       codec,
		handler:     handler,
		onConnected: onConnected,
		monitor:     monitor,
		upgrader:    websocket.Upgrader{ReadBufferSize: 4096, WriteBufferSize: 4096},
		conns:       make(map[*remotenode.RemoteNode]struct{}),
		done:        make(chan struct{}),
	}, nil
}

// Start binds the listen address and begins serving upgrade requests.
// It returns once the listener is bound; serving continues in the
// background until Cancel is called.
func (s *ServerManager) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", fmt.Sprintf("%s:%d", s.addr.Host, s.addr.Port))
	if err != nil {
		s.monitor(StateDisconnected, err.Error())
		return err
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.serveUpgrade(ctx))

	s.mu.Lock()
	s.listener = ln
	s.srv = &http.Server{Handler: mux}
	s.mu.Unlock()

	s.monitor(StateConnecting, ln.Addr().String())

	go func() {
		defer close(s.done)
		_ = s.srv.Serve(ln)
	}()

	return nil
}

// Addr reports the bound listen address; only meaningful after Start
// has returned successfully.
func (s *ServerManager) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

func (s *ServerManager) serveUpgrade(ctx context.Context) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(w, r, nil)
		if err != nil {
			s.monitor(StateDisconnected, fmt.Sprintf("upgrade: %s", err))
			return
		}

		peerID, err := doHandshake(r.Context(), conn, s.localNodeID, s.timeout)
		if err != nil {
			s.monitor(StateDisconnected, fmt.Sprintf("handshake: %s", err))
			conn.Close()
			return
		}

		tracking := &closeTrackingHandler{Handler: s.handler, lost: make(chan struct{})}
		rn := remotenode.New(peerID, conn, s.codec, tracking)

		s.mu.Lock()
		s.conns[rn] = struct{}{}
		s.mu.Unlock()
		go func() {
			<-tracking.lost
			s.mu.Lock()
			delete(s.conns, rn)
			s.mu.Unlock()
		}()

		s.monitor(StateConnected, peerID.String())
		s.onConnected(rn)
		go rn.Serve(ctx)
	}
}

// Cancel stops accepting new connections, closes the listener, and
// tears down every currently accepted RemoteNode (SPEC_FULL.md §5:
// "cancelling a manager tears down its accept/dial loop and its child
// RemoteNodes, which in turn fail all their routed pending replies
// with connectionLost").
func (s *ServerManager) Cancel() {
	s.mu.Lock()
	srv := s.srv
	conns := make([]*remotenode.RemoteNode, 0, len(s.conns))
	for rn := range s.conns {
		conns = append(conns, rn)
	}
	s.mu.Unlock()

	if srv != nil {
		srv.Close()
	}
	for _, rn := range conns {
		rn.Close()
	}
	s.monitor(StateCancelled, s.addr.String())
}

// Done reports when the accept loop has fully stopped.
func (s *ServerManager) Done() <-chan struct{} {
	return s.done
}
