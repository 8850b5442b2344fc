package transport

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nodecrew/actorkernel/config"
	"github.com/nodecrew/actorkernel/identity"
	"github.com/nodecrew/actorkernel/remotenode"
	"github.com/nodecrew/actorkernel/wire"
)

// ClientManager dials one server address and supervises a resilient
// reconnect loop, grounded on sio/mqclient/main.go's
// --reconnect/OnConnectionLost idiom: disconnection is never terminal,
// every drop is followed by a backed-off redial attempt until Cancel
// is called.
type ClientManager struct {
	addr    config.ServerAddress
	backoff config.BackoffConfig
	timeout time.Duration

	localNodeID identity.NodeId
	codec       wire.Codec
	handler     remotenode.Handler
	onConnected func(*remotenode.RemoteNode)
	monitor     Monitor

	cancel context.CancelFunc
	done   chan struct{}
}

// NewClientManager returns a ClientManager that has not yet started
// dialing; call Run to begin the connect/reconnect loop.
func NewClientManager(addr config.ServerAddress, backoff config.BackoffConfig, connectionTimeout time.Duration, localNodeID identity.NodeId, codec wire.Codec, handler remotenode.Handler, onConnected func(*remotenode.RemoteNode), monitor Monitor) *ClientManager {
	if monitor == nil {
		monitor = func(MonitorState, string) {}
	}
	return &ClientManager{
		addr:        addr,
		backoff:     backoff,
		timeout:     connectionTimeout,
		localNodeID: localNodeID,
		codec:       codec,
		handler:     handler,
		onConnected: onConnected,
		monitor:     monitor,
		done:        make(chan struct{}),
	}
}

// Run starts the dial/reconnect loop and blocks until ctx is
// cancelled or Cancel is called. Callers typically invoke it in its
// own goroutine.
func (c *ClientManager) Run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	defer close(c.done)

	url := fmt.Sprintf("ws://%s:%d/", c.addr.Host, c.addr.Port)
	if c.addr.Scheme == config.SchemeSecure {
		url = fmt.Sprintf("wss://%s:%d/", c.addr.Host, c.addr.Port)
	}

	redial := false
	for attempt := 0; ; attempt++ {
		if ctx.Err() != nil {
			c.monitor(StateCancelled, c.addr.String())
			return
		}

		if !redial {
			c.monitor(StateConnecting, url)
		} else {
			c.monitor(StateReconnecting, url)
		}
		redial = true

		rn, lostCh, err := c.dialOnce(ctx, url)
		if err != nil {
			c.monitor(StateDisconnected, err.Error())
			if !sleep(ctx, backoffDelay(c.backoff, attempt)) {
				c.monitor(StateCancelled, c.addr.String())
				return
			}
			continue
		}

		// Connected: reset the backoff counter and wait for this
		// connection to drop, or for Cancel/ctx to end the loop, before
		// redialing.
		attempt = -1
		select {
		case <-lostCh:
			c.monitor(StateDisconnected, url)
		case <-ctx.Done():
			rn.Close()
			c.monitor(StateCancelled, c.addr.String())
			return
		}
	}
}

// dialOnce dials, upgrades, and handshakes once. The returned channel
// closes when the resulting RemoteNode's reader loop exits.
func (c *ClientManager) dialOnce(ctx context.Context, url string) (*remotenode.RemoteNode, <-chan struct{}, error) {
	dialer := websocket.Dialer{HandshakeTimeout: c.timeout}
	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("dial %s: %w", url, err)
	}

	peerID, err := doHandshake(ctx, conn, c.localNodeID, c.timeout)
	if err != nil {
		conn.Close()
		return nil, nil, err
	}

	tracking := &closeTrackingHandler{Handler: c.handler, lost: make(chan struct{})}
	rn := remotenode.New(peerID, conn, c.codec, tracking)
	lost := tracking.lost

	c.monitor(StateConnected, peerID.String())
	c.onConnected(rn)
	go rn.Serve(ctx)

	return rn, lost, nil
}

// Cancel stops the dial/reconnect loop and tears down any live
// connection.
func (c *ClientManager) Cancel() {
	if c.cancel != nil {
		c.cancel()
	}
}

// Done reports when the dial/reconnect loop has fully stopped.
func (c *ClientManager) Done() <-chan struct{} {
	return c.done
}

// closeTrackingHandler wraps the kernel's Handler to additionally
// signal lost once HandleClosed fires, so Run's reconnect loop knows
// when to redial without the kernel needing to know about transport
// bookkeeping.
type closeTrackingHandler struct {
	remotenode.Handler
	closeOnce sync.Once
	lost      chan struct{}
}

func (h *closeTrackingHandler) HandleClosed(rn *remotenode.RemoteNode, err error) {
	h.Handler.HandleClosed(rn, err)
	h.closeOnce.Do(func() { close(h.lost) })
}
