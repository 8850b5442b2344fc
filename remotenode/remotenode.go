// Package remotenode implements RemoteNode, the per-connection object
// bound to one live WebSocket peer (SPEC_FULL.md §4.4, unchanged from
// spec.md): a single writer task owns the outbound side, a single
// reader task consumes inbound frames, and a per-peer user-info map is
// reachable from dispatched call handlers via a context value scoping
// "the RemoteNode currently dispatching this call".
package remotenode

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nodecrew/actorkernel/errs"
	"github.com/nodecrew/actorkernel/identity"
	"github.com/nodecrew/actorkernel/wire"
)

// Handler is the kernel-side counterpart a RemoteNode dispatches into.
// RemoteNode runs HandleCall in its own goroutine per inbound call
// (SPEC_FULL.md §4.6 "concurrency inside dispatch"); implementations must
// eventually call rn.Write with a Reply, or drop the call silently if
// no local actor matches.
type Handler interface {
	HandleCall(ctx context.Context, rn *RemoteNode, call wire.Call)
	HandleReply(callID wire.CallID, value []byte)
	// HandleClosed is invoked once, after the reader loop exits for
	// any reason (clean close, protocol error, or read error).
	HandleClosed(rn *RemoteNode, err error)
}

type contextKey struct{}

// currentKey is the context key under which the dispatching RemoteNode
// is stashed for the life of one HandleCall invocation, so that user
// code reached transitively from it can call GetNodeInfo/SetNodeInfo
// without a global.
var currentKey = contextKey{}

// FromContext returns the RemoteNode currently dispatching the
// invocation ctx was derived from, or (nil, false) outside such a
// context — the getNodeInfo/setNodeInfo accessors use this to raise
// errs.NotInDistributedActor.
func FromContext(ctx context.Context) (*RemoteNode, bool) {
	rn, ok := ctx.Value(currentKey).(*RemoteNode)
	return rn, ok
}

// RemoteNode owns one live peer connection.
type RemoteNode struct {
	id      identity.NodeId
	conn    *websocket.Conn
	codec   wire.Codec
	handler Handler

	writeCh chan wire.Envelope
	done    chan struct{}
	closeErr error
	closeOnce sync.Once

	infoMu sync.Mutex
	info   map[string]string
}

// New wraps an already-upgraded, already-handshaken WebSocket
// connection as a RemoteNode for peerID.
func New(peerID identity.NodeId, conn *websocket.Conn, codec wire.Codec, handler Handler) *RemoteNode {
	rn := &RemoteNode{
		id:      peerID,
		conn:    conn,
		codec:   codec,
		handler: handler,
		writeCh: make(chan wire.Envelope, 64),
		done:    make(chan struct{}),
		info:    make(map[string]string),
	}
	conn.SetPingHandler(func(payload string) error {
		return rn.conn.WriteControl(websocket.PongMessage, []byte(payload), time.Now().Add(5*time.Second))
	})
	// gorilla's default close handler already echoes a close frame and
	// returns a *websocket.CloseError from ReadMessage, which readLoop
	// below treats like any other terminal read error.
	return rn
}

// NodeID satisfies directory.Node.
func (rn *RemoteNode) NodeID() identity.NodeId { return rn.id }

// Serve runs the writer pump in its own goroutine and the reader pump
// in the calling goroutine, returning once the connection is closed
// for any reason. Callers typically run Serve in its own goroutine per
// connection (one per accepted or dialed peer).
func (rn *RemoteNode) Serve(ctx context.Context) {
	go rn.writeLoop()
	rn.readLoop(ctx)
}

// Write submits an envelope to the single serializing writer. It
// returns an error only if the connection has already closed;
// encoding failures inside the writer are logged and dropped per
// SPEC_FULL.md §4.4, never surfaced to the caller (who instead
// observes a call-level timeout).
func (rn *RemoteNode) Write(e wire.Envelope) error {
	select {
	case rn.writeCh <- e:
		return nil
	case <-rn.done:
		return &errs.ConnectionLost{Node: rn.id}
	}
}

// Close hands a ConnectionClose envelope to the writer and then closes
// the underlying connection without waiting for the writer, so the
// close frame is sent only if the writer reaches it first. If the
// connection is already gone it returns at once.
func (rn *RemoteNode) Close() {
	select {
	case rn.writeCh <- wire.NewConnectionCloseEnvelope():
	case <-rn.done:
		return
	}
	rn.conn.Close()
}

func (rn *RemoteNode) writeLoop() {
	for {
		select {
		case e := <-rn.writeCh:
			rn.writeOne(e)
		case <-rn.done:
			return
		}
	}
}

func (rn *RemoteNode) writeOne(e wire.Envelope) {
	if e.Tag == wire.TagConnectionClose {
		msg := websocket.FormatCloseMessage(websocket.CloseProtocolError, "")
		if err := rn.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(5*time.Second)); err != nil {
			log.Printf("remotenode: write close frame to %s: %s", rn.id, err)
		}
		return
	}

	bs, err := rn.codec.Encode(e)
	if err != nil {
		log.Printf("remotenode: encode envelope for %s: %s", rn.id, err)
		return
	}
	if err := rn.conn.WriteMessage(websocket.TextMessage, bs); err != nil {
		log.Printf("remotenode: write to %s: %s", rn.id, err)
	}
}

// readLoop consumes inbound frames until end-of-stream or error, per
// SPEC_FULL.md §4.4's read path. gorilla/websocket reassembles
// fragmented (continuation) frames into a single Text or Binary
// message before ReadMessage returns, so "continuation" never
// surfaces as a distinct case here.
func (rn *RemoteNode) readLoop(ctx context.Context) {
	var closeErr error

LOOP:
	for {
		mt, message, err := rn.conn.ReadMessage()
		if err != nil {
			closeErr = err
			break LOOP
		}

		switch mt {
		case websocket.TextMessage:
			env, derr := rn.codec.Decode(message)
			if derr != nil {
				closeErr = fmt.Errorf("remotenode: decode from %s: %w", rn.id, derr)
				break LOOP
			}
			switch env.Tag {
			case wire.TagCall:
				callCtx := context.WithValue(ctx, currentKey, rn)
				go rn.handler.HandleCall(callCtx, rn, *env.Call)
			case wire.TagReply:
				rn.handler.HandleReply(env.Reply.CallID, env.Reply.Value)
			case wire.TagConnectionClose:
				break LOOP
			}
		case websocket.BinaryMessage:
			// Ignored per SPEC_FULL.md §4.4.
		default:
			closeErr = fmt.Errorf("remotenode: unexpected opcode %d from %s", mt, rn.id)
			break LOOP
		}
	}

	rn.closeOnce.Do(func() {
		rn.closeErr = closeErr
		close(rn.done)
		rn.conn.Close()
	})

	rn.handler.HandleClosed(rn, closeErr)
}

// GetNodeInfo reads key from the user-info map for this peer.
func (rn *RemoteNode) GetNodeInfo(key string) (string, bool) {
	rn.infoMu.Lock()
	defer rn.infoMu.Unlock()
	v, have := rn.info[key]
	return v, have
}

// SetNodeInfo writes key into the user-info map for this peer.
func (rn *RemoteNode) SetNodeInfo(key, value string) {
	rn.infoMu.Lock()
	defer rn.infoMu.Unlock()
	rn.info[key] = value
}
