package kernel

import (
	"context"
	"log"

	"github.com/nodecrew/actorkernel/diagnostics"
	"github.com/nodecrew/actorkernel/errs"
	"github.com/nodecrew/actorkernel/remotenode"
	"github.com/nodecrew/actorkernel/wire"
)

// ActorSystem implements remotenode.Handler, so every RemoteNode the
// connection managers create dispatches directly into the kernel.

// HandleCall is the inbound-call path from SPEC_FULL.md §4.6: resolve
// the recipient, invoke its method, and reply. A recipient that
// resolves to nothing is logged and dropped — no reply is sent, and
// the caller's own timeout or cancellation will eventually surface it.
func (k *ActorSystem) HandleCall(ctx context.Context, rn *remotenode.RemoteNode, call wire.Call) {
	actor, found, err := k.resolveAny(call.Recipient)
	if err != nil {
		log.Printf("kernel: resolving %s for call %s: %s", call.Recipient, call.CallID, err)
		return
	}
	if !found {
		log.Printf("kernel: no local actor for %s, dropping call %s", call.Recipient, call.CallID)
		return
	}

	value, invokeErr := actor.Invoke(ctx, call.InvocationTarget, call.GenericSubs, call.Args)
	if invokeErr != nil {
		// Error detail is intentionally not propagated over the wire
		// (SPEC_FULL.md §7): the caller observes a decoding failure
		// instead of the real cause.
		log.Printf("kernel: invoking %s.%s: %s", call.Recipient, call.InvocationTarget, invokeErr)
		value = nil
	}

	if werr := rn.Write(wire.NewReplyEnvelope(wire.Reply{CallID: call.CallID, Value: value})); werr != nil {
		log.Printf("kernel: replying to call %s: %s", call.CallID, werr)
	}
}

// HandleReply forwards an inbound Reply to the pending-reply registry.
// A reply for an id nobody is waiting on (a late reply after caller
// cancellation) is logged, per SPEC_FULL.md §5's cancellation
// semantics.
func (k *ActorSystem) HandleReply(callID wire.CallID, value []byte) {
	if err := k.pending.ReceivedReply(callID, value); err != nil {
		log.Printf("kernel: %s", err)
	}
}

// HandleClosed evicts the closed RemoteNode from the directory, fails
// every pending call that was routed through it with connectionLost,
// and records the closure if diagnostics are enabled.
func (k *ActorSystem) HandleClosed(rn *remotenode.RemoteNode, err error) {
	k.directory.Closing(rn)

	if n := k.pending.FailForNode(rn.NodeID(), &errs.ConnectionLost{Node: rn.NodeID()}); n > 0 {
		log.Printf("kernel: failed %d pending call(s) routed through %s", n, rn.NodeID())
	}

	detail := ""
	if err != nil {
		detail = err.Error()
	}
	k.recordEvent(rn.NodeID(), diagnostics.KindClosing, detail)
}

// GetNodeInfo reads key from the user-info map of the RemoteNode
// currently dispatching the call ctx was derived from. Valid only
// during an inbound invocation; outside one it fails with
// NotInDistributedActor.
func GetNodeInfo(ctx context.Context, key string) (string, error) {
	rn, ok := remotenode.FromContext(ctx)
	if !ok {
		return "", &errs.NotInDistributedActor{}
	}
	v, _ := rn.GetNodeInfo(key)
	return v, nil
}

// SetNodeInfo writes key into the user-info map of the RemoteNode
// currently dispatching the call ctx was derived from.
func SetNodeInfo(ctx context.Context, key, value string) error {
	rn, ok := remotenode.FromContext(ctx)
	if !ok {
		return &errs.NotInDistributedActor{}
	}
	rn.SetNodeInfo(key, value)
	return nil
}
