// Package errs collects the runtime's named error types (SPEC_FULL.md
// §7), mirroring the teacher's convention of small, typed errors with
// their own Error() method (see the original core/errors.go) rather
// than a flat table of sentinel values.
package errs

import (
	"fmt"
	"time"

	"github.com/nodecrew/actorkernel/identity"
	"github.com/nodecrew/actorkernel/wire"
)

// ResolveFailed occurs when the on-demand resolver returned nothing
// and the id is unknown locally.
type ResolveFailed struct {
	Id identity.ActorId
}

func (e *ResolveFailed) Error() string {
	return fmt.Sprintf("no local actor for %s", e.Id)
}

// ResolveFailedToMatchActorType occurs when resolve finds an id but
// the registered actor doesn't have the expected Go type.
type ResolveFailedToMatchActorType struct {
	Id       identity.ActorId
	Found    string
	Expected string
}

func (e *ResolveFailedToMatchActorType) Error() string {
	return fmt.Sprintf("actor %s has type %s, not %s", e.Id, e.Found, e.Expected)
}

// MissingNodeID occurs when an outbound call targets an ActorId whose
// Node field was never set.
type MissingNodeID struct {
	Id identity.ActorId
}

func (e *MissingNodeID) Error() string {
	return fmt.Sprintf("actor %s has no owning node", e.Id)
}

// NoRemoteNode is reserved for the case where directory book-keeping
// claims a connection exists but none can be found; under normal
// operation remoteNode(for:)'s wait loop prevents callers from ever
// observing this.
type NoRemoteNode struct {
	Node identity.NodeId
}

func (e *NoRemoteNode) Error() string {
	return fmt.Sprintf("no connection for node %s", e.Node)
}

// TimeoutWaitingForNodeID occurs when a caller waited Timeout for a
// node to connect and none appeared.
type TimeoutWaitingForNodeID struct {
	Node    identity.NodeId
	Timeout time.Duration
}

func (e *TimeoutWaitingForNodeID) Error() string {
	return fmt.Sprintf("timed out after %s waiting for node %s", e.Timeout, e.Node)
}

// FailedToUpgrade occurs when the WebSocket handshake, or the node-id
// handshake that follows it, fails.
type FailedToUpgrade struct {
	Reason error
}

func (e *FailedToUpgrade) Error() string {
	return fmt.Sprintf("failed to upgrade connection: %s", e.Reason)
}

func (e *FailedToUpgrade) Unwrap() error { return e.Reason }

// MissingReplyContinuation occurs when a Reply arrives for a call id
// that isn't registered, most often a late reply after the caller
// cancelled.
type MissingReplyContinuation struct {
	CallID wire.CallID
}

func (e *MissingReplyContinuation) Error() string {
	return fmt.Sprintf("no pending reply for call %s", e.CallID)
}

// DecodingError wraps a failure to decode reply bytes as the caller's
// expected return type.
type DecodingError struct {
	Reason error
}

func (e *DecodingError) Error() string {
	return fmt.Sprintf("couldn't decode reply: %s", e.Reason)
}

func (e *DecodingError) Unwrap() error { return e.Reason }

// SecureServerNotSupported occurs when a ServerManager is configured
// with a "secure" ServerAddress scheme; secure transport must be
// provided by an external reverse proxy.
type SecureServerNotSupported struct{}

func (e *SecureServerNotSupported) Error() string {
	return "insecure server only: configure TLS via an external reverse proxy"
}

// NotInDistributedActor occurs when getNodeInfo/setNodeInfo is called
// outside the dynamic extent of an inbound invocation dispatch.
type NotInDistributedActor struct{}

func (e *NotInDistributedActor) Error() string {
	return "getNodeInfo/setNodeInfo called outside an inbound dispatch"
}

// ConnectionLost is the terminal outcome given to every pending reply
// routed through a RemoteNode that closes before a Reply arrives.
type ConnectionLost struct {
	Node identity.NodeId
}

func (e *ConnectionLost) Error() string {
	return fmt.Sprintf("connection to node %s was lost", e.Node)
}

// StaleCall (SPEC_FULL.md §4.2/§7 addition) is given to a pending
// reply expired by the directory sweeper after maxCallAge, a
// defensive backstop for callers that set no timeout of their own.
type StaleCall struct {
	CallID wire.CallID
	Age    time.Duration
}

func (e *StaleCall) Error() string {
	return fmt.Sprintf("call %s expired after %s with no reply", e.CallID, e.Age)
}

// InvalidNodeConfig (SPEC_FULL.md §4.7/§7 addition) is returned by
// NodeConfig.Validate for a configuration the runtime refuses to
// start with.
type InvalidNodeConfig struct {
	Reason string
}

func (e *InvalidNodeConfig) Error() string {
	return fmt.Sprintf("invalid node configuration: %s", e.Reason)
}
