// Package wire defines the envelope types exchanged between nodes and
// the pluggable codec that turns them into opaque byte blobs.
//
// The runtime never interprets argument or value bytes beyond passing
// them through; encoding of the application-declared types is the
// codec's job, not this package's.
package wire

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/nodecrew/actorkernel/identity"
)

// Tag names the three Envelope variants on the wire.
type Tag string

const (
	TagCall            Tag = "call"
	TagReply           Tag = "reply"
	TagConnectionClose Tag = "connectionClose"
)

// CallID is a fresh 128-bit identifier minted per outgoing invocation.
type CallID struct {
	value [16]byte
	set   bool
}

func (c CallID) String() string {
	if !c.set {
		return ""
	}
	return uuid.UUID(c.value).String()
}

func (c CallID) IsZero() bool { return !c.set }

func (c CallID) Equal(other CallID) bool {
	return c.set == other.set && c.value == other.value
}

func (c CallID) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.String())
}

func (c *CallID) UnmarshalJSON(bs []byte) error {
	var s string
	if err := json.Unmarshal(bs, &s); err != nil {
		return err
	}
	id, err := ParseCallID(s)
	if err != nil {
		return err
	}
	*c = id
	return nil
}

// ParseCallID parses the canonical UUID rendering back into a CallID,
// as produced by NewCallID/String.
func ParseCallID(s string) (CallID, error) {
	var c CallID
	if s == "" {
		return c, nil
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return c, fmt.Errorf("wire: malformed call id %q: %w", s, err)
	}
	c.value = [16]byte(u)
	c.set = true
	return c, nil
}

// Call carries an outbound method invocation.
type Call struct {
	CallID           CallID          `json:"callID"`
	Recipient        identity.ActorId `json:"recipient"`
	InvocationTarget string          `json:"invocationTarget"`
	GenericSubs      []string        `json:"genericSubs,omitempty"`
	Args             [][]byte        `json:"args"`
}

// Reply carries a method's result (or an empty value on error, see
// SPEC_FULL.md §7: error detail is intentionally not propagated).
type Reply struct {
	CallID CallID           `json:"callID"`
	Sender *identity.ActorId `json:"sender,omitempty"`
	Value  []byte           `json:"value"`
}

// Envelope is the tagged union of the three wire message kinds. Only
// one of Call/Reply is non-nil unless Tag is TagConnectionClose, in
// which case both are nil.
type Envelope struct {
	Tag   Tag
	Call  *Call
	Reply *Reply
}

func NewCallEnvelope(c Call) Envelope   { return Envelope{Tag: TagCall, Call: &c} }
func NewReplyEnvelope(r Reply) Envelope { return Envelope{Tag: TagReply, Reply: &r} }
func NewConnectionCloseEnvelope() Envelope {
	return Envelope{Tag: TagConnectionClose}
}

// wireEnvelope is the flat, tag-discriminated JSON shape from
// SPEC_FULL.md §6; base64 encoding of []byte fields falls out of
// encoding/json for free.
type wireEnvelope struct {
	Tag Tag `json:"tag"`

	CallID           CallID            `json:"callID,omitempty"`
	Recipient        *identity.ActorId `json:"recipient,omitempty"`
	InvocationTarget string            `json:"invocationTarget,omitempty"`
	GenericSubs      []string          `json:"genericSubs,omitempty"`
	Args             [][]byte          `json:"args,omitempty"`

	Sender *identity.ActorId `json:"sender,omitempty"`
	Value  []byte            `json:"value,omitempty"`
}

// Encoder turns an Envelope into the opaque bytes placed in a single
// text frame. Decoder is its inverse. The runtime is parameterized
// over this pair so that an alternative wire codec can be substituted
// without touching RemoteNode.
type Encoder interface {
	Encode(Envelope) ([]byte, error)
}

type Decoder interface {
	Decode([]byte) (Envelope, error)
}

// Codec bundles an Encoder and a Decoder; JSONCodec is the default.
type Codec interface {
	Encoder
	Decoder
}

// JSONCodec is the default codec described in SPEC_FULL.md §6.
type JSONCodec struct{}

func (JSONCodec) Encode(e Envelope) ([]byte, error) {
	w := wireEnvelope{Tag: e.Tag}
	switch e.Tag {
	case TagCall:
		if e.Call == nil {
			return nil, fmt.Errorf("wire: call envelope missing Call")
		}
		w.CallID = e.Call.CallID
		recipient := e.Call.Recipient
		w.Recipient = &recipient
		w.InvocationTarget = e.Call.InvocationTarget
		w.GenericSubs = e.Call.GenericSubs
		w.Args = e.Call.Args
	case TagReply:
		if e.Reply == nil {
			return nil, fmt.Errorf("wire: reply envelope missing Reply")
		}
		w.CallID = e.Reply.CallID
		w.Sender = e.Reply.Sender
		w.Value = e.Reply.Value
	case TagConnectionClose:
		// No payload.
	default:
		return nil, fmt.Errorf("wire: unknown envelope tag %q", e.Tag)
	}
	return json.Marshal(w)
}

func (JSONCodec) Decode(bs []byte) (Envelope, error) {
	var w wireEnvelope
	if err := json.Unmarshal(bs, &w); err != nil {
		return Envelope{}, err
	}
	switch w.Tag {
	case TagCall:
		var recipient identity.ActorId
		if w.Recipient != nil {
			recipient = *w.Recipient
		}
		return Envelope{
			Tag: TagCall,
			Call: &Call{
				CallID:           w.CallID,
				Recipient:        recipient,
				InvocationTarget: w.InvocationTarget,
				GenericSubs:      w.GenericSubs,
				Args:             w.Args,
			},
		}, nil
	case TagReply:
		return Envelope{
			Tag: TagReply,
			Reply: &Reply{
				CallID: w.CallID,
				Sender: w.Sender,
				Value:  w.Value,
			},
		}, nil
	case TagConnectionClose:
		return Envelope{Tag: TagConnectionClose}, nil
	default:
		return Envelope{}, fmt.Errorf("wire: unknown envelope tag %q", w.Tag)
	}
}
