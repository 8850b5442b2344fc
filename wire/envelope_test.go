package wire

import (
	"testing"

	"github.com/nodecrew/actorkernel/identity"
	"github.com/nodecrew/actorkernel/util/testutil"
)

func TestJSONCodecCallRoundTrip(t *testing.T) {
	codec := JSONCodec{}

	node := identity.NewNodeId()
	recipient := identity.RandomActorIdFor("Alice").With(node)

	in := NewCallEnvelope(Call{
		CallID:           NewCallID(),
		Recipient:        recipient,
		InvocationTarget: "addOne(_:)",
		GenericSubs:      []string{"Int"},
		Args:             [][]byte{[]byte("42")},
	})

	bs, err := codec.Encode(in)
	if err != nil {
		t.Fatalf("Encode: %s", err)
	}

	out, err := codec.Decode(bs)
	if err != nil {
		t.Fatalf("Decode: %s", err)
	}

	if out.Tag != TagCall || out.Call == nil {
		t.Fatalf("decoded envelope isn't a call: %+v", out)
	}
	if !out.Call.CallID.Equal(in.Call.CallID) {
		t.Errorf("CallID changed: %s -> %s", in.Call.CallID, out.Call.CallID)
	}
	if !out.Call.Recipient.Equal(recipient) {
		t.Errorf("Recipient changed: %s -> %s", recipient, out.Call.Recipient)
	}
	if out.Call.InvocationTarget != "addOne(_:)" {
		t.Errorf("InvocationTarget = %q", out.Call.InvocationTarget)
	}
	if len(out.Call.Args) != 1 || string(out.Call.Args[0]) != "42" {
		t.Errorf("Args = %v", out.Call.Args)
	}
}

func TestJSONCodecReplyRoundTrip(t *testing.T) {
	codec := JSONCodec{}

	sender := identity.RandomActorId()

	in := NewReplyEnvelope(Reply{
		CallID: NewCallID(),
		Sender: &sender,
		Value:  []byte("43"),
	})

	bs, err := codec.Encode(in)
	if err != nil {
		t.Fatalf("Encode: %s", err)
	}

	out, err := codec.Decode(bs)
	if err != nil {
		t.Fatalf("Decode: %s", err)
	}

	if out.Tag != TagReply || out.Reply == nil {
		t.Fatalf("decoded envelope isn't a reply: %+v", out)
	}
	if !out.Reply.CallID.Equal(in.Reply.CallID) {
		t.Errorf("CallID changed")
	}
	if out.Reply.Sender == nil || !out.Reply.Sender.Equal(sender) {
		t.Errorf("Sender changed")
	}
	if string(out.Reply.Value) != "43" {
		t.Errorf("Value = %q", out.Reply.Value)
	}
}

func TestJSONCodecConnectionCloseRoundTrip(t *testing.T) {
	codec := JSONCodec{}

	bs, err := codec.Encode(NewConnectionCloseEnvelope())
	if err != nil {
		t.Fatalf("Encode: %s", err)
	}

	out, err := codec.Decode(bs)
	if err != nil {
		t.Fatalf("Decode: %s", err)
	}
	if out.Tag != TagConnectionClose {
		t.Errorf("Tag = %s, want %s", out.Tag, TagConnectionClose)
	}
}

// TestDwimjsParsesEncodedCallEnvelope checks the raw wire shape at the
// untyped-map level (tag discrimination, base64 arg blobs), rather than
// only round-tripping through the typed Call/Reply structs above.
func TestDwimjsParsesEncodedCallEnvelope(t *testing.T) {
	codec := JSONCodec{}
	recipient := identity.RandomActorIdFor("Alice").With(identity.NewNodeId())

	bs, err := codec.Encode(NewCallEnvelope(Call{
		CallID:           NewCallID(),
		Recipient:        recipient,
		InvocationTarget: "addOne(_:)",
		Args:             [][]byte{[]byte("42")},
	}))
	if err != nil {
		t.Fatalf("Encode: %s", err)
	}

	raw, ok := testutil.Dwimjs(bs).(map[string]interface{})
	if !ok {
		t.Fatalf("Dwimjs(%s) isn't a JSON object", testutil.JS(string(bs)))
	}
	if raw["tag"] != "call" {
		t.Errorf("tag = %v, want %q", raw["tag"], "call")
	}
	if raw["invocationTarget"] != "addOne(_:)" {
		t.Errorf("invocationTarget = %v", raw["invocationTarget"])
	}
}

func TestCallIDFreshEachTime(t *testing.T) {
	a := NewCallID()
	b := NewCallID()
	if a.Equal(b) {
		t.Errorf("two successive NewCallID() collided")
	}
}

func TestHandshakeRoundTrip(t *testing.T) {
	h := Handshake{NodeId: identity.NewNodeId()}
	bs, err := EncodeHandshake(h)
	if err != nil {
		t.Fatalf("EncodeHandshake: %s", err)
	}
	got, err := DecodeHandshake(bs)
	if err != nil {
		t.Fatalf("DecodeHandshake: %s", err)
	}
	if !got.NodeId.Equal(h.NodeId) {
		t.Errorf("NodeId changed: %s -> %s", h.NodeId, got.NodeId)
	}
}

func TestDecodeHandshakeRejectsMissingNode(t *testing.T) {
	if _, err := DecodeHandshake([]byte(`{}`)); err == nil {
		t.Errorf("expected an error for a handshake with no node id")
	}
}
