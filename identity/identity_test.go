package identity

import (
	"encoding/json"
	"testing"
)

func TestActorIdEquality(t *testing.T) {
	a := NewActorId("foo")
	b := NewActorId("foo")
	if !a.Equal(b) {
		t.Errorf("ActorId(%q) != ActorId(%q)", a, b)
	}
}

func TestActorIdRandomDiffers(t *testing.T) {
	a := RandomActorId()
	b := RandomActorId()
	if a.Equal(b) {
		t.Errorf("two successive RandomActorId() collided: %s", a)
	}
}

func TestActorIdHasType(t *testing.T) {
	a := RandomActorIdFor("Person")
	if !a.HasType("Person") {
		t.Errorf("RandomActorIdFor(%q).HasType(%q) is false", "Person", "Person")
	}
	if a.HasType("Dog") {
		t.Errorf("RandomActorIdFor(%q).HasType(%q) is true", "Person", "Dog")
	}
}

func TestActorIdWithNode(t *testing.T) {
	n := NewNodeId()
	a := NewActorId("foo")
	if a.HasNode() {
		t.Fatalf("fresh ActorId already has a node")
	}
	b := a.With(n)
	if !b.HasNode() {
		t.Fatalf("With(node) didn't set HasNode")
	}
	if !b.Node.Equal(n) {
		t.Errorf("With(node) Node = %s, want %s", b.Node, n)
	}
	// a itself is unchanged.
	if a.HasNode() {
		t.Errorf("With(node) mutated the receiver")
	}
}

func TestActorIdEqualityConsidersNode(t *testing.T) {
	n1 := NewNodeId()
	n2 := NewNodeId()
	a := NewActorId("foo").With(n1)
	b := NewActorId("foo").With(n2)
	if a.Equal(b) {
		t.Errorf("ActorIds with different nodes compared equal")
	}
	c := NewActorId("foo").With(n1)
	if !a.Equal(c) {
		t.Errorf("ActorIds with the same id and node compared unequal")
	}
}

func TestActorIdJSONRoundTrip(t *testing.T) {
	n := NewNodeId()
	a := RandomActorIdFor("Alice").With(n)

	bs, err := json.Marshal(a)
	if err != nil {
		t.Fatalf("Marshal: %s", err)
	}

	var b ActorId
	if err := json.Unmarshal(bs, &b); err != nil {
		t.Fatalf("Unmarshal: %s", err)
	}

	if !a.Equal(b) {
		t.Errorf("round trip changed identity: %s -> %s", a, b)
	}
	if !b.HasType("Alice") {
		t.Errorf("round trip lost type tag")
	}
	if !b.Node.Equal(n) {
		t.Errorf("round trip lost node: %s -> %s", n, b.Node)
	}
}

func TestActorIdJSONRoundTripNoNode(t *testing.T) {
	a := RandomActorId()

	bs, err := json.Marshal(a)
	if err != nil {
		t.Fatalf("Marshal: %s", err)
	}

	var b ActorId
	if err := json.Unmarshal(bs, &b); err != nil {
		t.Fatalf("Unmarshal: %s", err)
	}

	if b.HasNode() {
		t.Errorf("round trip invented a node")
	}
	if !a.Equal(b) {
		t.Errorf("round trip changed identity: %s -> %s", a, b)
	}
}

func TestNodeIdJSONRoundTrip(t *testing.T) {
	n := NewNodeId()

	bs, err := json.Marshal(n)
	if err != nil {
		t.Fatalf("Marshal: %s", err)
	}

	var m NodeId
	if err := json.Unmarshal(bs, &m); err != nil {
		t.Fatalf("Unmarshal: %s", err)
	}

	if !n.Equal(m) {
		t.Errorf("round trip changed NodeId: %s -> %s", n, m)
	}
}
