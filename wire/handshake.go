package wire

import (
	"encoding/json"
	"fmt"

	"github.com/nodecrew/actorkernel/identity"
)

// Handshake is the very first application message each side of a
// freshly upgraded WebSocket connection sends and receives, per
// SPEC_FULL.md §6 (unchanged from spec.md §6): each side transmits its
// NodeId before admitting any Call or Reply.
type Handshake struct {
	NodeId identity.NodeId `json:"nodeID"`
}

// EncodeHandshake renders a Handshake as the single text frame sent
// immediately after the WebSocket upgrade.
func EncodeHandshake(h Handshake) ([]byte, error) {
	return json.Marshal(h)
}

// DecodeHandshake is EncodeHandshake's inverse; a malformed handshake
// frame should cause the caller to abort the connection with
// failedToUpgrade.
func DecodeHandshake(bs []byte) (Handshake, error) {
	var h Handshake
	if err := json.Unmarshal(bs, &h); err != nil {
		return Handshake{}, fmt.Errorf("wire: malformed handshake: %w", err)
	}
	if h.NodeId.IsZero() {
		return Handshake{}, fmt.Errorf("wire: handshake missing node id")
	}
	return h, nil
}
