package wire

import "github.com/google/uuid"

// NewCallID mints a fresh 128-bit call identifier.
func NewCallID() CallID {
	u := uuid.New()
	return CallID{value: [16]byte(u), set: true}
}
