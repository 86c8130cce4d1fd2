package conversation

import "github.com/google/uuid"

// NewID returns a collision-resistant identifier. UUIDv7 carries a millisecond
// time component followed by random bits, so ids sort roughly by creation time
// and are never reused.
func NewID() string {
	return uuid.Must(uuid.NewV7()).String()
}
