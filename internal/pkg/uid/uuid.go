package uid

import "github.com/google/uuid"

// UUID issues RFC 4122 identifiers, used for correlation IDs on requests and
// published events.
type UUID struct{}

// NewUUID returns a UUID generator.
func NewUUID() *UUID {
	return &UUID{}
}

// Generate prefers time-ordered v7 identifiers and degrades to random v4 when
// the entropy source fails.
func (u *UUID) Generate() string {
	if id, err := uuid.NewV7(); err == nil {
		return id.String()
	}
	return uuid.NewString()
}
