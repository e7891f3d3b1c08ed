// Package uuidv7 generates the time-ordered identifiers used as record
// primary keys. UUIDv7 ids sort by creation time, so id-ordered listings
// read oldest first.
package uuidv7

import "github.com/google/uuid"

// New returns a UUIDv7 per RFC 9562 (time-ordered, millisecond precision
// with the library's in-process monotonicity guard).
func New() (uuid.UUID, error) {
	return uuid.NewV7()
}

// NewString returns a UUIDv7 in canonical string form.
func NewString() (string, error) {
	u, err := New()
	if err != nil {
		return "", err
	}
	return u.String(), nil
}
