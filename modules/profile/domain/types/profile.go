package types

// Profile is the record served by the partial-update path. PasswordHash is a
// credential: it never serializes and no field policy may touch it. Revision
// is the store's optimistic-concurrency token; timestamps are store-owned
// RFC 3339 strings.
type Profile struct {
	ID           string `json:"id"`
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name"`
	Email        string `json:"email"`
	Locale       string `json:"locale"`
	BirthYear    int    `json:"birth_year"`
	Active       bool   `json:"active"`
	PasswordHash string `json:"-"`
	Revision     int64  `json:"revision"`
	CreatedAt    string `json:"created_at"`
	UpdatedAt    string `json:"updated_at"`
}

// ProfileAuditEntry records one applied update. EventID is deterministic per
// (profile, revision) transition, so replays cannot double-append.
type ProfileAuditEntry struct {
	EventID     string   `json:"event_id"`
	ProfileID   string   `json:"profile_id"`
	Revision    int64    `json:"revision"`
	ChangedKeys []string `json:"changed_keys"`
	OccurredAt  string   `json:"occurred_at"`
}
