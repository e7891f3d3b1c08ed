// Package persistence provides the ProfileStore adapters: Postgres for
// production, SQLite for single-node deployments, memory for tests and dev.
// All three enforce the same revision CAS contract and append one audit entry
// per applied update.
package persistence

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
)

var profileAuditNamespace = uuid.Must(uuid.Parse("b6a7c9a2-51d4-4f2e-9b63-2f6f4cf08e11"))

// deterministicProfileAuditEventID derives a stable event_id from the
// (profile, revision) transition so a replayed save cannot double-append.
func deterministicProfileAuditEventID(profileID string, revision int64) string {
	name := fmt.Sprintf("profile.profile_audit:%s:%d", profileID, revision)
	return uuid.NewSHA1(profileAuditNamespace, []byte(name)).String()
}

var nowRFC3339 = func() string {
	return time.Now().UTC().Format(time.RFC3339)
}

func encodeChangedKeys(changedKeys []string) ([]byte, error) {
	keys := append([]string(nil), changedKeys...)
	sort.Strings(keys)
	return json.Marshal(keys)
}

func decodeChangedKeys(raw []byte) ([]string, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var keys []string
	if err := json.Unmarshal(raw, &keys); err != nil {
		return nil, fmt.Errorf("decode changed_keys: %w", err)
	}
	return keys, nil
}
