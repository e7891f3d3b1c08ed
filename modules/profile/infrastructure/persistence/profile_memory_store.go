package persistence

import (
	"context"
	"sort"
	"sync"

	"github.com/jacksonlee411/patchgate/modules/profile/domain/ports"
	"github.com/jacksonlee411/patchgate/modules/profile/domain/types"
)

type ProfileMemoryStore struct {
	mu       sync.Mutex
	profiles map[string]types.Profile
	audit    map[string][]types.ProfileAuditEntry
}

func NewProfileMemoryStore() *ProfileMemoryStore {
	return &ProfileMemoryStore{
		profiles: make(map[string]types.Profile),
		audit:    make(map[string][]types.ProfileAuditEntry),
	}
}

func (s *ProfileMemoryStore) CreateProfile(_ context.Context, p types.Profile) (types.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.profiles[p.ID]; ok {
		return types.Profile{}, ports.ErrProfileExists
	}

	now := nowRFC3339()
	p.Revision = 1
	p.CreatedAt = now
	p.UpdatedAt = now
	s.profiles[p.ID] = p
	return p, nil
}

func (s *ProfileMemoryStore) GetProfile(_ context.Context, id string) (types.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.profiles[id]
	if !ok {
		return types.Profile{}, ports.ErrProfileNotFound
	}
	return p, nil
}

func (s *ProfileMemoryStore) SaveProfile(_ context.Context, p types.Profile, expectedRevision int64, changedKeys []string) (types.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.profiles[p.ID]
	if !ok {
		return types.Profile{}, ports.ErrProfileNotFound
	}
	if stored.Revision != expectedRevision {
		return types.Profile{}, ports.ErrRevisionConflict
	}

	p.Revision = expectedRevision + 1
	p.CreatedAt = stored.CreatedAt
	p.UpdatedAt = nowRFC3339()
	s.profiles[p.ID] = p

	keys := append([]string(nil), changedKeys...)
	sort.Strings(keys)
	s.audit[p.ID] = append(s.audit[p.ID], types.ProfileAuditEntry{
		EventID:     deterministicProfileAuditEventID(p.ID, p.Revision),
		ProfileID:   p.ID,
		Revision:    p.Revision,
		ChangedKeys: keys,
		OccurredAt:  p.UpdatedAt,
	})
	return p, nil
}

func (s *ProfileMemoryStore) ListProfiles(_ context.Context) ([]types.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]types.Profile, 0, len(s.profiles))
	for _, p := range s.profiles {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *ProfileMemoryStore) ListProfileAudit(_ context.Context, id string) ([]types.ProfileAuditEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.profiles[id]; !ok {
		return nil, ports.ErrProfileNotFound
	}

	entries := s.audit[id]
	out := make([]types.ProfileAuditEntry, 0, len(entries))
	for _, e := range entries {
		e.ChangedKeys = append([]string(nil), e.ChangedKeys...)
		out = append(out, e)
	}
	return out, nil
}
