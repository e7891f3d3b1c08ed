package ports

import (
	"context"
	"errors"

	"github.com/jacksonlee411/patchgate/modules/profile/domain/types"
)

var (
	ErrProfileNotFound  = errors.New("profile_not_found")
	ErrProfileExists    = errors.New("profile_exists")
	ErrRevisionConflict = errors.New("profile_revision_conflict")
)

// ProfileStore is the persistence port for profile records.
//
// SaveProfile persists p only when the stored revision still equals
// expectedRevision, bumps the revision by one, and appends one audit entry
// naming changedKeys. A stale expectedRevision returns ErrRevisionConflict
// and leaves the stored record untouched.
type ProfileStore interface {
	CreateProfile(ctx context.Context, p types.Profile) (types.Profile, error)
	GetProfile(ctx context.Context, id string) (types.Profile, error)
	SaveProfile(ctx context.Context, p types.Profile, expectedRevision int64, changedKeys []string) (types.Profile, error)
	ListProfiles(ctx context.Context) ([]types.Profile, error)
	ListProfileAudit(ctx context.Context, id string) ([]types.ProfileAuditEntry, error)
}
