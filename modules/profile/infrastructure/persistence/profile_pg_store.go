package persistence

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/jacksonlee411/patchgate/modules/profile/domain/ports"
	"github.com/jacksonlee411/patchgate/modules/profile/domain/types"
)

type pgBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

type ProfilePGStore struct {
	pool pgBeginner
}

func NewProfilePGStore(pool pgBeginner) ports.ProfileStore {
	return &ProfilePGStore{pool: pool}
}

func (s *ProfilePGStore) CreateProfile(ctx context.Context, p types.Profile) (types.Profile, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return types.Profile{}, err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	var exists bool
	if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM profile.profiles WHERE id = $1)`, p.ID).Scan(&exists); err != nil {
		return types.Profile{}, err
	}
	if exists {
		return types.Profile{}, ports.ErrProfileExists
	}

	now := nowRFC3339()
	p.Revision = 1
	p.CreatedAt = now
	p.UpdatedAt = now

	if _, err := tx.Exec(ctx, `
	INSERT INTO profile.profiles (id, first_name, last_name, email, locale, birth_year, active, password_hash, revision, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, p.ID, p.FirstName, p.LastName, p.Email, p.Locale, p.BirthYear, p.Active, p.PasswordHash, p.Revision, p.CreatedAt, p.UpdatedAt); err != nil {
		return types.Profile{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return types.Profile{}, err
	}
	return p, nil
}

func (s *ProfilePGStore) GetProfile(ctx context.Context, id string) (types.Profile, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return types.Profile{}, err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	var p types.Profile
	err = tx.QueryRow(ctx, `
	SELECT id, first_name, last_name, email, locale, birth_year, active, password_hash, revision, created_at, updated_at
	FROM profile.profiles WHERE id = $1
	`, id).Scan(&p.ID, &p.FirstName, &p.LastName, &p.Email, &p.Locale, &p.BirthYear, &p.Active, &p.PasswordHash, &p.Revision, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return types.Profile{}, ports.ErrProfileNotFound
		}
		return types.Profile{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return types.Profile{}, err
	}
	return p, nil
}

// SaveProfile applies the merged record under compare-and-swap on revision and
// appends the audit entry in the same transaction. The deterministic event_id
// turns a replayed save into a no-op on the audit side.
func (s *ProfilePGStore) SaveProfile(ctx context.Context, p types.Profile, expectedRevision int64, changedKeys []string) (types.Profile, error) {
	changedJSON, err := encodeChangedKeys(changedKeys)
	if err != nil {
		return types.Profile{}, err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return types.Profile{}, err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	newRevision := expectedRevision + 1
	updatedAt := nowRFC3339()

	tag, err := tx.Exec(ctx, `
	UPDATE profile.profiles
	SET first_name = $1, last_name = $2, email = $3, locale = $4, birth_year = $5, active = $6, revision = $7, updated_at = $8
	WHERE id = $9 AND revision = $10
	`, p.FirstName, p.LastName, p.Email, p.Locale, p.BirthYear, p.Active, newRevision, updatedAt, p.ID, expectedRevision)
	if err != nil {
		return types.Profile{}, err
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM profile.profiles WHERE id = $1)`, p.ID).Scan(&exists); err != nil {
			return types.Profile{}, err
		}
		if !exists {
			return types.Profile{}, ports.ErrProfileNotFound
		}
		return types.Profile{}, ports.ErrRevisionConflict
	}

	if _, err := tx.Exec(ctx, `
	INSERT INTO profile.profile_audit (event_id, profile_id, revision, changed_keys, occurred_at)
	VALUES ($1, $2, $3, $4::jsonb, $5)
	ON CONFLICT (event_id) DO NOTHING
	`, deterministicProfileAuditEventID(p.ID, newRevision), p.ID, newRevision, string(changedJSON), updatedAt); err != nil {
		return types.Profile{}, err
	}

	var saved types.Profile
	err = tx.QueryRow(ctx, `
	SELECT id, first_name, last_name, email, locale, birth_year, active, password_hash, revision, created_at, updated_at
	FROM profile.profiles WHERE id = $1
	`, p.ID).Scan(&saved.ID, &saved.FirstName, &saved.LastName, &saved.Email, &saved.Locale, &saved.BirthYear, &saved.Active, &saved.PasswordHash, &saved.Revision, &saved.CreatedAt, &saved.UpdatedAt)
	if err != nil {
		return types.Profile{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return types.Profile{}, err
	}
	return saved, nil
}

func (s *ProfilePGStore) ListProfiles(ctx context.Context) ([]types.Profile, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	rows, err := tx.Query(ctx, `
	SELECT id, first_name, last_name, email, locale, birth_year, active, password_hash, revision, created_at, updated_at
	FROM profile.profiles ORDER BY id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []types.Profile
	for rows.Next() {
		var p types.Profile
		if err := rows.Scan(&p.ID, &p.FirstName, &p.LastName, &p.Email, &p.Locale, &p.BirthYear, &p.Active, &p.PasswordHash, &p.Revision, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *ProfilePGStore) ListProfileAudit(ctx context.Context, id string) ([]types.ProfileAuditEntry, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	var exists bool
	if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM profile.profiles WHERE id = $1)`, id).Scan(&exists); err != nil {
		return nil, err
	}
	if !exists {
		return nil, ports.ErrProfileNotFound
	}

	rows, err := tx.Query(ctx, `
	SELECT event_id::text, profile_id, revision, changed_keys::text, occurred_at
	FROM profile.profile_audit WHERE profile_id = $1 ORDER BY revision
	`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []types.ProfileAuditEntry
	for rows.Next() {
		var e types.ProfileAuditEntry
		var changedJSON string
		if err := rows.Scan(&e.EventID, &e.ProfileID, &e.Revision, &changedJSON, &e.OccurredAt); err != nil {
			return nil, err
		}
		keys, err := decodeChangedKeys([]byte(changedJSON))
		if err != nil {
			return nil, err
		}
		e.ChangedKeys = keys
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return out, nil
}
