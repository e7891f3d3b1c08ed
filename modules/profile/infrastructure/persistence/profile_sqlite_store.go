package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/jacksonlee411/patchgate/modules/profile/domain/ports"
	"github.com/jacksonlee411/patchgate/modules/profile/domain/types"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS profiles (
  id            TEXT PRIMARY KEY,
  first_name    TEXT NOT NULL,
  last_name     TEXT NOT NULL,
  email         TEXT NOT NULL,
  locale        TEXT NOT NULL,
  birth_year    INTEGER NOT NULL,
  active        INTEGER NOT NULL,
  password_hash TEXT NOT NULL,
  revision      INTEGER NOT NULL,
  created_at    TEXT NOT NULL,
  updated_at    TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS profile_audit (
  event_id     TEXT PRIMARY KEY,
  profile_id   TEXT NOT NULL REFERENCES profiles(id),
  revision     INTEGER NOT NULL,
  changed_keys TEXT NOT NULL,
  occurred_at  TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_profile_audit_profile
  ON profile_audit(profile_id, revision);
`

type ProfileSQLiteStore struct {
	db *sql.DB
}

// NewProfileSQLiteStore opens (creating if needed) the database at path and
// bootstraps the schema. WAL mode keeps readers off the writer's lock.
func NewProfileSQLiteStore(path string) (*ProfileSQLiteStore, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("bootstrap schema: %w", err)
	}
	return &ProfileSQLiteStore{db: db}, nil
}

func (s *ProfileSQLiteStore) Close() error {
	return s.db.Close()
}

func (s *ProfileSQLiteStore) CreateProfile(ctx context.Context, p types.Profile) (types.Profile, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return types.Profile{}, err
	}
	defer func() { _ = tx.Rollback() }()

	var exists int
	err = tx.QueryRowContext(ctx, `SELECT 1 FROM profiles WHERE id = ?`, p.ID).Scan(&exists)
	if err == nil {
		return types.Profile{}, ports.ErrProfileExists
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return types.Profile{}, err
	}

	now := nowRFC3339()
	p.Revision = 1
	p.CreatedAt = now
	p.UpdatedAt = now

	if _, err := tx.ExecContext(ctx, `
	INSERT INTO profiles (id, first_name, last_name, email, locale, birth_year, active, password_hash, revision, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, p.ID, p.FirstName, p.LastName, p.Email, p.Locale, p.BirthYear, p.Active, p.PasswordHash, p.Revision, p.CreatedAt, p.UpdatedAt); err != nil {
		return types.Profile{}, err
	}

	if err := tx.Commit(); err != nil {
		return types.Profile{}, err
	}
	return p, nil
}

func (s *ProfileSQLiteStore) GetProfile(ctx context.Context, id string) (types.Profile, error) {
	row := s.db.QueryRowContext(ctx, `
	SELECT id, first_name, last_name, email, locale, birth_year, active, password_hash, revision, created_at, updated_at
	FROM profiles WHERE id = ?
	`, id)
	return scanProfile(row)
}

func (s *ProfileSQLiteStore) SaveProfile(ctx context.Context, p types.Profile, expectedRevision int64, changedKeys []string) (types.Profile, error) {
	changedJSON, err := encodeChangedKeys(changedKeys)
	if err != nil {
		return types.Profile{}, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return types.Profile{}, err
	}
	defer func() { _ = tx.Rollback() }()

	newRevision := expectedRevision + 1
	updatedAt := nowRFC3339()

	res, err := tx.ExecContext(ctx, `
	UPDATE profiles
	SET first_name = ?, last_name = ?, email = ?, locale = ?, birth_year = ?, active = ?, revision = ?, updated_at = ?
	WHERE id = ? AND revision = ?
	`, p.FirstName, p.LastName, p.Email, p.Locale, p.BirthYear, p.Active, newRevision, updatedAt, p.ID, expectedRevision)
	if err != nil {
		return types.Profile{}, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return types.Profile{}, err
	}
	if affected == 0 {
		var exists int
		err := tx.QueryRowContext(ctx, `SELECT 1 FROM profiles WHERE id = ?`, p.ID).Scan(&exists)
		if errors.Is(err, sql.ErrNoRows) {
			return types.Profile{}, ports.ErrProfileNotFound
		}
		if err != nil {
			return types.Profile{}, err
		}
		return types.Profile{}, ports.ErrRevisionConflict
	}

	if _, err := tx.ExecContext(ctx, `
	INSERT OR IGNORE INTO profile_audit (event_id, profile_id, revision, changed_keys, occurred_at)
	VALUES (?, ?, ?, ?, ?)
	`, deterministicProfileAuditEventID(p.ID, newRevision), p.ID, newRevision, string(changedJSON), updatedAt); err != nil {
		return types.Profile{}, err
	}

	row := tx.QueryRowContext(ctx, `
	SELECT id, first_name, last_name, email, locale, birth_year, active, password_hash, revision, created_at, updated_at
	FROM profiles WHERE id = ?
	`, p.ID)
	saved, err := scanProfile(row)
	if err != nil {
		return types.Profile{}, err
	}

	if err := tx.Commit(); err != nil {
		return types.Profile{}, err
	}
	return saved, nil
}

func (s *ProfileSQLiteStore) ListProfiles(ctx context.Context) ([]types.Profile, error) {
	rows, err := s.db.QueryContext(ctx, `
	SELECT id, first_name, last_name, email, locale, birth_year, active, password_hash, revision, created_at, updated_at
	FROM profiles ORDER BY id
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
	return out, nil
}

func (s *ProfileSQLiteStore) ListProfileAudit(ctx context.Context, id string) ([]types.ProfileAuditEntry, error) {
	var exists int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM profiles WHERE id = ?`, id).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ports.ErrProfileNotFound
	}
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
	SELECT event_id, profile_id, revision, changed_keys, occurred_at
	FROM profile_audit WHERE profile_id = ? ORDER BY revision
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
	return out, nil
}

func scanProfile(row *sql.Row) (types.Profile, error) {
	var p types.Profile
	err := row.Scan(&p.ID, &p.FirstName, &p.LastName, &p.Email, &p.Locale, &p.BirthYear, &p.Active, &p.PasswordHash, &p.Revision, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return types.Profile{}, ports.ErrProfileNotFound
	}
	if err != nil {
		return types.Profile{}, err
	}
	return p, nil
}
