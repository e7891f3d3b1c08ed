package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"

	"github.com/jacksonlee411/patchgate/modules/profile/domain/ports"
	"github.com/jacksonlee411/patchgate/modules/profile/domain/types"
	"github.com/jacksonlee411/patchgate/pkg/fieldpolicy"
	"github.com/jacksonlee411/patchgate/pkg/httperr"
	"github.com/jacksonlee411/patchgate/pkg/uuidv7"
)

const (
	errProfileNotFound        = "PROFILE_NOT_FOUND"
	errProfileExists          = "PROFILE_EXISTS"
	errProfileInvalidArgument = "PROFILE_INVALID_ARGUMENT"
	errRevisionConflict       = "REVISION_CONFLICT"
	errFirstNameRequired      = "FIRST_NAME_REQUIRED"
	errLastNameRequired       = "LAST_NAME_REQUIRED"
	errEmailRequired          = "EMAIL_REQUIRED"
	errPasswordRequired       = "PASSWORD_REQUIRED"
)

var newProfileUUID = uuidv7.NewString

type ProfileUpdateService interface {
	Create(ctx context.Context, input CreateProfileInput) (types.Profile, error)
	Get(ctx context.Context, id string) (types.Profile, error)
	List(ctx context.Context) ([]types.Profile, error)
	Update(ctx context.Context, id string, payload map[string]any) (UpdateResult, error)
	Audit(ctx context.Context, id string) ([]types.ProfileAuditEntry, error)
	PolicyView() PolicyView
}

type CreateProfileInput struct {
	ID        string
	FirstName string
	LastName  string
	Email     string
	Locale    string
	BirthYear int
	Active    bool
	Password  string
}

type UpdateOutcome string

const (
	UpdateOutcomeUpdated  UpdateOutcome = "updated"
	UpdateOutcomeRejected UpdateOutcome = "rejected"
)

// UpdateResult reports one update attempt. A rejected result carries the
// complete violation list and guarantees the store was not touched.
type UpdateResult struct {
	Outcome    UpdateOutcome
	Profile    types.Profile
	Violations []fieldpolicy.Violation
}

type PolicyView struct {
	Record string            `json:"record"`
	Fields []PolicyFieldView `json:"fields"`
}

type PolicyFieldView struct {
	Key       string `json:"key"`
	ValueType string `json:"value_type"`
	HasRule   bool   `json:"has_rule"`
}

type profileUpdateService struct {
	store  ports.ProfileStore
	policy *fieldpolicy.Policy[types.Profile]
}

func NewProfileUpdateService(store ports.ProfileStore, policy *fieldpolicy.Policy[types.Profile]) ProfileUpdateService {
	return &profileUpdateService{store: store, policy: policy}
}

func (s *profileUpdateService) Create(ctx context.Context, input CreateProfileInput) (types.Profile, error) {
	firstName := strings.TrimSpace(input.FirstName)
	lastName := strings.TrimSpace(input.LastName)
	email := strings.TrimSpace(input.Email)
	password := strings.TrimSpace(input.Password)
	switch {
	case firstName == "":
		return types.Profile{}, httperr.NewBadRequest(errFirstNameRequired)
	case lastName == "":
		return types.Profile{}, httperr.NewBadRequest(errLastNameRequired)
	case email == "":
		return types.Profile{}, httperr.NewBadRequest(errEmailRequired)
	case password == "":
		return types.Profile{}, httperr.NewBadRequest(errPasswordRequired)
	}

	locale := strings.TrimSpace(input.Locale)
	if locale == "" {
		locale = "en"
	}

	payload := map[string]any{
		"first_name": firstName,
		"last_name":  lastName,
		"email":      email,
		"locale":     locale,
		"active":     input.Active,
	}
	if input.BirthYear != 0 {
		payload["birth_year"] = input.BirthYear
	}

	outcome := s.policy.Validate(payload)
	if !outcome.OK() {
		return types.Profile{}, httperr.NewBadRequest(errProfileInvalidArgument)
	}

	id := strings.TrimSpace(input.ID)
	if id == "" {
		generated, err := newProfileUUID()
		if err != nil {
			return types.Profile{}, err
		}
		id = generated
	}

	profile := outcome.Apply(types.Profile{})
	profile.ID = id
	profile.PasswordHash = hashPassword(password)

	created, err := s.store.CreateProfile(ctx, profile)
	if err != nil {
		if errors.Is(err, ports.ErrProfileExists) {
			return types.Profile{}, httperr.NewConflict(errProfileExists)
		}
		return types.Profile{}, err
	}
	return created, nil
}

func (s *profileUpdateService) Get(ctx context.Context, id string) (types.Profile, error) {
	profile, err := s.store.GetProfile(ctx, strings.TrimSpace(id))
	if err != nil {
		if errors.Is(err, ports.ErrProfileNotFound) {
			return types.Profile{}, errors.New(errProfileNotFound)
		}
		return types.Profile{}, err
	}
	return profile, nil
}

func (s *profileUpdateService) List(ctx context.Context) ([]types.Profile, error) {
	return s.store.ListProfiles(ctx)
}

// Update is the partial-update state machine: lookup, validate all-or-nothing,
// merge, save under the loaded revision. A rejected payload never reaches the
// store; an empty payload is a no-op that does not write either.
func (s *profileUpdateService) Update(ctx context.Context, id string, payload map[string]any) (UpdateResult, error) {
	existing, err := s.store.GetProfile(ctx, strings.TrimSpace(id))
	if err != nil {
		if errors.Is(err, ports.ErrProfileNotFound) {
			return UpdateResult{}, errors.New(errProfileNotFound)
		}
		return UpdateResult{}, err
	}

	outcome := s.policy.Validate(payload)
	if !outcome.OK() {
		return UpdateResult{
			Outcome:    UpdateOutcomeRejected,
			Violations: outcome.Violations(),
		}, nil
	}

	changedKeys := outcome.ChangedKeys()
	if len(changedKeys) == 0 {
		return UpdateResult{Outcome: UpdateOutcomeUpdated, Profile: existing}, nil
	}

	merged := outcome.Apply(existing)
	saved, err := s.store.SaveProfile(ctx, merged, existing.Revision, changedKeys)
	if err != nil {
		switch {
		case errors.Is(err, ports.ErrRevisionConflict):
			return UpdateResult{}, httperr.NewConflict(errRevisionConflict)
		case errors.Is(err, ports.ErrProfileNotFound):
			return UpdateResult{}, errors.New(errProfileNotFound)
		}
		return UpdateResult{}, err
	}

	return UpdateResult{Outcome: UpdateOutcomeUpdated, Profile: saved}, nil
}

func (s *profileUpdateService) Audit(ctx context.Context, id string) ([]types.ProfileAuditEntry, error) {
	entries, err := s.store.ListProfileAudit(ctx, strings.TrimSpace(id))
	if err != nil {
		if errors.Is(err, ports.ErrProfileNotFound) {
			return nil, errors.New(errProfileNotFound)
		}
		return nil, err
	}
	return entries, nil
}

func (s *profileUpdateService) PolicyView() PolicyView {
	keys := s.policy.Keys()
	fields := make([]PolicyFieldView, 0, len(keys))
	for _, key := range keys {
		valueType, err := s.policy.TypeOf(key)
		if err != nil {
			continue
		}
		fields = append(fields, PolicyFieldView{
			Key:       key,
			ValueType: string(valueType),
			HasRule:   s.policy.HasRule(key),
		})
	}
	return PolicyView{Record: policyRecordProfile, Fields: fields}
}

func hashPassword(password string) string {
	sum := sha256.Sum256([]byte(password))
	return hex.EncodeToString(sum[:])
}
