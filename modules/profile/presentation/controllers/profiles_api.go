package controllers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/jacksonlee411/patchgate/modules/profile/domain/fieldmeta"
	"github.com/jacksonlee411/patchgate/modules/profile/domain/types"
	"github.com/jacksonlee411/patchgate/modules/profile/services"
	"github.com/jacksonlee411/patchgate/pkg/fieldpolicy"
	"github.com/jacksonlee411/patchgate/pkg/httperr"
)

type TenantIDGetter func(ctx context.Context) (tenantID string, ok bool)

type ProfilesController struct {
	TenantID TenantIDGetter
	Service  services.ProfileUpdateService
}

type createProfileAPIRequest struct {
	ID        string `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Locale    string `json:"locale"`
	BirthYear int    `json:"birth_year"`
	Active    bool   `json:"active"`
	Password  string `json:"password"`
}

type fieldDefinitionView struct {
	Key            string `json:"key"`
	ValueType      string `json:"value_type"`
	Protected      bool   `json:"protected"`
	DataSourceType string `json:"data_source_type"`
	DictCode       string `json:"dict_code,omitempty"`
	LabelI18nKey   string `json:"label_i18n_key"`
}

func (c ProfilesController) HandleProfilesAPI(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := c.TenantID(r.Context())
	if !ok {
		writeError(w, r, http.StatusInternalServerError, "tenant_missing", "tenant missing")
		return
	}

	switch r.Method {
	case http.MethodGet:
		profiles, err := c.Service.List(r.Context())
		if err != nil {
			writeError(w, r, profileErrorStatus(err), profileErrorCode(err), "list failed")
			return
		}
		if profiles == nil {
			profiles = make([]types.Profile, 0)
		}
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"tenant":   tenantID,
			"profiles": profiles,
		})
		return

	case http.MethodPost:
		body, err := io.ReadAll(r.Body)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, "bad_json", "bad json")
			return
		}
		var req createProfileAPIRequest
		if err := json.Unmarshal(body, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, "bad_json", "bad json")
			return
		}

		created, err := c.Service.Create(r.Context(), services.CreateProfileInput{
			ID:        req.ID,
			FirstName: req.FirstName,
			LastName:  req.LastName,
			Email:     req.Email,
			Locale:    req.Locale,
			BirthYear: req.BirthYear,
			Active:    req.Active,
			Password:  req.Password,
		})
		if err != nil {
			writeError(w, r, profileErrorStatus(err), profileErrorCode(err), "create failed")
			return
		}
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(created)
		return

	default:
		writeError(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}
}

func (c ProfilesController) HandleProfileByIDAPI(w http.ResponseWriter, r *http.Request) {
	if _, ok := c.TenantID(r.Context()); !ok {
		writeError(w, r, http.StatusInternalServerError, "tenant_missing", "tenant missing")
		return
	}

	id := profilePathID(r.URL.Path, "")
	if id == "" {
		writeError(w, r, http.StatusNotFound, "PROFILE_NOT_FOUND", "profile not found")
		return
	}

	switch r.Method {
	case http.MethodGet:
		profile, err := c.Service.Get(r.Context(), id)
		if err != nil {
			writeError(w, r, profileErrorStatus(err), profileErrorCode(err), "get failed")
			return
		}
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		_ = json.NewEncoder(w).Encode(profile)
		return

	case http.MethodPatch:
		body, err := io.ReadAll(r.Body)
		if err != nil {
			writeError(w, r, http.StatusUnprocessableEntity, "invalid_json", "invalid json")
			return
		}
		var raw any
		if err := json.Unmarshal(body, &raw); err != nil {
			writeError(w, r, http.StatusUnprocessableEntity, "invalid_json", "invalid json")
			return
		}
		payload, ok := raw.(map[string]any)
		if !ok {
			writeError(w, r, http.StatusUnprocessableEntity, "invalid_patch", "patch body must be a json object")
			return
		}

		res, err := c.Service.Update(r.Context(), id, payload)
		if err != nil {
			writeError(w, r, profileErrorStatus(err), profileErrorCode(err), "update failed")
			return
		}
		if res.Outcome == services.UpdateOutcomeRejected {
			writePatchRejected(w, r, res.Violations)
			return
		}
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		_ = json.NewEncoder(w).Encode(res.Profile)
		return

	default:
		writeError(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}
}

func (c ProfilesController) HandleProfileAuditAPI(w http.ResponseWriter, r *http.Request) {
	if _, ok := c.TenantID(r.Context()); !ok {
		writeError(w, r, http.StatusInternalServerError, "tenant_missing", "tenant missing")
		return
	}
	if r.Method != http.MethodGet {
		writeError(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}

	id := profilePathID(r.URL.Path, "/audit")
	if id == "" {
		writeError(w, r, http.StatusNotFound, "PROFILE_NOT_FOUND", "profile not found")
		return
	}

	entries, err := c.Service.Audit(r.Context(), id)
	if err != nil {
		writeError(w, r, profileErrorStatus(err), profileErrorCode(err), "audit failed")
		return
	}
	if entries == nil {
		entries = make([]types.ProfileAuditEntry, 0)
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"profile_id": id,
		"entries":    entries,
	})
}

func (c ProfilesController) HandleFieldDefinitionsAPI(w http.ResponseWriter, r *http.Request) {
	if _, ok := c.TenantID(r.Context()); !ok {
		writeError(w, r, http.StatusInternalServerError, "tenant_missing", "tenant missing")
		return
	}
	if r.Method != http.MethodGet {
		writeError(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}

	defs := fieldmeta.ListFieldDefinitions()
	views := make([]fieldDefinitionView, 0, len(defs))
	for _, def := range defs {
		view := fieldDefinitionView{
			Key:            def.FieldKey,
			ValueType:      string(def.ValueType),
			Protected:      def.Protected,
			DataSourceType: def.DataSourceType,
			LabelI18nKey:   def.LabelI18nKey,
		}
		if dictCode, ok := fieldmeta.DictCodeFromDataSourceConfig(fieldmeta.DataSourceConfigJSON(def)); ok {
			view.DictCode = dictCode
		}
		views = append(views, view)
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	_ = json.NewEncoder(w).Encode(map[string]any{"fields": views})
}

func (c ProfilesController) HandlePolicyAPI(w http.ResponseWriter, r *http.Request) {
	if _, ok := c.TenantID(r.Context()); !ok {
		writeError(w, r, http.StatusInternalServerError, "tenant_missing", "tenant missing")
		return
	}
	if r.Method != http.MethodGet {
		writeError(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	_ = json.NewEncoder(w).Encode(c.Service.PolicyView())
}

// profilePathID extracts the {id} segment from /profile/api/profiles/{id}
// plus an optional literal suffix such as /audit.
func profilePathID(path string, suffix string) string {
	rest, ok := strings.CutPrefix(path, "/profile/api/profiles/")
	if !ok {
		return ""
	}
	if suffix != "" {
		rest, ok = strings.CutSuffix(rest, suffix)
		if !ok {
			return ""
		}
	}
	if rest == "" || strings.Contains(rest, "/") {
		return ""
	}
	return rest
}

func profileErrorStatus(err error) int {
	switch {
	case httperr.IsBadRequest(err):
		return http.StatusBadRequest
	case httperr.IsConflict(err):
		return http.StatusConflict
	case err.Error() == "PROFILE_NOT_FOUND":
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func profileErrorCode(err error) string {
	code := strings.TrimSpace(err.Error())
	if isStableProfileCode(code) {
		return code
	}
	return "internal_error"
}

func isStableProfileCode(code string) bool {
	code = strings.TrimSpace(code)
	if code == "" {
		return false
	}
	for i := 0; i < len(code); i++ {
		ch := code[i]
		if ch >= 'A' && ch <= 'Z' {
			continue
		}
		if ch >= '0' && ch <= '9' {
			continue
		}
		if ch == '_' {
			continue
		}
		return false
	}
	if code[0] < 'A' || code[0] > 'Z' {
		return false
	}
	return true
}

type errorEnvelope struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	TraceID string            `json:"trace_id"`
	Meta    errorEnvelopeMeta `json:"meta"`
}

type errorEnvelopeMeta struct {
	Path   string `json:"path"`
	Method string `json:"method"`
}

type patchRejectedEnvelope struct {
	Code       string                  `json:"code"`
	Message    string                  `json:"message"`
	TraceID    string                  `json:"trace_id"`
	Meta       errorEnvelopeMeta       `json:"meta"`
	Violations []fieldpolicy.Violation `json:"violations"`
}

func writeError(w http.ResponseWriter, r *http.Request, status int, code string, message string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorEnvelope{
		Code:    code,
		Message: message,
		TraceID: traceIDFromRequest(r),
		Meta: errorEnvelopeMeta{
			Path:   r.URL.Path,
			Method: r.Method,
		},
	})
}

// writePatchRejected reports an all-or-nothing rejection. The violation list
// is complete and already sorted by key.
func writePatchRejected(w http.ResponseWriter, r *http.Request, violations []fieldpolicy.Violation) {
	if violations == nil {
		violations = make([]fieldpolicy.Violation, 0)
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusUnprocessableEntity)
	_ = json.NewEncoder(w).Encode(patchRejectedEnvelope{
		Code:    "PATCH_FIELDS_REJECTED",
		Message: "patch rejected",
		TraceID: traceIDFromRequest(r),
		Meta: errorEnvelopeMeta{
			Path:   r.URL.Path,
			Method: r.Method,
		},
		Violations: violations,
	})
}

func traceIDFromRequest(r *http.Request) string {
	traceparent := strings.TrimSpace(r.Header.Get("traceparent"))
	if traceparent == "" {
		return ""
	}
	parts := strings.Split(traceparent, "-")
	if len(parts) != 4 {
		return ""
	}
	traceID := strings.ToLower(parts[1])
	if len(traceID) != 32 || traceID == "00000000000000000000000000000000" {
		return ""
	}
	for _, ch := range traceID {
		if (ch < '0' || ch > '9') && (ch < 'a' || ch > 'f') {
			return ""
		}
	}
	return traceID
}
