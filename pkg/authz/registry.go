package authz

// Role slugs accepted from the principal header. AuthN happens upstream;
// unknown or missing roles fall back to anonymous.
const (
	RoleAdmin     = "admin"
	RoleEditor    = "editor"
	RoleViewer    = "viewer"
	RoleAnonymous = "anonymous"
)

const (
	ActionRead  = "read"
	ActionWrite = "write"
	ActionAdmin = "admin"
)

// DomainDefault is the tenant domain used when no X-Tenant header is sent.
const DomainDefault = "default"

const (
	ObjectProfileProfiles = "profile.profiles"
	ObjectProfileAudit    = "profile.audit"
	ObjectProfilePolicy   = "profile.policy"
)
