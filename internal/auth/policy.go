package auth

import (
	"net/http"
	"strings"
)

// Policy determines required roles by request.
type Policy struct {
	ExemptPaths    map[string]struct{}
	ExemptPrefixes []string
}

// NewDefaultPolicy builds a default policy with exemptions.
func NewDefaultPolicy(exemptPaths []string, exemptPrefixes []string) Policy {
	set := make(map[string]struct{}, len(exemptPaths))
	for _, path := range exemptPaths {
		set[path] = struct{}{}
	}
	return Policy{ExemptPaths: set, ExemptPrefixes: exemptPrefixes}
}

// IsExempt returns true when a request should skip auth/RBAC.
func (p Policy) IsExempt(r *http.Request) bool {
	if r == nil {
		return true
	}
	if _, ok := p.ExemptPaths[r.URL.Path]; ok {
		return true
	}
	for _, prefix := range p.ExemptPrefixes {
		if strings.HasPrefix(r.URL.Path, prefix) {
			return true
		}
	}
	// Citizen submissions and the public banner feed are intentionally
	// open, matching the mini-app's behavior.
	if r.URL.Path == "/api/v1/incidents" && r.Method == http.MethodPost {
		return true
	}
	if r.URL.Path == "/api/v1/alerts/active" && r.Method == http.MethodGet {
		return true
	}
	return false
}

// RequiredRole resolves required role for the request.
func (p Policy) RequiredRole(r *http.Request) (Role, bool) {
	if r == nil {
		return "", false
	}
	path := r.URL.Path
	method := r.Method

	switch {
	case path == "/api/v1/incidents":
		return RoleViewer, true
	case path == "/api/v1/incidents/stats":
		return RoleViewer, true
	case path == "/api/v1/incidents/audit-logs":
		return RoleAdmin, true
	case strings.HasPrefix(path, "/api/v1/incidents/"):
		if method == http.MethodGet {
			return RoleViewer, true
		}
		return RoleOperator, true
	case strings.HasPrefix(path, "/api/v1/exports/"):
		return RoleAdmin, true
	case path == "/api/v1/alerts/trash":
		return RoleAdmin, true
	case path == "/api/v1/alerts/stats":
		return RoleViewer, true
	case path == "/api/v1/alerts":
		if method == http.MethodGet {
			return RoleViewer, true
		}
		return RoleOperator, true
	case strings.HasPrefix(path, "/api/v1/alerts/") && strings.HasSuffix(path, "/permanent"):
		return RoleAdmin, true
	case strings.HasPrefix(path, "/api/v1/alerts/") && strings.HasSuffix(path, "/restore"):
		return RoleAdmin, true
	case strings.HasPrefix(path, "/api/v1/alerts/"):
		if method == http.MethodGet {
			return RoleViewer, true
		}
		return RoleOperator, true
	default:
		return "", false
	}
}
