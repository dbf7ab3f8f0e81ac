package authz

import "github.com/vigia-iot/vigia/pkg/model"

// ScopeKind classifies a scope predicate.
type ScopeKind int

const (
	// MatchNone selects no records. The fail-closed default.
	MatchNone ScopeKind = iota
	// MatchAll selects every record (superusers only).
	MatchAll
	// MatchOrg selects records belonging to a single organization, traced
	// via the resource's declared resolution.
	MatchOrg
)

// Scope is the predicate limiting a bulk query to a principal's
// organization. The store renders it into SQL; it is always ANDed with any
// caller-supplied filters and never overridden by them.
type Scope struct {
	Kind       ScopeKind
	OrgID      int64
	Resolution OrgResolution
}

// ScopeNone is the match-nothing scope.
var ScopeNone = Scope{Kind: MatchNone}

// ScopeAll is the unrestricted scope.
var ScopeAll = Scope{Kind: MatchAll}

// ScopeFilter returns the predicate selecting only records the principal may
// see for the given resource type. Superuser: unrestricted. Principal with
// no organization: match-none. Resource with no organization path:
// match-none.
func ScopeFilter(p Principal, r Resource) Scope {
	if p.IsSuperuser {
		return ScopeAll
	}
	if !p.HasOrganization() {
		return ScopeNone
	}
	res := Resolution(r)
	if res == OrgNone {
		return ScopeNone
	}
	return Scope{Kind: MatchOrg, OrgID: *p.OrganizationID, Resolution: res}
}

// CanView reports whether the principal may view records of the given
// resource type, optionally narrowed to a specific instance. Visibility is
// organization-gated, not role-gated: any role may view, but only within
// its own organization, and only once an organization exists at all.
func CanView(p Principal, r Resource, instance Owned) bool {
	if p.IsSuperuser {
		return true
	}
	if !p.HasOrganization() || p.Role == nil {
		return false
	}
	if instance == nil {
		return true
	}
	return p.sameOrg(instance)
}

// CanCreate reports whether the principal may create records of the given
// resource type. Organization creation is superuser-only regardless of role.
func CanCreate(p Principal, r Resource) bool {
	if p.IsSuperuser {
		return true
	}
	if r == ResourceOrganization {
		return false
	}
	return p.hasRole(model.RoleOrgAdmin)
}

// CanModify reports whether the principal may modify the given instance.
// A nil instance evaluates the generic capability (for UI purposes). The
// verifier and member roles are read-only: no direct field edits.
// Organization modification is superuser-only.
func CanModify(p Principal, r Resource, instance Owned) bool {
	if p.IsSuperuser {
		return true
	}
	if r == ResourceOrganization {
		return false
	}
	if !p.hasRole(model.RoleOrgAdmin) {
		return false
	}
	if instance == nil {
		return true
	}
	return p.sameOrg(instance)
}

// CanDelete reports whether the principal may delete the given instance.
// Delete power mirrors modify power.
func CanDelete(p Principal, r Resource, instance Owned) bool {
	return CanModify(p, r, instance)
}

// RestrictRelationChoices returns the predicate for foreign-key pick-lists
// when creating or editing a record that references relatedType. Choices
// are limited to the principal's own organization; for the organization
// reference itself that means a singleton. Superuser: unrestricted.
func RestrictRelationChoices(p Principal, relatedType Resource) Scope {
	if p.IsSuperuser {
		return ScopeAll
	}
	if !p.HasOrganization() {
		return ScopeNone
	}
	if relatedType == ResourceOrganization {
		// The only selectable organization is the principal's own.
		return Scope{Kind: MatchOrg, OrgID: *p.OrganizationID, Resolution: OrgDirect}
	}
	return ScopeFilter(p, relatedType)
}
