// Package authz is the single authorization core for the Vigia monitoring
// backend. Every surface, the admin CRUD API and the application views
// alike, answers its access questions here; policy is never reimplemented
// per call site.
//
// # Overview
//
// A Principal is the authorization-relevant projection of the acting
// identity: a superuser flag, an optional organization, and an optional
// role. Resources are the seven record types of the data model. The core
// answers four capability questions (view, create, modify, delete), gates
// named side-effecting actions, produces the scope predicate applied to
// every bulk query, and restricts foreign-key pick-lists to the acting
// principal's organization.
//
// # Organization resolution
//
// Each resource declares, in a static table, how its owning organization is
// resolved:
//
//	OrgDirect    - the record carries an organization reference
//	OrgViaDevice - the record reaches its organization through its device
//	OrgNone      - no path to an organization (fails closed)
//
// The table is validated for completeness at startup rather than discovered
// per request. If a resource ever exposed both paths, the direct reference
// would win.
//
// # Fail-closed
//
// A principal with no organization gets MatchNone from ScopeFilter and false
// from every module-level capability. Absence of context never resolves to
// default access.
package authz
