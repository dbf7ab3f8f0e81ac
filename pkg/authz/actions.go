package authz

import "github.com/vigia-iot/vigia/pkg/model"

// Action names a declared side-effecting operation. Verifiers have no
// generic edit rights; the action table is the single place that grants
// them write-like power, scoped to specific declared actions.
type Action string

const (
	// ActionAcknowledgeAlerts marks a selection of alerts acknowledged.
	ActionAcknowledgeAlerts Action = "acknowledge_alerts"
)

// actionRoles declares which roles may run each action. Adding a
// verifier-eligible action in the future is a one-line change here.
var actionRoles = map[Action][]model.Role{
	ActionAcknowledgeAlerts: {model.RoleOrgAdmin, model.RoleVerifier},
}

// CanRunAction reports whether the principal may run the named action.
// Unknown actions are denied for everyone but superusers.
func CanRunAction(p Principal, action Action) bool {
	if p.IsSuperuser {
		return true
	}
	for _, role := range actionRoles[action] {
		if p.hasRole(role) {
			return true
		}
	}
	return false
}

// Actions lists the declared actions.
func Actions() []Action {
	return []Action{ActionAcknowledgeAlerts}
}
