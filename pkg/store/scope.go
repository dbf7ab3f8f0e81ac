package store

import (
	"fmt"

	"github.com/vigia-iot/vigia/pkg/authz"
)

// scopeClause renders a visibility scope into a SQL predicate and its
// arguments. argOffset is the number of placeholders already consumed by
// the surrounding query, so the clause numbers its own from $argOffset+1.
//
// orgColumn is the (possibly alias-qualified) column carrying the direct
// organization reference; for the organizations table itself that is the
// id column. deviceColumn is the column referencing the owning device, used
// when the scope resolves through the device chain.
//
// Unknown scope kinds render as a predicate that matches nothing, so a bug
// upstream hides rows instead of leaking them.
func scopeClause(s authz.Scope, orgColumn, deviceColumn string, argOffset int) (string, []interface{}) {
	switch s.Kind {
	case authz.MatchAll:
		return "1=1", nil
	case authz.MatchOrg:
		if s.Resolution == authz.OrgViaDevice {
			clause := fmt.Sprintf(
				"EXISTS (SELECT 1 FROM devices sd WHERE sd.id = %s AND sd.organization_id = $%d AND sd.deleted_at IS NULL)",
				deviceColumn, argOffset+1,
			)
			return clause, []interface{}{s.OrgID}
		}
		return fmt.Sprintf("%s = $%d", orgColumn, argOffset+1), []interface{}{s.OrgID}
	default:
		return "1=0", nil
	}
}
