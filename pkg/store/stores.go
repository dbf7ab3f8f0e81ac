// Package store is the persistence layer. Every read and scoped write takes
// an authz.Scope and renders it into the SQL itself, so a record outside the
// caller's organization is invisible to the query rather than filtered
// after the fact.
package store

// Stores bundles the per-entity stores over one database.
type Stores struct {
	db DB

	Organizations *OrganizationStore
	Categories    *CategoryStore
	Zones         *ZoneStore
	Devices       *DeviceStore
	Measurements  *MeasurementStore
	Alerts        *AlertStore
	Identities    *IdentityStore
	Accounts      *AccountStore
	Sessions      *SessionStore
}

// NewStores wires all entity stores to db.
func NewStores(db DB) *Stores {
	return &Stores{
		db:            db,
		Organizations: NewOrganizationStore(db),
		Categories:    NewCategoryStore(db),
		Zones:         NewZoneStore(db),
		Devices:       NewDeviceStore(db),
		Measurements:  NewMeasurementStore(db),
		Alerts:        NewAlertStore(db),
		Identities:    NewIdentityStore(db),
		Accounts:      NewAccountStore(db),
		Sessions:      NewSessionStore(db),
	}
}
