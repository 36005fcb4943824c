package domain

import "time"

// Entity kinds recorded in the state history.
const (
	EntityIncident  = "incident"
	EntityInventory = "inventory"
	EntityAsset     = "asset"
)

// StateChange is an immutable audit entry written on every accepted
// transition. FromState is empty for the creation entry.
type StateChange struct {
	ID         string
	TenantID   string
	EntityKind string
	EntityID   string
	FromState  string
	ToState    string
	ChangedBy  string
	Comment    string
	ChangedAt  time.Time
}
