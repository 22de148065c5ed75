package domain

const (
	CallStatusPending  = "pending"
	CallStatusAccepted = "accepted"
	CallStatusDeclined = "declined"
)

const (
	UnitKindOfficer = "officer"
	UnitKindDeputy  = "deputy"
)

const (
	UnitStatusOnDuty  = "on-duty"
	UnitStatusEnRoute = "en-route"
	UnitStatusOnScene = "on-scene"
	UnitStatusOffDuty = "off-duty"
)

// CallStatuses lists the statuses a 911 call can hold.
var CallStatuses = []string{CallStatusPending, CallStatusAccepted, CallStatusDeclined}

// UnitStatuses lists the statuses a unit can hold.
var UnitStatuses = []string{UnitStatusOnDuty, UnitStatusEnRoute, UnitStatusOnScene, UnitStatusOffDuty}

type AssignedUnit struct {
	ID        string `json:"id"`
	UnitID    string `json:"unit_id"`
	Callsign  string `json:"callsign,omitempty"`
	IsPrimary bool   `json:"is_primary"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

type Call struct {
	ID            string         `json:"id"`
	CaseNumber    int64          `json:"case_number"`
	Name          string         `json:"name"`
	Location      string         `json:"location"`
	Postal        string         `json:"postal,omitempty"`
	Description   string         `json:"description,omitempty"`
	Status        string         `json:"status" enum:"pending,accepted,declined"`
	Ended         bool           `json:"ended"`
	AssignedUnits []AssignedUnit `json:"assigned_units"`
	CreatedAt     string         `json:"created_at" format:"date-time"`
	UpdatedAt     string         `json:"updated_at" format:"date-time"`
}

// HasUnit reports whether unitID is assigned to the call.
func (c Call) HasUnit(unitID string) bool {
	for _, au := range c.AssignedUnits {
		if au.UnitID == unitID {
			return true
		}
	}
	return false
}

type Unit struct {
	ID           string  `json:"id"`
	Kind         string  `json:"kind" enum:"officer,deputy"`
	Callsign     string  `json:"callsign"`
	Name         string  `json:"name"`
	Department   string  `json:"department,omitempty"`
	Status       string  `json:"status" enum:"on-duty,en-route,on-scene,off-duty"`
	ActiveCallID *string `json:"active_call_id,omitempty"`
	CreatedAt    string  `json:"created_at" format:"date-time"`
	UpdatedAt    string  `json:"updated_at" format:"date-time"`
}

type Incident struct {
	ID                   string         `json:"id"`
	CaseNumber           int64          `json:"case_number"`
	Description          string         `json:"description,omitempty"`
	IsActive             bool           `json:"is_active"`
	FirearmsInvolved     bool           `json:"firearms_involved"`
	InjuriesOrFatalities bool           `json:"injuries_or_fatalities"`
	ArrestsMade          bool           `json:"arrests_made"`
	InvolvedUnits        []AssignedUnit `json:"involved_units"`
	CreatedAt            string         `json:"created_at" format:"date-time"`
	UpdatedAt            string         `json:"updated_at" format:"date-time"`
}

type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts" format:"date-time"`
	Type       string `json:"type"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id,omitempty"`
	ActorID    string `json:"actor_id"`
	Payload    string `json:"payload_json"`
}

type APIKey struct {
	ID        string `json:"id"`
	ActorID   string `json:"actor_id"`
	Role      string `json:"role" enum:"dispatch,unit"`
	Name      string `json:"name,omitempty"`
	KeyHash   string `json:"key_hash"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

// ValidCallStatus reports whether s is a known call status.
func ValidCallStatus(s string) bool {
	return contains(CallStatuses, s)
}

// ValidUnitStatus reports whether s is a known unit status.
func ValidUnitStatus(s string) bool {
	return contains(UnitStatuses, s)
}

func contains(items []string, s string) bool {
	for _, item := range items {
		if item == s {
			return true
		}
	}
	return false
}
