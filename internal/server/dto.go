package server

import "dispatchline/internal/domain"

// Request payloads

type CreateCallRequest struct {
	Name        string `json:"name,omitempty"`
	Location    string `json:"location"`
	Postal      string `json:"postal,omitempty"`
	Description string `json:"description,omitempty"`
	Status      string `json:"status,omitempty" enum:"pending,accepted,declined"`
}

type CallStatusRequest struct {
	Status string `json:"status" enum:"pending,accepted,declined"`
}

// AssignRequest is the body of the assign and unassign endpoints.
type AssignRequest struct {
	Unit string `json:"unit" example:"0b8f2c1e-6a0e-4f7e-9a57-3c0d4f1e2a10"`
}

type CreateUnitRequest struct {
	ID         string `json:"id,omitempty"`
	Kind       string `json:"kind" enum:"officer,deputy"`
	Callsign   string `json:"callsign"`
	Name       string `json:"name,omitempty"`
	Department string `json:"department,omitempty"`
}

type UnitStatusRequest struct {
	Status string `json:"status" enum:"on-duty,en-route,on-scene,off-duty"`
}

type CreateIncidentRequest struct {
	Description          string   `json:"description,omitempty"`
	FirearmsInvolved     bool     `json:"firearms_involved,omitempty"`
	InjuriesOrFatalities bool     `json:"injuries_or_fatalities,omitempty"`
	ArrestsMade          bool     `json:"arrests_made,omitempty"`
	UnitIDs              []string `json:"unit_ids,omitempty"`
}

// Response payloads

type CallListResponse struct {
	Calls      []domain.Call `json:"calls"`
	TotalCount int           `json:"total_count"`
}

type UnitListResponse struct {
	Units []domain.Unit `json:"units"`
}

type IncidentListResponse struct {
	Incidents []domain.Incident `json:"incidents"`
}

type EventListResponse struct {
	Items []domain.Event `json:"items"`
}

type WhoAmIResponse struct {
	ActorID     string   `json:"actor_id"`
	Roles       []string `json:"roles"`
	Permissions []string `json:"permissions"`
	Source      string   `json:"source"`
}

func nonNilCalls(items []domain.Call) []domain.Call {
	if items == nil {
		return []domain.Call{}
	}
	return items
}

func nonNilUnits(items []domain.Unit) []domain.Unit {
	if items == nil {
		return []domain.Unit{}
	}
	return items
}

func nonNilIncidents(items []domain.Incident) []domain.Incident {
	if items == nil {
		return []domain.Incident{}
	}
	return items
}
