package dispatchsdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a minimal dispatch HTTP API client.
type Client struct {
	BaseURL     string
	APIKey      string
	BearerToken string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		Timeout: 10 * time.Second,
	}
}

// AssignedUnit is a unit attached to a call or incident.
type AssignedUnit struct {
	ID        string `json:"id"`
	UnitID    string `json:"unit_id"`
	Callsign  string `json:"callsign,omitempty"`
	IsPrimary bool   `json:"is_primary"`
}

// Call represents the API 911 call model.
type Call struct {
	ID            string         `json:"id"`
	CaseNumber    int64          `json:"case_number"`
	Name          string         `json:"name"`
	Location      string         `json:"location"`
	Postal        string         `json:"postal,omitempty"`
	Description   string         `json:"description,omitempty"`
	Status        string         `json:"status"`
	Ended         bool           `json:"ended"`
	AssignedUnits []AssignedUnit `json:"assigned_units"`
	CreatedAt     string         `json:"created_at"`
	UpdatedAt     string         `json:"updated_at"`
}

// Merge overlays the fields update carries onto c. Empty strings and a nil
// unit list are treated as absent.
func (c Call) Merge(update Call) Call {
	out := c
	overlay := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	overlay(&out.ID, update.ID)
	overlay(&out.Name, update.Name)
	overlay(&out.Location, update.Location)
	overlay(&out.Postal, update.Postal)
	overlay(&out.Description, update.Description)
	overlay(&out.Status, update.Status)
	overlay(&out.CreatedAt, update.CreatedAt)
	overlay(&out.UpdatedAt, update.UpdatedAt)
	if update.CaseNumber != 0 {
		out.CaseNumber = update.CaseNumber
	}
	if update.AssignedUnits != nil {
		out.AssignedUnits = update.AssignedUnits
	}
	out.Ended = update.Ended
	return out
}

// Unit represents an active officer or EMS/FD deputy.
type Unit struct {
	ID           string  `json:"id"`
	Kind         string  `json:"kind"`
	Callsign     string  `json:"callsign"`
	Name         string  `json:"name"`
	Department   string  `json:"department,omitempty"`
	Status       string  `json:"status"`
	ActiveCallID *string `json:"active_call_id,omitempty"`
	UpdatedAt    string  `json:"updated_at"`
}

// Incident represents an active law-enforcement incident.
type Incident struct {
	ID                   string         `json:"id"`
	CaseNumber           int64          `json:"case_number"`
	Description          string         `json:"description,omitempty"`
	IsActive             bool           `json:"is_active"`
	FirearmsInvolved     bool           `json:"firearms_involved"`
	InjuriesOrFatalities bool           `json:"injuries_or_fatalities"`
	ArrestsMade          bool           `json:"arrests_made"`
	InvolvedUnits        []AssignedUnit `json:"involved_units"`
	UpdatedAt            string         `json:"updated_at"`
}

// Event represents a dispatch log entry.
type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts"`
	Type       string `json:"type"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id"`
	ActorID    string `json:"actor_id"`
	Payload    string `json:"payload_json"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// CallQuery narrows ListCalls.
type CallQuery struct {
	Status string
	Search string
	Limit  int
}

// ListCalls returns active 911 calls.
func (c *Client) ListCalls(ctx context.Context, q CallQuery) ([]Call, error) {
	params := url.Values{}
	if q.Status != "" {
		params.Set("status", q.Status)
	}
	if q.Search != "" {
		params.Set("q", q.Search)
	}
	if q.Limit > 0 {
		params.Set("limit", fmt.Sprintf("%d", q.Limit))
	}
	var resp struct {
		Calls      []Call `json:"calls"`
		TotalCount int    `json:"total_count"`
	}
	err := c.do(ctx, http.MethodGet, withQuery("911-calls", params), nil, &resp)
	return resp.Calls, err
}

// GetCall fetches a call by id.
func (c *Client) GetCall(ctx context.Context, id string) (Call, error) {
	var resp Call
	err := c.do(ctx, http.MethodGet, "911-calls/"+url.PathEscape(id), nil, &resp)
	return resp, err
}

// CreateCall reports a new 911 call.
func (c *Client) CreateCall(ctx context.Context, name, location, description string) (Call, error) {
	body := map[string]any{
		"name":        name,
		"location":    location,
		"description": description,
	}
	var resp Call
	err := c.do(ctx, http.MethodPost, "911-calls", body, &resp)
	return resp, err
}

// SetCallStatus changes a call's status.
func (c *Client) SetCallStatus(ctx context.Context, id, status string) (Call, error) {
	var resp Call
	err := c.do(ctx, http.MethodPatch, "911-calls/"+url.PathEscape(id)+"/status", map[string]any{"status": status}, &resp)
	return resp, err
}

// EndCall ends the call and releases its units.
func (c *Client) EndCall(ctx context.Context, id string) (Call, error) {
	var resp Call
	err := c.do(ctx, http.MethodPost, "911-calls/"+url.PathEscape(id)+"/end", nil, &resp)
	return resp, err
}

// AssignCall attaches unitID to the call and returns the updated call.
func (c *Client) AssignCall(ctx context.Context, callID, unitID string) (Call, error) {
	return c.assignment(ctx, "911-calls", "assign", callID, unitID)
}

// UnassignCall detaches unitID from the call and returns the updated call.
func (c *Client) UnassignCall(ctx context.Context, callID, unitID string) (Call, error) {
	return c.assignment(ctx, "911-calls", "unassign", callID, unitID)
}

func (c *Client) assignment(ctx context.Context, resource, action, id, unitID string) (Call, error) {
	var resp Call
	endpoint := fmt.Sprintf("%s/%s/%s", resource, action, url.PathEscape(id))
	err := c.do(ctx, http.MethodPost, endpoint, map[string]any{"unit": unitID}, &resp)
	return resp, err
}

// ListUnits returns units; kind may be "officer", "deputy" or empty for both.
func (c *Client) ListUnits(ctx context.Context, kind string) ([]Unit, error) {
	params := url.Values{}
	if kind != "" {
		params.Set("kind", kind)
	}
	var resp struct {
		Units []Unit `json:"units"`
	}
	err := c.do(ctx, http.MethodGet, withQuery("units", params), nil, &resp)
	return resp.Units, err
}

// CreateUnit puts a unit on duty.
func (c *Client) CreateUnit(ctx context.Context, kind, callsign, name, department string) (Unit, error) {
	body := map[string]any{
		"kind":       kind,
		"callsign":   callsign,
		"name":       name,
		"department": department,
	}
	var resp Unit
	err := c.do(ctx, http.MethodPost, "units", body, &resp)
	return resp, err
}

// SetUnitStatus changes a unit's status.
func (c *Client) SetUnitStatus(ctx context.Context, id, status string) (Unit, error) {
	var resp Unit
	err := c.do(ctx, http.MethodPatch, "units/"+url.PathEscape(id)+"/status", map[string]any{"status": status}, &resp)
	return resp, err
}

// ListIncidents returns incidents, only active ones when activeOnly is set.
func (c *Client) ListIncidents(ctx context.Context, activeOnly bool) ([]Incident, error) {
	params := url.Values{}
	if activeOnly {
		params.Set("active", "true")
	}
	var resp struct {
		Incidents []Incident `json:"incidents"`
	}
	err := c.do(ctx, http.MethodGet, withQuery("incidents", params), nil, &resp)
	return resp.Incidents, err
}

// CreateIncident opens an incident with the given involved units.
func (c *Client) CreateIncident(ctx context.Context, description string, unitIDs []string) (Incident, error) {
	if unitIDs == nil {
		unitIDs = []string{}
	}
	body := map[string]any{
		"description": description,
		"unit_ids":    unitIDs,
	}
	var resp Incident
	err := c.do(ctx, http.MethodPost, "incidents", body, &resp)
	return resp, err
}

// AssignIncident involves unitID in an incident.
func (c *Client) AssignIncident(ctx context.Context, incidentID, unitID string) (Incident, error) {
	return c.incidentAssignment(ctx, "assign", incidentID, unitID)
}

// UnassignIncident removes unitID from an incident.
func (c *Client) UnassignIncident(ctx context.Context, incidentID, unitID string) (Incident, error) {
	return c.incidentAssignment(ctx, "unassign", incidentID, unitID)
}

func (c *Client) incidentAssignment(ctx context.Context, action, id, unitID string) (Incident, error) {
	var resp Incident
	endpoint := fmt.Sprintf("incidents/%s/%s", action, url.PathEscape(id))
	err := c.do(ctx, http.MethodPost, endpoint, map[string]any{"unit": unitID}, &resp)
	return resp, err
}

// Events returns recent events, newest first.
func (c *Client) Events(ctx context.Context, limit int) ([]Event, error) {
	params := url.Values{}
	if limit > 0 {
		params.Set("limit", fmt.Sprintf("%d", limit))
	}
	var resp struct {
		Items []Event `json:"items"`
	}
	err := c.do(ctx, http.MethodGet, withQuery("events", params), nil, &resp)
	return resp.Items, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	target := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, target, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req.Header)
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return &APIError{StatusCode: resp.StatusCode, Body: string(b)}
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) authorize(h http.Header) {
	switch {
	case c.BearerToken != "":
		h.Set("Authorization", "Bearer "+c.BearerToken)
	case c.APIKey != "":
		h.Set("X-Api-Key", c.APIKey)
	}
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}

func withQuery(endpoint string, params url.Values) string {
	if len(params) == 0 {
		return endpoint
	}
	return endpoint + "?" + params.Encode()
}
