package models

import "encoding/json"

// ErrorEnvelope is the failure shape every structured adapter returns.
type ErrorEnvelope struct {
	Error string `json:"error"`
}

// Mail is one message summary returned by the mail adapter.
type Mail struct {
	ID      string  `json:"id"`
	Subject string  `json:"subject"`
	From    string  `json:"from"`
	Date    string  `json:"date"`
	Snippet string  `json:"snippet"`
	Body    *string `json:"body,omitempty"`
}

// MailList is the mail adapter payload.
type MailList struct {
	Count int    `json:"count"`
	Items []Mail `json:"items"`
}

// Properties is a CRM record's property bag. Values may be null.
type Properties map[string]any

// CRMResult aggregates the CRM lookups for one meeting/attendee pair.
// Found is true iff at least one of Meeting, Contact, Companies, Deals is non-empty.
type CRMResult struct {
	Found     bool         `json:"found"`
	Meeting   Properties   `json:"meeting"`
	Contact   Properties   `json:"contact"`
	Companies []Properties `json:"companies"`
	Deals     []Properties `json:"deals"`
	Reason    string       `json:"reason"`
}

// MarshalJSON emits {found,meeting,contact,companies,deals} for a hit and
// {found,reason} otherwise.
func (r CRMResult) MarshalJSON() ([]byte, error) {
	if !r.Found {
		return json.Marshal(struct {
			Found  bool   `json:"found"`
			Reason string `json:"reason"`
		}{Found: false, Reason: r.Reason})
	}
	return json.Marshal(struct {
		Found     bool         `json:"found"`
		Meeting   Properties   `json:"meeting"`
		Contact   Properties   `json:"contact"`
		Companies []Properties `json:"companies"`
		Deals     []Properties `json:"deals"`
	}{true, r.Meeting, r.Contact, r.Companies, r.Deals})
}

// NotFoundReason is reported when every CRM lookup came back empty.
const NotFoundReason = "No HubSpot data found"

// NewCRMResult applies the found rule. Empty collections are normalized so
// that a found result always carries all four keys.
func NewCRMResult(meeting, contact Properties, companies, deals []Properties) *CRMResult {
	if len(meeting) == 0 && len(contact) == 0 && len(companies) == 0 && len(deals) == 0 {
		return &CRMResult{Found: false, Reason: NotFoundReason}
	}
	if meeting == nil {
		meeting = Properties{}
	}
	if contact == nil {
		contact = Properties{}
	}
	if companies == nil {
		companies = []Properties{}
	}
	if deals == nil {
		deals = []Properties{}
	}
	return &CRMResult{Found: true, Meeting: meeting, Contact: contact, Companies: companies, Deals: deals}
}

// Delivery confirms a notification.
type Delivery struct {
	OK        bool   `json:"ok"`
	Channel   string `json:"channel"`
	Timestamp string `json:"ts"`
}
