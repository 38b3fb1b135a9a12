package events

import "time"

// Event represents a client event run under a signed contract. The support
// contact stays null until Management assigns one.
type Event struct {
	ID               int64     `json:"id"`
	ContractID       int64     `json:"contract_id"`
	SupportContactID *int64    `json:"support_contact_id,omitempty"`
	DateStart        time.Time `json:"event_date_start"`
	DateEnd          time.Time `json:"event_date_end"`
	Location         *string   `json:"location,omitempty"`
	Attendees        int       `json:"attendees"`
	Notes            *string   `json:"notes,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}
