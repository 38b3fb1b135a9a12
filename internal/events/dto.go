package events

import "time"

// CreateEventRequest carries the fields for a new event.
type CreateEventRequest struct {
	ContractID int64     `json:"contract_id" validate:"required"`
	DateStart  time.Time `json:"event_date_start" validate:"required"`
	DateEnd    time.Time `json:"event_date_end" validate:"required"`
	Location   *string   `json:"location,omitempty"`
	Attendees  int       `json:"attendees" validate:"gte=0"`
	Notes      *string   `json:"notes,omitempty"`
}

// UpdateEventRequest carries optional field changes; nil means unchanged.
type UpdateEventRequest struct {
	DateStart *time.Time `json:"event_date_start,omitempty"`
	DateEnd   *time.Time `json:"event_date_end,omitempty"`
	Location  *string    `json:"location,omitempty"`
	Attendees *int       `json:"attendees,omitempty"`
	Notes     *string    `json:"notes,omitempty"`
}

// AssignSupportRequest names the support user to put in charge of an event.
type AssignSupportRequest struct {
	SupportUserID int64 `json:"support_user_id" validate:"required"`
}
