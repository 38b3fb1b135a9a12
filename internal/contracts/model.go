package contracts

import (
	"fmt"
	"time"
)

// Status is the closed set of contract statuses.
type Status string

const (
	StatusSigned    Status = "Signed"
	StatusNotSigned Status = "Not Signed"
)

// ParseStatus validates a status value coming from the outside.
func ParseStatus(value string) (Status, error) {
	switch Status(value) {
	case StatusSigned:
		return StatusSigned, nil
	case StatusNotSigned:
		return StatusNotSigned, nil
	default:
		return "", fmt.Errorf("contracts: invalid status %q, must be 'Signed' or 'Not Signed'", value)
	}
}

// Contract represents a commercial agreement with a client.
type Contract struct {
	ID              int64     `json:"id"`
	ClientID        int64     `json:"client_id"`
	SalesContactID  *int64    `json:"sales_contact_id,omitempty"`
	TotalAmount     float64   `json:"total_amount"`
	AmountRemaining float64   `json:"amount_remaining"`
	Status          Status    `json:"status"`
	DateCreated     time.Time `json:"date_created"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// OwnerID resolves the identity responsible for this record for
// authorization purposes.
func (c *Contract) OwnerID() *int64 {
	return c.SalesContactID
}

// Signed reports whether events may be created against this contract.
func (c *Contract) Signed() bool {
	return c.Status == StatusSigned
}
