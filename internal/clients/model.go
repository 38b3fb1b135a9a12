package clients

import "time"

// Client represents a customer record owned by the commercial user who
// created it.
type Client struct {
	ID             int64      `json:"id"`
	FirstName      string     `json:"first_name"`
	LastName       string     `json:"last_name"`
	Email          string     `json:"email"`
	Phone          *string    `json:"phone,omitempty"`
	CompanyName    string     `json:"company_name"`
	LastContact    *time.Time `json:"last_contact,omitempty"`
	SalesContactID *int64     `json:"sales_contact_id,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// OwnerID resolves the identity responsible for this record for
// authorization purposes.
func (c *Client) OwnerID() *int64 {
	return c.SalesContactID
}
