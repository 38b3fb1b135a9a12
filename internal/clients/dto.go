package clients

// CreateClientRequest carries the fields for a new client.
type CreateClientRequest struct {
	FirstName   string  `json:"first_name" validate:"required"`
	LastName    string  `json:"last_name" validate:"required"`
	Email       string  `json:"email" validate:"required,email"`
	Phone       *string `json:"phone,omitempty"`
	CompanyName string  `json:"company_name" validate:"required"`
}

// UpdateClientRequest carries optional field changes; nil means unchanged.
type UpdateClientRequest struct {
	FirstName   *string `json:"first_name,omitempty"`
	LastName    *string `json:"last_name,omitempty"`
	Email       *string `json:"email,omitempty" validate:"omitempty,email"`
	Phone       *string `json:"phone,omitempty"`
	CompanyName *string `json:"company_name,omitempty"`
}
