package contracts

// CreateContractRequest carries the fields for a new contract. Status
// defaults to "Not Signed" when empty.
type CreateContractRequest struct {
	ClientID        int64   `json:"client_id" validate:"required"`
	TotalAmount     float64 `json:"total_amount"`
	AmountRemaining float64 `json:"amount_remaining"`
	Status          string  `json:"status,omitempty"`
}

// UpdateContractRequest carries optional field changes; nil means unchanged.
type UpdateContractRequest struct {
	TotalAmount     *float64 `json:"total_amount,omitempty"`
	AmountRemaining *float64 `json:"amount_remaining,omitempty"`
	Status          *string  `json:"status,omitempty"`
}
