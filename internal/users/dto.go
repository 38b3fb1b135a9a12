package users

// CreateUserRequest carries the fields for a new collaborator account.
type CreateUserRequest struct {
	Username string `json:"username" validate:"required,min=3,max=64"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
	Role     string `json:"role" validate:"required"`
}

// UpdateUserRequest carries optional field changes; nil means unchanged.
// Role changes require the user management permission even on one's own
// account.
type UpdateUserRequest struct {
	Username *string `json:"username,omitempty" validate:"omitempty,min=3,max=64"`
	Email    *string `json:"email,omitempty" validate:"omitempty,email"`
	Password *string `json:"password,omitempty"`
	Role     *string `json:"role,omitempty"`
}
