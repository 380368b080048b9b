package dto

// RegisterStaffRequest is a public self-registration awaiting approval.
type RegisterStaffRequest struct {
	Name       string `json:"name" validate:"required,max=120"`
	Email      string `json:"email" validate:"required,email"`
	Password   string `json:"password" validate:"required,min=8,max=72"`
	Role       string `json:"role" validate:"required,oneof=DEPARTMENT_HEAD TEACHER"`
	Department string `json:"department" validate:"required,department"`
}

// CreateStaffRequest is an administrator-created, pre-approved account.
type CreateStaffRequest struct {
	Name       string `json:"name" validate:"required,max=120"`
	Email      string `json:"email" validate:"required,email"`
	Password   string `json:"password" validate:"required,min=8,max=72"`
	Role       string `json:"role" validate:"required,staff_role"`
	Department string `json:"department" validate:"omitempty,department"`
}
