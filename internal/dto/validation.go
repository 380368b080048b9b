package dto

import (
	"github.com/go-playground/validator/v10"

	"github.com/noah-isme/admission-leads-api/internal/models"
)

// NewValidator returns a validator with the lead desk's custom rules registered.
func NewValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("department", func(fl validator.FieldLevel) bool {
		_, ok := models.ParseDepartment(fl.Field().String())
		return ok
	})
	_ = v.RegisterValidation("lead_response", func(fl validator.FieldLevel) bool {
		_, ok := models.StageForResponse(models.LeadResponse(fl.Field().String()))
		return ok
	})
	_ = v.RegisterValidation("staff_role", func(fl validator.FieldLevel) bool {
		return models.StaffRole(fl.Field().String()).Valid()
	})
	return v
}
