package auth

import (
	"strings"

	apperrors "github.com/jrsteele09/go-org-server/internal/errors"
)

// RegistrationRequest is the already-decoded input to Register.
type RegistrationRequest struct {
	FirstName string
	LastName  string
	Email     string
	Password  string
	Phone     string // Optional; empty means absent
}

// validateFields checks the fields that do not need storage, in the order
// firstName, lastName, email. Password is checked after the email uniqueness
// lookup, see Service.Register.
func (r RegistrationRequest) validateFields() error {
	if strings.TrimSpace(r.FirstName) == "" {
		return apperrors.NewValidationError("firstName", apperrors.ReasonInvalidInput)
	}
	if strings.TrimSpace(r.LastName) == "" {
		return apperrors.NewValidationError("lastName", apperrors.ReasonInvalidInput)
	}
	if strings.TrimSpace(r.Email) == "" {
		return apperrors.NewValidationError("email", apperrors.ReasonInvalidInput)
	}
	return nil
}

func (r RegistrationRequest) validatePassword() error {
	if r.Password == "" {
		return apperrors.NewValidationError("password", apperrors.ReasonInvalidInput)
	}
	return nil
}
