package users

import (
	"strings"
	"time"
)

type User struct {
	ID           string    `json:"userId"`              // Unique identifier, generated at creation
	FirstName    string    `json:"firstName"`           // First name of the user
	LastName     string    `json:"lastName"`            // Last name of the user
	Email        string    `json:"email"`               // Normalised, unique email address
	Phone        *string   `json:"phone"`               // Optional phone number
	PasswordHash string    `json:"-"`                   // Hashed credential - never serialize
	DateJoined   time.Time `json:"dateJoined,omitzero"` // Date and time when the user registered
}

// Summary is the public view of a user returned to clients.
type Summary struct {
	UserID    string  `json:"userId"`
	FirstName string  `json:"firstName"`
	LastName  string  `json:"lastName"`
	Email     string  `json:"email"`
	Phone     *string `json:"phone"`
}

func (u *User) Summary() Summary {
	return Summary{
		UserID:    u.ID,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Email:     u.Email,
		Phone:     u.Phone,
	}
}

// DefaultOrganisationName is the name given to the organisation created for a
// user at registration.
func (u *User) DefaultOrganisationName() string {
	return u.FirstName + "'s Organisation"
}

// DefaultOrganisationDescription describes the organisation created at registration.
func (u *User) DefaultOrganisationDescription() string {
	return "An Organisation created by " + u.LastName + " " + u.FirstName
}

// NormaliseEmail trims surrounding space and lower-cases the address so that
// uniqueness is case-insensitive.
func NormaliseEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
