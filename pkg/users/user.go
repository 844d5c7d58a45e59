package users

import (
	"strings"
	"time"
)

// User is the local projection of an identity-provider account
type User struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	ImageURL  string    `json:"image_url"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// EmailAddress is one entry of the provider's email address list
type EmailAddress struct {
	ID           string `json:"id"`
	EmailAddress string `json:"email_address"`
}

// ExternalUser is the provider's user object as carried by user.created and
// user.updated events. Timestamps are unix milliseconds.
type ExternalUser struct {
	ID                    string         `json:"id"`
	FirstName             *string        `json:"first_name"`
	LastName              *string        `json:"last_name"`
	EmailAddresses        []EmailAddress `json:"email_addresses"`
	PrimaryEmailAddressID *string        `json:"primary_email_address_id"`
	ImageURL              string         `json:"image_url"`
	CreatedAt             int64          `json:"created_at"`
	UpdatedAt             int64          `json:"updated_at"`
}

// PrimaryEmail returns the address whose id matches PrimaryEmailAddressID
func (e *ExternalUser) PrimaryEmail() (string, bool) {
	if e.PrimaryEmailAddressID == nil {
		return "", false
	}
	for _, addr := range e.EmailAddresses {
		if addr.ID == *e.PrimaryEmailAddressID {
			return addr.EmailAddress, true
		}
	}
	return "", false
}

// DisplayName joins the given and family names.
func (e *ExternalUser) DisplayName() string {
	return strings.TrimSpace(deref(e.FirstName) + " " + deref(e.LastName))
}

// ToUser translates the provider representation into the local schema.
// It fails with ErrNoPrimaryEmail when the primary address cannot be resolved.
func (e *ExternalUser) ToUser() (*User, error) {
	if e.ID == "" {
		return nil, ErrMissingID
	}
	email, ok := e.PrimaryEmail()
	if !ok {
		return nil, ErrNoPrimaryEmail
	}

	return &User{
		ID:        e.ID,
		Name:      e.DisplayName(),
		Email:     email,
		ImageURL:  e.ImageURL,
		CreatedAt: time.UnixMilli(e.CreatedAt).UTC(),
		UpdatedAt: time.UnixMilli(e.UpdatedAt).UTC(),
	}, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
