package auth

import "strings"

// Credentials is the sign-in request body.
type Credentials struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

// Normalize trims the email. Passwords are taken verbatim.
func (c *Credentials) Normalize() {
	c.Email = strings.TrimSpace(c.Email)
}

// Client facing messages.
const (
	msgInvalidInput       = "Input validation failed"
	msgInvalidCredentials = "Invalid email or password!"
	msgInactive           = "Your account is not active. Please contact us!"
	msgNotAuthenticated   = "Not authenticated"
)
