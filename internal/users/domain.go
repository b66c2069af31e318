package users

import (
	"strings"
	"time"

	"github.com/toursync/toursync-admin/internal/shared"
)

// Table is the events_log and permissions table name for users.
const Table = "users"

// User is a staff account.
type User struct {
	ID             int64
	PublicID       string
	Name           string
	Email          string
	Phone          string
	NationalID     string
	BranchID       int64
	BranchName     string
	Role           shared.Role
	Status         shared.UserStatus
	PasswordHash   string
	PasswordExpiry *time.Time
	Image          *string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// BranchRef is the branch embedded in user responses.
type BranchRef struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// SafeUser is the client facing projection of a User. It never carries the
// password hash.
type SafeUser struct {
	ID             int64             `json:"id"`
	PublicID       string            `json:"public_id"`
	Name           string            `json:"name"`
	Email          string            `json:"email"`
	Phone          string            `json:"phone"`
	NationalID     string            `json:"national_id"`
	Branch         *BranchRef        `json:"branch"`
	Role           shared.Role       `json:"role"`
	Status         shared.UserStatus `json:"status"`
	Image          *string           `json:"image"`
	PasswordExpiry *time.Time        `json:"password_expiry"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
}

// Safe strips credentials from u.
func (u User) Safe() SafeUser {
	safe := SafeUser{
		ID:             u.ID,
		PublicID:       u.PublicID,
		Name:           u.Name,
		Email:          u.Email,
		Phone:          u.Phone,
		NationalID:     u.NationalID,
		Role:           u.Role,
		Status:         u.Status,
		Image:          u.Image,
		PasswordExpiry: u.PasswordExpiry,
		CreatedAt:      u.CreatedAt,
		UpdatedAt:      u.UpdatedAt,
	}
	if u.BranchID > 0 {
		safe.Branch = &BranchRef{ID: u.BranchID, Name: u.BranchName}
	}
	return safe
}

// Label renders the user the way change log entries refer to it.
func (u User) Label() string {
	return "user[" + u.Name + "(" + u.Email + ")]"
}

// CreateInput is the body of POST /api/users.
type CreateInput struct {
	Name       string      `json:"name" validate:"required,single_spaced"`
	Phone      string      `json:"phone" validate:"required"`
	NationalID string      `json:"national_id" validate:"required"`
	Email      string      `json:"email" validate:"required,email"`
	Role       shared.Role `json:"role" validate:"required,user_role"`
	BranchID   int64       `json:"branch_id" validate:"gte=1"`
	Password   string      `json:"password" validate:"required,min=6"`
}

// Normalize trims surrounding whitespace from every text field.
func (in *CreateInput) Normalize() {
	in.Name = strings.TrimSpace(in.Name)
	in.Phone = strings.TrimSpace(in.Phone)
	in.NationalID = strings.TrimSpace(in.NationalID)
	in.Email = strings.TrimSpace(in.Email)
	in.Password = strings.TrimSpace(in.Password)
}

// UpdateInput is the body of PUT /api/users/{id}. An empty password keeps the
// current one.
type UpdateInput struct {
	Name       string            `json:"name" validate:"required,single_spaced"`
	Phone      string            `json:"phone" validate:"required"`
	NationalID string            `json:"national_id" validate:"required"`
	Email      string            `json:"email" validate:"required,email"`
	Role       shared.Role       `json:"role" validate:"required,user_role"`
	Status     shared.UserStatus `json:"status" validate:"required,user_status"`
	BranchID   int64             `json:"branch_id" validate:"gte=1"`
	Password   string            `json:"password" validate:"omitempty,min=6"`
}

// Normalize trims surrounding whitespace from every text field.
func (in *UpdateInput) Normalize() {
	in.Name = strings.TrimSpace(in.Name)
	in.Phone = strings.TrimSpace(in.Phone)
	in.NationalID = strings.TrimSpace(in.NationalID)
	in.Email = strings.TrimSpace(in.Email)
	in.Password = strings.TrimSpace(in.Password)
}

// ListFilter narrows the users listing. Zero values disable a filter.
type ListFilter struct {
	Page     int
	Limit    int
	BranchID int64
	Role     shared.Role
	Status   shared.UserStatus
	Search   string
}
