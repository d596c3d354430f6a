package models

import "time"

// UserRole represents the actor kinds recognised by the workflow.
type UserRole string

const (
	RoleAdmin      UserRole = "admin"
	RoleHeadmaster UserRole = "headmaster"
	RoleStudent    UserRole = "student"
	RoleOffice     UserRole = "office"
	RoleResponder  UserRole = "responder"
)

// Valid reports whether the role is one of the known actor kinds.
func (r UserRole) Valid() bool {
	switch r {
	case RoleAdmin, RoleHeadmaster, RoleStudent, RoleOffice, RoleResponder:
		return true
	}
	return false
}

// User represents an application user stored in the users table.
type User struct {
	ID           string     `db:"id" json:"id"`
	Email        string     `db:"email" json:"email"`
	PasswordHash string     `db:"password_hash" json:"-"`
	FullName     string     `db:"full_name" json:"full_name"`
	Phone        *string    `db:"phone" json:"phone,omitempty"`
	Role         UserRole   `db:"role" json:"role"`
	SchoolID     *string    `db:"school_id" json:"school_id,omitempty"`
	OfficeID     *string    `db:"office_id" json:"office_id,omitempty"`
	TeamID       *string    `db:"team_id" json:"team_id,omitempty"`
	Active       bool       `db:"active" json:"active"`
	LastLogin    *time.Time `db:"last_login" json:"last_login,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
}

// UserFilter captures filtering criteria for listing users.
type UserFilter struct {
	Role      *UserRole
	SchoolID  string
	OfficeID  string
	Active    *bool
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}

// NormalisePage clamps page and size into sane bounds.
func NormalisePage(page, size, fallback, max int) (int, int) {
	if page < 1 {
		page = 1
	}
	if size <= 0 || size > max {
		size = fallback
	}
	return page, size
}

// Actor is the identity performing a workflow action.
type Actor struct {
	UserID   string
	Role     UserRole
	SchoolID string
	OfficeID string
	TeamID   string
}

// ActorFromClaims derives the workflow actor from token claims.
func ActorFromClaims(claims *JWTClaims) Actor {
	if claims == nil {
		return Actor{}
	}
	return Actor{
		UserID:   claims.UserID,
		Role:     claims.Role,
		SchoolID: claims.SchoolID,
		OfficeID: claims.OfficeID,
		TeamID:   claims.TeamID,
	}
}

// ActorFromUser derives the workflow actor from a stored user.
func ActorFromUser(user *User) Actor {
	if user == nil {
		return Actor{}
	}
	return Actor{
		UserID:   user.ID,
		Role:     user.Role,
		SchoolID: derefString(user.SchoolID),
		OfficeID: derefString(user.OfficeID),
		TeamID:   derefString(user.TeamID),
	}
}

func derefString(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}
