package model

import "time"

// Role identifies which account variant a credential belongs to.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleTeacher Role = "teacher"
	RoleStudent Role = "student"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleTeacher, RoleStudent:
		return true
	}
	return false
}

// Account is implemented by every account variant. The concrete type is
// resolved once, when the account is loaded for its role.
type Account interface {
	AccountID() int
	AccountRole() Role
	AccountEmail() string
	PasswordDigest() string
	// Active is always true for variants without an activation flag.
	Active() bool
}

// AdminAccount is a platform administrator.
type AdminAccount struct {
	ID           int       `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

func (a *AdminAccount) AccountID() int         { return a.ID }
func (a *AdminAccount) AccountRole() Role      { return RoleAdmin }
func (a *AdminAccount) AccountEmail() string   { return a.Email }
func (a *AdminAccount) PasswordDigest() string { return a.PasswordHash }
func (a *AdminAccount) Active() bool           { return true }

// TeacherAccount authors courses and tests.
type TeacherAccount struct {
	ID           int       `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Module       string    `json:"module"`
	IsActivated  bool      `json:"is_activated"`
	CreatedAt    time.Time `json:"created_at"`
}

func (a *TeacherAccount) AccountID() int         { return a.ID }
func (a *TeacherAccount) AccountRole() Role      { return RoleTeacher }
func (a *TeacherAccount) AccountEmail() string   { return a.Email }
func (a *TeacherAccount) PasswordDigest() string { return a.PasswordHash }
func (a *TeacherAccount) Active() bool           { return a.IsActivated }

// StudentAccount takes courses and tests.
type StudentAccount struct {
	ID           int       `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	ClassID      *int      `json:"class_id,omitempty"`
	IsActivated  bool      `json:"is_activated"`
	CreatedAt    time.Time `json:"created_at"`
}

func (a *StudentAccount) AccountID() int         { return a.ID }
func (a *StudentAccount) AccountRole() Role      { return RoleStudent }
func (a *StudentAccount) AccountEmail() string   { return a.Email }
func (a *StudentAccount) PasswordDigest() string { return a.PasswordHash }
func (a *StudentAccount) Active() bool           { return a.IsActivated }

// RegisterRequest is the payload for self-registration of teachers and students.
type RegisterRequest struct {
	Username string `json:"username" binding:"required,min=2,max=100"`
	Email    string `json:"email" binding:"required,email,max=255"`
	Password string `json:"password" binding:"required,min=6,max=128"`
}

// LoginRequest is the payload for authentication of any role.
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email,max=255"`
	Password string `json:"password" binding:"required,min=4,max=128"`
}

// LoginResponse is returned after successful login.
type LoginResponse struct {
	Token          string  `json:"token"`
	ExpirationDate int64   `json:"expiration_date"`
	Account        Account `json:"user"`
	Role           Role    `json:"role"`
}

// SetActivationRequest toggles a teacher or student account.
type SetActivationRequest struct {
	Active *bool `json:"active" binding:"required"`
}
