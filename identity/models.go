package identity

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// DefaultRole is assigned to every registered user.
const DefaultRole = "Basic"

// User is a local account of the identity store.
type User struct {
	bun.BaseModel `bun:"table:identity_users,alias:iu"`

	ID                 uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	UserName           string     `bun:"user_name,notnull" json:"user_name,omitempty"`
	NormalizedUserName string     `bun:"normalized_user_name,notnull,unique" json:"-"`
	Email              string     `bun:"email,notnull" json:"email,omitempty"`
	NormalizedEmail    string     `bun:"normalized_email,notnull,unique" json:"-"`
	EmailConfirmed     bool       `bun:"email_confirmed,notnull" json:"email_confirmed"`
	PasswordHash       string     `bun:"password_hash" json:"-"`
	SecurityStamp      string     `bun:"security_stamp,notnull" json:"-"`
	FirstName          string     `bun:"first_name" json:"first_name,omitempty"`
	LastName           string     `bun:"last_name" json:"last_name,omitempty"`
	PhoneNumber        string     `bun:"phone_number" json:"phone_number,omitempty"`
	LockoutEnd         *time.Time `bun:"lockout_end,nullzero" json:"lockout_end,omitempty"`
	AccessFailedCount  int        `bun:"access_failed_count,notnull" json:"-"`
	CreatedAt          *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt          *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}

// IsLockedOut reports whether the lockout window is still open at now.
func (u *User) IsLockedOut(now time.Time) bool {
	return u != nil && u.LockoutEnd != nil && u.LockoutEnd.After(now)
}

// Role is a named group of users.
type Role struct {
	bun.BaseModel `bun:"table:identity_roles,alias:ir"`

	ID             uuid.UUID `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Name           string    `bun:"name,notnull" json:"name"`
	NormalizedName string    `bun:"normalized_name,notnull,unique" json:"-"`
}

// UserRole links users to roles.
type UserRole struct {
	bun.BaseModel `bun:"table:identity_user_roles,alias:iur"`

	UserID uuid.UUID `bun:"user_id,pk,type:uuid"`
	RoleID uuid.UUID `bun:"role_id,pk,type:uuid"`
}

// RefreshToken is an opaque token exchanged for a new access token.
type RefreshToken struct {
	bun.BaseModel `bun:"table:identity_refresh_tokens,alias:irt"`

	ID              uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	UserID          uuid.UUID  `bun:"user_id,notnull,type:uuid" json:"user_id"`
	Token           string     `bun:"token,notnull,unique" json:"token"`
	ExpiresAt       time.Time  `bun:"expires_at,notnull" json:"expires_at"`
	CreatedAt       time.Time  `bun:"created_at,notnull" json:"created_at"`
	CreatedByIP     string     `bun:"created_by_ip" json:"created_by_ip,omitempty"`
	RevokedAt       *time.Time `bun:"revoked_at,nullzero" json:"revoked_at,omitempty"`
	RevokedByIP     string     `bun:"revoked_by_ip" json:"revoked_by_ip,omitempty"`
	ReplacedByToken string     `bun:"replaced_by_token" json:"replaced_by_token,omitempty"`
}

// IsActive reports whether the token is neither revoked nor expired at now.
func (t *RefreshToken) IsActive(now time.Time) bool {
	return t != nil && t.RevokedAt == nil && now.Before(t.ExpiresAt)
}
