// Package domain contains core types for the identity service.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// Role is the closed set of account roles. Escalations always go through
// Grant so combinations outside this set cannot be stored.
type Role string

const (
	RoleFan         Role = "fan"
	RoleArtist      Role = "artist"
	RoleAdmin       Role = "admin"
	RoleArtistAdmin Role = "artist_admin"
)

func (r Role) IsAdmin() bool {
	return r == RoleAdmin || r == RoleArtistAdmin
}

func (r Role) IsArtist() bool {
	return r == RoleArtist || r == RoleArtistAdmin
}

// GrantArtist returns the role escalated with artist privileges.
func (r Role) GrantArtist() Role {
	if r.IsAdmin() {
		return RoleArtistAdmin
	}
	return RoleArtist
}

// GrantAdmin returns the role escalated with admin privileges.
func (r Role) GrantAdmin() Role {
	if r.IsArtist() {
		return RoleArtistAdmin
	}
	return RoleAdmin
}

// Valid reports whether the role is one of the known variants.
func (r Role) Valid() bool {
	switch r {
	case RoleFan, RoleArtist, RoleAdmin, RoleArtistAdmin:
		return true
	default:
		return false
	}
}

// User represents a listener, artist or admin account.
type User struct {
	ID              snowflake.ID      `gorm:"primaryKey"`
	Email           string            `gorm:"type:text;not null;uniqueIndex"`
	DisplayName     string            `gorm:"type:text;not null"`
	PasswordHash    *string           `gorm:"type:text"`
	Role            Role              `gorm:"type:text;not null;default:'fan'"`
	EmailVerifiedAt *time.Time        `gorm:"column:email_verified_at"`
	Metadata        datatypes.JSONMap `gorm:"type:jsonb"`
	CreatedAt       time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt       time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (User) TableName() string { return "users" }
