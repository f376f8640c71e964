// Package domain contains core types for the invite service.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Kind selects the role grant applied when the invite is redeemed.
type Kind string

const (
	KindArtist  Kind = "ARTIST"
	KindCreator Kind = "CREATOR"
	KindAdmin   Kind = "ADMIN"
)

func (k Kind) Valid() bool {
	switch k {
	case KindArtist, KindCreator, KindAdmin:
		return true
	default:
		return false
	}
}

// GrantsArtist reports whether redemption creates an artist profile.
func (k Kind) GrantsArtist() bool {
	return k == KindArtist || k == KindCreator
}

const (
	// CodeAlphabet is the character set invite codes are drawn from.
	CodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	// CodeLength is the fixed length of every invite code.
	CodeLength = 8
	// DefaultTTL applies when no expiry is supplied at creation.
	DefaultTTL = 7 * 24 * time.Hour
)

// Invite is a single-use, time-bounded token granting a role escalation.
// Once RedeemedBy is set the record is terminal and never mutated again.
type Invite struct {
	ID              snowflake.ID  `gorm:"primaryKey"`
	Code            string        `gorm:"type:varchar(8);not null;uniqueIndex"`
	Kind            Kind          `gorm:"type:text;not null"`
	RestrictedEmail *string       `gorm:"type:text"`
	CreatedBy       snowflake.ID  `gorm:"column:created_by;not null;index"`
	Active          bool          `gorm:"not null;default:true"`
	ExpiresAt       time.Time     `gorm:"not null;index"`
	RedeemedBy      *snowflake.ID `gorm:"column:redeemed_by"`
	RedeemedAt      *time.Time    `gorm:"column:redeemed_at"`
	CreatedAt       time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt       time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Invite) TableName() string { return "invites" }

// Redeemed reports whether the invite has reached its terminal redeemed state.
func (i *Invite) Redeemed() bool {
	return i.RedeemedBy != nil
}

// Expired is derived from the clock on every check, never stored.
func (i *Invite) Expired(now time.Time) bool {
	return now.After(i.ExpiresAt)
}

// Status returns the derived lifecycle state for display.
func (i *Invite) Status(now time.Time) string {
	switch {
	case i.Redeemed():
		return "redeemed"
	case !i.Active:
		return "deactivated"
	case i.Expired(now):
		return "expired"
	default:
		return "pending"
	}
}
