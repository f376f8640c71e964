// Package domain contains the artist profile types.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Profile is the public artist page record. Exactly one exists per artist
// account; redemption creates it if missing and never touches an existing one.
type Profile struct {
	ID          snowflake.ID `gorm:"primaryKey"`
	UserID      snowflake.ID `gorm:"column:user_id;not null;uniqueIndex"`
	DisplayName string       `gorm:"type:text;not null"`
	Slug        string       `gorm:"type:text;not null;uniqueIndex"`
	Bio         *string      `gorm:"type:text"`
	CreatedAt   time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt   time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Profile) TableName() string { return "artist_profiles" }
