// Package migration keeps the schema in sync on startup so the service is
// usable out of the box for local and self-hosted environments.
package migration

import (
	"errors"

	artistdomain "github.com/soundrift/soundrift/internal/artist/domain"
	identitydomain "github.com/soundrift/soundrift/internal/identity/domain"
	invitedomain "github.com/soundrift/soundrift/internal/invite/domain"
	"gorm.io/gorm"
)

func Run(db *gorm.DB) error {
	if db == nil {
		return errors.New("migration database handle is required")
	}

	return db.AutoMigrate(
		&identitydomain.User{},
		&invitedomain.Invite{},
		&artistdomain.Profile{},
	)
}
