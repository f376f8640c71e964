package seed

import (
	"context"
	"errors"
	"strings"

	"github.com/bwmarrin/snowflake"
	identitydomain "github.com/soundrift/soundrift/internal/identity/domain"
	"github.com/soundrift/soundrift/internal/identity/password"
	"gorm.io/gorm"
)

const (
	defaultAdminEmail    = "admin@soundrift.io"
	defaultAdminPassword = "admin"
	defaultAdminDisplay  = "Soundrift Admin"
)

// EnsureAdmin seeds the bootstrap admin account so a fresh install has
// someone able to issue invites. Existing accounts are left untouched.
func EnsureAdmin(db *gorm.DB) error {
	if db == nil {
		return errors.New("seed database handle is required")
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		return err
	}

	ctx := context.Background()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var user identitydomain.User
		err := tx.WithContext(ctx).
			Where("email = ?", strings.ToLower(defaultAdminEmail)).
			First(&user).Error
		if err == nil {
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		hashed, err := password.Hash(defaultAdminPassword)
		if err != nil {
			return err
		}

		user = identitydomain.User{
			ID:           node.Generate(),
			Email:        strings.ToLower(defaultAdminEmail),
			DisplayName:  defaultAdminDisplay,
			PasswordHash: &hashed,
			Role:         identitydomain.RoleAdmin,
		}
		return tx.WithContext(ctx).Create(&user).Error
	})
}
