package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, invite *Invite) error
	FindByCode(ctx context.Context, db *gorm.DB, code string) (*Invite, error)
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Invite, error)
	List(ctx context.Context, db *gorm.DB, filter ListRequest) ([]Invite, error)

	// MarkRedeemed performs the conditional terminal write: it succeeds only
	// if the invite is still active and unredeemed, and reports whether a row
	// was updated. Concurrent redeemers serialize on this condition.
	MarkRedeemed(ctx context.Context, db *gorm.DB, id, redeemer snowflake.ID, at time.Time) (bool, error)

	// UpdateActive flips the active flag. Redeemed invites are terminal and
	// are never touched.
	UpdateActive(ctx context.Context, db *gorm.DB, id snowflake.ID, active bool) error
}
