package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	identitydomain "github.com/soundrift/soundrift/internal/identity/domain"
)

// Actor is the resolved identity on whose behalf an operation runs. The HTTP
// layer resolves it from the bearer token before calling the service.
type Actor struct {
	ID    snowflake.ID
	Email string
	Role  identitydomain.Role
}

type Service interface {
	Create(ctx context.Context, issuer Actor, req CreateRequest) (*Response, error)
	Redeem(ctx context.Context, code string, redeemer Actor) (*RedemptionResult, error)
	Deactivate(ctx context.Context, issuer Actor, inviteID string) error
	List(ctx context.Context, issuer Actor, filter ListRequest) ([]Response, error)
	GetByCode(ctx context.Context, code string) (*Response, error)
}

type CreateRequest struct {
	Kind            Kind       `json:"kind"`
	RestrictedEmail *string    `json:"restricted_email,omitempty"`
	ExpiresAt       *time.Time `json:"expires_at,omitempty"`
}

type ListRequest struct {
	Kind   *Kind
	Active *bool
	Status string
}

type Response struct {
	ID              string     `json:"id"`
	Code            string     `json:"code"`
	Kind            Kind       `json:"kind"`
	RestrictedEmail *string    `json:"restricted_email,omitempty"`
	CreatedBy       string     `json:"created_by"`
	Active          bool       `json:"active"`
	Status          string     `json:"status"`
	ExpiresAt       time.Time  `json:"expires_at"`
	RedeemedBy      *string    `json:"redeemed_by,omitempty"`
	RedeemedAt      *time.Time `json:"redeemed_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}

// RedemptionResult reports what a successful redemption changed.
type RedemptionResult struct {
	Invite         Response            `json:"invite"`
	GrantedRole    identitydomain.Role `json:"granted_role"`
	ProfileCreated bool                `json:"profile_created"`
}
