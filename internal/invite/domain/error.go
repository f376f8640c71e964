package domain

import "errors"

var (
	// Caller-correctable input problems.
	ErrInvalidEmail  = errors.New("invalid_email")
	ErrInvalidExpiry = errors.New("invalid_expiry")
	ErrInvalidKind   = errors.New("invalid_kind")
	ErrInvalidID     = errors.New("invalid_id")

	ErrPermissionDenied = errors.New("permission_denied")
	ErrNotFound         = errors.New("invite_not_found")

	// The invite exists but cannot be redeemed; each reason stays
	// distinguishable so callers can show an accurate message.
	ErrDeactivated   = errors.New("invite_deactivated")
	ErrExpired       = errors.New("invite_expired")
	ErrAlreadyUsed   = errors.New("invite_already_used")
	ErrEmailMismatch = errors.New("invite_email_mismatch")

	// Code generation hit the collision retry cap. With a 36^8 keyspace this
	// signals a pathological store state rather than bad luck.
	ErrCodeExhausted = errors.New("code_generation_exhausted")

	// Transport or transaction failure against the store; safe to retry.
	ErrStoreUnavailable = errors.New("store_unavailable")
)
