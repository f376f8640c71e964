package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	artistdomain "github.com/soundrift/soundrift/internal/artist/domain"
	"github.com/soundrift/soundrift/internal/clock"
	identitydomain "github.com/soundrift/soundrift/internal/identity/domain"
	"github.com/soundrift/soundrift/internal/invite/domain"
	"github.com/soundrift/soundrift/internal/observability/metrics"
	"github.com/soundrift/soundrift/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// maxCodeAttempts bounds the regeneration loop on code collision. The
// keyspace is 36^8, so hitting this cap means the store is pathological.
const maxCodeAttempts = 5

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	GenID   *snowflake.Node
	Clock   clock.Clock
	Repo    domain.Repository
	Users   identitydomain.Repository
	Artists artistdomain.Repository
	Metrics *metrics.Metrics `optional:"true"`
}

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	genID   *snowflake.Node
	clock   clock.Clock
	repo    domain.Repository
	users   identitydomain.Repository
	artists artistdomain.Repository
	metrics *metrics.Metrics
}

func New(p Params) domain.Service {
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("invite.service"),
		genID:   p.GenID,
		clock:   p.Clock,
		repo:    p.Repo,
		users:   p.Users,
		artists: p.Artists,
		metrics: p.Metrics,
	}
}

func (s *Service) Create(ctx context.Context, issuer domain.Actor, req domain.CreateRequest) (*domain.Response, error) {
	if !issuer.Role.IsAdmin() {
		return nil, domain.ErrPermissionDenied
	}
	if !req.Kind.Valid() {
		return nil, domain.ErrInvalidKind
	}

	var restrictedEmail *string
	if req.RestrictedEmail != nil {
		normalized, err := normalizeEmail(*req.RestrictedEmail)
		if err != nil {
			return nil, domain.ErrInvalidEmail
		}
		restrictedEmail = &normalized
	}

	now := s.clock.Now()
	expiresAt := now.Add(domain.DefaultTTL)
	if req.ExpiresAt != nil {
		if req.ExpiresAt.Before(now) {
			return nil, domain.ErrInvalidExpiry
		}
		expiresAt = req.ExpiresAt.UTC()
	}

	invite := &domain.Invite{
		Kind:            req.Kind,
		RestrictedEmail: restrictedEmail,
		CreatedBy:       issuer.ID,
		Active:          true,
		ExpiresAt:       expiresAt,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	// Codes are short and human-typable, so collisions with live codes are
	// possible; the unique index detects them and we regenerate up to the cap.
	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		code, err := generateCode()
		if err != nil {
			return nil, err
		}
		invite.ID = s.genID.Generate()
		invite.Code = code

		err = s.repo.Insert(ctx, s.db, invite)
		if err == nil {
			s.metrics.RecordInviteCreated(ctx, string(invite.Kind))
			s.log.Info("invite created",
				zap.String("invite_id", invite.ID.String()),
				zap.String("kind", string(invite.Kind)),
			)
			resp := s.toResponse(invite)
			return &resp, nil
		}
		if db.IsDuplicateKeyErr(err) {
			continue
		}
		return nil, storeErr(err)
	}

	s.log.Error("invite code space exhausted after retries",
		zap.Int("attempts", maxCodeAttempts),
	)
	return nil, domain.ErrCodeExhausted
}

func (s *Service) Redeem(ctx context.Context, code string, redeemer domain.Actor) (*domain.RedemptionResult, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if len(code) != domain.CodeLength {
		return nil, domain.ErrNotFound
	}

	var result *domain.RedemptionResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		invite, err := s.repo.FindByCode(ctx, tx, code)
		if err != nil {
			return err
		}

		// Check order is fixed; the first failing check decides the result.
		switch {
		case invite == nil:
			return domain.ErrNotFound
		case !invite.Active:
			return domain.ErrDeactivated
		case invite.Expired(s.clock.Now()):
			return domain.ErrExpired
		case invite.Redeemed():
			return domain.ErrAlreadyUsed
		}
		if invite.RestrictedEmail != nil && *invite.RestrictedEmail != normalizedOrEmpty(redeemer.Email) {
			return domain.ErrEmailMismatch
		}

		now := s.clock.Now()
		updated, err := s.repo.MarkRedeemed(ctx, tx, invite.ID, redeemer.ID, now)
		if err != nil {
			return err
		}
		if !updated {
			// A concurrent redeemer won the conditional write.
			return domain.ErrAlreadyUsed
		}

		user, err := s.users.FindByID(ctx, tx, redeemer.ID)
		if err != nil {
			return err
		}
		if user == nil {
			return identitydomain.ErrUserNotFound
		}

		granted := user.Role.GrantAdmin()
		if invite.Kind.GrantsArtist() {
			granted = user.Role.GrantArtist()
		}
		if err := s.users.UpdateRole(ctx, tx, user.ID, granted); err != nil {
			return err
		}

		profileCreated := false
		if invite.Kind.GrantsArtist() {
			profileCreated, err = s.ensureProfile(ctx, tx, user, now)
			if err != nil {
				return err
			}
		}

		invite.RedeemedBy = &redeemer.ID
		invite.RedeemedAt = &now
		result = &domain.RedemptionResult{
			Invite:         s.toResponse(invite),
			GrantedRole:    granted,
			ProfileCreated: profileCreated,
		}
		return nil
	})
	if err != nil {
		s.metrics.RecordRedemptionFailure(ctx, err.Error())
		if isDomainErr(err) {
			return nil, err
		}
		return nil, storeErr(err)
	}

	s.metrics.RecordInviteRedeemed(ctx, string(result.Invite.Kind))
	s.log.Info("invite redeemed",
		zap.String("invite_id", result.Invite.ID),
		zap.String("redeemer_id", redeemer.ID.String()),
		zap.String("granted_role", string(result.GrantedRole)),
	)
	return result, nil
}

func (s *Service) Deactivate(ctx context.Context, issuer domain.Actor, inviteID string) error {
	id, err := snowflake.ParseString(strings.TrimSpace(inviteID))
	if err != nil {
		return domain.ErrInvalidID
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		invite, err := s.repo.FindByID(ctx, tx, id)
		if err != nil {
			return err
		}
		if invite == nil {
			return domain.ErrNotFound
		}
		if invite.CreatedBy != issuer.ID && !issuer.Role.IsAdmin() {
			return domain.ErrPermissionDenied
		}

		// Idempotent: redeemed and already-inactive invites are left as-is.
		if invite.Redeemed() || !invite.Active {
			return nil
		}
		return s.repo.UpdateActive(ctx, tx, id, false)
	})
	if err != nil {
		if isDomainErr(err) {
			return err
		}
		return storeErr(err)
	}
	return nil
}

func (s *Service) List(ctx context.Context, issuer domain.Actor, filter domain.ListRequest) ([]domain.Response, error) {
	if !issuer.Role.IsAdmin() {
		return nil, domain.ErrPermissionDenied
	}

	items, err := s.repo.List(ctx, s.db, filter)
	if err != nil {
		return nil, storeErr(err)
	}

	now := s.clock.Now()
	resp := make([]domain.Response, 0, len(items))
	for i := range items {
		item := s.toResponse(&items[i])
		if filter.Status != "" && !strings.EqualFold(filter.Status, items[i].Status(now)) {
			continue
		}
		resp = append(resp, item)
	}
	return resp, nil
}

func (s *Service) GetByCode(ctx context.Context, code string) (*domain.Response, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	invite, err := s.repo.FindByCode(ctx, s.db, code)
	if err != nil {
		return nil, storeErr(err)
	}
	if invite == nil {
		return nil, domain.ErrNotFound
	}
	resp := s.toResponse(invite)
	return &resp, nil
}

func (s *Service) ensureProfile(ctx context.Context, tx *gorm.DB, user *identitydomain.User, now time.Time) (bool, error) {
	existing, err := s.artists.FindByUserID(ctx, tx, user.ID)
	if err != nil {
		return false, err
	}
	if existing != nil {
		return false, nil
	}

	name := strings.TrimSpace(user.DisplayName)
	if name == "" {
		name = emailLocalPart(user.Email)
	}

	profile := &artistdomain.Profile{
		ID:          s.genID.Generate(),
		UserID:      user.ID,
		DisplayName: name,
		Slug:        slug.Make(name),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.artists.Insert(ctx, tx, profile); err != nil {
		if !db.IsDuplicateKeyErr(err) {
			return false, err
		}
		// Slug taken by another artist; qualify with the user id.
		profile.Slug = slug.Make(fmt.Sprintf("%s-%s", name, user.ID.String()))
		if err := s.artists.Insert(ctx, tx, profile); err != nil {
			return false, err
		}
	}
	return true, nil
}

func (s *Service) toResponse(invite *domain.Invite) domain.Response {
	resp := domain.Response{
		ID:              invite.ID.String(),
		Code:            invite.Code,
		Kind:            invite.Kind,
		RestrictedEmail: invite.RestrictedEmail,
		CreatedBy:       invite.CreatedBy.String(),
		Active:          invite.Active,
		Status:          invite.Status(s.clock.Now()),
		ExpiresAt:       invite.ExpiresAt,
		RedeemedAt:      invite.RedeemedAt,
		CreatedAt:       invite.CreatedAt,
	}
	if invite.RedeemedBy != nil {
		redeemer := invite.RedeemedBy.String()
		resp.RedeemedBy = &redeemer
	}
	return resp
}

func isDomainErr(err error) bool {
	for _, sentinel := range []error{
		domain.ErrInvalidEmail,
		domain.ErrInvalidExpiry,
		domain.ErrInvalidKind,
		domain.ErrInvalidID,
		domain.ErrPermissionDenied,
		domain.ErrNotFound,
		domain.ErrDeactivated,
		domain.ErrExpired,
		domain.ErrAlreadyUsed,
		domain.ErrEmailMismatch,
		domain.ErrCodeExhausted,
		identitydomain.ErrUserNotFound,
	} {
		if errors.Is(err, sentinel) {
			return true
		}
	}
	return false
}

func storeErr(err error) error {
	return fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
}

func normalizeEmail(raw string) (string, error) {
	email := strings.ToLower(strings.TrimSpace(raw))
	if email == "" {
		return "", domain.ErrInvalidEmail
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return "", domain.ErrInvalidEmail
	}
	return email, nil
}

func normalizedOrEmpty(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

func emailLocalPart(email string) string {
	local, _, found := strings.Cut(email, "@")
	if !found || local == "" {
		return email
	}
	return local
}
