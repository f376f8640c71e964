package service

import (
	"context"
	"net/mail"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/soundrift/soundrift/internal/clock"
	"github.com/soundrift/soundrift/internal/identity/domain"
	"github.com/soundrift/soundrift/internal/identity/password"
	"github.com/soundrift/soundrift/internal/identity/token"
	"github.com/soundrift/soundrift/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const minPasswordLen = 8

type Params struct {
	fx.In

	DB     *gorm.DB
	Log    *zap.Logger
	GenID  *snowflake.Node
	Repo   domain.Repository
	Clock  clock.Clock
	Tokens *token.Manager
}

type Service struct {
	db     *gorm.DB
	log    *zap.Logger
	genID  *snowflake.Node
	repo   domain.Repository
	clock  clock.Clock
	tokens *token.Manager
}

func New(p Params) domain.Service {
	return &Service{
		db:     p.DB,
		log:    p.Log.Named("identity.service"),
		genID:  p.GenID,
		repo:   p.Repo,
		clock:  p.Clock,
		tokens: p.Tokens,
	}
}

func (s *Service) Signup(ctx context.Context, req domain.SignupRequest) (*domain.AuthResult, error) {
	email, err := normalizeEmail(req.Email)
	if err != nil {
		return nil, domain.ErrInvalidEmail
	}
	if len(req.Password) < minPasswordLen {
		return nil, domain.ErrInvalidPassword
	}

	displayName := strings.TrimSpace(req.DisplayName)
	if displayName == "" {
		displayName = emailLocalPart(email)
	}

	hashed, err := password.Hash(req.Password)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	user := &domain.User{
		ID:              s.genID.Generate(),
		Email:           email,
		DisplayName:     displayName,
		PasswordHash:    &hashed,
		Role:            domain.RoleFan,
		EmailVerifiedAt: &now,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := s.repo.Insert(ctx, s.db, user); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return nil, domain.ErrUserExists
		}
		return nil, err
	}

	s.log.Info("user signed up", zap.String("user_id", user.ID.String()))
	return s.authResult(user)
}

func (s *Service) Login(ctx context.Context, req domain.LoginRequest) (*domain.AuthResult, error) {
	email, err := normalizeEmail(req.Email)
	if err != nil {
		return nil, domain.ErrInvalidCredentials
	}

	user, err := s.repo.FindByEmail(ctx, s.db, email)
	if err != nil {
		return nil, err
	}
	if user == nil || user.PasswordHash == nil {
		return nil, domain.ErrInvalidCredentials
	}
	if !password.Verify(req.Password, *user.PasswordHash) {
		return nil, domain.ErrInvalidCredentials
	}

	return s.authResult(user)
}

func (s *Service) GetByID(ctx context.Context, id snowflake.ID) (*domain.Response, error) {
	user, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, domain.ErrUserNotFound
	}
	resp := toResponse(user)
	return &resp, nil
}

func (s *Service) Authenticate(ctx context.Context, rawToken string) (*domain.Response, error) {
	claims, err := s.tokens.Verify(rawToken)
	if err != nil {
		return nil, domain.ErrInvalidToken
	}

	id, err := snowflake.ParseString(claims.Subject)
	if err != nil {
		return nil, domain.ErrInvalidToken
	}

	// Role comes from the store, not the token, so grants apply immediately.
	user, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, domain.ErrUserNotFound
	}
	resp := toResponse(user)
	return &resp, nil
}

func (s *Service) authResult(user *domain.User) (*domain.AuthResult, error) {
	signed, expiresAt, err := s.tokens.Issue(user.ID.String(), user.Email, string(user.Role), s.clock.Now())
	if err != nil {
		return nil, err
	}
	return &domain.AuthResult{
		User:      toResponse(user),
		Token:     signed,
		ExpiresAt: expiresAt,
	}, nil
}

func toResponse(user *domain.User) domain.Response {
	return domain.Response{
		ID:          user.ID.String(),
		Email:       user.Email,
		DisplayName: user.DisplayName,
		Role:        user.Role,
		CreatedAt:   user.CreatedAt,
	}
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

func emailLocalPart(email string) string {
	local, _, found := strings.Cut(email, "@")
	if !found || local == "" {
		return email
	}
	return local
}
