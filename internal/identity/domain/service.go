package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
)

type Service interface {
	Signup(ctx context.Context, req SignupRequest) (*AuthResult, error)
	Login(ctx context.Context, req LoginRequest) (*AuthResult, error)
	GetByID(ctx context.Context, id snowflake.ID) (*Response, error)
	Authenticate(ctx context.Context, rawToken string) (*Response, error)
}

type SignupRequest struct {
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
	Password    string `json:"password"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type AuthResult struct {
	User      Response
	Token     string
	ExpiresAt time.Time
}

type Response struct {
	ID          string    `json:"id"`
	Email       string    `json:"email"`
	DisplayName string    `json:"display_name"`
	Role        Role      `json:"role"`
	CreatedAt   time.Time `json:"created_at"`
}

// SnowflakeID parses the response id back into the storage key.
func (r Response) SnowflakeID() (snowflake.ID, error) {
	return snowflake.ParseString(r.ID)
}
