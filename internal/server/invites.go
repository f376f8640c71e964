package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	invitedomain "github.com/soundrift/soundrift/internal/invite/domain"
)

const timeFormat = time.RFC3339

func (s *Server) CreateInvite(c *gin.Context) {
	actor, ok := s.actor(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	var req invitedomain.CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	if req.Kind == invitedomain.KindCreator && !s.flags.Current().CreatorInvites {
		AbortWithError(c, newValidationError("kind", "creator_invites_disabled", "creator invites are not enabled"))
		return
	}

	invite, err := s.inviteSvc.Create(c.Request.Context(), actor, req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, invite)
}

func (s *Server) ListInvites(c *gin.Context) {
	actor, ok := s.actor(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	filter := invitedomain.ListRequest{
		Status: c.Query("status"),
	}
	if raw := c.Query("kind"); raw != "" {
		kind := invitedomain.Kind(raw)
		filter.Kind = &kind
	}
	if raw := c.Query("active"); raw != "" {
		active := raw == "true"
		filter.Active = &active
	}

	invites, err := s.inviteSvc.List(c.Request.Context(), actor, filter)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"invites": invites})
}

// PreviewInvite reports whether a code currently looks redeemable without
// consuming it. The answer can go stale the moment it is sent.
func (s *Server) PreviewInvite(c *gin.Context) {
	if !s.flags.Current().InvitePreview {
		AbortWithError(c, invitedomain.ErrNotFound)
		return
	}

	invite, err := s.inviteSvc.GetByCode(c.Request.Context(), c.Param("code"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":       invite.Code,
		"kind":       invite.Kind,
		"status":     invite.Status,
		"expires_at": invite.ExpiresAt.Format(timeFormat),
	})
}

type redeemRequest struct {
	Code string `json:"code"`
}

func (s *Server) RedeemInvite(c *gin.Context) {
	actor, ok := s.actor(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	var req redeemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	if req.Code == "" {
		AbortWithError(c, newValidationError("code", "required", "code is required"))
		return
	}

	result, err := s.inviteSvc.Redeem(c.Request.Context(), req.Code, actor)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func (s *Server) DeactivateInvite(c *gin.Context) {
	actor, ok := s.actor(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	if err := s.inviteSvc.Deactivate(c.Request.Context(), actor, c.Param("id")); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) GetFlags(c *gin.Context) {
	c.JSON(http.StatusOK, s.flags.Current())
}
