package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/soundrift/soundrift/internal/config"
	"github.com/soundrift/soundrift/internal/flags"
	identitydomain "github.com/soundrift/soundrift/internal/identity/domain"
	invitedomain "github.com/soundrift/soundrift/internal/invite/domain"
	"github.com/soundrift/soundrift/internal/observability"
	obsmiddleware "github.com/soundrift/soundrift/internal/observability/logger"
	obsmetrics "github.com/soundrift/soundrift/internal/observability/metrics"
	obstracing "github.com/soundrift/soundrift/internal/observability/tracing"
	"github.com/soundrift/soundrift/internal/ratelimit"
	"go.uber.org/fx"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	fx.Provide(NewServer),
	fx.Invoke(func(s *Server) {
		s.registerRoutes()
	}),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(obsmetrics.GinMiddleware(httpMetrics))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	return NewEngine(obsCfg, httpMetrics)
}

func run(lc fx.Lifecycle, r *gin.Engine, cfg config.Config) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					panic(err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine        *gin.Engine
	identitySvc   identitydomain.Service
	inviteSvc     invitedomain.Service
	flags         *flags.Store
	redeemLimiter *ratelimit.RedeemLimiter
	obsMetrics    *obsmetrics.Metrics
}

type ServerParams struct {
	fx.In

	Gin         *gin.Engine
	IdentitySvc identitydomain.Service
	InviteSvc   invitedomain.Service
	Flags       *flags.Store
	Limiter     *ratelimit.RedeemLimiter `optional:"true"`
	ObsMetrics  *obsmetrics.Metrics      `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	return &Server{
		engine:        p.Gin,
		identitySvc:   p.IdentitySvc,
		inviteSvc:     p.InviteSvc,
		flags:         p.Flags,
		redeemLimiter: p.Limiter,
		obsMetrics:    p.ObsMetrics,
	}
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerRoutes() {
	v1 := s.engine.Group("/v1")

	auth := v1.Group("/auth")
	{
		auth.POST("/signup", s.Signup)
		auth.POST("/login", s.Login)
		auth.GET("/me", s.AuthRequired(), s.Me)
	}

	v1.GET("/flags", s.GetFlags)

	invites := v1.Group("/invites")
	{
		// Non-mutating code check used by the signup form before the
		// account exists; gated by a beta flag.
		invites.GET("/preview/:code", s.PreviewInvite)

		invites.POST("", s.AuthRequired(), s.CreateInvite)
		invites.GET("", s.AuthRequired(), s.ListInvites)
		invites.POST("/redeem", s.AuthRequired(), s.RedeemRateLimit(), s.RedeemInvite)
		invites.POST("/:id/deactivate", s.AuthRequired(), s.DeactivateInvite)
	}
}
