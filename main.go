package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strconv"

	"github.com/atriumhq/atrium/engine/core"
	"github.com/atriumhq/atrium/engine/identity/infra/gotrue"
	"github.com/atriumhq/atrium/engine/identity/infra/mailer"
	"github.com/atriumhq/atrium/engine/identity/infra/postgres"
	"github.com/atriumhq/atrium/engine/identity/ratelimit"
	"github.com/atriumhq/atrium/engine/identity/router"
	"github.com/atriumhq/atrium/engine/identity/security"
	"github.com/atriumhq/atrium/engine/identity/uc"
	"github.com/atriumhq/atrium/pkg/config"
	"github.com/atriumhq/atrium/pkg/logger"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	log := logger.NewLogger(&logger.Config{
		Level: logger.LogLevel(cfg.Log.Level),
		JSON:  cfg.Log.JSON,
	})
	ctx := logger.ContextWithLogger(context.Background(), log)

	if err := postgres.ApplyMigrations(ctx, cfg.Database.DSN); err != nil {
		return fmt.Errorf("applying migrations: %w", err)
	}
	pool, err := pgxpool.New(ctx, cfg.Database.DSN)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer pool.Close()

	users := postgres.NewUserRepo(pool)
	invitations := postgres.NewInvitationRepo(pool)
	syncLogs := postgres.NewSyncLogRepo(pool)

	provider := gotrue.NewClient(&gotrue.Config{
		BaseURL:    cfg.Provider.URL,
		ServiceKey: cfg.Provider.Key,
		Timeout:    cfg.Provider.Timeout,
	})
	mail := mailer.NewClient(&mailer.Config{
		BaseURL: cfg.Mailer.URL,
		APIKey:  cfg.Mailer.Key,
		From:    cfg.Mailer.From,
	})

	policy := &uc.Policy{
		Superadmins:   cfg.Identity.Superadmins,
		InvitationTTL: cfg.Identity.TTL,
		TokenGrace:    cfg.Identity.Grace,
		OrphanGrace:   cfg.Identity.OrphanGrace,
	}
	validator := security.NewValidator(invitations, security.Thresholds{
		MaxInvitesPerHour:    cfg.Identity.MaxInvitesPerHour,
		MaxInvitesPerDay:     cfg.Identity.MaxInvitesPerDay,
		MaxSameEmailPerDay:   cfg.Identity.MaxSameEmailPerDay,
		MaxSuperadminPerHour: cfg.Identity.MaxSuperadminPerHour,
	}, cfg.Identity.TTL, cfg.Identity.Grace)

	limiter := ratelimit.NewService(&ratelimit.Config{
		MaxAttempts:   cfg.RateLimit.MaxAttempts,
		Window:        cfg.RateLimit.Window,
		SweepInterval: cfg.RateLimit.Sweep,
	})
	defer limiter.Stop()

	syncOne := uc.NewSyncOne(users, syncLogs, policy)
	ucs := &router.UseCases{
		CreateInvitation:   uc.NewCreateInvitation(invitations, validator, mail, policy),
		ValidateInvitation: uc.NewValidateInvitation(invitations, validator),
		AcceptInvitation:   uc.NewAcceptInvitation(invitations, users, provider),
		CancelInvitation:   uc.NewCancelInvitation(invitations),
		ResendInvitation:   uc.NewResendInvitation(invitations, mail),
		BulkInvitations:    uc.NewBulkInvitations(invitations),
		ListInvitations:    uc.NewListInvitations(invitations),
		ReconcileAll:       uc.NewReconcileAll(provider, users, syncOne),
		Orphans:            uc.NewOrphans(provider, users, syncLogs, policy),
		Users:              users,
	}

	engine := gin.New()
	engine.Use(gin.Recovery(), requestLogger(log))
	router.Register(engine, router.NewHandler(ucs, limiter), actorFromHeader())

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	log.Info("Starting identity engine", "addr", addr)
	return engine.Run(addr)
}

// requestLogger tags each request with an id and stashes the logger into
// the request context.
func requestLogger(log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := core.MustNewID().String()
		c.Header("X-Request-Id", requestID)
		reqLog := log.With("request_id", requestID)
		c.Request = c.Request.WithContext(logger.ContextWithLogger(c.Request.Context(), reqLog))
		c.Next()
	}
}

// actorFromHeader trusts the upstream gateway's authenticated user id
// header. The portal's session layer owns real authentication; this engine
// only needs the resolved internal id.
func actorFromHeader() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := c.GetHeader("X-Atrium-User")
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			return
		}
		c.Set(router.ContextActorID, id)
		c.Next()
	}
}
