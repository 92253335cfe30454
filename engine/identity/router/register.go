package router

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/ulule/limiter/v3"
	mgin "github.com/ulule/limiter/v3/drivers/middleware/gin"
	"github.com/ulule/limiter/v3/drivers/store/memory"
)

// Register mounts the identity engine routes. requireActor is the caller's
// authentication middleware; it must store the acting user's internal id
// under ContextActorID.
func Register(r *gin.Engine, h *Handler, requireActor gin.HandlerFunc) {
	// Coarse per-IP limiting in front of the public token endpoints, on top
	// of the engine's own fixed-window counters.
	ipLimit := mgin.NewMiddleware(limiter.New(memory.NewStore(), limiter.Rate{
		Period: time.Minute,
		Limit:  30,
	}))

	public := r.Group("/api/v1/invitations")
	public.Use(ipLimit)
	{
		public.GET("/validate", h.validateInvitation)
		public.POST("/accept", h.acceptInvitation)
	}

	admin := r.Group("/api/v1/admin")
	admin.Use(requireActor)
	{
		admin.POST("/invitations", h.createInvitation)
		admin.GET("/invitations", h.listInvitations)
		admin.POST("/invitations/:id/cancel", h.cancelInvitation)
		admin.POST("/invitations/:id/resend", h.resendInvitation)
		admin.POST("/invitations/bulk", h.bulkInvitations)
		admin.POST("/sync/reconcile", h.reconcile)
		admin.GET("/sync/orphans", h.listOrphans)
		admin.GET("/sync/missing", h.listMissing)
		admin.DELETE("/sync/orphans", h.cleanupOrphans)
	}
}
