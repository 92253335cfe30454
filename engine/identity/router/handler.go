package router

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/atriumhq/atrium/engine/core"
	"github.com/atriumhq/atrium/engine/identity/model"
	"github.com/atriumhq/atrium/engine/identity/ratelimit"
	"github.com/atriumhq/atrium/engine/identity/uc"
	"github.com/atriumhq/atrium/pkg/logger"
	"github.com/gin-gonic/gin"
)

// ContextActorID is the gin context key under which the authentication
// middleware stores the acting user's internal id.
const ContextActorID = "actorID"

// UseCases bundles the engine operations the handlers translate to HTTP.
type UseCases struct {
	CreateInvitation   *uc.CreateInvitation
	ValidateInvitation *uc.ValidateInvitation
	AcceptInvitation   *uc.AcceptInvitation
	CancelInvitation   *uc.CancelInvitation
	ResendInvitation   *uc.ResendInvitation
	BulkInvitations    *uc.BulkInvitations
	ListInvitations    *uc.ListInvitations
	ReconcileAll       *uc.ReconcileAll
	Orphans            *uc.Orphans
	Users              uc.UserRepository
}

// Handler translates HTTP requests into engine use cases. No business logic
// lives here.
type Handler struct {
	ucs     *UseCases
	limiter *ratelimit.Service
}

// NewHandler creates the HTTP handler set.
func NewHandler(ucs *UseCases, limiter *ratelimit.Service) *Handler {
	return &Handler{ucs: ucs, limiter: limiter}
}

// ErrorResponse is the uniform error body.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

func respondError(c *gin.Context, err error) {
	var coded *core.Error
	if !errors.As(err, &coded) {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}
	status := http.StatusInternalServerError
	switch coded.Code {
	case core.CodeValidation:
		status = http.StatusBadRequest
	case core.CodePermission:
		status = http.StatusForbidden
	case core.CodeNotFound:
		status = http.StatusNotFound
	case core.CodeConflict, core.CodeState:
		status = http.StatusConflict
	case core.CodeUpstream:
		status = http.StatusBadGateway
	}
	c.JSON(status, ErrorResponse{Error: coded.Error(), Code: coded.Code, Details: coded.Details})
}

func (h *Handler) actor(c *gin.Context) (*model.User, bool) {
	raw, ok := c.Get(ContextActorID)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "authentication required"})
		return nil, false
	}
	actorID, ok := raw.(int64)
	if !ok {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "invalid actor id in context"})
		return nil, false
	}
	actor, err := h.ucs.Users.GetByID(c.Request.Context(), actorID)
	if err != nil {
		if errors.Is(err, uc.ErrUserNotFound) {
			c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unknown actor"})
			return nil, false
		}
		respondError(c, err)
		return nil, false
	}
	return actor, true
}

type createInvitationRequest struct {
	Email   string `json:"email" binding:"required"`
	Role    string `json:"role" binding:"required"`
	Message string `json:"message"`
}

func (h *Handler) createInvitation(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	if h.limiter.IsLimited("invite:" + strconv.FormatInt(actor.ID, 10)) {
		c.JSON(http.StatusTooManyRequests, ErrorResponse{Error: "too many invitation attempts"})
		return
	}
	var req createInvitationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}
	role, ok := model.ParseRole(req.Role)
	if !ok {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "unknown role " + req.Role})
		return
	}
	out, err := h.ucs.CreateInvitation.Execute(c.Request.Context(), &uc.CreateInvitationInput{
		Actor:   actor,
		Email:   req.Email,
		Role:    role,
		Message: req.Message,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"data":        out.Invitation,
		"email_sent":  out.EmailSent,
		"email_error": out.EmailError,
	})
}

func (h *Handler) listInvitations(c *gin.Context) {
	status := model.InvitationStatus(c.DefaultQuery("status", string(model.InvitationPending)))
	invs, err := h.ucs.ListInvitations.ByStatus(c.Request.Context(), status)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": invs})
}

func (h *Handler) cancelInvitation(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	inv, err := h.ucs.CancelInvitation.Execute(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": inv})
}

func (h *Handler) resendInvitation(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	out, err := h.ucs.ResendInvitation.Execute(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": out})
}

type bulkRequest struct {
	IDs    []int64 `json:"ids" binding:"required"`
	Action string  `json:"action" binding:"required"`
}

func (h *Handler) bulkInvitations(c *gin.Context) {
	var req bulkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}
	result, err := h.ucs.BulkInvitations.Execute(c.Request.Context(), req.IDs, uc.BulkAction(req.Action))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": result})
}

func (h *Handler) validateInvitation(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "token is required"})
		return
	}
	if h.limiter.IsLimited("validate:" + c.ClientIP()) {
		c.JSON(http.StatusTooManyRequests, ErrorResponse{Error: "too many validation attempts"})
		return
	}
	out, err := h.ucs.ValidateInvitation.Execute(c.Request.Context(), token)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"valid": out.Valid, "reason": out.Reason})
}

type acceptRequest struct {
	Token     string `json:"token" binding:"required"`
	Email     string `json:"email" binding:"required,email"`
	Password  string `json:"password" binding:"required,min=8"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

func (h *Handler) acceptInvitation(c *gin.Context) {
	key := "accept:" + c.ClientIP()
	if h.limiter.IsLimited(key) {
		c.JSON(http.StatusTooManyRequests, ErrorResponse{Error: "too many acceptance attempts"})
		return
	}
	var req acceptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}
	user, err := h.ucs.AcceptInvitation.Execute(c.Request.Context(), &uc.AcceptInvitationInput{
		Token:     req.Token,
		Email:     req.Email,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	// A successful acceptance should not penalize the next legitimate
	// attempt from the same address.
	h.limiter.Clear(key)
	c.JSON(http.StatusCreated, gin.H{"data": user})
}

func (h *Handler) reconcile(c *gin.Context) {
	result, err := h.ucs.ReconcileAll.Execute(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": result})
}

func (h *Handler) listOrphans(c *gin.Context) {
	ids, err := h.ucs.Orphans.FindOrphaned(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": ids})
}

func (h *Handler) listMissing(c *gin.Context) {
	ids, err := h.ucs.Orphans.FindMissing(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": ids})
}

func (h *Handler) cleanupOrphans(c *gin.Context) {
	deleted, err := h.ucs.Orphans.CleanupOrphaned(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	logger.FromContext(c.Request.Context()).Info("Orphan cleanup requested", "deleted", deleted)
	c.JSON(http.StatusOK, gin.H{"deleted": deleted})
}

func (h *Handler) pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid invitation id"})
		return 0, false
	}
	return id, true
}
