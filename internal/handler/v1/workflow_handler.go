package v1

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/santerahq/claimsgate/internal/domain"
	"github.com/santerahq/claimsgate/internal/domain/claim"
	"github.com/santerahq/claimsgate/internal/service"
)

type WorkflowHandler struct {
	workflowSvc *service.WorkflowService
}

func NewWorkflowHandler(workflowSvc *service.WorkflowService) *WorkflowHandler {
	return &WorkflowHandler{workflowSvc: workflowSvc}
}

type reviewRequest struct {
	Comment string `json:"comment"`
}

type approveClaimRequest struct {
	Comment          string `json:"comment"`
	AuthorizePayment bool   `json:"authorize_payment"`
}

func (h *WorkflowHandler) Submit(c *gin.Context) {
	h.apply(c, func(id uuid.UUID, _ string, actor domain.Actor) (*claim.Claim, error) {
		return h.workflowSvc.SubmitClaim(c.Request.Context(), id, actor)
	})
}

func (h *WorkflowHandler) DoctorApprove(c *gin.Context) {
	h.apply(c, func(id uuid.UUID, comment string, actor domain.Actor) (*claim.Claim, error) {
		return h.workflowSvc.DoctorApprove(c.Request.Context(), id, comment, actor)
	})
}

func (h *WorkflowHandler) DoctorReject(c *gin.Context) {
	h.apply(c, func(id uuid.UUID, comment string, actor domain.Actor) (*claim.Claim, error) {
		return h.workflowSvc.DoctorReject(c.Request.Context(), id, comment, actor)
	})
}

func (h *WorkflowHandler) PharmacistApprove(c *gin.Context) {
	h.apply(c, func(id uuid.UUID, comment string, actor domain.Actor) (*claim.Claim, error) {
		return h.workflowSvc.PharmacistApprove(c.Request.Context(), id, comment, actor)
	})
}

func (h *WorkflowHandler) PharmacistReject(c *gin.Context) {
	h.apply(c, func(id uuid.UUID, comment string, actor domain.Actor) (*claim.Claim, error) {
		return h.workflowSvc.PharmacistReject(c.Request.Context(), id, comment, actor)
	})
}

func (h *WorkflowHandler) Review(c *gin.Context) {
	h.apply(c, func(id uuid.UUID, comment string, actor domain.Actor) (*claim.Claim, error) {
		return h.workflowSvc.ReviewClaim(c.Request.Context(), id, comment, actor)
	})
}

func (h *WorkflowHandler) Confirm(c *gin.Context) {
	h.apply(c, func(id uuid.UUID, comment string, actor domain.Actor) (*claim.Claim, error) {
		return h.workflowSvc.ConfirmClaim(c.Request.Context(), id, comment, actor)
	})
}

func (h *WorkflowHandler) Approve(c *gin.Context) {
	id, ok := parseUUID(c, "id")
	if !ok {
		return
	}
	var req approveClaimRequest
	if !bindJSON(c, &req) {
		return
	}

	cl, err := h.workflowSvc.ApproveClaim(c.Request.Context(), id, req.Comment, req.AuthorizePayment, actorFromContext(c))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, cl)
}

func (h *WorkflowHandler) Reject(c *gin.Context) {
	h.apply(c, func(id uuid.UUID, comment string, actor domain.Actor) (*claim.Claim, error) {
		return h.workflowSvc.RejectClaim(c.Request.Context(), id, comment, actor)
	})
}

func (h *WorkflowHandler) apply(c *gin.Context, fn func(uuid.UUID, string, domain.Actor) (*claim.Claim, error)) {
	id, ok := parseUUID(c, "id")
	if !ok {
		return
	}

	var req reviewRequest
	if c.Request.ContentLength > 0 {
		if !bindJSON(c, &req) {
			return
		}
	}

	cl, err := fn(id, req.Comment, actorFromContext(c))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, cl)
}
