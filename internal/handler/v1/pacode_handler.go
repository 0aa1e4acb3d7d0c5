package v1

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/santerahq/claimsgate/internal/domain/pacode"
	"github.com/santerahq/claimsgate/internal/service"
)

type PACodeHandler struct {
	paSvc *service.PAService
}

func NewPACodeHandler(paSvc *service.PAService) *PACodeHandler {
	return &PACodeHandler{paSvc: paSvc}
}

type generatePARequest struct {
	ReferralID     uuid.UUID  `json:"referral_id" binding:"required"`
	AdmissionID    *uuid.UUID `json:"admission_id"`
	FacilityID     uuid.UUID  `json:"facility_id" binding:"required"`
	Type           string     `json:"type" binding:"required,oneof=BUNDLE FFS_TOP_UP"`
	DiagnosisICD10 string     `json:"diagnosis_icd10" binding:"required,icd10"`
	MaxUsage       int        `json:"max_usage" binding:"omitempty,min=1"`
	ValidityDays   int        `json:"validity_days" binding:"omitempty,min=1"`
}

func (h *PACodeHandler) Generate(c *gin.Context) {
	var req generatePARequest
	if !bindJSON(c, &req) {
		return
	}

	actor := actorFromContext(c)
	pa, err := h.paSvc.GeneratePACode(c.Request.Context(), &pacode.GeneratePACommand{
		ReferralID:     req.ReferralID,
		AdmissionID:    req.AdmissionID,
		FacilityID:     req.FacilityID,
		Type:           pacode.PAType(req.Type),
		DiagnosisICD10: req.DiagnosisICD10,
		MaxUsage:       req.MaxUsage,
		ValidityDays:   req.ValidityDays,
		CreatedBy:      actor.UserID,
	}, actor)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondCreated(c, pa)
}

func (h *PACodeHandler) Approve(c *gin.Context) {
	id, ok := parseUUID(c, "id")
	if !ok {
		return
	}

	pa, err := h.paSvc.ApprovePACode(c.Request.Context(), id, actorFromContext(c))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, pa)
}

type rejectPARequest struct {
	Reason string `json:"reason" binding:"required"`
}

func (h *PACodeHandler) Reject(c *gin.Context) {
	id, ok := parseUUID(c, "id")
	if !ok {
		return
	}
	var req rejectPARequest
	if !bindJSON(c, &req) {
		return
	}

	pa, err := h.paSvc.RejectPACode(c.Request.Context(), id, req.Reason, actorFromContext(c))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, pa)
}

type markUsedRequest struct {
	ClaimID uuid.UUID `json:"claim_id" binding:"required"`
}

// MarkUsed consumes one usage of the code against the billing claim.
func (h *PACodeHandler) MarkUsed(c *gin.Context) {
	id, ok := parseUUID(c, "id")
	if !ok {
		return
	}
	var req markUsedRequest
	if !bindJSON(c, &req) {
		return
	}

	pa, err := h.paSvc.MarkPACodeUsed(c.Request.Context(), id, req.ClaimID, actorFromContext(c))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, pa)
}

func (h *PACodeHandler) Cancel(c *gin.Context) {
	id, ok := parseUUID(c, "id")
	if !ok {
		return
	}

	pa, err := h.paSvc.CancelPACode(c.Request.Context(), id, actorFromContext(c))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, pa)
}

// Verify resolves either a PA code value or a UTN and returns a pure
// read-out; nothing is consumed.
func (h *PACodeHandler) Verify(c *gin.Context) {
	code := c.Param("code")
	if code == "" {
		respondError(c, 400, "code is required")
		return
	}

	v, err := h.paSvc.VerifyPACode(c.Request.Context(), code)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, v)
}
