package v1

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/santerahq/claimsgate/internal/domain/admission"
	"github.com/santerahq/claimsgate/internal/service"
)

type AdmissionHandler struct {
	admissionSvc *service.AdmissionService
}

func NewAdmissionHandler(admissionSvc *service.AdmissionService) *AdmissionHandler {
	return &AdmissionHandler{admissionSvc: admissionSvc}
}

type createAdmissionRequest struct {
	ReferralID              uuid.UUID  `json:"referral_id" binding:"required"`
	PrincipalDiagnosisICD10 string     `json:"principal_diagnosis_icd10" binding:"required,icd10"`
	Ward                    string     `json:"ward" binding:"required"`
	AdmittedAt              *time.Time `json:"admitted_at"`
}

func (h *AdmissionHandler) Create(c *gin.Context) {
	var req createAdmissionRequest
	if !bindJSON(c, &req) {
		return
	}

	admittedAt := time.Now()
	if req.AdmittedAt != nil {
		admittedAt = *req.AdmittedAt
	}

	actor := actorFromContext(c)
	a, err := h.admissionSvc.CreateAdmission(c.Request.Context(), &admission.CreateAdmissionCommand{
		ReferralID:              req.ReferralID,
		PrincipalDiagnosisICD10: req.PrincipalDiagnosisICD10,
		Ward:                    req.Ward,
		AdmittedAt:              admittedAt,
		CreatedBy:               actor.UserID,
	}, actor)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondCreated(c, a)
}

func (h *AdmissionHandler) Get(c *gin.Context) {
	id, ok := parseUUID(c, "id")
	if !ok {
		return
	}

	a, err := h.admissionSvc.GetAdmission(c.Request.Context(), id, actorFromContext(c))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, a)
}

type dischargeRequest struct {
	WardDays         int    `json:"ward_days" binding:"required,min=1"`
	DischargeSummary string `json:"discharge_summary" binding:"required"`
}

func (h *AdmissionHandler) Discharge(c *gin.Context) {
	id, ok := parseUUID(c, "id")
	if !ok {
		return
	}
	var req dischargeRequest
	if !bindJSON(c, &req) {
		return
	}

	actor := actorFromContext(c)
	a, err := h.admissionSvc.DischargePatient(c.Request.Context(), id, &admission.DischargeCommand{
		WardDays:         req.WardDays,
		DischargeSummary: req.DischargeSummary,
		DischargedBy:     actor.UserID,
	}, actor)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, a)
}

// CanAdmit is the non-throwing pre-flight check; an ineligible referral
// still returns 200 with the reason.
func (h *AdmissionHandler) CanAdmit(c *gin.Context) {
	id, ok := parseUUID(c, "referralId")
	if !ok {
		return
	}

	elig, err := h.admissionSvc.CanAdmit(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, elig)
}
