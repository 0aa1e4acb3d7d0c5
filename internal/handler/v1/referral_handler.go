package v1

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/santerahq/claimsgate/internal/domain/referral"
	"github.com/santerahq/claimsgate/internal/service"
)

type ReferralHandler struct {
	referralSvc *service.ReferralService
}

func NewReferralHandler(referralSvc *service.ReferralService) *ReferralHandler {
	return &ReferralHandler{referralSvc: referralSvc}
}

type createReferralRequest struct {
	EnrolleeID          uuid.UUID `json:"enrollee_id" binding:"required"`
	ReferringFacilityID uuid.UUID `json:"referring_facility_id" binding:"required"`
	ReceivingFacilityID uuid.UUID `json:"receiving_facility_id" binding:"required"`
	Severity            string    `json:"severity" binding:"required,oneof=mild moderate severe"`
	BundleCode          string    `json:"bundle_code"`
	CaseRecordCode      string    `json:"case_record_code"`
	PresentingICD10     string    `json:"presenting_icd10" binding:"required,icd10"`
	ClinicalSummary     string    `json:"clinical_summary"`
}

func (h *ReferralHandler) Create(c *gin.Context) {
	var req createReferralRequest
	if !bindJSON(c, &req) {
		return
	}

	actor := actorFromContext(c)
	ref, err := h.referralSvc.CreateReferral(c.Request.Context(), &referral.CreateReferralCommand{
		EnrolleeID:          req.EnrolleeID,
		ReferringFacilityID: req.ReferringFacilityID,
		ReceivingFacilityID: req.ReceivingFacilityID,
		Severity:            referral.Severity(req.Severity),
		BundleCode:          req.BundleCode,
		CaseRecordCode:      req.CaseRecordCode,
		PresentingICD10:     req.PresentingICD10,
		ClinicalSummary:     req.ClinicalSummary,
		CreatedBy:           actor.UserID,
	}, actor)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondCreated(c, ref)
}

func (h *ReferralHandler) Get(c *gin.Context) {
	id, ok := parseUUID(c, "id")
	if !ok {
		return
	}

	ref, err := h.referralSvc.GetReferral(c.Request.Context(), id, actorFromContext(c))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, ref)
}

func (h *ReferralHandler) List(c *gin.Context) {
	q := &referral.ListReferralsQuery{
		EnrolleeID:          parseQueryUUID(c, "enrollee_id"),
		ReceivingFacilityID: parseQueryUUID(c, "receiving_facility_id"),
		Page:                parseQueryInt(c, "page", 1),
		PageSize:            parseQueryInt(c, "page_size", 20),
	}
	if raw := c.Query("status"); raw != "" {
		status := referral.ReferralStatus(raw)
		q.Status = &status
	}

	page, err := h.referralSvc.ListReferrals(c.Request.Context(), q, actorFromContext(c))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, page)
}

func (h *ReferralHandler) Approve(c *gin.Context) {
	id, ok := parseUUID(c, "id")
	if !ok {
		return
	}

	ref, err := h.referralSvc.ApproveReferral(c.Request.Context(), id, actorFromContext(c))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, ref)
}

type denyReferralRequest struct {
	Reason string `json:"reason" binding:"required"`
}

func (h *ReferralHandler) Deny(c *gin.Context) {
	id, ok := parseUUID(c, "id")
	if !ok {
		return
	}
	var req denyReferralRequest
	if !bindJSON(c, &req) {
		return
	}

	ref, err := h.referralSvc.DenyReferral(c.Request.Context(), id, req.Reason, actorFromContext(c))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, ref)
}

type validateUTNRequest struct {
	UTN string `json:"utn" binding:"required"`
}

func (h *ReferralHandler) ValidateUTN(c *gin.Context) {
	id, ok := parseUUID(c, "id")
	if !ok {
		return
	}
	var req validateUTNRequest
	if !bindJSON(c, &req) {
		return
	}

	ref, err := h.referralSvc.ValidateUTN(c.Request.Context(), id, req.UTN, actorFromContext(c))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, ref)
}
