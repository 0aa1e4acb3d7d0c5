package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/santerahq/claimsgate/internal/domain/claim"
	"github.com/santerahq/claimsgate/internal/service"
)

type ClaimHandler struct {
	claimSvc *service.ClaimService
	paSvc    *service.PAService
	docs     service.DocumentStore
}

func NewClaimHandler(claimSvc *service.ClaimService, paSvc *service.PAService, docs service.DocumentStore) *ClaimHandler {
	return &ClaimHandler{claimSvc: claimSvc, paSvc: paSvc, docs: docs}
}

type createClaimRequest struct {
	AdmissionID uuid.UUID `json:"admission_id" binding:"required"`
}

func (h *ClaimHandler) Create(c *gin.Context) {
	var req createClaimRequest
	if !bindJSON(c, &req) {
		return
	}

	actor := actorFromContext(c)
	cl, err := h.claimSvc.CreateClaim(c.Request.Context(), &claim.CreateClaimCommand{
		AdmissionID: req.AdmissionID,
		CreatedBy:   actor.UserID,
	}, actor)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondCreated(c, cl)
}

func (h *ClaimHandler) Get(c *gin.Context) {
	id, ok := parseUUID(c, "id")
	if !ok {
		return
	}

	cl, err := h.claimSvc.GetClaim(c.Request.Context(), id, actorFromContext(c))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, cl)
}

func (h *ClaimHandler) List(c *gin.Context) {
	q := &claim.ListClaimsQuery{
		FacilityID: parseQueryUUID(c, "facility_id"),
		EnrolleeID: parseQueryUUID(c, "enrollee_id"),
		Page:       parseQueryInt(c, "page", 1),
		PageSize:   parseQueryInt(c, "page_size", 20),
	}
	if raw := c.Query("status"); raw != "" {
		status := claim.ClaimStatus(raw)
		q.Status = &status
	}

	page, err := h.claimSvc.ListClaims(c.Request.Context(), q, actorFromContext(c))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, page)
}

type addLineRequest struct {
	PACodeID    uuid.UUID `json:"pa_code_id" binding:"required"`
	ServiceType string    `json:"service_type" binding:"required"`
	TariffCode  string    `json:"tariff_code" binding:"required"`
	Description string    `json:"description"`
	ICD10Code   string    `json:"icd10_code" binding:"omitempty,icd10"`
	Quantity    int       `json:"quantity" binding:"required,min=1"`
}

func (h *ClaimHandler) toCommand(c *gin.Context, req *addLineRequest) *claim.AddLineCommand {
	actor := actorFromContext(c)
	return &claim.AddLineCommand{
		PACodeID:    req.PACodeID,
		ServiceType: claim.ServiceType(req.ServiceType),
		TariffCode:  req.TariffCode,
		Description: req.Description,
		ICD10Code:   req.ICD10Code,
		Quantity:    req.Quantity,
		AddedBy:     actor.UserID,
	}
}

func (h *ClaimHandler) AddBundleLine(c *gin.Context) {
	id, ok := parseUUID(c, "id")
	if !ok {
		return
	}
	var req addLineRequest
	if !bindJSON(c, &req) {
		return
	}

	cl, err := h.claimSvc.AddBundleLine(c.Request.Context(), id, req.PACodeID, h.toCommand(c, &req), actorFromContext(c))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondCreated(c, cl)
}

func (h *ClaimHandler) AddFFSLine(c *gin.Context) {
	id, ok := parseUUID(c, "id")
	if !ok {
		return
	}
	var req addLineRequest
	if !bindJSON(c, &req) {
		return
	}

	cl, err := h.claimSvc.AddFFSLine(c.Request.Context(), id, req.PACodeID, h.toCommand(c, &req), actorFromContext(c))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondCreated(c, cl)
}

type addDiagnosisRequest struct {
	ICD10Code      string `json:"icd10_code" binding:"required,icd10"`
	IsComplication bool   `json:"is_complication"`
}

// AddDiagnosis routes through the PA automation path: a complication
// diagnosis may come back with a freshly generated top-up PA.
func (h *ClaimHandler) AddDiagnosis(c *gin.Context) {
	id, ok := parseUUID(c, "id")
	if !ok {
		return
	}
	var req addDiagnosisRequest
	if !bindJSON(c, &req) {
		return
	}

	actor := actorFromContext(c)
	diag, pa, err := h.paSvc.HandleNewDiagnosis(c.Request.Context(), id, &claim.AddDiagnosisCommand{
		ICD10Code:      req.ICD10Code,
		IsComplication: req.IsComplication,
		AddedBy:        actor.UserID,
	}, actor)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondCreated(c, gin.H{"diagnosis": diag, "generated_pa": pa})
}

func (h *ClaimHandler) ValidateLine(c *gin.Context) {
	claimID, ok := parseUUID(c, "id")
	if !ok {
		return
	}
	lineID, ok := parseUUID(c, "lineId")
	if !ok {
		return
	}

	line, err := h.claimSvc.ValidateLine(c.Request.Context(), claimID, lineID, actorFromContext(c))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, line)
}

func (h *ClaimHandler) ValidateDiagnosis(c *gin.Context) {
	claimID, ok := parseUUID(c, "id")
	if !ok {
		return
	}
	diagID, ok := parseUUID(c, "diagnosisId")
	if !ok {
		return
	}

	diag, err := h.claimSvc.ValidateDiagnosis(c.Request.Context(), claimID, diagID, actorFromContext(c))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, diag)
}

func (h *ClaimHandler) Classify(c *gin.Context) {
	id, ok := parseUUID(c, "id")
	if !ok {
		return
	}

	cls, err := h.claimSvc.ClassifyClaim(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, cls)
}

func (h *ClaimHandler) ComplianceChecks(c *gin.Context) {
	id, ok := parseUUID(c, "id")
	if !ok {
		return
	}

	alerts, err := h.claimSvc.RunComplianceChecks(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, gin.H{"alerts": alerts, "count": len(alerts)})
}

const maxDocumentSize = 20 << 20 // 20 MiB

// UploadDocument attaches a supporting document to the claim.
func (h *ClaimHandler) UploadDocument(c *gin.Context) {
	id, ok := parseUUID(c, "id")
	if !ok {
		return
	}

	file, err := c.FormFile("document")
	if err != nil {
		respondError(c, http.StatusBadRequest, "document file is required")
		return
	}
	if file.Size > maxDocumentSize {
		respondError(c, http.StatusRequestEntityTooLarge, "document exceeds 20MB limit")
		return
	}

	// The claim must exist and be visible to the caller before we pay
	// for the upload.
	if _, err := h.claimSvc.GetClaim(c.Request.Context(), id, actorFromContext(c)); err != nil {
		respondServiceError(c, err)
		return
	}

	src, err := file.Open()
	if err != nil {
		respondError(c, http.StatusBadRequest, "cannot read uploaded file")
		return
	}
	defer src.Close()

	doc, err := h.docs.Store(c.Request.Context(), src, file.Size,
		file.Filename, file.Header.Get("Content-Type"), "claims/"+id.String())
	if err != nil {
		respondError(c, http.StatusBadGateway, "document storage unavailable")
		return
	}
	respondCreated(c, doc)
}
