package v1

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/santerahq/claimsgate/internal/domain"
	"github.com/santerahq/claimsgate/internal/domain/admission"
	"github.com/santerahq/claimsgate/internal/domain/claim"
	"github.com/santerahq/claimsgate/internal/domain/pacode"
	"github.com/santerahq/claimsgate/internal/domain/referral"
	"github.com/santerahq/claimsgate/internal/service"
)

type APIResponse[T any] struct {
	Data    T      `json:"data"`
	Message string `json:"message,omitempty"`
}

type ErrorResponse struct {
	Error   string            `json:"error"`
	Code    string            `json:"code,omitempty"`
	Details map[string]string `json:"details,omitempty"`
}

type ValidationErrorResponse struct {
	Error  string   `json:"error"`
	Fields []string `json:"fields"`
}

func respondOK(c *gin.Context, data any) {
	c.JSON(http.StatusOK, APIResponse[any]{Data: data})
}

func respondCreated(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, APIResponse[any]{Data: data})
}

func respondError(c *gin.Context, status int, message string) {
	c.JSON(status, ErrorResponse{Error: message})
}

func respondServiceError(c *gin.Context, err error) {
	var validErr *service.ValidationError
	if errors.As(err, &validErr) {
		c.JSON(http.StatusBadRequest, ValidationErrorResponse{
			Error:  "validation failed",
			Fields: validErr.Fields,
		})
		return
	}

	var policyErr *service.PolicyViolation
	if errors.As(err, &policyErr) {
		c.JSON(http.StatusConflict, ErrorResponse{
			Error: policyErr.Message,
			Code:  policyErr.Code,
		})
		return
	}

	var eligErr *service.NotEligibleError
	if errors.As(err, &eligErr) {
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
			Error: eligErr.Error(),
			Code:  "NOT_ELIGIBLE",
		})
		return
	}

	var transErr *claim.TransitionError
	if errors.As(err, &transErr) {
		c.JSON(http.StatusConflict, ErrorResponse{
			Error: transErr.Error(),
			Code:  "INVALID_TRANSITION",
		})
		return
	}

	var unvalErr *claim.UnvalidatedItemsError
	if errors.As(err, &unvalErr) {
		c.JSON(http.StatusConflict, ErrorResponse{
			Error: unvalErr.Error(),
			Code:  "UNVALIDATED_ITEMS",
		})
		return
	}

	switch {
	case errors.Is(err, referral.ErrReferralNotFound),
		errors.Is(err, pacode.ErrPACodeNotFound),
		errors.Is(err, admission.ErrAdmissionNotFound),
		errors.Is(err, claim.ErrClaimNotFound),
		errors.Is(err, claim.ErrLineNotFound),
		errors.Is(err, claim.ErrDiagnosisNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: err.Error()})

	case errors.Is(err, referral.ErrAlreadyReviewed),
		errors.Is(err, referral.ErrUTNAlreadyValidated),
		errors.Is(err, pacode.ErrNotPending),
		errors.Is(err, pacode.ErrAlreadyUsed),
		errors.Is(err, pacode.ErrAlreadyCancelled),
		errors.Is(err, admission.ErrAlreadyDischarged),
		errors.Is(err, admission.ErrReferralAlreadyAdmitted),
		errors.Is(err, admission.ErrActiveAdmissionExists),
		errors.Is(err, claim.ErrNotDraft):
		c.JSON(http.StatusConflict, ErrorResponse{Error: err.Error()})

	case errors.Is(err, referral.ErrUTNMismatch),
		errors.Is(err, referral.ErrInvalidSeverity),
		errors.Is(err, pacode.ErrNotApproved),
		errors.Is(err, pacode.ErrPACodeExpired),
		errors.Is(err, pacode.ErrInvalidPAType),
		errors.Is(err, admission.ErrAdmissionNotActive),
		errors.Is(err, claim.ErrCommentRequired),
		errors.Is(err, claim.ErrIncompleteClaim),
		errors.Is(err, claim.ErrIncompleteHeader),
		errors.Is(err, claim.ErrInvalidServiceType),
		errors.Is(err, claim.ErrInvalidQuantity):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})

	case errors.Is(err, service.ErrForbidden):
		c.JSON(http.StatusForbidden, ErrorResponse{Error: "access denied"})

	case errors.Is(err, service.ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "invalid credentials"})

	case errors.Is(err, service.ErrAccountInactive):
		c.JSON(http.StatusForbidden, ErrorResponse{Error: "account inactive"})

	case errors.Is(err, service.ErrAccountLocked):
		c.JSON(http.StatusTooManyRequests, ErrorResponse{
			Error: "account temporarily locked",
			Code:  "ACCOUNT_LOCKED",
		})

	default:
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
	}
}

func bindJSON(c *gin.Context, obj any) bool {
	if err := c.ShouldBindJSON(obj); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request: " + err.Error()})
		return false
	}
	return true
}

func parseUUID(c *gin.Context, param string) (uuid.UUID, bool) {
	raw := c.Param(param)
	id, err := uuid.Parse(raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid " + param + ": must be a valid UUID"})
		return uuid.Nil, false
	}
	return id, true
}

func parseQueryInt(c *gin.Context, key string, defaultVal int) int {
	if raw := c.Query(key); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 {
			return v
		}
	}
	return defaultVal
}

func parseQueryUUID(c *gin.Context, key string) *uuid.UUID {
	if raw := c.Query(key); raw != "" {
		if id, err := uuid.Parse(raw); err == nil {
			return &id
		}
	}
	return nil
}

// actorFromContext reads the Actor the auth middleware stored. Handlers
// behind the auth group can rely on it being present.
func actorFromContext(c *gin.Context) domain.Actor {
	v, _ := c.Get(contextKeyActor)
	actor, _ := v.(domain.Actor)
	return actor
}
