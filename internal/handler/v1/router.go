package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/santerahq/claimsgate/internal/config"
	"github.com/santerahq/claimsgate/internal/domain"
	"github.com/santerahq/claimsgate/internal/service"
	"github.com/santerahq/claimsgate/pkg/auth"
	"github.com/santerahq/claimsgate/pkg/metrics"
	"go.uber.org/zap"
)

type RouterDeps struct {
	Config       *config.Config
	Log          *zap.Logger
	Metrics      *metrics.Collector
	JWTManager   *auth.JWTManager
	AuthSvc      *service.AuthService
	ReferralSvc  *service.ReferralService
	PASvc        *service.PAService
	AdmissionSvc *service.AdmissionService
	ClaimSvc     *service.ClaimService
	WorkflowSvc  *service.WorkflowService
	Docs         service.DocumentStore
}

// NewRouter mounts the v1 API. Role gates here mirror the checks the
// services enforce; the service layer remains authoritative.
func NewRouter(deps RouterDeps) *gin.Engine {
	if deps.Config.App.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	RegisterValidators()

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestLogger(deps.Log))
	r.Use(MetricsMiddleware(deps.Metrics))
	r.Use(RateLimitMiddleware(deps.Config.RateLimit.RequestsPerSecond, deps.Config.RateLimit.BurstSize))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "version": deps.Config.App.Version})
	})
	r.GET("/metrics", gin.WrapH(metrics.MetricsHandler()))

	authHandler := NewAuthHandler(deps.AuthSvc)
	referralHandler := NewReferralHandler(deps.ReferralSvc)
	paHandler := NewPACodeHandler(deps.PASvc)
	admissionHandler := NewAdmissionHandler(deps.AdmissionSvc)
	claimHandler := NewClaimHandler(deps.ClaimSvc, deps.PASvc, deps.Docs)
	workflowHandler := NewWorkflowHandler(deps.WorkflowSvc)

	api := r.Group("/api/v1")

	authGroup := api.Group("/auth")
	authGroup.Use(RateLimitMiddleware(float64(deps.Config.RateLimit.AuthRequestsPerMinute)/60.0, 5))
	{
		authGroup.POST("/login", authHandler.Login)
		authGroup.POST("/refresh", authHandler.Refresh)
	}

	protected := api.Group("")
	protected.Use(AuthMiddleware(deps.JWTManager))
	{
		protected.POST("/auth/change-password", authHandler.ChangePassword)

		referrals := protected.Group("/referrals")
		{
			referrals.POST("", RequireRoles(domain.RoleFacilityOfficer, domain.RoleDoctor), referralHandler.Create)
			referrals.GET("", referralHandler.List)
			referrals.GET("/:id", referralHandler.Get)
			referrals.POST("/:id/approve", RequireRoles(domain.RoleClaimsReviewer), referralHandler.Approve)
			referrals.POST("/:id/deny", RequireRoles(domain.RoleClaimsReviewer), referralHandler.Deny)
			referrals.POST("/:id/validate-utn", RequireRoles(domain.RoleFacilityOfficer, domain.RoleDoctor), referralHandler.ValidateUTN)
			referrals.GET("/:id/can-admit", admissionHandler.CanAdmit)
		}

		paCodes := protected.Group("/pa-codes")
		{
			paCodes.POST("", RequireRoles(domain.RoleFacilityOfficer, domain.RoleDoctor), paHandler.Generate)
			paCodes.POST("/:id/approve", RequireRoles(domain.RoleClaimsReviewer), paHandler.Approve)
			paCodes.POST("/:id/reject", RequireRoles(domain.RoleClaimsReviewer), paHandler.Reject)
			paCodes.POST("/:id/mark-used", RequireRoles(domain.RoleFacilityOfficer, domain.RoleClaimsReviewer), paHandler.MarkUsed)
			paCodes.POST("/:id/cancel", RequireRoles(domain.RoleClaimsReviewer, domain.RoleFacilityOfficer), paHandler.Cancel)
			paCodes.GET("/verify/:code", paHandler.Verify)
		}

		admissions := protected.Group("/admissions")
		{
			admissions.POST("", RequireRoles(domain.RoleFacilityOfficer, domain.RoleDoctor), admissionHandler.Create)
			admissions.GET("/:id", admissionHandler.Get)
			admissions.POST("/:id/discharge", RequireRoles(domain.RoleFacilityOfficer, domain.RoleDoctor), admissionHandler.Discharge)
		}

		claims := protected.Group("/claims")
		{
			claims.POST("", RequireRoles(domain.RoleFacilityOfficer, domain.RoleDoctor), claimHandler.Create)
			claims.GET("", claimHandler.List)
			claims.GET("/:id", claimHandler.Get)
			claims.POST("/:id/lines/bundle", RequireRoles(domain.RoleFacilityOfficer, domain.RoleDoctor), claimHandler.AddBundleLine)
			claims.POST("/:id/lines/ffs", RequireRoles(domain.RoleFacilityOfficer, domain.RoleDoctor), claimHandler.AddFFSLine)
			claims.POST("/:id/diagnoses", RequireRoles(domain.RoleFacilityOfficer, domain.RoleDoctor), claimHandler.AddDiagnosis)
			claims.GET("/:id/classification", claimHandler.Classify)
			claims.GET("/:id/compliance", claimHandler.ComplianceChecks)
			claims.POST("/:id/documents", RequireRoles(domain.RoleFacilityOfficer, domain.RoleDoctor), claimHandler.UploadDocument)

			claims.POST("/:id/lines/:lineId/validate", RequireRoles(domain.RoleDoctor, domain.RolePharmacist), claimHandler.ValidateLine)
			claims.POST("/:id/diagnoses/:diagnosisId/validate", RequireRoles(domain.RoleDoctor), claimHandler.ValidateDiagnosis)

			claims.POST("/:id/submit", RequireRoles(domain.RoleFacilityOfficer), workflowHandler.Submit)
			claims.POST("/:id/doctor-approve", RequireRoles(domain.RoleDoctor), workflowHandler.DoctorApprove)
			claims.POST("/:id/doctor-reject", RequireRoles(domain.RoleDoctor), workflowHandler.DoctorReject)
			claims.POST("/:id/pharmacist-approve", RequireRoles(domain.RolePharmacist), workflowHandler.PharmacistApprove)
			claims.POST("/:id/pharmacist-reject", RequireRoles(domain.RolePharmacist), workflowHandler.PharmacistReject)
			claims.POST("/:id/review", RequireRoles(domain.RoleClaimsReviewer), workflowHandler.Review)
			claims.POST("/:id/confirm", RequireRoles(domain.RoleClaimsConfirmer), workflowHandler.Confirm)
			claims.POST("/:id/approve", RequireRoles(domain.RoleClaimsApprover), workflowHandler.Approve)
			claims.POST("/:id/reject", RequireRoles(domain.RoleClaimsReviewer, domain.RoleClaimsConfirmer, domain.RoleClaimsApprover), workflowHandler.Reject)
		}
	}

	return r
}
