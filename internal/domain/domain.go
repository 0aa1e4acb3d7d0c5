package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var ErrUserNotFound = errors.New("user not found")

type Role string

const (
	RoleAdmin           Role = "admin"
	RoleDoctor          Role = "doctor"
	RolePharmacist      Role = "pharmacist"
	RoleClaimsReviewer  Role = "claims_reviewer"
	RoleClaimsConfirmer Role = "claims_confirmer"
	RoleClaimsApprover  Role = "claims_approver"
	RoleFacilityOfficer Role = "facility_officer"
)

func (r Role) IsValid() bool {
	switch r {
	case RoleAdmin, RoleDoctor, RolePharmacist, RoleClaimsReviewer,
		RoleClaimsConfirmer, RoleClaimsApprover, RoleFacilityOfficer:
		return true
	}
	return false
}

// Actor identifies who performs a core operation. Every mutating service
// call takes an explicit Actor; there is no ambient current-user state.
type Actor struct {
	UserID     uuid.UUID
	Role       Role
	FacilityID *uuid.UUID
	IPAddress  string
}

type User struct {
	ID        uuid.UUID  `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	CreatedAt time.Time  `gorm:"autoCreateTime"`
	UpdatedAt time.Time  `gorm:"autoUpdateTime"`
	DeletedAt *time.Time `gorm:"index"`

	Email        string `gorm:"column:email;type:varchar(255);uniqueIndex;not null"`
	PasswordHash string `gorm:"column:password_hash;type:varchar(255);not null"`
	FirstName    string `gorm:"column:first_name;type:varchar(100);not null"`
	LastName     string `gorm:"column:last_name;type:varchar(100);not null"`
	Role         Role   `gorm:"column:role;type:varchar(30);not null;index"`

	// Facility officers and doctors act on behalf of a facility.
	FacilityID *uuid.UUID `gorm:"column:facility_id;type:uuid;index"`

	IsActive         bool       `gorm:"column:is_active;default:true;index"`
	FailedLoginCount int        `gorm:"column:failed_login_count;default:0"`
	LockedUntil      *time.Time `gorm:"column:locked_until"`
	LastLoginAt      *time.Time `gorm:"column:last_login_at"`
}

func (User) TableName() string {
	return "auth.users"
}

// IsLocked returns true if the account is temporarily locked due to failed logins.
func (u *User) IsLocked() bool {
	return u.LockedUntil != nil && time.Now().Before(*u.LockedUntil)
}

type AuditAction string

const (
	ActionCreate           AuditAction = "create"
	ActionRead             AuditAction = "read"
	ActionUpdate           AuditAction = "update"
	ActionStatusTransition AuditAction = "status_transition"
	ActionLogin            AuditAction = "login"
)

// AuditLog is append-only. Status transitions record the prior and new
// state in OldValue/NewValue together with the reviewer's comment.
type AuditLog struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	OccurredAt time.Time `gorm:"autoCreateTime;index"`

	// Who
	ActorID   uuid.UUID `gorm:"column:actor_id;type:uuid;not null;index"`
	ActorRole Role      `gorm:"column:actor_role;type:varchar(30);not null"`
	IPAddress string    `gorm:"column:ip_address;type:varchar(45)"` // Supports IPv6

	// What
	Action       AuditAction `gorm:"column:action;type:varchar(30);not null;index"`
	ResourceType string      `gorm:"column:resource_type;type:varchar(50);not null;index"`
	ResourceID   string      `gorm:"column:resource_id;type:varchar(50);index"`

	Field    string `gorm:"column:field;type:varchar(100)"`
	OldValue string `gorm:"column:old_value;type:text"`
	NewValue string `gorm:"column:new_value;type:text"`
	Comment  string `gorm:"column:comment;type:text"`
}

func (AuditLog) TableName() string {
	return "audit.logs"
}

type TokenPair struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
	TokenType    string    `json:"token_type"` // Always "Bearer"
}

type Claims struct {
	UserID     uuid.UUID  `json:"sub"`
	Email      string     `json:"email"`
	Role       Role       `json:"role"`
	FacilityID *uuid.UUID `json:"facility_id,omitempty"`
}
