// file: internal/services/types.go
package services

import (
	"time"

	"bridgeus/internal/models"
)

// ===============================
// TASK TYPES
// ===============================

// TaskInput is the company's task form
type TaskInput struct {
	Title       string            `json:"title" validate:"required,max=100"`
	Description string            `json:"description" validate:"max=5000"`
	Deadline    string            `json:"deadline,omitempty" validate:"omitempty,datetime=2006-01-02"`
	Reward      string            `json:"reward,omitempty" validate:"max=50"`
	Categories  []string          `json:"categories" validate:"omitempty,max=9,dive,category"`
	Status      models.TaskStatus `json:"status,omitempty" validate:"omitempty,task_status"`
}

// TaskUpdateInput changes only the fields that are set
type TaskUpdateInput struct {
	Title       *string            `json:"title,omitempty" validate:"omitempty,max=100"`
	Description *string            `json:"description,omitempty" validate:"omitempty,max=5000"`
	Deadline    *string            `json:"deadline,omitempty"`
	Reward      *string            `json:"reward,omitempty" validate:"omitempty,max=50"`
	Categories  []string           `json:"categories,omitempty" validate:"omitempty,max=9,dive,category"`
	Status      *models.TaskStatus `json:"status,omitempty" validate:"omitempty,task_status"`
}

// ===============================
// APPLICATION TYPES
// ===============================

// ApplyRequest submits a student's application. When Snapshot is nil the
// student's profile is loaded to build it.
type ApplyRequest struct {
	StudentID string                  `json:"-" validate:"required"`
	TaskID    string                  `json:"taskId" validate:"required"`
	Message   string                  `json:"message,omitempty" validate:"max=2000"`
	Snapshot  *models.StudentSnapshot `json:"-"`
}

// ReviewRequest approves or rejects an application. Empty names are
// looked up from the task and company documents.
type ReviewRequest struct {
	ApplicationID string `json:"-" validate:"required"`
	CompanyID     string `json:"-" validate:"required"`
	CompanyName   string `json:"companyName,omitempty"`
	TaskID        string `json:"taskId,omitempty"`
	TaskTitle     string `json:"taskTitle,omitempty"`
	ReviewNote    string `json:"reviewNote,omitempty" validate:"max=1000"`
}

// ===============================
// PROFILE TYPES
// ===============================

// UpdateStudentProfileRequest holds editable student fields
type UpdateStudentProfileRequest struct {
	Name       *string `json:"name,omitempty" validate:"omitempty,min=1,max=100"`
	University *string `json:"university,omitempty" validate:"omitempty,max=100"`
	Faculty    *string `json:"faculty,omitempty" validate:"omitempty,max=100"`
	Year       *int    `json:"year,omitempty" validate:"omitempty,min=1,max=6"`
	Bio        *string `json:"bio,omitempty" validate:"omitempty,max=1000"`
}

// UpdateCompanyProfileRequest holds editable company fields
type UpdateCompanyProfileRequest struct {
	CompanyName        *string `json:"companyName,omitempty" validate:"omitempty,min=1,max=100"`
	RepresentativeName *string `json:"representativeName,omitempty" validate:"omitempty,max=100"`
	Description        *string `json:"description,omitempty" validate:"omitempty,max=2000"`
}

// ===============================
// AUTH TYPES
// ===============================

// SignUpRequest creates a password account
type SignUpRequest struct {
	Email           string `json:"email" validate:"required,email"`
	Password        string `json:"password" validate:"required"`
	ConfirmPassword string `json:"confirmPassword,omitempty" validate:"omitempty,eqfield=Password"`
	DisplayName     string `json:"displayName,omitempty" validate:"max=100"`
	UserAgent       string `json:"-"`
	IPAddress       string `json:"-"`
}

// SignInRequest signs in with email and password
type SignInRequest struct {
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required"`
	UserAgent string `json:"-"`
	IPAddress string `json:"-"`
}

// GoogleSignInRequest completes the OAuth authorization code flow
type GoogleSignInRequest struct {
	Code      string `json:"code" validate:"required"`
	UserAgent string `json:"-"`
	IPAddress string `json:"-"`
}

// ConfirmPasswordResetRequest consumes an emailed reset token
type ConfirmPasswordResetRequest struct {
	Token           string `json:"token" validate:"required"`
	NewPassword     string `json:"newPassword" validate:"required"`
	ConfirmPassword string `json:"confirmPassword" validate:"required,eqfield=NewPassword"`
}

// AuthResult is returned by every successful sign-in
type AuthResult struct {
	Account      *models.Account `json:"account"`
	Token        string          `json:"token"`
	TokenType    string          `json:"tokenType"`
	ExpiresAt    time.Time       `json:"expiresAt"`
	SessionID    string          `json:"-"`
	IsNewAccount bool            `json:"isNewAccount"`
}

// TokenClaims are the verified contents of a session token
type TokenClaims struct {
	UserID    string
	SessionID string
	Email     string
	ExpiresAt time.Time
}

// AuthState is one observation of a session. SignedIn false carries the
// reason the session ended.
type AuthState struct {
	SignedIn    bool   `json:"signedIn"`
	UserID      string `json:"userId,omitempty"`
	Email       string `json:"email,omitempty"`
	DisplayName string `json:"displayName,omitempty"`
	SessionID   string `json:"-"`
	Reason      string `json:"reason,omitempty"`
}

// ===============================
// RECONCILIATION TYPES
// ===============================

// ReconcileResult describes one counter check
type ReconcileResult struct {
	Kind    string `json:"kind"` // "task" or "company"
	ID      string `json:"id"`
	Field   string `json:"field"`
	Before  int    `json:"before"`
	After   int    `json:"after"`
	Changed bool   `json:"changed"`
}

// ReconcileReport summarizes a full reconciliation run
type ReconcileReport struct {
	Tasks     []*ReconcileResult `json:"tasks"`
	Companies []*ReconcileResult `json:"companies"`
	Repaired  int                `json:"repaired"`
	Duration  time.Duration      `json:"duration"`
}
