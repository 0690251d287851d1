package docs

import "time"

// Request and response shapes referenced by the annotations in api_docs.go

// APIResponse is the envelope every endpoint writes
type APIResponse struct {
	Success   bool        `json:"success" example:"true"`
	Data      interface{} `json:"data,omitempty"`
	Meta      *Meta       `json:"meta,omitempty"`
	RequestID string      `json:"request_id,omitempty" example:"req_123456789"`
}

// Meta carries list counts and endpoint specific extras such as the unread count
type Meta struct {
	Count int                    `json:"count" example:"3"`
	Extra map[string]interface{} `json:"extra,omitempty"`
}

// ErrorResponse is the envelope written on failure
type ErrorResponse struct {
	Success bool        `json:"success" example:"false"`
	Error   ErrorDetail `json:"error"`
}

// ErrorDetail describes a failed request
type ErrorDetail struct {
	Type    string            `json:"type" example:"VALIDATION_ERROR"`
	Message string            `json:"message" example:"Invalid request"`
	Fields  []ValidationError `json:"fields,omitempty"`
}

// ValidationError represents one rejected field
type ValidationError struct {
	Field   string `json:"field" example:"email"`
	Message string `json:"message" example:"must be a valid email address"`
	Code    string `json:"code" example:"email"`
}

// HealthCheckResponse represents the health check response
type HealthCheckResponse struct {
	Status    string            `json:"status" example:"healthy"`
	Timestamp time.Time         `json:"timestamp" example:"2024-01-15T10:30:00Z"`
	Services  map[string]string `json:"services,omitempty"`
}

// RegisterRequest creates a student or company account
type RegisterRequest struct {
	Type               string `json:"type" example:"student" enums:"student,company"`
	Email              string `json:"email" example:"student@example.com"`
	Password           string `json:"password" example:"secret123"`
	DisplayName        string `json:"displayName,omitempty" example:"Aiko Tanaka"`
	University         string `json:"university,omitempty" example:"Tokyo University"`
	Faculty            string `json:"faculty,omitempty" example:"Engineering"`
	Year               int    `json:"year,omitempty" example:"3"`
	CompanyName        string `json:"companyName,omitempty" example:"Acme Inc."`
	RepresentativeName string `json:"representativeName,omitempty" example:"Jane Doe"`
}

// LoginRequest signs in with email and password
type LoginRequest struct {
	Email    string `json:"email" example:"student@example.com"`
	Password string `json:"password" example:"secret123"`
}

// SessionResponse is returned by every sign-in flow
type SessionResponse struct {
	Token     string      `json:"token" example:"eyJhbGciOi..."`
	TokenType string      `json:"tokenType" example:"Bearer"`
	UserType  string      `json:"userType" example:"student"`
	User      interface{} `json:"user"`
	Fallback  bool        `json:"fallback,omitempty"`
}

// TaskRequest creates or updates a task
type TaskRequest struct {
	Title       string   `json:"title" example:"Translate a landing page"`
	Description string   `json:"description,omitempty" example:"Japanese to English, about 800 words"`
	Deadline    string   `json:"deadline,omitempty" example:"2026-12-01"`
	Reward      string   `json:"reward,omitempty" example:"5000 JPY"`
	Categories  []string `json:"categories,omitempty" example:"翻訳"`
	Status      string   `json:"status,omitempty" example:"published" enums:"draft,published,unpublished,closed"`
}

// Task is a task as listed to students and companies
type Task struct {
	ID             string    `json:"id" example:"task_01"`
	Title          string    `json:"title"`
	CompanyID      string    `json:"companyId"`
	Company        string    `json:"company"`
	Categories     []string  `json:"categories"`
	Status         string    `json:"status" example:"published"`
	ApplicantCount int       `json:"applicantCount" example:"2"`
	Applied        bool      `json:"applied"`
	Favorited      bool      `json:"favorited"`
	CreatedAt      time.Time `json:"createdAt"`
}

// ApplyRequest carries the optional cover message
type ApplyRequest struct {
	Message string `json:"message,omitempty" example:"I have translated similar pages before."`
}

// ReviewRequest carries the optional review note
type ReviewRequest struct {
	ReviewNote string `json:"reviewNote,omitempty" example:"Welcome aboard"`
}

// ApprovalResponse names the chat room opened by an approval
type ApprovalResponse struct {
	ApplicationID string `json:"applicationId"`
	ChatRoomID    string `json:"chatRoomId"`
}

// MessageRequest sends a chat message
type MessageRequest struct {
	Text string `json:"text" example:"Hello!"`
}

// OnboardingRequest sets the device onboarding flag
type OnboardingRequest struct {
	Completed bool `json:"completed" example:"true"`
}
