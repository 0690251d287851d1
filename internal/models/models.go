// file: internal/models/models.go
package models

import (
	"time"
)

// ===============================
// USERS
// ===============================

// UserType discriminates the two kinds of profile documents
type UserType string

const (
	UserTypeStudent UserType = "student"
	UserTypeCompany UserType = "company"
)

// User is either a *Student or a *Company. The set is closed: consumers
// switch on the concrete type.
type User interface {
	GetID() string
	GetEmail() string
	GetType() UserType
	DisplayName() string
	isUser()
}

// Student is a profile of userType "student"
type Student struct {
	ID                 string    `json:"id"`
	Email              string    `json:"email"`
	Name               string    `json:"name"`
	University         string    `json:"university,omitempty"`
	Faculty            string    `json:"faculty,omitempty"`
	Year               int       `json:"year,omitempty"`
	Bio                string    `json:"bio,omitempty"`
	AvatarID           string    `json:"avatarId,omitempty"`
	AvatarURL          string    `json:"avatarUrl,omitempty"`
	AppliedTaskCount   int       `json:"appliedTaskCount"`
	CompletedTaskCount int       `json:"completedTaskCount"`
	CreatedAt          time.Time `json:"createdAt"`
	UpdatedAt          time.Time `json:"updatedAt"`
}

func (s *Student) GetID() string       { return s.ID }
func (s *Student) GetEmail() string    { return s.Email }
func (s *Student) GetType() UserType   { return UserTypeStudent }
func (s *Student) DisplayName() string { return s.Name }
func (*Student) isUser()               {}

// Company is a profile of userType "company"
type Company struct {
	ID                 string    `json:"id"`
	Email              string    `json:"email"`
	CompanyName        string    `json:"companyName"`
	RepresentativeName string    `json:"representativeName"`
	Description        string    `json:"description,omitempty"`
	LogoURL            string    `json:"logoUrl,omitempty"`
	AvatarID           string    `json:"avatarId,omitempty"`
	PublishedTaskCount int       `json:"publishedTaskCount"`
	CreatedAt          time.Time `json:"createdAt"`
	UpdatedAt          time.Time `json:"updatedAt"`
}

func (c *Company) GetID() string       { return c.ID }
func (c *Company) GetEmail() string    { return c.Email }
func (c *Company) GetType() UserType   { return UserTypeCompany }
func (c *Company) DisplayName() string { return c.CompanyName }
func (*Company) isUser()               {}

// StudentSnapshot is the part of a student profile copied onto applications
type StudentSnapshot struct {
	Name       string `json:"studentName"`
	University string `json:"studentUniversity,omitempty"`
	Year       int    `json:"studentYear,omitempty"`
	AvatarURL  string `json:"studentAvatarUrl,omitempty"`
}

// SnapshotOf captures the denormalized student fields
func SnapshotOf(s *Student) StudentSnapshot {
	return StudentSnapshot{
		Name:       s.Name,
		University: s.University,
		Year:       s.Year,
		AvatarURL:  s.AvatarURL,
	}
}

// ===============================
// TASKS
// ===============================

// TaskStatus is the lifecycle state of a task
type TaskStatus string

const (
	TaskStatusDraft       TaskStatus = "draft"
	TaskStatusPublished   TaskStatus = "published"
	TaskStatusUnpublished TaskStatus = "unpublished"
	TaskStatusClosed      TaskStatus = "closed"
)

// Valid reports whether s is a known status
func (s TaskStatus) Valid() bool {
	switch s {
	case TaskStatusDraft, TaskStatusPublished, TaskStatusUnpublished, TaskStatusClosed:
		return true
	}
	return false
}

// Task is the canonical in-memory task. Legacy documents are normalized
// before they reach this shape.
type Task struct {
	ID             string     `json:"id"`
	Title          string     `json:"title"`
	CompanyID      string     `json:"companyId"`
	Company        string     `json:"company"`
	CompanyLogoURL string     `json:"companyLogoUrl,omitempty"`
	Description    string     `json:"description,omitempty"`
	Deadline       string     `json:"deadline,omitempty"`
	Reward         string     `json:"reward,omitempty"`
	Categories     []string   `json:"categories"`
	Status         TaskStatus `json:"status"`
	ApplicantCount int        `json:"applicantCount"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
}

// HasCategory reports whether the task is filed under category
func (t *Task) HasCategory(category string) bool {
	for _, c := range t.Categories {
		if c == category {
			return true
		}
	}
	return false
}

// TaskView is a task as seen by one student
type TaskView struct {
	Task
	Applied   bool `json:"applied"`
	Favorited bool `json:"favorited"`
}

// AppliedTask joins a student's application with its task
type AppliedTask struct {
	Task
	ApplicationStatus ApplicationStatus `json:"applicationStatus"`
	AppliedAt         time.Time         `json:"appliedAt"`
}

// TaskFilter selects tasks for the student task list
type TaskFilter struct {
	Category string `json:"category"`
	Search   string `json:"search"`
}

// ===============================
// APPLICATIONS
// ===============================

// ApplicationStatus is the review state of an application
type ApplicationStatus string

const (
	ApplicationStatusPending   ApplicationStatus = "pending"
	ApplicationStatusApproved  ApplicationStatus = "approved"
	ApplicationStatusRejected  ApplicationStatus = "rejected"
	ApplicationStatusCompleted ApplicationStatus = "completed"
)

// Application is keyed by ApplicationID(studentID, taskID)
type Application struct {
	ID         string            `json:"id"`
	UserID     string            `json:"userId"`
	TaskID     string            `json:"taskId"`
	Message    string            `json:"message,omitempty"`
	AppliedAt  time.Time         `json:"appliedAt"`
	Status     ApplicationStatus `json:"status"`
	ReviewedAt *time.Time        `json:"reviewedAt,omitempty"`
	ReviewNote string            `json:"reviewNote,omitempty"`
	StudentSnapshot
}

// ApplicationID is the composite key of a student's application to a task
func ApplicationID(studentID, taskID string) string {
	return studentID + "_" + taskID
}

// ===============================
// FAVORITES
// ===============================

// Favorite marks a task saved by a student
type Favorite struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	TaskID    string    `json:"taskId"`
	CreatedAt time.Time `json:"createdAt"`
}

// FavoriteID is the composite key of a favorite
func FavoriteID(studentID, taskID string) string {
	return studentID + "_" + taskID
}

// ===============================
// CHAT
// ===============================

// ChatRoom connects one company and one student about one task
type ChatRoom struct {
	ID                string         `json:"id"`
	Participants      []string       `json:"participants"`
	TaskID            string         `json:"taskId"`
	TaskTitle         string         `json:"taskTitle"`
	CompanyID         string         `json:"companyId"`
	CompanyName       string         `json:"companyName"`
	StudentID         string         `json:"studentId"`
	StudentName       string         `json:"studentName"`
	LastMessage       string         `json:"lastMessage,omitempty"`
	LastMessageAt     *time.Time     `json:"lastMessageAt,omitempty"`
	UnreadCountByUser map[string]int `json:"unreadCountByUser"`
	CreatedAt         time.Time      `json:"createdAt"`
	UpdatedAt         time.Time      `json:"updatedAt"`
}

// ChatRoomID is the id given to newly created rooms
func ChatRoomID(taskID, companyID, studentID string) string {
	return taskID + "_" + companyID + "_" + studentID
}

// HasParticipant reports whether userID belongs to the room
func (r *ChatRoom) HasParticipant(userID string) bool {
	for _, p := range r.Participants {
		if p == userID {
			return true
		}
	}
	return false
}

// OtherParticipant returns the participant that is not userID
func (r *ChatRoom) OtherParticipant(userID string) string {
	for _, p := range r.Participants {
		if p != userID {
			return p
		}
	}
	return ""
}

// Message is one chat message
type Message struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	RoomID    string    `json:"roomId"`
	SenderID  string    `json:"senderId"`
	CreatedAt time.Time `json:"createdAt"`
}

// ===============================
// NOTIFICATIONS
// ===============================

// NotificationType names the event a notification reports
type NotificationType string

const (
	NotificationNewTask             NotificationType = "new_task"
	NotificationApplicationApproved NotificationType = "application_approved"
	NotificationApplicationRejected NotificationType = "application_rejected"
	NotificationTaskReminder        NotificationType = "task_reminder"
	NotificationMessage             NotificationType = "message"
	NotificationTaskCompleted       NotificationType = "task_completed"
	NotificationNewApplication      NotificationType = "new_application"
)

// Notification is addressed to one user
type Notification struct {
	ID          string           `json:"id"`
	UserID      string           `json:"userId"`
	Type        NotificationType `json:"type"`
	Title       string           `json:"title"`
	Body        string           `json:"body"`
	Read        bool             `json:"read"`
	CreatedAt   time.Time        `json:"createdAt"`
	TaskID      string           `json:"taskId,omitempty"`
	ChatID      string           `json:"chatId,omitempty"`
	TaskTitle   string           `json:"taskTitle,omitempty"`
	CompanyName string           `json:"companyName,omitempty"`
	StudentName string           `json:"studentName,omitempty"`
}

// ===============================
// AUTH RECORDS
// ===============================

// Sign-in providers recorded on accounts
const (
	ProviderPassword = "password"
	ProviderGoogle   = "google.com"
)

// Account is the credential record behind a user id
type Account struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	DisplayName  string    `json:"displayName"`
	Providers    []string  `json:"providers"`
	CreatedAt    time.Time `json:"createdAt"`
}

// AuthSession backs one issued token. Deleting it revokes the token.
type AuthSession struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	ExpiresAt time.Time `json:"expiresAt"`
	UserAgent string    `json:"userAgent,omitempty"`
	IPAddress string    `json:"ipAddress,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// PasswordReset is keyed by the SHA-256 of the emailed token
type PasswordReset struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Email     string    `json:"email"`
	ExpiresAt time.Time `json:"expiresAt"`
	CreatedAt time.Time `json:"createdAt"`
}
