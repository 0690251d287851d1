package repositories

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"bridgeus/internal/models"
	"bridgeus/internal/store"
)

// ErrUnknownUserType is returned for profile documents whose userType is
// neither student nor company.
var ErrUnknownUserType = errors.New("unknown user type")

// deadlineLayout is how task deadlines are presented
const deadlineLayout = "2006-01-02"

// fields reads loosely typed document values
type fields map[string]interface{}

func (f fields) str(key string) string {
	switch v := f[key].(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
	return ""
}

func (f fields) int(key string) int {
	switch v := f[key].(type) {
	case float64:
		return int(v)
	case string:
		n, _ := strconv.Atoi(strings.TrimSpace(v))
		return n
	}
	return 0
}

func (f fields) boolean(key string) (value, present bool) {
	v, ok := f[key].(bool)
	return v, ok
}

func (f fields) time(key string) time.Time {
	s, ok := f[key].(string)
	if !ok {
		return time.Time{}
	}
	t, err := store.ParseTime(s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func (f fields) timePtr(key string) *time.Time {
	t := f.time(key)
	if t.IsZero() {
		return nil
	}
	return &t
}

func (f fields) strings(key string) ([]string, bool) {
	raw, ok := f[key].([]interface{})
	if !ok {
		return nil, false
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out, true
}

func (f fields) intMap(key string) map[string]int {
	out := make(map[string]int)
	raw, ok := f[key].(map[string]interface{})
	if !ok {
		return out
	}
	for k, v := range raw {
		if n, ok := v.(float64); ok {
			out[k] = int(n)
		}
	}
	return out
}

// ===============================
// TASKS
// ===============================

// decodeTask normalizes legacy task documents: categories wins over the
// singular category, a missing status reads as published and numeric
// rewards read as strings.
func decodeTask(doc *store.Document) (*models.Task, error) {
	f := fields(doc.Data)

	categories, ok := f.strings("categories")
	if !ok {
		categories = []string{}
		if c := f.str("category"); c != "" {
			categories = []string{c}
		}
	}

	status := models.TaskStatus(f.str("status"))
	if status == "" {
		status = models.TaskStatusPublished
	}

	return &models.Task{
		ID:             doc.ID,
		Title:          f.str("title"),
		CompanyID:      f.str("companyId"),
		Company:        f.str("company"),
		CompanyLogoURL: f.str("companyLogoUrl"),
		Description:    f.str("description"),
		Deadline:       normalizeDeadline(f.str("deadline")),
		Reward:         f.str("reward"),
		Categories:     categories,
		Status:         status,
		ApplicantCount: f.int("applicantCount"),
		CreatedAt:      f.time("createdAt"),
		UpdatedAt:      f.time("updatedAt"),
	}, nil
}

func normalizeDeadline(raw string) string {
	if raw == "" {
		return ""
	}
	if _, err := time.Parse(deadlineLayout, raw); err == nil {
		return raw
	}
	if t, err := store.ParseTime(raw); err == nil {
		return t.Format(deadlineLayout)
	}
	return raw
}

// legacyCategory is the value written to the singular category field
func legacyCategory(categories []string) interface{} {
	if len(categories) == 0 {
		return nil
	}
	return categories[0]
}

// ===============================
// APPLICATIONS & FAVORITES
// ===============================

func decodeApplication(doc *store.Document) (*models.Application, error) {
	f := fields(doc.Data)
	status := models.ApplicationStatus(f.str("status"))
	if status == "" {
		status = models.ApplicationStatusPending
	}
	return &models.Application{
		ID:         doc.ID,
		UserID:     f.str("userId"),
		TaskID:     f.str("taskId"),
		Message:    f.str("message"),
		AppliedAt:  f.time("appliedAt"),
		Status:     status,
		ReviewedAt: f.timePtr("reviewedAt"),
		ReviewNote: f.str("reviewNote"),
		StudentSnapshot: models.StudentSnapshot{
			Name:       f.str("studentName"),
			University: f.str("studentUniversity"),
			Year:       f.int("studentYear"),
			AvatarURL:  f.str("studentAvatarUrl"),
		},
	}, nil
}

func decodeFavorite(doc *store.Document) (*models.Favorite, error) {
	f := fields(doc.Data)
	return &models.Favorite{
		ID:        doc.ID,
		UserID:    f.str("userId"),
		TaskID:    f.str("taskId"),
		CreatedAt: f.time("createdAt"),
	}, nil
}

// ===============================
// CHAT
// ===============================

func decodeChatRoom(doc *store.Document) (*models.ChatRoom, error) {
	f := fields(doc.Data)
	participants, _ := f.strings("participants")
	return &models.ChatRoom{
		ID:                doc.ID,
		Participants:      participants,
		TaskID:            f.str("taskId"),
		TaskTitle:         f.str("taskTitle"),
		CompanyID:         f.str("companyId"),
		CompanyName:       f.str("companyName"),
		StudentID:         f.str("studentId"),
		StudentName:       f.str("studentName"),
		LastMessage:       f.str("lastMessage"),
		LastMessageAt:     f.timePtr("lastMessageAt"),
		UnreadCountByUser: f.intMap("unreadCountByUser"),
		CreatedAt:         f.time("createdAt"),
		UpdatedAt:         f.time("updatedAt"),
	}, nil
}

func decodeMessage(doc *store.Document) (*models.Message, error) {
	f := fields(doc.Data)
	return &models.Message{
		ID:        doc.ID,
		Text:      f.str("text"),
		RoomID:    f.str("roomId"),
		SenderID:  f.str("senderId"),
		CreatedAt: f.time("createdAt"),
	}, nil
}

// ===============================
// NOTIFICATIONS
// ===============================

// decodeNotification reads read state from "read", falling back to the
// legacy "isRead", and the body from "body", falling back to "message".
func decodeNotification(doc *store.Document) (*models.Notification, error) {
	f := fields(doc.Data)

	read, ok := f.boolean("read")
	if !ok {
		read, _ = f.boolean("isRead")
	}
	body := f.str("body")
	if body == "" {
		body = f.str("message")
	}

	return &models.Notification{
		ID:          doc.ID,
		UserID:      f.str("userId"),
		Type:        models.NotificationType(f.str("type")),
		Title:       f.str("title"),
		Body:        body,
		Read:        read,
		CreatedAt:   f.time("createdAt"),
		TaskID:      f.str("taskId"),
		ChatID:      f.str("chatId"),
		TaskTitle:   f.str("taskTitle"),
		CompanyName: f.str("companyName"),
		StudentName: f.str("studentName"),
	}, nil
}

// ===============================
// USERS & AUTH
// ===============================

func decodeUser(doc *store.Document) (models.User, error) {
	f := fields(doc.Data)
	switch models.UserType(f.str("userType")) {
	case models.UserTypeStudent:
		return &models.Student{
			ID:                 doc.ID,
			Email:              f.str("email"),
			Name:               f.str("name"),
			University:         f.str("university"),
			Faculty:            f.str("faculty"),
			Year:               f.int("year"),
			Bio:                f.str("bio"),
			AvatarID:           f.str("avatarId"),
			AvatarURL:          f.str("avatarUrl"),
			AppliedTaskCount:   f.int("appliedTaskCount"),
			CompletedTaskCount: f.int("completedTaskCount"),
			CreatedAt:          f.time("createdAt"),
			UpdatedAt:          f.time("updatedAt"),
		}, nil
	case models.UserTypeCompany:
		return &models.Company{
			ID:                 doc.ID,
			Email:              f.str("email"),
			CompanyName:        f.str("companyName"),
			RepresentativeName: f.str("representativeName"),
			Description:        f.str("description"),
			LogoURL:            f.str("logoUrl"),
			AvatarID:           f.str("avatarId"),
			PublishedTaskCount: f.int("publishedTaskCount"),
			CreatedAt:          f.time("createdAt"),
			UpdatedAt:          f.time("updatedAt"),
		}, nil
	default:
		return nil, fmt.Errorf("%w %q for %s", ErrUnknownUserType, f.str("userType"), doc.ID)
	}
}

func decodeAccount(doc *store.Document) (*models.Account, error) {
	f := fields(doc.Data)
	providers, _ := f.strings("providers")
	return &models.Account{
		ID:           doc.ID,
		Email:        f.str("email"),
		PasswordHash: f.str("passwordHash"),
		DisplayName:  f.str("displayName"),
		Providers:    providers,
		CreatedAt:    f.time("createdAt"),
	}, nil
}

func decodeAuthSession(doc *store.Document) (*models.AuthSession, error) {
	f := fields(doc.Data)
	return &models.AuthSession{
		ID:        doc.ID,
		UserID:    f.str("userId"),
		ExpiresAt: f.time("expiresAt"),
		UserAgent: f.str("userAgent"),
		IPAddress: f.str("ipAddress"),
		CreatedAt: f.time("createdAt"),
	}, nil
}

func decodePasswordReset(doc *store.Document) (*models.PasswordReset, error) {
	f := fields(doc.Data)
	return &models.PasswordReset{
		ID:        doc.ID,
		UserID:    f.str("userId"),
		Email:     f.str("email"),
		ExpiresAt: f.time("expiresAt"),
		CreatedAt: f.time("createdAt"),
	}, nil
}
