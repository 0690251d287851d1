package events

import "time"

// Auth event types
const (
	EventUserRegistered         = "auth.user_registered"
	EventUserSignedIn           = "auth.signed_in"
	EventUserSignedOut          = "auth.signed_out"
	EventPasswordResetRequested = "auth.password_reset_requested"
	EventPasswordResetCompleted = "auth.password_reset_completed"
)

// UserRegisteredEvent is emitted after an account and profile are written
type UserRegisteredEvent struct {
	BaseEvent
	Email    string `json:"email"`
	UserType string `json:"user_type"`
}

func NewUserRegisteredEvent(userID, email, userType string) *UserRegisteredEvent {
	return &UserRegisteredEvent{
		BaseEvent: NewBaseEvent(EventUserRegistered, userID),
		Email:     email,
		UserType:  userType,
	}
}

// SessionEvent covers sign-in and sign-out
type SessionEvent struct {
	BaseEvent
	SessionID string `json:"session_id"`
	Provider  string `json:"provider,omitempty"`
}

func NewSignedInEvent(userID, sessionID, provider string) *SessionEvent {
	return &SessionEvent{
		BaseEvent: NewBaseEvent(EventUserSignedIn, userID),
		SessionID: sessionID,
		Provider:  provider,
	}
}

func NewSignedOutEvent(userID, sessionID string) *SessionEvent {
	return &SessionEvent{
		BaseEvent: NewBaseEvent(EventUserSignedOut, userID),
		SessionID: sessionID,
	}
}

// PasswordResetEvent is emitted when a reset link is issued or consumed
type PasswordResetEvent struct {
	BaseEvent
	Email     string    `json:"email"`
	ExpiresAt time.Time `json:"expires_at,omitempty"`
}

func NewPasswordResetRequestedEvent(userID, email string, expiresAt time.Time) *PasswordResetEvent {
	return &PasswordResetEvent{
		BaseEvent: NewBaseEvent(EventPasswordResetRequested, userID),
		Email:     email,
		ExpiresAt: expiresAt,
	}
}

func NewPasswordResetCompletedEvent(userID, email string) *PasswordResetEvent {
	return &PasswordResetEvent{
		BaseEvent: NewBaseEvent(EventPasswordResetCompleted, userID),
		Email:     email,
	}
}
