package docs

// Endpoint annotations for swag. Regenerate docTemplate after editing.

// HealthCheck godoc
// @Summary Health check endpoint
// @Description Reports the store, cache and collaborator status
// @Tags System
// @Produce json
// @Success 200 {object} HealthCheckResponse "API is healthy"
// @Failure 503 {object} HealthCheckResponse "A dependency is down"
// @Router /health [get]
func _() {}

// ===============================
// AUTHENTICATION
// ===============================

// Register godoc
// @Summary Register a new account
// @Description Creates the account and its student or company profile, then signs in
// @Tags Authentication
// @Accept json
// @Produce json
// @Param registerRequest body RegisterRequest true "Registration details"
// @Success 201 {object} SessionResponse "Account created"
// @Failure 400 {object} ErrorResponse "Validation error"
// @Failure 409 {object} ErrorResponse "Email already in use"
// @Failure 429 {object} ErrorResponse "Rate limit exceeded"
// @Router /auth/register [post]
func _() {}

// Login godoc
// @Summary Sign in with email and password
// @Tags Authentication
// @Accept json
// @Produce json
// @Param loginRequest body LoginRequest true "Credentials"
// @Success 200 {object} SessionResponse "Signed in"
// @Failure 401 {object} ErrorResponse "Invalid credentials"
// @Failure 429 {object} ErrorResponse "Too many sign-in attempts"
// @Router /auth/login [post]
func _() {}

// GoogleSignIn godoc
// @Summary Sign in with a Google authorization code
// @Description Returns 201 when the Google account was new
// @Tags Authentication
// @Accept json
// @Produce json
// @Success 200 {object} SessionResponse "Signed in"
// @Success 201 {object} SessionResponse "Account created"
// @Failure 401 {object} ErrorResponse "Code exchange failed"
// @Router /auth/google [post]
func _() {}

// Logout godoc
// @Summary Revoke the bearer token
// @Tags Authentication
// @Security BearerAuth
// @Success 204 "Signed out"
// @Router /auth/logout [post]
func _() {}

// Me godoc
// @Summary Current session with profile
// @Tags Authentication
// @Security BearerAuth
// @Produce json
// @Success 200 {object} SessionResponse
// @Failure 401 {object} ErrorResponse
// @Router /auth/me [get]
func _() {}

// ===============================
// TASKS
// ===============================

// ListTasks godoc
// @Summary Published tasks visible to the caller
// @Tags Tasks
// @Security BearerAuth
// @Produce json
// @Param category query string false "Category filter, All for none"
// @Param search query string false "Case-insensitive title search"
// @Success 200 {object} APIResponse{data=[]Task}
// @Router /tasks [get]
func _() {}

// CreateTask godoc
// @Summary Create a task
// @Tags Tasks
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param task body TaskRequest true "Task"
// @Success 201 {object} APIResponse{data=Task}
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse "Companies only"
// @Router /tasks [post]
func _() {}

// GetTask godoc
// @Summary Task detail with the caller's applied and favorited flags
// @Tags Tasks
// @Security BearerAuth
// @Produce json
// @Param taskId path string true "Task ID"
// @Success 200 {object} APIResponse{data=Task}
// @Failure 404 {object} ErrorResponse
// @Router /tasks/{taskId} [get]
func _() {}

// ===============================
// APPLICATIONS
// ===============================

// Apply godoc
// @Summary Apply to a task
// @Tags Applications
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param taskId path string true "Task ID"
// @Param application body ApplyRequest false "Cover message"
// @Success 201 {object} APIResponse
// @Failure 409 {object} ErrorResponse "Already applied"
// @Router /tasks/{taskId}/application [post]
func _() {}

// Approve godoc
// @Summary Approve an application
// @Description Marks the application approved, opens the chat room and notifies the student
// @Tags Applications
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param applicationId path string true "Application ID"
// @Param review body ReviewRequest false "Review note"
// @Success 200 {object} APIResponse{data=ApprovalResponse}
// @Router /applications/{applicationId}/approve [post]
func _() {}

// ===============================
// CHAT AND NOTIFICATIONS
// ===============================

// SendMessage godoc
// @Summary Send a chat message
// @Tags Chat
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param roomId path string true "Chat room ID"
// @Param message body MessageRequest true "Message"
// @Success 201 {object} APIResponse
// @Failure 403 {object} ErrorResponse "Not a participant"
// @Router /chats/{roomId}/messages [post]
func _() {}

// ListNotifications godoc
// @Summary Notifications, newest first
// @Description meta.extra.unread holds the unread count
// @Tags Notifications
// @Security BearerAuth
// @Produce json
// @Success 200 {object} APIResponse
// @Router /notifications [get]
func _() {}

// SetOnboarding godoc
// @Summary Record onboarding completion for a device
// @Tags Device
// @Accept json
// @Produce json
// @Param X-Device-ID header string true "Device ID"
// @Param onboarding body OnboardingRequest true "Flag"
// @Success 200 {object} APIResponse
// @Router /onboarding [put]
func _() {}
