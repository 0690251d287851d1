// ===============================
// FILE: internal/handlers/api/v1/users/users_controller.go
// ===============================

package users

import (
	"net/http"
	"strings"

	"bridgeus/internal/device"
	"bridgeus/internal/handlers/api/v1/common"
	"bridgeus/internal/middleware"
	"bridgeus/internal/response"
	"bridgeus/internal/services"
	"bridgeus/internal/utils"

	"go.uber.org/zap"
)

// UserController handles profile and device preference endpoints
type UserController struct {
	serviceCollection *services.ServiceCollection
	preferences       *device.Preferences
	logger            *zap.Logger
	responseBuilder   *response.Builder
}

// NewUserController creates a new user controller
func NewUserController(
	serviceCollection *services.ServiceCollection,
	preferences *device.Preferences,
	logger *zap.Logger,
	responseBuilder *response.Builder,
) *UserController {
	return &UserController{
		serviceCollection: serviceCollection,
		preferences:       preferences,
		logger:            logger,
		responseBuilder:   responseBuilder,
	}
}

// ===============================
// PROFILE ENDPOINTS
// ===============================

// GetUser handles GET /api/v1/users/{userId}
func (c *UserController) GetUser(w http.ResponseWriter, r *http.Request) {
	userID, err := common.PathParam(r, "userId")
	if err != nil {
		c.responseBuilder.WriteError(w, r, err)
		return
	}

	user, err := c.serviceCollection.UserService.GetUser(r.Context(), userID)
	if err != nil {
		c.responseBuilder.WriteError(w, r, err)
		return
	}
	c.responseBuilder.WriteSuccess(w, r, profileResponse(user))
}

// GetCompany handles GET /api/v1/companies/{companyId}
func (c *UserController) GetCompany(w http.ResponseWriter, r *http.Request) {
	companyID, err := common.PathParam(r, "companyId")
	if err != nil {
		c.responseBuilder.WriteError(w, r, err)
		return
	}

	company, err := c.serviceCollection.UserService.GetCompanyProfile(r.Context(), companyID)
	if err != nil {
		c.responseBuilder.WriteError(w, r, err)
		return
	}
	c.responseBuilder.WriteSuccess(w, r, company)
}

// UpdateStudentProfile handles PATCH /api/v1/students/me
func (c *UserController) UpdateStudentProfile(w http.ResponseWriter, r *http.Request) {
	userID, ok := common.RequireUserID(w, r)
	if !ok {
		return
	}

	var req services.UpdateStudentProfileRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		c.responseBuilder.WriteError(w, r, err)
		return
	}

	student, err := c.serviceCollection.UserService.UpdateStudentProfile(r.Context(), userID, &req)
	if err != nil {
		c.responseBuilder.WriteError(w, r, err)
		return
	}
	if req.Name != nil {
		c.syncDisplayName(r, userID, *req.Name)
	}
	c.responseBuilder.WriteSuccess(w, r, student)
}

// UpdateCompanyProfile handles PATCH /api/v1/companies/me
func (c *UserController) UpdateCompanyProfile(w http.ResponseWriter, r *http.Request) {
	userID, ok := common.RequireUserID(w, r)
	if !ok {
		return
	}

	var req services.UpdateCompanyProfileRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		c.responseBuilder.WriteError(w, r, err)
		return
	}

	company, err := c.serviceCollection.UserService.UpdateCompanyProfile(r.Context(), userID, &req)
	if err != nil {
		c.responseBuilder.WriteError(w, r, err)
		return
	}
	if req.CompanyName != nil {
		c.syncDisplayName(r, userID, *req.CompanyName)
	}
	c.responseBuilder.WriteSuccess(w, r, company)
}

// UploadAvatar handles POST /api/v1/users/me/avatar with an "image" form file
func (c *UserController) UploadAvatar(w http.ResponseWriter, r *http.Request) {
	userID, ok := common.RequireUserID(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxAvatarFormBytes)
	if err := r.ParseMultipartForm(maxAvatarFormBytes); err != nil {
		c.responseBuilder.WriteError(w, r, services.NewValidationError("Failed to parse form data (max 10MB)", err))
		return
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		c.responseBuilder.WriteError(w, r, services.NewValidationError("Image file required", err))
		return
	}
	defer file.Close()

	user, err := c.serviceCollection.UserService.UploadAvatar(r.Context(), userID, &utils.ImageUpload{
		Reader:   file,
		Filename: header.Filename,
		Size:     header.Size,
	})
	if err != nil {
		c.responseBuilder.WriteError(w, r, err)
		return
	}

	middleware.GetRequestLogger(r.Context()).Info("Avatar uploaded",
		zap.String("user_id", userID),
		zap.Int64("size", header.Size),
	)
	c.responseBuilder.WriteSuccess(w, r, profileResponse(user))
}

// syncDisplayName copies a renamed profile onto the account. The profile
// write already succeeded, so a failure here is only logged.
func (c *UserController) syncDisplayName(r *http.Request, userID, name string) {
	if err := c.serviceCollection.AuthService.UpdateDisplayName(r.Context(), userID, name); err != nil {
		middleware.GetRequestLogger(r.Context()).Warn("Failed to sync display name",
			zap.String("user_id", userID),
			zap.Error(err),
		)
	}
}

// ===============================
// DEVICE PREFERENCES
// ===============================

// GetOnboarding handles GET /api/v1/onboarding for the X-Device-ID device
func (c *UserController) GetOnboarding(w http.ResponseWriter, r *http.Request) {
	deviceID, ok := c.deviceID(w, r)
	if !ok {
		return
	}

	completed, err := c.preferences.OnboardingCompleted(r.Context(), deviceID)
	if err != nil {
		c.responseBuilder.WriteError(w, r, err)
		return
	}
	c.responseBuilder.WriteSuccess(w, r, OnboardingStatus{DeviceID: deviceID, Completed: completed})
}

// SetOnboarding handles PUT /api/v1/onboarding
func (c *UserController) SetOnboarding(w http.ResponseWriter, r *http.Request) {
	deviceID, ok := c.deviceID(w, r)
	if !ok {
		return
	}

	var req OnboardingRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		c.responseBuilder.WriteError(w, r, err)
		return
	}

	if err := c.preferences.SetOnboardingCompleted(r.Context(), deviceID, req.Completed); err != nil {
		c.responseBuilder.WriteError(w, r, err)
		return
	}
	c.responseBuilder.WriteSuccess(w, r, OnboardingStatus{DeviceID: deviceID, Completed: req.Completed})
}

func (c *UserController) deviceID(w http.ResponseWriter, r *http.Request) (string, bool) {
	deviceID := strings.TrimSpace(r.Header.Get(middleware.HeaderDeviceID))
	if deviceID == "" {
		c.responseBuilder.WriteError(w, r, services.NewValidationError(middleware.HeaderDeviceID+" header is required", nil))
		return "", false
	}
	return deviceID, true
}
