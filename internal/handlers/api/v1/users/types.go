// ===============================
// FILE: internal/handlers/api/v1/users/types.go
// ===============================

package users

import "bridgeus/internal/models"

// maxAvatarFormBytes bounds the multipart body of an avatar upload
const maxAvatarFormBytes = 10 << 20

// ProfileResponse wraps a profile of either kind with its type
type ProfileResponse struct {
	UserType models.UserType `json:"userType"`
	Profile  models.User     `json:"profile"`
}

// OnboardingStatus is the onboarding flag of one device
type OnboardingStatus struct {
	DeviceID  string `json:"deviceId"`
	Completed bool   `json:"completed"`
}

// OnboardingRequest sets the onboarding flag
type OnboardingRequest struct {
	Completed bool `json:"completed"`
}

func profileResponse(user models.User) ProfileResponse {
	return ProfileResponse{UserType: user.GetType(), Profile: user}
}
