// file: internal/services/user_service.go
package services

import (
	"context"
	"errors"
	"strings"

	"bridgeus/internal/models"
	"bridgeus/internal/repositories"
	"bridgeus/internal/utils"
	"bridgeus/internal/validation"

	"go.uber.org/zap"
)

// Upload folders below the configured root
const (
	avatarFolder = "avatars"
	logoFolder   = "logos"
)

type userService struct {
	users    repositories.UserRepository
	uploader ImageUploader
	logger   *zap.Logger
}

// NewUserService creates a new user service. uploader may be nil when
// media uploads are not configured.
func NewUserService(repos *repositories.Collection, uploader ImageUploader, logger *zap.Logger) UserService {
	return &userService{
		users:    repos.User,
		uploader: uploader,
		logger:   logger,
	}
}

// ===============================
// PROFILES
// ===============================

// CreateProfile writes the profile document of a newly registered user
func (s *userService) CreateProfile(ctx context.Context, user models.User) error {
	if user == nil || user.GetID() == "" {
		return NewValidationError("user id is required", nil)
	}

	var errs models.ValidationErrors
	switch u := user.(type) {
	case *models.Student:
		u.Name = strings.TrimSpace(u.Name)
		errs = u.Validate()
	case *models.Company:
		u.CompanyName = strings.TrimSpace(u.CompanyName)
		errs = u.Validate()
	}
	if errs.HasErrors() {
		return validationFailed("invalid profile", errs)
	}

	if err := s.users.Create(ctx, user); err != nil {
		return storeError("create profile", err)
	}
	return nil
}

// GetUser returns the student or company profile
func (s *userService) GetUser(ctx context.Context, userID string) (models.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, storeError("get user", err)
	}
	if user == nil {
		return nil, EntityNotFoundError("user", userID)
	}
	return user, nil
}

// GetCompanyProfile returns a company profile; students are reported as not found
func (s *userService) GetCompanyProfile(ctx context.Context, companyID string) (*models.Company, error) {
	user, err := s.GetUser(ctx, companyID)
	if err != nil {
		return nil, err
	}
	company, ok := user.(*models.Company)
	if !ok {
		return nil, EntityNotFoundError("company", companyID)
	}
	return company, nil
}

func (s *userService) UpdateStudentProfile(ctx context.Context, studentID string, req *UpdateStudentProfileRequest) (*models.Student, error) {
	if req == nil {
		return nil, NewValidationError("profile update is required", nil)
	}
	if err := validation.ValidateStruct(req); err != nil {
		return nil, validationFailed("invalid profile", err)
	}

	user, err := s.GetUser(ctx, studentID)
	if err != nil {
		return nil, err
	}
	if _, ok := user.(*models.Student); !ok {
		return nil, NewPermissionDeniedError("only students can edit a student profile")
	}

	fields := make(map[string]interface{})
	if req.Name != nil {
		fields["name"] = strings.TrimSpace(*req.Name)
	}
	if req.University != nil {
		fields["university"] = strings.TrimSpace(*req.University)
	}
	if req.Faculty != nil {
		fields["faculty"] = strings.TrimSpace(*req.Faculty)
	}
	if req.Year != nil {
		fields["year"] = *req.Year
	}
	if req.Bio != nil {
		fields["bio"] = *req.Bio
	}

	updated, err := s.update(ctx, studentID, fields)
	if err != nil {
		return nil, err
	}
	return updated.(*models.Student), nil
}

func (s *userService) UpdateCompanyProfile(ctx context.Context, companyID string, req *UpdateCompanyProfileRequest) (*models.Company, error) {
	if req == nil {
		return nil, NewValidationError("profile update is required", nil)
	}
	if err := validation.ValidateStruct(req); err != nil {
		return nil, validationFailed("invalid profile", err)
	}

	if _, err := s.GetCompanyProfile(ctx, companyID); err != nil {
		if IsNotFoundError(err) {
			return nil, NewPermissionDeniedError("only companies can edit a company profile")
		}
		return nil, err
	}

	fields := make(map[string]interface{})
	if req.CompanyName != nil {
		fields["companyName"] = strings.TrimSpace(*req.CompanyName)
	}
	if req.RepresentativeName != nil {
		fields["representativeName"] = strings.TrimSpace(*req.RepresentativeName)
	}
	if req.Description != nil {
		fields["description"] = *req.Description
	}

	updated, err := s.update(ctx, companyID, fields)
	if err != nil {
		return nil, err
	}
	return updated.(*models.Company), nil
}

// ===============================
// MEDIA
// ===============================

// UploadAvatar stores an image as the student's avatar or the company's
// logo. The previous image is removed afterwards.
func (s *userService) UploadAvatar(ctx context.Context, userID string, upload *utils.ImageUpload) (models.User, error) {
	if s.uploader == nil {
		return nil, NewInternalError("image uploads are not configured", nil)
	}
	if upload == nil || upload.Reader == nil {
		return nil, NewValidationError("image is required", nil)
	}

	user, err := s.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	var urlField, previous string
	switch u := user.(type) {
	case *models.Student:
		upload.Folder = avatarFolder
		urlField, previous = "avatarUrl", u.AvatarID
	case *models.Company:
		upload.Folder = logoFolder
		urlField, previous = "logoUrl", u.AvatarID
	}

	result, err := s.uploader.UploadImage(ctx, upload)
	if err != nil {
		if IsValidationError(err) || isImageRejected(err) {
			return nil, NewValidationError(err.Error(), err)
		}
		s.logger.Error("Avatar upload failed", zap.String("user_id", userID), zap.Error(err))
		return nil, NewNetworkError("failed to upload image", err)
	}

	updated, err := s.update(ctx, userID, map[string]interface{}{
		urlField:   result.URL,
		"avatarId": result.PublicID,
	})
	if err != nil {
		if delErr := s.uploader.DeleteImage(context.WithoutCancel(ctx), result.PublicID); delErr != nil {
			s.logger.Warn("Failed to clean up uploaded image", zap.String("public_id", result.PublicID), zap.Error(delErr))
		}
		return nil, err
	}

	if previous != "" && previous != result.PublicID {
		if err := s.uploader.DeleteImage(ctx, previous); err != nil {
			s.logger.Warn("Failed to delete previous image", zap.String("public_id", previous), zap.Error(err))
		}
	}

	s.logger.Info("Profile image updated",
		zap.String("user_id", userID),
		zap.String("field", urlField),
	)
	return updated, nil
}

func isImageRejected(err error) bool {
	for _, target := range []error{utils.ErrFileTooLarge, utils.ErrInvalidContentType, utils.ErrInvalidExtension} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// update merges fields and returns the fresh profile
func (s *userService) update(ctx context.Context, userID string, fields map[string]interface{}) (models.User, error) {
	if len(fields) > 0 {
		if err := s.users.Update(ctx, userID, fields); err != nil {
			return nil, storeError("update profile", err)
		}
	}
	return s.GetUser(ctx, userID)
}
