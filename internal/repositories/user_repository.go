// file: internal/repositories/user_repository.go
package repositories

import (
	"context"
	"errors"
	"fmt"

	"bridgeus/internal/models"
	"bridgeus/internal/store"

	"go.uber.org/zap"
)

// userRepository keeps student and company profiles in one collection,
// discriminated by userType
type userRepository struct {
	*BaseRepository
}

// NewUserRepository creates a new instance of UserRepository
func NewUserRepository(s store.Store, logger *zap.Logger) UserRepository {
	return &userRepository{
		BaseRepository: NewBaseRepository(s, logger),
	}
}

// Create writes a profile document with zeroed counters
func (r *userRepository) Create(ctx context.Context, user models.User) error {
	data := map[string]interface{}{
		"email":     user.GetEmail(),
		"userType":  string(user.GetType()),
		"createdAt": store.ServerTimestamp(),
		"updatedAt": store.ServerTimestamp(),
	}

	switch u := user.(type) {
	case *models.Student:
		data["name"] = u.Name
		data["university"] = u.University
		data["faculty"] = u.Faculty
		data["year"] = u.Year
		data["bio"] = u.Bio
		data["avatarId"] = u.AvatarID
		data["avatarUrl"] = u.AvatarURL
		data["appliedTaskCount"] = 0
		data["completedTaskCount"] = 0
	case *models.Company:
		data["companyName"] = u.CompanyName
		data["representativeName"] = u.RepresentativeName
		data["description"] = u.Description
		data["logoUrl"] = u.LogoURL
		data["avatarId"] = u.AvatarID
		data["publishedTaskCount"] = 0
	}

	if err := r.store.Set(ctx, CollectionUsers, user.GetID(), data); err != nil {
		r.logger.Error("Failed to create user profile",
			zap.String("user_id", user.GetID()),
			zap.String("user_type", string(user.GetType())),
			zap.Error(err),
		)
		return fmt.Errorf("failed to create user profile: %w", err)
	}

	r.logger.Info("User profile created",
		zap.String("user_id", user.GetID()),
		zap.String("user_type", string(user.GetType())),
	)
	return nil
}

// GetByID returns the decoded profile, or nil when there is none
func (r *userRepository) GetByID(ctx context.Context, id string) (models.User, error) {
	doc, err := r.GetDocument(ctx, CollectionUsers, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get user by ID: %w", err)
	}
	if doc == nil {
		return nil, nil
	}
	return decodeUser(doc)
}

// Update merges profile fields and stamps updatedAt
func (r *userRepository) Update(ctx context.Context, id string, fields map[string]interface{}) error {
	data := make(map[string]interface{}, len(fields)+1)
	for k, v := range fields {
		data[k] = v
	}
	data["updatedAt"] = store.ServerTimestamp()

	if err := r.store.Update(ctx, CollectionUsers, id, data); err != nil {
		return fmt.Errorf("failed to update user %s: %w", id, err)
	}
	return nil
}

func (r *userRepository) ListCompanies(ctx context.Context) ([]*models.Company, error) {
	q := store.NewQuery(CollectionUsers).Where("userType", store.OpEqual, string(models.UserTypeCompany))
	docs, err := r.QueryDocuments(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("failed to list companies: %w", err)
	}

	companies := make([]*models.Company, 0, len(docs))
	for _, u := range decodeAll(r.logger, docs, decodeUser) {
		if c, ok := u.(*models.Company); ok {
			companies = append(companies, c)
		}
	}
	return companies, nil
}

// ===============================
// COUNTERS
// ===============================

var counterFields = map[string]bool{
	"appliedTaskCount":   true,
	"completedTaskCount": true,
	"publishedTaskCount": true,
}

// ErrUnknownCounter is returned for counter names outside the profile schema
var ErrUnknownCounter = errors.New("unknown counter")

func (r *userRepository) IncrementCounter(ctx context.Context, id, field string, delta int64) error {
	if !counterFields[field] {
		return fmt.Errorf("%w: %s", ErrUnknownCounter, field)
	}
	if err := r.store.Update(ctx, CollectionUsers, id, map[string]interface{}{field: store.Increment(delta)}); err != nil {
		return fmt.Errorf("failed to adjust %s of user %s: %w", field, id, err)
	}
	return nil
}

func (r *userRepository) SetCounter(ctx context.Context, id, field string, value int) error {
	if !counterFields[field] {
		return fmt.Errorf("%w: %s", ErrUnknownCounter, field)
	}
	if err := r.store.Update(ctx, CollectionUsers, id, map[string]interface{}{field: value}); err != nil {
		return fmt.Errorf("failed to set %s of user %s: %w", field, id, err)
	}
	return nil
}
