package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"bridgeus/internal/mocks"
	"bridgeus/internal/models"
	"bridgeus/internal/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap"
)

func ptr[T any](v T) *T { return &v }

func TestUserService_Profiles(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	users := NewUserService(env.repos, nil, zap.NewNop())

	require.NoError(t, users.CreateProfile(ctx, &models.Student{ID: "s1", Email: "s1@example.com", Name: "  山田太郎 "}))
	require.NoError(t, users.CreateProfile(ctx, &models.Company{ID: "c1", Email: "c1@example.com", CompanyName: "BridgeUs"}))

	err := users.CreateProfile(ctx, &models.Student{ID: "s2", Name: ""})
	assert.True(t, IsValidationError(err))

	user, err := users.GetUser(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "山田太郎", user.DisplayName())

	student, err := users.UpdateStudentProfile(ctx, "s1", &UpdateStudentProfileRequest{
		University: ptr("京都大学"),
		Year:       ptr(2),
	})
	require.NoError(t, err)
	assert.Equal(t, "京都大学", student.University)
	assert.Equal(t, 2, student.Year)
	assert.Equal(t, "山田太郎", student.Name)

	_, err = users.UpdateStudentProfile(ctx, "s1", &UpdateStudentProfileRequest{Year: ptr(9)})
	assert.True(t, IsValidationError(err))

	_, err = users.UpdateStudentProfile(ctx, "c1", &UpdateStudentProfileRequest{Name: ptr("x")})
	assert.True(t, IsPermissionDeniedError(err))

	company, err := users.UpdateCompanyProfile(ctx, "c1", &UpdateCompanyProfileRequest{Description: ptr("学生と企業をつなぐ")})
	require.NoError(t, err)
	assert.Equal(t, "学生と企業をつなぐ", company.Description)

	_, err = users.UpdateCompanyProfile(ctx, "s1", &UpdateCompanyProfileRequest{Description: ptr("x")})
	assert.True(t, IsPermissionDeniedError(err))

	_, err = users.GetCompanyProfile(ctx, "s1")
	assert.True(t, IsNotFoundError(err))

	_, err = users.GetUser(ctx, "missing")
	assert.True(t, IsNotFoundError(err))
}

func TestUserService_UploadAvatar(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.student(t, "s1", "山田太郎")
	env.company(t, "c1", "BridgeUs")

	ctrl := gomock.NewController(t)
	uploader := mocks.NewMockImageUploader(ctrl)
	users := NewUserService(env.repos, uploader, zap.NewNop())

	upload := func() *utils.ImageUpload {
		return &utils.ImageUpload{Reader: strings.NewReader("png"), Filename: "me.png", Size: 3}
	}
	uploaded := func(folder, id string) func(context.Context, *utils.ImageUpload) (*utils.UploadResult, error) {
		return func(_ context.Context, u *utils.ImageUpload) (*utils.UploadResult, error) {
			if u.Folder != folder {
				return nil, fmt.Errorf("unexpected folder %q", u.Folder)
			}
			return &utils.UploadResult{URL: "https://res.cloudinary.com/demo/" + id + ".png", PublicID: id}, nil
		}
	}

	t.Run("student avatar replaces the previous image", func(t *testing.T) {
		gomock.InOrder(
			uploader.EXPECT().UploadImage(gomock.Any(), gomock.Any()).DoAndReturn(uploaded("avatars", "avatars/one")),
			uploader.EXPECT().UploadImage(gomock.Any(), gomock.Any()).DoAndReturn(uploaded("avatars", "avatars/two")),
			uploader.EXPECT().DeleteImage(gomock.Any(), "avatars/one").Return(nil),
		)

		_, err := users.UploadAvatar(ctx, "s1", upload())
		require.NoError(t, err)
		user, err := users.UploadAvatar(ctx, "s1", upload())
		require.NoError(t, err)

		student := user.(*models.Student)
		assert.Equal(t, "https://res.cloudinary.com/demo/avatars/two.png", student.AvatarURL)
		assert.Equal(t, "avatars/two", student.AvatarID)
	})

	t.Run("company logo", func(t *testing.T) {
		uploader.EXPECT().UploadImage(gomock.Any(), gomock.Any()).DoAndReturn(uploaded("logos", "logos/c1"))

		user, err := users.UploadAvatar(ctx, "c1", upload())
		require.NoError(t, err)
		assert.Equal(t, "https://res.cloudinary.com/demo/logos/c1.png", user.(*models.Company).LogoURL)
	})

	t.Run("rejected image", func(t *testing.T) {
		uploader.EXPECT().UploadImage(gomock.Any(), gomock.Any()).
			Return(nil, fmt.Errorf("upload: %w", utils.ErrFileTooLarge))

		_, err := users.UploadAvatar(ctx, "s1", upload())
		assert.True(t, IsValidationError(err))
	})

	t.Run("provider failure", func(t *testing.T) {
		uploader.EXPECT().UploadImage(gomock.Any(), gomock.Any()).Return(nil, errors.New("503 from provider"))

		_, err := users.UploadAvatar(ctx, "s1", upload())
		assert.True(t, IsNetworkError(err))
	})

	t.Run("not configured", func(t *testing.T) {
		_, err := NewUserService(env.repos, nil, zap.NewNop()).UploadAvatar(ctx, "s1", upload())
		assert.Error(t, err)
	})
}
