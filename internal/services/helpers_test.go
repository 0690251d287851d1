package services

import (
	"context"
	"testing"
	"time"

	"bridgeus/internal/models"
	"bridgeus/internal/repositories"
	"bridgeus/internal/store"
	"bridgeus/internal/store/memory"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type testEnv struct {
	repos         *repositories.Collection
	tasks         TaskService
	applications  ApplicationService
	favorites     FavoriteService
	chats         ChatService
	notifications NotificationService
	reconcile     ReconcileService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	repos, err := repositories.NewCollection(memory.New(zap.NewNop()), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { repos.Close() })

	logger := zap.NewNop()
	return &testEnv{
		repos:         repos,
		tasks:         NewTaskService(repos, nil, NoRetry(), logger),
		applications:  NewApplicationService(repos, nil, NoRetry(), logger),
		favorites:     NewFavoriteService(repos, logger),
		chats:         NewChatService(repos, nil, logger),
		notifications: NewNotificationService(repos, logger),
		reconcile:     NewReconcileService(repos, logger),
	}
}

func (e *testEnv) company(t *testing.T, id, name string) *models.Company {
	t.Helper()
	c := &models.Company{ID: id, Email: id + "@example.com", CompanyName: name, RepresentativeName: "担当者"}
	require.NoError(t, e.repos.User.Create(context.Background(), c))
	return c
}

func (e *testEnv) student(t *testing.T, id, name string) *models.Student {
	t.Helper()
	s := &models.Student{ID: id, Email: id + "@example.com", Name: name, University: "東京大学", Year: 3}
	require.NoError(t, e.repos.User.Create(context.Background(), s))
	return s
}

func (e *testEnv) task(t *testing.T, companyID, title string, status models.TaskStatus, categories ...string) *models.Task {
	t.Helper()
	task, err := e.tasks.CreateTask(context.Background(), companyID, &TaskInput{
		Title:      title,
		Reward:     "5000円",
		Categories: categories,
		Status:     status,
	})
	require.NoError(t, err)
	return task
}

func (e *testEnv) publishedCount(t *testing.T, companyID string) int {
	t.Helper()
	user, err := e.repos.User.GetByID(context.Background(), companyID)
	require.NoError(t, err)
	return user.(*models.Company).PublishedTaskCount
}

func (e *testEnv) applicantCount(t *testing.T, taskID string) int {
	t.Helper()
	task, err := e.repos.Task.GetByID(context.Background(), taskID)
	require.NoError(t, err)
	require.NotNil(t, task)
	return task.ApplicantCount
}

// waitFor reads s until match accepts a value
func waitFor[T any](t *testing.T, s *store.Stream[T], match func(T) bool) T {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case v, ok := <-s.C():
			require.True(t, ok, "stream closed")
			if match(v) {
				return v
			}
		case <-deadline:
			t.Fatal("timed out waiting for stream value")
		}
	}
}
