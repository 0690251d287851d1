package services

import (
	"context"
	"testing"

	"bridgeus/internal/events"
	"bridgeus/internal/models"
	"bridgeus/internal/repositories"
	"bridgeus/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestTaskService_PublishedTaskCount(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.company(t, "c1", "BridgeUs 株式会社")

	published := env.task(t, "c1", "ロゴデザイン作成", "", models.CategoryDesign)
	assert.Equal(t, models.TaskStatusPublished, published.Status, "status defaults to published")
	assert.Equal(t, "BridgeUs 株式会社", published.Company)
	assert.Equal(t, 1, env.publishedCount(t, "c1"))

	draft := env.task(t, "c1", "市場調査レポート", models.TaskStatusDraft)
	assert.Equal(t, 1, env.publishedCount(t, "c1"))

	_, err := env.tasks.SetTaskStatus(ctx, draft.ID, "c1", models.TaskStatusPublished)
	require.NoError(t, err)
	assert.Equal(t, 2, env.publishedCount(t, "c1"))

	// same status is a no-op
	_, err = env.tasks.SetTaskStatus(ctx, draft.ID, "c1", models.TaskStatusPublished)
	require.NoError(t, err)
	assert.Equal(t, 2, env.publishedCount(t, "c1"))

	closed, err := env.tasks.SetTaskStatus(ctx, published.ID, "c1", models.TaskStatusClosed)
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusClosed, closed.Status)
	assert.Equal(t, 1, env.publishedCount(t, "c1"))

	require.NoError(t, env.tasks.DeleteTask(ctx, draft.ID, "c1"))
	assert.Equal(t, 0, env.publishedCount(t, "c1"))

	require.NoError(t, env.tasks.DeleteTask(ctx, published.ID, "c1"))
	assert.Equal(t, 0, env.publishedCount(t, "c1"), "deleting a closed task leaves the counter alone")
}

func TestTaskService_CreateTaskValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.company(t, "c1", "BridgeUs")
	env.student(t, "s1", "山田太郎")

	tests := []struct {
		name      string
		companyID string
		input     *TaskInput
		check     func(error) bool
	}{
		{"missing title", "c1", &TaskInput{}, IsValidationError},
		{"unknown category", "c1", &TaskInput{Title: "英文記事の翻訳", Categories: []string{"料理"}}, IsValidationError},
		{"bad deadline", "c1", &TaskInput{Title: "英文記事の翻訳", Deadline: "2025/05/01"}, IsValidationError},
		{"student cannot post", "s1", &TaskInput{Title: "英文記事の翻訳"}, IsPermissionDeniedError},
		{"unknown company", "nobody", &TaskInput{Title: "英文記事の翻訳"}, IsNotFoundError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.tasks.CreateTask(ctx, tt.companyID, tt.input)
			require.Error(t, err)
			assert.True(t, tt.check(err), "unexpected error: %v", err)
		})
	}
}

func TestTaskService_UpdateTask(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.company(t, "c1", "BridgeUs")
	env.company(t, "c2", "Other")
	task := env.task(t, "c1", "ロゴデザイン作成", models.TaskStatusDraft, models.CategoryDesign)

	title := "  ロゴとバナー作成 "
	status := models.TaskStatusPublished
	updated, err := env.tasks.UpdateTask(ctx, task.ID, "c1", &TaskUpdateInput{
		Title:      &title,
		Categories: []string{models.CategoryDesign, models.CategorySNS},
		Status:     &status,
	})
	require.NoError(t, err)
	assert.Equal(t, "ロゴとバナー作成", updated.Title)
	assert.Equal(t, []string{models.CategoryDesign, models.CategorySNS}, updated.Categories)
	assert.Equal(t, "5000円", updated.Reward, "unset fields are kept")
	assert.Equal(t, 1, env.publishedCount(t, "c1"))

	_, err = env.tasks.UpdateTask(ctx, task.ID, "c2", &TaskUpdateInput{Title: &title})
	assert.True(t, IsPermissionDeniedError(err))

	err = env.tasks.DeleteTask(ctx, task.ID, "c2")
	assert.True(t, IsPermissionDeniedError(err))

	_, err = env.tasks.UpdateTask(ctx, "missing", "c1", &TaskUpdateInput{Title: &title})
	assert.True(t, IsNotFoundError(err))
}

func TestTaskService_ListVisibleTasks(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.company(t, "c1", "BridgeUs")
	env.company(t, "c2", "Acme Research")
	env.student(t, "s1", "山田太郎")

	logo := env.task(t, "c1", "ロゴデザイン作成", models.TaskStatusPublished, models.CategoryDesign)
	env.task(t, "c1", "下書きタスク", models.TaskStatusDraft, models.CategoryDesign)
	survey := env.task(t, "c2", "アンケート集計", models.TaskStatusPublished, models.CategoryResearch, models.CategoryDataEntry)
	env.task(t, "c2", "終了した調査", models.TaskStatusClosed, models.CategoryResearch)

	_, err := env.applications.Apply(ctx, &ApplyRequest{StudentID: "s1", TaskID: logo.ID})
	require.NoError(t, err)
	require.NoError(t, env.favorites.AddFavorite(ctx, "s1", survey.ID))

	t.Run("all categories newest first", func(t *testing.T) {
		views, err := env.tasks.ListVisibleTasks(ctx, "s1", models.TaskFilter{Category: models.CategoryAll})
		require.NoError(t, err)
		require.Len(t, views, 2)
		assert.Equal(t, survey.ID, views[0].ID)
		assert.Equal(t, logo.ID, views[1].ID)

		assert.False(t, views[0].Applied)
		assert.True(t, views[0].Favorited)
		assert.True(t, views[1].Applied)
		assert.False(t, views[1].Favorited)
	})

	t.Run("category", func(t *testing.T) {
		views, err := env.tasks.ListVisibleTasks(ctx, "s1", models.TaskFilter{Category: models.CategoryDataEntry})
		require.NoError(t, err)
		require.Len(t, views, 1)
		assert.Equal(t, survey.ID, views[0].ID)
	})

	t.Run("search matches company case-insensitively", func(t *testing.T) {
		views, err := env.tasks.ListVisibleTasks(ctx, "", models.TaskFilter{Search: "acme"})
		require.NoError(t, err)
		require.Len(t, views, 1)
		assert.Equal(t, survey.ID, views[0].ID)
		assert.False(t, views[0].Favorited, "anonymous views are not augmented")
	})

	t.Run("search matches title", func(t *testing.T) {
		views, err := env.tasks.ListVisibleTasks(ctx, "s1", models.TaskFilter{Search: "ロゴ"})
		require.NoError(t, err)
		require.Len(t, views, 1)
		assert.Equal(t, logo.ID, views[0].ID)
	})

	t.Run("unknown category", func(t *testing.T) {
		_, err := env.tasks.ListVisibleTasks(ctx, "s1", models.TaskFilter{Category: "料理"})
		assert.True(t, IsValidationError(err))
	})
}

func TestTaskService_SubscribeVisibleTasks(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.company(t, "c1", "BridgeUs")
	env.task(t, "c1", "ロゴデザイン作成", models.TaskStatusPublished, models.CategoryDesign)

	stream, err := env.tasks.SubscribeVisibleTasks(ctx, "s1", models.TaskFilter{Category: models.CategoryDesign})
	require.NoError(t, err)
	defer stream.Unsubscribe()

	waitFor(t, stream, func(v []*models.TaskView) bool { return len(v) == 1 })

	env.task(t, "c1", "競合サービス調査", models.TaskStatusPublished, models.CategoryResearch)
	env.task(t, "c1", "バナー作成", models.TaskStatusPublished, models.CategoryDesign)

	views := waitFor(t, stream, func(v []*models.TaskView) bool { return len(v) == 2 })
	assert.Equal(t, "バナー作成", views[0].Title)
}

func TestTaskService_GetTask(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.company(t, "c1", "BridgeUs")
	task := env.task(t, "c1", "ロゴデザイン作成", "", models.CategoryDesign)

	require.NoError(t, env.favorites.AddFavorite(ctx, "s1", task.ID))

	view, err := env.tasks.GetTask(ctx, task.ID, "s1")
	require.NoError(t, err)
	assert.True(t, view.Favorited)
	assert.False(t, view.Applied)

	_, err = env.tasks.GetTask(ctx, "missing", "s1")
	assert.True(t, IsNotFoundError(err))
}

func TestTaskService_CategoryAndSearchCombined(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.company(t, "c1", "BridgeUs")
	env.student(t, "s1", "山田太郎")

	logo := env.task(t, "c1", "ロゴデザイン作成", "", models.CategoryDesign)
	sns := env.task(t, "c1", "SNS投稿の作成", "", models.CategorySNS)
	env.task(t, "c1", "SNS広告バナー", models.TaskStatusDraft, models.CategoryDesign)

	tests := []struct {
		name   string
		filter models.TaskFilter
		want   []string
	}{
		{"design with SNS term", models.TaskFilter{Category: models.CategoryDesign, Search: "SNS"}, nil},
		{"SNS with design term", models.TaskFilter{Category: models.CategorySNS, Search: "デザイン"}, nil},
		{"design with matching term", models.TaskFilter{Category: models.CategoryDesign, Search: "ロゴ"}, []string{logo.ID}},
		{"all with term", models.TaskFilter{Category: models.CategoryAll, Search: "sns"}, []string{sns.ID}},
		{"all with company term", models.TaskFilter{Category: models.CategoryAll, Search: "bridgeus"}, []string{sns.ID, logo.ID}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			views, err := env.tasks.ListVisibleTasks(ctx, "s1", tt.filter)
			require.NoError(t, err)

			var ids []string
			for _, v := range views {
				ids = append(ids, v.ID)
			}
			assert.Equal(t, tt.want, ids)
		})
	}
}

// failingCompanyCounter rejects publishedTaskCount updates
type failingCompanyCounter struct {
	repositories.UserRepository
}

func (failingCompanyCounter) IncrementCounter(context.Context, string, string, int64) error {
	return store.ErrUnavailable
}

func TestTaskService_PublishedCountFailureIsReported(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.company(t, "c1", "BridgeUs")

	bus := &recordingBus{}
	broken := *env.repos
	broken.User = failingCompanyCounter{UserRepository: env.repos.User}
	svc := NewTaskService(&broken, bus, RetryPolicy{MaxRetries: 2, InitialInterval: 1}, zap.NewNop())

	task, err := svc.CreateTask(ctx, "c1", &TaskInput{Title: "ロゴデザイン作成", Reward: "5000円"})
	require.NoError(t, err, "the task write stands")
	_, err = svc.SetTaskStatus(ctx, task.ID, "c1", models.TaskStatusClosed)
	require.NoError(t, err)
	_, err = svc.SetTaskStatus(ctx, task.ID, "c1", models.TaskStatusPublished)
	require.NoError(t, err)
	assert.Equal(t, 0, env.publishedCount(t, "c1"))

	reported := bus.ofType(events.EventWorkflowPartial)
	require.Len(t, reported, 3)
	partial := reported[0].(*events.WorkflowPartialFailureEvent)
	assert.Equal(t, "c1", partial.CompanyID)
	assert.Empty(t, partial.TaskID)

	handler := PartialFailureHandler(env.reconcile, zap.NewNop())
	require.NoError(t, handler.Handle(ctx, partial))
	assert.Equal(t, 1, env.publishedCount(t, "c1"))
}
