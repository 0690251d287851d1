package services

import (
	"context"
	"strings"
	"testing"

	"bridgeus/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// approvedRoom runs apply and approve and returns the chat room id
func approvedRoom(t *testing.T, env *testEnv) string {
	t.Helper()
	ctx := context.Background()
	env.company(t, "c1", "BridgeUs")
	env.student(t, "s1", "山田太郎")
	task := env.task(t, "c1", "ロゴデザイン作成", "", models.CategoryDesign)

	app, err := env.applications.Apply(ctx, &ApplyRequest{StudentID: "s1", TaskID: task.ID})
	require.NoError(t, err)
	roomID, err := env.applications.Approve(ctx, &ReviewRequest{ApplicationID: app.ID, CompanyID: "c1"})
	require.NoError(t, err)
	return roomID
}

func TestChatService_SendAndRead(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	roomID := approvedRoom(t, env)

	msg, err := env.chats.SendMessage(ctx, roomID, "c1", "  はじめまして  ")
	require.NoError(t, err)
	assert.Equal(t, "はじめまして", msg.Text)
	_, err = env.chats.SendMessage(ctx, roomID, "c1", "よろしくお願いします")
	require.NoError(t, err)

	room, err := env.chats.GetRoom(ctx, roomID, "s1")
	require.NoError(t, err)
	assert.Equal(t, 2, room.UnreadCountByUser["s1"])
	assert.Equal(t, 0, room.UnreadCountByUser["c1"])
	assert.Equal(t, "よろしくお願いします", room.LastMessage)

	msgs, err := env.chats.ListMessages(ctx, roomID, "s1")
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "よろしくお願いします", msgs[0].Text, "newest first")

	require.NoError(t, env.chats.MarkRoomRead(ctx, roomID, "s1"))
	room, err = env.chats.GetRoom(ctx, roomID, "s1")
	require.NoError(t, err)
	assert.Equal(t, 0, room.UnreadCountByUser["s1"])
}

func TestChatService_Membership(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	roomID := approvedRoom(t, env)

	_, err := env.chats.SendMessage(ctx, roomID, "intruder", "hello")
	assert.True(t, IsPermissionDeniedError(err))

	_, err = env.chats.ListMessages(ctx, roomID, "intruder")
	assert.True(t, IsPermissionDeniedError(err))

	_, err = env.chats.SendMessage(ctx, "missing", "s1", "hello")
	assert.True(t, IsNotFoundError(err))

	_, err = env.chats.SendMessage(ctx, roomID, "s1", "   ")
	assert.True(t, IsValidationError(err))

	_, err = env.chats.SendMessage(ctx, roomID, "s1", strings.Repeat("あ", MaxMessageLength+1))
	assert.True(t, IsValidationError(err))
}

func TestChatService_SubscribeUnreadChatCount(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	roomID := approvedRoom(t, env)

	stream, err := env.chats.SubscribeUnreadChatCount(ctx, "s1")
	require.NoError(t, err)
	defer stream.Unsubscribe()

	waitFor(t, stream, func(n int) bool { return n == 0 })

	_, err = env.chats.SendMessage(ctx, roomID, "c1", "面談の日程について")
	require.NoError(t, err)
	waitFor(t, stream, func(n int) bool { return n == 1 })

	require.NoError(t, env.chats.MarkRoomRead(ctx, roomID, "s1"))
	waitFor(t, stream, func(n int) bool { return n == 0 })
}

func TestUnreadChatCount(t *testing.T) {
	rooms := []*models.ChatRoom{
		{UnreadCountByUser: map[string]int{"s1": 2, "c1": 1}},
		{UnreadCountByUser: map[string]int{"s1": 3}},
		{},
	}
	assert.Equal(t, 5, UnreadChatCount(rooms, "s1"))
	assert.Equal(t, 1, UnreadChatCount(rooms, "c1"))
	assert.Equal(t, 0, UnreadChatCount(nil, "s1"))
}

func TestNotificationService_MarkRead(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := env.repos.Notification.Create(ctx, &models.Notification{
			UserID: "u1", Type: models.NotificationMessage, Title: "お知らせ", Body: "本文",
		})
		require.NoError(t, err)
	}
	otherID, err := env.repos.Notification.Create(ctx, &models.Notification{UserID: "u2", Type: models.NotificationNewTask, Title: "新着"})
	require.NoError(t, err)

	err = env.notifications.MarkAsRead(ctx, otherID, "u1")
	assert.True(t, IsPermissionDeniedError(err))

	inbox, err := env.notifications.ListNotifications(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, inbox, 3)
	require.NoError(t, env.notifications.MarkAsRead(ctx, inbox[0].ID, "u1"))
	require.NoError(t, env.notifications.MarkAsRead(ctx, inbox[0].ID, "u1"), "already read is fine")

	n, err := env.notifications.MarkAllAsRead(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = env.notifications.MarkAllAsRead(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	other, err := env.repos.Notification.GetByID(ctx, otherID)
	require.NoError(t, err)
	assert.False(t, other.Read, "other users are untouched")

	err = env.notifications.MarkAsRead(ctx, "missing", "u1")
	assert.True(t, IsNotFoundError(err))
}

func TestNotificationService_MarkAllAsReadLeavesLaterNotifications(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	for _, title := range []string{"一件目", "二件目"} {
		_, err := env.repos.Notification.Create(ctx, &models.Notification{UserID: "u1", Type: models.NotificationNewTask, Title: title})
		require.NoError(t, err)
	}
	n, err := env.notifications.MarkAllAsRead(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	laterID, err := env.repos.Notification.Create(ctx, &models.Notification{UserID: "u1", Type: models.NotificationNewTask, Title: "三件目"})
	require.NoError(t, err)

	later, err := env.repos.Notification.GetByID(ctx, laterID)
	require.NoError(t, err)
	assert.False(t, later.Read)

	inbox, err := env.notifications.ListNotifications(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, inbox, 3)
	unread := 0
	for _, item := range inbox {
		if !item.Read {
			unread++
			assert.Equal(t, laterID, item.ID)
		}
	}
	assert.Equal(t, 1, unread)

	n, err = env.notifications.MarkAllAsRead(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, n, "only the later notification was still unread")
}

func TestNotificationService_SubscribeUnreadCount(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	stream, err := env.notifications.SubscribeUnreadCount(ctx, "u1")
	require.NoError(t, err)
	defer stream.Unsubscribe()
	waitFor(t, stream, func(n int) bool { return n == 0 })

	_, err = env.repos.Notification.Create(ctx, &models.Notification{UserID: "u1", Type: models.NotificationNewTask, Title: "新着"})
	require.NoError(t, err)
	waitFor(t, stream, func(n int) bool { return n == 1 })

	_, err = env.notifications.MarkAllAsRead(ctx, "u1")
	require.NoError(t, err)
	waitFor(t, stream, func(n int) bool { return n == 0 })
}

func TestFavoriteService(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.company(t, "c1", "BridgeUs")
	env.student(t, "s1", "山田太郎")
	logo := env.task(t, "c1", "ロゴデザイン作成", "")
	survey := env.task(t, "c1", "アンケート集計", "")

	require.NoError(t, env.favorites.AddFavorite(ctx, "s1", logo.ID))
	require.NoError(t, env.favorites.AddFavorite(ctx, "s1", logo.ID))
	require.NoError(t, env.favorites.AddFavorite(ctx, "s1", survey.ID))
	_, err := env.applications.Apply(ctx, &ApplyRequest{StudentID: "s1", TaskID: survey.ID})
	require.NoError(t, err)

	err = env.favorites.AddFavorite(ctx, "s1", "missing")
	assert.True(t, IsNotFoundError(err))

	views, err := env.favorites.ListFavoriteTasks(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, views, 2)
	for _, v := range views {
		assert.True(t, v.Favorited)
		assert.Equal(t, v.ID == survey.ID, v.Applied)
	}

	require.NoError(t, env.tasks.DeleteTask(ctx, survey.ID, "c1"))
	views, err = env.favorites.ListFavoriteTasks(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, views, 1, "favorites of deleted tasks are skipped")

	require.NoError(t, env.favorites.RemoveFavorite(ctx, "s1", logo.ID))
	views, err = env.favorites.ListFavoriteTasks(ctx, "s1")
	require.NoError(t, err)
	assert.Empty(t, views)
}

func TestReconcileService(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.company(t, "c1", "BridgeUs")
	env.student(t, "s1", "山田太郎")
	task := env.task(t, "c1", "ロゴデザイン作成", "")
	env.task(t, "c1", "アンケート集計", "")

	_, err := env.applications.Apply(ctx, &ApplyRequest{StudentID: "s1", TaskID: task.ID})
	require.NoError(t, err)

	// drift both counters
	require.NoError(t, env.repos.Task.SetApplicantCount(ctx, task.ID, 7))
	require.NoError(t, env.repos.User.SetCounter(ctx, "c1", "publishedTaskCount", 0))

	result, err := env.reconcile.ReconcileTask(ctx, task.ID)
	require.NoError(t, err)
	assert.True(t, result.Changed)
	assert.Equal(t, 7, result.Before)
	assert.Equal(t, 1, result.After)
	assert.Equal(t, 1, env.applicantCount(t, task.ID))

	report, err := env.reconcile.ReconcileAll(ctx)
	require.NoError(t, err)
	assert.Len(t, report.Tasks, 2)
	require.Len(t, report.Companies, 1)
	assert.Equal(t, 1, report.Repaired, "only the company counter still drifted")
	assert.Equal(t, 2, env.publishedCount(t, "c1"))

	_, err = env.reconcile.ReconcileTask(ctx, "missing")
	assert.True(t, IsNotFoundError(err))
	_, err = env.reconcile.ReconcileCompany(ctx, "s1")
	assert.True(t, IsNotFoundError(err))
}
