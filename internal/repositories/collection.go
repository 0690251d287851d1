// file: internal/repositories/collection.go
package repositories

import (
	"context"
	"fmt"
	"time"

	"bridgeus/internal/store"

	"go.uber.org/zap"
)

// Collection holds all repository instances for dependency injection
type Collection struct {
	// Marketplace repositories
	Task         TaskRepository
	Application  ApplicationRepository
	Favorite     FavoriteRepository
	Chat         ChatRepository
	Notification NotificationRepository
	User         UserRepository

	// Auth repositories
	Auth    AuthRepository
	Session SessionRepository

	store  store.Store
	logger *zap.Logger
}

// NewCollection creates a new repository collection over one store
func NewCollection(s store.Store, logger *zap.Logger) (*Collection, error) {
	if s == nil {
		return nil, fmt.Errorf("document store is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	c := &Collection{
		Task:         NewTaskRepository(s, logger),
		Application:  NewApplicationRepository(s, logger),
		Favorite:     NewFavoriteRepository(s, logger),
		Chat:         NewChatRepository(s, logger),
		Notification: NewNotificationRepository(s, logger),
		User:         NewUserRepository(s, logger),
		Auth:         NewAuthRepository(s, logger),
		Session:      NewSessionRepository(s, logger),
		store:        s,
		logger:       logger,
	}

	logger.Info("Repository collection initialized successfully")
	return c, nil
}

// HealthCheck runs a cheap query against the store
func (c *Collection) HealthCheck(ctx context.Context) map[string]interface{} {
	start := time.Now()
	_, err := c.store.Count(ctx, store.NewQuery(CollectionTasks).WithLimit(1))
	result := map[string]interface{}{
		"healthy":  err == nil,
		"duration": time.Since(start).String(),
	}
	if err != nil {
		result["error"] = err.Error()
		c.logger.Warn("Store health check failed", zap.Error(err))
	}
	return result
}

// Store returns the underlying document store
func (c *Collection) Store() store.Store {
	return c.store
}

// GetLogger returns the logger instance
func (c *Collection) GetLogger() *zap.Logger {
	return c.logger
}

// Close closes the document store
func (c *Collection) Close() error {
	c.logger.Info("Closing repository collection")
	return c.store.Close()
}
