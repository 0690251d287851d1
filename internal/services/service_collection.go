// file: internal/services/service_collection.go
package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"bridgeus/internal/cache"
	"bridgeus/internal/config"
	"bridgeus/internal/events"
	"bridgeus/internal/repositories"
	"bridgeus/internal/utils"

	"go.uber.org/zap"
)

// ServiceCollection holds all services with their shared infrastructure
type ServiceCollection struct {
	// Marketplace services
	TaskService         TaskService
	ApplicationService  ApplicationService
	FavoriteService     FavoriteService
	ChatService         ChatService
	NotificationService NotificationService
	UserService         UserService
	ReconcileService    ReconcileService

	// Auth and infrastructure services
	AuthService   AuthService
	EmailService  EmailService
	ImageUploader ImageUploader

	Repositories *repositories.Collection
	Cache        cache.Cache
	EventBus     events.EventBus
	Logger       *zap.Logger
	Config       *config.Config

	healthCheckers map[string]HealthChecker
	repairHandler  events.EventHandler
	startTime      time.Time
	shutdown       chan struct{}
	wg             sync.WaitGroup
	mu             sync.RWMutex
	started        bool
}

// Health states
const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
)

// ServiceHealth represents the health status of the service collection
type ServiceHealth struct {
	Status       string                   `json:"status"`
	Timestamp    time.Time                `json:"timestamp"`
	Dependencies map[string]ServiceStatus `json:"dependencies"`
	Uptime       time.Duration            `json:"uptime"`
	Issues       []string                 `json:"issues,omitempty"`
}

// ServiceStatus represents the status of one dependency
type ServiceStatus struct {
	Name         string        `json:"name"`
	Status       string        `json:"status"` // healthy, unhealthy
	LastCheck    time.Time     `json:"last_check"`
	ResponseTime time.Duration `json:"response_time"`
	Error        string        `json:"error,omitempty"`
}

// CollectionOption overrides parts of the collection, mainly in tests
type CollectionOption func(*collectionOptions)

type collectionOptions struct {
	cache    cache.Cache
	email    EmailService
	uploader ImageUploader
	auth     []AuthOption
}

// WithCache uses c instead of building one from configuration
func WithCache(c cache.Cache) CollectionOption {
	return func(o *collectionOptions) { o.cache = c }
}

// WithEmailService replaces the configured email sender
func WithEmailService(e EmailService) CollectionOption {
	return func(o *collectionOptions) { o.email = e }
}

// WithImageUploader replaces the Cloudinary uploader
func WithImageUploader(u ImageUploader) CollectionOption {
	return func(o *collectionOptions) { o.uploader = u }
}

// WithAuthOptions passes options through to the auth service
func WithAuthOptions(opts ...AuthOption) CollectionOption {
	return func(o *collectionOptions) { o.auth = append(o.auth, opts...) }
}

// NewServiceCollection wires every service over one repository collection
func NewServiceCollection(
	repos *repositories.Collection,
	cfg *config.Config,
	logger *zap.Logger,
	opts ...CollectionOption,
) (*ServiceCollection, error) {
	if repos == nil {
		return nil, fmt.Errorf("repository collection is required")
	}
	if cfg == nil {
		return nil, fmt.Errorf("configuration is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	var o collectionOptions
	for _, opt := range opts {
		opt(&o)
	}

	sc := &ServiceCollection{
		Repositories:   repos,
		Config:         cfg,
		Logger:         logger,
		healthCheckers: make(map[string]HealthChecker),
		startTime:      time.Now(),
		shutdown:       make(chan struct{}),
	}

	if err := sc.initializeInfrastructure(&o); err != nil {
		return nil, fmt.Errorf("failed to initialize infrastructure: %w", err)
	}
	if err := sc.initializeServices(&o); err != nil {
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	logger.Info("Service collection initialized successfully",
		zap.Bool("uploads_enabled", sc.ImageUploader != nil),
	)
	return sc, nil
}

// ===============================
// INITIALIZATION
// ===============================

func (sc *ServiceCollection) initializeInfrastructure(o *collectionOptions) error {
	sc.Cache = o.cache
	if sc.Cache == nil {
		c, err := cache.NewCache(&cache.Config{
			Provider:        sc.Config.Cache.Provider,
			MaxKeys:         10000,
			CleanupInterval: 5 * time.Minute,
			RedisURL:        sc.Config.Cache.RedisURL,
			RedisPassword:   sc.Config.Cache.RedisPassword,
			RedisDB:         sc.Config.Cache.RedisDB,
			PoolSize:        sc.Config.Cache.PoolSize,
		}, sc.Logger)
		if err != nil {
			return fmt.Errorf("failed to create cache: %w", err)
		}
		sc.Cache = c
	}

	sc.EventBus = events.NewInMemoryEventBus(events.DefaultEventBusConfig(), sc.Logger)

	sc.EmailService = o.email
	if sc.EmailService == nil {
		sc.EmailService = NewEmailServiceFromConfig(sc.Config.Email, sc.Logger)
	}

	sc.ImageUploader = o.uploader
	if sc.ImageUploader == nil && sc.Config.Cloudinary.Enabled() {
		uploader, err := utils.NewCloudinaryUploader(utils.UploaderConfig{
			CloudName:     sc.Config.Cloudinary.CloudName,
			APIKey:        sc.Config.Cloudinary.APIKey,
			APISecret:     sc.Config.Cloudinary.APISecret,
			Folder:        sc.Config.Cloudinary.Folder,
			MaxFileSize:   sc.Config.Cloudinary.MaxFileSize,
			UploadTimeout: sc.Config.Cloudinary.UploadTimeout,
			MaxRetries:    sc.Config.Cloudinary.MaxRetries,
		}, sc.Logger)
		if err != nil {
			return fmt.Errorf("failed to initialize Cloudinary: %w", err)
		}
		sc.ImageUploader = uploader
	}
	return nil
}

func (sc *ServiceCollection) initializeServices(o *collectionOptions) error {
	retry := NewRetryPolicy(sc.Config.Workflow)

	sc.TaskService = NewTaskService(sc.Repositories, sc.EventBus, retry, sc.Logger)
	sc.ApplicationService = NewApplicationService(sc.Repositories, sc.EventBus, retry, sc.Logger)
	sc.FavoriteService = NewFavoriteService(sc.Repositories, sc.Logger)
	sc.ChatService = NewChatService(sc.Repositories, sc.EventBus, sc.Logger)
	sc.NotificationService = NewNotificationService(sc.Repositories, sc.Logger)
	sc.UserService = NewUserService(sc.Repositories, sc.ImageUploader, sc.Logger)
	sc.ReconcileService = NewReconcileService(sc.Repositories, sc.Logger)
	sc.AuthService = NewAuthService(sc.Repositories, sc.Cache, sc.EmailService, sc.EventBus, sc.Config.Auth, sc.Logger, o.auth...)

	sc.repairHandler = PartialFailureHandler(sc.ReconcileService, sc.Logger)
	if err := sc.EventBus.SubscribePattern(events.PatternWorkflow, sc.repairHandler); err != nil {
		return fmt.Errorf("failed to subscribe reconciliation handler: %w", err)
	}
	return nil
}

// RegisterHealthChecker adds a dependency to the health report
func (sc *ServiceCollection) RegisterHealthChecker(hc HealthChecker) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.healthCheckers[hc.ServiceName()] = hc
}

// ===============================
// LIFECYCLE
// ===============================

// Start starts the event bus and the session cleanup loop
func (sc *ServiceCollection) Start(ctx context.Context) error {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	if sc.started {
		return nil
	}

	if err := sc.EventBus.Start(ctx); err != nil {
		return fmt.Errorf("failed to start event bus: %w", err)
	}

	sc.wg.Add(1)
	go sc.cleanupSessions(time.Hour)

	sc.started = true
	sc.Logger.Info("Service collection started successfully")
	return nil
}

// Shutdown stops background work and closes the cache and store
func (sc *ServiceCollection) Shutdown(ctx context.Context) error {
	sc.Logger.Info("Shutting down service collection")

	sc.mu.Lock()
	select {
	case <-sc.shutdown:
	default:
		close(sc.shutdown)
	}
	started := sc.started
	sc.mu.Unlock()

	var shutdownErrors []error

	if started {
		if err := sc.EventBus.Stop(ctx); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("event bus stop: %w", err))
		}
	}

	done := make(chan struct{})
	go func() {
		sc.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		sc.Logger.Warn("Shutdown timeout exceeded")
		shutdownErrors = append(shutdownErrors, fmt.Errorf("shutdown timeout exceeded"))
	}

	// repairs must not run against a closed store
	if sc.repairHandler != nil {
		if err := sc.EventBus.Unsubscribe(events.PatternWorkflow, sc.repairHandler); err != nil {
			sc.Logger.Warn("Failed to unsubscribe reconciliation handler", zap.Error(err))
		}
	}

	if err := sc.Cache.Close(); err != nil {
		shutdownErrors = append(shutdownErrors, fmt.Errorf("cache close: %w", err))
	}
	if err := sc.Repositories.Close(); err != nil {
		shutdownErrors = append(shutdownErrors, fmt.Errorf("store close: %w", err))
	}

	if len(shutdownErrors) > 0 {
		sc.Logger.Error("Errors occurred during shutdown", zap.Errors("errors", shutdownErrors))
		return fmt.Errorf("shutdown completed with %d errors", len(shutdownErrors))
	}

	sc.Logger.Info("Service collection shutdown completed successfully")
	return nil
}

func (sc *ServiceCollection) cleanupSessions(interval time.Duration) {
	defer sc.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			n, err := sc.Repositories.Session.CleanupExpired(ctx, time.Now())
			cancel()
			if err != nil {
				sc.Logger.Warn("Session cleanup failed", zap.Error(err))
			} else if n > 0 {
				sc.Logger.Info("Expired sessions removed", zap.Int("count", n))
			}
		case <-sc.shutdown:
			return
		}
	}
}

// ===============================
// HEALTH
// ===============================

// HealthCheck reports the store, cache, event bus and registered checkers
func (sc *ServiceCollection) HealthCheck(ctx context.Context) *ServiceHealth {
	health := &ServiceHealth{
		Status:       StatusHealthy,
		Timestamp:    time.Now(),
		Dependencies: make(map[string]ServiceStatus),
		Uptime:       time.Since(sc.startTime),
	}

	record := func(name string, check func(context.Context) error) {
		status := checkHealth(ctx, name, check)
		health.Dependencies[name] = status
		if status.Status != StatusHealthy {
			health.Issues = append(health.Issues, fmt.Sprintf("%s: %s", name, status.Error))
		}
	}

	record("store", func(ctx context.Context) error {
		result := sc.Repositories.HealthCheck(ctx)
		if healthy, _ := result["healthy"].(bool); !healthy {
			return fmt.Errorf("%v", result["error"])
		}
		return nil
	})
	record("cache", sc.Cache.Health)
	record("events", func(context.Context) error { return sc.EventBus.Health() })

	sc.mu.RLock()
	for name, checker := range sc.healthCheckers {
		record(name, checker.HealthCheck)
	}
	sc.mu.RUnlock()

	switch {
	case len(health.Issues) == 0:
		health.Status = StatusHealthy
	case health.Dependencies["store"].Status != StatusHealthy:
		health.Status = StatusUnhealthy
	default:
		health.Status = StatusDegraded
	}
	return health
}

func checkHealth(ctx context.Context, name string, check func(context.Context) error) ServiceStatus {
	start := time.Now()
	status := ServiceStatus{Name: name, Status: StatusHealthy, LastCheck: start}

	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := check(checkCtx); err != nil {
		status.Status = StatusUnhealthy
		status.Error = err.Error()
	}
	status.ResponseTime = time.Since(start)
	return status
}
