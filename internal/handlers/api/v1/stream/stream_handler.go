// file: internal/handlers/api/v1/stream/stream_handler.go
package stream

import (
	"context"
	"net/http"
	"sync"
	"time"

	"bridgeus/internal/middleware"
	"bridgeus/internal/models"
	"bridgeus/internal/response"
	"bridgeus/internal/services"
	"bridgeus/internal/store"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Topics a client can subscribe to
const (
	TopicTasks               = "tasks"
	TopicCompanyTasks        = "company_tasks"
	TopicTaskApplications    = "task_applications"
	TopicChatRooms           = "chat_rooms"
	TopicMessages            = "messages"
	TopicNotifications       = "notifications"
	TopicUnreadNotifications = "unread_notifications"
	TopicUnreadChats         = "unread_chats"
)

// Client actions
const (
	ActionSubscribe   = "subscribe"
	ActionUnsubscribe = "unsubscribe"
)

// Server frame types
const (
	FrameSnapshot     = "snapshot"
	FrameSubscribed   = "subscribed"
	FrameUnsubscribed = "unsubscribed"
	FrameClosed       = "closed"
	FrameError        = "error"
	FrameSignedOut    = "signed_out"
)

// ClientFrame is a request sent by the client. ID names the subscription
// and is chosen by the client.
type ClientFrame struct {
	Action string            `json:"action"`
	ID     string            `json:"id"`
	Topic  string            `json:"topic,omitempty"`
	Params map[string]string `json:"params,omitempty"`
}

// ServerFrame is pushed to the client. Snapshot frames carry the full
// current value of the subscription in Data.
type ServerFrame struct {
	Type   string                `json:"type"`
	ID     string                `json:"id,omitempty"`
	Topic  string                `json:"topic,omitempty"`
	Data   interface{}           `json:"data,omitempty"`
	Error  *response.ErrorDetail `json:"error,omitempty"`
	Reason string                `json:"reason,omitempty"`
}

// Config tunes the websocket connection
type Config struct {
	AllowedOrigins []string
	WriteWait      time.Duration
	PongWait       time.Duration
	PingInterval   time.Duration
	MaxMessageSize int64
	SendBuffer     int
}

// DefaultConfig returns production connection settings
func DefaultConfig() *Config {
	return &Config{
		AllowedOrigins: []string{"*"},
		WriteWait:      10 * time.Second,
		PongWait:       60 * time.Second,
		PingInterval:   50 * time.Second,
		MaxMessageSize: 4096,
		SendBuffer:     32,
	}
}

// Handler upgrades authenticated requests and streams subscription
// snapshots over the connection
type Handler struct {
	serviceCollection *services.ServiceCollection
	config            *Config
	upgrader          websocket.Upgrader
	logger            *zap.Logger
}

// NewHandler creates a stream handler
func NewHandler(serviceCollection *services.ServiceCollection, config *Config, logger *zap.Logger) *Handler {
	if config == nil {
		config = DefaultConfig()
	}
	h := &Handler{
		serviceCollection: serviceCollection,
		config:            config,
		logger:            logger,
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

func (h *Handler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range h.config.AllowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}

// ServeHTTP handles GET /ws. Must run behind RequireAuth.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	authCtx := middleware.GetAuthContext(r.Context())
	if authCtx == nil {
		response.QuickError(w, r, services.NewAuthenticationError("authentication required", services.ReasonInvalidCredentials, ""))
		return
	}

	// detached from the request so route timeouts do not end subscriptions
	ctx, cancel := context.WithCancel(context.Background())
	session, err := h.serviceCollection.AuthService.ObserveSession(ctx, authCtx.Token)
	if err != nil {
		cancel()
		response.QuickError(w, r, err)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		cancel()
		session.Unsubscribe()
		h.logger.Warn("WebSocket upgrade failed", zap.Error(err))
		return
	}

	c := &client{
		handler: h,
		conn:    conn,
		userID:  authCtx.UserID,
		send:    make(chan ServerFrame, h.config.SendBuffer),
		subs:    make(map[string]*subscription),
		ctx:     ctx,
		cancel:  cancel,
		logger: middleware.GetRequestLogger(r.Context()).With(
			zap.String("user_id", authCtx.UserID),
			zap.String("component", "stream"),
		),
	}
	c.logger.Info("WebSocket client connected")

	go c.watchSession(session)
	go c.writePump()
	c.readPump()
}

// ===============================
// CLIENT
// ===============================

type subscription struct {
	topic string
	stop  func()
}

type client struct {
	handler *Handler
	conn    *websocket.Conn
	userID  string
	send    chan ServerFrame
	logger  *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu   sync.Mutex
	subs map[string]*subscription
	wg   sync.WaitGroup
}

func (c *client) readPump() {
	defer c.close()

	cfg := c.handler.config
	c.conn.SetReadLimit(cfg.MaxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(cfg.PongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(cfg.PongWait))
	})

	for {
		var frame ClientFrame
		if err := c.conn.ReadJSON(&frame); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Debug("WebSocket read failed", zap.Error(err))
			}
			return
		}

		switch frame.Action {
		case ActionSubscribe:
			c.subscribe(frame)
		case ActionUnsubscribe:
			if c.unsubscribe(frame.ID) {
				c.enqueue(ServerFrame{Type: FrameUnsubscribed, ID: frame.ID})
			}
		default:
			c.enqueueError(frame.ID, services.NewValidationError("unknown action "+frame.Action, nil))
		}
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(c.handler.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	writeWait := c.handler.config.WriteWait
	for {
		select {
		case frame := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(frame); err != nil {
				c.logger.Debug("WebSocket write failed", zap.Error(err))
				c.cancel()
				return
			}
			if frame.Type == FrameSignedOut {
				_ = c.conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.ClosePolicyViolation, frame.Reason),
					time.Now().Add(writeWait))
				c.cancel()
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				c.cancel()
				return
			}
		case <-c.ctx.Done():
			_ = c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			return
		}
	}
}

// watchSession ends the connection when the token's session ends
func (c *client) watchSession(session *store.Stream[*services.AuthState]) {
	defer session.Unsubscribe()
	for {
		select {
		case <-c.ctx.Done():
			return
		case state, ok := <-session.C():
			if !ok {
				return
			}
			if state != nil && !state.SignedIn {
				c.logger.Info("Session ended, closing stream", zap.String("reason", state.Reason))
				c.enqueue(ServerFrame{Type: FrameSignedOut, Reason: state.Reason})
				return
			}
		}
	}
}

// close stops every subscription and waits for forwarders to exit
func (c *client) close() {
	c.cancel()

	c.mu.Lock()
	subs := c.subs
	c.subs = make(map[string]*subscription)
	c.mu.Unlock()
	for _, sub := range subs {
		sub.stop()
	}

	c.wg.Wait()
	c.logger.Info("WebSocket client disconnected", zap.Int("subscriptions", len(subs)))
}

// enqueue blocks until the writer accepts frame or the client closes.
// Streams keep only their newest value, so a blocked forwarder never
// delivers stale state.
func (c *client) enqueue(frame ServerFrame) {
	select {
	case c.send <- frame:
	case <-c.ctx.Done():
	}
}

func (c *client) enqueueError(id string, err error) {
	serviceErr := services.GetServiceError(err)
	c.enqueue(ServerFrame{
		Type: FrameError,
		ID:   id,
		Error: &response.ErrorDetail{
			Type:    serviceErr.Type,
			Message: serviceErr.Message,
			Code:    serviceErr.Code,
		},
	})
}

func (c *client) unsubscribe(id string) bool {
	c.mu.Lock()
	sub, ok := c.subs[id]
	delete(c.subs, id)
	c.mu.Unlock()
	if ok {
		sub.stop()
	}
	return ok
}

// ===============================
// SUBSCRIPTIONS
// ===============================

func (c *client) subscribe(frame ClientFrame) {
	if frame.ID == "" {
		c.enqueueError("", services.NewValidationError("subscription id is required", nil))
		return
	}

	var err error
	svc := c.handler.serviceCollection
	switch frame.Topic {
	case TopicTasks:
		filter := models.TaskFilter{Category: frame.Params["category"], Search: frame.Params["search"]}
		var s *store.Stream[[]*models.TaskView]
		if s, err = svc.TaskService.SubscribeVisibleTasks(c.ctx, c.userID, filter); err == nil {
			forward(c, frame, s)
		}
	case TopicCompanyTasks:
		var s *store.Stream[[]*models.Task]
		if s, err = svc.TaskService.SubscribeCompanyTasks(c.ctx, c.userID); err == nil {
			forward(c, frame, s)
		}
	case TopicTaskApplications:
		var s *store.Stream[[]*models.Application]
		if s, err = c.subscribeTaskApplications(frame.Params["taskId"]); err == nil {
			forward(c, frame, s)
		}
	case TopicChatRooms:
		var s *store.Stream[[]*models.ChatRoom]
		if s, err = svc.ChatService.SubscribeChatRooms(c.ctx, c.userID); err == nil {
			forward(c, frame, s)
		}
	case TopicMessages:
		var s *store.Stream[[]*models.Message]
		if s, err = svc.ChatService.SubscribeMessages(c.ctx, frame.Params["roomId"], c.userID); err == nil {
			forward(c, frame, s)
		}
	case TopicNotifications:
		var s *store.Stream[[]*models.Notification]
		if s, err = svc.NotificationService.SubscribeNotifications(c.ctx, c.userID); err == nil {
			forward(c, frame, s)
		}
	case TopicUnreadNotifications:
		var s *store.Stream[int]
		if s, err = svc.NotificationService.SubscribeUnreadCount(c.ctx, c.userID); err == nil {
			forward(c, frame, s)
		}
	case TopicUnreadChats:
		var s *store.Stream[int]
		if s, err = svc.ChatService.SubscribeUnreadChatCount(c.ctx, c.userID); err == nil {
			forward(c, frame, s)
		}
	default:
		err = services.NewValidationError("unknown topic "+frame.Topic, nil)
	}

	if err != nil {
		c.enqueueError(frame.ID, err)
	}
}

// subscribeTaskApplications is limited to the company owning the task
func (c *client) subscribeTaskApplications(taskID string) (*store.Stream[[]*models.Application], error) {
	if taskID == "" {
		return nil, services.NewValidationError("taskId is required", nil)
	}
	svc := c.handler.serviceCollection
	task, err := svc.TaskService.GetTask(c.ctx, taskID, "")
	if err != nil {
		return nil, err
	}
	if task.CompanyID != c.userID {
		return nil, services.NotOwnerError("watch applications of", "task", c.userID)
	}
	return svc.ApplicationService.SubscribeTaskApplications(c.ctx, taskID)
}

// forward registers s under frame.ID, replacing any subscription with the
// same id, and pushes each value as a snapshot frame
func forward[T any](c *client, frame ClientFrame, s *store.Stream[T]) {
	sub := &subscription{topic: frame.Topic, stop: s.Unsubscribe}

	c.mu.Lock()
	previous := c.subs[frame.ID]
	c.subs[frame.ID] = sub
	c.mu.Unlock()
	if previous != nil {
		previous.stop()
	}

	c.enqueue(ServerFrame{Type: FrameSubscribed, ID: frame.ID, Topic: frame.Topic})

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		for {
			select {
			case <-c.ctx.Done():
				s.Unsubscribe()
				return
			case v, ok := <-s.C():
				if !ok {
					c.mu.Lock()
					current := c.subs[frame.ID] == sub
					if current {
						delete(c.subs, frame.ID)
					}
					c.mu.Unlock()
					if current {
						c.enqueue(ServerFrame{Type: FrameClosed, ID: frame.ID, Topic: frame.Topic})
					}
					return
				}
				c.enqueue(ServerFrame{Type: FrameSnapshot, ID: frame.ID, Topic: frame.Topic, Data: v})
			}
		}
	}()
}
