// Package session holds the signed-in user's profile for one client and
// keeps it in step with the auth state behind its token.
package session

import (
	"context"
	"errors"
	"strings"
	"sync"

	"bridgeus/internal/models"
	"bridgeus/internal/services"
	"bridgeus/internal/store"
	"bridgeus/internal/utils"

	"go.uber.org/zap"
)

// State of a session
type State string

const (
	StateUnauthenticated State = "unauthenticated"
	StateAuthenticating  State = "authenticating"
	StateAuthenticated   State = "authenticated"
)

var (
	ErrNotAuthenticated = errors.New("session: not authenticated")
	ErrClosed           = errors.New("session: closed")
	ErrBusy             = errors.New("session: sign-in already in progress")
)

// Snapshot is one observed session state. User is set only when
// authenticated; Reason explains the last transition to unauthenticated.
type Snapshot struct {
	State  State
	User   models.User
	Token  string
	Reason string
	// Fallback is true when the account has no profile document and User
	// was derived from the account itself.
	Fallback bool
}

// RegisterRequest signs up a student or a company
type RegisterRequest struct {
	Type        models.UserType `json:"type" validate:"required,oneof=student company"`
	Email       string          `json:"email" validate:"required,email"`
	Password    string          `json:"password" validate:"required"`
	DisplayName string          `json:"displayName,omitempty" validate:"max=100"`

	// student
	University string `json:"university,omitempty" validate:"max=100"`
	Faculty    string `json:"faculty,omitempty" validate:"max=100"`
	Year       int    `json:"year,omitempty" validate:"omitempty,min=1,max=6"`

	// company
	CompanyName        string `json:"companyName,omitempty" validate:"max=100"`
	RepresentativeName string `json:"representativeName,omitempty" validate:"max=100"`
}

// ProfileUpdate holds editable fields of either profile kind. Fields that do
// not apply to the signed-in user's kind are ignored.
type ProfileUpdate struct {
	Name       *string `json:"name,omitempty"`
	University *string `json:"university,omitempty"`
	Faculty    *string `json:"faculty,omitempty"`
	Year       *int    `json:"year,omitempty"`
	Bio        *string `json:"bio,omitempty"`

	CompanyName        *string `json:"companyName,omitempty"`
	RepresentativeName *string `json:"representativeName,omitempty"`
	Description        *string `json:"description,omitempty"`
}

// Session is created at app start and closed explicitly. It is safe for
// concurrent use.
type Session struct {
	auth   services.AuthService
	users  services.UserService
	logger *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.RWMutex
	current  Snapshot
	observer *store.Stream[*services.AuthState]
	gen      uint64
	closed   bool

	changes *store.Stream[Snapshot]

	userAgent string
	ipAddress string
}

// Option configures a Session
type Option func(*Session)

// WithClientInfo records the client on sessions created by Register and
// Login
func WithClientInfo(userAgent, ipAddress string) Option {
	return func(s *Session) {
		s.userAgent = userAgent
		s.ipAddress = ipAddress
	}
}

// New returns an unauthenticated session
func New(auth services.AuthService, users services.UserService, logger *zap.Logger, opts ...Option) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		auth:    auth,
		users:   users,
		logger:  logger,
		ctx:     ctx,
		cancel:  cancel,
		current: Snapshot{State: StateUnauthenticated},
		changes: store.NewStream[Snapshot](nil),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Current returns the latest state
func (s *Session) Current() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// User returns the signed-in profile or nil
func (s *Session) User() models.User {
	return s.Current().User
}

// Changes delivers state transitions. A slow reader sees the newest state.
// The channel is closed by Close.
func (s *Session) Changes() <-chan Snapshot {
	return s.changes.C()
}

// Register creates the account, writes the profile document and signs in
func (s *Session) Register(ctx context.Context, req *RegisterRequest) (models.User, error) {
	gen, err := s.begin()
	if err != nil {
		return nil, err
	}

	displayName := strings.TrimSpace(req.DisplayName)
	if displayName == "" && req.Type == models.UserTypeCompany {
		displayName = strings.TrimSpace(req.CompanyName)
	}

	result, err := s.auth.CreateAccount(ctx, &services.SignUpRequest{
		Email:       req.Email,
		Password:    req.Password,
		DisplayName: displayName,
		UserAgent:   s.userAgent,
		IPAddress:   s.ipAddress,
	})
	if err != nil {
		s.fail(gen, "")
		return nil, err
	}

	profile := newProfile(result.Account, req, displayName)
	if err := s.users.CreateProfile(ctx, profile); err != nil {
		s.logger.Warn("Profile write failed after sign-up",
			zap.String("user_id", result.Account.ID),
			zap.Error(err))
		if signOutErr := s.auth.SignOut(ctx, result.Token); signOutErr != nil {
			s.logger.Warn("Failed to sign out after profile write failure", zap.Error(signOutErr))
		}
		s.fail(gen, "")
		return nil, err
	}

	return s.establish(ctx, gen, result)
}

// Login signs in with email and password and loads the profile
func (s *Session) Login(ctx context.Context, email, password string) (models.User, error) {
	gen, err := s.begin()
	if err != nil {
		return nil, err
	}

	result, err := s.auth.SignIn(ctx, &services.SignInRequest{
		Email:     email,
		Password:  password,
		UserAgent: s.userAgent,
		IPAddress: s.ipAddress,
	})
	if err != nil {
		s.fail(gen, "")
		return nil, err
	}
	return s.establish(ctx, gen, result)
}

// Resume adopts an existing token, e.g. one restored from device storage
func (s *Session) Resume(ctx context.Context, token string) (models.User, error) {
	gen, err := s.begin()
	if err != nil {
		return nil, err
	}

	claims, err := s.auth.VerifyToken(ctx, token)
	if err != nil {
		s.fail(gen, "")
		return nil, err
	}
	return s.establish(ctx, gen, &services.AuthResult{
		Account:   &models.Account{ID: claims.UserID, Email: claims.Email},
		Token:     token,
		ExpiresAt: claims.ExpiresAt,
		SessionID: claims.SessionID,
	})
}

// Logout signs out and clears local state. Local state is cleared even
// when the sign-out call fails.
func (s *Session) Logout(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	token := s.current.Token
	s.gen++
	s.stopObserverLocked()
	s.setLocked(Snapshot{State: StateUnauthenticated, Reason: services.StateReasonSignedOut})
	s.mu.Unlock()

	if token == "" {
		return nil
	}
	return s.auth.SignOut(ctx, token)
}

// UpdateProfile merges the editable fields into the profile document and
// refreshes the local copy. A fallback profile is written first.
func (s *Session) UpdateProfile(ctx context.Context, update ProfileUpdate) (models.User, error) {
	snap := s.Current()
	if snap.State != StateAuthenticated || snap.User == nil {
		return nil, ErrNotAuthenticated
	}

	if snap.Fallback {
		if err := s.users.CreateProfile(ctx, snap.User); err != nil {
			return nil, err
		}
	}

	var err error
	switch u := snap.User.(type) {
	case *models.Student:
		_, err = s.users.UpdateStudentProfile(ctx, u.ID, &services.UpdateStudentProfileRequest{
			Name:       update.Name,
			University: update.University,
			Faculty:    update.Faculty,
			Year:       update.Year,
			Bio:        update.Bio,
		})
		if err == nil && update.Name != nil {
			err = s.auth.UpdateDisplayName(ctx, u.ID, *update.Name)
		}
	case *models.Company:
		_, err = s.users.UpdateCompanyProfile(ctx, u.ID, &services.UpdateCompanyProfileRequest{
			CompanyName:        update.CompanyName,
			RepresentativeName: update.RepresentativeName,
			Description:        update.Description,
		})
		if err == nil && update.CompanyName != nil {
			err = s.auth.UpdateDisplayName(ctx, u.ID, *update.CompanyName)
		}
	}
	if err != nil {
		return nil, err
	}

	return s.Refresh(ctx)
}

// Refresh re-reads the profile document of the signed-in user
func (s *Session) Refresh(ctx context.Context) (models.User, error) {
	s.mu.RLock()
	snap, gen := s.current, s.gen
	s.mu.RUnlock()
	if snap.State != StateAuthenticated || snap.User == nil {
		return nil, ErrNotAuthenticated
	}

	user, fallback, err := s.fetchProfile(ctx, snap.User.GetID(), snap.User.GetEmail(), snap.User.DisplayName())
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen != gen || s.closed {
		return nil, ErrNotAuthenticated
	}
	snap.User = user
	snap.Fallback = fallback
	s.setLocked(snap)
	return user, nil
}

// Close stops observing auth state and closes Changes. The session is not
// signed out.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.gen++
	s.stopObserverLocked()
	s.mu.Unlock()

	s.cancel()
	s.wg.Wait()
	s.changes.Unsubscribe()
}

// ===============================
// TRANSITIONS
// ===============================

func (s *Session) begin() (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, ErrClosed
	}
	if s.current.State == StateAuthenticating {
		return 0, ErrBusy
	}
	s.gen++
	s.stopObserverLocked()
	s.setLocked(Snapshot{State: StateAuthenticating})
	return s.gen, nil
}

func (s *Session) fail(gen uint64, reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen != gen || s.closed {
		return
	}
	s.setLocked(Snapshot{State: StateUnauthenticated, Reason: reason})
}

// establish fetches the profile and starts observing the token
func (s *Session) establish(ctx context.Context, gen uint64, result *services.AuthResult) (models.User, error) {
	account := result.Account
	user, fallback, err := s.fetchProfile(ctx, account.ID, account.Email, account.DisplayName)
	if err != nil {
		s.fail(gen, "")
		return nil, err
	}

	observer, err := s.auth.ObserveSession(s.ctx, result.Token)
	if err != nil {
		s.fail(gen, "")
		return nil, err
	}

	s.mu.Lock()
	if s.gen != gen || s.closed {
		s.mu.Unlock()
		observer.Unsubscribe()
		return nil, ErrNotAuthenticated
	}
	s.observer = observer
	s.setLocked(Snapshot{
		State:    StateAuthenticated,
		User:     user,
		Token:    result.Token,
		Fallback: fallback,
	})
	s.mu.Unlock()

	s.wg.Add(1)
	go s.observe(gen, observer)

	s.logger.Info("Session established",
		zap.String("user_id", user.GetID()),
		zap.String("user_type", string(user.GetType())),
		zap.Bool("fallback_profile", fallback))
	return user, nil
}

// observe applies auth-state events. A signed-out event always wins over
// local state of the same generation.
func (s *Session) observe(gen uint64, observer *store.Stream[*services.AuthState]) {
	defer s.wg.Done()
	for state := range observer.C() {
		if state == nil || state.SignedIn {
			continue
		}

		s.mu.Lock()
		if s.gen == gen && !s.closed {
			s.gen++
			s.observer = nil
			s.setLocked(Snapshot{State: StateUnauthenticated, Reason: state.Reason})
			s.logger.Info("Session ended by auth state change",
				zap.String("user_id", state.UserID),
				zap.String("reason", state.Reason))
		}
		s.mu.Unlock()
		return
	}
}

func (s *Session) stopObserverLocked() {
	if s.observer != nil {
		s.observer.Unsubscribe()
		s.observer = nil
	}
}

func (s *Session) setLocked(snap Snapshot) {
	s.current = snap
	s.changes.Send(snap)
}

// fetchProfile loads the profile document, falling back to a student built
// from the account when none exists
func (s *Session) fetchProfile(ctx context.Context, userID, email, displayName string) (models.User, bool, error) {
	user, err := s.users.GetUser(ctx, userID)
	if err == nil {
		return user, false, nil
	}
	if !services.IsNotFoundError(err) {
		return nil, false, err
	}

	name := strings.TrimSpace(displayName)
	if name == "" {
		name = utils.EmailLocalPart(email)
	}
	return &models.Student{ID: userID, Email: email, Name: name}, true, nil
}

func newProfile(account *models.Account, req *RegisterRequest, displayName string) models.User {
	if req.Type == models.UserTypeCompany {
		companyName := strings.TrimSpace(req.CompanyName)
		if companyName == "" {
			companyName = displayName
		}
		return &models.Company{
			ID:                 account.ID,
			Email:              account.Email,
			CompanyName:        companyName,
			RepresentativeName: strings.TrimSpace(req.RepresentativeName),
		}
	}

	name := displayName
	if name == "" {
		name = utils.EmailLocalPart(account.Email)
	}
	return &models.Student{
		ID:         account.ID,
		Email:      account.Email,
		Name:       name,
		University: strings.TrimSpace(req.University),
		Faculty:    strings.TrimSpace(req.Faculty),
		Year:       req.Year,
	}
}
