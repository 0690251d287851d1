// file: internal/repositories/auth_repository.go
package repositories

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"bridgeus/internal/models"
	"bridgeus/internal/store"
	"bridgeus/internal/utils"

	"go.uber.org/zap"
)

// ErrEmailTaken is returned when an account already uses the email
var ErrEmailTaken = errors.New("email already registered")

// authRepository implements AuthRepository
type authRepository struct {
	*BaseRepository
}

// NewAuthRepository creates a new auth repository
func NewAuthRepository(s store.Store, logger *zap.Logger) AuthRepository {
	return &authRepository{
		BaseRepository: NewBaseRepository(s, logger),
	}
}

// NormalizeEmail lower-cases and trims an address
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ===============================
// ACCOUNTS
// ===============================

// CreateAccount writes a new account. Emails are unique: the account and
// a claim document keyed by the email commit in one batch, so concurrent
// sign-ups with the same address leave exactly one account.
func (r *authRepository) CreateAccount(ctx context.Context, account *models.Account) error {
	account.Email = NormalizeEmail(account.Email)
	existing, err := r.GetAccountByEmail(ctx, account.Email)
	if err != nil {
		return err
	}
	if existing != nil {
		return ErrEmailTaken
	}
	if account.ID == "" {
		account.ID = store.NewID()
	}

	providers := account.Providers
	if providers == nil {
		providers = []string{}
	}
	err = r.store.Batch().
		Create(CollectionAccountEmails, emailKey(account.Email), map[string]interface{}{
			"accountId": account.ID,
			"createdAt": store.ServerTimestamp(),
		}).
		Set(CollectionAccounts, account.ID, map[string]interface{}{
			"email":        account.Email,
			"passwordHash": account.PasswordHash,
			"displayName":  account.DisplayName,
			"providers":    providers,
			"createdAt":    store.ServerTimestamp(),
		}).
		Commit(ctx)
	if errors.Is(err, store.ErrAlreadyExists) {
		return ErrEmailTaken
	}
	if err != nil {
		r.logger.Error("Failed to create account", zap.Error(err))
		return fmt.Errorf("failed to create account: %w", err)
	}
	return nil
}

// emailKey is the claim document id for a normalized email
func emailKey(email string) string {
	return utils.HashToken(email)
}

func (r *authRepository) GetAccountByID(ctx context.Context, id string) (*models.Account, error) {
	doc, err := r.GetDocument(ctx, CollectionAccounts, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	if doc == nil {
		return nil, nil
	}
	return decodeAccount(doc)
}

func (r *authRepository) GetAccountByEmail(ctx context.Context, email string) (*models.Account, error) {
	q := store.NewQuery(CollectionAccounts).
		Where("email", store.OpEqual, NormalizeEmail(email)).
		WithLimit(1)
	docs, err := r.QueryDocuments(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("failed to get account by email: %w", err)
	}
	if len(docs) == 0 {
		return nil, nil
	}
	return decodeAccount(docs[0])
}

func (r *authRepository) UpdateAccount(ctx context.Context, id string, fields map[string]interface{}) error {
	if err := r.store.Update(ctx, CollectionAccounts, id, fields); err != nil {
		return fmt.Errorf("failed to update account: %w", err)
	}
	return nil
}

// ===============================
// PASSWORD RESETS
// ===============================

func (r *authRepository) CreatePasswordReset(ctx context.Context, reset *models.PasswordReset) error {
	err := r.store.Set(ctx, CollectionPasswordResets, reset.ID, map[string]interface{}{
		"userId":    reset.UserID,
		"email":     reset.Email,
		"expiresAt": reset.ExpiresAt,
		"createdAt": store.ServerTimestamp(),
	})
	if err != nil {
		return fmt.Errorf("failed to store password reset: %w", err)
	}
	return nil
}

func (r *authRepository) GetPasswordReset(ctx context.Context, id string) (*models.PasswordReset, error) {
	doc, err := r.GetDocument(ctx, CollectionPasswordResets, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get password reset: %w", err)
	}
	if doc == nil {
		return nil, nil
	}
	return decodePasswordReset(doc)
}

func (r *authRepository) DeletePasswordReset(ctx context.Context, id string) error {
	if err := r.store.Delete(ctx, CollectionPasswordResets, id); err != nil {
		return fmt.Errorf("failed to delete password reset: %w", err)
	}
	return nil
}
