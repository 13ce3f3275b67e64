// Package registry manages gallery accounts and their approval state.
// Accounts live in a single JSON document behind the docstore; every
// mutation is a full load-modify-save held under one mutex so that
// concurrent webhook deliveries cannot interleave partial updates.
package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"gallery-tg-bot/internal/auth"
	"gallery-tg-bot/internal/docstore"
	apperrors "gallery-tg-bot/internal/errors"
)

const accountsDoc = "accounts"

// Account is a stored gallery account. New accounts start unapproved and
// become visible in the gallery only after the admin allows them.
type Account struct {
	PasswordHash string `json:"password_hash"`
	Allowed      bool   `json:"allowed"`
}

// AuthResult is the outcome of a credential check.
type AuthResult int

const (
	// AuthInvalid means the username is unknown or the password is wrong.
	AuthInvalid AuthResult = iota
	// AuthPendingApproval means the credentials are valid but the admin
	// has not approved the account yet.
	AuthPendingApproval
	// AuthGranted means the credentials are valid and the account is approved.
	AuthGranted
)

// Registry is the account store.
type Registry struct {
	docs   *docstore.Store
	logger *slog.Logger

	// Serializes load-modify-save cycles across concurrent requests.
	mu sync.Mutex
}

// New creates a registry backed by docs.
func New(docs *docstore.Store, logger *slog.Logger) *Registry {
	return &Registry{docs: docs, logger: logger}
}

func (r *Registry) load(ctx context.Context) (map[string]Account, error) {
	body, err := r.docs.Load(ctx, accountsDoc)
	if err != nil {
		return nil, err
	}
	accounts := make(map[string]Account)
	if len(body) == 0 {
		return accounts, nil
	}
	if err := json.Unmarshal(body, &accounts); err != nil {
		return nil, fmt.Errorf("decode accounts document: %w", err)
	}
	return accounts, nil
}

func (r *Registry) save(ctx context.Context, accounts map[string]Account) error {
	body, err := json.Marshal(accounts)
	if err != nil {
		return fmt.Errorf("encode accounts document: %w", err)
	}
	return r.docs.Save(ctx, accountsDoc, body)
}

// Register creates a new unapproved account. Returns ErrUserExists when
// the username is already taken.
func (r *Registry) Register(ctx context.Context, username, password string) error {
	if username == "" {
		return errors.New("username is required")
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	accounts, err := r.load(ctx)
	if err != nil {
		return err
	}
	if _, exists := accounts[username]; exists {
		return apperrors.ErrUserExists
	}
	accounts[username] = Account{PasswordHash: hash, Allowed: false}
	if err := r.save(ctx, accounts); err != nil {
		return err
	}

	r.logger.Info("account registered", "username", username)
	return nil
}

// Authenticate checks credentials against the stored hash.
func (r *Registry) Authenticate(ctx context.Context, username, password string) (AuthResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	accounts, err := r.load(ctx)
	if err != nil {
		return AuthInvalid, err
	}
	account, ok := accounts[username]
	if !ok || !auth.VerifyPassword(password, account.PasswordHash) {
		return AuthInvalid, nil
	}
	if !account.Allowed {
		return AuthPendingApproval, nil
	}
	return AuthGranted, nil
}

// Approve marks the account as allowed. Approving an already-approved
// account is a no-op. Returns ErrUserNotFound for unknown usernames.
func (r *Registry) Approve(ctx context.Context, username string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	accounts, err := r.load(ctx)
	if err != nil {
		return err
	}
	account, ok := accounts[username]
	if !ok {
		return apperrors.ErrUserNotFound
	}
	if account.Allowed {
		return nil
	}
	account.Allowed = true
	accounts[username] = account
	if err := r.save(ctx, accounts); err != nil {
		return err
	}

	r.logger.Info("account approved", "username", username)
	return nil
}

// Deny deletes the account entirely. The username may be re-registered
// afterwards as a fresh account. Returns ErrUserNotFound for unknown
// usernames.
func (r *Registry) Deny(ctx context.Context, username string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	accounts, err := r.load(ctx)
	if err != nil {
		return err
	}
	if _, ok := accounts[username]; !ok {
		return apperrors.ErrUserNotFound
	}
	delete(accounts, username)
	if err := r.save(ctx, accounts); err != nil {
		return err
	}

	r.logger.Info("account denied and removed", "username", username)
	return nil
}

// IsAllowed reports whether the account exists and has been approved.
// Read-only check used by the gallery front-end.
func (r *Registry) IsAllowed(ctx context.Context, username string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	accounts, err := r.load(ctx)
	if err != nil {
		return false, err
	}
	account, ok := accounts[username]
	return ok && account.Allowed, nil
}

// Usernames returns all registered usernames, sorted.
func (r *Registry) Usernames(ctx context.Context) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	accounts, err := r.load(ctx)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(accounts))
	for name := range accounts {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}
