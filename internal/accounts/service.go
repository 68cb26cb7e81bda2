package accounts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

var (
	ErrNotFound = errors.New("account not found")
	// ErrInvalidCredentials covers both unknown usernames and wrong
	// passwords so login responses don't leak which one failed.
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// Store is the persistence interface for accounts.
type Store interface {
	GetByUsername(ctx context.Context, username string) (Account, error)
	Count(ctx context.Context) (int64, error)
	Create(ctx context.Context, params CreateAccountParams) (Account, error)
}

// Service authenticates operators and bootstraps the first admin.
type Service struct {
	store  Store
	logger *slog.Logger
}

// NewService creates an accounts service.
func NewService(log *slog.Logger, store Store) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		store:  store,
		logger: log.With(slog.String("service", "accounts")),
	}
}

// Authenticate checks a username/password pair and returns the account.
func (s *Service) Authenticate(ctx context.Context, username, password string) (Account, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return Account{}, ErrInvalidCredentials
	}
	account, err := s.store.GetByUsername(ctx, username)
	if errors.Is(err, ErrNotFound) {
		return Account{}, ErrInvalidCredentials
	}
	if err != nil {
		return Account{}, fmt.Errorf("get account: %w", err)
	}
	if !account.IsActive {
		return Account{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(account.passwordHash), []byte(password)); err != nil {
		return Account{}, ErrInvalidCredentials
	}
	return account, nil
}

// EnsureAdmin creates the configured admin account when the accounts table
// is empty. Subsequent starts are a no-op.
func (s *Service) EnsureAdmin(ctx context.Context, username, password string) error {
	count, err := s.store.Count(ctx)
	if err != nil {
		return fmt.Errorf("count accounts: %w", err)
	}
	if count > 0 {
		return nil
	}
	username = strings.TrimSpace(username)
	password = strings.TrimSpace(password)
	if username == "" || password == "" {
		return fmt.Errorf("admin username/password required in config.toml")
	}
	if password == "change-your-password-here" {
		s.logger.Warn("admin password uses default placeholder; please update config.toml")
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	account, err := s.store.Create(ctx, CreateAccountParams{
		Username:     username,
		DisplayName:  username,
		Role:         RoleAdmin,
		PasswordHash: string(hashed),
	})
	if err != nil {
		return fmt.Errorf("create admin account: %w", err)
	}
	s.logger.Info("admin account created",
		slog.String("username", account.Username),
		slog.String("account_id", account.ID),
	)
	return nil
}
