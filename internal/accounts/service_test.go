package accounts

import (
	"context"
	"errors"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

type fakeStore struct {
	byUsername map[string]Account
	created    []CreateAccountParams
	countErr   error
}

func (f *fakeStore) GetByUsername(_ context.Context, username string) (Account, error) {
	account, ok := f.byUsername[username]
	if !ok {
		return Account{}, ErrNotFound
	}
	return account, nil
}

func (f *fakeStore) Count(_ context.Context) (int64, error) {
	if f.countErr != nil {
		return 0, f.countErr
	}
	return int64(len(f.byUsername)), nil
}

func (f *fakeStore) Create(_ context.Context, params CreateAccountParams) (Account, error) {
	f.created = append(f.created, params)
	account := Account{
		ID:           "acct-1",
		Username:     params.Username,
		DisplayName:  params.DisplayName,
		Role:         params.Role,
		IsActive:     true,
		passwordHash: params.PasswordHash,
	}
	if f.byUsername == nil {
		f.byUsername = map[string]Account{}
	}
	f.byUsername[params.Username] = account
	return account, nil
}

func hashFor(t *testing.T, password string) string {
	t.Helper()
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	return string(hashed)
}

func TestAuthenticate(t *testing.T) {
	t.Parallel()

	store := &fakeStore{byUsername: map[string]Account{
		"riley": {ID: "acct-1", Username: "riley", IsActive: true, passwordHash: hashFor(t, "correct horse")},
		"gone":  {ID: "acct-2", Username: "gone", IsActive: false, passwordHash: hashFor(t, "whatever")},
	}}
	svc := NewService(nil, store)

	account, err := svc.Authenticate(context.Background(), "riley", "correct horse")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if account.ID != "acct-1" {
		t.Fatalf("unexpected account: %+v", account)
	}

	cases := []struct {
		name     string
		username string
		password string
	}{
		{"wrong password", "riley", "battery staple"},
		{"unknown username", "nobody", "correct horse"},
		{"deactivated account", "gone", "whatever"},
		{"blank username", "", "correct horse"},
		{"blank password", "riley", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := svc.Authenticate(context.Background(), tc.username, tc.password); !errors.Is(err, ErrInvalidCredentials) {
				t.Fatalf("expected ErrInvalidCredentials, got %v", err)
			}
		})
	}
}

func TestEnsureAdmin(t *testing.T) {
	t.Parallel()

	t.Run("creates admin on empty table", func(t *testing.T) {
		store := &fakeStore{}
		svc := NewService(nil, store)
		if err := svc.EnsureAdmin(context.Background(), "admin", "s3cret"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(store.created) != 1 {
			t.Fatalf("expected one account created, got %d", len(store.created))
		}
		created := store.created[0]
		if created.Username != "admin" || created.Role != RoleAdmin {
			t.Fatalf("unexpected account: %+v", created)
		}
		if err := bcrypt.CompareHashAndPassword([]byte(created.PasswordHash), []byte("s3cret")); err != nil {
			t.Fatalf("stored hash does not match password: %v", err)
		}
	})

	t.Run("noop when accounts exist", func(t *testing.T) {
		store := &fakeStore{byUsername: map[string]Account{
			"riley": {Username: "riley"},
		}}
		svc := NewService(nil, store)
		if err := svc.EnsureAdmin(context.Background(), "admin", "s3cret"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(store.created) != 0 {
			t.Fatal("existing installs must not grow an extra admin")
		}
	})

	t.Run("requires credentials", func(t *testing.T) {
		svc := NewService(nil, &fakeStore{})
		if err := svc.EnsureAdmin(context.Background(), "", ""); err == nil {
			t.Fatal("expected error for missing credentials")
		}
	})
}
