package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
)

func TestActorFromContext(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	secret := "test-secret"
	signed, expiresAt, err := GenerateToken("acct-123", "Dana", secret, time.Hour)
	assert.NoError(t, err)
	assert.True(t, expiresAt.After(time.Now()))

	token, err := jwt.Parse(signed, func(token *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	})
	assert.NoError(t, err)
	c.Set("user", token)

	actor, err := ActorFromContext(c)
	assert.NoError(t, err)
	assert.Equal(t, "acct-123", actor.AccountID)
	assert.Equal(t, "Dana", actor.DisplayName)
}

func TestActorFromContext_MissingUser(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	_, err := ActorFromContext(c)
	assert.Error(t, err)

	httpErr, ok := err.(*echo.HTTPError)
	assert.True(t, ok)
	assert.Equal(t, http.StatusUnauthorized, httpErr.Code)
}

func TestGenerateToken_Validation(t *testing.T) {
	if _, _, err := GenerateToken("", "x", "secret", time.Hour); err == nil {
		t.Fatal("expected error for empty account id")
	}
	if _, _, err := GenerateToken("acct", "x", "", time.Hour); err == nil {
		t.Fatal("expected error for empty secret")
	}
	if _, _, err := GenerateToken("acct", "x", "secret", 0); err == nil {
		t.Fatal("expected error for non-positive lifetime")
	}
}
