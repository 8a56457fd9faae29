package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/upb/blog-admin/backend/config"
	"github.com/upb/blog-admin/backend/firebase"
	"github.com/upb/blog-admin/backend/middleware"
	"github.com/upb/blog-admin/backend/models"
	"github.com/upb/blog-admin/backend/services"
	"github.com/upb/blog-admin/backend/utils"
	"go.uber.org/zap"
)

type MockTokenVerifier struct {
	mock.Mock
}

func (m *MockTokenVerifier) VerifyIDToken(ctx context.Context, token string) (*firebase.VerifiedClaim, error) {
	args := m.Called(ctx, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*firebase.VerifiedClaim), args.Error(1)
}

type MockSessionEstablisher struct {
	mock.Mock
}

func (m *MockSessionEstablisher) Establish(ctx context.Context, claim *firebase.VerifiedClaim, hints models.ProfileHints) (*models.Account, error) {
	args := m.Called(ctx, claim, hints)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Account), args.Error(1)
}

var sessionCfg = config.SessionConfig{CookieSecure: true, MaxAge: time.Hour}

func sessionCookie(t *testing.T, w *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range w.Result().Cookies() {
		if c.Name == middleware.SessionCookieName {
			return c
		}
	}
	return nil
}

func newSessionRequest(token, body string) *http.Request {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(http.MethodPost, "/auth/session", nil)
	} else {
		req = httptest.NewRequest(http.MethodPost, "/auth/session", strings.NewReader(body))
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

func TestHandleSession(t *testing.T) {
	logger := zap.NewNop()

	t.Run("active account gets a session cookie", func(t *testing.T) {
		verifier := new(MockTokenVerifier)
		sessions := new(MockSessionEstablisher)
		h := NewHandler(sessionCfg, verifier, sessions, logger)

		claims := &firebase.VerifiedClaim{UID: "u", Email: "ana@example.com", Name: "Ana", ExpiresAt: time.Now().Add(2 * time.Hour)}
		account := models.NewAccount("ana@example.com", models.ProfileHints{Name: "Ana"})
		verifier.On("VerifyIDToken", mock.Anything, "tok").Return(claims, nil)
		sessions.On("Establish", mock.Anything, claims, models.ProfileHints{Name: "Ana", PhotoURL: "p.png"}).Return(account, nil)

		w := httptest.NewRecorder()
		h.HandleSession(w, newSessionRequest("tok", `{"photoUrl":"p.png"}`))

		require.Equal(t, http.StatusOK, w.Code)
		cookie := sessionCookie(t, w)
		require.NotNil(t, cookie)
		assert.Equal(t, "tok", cookie.Value)
		assert.True(t, cookie.HttpOnly)
		assert.True(t, cookie.Secure)
		assert.Equal(t, http.SameSiteStrictMode, cookie.SameSite)
		assert.Equal(t, 3600, cookie.MaxAge)

		var got models.Account
		require.NoError(t, json.NewDecoder(w.Body).Decode(&got))
		assert.Equal(t, account.ID, got.ID)
	})

	t.Run("cookie does not outlive the token", func(t *testing.T) {
		verifier := new(MockTokenVerifier)
		sessions := new(MockSessionEstablisher)
		h := NewHandler(sessionCfg, verifier, sessions, logger)

		claims := &firebase.VerifiedClaim{UID: "u", Email: "a@example.com", ExpiresAt: time.Now().Add(10 * time.Minute)}
		verifier.On("VerifyIDToken", mock.Anything, "tok").Return(claims, nil)
		sessions.On("Establish", mock.Anything, claims, mock.Anything).Return(models.NewAccount("a@example.com", models.ProfileHints{}), nil)

		w := httptest.NewRecorder()
		h.HandleSession(w, newSessionRequest("tok", ""))

		cookie := sessionCookie(t, w)
		require.NotNil(t, cookie)
		assert.LessOrEqual(t, cookie.MaxAge, 600)
		assert.Greater(t, cookie.MaxAge, 500)
	})

	t.Run("blocked account is denied and cookie cleared", func(t *testing.T) {
		verifier := new(MockTokenVerifier)
		sessions := new(MockSessionEstablisher)
		h := NewHandler(sessionCfg, verifier, sessions, logger)

		claims := &firebase.VerifiedClaim{UID: "u", Email: "boss@example.com", Admin: true}
		blocked := models.NewAccount("boss@example.com", models.ProfileHints{})
		blocked.Blocked = true
		suspended := services.NewDomainError(services.ErrorTypeSuspended, "account is suspended", nil).
			WithDetail("session", "terminate")
		verifier.On("VerifyIDToken", mock.Anything, "tok").Return(claims, nil)
		sessions.On("Establish", mock.Anything, claims, mock.Anything).Return(blocked, suspended)

		w := httptest.NewRecorder()
		h.HandleSession(w, newSessionRequest("tok", ""))

		assert.Equal(t, http.StatusForbidden, w.Code)
		cookie := sessionCookie(t, w)
		require.NotNil(t, cookie)
		assert.Empty(t, cookie.Value)
		assert.Less(t, cookie.MaxAge, 0)

		var body utils.ErrorResponse
		require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
		assert.Equal(t, "account_suspended", body.Error)
		assert.Equal(t, "terminate", body.Details["session"])
	})

	t.Run("missing credential", func(t *testing.T) {
		verifier := new(MockTokenVerifier)
		h := NewHandler(sessionCfg, verifier, new(MockSessionEstablisher), logger)

		w := httptest.NewRecorder()
		h.HandleSession(w, newSessionRequest("", ""))

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		verifier.AssertNotCalled(t, "VerifyIDToken", mock.Anything, mock.Anything)
	})

	t.Run("expired credential", func(t *testing.T) {
		verifier := new(MockTokenVerifier)
		sessions := new(MockSessionEstablisher)
		h := NewHandler(sessionCfg, verifier, sessions, logger)
		verifier.On("VerifyIDToken", mock.Anything, "old").Return(nil, fmt.Errorf("%w: exp", firebase.ErrTokenExpired))

		w := httptest.NewRecorder()
		h.HandleSession(w, newSessionRequest("old", ""))

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		sessions.AssertNotCalled(t, "Establish", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("key fetch failure is retryable", func(t *testing.T) {
		verifier := new(MockTokenVerifier)
		h := NewHandler(sessionCfg, verifier, new(MockSessionEstablisher), logger)
		verifier.On("VerifyIDToken", mock.Anything, "tok").Return(nil, firebase.ErrJWKSFetchFailed)

		w := httptest.NewRecorder()
		h.HandleSession(w, newSessionRequest("tok", ""))

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		assert.Nil(t, sessionCookie(t, w))
	})

	t.Run("credential without email", func(t *testing.T) {
		verifier := new(MockTokenVerifier)
		sessions := new(MockSessionEstablisher)
		h := NewHandler(sessionCfg, verifier, sessions, logger)
		claims := &firebase.VerifiedClaim{UID: "phone-only"}
		verifier.On("VerifyIDToken", mock.Anything, "tok").Return(claims, nil)
		sessions.On("Establish", mock.Anything, claims, mock.Anything).Return(nil, services.ErrMissingEmail)

		w := httptest.NewRecorder()
		h.HandleSession(w, newSessionRequest("tok", ""))

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Nil(t, sessionCookie(t, w))
	})
}

func TestHandleLogout(t *testing.T) {
	h := NewHandler(sessionCfg, nil, nil, zap.NewNop())

	w := httptest.NewRecorder()
	h.HandleLogout(w, httptest.NewRequest(http.MethodPost, "/auth/logout", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	cookie := sessionCookie(t, w)
	require.NotNil(t, cookie)
	assert.Empty(t, cookie.Value)
	assert.Less(t, cookie.MaxAge, 0)
}
