package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/iliyamo/contacts-api/internal/model"
	"github.com/iliyamo/contacts-api/internal/queue"
	"github.com/iliyamo/contacts-api/internal/repository"
	"github.com/iliyamo/contacts-api/internal/service"
)

// In-memory stores wired into a real AuthService so the handlers are
// exercised end to end without MySQL or Redis.

type memUsers struct{ byID map[uint64]model.User }

func (m *memUsers) Create(_ context.Context, username, email, hash string, avatar *string) (uint64, error) {
	id := uint64(len(m.byID) + 1)
	m.byID[id] = model.User{ID: id, Username: username, Email: email, PasswordHash: hash,
		Role: model.RoleUser, Avatar: avatar}
	return id, nil
}

func (m *memUsers) GetByUsername(_ context.Context, username string) (model.User, error) {
	for _, u := range m.byID {
		if u.Username == username {
			return u, nil
		}
	}
	return model.User{}, repository.ErrNotFound
}

func (m *memUsers) GetByEmail(_ context.Context, email string) (model.User, error) {
	for _, u := range m.byID {
		if u.Email == email {
			return u, nil
		}
	}
	return model.User{}, repository.ErrNotFound
}

func (m *memUsers) GetByID(_ context.Context, id uint64) (model.User, error) {
	u, ok := m.byID[id]
	if !ok {
		return model.User{}, repository.ErrNotFound
	}
	return u, nil
}

func (m *memUsers) ConfirmEmail(_ context.Context, email string) error {
	for id, u := range m.byID {
		if u.Email == email {
			u.Confirmed = true
			m.byID[id] = u
		}
	}
	return nil
}

type memTokens struct{ rows map[string]*model.RefreshToken }

func (m *memTokens) StoreRefresh(_ context.Context, userID uint64, hash string, exp time.Time, ip, ua *string) error {
	m.rows[hash] = &model.RefreshToken{UserID: userID, TokenHash: hash, ExpiredAt: exp, IPAddress: ip, UserAgent: ua}
	return nil
}

func (m *memTokens) GetActive(_ context.Context, hash string, now time.Time) (model.RefreshToken, error) {
	if row, ok := m.rows[hash]; ok && row.Active(now) {
		return *row, nil
	}
	return model.RefreshToken{}, repository.ErrNotFound
}

func (m *memTokens) GetByHash(_ context.Context, hash string) (model.RefreshToken, error) {
	if row, ok := m.rows[hash]; ok {
		return *row, nil
	}
	return model.RefreshToken{}, repository.ErrNotFound
}

func (m *memTokens) Revoke(_ context.Context, hash string, now time.Time) error {
	if row, ok := m.rows[hash]; ok && row.RevokedAt == nil {
		row.RevokedAt = &now
	}
	return nil
}

type memLedger struct{ denied map[string]bool }

func (m *memLedger) Deny(_ context.Context, token string, ttl time.Duration) error {
	if ttl > 0 {
		m.denied[token] = true
	}
	return nil
}

func (m *memLedger) IsDenied(_ context.Context, token string) (bool, error) {
	return m.denied[token], nil
}

func newAuthHandler() (*AuthHandler, *memUsers) {
	users := &memUsers{byID: map[uint64]model.User{}}
	tokens := &memTokens{rows: map[string]*model.RefreshToken{}}
	ledger := &memLedger{denied: map[string]bool{}}
	svc := service.NewAuthService(service.AuthConfig{
		JWTSecret: "handler-test-secret", AccessTTLMin: 15,
		RefreshTTLDays: 7, EmailTokenTTLDays: 7, BcryptCost: bcrypt.MinCost,
	}, users, tokens, ledger,
		func(context.Context, queue.ConfirmationEmailEvent) error { return nil })
	return NewAuthHandler(svc), users
}

func doJSON(h echo.HandlerFunc, method, target, body string, hdr map[string]string) *httptest.ResponseRecorder {
	e := echo.New()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	_ = h(e.NewContext(req, rec))
	return rec
}

func TestRegisterHandler(t *testing.T) {
	h, _ := newAuthHandler()

	rec := doJSON(h.Register, http.MethodPost, "/api/auth/register",
		`{"username":"alice","email":"ALICE@x.com","password":"s3cretpw"}`, nil)
	require.Equal(t, http.StatusCreated, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "alice", body["username"])
	assert.Equal(t, "alice@x.com", body["email"])
	assert.Equal(t, false, body["confirmed"])
	assert.NotContains(t, body, "access_token", "registration issues no tokens")
	assert.NotContains(t, body, "password")

	rec = doJSON(h.Register, http.MethodPost, "/api/auth/register",
		`{"username":"alice","email":"other@x.com","password":"s3cretpw"}`, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "username already exists")

	rec = doJSON(h.Register, http.MethodPost, "/api/auth/register",
		`{"username":"bob","email":"bob@x.com","password":"short"}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLoginRefreshLogoutHandlers(t *testing.T) {
	h, users := newAuthHandler()

	rec := doJSON(h.Register, http.MethodPost, "/api/auth/register",
		`{"username":"alice","email":"alice@x.com","password":"s3cretpw"}`, nil)
	require.Equal(t, http.StatusCreated, rec.Code)

	// Unconfirmed login is 401 with the service's public message.
	rec = doJSON(h.Login, http.MethodPost, "/api/auth/login",
		`{"username":"alice","password":"s3cretpw"}`, nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "email not confirmed")

	require.NoError(t, users.ConfirmEmail(context.Background(), "alice@x.com"))

	rec = doJSON(h.Login, http.MethodPost, "/api/auth/login",
		`{"username":"alice","password":"s3cretpw"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var pair tokenResp
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &pair))
	assert.Equal(t, "bearer", pair.TokenType)
	require.NotEmpty(t, pair.AccessToken)
	require.NotEmpty(t, pair.RefreshToken)

	rec = doJSON(h.Refresh, http.MethodPost, "/api/auth/refresh",
		`{"refresh_token":"`+pair.RefreshToken+`"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var next tokenResp
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &next))
	assert.NotEqual(t, pair.RefreshToken, next.RefreshToken)

	rec = doJSON(h.Refresh, http.MethodPost, "/api/auth/refresh",
		`{"refresh_token":"definitely-not-issued"}`, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid refresh token")

	auth := map[string]string{"Authorization": "Bearer " + next.AccessToken}
	rec = doJSON(h.Logout, http.MethodPost, "/api/auth/logout",
		`{"refresh_token":"`+next.RefreshToken+`"}`, auth)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	// The revoked refresh token no longer rotates.
	rec = doJSON(h.Refresh, http.MethodPost, "/api/auth/refresh",
		`{"refresh_token":"`+next.RefreshToken+`"}`, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// Logout stays 204 on repeat even though the access token is denied.
	rec = doJSON(h.Logout, http.MethodPost, "/api/auth/logout",
		`{"refresh_token":"`+next.RefreshToken+`"}`, auth)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = doJSON(h.Logout, http.MethodPost, "/api/auth/logout", `{}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
