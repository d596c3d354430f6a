package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/civica-api/internal/models"
	appErrors "github.com/noah-isme/civica-api/pkg/errors"
)

type fakeAuthService struct {
	login         models.LoginRequest
	loggedOut     string
	changedFor    string
	loginErr      error
	meOfficeID    string
	passwordError error
}

func (f *fakeAuthService) Login(_ context.Context, req models.LoginRequest) (*models.LoginResponse, error) {
	f.login = req
	if f.loginErr != nil {
		return nil, f.loginErr
	}
	return &models.LoginResponse{AccessToken: "access", RefreshToken: "refresh"}, nil
}

func (f *fakeAuthService) RefreshToken(context.Context, models.RefreshTokenRequest) (*models.RefreshTokenResponse, error) {
	return &models.RefreshTokenResponse{AccessToken: "access-2"}, nil
}

func (f *fakeAuthService) Logout(_ context.Context, refreshToken string, _ string, _ models.LoginRequest) error {
	f.loggedOut = refreshToken
	return nil
}

func (f *fakeAuthService) ChangePassword(_ context.Context, userID string, _ models.ChangePasswordRequest) error {
	f.changedFor = userID
	return f.passwordError
}

func (f *fakeAuthService) Me(_ context.Context, userID string) (*models.UserInfo, error) {
	office := f.meOfficeID
	return &models.UserInfo{ID: userID, Role: models.RoleOffice, OfficeID: &office}, nil
}

func TestAuthHandlerLoginCapturesClientMeta(t *testing.T) {
	svc := &fakeAuthService{}
	handler := NewAuthHandler(svc)
	router := newRouter(nil)
	router.POST("/auth/login", handler.Login)

	rec, env := perform(t, router, http.MethodPost, "/auth/login", map[string]string{"email": "hm@school.test", "password": "secret123"})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "hm@school.test", svc.login.Email)
	assert.NotEmpty(t, svc.login.IP)
	var res models.LoginResponse
	require.NoError(t, json.Unmarshal(env.Data, &res))
	assert.Equal(t, "access", res.AccessToken)
}

func TestAuthHandlerLoginInvalidCredentials(t *testing.T) {
	handler := NewAuthHandler(&fakeAuthService{loginErr: appErrors.ErrInvalidCredentials})
	router := newRouter(nil)
	router.POST("/auth/login", handler.Login)

	rec, _ := perform(t, router, http.MethodPost, "/auth/login", map[string]string{"email": "x@y.z", "password": "nope"})
	assert.Equal(t, appErrors.ErrInvalidCredentials.Status, rec.Code)
}

func TestAuthHandlerLogoutAndMe(t *testing.T) {
	svc := &fakeAuthService{meOfficeID: "office-1"}
	handler := NewAuthHandler(svc)
	router := newRouter(officeClaims)
	router.POST("/auth/logout", handler.Logout)
	router.GET("/auth/me", handler.Me)
	router.POST("/auth/change-password", handler.ChangePassword)

	rec, _ := perform(t, router, http.MethodPost, "/auth/logout", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = perform(t, router, http.MethodPost, "/auth/logout", map[string]string{"refresh_token": "tok"})
	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "tok", svc.loggedOut)

	rec, env := perform(t, router, http.MethodGet, "/auth/me", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var info models.UserInfo
	require.NoError(t, json.Unmarshal(env.Data, &info))
	require.NotNil(t, info.OfficeID)
	assert.Equal(t, "office-1", *info.OfficeID)

	rec, _ = perform(t, router, http.MethodPost, "/auth/change-password", map[string]string{"old_password": "old-password", "new_password": "new-password"})
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "office-user", svc.changedFor)
}
