package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/scholarhub-api/internal/dto"
	"github.com/noah-isme/scholarhub-api/internal/middleware"
	"github.com/noah-isme/scholarhub-api/internal/models"
	appErrors "github.com/noah-isme/scholarhub-api/pkg/errors"
)

type authServiceMock struct {
	lastLogin    models.LoginRequest
	lastRegister models.RegisterRequest
	loginErr     error
	registerErr  error
	meUserID     string
	loggedOut    [2]string
}

func (m *authServiceMock) Login(_ context.Context, req models.LoginRequest) (*models.LoginResponse, error) {
	m.lastLogin = req
	if m.loginErr != nil {
		return nil, m.loginErr
	}
	return &models.LoginResponse{Session: models.Session{AccessToken: "access", RefreshToken: "refresh", ExpiresIn: 900}}, nil
}

func (m *authServiceMock) Register(_ context.Context, req models.RegisterRequest) (*models.LoginResponse, error) {
	m.lastRegister = req
	if m.registerErr != nil {
		return nil, m.registerErr
	}
	return &models.LoginResponse{
		Session: models.Session{AccessToken: "access"},
		User:    models.UserInfo{ID: "new-student", Email: req.Email, Role: models.RoleStudent},
	}, nil
}

func (m *authServiceMock) RefreshToken(context.Context, models.RefreshTokenRequest) (*models.RefreshTokenResponse, error) {
	return &models.RefreshTokenResponse{AccessToken: "access-2"}, nil
}

func (m *authServiceMock) Logout(_ context.Context, token, userID string, _ models.LoginRequest) error {
	m.loggedOut = [2]string{token, userID}
	return nil
}

func (m *authServiceMock) ChangePassword(context.Context, string, models.ChangePasswordRequest) error {
	return nil
}

func (m *authServiceMock) Me(_ context.Context, userID string) (*models.UserInfo, error) {
	m.meUserID = userID
	return &models.UserInfo{ID: userID, Email: "student@example.com", Role: models.RoleStudent}, nil
}

func TestAuthHandlerLogin(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &authServiceMock{}
	handler := NewAuthHandler(mockSvc)

	c, w := newGinContext(http.MethodPost, "/auth/login", []byte(`{"email":"student@example.com","password":"secret"}`))
	c.Request.Header.Set("User-Agent", "scholarhub-test")
	handler.Login(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "student@example.com", mockSvc.lastLogin.Email)
	assert.Equal(t, "scholarhub-test", mockSvc.lastLogin.UserAgent)
	var envelope responseEnvelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	assert.Equal(t, "access", envelope.Data["access_token"])
}

func TestAuthHandlerLoginInvalidCredentials(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewAuthHandler(&authServiceMock{loginErr: appErrors.ErrInvalidCredentials})

	c, w := newGinContext(http.MethodPost, "/auth/login", []byte(`{"email":"student@example.com","password":"wrong"}`))
	handler.Login(c)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthHandlerRegister(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &authServiceMock{}
	handler := NewAuthHandler(mockSvc)

	c, w := newGinContext(http.MethodPost, "/auth/register", []byte(`{"email":"new@example.com","password":"long-enough","full_name":"New","education_level":"PhD"}`))
	c.Request.Header.Set("User-Agent", "scholarhub-test")
	handler.Register(c)

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "PhD", mockSvc.lastRegister.EducationLevel)
	assert.Equal(t, "scholarhub-test", mockSvc.lastRegister.UserAgent)
	var envelope responseEnvelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	user, ok := envelope.Data["user"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "STUDENT", user["role"])
}

func TestAuthHandlerRegisterErrors(t *testing.T) {
	gin.SetMode(gin.TestMode)

	c, w := newGinContext(http.MethodPost, "/auth/register", []byte(`{"email":`))
	NewAuthHandler(&authServiceMock{}).Register(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	c, w = newGinContext(http.MethodPost, "/auth/register", []byte(`{"email":"taken@example.com","password":"long-enough","full_name":"T"}`))
	NewAuthHandler(&authServiceMock{registerErr: appErrors.Clone(appErrors.ErrConflict, "email already registered")}).Register(c)
	assert.Equal(t, http.StatusConflict, w.Code)

	c, w = newGinContext(http.MethodPost, "/auth/register", []byte(`{"email":"s@example.com","password":"long-enough","full_name":"S"}`))
	NewAuthHandler(&authServiceMock{registerErr: appErrors.ErrFeatureDisabled}).Register(c)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAuthHandlerMe(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &authServiceMock{}
	handler := NewAuthHandler(mockSvc)

	c, w := newGinContext(http.MethodGet, "/auth/me", nil)
	handler.Me(c)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	c, w = newGinContext(http.MethodGet, "/auth/me", nil)
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "student-1", Role: models.RoleStudent})
	handler.Me(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "student-1", mockSvc.meUserID)
}

type profileServiceMock struct {
	lastUpdate dto.UpdateStudentProfileRequest
}

func (m *profileServiceMock) Get(_ context.Context, userID string) (*models.StudentProfile, error) {
	return &models.StudentProfile{UserID: userID, EducationLevel: "Undergraduate", Gender: "All Genders"}, nil
}

func (m *profileServiceMock) Update(_ context.Context, userID string, req dto.UpdateStudentProfileRequest) (*models.StudentProfile, error) {
	m.lastUpdate = req
	return &models.StudentProfile{UserID: userID, EducationLevel: req.EducationLevel, Gender: req.Gender}, nil
}

func TestProfileHandlerUpdate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &profileServiceMock{}
	handler := NewProfileHandler(mockSvc)

	c, w := newGinContext(http.MethodPut, "/me/profile", []byte(`{"educationLevel":"PhD","gender":"Female"}`))
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "student-1", Role: models.RoleStudent})
	handler.Update(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "PhD", mockSvc.lastUpdate.EducationLevel)
	var envelope responseEnvelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	assert.Equal(t, "Female", envelope.Data["gender"])
}

func TestProfileHandlerGetRequiresClaims(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewProfileHandler(&profileServiceMock{})

	c, w := newGinContext(http.MethodGet, "/me/profile", nil)
	handler.Get(c)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthHandlerRefreshAndLogout(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &authServiceMock{}
	handler := NewAuthHandler(mockSvc)

	c, w := newGinContext(http.MethodPost, "/auth/refresh", []byte(`{"refresh_token":"r1"}`))
	handler.Refresh(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))

	c, w = newGinContext(http.MethodPost, "/auth/logout", []byte(`{}`))
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "student-1", Role: models.RoleStudent})
	handler.Logout(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	c, w = newGinContext(http.MethodPost, "/auth/logout", []byte(`{"refresh_token":"r1"}`))
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "student-1", Role: models.RoleStudent})
	handler.Logout(c)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, [2]string{"r1", "student-1"}, mockSvc.loggedOut)
}
