package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/scholarhub-api/internal/middleware"
	"github.com/noah-isme/scholarhub-api/internal/models"
	"github.com/noah-isme/scholarhub-api/internal/service"
	appErrors "github.com/noah-isme/scholarhub-api/pkg/errors"
)

type userServiceMock struct {
	lastFilter models.UserFilter
	created    service.CreateUserRequest
	deleteErr  error
}

func (m *userServiceMock) List(_ context.Context, filter models.UserFilter) ([]models.User, *models.Pagination, error) {
	m.lastFilter = filter
	return []models.User{{ID: "u1", Email: "admin@example.com", Role: models.RoleAdmin}}, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: 1}, nil
}

func (m *userServiceMock) Get(_ context.Context, id string) (*models.User, error) {
	return &models.User{ID: id}, nil
}

func (m *userServiceMock) Create(_ context.Context, req service.CreateUserRequest, _ *models.JWTClaims, _ models.LoginRequest) (*models.User, error) {
	m.created = req
	return &models.User{ID: "new", Email: req.Email, Role: req.Role}, nil
}

func (m *userServiceMock) Update(_ context.Context, id string, req service.UpdateUserRequest, _ *models.JWTClaims, _ models.LoginRequest) (*models.User, error) {
	return &models.User{ID: id, FullName: req.FullName, Role: req.Role}, nil
}

func (m *userServiceMock) Delete(context.Context, string, *models.JWTClaims, models.LoginRequest) error {
	return m.deleteErr
}

func TestUserHandlerListParsesFilter(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &userServiceMock{}
	handler := NewUserHandler(mockSvc)

	c, w := newGinContext(http.MethodGet, "/users?page=2&page_size=5&role=student&active=true&search=ana", nil)
	handler.List(c)

	require.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, mockSvc.lastFilter.Role)
	assert.Equal(t, models.RoleStudent, *mockSvc.lastFilter.Role)
	require.NotNil(t, mockSvc.lastFilter.Active)
	assert.True(t, *mockSvc.lastFilter.Active)
	assert.Equal(t, 2, mockSvc.lastFilter.Page)
	assert.Equal(t, 5, mockSvc.lastFilter.PageSize)
	assert.Equal(t, "ana", mockSvc.lastFilter.Search)
	assert.Nil(t, mockSvc.lastFilter.HasProfile)

	var envelope listEnvelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	assert.Len(t, envelope.Data, 1)
}

func TestUserHandlerListProfileFilter(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &userServiceMock{}
	handler := NewUserHandler(mockSvc)

	c, w := newGinContext(http.MethodGet, "/users?role=STUDENT&has_profile=false", nil)
	handler.List(c)
	require.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, mockSvc.lastFilter.HasProfile)
	assert.False(t, *mockSvc.lastFilter.HasProfile)

	c, w = newGinContext(http.MethodGet, "/users?has_profile=maybe", nil)
	handler.List(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUserHandlerListRejectsUnknownRole(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewUserHandler(&userServiceMock{})

	c, w := newGinContext(http.MethodGet, "/users?role=guest", nil)
	handler.List(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUserHandlerListRejectsBadParams(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &userServiceMock{}
	handler := NewUserHandler(mockSvc)

	for _, target := range []string{
		"/users?page_size=500",
		"/users?page=9223372036854775807",
		"/users?page=0&page_size=-1",
		"/users?active=sometimes",
		"/users?sort_by=password_hash",
		"/users?sort_order=sideways",
	} {
		c, w := newGinContext(http.MethodGet, target, nil)
		handler.List(c)
		assert.Equal(t, http.StatusBadRequest, w.Code, target)
	}
	assert.Zero(t, mockSvc.lastFilter.PageSize)
}

func TestUserHandlerListDefaults(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &userServiceMock{}
	handler := NewUserHandler(mockSvc)

	c, w := newGinContext(http.MethodGet, "/users?sort_by=last_login&sort_order=ASC", nil)
	handler.List(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, mockSvc.lastFilter.Page)
	assert.Equal(t, 20, mockSvc.lastFilter.PageSize)
	assert.Equal(t, "asc", mockSvc.lastFilter.SortOrder)
}

func TestUserHandlerMutationsRequireActor(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewUserHandler(&userServiceMock{})

	c, w := newGinContext(http.MethodPost, "/users", []byte(`{}`))
	handler.Create(c)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	c, w = newGinContext(http.MethodDelete, "/users/u1", nil)
	handler.Delete(c)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestUserHandlerCreate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &userServiceMock{}
	handler := NewUserHandler(mockSvc)

	body := []byte(`{"email":"new@example.com","full_name":"New Admin","role":"ADMIN","password":"secret-pass"}`)
	c, w := newGinContext(http.MethodPost, "/users", body)
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "root", Role: models.RoleSuperAdmin})
	handler.Create(c)

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, models.RoleAdmin, mockSvc.created.Role)
}

func TestUserHandlerDeleteSelfForbidden(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewUserHandler(&userServiceMock{deleteErr: appErrors.Clone(appErrors.ErrForbidden, "cannot delete yourself")})

	c, w := newGinContext(http.MethodDelete, "/users/admin", nil)
	c.Params = gin.Params{{Key: "id", Value: "admin"}}
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "admin", Role: models.RoleAdmin})
	handler.Delete(c)

	assert.Equal(t, http.StatusForbidden, w.Code)
}
