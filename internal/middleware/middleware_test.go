package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/scholarhub-api/internal/models"
	appErrors "github.com/noah-isme/scholarhub-api/pkg/errors"
)

type validatorStub map[string]*models.JWTClaims

func (v validatorStub) ValidateToken(token string) (*models.JWTClaims, error) {
	if claims, ok := v[token]; ok {
		return claims, nil
	}
	return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token")
}

var tokens = validatorStub{
	"admin-token":   {UserID: "admin-1", Role: models.RoleAdmin},
	"student-token": {UserID: "student-1", Role: models.RoleStudent},
}

func performRequest(router *gin.Engine, method, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestJWTAndRBAC(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/admin", JWT(tokens), RequireRoles(models.RoleAdmin, models.RoleSuperAdmin), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	router.GET("/users/:id", JWT(tokens), Allow(Staff, Self("id")), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	assert.Equal(t, http.StatusUnauthorized, performRequest(router, http.MethodGet, "/admin", "").Code)
	assert.Equal(t, http.StatusUnauthorized, performRequest(router, http.MethodGet, "/admin", "bogus").Code)
	assert.Equal(t, http.StatusForbidden, performRequest(router, http.MethodGet, "/admin", "student-token").Code)
	assert.Equal(t, http.StatusNoContent, performRequest(router, http.MethodGet, "/admin", "admin-token").Code)

	assert.Equal(t, http.StatusNoContent, performRequest(router, http.MethodGet, "/users/student-1", "student-token").Code)
	assert.Equal(t, http.StatusForbidden, performRequest(router, http.MethodGet, "/users/someone-else", "student-token").Code)
	assert.Equal(t, http.StatusNoContent, performRequest(router, http.MethodGet, "/users/someone-else", "admin-token").Code)
}

func TestJWTRejectsMalformedHeader(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/", JWT(tokens), func(c *gin.Context) { c.Status(http.StatusNoContent) })

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Token admin-token")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	var body struct {
		Error *appErrors.Error `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.NotNil(t, body.Error)
	assert.Equal(t, "invalid authorization header", body.Error.Message)
}

func TestOptionalJWT(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/", OptionalJWT(tokens), func(c *gin.Context) {
		if claims, ok := CurrentUser(c); ok {
			c.String(http.StatusOK, string(claims.Role))
			return
		}
		c.String(http.StatusOK, "anonymous")
	})

	assert.Equal(t, "anonymous", performRequest(router, http.MethodGet, "/", "").Body.String())
	assert.Equal(t, "anonymous", performRequest(router, http.MethodGet, "/", "bogus").Body.String())
	assert.Equal(t, "ADMIN", performRequest(router, http.MethodGet, "/", "admin-token").Body.String())
}

func TestResponseMeta(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	var captured map[string]interface{}
	router.Use(WithResponseMeta())
	router.GET("/", func(c *gin.Context) {
		SetCacheHit(c, true)
		SetMeta(c, "stats", 3)
		captured = ExtractMeta(c)
		c.Status(http.StatusNoContent)
	})

	w := performRequest(router, http.MethodGet, "/", "")
	require.NotNil(t, captured)
	assert.Equal(t, "HIT", w.Header().Get(CacheHeader))
	assert.Equal(t, true, captured["cache_hit"])
	assert.Equal(t, 3, captured["stats"])
	assert.Contains(t, captured, "processing_time_ms")
}

func TestResponseMetaWithoutMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	assert.Nil(t, ExtractMeta(c))
	SetCacheHit(c, false)
	meta := ExtractMeta(c)
	assert.Equal(t, false, meta["cache_hit"])
	assert.Equal(t, "MISS", w.Header().Get(CacheHeader))
	assert.Nil(t, ExtractMeta(nil))
}

type observerStub struct {
	method, path string
	status       int
}

func (o *observerStub) ObserveHTTPRequest(method, path string, status int, _ time.Duration) {
	o.method, o.path, o.status = method, path, status
}

func TestMetricsUsesRouteTemplate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	observer := &observerStub{}
	router := gin.New()
	router.Use(Metrics(observer))
	router.GET("/scholarships/:id", func(c *gin.Context) { c.Status(http.StatusOK) })

	performRequest(router, http.MethodGet, "/scholarships/abc", "")
	assert.Equal(t, "/scholarships/:id", observer.path)
	assert.Equal(t, http.StatusOK, observer.status)

	performRequest(router, http.MethodGet, "/nope", "")
	assert.Equal(t, "unmatched", observer.path)
	assert.Equal(t, http.StatusNotFound, observer.status)
}

func TestMetricsSkipsScrapePath(t *testing.T) {
	gin.SetMode(gin.TestMode)
	observer := &observerStub{}
	router := gin.New()
	router.Use(Metrics(observer, "/metrics"))
	router.GET("/metrics", func(c *gin.Context) { c.Status(http.StatusOK) })

	performRequest(router, http.MethodGet, "/metrics", "")
	assert.Empty(t, observer.path)
}

type auditWriterStub struct {
	logs []models.AuditLog
	err  error
}

func (a *auditWriterStub) CreateAuditLog(_ context.Context, log *models.AuditLog) error {
	a.logs = append(a.logs, *log)
	return a.err
}

func TestAuditRecordsSuccessfulRequests(t *testing.T) {
	gin.SetMode(gin.TestMode)
	writer := &auditWriterStub{}
	router := gin.New()
	router.POST("/exports/:id", JWT(tokens), Audit(writer, nil, models.AuditActionExportCreate, "export"), func(c *gin.Context) {
		if c.Query("fail") != "" {
			c.Status(http.StatusBadRequest)
			return
		}
		c.Status(http.StatusAccepted)
	})

	performRequest(router, http.MethodPost, "/exports/job-1", "admin-token")
	performRequest(router, http.MethodPost, "/exports/job-2?fail=1", "admin-token")

	require.Len(t, writer.logs, 1)
	assert.Equal(t, models.AuditActionExportCreate, writer.logs[0].Action)
	require.NotNil(t, writer.logs[0].UserID)
	assert.Equal(t, "admin-1", *writer.logs[0].UserID)
	require.NotNil(t, writer.logs[0].ResourceID)
	assert.Equal(t, "job-1", *writer.logs[0].ResourceID)

	var values map[string]interface{}
	require.NoError(t, json.Unmarshal(writer.logs[0].NewValues, &values))
	assert.Equal(t, "/exports/:id", values["route"])
	assert.EqualValues(t, http.StatusAccepted, values["status"])

	writer.err = errors.New("db down")
	rec := performRequest(router, http.MethodPost, "/exports/job-3", "admin-token")
	assert.Equal(t, http.StatusAccepted, rec.Code)
}

func TestAuditUsesResourceSetByHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	writer := &auditWriterStub{}
	router := gin.New()
	router.POST("/exports", JWT(tokens), Audit(writer, nil, models.AuditActionExportCreate, "export_job"), func(c *gin.Context) {
		SetAuditResource(c, "job-9")
		c.Status(http.StatusAccepted)
	})

	performRequest(router, http.MethodPost, "/exports", "admin-token")
	require.Len(t, writer.logs, 1)
	require.NotNil(t, writer.logs[0].ResourceID)
	assert.Equal(t, "job-9", *writer.logs[0].ResourceID)
}
