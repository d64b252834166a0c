package handler

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/scholarhub-api/internal/dto"
	"github.com/noah-isme/scholarhub-api/internal/middleware"
	"github.com/noah-isme/scholarhub-api/internal/models"
	"github.com/noah-isme/scholarhub-api/internal/service"
)

type formServiceMock struct {
	uploadedID   string
	uploadedBody []byte
	uploadedName string
	download     *service.FormDownload
}

func (m *formServiceMock) Upload(_ context.Context, id string, upload service.FormUpload, _ *models.JWTClaims) (*models.Scholarship, error) {
	m.uploadedID = id
	m.uploadedName = upload.Filename
	m.uploadedBody, _ = io.ReadAll(upload.Content)
	path := "forms/" + id + ".pdf"
	return &models.Scholarship{ID: id, ApplicationFormPath: &path}, nil
}

func (m *formServiceMock) DownloadURL(_ context.Context, id string) (*dto.ApplicationFormResponse, error) {
	return &dto.ApplicationFormResponse{ScholarshipID: id, DownloadURL: "/api/v1/files/token"}, nil
}

func (m *formServiceMock) Download(context.Context, string) (*service.FormDownload, error) {
	return m.download, nil
}

func TestApplicationFormHandlerUpload(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &formServiceMock{}
	handler := NewApplicationFormHandler(mockSvc)

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", "form.pdf")
	require.NoError(t, err)
	_, _ = part.Write([]byte("%PDF-1.4 test"))
	require.NoError(t, writer.Close())

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPost, "/scholarships/a/form", &body)
	c.Request.Header.Set("Content-Type", writer.FormDataContentType())
	c.Params = gin.Params{{Key: "id", Value: "a"}}
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "admin", Role: models.RoleAdmin})

	handler.Upload(c)

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "a", mockSvc.uploadedID)
	assert.Equal(t, "form.pdf", mockSvc.uploadedName)
	assert.Equal(t, []byte("%PDF-1.4 test"), mockSvc.uploadedBody)
}

func TestApplicationFormHandlerUploadRequiresFile(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewApplicationFormHandler(&formServiceMock{})

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPost, "/scholarships/a/form", nil)
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "admin", Role: models.RoleAdmin})

	handler.Upload(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestApplicationFormHandlerDownload(t *testing.T) {
	gin.SetMode(gin.TestMode)
	path := filepath.Join(t.TempDir(), "form.pdf")
	require.NoError(t, os.WriteFile(path, []byte("%PDF"), 0o600))
	file, err := os.Open(path)
	require.NoError(t, err)

	handler := NewApplicationFormHandler(&formServiceMock{download: &service.FormDownload{
		File:      file,
		Filename:  "form.pdf",
		MimeType:  "application/pdf",
		SizeBytes: 4,
	}})

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/files/token", nil)
	c.Params = gin.Params{{Key: "token", Value: "token"}}

	handler.Download(c)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.Equal(t, "%PDF", rec.Body.String())
}
