package handler

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/scholarhub-api/internal/dto"
	"github.com/noah-isme/scholarhub-api/internal/models"
	"github.com/noah-isme/scholarhub-api/internal/service"
	appErrors "github.com/noah-isme/scholarhub-api/pkg/errors"
	"github.com/noah-isme/scholarhub-api/pkg/response"
)

type applicationFormService interface {
	Upload(ctx context.Context, scholarshipID string, upload service.FormUpload, actor *models.JWTClaims) (*models.Scholarship, error)
	DownloadURL(ctx context.Context, scholarshipID string) (*dto.ApplicationFormResponse, error)
	Download(ctx context.Context, token string) (*service.FormDownload, error)
}

// ApplicationFormHandler manages application form uploads and downloads.
type ApplicationFormHandler struct {
	service applicationFormService
}

// NewApplicationFormHandler constructs the handler.
func NewApplicationFormHandler(service applicationFormService) *ApplicationFormHandler {
	return &ApplicationFormHandler{service: service}
}

// Upload godoc
// @Summary Upload an application form
// @Tags Scholarships
// @Accept multipart/form-data
// @Produce json
// @Param id path string true "Scholarship ID"
// @Param file formData file true "PDF or DOCX form"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /scholarships/{id}/form [post]
func (h *ApplicationFormHandler) Upload(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "form service not configured"))
		return
	}
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "file is required"))
		return
	}
	src, err := fileHeader.Open()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open file"))
		return
	}
	defer src.Close()

	reader, ok := src.(io.ReadSeeker)
	if !ok {
		buf, readErr := io.ReadAll(src)
		if readErr != nil {
			response.Error(c, appErrors.Wrap(readErr, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to buffer file"))
			return
		}
		reader = bytes.NewReader(buf)
	}
	item, err := h.service.Upload(c.Request.Context(), c.Param("id"), service.FormUpload{
		Filename: fileHeader.Filename,
		Size:     fileHeader.Size,
		MimeType: fileHeader.Header.Get("Content-Type"),
		Content:  reader,
	}, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, item)
}

// URL godoc
// @Summary Signed download URL for an application form
// @Tags Scholarships
// @Produce json
// @Param id path string true "Scholarship ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /scholarships/{id}/form [get]
func (h *ApplicationFormHandler) URL(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "form service not configured"))
		return
	}
	link, err := h.service.DownloadURL(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, link, nil)
}

// Download godoc
// @Summary Download a file via signed token
// @Tags Files
// @Produce octet-stream
// @Param token path string true "Signed token"
// @Success 200 {file} binary
// @Failure 403 {object} response.Envelope
// @Router /files/{token} [get]
func (h *ApplicationFormHandler) Download(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "form service not configured"))
		return
	}
	token := strings.TrimSpace(c.Param("token"))
	if token == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "token is required"))
		return
	}
	result, err := h.service.Download(c.Request.Context(), token)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer result.File.Close() //nolint:errcheck
	response.Attachment(c, result.Filename, result.MimeType, result.SizeBytes, result.File)
}
