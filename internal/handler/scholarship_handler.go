package handler

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/scholarhub-api/internal/dto"
	"github.com/noah-isme/scholarhub-api/internal/middleware"
	"github.com/noah-isme/scholarhub-api/internal/models"
	"github.com/noah-isme/scholarhub-api/internal/query"
	"github.com/noah-isme/scholarhub-api/internal/service"
	appErrors "github.com/noah-isme/scholarhub-api/pkg/errors"
	"github.com/noah-isme/scholarhub-api/pkg/response"
)

const maxImportBytes = 5 << 20

type scholarshipService interface {
	Query(ctx context.Context, req dto.CatalogRequest) (*service.CatalogPage, bool, error)
	Stats(ctx context.Context, q models.CatalogQuery) (query.Stats, error)
	Get(ctx context.Context, id string) (*dto.ScholarshipDetail, error)
	Create(ctx context.Context, req dto.ScholarshipRequest, actor *models.JWTClaims) (*models.Scholarship, error)
	Update(ctx context.Context, id string, req dto.ScholarshipRequest, actor *models.JWTClaims) (*models.Scholarship, error)
	Delete(ctx context.Context, id string, actor *models.JWTClaims) error
	Import(ctx context.Context, raw []byte, actor *models.JWTClaims) (*dto.ImportResult, error)
}

// ScholarshipHandler exposes the catalog and listing management endpoints.
type ScholarshipHandler struct {
	service scholarshipService
}

// NewScholarshipHandler constructs the handler.
func NewScholarshipHandler(service scholarshipService) *ScholarshipHandler {
	return &ScholarshipHandler{service: service}
}

// List godoc
// @Summary Query the scholarship catalog
// @Description Filters, sorts and pages listings. Stats cover the whole filtered set.
// @Tags Scholarships
// @Produce json
// @Param search query string false "Search name, description, eligibility and community"
// @Param educationLevel query string false "Education level"
// @Param minAmount query number false "Minimum amount"
// @Param maxAmount query number false "Maximum amount"
// @Param deadlineFrom query string false "Deadline lower bound (YYYY-MM-DD)"
// @Param deadlineTo query string false "Deadline upper bound (YYYY-MM-DD)"
// @Param community query []string false "Community tags" collectionFormat(multi)
// @Param gender query string false "Gender requirement"
// @Param sortBy query string false "name, amount, deadline or createdAt"
// @Param order query string false "asc or desc"
// @Param status query string false "Status filter (admins only)"
// @Param page query int false "Page number"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /scholarships [get]
func (h *ScholarshipHandler) List(c *gin.Context) {
	var req dto.CatalogRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInvalidInput.Code, http.StatusBadRequest, "invalid catalog query"))
		return
	}
	req.Communities = splitCommunities(req.Communities)
	if !isAdmin(claimsFromContext(c)) {
		req.Status = ""
	}

	page, hit, err := h.service.Query(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, hit)
	middleware.SetMeta(c, "stats", page.Stats)
	response.JSON(c, http.StatusOK, page.Items, page.Pagination, middleware.ExtractMeta(c))
}

// Stats godoc
// @Summary Catalog statistics
// @Tags Scholarships
// @Produce json
// @Param search query string false "Search term"
// @Param educationLevel query string false "Education level"
// @Param gender query string false "Gender requirement"
// @Success 200 {object} response.Envelope
// @Router /scholarships/stats [get]
func (h *ScholarshipHandler) Stats(c *gin.Context) {
	var q models.CatalogQuery
	if err := bindCatalogQuery(c, &q); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInvalidInput.Code, http.StatusBadRequest, "invalid catalog query"))
		return
	}
	if !isAdmin(claimsFromContext(c)) {
		q.Status = ""
	}
	stats, err := h.service.Stats(c.Request.Context(), q)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, stats, nil)
}

// Get godoc
// @Summary Get scholarship detail
// @Tags Scholarships
// @Produce json
// @Param id path string true "Scholarship ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /scholarships/{id} [get]
func (h *ScholarshipHandler) Get(c *gin.Context) {
	detail, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, detail, nil)
}

// Create godoc
// @Summary Create scholarship
// @Tags Scholarships
// @Accept json
// @Produce json
// @Param payload body dto.ScholarshipRequest true "Scholarship payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /scholarships [post]
func (h *ScholarshipHandler) Create(c *gin.Context) {
	var req dto.ScholarshipRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	item, err := h.service.Create(c.Request.Context(), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, item)
}

// Update godoc
// @Summary Update scholarship
// @Tags Scholarships
// @Accept json
// @Produce json
// @Param id path string true "Scholarship ID"
// @Param payload body dto.ScholarshipRequest true "Scholarship payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /scholarships/{id} [put]
func (h *ScholarshipHandler) Update(c *gin.Context) {
	var req dto.ScholarshipRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	item, err := h.service.Update(c.Request.Context(), c.Param("id"), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, item, nil)
}

// Delete godoc
// @Summary Delete scholarship
// @Tags Scholarships
// @Param id path string true "Scholarship ID"
// @Success 204
// @Failure 404 {object} response.Envelope
// @Router /scholarships/{id} [delete]
func (h *ScholarshipHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id"), claimsFromContext(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Import godoc
// @Summary Bulk import scholarships
// @Description Accepts a loosely typed JSON array; amounts may be numbers or strings and field aliases are accepted.
// @Tags Scholarships
// @Accept json
// @Produce json
// @Param payload body []object true "Scholarship records"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /scholarships/import [post]
func (h *ScholarshipHandler) Import(c *gin.Context) {
	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxImportBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			response.Error(c, appErrors.Clone(appErrors.ErrPayloadTooLarge, "import payload too large"))
			return
		}
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "failed to read import payload"))
		return
	}
	if strings.TrimSpace(string(body)) == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "import payload required"))
		return
	}
	result, err := h.service.Import(c.Request.Context(), body, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, result)
}
