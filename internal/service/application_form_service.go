package service

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/scholarhub-api/internal/dto"
	"github.com/noah-isme/scholarhub-api/internal/models"
	appErrors "github.com/noah-isme/scholarhub-api/pkg/errors"
)

const (
	mimePDF  = "application/pdf"
	mimeDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
)

type formScholarshipStore interface {
	FindByID(ctx context.Context, id string) (*models.Scholarship, error)
	SetApplicationForm(ctx context.Context, id string, path *string) error
}

type formFileStorage interface {
	SaveStream(filename string, r io.Reader) (int64, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
}

type formURLSigner interface {
	Generate(id, relPath string) (string, time.Time, error)
	Parse(token string, allowExpired bool) (id, relPath string, expiresAt time.Time, err error)
}

// FormUpload carries upload metadata and the stream reader.
type FormUpload struct {
	Filename string
	Size     int64
	MimeType string
	Content  io.ReadSeeker
}

// FormDownload bundles an opened form for streaming.
type FormDownload struct {
	File      *os.File
	Filename  string
	MimeType  string
	SizeBytes int64
	ExpiresAt time.Time
}

// ApplicationFormServiceConfig holds validation parameters.
type ApplicationFormServiceConfig struct {
	MaxFileSize  int64
	AllowedMIMEs []string
	APIPrefix    string
}

// ApplicationFormService stores application forms attached to listings.
type ApplicationFormService struct {
	repo    formScholarshipStore
	storage formFileStorage
	signer  formURLSigner
	audit   auditLogger
	cache   *CacheService
	logger  *zap.Logger
	cfg     ApplicationFormServiceConfig
	mimeSet map[string]struct{}
	now     func() time.Time
}

// NewApplicationFormService constructs the service with defaults.
func NewApplicationFormService(repo formScholarshipStore, storage formFileStorage, signer formURLSigner, audit auditLogger, cache *CacheService, logger *zap.Logger, cfg ApplicationFormServiceConfig) *ApplicationFormService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxFileSize <= 0 {
		cfg.MaxFileSize = 10 * 1024 * 1024
	}
	if len(cfg.AllowedMIMEs) == 0 {
		cfg.AllowedMIMEs = []string{mimePDF, mimeDOCX}
	}
	if cfg.APIPrefix == "" {
		cfg.APIPrefix = "/api/v1"
	}
	mimeSet := make(map[string]struct{}, len(cfg.AllowedMIMEs))
	for _, mt := range cfg.AllowedMIMEs {
		mimeSet[strings.ToLower(strings.TrimSpace(mt))] = struct{}{}
	}
	return &ApplicationFormService{
		repo:    repo,
		storage: storage,
		signer:  signer,
		audit:   audit,
		cache:   cache,
		logger:  logger,
		cfg:     cfg,
		mimeSet: mimeSet,
		now:     time.Now,
	}
}

// Upload stores the form file and points the listing at it. A previous form is removed.
func (s *ApplicationFormService) Upload(ctx context.Context, scholarshipID string, upload FormUpload, actor *models.JWTClaims) (*models.Scholarship, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if !actor.Role.Staff() {
		return nil, appErrors.ErrForbidden
	}
	item, err := s.load(ctx, scholarshipID)
	if err != nil {
		return nil, err
	}
	if upload.Content == nil || upload.Size <= 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "file is required")
	}
	if upload.Size > s.cfg.MaxFileSize {
		return nil, appErrors.Clone(appErrors.ErrPayloadTooLarge, fmt.Sprintf("file exceeds %d bytes limit", s.cfg.MaxFileSize))
	}
	mimeType, err := s.detectMime(upload)
	if err != nil {
		return nil, err
	}
	if _, allowed := s.mimeSet[strings.ToLower(mimeType)]; !allowed {
		return nil, appErrors.Clone(appErrors.ErrUnsupportedMedia, "mime type not allowed")
	}
	if _, err := upload.Content.Seek(0, io.SeekStart); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reset upload stream")
	}

	filename := s.generateFilename(item.ID, upload.Filename, mimeType)
	if _, err := s.storage.SaveStream(filename, upload.Content); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist application form")
	}
	if err := s.repo.SetApplicationForm(ctx, item.ID, &filename); err != nil {
		_ = s.storage.Delete(filename)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "scholarship not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to attach application form")
	}

	previous := deref(item.ApplicationFormPath)
	if previous != "" && previous != filename {
		if err := s.storage.Delete(previous); err != nil && !errors.Is(err, os.ErrNotExist) {
			s.logger.Warn("failed to remove previous application form", zap.String("scholarship_id", item.ID), zap.Error(err))
		}
	}
	item.ApplicationFormPath = &filename

	s.recordAudit(ctx, actor, item.ID, previous, filename, mimeType, upload.Size)
	for _, pattern := range []string{catalogCachePattern, dashboardCachePattern} {
		_ = s.cache.Invalidate(ctx, pattern)
	}
	return item, nil
}

// DownloadURL signs a short-lived URL for the listing's form.
func (s *ApplicationFormService) DownloadURL(ctx context.Context, scholarshipID string) (*dto.ApplicationFormResponse, error) {
	if s.signer == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "download signer unavailable")
	}
	item, err := s.load(ctx, scholarshipID)
	if err != nil {
		return nil, err
	}
	path := deref(item.ApplicationFormPath)
	if path == "" {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "application form not uploaded")
	}
	token, expiresAt, err := s.signer.Generate(item.ID, path)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to generate download token")
	}
	base := strings.TrimRight(s.cfg.APIPrefix, "/")
	return &dto.ApplicationFormResponse{
		ScholarshipID: item.ID,
		DownloadURL:   fmt.Sprintf("%s/files/%s", base, token),
		ExpiresAt:     expiresAt,
	}, nil
}

// Download validates the token against the listing's current form and opens it.
func (s *ApplicationFormService) Download(ctx context.Context, token string) (*FormDownload, error) {
	if s.signer == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "download signer unavailable")
	}
	scholarshipID, relPath, expiresAt, err := s.signer.Parse(token, false)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "invalid or expired token")
	}
	item, err := s.load(ctx, scholarshipID)
	if err != nil {
		return nil, err
	}
	if deref(item.ApplicationFormPath) != relPath {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "token mismatch")
	}
	file, err := s.storage.Open(relPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "application form missing")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open application form")
	}
	info, err := file.Stat()
	if err != nil {
		file.Close() //nolint:errcheck
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read application form metadata")
	}
	return &FormDownload{
		File:      file,
		Filename:  filepath.Base(relPath),
		MimeType:  mimeForExtension(filepath.Ext(relPath)),
		SizeBytes: info.Size(),
		ExpiresAt: expiresAt,
	}, nil
}

func (s *ApplicationFormService) load(ctx context.Context, id string) (*models.Scholarship, error) {
	item, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "scholarship not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load scholarship")
	}
	return item, nil
}

func (s *ApplicationFormService) recordAudit(ctx context.Context, actor *models.JWTClaims, id, previous, path, mimeType string, size int64) {
	if s.audit == nil {
		return
	}
	newValues, _ := json.Marshal(map[string]interface{}{"path": path, "mime_type": mimeType, "size_bytes": size})
	log := &models.AuditLog{
		UserID:     userIDPtr(actor),
		Action:     models.AuditActionFormUpload,
		Resource:   "scholarship",
		ResourceID: &id,
		NewValues:  newValues,
		IPAddress:  "system",
		UserAgent:  "application-form-service",
	}
	if previous != "" {
		log.OldValues, _ = json.Marshal(map[string]string{"path": previous})
	}
	if err := s.audit.CreateAuditLog(ctx, log); err != nil {
		s.logger.Warn("failed to record form upload audit", zap.String("scholarship_id", id), zap.Error(err))
	}
}

// detectMime trusts the declared type unless it is generic. DOCX sniffs as a
// zip archive, so the extension decides between the two.
func (s *ApplicationFormService) detectMime(upload FormUpload) (string, error) {
	declared := strings.ToLower(strings.TrimSpace(upload.MimeType))
	if i := strings.Index(declared, ";"); i >= 0 {
		declared = strings.TrimSpace(declared[:i])
	}
	if declared != "" && declared != "application/octet-stream" {
		return declared, nil
	}
	header := make([]byte, 512)
	n, err := upload.Content.Read(header)
	if err != nil && err != io.EOF {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to inspect file")
	}
	if _, err := upload.Content.Seek(0, io.SeekStart); err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reset upload stream")
	}
	if n == 0 {
		return "", appErrors.Clone(appErrors.ErrValidation, "empty file")
	}
	detected := http.DetectContentType(header[:n])
	if i := strings.Index(detected, ";"); i >= 0 {
		detected = detected[:i]
	}
	if detected == "application/zip" && strings.EqualFold(filepath.Ext(upload.Filename), ".docx") {
		return mimeDOCX, nil
	}
	return detected, nil
}

func (s *ApplicationFormService) generateFilename(scholarshipID, original, mimeType string) string {
	ext := strings.ToLower(filepath.Ext(original))
	if ext == "" || mimeForExtension(ext) != mimeType {
		ext = extensionForMime(mimeType)
	}
	if ext == "" {
		ext = ".bin"
	}
	return fmt.Sprintf("forms/%s_%d_%s%s", sanitize(scholarshipID), s.now().Unix(), randomSuffix(), ext)
}

func sanitize(raw string) string {
	raw = strings.ToLower(raw)
	var b strings.Builder
	for _, r := range raw {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}
	return strings.Trim(b.String(), "_")
}

func extensionForMime(mime string) string {
	switch strings.ToLower(mime) {
	case mimePDF:
		return ".pdf"
	case mimeDOCX:
		return ".docx"
	default:
		return ""
	}
}

func mimeForExtension(ext string) string {
	switch strings.ToLower(ext) {
	case ".pdf":
		return mimePDF
	case ".docx":
		return mimeDOCX
	default:
		return "application/octet-stream"
	}
}

func randomSuffix() string {
	buf := make([]byte, 4)
	if _, err := rand.Read(buf); err != nil {
		return fmt.Sprintf("%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(buf)
}
