package middleware

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/scholarhub-api/internal/models"
	"github.com/noah-isme/scholarhub-api/pkg/middleware/requestid"
)

const auditResourceKey = "audit_resource_id"

// AuditWriter persists audit entries.
type AuditWriter interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// SetAuditResource names the record a handler created, for routes whose
// path carries no :id.
func SetAuditResource(c *gin.Context, id string) {
	if c != nil && id != "" {
		c.Set(auditResourceKey, id)
	}
}

// Audit records one entry per request that finished below 400. The write
// happens after the response and never changes it.
func Audit(writer AuditWriter, logger *zap.Logger, action, resource string) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		if writer == nil || status >= 400 {
			return
		}

		entry := &models.AuditLog{
			Action:     action,
			Resource:   resource,
			ResourceID: auditResourceID(c),
			IPAddress:  c.ClientIP(),
			UserAgent:  c.Request.UserAgent(),
		}
		if claims, ok := CurrentUser(c); ok {
			entry.UserID = &claims.UserID
		}
		entry.NewValues, _ = json.Marshal(struct {
			Route     string `json:"route"`
			Method    string `json:"method"`
			Status    int    `json:"status"`
			LatencyMs int64  `json:"latency_ms"`
			RequestID string `json:"request_id,omitempty"`
		}{c.FullPath(), c.Request.Method, status, time.Since(start).Milliseconds(), requestid.Value(c)})

		if err := writer.CreateAuditLog(c.Request.Context(), entry); err != nil {
			logger.Warn("failed to write audit log",
				zap.String("action", action),
				zap.String("request_id", requestid.Value(c)),
				zap.Error(err))
		}
	}
}

func auditResourceID(c *gin.Context) *string {
	id := c.Param("id")
	if id == "" {
		id = c.GetString(auditResourceKey)
	}
	if id == "" {
		return nil
	}
	return &id
}
