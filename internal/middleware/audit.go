package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/medcampus/sims-api/internal/models"
)

type auditStore interface {
	Create(ctx context.Context, log *models.AuditLog) error
}

// AuditRecorder builds per-route audit middleware. Mutating endpoints are
// registered with the entity they touch; the middleware appends one record
// after the handler ran, for 2xx outcomes only. Audit persistence failures
// never fail the request.
type AuditRecorder struct {
	store   auditStore
	logger  *zap.Logger
	maxBody int64
}

// NewAuditRecorder constructs an AuditRecorder. maxBody bounds how much of
// the request payload is kept in the record's metadata.
func NewAuditRecorder(store auditStore, logger *zap.Logger, maxBody int64) *AuditRecorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxBody <= 0 {
		maxBody = 4096
	}
	return &AuditRecorder{store: store, logger: logger, maxBody: maxBody}
}

// bodyCapture tees the response body so the middleware can recover the id of
// a freshly created object from the envelope.
type bodyCapture struct {
	gin.ResponseWriter
	buf   bytes.Buffer
	limit int64
}

func (w *bodyCapture) Write(b []byte) (int, error) {
	if int64(w.buf.Len()) < w.limit {
		remaining := w.limit - int64(w.buf.Len())
		if int64(len(b)) <= remaining {
			w.buf.Write(b)
		} else {
			w.buf.Write(b[:remaining])
		}
	}
	return w.ResponseWriter.Write(b)
}

// Write returns middleware recording a successful mutation of the named
// entity. The object id is taken from the :id path parameter when present,
// falling back to the created object's id in the response envelope.
func (a *AuditRecorder) Write(entity string, action models.AuditAction) gin.HandlerFunc {
	return func(c *gin.Context) {
		var requestBody []byte
		if c.Request.Body != nil {
			requestBody, _ = io.ReadAll(io.LimitReader(c.Request.Body, a.maxBody))
			c.Request.Body = io.NopCloser(io.MultiReader(bytes.NewReader(requestBody), c.Request.Body))
		}

		capture := &bodyCapture{ResponseWriter: c.Writer, limit: a.maxBody}
		c.Writer = capture

		c.Next()

		status := c.Writer.Status()
		if status < 200 || status >= 300 {
			return
		}

		var actorID *string
		if claimsValue, ok := c.Get(ContextUserKey); ok {
			if claims, ok := claimsValue.(*models.JWTClaims); ok {
				actorID = &claims.UserID
			}
		}

		record := &models.AuditLog{
			ActorID:    actorID,
			Method:     c.Request.Method,
			Path:       c.Request.URL.Path,
			StatusCode: status,
			Entity:     entity,
			EntityID:   resolveEntityID(c, capture.buf.Bytes()),
			Action:     action,
			Summary:    fmt.Sprintf("%s %s %s", c.Request.Method, entity, action),
			IPAddress:  c.ClientIP(),
			UserAgent:  c.GetHeader("User-Agent"),
		}
		if json.Valid(requestBody) {
			record.Metadata = requestBody
		}

		if err := a.store.Create(c.Request.Context(), record); err != nil {
			a.logger.Warn("audit record dropped",
				zap.String("entity", entity),
				zap.String("path", record.Path),
				zap.Error(err))
		}
	}
}

func resolveEntityID(c *gin.Context, responseBody []byte) *string {
	if id := c.Param("id"); id != "" {
		return &id
	}
	var envelope struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := json.Unmarshal(responseBody, &envelope); err == nil && envelope.Data.ID != "" {
		return &envelope.Data.ID
	}
	return nil
}
