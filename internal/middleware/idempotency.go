package middleware

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	appErrors "github.com/noah-isme/sportlearn-api/pkg/errors"
	"github.com/noah-isme/sportlearn-api/pkg/response"
)

// Idempotency headers.
const (
	HeaderIdempotencyKey      = "Idempotency-Key"
	HeaderIdempotencyReplayed = "Idempotent-Replayed"
)

const maxIdempotencyKeyLength = 128

type idempotencyStore interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	SetIfAbsent(ctx context.Context, key string, value interface{}, ttl time.Duration) (bool, error)
	Delete(ctx context.Context, key string) error
}

// idempotencyRecord is pending until the first request finishes.
type idempotencyRecord struct {
	Pending     bool   `json:"pending"`
	Status      int    `json:"status,omitempty"`
	ContentType string `json:"content_type,omitempty"`
	Body        []byte `json:"body,omitempty"`
}

type capturingWriter struct {
	gin.ResponseWriter
	body bytes.Buffer
}

func (w *capturingWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w *capturingWriter) WriteString(s string) (int, error) {
	w.body.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}

// Idempotency replays the stored response for a repeated Idempotency-Key from the same
// caller. Keys are scoped to the identity, method and path. Requests without a key pass
// through, as do all requests while the store is unreachable. Server errors release the
// key so the caller can retry.
func Idempotency(store idempotencyStore, ttl time.Duration, logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(c *gin.Context) {
		key := c.GetHeader(HeaderIdempotencyKey)
		if key == "" {
			c.Next()
			return
		}
		if len(key) > maxIdempotencyKeyLength {
			response.Abort(c, appErrors.Clone(appErrors.ErrValidation, "idempotency key too long"))
			return
		}

		scoped := idempotencyScope(c, key)
		ctx := c.Request.Context()

		stored, err := store.SetIfAbsent(ctx, scoped, idempotencyRecord{Pending: true}, ttl)
		if err != nil {
			logger.Warn("idempotency store unavailable", zap.Error(err))
			c.Next()
			return
		}
		if !stored {
			replayOrReject(c, store, scoped, logger)
			return
		}

		writer := &capturingWriter{ResponseWriter: c.Writer}
		c.Writer = writer
		c.Next()

		status := writer.Status()
		if status >= http.StatusInternalServerError {
			if err := store.Delete(ctx, scoped); err != nil {
				logger.Warn("failed to release idempotency key", zap.Error(err))
			}
			return
		}
		record := idempotencyRecord{
			Status:      status,
			ContentType: writer.Header().Get("Content-Type"),
			Body:        writer.body.Bytes(),
		}
		if err := store.Set(ctx, scoped, record, ttl); err != nil {
			logger.Warn("failed to store idempotent response", zap.Error(err))
		}
	}
}

func replayOrReject(c *gin.Context, store idempotencyStore, scoped string, logger *zap.Logger) {
	var record idempotencyRecord
	if err := store.Get(c.Request.Context(), scoped, &record); err != nil {
		if !errors.Is(err, appErrors.ErrCacheMiss) {
			logger.Warn("failed to read idempotency record", zap.Error(err))
		}
		response.Abort(c, appErrors.Clone(appErrors.ErrConflict, "request with this idempotency key could not be replayed"))
		return
	}
	if record.Pending {
		response.Abort(c, appErrors.Clone(appErrors.ErrConflict, "request with this idempotency key is still in progress"))
		return
	}

	c.Header(HeaderIdempotencyReplayed, "true")
	c.Data(record.Status, record.ContentType, record.Body)
	c.Abort()
}

func idempotencyScope(c *gin.Context, key string) string {
	caller := "anonymous"
	if identity, ok := CurrentIdentity(c); ok {
		caller = identity.ID
	}
	return "idempotency:" + caller + ":" + c.Request.Method + ":" + c.Request.URL.Path + ":" + key
}
