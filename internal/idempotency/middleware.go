package idempotency

import (
	"bytes"
	"context"

	"ledger-platform/internal/apperror"
	"ledger-platform/internal/httpapi"
	"ledger-platform/pkg/logger"

	"github.com/gin-gonic/gin"
)

const (
	// HeaderKey is required on every mutation endpoint. Any non-empty
	// opaque string up to 255 chars; replay identity is (key, path).
	HeaderKey = "Idempotency-Key"

	// HeaderReplayed marks responses served from the cache or rebuilt
	// from a previously committed transaction.
	HeaderReplayed = "X-Idempotency-Replayed"

	maxKeyLen = 255
)

// ResponseCache is the slice of Store the middleware needs; tests
// substitute an in-memory implementation.
type ResponseCache interface {
	Lookup(ctx context.Context, key, path string) (Record, bool, error)
	Save(ctx context.Context, key, path string, status int, body []byte) error
}

// Middleware is the request-boundary idempotency stage. On a cache hit
// it short-circuits with the stored status and body byte-for-byte; on a
// miss it runs the handler, tees the outgoing envelope, and stores it
// when status < 500. 5xx responses are never cached so clients may
// retry them.
func Middleware(cache ResponseCache) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetHeader(HeaderKey)
		if key == "" {
			httpapi.Fail(c, apperror.Validation("Idempotency-Key header is required", nil))
			c.Abort()
			return
		}
		if len(key) > maxKeyLen {
			httpapi.Fail(c, apperror.Validation("Idempotency-Key must be at most 255 characters", nil))
			c.Abort()
			return
		}

		path := c.Request.URL.Path

		rec, hit, err := cache.Lookup(c.Request.Context(), key, path)
		if err != nil {
			// The transactions-table key still protects correctness, so
			// a broken cache degrades to a pass-through, not an outage.
			logger.FromGin(c).Error("idempotency lookup failed", "err", err)
		} else if hit {
			c.Header(HeaderReplayed, "true")
			c.Data(rec.ResponseStatus, "application/json; charset=utf-8", rec.ResponseBody)
			c.Abort()
			return
		}

		bw := &bodyCapture{ResponseWriter: c.Writer}
		c.Writer = bw

		c.Next()

		status := c.Writer.Status()
		if status >= 500 {
			return
		}
		if err := cache.Save(c.Request.Context(), key, path, status, bw.buf.Bytes()); err != nil {
			logger.FromGin(c).Error("idempotency store failed", "err", err)
		}
	}
}

// bodyCapture tees the response body so the envelope can be cached as a
// value after the handler returns.
type bodyCapture struct {
	gin.ResponseWriter
	buf bytes.Buffer
}

func (w *bodyCapture) Write(b []byte) (int, error) {
	w.buf.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w *bodyCapture) WriteString(s string) (int, error) {
	w.buf.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}
