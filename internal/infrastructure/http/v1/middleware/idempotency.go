package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"pharmadesk/internal/core/apperror"
	appctx "pharmadesk/internal/core/context"
	"pharmadesk/internal/core/idempotency"
	"pharmadesk/pkg/logger"
)

const maxIdempotencyBodyBytes = 1 << 20 // 1 MiB

// recordingWriter keeps a copy of the response body for the store.
type recordingWriter struct {
	gin.ResponseWriter
	body bytes.Buffer
}

func (w *recordingWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w *recordingWriter) WriteString(s string) (int, error) {
	w.body.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}

// Idempotency replays the stored response for a repeated Idempotency-Key.
// 2xx responses are stored as success and 4xx as failed. On 5xx the key is
// released so the client can retry, as it is when the handler panics.
func Idempotency(store idempotency.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetHeader(idempotency.HeaderKey)
		if key == "" {
			c.Next()
			return
		}
		ctx := c.Request.Context()

		limited := io.LimitReader(c.Request.Body, maxIdempotencyBodyBytes+1)
		body, err := io.ReadAll(limited)
		if err != nil {
			RenderError(c, apperror.NewBadRequest("unreadable request body").WithCause(err))
			return
		}
		if len(body) > maxIdempotencyBodyBytes {
			appErr := apperror.NewBadRequest("request body too large for idempotency")
			appErr.HTTPStatus = http.StatusRequestEntityTooLarge
			RenderError(c, appErr.WithDetail("max_bytes", maxIdempotencyBodyBytes))
			return
		}
		c.Request.Body = io.NopCloser(bytes.NewReader(body))
		hash := sha256.Sum256(body)

		operation := c.Request.Method + " " + c.FullPath()
		replay, err := store.Acquire(ctx, key, appctx.GetUserID(ctx), operation, hex.EncodeToString(hash[:]))
		if err != nil {
			if _, ok := apperror.AsAppError(err); !ok {
				err = apperror.NewInternal(err).WithDetail("component", "idempotency")
			}
			RenderError(c, err)
			return
		}
		if replay != nil {
			c.Header("Idempotent-Replayed", "true")
			c.Data(replay.StatusCode, replay.ContentType, replay.Body)
			c.Abort()
			return
		}

		// A panic skips the finalization below, so free the key before it
		// propagates to Recovery.
		defer func() {
			if r := recover(); r != nil {
				if err := store.Release(context.WithoutCancel(ctx), key); err != nil {
					logger.Warn(ctx, "idempotency key not released after panic", "key", key, "error", err)
				}
				panic(r)
			}
		}()

		rec := &recordingWriter{ResponseWriter: c.Writer}
		c.Writer = rec

		c.Next()

		// Render a pending error now so the stored body matches what the
		// client receives.
		if len(c.Errors) > 0 && !c.Writer.Written() {
			RenderError(c, c.Errors.Last().Err)
		}

		status := c.Writer.Status()
		resp := idempotency.Replay{
			StatusCode:  status,
			ContentType: c.Writer.Header().Get("Content-Type"),
			Body:        rec.body.Bytes(),
		}

		switch {
		case status >= 500:
			err = store.Release(ctx, key)
		case status >= 400:
			err = store.Fail(ctx, key, resp)
		default:
			err = store.Complete(ctx, key, resp)
		}
		if err != nil {
			logger.Warn(ctx, "idempotency key not finalized", "key", key, "status", status, "error", err)
		}
	}
}
