package middleware

import (
	"bytes"
	"crypto/md5"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// ETagMiddleware adds content-hash ETags to rendered figures and read-only
// API responses, answering matching conditional requests with 304.
type ETagMiddleware struct {
	logger *zap.Logger
	maxAge int
}

// NewETagMiddleware creates a new ETag middleware. maxAge is the
// Cache-Control max-age in seconds.
func NewETagMiddleware(logger *zap.Logger, maxAge int) *ETagMiddleware {
	return &ETagMiddleware{
		logger: logger,
		maxAge: maxAge,
	}
}

// Middleware returns the ETag middleware handler
func (em *ETagMiddleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			next.ServeHTTP(w, r)
			return
		}

		// The response is buffered so headers can be set before anything is written.
		recorder := &etagRecorder{header: make(http.Header), status: http.StatusOK}
		next.ServeHTTP(recorder, r)

		for k, v := range recorder.header {
			w.Header()[k] = v
		}

		if recorder.status != http.StatusOK || recorder.body.Len() == 0 {
			w.WriteHeader(recorder.status)
			_, _ = w.Write(recorder.body.Bytes())
			return
		}

		etag := em.calculateETag(recorder.body.Bytes())
		w.Header().Set("ETag", fmt.Sprintf(`"%s"`, etag))
		w.Header().Set("Cache-Control", fmt.Sprintf("private, max-age=%d", em.maxAge))

		if clientETag := r.Header.Get("If-None-Match"); clientETag != "" && em.etagMatches(clientETag, etag) {
			em.logger.Debug("ETag matched, serving 304",
				zap.String("path", r.URL.Path),
				zap.String("etag", etag),
				zap.String("request_id", middleware.GetReqID(r.Context())))

			w.WriteHeader(http.StatusNotModified)
			return
		}

		w.WriteHeader(recorder.status)
		_, _ = w.Write(recorder.body.Bytes())
	})
}

// calculateETag calculates an ETag for the given content
func (em *ETagMiddleware) calculateETag(content []byte) string {
	sum := md5.Sum(content)
	return fmt.Sprintf("%x", sum)[:16]
}

// etagMatches checks if any client ETag matches the server ETag
func (em *ETagMiddleware) etagMatches(clientETags, serverETag string) bool {
	for _, candidate := range strings.Split(clientETags, ",") {
		candidate = strings.TrimSpace(candidate)
		candidate = strings.TrimPrefix(candidate, "W/")
		if candidate == "*" || strings.Trim(candidate, `"`) == serverETag {
			return true
		}
	}
	return false
}

// etagRecorder buffers a response
type etagRecorder struct {
	header http.Header
	status int
	body   bytes.Buffer
}

func (r *etagRecorder) Header() http.Header {
	return r.header
}

func (r *etagRecorder) WriteHeader(statusCode int) {
	r.status = statusCode
}

func (r *etagRecorder) Write(data []byte) (int, error) {
	return r.body.Write(data)
}
