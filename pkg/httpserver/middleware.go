package httpserver

import (
	"net/http"
	"time"

	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/mmcdole/viking-faceauth/pkg/logging"
)

const requestIDHeader = "X-Request-ID"

// trackRequests counts in-flight requests, tags each with a request id and
// writes it to the access log
func (s *Server) trackRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.active.Add(1)
		defer s.active.Add(-1)

		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)

		ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		logging.Access.LogRequest(r.Method, r.URL.Path, status,
			"request_id", id,
			"remote", r.RemoteAddr,
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
		)
	})
}
