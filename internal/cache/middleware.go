package cache

import (
	"bytes"
	"net/http"
)

// Middleware serves GET requests from the cache and captures successful JSON
// payloads on miss. Apply it only to idempotent read routes.
func Middleware(c *ResponseCache) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodGet {
				next.ServeHTTP(w, r)
				return
			}

			key := Key(r)
			if status, body, ok := c.Get(key); ok {
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("X-Cache", "HIT")
				w.WriteHeader(status)
				_, _ = w.Write(body)
				return
			}

			rec := &recorder{ResponseWriter: w, status: http.StatusOK}
			w.Header().Set("X-Cache", "MISS")
			next.ServeHTTP(rec, r)

			// Only successful payloads are worth replaying.
			if rec.status == http.StatusOK {
				c.Set(key, rec.status, rec.buf.Bytes())
			}
		})
	}
}

// Key builds the cache key from the full request path including query string.
func Key(r *http.Request) string {
	if r.URL.RawQuery == "" {
		return r.URL.Path
	}
	return r.URL.Path + "?" + r.URL.RawQuery
}

// recorder tees the response body so a copy can be stored on cache miss.
type recorder struct {
	http.ResponseWriter
	status  int
	buf     bytes.Buffer
	written bool
}

func (r *recorder) WriteHeader(code int) {
	if !r.written {
		r.status = code
		r.written = true
		r.ResponseWriter.WriteHeader(code)
	}
}

func (r *recorder) Write(b []byte) (int, error) {
	if !r.written {
		r.WriteHeader(http.StatusOK)
	}
	r.buf.Write(b)
	return r.ResponseWriter.Write(b)
}
