package middleware

import (
	"net/http"
	"time"
)

type httpObserver interface {
	ObserveHTTP(method string, status int, duration time.Duration)
}

func MetricsMiddleware(o httpObserver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			lw := newLogWriter(w)

			next.ServeHTTP(lw, r)

			o.ObserveHTTP(r.Method, lw.data.responseStatus, time.Since(start))
		})
	}
}
