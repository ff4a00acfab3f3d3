package middleware

import (
	"context"
	"net"
	"net/http"
	"strings"
)

// HeaderXRequestID 请求 ID 的传递头。
const HeaderXRequestID = "X-Request-ID"

type ctxKey int

const requestIDCtxKey ctxKey = iota

// WithRequestID returns ctx carrying id.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDCtxKey, id)
}

// GetRequestID returns the id stored by WithRequestID, or "".
func GetRequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDCtxKey).(string)
	return id
}

// GetClientIP 依次取 X-Forwarded-For 的首个地址、X-Real-IP、连接对端地址。
func GetClientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		return strings.TrimSpace(first)
	}
	if xr := r.Header.Get("X-Real-IP"); xr != "" {
		return xr
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
