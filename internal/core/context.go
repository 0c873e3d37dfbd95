package core

import "context"

type contextKey string

const (
	ctxKeyIPAddress contextKey = "run_ip"
	ctxKeyUserAgent contextKey = "run_ua"
)

// ContextWithIPAddress adds the requesting client's IP to ctx for run history.
func ContextWithIPAddress(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, ctxKeyIPAddress, ip)
}

// ContextWithUserAgent adds the requesting client's User-Agent to ctx.
func ContextWithUserAgent(ctx context.Context, ua string) context.Context {
	return context.WithValue(ctx, ctxKeyUserAgent, ua)
}

// IPAddressFromContext extracts the client IP, or "" when none was set.
func IPAddressFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(ctxKeyIPAddress).(string); ok {
		return v
	}
	return ""
}

// UserAgentFromContext extracts the client User-Agent, or "" when none was set.
func UserAgentFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(ctxKeyUserAgent).(string); ok {
		return v
	}
	return ""
}
