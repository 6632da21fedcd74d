package oauthmodel

import "context"

// RequestInfo is transport metadata about the inbound request. The engines
// pass it through to the Model untouched inside the context.
type RequestInfo struct {
	RequestID  string
	RemoteAddr string
	UserAgent  string
}

type requestInfoKey struct{}

func WithRequestInfo(ctx context.Context, info RequestInfo) context.Context {
	return context.WithValue(ctx, requestInfoKey{}, info)
}

// RequestInfoFromContext returns the RequestInfo stored by WithRequestInfo, if any
func RequestInfoFromContext(ctx context.Context) (RequestInfo, bool) {
	info, ok := ctx.Value(requestInfoKey{}).(RequestInfo)
	return info, ok
}
