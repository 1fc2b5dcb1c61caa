package docrepo

import "context"

type ctxKey int

const (
	sessionKey ctxKey = 0
)

// withSession tags the context with the id of the session it runs in
func withSession(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, sessionKey, id)
}

// sessionFromContext returns the id of the session the context runs in, if any
func sessionFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	id, ok := ctx.Value(sessionKey).(string)
	return id, ok
}
