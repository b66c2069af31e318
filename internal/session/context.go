package session

import "context"

type sessionContextKey struct{}

type current struct {
	id   string
	user *Payload
}

// ContextWithUser stores the resolved session in context.
func ContextWithUser(ctx context.Context, sessionID string, user *Payload) context.Context {
	return context.WithValue(ctx, sessionContextKey{}, current{id: sessionID, user: user})
}

// UserFromContext extracts the session user from context.
func UserFromContext(ctx context.Context) *Payload {
	cur, _ := ctx.Value(sessionContextKey{}).(current)
	return cur.user
}

// IDFromContext extracts the session id from context.
func IDFromContext(ctx context.Context) string {
	cur, _ := ctx.Value(sessionContextKey{}).(current)
	return cur.id
}
