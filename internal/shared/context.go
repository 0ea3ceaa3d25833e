package shared

import "context"

type sessionContextKey struct{}

// ContextWithSession stores the session in context.
func ContextWithSession(ctx context.Context, sess *Session) context.Context {
	return context.WithValue(ctx, sessionContextKey{}, sess)
}

// SessionFromContext extracts the session from context.
func SessionFromContext(ctx context.Context) *Session {
	sess, _ := ctx.Value(sessionContextKey{}).(*Session)
	return sess
}

// RequireSession is SessionFromContext for handlers that cannot run
// anonymously.
func RequireSession(ctx context.Context) (*Session, error) {
	sess := SessionFromContext(ctx)
	if sess == nil {
		return nil, ErrSessionMissing
	}
	return sess, nil
}

// Flash queues a success flash on the request's session, if any.
func Flash(ctx context.Context, message string) {
	if sess := SessionFromContext(ctx); sess != nil {
		sess.AddFlash(FlashMessage{Kind: "success", Message: message})
	}
}
