package auth

import "context"

type contextKey string

const (
	roleKey    contextKey = "auth.role"
	subjectKey contextKey = "auth.subject"
)

// WithIdentity stores the authenticated role and subject on the context.
func WithIdentity(ctx context.Context, role Role, subject string) context.Context {
	ctx = context.WithValue(ctx, roleKey, role)
	return context.WithValue(ctx, subjectKey, subject)
}

// RoleFromContext returns the authenticated role, if any.
func RoleFromContext(ctx context.Context) (Role, bool) {
	role, ok := ctx.Value(roleKey).(Role)
	return role, ok
}

// SubjectFromContext returns the authenticated subject, if any.
func SubjectFromContext(ctx context.Context) (string, bool) {
	subject, ok := ctx.Value(subjectKey).(string)
	return subject, ok
}
