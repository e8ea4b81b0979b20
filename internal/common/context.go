package common

import (
	"context"
	"time"

	"github.com/rugflowhq/rugflow/constants"
)

// Context keys for storing values in context
type contextKey string

const (
	ContextKeyRequestID contextKey = "request_id"
	ContextKeyCompanyID contextKey = "company_id"
	ContextKeyUserID    contextKey = "user_id"
	ContextKeyUserRole  contextKey = "user_role"
)

// WithRequestID adds a request ID to the context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ContextKeyRequestID, requestID)
}

// RequestIDFromContext extracts the request ID from context
func RequestIDFromContext(ctx context.Context) string {
	if requestID, ok := ctx.Value(ContextKeyRequestID).(string); ok {
		return requestID
	}
	return ""
}

// WithCompanyID adds the tenant company ID to the context
func WithCompanyID(ctx context.Context, companyID string) context.Context {
	return context.WithValue(ctx, ContextKeyCompanyID, companyID)
}

// CompanyIDFromContext extracts the tenant company ID from context
func CompanyIDFromContext(ctx context.Context) string {
	if companyID, ok := ctx.Value(ContextKeyCompanyID).(string); ok {
		return companyID
	}
	return ""
}

// WithUserID adds the authenticated user ID to the context
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, ContextKeyUserID, userID)
}

// UserIDFromContext extracts the authenticated user ID from context
func UserIDFromContext(ctx context.Context) string {
	if userID, ok := ctx.Value(ContextKeyUserID).(string); ok {
		return userID
	}
	return ""
}

// WithUserRole adds the caller role to the context
func WithUserRole(ctx context.Context, role constants.UserRole) context.Context {
	return context.WithValue(ctx, ContextKeyUserRole, role)
}

// UserRoleFromContext extracts the caller role from context. The zero
// value means the gateway forwarded no role; callers must treat that as
// unauthenticated rather than defaulting to a privileged role.
func UserRoleFromContext(ctx context.Context) constants.UserRole {
	if role, ok := ctx.Value(ContextKeyUserRole).(constants.UserRole); ok {
		return role
	}
	return ""
}

// WithTimeout creates a context with the specified timeout
func WithTimeout(parent context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, timeout)
}
