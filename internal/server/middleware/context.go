package middleware

import (
	"context"

	"github.com/planwatch/edge/internal/domain"
)

type contextKey string

const (
	ContextKeyPlan         contextKey = "plan"
	ContextKeyLocale       contextKey = "locale"
	ContextKeyOriginalPath contextKey = "original_path"
)

// PlanFromContext returns the plan the routing middleware resolved.
func PlanFromContext(ctx context.Context) (*domain.Plan, bool) {
	v, ok := ctx.Value(ContextKeyPlan).(*domain.Plan)
	return v, ok
}

// LocaleFromContext returns the locale the routing middleware resolved.
func LocaleFromContext(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(ContextKeyLocale).(string)
	return v, ok
}

// OriginalPathFromContext returns the request path before any rewrite.
func OriginalPathFromContext(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(ContextKeyOriginalPath).(string)
	return v, ok
}
