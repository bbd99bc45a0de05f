package cache

import (
	"context"
	"strconv"
	"strings"
)

// TenantSeparator joins the tenant prefix and the logical key.
const TenantSeparator = ":"

// TenantResolver supplies the tenant for the current call. An empty id or an error
// means the tenant is unavailable and the cache falls back to unscoped keys.
type TenantResolver interface {
	TenantID(ctx context.Context) (string, error)
}

// TenantResolverFunc adapts a function to TenantResolver.
type TenantResolverFunc func(ctx context.Context) (string, error)

// TenantID implements TenantResolver.
func (f TenantResolverFunc) TenantID(ctx context.Context) (string, error) {
	return f(ctx)
}

type tenantContextKey struct{}

// WithTenant attaches a tenant id to the context for ContextTenantResolver.
func WithTenant(ctx context.Context, tenantID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	tenantID = strings.TrimSpace(tenantID)
	if tenantID == "" {
		return ctx
	}
	return context.WithValue(ctx, tenantContextKey{}, tenantID)
}

// TenantFromContext returns the tenant id stored by WithTenant.
func TenantFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	id, ok := ctx.Value(tenantContextKey{}).(string)
	return id, ok && id != ""
}

// ContextTenantResolver reads the tenant stored with WithTenant.
type ContextTenantResolver struct{}

// TenantID implements TenantResolver.
func (ContextTenantResolver) TenantID(ctx context.Context) (string, error) {
	id, _ := TenantFromContext(ctx)
	return id, nil
}

// UnscopedPrefix marks entries stored without a tenant while isolation is enabled.
// A quoted tenant always starts with a double quote, so no tenant maps onto it.
const UnscopedPrefix = "-" + TenantSeparator

// TenantKey builds the namespaced storage key `"{tenant}":{key}`. The tenant is
// quoted so that separators inside tenant ids or logical keys cannot make two
// (tenant, key) pairs share a storage key. An empty tenant maps into the unscoped
// namespace.
func TenantKey(tenantID, key string) string {
	if tenantID == "" {
		return UnscopedPrefix + key
	}
	return strconv.Quote(tenantID) + TenantSeparator + key
}
