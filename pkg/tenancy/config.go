// Package tenancy provides multi-tenant context resolution and middleware
// for the governance server. It supports single-tenant (backward compatible)
// and per-request tenant modes.
package tenancy

// TenancyMode controls how tenant context is resolved.
type TenancyMode string

const (
	// ModeSingle uses the "default" tenant for all requests (backward compat).
	ModeSingle TenancyMode = "single"
	// ModeTenant requires a tenant ID per request (multi-tenant).
	ModeTenant TenancyMode = "tenant"
)
