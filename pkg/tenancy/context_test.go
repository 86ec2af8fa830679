package tenancy

import (
	"context"
	"testing"
)

func TestWithTenantAndTenantFromContext(t *testing.T) {
	tc := TenantContext{
		TenantID: "team-a",
		User:     "alice",
		Groups:   []string{"developers", "admins"},
	}

	ctx := WithTenant(context.Background(), tc)
	got, ok := TenantFromContext(ctx)
	if !ok {
		t.Fatal("expected TenantFromContext to return true")
	}
	if got.TenantID != tc.TenantID {
		t.Errorf("TenantID = %q, want %q", got.TenantID, tc.TenantID)
	}
	if got.User != tc.User {
		t.Errorf("User = %q, want %q", got.User, tc.User)
	}
	if len(got.Groups) != len(tc.Groups) {
		t.Fatalf("Groups length = %d, want %d", len(got.Groups), len(tc.Groups))
	}
	for i, g := range got.Groups {
		if g != tc.Groups[i] {
			t.Errorf("Groups[%d] = %q, want %q", i, g, tc.Groups[i])
		}
	}
}

func TestTenantFromContext_Missing(t *testing.T) {
	_, ok := TenantFromContext(context.Background())
	if ok {
		t.Fatal("expected TenantFromContext to return false for empty context")
	}
}

func TestTenantIDFromContext(t *testing.T) {
	tests := []struct {
		name string
		ctx  context.Context
		want string
	}{
		{
			name: "with tenant set",
			ctx:  WithTenant(context.Background(), TenantContext{TenantID: "my-tenant"}),
			want: "my-tenant",
		},
		{
			name: "without tenant set",
			ctx:  context.Background(),
			want: "",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := TenantIDFromContext(tt.ctx); got != tt.want {
				t.Errorf("TenantIDFromContext() = %q, want %q", got, tt.want)
			}
		})
	}
}
