package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/pmtweb")
	t.Setenv("JWT_SECRET", "secret")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.OwnershipPolicy != OwnershipPolicyStrict {
		t.Errorf("OwnershipPolicy = %q, want %q", cfg.OwnershipPolicy, OwnershipPolicyStrict)
	}
	if cfg.IdentityCacheTTL != 30*time.Second {
		t.Errorf("IdentityCacheTTL = %s, want 30s", cfg.IdentityCacheTTL)
	}
	if cfg.IdentityCacheSize != 1000 {
		t.Errorf("IdentityCacheSize = %d, want 1000", cfg.IdentityCacheSize)
	}
	if !cfg.IsDevelopment() {
		t.Error("default APP_ENV should be development")
	}
	if cfg.SMTPEnabled() {
		t.Error("SMTP should be disabled without SMTP_HOST")
	}
}

func TestLoad_MissingRequired(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("JWT_SECRET", "")
	if _, err := Load(); err == nil {
		t.Fatal("Load with missing required vars: want error")
	}
}

func TestValidate_OwnershipPolicy(t *testing.T) {
	t.Parallel()
	cases := []struct {
		policy  string
		wantErr bool
	}{
		{OwnershipPolicyStrict, false},
		{OwnershipPolicyLegacy, false},
		{"lenient", true},
		{"", true},
	}
	for _, tc := range cases {
		cfg := &Config{OwnershipPolicy: tc.policy, IdentityCacheSize: 1, IdentityCacheTTL: time.Second} //nolint:exhaustruct // test
		err := cfg.Validate()
		if (err != nil) != tc.wantErr {
			t.Errorf("Validate(policy=%q) err = %v, wantErr %v", tc.policy, err, tc.wantErr)
		}
	}
}

func TestValidate_CacheBounds(t *testing.T) {
	t.Parallel()
	cfg := &Config{OwnershipPolicy: OwnershipPolicyStrict, IdentityCacheSize: 0, IdentityCacheTTL: time.Second} //nolint:exhaustruct // test
	if err := cfg.Validate(); err == nil {
		t.Error("zero cache size: want error")
	}
	cfg.IdentityCacheSize = 10
	cfg.IdentityCacheTTL = 0
	if err := cfg.Validate(); err == nil {
		t.Error("zero cache TTL: want error")
	}
}
