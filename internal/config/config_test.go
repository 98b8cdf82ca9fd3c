package config

import (
	"os"
	"reflect"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	os.Clearenv()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HTTPAddr != ":8080" {
		t.Errorf("HTTPAddr = %q, want %q", cfg.HTTPAddr, ":8080")
	}
	if cfg.IdentityPageSize != 1000 {
		t.Errorf("IdentityPageSize = %d, want 1000", cfg.IdentityPageSize)
	}
	if cfg.IdentityMaxPages != 10 {
		t.Errorf("IdentityMaxPages = %d, want 10", cfg.IdentityMaxPages)
	}
	if cfg.IdentityMaxAttempts != 1 {
		t.Errorf("IdentityMaxAttempts = %d, want 1", cfg.IdentityMaxAttempts)
	}
	if !cfg.IdentityPermissionErrors {
		t.Error("IdentityPermissionErrors should default to true")
	}
	if !cfg.NotifyCredentialSetup {
		t.Error("NotifyCredentialSetup should default to true")
	}
	if cfg.ProvisioningKafkaTopic != "driver-provisioning-events" {
		t.Errorf("ProvisioningKafkaTopic = %q", cfg.ProvisioningKafkaTopic)
	}
	if cfg.OTelServiceName != "driver-provisioning" {
		t.Errorf("OTelServiceName = %q", cfg.OTelServiceName)
	}
	if cfg.IdentityRequestTimeout() != 15*time.Second {
		t.Errorf("IdentityRequestTimeout = %v, want 15s", cfg.IdentityRequestTimeout())
	}
}

func TestLoad_EnvVarOverride(t *testing.T) {
	os.Clearenv()
	os.Setenv("HTTP_ADDR", ":9090")
	os.Setenv("IDENTITY_MAX_ATTEMPTS", "3")
	os.Setenv("IDENTITY_PERMISSION_ERRORS", "false")
	os.Setenv("NOTIFY_CREDENTIAL_SETUP", "false")
	os.Setenv("IDENTITY_TIMEOUT", "5s")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HTTPAddr != ":9090" {
		t.Errorf("HTTPAddr = %q, want %q", cfg.HTTPAddr, ":9090")
	}
	if cfg.IdentityMaxAttempts != 3 {
		t.Errorf("IdentityMaxAttempts = %d, want 3", cfg.IdentityMaxAttempts)
	}
	if cfg.IdentityPermissionErrors || cfg.NotifyCredentialSetup {
		t.Error("boolean overrides should apply")
	}
	if cfg.IdentityRequestTimeout() != 5*time.Second {
		t.Errorf("IdentityRequestTimeout = %v, want 5s", cfg.IdentityRequestTimeout())
	}
}

func TestLoad_Ranges(t *testing.T) {
	testCases := []struct {
		name  string
		key   string
		value string
		err   bool
	}{
		{"page size max", "IDENTITY_PAGE_SIZE", "1000", false},
		{"page size too large", "IDENTITY_PAGE_SIZE", "1001", true},
		{"page size zero", "IDENTITY_PAGE_SIZE", "0", true},
		{"max pages zero", "IDENTITY_MAX_PAGES", "0", true},
		{"attempts zero", "IDENTITY_MAX_ATTEMPTS", "0", true},
		{"attempts too many", "IDENTITY_MAX_ATTEMPTS", "11", true},
		{"attempts valid", "IDENTITY_MAX_ATTEMPTS", "4", false},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			os.Clearenv()
			os.Setenv(tc.key, tc.value)
			_, err := Load()
			if tc.err && err == nil {
				t.Fatal("Load should return error")
			}
			if !tc.err && err != nil {
				t.Fatalf("Load: %v", err)
			}
		})
	}
}

func TestLoad_MailerNeedsSender(t *testing.T) {
	os.Clearenv()
	os.Setenv("MAILTRAP_API_URL", "https://send.api.mailtrap.io/api/send")

	cfg, err := Load()
	if err == nil {
		t.Fatal("Load should fail without MAIL_FROM_EMAIL")
	}
	if cfg != nil {
		t.Error("Load should return nil config on error")
	}
}

func TestIdentityBaseURL(t *testing.T) {
	testCases := []struct {
		name    string
		primary string
		vite    string
		want    string
	}{
		{"primary", "https://proj.supabase.co", "", "https://proj.supabase.co/auth/v1"},
		{"trailing slash", "https://proj.supabase.co/", "", "https://proj.supabase.co/auth/v1"},
		{"already suffixed", "https://proj.supabase.co/auth/v1", "", "https://proj.supabase.co/auth/v1"},
		{"vite fallback", "", "https://vite.supabase.co", "https://vite.supabase.co/auth/v1"},
		{"primary wins", "https://a.example", "https://b.example", "https://a.example/auth/v1"},
		{"unset", "", "", ""},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := &Config{SupabaseURL: tc.primary, ViteSupabaseURL: tc.vite}
			if got := cfg.IdentityBaseURL(); got != tc.want {
				t.Errorf("IdentityBaseURL = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestIdentityServiceKey_Fallback(t *testing.T) {
	cfg := &Config{ViteServiceRoleKey: "vite-key"}
	if cfg.IdentityServiceKey() != "vite-key" {
		t.Errorf("IdentityServiceKey = %q", cfg.IdentityServiceKey())
	}
	cfg.ServiceRoleKey = "primary-key"
	if cfg.IdentityServiceKey() != "primary-key" {
		t.Errorf("IdentityServiceKey = %q", cfg.IdentityServiceKey())
	}
}

func TestValidateServer(t *testing.T) {
	cfg := &Config{}
	if err := cfg.ValidateServer(); err == nil {
		t.Fatal("empty config should fail")
	}
	cfg.DatabaseURL = "postgres://localhost/drivers"
	cfg.SupabaseURL = "https://proj.supabase.co"
	if err := cfg.ValidateServer(); err == nil {
		t.Fatal("missing key should fail")
	}
	cfg.ServiceRoleKey = "key"
	if err := cfg.ValidateServer(); err != nil {
		t.Fatalf("ValidateServer: %v", err)
	}
}

func TestIdentityRequestTimeout_Invalid(t *testing.T) {
	for _, v := range []string{"", "invalid", "0", "-5s"} {
		cfg := &Config{IdentityTimeout: v}
		if got := cfg.IdentityRequestTimeout(); got != 15*time.Second {
			t.Errorf("IdentityRequestTimeout(%q) = %v, want 15s", v, got)
		}
	}
}

func TestKafkaBrokersList(t *testing.T) {
	cfg := &Config{KafkaBrokers: " kafka-1:9092, ,kafka-2:9092 "}
	want := []string{"kafka-1:9092", "kafka-2:9092"}
	if got := cfg.KafkaBrokersList(); !reflect.DeepEqual(got, want) {
		t.Errorf("KafkaBrokersList = %v, want %v", got, want)
	}
	var nilCfg *Config
	if nilCfg.KafkaBrokersList() != nil {
		t.Error("nil config should have no brokers")
	}
}

func TestIsProduction(t *testing.T) {
	if !(&Config{Env: "Production"}).IsProduction() {
		t.Error("Production should be production")
	}
	if (&Config{Env: "development"}).IsProduction() {
		t.Error("development should not be production")
	}
}
