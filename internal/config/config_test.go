package config

import (
	"os"
	"testing"
)

func TestLoadConfig(t *testing.T) {
	os.Setenv("MONGODB_URI", "mongodb://localhost:27017/testdb")
	os.Setenv("MONGODB_DATABASE", "addressmapper_test")
	os.Setenv("REDIS_HOST", "localhost")
	os.Setenv("REDIS_PORT", "6379")
	os.Setenv("PARTNER_INTEGRATION_ID", "integration-test-id")
	os.Setenv("PARTNER_SHARED_SECRET", "testsecret123456789012345678901234")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.MongoDB.URI == "" || cfg.Redis.Host == "" {
		t.Fatalf("unexpected empty config values: %+v", cfg)
	}
	if cfg.Partner.SharedSecret == "" {
		t.Fatalf("expected shared secret to be read from environment")
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.Partner.Issuer != "http://www.tribehr.com" {
		t.Fatalf("unexpected default issuer: %s", cfg.Partner.Issuer)
	}
	if !cfg.Partner.EnforceNonce {
		t.Fatalf("nonce enforcement should default to on")
	}
	if !cfg.Partner.CreateAccounts || !cfg.Partner.CreateUsers {
		t.Fatalf("lazy creation should default to on")
	}
}
