package config

import (
	"os"
	"strings"
	"testing"
)

// unsetEnv remove a variável durante o teste; t.Setenv restaura o valor original no cleanup
func unsetEnv(t *testing.T, keys ...string) {
	t.Helper()
	for _, k := range keys {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

func TestSecretDefaultsOnlyInLocal(t *testing.T) {
	t.Setenv("ENV_FILE", "/nonexistent/.env")
	unsetEnv(t, "JWT_SECRET", "IPN_SECRET")
	t.Setenv("ENV", "local")
	cfg := Load()
	if cfg.JWTSecret == "" || cfg.IPNSecret == "" {
		t.Fatalf("local env should have default secrets: %+v", cfg)
	}
	if err := cfg.RequireSecrets("JWT_SECRET", "IPN_SECRET"); err != nil {
		t.Fatalf("require: %v", err)
	}

	t.Setenv("ENV", "prod")
	cfg = Load()
	if cfg.JWTSecret != "" || cfg.IPNSecret != "" {
		t.Fatalf("prod env must not default secrets: jwt=%q ipn=%q", cfg.JWTSecret, cfg.IPNSecret)
	}
	err := cfg.RequireSecrets("JWT_SECRET", "IPN_SECRET")
	if err == nil || !strings.Contains(err.Error(), "JWT_SECRET") || !strings.Contains(err.Error(), "IPN_SECRET") {
		t.Fatalf("err = %v", err)
	}

	t.Setenv("JWT_SECRET", "s3cret")
	cfg = Load()
	if err := cfg.RequireSecrets("JWT_SECRET"); err != nil {
		t.Fatalf("explicit secret rejected: %v", err)
	}
	if err := cfg.RequireSecrets("IPN_SECRET"); err == nil {
		t.Fatal("missing ipn secret accepted")
	}
}

func TestSweepDefaults(t *testing.T) {
	t.Setenv("ENV_FILE", "/nonexistent/.env")
	unsetEnv(t, "RESERVATION_SWEEP_INTERVAL")
	t.Setenv("RESERVATION_MAX_AGE", "90s")
	cfg := Load()
	if cfg.ReservationMaxAge.Seconds() != 90 || cfg.ReservationSweepInterval.Minutes() != 1 {
		t.Fatalf("sweep config = %s / %s", cfg.ReservationMaxAge, cfg.ReservationSweepInterval)
	}
}
