package config

import (
	"testing"
	"time"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg := LoadConfig()

	if cfg.Server.Port != 3000 {
		t.Errorf("server port = %d, want 3000", cfg.Server.Port)
	}
	if cfg.Database.DBName != "medical_ocr_db" {
		t.Errorf("db name = %q", cfg.Database.DBName)
	}
	if cfg.JWT.Expiry != 24*time.Hour {
		t.Errorf("jwt expiry = %v", cfg.JWT.Expiry)
	}
	if cfg.Upload.MaxFileSize != 10<<20 {
		t.Errorf("max file size = %d", cfg.Upload.MaxFileSize)
	}
	if cfg.Storage.Backend != "local" {
		t.Errorf("storage backend = %q", cfg.Storage.Backend)
	}
	if cfg.MQ.Backend != "none" {
		t.Errorf("mq backend = %q", cfg.MQ.Backend)
	}
	if cfg.RateLimit.Window != 15*time.Minute || cfg.RateLimit.MaxRequests != 100 {
		t.Errorf("rate limit = %+v", cfg.RateLimit)
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("SERVER_PORT", "8081")
	t.Setenv("DB_USE_SSL", "true")
	t.Setenv("JWT_EXPIRY", "30m")
	t.Setenv("MAX_FILE_SIZE", "1048576")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("STORAGE_BACKEND", "minio")

	cfg := LoadConfig()

	if cfg.Server.Port != 8081 {
		t.Errorf("server port = %d", cfg.Server.Port)
	}
	if !cfg.Database.UseSSL {
		t.Error("db ssl not enabled")
	}
	if cfg.JWT.Expiry != 30*time.Minute {
		t.Errorf("jwt expiry = %v", cfg.JWT.Expiry)
	}
	if cfg.Upload.MaxFileSize != 1<<20 {
		t.Errorf("max file size = %d", cfg.Upload.MaxFileSize)
	}
	want := []string{"https://a.example", "https://b.example"}
	if len(cfg.CORS.Origins) != 2 || cfg.CORS.Origins[0] != want[0] || cfg.CORS.Origins[1] != want[1] {
		t.Errorf("origins = %v", cfg.CORS.Origins)
	}
	if cfg.Storage.Backend != "minio" {
		t.Errorf("storage backend = %q", cfg.Storage.Backend)
	}
}

func TestLoadConfigBadValuesFallBack(t *testing.T) {
	t.Setenv("SERVER_PORT", "not-a-number")
	t.Setenv("JWT_EXPIRY", "soon")
	t.Setenv("DB_USE_SSL", "maybe")

	cfg := LoadConfig()

	if cfg.Server.Port != 3000 {
		t.Errorf("server port = %d, want default", cfg.Server.Port)
	}
	if cfg.JWT.Expiry != 24*time.Hour {
		t.Errorf("jwt expiry = %v, want default", cfg.JWT.Expiry)
	}
	if cfg.Database.UseSSL {
		t.Error("db ssl = true, want default false")
	}
}
