package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/kozaktomas/face-migrator/internal/facematch"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{
		"SOURCE_DB_PATH", "TARGET_API_URL", "TARGET_API_KEY",
		"TARGET_DB_HOST", "TARGET_DB_PORT", "TARGET_DB_NAME",
		"TARGET_DB_USER", "TARGET_DB_PASSWORD", "PORT",
		"MIN_IOU", "MAX_CENTER_DIST", "MIN_MATCHES",
		"NAME_MATCH_MODE", "PATH_MAPPINGS", "PATH_MAPPINGS_FILE",
	} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	settings := cfg.Snapshot()

	if settings.TargetDB.Host != "localhost" || settings.TargetDB.Port != 5432 {
		t.Errorf("unexpected target db defaults: %s:%d", settings.TargetDB.Host, settings.TargetDB.Port)
	}
	if settings.Server.Port != 8080 {
		t.Errorf("expected default port 8080, got %d", settings.Server.Port)
	}
	if settings.Matching.MinIoU != 0.30 || settings.Matching.MaxCenterDist != 0.40 {
		t.Errorf("unexpected matching defaults: %f/%f", settings.Matching.MinIoU, settings.Matching.MaxCenterDist)
	}
	if settings.Matching.NameMatchMode != facematch.NameMatchFold {
		t.Errorf("expected fold mode by default, got %s", settings.Matching.NameMatchMode)
	}
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("SOURCE_DB_PATH", "/data/MediaDb.v1.sqlite")
	t.Setenv("TARGET_API_URL", "http://immich:2283")
	t.Setenv("TARGET_API_KEY", "secret-key")
	t.Setenv("TARGET_DB_PORT", "5433")
	t.Setenv("MIN_IOU", "0.25")
	t.Setenv("NAME_MATCH_MODE", "exact")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	settings := cfg.Snapshot()

	if settings.SourceDB.Path != "/data/MediaDb.v1.sqlite" {
		t.Errorf("unexpected source path %q", settings.SourceDB.Path)
	}
	if settings.TargetDB.Port != 5433 {
		t.Errorf("expected port 5433, got %d", settings.TargetDB.Port)
	}
	if settings.Matching.MinIoU != 0.25 {
		t.Errorf("expected min iou 0.25, got %f", settings.Matching.MinIoU)
	}
	if settings.Matching.NameMatchMode != facematch.NameMatchExact {
		t.Errorf("expected exact mode, got %s", settings.Matching.NameMatchMode)
	}
}

func TestLoadRejectsInvalidNameMode(t *testing.T) {
	t.Setenv("NAME_MATCH_MODE", "fuzzy")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for invalid name match mode")
	}
}

func TestLoadInvalidNumbersFallBack(t *testing.T) {
	t.Setenv("MIN_IOU", "not-a-number")
	t.Setenv("MAX_CENTER_DIST", "1.5")
	t.Setenv("TARGET_DB_PORT", "-1")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	settings := cfg.Snapshot()
	if settings.Matching.MinIoU != 0.30 {
		t.Errorf("invalid MIN_IOU must fall back to 0.30, got %f", settings.Matching.MinIoU)
	}
	if settings.Matching.MaxCenterDist != 0.40 {
		t.Errorf("out-of-range MAX_CENTER_DIST must fall back to 0.40, got %f", settings.Matching.MaxCenterDist)
	}
	if settings.TargetDB.Port != 5432 {
		t.Errorf("negative port must fall back to 5432, got %d", settings.TargetDB.Port)
	}
}

func TestPathMappingsInline(t *testing.T) {
	t.Setenv("PATH_MAPPINGS", "C:\\Users\\me\\Pictures: /photos\n")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	mappings := cfg.Snapshot().PathMappings
	if mappings["C:\\Users\\me\\Pictures"] != "/photos" {
		t.Errorf("unexpected mappings %v", mappings)
	}
}

func TestPathMappingsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mappings.yaml")
	if err := os.WriteFile(path, []byte("D:\\Photos: /library\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("PATH_MAPPINGS_FILE", path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := cfg.Snapshot().PathMappings["D:\\Photos"]; got != "/library" {
		t.Errorf("expected /library, got %q", got)
	}
}

func TestRuntimeOverrides(t *testing.T) {
	t.Setenv("TARGET_API_KEY", "env-key")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cfg.SetSourceDB("/new/path.sqlite")
	cfg.SetTargetAPI("http://other:2283", "")
	port := 5444
	cfg.SetTargetDB(TargetDBUpdate{Port: &port})

	settings := cfg.Snapshot()
	if settings.SourceDB.Path != "/new/path.sqlite" {
		t.Errorf("source override not applied: %q", settings.SourceDB.Path)
	}
	if settings.TargetAPI.URL != "http://other:2283" {
		t.Errorf("api url override not applied: %q", settings.TargetAPI.URL)
	}
	if settings.TargetAPI.APIKey != "env-key" {
		t.Errorf("empty api key must keep the current value, got %q", settings.TargetAPI.APIKey)
	}
	if settings.TargetDB.Port != 5444 {
		t.Errorf("db port override not applied: %d", settings.TargetDB.Port)
	}

	public := cfg.PublicView()
	if !public.OverriddenFields["source_db_path"] {
		t.Error("expected source_db_path flagged as overridden")
	}
	if public.OverriddenFields["target_api_key"] {
		t.Error("api key was not overridden")
	}
}

func TestPublicViewMasksSecrets(t *testing.T) {
	t.Setenv("TARGET_API_KEY", "super-secret")
	t.Setenv("TARGET_DB_PASSWORD", "hunter2")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	public := cfg.PublicView()
	if !public.TargetAPIKeySet || !public.TargetDBPassSet {
		t.Error("expected both secrets reported as set")
	}
}
