package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadCreatesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	m := NewManager(path)

	s, err := m.Load()
	if err != nil {
		t.Fatal(err)
	}
	if s.Server.Port != 8585 || s.Cache.Backend != CacheBackendMemory {
		t.Errorf("defaults = %+v", s)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("settings file not created: %v", err)
	}
}

func TestLoadBackfillsMissingFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	if err := os.WriteFile(path, []byte(`{"server":{"port":9000}}`), 0o644); err != nil {
		t.Fatal(err)
	}

	s, err := NewManager(path).Load()
	if err != nil {
		t.Fatal(err)
	}
	if s.Server.Port != 9000 {
		t.Errorf("explicit port overwritten: %d", s.Server.Port)
	}
	if s.Proxy.FetchTimeoutSeconds != 10 || s.Probe.TimeoutSeconds != 8 || s.Catalog.TimeoutSeconds != 12 {
		t.Errorf("timeouts not backfilled: %+v", s)
	}
	if s.Prewarm.ItemDelayMillis != 1500 {
		t.Errorf("prewarm delay = %d", s.Prewarm.ItemDelayMillis)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "settings.json")
	m := NewManager(path)

	s := DefaultSettings()
	s.Auth.APIKey = "secret"
	s.Providers = []ProviderConfig{{Key: "p1", Name: "One", API: "http://cat.example/api.php/provide/vod/", Enabled: true}}
	if err := m.Save(s); err != nil {
		t.Fatal(err)
	}

	got, err := m.Load()
	if err != nil {
		t.Fatal(err)
	}
	if got.Auth.APIKey != "secret" || len(got.Providers) != 1 {
		t.Errorf("round trip = %+v", got)
	}
}

func TestEnabledProviders(t *testing.T) {
	s := Settings{Providers: []ProviderConfig{
		{Key: "a", API: "http://a", Enabled: true},
		{Key: "b", API: "http://b", Enabled: false},
		{Key: "c", API: "  ", Enabled: true},
	}}
	got := s.EnabledProviders()
	if len(got) != 1 || got[0].Key != "a" {
		t.Errorf("enabled = %v", got)
	}
}
