package config

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Settings represents the application configuration persisted to disk.
type Settings struct {
	Server    ServerSettings   `json:"server"`
	Cache     CacheSettings    `json:"cache"`
	Proxy     ProxySettings    `json:"proxy"`
	Probe     ProbeSettings    `json:"probe"`
	Prewarm   PrewarmSettings  `json:"prewarm"`
	Catalog   CatalogSettings  `json:"catalog"`
	Providers []ProviderConfig `json:"providers"`
	Auth      AuthSettings     `json:"auth"`
	Log       LogConfig        `json:"log"`
}

type ServerSettings struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

// CacheBackend selects the best-source cache implementation.
type CacheBackend string

const (
	CacheBackendMemory CacheBackend = "memory"
	CacheBackendSQLite CacheBackend = "sqlite"
)

type CacheSettings struct {
	Backend                CacheBackend `json:"backend"`
	Directory              string       `json:"directory"`
	SQLitePath             string       `json:"sqlitePath"`
	SnapshotFile           string       `json:"snapshotFile"` // memory backend persistence across restarts
	JanitorIntervalSeconds int          `json:"janitorIntervalSeconds"`
}

type ProxySettings struct {
	PlaylistTTLSeconds  int    `json:"playlistTtlSeconds"`
	UserAgent           string `json:"userAgent"`
	MaxPlaylistSizeMB   int    `json:"maxPlaylistSizeMb"`
	FetchTimeoutSeconds int    `json:"fetchTimeoutSeconds"`
}

type ProbeSettings struct {
	TimeoutSeconds int `json:"timeoutSeconds"`
	SampleKB       int `json:"sampleKb"`
}

type PrewarmSettings struct {
	Enabled               bool                `json:"enabled"`
	DrainIntervalSeconds  int                 `json:"drainIntervalSeconds"`
	IdleIntervalSeconds   int                 `json:"idleIntervalSeconds"`
	WorkerIntervalSeconds int                 `json:"workerIntervalSeconds"`
	ItemDelayMillis       int                 `json:"itemDelayMillis"`
	Items                 []PrewarmItemConfig `json:"items"`
}

type PrewarmItemConfig struct {
	Title string `json:"title"`
	Year  string `json:"year,omitempty"`
}

// ProviderConfig is one external catalog endpoint.
type ProviderConfig struct {
	Key     string `json:"key"`
	Name    string `json:"name"`
	API     string `json:"api"`
	Enabled bool   `json:"enabled"`
}

type CatalogSettings struct {
	TimeoutSeconds int `json:"timeoutSeconds"`
}

type AuthSettings struct {
	APIKey string `json:"apiKey"`
}

// LogConfig represents logging configuration.
type LogConfig struct {
	File       string `json:"file"`
	Level      string `json:"level"`
	MaxSize    int    `json:"maxSize"`
	MaxAge     int    `json:"maxAge"`
	MaxBackups int    `json:"maxBackups"`
	Compress   bool   `json:"compress"`
}

// DefaultSettings returns sane defaults for a fresh install.
func DefaultSettings() Settings {
	return Settings{
		Server: ServerSettings{Host: "0.0.0.0", Port: 8585},
		Cache: CacheSettings{
			Backend:                CacheBackendMemory,
			Directory:              "cache",
			SQLitePath:             "cache/streampick.db",
			SnapshotFile:           "cache/best-sources.json",
			JanitorIntervalSeconds: 60,
		},
		Proxy: ProxySettings{
			PlaylistTTLSeconds:  300,
			MaxPlaylistSizeMB:   5,
			FetchTimeoutSeconds: 10,
		},
		Probe: ProbeSettings{
			TimeoutSeconds: 8,
			SampleKB:       256,
		},
		Prewarm: PrewarmSettings{
			Enabled:               true,
			DrainIntervalSeconds:  3,
			IdleIntervalSeconds:   60,
			WorkerIntervalSeconds: 2,
			ItemDelayMillis:       1500,
			Items:                 []PrewarmItemConfig{},
		},
		Catalog:   CatalogSettings{TimeoutSeconds: 12},
		Providers: []ProviderConfig{},
		Auth:      AuthSettings{APIKey: ""},
		Log: LogConfig{
			File:       "cache/logs/streampick.log",
			Level:      "info",
			MaxSize:    50,
			MaxBackups: 3,
			MaxAge:     7,
			Compress:   true,
		},
	}
}

// Manager loads and persists settings to a JSON file.
type Manager struct {
	path string
}

func NewManager(configPath string) *Manager {
	return &Manager{path: configPath}
}

// EnsureDir ensures parent directory exists.
func (m *Manager) EnsureDir() error {
	dir := filepath.Dir(m.path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

// Load reads settings.json from disk or creates defaults if missing.
func (m *Manager) Load() (Settings, error) {
	if m.path == "" {
		return Settings{}, errors.New("config path not set")
	}
	if _, err := os.Stat(m.path); errors.Is(err, fs.ErrNotExist) {
		defaults := DefaultSettings()
		if err := m.Save(defaults); err != nil {
			return Settings{}, err
		}
		return defaults, nil
	}

	data, err := os.ReadFile(m.path)
	if err != nil {
		return Settings{}, err
	}

	var s Settings
	if err := json.Unmarshal(data, &s); err != nil {
		return Settings{}, err
	}

	// Backfill defaults when the config predates a setting.
	def := DefaultSettings()
	if s.Server.Port == 0 {
		s.Server.Port = def.Server.Port
	}
	if strings.TrimSpace(s.Server.Host) == "" {
		s.Server.Host = def.Server.Host
	}
	if s.Cache.Backend == "" {
		s.Cache.Backend = def.Cache.Backend
	}
	if strings.TrimSpace(s.Cache.Directory) == "" {
		s.Cache.Directory = def.Cache.Directory
	}
	if strings.TrimSpace(s.Cache.SQLitePath) == "" {
		s.Cache.SQLitePath = def.Cache.SQLitePath
	}
	if strings.TrimSpace(s.Cache.SnapshotFile) == "" {
		s.Cache.SnapshotFile = def.Cache.SnapshotFile
	}
	if s.Cache.JanitorIntervalSeconds == 0 {
		s.Cache.JanitorIntervalSeconds = def.Cache.JanitorIntervalSeconds
	}
	if s.Proxy.PlaylistTTLSeconds == 0 {
		s.Proxy.PlaylistTTLSeconds = def.Proxy.PlaylistTTLSeconds
	}
	if s.Proxy.MaxPlaylistSizeMB == 0 {
		s.Proxy.MaxPlaylistSizeMB = def.Proxy.MaxPlaylistSizeMB
	}
	if s.Proxy.FetchTimeoutSeconds == 0 {
		s.Proxy.FetchTimeoutSeconds = def.Proxy.FetchTimeoutSeconds
	}
	if s.Probe.TimeoutSeconds == 0 {
		s.Probe.TimeoutSeconds = def.Probe.TimeoutSeconds
	}
	if s.Probe.SampleKB == 0 {
		s.Probe.SampleKB = def.Probe.SampleKB
	}
	if s.Prewarm.DrainIntervalSeconds == 0 {
		s.Prewarm.DrainIntervalSeconds = def.Prewarm.DrainIntervalSeconds
	}
	if s.Prewarm.IdleIntervalSeconds == 0 {
		s.Prewarm.IdleIntervalSeconds = def.Prewarm.IdleIntervalSeconds
	}
	if s.Prewarm.WorkerIntervalSeconds == 0 {
		s.Prewarm.WorkerIntervalSeconds = def.Prewarm.WorkerIntervalSeconds
	}
	if s.Prewarm.ItemDelayMillis == 0 {
		s.Prewarm.ItemDelayMillis = def.Prewarm.ItemDelayMillis
	}
	if s.Catalog.TimeoutSeconds == 0 {
		s.Catalog.TimeoutSeconds = def.Catalog.TimeoutSeconds
	}
	if strings.TrimSpace(s.Log.File) == "" {
		s.Log = def.Log
	}

	return s, nil
}

// Save writes the provided settings to disk atomically.
func (m *Manager) Save(s Settings) error {
	if m.path == "" {
		return errors.New("config path not set")
	}
	if err := m.EnsureDir(); err != nil {
		return err
	}
	tmp := m.path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(s); err != nil {
		f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, m.path)
}

// EnabledProviders filters the provider list down to enabled entries.
func (s Settings) EnabledProviders() []ProviderConfig {
	out := make([]ProviderConfig, 0, len(s.Providers))
	for _, p := range s.Providers {
		if p.Enabled && strings.TrimSpace(p.API) != "" {
			out = append(out, p)
		}
	}
	return out
}
