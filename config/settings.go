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
	Cache     CacheSettings      `json:"cache"`
	Fetch     FetchSettings      `json:"fetch"`
	Subtitles SubtitleSettings   `json:"subtitles"`
	Scoring   ScoringSettings    `json:"scoring"`
	Search    SearchSettings     `json:"search"`
	Providers []ProviderSettings `json:"providers"`
	Log       LogConfig          `json:"log"`
}

// CacheSettings controls the on-disk response cache.
type CacheSettings struct {
	Directory  string `json:"directory"`
	TTLMinutes int    `json:"ttlMinutes"` // default TTL for provider pages
}

// FetchSettings controls the resilient HTTP layer.
type FetchSettings struct {
	TimeoutSeconds int    `json:"timeoutSeconds"`
	MaxRetries     int    `json:"maxRetries"`
	MaxRedirects   int    `json:"maxRedirects"`
	UserAgent      string `json:"userAgent"`
}

// SubtitleSettings controls normalization of downloaded subtitle files.
type SubtitleSettings struct {
	DefaultEncoding    string  `json:"defaultEncoding"`
	AutoDetectEncoding bool    `json:"autoDetectEncoding"`
	AdjustDuration     bool    `json:"adjustDuration"`
	ExtendDurationOnly bool    `json:"extendDurationOnly"`
	MaxCharsPerSecond  float64 `json:"maxCharsPerSecond"`
}

// ScoringSettings controls the match scorer.
type ScoringSettings struct {
	// HashMatchScore is the score (0-100) at or above which a candidate is
	// flagged as a perfect match even without file-hash evidence.
	HashMatchScore float64 `json:"hashMatchScore"`
}

// SearchSettings controls the provider aggregation step.
type SearchSettings struct {
	TimeoutSeconds   int  `json:"timeoutSeconds"`
	PerfectMatchOnly bool `json:"perfectMatchOnly"`
}

// ProviderSettings enables/disables a provider adapter by name.
type ProviderSettings struct {
	Name      string   `json:"name"`
	Enabled   bool     `json:"enabled"`
	Languages []string `json:"languages,omitempty"` // empty means all configured languages
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
		Cache: CacheSettings{Directory: "cache", TTLMinutes: 120},
		Fetch: FetchSettings{
			TimeoutSeconds: 30,
			MaxRetries:     3,
			MaxRedirects:   10,
			UserAgent:      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36",
		},
		Subtitles: SubtitleSettings{
			DefaultEncoding:    "windows-1252",
			AutoDetectEncoding: true,
			AdjustDuration:     false,
			ExtendDurationOnly: true,
			MaxCharsPerSecond:  14.7,
		},
		Scoring:   ScoringSettings{HashMatchScore: 95},
		Search:    SearchSettings{TimeoutSeconds: 25, PerfectMatchOnly: false},
		Providers: []ProviderSettings{},
		Log: LogConfig{
			File:       "cache/logs/substream.log",
			Level:      "info",
			MaxSize:    50, // 50 MB per file
			MaxBackups: 3,  // keep 3 old files
			MaxAge:     7,  // 7 days
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

// Load reads settings from disk or creates defaults if missing.
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
	f, err := os.Open(m.path)
	if err != nil {
		return Settings{}, err
	}
	defer f.Close()

	var s Settings
	if err := json.NewDecoder(f).Decode(&s); err != nil {
		return Settings{}, err
	}

	// Backfill defaults for configs predating newer settings
	if strings.TrimSpace(s.Cache.Directory) == "" {
		s.Cache.Directory = "cache"
	}
	if s.Cache.TTLMinutes == 0 {
		s.Cache.TTLMinutes = 120
	}
	if s.Fetch.TimeoutSeconds == 0 {
		s.Fetch.TimeoutSeconds = 30
	}
	if s.Fetch.MaxRetries == 0 {
		s.Fetch.MaxRetries = 3
	}
	if s.Fetch.MaxRedirects == 0 {
		s.Fetch.MaxRedirects = 10
	}
	if strings.TrimSpace(s.Fetch.UserAgent) == "" {
		s.Fetch.UserAgent = DefaultSettings().Fetch.UserAgent
	}
	if strings.TrimSpace(s.Subtitles.DefaultEncoding) == "" {
		s.Subtitles.DefaultEncoding = "windows-1252"
	}
	if s.Subtitles.MaxCharsPerSecond == 0 {
		s.Subtitles.MaxCharsPerSecond = 14.7
	}
	if s.Scoring.HashMatchScore == 0 {
		s.Scoring.HashMatchScore = 95
	}
	if s.Search.TimeoutSeconds == 0 {
		s.Search.TimeoutSeconds = 25
	}
	if strings.TrimSpace(s.Log.Level) == "" {
		s.Log.Level = "info"
	}

	return s, nil
}

// Save writes settings to disk, creating the directory when needed.
func (m *Manager) Save(s Settings) error {
	if m.path == "" {
		return errors.New("config path not set")
	}
	if err := m.EnsureDir(); err != nil {
		return err
	}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	tmp := m.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, m.path)
}
