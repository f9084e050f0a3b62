package global

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

const (
	configTOMLFileName = "config.toml"
)

// IdentityConfig is the signed-in user. An empty UserID means signed out.
type IdentityConfig struct {
	UserID      string `json:"user_id" toml:"user_id"`
	DisplayName string `json:"display_name,omitempty" toml:"display_name,omitempty"`
	SignedInAt  string `json:"signed_in_at,omitempty" toml:"signed_in_at,omitempty"`
}

type EditorConfig struct {
	// LastToken is the most recent server token, reused when tui runs without one.
	LastToken string `json:"last_token,omitempty" toml:"last_token,omitempty"`
	TabWidth  int    `json:"tab_width" toml:"tab_width"`
}

type GlobalConfig struct {
	Identity IdentityConfig `json:"identity" toml:"identity"`
	Editor   EditorConfig   `json:"editor" toml:"editor"`
}

type ConfigStore struct {
	dir string
}

func NewConfigStore(dir string) *ConfigStore {
	return &ConfigStore{dir: dir}
}

func (s *ConfigStore) Dir() string { return s.dir }

func (s *ConfigStore) LoadOrInit() (GlobalConfig, error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return GlobalConfig{}, err
	}

	path := filepath.Join(s.dir, configTOMLFileName)
	if b, err := os.ReadFile(path); err == nil {
		var cfg GlobalConfig
		if err := toml.Unmarshal(b, &cfg); err != nil {
			return GlobalConfig{}, err
		}
		return normalizeConfig(cfg), nil
	} else if !os.IsNotExist(err) {
		return GlobalConfig{}, err
	}

	cfg := normalizeConfig(GlobalConfig{})
	if err := writeTOMLAtomically(path, cfg); err != nil {
		return GlobalConfig{}, err
	}
	return cfg, nil
}

func (s *ConfigStore) Save(cfg GlobalConfig) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return err
	}
	return writeTOMLAtomically(filepath.Join(s.dir, configTOMLFileName), normalizeConfig(cfg))
}

// SignIn records userID as the current identity.
func (s *ConfigStore) SignIn(userID, displayName string, at time.Time) (GlobalConfig, error) {
	cfg, err := s.LoadOrInit()
	if err != nil {
		return GlobalConfig{}, err
	}
	cfg.Identity = IdentityConfig{
		UserID:      userID,
		DisplayName: displayName,
		SignedInAt:  at.UTC().Format(time.RFC3339),
	}
	if err := s.Save(cfg); err != nil {
		return GlobalConfig{}, err
	}
	return normalizeConfig(cfg), nil
}

func (s *ConfigStore) SignOut() error {
	cfg, err := s.LoadOrInit()
	if err != nil {
		return err
	}
	cfg.Identity = IdentityConfig{}
	return s.Save(cfg)
}

func (s *ConfigStore) RememberToken(token string) error {
	cfg, err := s.LoadOrInit()
	if err != nil {
		return err
	}
	cfg.Editor.LastToken = token
	return s.Save(cfg)
}

func normalizeConfig(cfg GlobalConfig) GlobalConfig {
	cfg.Identity.UserID = strings.TrimSpace(cfg.Identity.UserID)
	cfg.Identity.DisplayName = strings.TrimSpace(cfg.Identity.DisplayName)
	if cfg.Identity.UserID == "" {
		cfg.Identity = IdentityConfig{}
	}
	cfg.Editor.LastToken = strings.TrimSpace(cfg.Editor.LastToken)
	if cfg.Editor.TabWidth <= 0 {
		cfg.Editor.TabWidth = 2
	}
	return cfg
}

func writeTOMLAtomically(path string, v any) error {
	b, err := toml.Marshal(v)
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
