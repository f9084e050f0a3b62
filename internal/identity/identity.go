// Package identity answers "who is signed in" for the components that tag
// remote writes with a user.
package identity

import (
	"github.com/AbdouGG/Deep-Code/internal/global"
)

type User struct {
	ID          string
	DisplayName string
}

type Source interface {
	Current() (User, bool)
}

// Static is a fixed identity. The zero value is signed out.
type Static struct {
	User User
}

func (s Static) Current() (User, bool) {
	return s.User, s.User.ID != ""
}

// ConfigSource reads the [identity] table of config.toml on every call so
// login and logout from another process are picked up.
type ConfigSource struct {
	store *global.ConfigStore
}

func NewConfigSource(store *global.ConfigStore) *ConfigSource {
	return &ConfigSource{store: store}
}

func (s *ConfigSource) Current() (User, bool) {
	if s == nil || s.store == nil {
		return User{}, false
	}
	cfg, err := s.store.LoadOrInit()
	if err != nil || cfg.Identity.UserID == "" {
		return User{}, false
	}
	return User{ID: cfg.Identity.UserID, DisplayName: cfg.Identity.DisplayName}, true
}
