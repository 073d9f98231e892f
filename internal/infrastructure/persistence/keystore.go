package persistence

import (
	"errors"
	"os"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/willckim/Rift-Architect/internal/infrastructure/persistence/models"
)

// Well-known keystore keys.
const (
	KeyRiotAPIKey      = "riot_api_key"
	KeyRegion          = "riot_region"
	KeyRouting         = "riot_routing"
	KeyMetaPatchMarker = "meta_patch_marker"
)

// Keystore persists daemon settings: the cloud API key, region strings,
// per-advisor enable flags and the cached meta-patch marker.
// Reads follow the precedence environment → store.
type Keystore struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewKeystore creates a keystore over the settings table.
func NewKeystore(db *gorm.DB, logger *zap.Logger) *Keystore {
	return &Keystore{
		db:     db,
		logger: logger.With(zap.String("component", "keystore")),
	}
}

// Get returns the value for key, preferring the matching environment
// variable (key upper-cased) over the stored row. Returns "" when unset.
func (s *Keystore) Get(key string) string {
	if env := os.Getenv(strings.ToUpper(key)); env != "" {
		return env
	}

	var row models.SettingModel
	err := s.db.First(&row, "key = ?", key).Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			s.logger.Warn("Keystore read failed", zap.String("key", key), zap.Error(err))
		}
		return ""
	}
	return row.Value
}

// Set writes or replaces the value for key.
func (s *Keystore) Set(key, value string) error {
	row := models.SettingModel{Key: key, Value: value}
	return s.db.Save(&row).Error
}

// APIKey returns the cloud API key ("" when not configured).
func (s *Keystore) APIKey() string {
	return s.Get(KeyRiotAPIKey)
}

// SetAPIKey stores a rotated cloud API key.
func (s *Keystore) SetAPIKey(key string) error {
	return s.Set(KeyRiotAPIKey, key)
}

// Region returns the stored platform region, or fallback when unset.
func (s *Keystore) Region(fallback string) string {
	if v := s.Get(KeyRegion); v != "" {
		return v
	}
	return fallback
}

// Routing returns the stored regional routing host, or fallback when unset.
func (s *Keystore) Routing(fallback string) string {
	if v := s.Get(KeyRouting); v != "" {
		return v
	}
	return fallback
}

// AdvisorEnabled reports whether the named advisor is enabled.
// Advisors default to enabled; only an explicit "false" disables one.
func (s *Keystore) AdvisorEnabled(name string) bool {
	return s.Get(advisorFlagKey(name)) != "false"
}

// SetAdvisorEnabled persists the per-advisor enable flag.
func (s *Keystore) SetAdvisorEnabled(name string, enabled bool) error {
	value := "true"
	if !enabled {
		value = "false"
	}
	return s.Set(advisorFlagKey(name), value)
}

// MetaPatchMarker returns the cached last-seen meta patch.
func (s *Keystore) MetaPatchMarker() string {
	return s.Get(KeyMetaPatchMarker)
}

// SetMetaPatchMarker caches the last-seen meta patch.
func (s *Keystore) SetMetaPatchMarker(patch string) error {
	return s.Set(KeyMetaPatchMarker, patch)
}

func advisorFlagKey(name string) string {
	return "agent_" + name + "_enabled"
}
