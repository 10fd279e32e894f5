// File: internal/config/profile.go
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// profileSuffix marks the profile files inside the profile directory.
// One file per user, e.g. "20230001.config.json".
const profileSuffix = ".config.json"

// Profile is the resolved credential record for one user: everything the
// processing pipeline needs, supplied by this loader so the core never
// touches the filesystem itself.
type Profile struct {
	Username   string      `json:"username"`
	Password   string      `json:"password"`
	SchoolName string      `json:"school_name"`
	Address    string      `json:"address"`
	Longitude  float64     `json:"longitude"`
	Latitude   float64     `json:"latitude"`
	DeviceID   string      `json:"device_uuid,omitempty"`
	ChatID     int64       `json:"chat_id,omitempty"`
	AnswerSets []AnswerSet `json:"collections"`
}

// AnswerSet holds a user's declared answers for one form subject.
type AnswerSet struct {
	Subject string         `json:"subject"`
	Size    int            `json:"size,omitempty"`
	Fields  []AnswerRecord `json:"fields"`
}

// AnswerRecord is a single declared answer, keyed by the (title, col_name)
// pair of the server-side field it fills.
type AnswerRecord struct {
	Title   string   `json:"title"`
	ColName string   `json:"col_name"`
	Type    string   `json:"type,omitempty"`
	Values  []string `json:"answer"`
}

// Validate catches profiles that could never log in.
func (p *Profile) Validate() error {
	if p.Username == "" || p.Password == "" {
		return fmt.Errorf("profile is missing username or password")
	}
	if p.SchoolName == "" {
		return fmt.Errorf("profile %q is missing school_name", p.Username)
	}
	return nil
}

// LoadProfiles reads every *.config.json under dir. Files that fail to parse
// or validate are logged and skipped so one broken profile never blocks the
// rest of the batch.
func LoadProfiles(dir string, logger *zap.Logger) ([]Profile, error) {
	log := logger.Named("profiles")

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading profile directory %q: %w", dir, err)
	}

	var profiles []Profile
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), profileSuffix) {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		raw, err := os.ReadFile(path)
		if err != nil {
			log.Warn("Skipping unreadable profile", zap.String("path", path), zap.Error(err))
			continue
		}
		var p Profile
		if err := json.Unmarshal(raw, &p); err != nil {
			log.Warn("Skipping malformed profile", zap.String("path", path), zap.Error(err))
			continue
		}
		if err := p.Validate(); err != nil {
			log.Warn("Skipping invalid profile", zap.String("path", path), zap.Error(err))
			continue
		}
		profiles = append(profiles, p)
	}

	log.Info("Profiles loaded", zap.Int("count", len(profiles)))
	return profiles, nil
}

// WriteProfile serializes a profile to path with human-friendly indentation.
// Used by the template command to emit a ready-to-edit starting point.
func WriteProfile(path string, p *Profile) error {
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding profile: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o600); err != nil {
		return fmt.Errorf("writing profile %q: %w", path, err)
	}
	return nil
}
