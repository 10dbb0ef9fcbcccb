package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// RemoteProfile describes one named push/pull remote: where published
// metadata and artifacts live and how the publisher is allowed to reach
// them, per §6's push-remote/pull-remote configuration surface.
type RemoteProfile struct {
	Name              string           `yaml:"name" json:"name"`
	Code              string           `yaml:"code" json:"code"`
	MetadataURL       string           `yaml:"metadata_url" json:"metadata_url"`
	ArtifactStoreURI  string           `yaml:"artifact_store_uri" json:"artifact_store_uri"`
	Networking        NetworkingConfig `yaml:"networking" json:"networking"`
	RequireConsistent bool             `yaml:"require_consistent_snapshot,omitempty" json:"require_consistent_snapshot,omitempty"`
	Retention         RetentionConfig  `yaml:"retention" json:"retention"`
}

// NetworkingConfig controls which hosts the publisher may push to / pull
// metadata from.
type NetworkingConfig struct {
	OutboundMode string   `yaml:"outbound_mode" json:"outbound_mode"` // "allowlist" | "denylist" | "island"
	Allowlist    []string `yaml:"allowlist,omitempty" json:"allowlist,omitempty"`
	Denylist     []string `yaml:"denylist,omitempty" json:"denylist,omitempty"`
	IslandMode   bool     `yaml:"island_mode" json:"island_mode"` // if true, block all outbound
}

// RetentionConfig controls how many historical root/snapshot/timestamp
// versions a remote keeps available after a publish.
type RetentionConfig struct {
	MaxVersions  int `yaml:"max_versions" json:"max_versions"`
	AuditLogDays int `yaml:"audit_log_days" json:"audit_log_days"`
}

// LoadProfile loads a named remote profile YAML by code. It searches the
// profiles directory for profile_<code>.yaml.
func LoadProfile(profilesDir, code string) (*RemoteProfile, error) {
	code = strings.ToLower(code)
	path := filepath.Join(profilesDir, fmt.Sprintf("profile_%s.yaml", code))

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load profile %q: %w", code, err)
	}

	var profile RemoteProfile
	if err := yaml.Unmarshal(data, &profile); err != nil {
		return nil, fmt.Errorf("parse profile %q: %w", code, err)
	}

	if profile.Code == "" {
		profile.Code = code
	}

	return &profile, nil
}

// LoadAllProfiles loads all profile_*.yaml files from the profiles directory.
func LoadAllProfiles(profilesDir string) (map[string]*RemoteProfile, error) {
	matches, err := filepath.Glob(filepath.Join(profilesDir, "profile_*.yaml"))
	if err != nil {
		return nil, err
	}

	profiles := make(map[string]*RemoteProfile, len(matches))
	for _, path := range matches {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}

		var profile RemoteProfile
		if err := yaml.Unmarshal(data, &profile); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}

		if profile.Code == "" {
			base := filepath.Base(path)
			profile.Code = strings.TrimSuffix(strings.TrimPrefix(base, "profile_"), ".yaml")
		}

		profiles[profile.Code] = &profile
	}

	return profiles, nil
}

// IsIslandMode returns true if the profile blocks all outbound networking,
// meaning publish must target local disk only.
func (p *RemoteProfile) IsIslandMode() bool {
	return p.Networking.IslandMode || p.Networking.OutboundMode == "island"
}

// IsAllowed checks if a hostname is allowed by the networking policy.
func (p *RemoteProfile) IsAllowed(hostname string) bool {
	if p.IsIslandMode() {
		return false
	}

	switch p.Networking.OutboundMode {
	case "allowlist":
		for _, h := range p.Networking.Allowlist {
			if h == hostname {
				return true
			}
		}
		return false
	case "denylist":
		for _, h := range p.Networking.Denylist {
			if h == hostname {
				return false
			}
		}
		return true
	default:
		return true
	}
}
