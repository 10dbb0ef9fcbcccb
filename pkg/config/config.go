package config

import "os"

// Config holds the engine's environment-derived settings: where the
// repository lives on disk, where the online signing key comes from,
// and how verbose logging should be.
type Config struct {
	RepositoryDir string
	LogLevel      string
	OnlineKeyURI  string
	ArtifactsDir  string

	// OTELEnabled/OTELEndpoint configure pkg/observability; tracing and
	// RED metrics are off by default so a CLI invocation in a CI runner
	// with no collector reachable never blocks or logs export errors.
	OTELEnabled  bool
	OTELEndpoint string

	// PolicyRule is an optional CEL expression (pkg/policy) the
	// signing-status engine consults in addition to §3's invariants.
	PolicyRule string
	// EventLogDB is an optional sqlite file path (pkg/eventlog) status
	// and publish runs are recorded to.
	EventLogDB string
}

// Load loads configuration from environment variables.
func Load() *Config {
	repoDir := os.Getenv("REPOSIGN_REPO_DIR")
	if repoDir == "" {
		repoDir = "."
	}

	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "INFO"
	}

	onlineKeyURI := os.Getenv("REPOSIGN_ONLINE_KEY")

	artifactsDir := os.Getenv("REPOSIGN_ARTIFACTS_DIR")
	if artifactsDir == "" {
		artifactsDir = "artifacts"
	}

	return &Config{
		RepositoryDir: repoDir,
		LogLevel:      logLevel,
		OnlineKeyURI:  onlineKeyURI,
		ArtifactsDir:  artifactsDir,
		OTELEnabled:   os.Getenv("REPOSIGN_OTEL_ENABLED") == "true",
		OTELEndpoint:  os.Getenv("REPOSIGN_OTEL_ENDPOINT"),
		PolicyRule:    os.Getenv("REPOSIGN_POLICY_RULE"),
		EventLogDB:    os.Getenv("REPOSIGN_EVENTLOG_DB"),
	}
}
