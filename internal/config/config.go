package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// CurrentVersion is the only configuration schema version accepted by Load.
const CurrentVersion = "1"

// Config represents the docsetbot configuration file.
type Config struct {
	Version    string           `yaml:"version"`
	Library    LibraryConfig    `yaml:"library"`
	Generator  GeneratorConfig  `yaml:"generator"`
	Aggregator AggregatorConfig `yaml:"aggregator"`
	Author     AuthorConfig     `yaml:"author"`
	Publisher  PublisherConfig  `yaml:"publisher"`
	GitHub     GitHubConfig     `yaml:"github"`
	Schedule   ScheduleConfig   `yaml:"schedule"`
	Storage    StorageConfig    `yaml:"storage"`
	Retry      RetryConfig      `yaml:"retry"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
	Events     EventsConfig     `yaml:"events"`
}

// LibraryConfig describes the documentation source and how its HTML docs are built.
type LibraryConfig struct {
	Name              string         `yaml:"name"`                          // Docset name (e.g. seaborn)
	Source            string         `yaml:"source"`                        // owner/repo of the documentation source
	PinFile           string         `yaml:"pin_file,omitempty"`            // Requirements-style version pin
	DocsDir           string         `yaml:"docs_dir,omitempty"`            // Where build commands run, relative to checkout
	HTMLDir           string         `yaml:"html_dir,omitempty"`            // Built HTML, relative to checkout
	BuildCommands     []BuildCommand `yaml:"build_commands,omitempty"`      // Run in order, inside DocsDir by default
	IndexPage         string         `yaml:"index_page,omitempty"`          // Passed to doc2dash --index-page
	OnlineRedirectURL string         `yaml:"online_redirect_url,omitempty"` // Passed to doc2dash --online-redirect-url
	Icon              string         `yaml:"icon,omitempty"`                // Icon source relative to HTMLDir; empty = discover
	Aliases           []string       `yaml:"aliases,omitempty"`             // docset.json aliases
}

// BuildCommand is one external step of the documentation build.
// "{checkout}" in Command and Env values expands to the absolute source checkout.
type BuildCommand struct {
	Name    string            `yaml:"name"`
	Command []string          `yaml:"command"`
	Env     map[string]string `yaml:"env,omitempty"`
	Dir     string            `yaml:"dir,omitempty"` // relative to the checkout; empty means DocsDir
}

// GeneratorConfig configures the documentation-set generator.
type GeneratorConfig struct {
	Binary    string   `yaml:"binary,omitempty"`
	ExtraArgs []string `yaml:"extra_args,omitempty"`
}

// AggregatorConfig identifies the repository that receives docset pull requests.
type AggregatorConfig struct {
	Upstream   string `yaml:"upstream,omitempty"`    // owner/repo
	DocsetsDir string `yaml:"docsets_dir,omitempty"` // Directory holding one folder per docset
}

// AuthorConfig is the docset maintainer recorded in docset.json, README and commits.
type AuthorConfig struct {
	Name  string `yaml:"name"`
	URL   string `yaml:"url,omitempty"`
	Email string `yaml:"email,omitempty"`
}

// PublisherConfig identifies the repository hosting this automation.
type PublisherConfig struct {
	Repository string `yaml:"repository,omitempty"` // owner/repo
}

// GitHubConfig holds API access settings.
type GitHubConfig struct {
	Token  string `yaml:"token,omitempty"`
	APIURL string `yaml:"api_url,omitempty"`
}

// ScheduleConfig configures daemon mode.
type ScheduleConfig struct {
	Cron string `yaml:"cron,omitempty"`
}

// StorageConfig configures persisted state and the working directory.
type StorageConfig struct {
	StateDB   string `yaml:"state_db,omitempty"`
	Workspace string `yaml:"workspace,omitempty"` // empty = ephemeral temp dir per run
}

// RetryConfig configures retries for transient network failures.
type RetryConfig struct {
	MaxRetries   int              `yaml:"max_retries"`
	InitialDelay string           `yaml:"initial_delay,omitempty"`
	MaxDelay     string           `yaml:"max_delay,omitempty"`
	Backoff      RetryBackoffMode `yaml:"backoff,omitempty"`
}

// MonitoringConfig represents monitoring and observability configuration
type MonitoringConfig struct {
	AdminAddr string            `yaml:"admin_addr,omitempty"`
	Logging   MonitoringLogging `yaml:"logging"`
}

// MonitoringLogging represents logging configuration
type MonitoringLogging struct {
	Level  LogLevel  `yaml:"level,omitempty"`
	Format LogFormat `yaml:"format,omitempty"`
}

// EventsConfig configures run event publication. An empty NATSURL disables events.
type EventsConfig struct {
	NATSURL string `yaml:"nats_url,omitempty"`
	Subject string `yaml:"subject,omitempty"`
}

// Load reads, expands, defaults and normalizes a configuration file.
// Validation is left to the caller because different commands need different fields.
func Load(configPath string) (*Config, error) {
	loadEnvFiles()

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("configuration file not found: %s", configPath)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return Parse(data)
}

// Parse decodes configuration bytes after environment expansion.
func Parse(data []byte) (*Config, error) {
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if strings.TrimSpace(cfg.Version) != CurrentVersion {
		return nil, fmt.Errorf("unsupported configuration version: %q (expected %s)", cfg.Version, CurrentVersion)
	}

	normalize(&cfg)
	applyDefaults(&cfg)
	return &cfg, nil
}

// loadEnvFiles loads .env and .env.local without overriding the process environment.
func loadEnvFiles() {
	for _, name := range []string{".env", ".env.local"} {
		if _, err := os.Stat(name); err != nil {
			continue
		}
		if err := godotenv.Load(name); err != nil {
			fmt.Fprintf(os.Stderr, "Note: could not load %s: %v\n", name, err)
		}
	}
}

func normalize(cfg *Config) {
	cfg.Retry.Backoff = NormalizeRetryBackoff(string(cfg.Retry.Backoff))
	cfg.Monitoring.Logging.Level = NormalizeLogLevel(string(cfg.Monitoring.Logging.Level))
	cfg.Monitoring.Logging.Format = NormalizeLogFormat(string(cfg.Monitoring.Logging.Format))
	cfg.Library.Name = strings.TrimSpace(cfg.Library.Name)
	cfg.Library.Source = strings.Trim(strings.TrimSpace(cfg.Library.Source), "/")
	cfg.Aggregator.Upstream = strings.Trim(strings.TrimSpace(cfg.Aggregator.Upstream), "/")
}
