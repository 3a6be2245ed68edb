package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"social-scraper/pkg/models"
)

// EnvPrefix prefixes environment overrides, e.g. SS_SCRAPE_MAX_ITEMS
const EnvPrefix = "SS"

// Manager manages application configuration
type Manager struct {
	config     *models.Config
	viper      *viper.Viper
	configFile string
	logger     zerolog.Logger
	logOut     io.Closer
}

// NewManager creates a new configuration manager
func NewManager() *Manager {
	return &Manager{
		config: &models.Config{},
		viper:  viper.New(),
		logger: zerolog.New(os.Stdout).With().Timestamp().Logger(),
	}
}

// Load loads configuration from file and environment. configPath may be a
// directory holding config.yaml or the path of a YAML file; when empty the
// default locations are searched.
func (m *Manager) Load(configPath string) (*models.Config, error) {
	// Set default values
	m.setDefaults()

	// .env values never override the real environment
	m.loadDotEnv(configPath)

	// Configure viper
	configDir := configPath
	if ext := strings.ToLower(filepath.Ext(configPath)); ext == ".yaml" || ext == ".yml" {
		m.viper.SetConfigFile(configPath)
		configDir = filepath.Dir(configPath)
	} else {
		m.viper.SetConfigName("config")
		m.viper.SetConfigType("yaml")

		if configPath != "" {
			m.viper.AddConfigPath(configPath)
		} else {
			// Default config paths
			m.viper.AddConfigPath(".")
			m.viper.AddConfigPath("./config")
			m.viper.AddConfigPath("$HOME/.social-scraper")
			m.viper.AddConfigPath("/etc/social-scraper")
			configDir = "./config"
		}
	}

	// Enable environment variable support
	m.viper.SetEnvPrefix(EnvPrefix)
	m.viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	m.viper.AutomaticEnv()

	// Read configuration
	if err := m.viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found, create default
		if err := m.createDefaultConfig(configDir); err != nil {
			m.logger.Warn().Msgf("Failed to create default config: %v", err)
		} else {
			m.configFile = filepath.Join(configDir, "config.yaml")
		}
	} else {
		m.configFile = m.viper.ConfigFileUsed()
	}

	// Unmarshal configuration
	if err := m.viper.Unmarshal(m.config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := Validate(m.config); err != nil {
		return nil, err
	}

	// Ensure directories exist
	if err := m.ensureDirectories(); err != nil {
		return nil, fmt.Errorf("error ensuring directories: %w", err)
	}

	// Configure logger
	m.configureLogger()

	return m.config, nil
}

func (m *Manager) loadDotEnv(configPath string) {
	candidates := []string{".env"}
	if configPath != "" {
		dir := configPath
		if filepath.Ext(configPath) != "" {
			dir = filepath.Dir(configPath)
		}
		candidates = append(candidates, filepath.Join(dir, ".env"))
	}

	for _, file := range candidates {
		if _, err := os.Stat(file); err != nil {
			continue
		}
		if err := godotenv.Load(file); err != nil {
			m.logger.Warn().Err(err).Str("file", file).Msg("Failed to load env file")
		}
	}
}

// ConfigFile returns the file the configuration was read from or created
// at, if any
func (m *Manager) ConfigFile() string {
	return m.configFile
}

// Save writes the effective configuration back to ConfigFile
func (m *Manager) Save() error {
	if m.configFile == "" {
		return fmt.Errorf("no configuration file to save to")
	}
	if err := m.viper.WriteConfigAs(m.configFile); err != nil {
		return fmt.Errorf("error saving config: %w", err)
	}

	return nil
}

// UpdateConfig sets known keys such as "scrape.max_items". Nothing changes
// when a key is unknown or the result does not validate.
func (m *Manager) UpdateConfig(updates map[string]interface{}) error {
	previous := make(map[string]interface{}, len(updates))
	for key := range updates {
		if !m.viper.IsSet(key) {
			return fmt.Errorf("unknown setting %q", key)
		}
		previous[key] = m.viper.Get(key)
	}

	for key, value := range updates {
		m.viper.Set(key, value)
	}

	updated := &models.Config{}
	err := m.viper.Unmarshal(updated)
	if err == nil {
		err = Validate(updated)
	}
	if err != nil {
		for key, value := range previous {
			m.viper.Set(key, value)
		}
		return err
	}

	*m.config = *updated
	return nil
}

// setDefaults sets default configuration values
func (m *Manager) setDefaults() {
	// Server defaults
	m.viper.SetDefault("server.host", "0.0.0.0")
	m.viper.SetDefault("server.port", 8080)
	m.viper.SetDefault("server.read_timeout", 30)
	m.viper.SetDefault("server.write_timeout", 300)

	// Renderer defaults
	m.viper.SetDefault("renderer.engine", "chrome")
	m.viper.SetDefault("renderer.timeout", 30)
	m.viper.SetDefault("renderer.settle_delay_ms", 3000)
	m.viper.SetDefault("renderer.retries", 3)
	m.viper.SetDefault("renderer.retry_delay", 2)
	m.viper.SetDefault("renderer.requests_per_second", 1.0)
	m.viper.SetDefault("renderer.user_agent", "")
	m.viper.SetDefault("renderer.headless", true)
	m.viper.SetDefault("renderer.exec_path", "")
	m.viper.SetDefault("renderer.scroll", true)

	// Scrape defaults
	m.viper.SetDefault("scrape.max_items", 10)
	m.viper.SetDefault("scrape.placeholder", "N/A")

	// Export defaults
	m.viper.SetDefault("export.format", "csv")
	m.viper.SetDefault("export.dir", "./exports")
	m.viper.SetDefault("export.with_extra", false)

	// Database defaults
	m.viper.SetDefault("database.type", "sqlite")
	m.viper.SetDefault("database.path", "./data/social-scraper.db")
	m.viper.SetDefault("database.enabled", true)

	// Log defaults
	m.viper.SetDefault("log.level", "info")
	m.viper.SetDefault("log.format", "text")
	m.viper.SetDefault("log.output", "stdout")

	// Proxy defaults
	m.viper.SetDefault("proxy.enabled", false)
	m.viper.SetDefault("proxy.type", "http")
	m.viper.SetDefault("proxy.host", "")
	m.viper.SetDefault("proxy.port", 0)
	m.viper.SetDefault("proxy.username", "")
	m.viper.SetDefault("proxy.password", "")

	// Auth defaults
	m.viper.SetDefault("auth.enabled", false)
	m.viper.SetDefault("auth.jwt_secret", "change-this-secret-in-production")
	m.viper.SetDefault("auth.token_expiry", 24)
	m.viper.SetDefault("auth.admin_password", "")

	// Rate limit defaults
	m.viper.SetDefault("rate_limit.enabled", true)
	m.viper.SetDefault("rate_limit.requests_per_second", 5)
	m.viper.SetDefault("rate_limit.burst", 10)
	m.viper.SetDefault("rate_limit.max_concurrent", 32)
	m.viper.SetDefault("rate_limit.whitelisted_ips", []string{"127.0.0.1", "::1"})
}

// DefaultYAML is the configuration file written on first run
const DefaultYAML = `# Social Scraper Configuration

server:
  host: 0.0.0.0
  port: 8080
  read_timeout: 30
  write_timeout: 300

renderer:
  engine: chrome          # chrome or http
  timeout: 30             # seconds per page load
  settle_delay_ms: 3000   # wait for client-side rendering
  retries: 3
  retry_delay: 2          # seconds, doubled after each attempt
  requests_per_second: 1
  user_agent: ""
  headless: true
  exec_path: ""
  scroll: true

scrape:
  max_items: 10           # posts loaded per profile, 0 for the profile row only
  placeholder: "N/A"

export:
  format: csv             # csv, xlsx, json or txt
  dir: ./exports
  with_extra: false

database:
  type: sqlite
  path: ./data/social-scraper.db
  enabled: true

log:
  level: info
  format: text
  output: stdout

proxy:
  enabled: false
  type: http
  host: ""
  port: 0
  username: ""
  password: ""

auth:
  enabled: false
  jwt_secret: "change-this-secret-in-production"
  token_expiry: 24
  admin_password: ""

rate_limit:
  enabled: true
  requests_per_second: 5
  burst: 10
  max_concurrent: 32
  whitelisted_ips:
    - "127.0.0.1"
    - "::1"
`

// WriteDefault writes DefaultYAML to path unless a file already exists there
func WriteDefault(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config file already exists: %s", path)
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(DefaultYAML), 0644); err != nil {
		return fmt.Errorf("error writing default config: %w", err)
	}
	return nil
}

// createDefaultConfig creates a default configuration file
func (m *Manager) createDefaultConfig(configDir string) error {
	configFile := filepath.Join(configDir, "config.yaml")
	if err := WriteDefault(configFile, false); err != nil {
		return err
	}

	m.logger.Info().Msgf("Created default config file at: %s", configFile)
	return nil
}

// Validate checks values that would otherwise fail deep inside a run
func Validate(cfg *models.Config) error {
	switch cfg.Renderer.Engine {
	case "chrome", "http":
	default:
		return fmt.Errorf("invalid renderer.engine %q: want chrome or http", cfg.Renderer.Engine)
	}
	switch strings.ToLower(cfg.Export.Format) {
	case "csv", "xlsx", "json", "txt":
	default:
		return fmt.Errorf("invalid export.format %q", cfg.Export.Format)
	}
	if cfg.Scrape.MaxItems < 0 {
		return fmt.Errorf("scrape.max_items cannot be negative")
	}
	if cfg.Renderer.Timeout <= 0 {
		return fmt.Errorf("renderer.timeout must be positive")
	}
	if cfg.Auth.Enabled && cfg.Auth.AdminPassword == "" {
		return fmt.Errorf("auth.admin_password is required when auth is enabled")
	}
	return nil
}

// ensureDirectories ensures all required directories exist
func (m *Manager) ensureDirectories() error {
	dirs := []string{m.config.Export.Dir}
	if m.config.Database.Enabled {
		dirs = append(dirs, filepath.Dir(m.config.Database.Path))
	}
	if out := m.config.Log.Output; out != "stdout" && out != "stderr" && out != "" {
		dirs = append(dirs, filepath.Dir(out))
	}

	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("error creating directory %s: %w", dir, err)
		}
	}

	return nil
}

// configureLogger configures the logger based on settings
func (m *Manager) configureLogger() {
	// Set log level
	level, err := zerolog.ParseLevel(m.config.Log.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	// Set log output
	var out io.Writer = os.Stdout
	switch m.config.Log.Output {
	case "stdout", "":
	case "stderr":
		out = os.Stderr
	default:
		file, err := os.OpenFile(m.config.Log.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
		if err != nil {
			m.logger.Warn().Err(err).Msg("Failed to open log file, logging to stdout")
		} else {
			out = file
			m.logOut = file
		}
	}

	// Set log format
	if m.config.Log.Format != "json" {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: "15:04:05", NoColor: m.logOut != nil}
	}

	m.logger = zerolog.New(out).With().Timestamp().Logger()
}

// GetLogger returns the logger instance
func (m *Manager) GetLogger() zerolog.Logger {
	return m.logger
}

// Close releases the log file, if one was opened
func (m *Manager) Close() error {
	if m.logOut == nil {
		return nil
	}
	return m.logOut.Close()
}
