package config

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds all application configuration.
type Config struct {
	Host         string        `json:"host"`
	Port         int           `json:"port"`
	DataDir      string        `json:"data_dir"`
	DBPath       string        `json:"db_path"`
	WriteTimeout time.Duration `json:"-"`

	// LexiconPath is an optional JSON sentiment lexicon. It is
	// reloaded when the file changes.
	LexiconPath string `json:"lexicon_path,omitempty"`
	// AgentAliases are extra role names that mark a user as an
	// agent, on top of the built-in ones.
	AgentAliases []string `json:"agent_aliases,omitempty"`
	// WatchInterval is how often the live dashboard stream
	// recomputes.
	WatchInterval time.Duration `json:"-"`
	// PageSize is the rows requested per store page.
	PageSize int `json:"page_size,omitempty"`
	// RecentLimit is the size of the latest-messages preview.
	RecentLimit int `json:"recent_limit,omitempty"`

	LogLevel       string `json:"log_level"`
	Environment    string `json:"environment"`
	MetricsEnabled bool   `json:"metrics_enabled"`
}

// envDataDir is read before the config file, since it locates
// the file.
const envDataDir = "ZAPMETRICS_DATA_DIR"

// Default returns a Config with default values.
func Default() (Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return Config{}, fmt.Errorf(
			"determining home directory: %w", err,
		)
	}
	dataDir := filepath.Join(home, ".zapmetrics")
	return Config{
		Host:           "127.0.0.1",
		Port:           8080,
		DataDir:        dataDir,
		DBPath:         filepath.Join(dataDir, "zapmetrics.db"),
		WriteTimeout:   30 * time.Second,
		WatchInterval:  30 * time.Second,
		PageSize:       1000,
		RecentLimit:    20,
		LogLevel:       "info",
		Environment:    "local",
		MetricsEnabled: true,
	}, nil
}

// Load builds a Config by layering: defaults < config file < env
// < flags. Variables from a .env file in the working directory
// are applied first without overriding the real environment.
// The provided FlagSet must already be parsed by the caller.
// Only flags that were explicitly set override the lower layers.
func Load(fs *flag.FlagSet) (Config, error) {
	cfg, err := LoadMinimal()
	if err != nil {
		return cfg, err
	}
	applyFlags(&cfg, fs)
	return cfg, nil
}

// LoadMinimal builds a Config from defaults, config file and env,
// without parsing CLI flags. Use this for subcommands that manage
// their own flag sets.
func LoadMinimal() (Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		return Config{}, err
	}
	cfg, err := Default()
	if err != nil {
		return cfg, err
	}
	if v := os.Getenv(envDataDir); v != "" {
		cfg.DataDir = v
	}
	cfg.DBPath = filepath.Join(cfg.DataDir, "zapmetrics.db")

	if err := cfg.loadFile(); err != nil {
		return cfg, fmt.Errorf("loading config file: %w", err)
	}
	if err := cfg.loadEnv(); err != nil {
		return cfg, fmt.Errorf("loading environment: %w", err)
	}
	return cfg, nil
}

func loadDotEnv(path string) error {
	err := godotenv.Load(path)
	if err == nil || errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return fmt.Errorf("loading %s: %w", path, err)
}

func (c *Config) configPath() string {
	return filepath.Join(c.DataDir, "config.json")
}

func (c *Config) loadFile() error {
	data, err := os.ReadFile(c.configPath())
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}

	var file struct {
		Host           string   `json:"host"`
		Port           int      `json:"port"`
		DBPath         string   `json:"db_path"`
		LexiconPath    string   `json:"lexicon_path"`
		AgentAliases   []string `json:"agent_aliases"`
		WatchInterval  string   `json:"watch_interval"`
		PageSize       int      `json:"page_size"`
		RecentLimit    int      `json:"recent_limit"`
		LogLevel       string   `json:"log_level"`
		Environment    string   `json:"environment"`
		MetricsEnabled *bool    `json:"metrics_enabled"`
	}
	if err := json.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("parsing config: %w", err)
	}
	if file.Host != "" {
		c.Host = file.Host
	}
	if file.Port > 0 {
		c.Port = file.Port
	}
	if file.DBPath != "" {
		c.DBPath = file.DBPath
	}
	if file.LexiconPath != "" {
		c.LexiconPath = file.LexiconPath
	}
	if len(file.AgentAliases) > 0 {
		c.AgentAliases = file.AgentAliases
	}
	if file.WatchInterval != "" {
		d, err := time.ParseDuration(file.WatchInterval)
		if err != nil {
			return fmt.Errorf("parsing watch_interval: %w", err)
		}
		c.WatchInterval = d
	}
	if file.PageSize > 0 {
		c.PageSize = file.PageSize
	}
	if file.RecentLimit > 0 {
		c.RecentLimit = file.RecentLimit
	}
	if file.LogLevel != "" {
		c.LogLevel = file.LogLevel
	}
	if file.Environment != "" {
		c.Environment = file.Environment
	}
	if file.MetricsEnabled != nil {
		c.MetricsEnabled = *file.MetricsEnabled
	}
	return nil
}

// envLayer holds the environment overrides. It is filled from
// the current config before parsing so unset variables keep the
// lower layers' values.
type envLayer struct {
	DBPath         string        `env:"ZAPMETRICS_DB_PATH"`
	Host           string        `env:"ZAPMETRICS_HOST"`
	Port           int           `env:"ZAPMETRICS_PORT"`
	LexiconPath    string        `env:"ZAPMETRICS_LEXICON"`
	AgentAliases   []string      `env:"ZAPMETRICS_AGENT_ALIASES" envSeparator:","`
	WatchInterval  time.Duration `env:"ZAPMETRICS_WATCH_INTERVAL"`
	MetricsEnabled bool          `env:"ZAPMETRICS_METRICS"`
	LogLevel       string        `env:"LOG_LEVEL"`
	Environment    string        `env:"ENVIRONMENT"`
}

func (c *Config) loadEnv() error {
	layer := envLayer{
		DBPath:         c.DBPath,
		Host:           c.Host,
		Port:           c.Port,
		LexiconPath:    c.LexiconPath,
		AgentAliases:   c.AgentAliases,
		WatchInterval:  c.WatchInterval,
		MetricsEnabled: c.MetricsEnabled,
		LogLevel:       c.LogLevel,
		Environment:    c.Environment,
	}
	if err := env.Parse(&layer); err != nil {
		return err
	}
	c.DBPath = layer.DBPath
	c.Host = layer.Host
	c.Port = layer.Port
	c.LexiconPath = layer.LexiconPath
	c.AgentAliases = trimList(layer.AgentAliases)
	c.WatchInterval = layer.WatchInterval
	c.MetricsEnabled = layer.MetricsEnabled
	c.LogLevel = layer.LogLevel
	c.Environment = layer.Environment
	return nil
}

func trimList(in []string) []string {
	var out []string
	for _, part := range in {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// RegisterServeFlags registers serve-command flags on fs.
// The caller must call fs.Parse before passing fs to Load.
func RegisterServeFlags(fs *flag.FlagSet) {
	fs.String("host", "127.0.0.1", "Host to bind to")
	fs.Int("port", 8080, "Port to listen on")
	fs.String("db", "", "Path to the SQLite database")
	fs.String("lexicon", "", "Path to a JSON sentiment lexicon")
	fs.String("log-level", "info", "Log level: debug, info, warn, error")
	fs.Bool("no-metrics", false, "Disable the /metrics endpoint")
}

// applyFlags copies explicitly-set flags from fs into cfg.
func applyFlags(cfg *Config, fs *flag.FlagSet) {
	if fs == nil {
		return
	}
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "host":
			cfg.Host = f.Value.String()
		case "port":
			// flag already validated the int; ignore parse error
			cfg.Port, _ = strconv.Atoi(f.Value.String())
		case "db":
			cfg.DBPath = f.Value.String()
		case "lexicon":
			cfg.LexiconPath = f.Value.String()
		case "log-level":
			cfg.LogLevel = f.Value.String()
		case "no-metrics":
			cfg.MetricsEnabled = f.Value.String() != "true"
		}
	})
}

// SaveLexiconPath persists the lexicon path to the config file,
// keeping any other keys already there.
func (c *Config) SaveLexiconPath(path string) error {
	if err := os.MkdirAll(c.DataDir, 0o700); err != nil {
		return fmt.Errorf("creating data dir: %w", err)
	}

	existing := make(map[string]any)
	data, err := os.ReadFile(c.configPath())
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("reading config file: %w", err)
	}
	if err == nil {
		if err := json.Unmarshal(data, &existing); err != nil {
			return fmt.Errorf(
				"existing config is invalid, cannot update: %w",
				err,
			)
		}
	}

	existing["lexicon_path"] = path
	out, err := json.MarshalIndent(existing, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if err := os.WriteFile(c.configPath(), out, 0o600); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	c.LexiconPath = path
	return nil
}
