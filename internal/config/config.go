package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/joho/godotenv/autoload"
	"github.com/spf13/viper"
)

const (
	DefaultModelName    = "gemini-2.5-flash"
	DefaultProfile      = "local"
	DefaultHistoryLimit = 20

	appDirName = "consejero"
	envPrefix  = "CONSEJERO"
)

var (
	ErrMissingGeminiKey  = errors.New("GEMINI_API_STUDIO_KEY not set")
	ErrMissingDiscordKey = errors.New("DISCORD_BOT_TOKEN not set")
)

type Config struct {
	GeminiAPIKey        string
	GeminiModelName     string
	ExtractionModelName string
	DiscordBotToken     string
	// GeminiBaseURL overrides the API endpoint; empty uses Google's.
	GeminiBaseURL       string

	DataDir       string
	Profile       string
	HistoryLimit  int
	MemoryEnabled bool

	Log LogConfig
}

type LogConfig struct {
	Debug bool
	JSON  bool
	File  string
}

// NewViper returns a viper instance with defaults registered, the optional
// config.toml from configDir read in, and environment bindings set.
//
// Precedence (highest first): bound flags, CONSEJERO_* env vars, the legacy
// GEMINI_* / DISCORD_* env vars, config.toml, defaults.
//
// The data dir is resolved before anything is read: configDir (the
// --data-dir flag) wins over CONSEJERO_DATA_DIR, which wins over the platform
// default. An explicit dir pins data_dir, so config.toml and the data files
// always live side by side.
func NewViper(configDir string) (*viper.Viper, error) {
	if configDir == "" {
		configDir = strings.TrimSpace(os.Getenv(envPrefix + "_DATA_DIR"))
	}
	explicit := configDir != ""
	if !explicit {
		dir, err := DefaultDataDir()
		if err != nil {
			return nil, err
		}
		configDir = dir
	}

	v := viper.New()
	v.SetDefault("gemini.model", DefaultModelName)
	v.SetDefault("gemini.extraction_model", "")
	v.SetDefault("gemini.base_url", "")
	v.SetDefault("data_dir", configDir)
	v.SetDefault("profile", DefaultProfile)
	v.SetDefault("history_limit", DefaultHistoryLimit)
	v.SetDefault("memory.enabled", true)
	v.SetDefault("log.debug", false)
	v.SetDefault("log.json", false)
	v.SetDefault("log.file", "")

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(configDir)
	if err := v.ReadInConfig(); err != nil {
		if !errors.As(err, &viper.ConfigFileNotFoundError{}) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if explicit {
		v.Set("data_dir", configDir)
	}

	// names the bot has always used
	bindings := map[string][]string{
		"gemini.api_key": {"GEMINI_API_STUDIO_KEY", "GEMINI_API_KEY"},
		"gemini.model":   {"GEMINI_MODEL_NAME"},
		"discord.token":  {"DISCORD_BOT_TOKEN"},
	}
	for key, names := range bindings {
		envs := append([]string{envPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))}, names...)
		if err := v.BindEnv(append([]string{key}, envs...)...); err != nil {
			return nil, fmt.Errorf("binding %s: %w", key, err)
		}
	}

	return v, nil
}

// Load reads the resolved settings out of v. Credentials are not required
// here; commands that need them call RequireGemini or RequireDiscord.
func Load(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		GeminiAPIKey:        strings.TrimSpace(v.GetString("gemini.api_key")),
		GeminiModelName:     strings.TrimSpace(v.GetString("gemini.model")),
		ExtractionModelName: strings.TrimSpace(v.GetString("gemini.extraction_model")),
		DiscordBotToken:     strings.TrimSpace(v.GetString("discord.token")),
		GeminiBaseURL:       strings.TrimSpace(v.GetString("gemini.base_url")),
		DataDir:             v.GetString("data_dir"),
		Profile:             strings.TrimSpace(v.GetString("profile")),
		HistoryLimit:        v.GetInt("history_limit"),
		MemoryEnabled:       v.GetBool("memory.enabled"),
		Log: LogConfig{
			Debug: v.GetBool("log.debug"),
			JSON:  v.GetBool("log.json"),
			File:  v.GetString("log.file"),
		},
	}

	if cfg.GeminiModelName == "" {
		cfg.GeminiModelName = DefaultModelName
	}
	if cfg.ExtractionModelName == "" {
		cfg.ExtractionModelName = cfg.GeminiModelName
	}
	if cfg.Profile == "" {
		cfg.Profile = DefaultProfile
	}
	if cfg.HistoryLimit < 0 {
		return nil, fmt.Errorf("history_limit must not be negative, got %d", cfg.HistoryLimit)
	}
	if cfg.DataDir == "" {
		return nil, fmt.Errorf("data_dir must be set")
	}

	return cfg, nil
}

func (c *Config) RequireGemini() error {
	if c.GeminiAPIKey == "" {
		return ErrMissingGeminiKey
	}
	return nil
}

func (c *Config) RequireDiscord() error {
	if err := c.RequireGemini(); err != nil {
		return err
	}
	if c.DiscordBotToken == "" {
		return ErrMissingDiscordKey
	}
	return nil
}

// MemoryPath is where the per-profile memory blob lives.
func (c *Config) MemoryPath() string {
	return filepath.Join(c.DataDir, "memory.json")
}

func (c *Config) LogFilePath() string {
	if c.Log.File != "" {
		return c.Log.File
	}
	return filepath.Join(c.DataDir, "consejero.log")
}

// DefaultDataDir resolves $XDG_CONFIG_HOME/consejero (or the platform
// equivalent), falling back to the working directory.
func DefaultDataDir() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		wd, wdErr := os.Getwd()
		if wdErr != nil {
			return "", fmt.Errorf("resolving data dir: %w", errors.Join(err, wdErr))
		}
		return filepath.Join(wd, "."+appDirName), nil
	}
	return filepath.Join(base, appDirName), nil
}
