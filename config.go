package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// Config is the effective configuration of one run, resolved from
// defaults < config file < environment < flags.
type Config struct {
	Dir         string
	Remote      bool
	Output      string
	File        string
	Clipboard   bool
	PDF         string
	Include     string
	SkipHidden  bool
	Gitignore   bool
	Interactive bool
	Threads     int

	Tokens        bool
	Tokenizer     string
	TokenizerFile string

	LogLevel  string
	LogFormat string

	APIKey          string
	Model           string
	BaseURL         string
	RemoteTimeout   time.Duration
	MaxPromptChars  int
	MaxPromptTokens int

	DocxLicenseKey string
}

// setDefaults registers the defaults that are not carried by a flag.
func setDefaults(v *viper.Viper) {
	v.SetDefault("model_name", defaultModelName)
	v.SetDefault("remote_timeout", defaultRemoteTimeout)
	v.SetDefault("max_prompt_chars", defaultMaxPromptChars)
	v.SetDefault("max_prompt_tokens", 0)
}

// initConfig reads the config file and binds environment variables.
func initConfig(v *viper.Viper, cfgFile string) {
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "docsift"))
		}
		v.AddConfigPath(".")
		v.SetConfigName("config")
		v.SetConfigType("toml")
	}

	v.SetEnvPrefix("DOCSIFT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv() // DOCSIFT_DIR, DOCSIFT_BASE_URL, DOCSIFT_REMOTE_TIMEOUT, ...

	// The DOCSIFT_ name is checked first, then the well-known names in order.
	_ = v.BindEnv("api_key", "API_KEY", "OPENAI_API_KEY")
	_ = v.BindEnv("model_name", "MODEL_NAME", "OPENAI_MODEL")
	_ = v.BindEnv("unidoc_license_key", "UNIDOC_LICENSE_API_KEY")

	if err := v.ReadInConfig(); err == nil {
		logrus.Debugf("using config file: %s", v.ConfigFileUsed())
	} else {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			logrus.Debug("no config file found, using defaults, environment and flags")
		} else {
			logrus.WithError(err).Warn("error reading config file")
		}
	}
}

// loadConfig materialises a Config from v.
func loadConfig(v *viper.Viper) (Config, error) {
	cfg := Config{
		Dir:         v.GetString("dir"),
		Remote:      v.GetBool("remote"),
		Output:      strings.ToLower(v.GetString("output")),
		File:        v.GetString("file"),
		Clipboard:   v.GetBool("clipboard"),
		PDF:         v.GetString("pdf"),
		Include:     v.GetString("include"),
		SkipHidden:  v.GetBool("skip_hidden"),
		Gitignore:   v.GetBool("gitignore"),
		Interactive: v.GetBool("interactive"),
		Threads:     v.GetInt("threads"),

		Tokens:        v.GetBool("tokens"),
		Tokenizer:     v.GetString("tokenizer"),
		TokenizerFile: v.GetString("tokenizer_file"),

		LogLevel:  v.GetString("log_level"),
		LogFormat: v.GetString("log_format"),

		APIKey:          strings.TrimSpace(v.GetString("api_key")),
		Model:           strings.TrimSpace(v.GetString("model_name")),
		BaseURL:         strings.TrimSpace(v.GetString("base_url")),
		RemoteTimeout:   v.GetDuration("remote_timeout"),
		MaxPromptChars:  v.GetInt("max_prompt_chars"),
		MaxPromptTokens: v.GetInt("max_prompt_tokens"),

		DocxLicenseKey: strings.TrimSpace(v.GetString("unidoc_license_key")),
	}

	switch cfg.Output {
	case "", FormatText, FormatJSON, FormatYAML:
	default:
		return cfg, fmt.Errorf("unsupported output format %q (use text, json or yaml)", cfg.Output)
	}
	if cfg.Dir == "" {
		return cfg, fmt.Errorf("documents directory must not be empty")
	}
	if cfg.Model == "" {
		cfg.Model = defaultModelName
	}
	return cfg, nil
}
