// Package config loads the server's startup configuration.
//
// Values come from, in increasing priority: built-in defaults, an optional
// marking.yaml (in the working directory or ./config, or an explicit path),
// and MARKING_* environment variables. Keys use snake_case in the file and
// upper case in the environment, e.g. min_confidence / MARKING_MIN_CONFIDENCE.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/ironsheep/ic-marking-mcp/internal/ocr"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "MARKING"

// Pool size limits enforced by Validate.
const (
	MinWorkerPoolSize = 1
	MaxWorkerPoolSize = 16
)

// Config holds every startup setting.
type Config struct {
	PrimaryEngine  string   `mapstructure:"primary_engine"`
	FallbackEngine string   `mapstructure:"fallback_engine"`
	Languages      []string `mapstructure:"languages"`

	WorkerPoolSize int `mapstructure:"worker_pool_size"`

	EasyOCRURL     string        `mapstructure:"easyocr_url"`
	EasyOCRTimeout time.Duration `mapstructure:"easyocr_timeout"`

	TessdataPrefix     string `mapstructure:"tessdata_prefix"`
	TesseractPSM       int    `mapstructure:"tesseract_psm"`
	TesseractWhitelist string `mapstructure:"tesseract_whitelist"`

	MinConfidence float64 `mapstructure:"min_confidence"`
	TargetWidth   int     `mapstructure:"target_width"`
	TargetHeight  int     `mapstructure:"target_height"`

	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`

	// Primary and Fallback are PrimaryEngine and FallbackEngine parsed by
	// Load. Fallback is empty when disabled.
	Primary  ocr.EngineKind `mapstructure:"-"`
	Fallback ocr.EngineKind `mapstructure:"-"`

	// File is the configuration file that was read, if any.
	File string `mapstructure:"-"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("primary_engine", string(ocr.EasyOCR))
	v.SetDefault("fallback_engine", string(ocr.Tesseract))
	v.SetDefault("languages", []string{"en"})
	v.SetDefault("worker_pool_size", 2)
	v.SetDefault("easyocr_url", "http://127.0.0.1:8765")
	v.SetDefault("easyocr_timeout", 30*time.Second)
	v.SetDefault("tessdata_prefix", "")
	v.SetDefault("tesseract_psm", ocr.DefaultTesseractPSM)
	v.SetDefault("tesseract_whitelist", ocr.DefaultTesseractWhitelist)
	v.SetDefault("min_confidence", 0.1)
	v.SetDefault("target_width", 1024)
	v.SetDefault("target_height", 768)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")
}

// Load reads the configuration. With an empty path, marking.yaml is looked
// up in "." and "./config" and may be absent; a non-empty path must exist.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("marking")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	cfg.File = v.ConfigFileUsed()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks ranges and parses the engine names into Primary and
// Fallback. A fallback of "", "none" or the primary itself disables it.
func (c *Config) Validate() error {
	primary, err := ocr.ParseEngineKind(c.PrimaryEngine)
	if err != nil {
		return fmt.Errorf("primary_engine: %w", err)
	}
	c.Primary = primary

	c.Fallback = ""
	switch fb := strings.ToLower(strings.TrimSpace(c.FallbackEngine)); fb {
	case "", "none":
	default:
		fallback, err := ocr.ParseEngineKind(fb)
		if err != nil {
			return fmt.Errorf("fallback_engine: %w", err)
		}
		if fallback != primary {
			c.Fallback = fallback
		}
	}

	c.Languages = cleanLanguages(c.Languages)
	if len(c.Languages) == 0 {
		return errors.New("languages: at least one language is required")
	}

	if c.WorkerPoolSize < MinWorkerPoolSize || c.WorkerPoolSize > MaxWorkerPoolSize {
		return fmt.Errorf("worker_pool_size: %d out of range %d-%d", c.WorkerPoolSize, MinWorkerPoolSize, MaxWorkerPoolSize)
	}
	if c.MinConfidence < 0 || c.MinConfidence > 1 {
		return fmt.Errorf("min_confidence: %v out of range 0-1", c.MinConfidence)
	}
	if c.TargetWidth <= 0 || c.TargetHeight <= 0 {
		return fmt.Errorf("target size: %dx%d must be positive", c.TargetWidth, c.TargetHeight)
	}
	if c.TesseractPSM < 0 || c.TesseractPSM > 13 {
		return fmt.Errorf("tesseract_psm: %d out of range 0-13", c.TesseractPSM)
	}
	if c.EasyOCRTimeout <= 0 {
		return fmt.Errorf("easyocr_timeout: %v must be positive", c.EasyOCRTimeout)
	}
	return nil
}

// Engines returns the engines to start: the primary, then the fallback.
func (c *Config) Engines() []ocr.EngineKind {
	if c.Fallback == "" {
		return []ocr.EngineKind{c.Primary}
	}
	return []ocr.EngineKind{c.Primary, c.Fallback}
}

// cleanLanguages splits comma-separated entries, trims and lower-cases them
// and drops blanks.
func cleanLanguages(in []string) []string {
	out := make([]string, 0, len(in))
	for _, entry := range in {
		for _, lang := range strings.Split(entry, ",") {
			if lang = strings.ToLower(strings.TrimSpace(lang)); lang != "" {
				out = append(out, lang)
			}
		}
	}
	return out
}
