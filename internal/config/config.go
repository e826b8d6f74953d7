package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

var configLogger zerolog.Logger

func SetLogger(l zerolog.Logger) {
	configLogger = l
}

// Config is the parsed form of the whole configuration file.
type Config struct {
	Version  string         `yaml:"version" default:"1"`
	Site     SiteConfig     `yaml:"site"`
	Server   ServerConfig   `yaml:"server"`
	Remote   RemoteConfig   `yaml:"remote"`
	Publish  PublishConfig  `yaml:"publish"`
	Content  ContentConfig  `yaml:"content"`
	Database DatabaseConfig `yaml:"database"`
	Theme    ThemeConfig    `yaml:"theme"`
	Features FeaturesConfig `yaml:"features"`
	Deploy   DeployConfig   `yaml:"deploy"`
	Logging  LoggingConfig  `yaml:"logging"`
}

type LoggingConfig struct {
	Level string `yaml:"level" default:"info"`

	// "console" for a terminal, "json" for log collectors.
	Format string `yaml:"format" default:"console"`
}

type SiteConfig struct {
	Name        string `yaml:"name" default:"Vellum"`
	Description string `yaml:"description" default:"A git-backed writing platform"`
	Tagline     string `yaml:"tagline" default:"Your words, versioned"`
}

type ServerConfig struct {
	Host string `yaml:"host" default:"0.0.0.0"`
	Port string `yaml:"port" default:"12700"`
}

// RemoteConfig describes the content repository behind the editor. The API
// token is never read from this file; it comes from the GIT_REMOTE_TOKEN
// environment variable.
type RemoteConfig struct {
	Provider       string `yaml:"provider" default:"github"`
	APIBase        string `yaml:"api_base" default:"https://api.github.com"`
	Owner          string `yaml:"owner" default:""`
	Repo           string `yaml:"repo" default:""`
	DefaultBranch  string `yaml:"default_branch" default:"main"`
	TimeoutSeconds int    `yaml:"timeout_seconds" default:"10"`
}

type PublishConfig struct {
	// When true, every edit is staged into the draft queue unless the
	// request says otherwise. When false, edits commit immediately.
	DeferredDefault bool `yaml:"deferred_default" default:"false"`
	BlobBatchSize   int  `yaml:"blob_batch_size" default:"8"`
}

type ContentConfig struct {
	PostsDir     string `yaml:"posts_dir" default:"posts"`
	MediaDir     string `yaml:"media_dir" default:"media"`
	SettingsPath string `yaml:"settings_path" default:"site.json"`
	CacheEntries int    `yaml:"cache_entries" default:"256"`
	PostsPerPage int    `yaml:"posts_per_page" default:"50"`
}

type DatabaseConfig struct {
	Path string `yaml:"path" default:"./vellum.db"`
}

type ThemeConfig struct {
	Default            string       `yaml:"default" default:"dark"`
	AllowSwitching     bool         `yaml:"allow_switching" default:"true"`
	SyntaxHighlighting SyntaxConfig `yaml:"syntax_highlighting"`
}

type SyntaxConfig struct {
	DefaultDark  string `yaml:"default_dark" default:"gruvbox"`
	DefaultLight string `yaml:"default_light" default:"catppuccin-latte"`
}

type FeaturesConfig struct {
	Authentication AuthConfig   `yaml:"authentication"`
	Editor         EditorConfig `yaml:"editor"`
	Deploy         FeatureFlag  `yaml:"deploy"`
}

type AuthConfig struct {
	Enabled bool   `yaml:"enabled" default:"true"`
	Type    string `yaml:"type" default:"ed25519"`
}

type EditorConfig struct {
	Enabled     bool `yaml:"enabled" default:"true"`
	LivePreview bool `yaml:"live_preview" default:"true"`
}

type FeatureFlag struct {
	Enabled bool `yaml:"enabled" default:"false"`
}

// DeployConfig configures the optional S3 mirror that receives published
// files. Credentials come from the environment (S3_ACCESS_KEY_ID and
// S3_SECRET_ACCESS_KEY).
type DeployConfig struct {
	Bucket   string `yaml:"bucket" default:""`
	Endpoint string `yaml:"endpoint" default:""`
	Prefix   string `yaml:"prefix" default:""`
}

var AppConfig *Config

// LoadConfig parses the file at path into AppConfig. Defaults are applied
// first and the file overrides them, so a partial file keeps working
// defaults everywhere it is silent. A missing file is not an error.
func LoadConfig(path string) error {
	cfg := &Config{}
	applyDefaults(cfg)

	data, err := os.ReadFile(path)
	if err != nil {
		configLogger.Info().Str("path", path).Msg("Config file not found, using defaults")
		AppConfig = cfg
		return nil
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	if cfg.Version != DefaultVersion {
		return fmt.Errorf("unsupported configuration version: %q", cfg.Version)
	}

	AppConfig = cfg
	return nil
}

// ApplyDefaults fills cfg's fields from their `default` struct tags.
func ApplyDefaults(cfg interface{}) {
	applyDefaults(cfg)
}

func applyDefaults(cfg interface{}) {
	v := reflect.ValueOf(cfg)
	if v.Kind() == reflect.Ptr {
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return
	}

	t := v.Type()
	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		if !field.IsValid() || !field.CanSet() {
			continue
		}

		if field.Kind() == reflect.Struct {
			applyDefaults(field.Addr().Interface())
			continue
		}

		if tag := t.Field(i).Tag.Get("default"); tag != "" {
			setDefault(field, t.Field(i).Name, tag)
		}
	}
}

// setDefault writes one tag value into a field. Unparseable tags leave the
// field at its zero value; slices are only filled when nothing set them
// already.
func setDefault(field reflect.Value, name, tag string) {
	switch field.Kind() {
	case reflect.String:
		field.SetString(tag)
	case reflect.Bool:
		if val, err := strconv.ParseBool(tag); err == nil {
			field.SetBool(val)
		}
	case reflect.Int:
		if val, err := strconv.ParseInt(tag, 10, 64); err == nil {
			field.SetInt(val)
		}
	case reflect.Float64:
		if val, err := strconv.ParseFloat(tag, 64); err == nil {
			field.SetFloat(val)
		}
	case reflect.Slice:
		if field.Len() > 0 || field.Type().Elem().Kind() != reflect.String {
			return
		}
		parts := strings.Split(tag, ",")
		slice := reflect.MakeSlice(field.Type(), len(parts), len(parts))
		for i, part := range parts {
			slice.Index(i).SetString(strings.TrimSpace(part))
		}
		field.Set(slice)
	default:
		configLogger.Warn().
			Str("field_name", name).
			Str("field_type", field.Kind().String()).
			Msg("Unsupported field type for default value")
	}
}
