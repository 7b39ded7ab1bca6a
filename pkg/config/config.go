package config

import (
	"path/filepath"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/cockroachdb/errors"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes environment overrides: SVCGEN_OUTDIR, SVCGEN_GATEWAY_PORT, ...
const EnvPrefix = "SVCGEN"

// DefaultConfigName is the config file looked up in the working directory
// when no explicit path is given (svcgen.yaml, svcgen.toml, svcgen.json).
const DefaultConfigName = "svcgen"

// SupportedLanguageVersions constrains languageVersion.
const SupportedLanguageVersions = ">= 3.8.0, < 4.0.0"

// Config represents the complete configuration for service generation
type Config struct {
	OutDir          string `mapstructure:"outDir" yaml:"outDir" validate:"required"`
	Language        string `mapstructure:"language" yaml:"language" validate:"required"`
	LanguageVersion string `mapstructure:"languageVersion" yaml:"languageVersion" validate:"required"`
	// Formatter is run in every generated service directory after generation.
	// Uses Docker Compose array format: ["black", "-q", "."]. Empty disables it.
	Formatter []string `mapstructure:"formatter" yaml:"formatter"`
	// ExcludeFiles is a list of file paths (relative to outDir) that should not be generated
	// Example: ["Orders/Dockerfile", "Orders/external/"]
	ExcludeFiles []string `mapstructure:"excludeFiles" yaml:"excludeFiles"`
	// Parallelism bounds how many declarations are generated at once.
	Parallelism int `mapstructure:"parallelism" yaml:"parallelism" validate:"gte=1"`
	// SkipUnchanged leaves files with identical content untouched.
	SkipUnchanged bool    `mapstructure:"skipUnchanged" yaml:"skipUnchanged"`
	Gateway       Gateway `mapstructure:"gateway" yaml:"gateway"`
}

// Gateway holds the API gateway settings
type Gateway struct {
	// ConfigPath overrides <outDir>/<gateway>/nginx.conf, e.g. /etc/nginx/nginx.conf
	ConfigPath string `mapstructure:"configPath" yaml:"configPath"`
	// Port is used for gateways that do not declare one.
	Port    int `mapstructure:"port" yaml:"port" validate:"gte=0,lte=65535"`
	PortMin int `mapstructure:"portMin" yaml:"portMin" validate:"gte=1,lte=65535"`
	PortMax int `mapstructure:"portMax" yaml:"portMax" validate:"gtfield=PortMin,lte=65536"`
}

// SetDefaults configures default values for all configuration options
func SetDefaults(v *viper.Viper) {
	v.SetDefault("outDir", "output")
	v.SetDefault("language", "python")
	v.SetDefault("languageVersion", "3.10")
	v.SetDefault("formatter", []string{"black", "-q", "."})
	v.SetDefault("excludeFiles", []string{})
	v.SetDefault("parallelism", 1)
	v.SetDefault("skipUnchanged", true)

	v.SetDefault("gateway.configPath", "")
	v.SetDefault("gateway.port", 0)
	v.SetDefault("gateway.portMin", 8000)
	v.SetDefault("gateway.portMax", 9000)
}

// NewViper returns a Viper instance with defaults and environment overrides.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	SetDefaults(v)
	return v
}

// Default returns the configuration made of defaults and environment overrides only.
// No config file is read, not even svcgen.* in the working directory.
func Default() (*Config, error) {
	return decode(NewViper())
}

// Load loads configuration from a YAML, TOML or JSON file. An empty path looks
// for svcgen.* in the working directory and falls back to defaults.
func Load(path string) (*Config, error) {
	return LoadWithViper(NewViper(), path)
}

// LoadWithViper loads configuration using a provided Viper instance, which may
// carry flag bindings.
func LoadWithViper(v *viper.Viper, path string) (*Config, error) {
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "failed to read config file %s", path)
		}
	} else {
		v.SetConfigName(DefaultConfigName)
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, errors.Wrap(err, "failed to read config file")
			}
		}
	}
	return decode(v)
}

// decode unmarshals, validates and normalizes what v holds.
func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if !filepath.IsAbs(cfg.OutDir) {
		abs, err := filepath.Abs(cfg.OutDir)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to resolve outDir %s", cfg.OutDir)
		}
		cfg.OutDir = abs
	}
	return &cfg, nil
}

var validate = validator.New()

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return errors.WithHint(errors.Wrap(err, "invalid configuration"),
			"check svcgen.yaml and SVCGEN_* environment variables")
	}

	version, err := semver.NewVersion(c.LanguageVersion)
	if err != nil {
		return errors.Wrapf(err, "languageVersion %q is not a version", c.LanguageVersion)
	}
	constraint, err := semver.NewConstraint(SupportedLanguageVersions)
	if err != nil {
		return errors.Wrap(err, "invalid version constraint")
	}
	if !constraint.Check(version) {
		return errors.Newf("languageVersion %s is not supported (want %s)", c.LanguageVersion, SupportedLanguageVersions)
	}
	return nil
}

// ShouldExcludeFile checks if a file path should be excluded based on the ExcludeFiles list.
// relPath is relative to OutDir.
func (c *Config) ShouldExcludeFile(relPath string) bool {
	return ShouldExcludeFile(c.ExcludeFiles, relPath)
}

// ShouldExcludeFile reports whether relPath matches one of patterns, either
// exactly or by being inside a directory named by a pattern.
func ShouldExcludeFile(patterns []string, relPath string) bool {
	if len(patterns) == 0 {
		return false
	}

	// Normalize the path (use forward slashes for consistency, handle . and ..)
	relPath = filepath.ToSlash(filepath.Clean(relPath))
	if relPath == "." {
		relPath = ""
	}

	for _, excludePattern := range patterns {
		normalizedExclude := strings.TrimSuffix(filepath.ToSlash(excludePattern), "/")

		// Exact match
		if relPath == normalizedExclude {
			return true
		}

		// Check if the file is in a directory that matches the exclude pattern
		// For example, if exclude is "Orders/", then "Orders/main.py" should match
		if normalizedExclude != "" && strings.HasPrefix(relPath, normalizedExclude+"/") {
			return true
		}
	}

	return false
}
