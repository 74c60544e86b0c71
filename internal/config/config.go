// Package config loads doxstrux settings through Viper from a YAML file,
// DOXSTRUX_ environment variables and command-line flags.
//
// Every key has a registered default, so environment overrides work for the
// whole tree (DOXSTRUX_WAREHOUSE_MAX_LINKS_PER_DOC, DOXSTRUX_FETCH_WORKERS,
// ...). The loaded struct is checked with validator tags and a handful of
// cross-field rules before any component sees it. Nothing here is global:
// the warehouse, fetcher and audit gate are each built from a *Config.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/poutila/doxstrux/internal/audit"
	"github.com/poutila/doxstrux/internal/errors"
	"github.com/poutila/doxstrux/internal/fetch"
	"github.com/poutila/doxstrux/internal/performance"
	"github.com/poutila/doxstrux/internal/warehouse"
	"github.com/spf13/viper"
)

const (
	// EnvPrefix prefixes every environment override.
	EnvPrefix = "DOXSTRUX"
	// FileEnv names an explicit config file.
	FileEnv = "DOXSTRUX_CONFIG_FILE"
	// FileName is looked up in the working directory when no file is given.
	FileName = ".doxstrux"
)

type Config struct {
	Warehouse warehouse.Config `mapstructure:"warehouse" yaml:"warehouse"`
	Fetch     fetch.Config     `mapstructure:"fetch" yaml:"fetch"`
	Audit     AuditConfig      `mapstructure:"audit" yaml:"audit"`
	Log       LogConfig        `mapstructure:"log" yaml:"log"`
	Output    OutputConfig     `mapstructure:"output" yaml:"output"`
}

type AuditConfig struct {
	BaselinePath   string             `mapstructure:"baseline_path" yaml:"baseline_path" validate:"required"`
	TrustedKeys    []audit.TrustedKey `mapstructure:"trusted_keys" yaml:"trusted_keys" validate:"dive"`
	MaxBaselineAge time.Duration      `mapstructure:"max_baseline_age" yaml:"max_baseline_age" validate:"gt=0"`

	Roots        []string `mapstructure:"roots" yaml:"roots" validate:"min=1,dive,required"`
	Exclude      []string `mapstructure:"exclude" yaml:"exclude"`
	RegistryPath string   `mapstructure:"registry_path" yaml:"registry_path" validate:"required"`
	GoModPath    string   `mapstructure:"go_mod_path" yaml:"go_mod_path"`

	RequiredChecks   []string               `mapstructure:"required_checks" yaml:"required_checks" validate:"min=1,dive,required"`
	BranchProtection BranchProtectionConfig `mapstructure:"branch_protection" yaml:"branch_protection"`

	Regression performance.RegressionThresholds `mapstructure:"regression" yaml:"regression"`
}

// BranchProtectionConfig selects where required status checks are read from.
type BranchProtectionConfig struct {
	Source   string `mapstructure:"source" yaml:"source" validate:"oneof=github file"`
	File     string `mapstructure:"file" yaml:"file" validate:"required_if=Source file"`
	Owner    string `mapstructure:"owner" yaml:"owner" validate:"required_if=Source github"`
	Repo     string `mapstructure:"repo" yaml:"repo" validate:"required_if=Source github"`
	Branch   string `mapstructure:"branch" yaml:"branch" validate:"required"`
	TokenEnv string `mapstructure:"token_env" yaml:"token_env" validate:"required_if=Source github"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level" validate:"oneof=debug info warn warning error"`
	Format string `mapstructure:"format" yaml:"format" validate:"oneof=text json"`
}

type OutputConfig struct {
	Format string `mapstructure:"format" yaml:"format" validate:"oneof=json yaml"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Warehouse: warehouse.DefaultConfig(),
		Fetch:     fetch.DefaultConfig(),
		Audit: AuditConfig{
			BaselinePath:   ".doxstrux/baseline.json",
			MaxBaselineAge: 30 * 24 * time.Hour,
			Roots:          []string{"."},
			Exclude:        []string{"internal/audit/...", "*_test.go", "_examples/...", "testdata/..."},
			RegistryPath:   "consumers.toml",
			GoModPath:      "go.mod",
			RequiredChecks: []string{"doxstrux-audit"},
			BranchProtection: BranchProtectionConfig{
				Source:   "file",
				File:     ".github/branch-protection.yml",
				Branch:   "main",
				TokenEnv: "GITHUB_TOKEN",
			},
			Regression: performance.DefaultThresholds(),
		},
		Log:    LogConfig{Level: "info", Format: "text"},
		Output: OutputConfig{Format: "json"},
	}
}

// SetDefaults registers every default key on v so env overrides apply.
func SetDefaults(v *viper.Viper) {
	d := Default()

	w := d.Warehouse
	v.SetDefault("warehouse.max_links_per_doc", w.MaxLinksPerDoc)
	v.SetDefault("warehouse.max_images_per_doc", w.MaxImagesPerDoc)
	v.SetDefault("warehouse.max_headings_per_doc", w.MaxHeadingsPerDoc)
	v.SetDefault("warehouse.max_code_blocks", w.MaxCodeBlocks)
	v.SetDefault("warehouse.max_code_block_bytes", w.MaxCodeBlockBytes)
	v.SetDefault("warehouse.max_tables_per_doc", w.MaxTablesPerDoc)
	v.SetDefault("warehouse.max_table_rows", w.MaxTableRows)
	v.SetDefault("warehouse.max_list_items_per_doc", w.MaxListItemsPerDoc)
	v.SetDefault("warehouse.max_html_fragments", w.MaxHTMLFragments)
	v.SetDefault("warehouse.max_line_number", w.MaxLineNumber)
	v.SetDefault("warehouse.max_nesting_depth", w.MaxNestingDepth)
	v.SetDefault("warehouse.collector_timeout", w.CollectorTimeout)
	v.SetDefault("warehouse.timeout_mode", w.TimeoutMode)
	v.SetDefault("warehouse.allow_html", w.AllowHTML)
	v.SetDefault("warehouse.sanitize_on_finalize", w.SanitizeOnFinalize)
	v.SetDefault("warehouse.allow_html_images", w.AllowHTMLImages)

	f := d.Fetch
	v.SetDefault("fetch.timeout", f.Timeout)
	v.SetDefault("fetch.requests_per_second", f.RequestsPerSecond)
	v.SetDefault("fetch.burst", f.Burst)
	v.SetDefault("fetch.max_redirects", f.MaxRedirects)
	v.SetDefault("fetch.workers", f.Workers)
	v.SetDefault("fetch.cache_ttl", f.CacheTTL)
	v.SetDefault("fetch.redis_url", f.RedisURL)
	v.SetDefault("fetch.user_agent", f.UserAgent)

	a := d.Audit
	v.SetDefault("audit.baseline_path", a.BaselinePath)
	v.SetDefault("audit.max_baseline_age", a.MaxBaselineAge)
	v.SetDefault("audit.roots", a.Roots)
	v.SetDefault("audit.exclude", a.Exclude)
	v.SetDefault("audit.registry_path", a.RegistryPath)
	v.SetDefault("audit.go_mod_path", a.GoModPath)
	v.SetDefault("audit.required_checks", a.RequiredChecks)
	v.SetDefault("audit.branch_protection.source", a.BranchProtection.Source)
	v.SetDefault("audit.branch_protection.file", a.BranchProtection.File)
	v.SetDefault("audit.branch_protection.owner", a.BranchProtection.Owner)
	v.SetDefault("audit.branch_protection.repo", a.BranchProtection.Repo)
	v.SetDefault("audit.branch_protection.branch", a.BranchProtection.Branch)
	v.SetDefault("audit.branch_protection.token_env", a.BranchProtection.TokenEnv)
	v.SetDefault("audit.regression.slowness_threshold", a.Regression.SlownessThreshold)
	v.SetDefault("audit.regression.throughput_threshold", a.Regression.ThroughputThreshold)

	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
	v.SetDefault("output.format", d.Output.Format)
}

// Init prepares v: defaults, DOXSTRUX_ environment binding and the config
// file. An explicit file (argument or DOXSTRUX_CONFIG_FILE) must exist; the
// implicit .doxstrux.yml is optional.
func Init(v *viper.Viper, file string) error {
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if file == "" {
		file = os.Getenv(FileEnv)
	}
	if file != "" {
		if err := validateConfigPath(file); err != nil {
			return err
		}
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return errors.WrapConfig(err, "read config file "+file)
		}
		return nil
	}

	v.SetConfigName(FileName)
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return errors.WrapConfig(err, "read config file")
	}
	return nil
}

// Load decodes v into a Config and validates it.
func Load(v *viper.Viper) (*Config, error) {
	cfg, err := Decode(v)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Decode decodes v into a Config without validating it.
func Decode(v *viper.Viper) (*Config, error) {
	if v == nil {
		v = viper.GetViper()
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.WrapConfig(err, "decode configuration")
	}
	return &cfg, nil
}

var validate = validator.New()

// Validate checks tags and cross-field rules.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return errors.ConfigInvalid(fmt.Sprintf("invalid configuration: %v", err), err)
	}
	if err := c.Warehouse.Validate(); err != nil {
		return err
	}
	for _, root := range c.Audit.Roots {
		if err := validatePath(root); err != nil {
			return errors.ConfigInvalid(fmt.Sprintf("audit root %q: %v", root, err), err)
		}
	}
	for _, p := range []string{c.Audit.BaselinePath, c.Audit.RegistryPath} {
		if err := validatePath(p); err != nil {
			return errors.ConfigInvalid(fmt.Sprintf("audit path %q: %v", p, err), err)
		}
	}
	if c.Fetch.RedisURL != "" && !strings.HasPrefix(c.Fetch.RedisURL, "redis://") && !strings.HasPrefix(c.Fetch.RedisURL, "rediss://") {
		return errors.ConfigInvalid("fetch.redis_url must use redis:// or rediss://", nil)
	}
	return nil
}

// validatePath rejects empty paths and parent-directory traversal.
func validatePath(p string) error {
	if p == "" {
		return fmt.Errorf("empty path")
	}
	for _, part := range strings.Split(strings.ReplaceAll(p, `\`, "/"), "/") {
		if part == ".." {
			return fmt.Errorf("path contains traversal: %s", p)
		}
	}
	if strings.ContainsRune(p, 0) {
		return fmt.Errorf("path contains NUL byte")
	}
	return nil
}

func validateConfigPath(p string) error {
	if err := validatePath(p); err != nil {
		return errors.ConfigInvalid(fmt.Sprintf("config file %q: %v", p, err), err)
	}
	switch strings.ToLower(filepath.Ext(p)) {
	case ".yml", ".yaml", ".json", ".toml":
		return nil
	}
	return errors.ConfigInvalid(fmt.Sprintf("config file %q: unsupported extension", p), nil)
}
