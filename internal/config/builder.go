package config

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/poutila/doxstrux/internal/audit"
	"github.com/poutila/doxstrux/internal/errors"
	"github.com/poutila/doxstrux/internal/fetch"
	"github.com/poutila/doxstrux/internal/logging"
	"github.com/poutila/doxstrux/internal/warehouse"
	"gopkg.in/yaml.v3"
)

// NewLogger builds the process logger from the log section.
func (c *Config) NewLogger(out io.Writer) (logging.Logger, error) {
	level, err := logging.ParseLevel(c.Log.Level)
	if err != nil {
		return nil, errors.ConfigInvalid(err.Error(), err)
	}
	return logging.NewLogger(&logging.LoggerConfig{
		Level:  level,
		Format: c.Log.Format,
		Output: out,
	}), nil
}

// WarehouseConfig returns a copy of the warehouse section bound to logger.
func (c *Config) WarehouseConfig(logger logging.Logger) warehouse.Config {
	w := c.Warehouse
	w.Logger = logger
	return w
}

// LinkCache returns the Redis cache when fetch.redis_url is set and an
// in-memory cache otherwise. The returned closer is never nil.
func (c *Config) LinkCache(ctx context.Context) (fetch.Cache, func() error, error) {
	if c.Fetch.RedisURL == "" {
		return fetch.NewMemoryCache(), func() error { return nil }, nil
	}
	rc, err := fetch.NewRedisCache(ctx, c.Fetch.RedisURL, "")
	if err != nil {
		return nil, nil, err
	}
	return rc, rc.Close, nil
}

// BranchProtectionSource builds the configured source of required checks.
func (c *Config) BranchProtectionSource(ctx context.Context) audit.BranchProtectionSource {
	bp := c.Audit.BranchProtection
	if bp.Source == "github" {
		return audit.NewGitHubSource(ctx, os.Getenv(bp.TokenEnv), bp.Owner, bp.Repo, bp.Branch)
	}
	return &audit.FileSource{Path: bp.File}
}

// GateInputs assembles the audit gate inputs. observations may be nil.
func (c *Config) GateInputs(ctx context.Context, observations map[string]float64) (audit.Inputs, error) {
	a := c.Audit

	trusted, err := audit.ParseTrustedKeys(a.TrustedKeys)
	if err != nil {
		return audit.Inputs{}, err
	}
	registry, err := audit.LoadRegistry(a.RegistryPath)
	if err != nil {
		return audit.Inputs{}, err
	}

	return audit.Inputs{
		BaselinePath:     a.BaselinePath,
		TrustedKeys:      trusted,
		MaxBaselineAge:   a.MaxBaselineAge,
		Scanner:          &audit.Scanner{Roots: a.Roots, Exclude: a.Exclude},
		Registry:         registry,
		BranchProtection: c.BranchProtectionSource(ctx),
		RequiredChecks:   a.RequiredChecks,
		GoModPath:        a.GoModPath,
		Observations:     observations,
		Thresholds:       a.Regression,
	}, nil
}

// WriteFile writes cfg as YAML. An existing file is left alone unless
// overwrite is set.
func WriteFile(path string, cfg *Config, overwrite bool) error {
	if err := validateConfigPath(path); err != nil {
		return err
	}
	if ext := filepath.Ext(path); ext != ".yml" && ext != ".yaml" {
		return errors.ConfigInvalid(path+": only YAML files can be written", nil)
	}
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return errors.ConfigInvalid(path+" already exists", nil)
		}
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return errors.WrapConfig(err, "encode configuration")
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return errors.WrapIO(err, errors.ErrCodeFileNotFound, "write "+path)
	}
	return nil
}
