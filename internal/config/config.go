// Package config loads Tranquil's catalog: breathing program tuning, trend
// window and the seed list of support professionals.
package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/BurntSushi/toml"

	"github.com/BTreeMap/Tranquil/internal/breathing"
	"github.com/BTreeMap/Tranquil/internal/models"
	"github.com/BTreeMap/Tranquil/internal/pss"
)

// Catalog holds all file-based configuration.
type Catalog struct {
	Box              breathing.BoxConfig   `toml:"box"`
	CountdownSeconds int                   `toml:"countdown_seconds"`
	TrendWindow      int                   `toml:"trend_window"`
	Professionals    []models.Professional `toml:"professionals"`
}

// DefaultCatalog returns the catalog used when no file is configured.
func DefaultCatalog() Catalog {
	return Catalog{
		Box:              breathing.DefaultBoxConfig(),
		CountdownSeconds: breathing.DefaultCountdown,
		TrendWindow:      pss.DefaultTrendWindow,
	}
}

// LoadCatalog overlays the TOML file at path onto DefaultCatalog.
// An empty path returns the defaults.
func LoadCatalog(path string) (Catalog, error) {
	cfg := DefaultCatalog()
	if path == "" {
		return cfg, nil
	}
	if _, err := os.Stat(path); err != nil {
		return cfg, fmt.Errorf("catalog %s: %w", path, err)
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, fmt.Errorf("parse catalog %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("catalog %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the catalog values.
func (c Catalog) Validate() error {
	if err := breathing.Validate(breathing.Box(c.Box)); err != nil {
		return fmt.Errorf("box: %w", err)
	}
	if c.CountdownSeconds < 0 {
		return errors.New("countdown_seconds must not be negative")
	}
	if c.TrendWindow < 1 {
		return errors.New("trend_window must be at least 1")
	}
	seen := make(map[string]bool, len(c.Professionals))
	for i, p := range c.Professionals {
		if p.ID == "" || p.Name == "" {
			return fmt.Errorf("professionals[%d]: id and name are required", i)
		}
		if seen[p.ID] {
			return fmt.Errorf("professionals[%d]: duplicate id %q", i, p.ID)
		}
		seen[p.ID] = true
		for _, a := range p.Approaches {
			if !models.KnownApproach(a) {
				return fmt.Errorf("professionals[%d]: unknown approach %q", i, a)
			}
		}
	}
	return nil
}

// Programs builds the breathing catalog for this configuration.
func (c Catalog) Programs() (*breathing.Catalog, error) {
	return breathing.DefaultCatalog(c.Box)
}
