// Package config loads the daemon configuration from a YAML file, with
// environment overrides for deployment-specific and sensitive values.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/umbral-systems/tailguard/internal/vault"
)

// Duration wraps time.Duration so YAML values like "24h" parse.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", value.Value, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// VaultParams is the YAML surface for the vault's economic parameters.
// Ratios and rates are in basis points.
type VaultParams struct {
	ReserveRatioBps     uint64   `yaml:"reserve_ratio_bps"`
	MaxExposureRatioBps uint64   `yaml:"max_exposure_ratio_bps"`
	BaseRateBps         uint64   `yaml:"base_rate_bps"`
	VolSurchargeBps     uint64   `yaml:"vol_surcharge_bps"`
	MinTrustBps         uint64   `yaml:"min_trust_bps"`
	MinDuration         Duration `yaml:"min_duration"`
	MaxDuration         Duration `yaml:"max_duration"`
	ValidationStake     uint64   `yaml:"validation_stake"`
	ValidationWindow    Duration `yaml:"validation_window"`
	DailyClaimCap       int      `yaml:"daily_claim_cap"`
	SuspendOnBlackSwan  bool     `yaml:"suspend_on_black_swan"`
}

// Vault converts the YAML parameters into a vault.Config.
func (p VaultParams) Vault() vault.Config {
	return vault.Config{
		ReserveRatioBps:     p.ReserveRatioBps,
		MaxExposureRatioBps: p.MaxExposureRatioBps,
		BaseRateBps:         p.BaseRateBps,
		VolSurchargeBps:     p.VolSurchargeBps,
		MinTrustBps:         p.MinTrustBps,
		MinDuration:         p.MinDuration.Std(),
		MaxDuration:         p.MaxDuration.Std(),
		ValidationStake:     p.ValidationStake,
		ValidationWindow:    p.ValidationWindow.Std(),
		DailyClaimCap:       p.DailyClaimCap,
		SuspendOnBlackSwan:  p.SuspendOnBlackSwan,
	}
}

func vaultParams(c vault.Config) VaultParams {
	return VaultParams{
		ReserveRatioBps:     c.ReserveRatioBps,
		MaxExposureRatioBps: c.MaxExposureRatioBps,
		BaseRateBps:         c.BaseRateBps,
		VolSurchargeBps:     c.VolSurchargeBps,
		MinTrustBps:         c.MinTrustBps,
		MinDuration:         Duration(c.MinDuration),
		MaxDuration:         Duration(c.MaxDuration),
		ValidationStake:     c.ValidationStake,
		ValidationWindow:    Duration(c.ValidationWindow),
		DailyClaimCap:       c.DailyClaimCap,
		SuspendOnBlackSwan:  c.SuspendOnBlackSwan,
	}
}

// Config is the full daemon configuration.
type Config struct {
	ListenAddr string `yaml:"listen_addr"`
	DataDir    string `yaml:"data_dir"`

	// Owner is the address allowed to administer the trust ledger and the
	// agent directory.
	Owner string `yaml:"owner"`

	// AdminSecret authenticates operator endpoints. Never read from the
	// file; set via TAILGUARD_ADMIN_SECRET.
	AdminSecret string `yaml:"-"`

	// TrustUpdaters are seeded onto the trust ledger allow-list at boot.
	TrustUpdaters []string `yaml:"trust_updaters"`

	QuorumThreshold  int      `yaml:"quorum_threshold"`
	OracleMaxAge     Duration `yaml:"oracle_max_age"`
	SnapshotInterval Duration `yaml:"snapshot_interval"`
	SweepInterval    Duration `yaml:"sweep_interval"`
	DecayInterval    Duration `yaml:"decay_interval"`

	Vault VaultParams `yaml:"vault"`
}

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{
		ListenAddr:       ":8080",
		DataDir:          "data",
		Owner:            "operator",
		QuorumThreshold:  2,
		OracleMaxAge:     Duration(time.Hour),
		SnapshotInterval: Duration(time.Minute),
		SweepInterval:    Duration(time.Minute),
		DecayInterval:    Duration(time.Hour),
		Vault:            vaultParams(vault.DefaultConfig()),
	}
}

// Load reads the YAML file at path, falling back to defaults when the file
// does not exist, then applies environment overrides. Fields absent from the
// file keep their defaults.
func Load(path string) (Config, error) {
	c := Default()
	data, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("config load: %w", err)
	}
	if err == nil {
		if err := yaml.Unmarshal(data, &c); err != nil {
			return Config{}, fmt.Errorf("config unmarshal: %w", err)
		}
	}
	applyEnvOverrides(&c)

	if c.AdminSecret == "" {
		return Config{}, errors.New("config: TAILGUARD_ADMIN_SECRET is required")
	}
	if c.QuorumThreshold < 1 {
		c.QuorumThreshold = 1
	}
	return c, nil
}

// applyEnvOverrides applies TAILGUARD_ prefixed environment variables over
// the file values.
func applyEnvOverrides(c *Config) {
	if v := os.Getenv("TAILGUARD_LISTEN_ADDR"); v != "" {
		c.ListenAddr = v
	}
	if v := os.Getenv("TAILGUARD_DATA_DIR"); v != "" {
		c.DataDir = v
	}
	if v := os.Getenv("TAILGUARD_OWNER"); v != "" {
		c.Owner = v
	}
	if v := os.Getenv("TAILGUARD_ADMIN_SECRET"); v != "" {
		c.AdminSecret = v
	}
	if v := os.Getenv("TAILGUARD_QUORUM_THRESHOLD"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.QuorumThreshold = n
		}
	}
	if v := os.Getenv("TAILGUARD_ORACLE_MAX_AGE"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.OracleMaxAge = Duration(d)
		}
	}
	if v := os.Getenv("TAILGUARD_SNAPSHOT_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.SnapshotInterval = Duration(d)
		}
	}
}
