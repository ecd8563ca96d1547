// Copyright (C) 2025, Tempo Foundation. All rights reserved.
// See the file LICENSE for licensing terms.

package attestor

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Configuration keys.
const (
	ConfigFileKey         = "config-file"
	LogLevelKey           = "log-level"
	OriginChainIDKey      = "origin-chain-id"
	DestinationChainIDKey = "destination-chain-id"
	QuorumNumeratorKey    = "quorum-numerator"
	QuorumDenominatorKey  = "quorum-denominator"
	SignatureCacheSizeKey = "signature-cache-size"
	RequestTimeoutKey     = "request-timeout"
	MetricsPortKey        = "metrics-port"
)

const (
	envPrefix = "BRIDGE"

	defaultLogLevel          = "info"
	defaultQuorumNumerator   = 67
	defaultQuorumDenominator = 100
	defaultRequestTimeout    = 30 * time.Second
	defaultMetricsPort       = 9091
)

// Config holds the attestor service configuration.
type Config struct {
	LogLevel           string        `mapstructure:"log-level"`
	OriginChainID      uint64        `mapstructure:"origin-chain-id"`
	DestinationChainID uint64        `mapstructure:"destination-chain-id"`
	QuorumNumerator    uint64        `mapstructure:"quorum-numerator"`
	QuorumDenominator  uint64        `mapstructure:"quorum-denominator"`
	SignatureCacheSize int           `mapstructure:"signature-cache-size"`
	RequestTimeout     time.Duration `mapstructure:"request-timeout"`
	MetricsPort        uint16        `mapstructure:"metrics-port"`
}

// BuildFlagSet returns the attestor's command line flags.
func BuildFlagSet() *pflag.FlagSet {
	fs := pflag.NewFlagSet("attestor", pflag.ContinueOnError)
	fs.String(ConfigFileKey, "", "path to a config file")
	fs.String(LogLevelKey, defaultLogLevel, "log level")
	fs.Uint64(OriginChainIDKey, 0, "chain ID attested messages originate from")
	fs.Uint64(DestinationChainIDKey, 0, "chain ID attestations are delivered to")
	fs.Uint64(QuorumNumeratorKey, defaultQuorumNumerator, "quorum weight numerator")
	fs.Uint64(QuorumDenominatorKey, defaultQuorumDenominator, "quorum weight denominator")
	fs.Int(SignatureCacheSizeKey, DefaultCacheSize, "signature cache entries")
	fs.Duration(RequestTimeoutKey, defaultRequestTimeout, "attestation request timeout")
	fs.Uint16(MetricsPortKey, defaultMetricsPort, "prometheus metrics port")
	return fs
}

// BuildViper binds flags and BRIDGE_-prefixed environment variables, and
// reads the config file when one is set. Flags take precedence over the
// file; both sit above the defaults.
func BuildViper(fs *pflag.FlagSet) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	// BRIDGE_QUORUM_NUMERATOR overrides quorum-numerator.
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	if err := v.BindPFlags(fs); err != nil {
		return nil, err
	}
	if v.IsSet(ConfigFileKey) && v.GetString(ConfigFileKey) != "" {
		v.SetConfigFile(v.GetString(ConfigFileKey))
		if err := v.ReadInConfig(); err != nil {
			return nil, err
		}
	}
	return v, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault(LogLevelKey, defaultLogLevel)
	v.SetDefault(QuorumNumeratorKey, defaultQuorumNumerator)
	v.SetDefault(QuorumDenominatorKey, defaultQuorumDenominator)
	v.SetDefault(SignatureCacheSizeKey, DefaultCacheSize)
	v.SetDefault(RequestTimeoutKey, defaultRequestTimeout)
	v.SetDefault(MetricsPortKey, defaultMetricsPort)
}

// NewConfig builds and validates a Config from v.
func NewConfig(v *viper.Viper) (Config, error) {
	setDefaults(v)
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshalling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the configuration is usable. The quorum fraction must be
// at least two thirds or attestations it accepts would not satisfy the
// ledger's threshold.
func (c *Config) Validate() error {
	if c.OriginChainID == 0 {
		return errors.New("origin-chain-id must be set")
	}
	if c.DestinationChainID == 0 {
		return errors.New("destination-chain-id must be set")
	}
	if c.OriginChainID == c.DestinationChainID {
		return errors.New("origin and destination chains must differ")
	}
	if c.QuorumDenominator == 0 {
		return errors.New("quorum-denominator must be positive")
	}
	if c.QuorumNumerator == 0 || c.QuorumNumerator > c.QuorumDenominator {
		return fmt.Errorf("quorum %d/%d is not a fraction in (0, 1]",
			c.QuorumNumerator, c.QuorumDenominator)
	}
	if 3*c.QuorumNumerator < 2*c.QuorumDenominator {
		return fmt.Errorf("quorum %d/%d is below two thirds",
			c.QuorumNumerator, c.QuorumDenominator)
	}
	if c.SignatureCacheSize <= 0 {
		return errors.New("signature-cache-size must be positive")
	}
	if c.RequestTimeout <= 0 {
		return errors.New("request-timeout must be positive")
	}
	return nil
}
