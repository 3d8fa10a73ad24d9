// Package config loads identityguard's layered configuration (file, env,
// defaults) into a typed Config struct via spf13/viper, exposing
// exactly the keys spec §6 recognizes.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"identityguard/internal/magic"
)

// Config is the fully-resolved, validated configuration surface every
// component constructor consumes.
type Config struct {
	Device   DeviceConfig
	RateLimit RateLimitConfig
	Asn      AsnConfig
	Geo      GeoConfig
	WHOIS    WHOISConfig
}

// DeviceConfig backs DeviceFingerprint (spec §6 device.*).
type DeviceConfig struct {
	FingerprintSalt string `mapstructure:"fingerprint.salt"`
	MaxPerUser      int    `mapstructure:"max-per-user"`
	MaxFailedAttempts int  `mapstructure:"max-failed-attempts"`
}

// RateLimitConfig backs RateLimiter (spec §6 ratelimit.*).
type RateLimitConfig struct {
	Window time.Duration `mapstructure:"window"`
	Limit  int           `mapstructure:"limit"`
}

// AsnConfig backs AsnResolver (spec §6 asn.*).
type AsnConfig struct {
	StaleThreshold time.Duration `mapstructure:"stale-threshold"`
	CleanupCron    string        `mapstructure:"cleanup.cron"`
	ExternalRate   float64       `mapstructure:"external.rate"`
}

// GeoConfig backs GeoResolver/RiskEngine (spec §6 geo.*).
type GeoConfig struct {
	TimeWindowHours        int      `mapstructure:"time-window-hours"`
	ImpossibleSpeedKMH      float64  `mapstructure:"impossible-speed-kmh"`
	SuspiciousDistanceKM    float64  `mapstructure:"suspicious-distance-km"`
	HighRiskCountries       []string `mapstructure:"high-risk-countries"`
	KnownVPNAsns            []uint32 `mapstructure:"known-vpn-asns"`
	VPNReputationThreshold  int      `mapstructure:"vpn-reputation-threshold"`
}

// WHOISConfig backs the WHOIS external-resolver stage (spec §6 whois.*).
type WHOISConfig struct {
	Server string `mapstructure:"server"`
}

// setDefaults registers every recognized key's default so a deployment can
// override only the keys it cares about (spec §6's configuration table).
func setDefaults(v *viper.Viper) {
	v.SetDefault("device.fingerprint.salt", "")
	v.SetDefault("device.max-per-user", magic.DefaultMaxDevicesPerUser)
	v.SetDefault("device.max-failed-attempts", magic.DefaultMaxFailedAttempts)

	v.SetDefault("ratelimit.window", magic.DefaultRateLimitWindow)
	v.SetDefault("ratelimit.limit", magic.DefaultRateLimitPerIP)

	v.SetDefault("asn.stale-threshold", magic.DefaultStaleThreshold)
	v.SetDefault("asn.cleanup.cron", "0 0 * * *")
	v.SetDefault("asn.external.rate", float64(magic.DefaultExternalRatePerSecond))

	v.SetDefault("geo.time-window-hours", int(magic.DefaultTimeWindow.Hours()))
	v.SetDefault("geo.impossible-speed-kmh", magic.DefaultImpossibleSpeedKMH)
	v.SetDefault("geo.suspicious-distance-km", magic.DefaultSuspiciousDistanceKM)
	v.SetDefault("geo.high-risk-countries", []string{})
	v.SetDefault("geo.known-vpn-asns", []uint32{})
	v.SetDefault("geo.vpn-reputation-threshold", magic.DefaultVPNReputationScore)

	v.SetDefault("whois.server", magic.DefaultWHOISServer)
}

// Load reads configuration from configFile (if non-empty), environment
// variables prefixed IDENTITYGUARD_ (with "." replaced by "_"), and falls
// back to the defaults set by setDefaults. It returns a validated Config.
func Load(configFile string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("IDENTITYGUARD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file %q: %w", configFile, err)
		}
	}

	cfg := &Config{
		Device: DeviceConfig{
			FingerprintSalt:   v.GetString("device.fingerprint.salt"),
			MaxPerUser:        v.GetInt("device.max-per-user"),
			MaxFailedAttempts: v.GetInt("device.max-failed-attempts"),
		},
		RateLimit: RateLimitConfig{
			Window: v.GetDuration("ratelimit.window"),
			Limit:  v.GetInt("ratelimit.limit"),
		},
		Asn: AsnConfig{
			StaleThreshold: v.GetDuration("asn.stale-threshold"),
			CleanupCron:    v.GetString("asn.cleanup.cron"),
			ExternalRate:   v.GetFloat64("asn.external.rate"),
		},
		Geo: GeoConfig{
			TimeWindowHours:        v.GetInt("geo.time-window-hours"),
			ImpossibleSpeedKMH:     v.GetFloat64("geo.impossible-speed-kmh"),
			SuspiciousDistanceKM:   v.GetFloat64("geo.suspicious-distance-km"),
			HighRiskCountries:      v.GetStringSlice("geo.high-risk-countries"),
			KnownVPNAsns:           getUint32Slice(v, "geo.known-vpn-asns"),
			VPNReputationThreshold: v.GetInt("geo.vpn-reputation-threshold"),
		},
		WHOIS: WHOISConfig{
			Server: v.GetString("whois.server"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func getUint32Slice(v *viper.Viper, key string) []uint32 {
	raw := v.Get(key)
	switch vals := raw.(type) {
	case []uint32:
		return vals
	case []int:
		out := make([]uint32, len(vals))
		for i, n := range vals {
			out[i] = uint32(n)
		}
		return out
	case []any:
		out := make([]uint32, 0, len(vals))
		for _, n := range vals {
			if iv, ok := n.(int); ok {
				out = append(out, uint32(iv))
			}
		}
		return out
	default:
		return nil
	}
}

// Validate rejects configurations that would leave a component unable to
// enforce its invariants.
func (c *Config) Validate() error {
	if c.Device.MaxPerUser <= 0 {
		return fmt.Errorf("device.max-per-user must be positive, got %d", c.Device.MaxPerUser)
	}
	if c.Device.MaxFailedAttempts <= 0 {
		return fmt.Errorf("device.max-failed-attempts must be positive, got %d", c.Device.MaxFailedAttempts)
	}
	if c.RateLimit.Window <= 0 {
		return fmt.Errorf("ratelimit.window must be positive, got %s", c.RateLimit.Window)
	}
	if c.RateLimit.Limit <= 0 {
		return fmt.Errorf("ratelimit.limit must be positive, got %d", c.RateLimit.Limit)
	}
	if c.Asn.StaleThreshold <= 0 {
		return fmt.Errorf("asn.stale-threshold must be positive, got %s", c.Asn.StaleThreshold)
	}
	if c.Asn.ExternalRate <= 0 {
		return fmt.Errorf("asn.external.rate must be positive, got %f", c.Asn.ExternalRate)
	}
	if c.Geo.TimeWindowHours <= 0 {
		return fmt.Errorf("geo.time-window-hours must be positive, got %d", c.Geo.TimeWindowHours)
	}
	if c.Geo.ImpossibleSpeedKMH <= 0 {
		return fmt.Errorf("geo.impossible-speed-kmh must be positive, got %f", c.Geo.ImpossibleSpeedKMH)
	}
	if c.WHOIS.Server == "" {
		return fmt.Errorf("whois.server must not be empty")
	}
	return nil
}
