// Package config loads rtpbridge configuration using viper.
//
// The YAML file has top-level rtp, bridge, poller and log sections.
// Every key can be overridden from the environment with the RTPBRIDGE_
// prefix, e.g. RTPBRIDGE_RTP_PORT_MIN or RTPBRIDGE_BRIDGE_SETTLE_DELAY.
package config

import (
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/opd-ai/rtpbridge/av/bridge"
	"github.com/opd-ai/rtpbridge/av/rtp"
	"github.com/opd-ai/rtpbridge/transport"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes environment overrides.
const EnvPrefix = "RTPBRIDGE"

// Config is the complete rtpbridge configuration.
type Config struct {
	RTP    RTPConfig    `mapstructure:"rtp" yaml:"rtp"`
	Bridge BridgeConfig `mapstructure:"bridge" yaml:"bridge"`
	Poller PollerConfig `mapstructure:"poller" yaml:"poller"`
	Log    LogConfig    `mapstructure:"log" yaml:"log"`
}

// RTPConfig configures new sessions.
type RTPConfig struct {
	BindAddress     string   `mapstructure:"bind_address" yaml:"bind_address"`
	PortMin         int      `mapstructure:"port_min" yaml:"port_min"`
	PortMax         int      `mapstructure:"port_max" yaml:"port_max"`
	TOS             int      `mapstructure:"tos" yaml:"tos"`
	DTMFTimeout     int      `mapstructure:"dtmf_timeout" yaml:"dtmf_timeout"`         // timestamp units
	ResyncTolerance int      `mapstructure:"resync_tolerance" yaml:"resync_tolerance"` // timestamp units
	Formats         []string `mapstructure:"formats" yaml:"formats"`                   // advertised in SDP

	DTMFIdleFlush time.Duration `mapstructure:"dtmf_idle_flush" yaml:"dtmf_idle_flush"`
}

// MarshalYAML renders durations in their string form.
func (r RTPConfig) MarshalYAML() (any, error) {
	return struct {
		BindAddress     string   `yaml:"bind_address"`
		PortMin         int      `yaml:"port_min"`
		PortMax         int      `yaml:"port_max"`
		TOS             int      `yaml:"tos"`
		DTMFTimeout     int      `yaml:"dtmf_timeout"`
		ResyncTolerance int      `yaml:"resync_tolerance"`
		Formats         []string `yaml:"formats"`
		DTMFIdleFlush   string   `yaml:"dtmf_idle_flush"`
	}{
		r.BindAddress, r.PortMin, r.PortMax, r.TOS, r.DTMFTimeout,
		r.ResyncTolerance, r.Formats, r.DTMFIdleFlush.String(),
	}, nil
}

// BridgeConfig configures the native bridge.
type BridgeConfig struct {
	SettleDelay time.Duration `mapstructure:"settle_delay" yaml:"settle_delay"`
}

// MarshalYAML renders durations in their string form.
func (b BridgeConfig) MarshalYAML() (any, error) {
	return struct {
		SettleDelay string `yaml:"settle_delay"`
	}{b.SettleDelay.String()}, nil
}

// PollerConfig configures the socket poller used in callback mode.
type PollerConfig struct {
	Interval time.Duration `mapstructure:"interval" yaml:"interval"`
}

// MarshalYAML renders durations in their string form.
func (p PollerConfig) MarshalYAML() (any, error) {
	return struct {
		Interval string `yaml:"interval"`
	}{p.Interval.String()}, nil
}

// LogConfig contains logging settings.
type LogConfig struct {
	Level  string     `mapstructure:"level" yaml:"level"`   // trace / debug / info / warn / error
	Format string     `mapstructure:"format" yaml:"format"` // text / json
	File   FileConfig `mapstructure:"file" yaml:"file"`
}

// FileConfig configures rotated file output.
type FileConfig struct {
	Enabled    bool   `mapstructure:"enabled" yaml:"enabled"`
	Path       string `mapstructure:"path" yaml:"path"`
	MaxSizeMB  int    `mapstructure:"max_size_mb" yaml:"max_size_mb"`
	MaxAgeDays int    `mapstructure:"max_age_days" yaml:"max_age_days"`
	MaxBackups int    `mapstructure:"max_backups" yaml:"max_backups"`
	Compress   bool   `mapstructure:"compress" yaml:"compress"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		RTP: RTPConfig{
			BindAddress:     rtp.DefaultBindAddress,
			PortMin:         rtp.DefaultPortMin,
			PortMax:         rtp.DefaultPortMax,
			DTMFTimeout:     rtp.DefaultDTMFTimeout,
			ResyncTolerance: rtp.DefaultResyncTolerance,
			Formats:         []string{"ulaw", "alaw", "gsm"},
			DTMFIdleFlush:   rtp.DefaultDTMFIdleFlush,
		},
		Bridge: BridgeConfig{SettleDelay: bridge.DefaultSettleDelay},
		Poller: PollerConfig{Interval: transport.DefaultPollInterval},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
			File: FileConfig{
				Path:       "/var/log/rtpbridge/rtpbridge.log",
				MaxSizeMB:  100,
				MaxAgeDays: 30,
				MaxBackups: 5,
				Compress:   true,
			},
		},
	}
}

// Load reads configuration from path, applies environment overrides and
// validates the result. An empty path loads defaults and environment only.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	hook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))
	if err := v.Unmarshal(&cfg, hook); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"function": "config.Load",
		"path":     path,
	}).Debug("Configuration loaded")

	return &cfg, nil
}

// setDefaults seeds v with Default so every key is known to AutomaticEnv.
func setDefaults(v *viper.Viper) {
	d := Default()

	v.SetDefault("rtp.bind_address", d.RTP.BindAddress)
	v.SetDefault("rtp.port_min", d.RTP.PortMin)
	v.SetDefault("rtp.port_max", d.RTP.PortMax)
	v.SetDefault("rtp.tos", d.RTP.TOS)
	v.SetDefault("rtp.dtmf_timeout", d.RTP.DTMFTimeout)
	v.SetDefault("rtp.resync_tolerance", d.RTP.ResyncTolerance)
	v.SetDefault("rtp.formats", d.RTP.Formats)
	v.SetDefault("rtp.dtmf_idle_flush", d.RTP.DTMFIdleFlush.String())

	v.SetDefault("bridge.settle_delay", d.Bridge.SettleDelay.String())
	v.SetDefault("poller.interval", d.Poller.Interval.String())

	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
	v.SetDefault("log.file.enabled", d.Log.File.Enabled)
	v.SetDefault("log.file.path", d.Log.File.Path)
	v.SetDefault("log.file.max_size_mb", d.Log.File.MaxSizeMB)
	v.SetDefault("log.file.max_age_days", d.Log.File.MaxAgeDays)
	v.SetDefault("log.file.max_backups", d.Log.File.MaxBackups)
	v.SetDefault("log.file.compress", d.Log.File.Compress)
}

// Validate checks the configuration for values sessions cannot use.
func (cfg *Config) Validate() error {
	if ip := net.ParseIP(cfg.RTP.BindAddress); ip == nil || ip.To4() == nil {
		return fmt.Errorf("invalid rtp.bind_address: %q (must be IPv4)", cfg.RTP.BindAddress)
	}
	if cfg.RTP.PortMin < 1 || cfg.RTP.PortMax > 65535 || cfg.RTP.PortMin > cfg.RTP.PortMax {
		return fmt.Errorf("invalid rtp port range: %d-%d", cfg.RTP.PortMin, cfg.RTP.PortMax)
	}
	if cfg.RTP.TOS < 0 || cfg.RTP.TOS > 255 {
		return fmt.Errorf("invalid rtp.tos: %d (must be 0-255)", cfg.RTP.TOS)
	}
	if cfg.RTP.DTMFTimeout <= 0 {
		return fmt.Errorf("rtp.dtmf_timeout must be positive")
	}
	if cfg.RTP.ResyncTolerance <= 0 {
		return fmt.Errorf("rtp.resync_tolerance must be positive")
	}
	if cfg.RTP.DTMFIdleFlush <= 0 {
		return fmt.Errorf("rtp.dtmf_idle_flush must be positive")
	}
	if _, err := cfg.Formats(); err != nil {
		return err
	}
	if cfg.Bridge.SettleDelay < 0 {
		return fmt.Errorf("bridge.settle_delay must not be negative")
	}
	if cfg.Poller.Interval <= 0 {
		return fmt.Errorf("poller.interval must be positive")
	}

	if _, err := logrus.ParseLevel(cfg.Log.Level); err != nil {
		return fmt.Errorf("invalid log level: %s", cfg.Log.Level)
	}
	if cfg.Log.Format != "json" && cfg.Log.Format != "text" {
		return fmt.Errorf("invalid log format: %s (must be json/text)", cfg.Log.Format)
	}
	if cfg.Log.File.Enabled && cfg.Log.File.Path == "" {
		return fmt.Errorf("log.file.path is required when log.file.enabled=true")
	}
	return nil
}

// Formats resolves the configured codec names.
func (cfg *Config) Formats() ([]rtp.Format, error) {
	formats := make([]rtp.Format, 0, len(cfg.RTP.Formats))
	for _, name := range cfg.RTP.Formats {
		f, ok := rtp.ParseFormat(strings.TrimSpace(name))
		if !ok {
			return nil, fmt.Errorf("unknown rtp format: %q", name)
		}
		if _, mapped := rtp.PayloadTypeForFormat(f); !mapped {
			return nil, fmt.Errorf("rtp format %q has no payload type", name)
		}
		formats = append(formats, f)
	}
	return formats, nil
}

// SessionOptions converts the rtp section into session options.
func (cfg *Config) SessionOptions() rtp.Options {
	return rtp.Options{
		BindAddress:     cfg.RTP.BindAddress,
		PortMin:         cfg.RTP.PortMin,
		PortMax:         cfg.RTP.PortMax,
		TOS:             cfg.RTP.TOS,
		DTMFTimeout:     cfg.RTP.DTMFTimeout,
		ResyncTolerance: cfg.RTP.ResyncTolerance,
		DTMFIdleFlush:   cfg.RTP.DTMFIdleFlush,
	}
}

// Marshal renders cfg as YAML.
func Marshal(cfg *Config) ([]byte, error) {
	out, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config: %w", err)
	}
	return out, nil
}
