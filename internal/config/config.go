// Package config loads the gateway's nested configuration surface
// (§6): connection defaults, per-channel endpoints and timeouts, retry
// and reconnect policy, and routing defaults. Values come from a YAML
// file overlaid by environment variables, the way the rest of the
// pack's multi-service deployments (each channel needing its own
// host/port pair without a wall of flags) configure themselves.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/paynet/fep/internal/connmgr"
	"github.com/paynet/fep/internal/retry"
)

// EndpointConfig is the primary+backup host/port pair for one socket
// direction of one channel.
type EndpointConfig struct {
	PrimaryHost string `mapstructure:"primaryHost"`
	PrimaryPort int    `mapstructure:"primaryPort"`
	BackupHost  string `mapstructure:"backupHost"`
	BackupPort  int    `mapstructure:"backupPort"`
}

func (e EndpointConfig) primary() string {
	return fmt.Sprintf("%s:%d", e.PrimaryHost, e.PrimaryPort)
}

func (e EndpointConfig) backup() string {
	if e.BackupHost == "" {
		return ""
	}
	return fmt.Sprintf("%s:%d", e.BackupHost, e.BackupPort)
}

// ChannelConfig is one logical FISC connection's full configuration
// surface, as named in §6.
type ChannelConfig struct {
	InstitutionID         string         `mapstructure:"institutionId"`
	ChannelID             string         `mapstructure:"channelId"`
	SingleChannel         bool           `mapstructure:"singleChannel"`
	Send                  EndpointConfig `mapstructure:"send"`
	Receive               EndpointConfig `mapstructure:"receive"`
	ConnectTimeoutMs      int            `mapstructure:"connectTimeoutMs"`
	ReadTimeoutMs         int            `mapstructure:"readTimeoutMs"`
	WriteTimeoutMs        int            `mapstructure:"writeTimeoutMs"`
	IdleTimeoutMs         int            `mapstructure:"idleTimeoutMs"`
	HeartbeatIntervalMs   int            `mapstructure:"heartbeatIntervalMs"`
	HealthCheckIntervalMs int            `mapstructure:"healthCheckIntervalMs"`
	MaxRetryAttempts      int            `mapstructure:"maxRetryAttempts"`
	RetryDelayMs          int            `mapstructure:"retryDelayMs"`
	BackoffMultiplier     float64        `mapstructure:"backoffMultiplier"`
	MaxDelayMs            int            `mapstructure:"maxDelayMs"`
	JitterFactor          float64        `mapstructure:"jitterFactor"`
	AutoReconnect         bool           `mapstructure:"autoReconnect"`
	TCPKeepAlive          bool           `mapstructure:"tcpKeepAlive"`
	TCPNoDelay            bool           `mapstructure:"tcpNoDelay"`
	SendBufferBytes       int            `mapstructure:"sendBufferBytes"`
	RecvBufferBytes       int            `mapstructure:"recvBufferBytes"`
	FailureStrategy       string         `mapstructure:"failureStrategy"`
}

// Config is the gateway's full load-time configuration.
type Config struct {
	Connection struct {
		AutoConnect               bool `mapstructure:"autoConnect"`
		AutoSignOn                bool `mapstructure:"autoSignOn"`
		GracefulShutdownTimeoutMs int  `mapstructure:"gracefulShutdownTimeoutMs"`
	} `mapstructure:"connection"`

	Channels map[string]ChannelConfig `mapstructure:"channels"`

	Dedup struct {
		RetentionHours int `mapstructure:"retentionHours"`
	} `mapstructure:"dedup"`

	Batch struct {
		DefaultParallelism int `mapstructure:"defaultParallelism"`
	} `mapstructure:"batch"`

	Listen struct {
		Address string `mapstructure:"address"`
		Channel string `mapstructure:"channel"`
	} `mapstructure:"listen"`
}

// Load reads configuration from path (a YAML file, optional — defaults
// apply if it does not exist), overlaid by FEP_-prefixed environment
// variables (e.g. FEP_CONNECTION_AUTOCONNECT, FEP_CHANNELS_INTERBANK_SEND_PRIMARYHOST).
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("FEP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !os.IsNotExist(err) {
				return nil, fmt.Errorf("config: reading %s: %w", path, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("connection.autoConnect", true)
	v.SetDefault("connection.autoSignOn", true)
	v.SetDefault("connection.gracefulShutdownTimeoutMs", 10000)
	v.SetDefault("dedup.retentionHours", 24)
	v.SetDefault("batch.defaultParallelism", 4)
	v.SetDefault("listen.address", ":18583")
	v.SetDefault("listen.channel", "ATM")
}

// failureStrategyByName maps the configured string to connmgr's enum,
// the same set §4.2 names.
var failureStrategyByName = map[string]connmgr.FailureStrategy{
	"FAIL_WHEN_BOTH_DOWN": connmgr.FailWhenBothDown,
	"FAIL_WHEN_ANY_DOWN":  connmgr.FailWhenAnyDown,
	"FALLBACK_TO_SINGLE":  connmgr.FallbackToSingle,
}

// ConnectionConfig converts one named channel's configuration into a
// connmgr.Config ready for NewConnection.
func (c *Config) ConnectionConfig(channel string) (connmgr.Config, error) {
	ch, ok := c.Channels[channel]
	if !ok {
		return connmgr.Config{}, fmt.Errorf("config: unknown channel %q", channel)
	}

	strategy, ok := failureStrategyByName[ch.FailureStrategy]
	if !ok {
		strategy = connmgr.FailWhenBothDown
	}

	return connmgr.Config{
		InstitutionID: ch.InstitutionID,
		Send: connmgr.EndpointPair{
			Primary: ch.Send.primary(),
			Backup:  ch.Send.backup(),
		},
		Receive: connmgr.EndpointPair{
			Primary: ch.Receive.primary(),
			Backup:  ch.Receive.backup(),
		},
		SingleChannel:           ch.SingleChannel,
		ConnectTimeout:          time.Duration(ch.ConnectTimeoutMs) * time.Millisecond,
		GracefulShutdownTimeout: time.Duration(c.Connection.GracefulShutdownTimeoutMs) * time.Millisecond,
		HeartbeatInterval:       time.Duration(ch.HeartbeatIntervalMs) * time.Millisecond,
		Strategy:                strategy,
		Reconnect: connmgr.ReconnectPolicy{
			MaxAttempts:       ch.MaxRetryAttempts,
			RetryDelay:        time.Duration(ch.RetryDelayMs) * time.Millisecond,
			BackoffMultiplier: ch.BackoffMultiplier,
			MaxDelay:          time.Duration(ch.MaxDelayMs) * time.Millisecond,
			JitterFactor:      ch.JitterFactor,
		},
	}, nil
}

// RetryPolicy builds a retry.Policy from one channel's backoff
// parameters, for processors dispatching over that channel.
func (c *Config) RetryPolicy(channel string) (retry.Policy, error) {
	ch, ok := c.Channels[channel]
	if !ok {
		return retry.Policy{}, fmt.Errorf("config: unknown channel %q", channel)
	}
	return retry.Policy{
		MaxRetries:        ch.MaxRetryAttempts,
		InitialDelay:      time.Duration(ch.RetryDelayMs) * time.Millisecond,
		MaxDelay:          time.Duration(ch.MaxDelayMs) * time.Millisecond,
		BackoffMultiplier: ch.BackoffMultiplier,
		JitterFactor:      ch.JitterFactor,
	}, nil
}

// DedupRetentionWindow returns the configured dedup retention window.
func (c *Config) DedupRetentionWindow() time.Duration {
	return time.Duration(c.Dedup.RetentionHours) * time.Hour
}
