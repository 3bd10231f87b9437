// Package config holds the engine's tunable parameters, sourced from
// viper the same way the voip package's Config does: a struct of
// mapstructure-tagged fields hydrated from defaults set once, then
// overridden by config file or flag.
package config

import (
	"sync"

	"github.com/spf13/viper"
)

var configOnce sync.Once

// Default tunables, mirroring the flow tracker's fixed constants where the
// decode modules don't already hardcode them.
const (
	DefaultChannelCapacity     = 1024
	DefaultSessionTTL          = 300
	DefaultSessionTableBuckets = 3600
	DefaultMaxSessions         = 65535
	DefaultPcapTimeoutMs       = 200
	DefaultPcapBufferSize      = 16 * 1024 * 1024
	DefaultPromiscuous         = true
)

// Config holds all configurable engine parameters.
type Config struct {
	ChannelCapacity     int  `mapstructure:"channel_capacity"`
	SessionTTL          int  `mapstructure:"session_ttl"`
	SessionTableBuckets int  `mapstructure:"session_table_ttl_buckets"`
	MaxSessions         int  `mapstructure:"max_sessions"`
	PcapTimeoutMs       int  `mapstructure:"pcap_timeout_ms"`
	PcapBufferSize      int  `mapstructure:"pcap_buffer_size"`
	Promiscuous         bool `mapstructure:"promiscuous"`
}

func initConfigDefaults() {
	viper.SetDefault("engine.channel_capacity", DefaultChannelCapacity)
	viper.SetDefault("engine.session_ttl", DefaultSessionTTL)
	viper.SetDefault("engine.session_table_ttl_buckets", DefaultSessionTableBuckets)
	viper.SetDefault("engine.max_sessions", DefaultMaxSessions)
	viper.SetDefault("pcap_timeout_ms", DefaultPcapTimeoutMs)
	viper.SetDefault("pcap_buffer_size", DefaultPcapBufferSize)
	viper.SetDefault("promiscuous", DefaultPromiscuous)
}

// Get returns the current engine configuration with defaults applied.
func Get() *Config {
	configOnce.Do(initConfigDefaults)

	return &Config{
		ChannelCapacity:     viper.GetInt("engine.channel_capacity"),
		SessionTTL:          viper.GetInt("engine.session_ttl"),
		SessionTableBuckets: viper.GetInt("engine.session_table_ttl_buckets"),
		MaxSessions:         viper.GetInt("engine.max_sessions"),
		PcapTimeoutMs:       viper.GetInt("pcap_timeout_ms"),
		PcapBufferSize:      viper.GetInt("pcap_buffer_size"),
		Promiscuous:         viper.GetBool("promiscuous"),
	}
}
