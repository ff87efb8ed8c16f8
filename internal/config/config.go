// Package config reads the operator's station configuration file, an
// ini file with one section per component. Every key is optional;
// missing keys keep their defaults.
package config

import (
	"fmt"
	"time"

	"gopkg.in/ini.v1"

	"flexdx-bridge/internal/cluster"
	"flexdx-bridge/internal/enrichment"
	"flexdx-bridge/internal/radio"
)

// Station identifies the operator.
type Station struct {
	// Callsign is used for the cluster login and for own-call spot
	// highlighting.
	Callsign string `ini:"callsign"`
}

// Cluster configures the DX cluster session.
type Cluster struct {
	Primary           string        `ini:"primary"`
	Backup            string        `ini:"backup"`
	LoginPrompt       string        `ini:"login_prompt"`
	LoginSuccess      []string      `ini:"login_success"`
	PostLoginCommands []string      `ini:"post_login_commands"`
	DialTimeout       time.Duration `ini:"dial_timeout"`
	LoginTimeout      time.Duration `ini:"login_timeout"`
	ReconnectDelay    time.Duration `ini:"reconnect_delay"`
	CommandSettle     time.Duration `ini:"command_settle"`
}

// Radio configures the radio control session.
type Radio struct {
	Addr            string        `ini:"addr"`
	SourceName      string        `ini:"source_name"`
	DialTimeout     time.Duration `ini:"dial_timeout"`
	ConnectSettle   time.Duration `ini:"connect_settle"`
	CommandDeadline time.Duration `ini:"command_deadline"`
	CommandSpacing  time.Duration `ini:"command_spacing"`
	ReconnectDelay  time.Duration `ini:"reconnect_delay"`
	QsyDeadline     time.Duration `ini:"qsy_deadline"`
	SweepInterval   time.Duration `ini:"sweep_interval"`
	SpotLifetime    time.Duration `ini:"spot_lifetime"`
}

// Enrichment configures the enrichment cache.
type Enrichment struct {
	CacheMaxSize   int `ini:"cache_max_size"`
	LoTWMaxAgeDays int `ini:"lotw_max_age_days"`
}

// Server configures the HTTP surface.
type Server struct {
	Listen         string        `ini:"listen"`
	HealthInterval time.Duration `ini:"health_interval"`
}

// Storage configures the optional archive backends. Empty DSNs (or
// use_memory) select the in-memory stores.
type Storage struct {
	PostgresDSN   string `ini:"postgres_dsn"`
	ClickhouseDSN string `ini:"clickhouse_dsn"`
	UseMemory     bool   `ini:"use_memory"`
}

// Config is the full station configuration.
type Config struct {
	Station    Station    `ini:"station"`
	Cluster    Cluster    `ini:"cluster"`
	Radio      Radio      `ini:"radio"`
	Enrichment Enrichment `ini:"enrichment"`
	Server     Server     `ini:"server"`
	Storage    Storage    `ini:"storage"`
}

// Default returns the configuration used when no file is present.
func Default() Config {
	clusterDef := cluster.DefaultConfig()
	radioDef := radio.DefaultConfig()
	cacheDef := enrichment.DefaultConfig()

	return Config{
		Cluster: Cluster{
			LoginPrompt:    clusterDef.LoginPrompt,
			LoginSuccess:   clusterDef.LoginSuccess,
			DialTimeout:    clusterDef.DialTimeout,
			LoginTimeout:   clusterDef.LoginTimeout,
			ReconnectDelay: clusterDef.ReconnectDelay,
			CommandSettle:  clusterDef.CommandSettle,
		},
		Radio: Radio{
			SourceName:      radioDef.SourceName,
			DialTimeout:     radioDef.DialTimeout,
			ConnectSettle:   radioDef.ConnectSettle,
			CommandDeadline: radioDef.CommandDeadline,
			CommandSpacing:  radioDef.CommandSpacing,
			ReconnectDelay:  radioDef.ReconnectDelay,
			QsyDeadline:     radioDef.QsyDeadline,
			SweepInterval:   radioDef.SweepInterval,
			SpotLifetime:    radioDef.SpotLifetime,
		},
		Enrichment: Enrichment{
			CacheMaxSize:   cacheDef.MaxSize,
			LoTWMaxAgeDays: cacheDef.LoTWMaxAgeDays,
		},
		Server: Server{
			Listen:         ":8090",
			HealthInterval: 30 * time.Second,
		},
	}
}

// Load reads an ini file over the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	f, err := ini.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load config %s: %w", path, err)
	}
	if err := f.MapTo(&cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return &cfg, nil
}

// ClusterConfig translates the file into the cluster client's config.
func (c *Config) ClusterConfig() cluster.Config {
	return cluster.Config{
		Primary:           c.Cluster.Primary,
		Backup:            c.Cluster.Backup,
		Callsign:          c.Station.Callsign,
		LoginPrompt:       c.Cluster.LoginPrompt,
		LoginSuccess:      c.Cluster.LoginSuccess,
		PostLoginCommands: c.Cluster.PostLoginCommands,
		DialTimeout:       c.Cluster.DialTimeout,
		LoginTimeout:      c.Cluster.LoginTimeout,
		ReconnectDelay:    c.Cluster.ReconnectDelay,
		CommandSettle:     c.Cluster.CommandSettle,
	}
}

// RadioConfig translates the file into the radio client's config.
func (c *Config) RadioConfig() radio.Config {
	return radio.Config{
		Addr:            c.Radio.Addr,
		SourceName:      c.Radio.SourceName,
		StationCall:     c.Station.Callsign,
		DialTimeout:     c.Radio.DialTimeout,
		ConnectSettle:   c.Radio.ConnectSettle,
		CommandDeadline: c.Radio.CommandDeadline,
		CommandSpacing:  c.Radio.CommandSpacing,
		ReconnectDelay:  c.Radio.ReconnectDelay,
		QsyDeadline:     c.Radio.QsyDeadline,
		SweepInterval:   c.Radio.SweepInterval,
		SpotLifetime:    c.Radio.SpotLifetime,
	}
}

// EnrichmentConfig translates the file into the cache's config.
func (c *Config) EnrichmentConfig() enrichment.Config {
	return enrichment.Config{
		MaxSize:        c.Enrichment.CacheMaxSize,
		LoTWMaxAgeDays: c.Enrichment.LoTWMaxAgeDays,
	}
}
