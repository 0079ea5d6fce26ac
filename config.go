package depot

import (
	"io"
	"runtime"

	envconfig "github.com/JeremyLoy/config"
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// Config holds global configuration shared by every store
var Config config = config{logger: zerolog.Nop()}

type config struct {
	logger          zerolog.Logger
	archetypeEvents ArchetypeEvents
}

// ArchetypeEvents are callbacks fired by every store's archetype graph
type ArchetypeEvents struct {
	OnCreate func(*Archetype)
}

// SetArchetypeEvents configures the archetype event callbacks
func (c *config) SetArchetypeEvents(ae ArchetypeEvents) {
	c.archetypeEvents = ae
}

// SetLogger replaces the logger stores created afterwards start from
func (c *config) SetLogger(logger zerolog.Logger) {
	c.logger = logger
}

func (c *config) Logger() zerolog.Logger {
	return c.logger
}

// StoreConfig sizes a store's initial allocations and its logging.
type StoreConfig struct {
	EntityCapacity int    `yaml:"entity_capacity" config:"DEPOT_ENTITY_CAPACITY"`
	ColumnCapacity int    `yaml:"column_capacity" config:"DEPOT_COLUMN_CAPACITY"`
	Workers        int    `yaml:"workers" config:"DEPOT_WORKERS"`
	LogLevel       string `yaml:"log_level" config:"DEPOT_LOG_LEVEL"`
}

const (
	defaultEntityCapacity = 1024
	defaultColumnCapacity = 64
)

func DefaultStoreConfig() StoreConfig {
	return StoreConfig{
		EntityCapacity: defaultEntityCapacity,
		ColumnCapacity: defaultColumnCapacity,
		Workers:        runtime.GOMAXPROCS(0),
	}
}

// LoadStoreConfig decodes a YAML document; omitted keys keep their defaults.
func LoadStoreConfig(r io.Reader) (StoreConfig, error) {
	cfg := DefaultStoreConfig()
	if err := yaml.NewDecoder(r).Decode(&cfg); err != nil && !eris.Is(err, io.EOF) {
		return StoreConfig{}, eris.Wrap(err, "failed to decode store config")
	}
	if err := cfg.validate(); err != nil {
		return StoreConfig{}, err
	}
	return cfg.withDefaults(), nil
}

// WithEnv overrides c with any DEPOT_* environment variables that are set.
func (c StoreConfig) WithEnv() (StoreConfig, error) {
	if err := envconfig.FromEnv().To(&c); err != nil {
		return StoreConfig{}, eris.Wrap(err, "failed to read store config from environment")
	}
	if err := c.validate(); err != nil {
		return StoreConfig{}, err
	}
	return c.withDefaults(), nil
}

func (c StoreConfig) validate() error {
	if c.LogLevel == "" {
		return nil
	}
	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		return eris.Wrapf(err, "invalid log_level %q", c.LogLevel)
	}
	return nil
}

func (c StoreConfig) withDefaults() StoreConfig {
	def := DefaultStoreConfig()
	if c.EntityCapacity <= 0 {
		c.EntityCapacity = def.EntityCapacity
	}
	if c.ColumnCapacity <= 0 {
		c.ColumnCapacity = def.ColumnCapacity
	}
	if c.Workers <= 0 {
		c.Workers = def.Workers
	}
	return c
}

// logger derives the store's logger from the global one.
func (c StoreConfig) logger() zerolog.Logger {
	logger := Config.logger.With().Str("component", "depot").Logger()
	if level, err := zerolog.ParseLevel(c.LogLevel); err == nil && c.LogLevel != "" {
		logger = logger.Level(level)
	}
	return logger
}
