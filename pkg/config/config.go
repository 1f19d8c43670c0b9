package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/openfroyo/bundlekeeper/pkg/clients/appengine"
	"github.com/openfroyo/bundlekeeper/pkg/clients/cluster"
	"github.com/openfroyo/bundlekeeper/pkg/stores"
	"github.com/openfroyo/bundlekeeper/pkg/telemetry"
)

// EnvPrefix prefixes every environment override, e.g.
// BUNDLEKEEPER_ENGINE_BASE_URL for engine.base_url.
const EnvPrefix = "BUNDLEKEEPER"

// Config is the root configuration.
type Config struct {
	Store     StoreConfig      `mapstructure:"store"`
	Engine    EngineConfig     `mapstructure:"engine"`
	Cluster   ClusterConfig    `mapstructure:"cluster"`
	Jobs      JobsConfig       `mapstructure:"jobs"`
	Telemetry telemetry.Config `mapstructure:"telemetry" validate:"-"`
}

// StoreConfig configures the SQLite job store.
type StoreConfig struct {
	// Path is the database file, or ":memory:".
	Path            string        `mapstructure:"path" validate:"required"`
	MaxOpenConns    int           `mapstructure:"max_open_conns" validate:"min=0"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns" validate:"min=0"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime" validate:"min=0"`
}

// EngineConfig configures the application-engine client.
type EngineConfig struct {
	BaseURL string        `mapstructure:"base_url" validate:"required,url"`
	Token   string        `mapstructure:"token"`
	Timeout time.Duration `mapstructure:"timeout" validate:"gt=0"`

	// MaxFailures consecutive failures open the circuit breaker for
	// OpenTimeout.
	MaxFailures uint32        `mapstructure:"max_failures" validate:"min=1"`
	OpenTimeout time.Duration `mapstructure:"open_timeout" validate:"gt=0"`
}

// ClusterConfig configures plugin deployment. When disabled, bundles that
// declare plugins fail to install.
type ClusterConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	Kubeconfig string `mapstructure:"kubeconfig"`
	Namespace  string `mapstructure:"namespace" validate:"required_if=Enabled true"`
	AppName    string `mapstructure:"app_name" validate:"required_if=Enabled true"`
}

// JobsConfig configures job supervision.
type JobsConfig struct {
	// LeaseTimeout is how long a non-terminal job may go without a
	// heartbeat before reconcile expires it.
	LeaseTimeout time.Duration `mapstructure:"lease_timeout" validate:"gt=0"`

	// User is recorded on jobs started from this process.
	User string `mapstructure:"user"`
}

// Load reads config from the optional YAML file at path, then overlays
// environment variables with the BUNDLEKEEPER_ prefix.
func Load(path string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks struct constraints and the telemetry section.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed on %s", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	if err := c.Telemetry.Validate(); err != nil {
		return fmt.Errorf("invalid telemetry config: %w", err)
	}
	return nil
}

// StoreSettings maps the store section onto the store's configuration.
func (c *Config) StoreSettings() stores.Config {
	return stores.Config{
		Path:            c.Store.Path,
		MaxOpenConns:    c.Store.MaxOpenConns,
		MaxIdleConns:    c.Store.MaxIdleConns,
		ConnMaxLifetime: c.Store.ConnMaxLifetime,
	}
}

// EngineSettings maps the engine section onto the client configuration.
func (c *Config) EngineSettings() appengine.Config {
	return appengine.Config{
		BaseURL:     c.Engine.BaseURL,
		Token:       c.Engine.Token,
		Timeout:     c.Engine.Timeout,
		MaxFailures: c.Engine.MaxFailures,
		OpenTimeout: c.Engine.OpenTimeout,
	}
}

// ClusterSettings maps the cluster section onto the client configuration.
func (c *Config) ClusterSettings() cluster.Config {
	return cluster.Config{
		Kubeconfig: c.Cluster.Kubeconfig,
		Namespace:  c.Cluster.Namespace,
		AppName:    c.Cluster.AppName,
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("store.path", "bundlekeeper.db")
	v.SetDefault("store.max_open_conns", 25)
	v.SetDefault("store.max_idle_conns", 5)
	v.SetDefault("store.conn_max_lifetime", 5*time.Minute)

	v.SetDefault("engine.base_url", "http://localhost:8080/entando-app")
	v.SetDefault("engine.token", "")
	v.SetDefault("engine.timeout", 30*time.Second)
	v.SetDefault("engine.max_failures", 5)
	v.SetDefault("engine.open_timeout", 30*time.Second)

	v.SetDefault("cluster.enabled", false)
	v.SetDefault("cluster.kubeconfig", "")
	v.SetDefault("cluster.namespace", "entando")
	v.SetDefault("cluster.app_name", "")

	v.SetDefault("jobs.lease_timeout", 10*time.Minute)
	v.SetDefault("jobs.user", "")

	tel := telemetry.DefaultConfig()
	v.SetDefault("telemetry.service_name", tel.ServiceName)
	v.SetDefault("telemetry.service_version", tel.ServiceVersion)
	v.SetDefault("telemetry.environment", tel.Environment)
	v.SetDefault("telemetry.logging.level", tel.Logging.Level)
	v.SetDefault("telemetry.logging.format", tel.Logging.Format)
	v.SetDefault("telemetry.logging.output", tel.Logging.Output)
	v.SetDefault("telemetry.logging.enable_caller", tel.Logging.EnableCaller)
	v.SetDefault("telemetry.logging.enable_sampling", tel.Logging.EnableSampling)
	v.SetDefault("telemetry.logging.sampling_initial", tel.Logging.SamplingInitial)
	v.SetDefault("telemetry.logging.sampling_thereafter", tel.Logging.SamplingThereafter)
	v.SetDefault("telemetry.logging.time_format", tel.Logging.TimeFormat)
	v.SetDefault("telemetry.tracing.enabled", tel.Tracing.Enabled)
	v.SetDefault("telemetry.tracing.exporter", tel.Tracing.Exporter)
	v.SetDefault("telemetry.tracing.endpoint", tel.Tracing.Endpoint)
	v.SetDefault("telemetry.tracing.sampling_rate", tel.Tracing.SamplingRate)
	v.SetDefault("telemetry.tracing.max_export_batch_size", tel.Tracing.MaxExportBatchSize)
	v.SetDefault("telemetry.tracing.export_timeout", tel.Tracing.ExportTimeout)
	v.SetDefault("telemetry.tracing.insecure", tel.Tracing.Insecure)
	v.SetDefault("telemetry.metrics.enabled", tel.Metrics.Enabled)
	v.SetDefault("telemetry.metrics.listen_address", tel.Metrics.ListenAddress)
	v.SetDefault("telemetry.metrics.path", tel.Metrics.Path)
	v.SetDefault("telemetry.metrics.namespace", tel.Metrics.Namespace)
	v.SetDefault("telemetry.metrics.default_histogram_buckets", tel.Metrics.DefaultHistogramBuckets)
	v.SetDefault("telemetry.events.enabled", tel.Events.Enabled)
	v.SetDefault("telemetry.events.buffer_size", tel.Events.BufferSize)
	v.SetDefault("telemetry.events.flush_interval", tel.Events.FlushInterval)
	v.SetDefault("telemetry.events.max_batch_size", tel.Events.MaxBatchSize)
	v.SetDefault("telemetry.events.enable_async", tel.Events.EnableAsync)
}
