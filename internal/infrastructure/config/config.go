package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config is the root daemon configuration.
type Config struct {
	Log       LogConfig       `mapstructure:"log"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Client    ClientConfig    `mapstructure:"client"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Riot      RiotConfig      `mapstructure:"riot"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Advisors  AdvisorsConfig  `mapstructure:"advisors"`
	Trigger   TriggerConfig   `mapstructure:"trigger"`
	Overlay   OverlayConfig   `mapstructure:"overlay"`
}

// LogConfig controls logging.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// DatabaseConfig points at the settings keystore.
type DatabaseConfig struct {
	Type string `mapstructure:"type"` // sqlite
	DSN  string `mapstructure:"dsn"`
}

// ClientConfig tunes the local client discovery layer.
type ClientConfig struct {
	PollInterval     time.Duration `mapstructure:"poll_interval"`      // lockfile poll cadence
	RequestTimeout   time.Duration `mapstructure:"request_timeout"`    // per REST call
	ReconnectDelay   time.Duration `mapstructure:"reconnect_delay"`    // event channel re-dial
	InstallPaths     []string      `mapstructure:"install_paths"`      // extra well-known install dirs
}

// TelemetryConfig tunes the in-match telemetry poller.
type TelemetryConfig struct {
	BaseURL          string        `mapstructure:"base_url"`
	SnapshotInterval time.Duration `mapstructure:"snapshot_interval"`
	EventInterval    time.Duration `mapstructure:"event_interval"`
}

// RiotConfig holds cloud API routing. The key itself lives in the keystore.
type RiotConfig struct {
	Region      string `mapstructure:"region"`       // platform host, e.g. "na1"
	Routing     string `mapstructure:"routing"`      // regional host, e.g. "americas"
	KeyFilePath string `mapstructure:"key_file"`     // watched for hot reload; optional
}

// SchedulerConfig tunes the external API scheduler.
type SchedulerConfig struct {
	Spacing        time.Duration `mapstructure:"spacing"`          // min gap between dispatches
	DefaultLimits  string        `mapstructure:"default_limits"`   // "N1:S1,N2:S2"
	SoftCeiling    int           `mapstructure:"soft_ceiling"`     // requests per soft window
	SoftWindow     time.Duration `mapstructure:"soft_window"`      // sliding window for the soft throttle
	SoftPause      time.Duration `mapstructure:"soft_pause"`       // pause once the soft ceiling trips
	RequestTimeout time.Duration `mapstructure:"request_timeout"`  // per cloud request
	MaxRetries     int           `mapstructure:"max_retries"`      // attempts on 429
}

// AdvisorsConfig tunes the advisor runtime.
type AdvisorsConfig struct {
	InvokeTimeout    time.Duration `mapstructure:"invoke_timeout"`    // per LLM request
	InvokeRetries    int           `mapstructure:"invoke_retries"`    // retries per LLM request
	MaxRounds        int           `mapstructure:"max_rounds"`        // tool-loop bound
	DraftPoll        time.Duration `mapstructure:"draft_poll"`        // champ-select poll cadence
	ResumeDelay      time.Duration `mapstructure:"resume_delay"`      // after key reload, before resuming
	RateLimitedPause time.Duration `mapstructure:"rate_limited_pause"` // min advisor pause on rate limit
}

// TriggerConfig tunes the tactical trigger engine.
type TriggerConfig struct {
	Cooldown time.Duration `mapstructure:"cooldown"` // global inter-advice cooldown
}

// OverlayConfig controls the local overlay boundary server.
type OverlayConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// Load reads layered configuration:
// defaults → ~/.rift-architect/config.yaml → ./config.yaml → RIFT_* env.
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")

	globalDir := filepath.Join(os.Getenv("HOME"), ".rift-architect")
	v.AddConfigPath(globalDir)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read global config: %w", err)
		}
	}

	for _, localDir := range []string{"./config", "."} {
		localPath := filepath.Join(localDir, "config.yaml")
		if _, err := os.Stat(localPath); err == nil {
			v2 := viper.New()
			v2.SetConfigFile(localPath)
			if err := v2.ReadInConfig(); err == nil {
				_ = v.MergeConfigMap(v2.AllSettings())
			}
			break
		}
	}

	v.SetEnvPrefix("RIFT")
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("database.type", "sqlite")
	v.SetDefault("database.dsn", "rift-architect.db")

	v.SetDefault("client.poll_interval", "3s")
	v.SetDefault("client.request_timeout", "5s")
	v.SetDefault("client.reconnect_delay", "3s")

	v.SetDefault("telemetry.base_url", "https://127.0.0.1:2999/liveclientdata")
	v.SetDefault("telemetry.snapshot_interval", "10s")
	v.SetDefault("telemetry.event_interval", "5s")

	v.SetDefault("riot.region", "na1")
	v.SetDefault("riot.routing", "americas")

	v.SetDefault("scheduler.spacing", "50ms")
	v.SetDefault("scheduler.default_limits", "20:1,100:120")
	v.SetDefault("scheduler.soft_ceiling", 100)
	v.SetDefault("scheduler.soft_window", "120s")
	v.SetDefault("scheduler.soft_pause", "30s")
	v.SetDefault("scheduler.request_timeout", "10s")
	v.SetDefault("scheduler.max_retries", 3)

	v.SetDefault("advisors.invoke_timeout", "30s")
	v.SetDefault("advisors.invoke_retries", 2)
	v.SetDefault("advisors.max_rounds", 10)
	v.SetDefault("advisors.draft_poll", "3s")
	v.SetDefault("advisors.resume_delay", "5s")
	v.SetDefault("advisors.rate_limited_pause", "120s")

	v.SetDefault("trigger.cooldown", "60s")

	v.SetDefault("overlay.host", "127.0.0.1")
	v.SetDefault("overlay.port", 18790)
}
