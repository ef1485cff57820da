package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"

	"facilityops/lottery/internal/lottery"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	State    StateConfig    `mapstructure:"state"`
	JWT      JWTConfig      `mapstructure:"jwt"`
	Lottery  LotteryConfig  `mapstructure:"lottery"`
	Admin    AdminConfig    `mapstructure:"admin"`
	CORS     CORSConfig     `mapstructure:"cors"`
	Log      LogConfig      `mapstructure:"log"`
}

type ServerConfig struct {
	Host                    string        `mapstructure:"host"`
	Port                    int           `mapstructure:"port"`
	Mode                    string        `mapstructure:"mode"`
	ReadTimeout             time.Duration `mapstructure:"read_timeout"`
	WriteTimeout            time.Duration `mapstructure:"write_timeout"`
	GracefulShutdownTimeout time.Duration `mapstructure:"graceful_shutdown_timeout"`
}

type DatabaseConfig struct {
	Driver   string         `mapstructure:"driver"` // "postgres" | "sqlite"
	Postgres PostgresConfig `mapstructure:"postgres"`
	SQLite   SQLiteConfig   `mapstructure:"sqlite"`
	Redis    RedisConfig    `mapstructure:"redis"`
}

type PostgresConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	DB              string        `mapstructure:"db"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

type SQLiteConfig struct {
	Path        string `mapstructure:"path"`
	AutoMigrate bool   `mapstructure:"auto_migrate"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	PoolSize int    `mapstructure:"pool_size"`
}

type StateConfig struct {
	Backend string `mapstructure:"backend"` // "redis" | "memory"
}

type JWTConfig struct {
	SigningKey     string        `mapstructure:"signing_key"`
	Issuer         string        `mapstructure:"issuer"`
	AccessTokenTTL time.Duration `mapstructure:"access_token_ttl"`
}

type LotteryConfig struct {
	StartDelay      time.Duration `mapstructure:"start_delay"`
	StepDelay       time.Duration `mapstructure:"step_delay"`
	CompletionDelay time.Duration `mapstructure:"completion_delay"`
	SessionTTL      time.Duration `mapstructure:"session_ttl"`
	LockTTL         time.Duration `mapstructure:"lock_ttl"`
	CommitRetries   int           `mapstructure:"commit_retries"`
	PollInterval    time.Duration `mapstructure:"poll_interval"`
}

// Timing returns the reveal pacing used by the orchestrator.
func (c LotteryConfig) Timing() lottery.Timing {
	return lottery.Timing{
		StartDelay:      c.StartDelay,
		StepDelay:       c.StepDelay,
		CompletionDelay: c.CompletionDelay,
	}
}

type AdminConfig struct {
	UserIDs []string `mapstructure:"user_ids"`
}

type CORSConfig struct {
	AllowedOrigins   []string      `mapstructure:"allowed_origins"`
	AllowedMethods   []string      `mapstructure:"allowed_methods"`
	AllowedHeaders   []string      `mapstructure:"allowed_headers"`
	AllowCredentials bool          `mapstructure:"allow_credentials"`
	MaxAge           time.Duration `mapstructure:"max_age"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.graceful_shutdown_timeout", 10*time.Second)

	v.SetDefault("database.driver", "postgres")
	v.SetDefault("state.backend", "redis")
	v.SetDefault("jwt.access_token_ttl", time.Hour)

	timing := lottery.DefaultTiming()
	v.SetDefault("lottery.start_delay", timing.StartDelay)
	v.SetDefault("lottery.step_delay", timing.StepDelay)
	v.SetDefault("lottery.completion_delay", timing.CompletionDelay)
	v.SetDefault("lottery.session_ttl", 12*time.Hour)
	v.SetDefault("lottery.lock_ttl", 2*time.Minute)
	v.SetDefault("lottery.commit_retries", 3)
	v.SetDefault("lottery.poll_interval", 30*time.Second)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

// Load reads config.yaml, overlays environment variables, and returns Config.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	setDefaults(v)

	// Environment variable override: DATABASE_POSTGRES_HOST -> database.postgres.host
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
