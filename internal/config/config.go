package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Redis       RedisConfig       `mapstructure:"redis"`
	MySQL       MySQLConfig       `mapstructure:"mysql"`
	Matchmaking MatchmakingConfig `mapstructure:"matchmaking"`
	Game        GameConfig        `mapstructure:"game"`
	Maintenance MaintenanceConfig `mapstructure:"maintenance"`
	Instance    InstanceConfig    `mapstructure:"instance"`
}

type ServerConfig struct {
	Port int    `mapstructure:"port"`
	Host string `mapstructure:"host"`
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type MySQLConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

type MatchmakingConfig struct {
	InviteTTL time.Duration `mapstructure:"invite_ttl"`
}

type GameConfig struct {
	TickRate     int           `mapstructure:"tick_rate"`
	ScoreLimit   int           `mapstructure:"score_limit"`
	TimeLimit    time.Duration `mapstructure:"time_limit"`
	ForfeitGrace time.Duration `mapstructure:"forfeit_grace"`
}

type MaintenanceConfig struct {
	SweepSpec string `mapstructure:"sweep_spec"`
}

type InstanceConfig struct {
	ID string `mapstructure:"id"`
}

func Load() (*Config, error) {
	// Set default values
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("redis.address", "localhost:6379")
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("mysql.dsn", "arcade_user:arcade_pass@tcp(localhost:3306)/arcade_db?parseTime=true")
	viper.SetDefault("mysql.max_open_conns", 25)
	viper.SetDefault("mysql.max_idle_conns", 10)
	viper.SetDefault("mysql.conn_max_lifetime", 5*time.Minute)
	viper.SetDefault("matchmaking.invite_ttl", 30*time.Second)
	viper.SetDefault("game.tick_rate", 60)
	viper.SetDefault("game.score_limit", 11)
	viper.SetDefault("game.time_limit", 5*time.Minute)
	viper.SetDefault("game.forfeit_grace", 10*time.Second)
	viper.SetDefault("maintenance.sweep_spec", "@every 1s")
	viper.SetDefault("instance.id", "gateway-1")

	// Configuration file settings
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("/etc/arcade-system/")

	// Environment variable support
	viper.AutomaticEnv()

	// Environment variable mappings
	viper.BindEnv("server.port", "SERVER_PORT")
	viper.BindEnv("server.host", "SERVER_HOST")
	viper.BindEnv("redis.address", "REDIS_ADDRESS")
	viper.BindEnv("redis.password", "REDIS_PASSWORD")
	viper.BindEnv("redis.db", "REDIS_DB")
	viper.BindEnv("mysql.dsn", "MYSQL_DSN")
	viper.BindEnv("mysql.max_open_conns", "MYSQL_MAX_OPEN_CONNS")
	viper.BindEnv("mysql.max_idle_conns", "MYSQL_MAX_IDLE_CONNS")
	viper.BindEnv("mysql.conn_max_lifetime", "MYSQL_CONN_MAX_LIFETIME")
	viper.BindEnv("matchmaking.invite_ttl", "MATCHMAKING_INVITE_TTL")
	viper.BindEnv("game.tick_rate", "GAME_TICK_RATE")
	viper.BindEnv("game.score_limit", "GAME_SCORE_LIMIT")
	viper.BindEnv("game.time_limit", "GAME_TIME_LIMIT")
	viper.BindEnv("game.forfeit_grace", "GAME_FORFEIT_GRACE")
	viper.BindEnv("maintenance.sweep_spec", "MAINTENANCE_SWEEP_SPEC")
	viper.BindEnv("instance.id", "INSTANCE_ID")

	// Read configuration file (optional - will use defaults/env vars if not found)
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		// Config file not found, continue with defaults and environment variables
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

// LoadFromFile loads configuration from a specific file path
func LoadFromFile(configPath string) (*Config, error) {
	viper.SetConfigFile(configPath)

	if err := viper.ReadInConfig(); err != nil {
		return nil, err
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

// GetConfigString returns a formatted string representation of the config
func (c *Config) GetConfigString() string {
	return fmt.Sprintf(
		"Server: %s:%d, Redis: %s, MySQL: %s, Instance: %s",
		c.Server.Host,
		c.Server.Port,
		c.Redis.Address,
		c.MySQL.DSN,
		c.Instance.ID,
	)
}
