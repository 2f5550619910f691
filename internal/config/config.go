// Package config loads the application configuration from YAML.
package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// Conf holds the settings loaded by Init.
var Conf Config

// Config mirrors the layout of configs/config.yaml.
type Config struct {
	Server        ServerConfig        `mapstructure:"server"`
	Database      DatabaseConfig      `mapstructure:"database"`
	JWT           JWTConfig           `mapstructure:"jwt"`
	Log           LogConfig           `mapstructure:"log"`
	Kafka         KafkaConfig         `mapstructure:"kafka"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	MinIO         MinIOConfig         `mapstructure:"minio"`
	Builder       BuilderConfig       `mapstructure:"builder"`
	Assessment    AssessmentConfig    `mapstructure:"assessment"`
}

type ServerConfig struct {
	Port string `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
}

type DatabaseConfig struct {
	MySQL MySQLConfig `mapstructure:"mysql"`
	Redis RedisConfig `mapstructure:"redis"`
}

type MySQLConfig struct {
	DSN string `mapstructure:"dsn"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type JWTConfig struct {
	Secret                 string `mapstructure:"secret"`
	AccessTokenExpireHours int    `mapstructure:"access_token_expire_hours"`
	RefreshTokenExpireDays int    `mapstructure:"refresh_token_expire_days"`
}

// LogConfig selects level, encoding (json or console) and an optional log directory.
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"output_path"`
}

// KafkaConfig points at the broker and the topic carrying verdict events.
type KafkaConfig struct {
	Brokers string `mapstructure:"brokers"`
	Topic   string `mapstructure:"topic"`
	GroupID string `mapstructure:"group_id"`
}

type ElasticsearchConfig struct {
	Addresses string `mapstructure:"addresses"`
	Username  string `mapstructure:"username"`
	Password  string `mapstructure:"password"`
	IndexName string `mapstructure:"index_name"`
}

type MinIOConfig struct {
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	UseSSL          bool   `mapstructure:"use_ssl"`
	BucketName      string `mapstructure:"bucket_name"`
	PresignMinutes  int    `mapstructure:"presign_minutes"`
}

// BuilderConfig tunes indicator builder sessions.
type BuilderConfig struct {
	LockTTLMinutes          int `mapstructure:"lock_ttl_minutes"`
	SnapshotCacheTTLMinutes int `mapstructure:"snapshot_cache_ttl_minutes"`
}

// AssessmentConfig tunes live checklist evaluation.
type AssessmentConfig struct {
	LiveDebounceMs int `mapstructure:"live_debounce_ms"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8081")
	v.SetDefault("server.mode", "debug")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("jwt.access_token_expire_hours", 24)
	v.SetDefault("jwt.refresh_token_expire_days", 7)
	v.SetDefault("kafka.topic", "assessment.verdicts")
	v.SetDefault("kafka.group_id", "blgu-assess-verdicts")
	v.SetDefault("elasticsearch.index_name", "indicators")
	v.SetDefault("minio.bucket_name", "indicator-snapshots")
	v.SetDefault("minio.presign_minutes", 60)
	v.SetDefault("builder.lock_ttl_minutes", 30)
	v.SetDefault("builder.snapshot_cache_ttl_minutes", 60)
	v.SetDefault("assessment.live_debounce_ms", 300)
}

// Load reads configPath into a fresh Config, applying defaults for any key
// the file leaves out.
func Load(configPath string) (Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")

	var c Config
	if err := v.ReadInConfig(); err != nil {
		return c, fmt.Errorf("read config file: %w", err)
	}
	if err := v.Unmarshal(&c); err != nil {
		return c, fmt.Errorf("unmarshal config: %w", err)
	}
	return c, nil
}

// Init loads configPath into Conf and panics on failure.
func Init(configPath string) {
	c, err := Load(configPath)
	if err != nil {
		panic(err)
	}
	Conf = c
}
