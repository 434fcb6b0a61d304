package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Simulator SimulatorConfig
	Placement PlacementConfig
	Reroute   RerouteConfig
	Artifacts ArtifactConfig
	App       AppConfig
}

type ServerConfig struct {
	Port string
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	// DSN is used by the pgx pool; when empty it is built from the fields above.
	DSN string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type SimulatorConfig struct {
	URL          string
	Timeout      time.Duration
	TickInterval time.Duration
	MaxTicks     int64
	NetworkDir   string
	FlushSpec    string
}

type PlacementConfig struct {
	MinDistance   float64
	MinLaneLength float64
	Policy        string
}

type RerouteConfig struct {
	DestinationPolicy string
	DestinationEdge   string
}

type ArtifactConfig struct {
	Dir       string
	S3Bucket  string
	S3Prefix  string
	AWSRegion string
}

type AppConfig struct {
	Environment string
	LogLevel    string
	LogFormat   string
	Version     string
}

func Load() (*Config, error) {
	// Load .env file if it exists (ignore error in production)
	if err := godotenv.Load(); err != nil {
		log.Debug().Msg("no .env file found, using environment variables")
	}

	cfg := &Config{
		Server: ServerConfig{
			Port: getEnv("PORT", "8080"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", ""),
			Name:     getEnv("DB_NAME", "v2i"),
			DSN:      getEnv("DB_DSN", ""),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Simulator: SimulatorConfig{
			URL:          getEnv("SIMULATOR_URL", "http://localhost:8813"),
			Timeout:      getEnvAsDuration("SIMULATOR_TIMEOUT", 30*time.Second),
			TickInterval: getEnvAsDuration("TICK_INTERVAL", 100*time.Millisecond),
			MaxTicks:     int64(getEnvAsInt("MAX_TICKS", 0)),
			NetworkDir:   getEnv("NETWORK_DIR", "networks"),
			FlushSpec:    getEnv("FLUSH_SCHEDULE", "@every 10s"),
		},
		Placement: PlacementConfig{
			MinDistance:   getEnvAsFloat("SENSOR_MIN_DISTANCE", 100),
			MinLaneLength: getEnvAsFloat("SENSOR_MIN_LANE_LENGTH", 5),
			Policy:        getEnv("SENSOR_PLACEMENT_POLICY", "nearest-lane"),
		},
		Reroute: RerouteConfig{
			DestinationPolicy: getEnv("DESTINATION_POLICY", "last-edge"),
			DestinationEdge:   getEnv("DESTINATION_EDGE", ""),
		},
		Artifacts: ArtifactConfig{
			Dir:       getEnv("ARTIFACT_DIR", "artifacts"),
			S3Bucket:  getEnv("ARTIFACT_S3_BUCKET", ""),
			S3Prefix:  getEnv("ARTIFACT_S3_PREFIX", ""),
			AWSRegion: getEnv("AWS_REGION", ""),
		},
		App: AppConfig{
			Environment: getEnv("APP_ENV", "development"),
			LogLevel:    getEnv("LOG_LEVEL", "info"),
			LogFormat:   getEnv("LOG_FORMAT", "json"),
			Version:     getEnv("APP_VERSION", "1.0.0"),
		},
	}

	if cfg.Reroute.DestinationPolicy == "last-edge" && cfg.Reroute.DestinationEdge != "" {
		log.Warn().Str("edge", cfg.Reroute.DestinationEdge).Msg("DESTINATION_EDGE ignored with DESTINATION_POLICY=last-edge")
		cfg.Reroute.DestinationEdge = ""
	}

	if cfg.Database.DSN == "" {
		cfg.Database.DSN = cfg.Database.URL()
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("PORT is required")
	}
	if c.Database.Host == "" {
		return fmt.Errorf("DB_HOST is required")
	}
	if c.Simulator.URL == "" {
		return fmt.Errorf("SIMULATOR_URL is required")
	}
	if c.Placement.MinDistance <= 0 {
		return fmt.Errorf("SENSOR_MIN_DISTANCE must be positive")
	}
	if c.Placement.MinLaneLength <= 0 {
		return fmt.Errorf("SENSOR_MIN_LANE_LENGTH must be positive")
	}
	if c.Placement.Policy != "nearest-lane" {
		return fmt.Errorf("unknown SENSOR_PLACEMENT_POLICY %q", c.Placement.Policy)
	}
	switch c.Reroute.DestinationPolicy {
	case "last-edge":
	case "fixed":
		if c.Reroute.DestinationEdge == "" {
			return fmt.Errorf("DESTINATION_EDGE is required when DESTINATION_POLICY=fixed")
		}
	default:
		return fmt.Errorf("unknown DESTINATION_POLICY %q", c.Reroute.DestinationPolicy)
	}
	return nil
}

// KeywordDSN returns the lib/pq keyword DSN.
func (d DatabaseConfig) KeywordDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		d.Host, d.Port, d.User, d.Password, d.Name,
	)
}

// URL returns the postgres:// form understood by pgx.
func (d DatabaseConfig) URL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable", d.User, d.Password, d.Host, d.Port, d.Name)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		log.Warn().Str("key", key).Int("default", defaultValue).Msg("invalid integer, using default")
		return defaultValue
	}

	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		log.Warn().Str("key", key).Float64("default", defaultValue).Msg("invalid number, using default")
		return defaultValue
	}

	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := time.ParseDuration(valueStr)
	if err != nil {
		log.Warn().Str("key", key).Dur("default", defaultValue).Msg("invalid duration, using default")
		return defaultValue
	}

	return value
}
