package config

import (
	"fmt"
	"strconv"
	"time"

	"campus-map-server/internal/shared/utils"

	"github.com/joho/godotenv"
)

type Config struct {
	Server      ServerConfig
	Database    DatabaseConfig
	Redis       RedisConfig
	Auth        AuthConfig
	Frontend    FrontendConfig
	Logging     LoggingConfig
	RateLimit   RateLimitConfig
	Map         MapConfig
	Geolocation GeolocationConfig
	Metrics     MetricsConfig
}

type RedisConfig struct {
	Enabled   bool
	URL       string
	Host      string
	Port      string
	Password  string
	DB        int
	MarkerTTL time.Duration
}

type ServerConfig struct {
	Port         string
	URL          string
	Environment  string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type DatabaseConfig struct {
	Host            string
	Port            string
	User            string
	Password        string
	Name            string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	// MigrationsPath overrides the embedded schema files when set.
	MigrationsPath  string
}

type AuthConfig struct {
	SessionSecret   string
	TokenExpiration time.Duration
	CookieSecure    bool
	CookieSameSite  string
}

type FrontendConfig struct {
	URL       string
	CORSDebug bool
}

type LoggingConfig struct {
	Level      string
	Format     string
	JSONFormat bool
}

type RateLimitConfig struct {
	Enabled           bool
	RequestsPerSecond float64
	BurstSize         int
	// Inbound websocket messages per second for a single viewer.
	MessagesPerSecond float64
	MessageBurst      int
	TrustProxy        bool
}

// MapConfig holds the campus view defaults and timings the controller uses.
type MapConfig struct {
	PresetsPath         string
	HomeLongitude       float64
	HomeLatitude        float64
	HomeHeight          float64
	HomePitchDegrees    float64
	StatusTimeout       time.Duration
	SearchStatusTimeout time.Duration
	FlyDuration         time.Duration
	FallbackDuration    time.Duration
}

type GeolocationConfig struct {
	HighAccuracy bool
	MaximumAge   time.Duration
	Timeout      time.Duration
	ProbeTimeout time.Duration
}

type MetricsConfig struct {
	Enabled bool
	Path    string
}

var GlobalConfig *Config

func Init() error {
	if err := godotenv.Load(); err != nil {
		fmt.Println("No .env file found, using system environment variables")
	}

	config, err := load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	if err := config.validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	GlobalConfig = config
	return nil
}

// Load builds a configuration from the environment without touching GlobalConfig.
func Load() (*Config, error) {
	config, err := load()
	if err != nil {
		return nil, err
	}
	if err := config.validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func load() (*Config, error) {
	mapConfig, err := loadMapConfig()
	if err != nil {
		return nil, err
	}

	config := &Config{
		Server:      loadServerConfig(),
		Database:    loadDatabaseConfig(),
		Redis:       loadRedisConfig(),
		Auth:        loadAuthConfig(),
		Frontend:    loadFrontendConfig(),
		Logging:     loadLoggingConfig(),
		RateLimit:   loadRateLimitConfig(),
		Map:         mapConfig,
		Geolocation: loadGeolocationConfig(),
		Metrics:     loadMetricsConfig(),
	}

	return config, nil
}

func loadRedisConfig() RedisConfig {
	enabled := utils.GetEnv("REDIS_ENABLED", "true") == "true"
	redisURL := utils.GetEnv("REDIS_URL", "")

	db, _ := strconv.Atoi(utils.GetEnv("REDIS_DB", "0"))
	markerTTL, _ := strconv.Atoi(utils.GetEnv("REDIS_MARKER_TTL_HOURS", "24"))

	return RedisConfig{
		Enabled:   enabled,
		URL:       redisURL,
		Host:      utils.GetEnv("REDIS_HOST", "localhost"),
		Port:      utils.GetEnv("REDIS_PORT", "6379"),
		Password:  utils.GetEnv("REDIS_PASSWORD", ""),
		DB:        db,
		MarkerTTL: time.Duration(markerTTL) * time.Hour,
	}
}

func loadServerConfig() ServerConfig {
	readTimeout, _ := strconv.Atoi(utils.GetEnv("SERVER_READ_TIMEOUT_SECONDS", "15"))
	writeTimeout, _ := strconv.Atoi(utils.GetEnv("SERVER_WRITE_TIMEOUT_SECONDS", "15"))
	idleTimeout, _ := strconv.Atoi(utils.GetEnv("SERVER_IDLE_TIMEOUT_SECONDS", "60"))

	return ServerConfig{
		Port:         utils.GetEnv("SERVER_PORT", "8080"),
		URL:          utils.GetEnv("SERVER_URL", "http://localhost:8080"),
		Environment:  utils.GetEnv("ENVIRONMENT", "development"),
		ReadTimeout:  time.Duration(readTimeout) * time.Second,
		WriteTimeout: time.Duration(writeTimeout) * time.Second,
		IdleTimeout:  time.Duration(idleTimeout) * time.Second,
	}
}

func loadDatabaseConfig() DatabaseConfig {
	maxOpenConns, _ := strconv.Atoi(utils.GetEnv("DB_MAX_OPEN_CONNS", "25"))
	maxIdleConns, _ := strconv.Atoi(utils.GetEnv("DB_MAX_IDLE_CONNS", "5"))
	connMaxLifetime, _ := strconv.Atoi(utils.GetEnv("DB_CONN_MAX_LIFETIME_MINUTES", "5"))

	return DatabaseConfig{
		Host:            utils.GetEnv("DB_HOST", "localhost"),
		Port:            utils.GetEnv("DB_PORT", "5432"),
		User:            utils.GetEnv("DB_USER", "postgres"),
		Password:        utils.GetEnv("DB_PASSWORD", "postgres"),
		Name:            utils.GetEnv("DB_NAME", "campus_map"),
		SSLMode:         utils.GetEnv("DB_SSLMODE", "disable"),
		MaxOpenConns:    maxOpenConns,
		MaxIdleConns:    maxIdleConns,
		ConnMaxLifetime: time.Duration(connMaxLifetime) * time.Minute,
		MigrationsPath:  utils.GetEnv("DB_MIGRATIONS_PATH", ""),
	}
}

func loadAuthConfig() AuthConfig {
	tokenExpiration, _ := strconv.Atoi(utils.GetEnv("SESSION_EXPIRATION_HOURS", "24"))

	environment := utils.GetEnv("ENVIRONMENT", "development")
	cookieSecure := environment == "production"

	return AuthConfig{
		SessionSecret:   utils.GetEnv("SESSION_SECRET", ""),
		TokenExpiration: time.Duration(tokenExpiration) * time.Hour,
		CookieSecure:    cookieSecure,
		CookieSameSite:  utils.GetEnv("COOKIE_SAME_SITE", "lax"),
	}
}

func loadFrontendConfig() FrontendConfig {
	corsDebug := utils.GetEnv("CORS_DEBUG", "") == "true"

	return FrontendConfig{
		URL:       utils.GetEnv("FRONTEND_URL", "http://localhost:3000"),
		CORSDebug: corsDebug,
	}
}

func loadLoggingConfig() LoggingConfig {
	environment := utils.GetEnv("ENVIRONMENT", "development")
	jsonFormat := environment == "production"

	return LoggingConfig{
		Level:      utils.GetEnv("LOG_LEVEL", "debug"),
		Format:     utils.GetEnv("LOG_FORMAT", "text"),
		JSONFormat: jsonFormat,
	}
}

func loadRateLimitConfig() RateLimitConfig {
	enabled := utils.GetEnv("RATE_LIMIT_ENABLED", "true") == "true"
	requestsPerSecond, _ := strconv.ParseFloat(utils.GetEnv("RATE_LIMIT_REQUESTS_PER_SECOND", "10"), 64)
	burstSize, _ := strconv.Atoi(utils.GetEnv("RATE_LIMIT_BURST_SIZE", "20"))
	messagesPerSecond, _ := strconv.ParseFloat(utils.GetEnv("RATE_LIMIT_MESSAGES_PER_SECOND", "20"), 64)
	messageBurst, _ := strconv.Atoi(utils.GetEnv("RATE_LIMIT_MESSAGE_BURST", "40"))

	return RateLimitConfig{
		Enabled:           enabled,
		RequestsPerSecond: requestsPerSecond,
		BurstSize:         burstSize,
		MessagesPerSecond: messagesPerSecond,
		MessageBurst:      messageBurst,
		TrustProxy:        utils.GetEnv("RATE_LIMIT_TRUST_PROXY", "false") == "true",
	}
}

func loadMapConfig() (MapConfig, error) {
	homeLon, err := strconv.ParseFloat(utils.GetEnv("MAP_HOME_LONGITUDE", "28.2314"), 64)
	if err != nil {
		return MapConfig{}, fmt.Errorf("invalid MAP_HOME_LONGITUDE: %w", err)
	}
	homeLat, err := strconv.ParseFloat(utils.GetEnv("MAP_HOME_LATITUDE", "-25.7550"), 64)
	if err != nil {
		return MapConfig{}, fmt.Errorf("invalid MAP_HOME_LATITUDE: %w", err)
	}
	homeHeight, _ := strconv.ParseFloat(utils.GetEnv("MAP_HOME_HEIGHT_METERS", "300"), 64)
	homePitch, _ := strconv.ParseFloat(utils.GetEnv("MAP_HOME_PITCH_DEGREES", "-35"), 64)
	statusTimeout, _ := strconv.Atoi(utils.GetEnv("MAP_STATUS_TIMEOUT_MS", "3000"))
	searchStatusTimeout, _ := strconv.Atoi(utils.GetEnv("MAP_SEARCH_STATUS_TIMEOUT_MS", "2000"))
	flyDuration, _ := strconv.Atoi(utils.GetEnv("MAP_FLY_DURATION_MS", "1600"))
	fallbackDuration, _ := strconv.Atoi(utils.GetEnv("MAP_FALLBACK_DURATION_MS", "1200"))

	return MapConfig{
		PresetsPath:         utils.GetEnv("MAP_PRESETS_PATH", ""),
		HomeLongitude:       homeLon,
		HomeLatitude:        homeLat,
		HomeHeight:          homeHeight,
		HomePitchDegrees:    homePitch,
		StatusTimeout:       time.Duration(statusTimeout) * time.Millisecond,
		SearchStatusTimeout: time.Duration(searchStatusTimeout) * time.Millisecond,
		FlyDuration:         time.Duration(flyDuration) * time.Millisecond,
		FallbackDuration:    time.Duration(fallbackDuration) * time.Millisecond,
	}, nil
}

func loadGeolocationConfig() GeolocationConfig {
	maximumAge, _ := strconv.Atoi(utils.GetEnv("GEOLOCATION_MAXIMUM_AGE_MS", "1000"))
	timeout, _ := strconv.Atoi(utils.GetEnv("GEOLOCATION_TIMEOUT_MS", "5000"))
	probeTimeout, _ := strconv.Atoi(utils.GetEnv("GEOLOCATION_PROBE_TIMEOUT_MS", "30000"))

	return GeolocationConfig{
		HighAccuracy: utils.GetEnv("GEOLOCATION_HIGH_ACCURACY", "true") == "true",
		MaximumAge:   time.Duration(maximumAge) * time.Millisecond,
		Timeout:      time.Duration(timeout) * time.Millisecond,
		ProbeTimeout: time.Duration(probeTimeout) * time.Millisecond,
	}
}

func loadMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Enabled: utils.GetEnv("METRICS_ENABLED", "true") == "true",
		Path:    utils.GetEnv("METRICS_PATH", "/metrics"),
	}
}

func (c *Config) validate() error {
	if c.Auth.SessionSecret == "" {
		return fmt.Errorf("SESSION_SECRET is required")
	}

	if len(c.Auth.SessionSecret) < 32 {
		return fmt.Errorf("SESSION_SECRET must be at least 32 characters long")
	}

	if c.Server.Port == "" {
		return fmt.Errorf("SERVER_PORT is required")
	}

	if c.Database.Host == "" {
		return fmt.Errorf("DB_HOST is required")
	}

	if c.Database.Name == "" {
		return fmt.Errorf("DB_NAME is required")
	}

	if c.Map.HomeLatitude < -90 || c.Map.HomeLatitude > 90 {
		return fmt.Errorf("MAP_HOME_LATITUDE must be within [-90, 90]")
	}

	if c.Map.HomeLongitude < -180 || c.Map.HomeLongitude > 180 {
		return fmt.Errorf("MAP_HOME_LONGITUDE must be within [-180, 180]")
	}

	if c.Map.StatusTimeout <= 0 {
		return fmt.Errorf("MAP_STATUS_TIMEOUT_MS must be positive")
	}

	return nil
}

func (c *Config) ConnectionString() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Database.Host,
		c.Database.Port,
		c.Database.User,
		c.Database.Password,
		c.Database.Name,
		c.Database.SSLMode,
	)
}
