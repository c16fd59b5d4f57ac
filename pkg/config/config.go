package config

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

// Config holds the configuration for the J.E.E.V.E.S. room release agent
type Config struct {
	// MQTT configuration
	MQTTBroker   string `yaml:"mqtt_broker"`
	MQTTPort     int    `yaml:"mqtt_port"`
	MQTTUser     string `yaml:"mqtt_user"`
	MQTTPassword string `yaml:"mqtt_password"`
	MQTTClientID string `yaml:"mqtt_client_id"`

	// Redis configuration
	RedisHost     string `yaml:"redis_host"`
	RedisPort     int    `yaml:"redis_port"`
	RedisPassword string `yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db"`

	// Postgres configuration (release history)
	PostgresHost               string        `yaml:"postgres_host"`
	PostgresPort               int           `yaml:"postgres_port"`
	PostgresUser               string        `yaml:"postgres_user"`
	PostgresPassword           string        `yaml:"postgres_password"`
	PostgresDB                 string        `yaml:"postgres_db"`
	PostgresSSLMode            string        `yaml:"postgres_sslmode"`
	PostgresMaxConnections     int           `yaml:"postgres_max_connections"`
	PostgresMaxIdleConnections int           `yaml:"postgres_max_idle_connections"`
	PostgresConnMaxLifetime    time.Duration `yaml:"postgres_conn_max_lifetime"`

	// Service configuration
	ServiceName string `yaml:"service_name"`
	HealthPort  int    `yaml:"health_port"`
	LogLevel    string `yaml:"log_level"`
	ConfigFile  string `yaml:"-"`

	// Agent configuration
	Rooms                []string `yaml:"rooms"`
	RequestTimeoutSec    int      `yaml:"request_timeout_sec"`
	MaxEventHistory      int      `yaml:"max_event_history"`
	EnableReleaseHistory bool     `yaml:"enable_release_history"`

	// Occupancy detections
	UseActiveCall     bool `yaml:"use_active_call"`
	UseSoundLevel     bool `yaml:"use_sound_level"`
	UsePresentation   bool `yaml:"use_presentation"`
	UseUltrasound     bool `yaml:"use_ultrasound"`
	RequireUltrasound bool `yaml:"require_ultrasound"`
	UseInteraction    bool `yaml:"use_interaction"`

	// Disable occupancy checks
	StopChecksOnCheckIn bool `yaml:"stop_checks_on_check_in"`
	OccupiedStopChecks  bool `yaml:"occupied_stop_checks"`

	// Thresholds and timers
	ConsideredOccupiedMinutes  int     `yaml:"considered_occupied_minutes"`
	EmptyBeforeReleaseMinutes  int     `yaml:"empty_before_release_minutes"`
	InitialReleaseDelayMinutes int     `yaml:"initial_release_delay_minutes"`
	SoundThresholdDb           int     `yaml:"sound_threshold_db"`
	IgnoreLongerThanHours      float64 `yaml:"ignore_longer_than_hours"`
	PromptDurationSeconds      int     `yaml:"prompt_duration_seconds"`
	PeriodicIntervalMinutes    int     `yaml:"periodic_interval_minutes"`

	// Other parameters
	PlayAnnouncement bool `yaml:"play_announcement"`
	DebugMode        bool `yaml:"debug_mode"`
}

// NewConfig creates a new Config with default values
func NewConfig() *Config {
	return &Config{
		MQTTBroker:                 "localhost",
		MQTTPort:                   1883,
		RedisHost:                  "localhost",
		RedisPort:                  6379,
		RedisDB:                    0,
		PostgresHost:               "localhost",
		PostgresPort:               5432,
		PostgresUser:               "jeeves",
		PostgresDB:                 "jeeves",
		PostgresSSLMode:            "disable",
		PostgresMaxConnections:     5,
		PostgresMaxIdleConnections: 2,
		PostgresConnMaxLifetime:    30 * time.Minute,
		ServiceName:                "room-release-agent",
		HealthPort:                 8080,
		LogLevel:                   "info",
		Rooms:                      []string{},
		RequestTimeoutSec:          10,
		MaxEventHistory:            100,
		EnableReleaseHistory:       false,
		// Occupancy detections (presence is always used)
		UseActiveCall:     true,
		UseSoundLevel:     false,
		UsePresentation:   true,
		UseUltrasound:     false,
		RequireUltrasound: false,
		UseInteraction:    true,
		// Thresholds and timers
		ConsideredOccupiedMinutes:  15,
		EmptyBeforeReleaseMinutes:  5,
		InitialReleaseDelayMinutes: 10,
		SoundThresholdDb:           50,
		IgnoreLongerThanHours:      2,
		PromptDurationSeconds:      60,
		PeriodicIntervalMinutes:    2,
		PlayAnnouncement:           true,
	}
}

// Load applies the full configuration hierarchy: defaults → file → env → flags.
// The config file is taken from --config or JEEVES_CONFIG_FILE.
func (c *Config) Load(args []string) error {
	path := os.Getenv("JEEVES_CONFIG_FILE")

	pre := pflag.NewFlagSet("config-file", pflag.ContinueOnError)
	pre.ParseErrorsWhitelist.UnknownFlags = true
	pre.SetOutput(io.Discard)
	pre.StringVar(&path, "config", path, "")
	pre.BoolP("help", "h", false, "")
	_ = pre.Parse(args)

	if path != "" {
		if err := c.LoadFromFile(path); err != nil {
			return err
		}
	}

	c.LoadFromEnv()
	return c.LoadFromArgs(args)
}

// LoadFromFile overlays values from a YAML file onto the config
func (c *Config) LoadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config YAML: %w", err)
	}

	c.ConfigFile = path
	return nil
}

// LoadFromEnv loads configuration from environment variables with JEEVES_ prefix
func (c *Config) LoadFromEnv() {
	// MQTT configuration
	envString("JEEVES_MQTT_BROKER", &c.MQTTBroker)
	envInt("JEEVES_MQTT_PORT", &c.MQTTPort)
	envString("JEEVES_MQTT_USER", &c.MQTTUser)
	envString("JEEVES_MQTT_PASSWORD", &c.MQTTPassword)
	envString("JEEVES_MQTT_CLIENT_ID", &c.MQTTClientID)

	// Redis configuration
	envString("JEEVES_REDIS_HOST", &c.RedisHost)
	envInt("JEEVES_REDIS_PORT", &c.RedisPort)
	envString("JEEVES_REDIS_PASSWORD", &c.RedisPassword)
	envInt("JEEVES_REDIS_DB", &c.RedisDB)

	// Postgres configuration
	envString("JEEVES_POSTGRES_HOST", &c.PostgresHost)
	envInt("JEEVES_POSTGRES_PORT", &c.PostgresPort)
	envString("JEEVES_POSTGRES_USER", &c.PostgresUser)
	envString("JEEVES_POSTGRES_PASSWORD", &c.PostgresPassword)
	envString("JEEVES_POSTGRES_DB", &c.PostgresDB)
	envString("JEEVES_POSTGRES_SSLMODE", &c.PostgresSSLMode)

	// Service configuration
	envString("JEEVES_SERVICE_NAME", &c.ServiceName)
	envInt("JEEVES_HEALTH_PORT", &c.HealthPort)
	envString("JEEVES_LOG_LEVEL", &c.LogLevel)

	// Agent configuration
	if v := os.Getenv("JEEVES_ROOMS"); v != "" {
		c.Rooms = splitList(v)
	}
	envInt("JEEVES_REQUEST_TIMEOUT_SEC", &c.RequestTimeoutSec)
	envInt("JEEVES_MAX_EVENT_HISTORY", &c.MaxEventHistory)
	envBool("JEEVES_ENABLE_RELEASE_HISTORY", &c.EnableReleaseHistory)

	// Room release policy
	envBool("JEEVES_USE_ACTIVE_CALL", &c.UseActiveCall)
	envBool("JEEVES_USE_SOUND_LEVEL", &c.UseSoundLevel)
	envBool("JEEVES_USE_PRESENTATION", &c.UsePresentation)
	envBool("JEEVES_USE_ULTRASOUND", &c.UseUltrasound)
	envBool("JEEVES_REQUIRE_ULTRASOUND", &c.RequireUltrasound)
	envBool("JEEVES_USE_INTERACTION", &c.UseInteraction)
	envBool("JEEVES_STOP_CHECKS_ON_CHECK_IN", &c.StopChecksOnCheckIn)
	envBool("JEEVES_OCCUPIED_STOP_CHECKS", &c.OccupiedStopChecks)
	envInt("JEEVES_CONSIDERED_OCCUPIED_MINUTES", &c.ConsideredOccupiedMinutes)
	envInt("JEEVES_EMPTY_BEFORE_RELEASE_MINUTES", &c.EmptyBeforeReleaseMinutes)
	envInt("JEEVES_INITIAL_RELEASE_DELAY_MINUTES", &c.InitialReleaseDelayMinutes)
	envInt("JEEVES_SOUND_THRESHOLD_DB", &c.SoundThresholdDb)
	envFloat("JEEVES_IGNORE_LONGER_THAN_HOURS", &c.IgnoreLongerThanHours)
	envInt("JEEVES_PROMPT_DURATION_SEC", &c.PromptDurationSeconds)
	envInt("JEEVES_PERIODIC_INTERVAL_MINUTES", &c.PeriodicIntervalMinutes)
	envBool("JEEVES_PLAY_ANNOUNCEMENT", &c.PlayAnnouncement)
	envBool("JEEVES_DEBUG_MODE", &c.DebugMode)
}

// LoadFromFlags parses command-line flags and overrides config values
func (c *Config) LoadFromFlags() error {
	return c.LoadFromArgs(os.Args[1:])
}

// LoadFromArgs parses the given arguments as flags and overrides config values
func (c *Config) LoadFromArgs(args []string) error {
	fs := pflag.NewFlagSet(c.ServiceName, pflag.ContinueOnError)

	fs.StringVar(&c.ConfigFile, "config", c.ConfigFile, "YAML config file")

	// MQTT flags
	fs.StringVar(&c.MQTTBroker, "mqtt-broker", c.MQTTBroker, "MQTT broker hostname")
	fs.IntVar(&c.MQTTPort, "mqtt-port", c.MQTTPort, "MQTT broker port")
	fs.StringVar(&c.MQTTUser, "mqtt-user", c.MQTTUser, "MQTT username")
	fs.StringVar(&c.MQTTPassword, "mqtt-password", c.MQTTPassword, "MQTT password")
	fs.StringVar(&c.MQTTClientID, "mqtt-client-id", c.MQTTClientID, "MQTT client ID")

	// Redis flags
	fs.StringVar(&c.RedisHost, "redis-host", c.RedisHost, "Redis hostname")
	fs.IntVar(&c.RedisPort, "redis-port", c.RedisPort, "Redis port")
	fs.StringVar(&c.RedisPassword, "redis-password", c.RedisPassword, "Redis password")
	fs.IntVar(&c.RedisDB, "redis-db", c.RedisDB, "Redis database number")

	// Postgres flags
	fs.StringVar(&c.PostgresHost, "postgres-host", c.PostgresHost, "Postgres hostname")
	fs.IntVar(&c.PostgresPort, "postgres-port", c.PostgresPort, "Postgres port")
	fs.StringVar(&c.PostgresUser, "postgres-user", c.PostgresUser, "Postgres user")
	fs.StringVar(&c.PostgresPassword, "postgres-password", c.PostgresPassword, "Postgres password")
	fs.StringVar(&c.PostgresDB, "postgres-db", c.PostgresDB, "Postgres database")
	fs.StringVar(&c.PostgresSSLMode, "postgres-sslmode", c.PostgresSSLMode, "Postgres sslmode")

	// Service flags
	fs.StringVar(&c.ServiceName, "service-name", c.ServiceName, "Service name")
	fs.IntVar(&c.HealthPort, "health-port", c.HealthPort, "Health check HTTP port")
	fs.StringVar(&c.LogLevel, "log-level", c.LogLevel, "Log level (debug, info, warn, error)")

	// Agent flags
	fs.StringSliceVar(&c.Rooms, "rooms", c.Rooms, "Rooms to manage (comma separated)")
	fs.IntVar(&c.RequestTimeoutSec, "request-timeout", c.RequestTimeoutSec, "Device request timeout in seconds")
	fs.IntVar(&c.MaxEventHistory, "max-event-history", c.MaxEventHistory, "Maximum release log entries kept per room")
	fs.BoolVar(&c.EnableReleaseHistory, "enable-release-history", c.EnableReleaseHistory, "Record decline attempts in Postgres")

	// Room release policy flags
	fs.BoolVar(&c.UseActiveCall, "use-active-call", c.UseActiveCall, "Consider room occupied during active calls")
	fs.BoolVar(&c.UseSoundLevel, "use-sound-level", c.UseSoundLevel, "Consider room occupied when sound exceeds threshold")
	fs.BoolVar(&c.UsePresentation, "use-presentation", c.UsePresentation, "Consider room occupied while sharing")
	fs.BoolVar(&c.UseUltrasound, "use-ultrasound", c.UseUltrasound, "Use ultrasound for presence detection")
	fs.BoolVar(&c.RequireUltrasound, "require-ultrasound", c.RequireUltrasound, "Require ultrasound to confirm presence (glass walls)")
	fs.BoolVar(&c.UseInteraction, "use-interaction", c.UseInteraction, "Treat UI extension activity as presence")
	fs.BoolVar(&c.StopChecksOnCheckIn, "stop-checks-on-check-in", c.StopChecksOnCheckIn, "Stop checks after touch panel check in")
	fs.BoolVar(&c.OccupiedStopChecks, "occupied-stop-checks", c.OccupiedStopChecks, "Stop checks once room is considered occupied")
	fs.IntVar(&c.ConsideredOccupiedMinutes, "considered-occupied-minutes", c.ConsideredOccupiedMinutes, "Minutes in a row until room is considered occupied")
	fs.IntVar(&c.EmptyBeforeReleaseMinutes, "empty-before-release-minutes", c.EmptyBeforeReleaseMinutes, "Minutes empty until room is considered for release")
	fs.IntVar(&c.InitialReleaseDelayMinutes, "initial-release-delay-minutes", c.InitialReleaseDelayMinutes, "Minutes after booking start before release may happen")
	fs.IntVar(&c.SoundThresholdDb, "sound-threshold-db", c.SoundThresholdDb, "Sound level (dB) considered occupied")
	fs.Float64Var(&c.IgnoreLongerThanHours, "ignore-longer-than-hours", c.IgnoreLongerThanHours, "Skip bookings equal or longer than this")
	fs.IntVar(&c.PromptDurationSeconds, "prompt-duration", c.PromptDurationSeconds, "Seconds the check in prompt is shown before decline")
	fs.IntVar(&c.PeriodicIntervalMinutes, "periodic-interval-minutes", c.PeriodicIntervalMinutes, "Minutes between forced occupancy checks")
	fs.BoolVar(&c.PlayAnnouncement, "play-announcement", c.PlayAnnouncement, "Play announcement tone with the check in prompt")
	fs.BoolVar(&c.DebugMode, "debug", c.DebugMode, "Enable debug logging")

	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("failed to parse flags: %w", err)
	}
	return nil
}

// Validate checks that required configuration values are set
func (c *Config) Validate() error {
	if c.MQTTBroker == "" {
		return fmt.Errorf("MQTT broker is required")
	}
	if c.MQTTPort <= 0 || c.MQTTPort > 65535 {
		return fmt.Errorf("MQTT port must be between 1 and 65535")
	}
	if c.RedisHost == "" {
		return fmt.Errorf("Redis host is required")
	}
	if c.RedisPort <= 0 || c.RedisPort > 65535 {
		return fmt.Errorf("Redis port must be between 1 and 65535")
	}
	if c.HealthPort <= 0 || c.HealthPort > 65535 {
		return fmt.Errorf("Health port must be between 1 and 65535")
	}
	if c.ServiceName == "" {
		return fmt.Errorf("Service name is required")
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.LogLevel)
	}

	if len(c.Rooms) == 0 {
		return fmt.Errorf("at least one room is required")
	}
	for _, room := range c.Rooms {
		if room == "" || strings.ContainsAny(room, "/+#") {
			return fmt.Errorf("invalid room name: %q", room)
		}
	}
	if c.RequestTimeoutSec <= 0 {
		return fmt.Errorf("request timeout must be positive")
	}

	if c.ConsideredOccupiedMinutes < 0 || c.EmptyBeforeReleaseMinutes < 0 || c.InitialReleaseDelayMinutes < 0 {
		return fmt.Errorf("occupancy thresholds must not be negative")
	}
	if c.PromptDurationSeconds <= 0 {
		return fmt.Errorf("prompt duration must be positive")
	}
	if c.PeriodicIntervalMinutes <= 0 {
		return fmt.Errorf("periodic interval must be positive")
	}
	if c.IgnoreLongerThanHours <= 0 {
		return fmt.Errorf("ignore-longer-than hours must be positive")
	}

	if c.EnableReleaseHistory {
		if c.PostgresHost == "" || c.PostgresDB == "" {
			return fmt.Errorf("Postgres host and database are required for release history")
		}
		if c.PostgresPort <= 0 || c.PostgresPort > 65535 {
			return fmt.Errorf("Postgres port must be between 1 and 65535")
		}
	}

	return nil
}

// EffectiveLogLevel returns the log level, forced to debug in debug mode
func (c *Config) EffectiveLogLevel() string {
	if c.DebugMode {
		return "debug"
	}
	return c.LogLevel
}

// RequestTimeout returns the device request timeout
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSec) * time.Second
}

// MQTTAddress returns the full MQTT broker address
func (c *Config) MQTTAddress() string {
	return fmt.Sprintf("tcp://%s:%d", c.MQTTBroker, c.MQTTPort)
}

// RedisAddress returns the full Redis address
func (c *Config) RedisAddress() string {
	return fmt.Sprintf("%s:%d", c.RedisHost, c.RedisPort)
}

// PostgresConnectionString returns the lib/pq connection string
func (c *Config) PostgresConnectionString() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.PostgresHost, c.PostgresPort, c.PostgresUser, c.PostgresPassword, c.PostgresDB, c.PostgresSSLMode)
}

func envString(key string, dst *string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func envInt(key string, dst *int) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func envBool(key string, dst *bool) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func envFloat(key string, dst *float64) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
