package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	Kafka      KafkaConfig
	Auth       AuthConfig
	Attendance AttendanceConfig
	Log        LogConfig
}

type ServerConfig struct {
	Port            string
	ReadTimeout     time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

type DatabaseConfig struct {
	DSN            string
	MaxOpenConns   int
	MaxIdleConns   int
	MaxLifetime    time.Duration
	TxTimeout      time.Duration
	ConnectRetries int
	MigrationsDir  string
	AutoMigrate    bool
}

type RedisConfig struct {
	Addr        string
	Enabled     bool
	ScanLockTTL time.Duration
	SnapshotTTL time.Duration
}

type KafkaConfig struct {
	Brokers []string
	Enabled bool
	Topics  TopicConfig
}

type TopicConfig struct {
	CheckedIn     string
	CheckedOut    string
	StatusChanged string
}

func (t TopicConfig) All() []string {
	return []string{t.CheckedIn, t.CheckedOut, t.StatusChanged}
}

type AuthConfig struct {
	// JWTSecret enables HS256 bearer tokens. OIDCIssuer takes precedence when set.
	JWTSecret  string
	OIDCIssuer string
	RoleClaim  string
}

type AttendanceConfig struct {
	QRSecret      string
	MaxRetries    int
	SweepEnabled  bool
	SweepInterval time.Duration
}

type LogConfig struct {
	Dir    string
	ToFile bool
}

func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            getEnv("PORT", ":8085"),
			ReadTimeout:     getEnvDuration("HTTP_READ_TIMEOUT", 15*time.Second),
			IdleTimeout:     getEnvDuration("HTTP_IDLE_TIMEOUT", 60*time.Second),
			ShutdownTimeout: getEnvDuration("HTTP_SHUTDOWN_TIMEOUT", 5*time.Second),
		},
		Database: DatabaseConfig{
			DSN:            getEnv("POSTGRES_DSN", ""),
			MaxOpenConns:   getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:   getEnvInt("DB_MAX_IDLE_CONNS", 25),
			MaxLifetime:    time.Duration(getEnvInt("DB_MAX_LIFETIME_MINUTES", 5)) * time.Minute,
			TxTimeout:      getEnvDuration("DB_TX_TIMEOUT", 5*time.Second),
			ConnectRetries: getEnvInt("DB_CONNECT_RETRIES", 5),
			MigrationsDir:  getEnv("MIGRATIONS_DIR", "./migrations"),
			AutoMigrate:    getEnvBool("AUTO_MIGRATE", true),
		},
		Redis: RedisConfig{
			Addr:        getEnv("REDIS_ADDR", "localhost:6379"),
			Enabled:     getEnvBool("REDIS_ENABLED", true),
			ScanLockTTL: getEnvDuration("SCAN_LOCK_TTL", 5*time.Second),
			SnapshotTTL: getEnvDuration("ATTENDANCE_SNAPSHOT_TTL", 10*time.Second),
		},
		Kafka: KafkaConfig{
			Brokers: getEnvList("KAFKA_BROKERS", []string{"localhost:9092"}),
			Enabled: getEnvBool("KAFKA_ENABLED", true),
			Topics: TopicConfig{
				CheckedIn:     getEnv("KAFKA_TOPIC_CHECKED_IN", "ticketly.attendance.checked_in"),
				CheckedOut:    getEnv("KAFKA_TOPIC_CHECKED_OUT", "ticketly.attendance.checked_out"),
				StatusChanged: getEnv("KAFKA_TOPIC_STATUS_CHANGED", "ticketly.event.status_changed"),
			},
		},
		Auth: AuthConfig{
			JWTSecret:  getEnv("JWT_SECRET", ""),
			OIDCIssuer: getEnv("OIDC_ISSUER", ""),
			RoleClaim:  getEnv("JWT_ROLE_CLAIM", "role"),
		},
		Attendance: AttendanceConfig{
			QRSecret:      getEnv("QR_SECRET", ""),
			MaxRetries:    getEnvInt("CHECKIN_MAX_RETRIES", 5),
			SweepEnabled:  getEnvBool("STATUS_SWEEP_ENABLED", true),
			SweepInterval: getEnvDuration("STATUS_SWEEP_INTERVAL", time.Minute),
		},
		Log: LogConfig{
			Dir:    getEnv("LOG_DIR", "logs"),
			ToFile: getEnvBool("LOG_TO_FILE", true),
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getEnvDuration accepts Go duration strings ("750ms", "2m").
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil && parsed > 0 {
			return parsed
		}
	}
	return defaultValue
}

func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
