package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds application configuration loaded from environment.
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	JWT       JWTConfig
	Operator  OperatorConfig
	Recording RecordingConfig
	Camera    CameraConfig
	AWS       AWSConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port               string
	ReadTimeout        int
	WriteTimeout       int
	CORSAllowedOrigins string // comma-separated, or "*" for all
}

// DatabaseConfig holds PostgreSQL connection settings for the recordings index.
type DatabaseConfig struct {
	URL      string // if set, used as-is
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// RedisConfig holds Redis connection settings for the archive queue.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// JWTConfig holds JWT signing and validation settings.
type JWTConfig struct {
	Secret      string
	ExpireHours int
}

// OperatorConfig is the single operator identity allowed to control
// recording and camera switching.
type OperatorConfig struct {
	Username     string
	PasswordHash string // bcrypt; takes precedence over Password
	Password     string // plain fallback, hashed at startup
}

// RecordingConfig holds recording storage and encoder settings.
type RecordingConfig struct {
	Dir           string // storage root, one directory per session
	FFmpegPath    string // empty = "ffmpeg" on PATH
	DefaultWidth  int
	DefaultHeight int
	DefaultFPS    int
}

// CameraConfig holds capture device settings.
type CameraConfig struct {
	DeviceID int // initially selected capture device
}

// AWSConfig holds credentials and the archive bucket. Empty region disables
// archival entirely.
type AWSConfig struct {
	Region               string
	AccessKeyID          string
	SecretAccessKey      string
	RecordingsBucket     string
	PresignExpireMinutes int
}

// DSN returns the PostgreSQL connection string. If DatabaseConfig.URL is set
// (DATABASE_URL env), it is used as-is; otherwise built from components.
func (c DatabaseConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode,
	)
}

// Load reads configuration from environment, with optional .env file.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Port:               getEnv("PORT", "8080"),
			ReadTimeout:        getEnvInt("READ_TIMEOUT_SEC", 30),
			WriteTimeout:       getEnvInt("WRITE_TIMEOUT_SEC", 30),
			CORSAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000"),
		},
		Database: DatabaseConfig{
			URL:      getEnv("DATABASE_URL", ""),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "billiards"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		JWT: JWTConfig{
			Secret:      getEnv("JWT_SECRET", "change-me-in-production"),
			ExpireHours: getEnvInt("JWT_EXPIRE_HOURS", 24),
		},
		Operator: OperatorConfig{
			Username:     getEnv("OPERATOR_USERNAME", "operator"),
			PasswordHash: getEnv("OPERATOR_PASSWORD_HASH", ""),
			Password:     getEnv("OPERATOR_PASSWORD", ""),
		},
		Recording: RecordingConfig{
			Dir:           getEnv("RECORDINGS_DIR", "./recordings"),
			FFmpegPath:    getEnv("FFMPEG_PATH", ""),
			DefaultWidth:  getEnvInt("VIDEO_WIDTH", 1280),
			DefaultHeight: getEnvInt("VIDEO_HEIGHT", 720),
			DefaultFPS:    getEnvInt("VIDEO_FPS", 30),
		},
		Camera: CameraConfig{
			DeviceID: getEnvInt("CAMERA_DEVICE_ID", 0),
		},
		AWS: AWSConfig{
			Region:               getEnv("AWS_REGION", ""),
			AccessKeyID:          getEnv("AWS_ACCESS_KEY_ID", ""),
			SecretAccessKey:      getEnv("AWS_SECRET_ACCESS_KEY", ""),
			RecordingsBucket:     getEnv("AWS_S3_RECORDINGS_BUCKET", ""),
			PresignExpireMinutes: getEnvInt("AWS_PRESIGN_EXPIRE_MINUTES", 15),
		},
	}
	return cfg, nil
}

// ArchiveEnabled reports whether the S3 archive pipeline is configured.
func (c *Config) ArchiveEnabled() bool {
	return c.AWS.Region != "" && c.AWS.RecordingsBucket != ""
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
