package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

type Config struct {
	// Server settings
	ServerPort      string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	Debug           bool

	// Application paths
	LogDir     string
	DataDir    string
	UploadsDir string
	WorkDir    string

	Database DatabaseConfig
	Worker   WorkerConfig
	Upload   UploadConfig
	YouTube  YouTubeConfig
	Scripts  ScriptsConfig
	Archive  ArchiveConfig

	RateLimit RateLimitConfig
}

type DatabaseConfig struct {
	Path               string
	MaxConnections     int
	MaxIdleConnections int
	ConnMaxLifetime    time.Duration
}

type WorkerConfig struct {
	Count          int
	PollInterval   time.Duration
	ProcessTimeout time.Duration
	MaxAttempts    int
	StaleAfter     time.Duration
	SweepInterval  time.Duration
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

type UploadConfig struct {
	MaxFileSize       int64
	AllowedExtensions []string
}

// YouTubeConfig carries the intake flags explicitly; nothing reads
// ambient globals.
type YouTubeConfig struct {
	AutoIngestEnabled bool
	MaxDuration       time.Duration
	MaxFileSizeMB     int64
	FetchTimeout      time.Duration
	DownloadTimeout   time.Duration
}

type ScriptsConfig struct {
	PythonPath   string
	ScriptsPath  string
	YtDlpPath    string
	FFmpegPath   string
	DefaultModel string
}

type ArchiveConfig struct {
	Enabled   bool
	AccessKey string
	SecretKey string
	Region    string
	Endpoint  string
	Bucket    string
}

type RateLimitConfig struct {
	Enabled           bool
	RequestsPerSecond int
	BurstSize         int
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	dataDir := getEnv("DATA_DIR", "./data")

	cfg := &Config{
		ServerPort:      getEnv("SERVER_PORT", "8080"),
		ReadTimeout:     getEnvAsDuration("READ_TIMEOUT", 30*time.Second),
		WriteTimeout:    getEnvAsDuration("WRITE_TIMEOUT", 30*time.Second),
		IdleTimeout:     getEnvAsDuration("IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout: getEnvAsDuration("SHUTDOWN_TIMEOUT", 30*time.Second),
		Debug:           getEnvAsBool("DEBUG", false),

		LogDir:     getEnv("LOG_DIR", filepath.Join(dataDir, "logs")),
		DataDir:    dataDir,
		UploadsDir: getEnv("UPLOADS_DIR", filepath.Join(dataDir, "uploads")),
		WorkDir:    getEnv("WORK_DIR", filepath.Join(dataDir, "work")),

		Database: DatabaseConfig{
			Path:               getEnv("DB_PATH", filepath.Join(dataDir, "transcript.db")),
			MaxConnections:     getEnvAsInt("DB_MAX_CONNECTIONS", 10),
			MaxIdleConnections: getEnvAsInt("DB_MAX_IDLE_CONNECTIONS", 5),
			ConnMaxLifetime:    getEnvAsDuration("DB_CONN_MAX_LIFETIME", time.Hour),
		},

		Worker: WorkerConfig{
			Count:          getEnvAsInt("WORKER_COUNT", 2),
			PollInterval:   getEnvAsDuration("WORKER_POLL_INTERVAL", 5*time.Second),
			ProcessTimeout: getEnvAsDuration("WORKER_PROCESS_TIMEOUT", 30*time.Minute),
			MaxAttempts:    getEnvAsInt("WORKER_MAX_ATTEMPTS", 3),
			StaleAfter:     getEnvAsDuration("WORKER_STALE_AFTER", 45*time.Minute),
			SweepInterval:  getEnvAsDuration("WORKER_SWEEP_INTERVAL", time.Minute),
			InitialBackoff: getEnvAsDuration("WORKER_INITIAL_BACKOFF", 2*time.Second),
			MaxBackoff:     getEnvAsDuration("WORKER_MAX_BACKOFF", 30*time.Second),
		},

		Upload: UploadConfig{
			MaxFileSize: getEnvAsInt64("UPLOAD_MAX_FILE_SIZE", 2<<30), // 2GB
			AllowedExtensions: getEnvAsStringSlice("UPLOAD_ALLOWED_EXTENSIONS", []string{
				".mp3", ".mp4", ".m4a", ".wav", ".flac", ".ogg", ".opus", ".webm", ".mkv", ".mov",
			}),
		},

		YouTube: YouTubeConfig{
			AutoIngestEnabled: getEnvAsBool("YOUTUBE_AUTO_INGEST", false),
			MaxDuration:       getEnvAsDuration("YOUTUBE_MAX_DURATION", time.Hour),
			MaxFileSizeMB:     getEnvAsInt64("YOUTUBE_MAX_SIZE_MB", 500),
			FetchTimeout:      getEnvAsDuration("YOUTUBE_FETCH_TIMEOUT", 30*time.Second),
			DownloadTimeout:   getEnvAsDuration("YOUTUBE_DOWNLOAD_TIMEOUT", 10*time.Minute),
		},

		Scripts: ScriptsConfig{
			PythonPath:   getEnv("PYTHON_PATH", "python3"),
			ScriptsPath:  getEnv("SCRIPTS_PATH", "./scripts/py"),
			YtDlpPath:    getEnv("YT_DLP_PATH", "yt-dlp"),
			FFmpegPath:   getEnv("FFMPEG_PATH", "ffmpeg"),
			DefaultModel: getEnv("WHISPER_MODEL", "small"),
		},

		Archive: ArchiveConfig{
			Enabled:   getEnvAsBool("ARCHIVE_ENABLED", false),
			AccessKey: getEnv("ARCHIVE_ACCESS_KEY", ""),
			SecretKey: getEnv("ARCHIVE_SECRET_KEY", ""),
			Region:    getEnv("ARCHIVE_REGION", "us-east-1"),
			Endpoint:  getEnv("ARCHIVE_ENDPOINT", ""),
			Bucket:    getEnv("ARCHIVE_BUCKET", ""),
		},

		RateLimit: RateLimitConfig{
			Enabled:           getEnvAsBool("RATE_LIMIT_ENABLED", true),
			RequestsPerSecond: getEnvAsInt("RATE_LIMIT_RPS", 5),
			BurstSize:         getEnvAsInt("RATE_LIMIT_BURST", 10),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.ServerPort == "" {
		return errors.New("server port is required")
	}
	if c.Database.Path == "" {
		return errors.New("database path is required")
	}
	if c.Worker.Count <= 0 {
		return errors.New("worker count must be greater than 0")
	}
	if c.Worker.MaxAttempts <= 0 {
		return errors.New("worker max attempts must be greater than 0")
	}
	if c.Worker.ProcessTimeout <= 0 {
		return errors.New("worker process timeout must be greater than 0")
	}
	if c.Worker.StaleAfter <= 0 {
		return errors.New("stale threshold must be greater than 0")
	}
	if c.YouTube.MaxDuration <= 0 {
		return errors.New("youtube max duration must be greater than 0")
	}
	if c.Archive.Enabled {
		if c.Archive.Bucket == "" || c.Archive.Endpoint == "" {
			return errors.New("archive bucket and endpoint are required when archiving is enabled")
		}
	}

	return c.ensureDirs()
}

func (c *Config) ensureDirs() error {
	dirs := []struct {
		path string
		name string
	}{
		{c.LogDir, "log directory"},
		{c.UploadsDir, "uploads directory"},
		{c.WorkDir, "work directory"},
		{filepath.Dir(c.Database.Path), "database directory"},
	}

	for _, d := range dirs {
		if err := os.MkdirAll(d.path, 0o755); err != nil {
			return errors.Wrapf(err, "failed to create %s", d.name)
		}
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value, exists := os.LookupEnv(key); exists {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvAsStringSlice(key string, defaultValue []string) []string {
	if value, exists := os.LookupEnv(key); exists {
		if value = strings.TrimSpace(value); value != "" {
			return strings.Split(value, ",")
		}
	}
	return defaultValue
}
