package config

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config stores the application configuration.
type Config struct {
	// Discord
	DiscordToken  string `env:"DISCORD_TOKEN"`
	CommandPrefix string `env:"COMMAND_PREFIX" envDefault:"!"`

	// 外部工具
	YTDLPPath   string `env:"YTDLP_PATH" envDefault:"yt-dlp"`
	FFmpegPath  string `env:"FFMPEG_PATH" envDefault:"ffmpeg"`
	CookiesFile string `env:"YTDLP_COOKIES" envDefault:"cookies.txt"`
	YTDLPFormat string `env:"YTDLP_FORMAT" envDefault:"251/bestaudio"`

	// 搜索解析
	ResolveTimeout    time.Duration `env:"RESOLVE_TIMEOUT" envDefault:"20s"`
	ResolveRatePerSec float64       `env:"RESOLVE_RATE_PER_SEC" envDefault:"2"`
	ResolveBurst      int           `env:"RESOLVE_BURST" envDefault:"4"`
	CacheBackend      string        `env:"CACHE_BACKEND" envDefault:"memory"`

	// 播放
	AdvanceDelay  time.Duration `env:"ADVANCE_DELAY" envDefault:"500ms"`
	IdleTimeout   time.Duration `env:"IDLE_TIMEOUT" envDefault:"30s"`
	DefaultVolume int           `env:"DEFAULT_VOLUME" envDefault:"50"`
	OpusBitrate   int           `env:"OPUS_BITRATE" envDefault:"128000"`

	// Redis配置
	RedisHost     string `env:"REDIS_HOST" envDefault:"127.0.0.1"`
	RedisPort     string `env:"REDIS_PORT" envDefault:"6379"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	// 播放历史 (MySQL)
	HistoryEnabled bool   `env:"HISTORY_ENABLED" envDefault:"false"`
	DBHost         string `env:"DB_HOST" envDefault:"127.0.0.1"`
	DBPort         string `env:"DB_PORT" envDefault:"3306"`
	DBUser         string `env:"DB_USER" envDefault:"root"`
	DBPassword     string `env:"DB_PASSWORD"`
	DBName         string `env:"DB_NAME" envDefault:"guildfm"`

	// MinIO配置
	MinioEndpoint  string `env:"MINIO_ENDPOINT"`
	MinioAccessKey string `env:"MINIO_ACCESS_KEY"`
	MinioSecretKey string `env:"MINIO_SECRET_KEY"`
	MinioBucket    string `env:"MINIO_BUCKET" envDefault:"guildfm"`
	MinioUseSSL    bool   `env:"MINIO_USE_SSL" envDefault:"false"`
	MinioRegion    string `env:"MINIO_REGION"`

	// 控制 API
	HTTPAddr          string        `env:"HTTP_ADDR" envDefault:":8080"`
	JWTSecret         string        `env:"JWT_SECRET"`
	TokenTTL          time.Duration `env:"TOKEN_TTL" envDefault:"24h"`
	AdminPasswordHash string        `env:"ADMIN_PASSWORD_HASH"`

	// 日志
	LogLevel      string `env:"LOG_LEVEL" envDefault:"info"`
	LogFile       string `env:"LOG_FILE"`
	LogMaxSize    int    `env:"LOG_MAX_SIZE" envDefault:"100"`
	LogMaxBackups int    `env:"LOG_MAX_BACKUPS" envDefault:"5"`
	LogMaxAge     int    `env:"LOG_MAX_AGE" envDefault:"30"`

	LockFile string `env:"LOCK_FILE" envDefault:"guildfm.lock"`
}

// Load loads configuration from environment variables (via .env file) or defaults.
func Load() (*Config, error) {
	// godotenv.Load() will not override existing env vars.
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found or error loading .env, relying on existing environment variables and defaults.")
	}
	return Parse()
}

// Parse reads the process environment without touching .env files.
func Parse() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// RedisAddr returns host:port of the Redis server.
func (c *Config) RedisAddr() string {
	return fmt.Sprintf("%s:%s", c.RedisHost, c.RedisPort)
}

// MinioEnabled reports whether object-store locators can be served.
func (c *Config) MinioEnabled() bool {
	return c.MinioEndpoint != "" && c.MinioAccessKey != ""
}

// ValidateBot 检查启动 bot 所需的配置
func (c *Config) ValidateBot() error {
	var errs []error
	if c.DiscordToken == "" {
		errs = append(errs, errors.New("DISCORD_TOKEN is required"))
	}
	if c.AdvanceDelay < 0 {
		errs = append(errs, errors.New("ADVANCE_DELAY must not be negative"))
	}
	if c.IdleTimeout <= 0 {
		errs = append(errs, errors.New("IDLE_TIMEOUT must be positive"))
	}
	if c.CacheBackend != "memory" && c.CacheBackend != "redis" {
		errs = append(errs, fmt.Errorf("unknown CACHE_BACKEND %q", c.CacheBackend))
	}
	return errors.Join(errs...)
}

// APIEnabled reports whether the control API can issue tokens.
func (c *Config) APIEnabled() bool {
	return c.JWTSecret != "" && c.AdminPasswordHash != ""
}
