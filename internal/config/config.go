package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	_ "github.com/joho/godotenv/autoload"
)

// Config holds everything the binaries read from the environment. It is built
// once at startup and passed down.
type Config struct {
	Server     ServerConfig
	Worker     WorkerConfig
	Generation GenerationConfig
	Models     ModelConfig
	Storage    StorageConfig
	Redis      RedisConfig
	RateLimit  RateLimitConfig
	Security   SecurityConfig
	Telegram   TelegramConfig
	App        AppConfig
}

type ServerConfig struct {
	Port            string
	Host            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

type WorkerConfig struct {
	Count         int
	PollInterval  time.Duration
	MaxQueueDepth int
	JobTimeout    time.Duration
	BridgeTimeout time.Duration
}

type GenerationConfig struct {
	Workers int
	Timeout time.Duration
}

type ModelConfig struct {
	LLMURL          string
	LLMModel        string
	WhisperURL      string
	WhisperModel    string
	RequestTimeout  time.Duration
	DefaultLanguage string
}

type StorageConfig struct {
	UploadFolder  string
	DataFolder    string
	MaxUploadSize int64
	CleanupAge    time.Duration
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	DraftTTL time.Duration
}

type RateLimitConfig struct {
	Global     string
	Upload     string
	Transcribe string
	Generate   string
	Whitelist  []string
}

type SecurityConfig struct {
	CORSOrigins []string
	ForceHTTPS  bool
}

type TelegramConfig struct {
	BotToken        string
	Channel         string
	Template        string
	ProxyURL        string
	SendingInterval time.Duration
}

type AppConfig struct {
	LogLevel string
	LogFile  string
}

func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            getEnv("SERVER_PORT", "5000"),
			Host:            getEnv("SERVER_HOST", ""),
			ReadTimeout:     getEnvDuration("SERVER_READ_TIMEOUT", 60*time.Second),
			WriteTimeout:    getEnvDuration("SERVER_WRITE_TIMEOUT", 10*time.Minute),
			IdleTimeout:     getEnvDuration("SERVER_IDLE_TIMEOUT", 120*time.Second),
			ShutdownTimeout: getEnvDuration("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second),
		},
		Worker: WorkerConfig{
			Count:         getEnvInt("WORKER_COUNT", 4),
			PollInterval:  getEnvDuration("WORKER_POLL_INTERVAL", time.Second),
			MaxQueueDepth: getEnvInt("WORKER_MAX_QUEUE_DEPTH", 0),
			JobTimeout:    getEnvDuration("WORKER_JOB_TIMEOUT", 300*time.Second),
			BridgeTimeout: getEnvDuration("BRIDGE_TIMEOUT", 10*time.Minute),
		},
		Generation: GenerationConfig{
			Workers: getEnvInt("GENERATION_WORKERS", 2),
			Timeout: getEnvDuration("GENERATION_TIMEOUT", 30*time.Second),
		},
		Models: ModelConfig{
			LLMURL:          getEnv("LLM_URL", "http://localhost:11434"),
			LLMModel:        getEnv("LLM_MODEL", "llama3.2"),
			WhisperURL:      getEnv("WHISPER_URL", "http://localhost:8000"),
			WhisperModel:    getEnv("WHISPER_MODEL", "base"),
			RequestTimeout:  getEnvDuration("MODEL_REQUEST_TIMEOUT", 5*time.Minute),
			DefaultLanguage: getEnv("WHISPER_LANGUAGE", ""),
		},
		Storage: StorageConfig{
			UploadFolder:  getEnv("UPLOAD_FOLDER", "uploads/audio"),
			DataFolder:    getEnv("DATA_FOLDER", "uploads/data"),
			MaxUploadSize: getEnvInt64("MAX_UPLOAD_SIZE", 50<<20),
			CleanupAge:    getEnvDuration("UPLOAD_CLEANUP_AGE", 24*time.Hour),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
			DraftTTL: getEnvDuration("REDIS_DRAFT_TTL", 24*time.Hour),
		},
		RateLimit: RateLimitConfig{
			Global:     getEnv("GLOBAL_RATE_LIMIT", "100 per hour"),
			Upload:     getEnv("UPLOAD_RATE_LIMIT", "5 per minute"),
			Transcribe: getEnv("TRANSCRIBE_RATE_LIMIT", "3 per minute"),
			Generate:   getEnv("GENERATE_RATE_LIMIT", "10 per minute"),
			Whitelist:  getEnvList("RATE_LIMIT_WHITELIST"),
		},
		Security: SecurityConfig{
			CORSOrigins: getEnvListDefault("CORS_ORIGINS", []string{"http://localhost:3000", "http://127.0.0.1:3000"}),
			ForceHTTPS:  getEnvBool("FORCE_HTTPS", false),
		},
		Telegram: TelegramConfig{
			BotToken:        getEnv("TELEGRAM_BOT_TOKEN", ""),
			Channel:         getEnv("TELEGRAM_CHANNEL", ""),
			Template:        getEnv("TELEGRAM_TEMPLATE", ""),
			ProxyURL:        getEnv("TELEGRAM_PROXY_URL", ""),
			SendingInterval: getEnvDuration("TELEGRAM_SENDING_INTERVAL", 10*time.Second),
		},
		App: AppConfig{
			LogLevel: getEnv("LOG_LEVEL", "info"),
			LogFile:  getEnv("LOG_FILE", ""),
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

// getEnvDuration accepts Go durations ("90s") or a bare number of seconds.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}
	if secs, err := strconv.ParseFloat(value, 64); err == nil {
		return time.Duration(secs * float64(time.Second))
	}
	return defaultValue
}

func getEnvList(key string) []string {
	var out []string
	for _, item := range strings.Split(os.Getenv(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func getEnvListDefault(key string, defaultValue []string) []string {
	if list := getEnvList(key); len(list) > 0 {
		return list
	}
	return defaultValue
}
