package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ConfigPath is the default config file; MUHURAT_CONFIG overrides it.
const ConfigPath = "config.yaml"

// FileConfig represents configuration loaded from YAML.
type FileConfig struct {
	Port        string `yaml:"port"`
	LogLevel    string `yaml:"logLevel"`
	DatabaseURL string `yaml:"databaseURL"`

	JWTSecret   string `yaml:"jwtSecret"`
	AuthJWKSURL string `yaml:"authJwksURL"`
	JWTIssuer   string `yaml:"jwtIssuer"`
	JWTAudience string `yaml:"jwtAudience"`
	JWTLeeway   string `yaml:"jwtLeeway"`

	GenerationProvider    string         `yaml:"generationProvider"`
	GenerationModel       string         `yaml:"generationModel"`
	GenerationBaseURL     string         `yaml:"generationBaseURL"`
	GenerationAPIKey      string         `yaml:"generationApiKey"`
	GenerationTemperature float64        `yaml:"generationTemperature"`
	GenerationTimeout     string         `yaml:"generationTimeout"`
	GenerationMode        string         `yaml:"generationMode"`
	StandardThreshold     float64        `yaml:"standardThreshold"`
	PremiumThreshold      float64        `yaml:"premiumThreshold"`
	TokenBudgets          map[string]int `yaml:"tokenBudgets"`

	RedisAddr                string   `yaml:"redisAddr"`
	RedisPassword            string   `yaml:"redisPassword"`
	QueueName                string   `yaml:"queueName"`
	QueueGroup               string   `yaml:"queueGroup"`
	QueueConcurrency         int      `yaml:"queueConcurrency"`
	ReportRateLimitPerMinute int      `yaml:"reportRateLimitPerMinute"`
	FeedbackRateLimitPerMin  int      `yaml:"feedbackRateLimitPerMinute"`
	TrustedProxyCIDRs        []string `yaml:"trustedProxyCidrs"`

	AMQPURL string `yaml:"amqpURL"`

	LocalDBDir     string `yaml:"localdbDir"`
	SnapshotDir    string `yaml:"snapshotDir"`
	SeedPassword   string `yaml:"seedPassword"`
	MinioEndpoint  string `yaml:"minioEndpoint"`
	MinioAccessKey string `yaml:"minioAccessKey"`
	MinioSecretKey string `yaml:"minioSecretKey"`
	MinioBucket    string `yaml:"minioBucket"`
	MinioUseSSL    bool   `yaml:"minioUseSSL"`
}

// Path returns MUHURAT_CONFIG when set, else ConfigPath.
func Path() string {
	if v := strings.TrimSpace(os.Getenv("MUHURAT_CONFIG")); v != "" {
		return v
	}
	return ConfigPath
}

// Load reads config from path (defaults to config.yaml). A .env file in the
// working directory is loaded first; real environment variables win over it.
func Load(path string) (FileConfig, error) {
	cfg := FileConfig{}
	if path == "" {
		path = ConfigPath
	}
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return cfg, fmt.Errorf("load .env: %w", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	applyEnv(&cfg)
	if err := validateConfig(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnv(cfg *FileConfig) {
	if v := os.Getenv("PORT"); v != "" {
		cfg.Port = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.DatabaseURL = v
	}
	if v := os.Getenv("JWT_SECRET"); v != "" {
		cfg.JWTSecret = v
	}
	if v := os.Getenv("AUTH_JWKS_URL"); v != "" {
		cfg.AuthJWKSURL = v
	}
	if v := os.Getenv("JWT_ISSUER"); v != "" {
		cfg.JWTIssuer = v
	}
	if v := os.Getenv("JWT_AUDIENCE"); v != "" {
		cfg.JWTAudience = v
	}
	if v := os.Getenv("JWT_LEEWAY"); v != "" {
		cfg.JWTLeeway = v
	}
	if v := os.Getenv("GENERATION_PROVIDER"); v != "" {
		cfg.GenerationProvider = v
	}
	if v := os.Getenv("GENERATION_MODEL"); v != "" {
		cfg.GenerationModel = v
	}
	if v := os.Getenv("GENERATION_BASE_URL"); v != "" {
		cfg.GenerationBaseURL = v
	}
	if v := os.Getenv("GEMINI_API_KEY"); v != "" {
		cfg.GenerationAPIKey = v
	}
	if v := os.Getenv("GENERATION_API_KEY"); v != "" {
		cfg.GenerationAPIKey = v
	}
	if v := os.Getenv("GENERATION_MODE"); v != "" {
		cfg.GenerationMode = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.RedisAddr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.RedisPassword = v
	}
	if v := os.Getenv("MUHURAT_REPORT_RATE_LIMIT_PER_MINUTE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.ReportRateLimitPerMinute = n
		}
	}
	if v := os.Getenv("MUHURAT_FEEDBACK_RATE_LIMIT_PER_MINUTE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.FeedbackRateLimitPerMin = n
		}
	}
	if v := os.Getenv("MUHURAT_TRUSTED_PROXY_CIDRS"); v != "" {
		cfg.TrustedProxyCIDRs = splitCSV(v)
	}
	if v := os.Getenv("AMQP_URL"); v != "" {
		cfg.AMQPURL = v
	}
	if v := os.Getenv("LOCALDB_DIR"); v != "" {
		cfg.LocalDBDir = v
	}
	if v := os.Getenv("SNAPSHOT_DIR"); v != "" {
		cfg.SnapshotDir = v
	}
	if v := os.Getenv("LOCALDB_SEED_PASSWORD"); v != "" {
		cfg.SeedPassword = v
	}
	if v := os.Getenv("MINIO_ENDPOINT"); v != "" {
		cfg.MinioEndpoint = v
	}
	if v := os.Getenv("MINIO_ACCESS_KEY"); v != "" {
		cfg.MinioAccessKey = v
	}
	if v := os.Getenv("MINIO_SECRET_KEY"); v != "" {
		cfg.MinioSecretKey = v
	}
	if v := os.Getenv("MINIO_BUCKET"); v != "" {
		cfg.MinioBucket = v
	}
	if v := os.Getenv("MINIO_USE_SSL"); v == "true" {
		cfg.MinioUseSSL = true
	}
}

func validateConfig(cfg FileConfig) error {
	if cfg.Port == "" {
		return errors.New("config: port is required (set in config.yaml)")
	}
	if cfg.DatabaseURL == "" {
		return errors.New("config: databaseURL is required (set in config.yaml or DATABASE_URL)")
	}
	secret := strings.TrimSpace(cfg.JWTSecret) != ""
	jwks := strings.TrimSpace(cfg.AuthJWKSURL) != ""
	if secret == jwks {
		return errors.New("config: exactly one of jwtSecret or authJwksURL is required")
	}
	if cfg.GenerationTemperature < 0 || cfg.GenerationTemperature > 2 {
		return errors.New("config: generationTemperature must be within [0, 2]")
	}
	if cfg.StandardThreshold < 0 || cfg.PremiumThreshold < 0 {
		return errors.New("config: tier thresholds must be >= 0")
	}
	if cfg.PremiumThreshold > 0 && cfg.PremiumThreshold < cfg.StandardThreshold {
		return errors.New("config: premiumThreshold must be >= standardThreshold")
	}
	for tier, n := range cfg.TokenBudgets {
		switch tier {
		case "basic", "standard", "premium":
		default:
			return fmt.Errorf("config: unknown tokenBudgets tier %q", tier)
		}
		if n < 0 {
			return fmt.Errorf("config: tokenBudgets.%s must be >= 0", tier)
		}
	}
	mode := strings.ToLower(strings.TrimSpace(cfg.GenerationMode))
	if mode != "" && mode != "sync" && mode != "queue" {
		return fmt.Errorf("config: generationMode must be sync or queue, got %q", cfg.GenerationMode)
	}
	needRedis := mode == "queue" || cfg.ReportRateLimitPerMinute > 0 || cfg.FeedbackRateLimitPerMin > 0
	if needRedis && strings.TrimSpace(cfg.RedisAddr) == "" {
		return errors.New("config: redisAddr is required for queue mode and rate limiting")
	}
	if cfg.ReportRateLimitPerMinute < 0 || cfg.FeedbackRateLimitPerMin < 0 || cfg.QueueConcurrency < 0 {
		return errors.New("config: rate limits and queue concurrency must be >= 0")
	}
	if cfg.MinioEndpoint != "" && (cfg.MinioAccessKey == "" || cfg.MinioSecretKey == "" || cfg.MinioBucket == "") {
		return errors.New("config: minioAccessKey, minioSecretKey and minioBucket are required with minioEndpoint")
	}
	if cfg.MinioEndpoint != "" && cfg.SnapshotDir != "" {
		return errors.New("config: snapshotDir and minioEndpoint are mutually exclusive")
	}
	return nil
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		out = append(out, part)
	}
	return out
}

// ParseDuration parses an optional duration setting; empty means zero.
func ParseDuration(name, value string) (time.Duration, error) {
	if strings.TrimSpace(value) == "" {
		return 0, nil
	}
	dur, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return 0, fmt.Errorf("invalid %s duration: %w", name, err)
	}
	return dur, nil
}
