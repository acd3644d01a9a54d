package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// readSecret reads a Docker secret from a file path specified by an env var
// with _FILE suffix. If FOO is already set directly, the file is skipped.
// If FOO_FILE is set, reads the file content and sets FOO.
func readSecret(envKey string) {
	if os.Getenv(envKey) != "" {
		return
	}
	fileKey := envKey + "_FILE"
	filePath := os.Getenv(fileKey)
	if filePath == "" {
		return
	}
	data, err := os.ReadFile(filePath)
	if err != nil {
		return
	}
	val := strings.TrimSpace(string(data))
	os.Setenv(envKey, val)
}

type Config struct {
	Server    ServerConfig
	Redis     RedisConfig
	JWT       JWTConfig
	Auth      AuthConfig
	OIDC      OIDCConfig
	Gateway   GatewayConfig
	RateLimit RateLimitConfig
	Store     StoreConfig
	Groq      GroqConfig
	Acquire   AcquireConfig
	Tools     ToolsConfig
	Workspace WorkspaceConfig
	Highlight HighlightConfig
	Render    RenderConfig
	R2        R2Config
	Worker    WorkerConfig
}

type ServerConfig struct {
	Port        string
	Env         string
	LogLevel    string
	ApiDomain   string
	BodyLimitMB int
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type JWTConfig struct {
	Secret string
}

// AuthConfig gates the /api group. Tokens identify calling services, not end users.
type AuthConfig struct {
	Enabled bool
}

// OIDCConfig enables verification of tokens from an OpenID Connect issuer.
type OIDCConfig struct {
	Issuer   string
	Audience string
}

type GatewayConfig struct {
	Enabled bool
}

type RateLimitConfig struct {
	JobsPerHour int
	FilesPerMin int
}

type StoreConfig struct {
	Driver   string // redis, postgres, sqlite
	DSN      string
	TTLHours int
}

type GroqConfig struct {
	APIKey         string
	BaseURL        string
	Model          string
	Language       string
	MaxUploadMB    int
	ChunkSeconds   int
	TimeoutSeconds int
}

type AcquireConfig struct {
	Providers             []string
	MinBytes              int64
	UserAgent             string
	RapidAPIKey           string
	CookiesFile           string
	CobaltInstances       []string
	TimeoutSeconds        int
	BrowserTimeoutSeconds int
}

type ToolsConfig struct {
	FFmpeg         string
	FFprobe        string
	YtDlp          string
	TimeoutSeconds int
}

type WorkspaceConfig struct {
	BaseDir              string
	CleanupDelayMinutes  int
	MaxAgeHours          int
	SweepIntervalMinutes int
}

type HighlightConfig struct {
	StepFraction float64
	MinWords     int
	MaxWords     int
}

type RenderConfig struct {
	Preset      string
	CRF         int
	StylesFile  string
	MaxUploadMB int
}

type R2Config struct {
	AccountID       string
	AccessKeyID     string
	SecretAccessKey string
	BucketName      string
	PublicURL       string
}

type WorkerConfig struct {
	Concurrency       int
	JobTimeoutMinutes int
}

// DefaultProviders is the acquisition order used when ACQUIRE_PROVIDERS is unset.
var DefaultProviders = []string{
	"upload",
	"direct",
	"ytdlp-cookies",
	"rapidapi-mp36",
	"rapidapi-ytstream",
	"rapidapi-ytapi",
	"cobalt",
	"browser",
	"ytdlp",
}

func Load() (*Config, error) {
	// Read Docker Swarm secrets from _FILE env vars before Viper binds
	readSecret("REDIS_PASSWORD")
	readSecret("JWT_SECRET")
	readSecret("GROQ_API_KEY")
	readSecret("RAPIDAPI_KEY")
	readSecret("STORE_DSN")
	readSecret("R2_ACCOUNT_ID")
	readSecret("R2_ACCESS_KEY_ID")
	readSecret("R2_SECRET_ACCESS_KEY")

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	// Environment variables
	viper.AutomaticEnv()

	// Bind environment variables with underscores to nested config keys
	_ = viper.BindEnv("server.port", "SERVER_PORT")
	_ = viper.BindEnv("server.env", "SERVER_ENV")
	_ = viper.BindEnv("server.log_level", "LOG_LEVEL")
	_ = viper.BindEnv("server.api_domain", "API_DOMAIN")
	_ = viper.BindEnv("server.body_limit_mb", "BODY_LIMIT_MB")
	_ = viper.BindEnv("redis.addr", "REDIS_ADDR")
	_ = viper.BindEnv("redis.password", "REDIS_PASSWORD")
	_ = viper.BindEnv("redis.db", "REDIS_DB")
	_ = viper.BindEnv("jwt.secret", "JWT_SECRET")
	_ = viper.BindEnv("auth.enabled", "AUTH_ENABLED")
	_ = viper.BindEnv("oidc.issuer", "OIDC_ISSUER")
	_ = viper.BindEnv("oidc.audience", "OIDC_AUDIENCE")
	_ = viper.BindEnv("gateway.enabled", "GATEWAY_ENABLED")
	_ = viper.BindEnv("ratelimit.jobs_per_hour", "RATELIMIT_JOBS_PER_HOUR")
	_ = viper.BindEnv("ratelimit.files_per_min", "RATELIMIT_FILES_PER_MIN")
	_ = viper.BindEnv("store.driver", "STORE_DRIVER")
	_ = viper.BindEnv("store.dsn", "STORE_DSN")
	_ = viper.BindEnv("store.ttl_hours", "STORE_TTL_HOURS")
	_ = viper.BindEnv("groq.api_key", "GROQ_API_KEY")
	_ = viper.BindEnv("groq.base_url", "GROQ_BASE_URL")
	_ = viper.BindEnv("groq.model", "GROQ_MODEL")
	_ = viper.BindEnv("groq.language", "GROQ_LANGUAGE")
	_ = viper.BindEnv("groq.max_upload_mb", "GROQ_MAX_UPLOAD_MB")
	_ = viper.BindEnv("groq.chunk_seconds", "GROQ_CHUNK_SECONDS")
	_ = viper.BindEnv("groq.timeout_seconds", "GROQ_TIMEOUT_SECONDS")
	_ = viper.BindEnv("acquire.providers", "ACQUIRE_PROVIDERS")
	_ = viper.BindEnv("acquire.min_bytes", "ACQUIRE_MIN_BYTES")
	_ = viper.BindEnv("acquire.user_agent", "ACQUIRE_USER_AGENT")
	_ = viper.BindEnv("acquire.rapidapi_key", "RAPIDAPI_KEY")
	_ = viper.BindEnv("acquire.cookies_file", "YTDLP_COOKIES_FILE")
	_ = viper.BindEnv("acquire.cobalt_instances", "COBALT_INSTANCES")
	_ = viper.BindEnv("acquire.timeout_seconds", "ACQUIRE_TIMEOUT_SECONDS")
	_ = viper.BindEnv("acquire.browser_timeout_seconds", "ACQUIRE_BROWSER_TIMEOUT_SECONDS")
	_ = viper.BindEnv("tools.ffmpeg", "FFMPEG_PATH")
	_ = viper.BindEnv("tools.ffprobe", "FFPROBE_PATH")
	_ = viper.BindEnv("tools.ytdlp", "YTDLP_PATH")
	_ = viper.BindEnv("tools.timeout_seconds", "TOOLS_TIMEOUT_SECONDS")
	_ = viper.BindEnv("workspace.base_dir", "WORKSPACE_DIR")
	_ = viper.BindEnv("workspace.cleanup_delay_minutes", "WORKSPACE_CLEANUP_DELAY_MINUTES")
	_ = viper.BindEnv("workspace.max_age_hours", "WORKSPACE_MAX_AGE_HOURS")
	_ = viper.BindEnv("workspace.sweep_interval_minutes", "WORKSPACE_SWEEP_INTERVAL_MINUTES")
	_ = viper.BindEnv("highlight.step_fraction", "HIGHLIGHT_STEP_FRACTION")
	_ = viper.BindEnv("highlight.min_words", "HIGHLIGHT_MIN_WORDS")
	_ = viper.BindEnv("highlight.max_words", "HIGHLIGHT_MAX_WORDS")
	_ = viper.BindEnv("render.preset", "RENDER_PRESET")
	_ = viper.BindEnv("render.crf", "RENDER_CRF")
	_ = viper.BindEnv("render.styles_file", "CAPTION_STYLES_FILE")
	_ = viper.BindEnv("render.max_upload_mb", "UPLOAD_MAX_MB")
	_ = viper.BindEnv("r2.account_id", "R2_ACCOUNT_ID")
	_ = viper.BindEnv("r2.access_key_id", "R2_ACCESS_KEY_ID")
	_ = viper.BindEnv("r2.secret_access_key", "R2_SECRET_ACCESS_KEY")
	_ = viper.BindEnv("r2.bucket_name", "R2_BUCKET_NAME")
	_ = viper.BindEnv("r2.public_url", "R2_PUBLIC_URL")
	_ = viper.BindEnv("worker.concurrency", "WORKER_CONCURRENCY")
	_ = viper.BindEnv("worker.job_timeout_minutes", "WORKER_JOB_TIMEOUT_MINUTES")

	// Defaults
	viper.SetDefault("server.port", "8000")
	viper.SetDefault("server.env", "development")
	viper.SetDefault("server.log_level", "info")
	viper.SetDefault("server.body_limit_mb", 520)
	viper.SetDefault("redis.addr", "localhost:6379")
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("jwt.secret", "")
	viper.SetDefault("auth.enabled", false)
	viper.SetDefault("gateway.enabled", false)
	viper.SetDefault("ratelimit.jobs_per_hour", 20)
	viper.SetDefault("ratelimit.files_per_min", 120)

	// Store defaults
	viper.SetDefault("store.driver", "redis")
	viper.SetDefault("store.dsn", "")
	viper.SetDefault("store.ttl_hours", 24)

	// Groq defaults
	viper.SetDefault("groq.base_url", "https://api.groq.com/openai/v1")
	viper.SetDefault("groq.model", "whisper-large-v3-turbo")
	viper.SetDefault("groq.max_upload_mb", 25)
	viper.SetDefault("groq.chunk_seconds", 300)
	viper.SetDefault("groq.timeout_seconds", 300)

	// Acquisition defaults
	viper.SetDefault("acquire.providers", strings.Join(DefaultProviders, ","))
	viper.SetDefault("acquire.min_bytes", 10000)
	viper.SetDefault("acquire.user_agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	viper.SetDefault("acquire.cobalt_instances", "https://api.cobalt.tools,https://cobalt.api.timelessnesses.me")
	viper.SetDefault("acquire.timeout_seconds", 300)
	viper.SetDefault("acquire.browser_timeout_seconds", 60)

	// External tools
	viper.SetDefault("tools.ffmpeg", "ffmpeg")
	viper.SetDefault("tools.ffprobe", "ffprobe")
	viper.SetDefault("tools.ytdlp", "yt-dlp")
	viper.SetDefault("tools.timeout_seconds", 300)

	viper.SetDefault("workspace.base_dir", "/tmp/clipforge")
	viper.SetDefault("workspace.cleanup_delay_minutes", 10)
	viper.SetDefault("workspace.max_age_hours", 6)
	viper.SetDefault("workspace.sweep_interval_minutes", 30)

	viper.SetDefault("highlight.step_fraction", 0.75)
	viper.SetDefault("highlight.min_words", 10)
	viper.SetDefault("highlight.max_words", 50)

	viper.SetDefault("render.preset", "fast")
	viper.SetDefault("render.crf", 23)
	viper.SetDefault("render.max_upload_mb", 500)

	viper.SetDefault("worker.concurrency", 4)
	viper.SetDefault("worker.job_timeout_minutes", 90)

	// Try to read config file (optional)
	_ = viper.ReadInConfig()

	cfg := &Config{
		Server: ServerConfig{
			Port:        viper.GetString("server.port"),
			Env:         viper.GetString("server.env"),
			LogLevel:    viper.GetString("server.log_level"),
			ApiDomain:   viper.GetString("server.api_domain"),
			BodyLimitMB: viper.GetInt("server.body_limit_mb"),
		},
		Redis: RedisConfig{
			Addr:     viper.GetString("redis.addr"),
			Password: viper.GetString("redis.password"),
			DB:       viper.GetInt("redis.db"),
		},
		JWT: JWTConfig{
			Secret: viper.GetString("jwt.secret"),
		},
		Auth: AuthConfig{
			Enabled: viper.GetBool("auth.enabled"),
		},
		OIDC: OIDCConfig{
			Issuer:   viper.GetString("oidc.issuer"),
			Audience: viper.GetString("oidc.audience"),
		},
		Gateway: GatewayConfig{
			Enabled: viper.GetBool("gateway.enabled"),
		},
		RateLimit: RateLimitConfig{
			JobsPerHour: viper.GetInt("ratelimit.jobs_per_hour"),
			FilesPerMin: viper.GetInt("ratelimit.files_per_min"),
		},
		Store: StoreConfig{
			Driver:   strings.ToLower(viper.GetString("store.driver")),
			DSN:      viper.GetString("store.dsn"),
			TTLHours: viper.GetInt("store.ttl_hours"),
		},
		Groq: GroqConfig{
			APIKey:         viper.GetString("groq.api_key"),
			BaseURL:        viper.GetString("groq.base_url"),
			Model:          viper.GetString("groq.model"),
			Language:       viper.GetString("groq.language"),
			MaxUploadMB:    viper.GetInt("groq.max_upload_mb"),
			ChunkSeconds:   viper.GetInt("groq.chunk_seconds"),
			TimeoutSeconds: viper.GetInt("groq.timeout_seconds"),
		},
		Acquire: AcquireConfig{
			Providers:             splitList(viper.GetString("acquire.providers")),
			MinBytes:              viper.GetInt64("acquire.min_bytes"),
			UserAgent:             viper.GetString("acquire.user_agent"),
			RapidAPIKey:           viper.GetString("acquire.rapidapi_key"),
			CookiesFile:           viper.GetString("acquire.cookies_file"),
			CobaltInstances:       splitList(viper.GetString("acquire.cobalt_instances")),
			TimeoutSeconds:        viper.GetInt("acquire.timeout_seconds"),
			BrowserTimeoutSeconds: viper.GetInt("acquire.browser_timeout_seconds"),
		},
		Tools: ToolsConfig{
			FFmpeg:         viper.GetString("tools.ffmpeg"),
			FFprobe:        viper.GetString("tools.ffprobe"),
			YtDlp:          viper.GetString("tools.ytdlp"),
			TimeoutSeconds: viper.GetInt("tools.timeout_seconds"),
		},
		Workspace: WorkspaceConfig{
			BaseDir:              viper.GetString("workspace.base_dir"),
			CleanupDelayMinutes:  viper.GetInt("workspace.cleanup_delay_minutes"),
			MaxAgeHours:          viper.GetInt("workspace.max_age_hours"),
			SweepIntervalMinutes: viper.GetInt("workspace.sweep_interval_minutes"),
		},
		Highlight: HighlightConfig{
			StepFraction: viper.GetFloat64("highlight.step_fraction"),
			MinWords:     viper.GetInt("highlight.min_words"),
			MaxWords:     viper.GetInt("highlight.max_words"),
		},
		Render: RenderConfig{
			Preset:      viper.GetString("render.preset"),
			CRF:         viper.GetInt("render.crf"),
			StylesFile:  viper.GetString("render.styles_file"),
			MaxUploadMB: viper.GetInt("render.max_upload_mb"),
		},
		R2: R2Config{
			AccountID:       viper.GetString("r2.account_id"),
			AccessKeyID:     viper.GetString("r2.access_key_id"),
			SecretAccessKey: viper.GetString("r2.secret_access_key"),
			BucketName:      viper.GetString("r2.bucket_name"),
			PublicURL:       viper.GetString("r2.public_url"),
		},
		Worker: WorkerConfig{
			Concurrency:       viper.GetInt("worker.concurrency"),
			JobTimeoutMinutes: viper.GetInt("worker.job_timeout_minutes"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the pipeline cannot run with.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case "redis", "postgres", "sqlite":
	default:
		return fmt.Errorf("unknown store driver %q", c.Store.Driver)
	}
	if c.Store.Driver == "postgres" && c.Store.DSN == "" {
		return fmt.Errorf("STORE_DSN is required for the postgres store")
	}
	if c.Highlight.StepFraction <= 0 || c.Highlight.StepFraction > 1 {
		return fmt.Errorf("highlight step fraction must be in (0,1], got %v", c.Highlight.StepFraction)
	}
	if c.Groq.ChunkSeconds <= 0 {
		return fmt.Errorf("groq chunk length must be positive")
	}
	if c.Groq.MaxUploadMB <= 0 {
		return fmt.Errorf("groq upload ceiling must be positive")
	}
	if c.Acquire.MinBytes < 0 {
		return fmt.Errorf("acquire min bytes must not be negative")
	}
	if c.Workspace.BaseDir == "" {
		return fmt.Errorf("workspace base dir is required")
	}
	if len(c.Acquire.Providers) == 0 {
		return fmt.Errorf("at least one acquisition provider is required")
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
