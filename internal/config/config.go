package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	App        AppConfig        `mapstructure:"app"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Centrifugo CentrifugoConfig `mapstructure:"centrifugo"`
	JWT        JWTConfig        `mapstructure:"jwt"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Functions  FunctionsConfig  `mapstructure:"functions"`
	Providers  ProvidersConfig  `mapstructure:"providers"`
	LLM        LLMConfig        `mapstructure:"llm"`
	ElevenLabs ElevenLabsConfig `mapstructure:"elevenlabs"`
	Bitrix     BitrixConfig     `mapstructure:"bitrix"`
	Knowledge  KnowledgeConfig  `mapstructure:"knowledge"`
	Kafka      KafkaConfig      `mapstructure:"kafka"`
	Jobs       JobsConfig       `mapstructure:"jobs"`
	RateLimit  RateLimitConfig  `mapstructure:"rate_limit"`
	CORS       CORSConfig       `mapstructure:"cors"`
}

type AppConfig struct {
	Name string `mapstructure:"name"`
	Env  string `mapstructure:"env"`
	Port int    `mapstructure:"port"`
}

type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	TimeZone        string        `mapstructure:"time_zone"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`

	// SlowQuery statements above it are logged at warn
	SlowQuery time.Duration `mapstructure:"slow_query"`
	// ConnectRetries pings at startup before giving up, one second apart
	ConnectRetries int `mapstructure:"connect_retries"`
}

// DSN returns the PostgreSQL connection string
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s TimeZone=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode, c.TimeZone,
	)
}

type CentrifugoConfig struct {
	URL    string `mapstructure:"url"`
	APIKey string `mapstructure:"api_key"`
}

type JWTConfig struct {
	Secret          string        `mapstructure:"secret"`
	AccessDuration  time.Duration `mapstructure:"access_duration"`
	RefreshDuration time.Duration `mapstructure:"refresh_duration"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	// File enables a rotated JSON log file next to stdout
	File string `mapstructure:"file"`
}

// FunctionsConfig internal function-to-function calls (ingestion -> AI -> send)
type FunctionsConfig struct {
	BaseURL    string        `mapstructure:"base_url"`
	ServiceKey string        `mapstructure:"service_key"`
	Timeout    time.Duration `mapstructure:"timeout"`
	PoolSize   int           `mapstructure:"pool_size"`
}

// ProviderEndpoint default base url and key of one WhatsApp provider.
// Instances may override both.
type ProviderEndpoint struct {
	BaseURL string `mapstructure:"base_url"`
	APIKey  string `mapstructure:"api_key"`
}

type ProvidersConfig struct {
	Evolution ProviderEndpoint `mapstructure:"evolution"`
	WAPI      ProviderEndpoint `mapstructure:"wapi"`
	APIBrasil ProviderEndpoint `mapstructure:"apibrasil"`
	Gupshup   ProviderEndpoint `mapstructure:"gupshup"`
	Timeout   time.Duration    `mapstructure:"timeout"`
}

type LLMConfig struct {
	GatewayURL   string        `mapstructure:"gateway_url"`
	APIKey       string        `mapstructure:"api_key"`
	DefaultModel string        `mapstructure:"default_model"`
	Timeout      time.Duration `mapstructure:"timeout"`
}

type ElevenLabsConfig struct {
	BaseURL      string        `mapstructure:"base_url"`
	APIKey       string        `mapstructure:"api_key"`
	DefaultVoice string        `mapstructure:"default_voice"`
	TTSModel     string        `mapstructure:"tts_model"`
	STTModel     string        `mapstructure:"stt_model"`
	Timeout      time.Duration `mapstructure:"timeout"`
}

type BitrixConfig struct {
	OAuthURL      string        `mapstructure:"oauth_url"`
	RefreshBuffer time.Duration `mapstructure:"refresh_buffer"`
	Timeout       time.Duration `mapstructure:"timeout"`
	LeadCacheTTL  time.Duration `mapstructure:"lead_cache_ttl"`
}

type KnowledgeConfig struct {
	ChunkSize    int `mapstructure:"chunk_size"`
	ChunkOverlap int `mapstructure:"chunk_overlap"`
	TopN         int `mapstructure:"top_n"`
	HistoryLimit int `mapstructure:"history_limit"`
}

type KafkaConfig struct {
	Brokers string `mapstructure:"brokers"`
	Topic   string `mapstructure:"topic"`
}

// Enabled reports whether the flow-engine hand-off is configured
func (c *KafkaConfig) Enabled() bool {
	return c.Brokers != "" && c.Topic != ""
}

type JobsConfig struct {
	StatusSyncSpec   string        `mapstructure:"status_sync_spec"`
	WebhookPurgeSpec string        `mapstructure:"webhook_purge_spec"`
	WebhookRetention time.Duration `mapstructure:"webhook_retention"`
}

type RateLimitConfig struct {
	RPS   float64 `mapstructure:"rps"`
	Burst int     `mapstructure:"burst"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// IsProduction checks if app is in production mode
func (c *AppConfig) IsProduction() bool {
	return c.Env == "production"
}

// IsDevelopment checks if app is in development mode
func (c *AppConfig) IsDevelopment() bool {
	return c.Env == "development"
}

// Load reads configuration from an optional YAML file, .env and the process
// environment. Environment variables win over the file.
func Load(configPath string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigType("yaml")
	// The YAML file is optional: containers are configured through env only
	if _, err := os.Stat(configPath); configPath != "" && err == nil {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	cfg := &Config{
		App: AppConfig{
			Name: getEnvOrDefault("APP_NAME", v.GetString("app.name")),
			Env:  getEnvOrDefault("APP_ENV", v.GetString("app.env")),
			Port: getEnvOrDefaultInt("APP_PORT", v.GetInt("app.port")),
		},
		Database: DatabaseConfig{
			Host:            getEnvOrDefault("DB_HOST", v.GetString("database.host")),
			Port:            getEnvOrDefaultInt("DB_PORT", v.GetInt("database.port")),
			User:            getEnvOrDefault("DB_USER", v.GetString("database.user")),
			Password:        getEnvOrDefault("DB_PASSWORD", v.GetString("database.password")),
			Name:            getEnvOrDefault("DB_NAME", v.GetString("database.name")),
			SSLMode:         getEnvOrDefault("DB_SSL_MODE", v.GetString("database.ssl_mode")),
			TimeZone:        getEnvOrDefault("DB_TIME_ZONE", v.GetString("database.time_zone")),
			MaxOpenConns:    v.GetInt("database.max_open_conns"),
			MaxIdleConns:    v.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: v.GetDuration("database.conn_max_lifetime"),
			SlowQuery:       getEnvOrDefaultDuration("DB_SLOW_QUERY", v.GetDuration("database.slow_query")),
			ConnectRetries:  getEnvOrDefaultInt("DB_CONNECT_RETRIES", v.GetInt("database.connect_retries")),
		},
		Centrifugo: CentrifugoConfig{
			URL:    getEnvOrDefault("CENTRIFUGO_URL", v.GetString("centrifugo.url")),
			APIKey: getEnvOrDefault("CENTRIFUGO_API_KEY", v.GetString("centrifugo.api_key")),
		},
		JWT: JWTConfig{
			Secret:          getEnvOrDefault("JWT_SECRET", v.GetString("jwt.secret")),
			AccessDuration:  v.GetDuration("jwt.access_duration"),
			RefreshDuration: v.GetDuration("jwt.refresh_duration"),
		},
		Logging: LoggingConfig{
			Level:  getEnvOrDefault("LOG_LEVEL", v.GetString("logging.level")),
			Format: getEnvOrDefault("LOG_FORMAT", v.GetString("logging.format")),
			File:   getEnvOrDefault("LOG_FILE", v.GetString("logging.file")),
		},
		Functions: FunctionsConfig{
			BaseURL:    getEnvOrDefault("FUNCTIONS_BASE_URL", v.GetString("functions.base_url")),
			ServiceKey: getEnvOrDefault("FUNCTIONS_SERVICE_KEY", v.GetString("functions.service_key")),
			Timeout:    getEnvOrDefaultDuration("FUNCTIONS_TIMEOUT", v.GetDuration("functions.timeout")),
			PoolSize:   getEnvOrDefaultInt("FUNCTIONS_POOL_SIZE", v.GetInt("functions.pool_size")),
		},
		Providers: ProvidersConfig{
			Evolution: ProviderEndpoint{
				BaseURL: getEnvOrDefault("EVOLUTION_API_URL", v.GetString("providers.evolution.base_url")),
				APIKey:  getEnvOrDefault("EVOLUTION_API_KEY", v.GetString("providers.evolution.api_key")),
			},
			WAPI: ProviderEndpoint{
				BaseURL: getEnvOrDefault("WAPI_URL", v.GetString("providers.wapi.base_url")),
				APIKey:  getEnvOrDefault("WAPI_TOKEN", v.GetString("providers.wapi.api_key")),
			},
			APIBrasil: ProviderEndpoint{
				BaseURL: getEnvOrDefault("APIBRASIL_URL", v.GetString("providers.apibrasil.base_url")),
				APIKey:  getEnvOrDefault("APIBRASIL_BEARER_TOKEN", v.GetString("providers.apibrasil.api_key")),
			},
			Gupshup: ProviderEndpoint{
				BaseURL: getEnvOrDefault("GUPSHUP_URL", v.GetString("providers.gupshup.base_url")),
				APIKey:  getEnvOrDefault("GUPSHUP_API_KEY", v.GetString("providers.gupshup.api_key")),
			},
			Timeout: getEnvOrDefaultDuration("PROVIDERS_TIMEOUT", v.GetDuration("providers.timeout")),
		},
		LLM: LLMConfig{
			GatewayURL:   getEnvOrDefault("LLM_GATEWAY_URL", v.GetString("llm.gateway_url")),
			APIKey:       getEnvOrDefault("LLM_API_KEY", v.GetString("llm.api_key")),
			DefaultModel: getEnvOrDefault("LLM_DEFAULT_MODEL", v.GetString("llm.default_model")),
			Timeout:      getEnvOrDefaultDuration("LLM_TIMEOUT", v.GetDuration("llm.timeout")),
		},
		ElevenLabs: ElevenLabsConfig{
			BaseURL:      getEnvOrDefault("ELEVENLABS_URL", v.GetString("elevenlabs.base_url")),
			APIKey:       getEnvOrDefault("ELEVENLABS_API_KEY", v.GetString("elevenlabs.api_key")),
			DefaultVoice: getEnvOrDefault("ELEVENLABS_DEFAULT_VOICE", v.GetString("elevenlabs.default_voice")),
			TTSModel:     getEnvOrDefault("ELEVENLABS_TTS_MODEL", v.GetString("elevenlabs.tts_model")),
			STTModel:     getEnvOrDefault("ELEVENLABS_STT_MODEL", v.GetString("elevenlabs.stt_model")),
			Timeout:      getEnvOrDefaultDuration("ELEVENLABS_TIMEOUT", v.GetDuration("elevenlabs.timeout")),
		},
		Bitrix: BitrixConfig{
			OAuthURL:      getEnvOrDefault("BITRIX_OAUTH_URL", v.GetString("bitrix.oauth_url")),
			RefreshBuffer: getEnvOrDefaultDuration("BITRIX_REFRESH_BUFFER", v.GetDuration("bitrix.refresh_buffer")),
			Timeout:       getEnvOrDefaultDuration("BITRIX_TIMEOUT", v.GetDuration("bitrix.timeout")),
			LeadCacheTTL:  v.GetDuration("bitrix.lead_cache_ttl"),
		},
		Knowledge: KnowledgeConfig{
			ChunkSize:    getEnvOrDefaultInt("KNOWLEDGE_CHUNK_SIZE", v.GetInt("knowledge.chunk_size")),
			ChunkOverlap: getEnvOrDefaultInt("KNOWLEDGE_CHUNK_OVERLAP", v.GetInt("knowledge.chunk_overlap")),
			TopN:         getEnvOrDefaultInt("KNOWLEDGE_TOP_N", v.GetInt("knowledge.top_n")),
			HistoryLimit: getEnvOrDefaultInt("AI_HISTORY_LIMIT", v.GetInt("knowledge.history_limit")),
		},
		Kafka: KafkaConfig{
			Brokers: getEnvOrDefault("KAFKA_BROKERS", v.GetString("kafka.brokers")),
			Topic:   getEnvOrDefault("KAFKA_FLOW_TOPIC", v.GetString("kafka.topic")),
		},
		Jobs: JobsConfig{
			StatusSyncSpec:   getEnvOrDefault("JOBS_STATUS_SYNC_SPEC", v.GetString("jobs.status_sync_spec")),
			WebhookPurgeSpec: getEnvOrDefault("JOBS_WEBHOOK_PURGE_SPEC", v.GetString("jobs.webhook_purge_spec")),
			WebhookRetention: getEnvOrDefaultDuration("JOBS_WEBHOOK_RETENTION", v.GetDuration("jobs.webhook_retention")),
		},
		RateLimit: RateLimitConfig{
			RPS:   v.GetFloat64("rate_limit.rps"),
			Burst: v.GetInt("rate_limit.burst"),
		},
		CORS: CORSConfig{
			AllowedOrigins: v.GetStringSlice("cors.allowed_origins"),
		},
	}

	if origins := os.Getenv("CORS_ALLOWED_ORIGINS"); origins != "" {
		cfg.CORS.AllowedOrigins = strings.Split(origins, ",")
	}

	cfg.setDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

func (c *Config) setDefaults() {
	if c.App.Name == "" {
		c.App.Name = "whatsdesk"
	}
	if c.App.Env == "" {
		c.App.Env = "development"
	}
	if c.App.Port == 0 {
		c.App.Port = 8080
	}
	if c.Database.Port == 0 {
		c.Database.Port = 5432
	}
	if c.Database.SSLMode == "" {
		c.Database.SSLMode = "disable"
	}
	if c.Database.TimeZone == "" {
		c.Database.TimeZone = "America/Sao_Paulo"
	}
	if c.Database.MaxOpenConns == 0 {
		c.Database.MaxOpenConns = 25
	}
	if c.Database.MaxIdleConns == 0 {
		c.Database.MaxIdleConns = 5
	}
	if c.Database.ConnMaxLifetime == 0 {
		c.Database.ConnMaxLifetime = 5 * time.Minute
	}
	if c.Database.SlowQuery == 0 {
		c.Database.SlowQuery = 200 * time.Millisecond
	}
	if c.Database.ConnectRetries == 0 {
		c.Database.ConnectRetries = 5
	}
	if c.JWT.AccessDuration == 0 {
		c.JWT.AccessDuration = 15 * time.Minute
	}
	if c.JWT.RefreshDuration == 0 {
		c.JWT.RefreshDuration = 168 * time.Hour
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Functions.BaseURL == "" {
		c.Functions.BaseURL = fmt.Sprintf("http://127.0.0.1:%d", c.App.Port)
	}
	if c.Functions.Timeout == 0 {
		c.Functions.Timeout = 60 * time.Second
	}
	if c.Functions.PoolSize == 0 {
		c.Functions.PoolSize = 200
	}
	if c.Providers.Evolution.BaseURL == "" {
		c.Providers.Evolution.BaseURL = "http://localhost:8081"
	}
	if c.Providers.WAPI.BaseURL == "" {
		c.Providers.WAPI.BaseURL = "https://api.w-api.app"
	}
	if c.Providers.APIBrasil.BaseURL == "" {
		c.Providers.APIBrasil.BaseURL = "https://gateway.apibrasil.io"
	}
	if c.Providers.Gupshup.BaseURL == "" {
		c.Providers.Gupshup.BaseURL = "https://api.gupshup.io"
	}
	if c.Providers.Timeout == 0 {
		c.Providers.Timeout = 30 * time.Second
	}
	if c.LLM.DefaultModel == "" {
		c.LLM.DefaultModel = "google/gemini-2.5-flash"
	}
	if c.LLM.Timeout == 0 {
		c.LLM.Timeout = 60 * time.Second
	}
	if c.ElevenLabs.BaseURL == "" {
		c.ElevenLabs.BaseURL = "https://api.elevenlabs.io"
	}
	if c.ElevenLabs.TTSModel == "" {
		c.ElevenLabs.TTSModel = "eleven_multilingual_v2"
	}
	if c.ElevenLabs.STTModel == "" {
		c.ElevenLabs.STTModel = "scribe_v1"
	}
	if c.ElevenLabs.Timeout == 0 {
		c.ElevenLabs.Timeout = 60 * time.Second
	}
	if c.Bitrix.OAuthURL == "" {
		c.Bitrix.OAuthURL = "https://oauth.bitrix.info/oauth/token/"
	}
	if c.Bitrix.RefreshBuffer == 0 {
		c.Bitrix.RefreshBuffer = 5 * time.Minute
	}
	if c.Bitrix.Timeout == 0 {
		c.Bitrix.Timeout = 30 * time.Second
	}
	if c.Bitrix.LeadCacheTTL == 0 {
		c.Bitrix.LeadCacheTTL = 30 * time.Minute
	}
	if c.Knowledge.ChunkSize == 0 {
		c.Knowledge.ChunkSize = 1000
	}
	if c.Knowledge.ChunkOverlap == 0 {
		c.Knowledge.ChunkOverlap = 200
	}
	if c.Knowledge.TopN == 0 {
		c.Knowledge.TopN = 5
	}
	if c.Knowledge.HistoryLimit == 0 {
		c.Knowledge.HistoryLimit = 10
	}
	if c.Jobs.StatusSyncSpec == "" {
		c.Jobs.StatusSyncSpec = "@every 1m"
	}
	if c.Jobs.WebhookPurgeSpec == "" {
		c.Jobs.WebhookPurgeSpec = "@daily"
	}
	if c.Jobs.WebhookRetention == 0 {
		c.Jobs.WebhookRetention = 7 * 24 * time.Hour
	}
	if c.RateLimit.RPS == 0 {
		c.RateLimit.RPS = 1
	}
	if c.RateLimit.Burst == 0 {
		c.RateLimit.Burst = 5
	}
	if len(c.CORS.AllowedOrigins) == 0 {
		c.CORS.AllowedOrigins = []string{"http://localhost:5173"}
	}
}

// getEnvOrDefault returns env value or default
func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	// ${VAR:default} placeholders in the YAML file fall back to their default part
	if strings.HasPrefix(defaultVal, "${") && strings.HasSuffix(defaultVal, "}") {
		inner := defaultVal[2 : len(defaultVal)-1]
		parts := strings.SplitN(inner, ":", 2)
		if len(parts) == 2 {
			return parts[1]
		}
		return ""
	}
	return defaultVal
}

func getEnvOrDefaultInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if intVal, err := strconv.Atoi(val); err == nil && intVal > 0 {
			return intVal
		}
	}
	return defaultVal
}

func getEnvOrDefaultDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.App.Port <= 0 || c.App.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.App.Port)
	}
	if c.JWT.Secret == "" {
		return fmt.Errorf("JWT secret is required")
	}
	if c.Functions.ServiceKey == "" {
		return fmt.Errorf("functions service key is required")
	}
	if c.Knowledge.ChunkOverlap >= c.Knowledge.ChunkSize {
		return fmt.Errorf("chunk overlap (%d) must be smaller than chunk size (%d)",
			c.Knowledge.ChunkOverlap, c.Knowledge.ChunkSize)
	}
	return nil
}
