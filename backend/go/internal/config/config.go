package config

import (
	"AgentOffice/backend/go/internal/models"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// RedisConfig holds the Redis connection settings.
type RedisConfig struct {
	Address  string `yaml:"address"`  // e.g. "localhost:6379"; empty disables Redis
	Password string `yaml:"password"` // Redis password
	DB       int    `yaml:"db"`       // database number
}

// MongoConfig holds the MongoDB connection settings.
type MongoConfig struct {
	Address  string `yaml:"address"`  // host:port
	Username string `yaml:"username"` // user name
	Password string `yaml:"password"` // password
	Database string `yaml:"database"` // database name
}

// KafkaConfig holds the Kafka settings for event mirroring and callback ingress.
type KafkaConfig struct {
	Brokers        []string `yaml:"brokers"`        // broker addresses
	EventsTopic    string   `yaml:"eventsTopic"`    // dashboard events are mirrored here when set
	CallbacksTopic string   `yaml:"callbacksTopic"` // callbacks are consumed from here when set
	GroupID        string   `yaml:"groupID"`        // consumer group for the callbacks topic
}

// DatabaseConfigs groups the infrastructure clients.
type DatabaseConfigs struct {
	Redis   RedisConfig `yaml:"redis"`
	MongoDB MongoConfig `yaml:"mongodb"`
	Kafka   KafkaConfig `yaml:"kafka"`
}

// AppInfo is the 'app' section.
type AppInfo struct {
	Name        string `yaml:"name"`        // service name used in logs
	Version     string `yaml:"version"`     // application version
	Environment string `yaml:"environment"` // "development", "production"
	BaseURL     string `yaml:"baseURL"`     // public URL of this service
}

// ServerConfig is the HTTP listener.
type ServerConfig struct {
	Address        string   `yaml:"address"`        // e.g. ":8000"
	AllowedOrigins []string `yaml:"allowedOrigins"` // CORS origins; "*" allows all
}

// LoggerConfig configures the logger.
type LoggerConfig struct {
	Level string `yaml:"level"` // "debug", "info", "warn", "error"
}

// AuthConfig protects the admin routes.
type AuthConfig struct {
	JwtSecret string `yaml:"jwtSecret"` // HS256 secret; empty leaves admin routes open
}

// RESTStoreConfig points at a PostgREST compatible row store.
type RESTStoreConfig struct {
	URL     string `yaml:"url"`     // e.g. "https://xyz.supabase.co"
	APIKey  string `yaml:"apiKey"`  // service key sent as apikey and bearer token
	Timeout string `yaml:"timeout"` // per request, e.g. "15s"
}

// StorageConfig selects the persistence backend.
type StorageConfig struct {
	Driver string          `yaml:"driver"` // "rest", "mongo", "memory" or empty for no persistence
	REST   RESTStoreConfig `yaml:"rest"`
}

// WorkflowConfig describes the external workflow engine.
type WorkflowConfig struct {
	WebhookURL      string `yaml:"webhookURL"`      // task intake endpoint
	CallbackURL     string `yaml:"callbackURL"`     // sent along with each task
	HealthURL       string `yaml:"healthURL"`       // defaults to <webhook origin>/healthz
	DispatchTimeout string `yaml:"dispatchTimeout"` // e.g. "300s"
	HealthTimeout   string `yaml:"healthTimeout"`   // e.g. "10s"
}

// TelegramConfig configures the chat-bot notifier.
type TelegramConfig struct {
	BotToken string `yaml:"botToken"`
	ChatID   string `yaml:"chatID"`  // admin chat receiving notifications
	APIBase  string `yaml:"apiBase"` // defaults to https://api.telegram.org
}

// OpenAIConfig configures an OpenAI compatible endpoint.
type OpenAIConfig struct {
	APIKey  string `yaml:"apiKey"`
	Model   string `yaml:"model"`
	BaseURL string `yaml:"baseURL"`
}

// GeminiConfig configures the Gemini model.
type GeminiConfig struct {
	APIKey string `yaml:"apiKey"`
	Model  string `yaml:"model"`
}

// LLMConfig selects the language model provider.
type LLMConfig struct {
	Provider string       `yaml:"provider"` // "openai" or "gemini"
	OpenAI   OpenAIConfig `yaml:"openai"`
	Gemini   GeminiConfig `yaml:"gemini"`
	Timeout  string       `yaml:"timeout"`
}

// LifecycleConfig tunes the task lifecycle.
type LifecycleConfig struct {
	HistoryLimit          int               `yaml:"historyLimit"`          // chat messages kept in memory
	SnapshotHistory       int               `yaml:"snapshotHistory"`       // messages sent on websocket init
	TaskTextLimit         int               `yaml:"taskTextLimit"`         // runes kept from an agent task text
	StaleAfter            string            `yaml:"staleAfter"`            // processing tasks older than this time out
	SweepInterval         string            `yaml:"sweepInterval"`         // stale sweep period
	MaxActionQuests       int               `yaml:"maxActionQuests"`       // user-action quests per completion
	ActionKeywords        []string          `yaml:"actionKeywords"`        // plain-text user actions needing input
	ClarificationKeywords []string          `yaml:"clarificationKeywords"` // responses treated as questions
	Agents                []models.AgentDef `yaml:"agents"`                // agent catalogue
}

// MonitorConfig tunes the background monitor.
type MonitorConfig struct {
	Enabled             bool   `yaml:"enabled"`
	InitialDelay        string `yaml:"initialDelay"`
	HealthInterval      string `yaml:"healthInterval"`
	ErrorRateInterval   string `yaml:"errorRateInterval"`
	ErrorRateWindow     string `yaml:"errorRateWindow"`
	ErrorRateThreshold  int    `yaml:"errorRateThreshold"`
	StuckInterval       string `yaml:"stuckInterval"`
	StuckAfter          string `yaml:"stuckAfter"`
	AlertCooldown       string `yaml:"alertCooldown"`
	DailyReportDisabled bool   `yaml:"dailyReportDisabled"`
}

// MiddlewareConfig configures the HTTP middlewares.
type MiddlewareConfig struct {
	RateLimiter    RateLimiterConfig    `yaml:"rateLimiter"`
	CircuitBreaker CircuitBreakerConfig `yaml:"circuitBreaker"`
}

// RateLimiterConfig configures request rate limiting.
type RateLimiterConfig struct {
	Enabled     bool              `yaml:"enabled"`
	Algorithm   string            `yaml:"algorithm"` // "fixedWindow" or "tokenBucket"
	FixedWindow FixedWindowConfig `yaml:"fixedWindow"`
	TokenBucket TokenBucketConfig `yaml:"tokenBucket"`
}

// FixedWindowConfig configures the fixed window counter.
type FixedWindowConfig struct {
	Limit  int    `yaml:"limit"`
	Window string `yaml:"window"` // e.g. "1m", "30s"
}

// TokenBucketConfig configures the token bucket.
type TokenBucketConfig struct {
	Rate     float64 `yaml:"rate"` // tokens per second
	Capacity int     `yaml:"capacity"`
}

// CircuitBreakerConfig configures the circuit breaker.
type CircuitBreakerConfig struct {
	Enabled          bool   `yaml:"enabled"`
	Inbound          bool   `yaml:"inbound"` // also guard the HTTP server, not only outbound clients
	FailureThreshold uint32 `yaml:"failureThreshold"`
	SuccessThreshold uint32 `yaml:"successThreshold"`
	Timeout          string `yaml:"timeout"` // e.g. "30s"
}

// AppConfig is the root of the YAML file.
type AppConfig struct {
	App        AppInfo          `yaml:"app"`
	Server     ServerConfig     `yaml:"server"`
	Logger     LoggerConfig     `yaml:"logger"`
	Auth       AuthConfig       `yaml:"auth"`
	Storage    StorageConfig    `yaml:"storage"`
	Databases  DatabaseConfigs  `yaml:"databases"`
	Workflow   WorkflowConfig   `yaml:"workflow"`
	Telegram   TelegramConfig   `yaml:"telegram"`
	LLM        LLMConfig        `yaml:"llm"`
	Lifecycle  LifecycleConfig  `yaml:"lifecycle"`
	Monitor    MonitorConfig    `yaml:"monitor"`
	Middleware MiddlewareConfig `yaml:"middleware"`
}

// DefaultActionKeywords mark a plain-text user action as needing input.
var DefaultActionKeywords = []string{"укажи", "введи", "добавь", "настрой", "предоставь", "provide", "enter"}

// DefaultClarificationKeywords mark a quest response as a question rather than an answer.
var DefaultClarificationKeywords = []string{
	"?", "не понимаю", "непонятно", "что значит", "что такое", "как это", "зачем", "уточни", "объясни",
	"what do you mean", "unclear", "explain",
}

// LoadConfig reads the YAML file at path, expands ${VAR} references from the
// environment and fills in defaults.
func LoadConfig(path string) (*AppConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config '%s': %w", path, err)
	}
	cfg, err := Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse config '%s': %w", path, err)
	}
	return cfg, nil
}

// Parse decodes a YAML document into an AppConfig with defaults applied.
func Parse(raw []byte) (*AppConfig, error) {
	var cfg AppConfig
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(raw))), &cfg); err != nil {
		return nil, err
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ApplyDefaults fills every zero value that has a sensible default.
func (c *AppConfig) ApplyDefaults() {
	if c.App.Name == "" {
		c.App.Name = "office_service"
	}
	if c.Server.Address == "" {
		c.Server.Address = ":8000"
	}
	if c.Logger.Level == "" {
		c.Logger.Level = "info"
	}
	if c.Storage.REST.Timeout == "" {
		c.Storage.REST.Timeout = "15s"
	}
	if c.Workflow.DispatchTimeout == "" {
		c.Workflow.DispatchTimeout = "300s"
	}
	if c.Workflow.HealthTimeout == "" {
		c.Workflow.HealthTimeout = "10s"
	}
	if c.Telegram.APIBase == "" {
		c.Telegram.APIBase = "https://api.telegram.org"
	}
	if c.LLM.Timeout == "" {
		c.LLM.Timeout = "60s"
	}
	if c.LLM.OpenAI.Model == "" {
		c.LLM.OpenAI.Model = "gpt-4o-mini"
	}
	if c.LLM.Gemini.Model == "" {
		c.LLM.Gemini.Model = "gemini-1.5-flash"
	}

	l := &c.Lifecycle
	if l.HistoryLimit <= 0 {
		l.HistoryLimit = 200
	}
	if l.SnapshotHistory <= 0 {
		l.SnapshotHistory = 80
	}
	if l.TaskTextLimit <= 0 {
		l.TaskTextLimit = 120
	}
	if l.StaleAfter == "" {
		l.StaleAfter = "10m"
	}
	if l.SweepInterval == "" {
		l.SweepInterval = "5m"
	}
	if l.MaxActionQuests <= 0 {
		l.MaxActionQuests = 3
	}
	if len(l.ActionKeywords) == 0 {
		l.ActionKeywords = append([]string(nil), DefaultActionKeywords...)
	}
	if len(l.ClarificationKeywords) == 0 {
		l.ClarificationKeywords = append([]string(nil), DefaultClarificationKeywords...)
	}
	if len(l.Agents) == 0 {
		l.Agents = models.DefaultAgents()
	}

	m := &c.Monitor
	if m.InitialDelay == "" {
		m.InitialDelay = "30s"
	}
	if m.HealthInterval == "" {
		m.HealthInterval = "60s"
	}
	if m.ErrorRateInterval == "" {
		m.ErrorRateInterval = "5m"
	}
	if m.ErrorRateWindow == "" {
		m.ErrorRateWindow = "10m"
	}
	if m.ErrorRateThreshold <= 0 {
		m.ErrorRateThreshold = 3
	}
	if m.StuckInterval == "" {
		m.StuckInterval = "2m"
	}
	if m.StuckAfter == "" {
		m.StuckAfter = "10m"
	}
	if m.AlertCooldown == "" {
		m.AlertCooldown = "15m"
	}

	rl := &c.Middleware.RateLimiter
	if rl.Algorithm == "" {
		rl.Algorithm = "tokenBucket"
	}
	if rl.TokenBucket.Rate <= 0 {
		rl.TokenBucket.Rate = 20
	}
	if rl.TokenBucket.Capacity <= 0 {
		rl.TokenBucket.Capacity = 40
	}
	if rl.FixedWindow.Limit <= 0 {
		rl.FixedWindow.Limit = 600
	}
	if rl.FixedWindow.Window == "" {
		rl.FixedWindow.Window = "1m"
	}
	cb := &c.Middleware.CircuitBreaker
	if cb.FailureThreshold == 0 {
		cb.FailureThreshold = 5
	}
	if cb.SuccessThreshold == 0 {
		cb.SuccessThreshold = 2
	}
	if cb.Timeout == "" {
		cb.Timeout = "30s"
	}
}

// Validate rejects configurations the service cannot start with.
func (c *AppConfig) Validate() error {
	switch c.Storage.Driver {
	case "", "memory", "mongo":
	case "rest":
		if c.Storage.REST.URL == "" {
			return fmt.Errorf("storage.rest.url is required for the rest driver")
		}
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
	if c.Storage.Driver == "mongo" && c.Databases.MongoDB.Address == "" {
		return fmt.Errorf("databases.mongodb.address is required for the mongo driver")
	}
	seen := make(map[string]bool, len(c.Lifecycle.Agents))
	for _, a := range c.Lifecycle.Agents {
		key := strings.TrimSpace(a.Key)
		if key == "" {
			return fmt.Errorf("agent catalogue entry without key")
		}
		if seen[key] {
			return fmt.Errorf("duplicate agent key %q", key)
		}
		seen[key] = true
	}
	if !seen[models.ManagerKey] {
		return fmt.Errorf("agent catalogue must contain %q", models.ManagerKey)
	}
	return nil
}

// Duration parses a duration string, returning fallback when it is empty or invalid.
func Duration(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
