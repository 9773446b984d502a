package domain

import (
	"fmt"
	"time"
)

// Config holds the complete Harrier configuration.
type Config struct {
	// Server settings
	Server ServerConfig `json:"server"`

	// Tier determines feature availability
	Tier Tier `json:"tier"`

	// Decision pipeline settings (thresholds, escalation timeout)
	Decision DecisionConfig `json:"decision"`

	// Risk category weights; zero-value means the default equal weighting
	Risk RiskConfig `json:"risk"`

	// External collaborators
	Model     ModelConfig     `json:"model"`
	Reasoning ReasoningConfig `json:"reasoning"`

	// Component configurations
	Repository RepositoryConfig `json:"repository"`
	Cache      CacheConfig      `json:"cache"`
	EventBus   EventBusConfig   `json:"eventBus"`

	// Observability
	Logging LoggingConfig `json:"logging"`
	Tracing TracingConfig `json:"tracing"`
}

// DecisionConfig holds the threshold-routing settings.
type DecisionConfig struct {
	// ApproveThreshold: legitimacy score >= this auto-approves.
	ApproveThreshold float64 `json:"approveThreshold"`

	// DenyThreshold: legitimacy score <= this auto-denies.
	// Scores strictly between the two thresholds escalate.
	DenyThreshold float64 `json:"denyThreshold"`

	// ReasoningTimeout bounds the escalation reasoning call. On expiry the
	// decision degrades to review/review_required.
	ReasoningTimeout time.Duration `json:"reasoningTimeout"`
}

// RiskConfig holds tunable risk-scoring policy overrides.
type RiskConfig struct {
	// Weights maps category name to its share of the composite. When empty,
	// each of the five categories weighs 0.20.
	Weights map[RiskCategory]float64 `json:"weights,omitempty"`
}

// ModelConfig points at the external legitimacy-scoring service.
type ModelConfig struct {
	URL     string        `json:"url"`
	Timeout time.Duration `json:"timeout"`
}

// ReasoningConfig points at the external reasoning engine.
type ReasoningConfig struct {
	URL         string        `json:"url"`
	Model       string        `json:"model"`
	Temperature float64       `json:"temperature"`
	APIKey      string        `json:"-"`
	Timeout     time.Duration `json:"timeout"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host         string `json:"host"`
	Port         int    `json:"port"`
	ReadTimeout  int    `json:"readTimeout"`  // seconds
	WriteTimeout int    `json:"writeTimeout"` // seconds
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `json:"level"`  // debug, info, warn, error
	Format string `json:"format"` // json, text
}

// TracingConfig holds OpenTelemetry settings.
type TracingConfig struct {
	Enabled      bool   `json:"enabled"`
	ServiceName  string `json:"serviceName"`
	ExporterType string `json:"exporterType"` // stdout, otlp, jaeger
	Endpoint     string `json:"endpoint"`
}

// Tier represents the product tier.
type Tier string

const (
	// TierCommunity is the free tier with SQLite + channels
	TierCommunity Tier = "community"

	// TierPro is the paid tier with PostgreSQL + NATS + Redis
	TierPro Tier = "pro"
)

// DefaultConfig returns a default configuration for Community tier.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  30,
			WriteTimeout: 30,
		},
		Tier: TierCommunity,
		Decision: DecisionConfig{
			ApproveThreshold: 0.7,
			DenyThreshold:    0.4,
			ReasoningTimeout: 30 * time.Second,
		},
		Model: ModelConfig{
			URL:     "http://localhost:8000",
			Timeout: 10 * time.Second,
		},
		Reasoning: ReasoningConfig{
			URL:         "http://localhost:8001",
			Model:       "gpt-4",
			Temperature: 0.0,
			Timeout:     30 * time.Second,
		},
		Repository: RepositoryConfig{
			Driver:     "sqlite",
			SQLitePath: "./harrier.db",
		},
		Cache: CacheConfig{
			Type:         "memory",
			LocalMaxSize: 10000,
			LocalTTL:     5 * time.Minute,
		},
		EventBus: EventBusConfig{
			Type:              "channel",
			ChannelBufferSize: 1000,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Tracing: TracingConfig{
			Enabled:     false,
			ServiceName: "harrier",
		},
	}
}

// ProConfig returns a configuration for Pro tier.
func ProConfig() *Config {
	cfg := DefaultConfig()
	cfg.Tier = TierPro
	cfg.Repository = RepositoryConfig{
		Driver:       "postgres",
		PostgresHost: "localhost",
		PostgresPort: 5432,
		PostgresDB:   "harrier",
	}
	cfg.Cache = CacheConfig{
		Type:           "redis",
		RedisAddr:      "localhost:6379",
		EnableTwoPhase: true,
		LocalMaxSize:   1000,
	}
	cfg.EventBus = EventBusConfig{
		Type:              "nats",
		NATSUrl:           "nats://localhost:4222",
		NATSMaxReconnects: 10,
		NATSReconnectWait: 5,
	}
	cfg.Tracing.Enabled = true
	return cfg
}

// Validate rejects out-of-range thresholds and weights at startup so that
// request-time code never sees a bad configuration.
func (c *Config) Validate() error {
	d := c.Decision
	if d.ApproveThreshold < 0 || d.ApproveThreshold > 1 {
		return fmt.Errorf("approve threshold %v outside [0,1]", d.ApproveThreshold)
	}
	if d.DenyThreshold < 0 || d.DenyThreshold > 1 {
		return fmt.Errorf("deny threshold %v outside [0,1]", d.DenyThreshold)
	}
	// Equal thresholds are a valid degenerate configuration in which
	// escalation is unreachable; only an inverted ordering is rejected.
	if d.DenyThreshold > d.ApproveThreshold {
		return fmt.Errorf("deny threshold %v exceeds approve threshold %v", d.DenyThreshold, d.ApproveThreshold)
	}
	if d.ReasoningTimeout <= 0 {
		return fmt.Errorf("reasoning timeout must be positive")
	}
	if len(c.Risk.Weights) > 0 {
		var sum float64
		for cat, w := range c.Risk.Weights {
			if w < 0 || w > 1 {
				return fmt.Errorf("weight for %s outside [0,1]: %v", cat, w)
			}
			sum += w
		}
		if sum < 0.999 || sum > 1.001 {
			return fmt.Errorf("category weights must sum to 1.0, got %v", sum)
		}
	}
	return nil
}
