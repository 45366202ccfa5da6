// Package config loads pipeline, model and cloud settings from defaults, an
// optional YAML file and the environment, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Page-limit policies.
const (
	PolicyReject   = "reject"
	PolicyTruncate = "truncate"
)

// Model providers.
const (
	ProviderVertex = "vertex"
	ProviderOpenAI = "openai"
)

// Config is the explicit configuration object handed to every component.
type Config struct {
	Pipeline PipelineConfig `yaml:"pipeline"`
	Model    ModelConfig    `yaml:"model"`
	GCP      GCPConfig      `yaml:"gcp"`
	Cache    CacheConfig    `yaml:"cache"`
}

// PipelineConfig holds the tunables of the summarization core.
type PipelineConfig struct {
	MaxPages             int           `yaml:"maxPages"`
	PageLimitPolicy      string        `yaml:"pageLimitPolicy"`
	ContextTokenBudget   int           `yaml:"contextTokenBudget"`
	MaxRetries           int           `yaml:"maxRetries"`
	RetryBackoffBase     time.Duration `yaml:"retryBackoffBase"`
	RetryBackoffMax      time.Duration `yaml:"retryBackoffMax"`
	CallTimeout          time.Duration `yaml:"callTimeout"`
	ExtractConcurrency   int           `yaml:"extractConcurrency"`
	ExtractRatePerSecond float64       `yaml:"extractRatePerSecond"`
	DigestMaxSentences   int           `yaml:"digestMaxSentences"`
	RenderDPI            float64       `yaml:"renderDPI"`
	MaxRenderWidth       int           `yaml:"maxRenderWidth"`
	MaxFileBytes         int64         `yaml:"maxFileBytes"`
	MaxImageDimension    int           `yaml:"maxImageDimension"`
}

// ModelConfig selects and tunes the OCR, caption and summary models.
type ModelConfig struct {
	Provider        string  `yaml:"provider"`
	OCRModel        string  `yaml:"ocrModel"`
	CaptionModel    string  `yaml:"captionModel"`
	SummaryModel    string  `yaml:"summaryModel"`
	Temperature     float32 `yaml:"temperature"`
	MaxOutputTokens int     `yaml:"maxOutputTokens"`
	APIKey          string  `yaml:"apiKey"`
	BaseURL         string  `yaml:"baseURL"`
	APIType         string  `yaml:"apiType"`
	APIVersion      string  `yaml:"apiVersion"`
}

// GCPConfig names the cloud resources used by the functions.
type GCPConfig struct {
	ProjectID        string `yaml:"projectID"`
	Region           string `yaml:"region"`
	UploadBucket     string `yaml:"uploadBucket"`
	SummaryBucket    string `yaml:"summaryBucket"`
	CollectionName   string `yaml:"collectionName"`
	WorkflowID       string `yaml:"workflowID"`
	WorkflowLocation string `yaml:"workflowLocation"`
}

// CacheConfig configures the extraction cache. With an empty RedisAddr a
// bounded in-process cache holding at most MemoryEntries records is used.
type CacheConfig struct {
	RedisAddr     string        `yaml:"redisAddr"`
	RedisPassword string        `yaml:"redisPassword"`
	RedisDB       int           `yaml:"redisDB"`
	TTL           time.Duration `yaml:"ttl"`
	Prefix        string        `yaml:"prefix"`
	MemoryEntries int           `yaml:"memoryEntries"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Pipeline: PipelineConfig{
			MaxPages:           2000,
			PageLimitPolicy:    PolicyReject,
			ContextTokenBudget: 6000,
			MaxRetries:         3,
			RetryBackoffBase:   time.Second,
			RetryBackoffMax:    30 * time.Second,
			CallTimeout:        60 * time.Second,
			ExtractConcurrency: 10,
			DigestMaxSentences: 8,
			RenderDPI:          150,
			MaxRenderWidth:     1200,
			MaxFileBytes:       500 * 1024 * 1024,
			MaxImageDimension:  10000,
		},
		Model: ModelConfig{
			Provider:        ProviderVertex,
			OCRModel:        "gemini-1.5-pro",
			CaptionModel:    "gemini-1.5-flash",
			SummaryModel:    "gemini-1.5-pro",
			Temperature:     0.3,
			MaxOutputTokens: 800,
			APIType:         "openai",
		},
		GCP: GCPConfig{
			Region:           "us-central1",
			CollectionName:   "documents",
			WorkflowID:       "document-summary-orchestrator",
			WorkflowLocation: "us-central1",
		},
		Cache: CacheConfig{
			TTL:           24 * time.Hour,
			Prefix:        "docsum:",
			MemoryEntries: 1000,
		},
	}
}

// Load builds a Config from defaults, the YAML file at path (if any) and the
// environment. A .env file in the working directory is loaded first when present.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	e := &envReader{}

	p := &c.Pipeline
	e.int("MAX_PAGES", &p.MaxPages)
	e.str("PAGE_LIMIT_POLICY", &p.PageLimitPolicy)
	e.int("CONTEXT_TOKEN_BUDGET", &p.ContextTokenBudget)
	e.int("MAX_RETRIES", &p.MaxRetries)
	e.duration("RETRY_BACKOFF_BASE", &p.RetryBackoffBase)
	e.duration("RETRY_BACKOFF_MAX", &p.RetryBackoffMax)
	e.duration("CALL_TIMEOUT", &p.CallTimeout)
	e.int("EXTRACT_CONCURRENCY", &p.ExtractConcurrency)
	e.float("EXTRACT_RATE_PER_SECOND", &p.ExtractRatePerSecond)
	e.int("DIGEST_MAX_SENTENCES", &p.DigestMaxSentences)
	e.float("RENDER_DPI", &p.RenderDPI)
	e.int("MAX_RENDER_WIDTH", &p.MaxRenderWidth)
	e.int64("MAX_FILE_BYTES", &p.MaxFileBytes)
	e.int("MAX_IMAGE_DIMENSION", &p.MaxImageDimension)

	m := &c.Model
	e.str("MODEL_PROVIDER", &m.Provider)
	e.str("OCR_MODEL", &m.OCRModel)
	e.str("CAPTION_MODEL", &m.CaptionModel)
	e.str("SUMMARY_MODEL", &m.SummaryModel)
	e.float32("MODEL_TEMPERATURE", &m.Temperature)
	e.int("MODEL_MAX_OUTPUT_TOKENS", &m.MaxOutputTokens)
	e.str("OPENAI_API_KEY", &m.APIKey)
	e.str("OPENAI_BASE_URL", &m.BaseURL)
	e.str("OPENAI_API_TYPE", &m.APIType)
	e.str("OPENAI_API_VERSION", &m.APIVersion)

	g := &c.GCP
	e.str("PROJECT_ID", &g.ProjectID)
	e.str("VERTEX_AI_REGION", &g.Region)
	e.str("UPLOAD_BUCKET", &g.UploadBucket)
	e.str("SUMMARY_BUCKET", &g.SummaryBucket)
	e.str("FIRESTORE_COLLECTION", &g.CollectionName)
	e.str("WORKFLOW_ID", &g.WorkflowID)
	e.str("WORKFLOW_LOCATION", &g.WorkflowLocation)

	k := &c.Cache
	e.str("REDIS_ADDR", &k.RedisAddr)
	e.str("REDIS_PASSWORD", &k.RedisPassword)
	e.int("REDIS_DB", &k.RedisDB)
	e.duration("CACHE_TTL", &k.TTL)
	e.int("MEMORY_CACHE_ENTRIES", &k.MemoryEntries)

	return e.err
}

// Validate checks that the configuration is usable by the pipeline.
func (c *Config) Validate() error {
	p := c.Pipeline
	var errs []error
	if p.MaxPages <= 0 {
		errs = append(errs, fmt.Errorf("maxPages must be positive, got %d", p.MaxPages))
	}
	if p.PageLimitPolicy != PolicyReject && p.PageLimitPolicy != PolicyTruncate {
		errs = append(errs, fmt.Errorf("pageLimitPolicy must be %q or %q, got %q", PolicyReject, PolicyTruncate, p.PageLimitPolicy))
	}
	if p.ContextTokenBudget <= 0 {
		errs = append(errs, fmt.Errorf("contextTokenBudget must be positive, got %d", p.ContextTokenBudget))
	}
	if p.MaxRetries < 0 {
		errs = append(errs, fmt.Errorf("maxRetries must not be negative, got %d", p.MaxRetries))
	}
	if p.RetryBackoffBase <= 0 {
		errs = append(errs, fmt.Errorf("retryBackoffBase must be positive, got %s", p.RetryBackoffBase))
	}
	if p.RetryBackoffMax < p.RetryBackoffBase {
		errs = append(errs, fmt.Errorf("retryBackoffMax (%s) must be >= retryBackoffBase (%s)", p.RetryBackoffMax, p.RetryBackoffBase))
	}
	if p.ExtractConcurrency <= 0 {
		errs = append(errs, fmt.Errorf("extractConcurrency must be positive, got %d", p.ExtractConcurrency))
	}
	if p.DigestMaxSentences <= 0 {
		errs = append(errs, fmt.Errorf("digestMaxSentences must be positive, got %d", p.DigestMaxSentences))
	}
	if c.Cache.MemoryEntries <= 0 {
		errs = append(errs, fmt.Errorf("cache memoryEntries must be positive, got %d", c.Cache.MemoryEntries))
	}
	if c.Model.Provider != ProviderVertex && c.Model.Provider != ProviderOpenAI {
		errs = append(errs, fmt.Errorf("model provider must be %q or %q, got %q", ProviderVertex, ProviderOpenAI, c.Model.Provider))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return nil
}

// GetEnv is a helper to read an environment variable or return a default value.
func GetEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

// envReader applies environment overrides and keeps the first parse error.
type envReader struct {
	err error
}

func (e *envReader) lookup(key string) (string, bool) {
	if e.err != nil {
		return "", false
	}
	v, ok := os.LookupEnv(key)
	return v, ok && v != ""
}

func (e *envReader) fail(key, value string, err error) {
	e.err = fmt.Errorf("environment variable %s=%q: %w", key, value, err)
}

func (e *envReader) str(key string, dst *string) {
	if v, ok := e.lookup(key); ok {
		*dst = v
	}
}

func (e *envReader) int(key string, dst *int) {
	if v, ok := e.lookup(key); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			e.fail(key, v, err)
			return
		}
		*dst = n
	}
}

func (e *envReader) int64(key string, dst *int64) {
	if v, ok := e.lookup(key); ok {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			e.fail(key, v, err)
			return
		}
		*dst = n
	}
}

func (e *envReader) float(key string, dst *float64) {
	if v, ok := e.lookup(key); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			e.fail(key, v, err)
			return
		}
		*dst = f
	}
}

func (e *envReader) float32(key string, dst *float32) {
	if v, ok := e.lookup(key); ok {
		f, err := strconv.ParseFloat(v, 32)
		if err != nil {
			e.fail(key, v, err)
			return
		}
		*dst = float32(f)
	}
}

func (e *envReader) duration(key string, dst *time.Duration) {
	if v, ok := e.lookup(key); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			e.fail(key, v, err)
			return
		}
		*dst = d
	}
}
