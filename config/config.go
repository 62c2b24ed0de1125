/*
Package config provides configuration management for the scrape monitor.

This package separates configuration concerns from business logic and provides
a centralized way to build the backend client, the task lifecycle components
and the companion server's services from the environment.
*/
package config

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/datastore"
	"github.com/Nexora-Open-Source/scrape-monitor/archive"
	"github.com/Nexora-Open-Source/scrape-monitor/cache"
	"github.com/Nexora-Open-Source/scrape-monitor/client"
	"github.com/Nexora-Open-Source/scrape-monitor/container"
	"github.com/Nexora-Open-Source/scrape-monitor/handlers"
	"github.com/Nexora-Open-Source/scrape-monitor/lifecycle"
	"github.com/Nexora-Open-Source/scrape-monitor/middleware"
	"github.com/Nexora-Open-Source/scrape-monitor/monitoring"
	"github.com/Nexora-Open-Source/scrape-monitor/source"
	"github.com/sirupsen/logrus"
)

// Config holds all application configuration
type Config struct {
	APIBaseURL     string
	PollInterval   time.Duration
	RequestTimeout time.Duration
	MaxBodyBytes   int64
	LogLevel       string
	ServerPort     string
	// Optional integrations
	ProjectID      string
	JaegerEndpoint string
	// Client-side limiter for backend requests
	OutboundRPS   float64
	OutboundBurst int
	// Rate limiting configuration
	RateLimitRequestsPerMinute float64
	RateLimitBurst             int
	RateLimitCleanupInterval   time.Duration
	// Enhanced CORS configuration
	CORSConfig CORSConfig
	// Cleanup intervals
	ClientCleanupInterval time.Duration
	ResultCacheTTL        time.Duration
	ListPageSize          int
	FeedConcurrency       int
	FeedSourcesFile       string
	ArchiveQueueSize      int
	AlertWindow           int
	AlertInterval         time.Duration
	BatchConfig           BatchConfig
}

// BatchConfig holds batch submission settings
type BatchConfig struct {
	Workers         int           `json:"workers"`
	QueueSize       int           `json:"queue_size"`
	Backpressure    bool          `json:"backpressure"`
	RejectThreshold float64       `json:"reject_threshold"`
	WaitTimeout     time.Duration `json:"wait_timeout"`
	JobTimeout      time.Duration `json:"job_timeout"`
	Retention       time.Duration `json:"retention"`
}

// CORSConfig holds CORS-related configuration
type CORSConfig struct {
	// Environment-specific settings
	Environment string
	// Allowed origins based on environment
	DevelopmentOrigins []string
	StagingOrigins     []string
	ProductionOrigins  []string
	// Additional CORS settings
	AllowedMethods   []string
	AllowedHeaders   []string
	ExposedHeaders   []string
	AllowCredentials bool
	MaxAge           int
	// Dynamic origin validation
	AllowSubdomains bool
	AllowedDomains  []string
}

// Services holds all service dependencies
type Services struct {
	Container *container.Container
	Logger    *logrus.Logger
}

// AppConfig holds both configuration and services
type AppConfig struct {
	Config   *Config
	Services *Services
}

// NewConfig creates a new configuration instance
func NewConfig() *Config {
	environment := getEnv("ENVIRONMENT", "development")

	return &Config{
		APIBaseURL:     getEnv("API_BASE_URL", "http://localhost:8000/api"),
		PollInterval:   getEnvDuration("POLL_INTERVAL", lifecycle.DefaultPollInterval),
		RequestTimeout: getEnvDuration("REQUEST_TIMEOUT", 10*time.Second),
		MaxBodyBytes:   int64(getEnvInt("MAX_BODY_BYTES", int(client.DefaultMaxBodyBytes))),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		ServerPort:     getEnv("SERVER_PORT", "8080"),
		ProjectID:      getEnv("PROJECT_ID", ""),
		JaegerEndpoint: getEnv("JAEGER_ENDPOINT", ""),
		OutboundRPS:    getEnvFloat("OUTBOUND_RPS", 5),
		OutboundBurst:  getEnvInt("OUTBOUND_BURST", 10),
		// Rate limiting defaults (60 requests per minute, burst of 10)
		RateLimitRequestsPerMinute: getEnvFloat("RATE_LIMIT_RPM", 60.0),
		RateLimitBurst:             getEnvInt("RATE_LIMIT_BURST", 10),
		RateLimitCleanupInterval:   getEnvDuration("RATE_LIMIT_CLEANUP_INTERVAL", 5*time.Minute),
		// Enhanced CORS configuration
		CORSConfig: CORSConfig{
			Environment: environment,
			DevelopmentOrigins: getEnvSlice("DEV_CORS_ORIGINS", []string{
				"http://localhost:3000",
				"http://localhost:3001",
				"http://127.0.0.1:3000",
				"http://127.0.0.1:3001",
				"http://localhost:8080",
			}),
			StagingOrigins: getEnvSlice("STAGING_CORS_ORIGINS", []string{
				"https://staging.yourdomain.com",
				"https://staging-api.yourdomain.com",
			}),
			ProductionOrigins: getEnvSlice("PROD_CORS_ORIGINS", []string{
				"https://yourdomain.com",
				"https://www.yourdomain.com",
				"https://api.yourdomain.com",
			}),
			AllowedMethods: getEnvSlice("CORS_ALLOWED_METHODS", []string{
				"GET", "POST", "PUT", "DELETE", "OPTIONS",
			}),
			AllowedHeaders: getEnvSlice("CORS_ALLOWED_HEADERS", []string{
				"Content-Type", "Authorization", "X-Requested-With",
				"X-Request-ID", "Accept", "Origin", "Cache-Control",
			}),
			ExposedHeaders: getEnvSlice("CORS_EXPOSED_HEADERS", []string{
				"X-Request-ID", "X-Total-Count",
			}),
			AllowCredentials: getEnvBool("CORS_ALLOW_CREDENTIALS", true),
			MaxAge:           getEnvInt("CORS_MAX_AGE", 86400), // 24 hours
			AllowSubdomains:  getEnvBool("CORS_ALLOW_SUBDOMAINS", false),
			AllowedDomains:   getEnvSlice("CORS_ALLOWED_DOMAINS", []string{}),
		},
		ClientCleanupInterval: getEnvDuration("CLIENT_CLEANUP_INTERVAL", 1*time.Minute),
		ResultCacheTTL:        getEnvDuration("RESULT_CACHE_TTL", 30*time.Minute),
		ListPageSize:          getEnvInt("LIST_PAGE_SIZE", lifecycle.DefaultListLimit),
		FeedConcurrency:       getEnvInt("FEED_CONCURRENCY", source.DefaultConcurrency),
		FeedSourcesFile:       getEnv("FEED_SOURCES_FILE", "data/feeds.json"),
		ArchiveQueueSize:      getEnvInt("ARCHIVE_QUEUE_SIZE", 64),
		AlertWindow:           getEnvInt("ALERT_WINDOW", 20),
		AlertInterval:         getEnvDuration("ALERT_INTERVAL", time.Minute),
		BatchConfig: BatchConfig{
			Workers:         getEnvInt("BATCH_WORKERS", 3),
			QueueSize:       getEnvInt("BATCH_QUEUE_SIZE", 50),
			Backpressure:    getEnvBool("BATCH_BACKPRESSURE", true),
			RejectThreshold: getEnvFloat("BATCH_REJECT_THRESHOLD", 0.8), // Reject at 80% capacity
			WaitTimeout:     getEnvDuration("BATCH_WAIT_TIMEOUT", 5*time.Second),
			JobTimeout:      getEnvDuration("BATCH_JOB_TIMEOUT", 30*time.Second),
			Retention:       getEnvDuration("BATCH_RETENTION", 24*time.Hour),
		},
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	parsed, err := url.Parse(c.APIBaseURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("API_BASE_URL must be an absolute url, got %q", c.APIBaseURL)
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("POLL_INTERVAL must be positive, got %v", c.PollInterval)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("REQUEST_TIMEOUT must be positive, got %v", c.RequestTimeout)
	}
	if c.OutboundRPS < 0 {
		return fmt.Errorf("OUTBOUND_RPS must not be negative, got %v", c.OutboundRPS)
	}
	return nil
}

// NewClient builds the backend API client from the configuration
func (c *Config) NewClient(logger *logrus.Logger) (*client.Client, error) {
	opts := []client.Option{
		client.WithTimeout(c.RequestTimeout),
		client.WithLogger(logger),
		client.WithMaxBodyBytes(c.MaxBodyBytes),
	}
	if c.OutboundRPS > 0 {
		opts = append(opts, client.WithRateLimit(c.OutboundRPS, c.OutboundBurst))
	}
	return client.New(c.APIBaseURL, opts...)
}

// newArchive opens the Datastore archive when a project is configured
func newArchive(config *Config, logger *logrus.Logger) (archive.Archive, error) {
	if config.ProjectID == "" {
		logger.Info("PROJECT_ID not set, archiving outcomes in memory")
		return archive.NewMemoryArchive(), nil
	}

	datastoreClient, err := datastore.NewClient(context.Background(), config.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("failed to create Datastore client: %v", err)
	}
	logger.WithField("project_id", config.ProjectID).Info("Datastore client initialized successfully")
	return archive.NewDatastoreArchive(datastoreClient, logger), nil
}

// NewServices creates and initializes all service dependencies using DI container
func NewServices(config *Config) (*Services, error) {
	logger := middleware.Logger
	if logger == nil {
		logger = logrus.New()
		logger.SetLevel(logrus.InfoLevel)
	}

	apiClient, err := config.NewClient(logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create api client: %v", err)
	}

	store, err := newArchive(config, logger)
	if err != nil {
		return nil, err
	}

	diContainer := container.NewContainer()
	diContainer.RegisterSingleton(container.ServiceLogger, logger)
	diContainer.RegisterSingleton(container.ServiceClient, apiClient)
	diContainer.RegisterSingleton(container.ServiceArchive, store)
	diContainer.OnClose(container.ServiceArchive, store.Close)

	// Initialize cache
	inMemoryCache := cache.NewInMemoryCache(config.ResultCacheTTL)
	resultCache := cache.NewResultCacheManager(inMemoryCache, logger, config.ResultCacheTTL)
	diContainer.OnClose("cache", func() error {
		inMemoryCache.Stop()
		return nil
	})
	logger.Info("Result cache initialized successfully")

	fetcher := lifecycle.NewFetcher(apiClient, resultCache, logger)
	submitter := lifecycle.NewSubmitter(apiClient, logger)
	poller := lifecycle.NewPoller(apiClient, config.PollInterval, logger)
	coordinator := lifecycle.NewCoordinator(poller, fetcher, submitter, logger)
	lister := lifecycle.NewLister(apiClient, config.ListPageSize)
	diContainer.RegisterSingleton(container.ServiceFetcher, fetcher)
	diContainer.RegisterSingleton(container.ServiceSubmitter, submitter)
	diContainer.RegisterSingleton(container.ServiceCoordinator, coordinator)
	diContainer.RegisterSingleton(container.ServiceLister, lister)

	recorder := archive.NewRecorder(store, logger, config.ArchiveQueueSize)
	diContainer.OnClose("recorder", func() error {
		recorder.Stop()
		return nil
	})

	alertManager := monitoring.NewAlertManager(logger, config.AlertWindow, config.AlertInterval)
	diContainer.RegisterSingleton(container.ServiceAlertManager, alertManager)
	diContainer.OnClose(container.ServiceAlertManager, func() error {
		alertManager.Stop()
		return nil
	})

	coordinator.Subscribe(func(snap lifecycle.Snapshot) {
		if !snap.Terminal() {
			return
		}
		recorder.Observe(snap)
		alertManager.RecordOutcome(snap.Outcome())
	})
	diContainer.OnClose(container.ServiceCoordinator, func() error {
		coordinator.Close()
		return nil
	})

	diContainer.RegisterFactory(container.ServiceBatchProcessor, func() (interface{}, error) {
		processor := handlers.NewBatchProcessor(config.BatchConfig.processorConfig(), submitter, logger)
		diContainer.OnClose(container.ServiceBatchProcessor, func() error {
			processor.Stop()
			return nil
		})
		return processor, nil
	})

	diContainer.RegisterFactory(container.ServiceHandler, func() (interface{}, error) {
		batches, err := diContainer.GetBatchProcessor()
		if err != nil {
			return nil, err
		}
		feeds := source.NewReader(nil, config.FeedConcurrency, logger)
		return handlers.NewHandler(coordinator, lister, fetcher, batches, feeds, store, logger), nil
	})

	return &Services{
		Container: diContainer,
		Logger:    logger,
	}, nil
}

func (b BatchConfig) processorConfig() handlers.BatchProcessorConfig {
	cfg := handlers.DefaultBatchProcessorConfig()
	cfg.Workers = b.Workers
	cfg.QueueSize = b.QueueSize
	cfg.BackpressureEnabled = b.Backpressure
	cfg.RejectThreshold = b.RejectThreshold
	cfg.WaitTimeout = b.WaitTimeout
	cfg.JobTimeout = b.JobTimeout
	cfg.Retention = b.Retention
	return cfg
}

// NewAppConfig creates a new application configuration with all dependencies
func NewAppConfig() (*AppConfig, error) {
	config := NewConfig()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %v", err)
	}

	services, err := NewServices(config)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize services: %v", err)
	}

	return &AppConfig{
		Config:   config,
		Services: services,
	}, nil
}

// Close gracefully closes all service connections
func (s *Services) Close() error {
	if s.Container != nil {
		return s.Container.Close()
	}
	return nil
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvFloat gets an environment variable as float64 with a default value
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getEnvInt gets an environment variable as int with a default value
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getEnvDuration gets an environment variable as time.Duration with a default value
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getEnvBool gets an environment variable as bool with a default value
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getEnvSlice gets an environment variable as a string slice with a default value
func getEnvSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		return strings.Split(value, ",")
	}
	return defaultValue
}
