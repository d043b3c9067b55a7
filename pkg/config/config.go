package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration options for the geodata extractor
type Config struct {
	// API credentials and endpoint
	Flickr FlickrConfig `yaml:"flickr" json:"flickr"`

	// Search area, date range and query shape
	Search SearchConfig `yaml:"search" json:"search"`

	// Rate limiting and retry configuration
	RateLimit RateLimitConfig `yaml:"rate_limit" json:"rate_limit"`

	// Output settings
	Output OutputConfig `yaml:"output" json:"output"`

	// Extraction run settings
	Extract ExtractConfig `yaml:"extract" json:"extract"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// FlickrConfig holds API-specific configuration
type FlickrConfig struct {
	APIKey    string `yaml:"api_key" json:"api_key"`
	APISecret string `yaml:"api_secret" json:"api_secret"`
	Endpoint  string `yaml:"endpoint" json:"endpoint"`
}

// SearchConfig describes the area, date range and query shape of a run
type SearchConfig struct {
	// BBox is the search area as "minlon,minlat,maxlon,maxlat"
	BBox string `yaml:"bbox" json:"bbox"`
	// NumSeg splits the area into NumSeg x NumSeg cells
	NumSeg int `yaml:"num_seg" json:"num_seg"`
	// StartYear and EndYear bound the date range, inclusive
	StartYear int `yaml:"start_year" json:"start_year"`
	EndYear   int `yaml:"end_year" json:"end_year"`
	// Cap is the maximum number of records a single query returns
	Cap int `yaml:"cap" json:"cap"`
	// PerPage is the page size for result fetching (API maximum is 250)
	PerPage int `yaml:"per_page" json:"per_page"`
	// HasGeo restricts results to geotagged records
	HasGeo bool `yaml:"has_geo" json:"has_geo"`
	// Sort is the API sort order
	Sort string `yaml:"sort" json:"sort"`
	// Extras lists additional record fields to request
	Extras string `yaml:"extras" json:"extras"`
	// Params holds extra key=value query parameters passed through verbatim
	Params map[string]string `yaml:"params" json:"params"`
}

// RateLimitConfig holds rate limiting and retry configuration
type RateLimitConfig struct {
	QueriesPerHour    int           `yaml:"queries_per_hour" json:"queries_per_hour"`
	BackoffMultiplier float64       `yaml:"backoff_multiplier" json:"backoff_multiplier"`
	MaxRetries        int           `yaml:"max_retries" json:"max_retries"`
	RetryDelay        time.Duration `yaml:"retry_delay" json:"retry_delay"`
}

// OutputConfig holds output configuration
type OutputConfig struct {
	Directory         string `yaml:"directory" json:"directory"`
	RunName           string `yaml:"run_name" json:"run_name"`
	Zip               bool   `yaml:"zip" json:"zip"`
	OverwriteExisting bool   `yaml:"overwrite_existing" json:"overwrite_existing"`
}

// ExtractConfig holds extraction run configuration
type ExtractConfig struct {
	// Workers is the number of grid cells fetched concurrently
	Workers int `yaml:"workers" json:"workers"`
	// QueryTimeout bounds a single API call
	QueryTimeout time.Duration `yaml:"query_timeout" json:"query_timeout"`
	// Resume continues a previous run from its checkpoint
	Resume bool `yaml:"resume" json:"resume"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
	File  string `yaml:"file" json:"file"`
}

// DefaultConfig returns a Config instance with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Flickr: FlickrConfig{
			Endpoint: "https://api.flickr.com/services/rest/",
		},
		Search: SearchConfig{
			NumSeg:  1,
			Cap:     4000,
			PerPage: 250,
			HasGeo:  true,
			Sort:    "date-taken-asc",
			Extras:  "geo,date_taken,date_upload,owner_name,views,tags",
		},
		RateLimit: RateLimitConfig{
			QueriesPerHour:    3600,
			BackoffMultiplier: 2.0,
			MaxRetries:        3,
			RetryDelay:        5 * time.Second,
		},
		Output: OutputConfig{
			Directory:         "./output",
			Zip:               false,
			OverwriteExisting: false,
		},
		Extract: ExtractConfig{
			Workers:      1,
			QueryTimeout: 60 * time.Second,
		},
		Logging: LoggingConfig{
			Level: "info",
			File:  "",
		},
	}
}

// LoadFromEnv loads configuration from environment variables
func (c *Config) LoadFromEnv() error {
	if apiKey := os.Getenv("FLICKRGEO_API_KEY"); apiKey != "" {
		c.Flickr.APIKey = apiKey
	}
	if apiSecret := os.Getenv("FLICKRGEO_API_SECRET"); apiSecret != "" {
		c.Flickr.APISecret = apiSecret
	}
	if endpoint := os.Getenv("FLICKRGEO_ENDPOINT"); endpoint != "" {
		c.Flickr.Endpoint = endpoint
	}

	if qph := os.Getenv("FLICKRGEO_QUERIES_PER_HOUR"); qph != "" {
		var val int
		fmt.Sscanf(qph, "%d", &val)
		if val > 0 {
			c.RateLimit.QueriesPerHour = val
		}
	}

	if outputDir := os.Getenv("FLICKRGEO_OUTPUT_DIR"); outputDir != "" {
		c.Output.Directory = outputDir
	}

	if workers := os.Getenv("FLICKRGEO_WORKERS"); workers != "" {
		var val int
		fmt.Sscanf(workers, "%d", &val)
		if val > 0 {
			c.Extract.Workers = val
		}
	}

	if cap := os.Getenv("FLICKRGEO_CAP"); cap != "" {
		var val int
		fmt.Sscanf(cap, "%d", &val)
		if val > 0 {
			c.Search.Cap = val
		}
	}

	if logLevel := os.Getenv("FLICKRGEO_LOG_LEVEL"); logLevel != "" {
		c.Logging.Level = logLevel
	}

	return nil
}

// LoadFromFile loads configuration from a YAML file
func (c *Config) LoadFromFile(path string) error {
	// If path is empty, try default locations
	if path == "" {
		path = c.findConfigFile()
		if path == "" {
			return nil // No config file found, not an error
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// findConfigFile searches for config file in standard locations
func (c *Config) findConfigFile() string {
	// Check in order of precedence
	locations := []string{
		".flickrgeo.yaml",
		".flickrgeo.yml",
		filepath.Join(os.Getenv("HOME"), ".config", "flickrgeo", "config.yaml"),
		filepath.Join(os.Getenv("HOME"), ".config", "flickrgeo", "config.yml"),
		filepath.Join(os.Getenv("HOME"), ".flickrgeo.yaml"),
		filepath.Join(os.Getenv("HOME"), ".flickrgeo.yml"),
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}

	return ""
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	var errs []error

	// The API key is checked at the command layer so stored credentials
	// can be resolved after loading
	if c.Flickr.Endpoint == "" {
		errs = append(errs, errors.New("API endpoint is required"))
	}

	if c.Search.NumSeg < 1 {
		errs = append(errs, errors.New("num_seg must be at least 1"))
	}
	if c.Search.Cap <= 0 {
		errs = append(errs, errors.New("query cap must be positive"))
	}
	if c.Search.PerPage < 1 || c.Search.PerPage > 250 {
		errs = append(errs, errors.New("per_page must be between 1 and 250"))
	}
	if c.Search.StartYear > c.Search.EndYear {
		errs = append(errs, errors.New("start year must not be after end year"))
	}

	if c.RateLimit.QueriesPerHour <= 0 {
		errs = append(errs, errors.New("queries per hour must be positive"))
	}
	if c.RateLimit.MaxRetries < 0 {
		errs = append(errs, errors.New("max retries cannot be negative"))
	}

	if c.Output.Directory == "" {
		errs = append(errs, errors.New("output directory is required"))
	}

	if c.Extract.Workers <= 0 {
		errs = append(errs, errors.New("workers must be positive"))
	}
	if c.Extract.Workers > 16 {
		errs = append(errs, errors.New("workers should not exceed 16"))
	}
	if c.Extract.QueryTimeout <= 0 {
		errs = append(errs, errors.New("query timeout must be positive"))
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, errors.New("invalid log level"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}

// Save saves the configuration to a file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// MergeCommandLineFlags merges command line flags into the configuration
func (c *Config) MergeCommandLineFlags(flags map[string]interface{}) {
	if apiKey, ok := flags["api-key"].(string); ok && apiKey != "" {
		c.Flickr.APIKey = apiKey
	}
	if bbox, ok := flags["bbox"].(string); ok && bbox != "" {
		c.Search.BBox = bbox
	}
	if numSeg, ok := flags["num-seg"].(int); ok && numSeg > 0 {
		c.Search.NumSeg = numSeg
	}
	if from, ok := flags["from"].(int); ok && from > 0 {
		c.Search.StartYear = from
	}
	if to, ok := flags["to"].(int); ok && to > 0 {
		c.Search.EndYear = to
	}
	if cap, ok := flags["cap"].(int); ok && cap > 0 {
		c.Search.Cap = cap
	}
	if outputDir, ok := flags["output"].(string); ok && outputDir != "" {
		c.Output.Directory = outputDir
	}
	if runName, ok := flags["run-name"].(string); ok && runName != "" {
		c.Output.RunName = runName
	}
	if zip, ok := flags["zip"].(bool); ok {
		c.Output.Zip = zip
	}
	if workers, ok := flags["workers"].(int); ok && workers > 0 {
		c.Extract.Workers = workers
	}
	if resume, ok := flags["resume"].(bool); ok {
		c.Extract.Resume = resume
	}
	if params, ok := flags["params"].(map[string]string); ok && len(params) > 0 {
		if c.Search.Params == nil {
			c.Search.Params = make(map[string]string, len(params))
		}
		for k, v := range params {
			c.Search.Params[k] = v
		}
	}
	if logLevel, ok := flags["log-level"].(string); ok && logLevel != "" {
		c.Logging.Level = logLevel
	}
}

// Load loads configuration from all sources with proper precedence
// Precedence order: Command line flags > Environment variables > .env file > Config file > Defaults
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	// Try to load .env files (don't fail if they don't exist)
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".env"))
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".flickrgeo.env"))

	// Start with defaults
	config := DefaultConfig()

	// Load from config file
	if err := config.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	// Override with environment variables (includes values from .env)
	if err := config.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	// Override with command line flags
	config.MergeCommandLineFlags(flags)

	// Validate final configuration
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}
