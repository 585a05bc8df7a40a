// Package config loads the extractor configuration from a YAML file with
// environment variable overrides and turns it into client, poller and report
// settings.
//
// Configuration sources (in precedence order, highest to lowest):
//  1. Environment variables (ADFORM_CLIENT_ID, ADFORM_CLIENT_SECRET,
//     ADFORM_ACCESS_TOKEN, ADFORM_REDIS_URL, ADFORM_LOG_LEVEL)
//  2. The configuration file
//  3. Built-in defaults
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Sternrassler/adform-stats-client/pkg/client"
	"github.com/Sternrassler/adform-stats-client/pkg/logging"
	"github.com/Sternrassler/adform-stats-client/pkg/pagination"
	"github.com/Sternrassler/adform-stats-client/pkg/report"
	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig wraps every validation and date resolution failure.
var ErrInvalidConfig = errors.New("invalid configuration")

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	retry := client.DefaultRetryConfig()
	return &Config{
		API: APIConfig{
			BaseURL:  client.DefaultBaseURL,
			TokenURL: client.DefaultTokenURL,
			Scope:    client.DefaultScope,
			Timeout:  60 * time.Second,
		},
		Output: OutputConfig{
			Directory:   ".",
			Incremental: true,
		},
		Retry: RetryConfig{
			MaxRetries:        retry.MaxRetries,
			InitialBackoff:    retry.InitialBackoff,
			MaxBackoff:        retry.MaxBackoff,
			BackoffMultiplier: retry.BackoffMultiplier,
		},
		Polling: PollingConfig{
			Interval:      report.DefaultPollInterval,
			AnomalyBudget: report.DefaultAnomalyBudget,
			PageLimit:     pagination.DefaultPageLimit,
		},
		Logging: LoggingConfig{
			Level: string(logging.LevelInfo),
		},
	}
}

// Load reads the configuration file at path over the defaults and applies
// environment overrides. It does not validate; call Validate.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		if err := loadConfigFile(path, cfg); err != nil {
			return nil, err
		}
	}

	applyEnvOverrides(cfg)
	cfg.Output.Directory = expandPath(cfg.Output.Directory)

	return cfg, nil
}

// loadConfigFile reads and parses a YAML config file.
func loadConfigFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("%w: read config file %s: %v", ErrInvalidConfig, path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("%w: parse config file %s: %v", ErrInvalidConfig, path, err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides to cfg.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("ADFORM_CLIENT_ID"); v != "" {
		cfg.API.ClientID = v
	}
	if v := os.Getenv("ADFORM_CLIENT_SECRET"); v != "" {
		cfg.API.ClientSecret = v
	}
	if v := os.Getenv("ADFORM_ACCESS_TOKEN"); v != "" {
		cfg.API.AccessToken = v
	}
	if v := os.Getenv("ADFORM_REDIS_URL"); v != "" {
		cfg.Redis.URL = v
	}
	if v := os.Getenv("ADFORM_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

// expandPath expands ~ and environment variables in paths.
func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			path = filepath.Join(home, path[2:])
		}
	}
	return os.ExpandEnv(path)
}

// UsesClientCredentials reports whether the client-credentials grant is configured.
func (c *Config) UsesClientCredentials() bool {
	return c.API.ClientID != "" && c.API.ClientSecret != ""
}

// Validate checks required parameters and value ranges. Every problem
// found is reported, joined into one error wrapping ErrInvalidConfig.
func (c *Config) Validate() error {
	var problems []string

	if !c.UsesClientCredentials() && c.API.AccessToken == "" {
		problems = append(problems, "api: client_id and client_secret, or access_token, are required")
	}
	if c.API.BaseURL == "" {
		problems = append(problems, "api.base_url is required")
	}

	if c.Report.Filter.DateRange.FromDate == "" || c.Report.Filter.DateRange.ToDate == "" {
		problems = append(problems, "report.filter.date_range: from_date and to_date are required")
	}
	if len(c.Report.Dimensions) == 0 {
		problems = append(problems, "report.dimensions must not be empty")
	}
	if len(c.Report.Metrics) == 0 {
		problems = append(problems, "report.metrics must not be empty")
	}
	for i, m := range c.Report.Metrics {
		if m.Metric == "" {
			problems = append(problems, fmt.Sprintf("report.metrics[%d].metric is required", i))
		}
		for j, s := range m.SpecsMetadata {
			if s.Key == "" {
				problems = append(problems, fmt.Sprintf("report.metrics[%d].specs_metadata[%d].key is required", i, j))
			}
		}
	}

	if c.Output.ResultFileName == "" {
		problems = append(problems, "output.result_file_name is required")
	} else if strings.ContainsAny(c.Output.ResultFileName, `/\`) {
		problems = append(problems, "output.result_file_name must be a file name, not a path")
	}

	if c.Retry.MaxRetries < 0 {
		problems = append(problems, fmt.Sprintf("retry.max_retries must be >= 0 (got %d)", c.Retry.MaxRetries))
	}
	if c.Polling.PageLimit < 0 {
		problems = append(problems, fmt.Sprintf("polling.page_limit must be >= 0 (got %d)", c.Polling.PageLimit))
	}
	if c.Logging.Level != "" && !logging.ValidLevel(c.Logging.Level) {
		problems = append(problems, fmt.Sprintf("logging.level %q is not one of debug, info, warn, error", c.Logging.Level))
	}

	if len(problems) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
}

// BuildMetrics flattens specs_metadata into metric spec maps.
func (c *Config) BuildMetrics() []report.Metric {
	metrics := make([]report.Metric, 0, len(c.Report.Metrics))
	for _, m := range c.Report.Metrics {
		metric := report.Metric{Name: m.Metric}
		if len(m.SpecsMetadata) > 0 {
			metric.Specs = make(map[string]string, len(m.SpecsMetadata))
			for _, s := range m.SpecsMetadata {
				metric.Specs[s.Key] = s.Value
			}
		}
		metrics = append(metrics, metric)
	}
	return metrics
}

// BuildFilter resolves the configured date range relative to now.
func (c *Config) BuildFilter(now time.Time) (report.Filter, error) {
	from, err := ParseDate(c.Report.Filter.DateRange.FromDate, now)
	if err != nil {
		return report.Filter{}, fmt.Errorf("%w: from_date: %v", ErrInvalidConfig, err)
	}
	to, err := ParseDate(c.Report.Filter.DateRange.ToDate, now)
	if err != nil {
		return report.Filter{}, fmt.Errorf("%w: to_date: %v", ErrInvalidConfig, err)
	}
	if from.After(to) {
		return report.Filter{}, fmt.Errorf("%w: start date %s cannot exceed end date %s",
			ErrInvalidConfig, from.Format(DateLayout), to.Format(DateLayout))
	}

	filter := report.Filter{
		Date: report.DateRange{From: from.Format(DateLayout), To: to.Format(DateLayout)},
	}
	if len(c.Report.Filter.ClientIDs) > 0 {
		filter.Client = &report.ClientFilter{IDs: c.Report.Filter.ClientIDs}
	}
	return filter, nil
}

// BuildRequest assembles the report definition, without paging.
func (c *Config) BuildRequest(now time.Time) (report.Request, error) {
	filter, err := c.BuildFilter(now)
	if err != nil {
		return report.Request{}, err
	}
	return report.Request{
		Dimensions: c.Report.Dimensions,
		Filter:     filter,
		Metrics:    c.BuildMetrics(),
	}, nil
}

// ClientConfig returns the transport configuration.
func (c *Config) ClientConfig() client.Config {
	cfg := client.DefaultConfig(c.API.AccessToken)
	cfg.BaseURL = c.API.BaseURL
	cfg.TokenURL = c.API.TokenURL
	cfg.Scope = c.API.Scope
	cfg.Timeout = c.API.Timeout
	cfg.Retry = client.RetryConfig{
		MaxRetries:        c.Retry.MaxRetries,
		InitialBackoff:    c.Retry.InitialBackoff,
		MaxBackoff:        c.Retry.MaxBackoff,
		BackoffMultiplier: c.Retry.BackoffMultiplier,
	}
	return cfg
}

// ClientCredentials returns the client-credentials grant parameters.
func (c *Config) ClientCredentials() client.ClientCredentials {
	return client.ClientCredentials{
		ClientID:     c.API.ClientID,
		ClientSecret: c.API.ClientSecret,
		Scope:        c.API.Scope,
	}
}

// PollerConfig returns the polling cadence.
func (c *Config) PollerConfig() report.PollerConfig {
	return report.PollerConfig{
		Interval:      c.Polling.Interval,
		AnomalyBudget: c.Polling.AnomalyBudget,
	}
}

// FetcherConfig returns the pagination settings.
func (c *Config) FetcherConfig() pagination.Config {
	return pagination.Config{PageLimit: c.Polling.PageLimit}
}

// ResultPath is the full path of the result CSV.
func (c *Config) ResultPath() string {
	return filepath.Join(c.Output.Directory, c.Output.ResultFileName)
}
