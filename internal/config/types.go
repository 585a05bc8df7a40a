package config

import "time"

// Config is the complete extractor configuration.
type Config struct {
	API     APIConfig     `yaml:"api"`
	Report  ReportConfig  `yaml:"report"`
	Output  OutputConfig  `yaml:"output"`
	Retry   RetryConfig   `yaml:"retry"`
	Polling PollingConfig `yaml:"polling"`
	Redis   RedisConfig   `yaml:"redis"`
	Logging LoggingConfig `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// APIConfig locates the Adform API and holds the credentials. Either
// client_id and client_secret or a pre-issued access_token must be set.
type APIConfig struct {
	BaseURL      string        `yaml:"base_url"`
	TokenURL     string        `yaml:"token_url"`
	Scope        string        `yaml:"scope"`
	ClientID     string        `yaml:"client_id"`
	ClientSecret string        `yaml:"client_secret"`
	AccessToken  string        `yaml:"access_token"`
	Timeout      time.Duration `yaml:"timeout"`
}

// ReportConfig is the report definition.
type ReportConfig struct {
	Filter     FilterConfig   `yaml:"filter"`
	Dimensions []string       `yaml:"dimensions"`
	Metrics    []MetricConfig `yaml:"metrics"`
}

// FilterConfig selects report rows.
type FilterConfig struct {
	DateRange DateRangeConfig `yaml:"date_range"`
	ClientIDs []int64         `yaml:"client_ids"`
}

// DateRangeConfig holds absolute (YYYY-MM-DD) or relative ("3 days ago") dates.
type DateRangeConfig struct {
	FromDate string `yaml:"from_date"`
	ToDate   string `yaml:"to_date"`
}

// MetricConfig is one requested metric.
type MetricConfig struct {
	Metric        string       `yaml:"metric"`
	SpecsMetadata []SpecConfig `yaml:"specs_metadata"`
}

// SpecConfig is one metric qualifier, e.g. adUniqueness=campaignUnique.
type SpecConfig struct {
	Key   string `yaml:"key"`
	Value string `yaml:"value"`
}

// OutputConfig controls where results are written.
type OutputConfig struct {
	Directory      string `yaml:"directory"`
	ResultFileName string `yaml:"result_file_name"`
	Incremental    bool   `yaml:"incremental"`
}

// RetryConfig tunes the transport retry loop.
type RetryConfig struct {
	MaxRetries        int           `yaml:"max_retries"`
	InitialBackoff    time.Duration `yaml:"initial_backoff"`
	MaxBackoff        time.Duration `yaml:"max_backoff"`
	BackoffMultiplier float64       `yaml:"backoff_multiplier"`
}

// PollingConfig tunes operation polling and paging.
type PollingConfig struct {
	Interval      time.Duration `yaml:"interval"`
	AnomalyBudget time.Duration `yaml:"anomaly_budget"`
	PageLimit     int           `yaml:"page_limit"`
}

// RedisConfig enables the shared bearer token cache. An empty URL disables it.
type RedisConfig struct {
	URL string `yaml:"url"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

// MetricsConfig exposes Prometheus metrics while the extraction runs.
// An empty Addr disables the endpoint.
type MetricsConfig struct {
	Addr string `yaml:"addr"`
}
