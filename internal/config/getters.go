package config

import (
	"time"
)

// QueueSettings is the fully resolved consumer configuration of one queue
type QueueSettings struct {
	Name        string
	Concurrency int
	// RateMax jobs are allowed per RatePeriod; zero RateMax disables limiting
	RateMax     int
	RatePeriod  time.Duration
	MaxAttempts int
	Backoff     time.Duration
	MaxBackoff  time.Duration
	Visibility  time.Duration
	KeepDone    int
	KeepFailed  int
}

// PollerSettings is the resolved change feed configuration
type PollerSettings struct {
	Enabled         bool
	Limit           int
	Interval        time.Duration
	MaxInterval     time.Duration
	Growth          float64
	ErrorMultiplier int
}

// BackfillSettings is the resolved backfill configuration
type BackfillSettings struct {
	BatchSize         int
	ChunkSize         int
	TickInterval      time.Duration
	EnumeratePageSize int
}

var queueDefaults = map[string]QueueSettings{
	QueueSync: {
		Concurrency: 5, RateMax: 100, RatePeriod: time.Minute,
		Visibility: 2 * time.Minute,
	},
	QueueBulkSync: {
		Concurrency: 2, RateMax: 10, RatePeriod: time.Minute,
		Visibility: 10 * time.Minute,
	},
	QueueBackfillTick: {
		Concurrency: 1,
		Visibility:  5 * time.Minute,
	},
	QueueChat: {
		Concurrency: 3,
		Visibility:  time.Minute,
	},
	QueueEmail: {
		Concurrency: 3,
		Visibility:  time.Minute,
	},
}

// GetQueueSettings merges the configured overrides for a queue with its defaults
func (c *Config) GetQueueSettings(name string) QueueSettings {
	s, ok := queueDefaults[name]
	if !ok {
		s = QueueSettings{Concurrency: 1, Visibility: time.Minute}
	}
	s.Name = name
	s.MaxAttempts = 5
	s.Backoff = time.Second
	s.MaxBackoff = 5 * time.Minute
	s.KeepDone = 1000
	s.KeepFailed = 5000

	override, ok := c.Queues[name]
	if !ok {
		return s
	}
	s.Concurrency = intOr(override.Concurrency, s.Concurrency)
	s.MaxAttempts = intOr(override.MaxAttempts, s.MaxAttempts)
	s.Backoff = parseDurationOr(override.Backoff, s.Backoff)
	s.MaxBackoff = parseDurationOr(override.MaxBackoff, s.MaxBackoff)
	s.Visibility = parseDurationOr(override.Visibility, s.Visibility)
	if override.RateLimit != nil {
		s.RateMax = override.RateLimit.Max
		s.RatePeriod = parseDurationOr(override.RateLimit.Period, s.RatePeriod)
	}
	if override.Retention != nil {
		s.KeepDone = override.Retention.Completed
		s.KeepFailed = override.Retention.Failed
	}
	return s
}

// GetPollerSettings returns the change feed settings with defaults applied
func (c *Config) GetPollerSettings() PollerSettings {
	enabled := true
	if c.Changes.Enabled != nil {
		enabled = *c.Changes.Enabled
	}
	growth := c.Changes.Growth
	if growth == 0 {
		growth = defaultPollGrowth
	}
	return PollerSettings{
		Enabled:         enabled,
		Limit:           intOr(c.Changes.Limit, defaultPollLimit),
		Interval:        parseDurationOr(c.Changes.Interval, defaultPollInterval),
		MaxInterval:     parseDurationOr(c.Changes.MaxInterval, defaultPollMaxInterval),
		Growth:          growth,
		ErrorMultiplier: intOr(c.Changes.ErrorMultiplier, defaultErrorMultiplier),
	}
}

// GetBackfillSettings returns the backfill settings with defaults applied
func (c *Config) GetBackfillSettings() BackfillSettings {
	return BackfillSettings{
		BatchSize:         intOr(c.Backfill.BatchSize, defaultBackfillBatchSize),
		ChunkSize:         intOr(c.Backfill.ChunkSize, defaultBackfillChunkSize),
		TickInterval:      parseDurationOr(c.Backfill.TickInterval, defaultTickInterval),
		EnumeratePageSize: intOr(c.Backfill.EnumeratePageSize, defaultEnumeratePageSize),
	}
}

// GetRegistryURL returns the packument endpoint
func (c *Config) GetRegistryURL() string {
	return stringOr(c.Registry.URL, defaultRegistryURL)
}

// GetReplicateURL returns the change feed endpoint
func (c *Config) GetReplicateURL() string {
	return stringOr(c.Registry.ReplicateURL, defaultReplicateURL)
}

// GetDownloadsURL returns the download counts endpoint
func (c *Config) GetDownloadsURL() string {
	return stringOr(c.Registry.DownloadsURL, defaultDownloadsURL)
}

// GetHTTPTimeout returns the per-request timeout for upstream calls
func (c *Config) GetHTTPTimeout() time.Duration {
	return parseDurationOr(c.Registry.Timeout, defaultHTTPTimeout)
}

// GetOSVURL returns the vulnerability database endpoint
func (c *Config) GetOSVURL() string {
	return stringOr(c.Notifications.OSVURL, defaultOSVURL)
}

// GetGitHubURL returns the GitHub API endpoint
func (c *Config) GetGitHubURL() string {
	return stringOr(c.Notifications.GitHubURL, defaultGitHubURL)
}

// GetGitHubToken reads the optional GitHub token
func (c *Config) GetGitHubToken() (string, error) {
	if c.Notifications.GitHubTokenFile == "" {
		return "", nil
	}
	return readSecretFile(c.Notifications.GitHubTokenFile)
}

// GetChangelogMaxLength returns the changelog excerpt limit in runes
func (c *Config) GetChangelogMaxLength() int {
	return intOr(c.Notifications.ChangelogMaxLength, defaultChangelogMaxLength)
}

// GetEmailAPIKey reads the optional email API key
func (e *EmailConfig) GetEmailAPIKey() (string, error) {
	if e == nil || e.APIKeyFile == "" {
		return "", nil
	}
	return readSecretFile(e.APIKeyFile)
}
