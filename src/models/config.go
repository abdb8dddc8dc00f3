package models

// MConfig Structure
type MConfig struct {
	Name           string         `yaml:"name"`
	Host           string         `yaml:"host"`
	Port           int            `yaml:"port"`
	LogLevel       string         `yaml:"log_level"`
	GrpcHost       string         `yaml:"grpc_host"`
	GrpcPort       int            `yaml:"grpc_port"`
	AccountsFile   string         `yaml:"accounts_file"`
	MetricsEnabled bool           `yaml:"metrics_enabled"`
	Storage        MStorageConfig `yaml:"storage"`
	Network        MNetworkConfig `yaml:"network"`
	Cache          MCacheConfig   `yaml:"cache"`
	Session        MSessionConfig `yaml:"session"`
	Poller         MPollerConfig  `yaml:"poller"`
}

type MStorageConfig struct {
	DBType             string `yaml:"db_type"`
	DBPath             string `yaml:"db_path"`
	DBConnectionString string `yaml:"db_connection_string"`
}

type MNetworkConfig struct {
	RequestTimeout     int    `yaml:"timeout"` // seconds
	MaxRetries         int    `yaml:"retries"`
	ConcurrentRequests int    `yaml:"concurrent_requests"`
	UserAgent          string `yaml:"user_agent"`
}

type MCacheConfig struct {
	Type                   string `yaml:"type"` // memory | redis
	TTLMillis              int    `yaml:"ttl_ms"`
	CleanupIntervalSeconds int    `yaml:"cleanup_interval_seconds"`
	RedisAddr              string `yaml:"redis_addr"`
	RedisPassword          string `yaml:"redis_password"`
	RedisDB                int    `yaml:"redis_db"`
}

// MSessionConfig holds the daily cutoffs. Times are HH:MM in Timezone.
type MSessionConfig struct {
	OpeningTime    string `yaml:"opening_time"`
	StartTime      string `yaml:"start_time"`
	ChartStartTime string `yaml:"chart_start_time"`
	Timezone       string `yaml:"timezone"`
	Exchange       string `yaml:"exchange"` // MIC, e.g. "xbom"
	SkipHolidays   bool   `yaml:"skip_holidays"`
}

type MPollerConfig struct {
	Enabled           bool `yaml:"enabled"`
	IntervalSeconds   int  `yaml:"interval_seconds"`
	CheckIntervalMs   int  `yaml:"check_interval_ms"`
	RefreshIntervalMs int  `yaml:"refresh_interval_ms"` // dashboard hint only
}
