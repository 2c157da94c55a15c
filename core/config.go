package core

import (
	"crypto/tls"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"
)

// Defaults for the bridge and the fallback API.
const (
	DefaultBaseURL               = "http://127.0.0.1:5102/v1/chat/completions"
	DefaultModel                 = "flux-1-kontext-pro"
	DefaultMaxRetries            = 10
	DefaultRetryIntervalMs       = 5000
	DefaultFallbackBaseURL       = "https://api.openai.com/v1/chat/completions"
	DefaultFallbackModel         = "gpt-4-vision-preview"
	DefaultFallbackMaxRetries    = 3
	DefaultFallbackRetryInterval = 1000
	DefaultWaitTimeoutSeconds    = 50
	DefaultCommandsFile          = "commands.yaml"
	DefaultPayloadSanityMB       = 5
	DefaultDatabasePath          = "data/lmarena.db"
)

// DefaultFallbackErrorCodes are the primary-leg status codes that hand the
// request to the fallback API.
var DefaultFallbackErrorCodes = []int{500, 429}

// Config holds all configuration values.
type Config struct {
	// Bridge (primary leg)
	BaseURL       string
	Model         string
	MaxRetries    int
	RetryInterval time.Duration
	BridgeTimeout time.Duration // per HTTP attempt
	// PayloadSanityBytes separates "payload genuinely too big" from "bridge
	// rejected a normal payload" when a 413 comes back.
	PayloadSanityBytes int64
	Verbose            bool

	// Fallback leg
	EnableFallback        bool
	FallbackBaseURL       string
	FallbackModel         string
	FallbackAPIKey        string
	FallbackMaxRetries    int
	FallbackRetryInterval time.Duration
	FallbackErrorCodes    []int

	// Commands
	Commands           []CommandConfig
	CommandsFile       string
	DefaultWaitTimeout time.Duration
	CommandPrefix      string
	RateLimitPerMinute int
	// Locale selects the chat message catalog.
	Locale string

	// OneBot adapter
	OneBotURL               string
	OneBotAccessToken       string
	OneBotReconnectInterval time.Duration

	// Downloads and infrastructure
	MaxFileSize          int64
	DownloadTimeout      time.Duration
	AllowSelfSignedCerts bool
	DatabasePath         string
	HistoryRetention     time.Duration // 0 keeps history forever
	MetricsAddr          string
	LogFile              string
	DevMode              bool
}

// LoadConfig builds a Config from the environment. Everything has a default
// except the OneBot endpoint, which the validation suite checks before the
// bot starts.
func LoadConfig() (*Config, error) {
	defaultWait := ClampWaitTimeout(ParseDurationEnv("LMARENA_DEFAULT_WAIT_TIMEOUT", DefaultWaitTimeoutSeconds))

	commandsExplicit := os.Getenv("LMARENA_COMMANDS_FILE") != ""
	commandsFile := GetEnvOrDefault("LMARENA_COMMANDS_FILE", DefaultCommandsFile)
	commands, err := ResolveCommands(commandsFile, commandsExplicit, defaultWait)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		BaseURL:            GetEnvOrDefault("LMARENA_BASE_URL", DefaultBaseURL),
		Model:              GetEnvOrDefault("LMARENA_MODEL", DefaultModel),
		MaxRetries:         ParseIntEnv("LMARENA_MAX_RETRIES", DefaultMaxRetries),
		RetryInterval:      ParseDurationMsEnv("LMARENA_RETRY_INTERVAL_MS", DefaultRetryIntervalMs),
		BridgeTimeout:      ParseDurationEnv("BRIDGE_TIMEOUT", 180),
		PayloadSanityBytes: ParseInt64Env("LMARENA_PAYLOAD_SANITY_MB", DefaultPayloadSanityMB) * BytesPerMB,
		Verbose:            ParseBoolEnv("LMARENA_VERBOSE", false),

		EnableFallback:        ParseBoolEnv("LMARENA_ENABLE_FALLBACK", false),
		FallbackBaseURL:       GetEnvOrDefault("LMARENA_FALLBACK_BASE_URL", DefaultFallbackBaseURL),
		FallbackModel:         GetEnvOrDefault("LMARENA_FALLBACK_MODEL", DefaultFallbackModel),
		FallbackAPIKey:        os.Getenv("LMARENA_FALLBACK_API_KEY"),
		FallbackMaxRetries:    ParseIntEnv("LMARENA_FALLBACK_MAX_RETRIES", DefaultFallbackMaxRetries),
		FallbackRetryInterval: ParseDurationMsEnv("LMARENA_FALLBACK_RETRY_INTERVAL_MS", DefaultFallbackRetryInterval),
		FallbackErrorCodes:    ParseIntListEnv("LMARENA_FALLBACK_ERROR_CODES", DefaultFallbackErrorCodes),

		Commands:           commands,
		CommandsFile:       commandsFile,
		DefaultWaitTimeout: defaultWait,
		CommandPrefix:      GetEnvOrDefault("COMMAND_PREFIX", "/"),
		RateLimitPerMinute: ParseIntEnv("RATE_LIMIT_PER_MINUTE", 6),
		Locale:             GetEnvOrDefault("LMARENA_LOCALE", "zh-CN"),

		OneBotURL:               os.Getenv("ONEBOT_WS_URL"),
		OneBotAccessToken:       os.Getenv("ONEBOT_ACCESS_TOKEN"),
		OneBotReconnectInterval: ParseDurationEnv("ONEBOT_RECONNECT_INTERVAL", 5),

		MaxFileSize:          ParseInt64Env("MAX_FILE_SIZE", 20*BytesPerMB),
		DownloadTimeout:      ParseDurationEnv("DOWNLOAD_TIMEOUT", 30),
		AllowSelfSignedCerts: ParseBoolEnv("ALLOW_SELF_SIGNED_CERTS", false),
		DatabasePath:         GetEnvOrDefault("DATABASE_PATH", DefaultDatabasePath),
		HistoryRetention:     time.Duration(ParseIntEnv("HISTORY_RETENTION_DAYS", 30)) * 24 * time.Hour,
		MetricsAddr:          os.Getenv("METRICS_ADDR"),
		LogFile:              GetEnvOrDefault("LOG_FILE", "lmarena.log"),
		DevMode:              ParseBoolEnv("DEV_MODE", false),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks value ranges that LoadConfig cannot default away.
func (c *Config) Validate() error {
	if err := ValidateEndpointURL("LMARENA_BASE_URL", c.BaseURL, "http", "https"); err != nil {
		return err
	}
	if c.MaxRetries < 0 {
		return ErrInvalidValue("LMARENA_MAX_RETRIES", c.MaxRetries, "must be >= 0")
	}
	if c.RetryInterval < 0 {
		return ErrInvalidValue("LMARENA_RETRY_INTERVAL_MS", c.RetryInterval, "must be >= 0")
	}
	if c.EnableFallback {
		if err := ValidateEndpointURL("LMARENA_FALLBACK_BASE_URL", c.FallbackBaseURL, "http", "https"); err != nil {
			return err
		}
		if c.FallbackMaxRetries < 0 {
			return ErrInvalidValue("LMARENA_FALLBACK_MAX_RETRIES", c.FallbackMaxRetries, "must be >= 0")
		}
		if c.FallbackRetryInterval < 0 {
			return ErrInvalidValue("LMARENA_FALLBACK_RETRY_INTERVAL_MS", c.FallbackRetryInterval, "must be >= 0")
		}
	}
	if c.PayloadSanityBytes <= 0 {
		return ErrInvalidValue("LMARENA_PAYLOAD_SANITY_MB", c.PayloadSanityBytes/BytesPerMB, "must be > 0")
	}
	if c.RateLimitPerMinute < 0 {
		return ErrInvalidValue("RATE_LIMIT_PER_MINUTE", c.RateLimitPerMinute, "must be >= 0 (0 disables)")
	}
	if c.HistoryRetention < 0 {
		return ErrInvalidValue("HISTORY_RETENTION_DAYS", int(c.HistoryRetention/(24*time.Hour)), "must be >= 0 (0 keeps everything)")
	}
	if len(EnabledCommands(c.Commands)) == 0 {
		return ErrNoEnabledCommands()
	}
	return nil
}

// ValidateEndpointURL checks that raw parses as an absolute URL with one of
// the allowed schemes.
func ValidateEndpointURL(varName, raw string, schemes ...string) error {
	if strings.TrimSpace(raw) == "" {
		return ErrMissingConfig(varName)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return ErrInvalidURL(varName, raw, err.Error())
	}
	if u.Host == "" {
		return ErrInvalidURL(varName, raw, "missing host")
	}
	for _, s := range schemes {
		if strings.EqualFold(u.Scheme, s) {
			return nil
		}
	}
	return ErrInvalidURL(varName, raw, "scheme must be one of "+strings.Join(schemes, ", "))
}

// GetHTTPClient returns an HTTP client honoring AllowSelfSignedCerts. All
// outbound requests go through it.
func GetHTTPClient(cfg *Config, timeout time.Duration) *http.Client {
	client := &http.Client{
		Timeout: timeout,
	}

	if cfg != nil && cfg.AllowSelfSignedCerts {
		transport := http.DefaultTransport.(*http.Transport).Clone()
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
		client.Transport = transport
	}

	return client
}

// GetDefaultHTTPClient returns GetHTTPClient with a 30 s timeout.
func GetDefaultHTTPClient(cfg *Config) *http.Client {
	return GetHTTPClient(cfg, 30*time.Second)
}
