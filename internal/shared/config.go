package shared

import (
	_ "embed"
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

//go:embed config.example.toml
var exampleConf []byte

// EnvPrefix prefixes every environment override, e.g. TRANSPORTAL_RPC_URL_BASE.
const EnvPrefix = "TRANSPORTAL_"

const unixPrefix = "unix:"

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Connection  ConnectionConfig  `toml:"connection"`
	Security    SecurityConfig    `toml:"security"`
	Performance PerformanceConfig `toml:"performance"`
	Database    DatabaseConfig    `toml:"database"`
	Log         LogConfig         `toml:"log"`
}

// ConnectionConfig contains the listener and upstream RPC settings.
type ConnectionConfig struct {
	BindAddress   string `toml:"bind_address" env:"BIND_ADDRESS"`
	BindUnixPerms string `toml:"bind_unix_perms" env:"BIND_UNIX_PERMS"`
	RPCURLBase    string `toml:"rpc_url_base" env:"RPC_URL_BASE"`
	RPCURLPath    string `toml:"rpc_url_path" env:"RPC_URL_PATH"`
	RPCTimeoutMS  int    `toml:"rpc_timeout_ms" env:"RPC_TIMEOUT_MS"`
}

// SecurityConfig contains cookie and login settings.
type SecurityConfig struct {
	SecureCookieAttribute bool    `toml:"secure_cookie_attribute" env:"SECURE_COOKIE_ATTRIBUTE"`
	SessionMaxAgeHours    int     `toml:"session_max_age_hours" env:"SESSION_MAX_AGE_HOURS"`
	LoginRatePerMinute    float64 `toml:"login_rate_per_minute" env:"LOGIN_RATE_PER_MINUTE"`
}

// PerformanceConfig contains stream cadence settings.
type PerformanceConfig struct {
	PollIntervalMS int `toml:"poll_interval_ms" env:"POLL_INTERVAL_MS"`
	KeepAliveSecs  int `toml:"keep_alive_secs" env:"KEEP_ALIVE_SECS"`
}

// DatabaseConfig contains audit log database settings.
type DatabaseConfig struct {
	Path         string `toml:"path" env:"DATABASE_PATH"`
	MaxOpenConns int    `toml:"max_open_conns" env:"DATABASE_MAX_OPEN_CONNS"`
	MaxIdleConns int    `toml:"max_idle_conns" env:"DATABASE_MAX_IDLE_CONNS"`
}

// LogConfig contains logger settings.
type LogConfig struct {
	Level string `toml:"level" env:"LOG_LEVEL"`
}

// LoadConfig reads a TOML configuration file over the embedded defaults, applies environment
// overrides and validates the result.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := config.ApplyEnv(); err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// LoadEnvFile loads KEY=value pairs from a dotenv file into the process environment.
// Variables that are already set win over the file.
func LoadEnvFile(path string) error {
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load env file %s: %w", path, err)
	}
	return nil
}

// ApplyEnv overrides fields from TRANSPORTAL_* environment variables. Unset variables leave the
// field untouched.
func (c *Config) ApplyEnv() error {
	if err := env.ParseWithOptions(c, env.Options{Prefix: EnvPrefix}); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks the values the server depends on at startup.
func (c *Config) Validate() error {
	conn := c.Connection

	if conn.BindAddress == "" {
		return fmt.Errorf("%w: bind_address is required", ErrInvalidConfig)
	}
	if path, ok := c.UnixSocketPath(); ok {
		if path == "" {
			return fmt.Errorf("%w: unix bind address %q has no path", ErrInvalidConfig, conn.BindAddress)
		}
		if _, err := c.UnixPerms(); err != nil {
			return err
		}
	} else if _, _, err := net.SplitHostPort(conn.BindAddress); err != nil {
		return fmt.Errorf("%w: bind_address %q: %v", ErrInvalidConfig, conn.BindAddress, err)
	}

	u, err := url.Parse(conn.RPCURLBase)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: rpc_url_base %q must be an http(s) URL", ErrInvalidConfig, conn.RPCURLBase)
	}
	if !strings.HasPrefix(conn.RPCURLPath, "/") {
		return fmt.Errorf("%w: the url path %q must have a leading \"/\"", ErrInvalidConfig, conn.RPCURLPath)
	}
	if conn.RPCTimeoutMS <= 0 {
		return fmt.Errorf("%w: rpc_timeout_ms must be positive", ErrInvalidConfig)
	}
	if c.Performance.PollIntervalMS <= 0 {
		return fmt.Errorf("%w: poll_interval_ms must be positive", ErrInvalidConfig)
	}
	if c.Security.SessionMaxAgeHours < 0 {
		return fmt.Errorf("%w: session_max_age_hours cannot be negative", ErrInvalidConfig)
	}

	return nil
}

// RPCURL joins the upstream base URL and path.
func (c *Config) RPCURL() string {
	return strings.TrimRight(c.Connection.RPCURLBase, "/") + c.Connection.RPCURLPath
}

// UnixSocketPath returns the socket path when the bind address uses the "unix:" scheme.
func (c *Config) UnixSocketPath() (string, bool) {
	path, ok := strings.CutPrefix(c.Connection.BindAddress, unixPrefix)
	return path, ok
}

// UnixPerms parses bind_unix_perms as an octal file mode.
func (c *Config) UnixPerms() (os.FileMode, error) {
	perms := c.Connection.BindUnixPerms
	if perms == "" {
		perms = "600"
	}
	mode, err := strconv.ParseUint(perms, 8, 32)
	if err != nil || mode > 0o777 {
		return 0, fmt.Errorf("%w: bind_unix_perms %q is not an octal mode", ErrInvalidConfig, perms)
	}
	return os.FileMode(mode), nil
}

// PollInterval is the cadence of every push stream.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Performance.PollIntervalMS) * time.Millisecond
}

// RPCTimeout bounds each upstream HTTP exchange.
func (c *Config) RPCTimeout() time.Duration {
	return time.Duration(c.Connection.RPCTimeoutMS) * time.Millisecond
}

// KeepAlive is the interval between SSE keep-alive comments. Zero disables them.
func (c *Config) KeepAlive() time.Duration {
	return time.Duration(c.Performance.KeepAliveSecs) * time.Second
}

// SessionMaxAge is zero when sessions live until logout or restart.
func (c *Config) SessionMaxAge() time.Duration {
	return time.Duration(c.Security.SessionMaxAgeHours) * time.Hour
}
