package internal

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration read from and written to YAML as "5s", "100ms"...
type Duration time.Duration

// UnmarshalYAML parses a duration string
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("line %d: invalid duration %q: %w", value.Line, s, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML renders the duration as a string
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Std returns the value as a time.Duration
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// LongPollConfig is the long_poll section of the config file
type LongPollConfig struct {
	Port               int      `yaml:"port"`
	Wait               int      `yaml:"wait"`
	Mode               int      `yaml:"mode"`
	DialTimeout        Duration `yaml:"dial_timeout"`
	WriteTimeout       Duration `yaml:"write_timeout"`
	InitialReadTimeout Duration `yaml:"initial_read_timeout"`
	ChunkReadTimeout   Duration `yaml:"chunk_read_timeout"`
}

// Config is the client configuration
type Config struct {
	Token                 string         `yaml:"token"`
	APIVersion            string         `yaml:"api_version"`
	APIBaseURL            string         `yaml:"api_base_url"`
	MaxFriendsSuggestions int            `yaml:"max_friends_suggestions"`
	PollInterval          Duration       `yaml:"poll_interval"`
	AuthRetryInterval     Duration       `yaml:"auth_retry_interval"`
	LongPoll              LongPollConfig `yaml:"long_poll"`
	Database              string         `yaml:"database"`
	CacheDir              string         `yaml:"cache_dir"`
	ContactsTTL           Duration       `yaml:"contacts_ttl"`
}

// DefaultConfig returns the configuration used when no file exists
func DefaultConfig() *Config {
	lp := DefaultLongPollOptions()
	cfg := &Config{
		APIVersion:            "5.21",
		APIBaseURL:            "https://api.vk.com/method",
		MaxFriendsSuggestions: 10,
		PollInterval:          Duration(DefaultPollInterval),
		AuthRetryInterval:     Duration(60 * time.Second),
		LongPoll: LongPollConfig{
			Port:               lp.Port,
			Wait:               lp.Wait,
			Mode:               lp.Mode,
			DialTimeout:        Duration(lp.DialTimeout),
			WriteTimeout:       Duration(lp.WriteTimeout),
			InitialReadTimeout: Duration(lp.InitialReadTimeout),
			ChunkReadTimeout:   Duration(lp.ChunkReadTimeout),
		},
		ContactsTTL: Duration(10 * time.Minute),
	}
	if paths, err := DetectAppPaths(); err == nil {
		cfg.Database = paths.DatabasePath()
		cfg.CacheDir = paths.CacheDir
	}
	return cfg
}

// LoadConfig reads path over the defaults. A missing file yields the defaults.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		LogDebug("no config file at %s, using defaults", path)
		return cfg, nil
	}
	if err != nil {
		return nil, &StorageError{Path: path, Op: "read", Err: err}
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	cfg.expandPaths()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// SaveConfig writes cfg to path, creating its directory
func SaveConfig(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return &StorageError{Path: path, Op: "mkdir", Err: err}
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return &StorageError{Path: path, Op: "write", Err: err}
	}
	return nil
}

// SetDefaults writes a default config file at path unless one exists. It reports
// whether a file was written.
func SetDefaults(path string) (bool, error) {
	if _, err := os.Stat(path); err == nil {
		return false, nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return false, &StorageError{Path: path, Op: "stat", Err: err}
	}
	if err := SaveConfig(path, DefaultConfig()); err != nil {
		return false, err
	}
	LogInfo("wrote default configuration to %s", path)
	return true, nil
}

// Validate checks the values that would break the client
func (c *Config) Validate() error {
	var errs []error
	if c.APIVersion == "" {
		errs = append(errs, errors.New("api_version must be set"))
	}
	if u, err := url.Parse(c.APIBaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("api_base_url %q is not an absolute URL", c.APIBaseURL))
	}
	if c.PollInterval <= 0 {
		errs = append(errs, errors.New("poll_interval must be positive"))
	}
	if c.AuthRetryInterval <= 0 {
		errs = append(errs, errors.New("auth_retry_interval must be positive"))
	}
	if c.LongPoll.Port <= 0 || c.LongPoll.Port > 65535 {
		errs = append(errs, fmt.Errorf("long_poll.port %d out of range", c.LongPoll.Port))
	}
	if c.LongPoll.Wait <= 0 {
		errs = append(errs, errors.New("long_poll.wait must be positive"))
	}
	if c.LongPoll.InitialReadTimeout <= 0 || c.LongPoll.ChunkReadTimeout <= 0 {
		errs = append(errs, errors.New("long_poll read timeouts must be positive"))
	}
	if c.MaxFriendsSuggestions < 0 {
		errs = append(errs, errors.New("max_friends_suggestions must not be negative"))
	}
	if c.Database == "" {
		errs = append(errs, errors.New("database must be set"))
	}
	return errors.Join(errs...)
}

// LongPollOptions converts the long_poll section to session options
func (c *Config) LongPollOptions() LongPollOptions {
	opts := DefaultLongPollOptions()
	opts.Port = c.LongPoll.Port
	opts.Wait = c.LongPoll.Wait
	opts.Mode = c.LongPoll.Mode
	opts.DialTimeout = c.LongPoll.DialTimeout.Std()
	opts.WriteTimeout = c.LongPoll.WriteTimeout.Std()
	opts.InitialReadTimeout = c.LongPoll.InitialReadTimeout.Std()
	opts.ChunkReadTimeout = c.LongPoll.ChunkReadTimeout.Std()
	return opts
}

func (c *Config) expandPaths() {
	c.Database = expandHome(c.Database)
	c.CacheDir = expandHome(c.CacheDir)
}

func expandHome(path string) string {
	if path == "~" || len(path) > 1 && path[:2] == "~/" {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[1:])
		}
	}
	return path
}
