// File: internal/config/config.go
package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

// Supported browser engines.
const (
	EngineChromium   = "chromium"
	EnginePlaywright = "playwright"
)

// Placeholders substituted into the storefront URL templates.
const (
	YearPlaceholder = "{year}"
	IDPlaceholder   = "{id}"
)

// Interface defines the contract for accessing application configuration.
// This allows for dependency injection and mocking in tests.
type Interface interface {
	Logger() LoggerConfig
	Browser() BrowserConfig
	Storefront() StorefrontConfig
	Auth() AuthConfig
	Session() SessionConfig
	Collector() CollectorConfig
	Exporter() ExporterConfig
	Timeouts() TimeoutsConfig
}

// Config holds the entire application configuration.
type Config struct {
	LoggerCfg     LoggerConfig     `mapstructure:"logger" yaml:"logger"`
	BrowserCfg    BrowserConfig    `mapstructure:"browser" yaml:"browser"`
	StorefrontCfg StorefrontConfig `mapstructure:"storefront" yaml:"storefront"`
	AuthCfg       AuthConfig       `mapstructure:"auth" yaml:"auth"`
	SessionCfg    SessionConfig    `mapstructure:"session" yaml:"session"`
	CollectorCfg  CollectorConfig  `mapstructure:"collector" yaml:"collector"`
	ExporterCfg   ExporterConfig   `mapstructure:"exporter" yaml:"exporter"`
	TimeoutsCfg   TimeoutsConfig   `mapstructure:"timeouts" yaml:"timeouts"`
}

func (c *Config) Logger() LoggerConfig         { return c.LoggerCfg }
func (c *Config) Browser() BrowserConfig       { return c.BrowserCfg }
func (c *Config) Storefront() StorefrontConfig { return c.StorefrontCfg }
func (c *Config) Auth() AuthConfig             { return c.AuthCfg }
func (c *Config) Session() SessionConfig       { return c.SessionCfg }
func (c *Config) Collector() CollectorConfig   { return c.CollectorCfg }
func (c *Config) Exporter() ExporterConfig     { return c.ExporterCfg }
func (c *Config) Timeouts() TimeoutsConfig     { return c.TimeoutsCfg }

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig defines the color codes for different log levels.
type ColorConfig struct {
	Debug  string `mapstructure:"debug" yaml:"debug"`
	Info   string `mapstructure:"info" yaml:"info"`
	Warn   string `mapstructure:"warn" yaml:"warn"`
	Error  string `mapstructure:"error" yaml:"error"`
	DPanic string `mapstructure:"dpanic" yaml:"dpanic"`
	Panic  string `mapstructure:"panic" yaml:"panic"`
	Fatal  string `mapstructure:"fatal" yaml:"fatal"`
}

// BrowserConfig controls how the browser process is launched.
type BrowserConfig struct {
	// Engine selects the automation backend: "chromium" (chromedp) or "playwright".
	Engine   string   `mapstructure:"engine" yaml:"engine"`
	Headless bool     `mapstructure:"headless" yaml:"headless"`
	Args     []string `mapstructure:"args" yaml:"args"`
	ExecPath string   `mapstructure:"exec_path" yaml:"exec_path"`
	// InstallDriver downloads the playwright driver and browsers before launch.
	InstallDriver bool           `mapstructure:"install_driver" yaml:"install_driver"`
	Viewport      ViewportConfig `mapstructure:"viewport" yaml:"viewport"`
}

type ViewportConfig struct {
	Width  int `mapstructure:"width" yaml:"width"`
	Height int `mapstructure:"height" yaml:"height"`
}

// StorefrontConfig describes where the purchase history lives and how a
// logged-out page is recognized.
type StorefrontConfig struct {
	// ListingURL is a template; every {year} is replaced by the target year.
	ListingURL        string   `mapstructure:"listing_url" yaml:"listing_url"`
	LoggedOutPatterns []string `mapstructure:"logged_out_patterns" yaml:"logged_out_patterns"`
}

// ListingURLFor renders the listing URL for a year.
func (s StorefrontConfig) ListingURLFor(year int) string {
	return strings.ReplaceAll(s.ListingURL, YearPlaceholder, fmt.Sprint(year))
}

type AuthConfig struct {
	// LoginTimeout bounds the interactive login wait. Zero waits until the
	// operator finishes or the process is interrupted.
	LoginTimeout time.Duration `mapstructure:"login_timeout" yaml:"login_timeout"`
}

type SessionConfig struct {
	StateDir string `mapstructure:"state_dir" yaml:"state_dir"`
	FileName string `mapstructure:"file_name" yaml:"file_name"`
}

// Path is the well-known location of the storage-state file.
func (s SessionConfig) Path() string {
	return filepath.Join(s.StateDir, s.FileName)
}

type CollectorConfig struct {
	ContainerSelector string `mapstructure:"container_selector" yaml:"container_selector"`
	IDSelector        string `mapstructure:"id_selector" yaml:"id_selector"`
	NextSelector      string `mapstructure:"next_selector" yaml:"next_selector"`
	DisabledClass     string `mapstructure:"disabled_class" yaml:"disabled_class"`
	// MaxPages stops pagination after this many pages. Zero means unlimited.
	MaxPages int `mapstructure:"max_pages" yaml:"max_pages"`
}

type ExporterConfig struct {
	// PrintURL is a template; {id} is replaced by the query-escaped record id.
	PrintURL   string `mapstructure:"print_url" yaml:"print_url"`
	OutputDir  string `mapstructure:"output_dir" yaml:"output_dir"`
	FilePrefix string `mapstructure:"file_prefix" yaml:"file_prefix"`
	Verify     bool   `mapstructure:"verify" yaml:"verify"`
	Merge      bool   `mapstructure:"merge" yaml:"merge"`
	MergeFile  string `mapstructure:"merge_file" yaml:"merge_file"`
}

type TimeoutsConfig struct {
	PageLoad time.Duration `mapstructure:"page_load" yaml:"page_load"`
}

// NewDefaultConfig creates a new configuration struct populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// SetDefaults initializes default values for various configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "ledger-cli")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 20)
	v.SetDefault("logger.max_backups", 3)
	v.SetDefault("logger.max_age", 14)
	v.SetDefault("logger.compress", true)
	v.SetDefault("logger.colors.debug", "cyan")
	v.SetDefault("logger.colors.info", "green")
	v.SetDefault("logger.colors.warn", "yellow")
	v.SetDefault("logger.colors.error", "red")
	v.SetDefault("logger.colors.dpanic", "magenta")
	v.SetDefault("logger.colors.panic", "magenta")
	v.SetDefault("logger.colors.fatal", "magenta")

	// -- Browser --
	// The operator may have to complete a login in the window, so it is visible by default.
	v.SetDefault("browser.engine", EngineChromium)
	v.SetDefault("browser.headless", false)
	v.SetDefault("browser.args", []string{})
	v.SetDefault("browser.exec_path", "")
	v.SetDefault("browser.install_driver", false)
	v.SetDefault("browser.viewport.width", 1280)
	v.SetDefault("browser.viewport.height", 900)

	// -- Storefront --
	v.SetDefault("storefront.listing_url",
		"https://www.amazon.com/your-orders/orders?timeFilter=year-{year}&ref_=ppx_yo2ov_dt_b_filter_all_y{year}")
	v.SetDefault("storefront.logged_out_patterns", []string{
		"https://www.amazon.com/ap/signin",
		"https://www.amazon.com/ap/mfa",
	})

	// -- Auth --
	v.SetDefault("auth.login_timeout", "0s")

	// -- Session --
	v.SetDefault("session.state_dir", "playwright/.auth")
	v.SetDefault("session.file_name", "auth_state.json")

	// -- Collector --
	v.SetDefault("collector.container_selector", "div.yohtmlc-order-id")
	v.SetDefault("collector.id_selector", "span[dir='ltr']")
	v.SetDefault("collector.next_selector", "li.a-last")
	v.SetDefault("collector.disabled_class", "a-disabled")
	v.SetDefault("collector.max_pages", 0)

	// -- Exporter --
	v.SetDefault("exporter.print_url",
		"https://www.amazon.com/gp/css/summary/print.html?orderID={id}&ref=ppx_yo2ov_dt_b_invoice")
	v.SetDefault("exporter.output_dir", "invoices")
	v.SetDefault("exporter.file_prefix", "invoice_")
	v.SetDefault("exporter.verify", false)
	v.SetDefault("exporter.merge", false)
	v.SetDefault("exporter.merge_file", "invoices_merged.pdf")

	// -- Timeouts --
	v.SetDefault("timeouts.page_load", "10s")
}

// EnvPrefix namespaces environment overrides, e.g. LEDGER_BROWSER_HEADLESS.
const EnvPrefix = "LEDGER"

// BindEnvironment makes every configuration key overridable from the
// environment. Nested keys use underscores in place of dots.
func BindEnvironment(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// NewConfigFromViper creates a new configuration struct populated from a
// Viper instance, expands home-relative paths and validates the result.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := cfg.expandPaths(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func (c *Config) expandPaths() error {
	for _, p := range []*string{
		&c.LoggerCfg.LogFile,
		&c.BrowserCfg.ExecPath,
		&c.SessionCfg.StateDir,
		&c.ExporterCfg.OutputDir,
	} {
		if *p == "" {
			continue
		}
		expanded, err := homedir.Expand(*p)
		if err != nil {
			return fmt.Errorf("could not expand path %q: %w", *p, err)
		}
		*p = expanded
	}
	return nil
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	switch c.BrowserCfg.Engine {
	case EngineChromium, EnginePlaywright:
	default:
		return fmt.Errorf("browser.engine must be %q or %q, got %q", EngineChromium, EnginePlaywright, c.BrowserCfg.Engine)
	}
	if c.TimeoutsCfg.PageLoad <= 0 {
		return fmt.Errorf("timeouts.page_load must be a positive duration")
	}
	if c.AuthCfg.LoginTimeout < 0 {
		return fmt.Errorf("auth.login_timeout must not be negative")
	}
	if err := c.StorefrontCfg.Validate(); err != nil {
		return fmt.Errorf("storefront configuration invalid: %w", err)
	}
	if c.SessionCfg.FileName == "" {
		return fmt.Errorf("session.file_name is a required configuration field")
	}
	if err := c.CollectorCfg.Validate(); err != nil {
		return fmt.Errorf("collector configuration invalid: %w", err)
	}
	if err := c.ExporterCfg.Validate(); err != nil {
		return fmt.Errorf("exporter configuration invalid: %w", err)
	}
	return nil
}

// Validate checks the storefront URLs and logged-out patterns.
func (s *StorefrontConfig) Validate() error {
	if !strings.Contains(s.ListingURL, YearPlaceholder) {
		return fmt.Errorf("listing_url must contain the %s placeholder", YearPlaceholder)
	}
	if len(s.LoggedOutPatterns) == 0 {
		return fmt.Errorf("logged_out_patterns must not be empty")
	}
	for i, p := range s.LoggedOutPatterns {
		if strings.TrimSpace(p) == "" {
			return fmt.Errorf("logged_out_patterns[%d] is empty", i)
		}
	}
	return nil
}

// Validate checks that every selector is set.
func (c *CollectorConfig) Validate() error {
	if c.ContainerSelector == "" || c.IDSelector == "" || c.NextSelector == "" {
		return fmt.Errorf("container_selector, id_selector, and next_selector are required")
	}
	if c.DisabledClass == "" {
		return fmt.Errorf("disabled_class is required")
	}
	if c.MaxPages < 0 {
		return fmt.Errorf("max_pages must not be negative")
	}
	return nil
}

// Validate checks the print URL template and the output layout.
func (e *ExporterConfig) Validate() error {
	if !strings.Contains(e.PrintURL, IDPlaceholder) {
		return fmt.Errorf("print_url must contain the %s placeholder", IDPlaceholder)
	}
	if e.OutputDir == "" {
		return fmt.Errorf("output_dir is a required configuration field")
	}
	if e.Merge && e.MergeFile == "" {
		return fmt.Errorf("merge_file is required when merge is enabled")
	}
	return nil
}
