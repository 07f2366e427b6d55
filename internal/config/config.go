// File: internal/config/config.go
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config is the root configuration for the kargo-takip service.
type Config struct {
	Server   ServerConfig   `mapstructure:"server" yaml:"server"`
	Portal   PortalConfig   `mapstructure:"portal" yaml:"portal"`
	Browser  BrowserConfig  `mapstructure:"browser" yaml:"browser"`
	Carriers CarriersConfig `mapstructure:"carriers" yaml:"carriers"`
	Storage  StorageConfig  `mapstructure:"storage" yaml:"storage"`
	Logger   LoggerConfig   `mapstructure:"logger" yaml:"logger"`
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Addr            string        `mapstructure:"addr" yaml:"addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
}

// PortalConfig describes the 4me inbox portal and the Microsoft login fronting it.
type PortalConfig struct {
	// InboxURL is the landing page; an unauthenticated visit redirects to the
	// Microsoft login form.
	InboxURL string `mapstructure:"inbox_url" yaml:"inbox_url"`

	// Default credentials used when a login request carries none.
	Email    string `mapstructure:"email" yaml:"email"`
	Password string `mapstructure:"password" yaml:"password"`

	// ElementWait bounds how long we wait for a login form element to appear.
	ElementWait time.Duration `mapstructure:"element_wait" yaml:"element_wait"`
	// StepDelay is the pause between login form steps while the page settles.
	StepDelay time.Duration `mapstructure:"step_delay" yaml:"step_delay"`
	// DetailWait bounds the wait for a request detail view to render.
	DetailWait time.Duration `mapstructure:"detail_wait" yaml:"detail_wait"`
	// ClickSettle / BackSettle / ScrollSettle are the pauses after the
	// corresponding navigation actions inside the inbox.
	ClickSettle  time.Duration `mapstructure:"click_settle" yaml:"click_settle"`
	BackSettle   time.Duration `mapstructure:"back_settle" yaml:"back_settle"`
	ScrollSettle time.Duration `mapstructure:"scroll_settle" yaml:"scroll_settle"`

	// SessionTTL evicts login sessions stuck waiting for phone approval.
	// Zero disables the reaper.
	SessionTTL time.Duration `mapstructure:"session_ttl" yaml:"session_ttl"`
}

// BrowserConfig controls the headless Chrome instance.
type BrowserConfig struct {
	Headless        bool     `mapstructure:"headless" yaml:"headless"`
	IgnoreTLSErrors bool     `mapstructure:"ignore_tls_errors" yaml:"ignore_tls_errors"`
	UserAgent       string   `mapstructure:"user_agent" yaml:"user_agent"`
	Args            []string `mapstructure:"args" yaml:"args"`
}

// CarriersConfig controls the delivery-status checks against carrier sites.
type CarriersConfig struct {
	ArasURL    string        `mapstructure:"aras_url" yaml:"aras_url"`
	K2TrackURL string        `mapstructure:"k2track_url" yaml:"k2track_url"`
	PageWait   time.Duration `mapstructure:"page_wait" yaml:"page_wait"`
	// PollInterval paces successive carrier page loads in a batch refresh.
	PollInterval time.Duration `mapstructure:"poll_interval" yaml:"poll_interval"`
}

// StorageConfig locates the flat-file record store.
type StorageConfig struct {
	DataDir string `mapstructure:"data_dir" yaml:"data_dir"`
}

// LoggerConfig defines the logging behaviour.
type LoggerConfig struct {
	Level       string `mapstructure:"level" yaml:"level"`
	Format      string `mapstructure:"format" yaml:"format"` // "console" or "json"
	AddSource   bool   `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int    `mapstructure:"max_size" yaml:"max_size"` // megabytes
	MaxBackups  int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int    `mapstructure:"max_age" yaml:"max_age"` // days
	Compress    bool   `mapstructure:"compress" yaml:"compress"`
}

// SetDefaults registers the default value for every key so that a bare
// environment still yields a runnable configuration.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":5270")
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 15*time.Minute) // login + extraction are synchronous
	v.SetDefault("server.shutdown_timeout", 30*time.Second)

	v.SetDefault("portal.inbox_url", "https://tekniksupport.4me.com/inbox")
	v.SetDefault("portal.element_wait", 30*time.Second)
	v.SetDefault("portal.step_delay", 5*time.Second)
	v.SetDefault("portal.detail_wait", 10*time.Second)
	v.SetDefault("portal.click_settle", 750*time.Millisecond)
	v.SetDefault("portal.back_settle", 500*time.Millisecond)
	v.SetDefault("portal.scroll_settle", 1500*time.Millisecond)
	v.SetDefault("portal.session_ttl", time.Duration(0))

	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.ignore_tls_errors", false)
	v.SetDefault("browser.user_agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36")

	v.SetDefault("carriers.aras_url", "https://kargotakip.araskargo.com.tr/mainpage.aspx?code=")
	v.SetDefault("carriers.k2track_url", "https://up.k2track.in/ups/tracking-res#")
	v.SetDefault("carriers.page_wait", 10*time.Second)
	v.SetDefault("carriers.poll_interval", 2*time.Second)

	v.SetDefault("storage.data_dir", "data")

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.service_name", "kargotakip")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 3)
	v.SetDefault("logger.max_age", 28)
}

// Validate rejects configurations the service cannot run with.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr must not be empty")
	}
	if c.Portal.InboxURL == "" {
		return fmt.Errorf("portal.inbox_url must not be empty")
	}
	if c.Storage.DataDir == "" {
		return fmt.Errorf("storage.data_dir must not be empty")
	}
	if c.Carriers.PollInterval < 0 {
		return fmt.Errorf("carriers.poll_interval must not be negative")
	}
	return nil
}
