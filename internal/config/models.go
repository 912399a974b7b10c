package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/muurk/onvif-discover/internal/discovery"
)

// Defaults applied when neither the config file nor the environment sets a value.
const (
	DefaultTimeoutMS       = 5000
	DefaultLogLevel        = "off"
	DefaultListen          = ":8080"
	DefaultServeIntervalMS = 30000
	DefaultInstance        = "onvif-discover"
)

// Config represents the entire user configuration file.
type Config struct {
	Version         int               `yaml:"version" mapstructure:"version" validate:"eq=1"`
	TimeoutMS       int               `yaml:"timeout_ms" mapstructure:"timeout_ms" validate:"gt=0"`
	Mode            string            `yaml:"mode" mapstructure:"mode" validate:"discovery_mode"`
	LogLevel        string            `yaml:"log_level" mapstructure:"log_level" validate:"oneof=off debug info warn error"`
	Interfaces      []string          `yaml:"interfaces,omitempty" mapstructure:"interfaces"` // Interface allowlist, empty means all
	Multicast       bool              `yaml:"multicast" mapstructure:"multicast"`
	Broadcast       bool              `yaml:"broadcast" mapstructure:"broadcast"`
	Unicast         []string          `yaml:"unicast,omitempty" mapstructure:"unicast" validate:"dive,ipv4|udp4_addr"`
	HikVisionFields map[string]string `yaml:"hikvision_fields,omitempty" mapstructure:"hikvision_fields"` // Element name overrides
	MDNSService     string            `yaml:"mdns_service,omitempty" mapstructure:"mdns_service"`
	Serve           Serve             `yaml:"serve" mapstructure:"serve"`

	// Source is the file the configuration was read from, empty when none was found.
	Source string `yaml:"-" mapstructure:"-"`
}

// Serve holds the settings of the event streaming server.
type Serve struct {
	Listen     string `yaml:"listen" mapstructure:"listen" validate:"hostname_port"`
	IntervalMS int    `yaml:"interval_ms" mapstructure:"interval_ms" validate:"gte=0"` // 0 disables periodic runs
	Advertise  bool   `yaml:"advertise" mapstructure:"advertise"`
	Instance   string `yaml:"instance,omitempty" mapstructure:"instance"` // mDNS instance name when advertising
	TLSCert    string `yaml:"tls_cert,omitempty" mapstructure:"tls_cert" validate:"required_with=TLSKey"`
	TLSKey     string `yaml:"tls_key,omitempty" mapstructure:"tls_key" validate:"required_with=TLSCert"`
}

// NewConfig creates a new Config with default values.
func NewConfig() *Config {
	return &Config{
		Version:   1,
		TimeoutMS: DefaultTimeoutMS,
		Mode:      string(discovery.DefaultMode),
		LogLevel:  DefaultLogLevel,
		Multicast: true,
		Serve: Serve{
			Listen:     DefaultListen,
			IntervalMS: DefaultServeIntervalMS,
			Instance:   DefaultInstance,
		},
	}
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Registration only fails for an empty tag or a nil func.
	_ = v.RegisterValidation("discovery_mode", func(fl validator.FieldLevel) bool {
		_, err := discovery.ParseMode(fl.Field().String())
		return err == nil
	})
	return v
}

// Validate checks every field against its constraints and reports all
// violations in a single error.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("invalid config: %w", err)
	}

	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		msgs = append(msgs, fmt.Sprintf("%s: failed %q (value %v)", fe.Namespace(), fe.Tag(), fe.Value()))
	}
	return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
}

// Timeout returns the run timeout as a duration.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.TimeoutMS) * time.Millisecond
}

// ServeInterval returns the delay between periodic runs in serve mode.
func (c *Config) ServeInterval() time.Duration {
	return time.Duration(c.Serve.IntervalMS) * time.Millisecond
}

// Dialect resolves the configured mode to a dialect, applying the vendor
// overrides for HikVision and the service type for mDNS.
func (c *Config) Dialect() (discovery.Dialect, error) {
	mode, err := discovery.ParseMode(c.Mode)
	if err != nil {
		return nil, err
	}

	switch mode {
	case discovery.ModeHikVision:
		fields, err := discovery.DefaultHikVisionFields().WithOverrides(c.HikVisionFields)
		if err != nil {
			return nil, err
		}
		return discovery.NewHikVisionDialect(fields), nil
	case discovery.ModeMDNS:
		if c.MDNSService != "" {
			return discovery.NewMDNSDialect(c.MDNSService), nil
		}
	}

	d, _ := discovery.LookupDialect(mode)
	return d, nil
}

// Builder returns a discovery builder populated from the configuration.
// Listeners and observers are left to the caller.
func (c *Config) Builder() (*discovery.Builder, error) {
	dialect, err := c.Dialect()
	if err != nil {
		return nil, err
	}

	b := discovery.New(c.Timeout()).
		Dialect(dialect).
		Interfaces(c.Interfaces...).
		Multicast(c.Multicast).
		Broadcast(c.Broadcast).
		Unicast(c.Unicast...)
	if err := b.Err(); err != nil {
		return nil, err
	}
	return b, nil
}
