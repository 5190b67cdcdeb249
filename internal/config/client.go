package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Keys understood by the client configuration.
const (
	KeyAPIBase  = "api-base"
	KeyTimeout  = "timeout"
	KeyLogLevel = "log-level"
)

// DefaultClientTimeout bounds every request made by tradectl.
const DefaultClientTimeout = 10 * time.Second

// Client holds settings for cmd/tradectl.
type Client struct {
	APIBase    string
	Origin     string
	TradesPath string
	Timeout    time.Duration
	LogLevel   string
}

// NewClientViper returns a viper instance with client defaults and the
// TRADES_API_BASE / TRADECTL_* environment bindings. Flags are bound by
// the caller.
func NewClientViper() *viper.Viper {
	v := viper.New()
	v.SetDefault(KeyAPIBase, "")
	v.SetDefault(KeyTimeout, DefaultClientTimeout)
	v.SetDefault(KeyLogLevel, "warn")

	v.SetEnvPrefix("TRADECTL")
	v.BindEnv(KeyAPIBase, "TRADES_API_BASE")
	v.BindEnv(KeyTimeout, "TRADECTL_TIMEOUT")
	v.BindEnv(KeyLogLevel, "TRADECTL_LOG_LEVEL")
	return v
}

// DefaultConfigDir returns the directory searched for tradectl.toml.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "tradectl")
}

// LoadClient reads the optional tradectl.toml in dir and resolves the
// client settings. A missing file is not an error.
func LoadClient(v *viper.Viper, dir string) (Client, error) {
	v.SetConfigName("tradectl")
	v.SetConfigType("toml")
	v.AddConfigPath(dir)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Client{}, fmt.Errorf("reading tradectl.toml: %w", err)
		}
	}

	timeout := v.GetDuration(KeyTimeout)
	if timeout <= 0 {
		return Client{}, fmt.Errorf("timeout must be positive, got %s", v.GetString(KeyTimeout))
	}

	base := v.GetString(KeyAPIBase)
	origin, path := SplitAPIBase(base)
	return Client{
		APIBase:    base,
		Origin:     origin,
		TradesPath: path,
		Timeout:    timeout,
		LogLevel:   v.GetString(KeyLogLevel),
	}, nil
}
