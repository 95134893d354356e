package main

import (
	"errors"
	"fmt"
	"os"
	"os/user"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	"github.com/urfave/cli/v3"

	"github.com/wtask/p2pchat/internal/chat"
)

const (
	defaultPort     = 2001
	defaultTimeout  = 30
	defaultIconsDir = "icons"
	envPrefix       = "P2PCHAT"
)

// flagKeys - command line flags overriding configuration keys.
var flagKeys = map[string]string{
	"port":          "port",
	"address":       "address",
	"family":        "family",
	"timeout":       "timeout",
	"name":          "name",
	"icon":          "icon",
	"icons-dir":     "icons_dir",
	"log-level":     "log_level",
	"otel-endpoint": "otel_endpoint",
}

// newViper - loads defaults, config file and environment.
// Empty configFile means optional p2pchat.yaml lookup.
func newViper(configFile string) (*viper.Viper, error) {
	v := viper.New()
	v.SetDefault("port", defaultPort)
	v.SetDefault("address", "")
	v.SetDefault("family", chat.Dual.String())
	v.SetDefault("timeout", defaultTimeout)
	v.SetDefault("name", defaultName())
	v.SetDefault("icon", "")
	v.SetDefault("icons_dir", defaultIconsDir)
	v.SetDefault("log_level", zerolog.WarnLevel.String())
	v.SetDefault("otel_endpoint", "")

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("can't read config %s: %w", configFile, err)
		}
		return v, nil
	}

	v.SetConfigName("p2pchat")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.p2pchat")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("can't read config: %w", err)
		}
	}
	return v, nil
}

// applyFlags - overrides configuration with flags set explicitly.
func applyFlags(v *viper.Viper, c *cli.Command) {
	for flag, key := range flagKeys {
		if c.IsSet(flag) {
			v.Set(key, c.Value(flag))
		}
	}
}

// peerConfig - builds peer configuration from loaded keys.
func peerConfig(v *viper.Viper) (chat.Config, error) {
	family, err := chat.ParseFamily(v.GetString("family"))
	if err != nil {
		return chat.Config{}, err
	}
	cfg := chat.Config{
		Address:     v.GetString("address"),
		Port:        v.GetInt("port"),
		Timeout:     time.Duration(v.GetInt("timeout")) * time.Second,
		Family:      family,
		DisplayName: v.GetString("name"),
		IconPath:    v.GetString("icon"),
		IconsDir:    v.GetString("icons_dir"),
	}
	return cfg, cfg.Validate()
}

// newLogger - console logger writing to stderr, stdout is reserved for chat lines.
func newLogger(level string) (zerolog.Logger, error) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		return zerolog.Nop(), fmt.Errorf("invalid log level %q: %w", level, err)
	}
	zerolog.SetGlobalLevel(lvl)
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger(), nil
}

// settings - everything command needs to run.
type settings struct {
	peer   chat.Config
	logger zerolog.Logger
	// otelEndpoint - OTLP/HTTP traces endpoint, tracing is off when empty
	otelEndpoint string
}

// load - reads configuration and builds logger for command.
func load(c *cli.Command) (settings, error) {
	v, err := newViper(c.String("config"))
	if err != nil {
		return settings{}, err
	}
	applyFlags(v, c)
	logger, err := newLogger(v.GetString("log_level"))
	if err != nil {
		return settings{}, err
	}
	cfg, err := peerConfig(v)
	if err != nil {
		return settings{}, err
	}
	logger.Debug().Interface("config", cfg).Msg("configuration loaded")
	return settings{peer: cfg, logger: logger, otelEndpoint: v.GetString("otel_endpoint")}, nil
}

func defaultName() string {
	if u, err := user.Current(); err == nil && u.Username != "" {
		return u.Username
	}
	return "anonymous"
}
