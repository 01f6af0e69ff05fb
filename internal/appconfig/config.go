// Package appconfig loads the econtact process configuration with viper.
//
// Values come from, in increasing priority: built-in defaults, an optional
// YAML, TOML or JSON file, and ECONTACT_* environment variables where the
// dotted key path is joined with underscores (auth.jwt.access_key becomes
// ECONTACT_AUTH_JWT_ACCESS_KEY).
package appconfig

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"

	econtact "github.com/ThanhNhiet/E-Contact-Book-CoolKing-sub001"
	"github.com/ThanhNhiet/E-Contact-Book-CoolKing-sub001/internal/logging"
	"github.com/ThanhNhiet/E-Contact-Book-CoolKing-sub001/internal/redisx"
	"github.com/ThanhNhiet/E-Contact-Book-CoolKing-sub001/users"
)

const EnvPrefix = "ECONTACT"

type Config struct {
	Server   ServerConfig    `mapstructure:"server"`
	Redis    redisx.Config   `mapstructure:"redis"`
	Database users.Config    `mapstructure:"database"`
	Log      logging.Config  `mapstructure:"log"`
	Auth     econtact.Config `mapstructure:"auth"`
	Client   ClientConfig    `mapstructure:"client"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	// TrustProxy takes the client IP from X-Forwarded-For.
	TrustProxy bool `mapstructure:"trust_proxy"`
}

// ClientConfig configures the command line client.
type ClientConfig struct {
	BaseURL         string        `mapstructure:"base_url"`
	CredentialsFile string        `mapstructure:"credentials_file"`
	Passphrase      string        `mapstructure:"passphrase"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
	RefreshTimeout  time.Duration `mapstructure:"refresh_timeout"`
}

// Default returns the configuration used when nothing is overridden.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    10 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
		Redis: redisx.Config{
			Addr:        "127.0.0.1:6379",
			DialTimeout: 2 * time.Second,
			ReadTimeout: time.Second,
		},
		Database: users.Config{
			Dialect:    "sqlite",
			Datasource: "econtact.db",
		},
		Log:  logging.Config{Level: "info"},
		Auth: econtact.DefaultConfig(),
		Client: ClientConfig{
			BaseURL:         "http://127.0.0.1:8080",
			CredentialsFile: defaultCredentialsFile(),
			RequestTimeout:  15 * time.Second,
			RefreshTimeout:  10 * time.Second,
		},
	}
}

func defaultCredentialsFile() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ".econtact-credentials"
	}
	return dir + string(os.PathSeparator) + "econtact" + string(os.PathSeparator) + "credentials"
}

// Load reads path (optional; "" skips the file) and the environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults, err := toMap(Default())
	if err != nil {
		return Config{}, err
	}
	setDefaults(v, "", defaults)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var nf viper.ConfigFileNotFoundError
			if errors.As(err, &nf) || errors.Is(err, os.ErrNotExist) {
				return Config{}, fmt.Errorf("config file %s not found", path)
			}
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var out Config
	if err := v.Unmarshal(&out); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	return out, nil
}

func toMap(in any) (map[string]any, error) {
	out := map[string]any{}
	if err := mapstructure.Decode(in, &out); err != nil {
		return nil, fmt.Errorf("flatten defaults: %w", err)
	}
	return out, nil
}

// setDefaults registers every leaf so AutomaticEnv can override keys that
// do not appear in the file.
func setDefaults(v *viper.Viper, prefix string, m map[string]any) {
	for k, val := range m {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		switch typed := val.(type) {
		case map[string]any:
			setDefaults(v, key, typed)
			continue
		}
		if reflect.ValueOf(val).Kind() == reflect.Struct {
			if nested, err := toMap(val); err == nil {
				setDefaults(v, key, nested)
				continue
			}
		}
		v.SetDefault(key, val)
	}
}
