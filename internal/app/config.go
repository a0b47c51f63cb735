package app

import (
	"net/http"
	"strings"

	"github.com/spf13/viper"
)

// Config holds runtime wiring options for building the app.
type Config struct {
	Home          string // config/keystore directory, e.g. $HOME/.kindred
	DatabaseDSN   string // Postgres DSN for the managed backend tables
	PushURL       string // push service base URL; empty disables push
	ModerationURL string // moderation service base URL; empty allows all
	DeviceSecret  string // seals the on-device keystore file
	LogLevel      string // zerolog level name, default "info"

	HTTP *http.Client // optional; defaults to http.DefaultClient
}

// LoadConfig reads kindred.yaml from dir (when present) merged with
// KINDRED_* environment variables.
func LoadConfig(dir string) (Config, error) {
	v := viper.New()
	v.SetConfigName("kindred")
	v.SetConfigType("yaml")
	v.AddConfigPath(dir)

	v.SetEnvPrefix("kindred")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("log_level", "info")
	v.SetDefault("device_secret", "kindred-local")

	if err := v.ReadInConfig(); err != nil {
		// A missing file is fine: env and defaults still apply.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return Config{}, err
		}
	}

	return Config{
		Home:          dir,
		DatabaseDSN:   v.GetString("database_dsn"),
		PushURL:       v.GetString("push_url"),
		ModerationURL: v.GetString("moderation_url"),
		DeviceSecret:  v.GetString("device_secret"),
		LogLevel:      v.GetString("log_level"),
	}, nil
}
