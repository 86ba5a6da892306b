package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Environment string
	AppName     string
	Database    struct {
		Name string
	}
	Server struct {
		Host string
		Port string
	}
	Session struct {
		CookieName string
	}
	MFA struct {
		Issuer string
	}
	Bootstrap struct {
		AdminEmail    string
		AdminPassword string
	}
}

func readConfig() (Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("/etc/sfconnect/")
	viper.AddConfigPath(".")

	viper.SetDefault("environment", "dev")
	viper.SetDefault("appname", "sfconnect")
	viper.SetDefault("database.name", "sfconnect")
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", "8080")
	viper.SetDefault("session.cookiename", "sf_connect_token")
	viper.SetDefault("mfa.issuer", "SF Connect")
	viper.SetDefault("bootstrap.adminemail", "admin@sfconnect.local")
	viper.SetDefault("bootstrap.adminpassword", "Ch@ngE33#!!!")

	// The config file is optional: defaults plus env overrides are enough
	// for a fresh deployment.
	var notFound viper.ConfigFileNotFoundError
	if err := viper.ReadInConfig(); err != nil && !errors.As(err, &notFound) {
		return Config{}, fmt.Errorf("can't read config file: %w", err)
	}

	viper.SetEnvPrefix("SFC")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("can't unmarshal config: %w", err)
	}

	return cfg, nil
}
