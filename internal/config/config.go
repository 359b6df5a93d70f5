/**
 * @description
 * This package handles the configuration management for the service. It uses the
 * Viper library to read configuration from environment variables, providing a
 * centralized and straightforward way to manage application settings.
 *
 * @dependencies
 * - github.com/spf13/viper: A popular library for Go application configuration.
 */

package config

import (
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all the configuration variables for the projection-service.
// These values are loaded from environment variables.
type Config struct {
	ServerPort            string `mapstructure:"SERVER_PORT"`
	DatabaseURL           string `mapstructure:"DATABASE_URL"`
	RedisURL              string `mapstructure:"REDIS_URL"`
	RabbitMQURL           string `mapstructure:"RABBITMQ_URL"`
	EventQueue            string `mapstructure:"EVENT_QUEUE"`
	EventExchange         string `mapstructure:"EVENT_EXCHANGE"`
	OperatorJWKSURL       string `mapstructure:"OPERATOR_JWKS_URL"`
	InternalAPIKey        string `mapstructure:"INTERNAL_API_KEY"`
	ProjectionRoutes      string `mapstructure:"PROJECTION_ROUTES"`
	DedupeTTLMinutes      int    `mapstructure:"DEDUPE_TTL_MINUTES"`
	CompletionSkewSeconds int    `mapstructure:"COMPLETION_SKEW_SECONDS"`
}

// LoadConfig reads configuration from environment variables from the given path.
// It uses Viper to automatically bind environment variables to the Config struct.
func LoadConfig(path string) (config Config, err error) {
	// Tell viper the path to look for the optional .env file.
	viper.AddConfigPath(path)
	viper.SetConfigName(".env")
	viper.SetConfigType("env")

	// Enable automatic binding of environment variables.
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Set default values
	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("EVENT_QUEUE", "projection_service.domain_events")
	viper.SetDefault("EVENT_EXCHANGE", "platform.events")
	viper.SetDefault("DEDUPE_TTL_MINUTES", 1440)
	viper.SetDefault("COMPLETION_SKEW_SECONDS", 2)

	// Bind environment variables explicitly to ensure they appear in Unmarshal
	_ = viper.BindEnv("SERVER_PORT")
	_ = viper.BindEnv("PORT")
	_ = viper.BindEnv("DATABASE_URL")
	_ = viper.BindEnv("REDIS_URL", "REDIS_URL", "PROJECTION_REDIS_URL")
	_ = viper.BindEnv("RABBITMQ_URL")
	_ = viper.BindEnv("EVENT_QUEUE")
	_ = viper.BindEnv("EVENT_EXCHANGE")
	_ = viper.BindEnv("OPERATOR_JWKS_URL")
	_ = viper.BindEnv("INTERNAL_API_KEY", "INTERNAL_API_KEY", "PROJECTION_SERVICE_INTERNAL_API_KEY")
	_ = viper.BindEnv("PROJECTION_ROUTES")
	_ = viper.BindEnv("DEDUPE_TTL_MINUTES")
	_ = viper.BindEnv("COMPLETION_SKEW_SECONDS")

	// Attempt to read the config file. It's okay if it doesn't exist.
	if err = viper.ReadInConfig(); err != nil {
		// If the config file is not found, we can ignore the error.
		// For other errors, we should return them.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Printf("level=warn component=config msg=\"failed to read config file; using environment values\" err=%v", err)
		}
	}

	// Unmarshal the configuration into the Config struct.
	err = viper.Unmarshal(&config)
	if err != nil {
		return
	}

	if port := strings.TrimSpace(os.Getenv("PORT")); port != "" {
		config.ServerPort = port
	}
	if strings.TrimSpace(config.InternalAPIKey) == "" {
		config.InternalAPIKey = strings.TrimSpace(os.Getenv("PROJECTION_SERVICE_INTERNAL_API_KEY"))
	}
	config.RedisURL = strings.TrimSpace(config.RedisURL)
	config.ProjectionRoutes = strings.TrimSpace(config.ProjectionRoutes)
	if config.DedupeTTLMinutes <= 0 {
		config.DedupeTTLMinutes = 1440
	}

	return
}

// ParseProjectionRoutes parses the PROJECTION_ROUTES overlay into a routing
// table. The format is a comma-separated list of bindings, each binding an
// event type to one or more pipe-separated projection names:
//
//	TransactionHasBeenCompletedEvent=merchant_balance,EstateCreatedEvent=estate_provisioner|estate
//
// A binding replaces the built-in route for the event type it names; event
// types the overlay does not mention keep their built-in binding. An empty
// string yields an empty table, leaving the built-in routes alone.
func ParseProjectionRoutes(raw string) (map[string][]string, error) {
	routes := make(map[string][]string)
	if strings.TrimSpace(raw) == "" {
		return routes, nil
	}

	for _, binding := range strings.Split(raw, ",") {
		binding = strings.TrimSpace(binding)
		if binding == "" {
			continue
		}
		eventType, names, found := strings.Cut(binding, "=")
		eventType = strings.TrimSpace(eventType)
		if !found || eventType == "" {
			return nil, fmt.Errorf("malformed projection route binding %q", binding)
		}
		for _, name := range strings.Split(names, "|") {
			name = strings.TrimSpace(name)
			if name == "" {
				return nil, fmt.Errorf("empty projection name in route binding %q", binding)
			}
			routes[eventType] = append(routes[eventType], name)
		}
	}
	return routes, nil
}
