// Package config loads configuration structs from environment variables.
//
// It wraps github.com/joho/godotenv for .env files and
// github.com/caarlos0/env/v11 for tag-based parsing:
//
//	type Config struct {
//	    Addr string `env:"HTTP_ADDR" envDefault:":8080"`
//	    DSN  string `env:"PG_CONN_URL,required"`
//	}
//
//	if err := config.LoadEnv(); err != nil {
//	    return err
//	}
//	var cfg Config
//	if err := config.Load(&cfg); err != nil {
//	    return err
//	}
//
// Structs implementing Validator are validated after parsing. Failures wrap
// ErrParsingConfig or ErrInvalidConfig.
package config
