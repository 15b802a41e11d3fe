package main

import (
	"fmt"
	"os"
	"time"

	"github.com/jessevdk/go-flags"
)

// Config holds all configuration options
type Config struct {
	// Server config
	Port string `long:"port" env:"PORT" default:"8080" description:"Server port"`

	// Registry config
	RegistryPath string `long:"registry" env:"REGISTRY_PATH" default:"./registry.yaml" description:"Clients/users registry file"`
	UserBackend  string `long:"user-backend" env:"USER_BACKEND" default:"file" choice:"file" choice:"s3" description:"User directory backend"`

	// Storage config
	CredentialMode string `long:"credential-mode" env:"CREDENTIAL_MODE" default:"memory" choice:"memory" choice:"redis" description:"Credential storage backend"`
	SessionMode    string `long:"session-mode" env:"SESSION_MODE" default:"memory" choice:"memory" choice:"redis" description:"Session storage backend"`

	// Credential tuning
	CodeTTL    time.Duration `long:"code-ttl" env:"CODE_TTL" default:"10m" description:"Authorization code lifetime"`
	SessionTTL time.Duration `long:"session-ttl" env:"SESSION_TTL" default:"30m" description:"Browser session lifetime"`
	CodeBytes  int           `long:"code-bytes" env:"CODE_BYTES" default:"256" description:"Random bytes per authorization code"`
	TokenBytes int           `long:"token-bytes" env:"TOKEN_BYTES" default:"1024" description:"Random bytes per access token"`

	// S3 user directory
	S3 struct {
		Endpoint  string `long:"s3-endpoint" env:"S3_ENDPOINT" default:"localhost:9000" description:"S3 endpoint (host:port)"`
		Bucket    string `long:"s3-bucket" env:"S3_BUCKET" default:"authd-users" description:"S3 bucket name"`
		AccessKey string `long:"s3-access-key" env:"S3_ACCESS_KEY" default:"minioadmin" description:"S3 access key"`
		SecretKey string `long:"s3-secret-key" env:"S3_SECRET_KEY" default:"minioadmin" description:"S3 secret key"`
		UseSSL    bool   `long:"s3-use-ssl" env:"S3_USE_SSL" description:"Use SSL for S3 connections"`
	} `group:"S3 Storage Options"`

	// Redis config
	Redis struct {
		Addr     string `long:"redis-addr" env:"REDIS_ADDR" default:"localhost:6379" description:"Redis address"`
		Password string `long:"redis-password" env:"REDIS_PASSWORD" description:"Redis password"`
		DB       int    `long:"redis-db" env:"REDIS_DB" default:"0" description:"Redis database number"`
	} `group:"Redis Options"`
}

// LoadConfig parses configuration from environment variables and command line flags
func LoadConfig() (*Config, error) {
	var config Config

	parser := flags.NewParser(&config, flags.Default)
	parser.Usage = "[OPTIONS]"

	if _, err := parser.Parse(); err != nil {
		if flags.WroteHelp(err) {
			os.Exit(0)
		}
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return &config, nil
}
