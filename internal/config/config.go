package config

import (
	"log"
	"os"

	"gopkg.in/yaml.v2"
)

type Config struct {
	Server struct {
		Address string `yaml:"address"`
	} `yaml:"server"`
	Firebase struct {
		ProjectID       string `yaml:"project_id"`
		CredentialsFile string `yaml:"credentials_file"`
	} `yaml:"firebase"`
	Apple struct {
		// verifyReceipt endpoints. Left empty, the service falls back to
		// Apple's well-known production/sandbox URLs.
		VerifyURL        string `yaml:"verify_url"`
		SandboxVerifyURL string `yaml:"sandbox_verify_url"`
		BundleID         string `yaml:"bundle_id"`
	} `yaml:"apple"`
	Google struct {
		PackageName string `yaml:"package_name"`
	} `yaml:"google"`
	Redis struct {
		Addr string `yaml:"addr"`
	} `yaml:"redis"`

	// Secrets, env only.
	AppleSharedSecret        string `yaml:"-"`
	GoogleServiceAccountJSON string `yaml:"-"`
	IdentityHashSalt         string `yaml:"-"`
}

func LoadConfig() Config {
	var cfg Config

	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "config/config.yaml"
	}

	data, err := os.ReadFile(path)
	if err != nil {
		log.Fatalf("Failed to read config file: %v", err)
	}

	err = yaml.Unmarshal(data, &cfg)
	if err != nil {
		log.Fatalf("Failed to unmarshal config data: %v", err)
	}

	cfg.AppleSharedSecret = os.Getenv("APPLE_SHARED_SECRET")
	cfg.GoogleServiceAccountJSON = os.Getenv("GOOGLE_PLAY_SERVICE_ACCOUNT_JSON")
	cfg.IdentityHashSalt = os.Getenv("IDENTITY_HASH_SALT")
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		cfg.Redis.Addr = addr
	}
	return cfg
}
