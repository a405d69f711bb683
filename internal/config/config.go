// Package config manages harness settings stored in
// ~/.config/noobaa-sa-ci/config.toml and overridable through NOOBAA_CI_*
// environment variables. The remote server is the source of truth for all
// account and bucket state; the config only says how to reach it.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Config holds everything needed to reach the server under test: the SSH
// side for administrative operations and the S3 side for the data plane.
type Config struct {
	// Host is the address of the NooBaa standalone host.
	Host string `mapstructure:"host"`

	// SSHUser, SSHPort and SSHKeyPath configure the administrative SSH session.
	SSHUser    string `mapstructure:"ssh_user"`
	SSHPort    int    `mapstructure:"ssh_port"`
	SSHKeyPath string `mapstructure:"ssh_key_path"`

	// ConfigRoot is the server-side configuration root passed to the
	// management CLI. A leading ~/ is expanded against the remote home.
	ConfigRoot string `mapstructure:"config_root"`

	// NoobaaCLIPath is the management CLI binary on the remote host.
	NoobaaCLIPath string `mapstructure:"noobaa_cli_path"`

	// S3Port is the endpoint port of the S3 service on Host.
	S3Port int `mapstructure:"s3_port"`

	// TLSCertPath is a local path to the server certificate used to verify
	// TLS. Empty means verification is skipped (self-signed lab servers).
	TLSCertPath string `mapstructure:"tls_cert_path"`

	// AWSCLIPath is the local aws binary used for sync and recursive
	// delete, which the SDK has no single call for.
	AWSCLIPath string `mapstructure:"aws_cli_path"`
}

// Endpoint returns the https endpoint URL of the S3 service.
func (c *Config) Endpoint() string {
	return fmt.Sprintf("https://%s:%d", c.Host, c.S3Port)
}

// DefaultConfigDir returns the config directory (~/.config/noobaa-sa-ci),
// or $NOOBAA_CI_CONFIG_DIR when set.
func DefaultConfigDir() string {
	if dir := os.Getenv("NOOBAA_CI_CONFIG_DIR"); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".config", "noobaa-sa-ci")
	}
	return filepath.Join(home, ".config", "noobaa-sa-ci")
}

// Load reads configDir/config.toml, applies defaults for missing keys, and
// lets NOOBAA_CI_* environment variables override file values. A missing
// file is not an error; env-only operation is the common CI case.
func Load(configDir string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(configDir)

	v.SetDefault("host", "")
	v.SetDefault("ssh_user", "root")
	v.SetDefault("ssh_port", 22)
	v.SetDefault("ssh_key_path", "")
	v.SetDefault("config_root", "~/.noobaa")
	v.SetDefault("noobaa_cli_path", "noobaa-cli")
	v.SetDefault("s3_port", 6443)
	v.SetDefault("tls_cert_path", "")
	v.SetDefault("aws_cli_path", "aws")

	v.SetEnvPrefix("NOOBAA_CI")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return cfg, nil
}

// Validate checks that the settings required for remote operation are
// present. Called by commands that actually reach out to the server.
func (c *Config) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("host is not set (config key %q or NOOBAA_CI_HOST)", "host")
	}
	if c.SSHUser == "" {
		return fmt.Errorf("ssh_user cannot be empty")
	}
	if c.SSHPort <= 0 || c.SSHPort > 65535 {
		return fmt.Errorf("ssh_port %d is out of range", c.SSHPort)
	}
	if c.S3Port <= 0 || c.S3Port > 65535 {
		return fmt.Errorf("s3_port %d is out of range", c.S3Port)
	}
	return nil
}

// Save writes the config to configDir/config.toml, creating the directory
// if needed.
func Save(cfg *Config, configDir string) error {
	if err := os.MkdirAll(configDir, 0o700); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	v := viper.New()
	v.Set("host", cfg.Host)
	v.Set("ssh_user", cfg.SSHUser)
	v.Set("ssh_port", cfg.SSHPort)
	v.Set("ssh_key_path", cfg.SSHKeyPath)
	v.Set("config_root", cfg.ConfigRoot)
	v.Set("noobaa_cli_path", cfg.NoobaaCLIPath)
	v.Set("s3_port", cfg.S3Port)
	v.Set("tls_cert_path", cfg.TLSCertPath)
	v.Set("aws_cli_path", cfg.AWSCLIPath)

	path := filepath.Join(configDir, "config.toml")
	if err := v.WriteConfigAs(path); err != nil {
		return err
	}
	return os.Chmod(path, 0o600)
}
