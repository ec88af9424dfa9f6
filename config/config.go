// Package config loads and validates the acmed configuration file.
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/famfo/acmed/acme"
)

const (
	DefaultDirectoryURL    = "https://acme-staging-v02.api.letsencrypt.org/directory"
	DefaultAccountKeyFile  = "account.key"
	DefaultCertificateFile = "certificate.pem"
	DefaultKeyFile         = "certificate.key"
	DefaultChallenge       = "http-01"
	DefaultHTTPPort        = 5002
	DefaultTLSPort         = 5001
	DefaultDNSPort         = 5252
)

// Config is the top-level acmed configuration.
type Config struct {
	// Directory URL of the ACME server.
	DirectoryURL string `yaml:"directory_url"`
	// Optional path to PEM CA certificates trusted for the ACME server's
	// HTTPS endpoint.
	CABundle string `yaml:"ca_bundle"`
	// Optional contact email registered with the account.
	ContactEmail string `yaml:"contact_email"`
	// Path the account private key is loaded from, created on first run.
	AccountKeyFile string `yaml:"account_key_file"`
	// The domains to request a certificate for.
	Domains []string `yaml:"domains"`
	// The challenge type used to prove control of every domain.
	Challenge string `yaml:"challenge"`
	// External hook command publishing challenge proofs.
	Hook HookConfig `yaml:"hook"`
	// Built-in challenge response server, used when no hook is configured.
	ChallengeServer ChallengeServerConfig `yaml:"challenge_server"`
	// DNS-01 propagation precheck.
	DNSPrecheck DNSPrecheckConfig `yaml:"dns_precheck"`
	// Polling policy for authorization and order state transitions.
	Poll PollConfig `yaml:"poll"`
	// Where the issued certificate and its key are written.
	Output OutputConfig `yaml:"output"`

	challengeKind acme.ChallengeKind
}

type HookConfig struct {
	Command string   `yaml:"command"`
	Args    []string `yaml:"args"`
}

type ChallengeServerConfig struct {
	Enabled  bool `yaml:"enabled"`
	HTTPPort int  `yaml:"http_port"`
	TLSPort  int  `yaml:"tls_port"`
	DNSPort  int  `yaml:"dns_port"`
}

type DNSPrecheckConfig struct {
	// Resolver is the "host:port" of the DNS server queried for the
	// challenge TXT record. Empty disables the precheck.
	Resolver        string `yaml:"resolver"`
	IntervalSeconds int    `yaml:"interval_seconds"`
	MaxAttempts     int    `yaml:"max_attempts"`
}

type PollConfig struct {
	IntervalSeconds int `yaml:"interval_seconds"`
	MaxAttempts     int `yaml:"max_attempts"`
}

type OutputConfig struct {
	CertificateFile string `yaml:"certificate_file"`
	KeyFile         string `yaml:"key_file"`
}

// Load reads, defaults and validates the configuration at path.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %q: %w", path, err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %q: %w", path, err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %q: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.DirectoryURL == "" {
		c.DirectoryURL = DefaultDirectoryURL
	}
	if c.AccountKeyFile == "" {
		c.AccountKeyFile = DefaultAccountKeyFile
	}
	if c.Challenge == "" {
		c.Challenge = DefaultChallenge
	}
	if c.Output.CertificateFile == "" {
		c.Output.CertificateFile = DefaultCertificateFile
	}
	if c.Output.KeyFile == "" {
		c.Output.KeyFile = DefaultKeyFile
	}
	if c.ChallengeServer.HTTPPort == 0 {
		c.ChallengeServer.HTTPPort = DefaultHTTPPort
	}
	if c.ChallengeServer.TLSPort == 0 {
		c.ChallengeServer.TLSPort = DefaultTLSPort
	}
	if c.ChallengeServer.DNSPort == 0 {
		c.ChallengeServer.DNSPort = DefaultDNSPort
	}
}

// Validate checks the configuration after defaults have been applied. It is
// called by Load; callers constructing a Config directly should call it
// themselves.
func (c *Config) Validate() error {
	c.applyDefaults()

	if len(c.Domains) == 0 {
		return fmt.Errorf("no domains configured")
	}
	for _, domain := range c.Domains {
		if strings.TrimSpace(domain) == "" {
			return fmt.Errorf("empty domain in domain list")
		}
	}

	kind, err := acme.ParseChallengeKind(c.Challenge)
	if err != nil {
		return err
	}
	c.challengeKind = kind

	if c.Hook.Command == "" && !c.ChallengeServer.Enabled {
		return fmt.Errorf("no challenge hook configured: set hook.command or enable challenge_server")
	}

	if c.Poll.IntervalSeconds < 0 || c.Poll.MaxAttempts < 0 {
		return fmt.Errorf("poll settings must not be negative")
	}

	return nil
}

// ChallengeKind returns the parsed challenge type. Only valid after
// a successful Validate.
func (c *Config) ChallengeKind() acme.ChallengeKind {
	return c.challengeKind
}
