package config

import (
	"os"
	"path/filepath"
	"testing"

	"go.akshayshah.org/attest"

	"github.com/famfo/acmed/acme"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "acmed.yaml")
	attest.Ok(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `
domains:
  - example.com
challenge_server:
  enabled: true
`)

	cfg, err := Load(path)
	attest.Ok(t, err)

	attest.Equal(t, cfg.DirectoryURL, DefaultDirectoryURL)
	attest.Equal(t, cfg.AccountKeyFile, DefaultAccountKeyFile)
	attest.Equal(t, cfg.Challenge, DefaultChallenge)
	attest.Equal(t, cfg.ChallengeKind(), acme.ChallengeHTTP01)
	attest.Equal(t, cfg.Output.CertificateFile, DefaultCertificateFile)
	attest.Equal(t, cfg.Output.KeyFile, DefaultKeyFile)
	attest.Equal(t, cfg.ChallengeServer.HTTPPort, DefaultHTTPPort)
	attest.Equal(t, cfg.ChallengeServer.TLSPort, DefaultTLSPort)
	attest.Equal(t, cfg.ChallengeServer.DNSPort, DefaultDNSPort)
}

func TestLoadFullConfig(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `
directory_url: https://pebble.localhost:14000/dir
ca_bundle: pebble.minica.pem
contact_email: admin@example.com
account_key_file: keys/account.key
domains:
  - example.com
  - www.example.com
challenge: DNS-01
hook:
  command: /usr/local/bin/publish-challenge
  args: ["--zone", "example.com"]
dns_precheck:
  resolver: 127.0.0.1:5252
  interval_seconds: 1
  max_attempts: 5
poll:
  interval_seconds: 1
  max_attempts: 10
output:
  certificate_file: out/cert.pem
  key_file: out/cert.key
`)

	cfg, err := Load(path)
	attest.Ok(t, err)

	attest.Equal(t, cfg.DirectoryURL, "https://pebble.localhost:14000/dir")
	attest.Equal(t, cfg.CABundle, "pebble.minica.pem")
	attest.Equal(t, cfg.ContactEmail, "admin@example.com")
	attest.Equal(t, cfg.Domains, []string{"example.com", "www.example.com"})
	// Challenge names parse case-insensitively.
	attest.Equal(t, cfg.ChallengeKind(), acme.ChallengeDNS01)
	attest.Equal(t, cfg.Hook.Command, "/usr/local/bin/publish-challenge")
	attest.Equal(t, cfg.Hook.Args, []string{"--zone", "example.com"})
	attest.Equal(t, cfg.DNSPrecheck.Resolver, "127.0.0.1:5252")
	attest.Equal(t, cfg.Poll.IntervalSeconds, 1)
	attest.Equal(t, cfg.Poll.MaxAttempts, 10)
	attest.Equal(t, cfg.Output.CertificateFile, "out/cert.pem")
}

func TestLoadRejectsMissingFile(t *testing.T) {
	t.Parallel()

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	attest.Error(t, err)
}

func TestLoadRejectsBadYAML(t *testing.T) {
	t.Parallel()

	_, err := Load(writeConfig(t, "domains: [unclosed"))
	attest.Error(t, err)
}

func TestValidate(t *testing.T) {
	t.Parallel()

	base := func() *Config {
		return &Config{
			Domains: []string{"example.com"},
			Hook:    HookConfig{Command: "true"},
		}
	}

	attest.Ok(t, base().Validate())

	cfg := base()
	cfg.Domains = nil
	attest.Error(t, cfg.Validate())

	cfg = base()
	cfg.Domains = []string{"example.com", "  "}
	attest.Error(t, cfg.Validate())

	cfg = base()
	cfg.Challenge = "http-02"
	attest.Error(t, cfg.Validate())

	// Either a hook or the built-in challenge server must be configured.
	cfg = base()
	cfg.Hook.Command = ""
	attest.Error(t, cfg.Validate())

	cfg = base()
	cfg.Hook.Command = ""
	cfg.ChallengeServer.Enabled = true
	attest.Ok(t, cfg.Validate())

	cfg = base()
	cfg.Poll.IntervalSeconds = -1
	attest.Error(t, cfg.Validate())
}
