// acmed requests a certificate from an ACME server for a configured set of
// domains and writes the issued certificate and key to disk.
package main

import (
	"flag"
	"log"
	"strings"
	"time"

	acmeclient "github.com/famfo/acmed/acme/client"
	"github.com/famfo/acmed/challenges"
	acmecmd "github.com/famfo/acmed/cmd"
	"github.com/famfo/acmed/config"
	"github.com/famfo/acmed/storage"
)

const CONFIG_DEFAULT = "acmed.yaml"

func main() {
	configPath := flag.String(
		"config",
		CONFIG_DEFAULT,
		"Path to the acmed configuration file")

	directory := flag.String(
		"directory",
		"",
		"Directory URL for the ACME server (overrides the config file)")

	domains := flag.String(
		"domains",
		"",
		"Comma separated domains to request a certificate for (overrides the config file)")

	challenge := flag.String(
		"challenge",
		"",
		"Challenge type: http-01, dns-01 or tls-alpn-01 (overrides the config file)")

	pebble := flag.Bool(
		"pebble",
		false,
		"Use Pebble defaults")

	flag.Parse()

	cfg, err := config.Load(*configPath)
	acmecmd.FailOnError(err, "Unable to load configuration")

	if *directory != "" {
		cfg.DirectoryURL = *directory
	}
	if *domains != "" {
		cfg.Domains = strings.Split(*domains, ",")
	}
	if *challenge != "" {
		cfg.Challenge = *challenge
	}
	if *pebble {
		cfg.DirectoryURL = "https://localhost:14000/dir"
	}
	err = cfg.Validate()
	acmecmd.FailOnError(err, "Invalid configuration")

	accountKey, err := storage.LoadOrCreateAccountKey(cfg.AccountKeyFile)
	acmecmd.FailOnError(err, "Unable to load account key")

	client, err := acmeclient.NewClient(acmeclient.ClientConfig{
		DirectoryURL:  cfg.DirectoryURL,
		CACert:        cfg.CABundle,
		ContactEmail:  cfg.ContactEmail,
		AccountSigner: accountKey,
		Poll: acmeclient.PollConfig{
			Interval:    time.Duration(cfg.Poll.IntervalSeconds) * time.Second,
			MaxAttempts: cfg.Poll.MaxAttempts,
		},
	})
	acmecmd.FailOnError(err, "Unable to create ACME client")

	hook, cleanup, err := buildHook(cfg)
	acmecmd.FailOnError(err, "Unable to set up challenge hook")
	if cleanup != nil {
		defer cleanup()
		go acmecmd.CatchSignals(cleanup)
	}

	err = client.RequestCertificate(&acmeclient.CertificateRequest{
		Domains:   cfg.Domains,
		Challenge: cfg.ChallengeKind(),
		Hook:      hook,
		Storage: storage.Store{
			CertificateFile: cfg.Output.CertificateFile,
			KeyFile:         cfg.Output.KeyFile,
		},
		Observer: logObserver{},
	})
	acmecmd.FailOnError(err, "Certificate request failed")
}

// buildHook assembles the configured challenge hook: an external command
// when one is configured, the built-in challenge response server otherwise.
// The returned cleanup function, if not nil, stops the response server.
func buildHook(cfg *config.Config) (challenges.Hook, func(), error) {
	var hook challenges.Hook
	var cleanup func()

	if cfg.Hook.Command != "" {
		hook = challenges.ExecHook{
			Command: cfg.Hook.Command,
			Args:    cfg.Hook.Args,
		}
	} else {
		srv, err := challenges.NewChallSrv(
			cfg.ChallengeServer.HTTPPort,
			cfg.ChallengeServer.TLSPort,
			cfg.ChallengeServer.DNSPort)
		if err != nil {
			return nil, nil, err
		}
		hook = challenges.ChallSrvHook{Srv: srv}
		cleanup = func() { srv.Shutdown() }
	}

	if cfg.DNSPrecheck.Resolver != "" {
		hook = challenges.WithDNSPrecheck(hook, challenges.DNSPrecheck{
			Resolver:    cfg.DNSPrecheck.Resolver,
			Interval:    time.Duration(cfg.DNSPrecheck.IntervalSeconds) * time.Second,
			MaxAttempts: cfg.DNSPrecheck.MaxAttempts,
		})
	}

	return hook, cleanup, nil
}

type logObserver struct{}

func (logObserver) IssuanceSucceeded(domains []string) {
	log.Printf("Certificate issued for %s\n", strings.Join(domains, ", "))
}
