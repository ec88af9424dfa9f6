// Package challenges provides challenge hook implementations: the
// out-of-band actions that make a domain-control proof observable by the
// ACME server.
package challenges

import (
	"fmt"
	"os"
	"os/exec"

	"github.com/famfo/acmed/acme"
)

// Hook publishes a challenge response. Implementations in this package
// satisfy the issuance client's ChallengeHook collaborator.
type Hook interface {
	Complete(completion acme.Completion) error
}

// ExecHook publishes challenge responses by running an external command,
// for deployments where the proof must be placed somewhere this process
// can not reach directly (a DNS provider API, a remote web root).
//
// The command is invoked with the file/record name, the proof and the
// domain appended to its configured arguments, and with the completion
// details in the environment: ACMED_CHALLENGE, ACMED_FILE_NAME,
// ACMED_PROOF, ACMED_DOMAIN and ACMED_KEY_AUTHORIZATION. For HTTP-01
// completions ACMED_HTTP_PATH additionally carries the well-known URL path
// the proof must be served under.
type ExecHook struct {
	// The command to run.
	Command string
	// Arguments placed before the name/proof/domain trio.
	Args []string
}

func (h ExecHook) Complete(completion acme.Completion) error {
	if h.Command == "" {
		return fmt.Errorf("exec hook has no command configured")
	}

	args := append(append([]string{}, h.Args...),
		completion.Name, completion.Proof, completion.Domain)

	cmd := exec.Command(h.Command, args...)
	cmd.Env = append(os.Environ(),
		"ACMED_CHALLENGE="+completion.Kind.String(),
		"ACMED_FILE_NAME="+completion.Name,
		"ACMED_PROOF="+completion.Proof,
		"ACMED_DOMAIN="+completion.Domain,
		"ACMED_KEY_AUTHORIZATION="+completion.KeyAuthorization,
	)
	if completion.Kind == acme.ChallengeHTTP01 {
		// The URL path the proof must be served under.
		cmd.Env = append(cmd.Env,
			"ACMED_HTTP_PATH="+acme.HTTP01_WELL_KNOWN_PATH+completion.Name)
	}

	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("challenge hook %q failed: %s (output: %s)",
			h.Command, err, string(out))
	}
	return nil
}
