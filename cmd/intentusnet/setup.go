package main

import (
	"bufio"
	"context"
	"crypto/ed25519"
	"encoding/hex"
	"fmt"
	"io"
	"os"

	"github.com/Balchandar/intentusnet/pkg/compliance"
	"github.com/Balchandar/intentusnet/pkg/config"
	"github.com/Balchandar/intentusnet/pkg/contracts"
	"github.com/Balchandar/intentusnet/pkg/crypto"
	"github.com/Balchandar/intentusnet/pkg/registry"
	"github.com/Balchandar/intentusnet/pkg/runtime"
)

// echoAgent is the CLI's built-in demonstration agent: it declares a
// capability for the intent of the envelope being routed or estimated
// (unless --no-stub is given) and returns its payload unchanged. Real agent processes
// are external collaborators (outside this runtime's invocation boundary) and are wired
// in by whatever embeds pkg/runtime as a library; the CLI carries this stub
// only so `route`/`estimate` have something to dispatch to out of the box.
type echoAgent struct {
	name string
	def  contracts.AgentDefinition
}

func newEchoAgent(name string, intent contracts.IntentReference, nodeID string, nodePriority int) *echoAgent {
	return &echoAgent{
		name: name,
		def: contracts.AgentDefinition{
			Name:         name,
			NodeID:       nodeID,
			NodePriority: nodePriority,
			Capabilities: []contracts.Capability{{Intent: intent}},
		},
	}
}

func (a *echoAgent) Definition() contracts.AgentDefinition { return a.def }

func (a *echoAgent) Invoke(_ context.Context, env contracts.IntentEnvelope) (contracts.AgentResponse, error) {
	return contracts.AgentResponse{
		Status:  contracts.StatusSuccess,
		Payload: env.Payload,
	}, nil
}

// buildRuntime loads configuration from the environment and constructs a
// Runtime with a fresh, empty registry plus, when registerEchoFor is
// non-nil, one echo agent registered for that intent, so `route` and
// `estimate` can be smoke-tested without an external agent process.
func buildRuntime(registerEchoFor *contracts.IntentReference) (*runtime.Runtime, *config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("config: %w", err)
	}

	opts := runtime.Options{}
	if cfg.ComplianceProfilePath != "" {
		profile, err := compliance.LoadProfile(cfg.ComplianceProfilePath)
		if err != nil {
			return nil, nil, err
		}
		cfg.ComplianceMode = profile.Mode
		opts.RedactionFields = profile.RedactionFields
		if profile.Mode == compliance.ModeRegulated {
			signer, err := loadSigningKey(profile.SigningKeyID)
			if err != nil {
				return nil, nil, err
			}
			opts.Signer = signer
		}
	}

	reg := registry.New()
	if registerEchoFor != nil {
		if err := reg.Register(newEchoAgent("echo", *registerEchoFor, "", 0)); err != nil {
			return nil, nil, err
		}
	}
	opts.Registry = reg

	rt, err := runtime.New(cfg, opts)
	if err != nil {
		return nil, nil, err
	}
	return rt, cfg, nil
}

// loadSigningKey builds the Ed25519 signer a REGULATED-mode profile names,
// from a hex-encoded 64-byte Ed25519 private key in
// INTENTUSNET_SIGNING_KEY_SEED. The profile only records the keyId; the key
// itself is operator-managed
// secret material and never written to the profile file.
func loadSigningKey(keyID string) (crypto.Signer, error) {
	seedHex := os.Getenv("INTENTUSNET_SIGNING_KEY_SEED")
	if seedHex == "" {
		return nil, fmt.Errorf("setup: REGULATED profile needs INTENTUSNET_SIGNING_KEY_SEED for key %q", keyID)
	}
	seed, err := hex.DecodeString(seedHex)
	if err != nil || len(seed) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("setup: INTENTUSNET_SIGNING_KEY_SEED must be a %d-byte hex-encoded Ed25519 private key", ed25519.PrivateKeySize)
	}
	return crypto.NewEd25519SignerFromSeed(keyID, ed25519.PrivateKey(seed)), nil
}

// requireWritable enforces INTENTUSNET_MODE=read_only against a mutating
// command.
func requireWritable(cfg *config.Config) error {
	if cfg.Mode == config.ModeReadOnly {
		return fmt.Errorf("refusing to run: INTENTUSNET_MODE=read_only")
	}
	return nil
}

// requireAuthToken enforces that a destructive operation carries the bearer
// token named by INTENTUSNET_AUTH_TOKEN, when that variable is set at all:
// destructive ops require it whenever it is configured.
func requireAuthToken(cfg *config.Config, suppliedToken string) error {
	if cfg.AuthToken == "" {
		return nil
	}
	if suppliedToken != cfg.AuthToken {
		return fmt.Errorf("refusing to run: missing or invalid --token for a destructive operation")
	}
	return nil
}

// confirmDestructive prompts on stdin unless INTENTUSNET_AUTO_CONFIRM=1 is
// set.
func confirmDestructive(cfg *config.Config, stdin io.Reader, stdout io.Writer, prompt string) (bool, error) {
	if cfg.AutoConfirm {
		return true, nil
	}
	fmt.Fprintf(stdout, "%s [y/N]: ", prompt)
	reader := bufio.NewReader(stdin)
	line, err := reader.ReadString('\n')
	if err != nil && err != io.EOF {
		return false, err
	}
	line = trimNewline(line)
	return line == "y" || line == "Y" || line == "yes", nil
}

func trimNewline(s string) string {
	for len(s) > 0 && (s[len(s)-1] == '\n' || s[len(s)-1] == '\r') {
		s = s[:len(s)-1]
	}
	return s
}

// defaultStdin is overridden by tests that need to script confirmation
// prompts without touching the real process stdin.
var defaultStdin io.Reader = os.Stdin
