package main

import (
	"errors"
	"flag"
	"fmt"
	"io"

	"github.com/Balchandar/intentusnet/pkg/crypto"
	"github.com/Balchandar/intentusnet/pkg/wal"
)

// runWALCmd dispatches `intentusnet wal <verify>`.
func runWALCmd(args []string, stdout, stderr io.Writer) int {
	if len(args) < 1 {
		fmt.Fprintln(stderr, "Usage: intentusnet wal verify <executionId>")
		return 2
	}
	switch args[0] {
	case "verify":
		return runWALVerify(args[1:], stdout, stderr)
	default:
		fmt.Fprintf(stderr, "Unknown wal subcommand: %s\n", args[0])
		return 2
	}
}

// runWALVerify implements `wal verify <executionId>`: re-derives the hash
// chain and checks every signed entry's signature against the key given by
// --key-id/--pub-key, without consulting the finalized record at all.
// Unsigned entries are rejected when the compliance mode requires signing.
//
// Exit codes: 0 verified, 1 corrupted/unsigned-when-required, 2 usage/env
// error.
func runWALVerify(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("wal verify", flag.ContinueOnError)
	cmd.SetOutput(stderr)
	var (
		output    string
		keyID     string
		pubKeyHex string
	)
	cmd.StringVar(&output, "output", "table", "json | jsonl | table")
	cmd.StringVar(&keyID, "key-id", "", "signer keyId to verify against (required if the WAL is signed)")
	cmd.StringVar(&pubKeyHex, "pub-key", "", "hex-encoded Ed25519 public key for --key-id")
	if err := cmd.Parse(args); err != nil {
		return 2
	}
	if cmd.NArg() != 1 {
		fmt.Fprintln(stderr, "Usage: intentusnet wal verify <executionId> [--key-id ID --pub-key HEX] [--output json|jsonl|table]")
		return 2
	}
	format, err := parseOutputFormat(output)
	if err != nil {
		fmt.Fprintln(stderr, "Error:", err)
		return 2
	}

	rt, _, err := buildRuntime(nil)
	if err != nil {
		fmt.Fprintln(stderr, "Error:", err)
		return 2
	}
	defer rt.Close()

	var verifier wal.Verifier
	if keyID != "" && pubKeyHex != "" {
		reg := crypto.NewKeyRegistry()
		reg.Register(keyID, pubKeyHex)
		verifier = reg
	}

	requireSigned := rt.Compliance().RequireWALSigning
	entries, verifyErr := wal.VerifyFile(rt.Layout().WALDir, cmd.Arg(0), verifier, requireSigned)

	type result struct {
		ExecutionID string `json:"executionId"`
		EntryCount  int    `json:"entryCount"`
		Verified    bool   `json:"verified"`
		Reason      string `json:"reason,omitempty"`
	}
	res := result{ExecutionID: cmd.Arg(0), EntryCount: len(entries), Verified: verifyErr == nil}
	if verifyErr != nil {
		var integrityErr *wal.IntegrityError
		if errors.As(verifyErr, &integrityErr) {
			res.Reason = integrityErr.Reason
		} else {
			res.Reason = verifyErr.Error()
		}
	}

	if err := writeOne(stdout, format, res, func() [][2]string {
		rows := [][2]string{
			{"executionId", res.ExecutionID},
			{"entryCount", fmt.Sprintf("%d", res.EntryCount)},
			{"verified", fmt.Sprintf("%v", res.Verified)},
		}
		if res.Reason != "" {
			rows = append(rows, [2]string{"reason", res.Reason})
		}
		return rows
	}); err != nil {
		fmt.Fprintln(stderr, "Error:", err)
		return 2
	}

	if verifyErr != nil {
		return 1
	}
	return 0
}
