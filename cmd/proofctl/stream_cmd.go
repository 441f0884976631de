package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"

	"github.com/google/uuid"

	"github.com/northstaraokeystone/trumpproof/pkg/anchor"
	"github.com/northstaraokeystone/trumpproof/pkg/archive"
	"github.com/northstaraokeystone/trumpproof/pkg/ledger"
	"github.com/northstaraokeystone/trumpproof/pkg/loop"
	"github.com/northstaraokeystone/trumpproof/pkg/observability"
	"github.com/northstaraokeystone/trumpproof/pkg/receipts"
	"github.com/northstaraokeystone/trumpproof/pkg/store"
	"github.com/northstaraokeystone/trumpproof/pkg/violation"
)

// streamFlags parses the --in flag shared by the stream commands.
func streamFlags(name string, args []string, stderr io.Writer, extra func(*flag.FlagSet)) (string, bool) {
	cmd := flag.NewFlagSet(name, flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var in string
	cmd.StringVar(&in, "in", "", "Path to a JSONL receipt stream (REQUIRED)")
	if extra != nil {
		extra(cmd)
	}

	if err := cmd.Parse(args); err != nil {
		return "", false
	}
	if in == "" {
		_, _ = fmt.Fprintln(stderr, "Error: --in is required")
		return "", false
	}
	return in, true
}

// runCycleCmd implements `proofctl cycle --in stream.jsonl`: one correlator
// cycle, a violation harvest and a PIF pattern scan over the stream.
func runCycleCmd(args []string, stdout, stderr io.Writer) int {
	var cycleID string
	in, ok := streamFlags("cycle", args, stderr, func(cmd *flag.FlagSet) {
		cmd.StringVar(&cycleID, "id", "", "Cycle id (default: random)")
	})
	if !ok {
		return 2
	}

	rs, err := store.ReadJSONLFile(in)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	if cycleID == "" {
		cycleID = uuid.NewString()
	}

	return withApp(stdout, stderr, func(ctx context.Context, a *app) int {
		c := loop.New(a.emitter, a.cfg).WithTracker(a.provider)
		if len(a.cfg.ViolationRules) > 0 {
			d, err := violation.NewHarvestDetector().WithRules(a.cfg.ViolationRules...)
			if err != nil {
				_, _ = fmt.Fprintf(stderr, "Error: violation rules: %v\n", err)
				return 2
			}
			c = c.WithHarvestDetector(d)
		}

		if _, err := c.RunCycle(ctx, rs, cycleID); err != nil {
			return reportErr(stderr, err)
		}
		a.metrics.CycleCompleted()
		if _, err := c.HarvestViolations(ctx, rs, ""); err != nil {
			return reportErr(stderr, err)
		}
		if _, err := c.DetectPIFPattern(ctx, rs); err != nil {
			return reportErr(stderr, err)
		}
		return 0
	})
}

// runVerifyCmd implements `proofctl verify --in stream.jsonl`.
//
// Every payload hash is recomputed; a mismatch fires the hash-mismatch
// StopRule, which is recorded here and turns the exit code to 1. The stream
// is also chained into a ledger and its Merkle root printed.
func runVerifyCmd(args []string, stdout, stderr io.Writer) int {
	var jsonOutput bool
	in, ok := streamFlags("verify", args, stderr, func(cmd *flag.FlagSet) {
		cmd.BoolVar(&jsonOutput, "json", false, "Output the report as JSON")
	})
	if !ok {
		return 2
	}

	rs, err := store.ReadJSONLFile(in)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}

	return withApp(stdout, stderr, func(ctx context.Context, a *app) int {
		h := a.emitter.Hasher()
		chain := ledger.New(h)
		report := verifyReport{Receipts: len(rs)}

		for i, r := range rs {
			err := a.emitter.Verify(ctx, r)
			switch {
			case err == nil:
			case receipts.IsStopRule(err):
				report.Mismatches = append(report.Mismatches, mismatch{Index: i, Type: r.Type, PayloadHash: r.PayloadHash})
			default:
				_, _ = fmt.Fprintf(stderr, "Error: receipt %d: %v\n", i, err)
				return 2
			}
			if _, err := chain.Append(r); err != nil {
				_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
				return 2
			}
		}
		if err := chain.Check(); err != nil {
			_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
			return 2
		}

		tree, err := anchor.Tree(h, rs)
		if err != nil {
			_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
			return 2
		}
		report.MerkleRoot = tree.Root
		report.ChainHead = chain.Head()
		report.Verified = len(report.Mismatches) == 0

		if jsonOutput {
			enc := json.NewEncoder(stdout)
			enc.SetIndent("", "  ")
			_ = enc.Encode(report)
		} else {
			report.print(stdout)
		}
		if !report.Verified {
			return 1
		}
		return 0
	})
}

type mismatch struct {
	Index       int    `json:"index"`
	Type        string `json:"receipt_type"`
	PayloadHash string `json:"payload_hash"`
}

type verifyReport struct {
	Receipts   int        `json:"receipts"`
	Verified   bool       `json:"verified"`
	MerkleRoot string     `json:"merkle_root"`
	ChainHead  string     `json:"chain_head"`
	Mismatches []mismatch `json:"mismatches,omitempty"`
}

func (r verifyReport) print(w io.Writer) {
	status := ColorGreen + "VERIFIED" + ColorReset
	if !r.Verified {
		status = ColorRed + "FAILED" + ColorReset
	}
	_, _ = fmt.Fprintf(w, "%s: %d receipts, %d hash mismatches\n", status, r.Receipts, len(r.Mismatches))
	_, _ = fmt.Fprintf(w, "  merkle_root: %s\n", r.MerkleRoot)
	_, _ = fmt.Fprintf(w, "  chain_head:  %s\n", r.ChainHead)
	for _, m := range r.Mismatches {
		_, _ = fmt.Fprintf(w, "  mismatch at %d (%s): %s\n", m.Index, m.Type, m.PayloadHash)
	}
}

// runSealCmd implements `proofctl seal --in stream.jsonl [--key K]`.
// The segment goes to the configured archive and the anchor receipt to the
// sink. The seal summary goes to stderr so stdout stays a receipt stream.
func runSealCmd(args []string, stdout, stderr io.Writer) int {
	var key string
	in, ok := streamFlags("seal", args, stderr, func(cmd *flag.FlagSet) {
		cmd.StringVar(&key, "key", "", "HMAC key for the attestation token (default: ATTESTATION_KEY)")
	})
	if !ok {
		return 2
	}

	rs, err := store.ReadJSONLFile(in)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}

	return withApp(stdout, stderr, func(ctx context.Context, a *app) int {
		if key == "" {
			key = a.cfg.AttestationKey
		}

		segments, err := archive.Open(ctx, a.cfg.Archive, a.emitter.Hasher())
		if err != nil {
			_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
			return 2
		}
		if c, ok := segments.(io.Closer); ok {
			defer func() { _ = c.Close() }()
		}

		sealer := anchor.NewSealer(a.emitter, segments)
		if key != "" {
			sealer = sealer.WithKey([]byte(key))
		}
		seal, err := trackSeal(ctx, a.provider, sealer, rs)
		if err != nil {
			return reportErr(stderr, err)
		}

		_ = json.NewEncoder(stderr).Encode(map[string]any{
			"segment_id":    seal.SegmentID,
			"segment_hash":  seal.SegmentHash,
			"merkle_root":   seal.MerkleRoot,
			"receipt_count": seal.Count,
			"attestation":   seal.Attestation,
		})
		return 0
	})
}

func trackSeal(ctx context.Context, p *observability.Provider, sealer *anchor.Sealer, rs []*receipts.Receipt) (_ *anchor.Seal, err error) {
	ctx, done := p.TrackOperation(ctx, "anchor.seal", observability.AttrReceipts.Int(len(rs)))
	defer func() { done(err) }()

	seal, err := sealer.Seal(ctx, rs)
	if err != nil {
		return nil, err
	}
	observability.Annotate(ctx, observability.SealOperation(seal.SegmentID, seal.MerkleRoot, seal.Count)...)
	return seal, nil
}

// reportErr maps a command failure to an exit code. A StopRule reaching the
// top level is a failed check, anything else a runtime error.
func reportErr(stderr io.Writer, err error) int {
	var stop *receipts.StopRuleError
	if errors.As(err, &stop) {
		_, _ = fmt.Fprintf(stderr, "%sSTOPRULE%s %s: %s\n", ColorRed, ColorReset, stop.Metric, stop.Message)
		return 1
	}
	_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
	return 2
}
