package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/northstaraokeystone/trumpproof/pkg/anchor"
	"github.com/northstaraokeystone/trumpproof/pkg/receipts"
)

// isolate points every backend at a temp dir and clears ambient settings.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("TRUMPPROOF_PROFILE", "")
	t.Setenv("RECEIPT_SINK", "stdout")
	t.Setenv("HASH_SECONDARY", "blake3")
	t.Setenv("TENANT_ID", "")
	t.Setenv("LOG_LEVEL", "ERROR")
	t.Setenv("ARCHIVE_STORAGE_TYPE", "fs")
	t.Setenv("ARCHIVE_DIR", filepath.Join(dir, "segments"))
	t.Setenv("ATTESTATION_KEY", "")
	t.Setenv("VIOLATION_RULES", "")
	t.Setenv("OTEL_ENABLED", "")
	t.Setenv("METRICS_TEXTFILE", "")
	t.Setenv("RECEIPT_VALIDATE", "")
	return dir
}

func run(args ...string) (int, string, string) {
	var stdout, stderr bytes.Buffer
	code := Run(append([]string{"proofctl"}, args...), &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

// receiptLines decodes every JSON object line of out.
func receiptLines(t *testing.T, out string) []map[string]any {
	t.Helper()
	var lines []map[string]any
	sc := bufio.NewScanner(strings.NewReader(out))
	sc.Buffer(make([]byte, 1024*1024), 16*1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if !strings.HasPrefix(line, "{") {
			continue
		}
		var m map[string]any
		if err := json.Unmarshal([]byte(line), &m); err != nil {
			continue
		}
		lines = append(lines, m)
	}
	return lines
}

func typesOf(lines []map[string]any) []string {
	out := make([]string, len(lines))
	for i, l := range lines {
		out[i], _ = l["receipt_type"].(string)
	}
	return out
}

// writeStream emits payloads into a JSONL file the way the CLI would.
func writeStream(t *testing.T, dir string, payloads map[string]map[string]any, order []string) string {
	t.Helper()
	path := filepath.Join(dir, "stream.jsonl")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	e := receipts.NewEmitter(receipts.NewWriterSink(f))
	for _, typ := range order {
		if _, err := e.Emit(context.Background(), typ, payloads[typ]); err != nil {
			t.Fatal(err)
		}
	}
	return path
}

func sampleStream(t *testing.T, dir string) string {
	return writeStream(t, dir, map[string]map[string]any{
		"swf_investment": {"fund_name": "Saudi PIF", "amount": 2_000_000_000.0, "is_pif_connected": true},
		"liv_event":      {"entity_name": "Saudi PIF", "pif_funding": 45_800_000.0},
		"death_rate":     {"deaths": 2, "violation": true, "amount": 1000.0},
		"tariff_ingest":  {"revenue_amount": 1.5e9},
	}, []string{"swf_investment", "liv_event", "death_rate", "tariff_ingest"})
}

func TestRun_UnknownCommand(t *testing.T) {
	code, _, stderr := run("frobnicate")
	if code != 2 {
		t.Fatalf("exit = %d, want 2", code)
	}
	if !strings.Contains(stderr, "Unknown command: frobnicate") {
		t.Errorf("stderr = %q", stderr)
	}
}

func TestRun_Help(t *testing.T) {
	code, stdout, _ := run("help")
	if code != 0 {
		t.Fatalf("exit = %d", code)
	}
	if !strings.Contains(stdout, "proofctl <command>") {
		t.Errorf("usage missing: %q", stdout)
	}
}

func TestRun_Test(t *testing.T) {
	isolate(t)
	code, stdout, stderr := run("test")
	if code != 0 {
		t.Fatalf("exit = %d, stderr = %s", code, stderr)
	}
	lines := receiptLines(t, stdout)
	if len(lines) != 1 || lines[0]["receipt_type"] != "test" {
		t.Fatalf("receipts = %v", lines)
	}
	if lines[0]["tenant_id"] != receipts.DefaultTenant {
		t.Errorf("tenant = %v", lines[0]["tenant_id"])
	}
	if !strings.Contains(stderr, "PASS: Quick validation complete") {
		t.Errorf("stderr = %q", stderr)
	}
}

func TestRun_DefaultsToTest(t *testing.T) {
	isolate(t)
	var stdout, stderr bytes.Buffer
	if code := Run([]string{"proofctl"}, &stdout, &stderr); code != 0 {
		t.Fatalf("exit = %d", code)
	}
}

func TestRun_Receipt(t *testing.T) {
	isolate(t)
	code, stdout, _ := run("receipt", "gulf")
	if code != 0 {
		t.Fatalf("exit = %d", code)
	}
	lines := receiptLines(t, stdout)
	if len(lines) != 1 {
		t.Fatalf("got %d receipts", len(lines))
	}
	if lines[0]["pif_investment"] != 2_000_000_000.0 {
		t.Errorf("pif_investment = %v", lines[0]["pif_investment"])
	}

	if code, _, _ := run("receipt"); code != 2 {
		t.Errorf("missing type: exit = %d, want 2", code)
	}
}

func TestRun_ReceiptSchemaValidation(t *testing.T) {
	isolate(t)
	code, stdout, stderr := run("receipt", "anomaly")
	if code != 2 {
		t.Fatalf("malformed anomaly: exit = %d, want 2", code)
	}
	if len(receiptLines(t, stdout)) != 0 || !strings.Contains(stderr, "receipt schema violation") {
		t.Errorf("stdout = %q, stderr = %q", stdout, stderr)
	}

	t.Setenv("RECEIPT_VALIDATE", "false")
	if code, stdout, _ := run("receipt", "anomaly"); code != 0 || len(receiptLines(t, stdout)) != 1 {
		t.Errorf("validation off: exit = %d, stdout = %q", code, stdout)
	}
}

func TestRun_Version(t *testing.T) {
	isolate(t)
	code, stdout, _ := run("version")
	if code != 0 {
		t.Fatalf("exit = %d", code)
	}
	if !strings.Contains(stdout, "TrumpProof v"+Version) || !strings.Contains(stdout, "$6.6B+") {
		t.Errorf("stdout = %q", stdout)
	}
}

func TestRun_Scenario(t *testing.T) {
	isolate(t)
	code, stdout, stderr := run("scenario", "GÖDEL", "--seed", "3")
	if code != 0 {
		t.Fatalf("exit = %d, stderr = %s", code, stderr)
	}
	var summary scenarioSummary
	if err := json.Unmarshal([]byte(stdout), &summary); err != nil {
		t.Fatalf("summary: %v\n%s", err, stdout)
	}
	if summary.Scenario != "GODEL" || !summary.Passed || summary.Cycles != 100 {
		t.Errorf("summary = %+v", summary)
	}
	if len(summary.StopRules) == 0 {
		t.Error("GODEL recorded no stoprules")
	}
}

func TestRun_ScenarioErrors(t *testing.T) {
	isolate(t)
	if code, _, _ := run("scenario"); code != 2 {
		t.Errorf("no name: exit = %d, want 2", code)
	}
	if code, _, stderr := run("scenario", "NOPE"); code != 2 || !strings.Contains(stderr, "unknown scenario") {
		t.Errorf("unknown: exit = %d, stderr = %q", code, stderr)
	}
	if code, _, _ := run("scenario", "BASELINE", "--seed", "x"); code != 2 {
		t.Errorf("bad seed: exit = %d, want 2", code)
	}
	if code, _, _ := run("scenario", "BASELINE", "--rate", "fast"); code != 2 {
		t.Errorf("bad rate: exit = %d, want 2", code)
	}
}

func TestRun_ScenarioRate(t *testing.T) {
	isolate(t)
	code, stdout, stderr := run("scenario", "GODEL", "--rate", "100000")
	if code != 0 {
		t.Fatalf("exit = %d, stderr = %s", code, stderr)
	}
	var summary scenarioSummary
	if err := json.Unmarshal([]byte(stdout), &summary); err != nil {
		t.Fatalf("summary: %v\n%s", err, stdout)
	}
	if summary.Cycles != 100 {
		t.Errorf("cycles = %d", summary.Cycles)
	}
}

func TestRun_Verify(t *testing.T) {
	dir := isolate(t)
	path := sampleStream(t, dir)

	code, stdout, stderr := run("verify", "--in", path, "--json")
	if code != 0 {
		t.Fatalf("exit = %d, stderr = %s", code, stderr)
	}
	var report verifyReport
	if err := json.Unmarshal([]byte(stdout), &report); err != nil {
		t.Fatalf("report: %v\n%s", err, stdout)
	}
	if !report.Verified || report.Receipts != 4 {
		t.Errorf("report = %+v", report)
	}
	if !strings.Contains(report.MerkleRoot, ":") || report.ChainHead == "" {
		t.Errorf("root = %q head = %q", report.MerkleRoot, report.ChainHead)
	}
}

func TestRun_VerifyDetectsTampering(t *testing.T) {
	dir := isolate(t)
	path := sampleStream(t, dir)

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	var first map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &first); err != nil {
		t.Fatal(err)
	}
	first["amount"] = 1.0
	tampered, _ := json.Marshal(first)
	lines[0] = string(tampered)
	if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	code, stdout, _ := run("verify", "--in", path)
	if code != 1 {
		t.Fatalf("exit = %d, want 1\n%s", code, stdout)
	}
	if !strings.Contains(stdout, "1 hash mismatches") || !strings.Contains(stdout, "mismatch at 0 (swf_investment)") {
		t.Errorf("stdout = %q", stdout)
	}
	// The StopRule leaves its anomaly in the receipt stream.
	found := false
	for _, l := range receiptLines(t, stdout) {
		if l["receipt_type"] == receipts.AnomalyType && l["metric"] == receipts.MetricHashMismatch {
			found = true
		}
	}
	if !found {
		t.Error("no hash_mismatch anomaly emitted")
	}
}

func TestRun_VerifyRequiresInput(t *testing.T) {
	isolate(t)
	code, _, stderr := run("verify")
	if code != 2 || !strings.Contains(stderr, "--in is required") {
		t.Errorf("exit = %d, stderr = %q", code, stderr)
	}
	if code, _, _ := run("verify", "--in", filepath.Join(t.TempDir(), "missing.jsonl")); code != 2 {
		t.Errorf("missing file: exit = %d, want 2", code)
	}
}

func TestRun_Cycle(t *testing.T) {
	dir := isolate(t)
	path := sampleStream(t, dir)

	code, stdout, stderr := run("cycle", "--in", path, "--id", "c-1")
	if code != 0 {
		t.Fatalf("exit = %d, stderr = %s", code, stderr)
	}
	got := typesOf(receiptLines(t, stdout))
	want := []string{"loop_cycle", "harvest", "pif_pattern"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("emitted %v, want %v", got, want)
	}
	cycle := receiptLines(t, stdout)[0]
	if cycle["cycle_id"] != "c-1" || cycle["receipts_processed"] != 4.0 {
		t.Errorf("loop_cycle = %v", cycle)
	}
}

func TestRun_CycleWithRules(t *testing.T) {
	dir := isolate(t)
	path := sampleStream(t, dir)
	t.Setenv("VIOLATION_RULES", "receipt.receipt_type == 'tariff_ingest' && receipt.revenue_amount > 1000000000.0")

	code, stdout, stderr := run("cycle", "--in", path)
	if code != 0 {
		t.Fatalf("exit = %d, stderr = %s", code, stderr)
	}
	for _, l := range receiptLines(t, stdout) {
		if l["receipt_type"] == "harvest" && l["total_violations"] != 2.0 {
			t.Errorf("harvest total = %v, want 2", l["total_violations"])
		}
	}

	t.Setenv("VIOLATION_RULES", "this is not cel (")
	if code, _, _ := run("cycle", "--in", path); code != 2 {
		t.Errorf("bad rule: exit = %d, want 2", code)
	}
}

func TestRun_Seal(t *testing.T) {
	dir := isolate(t)
	path := sampleStream(t, dir)

	code, stdout, stderr := run("seal", "--in", path, "--key", "secret")
	if code != 0 {
		t.Fatalf("exit = %d, stderr = %s", code, stderr)
	}

	lines := receiptLines(t, stdout)
	if len(lines) != 1 || lines[0]["receipt_type"] != anchor.ReceiptType {
		t.Fatalf("stdout receipts = %v", lines)
	}
	if lines[0]["receipt_count"] != 4.0 {
		t.Errorf("receipt_count = %v", lines[0]["receipt_count"])
	}

	summary := receiptLines(t, stderr)
	if len(summary) != 1 {
		t.Fatalf("summary = %q", stderr)
	}
	token, _ := summary[0]["attestation"].(string)
	claims, err := anchor.VerifyAttestation(token, []byte("secret"))
	if err != nil {
		t.Fatalf("attestation: %v", err)
	}
	if claims.MerkleRoot != lines[0]["merkle_root"] || claims.ReceiptCount != 4 {
		t.Errorf("claims = %+v", claims)
	}

	segments, _ := os.ReadDir(filepath.Join(dir, "segments"))
	if len(segments) != 1 {
		t.Errorf("archived %d segments, want 1", len(segments))
	}
}

func TestRun_PIF(t *testing.T) {
	isolate(t)
	code, stdout, _ := run("pif")
	if code != 0 {
		t.Fatalf("exit = %d", code)
	}
	if got := typesOf(receiptLines(t, stdout)); len(got) != 1 || got[0] != "pif_aggregate" {
		t.Errorf("emitted %v", got)
	}
}

func TestRun_MetricsTextfile(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "proofctl.prom")
	t.Setenv("METRICS_TEXTFILE", path)

	if code, _, _ := run("test"); code != 0 {
		t.Fatalf("exit = %d", code)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "trumpproof_receipts_emitted_total") {
		t.Errorf("textfile = %s", data)
	}
}
