package receipts

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/northstaraokeystone/trumpproof/pkg/crypto"
)

// DefaultTenant owns receipts whose payload names no tenant.
const DefaultTenant = "trumpproof"

// Observer is notified of emitted receipts and fired StopRules.
type Observer interface {
	ReceiptEmitted(receiptType string)
	StopRuleFired(metric string)
}

// Emitter stamps payloads into receipts and appends them to a sink.
// Emit calls are serialised so each receipt lands as one whole line.
type Emitter struct {
	mu        sync.Mutex
	tenant    string
	hasher    *crypto.DualHasher
	sink      Sink
	clock     func() time.Time
	validator *Validator
	observer  Observer
	logger    *slog.Logger
}

// NewEmitter creates an emitter writing to sink with the default tenant and
// a sha256:blake3 hasher.
func NewEmitter(sink Sink) *Emitter {
	return &Emitter{
		tenant: DefaultTenant,
		hasher: crypto.NewDualHasher(crypto.SecondaryBLAKE3),
		sink:   sink,
		clock:  time.Now,
		logger: slog.Default().With("component", "receipts"),
	}
}

// WithTenant sets the tenant used when a payload does not carry one.
func (e *Emitter) WithTenant(tenant string) *Emitter {
	if tenant != "" {
		e.tenant = tenant
	}
	return e
}

// WithHasher replaces the dual hasher.
func (e *Emitter) WithHasher(h *crypto.DualHasher) *Emitter {
	e.hasher = h
	if h.Degraded() {
		e.logger.Warn("dual hash running degraded, secondary digest repeats sha256")
	}
	return e
}

// WithClock overrides clock for testing.
func (e *Emitter) WithClock(clock func() time.Time) *Emitter {
	e.clock = clock
	return e
}

// WithValidator enables envelope schema validation before each write.
func (e *Emitter) WithValidator(v *Validator) *Emitter {
	e.validator = v
	return e
}

// WithObserver attaches a metrics observer.
func (e *Emitter) WithObserver(o Observer) *Emitter {
	e.observer = o
	return e
}

// WithLogger replaces the diagnostic logger.
func (e *Emitter) WithLogger(l *slog.Logger) *Emitter {
	e.logger = l.With("component", "receipts")
	return e
}

// Hasher returns the emitter's dual hasher.
func (e *Emitter) Hasher() *crypto.DualHasher { return e.hasher }

// Tenant returns the default tenant.
func (e *Emitter) Tenant() string { return e.tenant }

// Emit builds, stamps and writes one receipt. The payload hash covers the
// payload exactly as supplied, including a caller supplied tenant_id, so a
// payload without tenant_id hashes the same under any default tenant.
// A sink failure is returned wrapped in ErrSinkWrite and is never retried.
func (e *Emitter) Emit(ctx context.Context, receiptType string, payload map[string]any) (*Receipt, error) {
	if receiptType == "" {
		return nil, fmt.Errorf("%w: empty receipt_type", ErrInvalidPayload)
	}

	hashInput, err := normalize(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidPayload, receiptType, err)
	}
	if err := normalizeTenant(hashInput); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidPayload, receiptType, err)
	}
	hash, err := e.hasher.Hash(hashInput)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidPayload, receiptType, err)
	}

	tenant := e.tenant
	fields := copyFields(hashInput)
	if t, ok := hashInput[KeyTenantID].(string); ok {
		tenant = t
		delete(fields, KeyTenantID)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	r := &Receipt{
		Type:        receiptType,
		TS:          e.clock().UTC().Format(TimestampLayout),
		TenantID:    tenant,
		PayloadHash: hash,
		Fields:      fields,
	}

	if e.validator != nil {
		if err := e.validator.Validate(r); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidPayload, receiptType, err)
		}
	}

	if err := e.sink.Write(ctx, r); err != nil {
		e.logger.ErrorContext(ctx, "receipt sink write failed", "receipt_type", receiptType, "error", err)
		return nil, fmt.Errorf("%w: %s: %w", ErrSinkWrite, receiptType, err)
	}
	if e.observer != nil {
		e.observer.ReceiptEmitted(receiptType)
	}
	return r, nil
}

// ComputeHash returns the payload hash of r as emitted without a caller
// supplied tenant_id.
func (e *Emitter) ComputeHash(r *Receipt) (string, error) {
	return e.hasher.Hash(copyFields(r.Fields))
}

// CheckHash reports whether r's payload_hash matches its payload. The
// payload is tried first as-is, then with the envelope tenant_id restored.
// It returns the recomputed hash of the bare payload.
func (e *Emitter) CheckHash(r *Receipt) (string, bool, error) {
	bare, err := e.ComputeHash(r)
	if err != nil {
		return "", false, err
	}
	if bare == r.PayloadHash {
		return bare, true, nil
	}
	withTenant := copyFields(r.Fields)
	withTenant[KeyTenantID] = r.TenantID
	h, err := e.hasher.Hash(withTenant)
	if err != nil {
		return "", false, err
	}
	return bare, h == r.PayloadHash, nil
}

// Verify recomputes r's payload hash and fires the hash-mismatch StopRule
// when it disagrees.
func (e *Emitter) Verify(ctx context.Context, r *Receipt) error {
	actual, ok, err := e.CheckHash(r)
	if err != nil {
		return fmt.Errorf("verify %s: %w", r.Type, err)
	}
	if ok {
		return nil
	}
	return e.StopHashMismatch(ctx, r.PayloadHash, actual)
}

// normalize converts a payload into plain JSON values and drops reserved
// envelope keys. NaN and infinite floats are rejected by encoding/json;
// integers beyond 2^53 survive as json.Number.
func normalize(payload map[string]any) (map[string]any, error) {
	out := map[string]any{}
	if len(payload) == 0 {
		return out, nil
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	if err := decodeJSON(raw, &out); err != nil {
		return nil, err
	}
	delete(out, KeyReceiptType)
	delete(out, KeyTS)
	delete(out, KeyPayloadHash)
	return out, nil
}

// normalizeTenant drops an empty or null tenant_id so the payload hashes as
// if none was given. Any other non-string tenant_id cannot be carried by the
// envelope and is rejected.
func normalizeTenant(payload map[string]any) error {
	v, ok := payload[KeyTenantID]
	if !ok {
		return nil
	}
	switch t := v.(type) {
	case nil:
		delete(payload, KeyTenantID)
	case string:
		if t == "" {
			delete(payload, KeyTenantID)
		}
	default:
		return fmt.Errorf("tenant_id must be a string, got %T", v)
	}
	return nil
}

func copyFields(fields map[string]any) map[string]any {
	out := make(map[string]any, len(fields)+1)
	for k, v := range fields {
		out[k] = v
	}
	return out
}
