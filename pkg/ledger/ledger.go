// Package ledger keeps an append-only, hash-chained record of emitted
// receipts.
//
// Each entry binds a receipt's payload hash to its predecessor's entry
// hash. Entries are never mutated or removed; Verify walks the chain from
// genesis and reports the first break.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/northstaraokeystone/trumpproof/pkg/crypto"
	"github.com/northstaraokeystone/trumpproof/pkg/receipts"
)

// Genesis is the prev hash of the first entry.
const Genesis = "genesis"

var (
	ErrChainBroken = errors.New("ledger chain broken")
	ErrNotFound    = errors.New("ledger entry not found")
)

// Entry is an immutable, hash-chained ledger entry.
type Entry struct {
	Sequence    uint64            `json:"sequence"`
	ReceiptType string            `json:"receipt_type"`
	PayloadHash string            `json:"payload_hash"`
	EntryHash   string            `json:"entry_hash"`
	PrevHash    string            `json:"prev_hash"`
	RecordedAt  time.Time         `json:"recorded_at"`
	Receipt     *receipts.Receipt `json:"receipt"`
}

// Ledger is an append-only, hash-chained receipt log. It is a receipts.Sink.
type Ledger struct {
	mu       sync.RWMutex
	hasher   *crypto.DualHasher
	entries  []Entry
	headHash string
	clock    func() time.Time
}

// New creates an empty ledger chained with h.
func New(h *crypto.DualHasher) *Ledger {
	return &Ledger{
		hasher:   h,
		entries:  make([]Entry, 0),
		headHash: Genesis,
		clock:    time.Now,
	}
}

// WithClock overrides clock for testing.
func (l *Ledger) WithClock(clock func() time.Time) *Ledger {
	l.clock = clock
	return l
}

// Write appends r. It satisfies receipts.Sink.
func (l *Ledger) Write(_ context.Context, r *receipts.Receipt) error {
	_, err := l.Append(r)
	return err
}

// Append chains r onto the head. Returns the sequence number.
func (l *Ledger) Append(r *receipts.Receipt) (uint64, error) {
	if r == nil {
		return 0, fmt.Errorf("ledger: nil receipt")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	seq := uint64(len(l.entries)) + 1
	entryHash, err := l.entryHash(seq, r, l.headHash)
	if err != nil {
		return 0, fmt.Errorf("failed to hash entry: %w", err)
	}

	l.entries = append(l.entries, Entry{
		Sequence:    seq,
		ReceiptType: r.Type,
		PayloadHash: r.PayloadHash,
		EntryHash:   entryHash,
		PrevHash:    l.headHash,
		RecordedAt:  l.clock(),
		Receipt:     r,
	})
	l.headHash = entryHash

	return seq, nil
}

func (l *Ledger) entryHash(seq uint64, r *receipts.Receipt, prev string) (string, error) {
	return l.hasher.Hash(map[string]any{
		"seq":          seq,
		"receipt_type": r.Type,
		"ts":           r.TS,
		"payload_hash": r.PayloadHash,
		"prev":         prev,
	})
}

// Get retrieves an entry by sequence number.
func (l *Ledger) Get(seq uint64) (*Entry, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if seq == 0 || seq > uint64(len(l.entries)) {
		return nil, fmt.Errorf("%w: %d", ErrNotFound, seq)
	}
	entry := l.entries[seq-1]
	return &entry, nil
}

// Head returns the current head hash.
func (l *Ledger) Head() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.headHash
}

// Length returns the number of entries.
func (l *Ledger) Length() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// Receipts returns the chained receipts in append order.
func (l *Ledger) Receipts() []*receipts.Receipt {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]*receipts.Receipt, len(l.entries))
	for i, e := range l.entries {
		out[i] = e.Receipt
	}
	return out
}

// Verify checks the integrity of the entire chain.
func (l *Ledger) Verify() (bool, string) {
	if err := l.Check(); err != nil {
		return false, err.Error()
	}
	return true, "chain verified"
}

// Check is Verify as an error wrapping ErrChainBroken.
func (l *Ledger) Check() error {
	l.mu.RLock()
	defer l.mu.RUnlock()

	prevHash := Genesis
	for i, entry := range l.entries {
		if entry.PrevHash != prevHash {
			return fmt.Errorf("%w at entry %d: expected prev %s, got %s", ErrChainBroken, i+1, prevHash, entry.PrevHash)
		}
		if entry.Receipt.PayloadHash != entry.PayloadHash {
			return fmt.Errorf("%w at entry %d: receipt payload hash changed", ErrChainBroken, i+1)
		}

		computed, err := l.entryHash(entry.Sequence, entry.Receipt, entry.PrevHash)
		if err != nil {
			return fmt.Errorf("%w: failed to hash entry %d: %v", ErrChainBroken, i+1, err)
		}
		if computed != entry.EntryHash {
			return fmt.Errorf("%w: hash mismatch at entry %d", ErrChainBroken, i+1)
		}
		prevHash = entry.EntryHash
	}
	return nil
}
